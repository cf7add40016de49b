// Package fakeapi is an in-memory implementation of the remote event API.
// It backs cmd/eventhub-devapi for local development and the client tests;
// it keeps nothing on disk.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	appLog "eventhub/internal/log"
	"eventhub/internal/model"
)

type ctxKey string

const emailKey ctxKey = "email"

type user struct {
	Username string
	Email    string
	Hash     []byte
}

type claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Server holds users and events in memory, guarded by one mutex.
type Server struct {
	mu     sync.Mutex
	users  map[string]user
	events []model.Event

	secret   []byte
	tokenTTL time.Duration
	router   chi.Router

	// bcrypt cost; tests lower it to keep registration fast.
	hashCost int
}

// Option customizes a Server.
type Option func(*Server)

// WithHashCost sets the bcrypt cost for stored passwords.
func WithHashCost(cost int) Option {
	return func(s *Server) { s.hashCost = cost }
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// New builds a server whose routes live under /api.
func New(secret string, opts ...Option) *Server {
	if secret == "" {
		secret = "dev-secret"
	}
	s := &Server{
		users:    make(map[string]user),
		secret:   []byte(secret),
		tokenTTL: 24 * time.Hour,
		hashCost: bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleCreateEvent)
			r.Get("/events/category/{category}", s.handleListByCategory)
			r.Get("/events/{id}", s.handleGetEvent)
			r.Put("/events/{id}", s.handleUpdateEvent)
			r.Delete("/events/{id}", s.handleDeleteEvent)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	return r
}

// Seed appends events as-is. Events without an ID get one.
func (s *Server) Seed(events ...model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = newID()
		}
		s.events = append(s.events, ev)
	}
}

// Events returns a copy of the stored events.
func (s *Server) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.events...)
}

// IssueToken signs a token for email without registering anyone; tests use
// it to act as a signed-in user.
func (s *Server) IssueToken(username, email string) (string, error) {
	return s.sign(username, email)
}

type authRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in authRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not hash password")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[in.Email]; exists {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	s.users[in.Email] = user{Username: in.Username, Email: in.Email, Hash: hash}
	s.mu.Unlock()

	tok, err := s.sign(in.Username, in.Email)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	appLog.Info("fakeapi: user registered", "email", in.Email)
	writeJSON(w, http.StatusCreated, authBody("User registered successfully", tok, in.Username, in.Email))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in authRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.Hash, []byte(in.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	tok, err := s.sign(u.Username, u.Email)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, authBody("Login successful", tok, u.Username, u.Email))
}

func authBody(msg, tok, username, email string) map[string]any {
	return map[string]any{
		"message": msg,
		"token":   tok,
		"user": map[string]string{
			"username": username,
			"email":    email,
		},
	}
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.Events()})
}

func (s *Server) handleListByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	out := make([]model.Event, 0)
	for _, ev := range s.Events() {
		if ev.Category == category {
			out = append(out, ev)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	idx := s.indexOf(id)
	var ev model.Event
	if idx >= 0 {
		ev = s.events[idx]
	}
	s.mu.Unlock()
	if idx < 0 {
		writeMessage(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": ev})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	ev := model.Event{
		ID:           newID(),
		Name:         fields.Name,
		Date:         fields.Date,
		Time:         fields.Time,
		Location:     fields.Location,
		Description:  fields.Description,
		Category:     fields.Category,
		CreatorEmail: emailFrom(r.Context()),
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Event created successfully", "event": ev})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		writeMessage(w, http.StatusNotFound, "Event not found")
		return
	}
	ev := s.events[idx]
	if ev.CreatorEmail != emailFrom(r.Context()) {
		writeMessage(w, http.StatusForbidden, "You can only update your own events")
		return
	}
	ev.Name = fields.Name
	ev.Date = fields.Date
	ev.Time = fields.Time
	ev.Location = fields.Location
	ev.Description = fields.Description
	ev.Category = fields.Category
	s.events[idx] = ev

	writeJSON(w, http.StatusOK, map[string]any{"message": "Event updated successfully", "event": ev})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		writeMessage(w, http.StatusNotFound, "Event not found")
		return
	}
	if s.events[idx].CreatorEmail != emailFrom(r.Context()) {
		writeMessage(w, http.StatusForbidden, "You can only delete your own events")
		return
	}
	s.events = append(s.events[:idx], s.events[idx+1:]...)
	writeMessage(w, http.StatusOK, "Event deleted successfully")
}

// indexOf must be called with s.mu held.
func (s *Server) indexOf(id string) int {
	for i, ev := range s.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func decodeFields(w http.ResponseWriter, r *http.Request) (model.EventFields, bool) {
	var fields model.EventFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event payload")
		return fields, false
	}
	if err := fields.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return fields, false
	}
	return fields, true
}

// requireToken accepts "Bearer <jwt>" as well as a bare token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
		if raw == "" {
			writeMessage(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		c, err := s.parse(raw)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), emailKey, c.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) sign(username, email string) (string, error) {
	now := time.Now()
	c := claims{
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Server) parse(raw string) (*claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid || c.Email == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

func emailFrom(ctx context.Context) string {
	v, _ := ctx.Value(emailKey).(string)
	return v
}

// newID mimics the 24-hex-digit ids of the production backend.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("fakeapi: failed to write JSON response", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
