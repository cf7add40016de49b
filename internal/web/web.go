package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"eventhub/internal/api"
	"eventhub/internal/app"
	"eventhub/internal/config"
	"eventhub/internal/ics"
	appLog "eventhub/internal/log"
	"eventhub/internal/metrics"
	"eventhub/internal/model"
	"eventhub/internal/notify"
	"eventhub/internal/view"
)

// Server is the local dashboard: JSON views over the cached collection,
// the mutation endpoints, an iCalendar feed and a small embedded page.
type Server struct {
	cfg     *config.Config
	ctrl    *app.Controller
	queue   *notify.Queue
	metrics *metrics.Registry
	loc     *time.Location
	mux     *http.ServeMux
}

// embeddedStatic holds the dashboard page.
//
//go:embed all:static
var embeddedStatic embed.FS

// Deps are the collaborators the server drives.
type Deps struct {
	Controller *app.Controller
	// Queue is drained by GET /api/notifications. It should also be the
	// controller's notifier (or part of it).
	Queue   *notify.Queue
	Metrics *metrics.Registry
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		ctrl:    deps.Controller,
		queue:   deps.Queue,
		metrics: deps.Metrics,
		loc:     cfg.Location(),
		mux:     http.NewServeMux(),
	}
	if s.queue == nil {
		s.queue = notify.NewQueue(0)
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables it.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventhub", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/register", s.handleRegister)
	s.mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)

	s.mux.Handle("POST /api/logout", s.requireSession(s.handleLogout))
	s.mux.Handle("GET /api/dashboard", s.requireSession(s.handleDashboard))
	s.mux.Handle("POST /api/refresh", s.requireSession(s.handleRefresh))
	s.mux.Handle("GET /api/events", s.requireSession(s.handleListEvents))
	s.mux.Handle("POST /api/events", s.requireSession(s.handleCreateEvent))
	s.mux.Handle("GET /api/events/{id}", s.requireSession(s.handleGetEvent))
	s.mux.Handle("PUT /api/events/{id}", s.requireSession(s.handleUpdateEvent))
	s.mux.Handle("DELETE /api/events/{id}", s.requireSession(s.handleDeleteEvent))
	s.mux.Handle("GET /calendar.ics", s.requireSession(s.handleCalendar))

	s.mux.Handle("/", s.staticFileServer())
}

// requireSession is a presence test on the stored token; expiry is the
// remote API's business.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.ctrl.RequireSession(); err != nil {
			if errors.Is(err, app.ErrNotSignedIn) {
				writeError(w, http.StatusUnauthorized, "not signed in")
				return
			}
			appLog.Error("session read failed", err)
			writeError(w, http.StatusInternalServerError, "session unavailable")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type sessionResponse struct {
	SignedIn bool   `json:"signed_in"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	sess, ok, err := s.ctrl.Session()
	if err != nil {
		appLog.Error("session read failed", err)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SignedIn: ok, Username: sess.Username, Email: sess.Email})
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	sess, err := s.ctrl.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, statusFor(err), errorText(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SignedIn: true, Username: sess.Username, Email: sess.Email})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	sess, err := s.ctrl.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		writeError(w, statusFor(err), errorText(err))
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SignedIn: true, Username: sess.Username, Email: sess.Email})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.Logout(); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SignedIn: false})
}

type dashboardResponse struct {
	view.DashboardView
	Loading  bool   `json:"loading"`
	Error    string `json:"error,omitempty"`
	Timezone string `json:"timezone"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	d, snap := s.ctrl.DashboardSnapshot()
	writeJSON(w, http.StatusOK, dashboardResponse{
		DashboardView: d,
		Loading:       snap.Loading,
		Error:         snap.Err,
		Timezone:      s.loc.String(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, app.MsgGeneric)
		return
	}
	s.handleDashboard(w, r)
}

type eventsResponse struct {
	Events []model.Event `json:"events"`
}

// handleListEvents serves the cached collection. ?category= filters the
// cache; adding &remote=1 asks the server instead.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		writeJSON(w, http.StatusOK, eventsResponse{Events: s.ctrl.Events().All()})
		return
	}
	if q.Get("remote") == "1" {
		events, err := s.ctrl.CategoryEvents(r.Context(), category)
		if err != nil {
			writeError(w, statusFor(err), app.MsgEventsFailed)
			return
		}
		writeJSON(w, http.StatusOK, eventsResponse{Events: events})
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: view.ByCategory(s.ctrl.Events().All(), category)})
}

type eventResponse struct {
	Event model.Event `json:"event"`
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.ctrl.Event(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), app.MsgEventLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Event: ev})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var f model.EventFields
	if !decodeBody(w, r, &f) {
		return
	}
	ev, err := s.ctrl.CreateEvent(r.Context(), f)
	if err != nil {
		writeError(w, statusFor(err), errorText(err))
		return
	}
	writeJSON(w, http.StatusCreated, eventResponse{Event: ev})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var f model.EventFields
	if !decodeBody(w, r, &f) {
		return
	}
	ev, err := s.ctrl.UpdateEvent(r.Context(), r.PathValue("id"), f)
	if err != nil {
		writeError(w, statusFor(err), errorText(err))
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Event: ev})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), errorText(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": app.MsgDeleted})
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.queue.Drain()})
}

// handleCategories lists the configured labels followed by any extra
// labels present in the cache.
func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	seen := make(map[string]bool)
	out := make([]string, 0, len(s.cfg.Categories))
	for _, c := range s.cfg.Categories {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range view.Categories(s.ctrl.Events().All()) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	doc := ics.Export(s.ctrl.Events().All(), s.loc, s.ctrl.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="eventhub.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// staticFileServer serves the embedded page; /api/* never falls through
// to it.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// statusFor maps controller and gateway errors to dashboard status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrMissingFields):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, app.ErrNotSignedIn):
		return http.StatusUnauthorized
	}
	switch api.KindOf(err) {
	case api.KindDuplicateAccount:
		return http.StatusConflict
	case api.KindInvalidCredentials:
		return http.StatusUnauthorized
	case api.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case api.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// errorText is the message returned to the page; the user-facing wording
// arrives separately through the notification queue.
func errorText(err error) string {
	if reason := api.Reason(err); reason != "" {
		return reason
	}
	switch {
	case errors.Is(err, model.ErrMissingFields):
		return app.MsgMissingFields
	case errors.Is(err, app.ErrBusy):
		return "request already in progress"
	}
	return api.KindOf(err).String()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
