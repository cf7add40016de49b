package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "eventhub/internal/log"
	"eventhub/internal/metrics"
	"eventhub/internal/model"
)

// Operation names, used in errors, logs and metrics.
const (
	OpRegister             = "register"
	OpLogin                = "login"
	OpListEvents           = "list_events"
	OpListEventsByCategory = "list_events_by_category"
	OpGetEvent             = "get_event"
	OpCreateEvent          = "create_event"
	OpUpdateEvent          = "update_event"
	OpDeleteEvent          = "delete_event"
)

// maxResponseBytes caps a single API response body.
const maxResponseBytes = 10 << 20

// TokenSource supplies the current session token. session.Store satisfies it.
type TokenSource interface {
	Token() (string, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL includes the /api prefix.
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// AuthScheme prefixes the token ("Bearer"); "none" or "" sends it bare.
	AuthScheme string
	Tokens     TokenSource
	Metrics    *metrics.Registry
	// HTTPClient overrides the default transport, e.g. in tests.
	HTTPClient *http.Client
}

// Client is the remote API gateway. It never retries and never checks
// token expiry; each call is a single request whose failure is classified
// into an *Error.
type Client struct {
	baseURL    string
	userAgent  string
	authScheme string
	tokens     TokenSource
	metrics    *metrics.Registry
	http       *http.Client
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClient(timeout)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		authScheme: opts.AuthScheme,
		tokens:     opts.Tokens,
		metrics:    opts.Metrics,
		http:       hc,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

type credentialsRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

type eventsResponse struct {
	Events []model.Event `json:"events"`
}

// Register creates an account and returns the new session.
func (c *Client) Register(ctx context.Context, username, email, password string) (model.Session, error) {
	var out authResponse
	in := credentialsRequest{Username: username, Email: email, Password: password}
	if err := c.do(ctx, OpRegister, http.MethodPost, "/auth/register", false, in, &out); err != nil {
		return model.Session{}, err
	}
	return c.sessionFrom(OpRegister, out, email)
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (model.Session, error) {
	var out authResponse
	in := credentialsRequest{Email: email, Password: password}
	if err := c.do(ctx, OpLogin, http.MethodPost, "/auth/login", false, in, &out); err != nil {
		return model.Session{}, err
	}
	return c.sessionFrom(OpLogin, out, email)
}

func (c *Client) sessionFrom(op string, out authResponse, email string) (model.Session, error) {
	if out.Token == "" {
		return model.Session{}, &Error{Op: op, Kind: KindUnknown, Message: "response carries no token"}
	}
	sess := model.Session{
		Token:    out.Token,
		Username: out.User.Username,
		Email:    out.User.Email,
	}
	if sess.Email == "" {
		sess.Email = email
	}
	return sess, nil
}

// ListEvents fetches the whole collection in server order.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var out eventsResponse
	if err := c.do(ctx, OpListEvents, http.MethodGet, "/events", true, nil, &out); err != nil {
		return nil, err
	}
	if err := checkEvents(OpListEvents, out.Events); err != nil {
		return nil, err
	}
	return nonNil(out.Events), nil
}

// ListEventsByCategory asks the server for one category's events.
func (c *Client) ListEventsByCategory(ctx context.Context, category string) ([]model.Event, error) {
	var out eventsResponse
	path := "/events/category/" + url.PathEscape(category)
	if err := c.do(ctx, OpListEventsByCategory, http.MethodGet, path, true, nil, &out); err != nil {
		return nil, err
	}
	if err := checkEvents(OpListEventsByCategory, out.Events); err != nil {
		return nil, err
	}
	return nonNil(out.Events), nil
}

// GetEvent fetches a single event.
func (c *Client) GetEvent(ctx context.Context, id string) (model.Event, error) {
	return c.eventCall(ctx, OpGetEvent, http.MethodGet, "/events/"+url.PathEscape(id), nil)
}

// CreateEvent submits a new event.
func (c *Client) CreateEvent(ctx context.Context, fields model.EventFields) (model.Event, error) {
	return c.eventCall(ctx, OpCreateEvent, http.MethodPost, "/events", fields)
}

// UpdateEvent replaces the editable fields of an event.
func (c *Client) UpdateEvent(ctx context.Context, id string, fields model.EventFields) (model.Event, error) {
	return c.eventCall(ctx, OpUpdateEvent, http.MethodPut, "/events/"+url.PathEscape(id), fields)
}

// DeleteEvent removes an event. The response body is ignored.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.do(ctx, OpDeleteEvent, http.MethodDelete, "/events/"+url.PathEscape(id), true, nil, nil)
}

// eventCall decodes either {"event": {...}} or a bare event object.
func (c *Client) eventCall(ctx context.Context, op, method, path string, in any) (model.Event, error) {
	var raw json.RawMessage
	if err := c.do(ctx, op, method, path, true, in, &raw); err != nil {
		return model.Event{}, err
	}

	var wrapped struct {
		Event *model.Event `json:"event"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return model.Event{}, &Error{Op: op, Kind: KindUnknown, Err: err}
	}
	ev := wrapped.Event
	if ev == nil {
		var bare model.Event
		if err := json.Unmarshal(raw, &bare); err != nil {
			return model.Event{}, &Error{Op: op, Kind: KindUnknown, Err: err}
		}
		ev = &bare
	}
	if msg := malformed(*ev); msg != "" {
		return model.Event{}, &Error{Op: op, Kind: KindUnknown, Message: "event " + msg}
	}
	return *ev, nil
}

func checkEvents(op string, events []model.Event) error {
	for i, ev := range events {
		if msg := malformed(ev); msg != "" {
			return &Error{Op: op, Kind: KindUnknown, Message: fmt.Sprintf("event %d %s", i, msg)}
		}
	}
	return nil
}

// malformed names the first required field an event record lacks. A
// missing, null or empty date decodes to the zero Date.
func malformed(ev model.Event) string {
	switch {
	case ev.ID == "":
		return "without _id"
	case ev.Date.IsZero():
		return "without date"
	}
	return ""
}

func nonNil(events []model.Event) []model.Event {
	if events == nil {
		return []model.Event{}
	}
	return events
}

// do performs one request. in is JSON-encoded when non-nil; out is decoded
// from a 2xx body when non-nil. Every failure comes back as *Error.
func (c *Client) do(ctx context.Context, op, method, path string, auth bool, in, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = KindOf(err).String()
		}
		c.metrics.ObserveRequest(op, outcome, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		b, mErr := json.Marshal(in)
		if mErr != nil {
			return &Error{Op: op, Kind: KindUnknown, Err: mErr}
		}
		body = bytes.NewReader(b)
	}

	req, rErr := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if rErr != nil {
		return &Error{Op: op, Kind: KindUnknown, Err: rErr}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if auth {
		if hErr := c.authorize(req); hErr != nil {
			return &Error{Op: op, Kind: KindUnknown, Err: hErr}
		}
	}

	appLog.Debug("api request", "op", op, "method", method, "path", path)

	resp, dErr := c.http.Do(req)
	if dErr != nil {
		appLog.Error("api transport error", dErr, "op", op)
		return &Error{Op: op, Kind: KindUnknown, Err: dErr}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if readErr != nil {
		return &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Err: readErr}
	}

	if len(data) > maxResponseBytes {
		return &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Message: "response body too large"}
	}

	if resp.StatusCode/100 != 2 {
		msg := errorMessage(data)
		kind := classify(op, resp.StatusCode, msg)
		appLog.Info("api request failed", "op", op, "status", resp.StatusCode, "kind", kind, "message", msg)
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Message: "empty response body"}
		}
		if uErr := json.Unmarshal(data, out); uErr != nil {
			appLog.Error("api decode failed", uErr, "op", op, "status", resp.StatusCode)
			return &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Err: uErr}
		}
	}

	appLog.Debug("api request done", "op", op, "status", resp.StatusCode, "took", time.Since(start).Truncate(time.Millisecond))
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return errors.New("no token source configured")
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return err
	}
	if tok == "" {
		// The server decides; an unauthenticated call simply fails there.
		return nil
	}
	scheme := strings.TrimSpace(c.authScheme)
	if scheme == "" || strings.EqualFold(scheme, "none") {
		req.Header.Set("Authorization", tok)
		return nil
	}
	req.Header.Set("Authorization", scheme+" "+tok)
	return nil
}

// classify maps a non-2xx status to a Kind for the given operation.
func classify(op string, status int, msg string) Kind {
	switch op {
	case OpRegister:
		if status == http.StatusConflict || strings.Contains(strings.ToLower(msg), "already exists") {
			return KindDuplicateAccount
		}
	case OpLogin:
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return KindInvalidCredentials
		}
	case OpGetEvent, OpDeleteEvent:
		if status == http.StatusNotFound {
			return KindNotFound
		}
	case OpCreateEvent:
		if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
			return KindValidationFailed
		}
	case OpUpdateEvent:
		switch status {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return KindValidationFailed
		case http.StatusNotFound:
			return KindNotFound
		}
	}
	return KindUnknown
}

// errorMessage pulls {"message": ...} or {"error": ...} out of a failure body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
