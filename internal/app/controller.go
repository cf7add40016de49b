// Package app ties the gateway, the session store and the collection store
// together. Every user action goes through a Controller method, which emits
// exactly one notification for the outcome and, after a successful
// mutation, refetches the whole collection before returning.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"eventhub/internal/api"
	appLog "eventhub/internal/log"
	"eventhub/internal/metrics"
	"eventhub/internal/model"
	"eventhub/internal/notify"
	"eventhub/internal/session"
	"eventhub/internal/store"
	"eventhub/internal/view"
)

// Notification texts shown to the user.
const (
	MsgRegistered      = "Registration Success"
	MsgDuplicateEmail  = "Email Already Exists!"
	MsgGeneric         = "Something Went Wrong"
	MsgLoggedIn        = "Login Success"
	MsgBadCredentials  = "Invalid Email or Password"
	MsgMissingFields   = "Please fill in all required fields"
	MsgCreated         = "Event created successfully!"
	MsgCreateFailed    = "Failed to create event"
	MsgUpdated         = "Event updated successfully!"
	MsgUpdateFailed    = "Failed to update event"
	MsgDeleted         = "Event deleted successfully!"
	MsgDeleteFailed    = "Failed to delete event"
	MsgEventLoadFailed = "Failed to load event details"
	MsgEventsFailed    = "Failed to load events"
)

var (
	// ErrBusy is returned when the same action is already submitting.
	ErrBusy = errors.New("app: action already in progress")
	// ErrNotSignedIn is returned by RequireSession when no token is stored.
	ErrNotSignedIn = errors.New("app: not signed in")
)

// Gateway is the subset of *api.Client the controller needs.
type Gateway interface {
	Register(ctx context.Context, username, email, password string) (model.Session, error)
	Login(ctx context.Context, email, password string) (model.Session, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListEventsByCategory(ctx context.Context, category string) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	CreateEvent(ctx context.Context, fields model.EventFields) (model.Event, error)
	UpdateEvent(ctx context.Context, id string, fields model.EventFields) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Action names a mutation that can be in flight at most once.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionImport Action = "import"
)

type State int

const (
	Idle State = iota
	Submitting
)

func (s State) String() string {
	if s == Submitting {
		return "submitting"
	}
	return "idle"
}

type Options struct {
	Gateway  Gateway
	Session  *session.Store
	Events   *store.Store
	Notifier notify.Notifier
	Metrics  *metrics.Registry
	// Now defaults to time.Now.
	Now func() time.Time
}

type Controller struct {
	gw       Gateway
	session  *session.Store
	events   *store.Store
	notifier notify.Notifier
	metrics  *metrics.Registry
	now      func() time.Time

	mu         sync.Mutex
	submitting map[Action]bool
}

func New(opts Options) *Controller {
	c := &Controller{
		gw:         opts.Gateway,
		session:    opts.Session,
		events:     opts.Events,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		now:        opts.Now,
		submitting: make(map[Action]bool),
	}
	if c.events == nil {
		c.events = store.New()
	}
	if c.notifier == nil {
		c.notifier = notify.Discard{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Events exposes the collection store for read-only use by presenters.
func (c *Controller) Events() *store.Store { return c.events }

// State reports whether action is currently submitting.
func (c *Controller) State(action Action) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting[action] {
		return Submitting
	}
	return Idle
}

func (c *Controller) begin(action Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting[action] {
		return false
	}
	c.submitting[action] = true
	return true
}

func (c *Controller) end(action Action) {
	c.mu.Lock()
	delete(c.submitting, action)
	c.mu.Unlock()
}

// Session returns the stored session; ok is false when no token is stored.
func (c *Controller) Session() (model.Session, bool, error) {
	return c.session.Current()
}

// RequireSession is the presence test used to gate signed-in actions.
func (c *Controller) RequireSession() (model.Session, error) {
	sess, ok, err := c.session.Current()
	if err != nil {
		return model.Session{}, err
	}
	if !ok {
		return model.Session{}, ErrNotSignedIn
	}
	return sess, nil
}

// Register creates an account and stores the returned session. On failure
// the stored session is left untouched.
func (c *Controller) Register(ctx context.Context, username, email, password string) (model.Session, error) {
	if blank(username) || blank(email) || blank(password) {
		notify.Failure(c.notifier, MsgMissingFields)
		return model.Session{}, model.ErrMissingFields
	}
	sess, err := c.gw.Register(ctx, strings.TrimSpace(username), strings.TrimSpace(email), password)
	if err != nil {
		if errors.Is(err, api.ErrDuplicateAccount) {
			notify.Failure(c.notifier, MsgDuplicateEmail)
		} else {
			notify.Failure(c.notifier, MsgGeneric)
		}
		appLog.Info("register failed", "email", email, "kind", api.KindOf(err))
		return model.Session{}, err
	}
	if err := c.session.Set(sess); err != nil {
		notify.Failure(c.notifier, MsgGeneric)
		return model.Session{}, err
	}
	notify.Success(c.notifier, MsgRegistered)
	appLog.Info("registered", "username", sess.Username, "email", sess.Email)
	return sess, nil
}

// Login exchanges credentials for a session and stores it.
func (c *Controller) Login(ctx context.Context, email, password string) (model.Session, error) {
	if blank(email) || blank(password) {
		notify.Failure(c.notifier, MsgMissingFields)
		return model.Session{}, model.ErrMissingFields
	}
	sess, err := c.gw.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		if errors.Is(err, api.ErrInvalidCredentials) {
			notify.Failure(c.notifier, MsgBadCredentials)
		} else {
			notify.Failure(c.notifier, MsgGeneric)
		}
		appLog.Info("login failed", "email", email, "kind", api.KindOf(err))
		return model.Session{}, err
	}
	if err := c.session.Set(sess); err != nil {
		notify.Failure(c.notifier, MsgGeneric)
		return model.Session{}, err
	}
	notify.Success(c.notifier, MsgLoggedIn)
	appLog.Info("logged in", "username", sess.Username, "email", sess.Email)
	return sess, nil
}

// Logout clears the stored session and the cached collection.
func (c *Controller) Logout() error {
	if err := c.session.Clear(); err != nil {
		notify.Failure(c.notifier, MsgGeneric)
		return err
	}
	c.events.ReplaceAll(nil)
	c.events.ClearError()
	c.metrics.SetCachedEvents(0)
	appLog.Info("logged out")
	return nil
}

// Refresh fetches the whole collection and replaces the cache with it,
// unless a newer fetch has already landed.
func (c *Controller) Refresh(ctx context.Context) error {
	t := c.events.Begin()
	events, err := c.gw.ListEvents(ctx)
	if err != nil {
		c.events.Fail(t, MsgGeneric)
		notify.Failure(c.notifier, MsgGeneric)
		appLog.Error("refresh failed", err)
		return err
	}
	if !c.events.Apply(t, events) {
		c.metrics.StaleFetchDiscarded()
		appLog.Debug("discarded stale list response", "ticket", t)
		return nil
	}
	c.metrics.SetCachedEvents(len(events))
	appLog.Debug("collection refreshed", "events", len(events))
	return nil
}

// Event fetches one event directly from the server.
func (c *Controller) Event(ctx context.Context, id string) (model.Event, error) {
	ev, err := c.gw.GetEvent(ctx, id)
	if err != nil {
		notify.Failure(c.notifier, MsgEventLoadFailed)
		return model.Event{}, err
	}
	return ev, nil
}

// CategoryEvents asks the server for one category. The cache is not touched.
func (c *Controller) CategoryEvents(ctx context.Context, category string) ([]model.Event, error) {
	events, err := c.gw.ListEventsByCategory(ctx, category)
	if err != nil {
		notify.Failure(c.notifier, MsgEventsFailed)
		return nil, err
	}
	return events, nil
}

// CreateEvent validates and submits fields, then refetches the collection.
func (c *Controller) CreateEvent(ctx context.Context, fields model.EventFields) (model.Event, error) {
	if err := c.validate(fields); err != nil {
		return model.Event{}, err
	}
	var created model.Event
	err := c.mutate(ctx, ActionCreate, MsgCreated, MsgCreateFailed, func(ctx context.Context) error {
		var err error
		created, err = c.gw.CreateEvent(ctx, fields)
		return err
	})
	return created, err
}

// UpdateEvent validates and submits fields for id, then refetches.
func (c *Controller) UpdateEvent(ctx context.Context, id string, fields model.EventFields) (model.Event, error) {
	if err := c.validate(fields); err != nil {
		return model.Event{}, err
	}
	var updated model.Event
	err := c.mutate(ctx, ActionUpdate, MsgUpdated, MsgUpdateFailed, func(ctx context.Context) error {
		var err error
		updated, err = c.gw.UpdateEvent(ctx, id, fields)
		return err
	})
	return updated, err
}

// DeleteEvent removes id on the server, then refetches.
func (c *Controller) DeleteEvent(ctx context.Context, id string) error {
	return c.mutate(ctx, ActionDelete, MsgDeleted, MsgDeleteFailed, func(ctx context.Context) error {
		return c.gw.DeleteEvent(ctx, id)
	})
}

// ImportResult summarizes an ImportEvents run.
type ImportResult struct {
	Created int
	Skipped int
	Failed  int
}

// ImportEvents creates each entry in order and refetches once at the end.
// Entries missing required fields are skipped; failed creates are counted
// and do not stop the run.
func (c *Controller) ImportEvents(ctx context.Context, entries []model.EventFields) (ImportResult, error) {
	var res ImportResult
	if !c.begin(ActionImport) {
		return res, ErrBusy
	}
	defer c.end(ActionImport)

	var firstErr error
	for _, f := range entries {
		if err := ctx.Err(); err != nil {
			firstErr = err
			break
		}
		if f.Validate() != nil {
			res.Skipped++
			continue
		}
		if _, err := c.gw.CreateEvent(ctx, f); err != nil {
			appLog.Error("import: create failed", err, "name", f.Name)
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Created++
	}

	if firstErr != nil {
		notify.Failure(c.notifier, importSummary(res))
	} else {
		notify.Success(c.notifier, importSummary(res))
	}
	// A canceled run keeps its single notification; the next refresh
	// picks up whatever was created.
	if res.Created > 0 && ctx.Err() == nil {
		_ = c.Refresh(ctx)
	}
	return res, firstErr
}

func importSummary(res ImportResult) string {
	msg := fmt.Sprintf("Imported %d events", res.Created)
	if res.Skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", res.Skipped)
	}
	if res.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", res.Failed)
	}
	return msg
}

// mutate runs one Idle -> Submitting -> Idle cycle around call.
func (c *Controller) mutate(ctx context.Context, action Action, okMsg, failMsg string, call func(context.Context) error) error {
	if !c.begin(action) {
		return ErrBusy
	}
	defer c.end(action)

	if err := call(ctx); err != nil {
		notify.Failure(c.notifier, failureMessage(failMsg, err))
		appLog.Info("mutation failed", "action", action, "kind", api.KindOf(err), "reason", api.Reason(err))
		return err
	}
	notify.Success(c.notifier, okMsg)

	// The mutation itself succeeded; a failed refetch has already been
	// reported by Refresh and is visible through the store's error flag.
	_ = c.Refresh(ctx)
	return nil
}

func (c *Controller) validate(f model.EventFields) error {
	if err := f.Validate(); err != nil {
		notify.Failure(c.notifier, MsgMissingFields)
		return err
	}
	return nil
}

// Dashboard derives the dashboard view from the cache at the current time.
func (c *Controller) Dashboard() view.DashboardView {
	d, _ := c.DashboardSnapshot()
	return d
}

// DashboardSnapshot returns the dashboard view together with the store
// snapshot it was derived from, so the loading and error flags match the
// events shown.
func (c *Controller) DashboardSnapshot() (view.DashboardView, store.Snapshot) {
	email, err := c.session.Email()
	if err != nil {
		appLog.Error("dashboard: reading session email failed", err)
	}
	snap := c.events.Snapshot()
	return view.Dashboard(snap.Events, c.now(), email), snap
}

// Now is the controller's clock.
func (c *Controller) Now() time.Time { return c.now() }

func failureMessage(generic string, err error) string {
	if reason := api.Reason(err); reason != "" {
		return generic + ": " + reason
	}
	return generic
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
