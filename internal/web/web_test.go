package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"eventhub/internal/api"
	"eventhub/internal/app"
	"eventhub/internal/config"
	"eventhub/internal/fakeapi"
	"eventhub/internal/metrics"
	"eventhub/internal/model"
	"eventhub/internal/notify"
	"eventhub/internal/session"
	"eventhub/internal/store"
)

type testEnv struct {
	srv   *httptest.Server
	fake  *fakeapi.Server
	queue *notify.Queue
	cfg   *config.Config
}

func newEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	fake := fakeapi.New("secret", fakeapi.WithHashCost(bcrypt.MinCost))
	remote := httptest.NewServer(fake.Handler())
	t.Cleanup(remote.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = remote.URL + "/api"
	if mutate != nil {
		mutate(cfg)
	}

	reg := metrics.New()
	sess := session.New(session.NewMemoryStorage())
	queue := notify.NewQueue(0)
	ctrl := app.New(app.Options{
		Gateway:  api.New(api.Options{BaseURL: cfg.API.BaseURL, AuthScheme: cfg.API.AuthScheme, Tokens: sess, Metrics: reg}),
		Session:  sess,
		Events:   store.New(),
		Notifier: notify.Counting{Next: queue, Metrics: reg},
		Metrics:  reg,
	})
	s := NewServer(cfg, Deps{Controller: ctrl, Queue: queue, Metrics: reg})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, fake: fake, queue: queue, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if e.cfg.BasicAuth != nil {
		req.SetBasicAuth(e.cfg.BasicAuth.Username, e.cfg.BasicAuth.Password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func eventBody(name string) map[string]string {
	return map[string]string{
		"name": name, "date": time.Now().AddDate(0, 0, 7).UTC().Format("2006-01-02"), "time": "18:00",
		"location": "Hall", "description": "desc", "category": "Music",
	}
}

func TestHealthAndStatic(t *testing.T) {
	e := newEnv(t, nil)
	if code, body := e.do(t, "GET", "/health", nil); code != 200 || string(body) != "OK" {
		t.Fatalf("health = %d %q", code, body)
	}
	code, body := e.do(t, "GET", "/", nil)
	if code != 200 || !strings.Contains(string(body), `data-ready`) {
		t.Fatalf("index = %d", code)
	}
	if code, _ := e.do(t, "GET", "/api/nope", nil); code != 404 {
		t.Fatalf("unknown api path = %d", code)
	}
}

func TestRoutesRequireSession(t *testing.T) {
	e := newEnv(t, nil)
	for _, r := range []struct{ method, path string }{
		{"GET", "/api/dashboard"},
		{"GET", "/api/events"},
		{"POST", "/api/events"},
		{"DELETE", "/api/events/x"},
		{"POST", "/api/refresh"},
		{"GET", "/calendar.ics"},
	} {
		if code, _ := e.do(t, r.method, r.path, nil); code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", r.method, r.path, code)
		}
	}
	code, body := e.do(t, "GET", "/api/session", nil)
	if code != 200 || !strings.Contains(string(body), `"signed_in":false`) {
		t.Fatalf("session = %d %s", code, body)
	}
}

func TestRegisterCreateDashboardFlow(t *testing.T) {
	e := newEnv(t, nil)

	code, _ := e.do(t, "POST", "/api/register", map[string]string{"username": "ana", "email": "ana@example.com", "password": "pw"})
	if code != http.StatusCreated {
		t.Fatalf("register = %d", code)
	}
	code, _ = e.do(t, "POST", "/api/register", map[string]string{"username": "ana", "email": "ana@example.com", "password": "pw"})
	if code != http.StatusConflict {
		t.Fatalf("duplicate register = %d", code)
	}

	code, body := e.do(t, "POST", "/api/events", eventBody("Jazz Night"))
	if code != http.StatusCreated {
		t.Fatalf("create = %d %s", code, body)
	}
	var created struct {
		Event model.Event `json:"event"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}

	incomplete := eventBody("No place")
	delete(incomplete, "location")
	if code, _ := e.do(t, "POST", "/api/events", incomplete); code != http.StatusBadRequest {
		t.Fatalf("incomplete create = %d", code)
	}

	code, body = e.do(t, "GET", "/api/dashboard", nil)
	if code != 200 {
		t.Fatalf("dashboard = %d", code)
	}
	var dash struct {
		Total    int           `json:"total"`
		Upcoming []model.Event `json:"upcoming"`
		Mine     []model.Event `json:"mine"`
	}
	if err := json.Unmarshal(body, &dash); err != nil {
		t.Fatal(err)
	}
	if dash.Total != 1 || len(dash.Upcoming) != 1 || len(dash.Mine) != 1 || dash.Mine[0].ID != created.Event.ID {
		t.Fatalf("dashboard = %s", body)
	}

	code, body = e.do(t, "GET", "/calendar.ics", nil)
	if code != 200 || !strings.Contains(string(body), "SUMMARY:Jazz Night") {
		t.Fatalf("calendar = %d\n%s", code, body)
	}

	code, body = e.do(t, "GET", "/api/notifications", nil)
	var n struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(body, &n); err != nil || code != 200 {
		t.Fatalf("notifications = %d %s", code, body)
	}
	var msgs []string
	for _, x := range n.Notifications {
		msgs = append(msgs, x.Message)
	}
	want := []string{app.MsgRegistered, app.MsgDuplicateEmail, app.MsgCreated, app.MsgMissingFields}
	if strings.Join(msgs, "|") != strings.Join(want, "|") {
		t.Fatalf("notifications = %v, want %v", msgs, want)
	}

	if code, _ := e.do(t, "DELETE", "/api/events/"+created.Event.ID, nil); code != 200 {
		t.Fatalf("delete = %d", code)
	}
	if code, _ := e.do(t, "GET", "/api/events/"+created.Event.ID, nil); code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", code)
	}

	if code, _ := e.do(t, "POST", "/api/logout", nil); code != 200 {
		t.Fatalf("logout = %d", code)
	}
	if code, _ := e.do(t, "GET", "/api/dashboard", nil); code != http.StatusUnauthorized {
		t.Fatalf("dashboard after logout = %d", code)
	}
}

func TestCategoryFilterAndRefresh(t *testing.T) {
	e := newEnv(t, nil)
	e.fake.Seed(fakeapi.SampleEvents(time.Now(), "seed@example.com")...)
	if code, _ := e.do(t, "POST", "/api/register", map[string]string{"username": "ana", "email": "ana@example.com", "password": "pw"}); code != 201 {
		t.Fatalf("register = %d", code)
	}
	if code, _ := e.do(t, "POST", "/api/refresh", nil); code != 200 {
		t.Fatalf("refresh = %d", code)
	}

	for _, path := range []string{"/api/events?category=Art", "/api/events?category=Art&remote=1"} {
		code, body := e.do(t, "GET", path, nil)
		var out struct {
			Events []model.Event `json:"events"`
		}
		if err := json.Unmarshal(body, &out); err != nil || code != 200 {
			t.Fatalf("%s = %d %s", path, code, body)
		}
		if len(out.Events) != 2 {
			t.Fatalf("%s returned %d events", path, len(out.Events))
		}
	}

	code, body := e.do(t, "GET", "/api/categories", nil)
	if code != 200 || !strings.Contains(string(body), "Food \\u0026 Drink") {
		t.Fatalf("categories = %d %s", code, body)
	}
}

func TestBasicAuth(t *testing.T) {
	e := newEnv(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	})

	resp, err := http.Get(e.srv.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("without credentials = %d", resp.StatusCode)
	}

	resp, err = http.Get(e.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("health = %d", resp.StatusCode)
	}

	if code, body := e.do(t, "GET", "/metrics", nil); code != 200 || !strings.Contains(string(body), "eventhub_cached_events") {
		t.Fatalf("metrics = %d", code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.ErrMissingFields, 400},
		{app.ErrBusy, 409},
		{api.NewError(api.OpRegister, api.KindDuplicateAccount, ""), 409},
		{api.NewError(api.OpLogin, api.KindInvalidCredentials, ""), 401},
		{api.NewError(api.OpCreateEvent, api.KindValidationFailed, ""), 422},
		{api.NewError(api.OpGetEvent, api.KindNotFound, ""), 404},
		{api.NewError(api.OpListEvents, api.KindUnknown, ""), 502},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
