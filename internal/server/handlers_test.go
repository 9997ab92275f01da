package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jugalmahida/prodevscore/internal/api"
	"github.com/jugalmahida/prodevscore/internal/config"
	"github.com/jugalmahida/prodevscore/internal/session"
	"github.com/jugalmahida/prodevscore/internal/storage"
)

type wireFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// testEnv wires a dashboard server to a fake analysis backend and a
// scripted websocket event stream.
type testEnv struct {
	t       *testing.T
	front   *httptest.Server
	frames  chan wireFrame
	started chan api.StartReviewPayload
	cookies []*http.Cookie
}

func backendEnvelope(w http.ResponseWriter, status int, success bool, message string, data any) {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.Response{Success: success, Message: message, Data: raw})
}

func testContributors() []api.Contributor {
	return []api.Contributor{
		{ID: 1, Login: "alice", Contributions: 42},
		{ID: 2, Login: "bob", Contributions: 7},
	}
}

func testUser() api.User {
	return api.User{
		PersonalDetails: api.UserDetails{Email: "a@b.c", IsVerified: 1},
		Subscription: api.Subscription{
			CurrentUsage: api.CurrentUsage{TotalCommits: 3},
			CurrentPlan: api.Plan{
				Tier: api.TierFree,
				Limits: api.PlanLimits{
					Repositories:          1,
					Contributors:          2,
					CommitsPerContributor: 3,
					TotalCommitReviews:    10,
				},
			},
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		t:       t,
		frames:  make(chan wireFrame, 16),
		started: make(chan api.StartReviewPayload, 1),
	}

	backendMux := http.NewServeMux()
	backendMux.HandleFunc("/user/login", func(w http.ResponseWriter, r *http.Request) {
		backendEnvelope(w, http.StatusOK, true, "", map[string]any{
			"user":   testUser(),
			"tokens": api.Tokens{AccessToken: "acc-1", RefreshToken: "ref-1"},
		})
	})
	backendMux.HandleFunc("/user/me", func(w http.ResponseWriter, r *http.Request) {
		backendEnvelope(w, http.StatusOK, true, "", map[string]any{"user": testUser()})
	})
	backendMux.HandleFunc("/review/getContributors", func(w http.ResponseWriter, r *http.Request) {
		backendEnvelope(w, http.StatusOK, true, "", testContributors())
	})
	backendMux.HandleFunc("/review/getContributorData", func(w http.ResponseWriter, r *http.Request) {
		var p api.ContributorDetailPayload
		json.NewDecoder(r.Body).Decode(&p)
		backendEnvelope(w, http.StatusOK, true, "", api.ContributorDetail{
			Profile: api.ContributorProfile{Login: p.Login, Name: p.Login},
		})
	})
	backendMux.HandleFunc("/review/analysis", func(w http.ResponseWriter, r *http.Request) {
		var p api.StartReviewPayload
		json.NewDecoder(r.Body).Decode(&p)
		env.started <- p
		backendEnvelope(w, http.StatusOK, true, "Review started", nil)
	})
	backend := httptest.NewServer(backendMux)
	t.Cleanup(backend.Close)

	events := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		ack := wireFrame{Event: "connection", Data: map[string]string{"socketId": "sock-1"}}
		if err := wsjson.Write(ctx, conn, ack); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-env.frames:
				if err := wsjson.Write(ctx, conn, f); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(events.Close)

	cfg := config.DefaultConfig()
	cfg.BackendURL = backend.URL
	cfg.BackendWSURL = "ws" + strings.TrimPrefix(events.URL, "http")

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open db failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := NewServer(db, cfg)
	t.Cleanup(func() { srv.Stop() })

	env.front = httptest.NewServer(srv.Handler())
	t.Cleanup(env.front.Close)

	// Every request carries the access cookie; session cookies are
	// captured from responses as they appear.
	env.cookies = []*http.Cookie{{Name: accessCookie, Value: "acc-1"}}
	return env
}

func (env *testEnv) request(method, path string, body any) (*http.Response, []byte) {
	env.t.Helper()

	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, env.front.URL+path, rd)
	if err != nil {
		env.t.Fatalf("Build request failed: %v", err)
	}
	for _, c := range env.cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			env.cookies = append(env.cookies, &http.Cookie{Name: sessionCookie, Value: c.Value})
		}
	}

	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func decodeView(t *testing.T, data []byte) session.View {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("Decode envelope failed: %v (%s)", err, data)
	}
	var view session.View
	if err := json.Unmarshal(envelope.Data, &view); err != nil {
		t.Fatalf("Decode view failed: %v (%s)", err, envelope.Data)
	}
	return view
}

// waitForStartable polls the session snapshot until the start control
// unlocks (the event channel ack lands asynchronously).
func (env *testEnv) waitForStartable() session.View {
	env.t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, body := env.request(http.MethodGet, "/api/review/session", nil)
		view := decodeView(env.t, body)
		if view.CanStart {
			return view
		}
		time.Sleep(20 * time.Millisecond)
	}
	env.t.Fatal("Timed out waiting for the start control to unlock")
	return session.View{}
}

func TestReviewFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	// Submit the URL; the contributor list comes back with the snapshot.
	resp, body := env.request(http.MethodPost, "/api/review/contributors",
		api.GetContributorsPayload{GithubURL: "https://github.com/acme/widgets"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("contributors: expected 200, got %d (%s)", resp.StatusCode, body)
	}
	view := decodeView(t, body)
	if view.Status != session.StatusAwaitingSelection {
		t.Fatalf("Expected awaiting_selection, got %s", view.Status)
	}
	if len(view.Contributors) != 2 {
		t.Fatalf("Expected 2 contributors, got %d", len(view.Contributors))
	}

	// Pick a contributor; the detail arrives inline.
	resp, body = env.request(http.MethodPost, "/api/review/select", map[string]string{"login": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select: expected 200, got %d (%s)", resp.StatusCode, body)
	}
	view = decodeView(t, body)
	if view.Status != session.StatusConfiguring {
		t.Fatalf("Expected configuring, got %s", view.Status)
	}
	if view.Detail == nil || view.Detail.Profile.Login != "alice" {
		t.Fatalf("Expected alice detail, got %+v", view.Detail)
	}

	view = env.waitForStartable()
	if view.ConnectionID == "" {
		t.Fatal("Expected a connection id once startable")
	}

	// Start the review.
	resp, body = env.request(http.MethodPost, "/api/review/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected 200, got %d (%s)", resp.StatusCode, body)
	}
	view = decodeView(t, body)
	if view.Status != session.StatusReviewing {
		t.Fatalf("Expected reviewing, got %s", view.Status)
	}

	select {
	case payload := <-env.started:
		if payload.Login != "alice" || payload.TopCommits != 3 || payload.SocketID == "" {
			t.Fatalf("Unexpected start payload: %+v", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Backend never received the start request")
	}

	// Script the event stream to completion.
	env.frames <- wireFrame{Event: "reviewStarted", Data: map[string]any{"total": 3}}
	env.frames <- wireFrame{Event: "reviewProgress", Data: map[string]any{"reviewed": 1, "total": 3, "percentage": 33.3}}
	env.frames <- wireFrame{Event: "reviewDone", Data: map[string]any{
		"success": true,
		"reviewResults": []map[string]any{
			{"sha": "abc1234", "review": "solid", "score": 85.0},
		},
		"averageScore":  85.0,
		"totalReviewed": 3, "validScoresCount": 1,
	}}

	// The session lands in completed with the results attached.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body = env.request(http.MethodGet, "/api/review/session", nil)
		view = decodeView(t, body)
		if view.Status == session.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for completion, status %s", view.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if view.FinalResults == nil || view.FinalResults.TotalReviewed != 3 {
		t.Fatalf("Expected final results, got %+v", view.FinalResults)
	}
	if view.Progress != nil {
		t.Error("Progress must clear on completion")
	}

	// The successful review lands in local history.
	deadline = time.Now().Add(5 * time.Second)
	for {
		resp, body = env.request(http.MethodGet, "/api/history", nil)
		var envelope struct {
			Count int `json:"count"`
		}
		json.Unmarshal(body, &envelope)
		if envelope.Count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for history, got %s", body)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Review another: back to configuring with the list intact.
	_, body = env.request(http.MethodPost, "/api/review/another", nil)
	view = decodeView(t, body)
	if view.Status != session.StatusConfiguring {
		t.Errorf("Expected configuring, got %s", view.Status)
	}
	if len(view.Contributors) != 2 || view.Selected != nil {
		t.Error("Expected contributors kept and selection cleared")
	}
}

func TestContributorsRejectsBlankURL(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(http.MethodPost, "/api/review/contributors",
		api.GetContributorsPayload{GithubURL: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d (%s)", resp.StatusCode, body)
	}

	// No flow was started.
	_, body = env.request(http.MethodGet, "/api/review/session", nil)
	if view := decodeView(t, body); view.Status != session.StatusIdle {
		t.Errorf("Expected idle, got %s", view.Status)
	}
}

func TestStartBeforeConfiguredFails(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(http.MethodPost, "/api/review/start", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestSelectUnknownContributor(t *testing.T) {
	env := newTestEnv(t)

	env.request(http.MethodPost, "/api/review/contributors",
		api.GetContributorsPayload{GithubURL: "https://github.com/acme/widgets"})

	resp, _ := env.request(http.MethodPost, "/api/review/select", map[string]string{"login": "mallory"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown contributor, got %d", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.request(http.MethodPost, "/api/review/contributors",
		api.GetContributorsPayload{GithubURL: "https://github.com/acme/widgets"})

	_, body := env.request(http.MethodPost, "/api/review/search", map[string]string{"term": "BO"})
	var envelope struct {
		Count int               `json:"count"`
		Data  []api.Contributor `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if envelope.Count != 1 || envelope.Data[0].Login != "bob" {
		t.Errorf("Expected [bob], got %+v", envelope.Data)
	}
}

func TestEventStreamRelaysProgress(t *testing.T) {
	env := newTestEnv(t)

	env.request(http.MethodPost, "/api/review/contributors",
		api.GetContributorsPayload{GithubURL: "https://github.com/acme/widgets"})
	env.request(http.MethodPost, "/api/review/select", map[string]string{"login": "alice"})
	env.waitForStartable()

	req, _ := http.NewRequest(http.MethodGet, env.front.URL+"/api/review/events", nil)
	for _, c := range env.cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("Expected ndjson, got %s", ct)
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	readFrame := func() streamFrame {
		t.Helper()
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("Stream closed early")
			}
			var f streamFrame
			if err := json.Unmarshal([]byte(line), &f); err != nil {
				t.Fatalf("Bad stream line %q: %v", line, err)
			}
			return f
		case <-time.After(5 * time.Second):
			t.Fatal("Timed out waiting for stream line")
			return streamFrame{}
		}
	}

	// The first line is always the state snapshot.
	if f := readFrame(); f.Event != "session" {
		t.Fatalf("Expected session snapshot first, got %q", f.Event)
	}

	env.request(http.MethodPost, "/api/review/start", nil)
	<-env.started

	env.frames <- wireFrame{Event: "reviewProgress", Data: map[string]any{"reviewed": 1, "total": 3, "percentage": 33.3}}
	env.frames <- wireFrame{Event: "reviewDone", Data: map[string]any{
		"success": true, "reviewResults": []any{}, "totalReviewed": 3, "validScoresCount": 0,
	}}

	sawProgress, sawDone := false, false
	for !sawDone {
		switch f := readFrame(); f.Event {
		case "reviewProgress":
			sawProgress = true
		case "reviewDone":
			sawDone = true
		}
	}
	if !sawProgress {
		t.Error("Expected a progress frame before done")
	}
}

func TestSessionDeleteAbandonsFlow(t *testing.T) {
	env := newTestEnv(t)

	env.request(http.MethodPost, "/api/review/contributors",
		api.GetContributorsPayload{GithubURL: "https://github.com/acme/widgets"})

	resp, _ := env.request(http.MethodDelete, "/api/review/session", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}

	// The old cookie now resolves to a fresh idle session.
	_, body := env.request(http.MethodGet, "/api/review/session", nil)
	if view := decodeView(t, body); view.Status != session.StatusIdle {
		t.Errorf("Expected a fresh idle session, got %s", view.Status)
	}
}

func TestLoginSetsCookies(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(http.MethodPost, "/api/user/login",
		api.LoginPayload{Email: "a@b.c", Password: "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", resp.StatusCode, body)
	}

	var access, refresh string
	for _, c := range resp.Cookies() {
		switch c.Name {
		case accessCookie:
			access = c.Value
			if !c.HttpOnly {
				t.Error("Access cookie must be HttpOnly")
			}
		case refreshCookie:
			refresh = c.Value
		}
	}
	if access != "acc-1" || refresh != "ref-1" {
		t.Errorf("Expected credential cookies, got access=%q refresh=%q", access, refresh)
	}
}

func TestLoginUnverifiedSurfacesCode(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(api.Response{
			Success: false,
			Message: "Please verify your account",
			Details: json.RawMessage(`{"code":"ACCOUNT_UNVERIFIED"}`),
		})
	}))
	defer backend.Close()

	cfg := config.DefaultConfig()
	cfg.BackendURL = backend.URL
	srv := NewServer(nil, cfg)
	defer srv.Stop()
	front := httptest.NewServer(srv.Handler())
	defer front.Close()

	resp, err := http.Post(front.URL+"/api/user/login", "application/json",
		strings.NewReader(`{"email":"a@b.c","password":"pw"}`))
	if err != nil {
		t.Fatalf("Login request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", resp.StatusCode)
	}
	var envelope struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&envelope)
	if envelope.Code != api.CodeUnverified {
		t.Errorf("Expected structured code, got %q", envelope.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	cfg := config.DefaultConfig()
	cfg.BackendURL = backend.URL
	srv := NewServer(nil, cfg)
	defer srv.Stop()
	front := httptest.NewServer(srv.Handler())
	defer front.Close()

	req, _ := http.NewRequest(http.MethodPost, front.URL+"/api/user/logout", nil)
	req.AddCookie(&http.Cookie{Name: accessCookie, Value: "acc"})
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: "ref"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}
	cleared := 0
	for _, c := range resp.Cookies() {
		if (c.Name == accessCookie || c.Name == refreshCookie) && c.MaxAge < 0 {
			cleared++
		}
	}
	if cleared != 2 {
		t.Errorf("Expected both credential cookies cleared, got %d", cleared)
	}
}

func TestUsageEndpoint(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.request(http.MethodGet, "/api/user/usage", nil)
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			CommitsPercent      int   `json:"commitsPercent"`
			AllowedCommitCounts []int `json:"allowedCommitCounts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("Decode failed: %v (%s)", err, body)
	}
	if envelope.Data.CommitsPercent != 30 {
		t.Errorf("Expected 30%% commits, got %d", envelope.Data.CommitsPercent)
	}
	if len(envelope.Data.AllowedCommitCounts) != 1 || envelope.Data.AllowedCommitCounts[0] != 3 {
		t.Errorf("Free tier permits only 3, got %v", envelope.Data.AllowedCommitCounts)
	}
}

func TestCommitCountClampsOverPlan(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.request(http.MethodPost, "/api/review/commit-count", map[string]int{"count": 10})
	view := decodeView(t, body)
	if view.CommitCount != 3 {
		t.Errorf("Free plan must clamp to 3, got %d", view.CommitCount)
	}
}

func TestHistoryByID(t *testing.T) {
	env := newTestEnv(t)

	// Missing id is a 404, bad id a 400.
	resp, _ := env.request(http.MethodGet, "/api/history?id=999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
	resp, _ = env.request(http.MethodGet, "/api/history?id=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var health struct {
		Healthy bool   `json:"healthy"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !health.Healthy {
		t.Error("Expected healthy")
	}
	if health.Version == "" {
		t.Error("Expected a version string")
	}
}

func TestLoginPageRedirectsAuthenticated(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodGet, env.front.URL+"/login", nil)
	req.AddCookie(&http.Cookie{Name: accessCookie, Value: "acc"})
	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Expected redirect to /, got %s", loc)
	}
}
