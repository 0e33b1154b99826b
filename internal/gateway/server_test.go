package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kborowski/pivot/internal/config"
	"github.com/kborowski/pivot/internal/engine"
	"github.com/kborowski/pivot/internal/events"
	"github.com/kborowski/pivot/internal/inputs"
	"github.com/kborowski/pivot/internal/mode"
)

// fakeEngine satisfies ws.Engine without running a tick loop.
type fakeEngine struct {
	mu          sync.Mutex
	tokens      []inputs.Token
	switched    []string
	allowManual bool
	known       map[string]bool
	current     string
}

func (f *fakeEngine) SubmitToken(t inputs.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, t)
}

func (f *fakeEngine) RequestManualSwitch(target string) error {
	if !f.allowManual {
		return mode.ErrManualSwitchDisabled
	}
	if !f.known[target] {
		return mode.ErrUnknownMode
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switched = append(f.switched, target)
	f.current = target
	return nil
}

func (f *fakeEngine) ModeContext() engine.ModeContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return engine.ModeContext{Mode: f.current, DisplayName: f.current, Hertz: 1.0, EnteredAt: time.Now()}
}

func newTestServer(t *testing.T, allowManual bool) (*Server, *fakeEngine) {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	cfg := &config.Config{
		Version:     "v1.0.0",
		DefaultMode: "welcome",
		Modes: map[string]config.ModeConfig{
			"welcome":      {Name: "welcome", DisplayName: "Welcome", Hertz: 1.0},
			"conversation": {Name: "conversation", DisplayName: "Conversation", Hertz: 2.0},
		},
	}
	reg, err := mode.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	eng := &fakeEngine{
		allowManual: allowManual,
		known:       map[string]bool{"welcome": true, "conversation": true},
		current:     "welcome",
	}
	srv := NewServer(bus, eng, reg, nil, "localhost", 0)
	t.Cleanup(srv.hub.Close)
	return srv, eng
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(srv, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status %q, got %q", "ok", body["status"])
	}
}

func TestHandleMode(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(srv, http.MethodGet, "/api/mode", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["mode"] != "welcome" {
		t.Errorf("mode = %v, want welcome", body["mode"])
	}
}

func TestHandleSwitchMode(t *testing.T) {
	srv, eng := newTestServer(t, true)

	w := do(srv, http.MethodPost, "/api/mode/conversation", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(eng.switched) != 1 || eng.switched[0] != "conversation" {
		t.Errorf("switch not applied: %v", eng.switched)
	}
}

func TestHandleSwitchModeUnknown(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(srv, http.MethodPost, "/api/mode/bogus", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleSwitchModeDisabled(t *testing.T) {
	srv, _ := newTestServer(t, false)

	w := do(srv, http.MethodPost, "/api/mode/conversation", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHandleTokens(t *testing.T) {
	srv, eng := newTestServer(t, true)

	w := do(srv, http.MethodPost, "/api/tokens", `{"text": "hello there", "source": "asr"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if len(eng.tokens) != 1 || eng.tokens[0].Text != "hello there" || eng.tokens[0].Source != "asr" {
		t.Errorf("token not forwarded: %+v", eng.tokens)
	}
}

func TestHandleTokensRejectsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(srv, http.MethodPost, "/api/tokens", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleModes(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(srv, http.MethodGet, "/api/modes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("modes = %d, want 2", len(body))
	}
	for _, m := range body {
		if m["name"] == "welcome" && m["default"] != true {
			t.Errorf("welcome not marked default: %v", m)
		}
	}
}

func TestHandleTransitionsUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(srv, http.MethodGet, "/api/transitions", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestHandleEventsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(srv, http.MethodGet, "/api/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body []any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("expected no events, got %d", len(body))
	}
}
