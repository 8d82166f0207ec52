package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bowerhall/moviegraph/internal/engine"
	"github.com/bowerhall/moviegraph/internal/graph"
	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/schema"
	"github.com/bowerhall/moviegraph/internal/session"
)

type stubTranslator struct{}

func (stubTranslator) Strategy() string { return "stub" }

func (stubTranslator) Translate(ctx context.Context, question string, sc *schema.Descriptor, turns []history.Turn) (graph.Query, error) {
	return graph.Query{Text: "MATCH (m:Movie) RETURN m.rating AS rating"}, nil
}

type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, q graph.Query) ([]graph.Record, error) {
	return []graph.Record{{Keys: []string{"rating"}, Values: []graph.Value{graph.Scalar(8.8)}}}, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(ctx context.Context, question, resultsText string, turns []history.Turn) (string, error) {
	return "It's rated 8.8.", nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubArchive struct{ healthy bool }

func (a stubArchive) Healthy(ctx context.Context) bool { return a.healthy }

type stubUsage struct{}

func (stubUsage) Usage() (int, int) { return 10, 100 }

func newTestServer(t *testing.T, store Pinger) (*Server, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry(func(profile, id string) (*engine.Engine, error) {
		return engine.New(engine.Config{
			Profile:     profile,
			Translator:  stubTranslator{},
			Executor:    stubExecutor{},
			Synthesizer: stubSynth{},
		}, history.New(id)), nil
	}, time.Minute)

	return NewServer(Deps{
		Registry: reg,
		Profiles: []string{"deepseek", "gemini"},
		Store:    store,
		Budget:   stubUsage{},
	}), reg
}

func postChat(t *testing.T, h http.Handler, body interface{}) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(data))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp chatResponse
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return w, resp
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestChatAssignsSession(t *testing.T) {
	srv, reg := newTestServer(t, nil)

	w, resp := postChat(t, srv.Router(), map[string]string{
		"question": "What is the rating of Inception?",
		"model":    "deepseek",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Answer != "It's rated 8.8." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", reg.Len())
	}
}

func TestChatReusesSession(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	h := srv.Router()

	_, first := postChat(t, h, map[string]string{"question": "q1", "model": "gemini"})
	postChat(t, h, map[string]string{"question": "q2", "model": "gemini", "session_id": first.SessionID})

	sess, _ := reg.Get("gemini", first.SessionID)
	if n := sess.Engine.History().Len(); n != 6 {
		t.Errorf("expected 6 turns across two questions, got %d", n)
	}
}

func TestChatDefaultsToFirstProfile(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, resp := postChat(t, srv.Router(), map[string]string{"question": "q"})
	if resp.Model != "deepseek" {
		t.Errorf("expected default profile deepseek, got %q", resp.Model)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	cases := map[string]interface{}{
		"empty question": map[string]string{"question": "   ", "model": "deepseek"},
		"unknown model":  map[string]string{"question": "q", "model": "gpt-9"},
		"unknown field":  map[string]string{"question": "q", "temperature": "hot"},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w, _ := postChat(t, h, body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestChatBusySession(t *testing.T) {
	srv, reg := newTestServer(t, nil)

	sess, _ := reg.Get("deepseek", "busy")
	sess.TryAcquire()
	defer sess.Release()

	w, resp := postChat(t, srv.Router(), map[string]string{"question": "q", "model": "deepseek", "session_id": "busy"})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if resp.Answer != BusyReply {
		t.Errorf("expected busy reply, got %q", resp.Answer)
	}
	if sess.Engine.History().Len() != 0 {
		t.Error("busy session should not process the question")
	}
}

func TestEndSession(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	h := srv.Router()

	reg.Get("deepseek", "abc")
	reg.Get("gemini", "abc")

	req := httptest.NewRequest(http.MethodDelete, "/sessions/abc", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if reg.Len() != 0 {
		t.Errorf("expected all sessions ended, %d left", reg.Len())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/abc", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown session, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		store  Pinger
		status int
		want   string
	}{
		{"healthy", stubPinger{}, http.StatusOK, "healthy"},
		{"graph down", stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.store)

			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}

			var body map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body["status"] != tt.want {
				t.Errorf("Expected status %q, got %v", tt.want, body["status"])
			}
			if _, ok := body["budget"]; !ok {
				t.Error("expected budget usage in health output")
			}
		})
	}
}

func TestHealthReportsArchive(t *testing.T) {
	tests := []struct {
		name    string
		archive stubArchive
		status  int
		check   string
	}{
		{"archive up", stubArchive{healthy: true}, http.StatusOK, "ok"},
		{"archive down", stubArchive{healthy: false}, http.StatusServiceUnavailable, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, stubPinger{})
			srv.archive = tt.archive

			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}

			var body struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Checks["archive"] != tt.check {
				t.Errorf("Expected archive check %q, got %q", tt.check, body.Checks["archive"])
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
