package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/expstack/expstack/internal/engine"
	"github.com/expstack/expstack/internal/server"
	"github.com/expstack/expstack/internal/storage"
)

func newTestServer(t *testing.T) (*server.Server, *engine.Engine) {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(context.Background(), storage.NewMemoryKV(), engine.WithLogger(quiet))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	return server.New(eng, 0, ""), eng
}

func runningTest(t *testing.T, eng *engine.Engine, name string) string {
	t.Helper()

	id, err := eng.CreateTest(engine.TestDef{
		Name:         name,
		TargetMetric: engine.MetricFeatureEngagement,
		Variants: []engine.Variant{
			{ID: "control", Name: "Control", Weight: 50, Config: map[string]any{"maxFeatures": 3}},
			{ID: "treatment", Name: "Treatment", Weight: 50},
		},
		Allocation: engine.Allocation{Strategy: "hash_based", Seed: "srv"},
	})
	if err != nil {
		t.Fatalf("failed to create test: %v", err)
	}
	if err := eng.StartTest(id); err != nil {
		t.Fatalf("failed to start test: %v", err)
	}
	return id
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, eng := newTestServer(t)
	runningTest(t, eng, "health")

	w := doJSON(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}

	var health server.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid health JSON: %v", err)
	}
	if health.Status != "ok" || health.TestsCount != 1 {
		t.Errorf("health: got %+v", health)
	}
}

func TestAssignEndpoint(t *testing.T) {
	srv, eng := newTestServer(t)
	id := runningTest(t, eng, "assign")

	w := doJSON(t, srv.Handler(), http.MethodPost, "/assign", `{"test":"`+id+`","user":"alice"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}

	var resp server.AssignResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid assign JSON: %v", err)
	}
	if resp.Variant != "control" && resp.Variant != "treatment" {
		t.Fatalf("variant: got %q", resp.Variant)
	}
	if resp.Variant == "control" && resp.Config["maxFeatures"] != float64(3) {
		t.Errorf("config: got %v, want maxFeatures 3", resp.Config)
	}

	// Same user gets the same variant back.
	again := doJSON(t, srv.Handler(), http.MethodPost, "/assign", `{"test":"`+id+`","user":"alice"}`)
	var second server.AssignResponse
	json.Unmarshal(again.Body.Bytes(), &second)
	if second.Variant != resp.Variant {
		t.Errorf("assignment not sticky: %q then %q", resp.Variant, second.Variant)
	}
}

func TestAssignEndpoint_NoExperiment(t *testing.T) {
	srv, _ := newTestServer(t)

	// Unknown test is not an error for the caller; it just means no
	// experiment applies.
	w := doJSON(t, srv.Handler(), http.MethodPost, "/assign", `{"test":"nope","user":"alice"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var resp server.AssignResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Variant != "" {
		t.Errorf("variant: got %q, want empty", resp.Variant)
	}
}

func TestAssignEndpoint_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	if w := doJSON(t, srv.Handler(), http.MethodGet, "/assign", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: got %d, want 405", w.Code)
	}
	if w := doJSON(t, srv.Handler(), http.MethodPost, "/assign", `{bad json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: got %d, want 400", w.Code)
	}
	if w := doJSON(t, srv.Handler(), http.MethodPost, "/assign", `{"test":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing user: got %d, want 400", w.Code)
	}
}

func TestTrackEndpoint(t *testing.T) {
	srv, eng := newTestServer(t)
	id := runningTest(t, eng, "track")

	body := `{"t":"` + id + `","v":"control","uid":"alice","e":"feature_interaction"}`
	if w := doJSON(t, srv.Handler(), http.MethodPost, "/t", body); w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", w.Code)
	}
	if got := eng.EventCount(); got != 1 {
		t.Errorf("event count: got %d, want 1", got)
	}
}

func TestTrackEndpoint_ErrorMapping(t *testing.T) {
	srv, eng := newTestServer(t)
	id := runningTest(t, eng, "track-errors")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown test", `{"t":"nope","v":"control","uid":"u","e":"feature_interaction"}`, http.StatusNotFound},
		{"unknown variant", `{"t":"` + id + `","v":"nope","uid":"u","e":"feature_interaction"}`, http.StatusBadRequest},
		{"unknown event type", `{"t":"` + id + `","v":"control","uid":"u","e":"page_viewed"}`, http.StatusBadRequest},
		{"missing fields", `{"t":"` + id + `"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doJSON(t, srv.Handler(), http.MethodPost, "/t", tc.body); w.Code != tc.want {
				t.Errorf("got %d, want %d", w.Code, tc.want)
			}
		})
	}

	// Beacons for a stopped test are rejected with a conflict.
	if err := eng.StopTest(id); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	body := `{"t":"` + id + `","v":"control","uid":"u","e":"feature_interaction"}`
	if w := doJSON(t, srv.Handler(), http.MethodPost, "/t", body); w.Code != http.StatusConflict {
		t.Errorf("stopped test: got %d, want 409", w.Code)
	}
}

func TestTestsEndpoint(t *testing.T) {
	srv, eng := newTestServer(t)
	running := runningTest(t, eng, "running")
	if _, err := eng.CreateTest(engine.TestDef{
		Name:         "draft",
		TargetMetric: engine.MetricFeatureEngagement,
		Variants: []engine.Variant{
			{ID: "a", Weight: 50},
			{ID: "b", Weight: 50},
		},
	}); err != nil {
		t.Fatalf("failed to create draft: %v", err)
	}

	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/tests", "")
	var all []server.TestSummary
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all tests: got %d, want 2", len(all))
	}

	w = doJSON(t, srv.Handler(), http.MethodGet, "/api/tests?active=true", "")
	var active []server.TestSummary
	json.Unmarshal(w.Body.Bytes(), &active)
	if len(active) != 1 || active[0].ID != running {
		t.Errorf("active tests: got %+v", active)
	}
}

func TestResultsEndpoint_RequiresToken(t *testing.T) {
	srv, eng := newTestServer(t)
	id := runningTest(t, eng, "guarded")

	if w := doJSON(t, srv.Handler(), http.MethodGet, "/api/results/"+id, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", w.Code)
	}
	if w := doJSON(t, srv.Handler(), http.MethodGet, "/api/results/"+id+"?token=wrong", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: got %d, want 401", w.Code)
	}
}

func TestResultsEndpoint_TokenFlow(t *testing.T) {
	srv, eng := newTestServer(t)
	id := runningTest(t, eng, "results")
	if _, ok := eng.GetOrAssign(id, "alice"); !ok {
		t.Fatal("failed to assign")
	}

	// A valid query token sets the auth cookie and redirects.
	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/results/"+id+"?token="+srv.Token(), "")
	if w.Code != http.StatusFound {
		t.Fatalf("token redirect: got %d, want 302", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no auth cookie set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/results/"+id, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with cookie: got %d, want 200", rec.Code)
	}

	var results engine.Results
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("invalid results JSON: %v", err)
	}
	if results.TotalParticipants != 1 {
		t.Errorf("participants: got %d, want 1", results.TotalParticipants)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, eng := newTestServer(t)
	id := runningTest(t, eng, "export")
	eng.GetOrAssign(id, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/export?test="+id, nil)
	req.AddCookie(&http.Cookie{Name: "xs_token", Value: srv.Token()})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid export JSON: %v", err)
	}
	for _, key := range []string{"tests", "assignments", "events", "exported_at"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("export missing %q", key)
		}
	}
}
