package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/expstack/expstack/internal/engine"
)

type HealthResponse struct {
	Status          string `json:"status"`
	TestsCount      int    `json:"tests_count"`
	EventsCount     int    `json:"events_count"`
	PersistFailures int64  `json:"persist_failures"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:          "ok",
		TestsCount:      len(s.engine.ListAll()),
		EventsCount:     s.engine.EventCount(),
		PersistFailures: s.engine.PersistFailures(),
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// AssignRequest asks for the caller's variant in a test.
type AssignRequest struct {
	TestID string `json:"test"`
	UserID string `json:"user"`
}

// AssignResponse carries the sticky variant and its config payload.
// Variant is empty when no experiment applies (test unknown, paused, or
// completed).
type AssignResponse struct {
	Variant string         `json:"variant,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.TestID == "" || req.UserID == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	var resp AssignResponse
	if variantID, ok := s.engine.GetOrAssign(req.TestID, req.UserID); ok {
		resp.Variant = variantID
		if config, ok := s.engine.VariantConfig(req.TestID, variantID); ok {
			resp.Config = config
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// TrackRequest is an incoming beacon event.
type TrackRequest struct {
	TestID    string         `json:"t"`
	VariantID string         `json:"v"`
	UserID    string         `json:"uid"`
	EventType string         `json:"e"`
	Data      map[string]any `json:"data,omitempty"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.TestID == "" || req.UserID == "" || req.VariantID == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	err := s.engine.Record(req.TestID, req.VariantID, req.UserID, engine.EventType(req.EventType), req.Data)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, engine.ErrNotFound):
		http.Error(w, "Test not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrUnknownEventType), errors.Is(err, engine.ErrUnknownVariant):
		http.Error(w, "Invalid event", http.StatusBadRequest)
	case errors.Is(err, engine.ErrTestNotRunning):
		http.Error(w, "Test not running", http.StatusConflict)
	default:
		http.Error(w, "Failed to record event", http.StatusInternalServerError)
	}
}

// TestSummary is the minimal test data exposed without a token.
type TestSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	TargetMetric string `json:"target_metric"`
	Variants     int    `json:"variants"`
}

func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tests := s.engine.ListAll()
	if r.URL.Query().Get("active") == "true" {
		tests = s.engine.ListActive()
	}

	// Return empty array instead of null
	response := []TestSummary{}
	for _, t := range tests {
		response = append(response, TestSummary{
			ID:           t.ID,
			Name:         t.Name,
			Status:       string(t.Status),
			TargetMetric: string(t.TargetMetric),
			Variants:     len(t.Variants),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	testID := strings.TrimPrefix(r.URL.Path, "/api/results/")
	if testID == "" {
		http.Error(w, "test id required", http.StatusBadRequest)
		return
	}

	// Interim snapshot; the stored test is only mutated by StopTest.
	results, err := s.engine.ComputeResults(testID)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			http.Error(w, "Test not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to compute results", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blob, err := s.engine.ExportTestData(r.URL.Query().Get("test"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			http.Error(w, "Test not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(blob))
}
