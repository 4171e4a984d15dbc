package engine

import (
	"time"

	"github.com/expstack/expstack/internal/alloc"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// TargetMetric is the single metric a test optimizes for when a winner is
// selected.
type TargetMetric string

const (
	MetricFeatureEngagement TargetMetric = "feature_engagement"
	MetricContextAccuracy   TargetMetric = "context_accuracy"
	MetricUserSatisfaction  TargetMetric = "user_satisfaction"
	MetricSessionDuration   TargetMetric = "session_duration"
)

type EventType string

const (
	EventVariantAssigned    EventType = "variant_assigned"
	EventFeatureInteraction EventType = "feature_interaction"
	EventContextOverride    EventType = "context_override"
	EventSessionCompleted   EventType = "session_completed"
	EventConversion         EventType = "conversion"
	EventErrorOccurred      EventType = "error_occurred"
)

// ValidEventType reports whether t is one of the known event types.
func ValidEventType(t EventType) bool {
	switch t {
	case EventVariantAssigned, EventFeatureInteraction, EventContextOverride,
		EventSessionCompleted, EventConversion, EventErrorOccurred:
		return true
	}
	return false
}

// Allocation configures how a test buckets users into variants.
type Allocation struct {
	Strategy alloc.Strategy `json:"strategy"`
	Seed     string         `json:"seed,omitempty"`
}

// Variant is one arm of a test. Config is an opaque payload; only the
// config projector interprets it.
type Variant struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Weight float64        `json:"weight"`
	Config map[string]any `json:"config,omitempty"`
}

// Test is the registry entry for one experiment. The variant set is
// immutable once the test leaves draft; weights are validated at creation
// and never re-checked.
type Test struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Status        Status       `json:"status"`
	StartDate     *time.Time   `json:"start_date,omitempty"`
	EndDate       *time.Time   `json:"end_date,omitempty"`
	TargetMetric  TargetMetric `json:"target_metric"`
	Variants      []Variant    `json:"variants"`
	Allocation    Allocation   `json:"allocation"`
	MinSampleSize int          `json:"min_sample_size,omitempty"`
	Results       *Results     `json:"results,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Assignment is the sticky binding of a user to a variant for one test.
// Never mutated after creation; removed only by Wipe.
type Assignment struct {
	UserID     string    `json:"user_id"`
	TestID     string    `json:"test_id"`
	VariantID  string    `json:"variant_id"`
	AssignedAt time.Time `json:"assigned_at"`
	SessionID  string    `json:"session_id"`
}

// Event is one entry in the bounded experiment log. Timestamp is wall
// clock in milliseconds.
type Event struct {
	TestID    string         `json:"test_id"`
	VariantID string         `json:"variant_id"`
	UserID    string         `json:"user_id"`
	Type      EventType      `json:"event_type"`
	Data      map[string]any `json:"event_data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// RawCounts are the per-variant event tallies results derive from.
type RawCounts struct {
	FeatureClicks      int `json:"feature_clicks"`
	ContextOverrides   int `json:"context_overrides"`
	SessionCompletions int `json:"session_completions"`
	Errors             int `json:"errors"`
}

// Metrics are the derived per-variant scores. Engagement and conversion
// come from the event log; the rest are supplied by an external analytics
// collaborator and default to 0 without one.
type Metrics struct {
	FeatureEngagement float64 `json:"feature_engagement"`
	ContextAccuracy   float64 `json:"context_accuracy"`
	UserSatisfaction  float64 `json:"user_satisfaction"`
	SessionDuration   float64 `json:"session_duration"`
	ConversionRate    float64 `json:"conversion_rate"`
}

// VariantResults holds one variant's slice of a results snapshot.
type VariantResults struct {
	Participants int       `json:"participants"`
	Metrics      Metrics   `json:"metrics"`
	Counts       RawCounts `json:"counts"`
}

// Results is an immutable aggregate snapshot, computed wholesale on stop
// and on demand for interim reporting.
type Results struct {
	TotalParticipants       int                        `json:"total_participants"`
	Variants                map[string]*VariantResults `json:"variant_results"`
	StatisticalSignificance float64                    `json:"statistical_significance"`
	Winner                  string                     `json:"winner,omitempty"`
	ConfidenceInterval      [2]float64                 `json:"confidence_interval"`
	LastUpdated             time.Time                  `json:"last_updated"`
}

// ExternalMetrics carries the analytics-collaborator scores for one
// variant.
type ExternalMetrics struct {
	ContextAccuracy  float64
	UserSatisfaction float64
	SessionDuration  float64
}

// MetricsSource is the optional analytics collaborator. The aggregator
// asks it for the metrics the event log cannot derive.
type MetricsSource interface {
	VariantMetrics(testID, variantID string) (ExternalMetrics, bool)
}
