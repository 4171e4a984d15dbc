// Package engine implements the experiment allocation and results core:
// test registry and lifecycle, sticky per-user variant assignment, a
// bounded event log, and statistically interpretable aggregate results.
//
// One Engine is constructed per process (or per test fixture) and passed
// by reference; there is no package-level instance.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expstack/expstack/internal/storage"
)

// Storage keys for the three top-level collections. Kept stable so data
// written by older processes keeps loading.
const (
	keyTests       = "ab_tests"
	keyAssignments = "ab_test_assignments"
	keyEvents      = "ab_test_events"
)

// DefaultMaxEvents bounds the event log. Drop-oldest eviction beyond the
// cap is a deliberate data-loss tradeoff for long-running tests.
const DefaultMaxEvents = 5000

// DefaultMinSampleSize is the per-variant participant floor below which
// the aggregator refuses to declare statistical significance.
const DefaultMinSampleSize = 50

// Engine is the experiment core. In-memory state is the source of truth;
// the KV collaborator only provides durability across restarts, written
// best-effort in the background.
type Engine struct {
	mu          sync.Mutex
	kv          storage.KV
	log         *slog.Logger
	tests       map[string]*Test
	assignments map[string][]*Assignment // userID -> assignments across tests
	events      []*Event
	maxEvents   int
	analytics   MetricsSource
	rng         func() float64
	now         func() time.Time

	persistWG       sync.WaitGroup
	persistFailures atomic.Int64
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMaxEvents overrides the event log bound.
func WithMaxEvents(n int) Option {
	return func(e *Engine) { e.maxEvents = n }
}

// WithMetricsSource attaches the external analytics collaborator.
func WithMetricsSource(src MetricsSource) Option {
	return func(e *Engine) { e.analytics = src }
}

// WithRand injects the uniform [0,1) source used by random allocation.
func WithRand(fn func() float64) Option {
	return func(e *Engine) { e.rng = fn }
}

// WithClock injects the time source.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// New constructs an engine over the given storage collaborator and loads
// the persisted collections. A corrupt or missing blob starts that
// collection empty rather than failing the process.
func New(ctx context.Context, kv storage.KV, opts ...Option) (*Engine, error) {
	e := &Engine{
		kv:          kv,
		log:         slog.Default(),
		tests:       make(map[string]*Test),
		assignments: make(map[string][]*Assignment),
		maxEvents:   DefaultMaxEvents,
		rng:         rand.Float64,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load stored data: %w", err)
	}
	return e, nil
}

func (e *Engine) load(ctx context.Context) error {
	if raw, ok, err := e.kv.Get(ctx, keyTests); err != nil {
		return err
	} else if ok {
		var tests []*Test
		if err := json.Unmarshal([]byte(raw), &tests); err != nil {
			e.log.Error("discarding corrupt tests blob", "error", err)
		} else {
			for _, t := range tests {
				e.tests[t.ID] = t
			}
		}
	}

	if raw, ok, err := e.kv.Get(ctx, keyAssignments); err != nil {
		return err
	} else if ok {
		var assignments map[string][]*Assignment
		if err := json.Unmarshal([]byte(raw), &assignments); err != nil {
			e.log.Error("discarding corrupt assignments blob", "error", err)
		} else {
			e.assignments = assignments
		}
	}

	if raw, ok, err := e.kv.Get(ctx, keyEvents); err != nil {
		return err
	} else if ok {
		var events []*Event
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			e.log.Error("discarding corrupt events blob", "error", err)
		} else {
			e.events = events
		}
	}

	return nil
}

// persist marshals a snapshot and writes it in the background. Failures
// never propagate to the caller: they are logged and counted, and the
// in-memory state stays authoritative for the rest of the process.
// Callers must hold e.mu.
func (e *Engine) persist(key string, snapshot any) {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		e.persistFailures.Add(1)
		e.log.Error("failed to marshal collection", "key", key, "error", err)
		return
	}

	e.persistWG.Add(1)
	go func() {
		defer e.persistWG.Done()
		if err := e.kv.Set(context.Background(), key, string(blob)); err != nil {
			e.persistFailures.Add(1)
			e.log.Error("failed to persist collection", "key", key, "error", err)
		}
	}()
}

func (e *Engine) persistTestsLocked() {
	tests := make([]*Test, 0, len(e.tests))
	for _, t := range e.tests {
		tests = append(tests, t)
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].CreatedAt.Before(tests[j].CreatedAt) })
	e.persist(keyTests, tests)
}

func (e *Engine) persistAssignmentsLocked() {
	snapshot := make(map[string][]*Assignment, len(e.assignments))
	for user, list := range e.assignments {
		snapshot[user] = append([]*Assignment(nil), list...)
	}
	e.persist(keyAssignments, snapshot)
}

func (e *Engine) persistEventsLocked() {
	e.persist(keyEvents, append([]*Event(nil), e.events...))
}

// PersistFailures reports how many background writes have failed since
// construction. Exposed as the operational signal for durability loss.
func (e *Engine) PersistFailures() int64 {
	return e.persistFailures.Load()
}

// Flush blocks until all scheduled background writes have finished.
func (e *Engine) Flush() {
	e.persistWG.Wait()
}

// Close flushes pending writes. It does not close the storage
// collaborator; the caller owns that.
func (e *Engine) Close() error {
	e.Flush()
	return nil
}

// Wipe clears all tests, assignments, and events, in memory and in
// storage. This is the only operation that removes assignments.
func (e *Engine) Wipe(ctx context.Context) error {
	e.mu.Lock()
	e.tests = make(map[string]*Test)
	e.assignments = make(map[string][]*Assignment)
	e.events = nil
	e.mu.Unlock()

	// Wait out in-flight writes so a stale snapshot cannot land after the
	// removal below.
	e.persistWG.Wait()

	for _, key := range []string{keyTests, keyAssignments, keyEvents} {
		if err := e.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", key, err)
		}
	}
	return nil
}
