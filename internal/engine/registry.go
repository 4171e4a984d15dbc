package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// weightEpsilon is the tolerance when checking that variant weights sum
// to 100.
const weightEpsilon = 0.01

// TestDef is the caller-supplied definition for a new test.
type TestDef struct {
	Name          string
	Description   string
	TargetMetric  TargetMetric
	Variants      []Variant
	Allocation    Allocation
	MinSampleSize int
}

// CreateTest validates the definition and registers a new test in draft.
// Weight validation is fail-closed: an invalid definition is never
// registered. The variant set is treated as immutable from here on.
func (e *Engine) CreateTest(def TestDef) (string, error) {
	if len(def.Variants) < 2 {
		return "", fmt.Errorf("%w: need at least 2 variants, got %d", ErrInvalidAllocation, len(def.Variants))
	}

	seen := make(map[string]bool, len(def.Variants))
	total := 0.0
	for _, v := range def.Variants {
		if v.ID == "" {
			return "", fmt.Errorf("%w: variant with empty id", ErrInvalidAllocation)
		}
		if seen[v.ID] {
			return "", fmt.Errorf("%w: duplicate variant id %q", ErrInvalidAllocation, v.ID)
		}
		seen[v.ID] = true
		if v.Weight < 0 || v.Weight > 100 {
			return "", fmt.Errorf("%w: variant %q weight %.2f outside [0,100]", ErrInvalidAllocation, v.ID, v.Weight)
		}
		total += v.Weight
	}
	if math.Abs(total-100) > weightEpsilon {
		return "", fmt.Errorf("%w: variant weights sum to %.2f, want 100", ErrInvalidAllocation, total)
	}

	minSample := def.MinSampleSize
	if minSample <= 0 {
		minSample = DefaultMinSampleSize
	}

	now := e.now()
	test := &Test{
		ID:            uuid.NewString(),
		Name:          def.Name,
		Description:   def.Description,
		Status:        StatusDraft,
		TargetMetric:  def.TargetMetric,
		Variants:      append([]Variant(nil), def.Variants...),
		Allocation:    def.Allocation,
		MinSampleSize: minSample,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	e.mu.Lock()
	e.tests[test.ID] = test
	e.persistTestsLocked()
	e.mu.Unlock()

	e.log.Info("test created", "test", test.ID, "name", test.Name, "variants", len(test.Variants))
	return test.ID, nil
}

// StartTest moves a draft or paused test to running. The start date is
// set on the first start only; resuming keeps the original date.
func (e *Engine) StartTest(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	test, ok := e.tests[id]
	if !ok {
		return fmt.Errorf("test %s: %w", id, ErrNotFound)
	}
	if test.Status != StatusDraft && test.Status != StatusPaused {
		return fmt.Errorf("cannot start test in state %s: %w", test.Status, ErrInvalidTransition)
	}

	now := e.now()
	test.Status = StatusRunning
	if test.StartDate == nil {
		test.StartDate = &now
	}
	test.UpdatedAt = now
	e.persistTestsLocked()

	e.log.Info("test started", "test", id, "name", test.Name)
	return nil
}

// PauseTest suspends a running test. Paused tests hand out no assignments
// and accept no events.
func (e *Engine) PauseTest(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	test, ok := e.tests[id]
	if !ok {
		return fmt.Errorf("test %s: %w", id, ErrNotFound)
	}
	if test.Status != StatusRunning {
		return fmt.Errorf("cannot pause test in state %s: %w", test.Status, ErrInvalidTransition)
	}

	test.Status = StatusPaused
	test.UpdatedAt = e.now()
	e.persistTestsLocked()

	e.log.Info("test paused", "test", id, "name", test.Name)
	return nil
}

// StopTest completes a running test: sets the end date, computes the
// final results snapshot, and attaches it. Completed is terminal.
func (e *Engine) StopTest(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	test, ok := e.tests[id]
	if !ok {
		return fmt.Errorf("test %s: %w", id, ErrNotFound)
	}
	if test.Status != StatusRunning {
		return fmt.Errorf("cannot stop test in state %s: %w", test.Status, ErrInvalidTransition)
	}

	now := e.now()
	test.Status = StatusCompleted
	test.EndDate = &now
	test.UpdatedAt = now
	test.Results = e.computeResultsLocked(test)
	e.persistTestsLocked()

	e.log.Info("test completed", "test", id, "name", test.Name, "winner", test.Results.Winner)
	return nil
}

// GetTest returns a copy of the test. ErrNotFound for unknown ids.
func (e *Engine) GetTest(id string) (*Test, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	test, ok := e.tests[id]
	if !ok {
		return nil, fmt.Errorf("test %s: %w", id, ErrNotFound)
	}
	return cloneTest(test), nil
}

// ListActive returns running tests, oldest first.
func (e *Engine) ListActive() []*Test {
	return e.list(func(t *Test) bool { return t.Status == StatusRunning })
}

// ListAll returns every test, oldest first.
func (e *Engine) ListAll() []*Test {
	return e.list(func(*Test) bool { return true })
}

func (e *Engine) list(keep func(*Test) bool) []*Test {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Test
	for _, t := range e.tests {
		if keep(t) {
			out = append(out, cloneTest(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// cloneTest returns a copy safe to hand to callers. Variants are copied;
// the Results snapshot is immutable once attached, so the pointer is
// shared.
func cloneTest(t *Test) *Test {
	c := *t
	c.Variants = append([]Variant(nil), t.Variants...)
	return &c
}
