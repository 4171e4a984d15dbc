package engine

import (
	"strings"

	"github.com/google/uuid"

	"github.com/expstack/expstack/internal/alloc"
)

// GetOrAssign resolves the user's variant for a test. ok is false when no
// experiment applies: unknown test, or test not running.
//
// Assignments are sticky: the first call allocates and persists a
// binding, every later call returns the same variant regardless of
// strategy. The check-then-set runs under the engine lock, so two
// concurrent calls for a brand-new user cannot double-allocate.
func (e *Engine) GetOrAssign(testID, userID string) (variantID string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	test, found := e.tests[testID]
	if !found || test.Status != StatusRunning {
		return "", false
	}

	// A user may be enrolled in several tests concurrently; the per-user
	// list stays small, so a scan beats a compound-key index here.
	for _, a := range e.assignments[userID] {
		if a.TestID == testID {
			return a.VariantID, true
		}
	}

	variants := make([]alloc.Variant, len(test.Variants))
	for i, v := range test.Variants {
		variants[i] = alloc.Variant{ID: v.ID, Weight: v.Weight}
	}
	variantID = alloc.Choose(variants, test.Allocation.Strategy, test.Allocation.Seed, userID, e.rng)

	assignment := &Assignment{
		UserID:     userID,
		TestID:     testID,
		VariantID:  variantID,
		AssignedAt: e.now(),
		SessionID:  uuid.NewString(),
	}
	e.assignments[userID] = append(e.assignments[userID], assignment)
	e.persistAssignmentsLocked()

	e.appendEventLocked(&Event{
		TestID:    testID,
		VariantID: variantID,
		UserID:    userID,
		Type:      EventVariantAssigned,
		Timestamp: e.now().UnixMilli(),
	})

	e.log.Info("user assigned", "test", testID, "user", userID, "variant", variantID)
	return variantID, true
}

// AssignmentsForUser returns copies of the user's assignments.
func (e *Engine) AssignmentsForUser(userID string) []Assignment {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Assignment, 0, len(e.assignments[userID]))
	for _, a := range e.assignments[userID] {
		out = append(out, *a)
	}
	return out
}

// ConfigForUser resolves the user's variant config for the first running
// test whose name contains nameFilter (case-insensitive). ok is false
// when no such test is running.
func (e *Engine) ConfigForUser(userID, nameFilter string) (map[string]any, bool) {
	var testID string
	for _, t := range e.ListActive() {
		if strings.Contains(strings.ToLower(t.Name), strings.ToLower(nameFilter)) {
			testID = t.ID
			break
		}
	}
	if testID == "" {
		return nil, false
	}

	variantID, ok := e.GetOrAssign(testID, userID)
	if !ok {
		return nil, false
	}
	return e.VariantConfig(testID, variantID)
}

// VariantConfig returns the config payload of one variant.
func (e *Engine) VariantConfig(testID, variantID string) (map[string]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	test, ok := e.tests[testID]
	if !ok {
		return nil, false
	}
	for _, v := range test.Variants {
		if v.ID == variantID {
			return v.Config, true
		}
	}
	return nil, false
}
