package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// exportPayload is the offline-analysis serialization. Not a live query
// surface: it is a snapshot taken under the engine lock.
type exportPayload struct {
	Tests       []*Test                  `json:"tests"`
	Assignments map[string][]*Assignment `json:"assignments"`
	Events      []*Event                 `json:"events"`
	ExportedAt  time.Time                `json:"exported_at"`
}

// ExportTestData serializes tests, assignments, and events as indented
// JSON. With a non-empty testID the payload is filtered to that test;
// an unknown id is ErrNotFound. Completed tests carry their attached
// Results.
func (e *Engine) ExportTestData(testID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload := exportPayload{
		Assignments: make(map[string][]*Assignment),
		Events:      []*Event{},
		ExportedAt:  e.now(),
	}

	if testID != "" {
		test, ok := e.tests[testID]
		if !ok {
			return "", fmt.Errorf("test %s: %w", testID, ErrNotFound)
		}
		payload.Tests = []*Test{test}

		for user, list := range e.assignments {
			for _, a := range list {
				if a.TestID == testID {
					payload.Assignments[user] = append(payload.Assignments[user], a)
				}
			}
		}
		for _, ev := range e.events {
			if ev.TestID == testID {
				payload.Events = append(payload.Events, ev)
			}
		}
	} else {
		for _, t := range e.tests {
			payload.Tests = append(payload.Tests, t)
		}
		sort.Slice(payload.Tests, func(i, j int) bool {
			return payload.Tests[i].CreatedAt.Before(payload.Tests[j].CreatedAt)
		})
		for user, list := range e.assignments {
			payload.Assignments[user] = append([]*Assignment(nil), list...)
		}
		payload.Events = append(payload.Events, e.events...)
	}

	blob, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}
	return string(blob), nil
}
