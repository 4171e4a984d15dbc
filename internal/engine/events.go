package engine

import "fmt"

// Record appends a domain event for a running test. Events against
// unknown tests return ErrNotFound; tests that are not running reject
// events with ErrTestNotRunning so a completed test's results snapshot
// stays consistent with its log.
func (e *Engine) Record(testID, variantID, userID string, eventType EventType, data map[string]any) error {
	if !ValidEventType(eventType) {
		return fmt.Errorf("event type %q: %w", eventType, ErrUnknownEventType)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	test, ok := e.tests[testID]
	if !ok {
		return fmt.Errorf("test %s: %w", testID, ErrNotFound)
	}
	if test.Status != StatusRunning {
		return fmt.Errorf("test %s in state %s: %w", testID, test.Status, ErrTestNotRunning)
	}

	known := false
	for _, v := range test.Variants {
		if v.ID == variantID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("variant %q in test %s: %w", variantID, testID, ErrUnknownVariant)
	}

	e.appendEventLocked(&Event{
		TestID:    testID,
		VariantID: variantID,
		UserID:    userID,
		Type:      eventType,
		Data:      data,
		Timestamp: e.now().UnixMilli(),
	})
	return nil
}

// appendEventLocked appends to the bounded log with drop-oldest eviction
// and schedules a best-effort persist. Callers must hold e.mu.
func (e *Engine) appendEventLocked(ev *Event) {
	e.events = append(e.events, ev)
	if len(e.events) > e.maxEvents {
		// Copy the tail out so the evicted head can be collected.
		e.events = append([]*Event(nil), e.events[len(e.events)-e.maxEvents:]...)
	}
	e.persistEventsLocked()
}

// EventCount reports the current log length.
func (e *Engine) EventCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

// EventsForTest returns copies of the log entries for one test, in
// insertion order.
func (e *Engine) EventsForTest(testID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Event
	for _, ev := range e.events {
		if ev.TestID == testID {
			out = append(out, *ev)
		}
	}
	return out
}
