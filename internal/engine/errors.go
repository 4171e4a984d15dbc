package engine

import "errors"

var (
	// ErrNotFound is returned when a test id is unknown to the registry.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAllocation is returned by CreateTest when the variant set
	// fails validation (weights not summing to 100, duplicate ids, ...).
	ErrInvalidAllocation = errors.New("invalid allocation")

	// ErrInvalidTransition is returned for lifecycle calls that the state
	// machine does not permit, including redundant start/stop.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTestNotRunning is returned when an event is recorded against a
	// test that is not accepting events.
	ErrTestNotRunning = errors.New("test is not running")

	// ErrUnknownVariant is returned when an event names a variant the test
	// does not have.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrUnknownEventType is returned when an event type is outside the
	// taxonomy.
	ErrUnknownEventType = errors.New("unknown event type")
)
