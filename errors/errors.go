// Package errors defines the triage error taxonomy. Input errors reject the
// ticket, transient errors downgrade a stage to its heuristic, configuration
// errors are fatal at process start.
package errors

import "errors"

var (
	// ErrInvalidInput marks malformed or insufficient ticket input. Never
	// retried; the ticket is rejected with reasons.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient marks a reasoning-service or store failure that a stage
	// recovers from locally by falling back to its heuristic.
	ErrTransient = errors.New("transient dependency error")

	// ErrConfiguration marks an invalid threshold, weight, or dimension.
	// Fatal at startup, never silently ignored.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("resource not found")
)

// IsConfiguration reports whether err belongs to the fatal-at-start class.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsTransient reports whether err may be absorbed by a heuristic fallback.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
