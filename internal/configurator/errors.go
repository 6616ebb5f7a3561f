package configurator

import "errors"

var (
	// ErrRetriesExhausted indicates RetryLoadModel was called maxRetries times.
	ErrRetriesExhausted = errors.New("model load retries exhausted")

	// ErrClosed indicates an operation on a torn-down store.
	ErrClosed = errors.New("configurator store closed")
)

// validationUnavailable replaces the validation results when the validation
// pass itself fails, so the session never shows stale results.
const validationUnavailable = "Validation service unavailable"
