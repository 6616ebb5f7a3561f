package types

import "errors"

// Sentinel errors shared across CPQ client packages.
var (
	// ErrInvalidEnum indicates an unknown selection_type or severity value.
	ErrInvalidEnum = errors.New("invalid enum value")

	// ErrNoModel indicates an operation that needs a loaded model.
	ErrNoModel = errors.New("no model loaded")

	// ErrUnknownOption indicates an option id absent from the active model.
	ErrUnknownOption = errors.New("option not found in model")

	// ErrMalformedShareToken indicates a share token that cannot be decoded.
	ErrMalformedShareToken = errors.New("malformed share token")
)
