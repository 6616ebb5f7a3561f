package session

import "errors"

// Session error types.
var (
	ErrNoSession      = errors.New("no persisted session (run 'cpq login')")
	ErrSessionExpired = errors.New("persisted session has expired")
	ErrEmptyToken     = errors.New("session token is empty")
)
