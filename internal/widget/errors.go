package widget

import "errors"

var (
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrBadPayload       = errors.New("bad message payload")
)
