package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a failed call. Transport failures are Network or Timeout;
// everything else is mapped from the HTTP status.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindAuth
	KindNotFound
	KindValidation
	KindRateLimit
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindTimeout:
		return "TimeoutError"
	case KindAuth:
		return "AuthError"
	case KindNotFound:
		return "NotFoundError"
	case KindValidation:
		return "ValidationError"
	case KindRateLimit:
		return "RateLimitError"
	case KindServer:
		return "ServerError"
	default:
		return "UnknownError"
	}
}

// Error is the normalized failure returned by every Client method.
type Error struct {
	Kind       Kind
	Message    string
	Status     int
	Code       string
	Details    map[string]any
	RetryAfter time.Duration
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can write errors.Is(err, api.ErrTimeout).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// FieldErrors returns the field-level detail of a ValidationError.
// The backend sends either {"fields": {...}} or a flat field map.
func (e *Error) FieldErrors() map[string]string {
	if e.Details == nil {
		return nil
	}
	src := e.Details
	if nested, ok := e.Details["fields"].(map[string]any); ok {
		src = nested
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		switch val := v.(type) {
		case string:
			out[k] = val
		case []any:
			if len(val) > 0 {
				out[k] = fmt.Sprint(val[0])
			}
		}
	}
	return out
}

// Kind sentinels for errors.Is.
var (
	ErrNetwork    = &Error{Kind: KindNetwork, Message: "network error"}
	ErrTimeout    = &Error{Kind: KindTimeout, Message: "request timed out"}
	ErrAuth       = &Error{Kind: KindAuth, Message: "authentication required"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrRateLimit  = &Error{Kind: KindRateLimit, Message: "rate limited"}
	ErrServer     = &Error{Kind: KindServer, Message: "server error"}
	ErrUnknown    = &Error{Kind: KindUnknown, Message: "unknown error"}
)

// ErrMalformedResponse is wrapped when a response does not match its schema.
var ErrMalformedResponse = errors.New("malformed response")

// KindFromStatus maps an HTTP status to the taxonomy.
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// errorBody is the error member of the envelope in either of its two shapes.
type errorBody struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

// errorFromResponse builds an Error from a non-2xx response.
// Non-JSON bodies fall back to the status text.
func errorFromResponse(resp *http.Response, raw []byte) *Error {
	e := &Error{
		Kind:      KindFromStatus(resp.StatusCode),
		Status:    resp.StatusCode,
		Message:   http.StatusText(resp.StatusCode),
		RequestID: resp.Request.Header.Get("X-Request-ID"),
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}

	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return e
	}

	switch {
	case len(env.Error) > 0 && env.Error[0] == '"':
		var msg string
		if json.Unmarshal(env.Error, &msg) == nil && msg != "" {
			e.Message = msg
		}
	case len(env.Error) > 0 && env.Error[0] == '{':
		var body errorBody
		if json.Unmarshal(env.Error, &body) == nil {
			if body.Message != "" {
				e.Message = body.Message
			}
			e.Code = body.Code
			e.Details = body.Details
		}
	case env.Message != "":
		e.Message = env.Message
	case env.Detail != "":
		e.Message = env.Detail
	}
	return e
}
