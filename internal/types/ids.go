package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewRequestID generates a UUIDv7 request identifier for X-Request-ID.
// Time-ordered ids let backend logs sort requests without a timestamp column.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRequestID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseConfigurationID converts a user-supplied string to ConfigurationID.
// The backend owns the id format; only surrounding space is trimmed.
func ParseConfigurationID(s string) (ConfigurationID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("configuration id cannot be empty")
	}
	return ConfigurationID(s), nil
}
