// Package config provides configuration management for the CPQ client.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds configuration for the API client, the configuration session,
// local state and the widget bridge.
type Config struct {
	BaseURL              string
	APIVersion           string
	RequestTimeout       time.Duration
	SlowRequestThreshold time.Duration
	ModelCacheTTL        time.Duration
	ModelListCacheTTL    time.Duration
	CachePath            string

	DebounceDelay    time.Duration
	AutosaveInterval time.Duration
	MaxRetries       int

	StateDBURL string

	BridgeHost     string
	BridgePort     int
	AllowedOrigins []string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:              "http://localhost:8000",
		APIVersion:           "v1",
		RequestTimeout:       30 * time.Second,
		SlowRequestThreshold: 200 * time.Millisecond,
		ModelCacheTTL:        10 * time.Minute,
		ModelListCacheTTL:    5 * time.Minute,
		DebounceDelay:        400 * time.Millisecond,
		AutosaveInterval:     30 * time.Second,
		MaxRetries:           3,
		StateDBURL:           "sqlite://cpq-state.db",
		BridgeHost:           "127.0.0.1",
		BridgePort:           50061,
	}
}

// APIBaseURL joins the base URL and the version path, e.g. http://host/api/v1.
func (c *Config) APIBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/" + strings.Trim(c.APIVersion, "/")
}

// AuthTokenEnv is the only accepted source of an out-of-band auth token.
const AuthTokenEnv = "CPQ_AUTH_TOKEN"

// AuthTokenFromEnv returns the token from CPQ_AUTH_TOKEN, if set.
// A token supplied this way takes precedence over the persisted session.
func AuthTokenFromEnv() (string, error) {
	val := strings.TrimSpace(os.Getenv(AuthTokenEnv))
	if val == "" {
		return "", nil
	}
	val = strings.TrimSpace(strings.TrimPrefix(val, "Bearer "))
	if strings.ContainsAny(val, " \t\r\n") {
		return "", fmt.Errorf("%s: token must not contain whitespace", AuthTokenEnv)
	}
	return val, nil
}

// ParseOrigins splits a comma or whitespace separated origin list.
// Trailing slashes are dropped so "https://a.example/" matches "https://a.example".
func ParseOrigins(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		}) {
			part = strings.TrimRight(strings.TrimSpace(part), "/")
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
