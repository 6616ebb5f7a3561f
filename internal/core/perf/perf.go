// Package perf keeps a rolling per-endpoint latency record for API calls:
// call count, total and average time, and the number of slow calls.
package perf

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Queries defines database operations needed for the metrics record.
// Implemented by *db.Queries.
type Queries interface {
	GetContext(ctx context.Context, name string, dest any, args ...any) error
	SelectContext(ctx context.Context, name string, dest any, args ...any) error
	ExecContext(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// EndpointMetrics is the rolling record for one endpoint.
type EndpointMetrics struct {
	Endpoint    string  `db:"endpoint" json:"endpoint" yaml:"endpoint"`
	Calls       int64   `db:"calls" json:"calls" yaml:"calls"`
	TotalTimeMs float64 `db:"total_time_ms" json:"totalTime" yaml:"total_time_ms"`
	AvgTimeMs   float64 `db:"avg_time_ms" json:"avgTime" yaml:"avg_time_ms"`
	SlowCalls   int64   `db:"slow_calls" json:"slowCalls" yaml:"slow_calls"`
	UpdatedAt   string  `db:"updated_at" json:"updatedAt" yaml:"updated_at"`
}

// ErrUnknownEndpoint indicates no calls have been recorded for an endpoint.
var ErrUnknownEndpoint = errors.New("no metrics recorded for endpoint")

// Recorder persists endpoint timings.
type Recorder struct {
	queries Queries
	now     func() time.Time
}

// NewRecorder creates a recorder backed by named queries.
func NewRecorder(queries Queries) (*Recorder, error) {
	if queries == nil {
		return nil, fmt.Errorf("queries cannot be nil")
	}
	return &Recorder{queries: queries, now: time.Now}, nil
}

// Record adds one call to the endpoint's rolling record.
func (r *Recorder) Record(ctx context.Context, endpoint string, d time.Duration, slow bool) error {
	ms := float64(d) / float64(time.Millisecond)
	slowCalls := 0
	if slow {
		slowCalls = 1
	}
	_, err := r.queries.ExecContext(ctx, "record-endpoint-call",
		endpoint, ms, ms, slowCalls, r.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record %s: %w", endpoint, err)
	}
	return nil
}

// Get returns the record for one endpoint.
func (r *Recorder) Get(ctx context.Context, endpoint string) (*EndpointMetrics, error) {
	var m EndpointMetrics
	err := r.queries.GetContext(ctx, "get-endpoint-metrics", &m, endpoint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownEndpoint
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	return &m, nil
}

// List returns all records, slowest average first.
func (r *Recorder) List(ctx context.Context) ([]EndpointMetrics, error) {
	var out []EndpointMetrics
	if err := r.queries.SelectContext(ctx, "list-endpoint-metrics", &out); err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	if out == nil {
		out = []EndpointMetrics{}
	}
	return out, nil
}

// Reset drops every record.
func (r *Recorder) Reset(ctx context.Context) error {
	if _, err := r.queries.ExecContext(ctx, "reset-endpoint-metrics"); err != nil {
		return fmt.Errorf("reset metrics: %w", err)
	}
	return nil
}
