// Package api is the HTTP client for the CPQ backend.
//
// Every call returns the unwrapped data member of the {success, data, error}
// envelope or an *Error from the taxonomy in errors.go. Transport failures are
// normalized here once; callers never see a raw net/http error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/solatis/cpq/internal/types"
)

// maxResponseBytes bounds a single response body.
const maxResponseBytes = 8 << 20

// TokenSource supplies the bearer token for each request. "" sends none.
// Implemented by *session.Store.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// MetricsRecorder receives the latency of every completed call.
// Implemented by *perf.Recorder.
type MetricsRecorder interface {
	Record(ctx context.Context, endpoint string, d time.Duration, slow bool) error
}

// Options configures a Client. BaseURL includes the version path.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	SlowThreshold time.Duration
	HTTPClient    *http.Client
	Tokens        TokenSource
	Metrics       MetricsRecorder
	Logger        *slog.Logger

	// OnUnauthorized runs after any 401, before the error is returned.
	// It tears down the persisted session; there is no local recovery.
	OnUnauthorized func(ctx context.Context)
}

// Client translates typed calls into HTTP requests against the backend.
type Client struct {
	baseURL        string
	timeout        time.Duration
	slowThreshold  time.Duration
	http           *http.Client
	tokens         TokenSource
	metrics        MetricsRecorder
	log            *slog.Logger
	onUnauthorized func(ctx context.Context)
}

// New creates a client. Zero Timeout and SlowThreshold take defaults.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", opts.BaseURL)
	}

	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		timeout:        opts.Timeout,
		slowThreshold:  opts.SlowThreshold,
		http:           opts.HTTPClient,
		tokens:         opts.Tokens,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		onUnauthorized: opts.OnUnauthorized,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.slowThreshold <= 0 {
		c.slowThreshold = 200 * time.Millisecond
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

// call describes one request. endpoint is the metrics key, e.g. "GET /models/:id".
type call struct {
	method   string
	path     string
	endpoint string
	query    url.Values
	body     any
	shape    *jsonschema.Schema
	out      any
}

// do executes c and decodes the envelope into c.out.
func (c *Client) do(ctx context.Context, rc call) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if rc.body != nil {
		raw, err := json.Marshal(rc.body)
		if err != nil {
			return &Error{Kind: KindUnknown, Message: fmt.Sprintf("encode request: %v", err), Err: err}
		}
		body = bytes.NewReader(raw)
	}

	target := c.baseURL + rc.path
	if len(rc.query) > 0 {
		target += "?" + rc.query.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, rc.method, target, body)
	if err != nil {
		return &Error{Kind: KindUnknown, Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	requestID := types.NewRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if rc.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return &Error{Kind: KindAuth, Message: fmt.Sprintf("load session: %v", err), Err: err}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	c.observe(ctx, rc, elapsed)
	if err != nil {
		return transportError(ctx, reqCtx, err, requestID)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(ctx, reqCtx, err, requestID)
	}

	if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized(context.WithoutCancel(ctx))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp, raw)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := decodeEnvelope(raw, rc.shape, rc.out); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			apiErr.Status = resp.StatusCode
			apiErr.RequestID = requestID
		}
		return err
	}
	return nil
}

// observe logs slow calls and records the timing. Recording failures are
// logged, never returned: metrics must not fail a configuration call.
func (c *Client) observe(ctx context.Context, rc call, elapsed time.Duration) {
	slow := elapsed > c.slowThreshold
	if slow {
		c.log.Warn("slow API call",
			"endpoint", rc.endpoint,
			"duration", elapsed,
			"threshold", c.slowThreshold,
		)
	}
	if c.metrics == nil {
		return
	}
	if err := c.metrics.Record(context.WithoutCancel(ctx), rc.endpoint, elapsed, slow); err != nil {
		c.log.Warn("failed to record API metrics", "endpoint", rc.endpoint, "error", err)
	}
}

// transportError distinguishes our deadline from a caller cancellation and
// from a request that never reached the server.
func transportError(parent, reqCtx context.Context, err error, requestID string) *Error {
	var netErr net.Error
	switch {
	case parent.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", RequestID: requestID, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Message: "request timed out", RequestID: requestID, Err: err}
	case parent.Err() != nil:
		return &Error{Kind: KindNetwork, Message: "request cancelled", RequestID: requestID, Err: parent.Err()}
	default:
		return &Error{Kind: KindNetwork, Message: "no response from server", RequestID: requestID, Err: err}
	}
}

func escape(id string) string {
	return url.PathEscape(id)
}
