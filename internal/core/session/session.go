// Package session persists the local auth session: a bearer token and the
// user record under fixed storage keys, plus the expiry check applied before
// the token is attached to a request.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/cpq/internal/types"
)

// Fixed storage keys.
const (
	TokenKey = "auth_token"
	UserKey  = "user"
)

// expirySkew treats a token as expired slightly early so it does not lapse in flight.
const expirySkew = 30 * time.Second

// Queries defines database operations needed for session persistence.
// Implemented by *db.Queries.
type Queries interface {
	GetContext(ctx context.Context, name string, dest any, args ...any) error
	ExecContext(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Store reads and writes the persisted session.
type Store struct {
	queries  Queries
	envToken string
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithEnvToken makes token override the persisted session for every request.
func WithEnvToken(token string) Option {
	return func(s *Store) { s.envToken = token }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a session store backed by named queries.
func NewStore(queries Queries, opts ...Option) (*Store, error) {
	if queries == nil {
		return nil, fmt.Errorf("queries cannot be nil")
	}
	s := &Store{queries: queries, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type stateRow struct {
	Key       string         `db:"state_key"`
	Value     string         `db:"state_value"`
	ExpiresAt sql.NullString `db:"expires_at"`
	UpdatedAt string         `db:"updated_at"`
}

// Save persists the token and user after login or refresh.
// A nil user keeps the previously stored record.
func (s *Store) Save(ctx context.Context, sess *types.AuthSession) error {
	if sess == nil || sess.Token == "" {
		return ErrEmptyToken
	}
	now := s.now().UTC().Format(time.RFC3339)

	var expiresAt any
	if !sess.ExpiresAt.IsZero() {
		expiresAt = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if _, err := s.queries.ExecContext(ctx, "put-state", TokenKey, sess.Token, expiresAt, now); err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if sess.User != nil {
		raw, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		if _, err := s.queries.ExecContext(ctx, "put-state", UserKey, string(raw), nil, now); err != nil {
			return fmt.Errorf("database error: %w", err)
		}
	}
	return nil
}

// Load returns the persisted session.
// Returns ErrNoSession when nothing is stored and ErrSessionExpired when the
// token has lapsed; the expired session is still returned for display.
func (s *Store) Load(ctx context.Context) (*types.AuthSession, error) {
	var tok stateRow
	err := s.queries.GetContext(ctx, "get-state", &tok, TokenKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	sess := &types.AuthSession{Token: tok.Value}
	if tok.ExpiresAt.Valid && tok.ExpiresAt.String != "" {
		exp, err := time.Parse(time.RFC3339, tok.ExpiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt expires_at %q: %w", tok.ExpiresAt.String, err)
		}
		sess.ExpiresAt = exp
	}

	var user stateRow
	err = s.queries.GetContext(ctx, "get-state", &user, UserKey)
	switch {
	case err == nil:
		var u types.User
		if err := json.Unmarshal([]byte(user.Value), &u); err == nil {
			sess.User = &u
		}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("database error: %w", err)
	}

	if s.expired(sess) {
		return sess, ErrSessionExpired
	}
	return sess, nil
}

// Token returns the bearer token to attach to outgoing requests.
// An environment token wins. Missing or expired sessions yield "" so the
// request goes out unauthenticated and the server decides.
func (s *Store) Token(ctx context.Context) (string, error) {
	if s.envToken != "" {
		return s.envToken, nil
	}
	sess, err := s.Load(ctx)
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrSessionExpired) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

// Clear removes the persisted token and user. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	for _, key := range []string{TokenKey, UserKey} {
		if _, err := s.queries.ExecContext(ctx, "delete-state", key); err != nil {
			return fmt.Errorf("database error: %w", err)
		}
	}
	return nil
}

// expired applies the skew; a zero expiry never expires.
func (s *Store) expired(sess *types.AuthSession) bool {
	if sess.ExpiresAt.IsZero() {
		return false
	}
	return !s.now().Add(expirySkew).Before(sess.ExpiresAt)
}
