package configurator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/solatis/cpq/internal/types"
)

// ShareParam is the query parameter carrying a share token.
const ShareParam = "config"

type sharePayload struct {
	ModelID    types.ModelID    `json:"model_id"`
	Selections types.Selections `json:"selections"`
	Timestamp  int64            `json:"timestamp"`
}

// EncodeShareToken serializes the essential session state into a URL-safe
// opaque token: unpadded base64url of JSON.
func EncodeShareToken(modelID types.ModelID, sel types.Selections, at time.Time) (string, error) {
	if modelID == "" {
		return "", types.ErrNoModel
	}
	raw, err := json.Marshal(sharePayload{
		ModelID:    modelID,
		Selections: sel.Clone(),
		Timestamp:  at.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("encode share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var shareEncodings = []*base64.Encoding{
	base64.RawURLEncoding,
	base64.URLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

// DecodeShareToken is the inverse of EncodeShareToken. Standard and padded
// base64 are accepted too. Non-positive quantities are pruned.
func DecodeShareToken(token string) (types.ModelID, types.Selections, time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil, time.Time{}, fmt.Errorf("%w: empty", types.ErrMalformedShareToken)
	}

	var raw []byte
	var err error
	for _, enc := range shareEncodings {
		if raw, err = enc.DecodeString(token); err == nil {
			break
		}
	}
	if err != nil {
		return "", nil, time.Time{}, fmt.Errorf("%w: %v", types.ErrMalformedShareToken, err)
	}

	var p sharePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, time.Time{}, fmt.Errorf("%w: %v", types.ErrMalformedShareToken, err)
	}
	if p.ModelID == "" {
		return "", nil, time.Time{}, fmt.Errorf("%w: missing model_id", types.ErrMalformedShareToken)
	}
	return p.ModelID, p.Selections.Clone(), time.UnixMilli(p.Timestamp), nil
}

// ShareToken encodes the current session.
func (s *Store) ShareToken() (string, error) {
	s.mu.Lock()
	modelID := s.st.ModelID
	sel := s.st.Selections.Clone()
	hasModel := s.st.Model != nil
	s.mu.Unlock()

	if !hasModel {
		return "", types.ErrNoModel
	}
	return EncodeShareToken(modelID, sel, s.now())
}

// GenerateShareURL returns base with the share token in its query string.
func (s *Store) GenerateShareURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse share base URL: %w", err)
	}
	token, err := s.ShareToken()
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(ShareParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ShareTokenFromURL extracts the share token from a URL produced by
// GenerateShareURL.
func ShareTokenFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrMalformedShareToken, err)
	}
	token := u.Query().Get(ShareParam)
	if token == "" {
		return "", fmt.Errorf("%w: no %q parameter", types.ErrMalformedShareToken, ShareParam)
	}
	return token, nil
}

// LoadShared applies a share token: the token's model becomes active and its
// selections replace the current ones, marking the session dirty so they are
// revalidated and repriced. The session returns to the first step. A token that cannot be decoded or whose model
// cannot be loaded is logged and ignored. Returns whether it was applied.
func (s *Store) LoadShared(ctx context.Context, token string) bool {
	modelID, sel, _, err := DecodeShareToken(token)
	if err != nil {
		s.log.Warn("ignoring share token", "error", err)
		return false
	}

	s.mu.Lock()
	loaded := s.st.Model != nil && s.st.ModelID == modelID
	s.mu.Unlock()
	if !loaded {
		// Probe first so an unloadable model leaves the current session intact.
		if _, err := s.models.Model(ctx, modelID); err != nil {
			s.log.Warn("ignoring share token", "model_id", modelID, "error", err)
			return false
		}
		if err := s.SetModel(ctx, modelID); err != nil {
			s.log.Warn("ignoring share token", "model_id", modelID, "error", err)
			return false
		}
	}

	s.mu.Lock()
	if s.closed || s.st.Model == nil || s.st.ModelID != modelID {
		s.mu.Unlock()
		return false
	}
	s.newGenerationLocked()
	s.st.Selections = sel
	s.st.ValidationResults = []types.Violation{}
	s.st.Advisories = nil
	s.st.Pricing = nil
	s.st.PricingErr = nil
	s.st.CurrentStep = FirstStep
	s.markDirtyLocked()
	s.commitLocked()

	s.scheduleValidation()
	return true
}
