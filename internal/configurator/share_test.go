package configurator

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/cpq/internal/types"
)

func TestShareToken_IsURLSafe(t *testing.T) {
	token, err := EncodeShareToken("m1", types.Selections{"A": 1, "C": 2}, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}

func TestShareToken_EncodeRequiresModel(t *testing.T) {
	_, err := EncodeShareToken("", types.Selections{}, time.Now())
	assert.ErrorIs(t, err, types.ErrNoModel)
}

func TestDecodeShareToken(t *testing.T) {
	payload := `{"model_id":"m1","selections":{"A":1,"B":0,"C":-1},"timestamp":1700000000000}`

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"raw url", base64.RawURLEncoding.EncodeToString([]byte(payload)), false},
		{"padded std", base64.StdEncoding.EncodeToString([]byte(payload)), false},
		{"empty", "", true},
		{"not base64", "!!!", true},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("hello")), true},
		{"no model", base64.RawURLEncoding.EncodeToString([]byte(`{"selections":{}}`)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modelID, sel, at, err := DecodeShareToken(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrMalformedShareToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.ModelID("m1"), modelID)
			assert.Equal(t, types.Selections{"A": 1}, sel, "non-positive quantities are pruned")
			assert.Equal(t, int64(1700000000000), at.UnixMilli())
		})
	}
}

func TestStore_ShareURLRoundTrip(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	require.NoError(t, s.UpdateSelection("A", 1))
	require.NoError(t, s.UpdateSelection("C", 3))

	link, err := s.GenerateShareURL("https://shop.example.com/configure?lang=en")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://shop.example.com/configure?"))
	assert.Contains(t, link, "lang=en")

	token, err := ShareTokenFromURL(link)
	require.NoError(t, err)

	other, b := loadedStore(t, Options{})
	require.True(t, other.LoadShared(context.Background(), token))

	st := other.Snapshot()
	assert.Equal(t, types.ModelID("m1"), st.ModelID)
	assert.Equal(t, types.Selections{"A": 1, "C": 3}, st.Selections)
	assert.True(t, st.IsDirty, "restored selections must be revalidated")
	creates, _, _, _ := b.counts()
	assert.Equal(t, 1, creates, "same model keeps the configuration")
}

func TestStore_LoadSharedSwitchesModel(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	token, err := EncodeShareToken("m2", types.Selections{"B": 1}, time.Now())
	require.NoError(t, err)

	require.True(t, s.LoadShared(context.Background(), token))
	st := s.Snapshot()
	assert.Equal(t, types.ModelID("m2"), st.ModelID)
	require.NotNil(t, st.Model)
	assert.Equal(t, types.ModelID("m2"), st.Model.ID)
	assert.Equal(t, types.Selections{"B": 1}, st.Selections)
	assert.Equal(t, PhaseSelecting, st.Phase())
}

func TestStore_LoadSharedReturnsToFirstStep(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.UpdateSelection("A", 1))
	token, err := s.ShareToken()
	require.NoError(t, err)

	require.NoError(t, s.UpdateSelection("C", 1))
	s.ValidateSelections(ctx)
	for s.NextStep() {
	}
	require.Equal(t, PhaseComplete, s.Snapshot().Phase())

	require.True(t, s.LoadShared(ctx, token))
	st := s.Snapshot()
	assert.Equal(t, FirstStep, st.CurrentStep)
	assert.Nil(t, st.Pricing)
	assert.Equal(t, types.Selections{"A": 1}, st.Selections)
	assert.NotEqual(t, PhaseComplete, st.Phase())
}

func TestStore_LoadSharedIgnoresBadTokens(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	require.NoError(t, s.UpdateSelection("A", 2))
	before := s.Snapshot()

	assert.False(t, s.LoadShared(context.Background(), "%%%not-a-token"))

	unknown, err := EncodeShareToken("missing-model", types.Selections{"A": 1}, time.Now())
	require.NoError(t, err)
	assert.False(t, s.LoadShared(context.Background(), unknown))

	after := s.Snapshot()
	assert.Equal(t, before.Selections, after.Selections)
	assert.Equal(t, before.ModelID, after.ModelID)
	assert.Equal(t, PhaseSelecting, after.Phase())
}

func TestStore_ShareTokenWithoutModel(t *testing.T) {
	s := newTestStore(t, newFakeBackend(), newFakeModels(), Options{})
	_, err := s.ShareToken()
	assert.ErrorIs(t, err, types.ErrNoModel)
	_, err = s.GenerateShareURL("https://example.com")
	assert.ErrorIs(t, err, types.ErrNoModel)
}

func TestShareTokenFromURL_Missing(t *testing.T) {
	_, err := ShareTokenFromURL("https://example.com/configure")
	assert.ErrorIs(t, err, types.ErrMalformedShareToken)
}
