package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/cpq/internal/cache"
	"github.com/solatis/cpq/internal/types"
)

type fakeSource struct {
	modelCalls int
	listCalls  int
	mutations  []string
	err        error
}

func (f *fakeSource) GetModel(_ context.Context, id types.ModelID) (*types.Model, error) {
	f.modelCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.Model{ID: id, Name: "model " + string(id)}, nil
}

func (f *fakeSource) ListModels(_ context.Context, filter types.ModelFilter) ([]types.Model, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []types.Model{{ID: "m1", Category: filter.Category}}, nil
}

func (f *fakeSource) CreateModel(_ context.Context, m *types.Model) (*types.Model, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mutations = append(f.mutations, "create "+m.Name)
	out := *m
	out.ID = "m-new"
	return &out, nil
}

func (f *fakeSource) UpdateModel(_ context.Context, m *types.Model) (*types.Model, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mutations = append(f.mutations, "update "+string(m.ID))
	out := *m
	return &out, nil
}

func (f *fakeSource) DeleteModel(_ context.Context, id types.ModelID) error {
	if f.err != nil {
		return f.err
	}
	f.mutations = append(f.mutations, "delete "+string(id))
	return nil
}

func newTestCatalog(t *testing.T) (*Catalog, *fakeSource, *time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := cache.New(cache.NewMemory(), cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	src := &fakeSource{}
	cat, err := New(src, c, Options{ModelTTL: 10 * time.Minute, ModelListTTL: 5 * time.Minute})
	require.NoError(t, err)
	return cat, src, &now
}

func TestNew_NilArguments(t *testing.T) {
	c, _ := cache.New(cache.NewMemory())
	_, err := New(nil, c, Options{})
	assert.Error(t, err)
	_, err = New(&fakeSource{}, nil, Options{})
	assert.Error(t, err)
}

func TestCatalog_ModelCachedUntilTTL(t *testing.T) {
	cat, src, now := newTestCatalog(t)
	ctx := context.Background()

	m, err := cat.Model(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "model m1", m.Name)

	_, err = cat.Model(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.modelCalls, "second read served from cache")

	*now = now.Add(10*time.Minute + time.Second)
	_, err = cat.Model(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.modelCalls, "expired entry refetched")
}

func TestCatalog_ModelsKeyedByFilter(t *testing.T) {
	cat, src, now := newTestCatalog(t)
	ctx := context.Background()

	_, err := cat.Models(ctx, types.ModelFilter{})
	require.NoError(t, err)
	list, err := cat.Models(ctx, types.ModelFilter{Category: "servers"})
	require.NoError(t, err)
	assert.Equal(t, "servers", list[0].Category)
	assert.Equal(t, 2, src.listCalls)

	_, err = cat.Models(ctx, types.ModelFilter{Category: "servers"})
	require.NoError(t, err)
	assert.Equal(t, 2, src.listCalls)

	// The list TTL is shorter than the model TTL.
	*now = now.Add(6 * time.Minute)
	_, err = cat.Models(ctx, types.ModelFilter{Category: "servers"})
	require.NoError(t, err)
	assert.Equal(t, 3, src.listCalls)
}

func TestCatalog_ErrorsAreNotCached(t *testing.T) {
	cat, src, _ := newTestCatalog(t)
	ctx := context.Background()

	src.err = errors.New("backend down")
	_, err := cat.Model(ctx, "m1")
	require.Error(t, err)

	src.err = nil
	_, err = cat.Model(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.modelCalls)
}

func TestCatalog_Invalidate(t *testing.T) {
	cat, src, _ := newTestCatalog(t)
	ctx := context.Background()

	_, _ = cat.Model(ctx, "m1")
	require.NoError(t, cat.Invalidate("m1"))
	_, _ = cat.Model(ctx, "m1")
	assert.Equal(t, 2, src.modelCalls)

	_, _ = cat.Models(ctx, types.ModelFilter{})
	require.NoError(t, cat.InvalidateAll())
	_, _ = cat.Models(ctx, types.ModelFilter{})
	assert.Equal(t, 2, src.listCalls)
}

func TestCatalog_MutationsDropCache(t *testing.T) {
	cat, src, _ := newTestCatalog(t)
	ctx := context.Background()

	warm := func() {
		t.Helper()
		_, err := cat.Model(ctx, "m1")
		require.NoError(t, err)
		_, err = cat.Models(ctx, types.ModelFilter{})
		require.NoError(t, err)
	}

	warm()
	created, err := cat.CreateModel(ctx, &types.Model{Name: "Trike"})
	require.NoError(t, err)
	assert.Equal(t, types.ModelID("m-new"), created.ID)

	warm()
	_, err = cat.UpdateModel(ctx, &types.Model{ID: "m1", Name: "Bike v2"})
	require.NoError(t, err)

	warm()
	require.NoError(t, cat.DeleteModel(ctx, "m1"))

	warm()
	assert.Equal(t, 4, src.modelCalls, "every mutation refetches the model")
	assert.Equal(t, 4, src.listCalls, "every mutation refetches the list")
	assert.Equal(t, []string{"create Trike", "update m1", "delete m1"}, src.mutations)
}

func TestCatalog_FailedMutationKeepsCache(t *testing.T) {
	cat, src, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := cat.Model(ctx, "m1")
	require.NoError(t, err)

	src.err = errors.New("forbidden")
	_, err = cat.UpdateModel(ctx, &types.Model{ID: "m1"})
	require.Error(t, err)
	src.err = nil

	_, err = cat.Model(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.modelCalls)
}

func TestCatalog_MutationArguments(t *testing.T) {
	cat, _, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := cat.CreateModel(ctx, nil)
	assert.Error(t, err)
	_, err = cat.UpdateModel(ctx, &types.Model{})
	assert.ErrorIs(t, err, types.ErrNoModel)
	assert.ErrorIs(t, cat.DeleteModel(ctx, ""), types.ErrNoModel)
}
