// Package catalog serves model templates through a TTL cache.
//
// Only model and model-list reads are cached. Validation and pricing are
// always live and never pass through here. Template mutations go through the
// catalog so the cache never outlives them.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/solatis/cpq/internal/cache"
	"github.com/solatis/cpq/internal/types"
)

// Source fetches and stores models on the backend. Implemented by *api.Client.
type Source interface {
	GetModel(ctx context.Context, id types.ModelID) (*types.Model, error)
	ListModels(ctx context.Context, filter types.ModelFilter) ([]types.Model, error)
	CreateModel(ctx context.Context, m *types.Model) (*types.Model, error)
	UpdateModel(ctx context.Context, m *types.Model) (*types.Model, error)
	DeleteModel(ctx context.Context, id types.ModelID) error
}

// Options configures TTLs. Zero values take the defaults.
type Options struct {
	ModelTTL     time.Duration
	ModelListTTL time.Duration
	Logger       *slog.Logger
}

// Catalog is a read-through cache over a Source.
type Catalog struct {
	source   Source
	cache    *cache.Cache
	modelTTL time.Duration
	listTTL  time.Duration
	log      *slog.Logger
}

func New(source Source, c *cache.Cache, opts Options) (*Catalog, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if c == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	cat := &Catalog{
		source:   source,
		cache:    c,
		modelTTL: opts.ModelTTL,
		listTTL:  opts.ModelListTTL,
		log:      opts.Logger,
	}
	if cat.modelTTL <= 0 {
		cat.modelTTL = 10 * time.Minute
	}
	if cat.listTTL <= 0 {
		cat.listTTL = 5 * time.Minute
	}
	if cat.log == nil {
		cat.log = slog.Default()
	}
	return cat, nil
}

func modelKey(id types.ModelID) string {
	return "model:" + string(id)
}

func listKey(f types.ModelFilter) string {
	active := "any"
	if f.Active != nil {
		active = strconv.FormatBool(*f.Active)
	}
	return "models:" + strconv.Quote(f.Search) + ":" + strconv.Quote(f.Category) + ":" + active
}

// Model returns the model, from cache when fresh. Cache failures degrade to
// a live fetch.
func (c *Catalog) Model(ctx context.Context, id types.ModelID) (*types.Model, error) {
	key := modelKey(id)

	var m types.Model
	ok, err := c.cache.Get(key, &m)
	if err != nil {
		c.log.Warn("model cache read failed", "model_id", id, "error", err)
	}
	if ok {
		return &m, nil
	}

	fetched, err := c.source.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(key, fetched, c.modelTTL); err != nil {
		c.log.Warn("model cache write failed", "model_id", id, "error", err)
	}
	return fetched, nil
}

// Models returns the model list for filter, from cache when fresh.
func (c *Catalog) Models(ctx context.Context, filter types.ModelFilter) ([]types.Model, error) {
	key := listKey(filter)

	var list []types.Model
	ok, err := c.cache.Get(key, &list)
	if err != nil {
		c.log.Warn("model list cache read failed", "error", err)
	}
	if ok {
		return list, nil
	}

	fetched, err := c.source.ListModels(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(key, fetched, c.listTTL); err != nil {
		c.log.Warn("model list cache write failed", "error", err)
	}
	return fetched, nil
}

// Invalidate drops the cached model for id.
func (c *Catalog) Invalidate(id types.ModelID) error {
	return c.cache.Delete(modelKey(id))
}

// InvalidateAll drops every cached model and list.
func (c *Catalog) InvalidateAll() error {
	return c.cache.Clear()
}

// CreateModel stores a new template. Cached lists are dropped since any of
// them may now include it.
func (c *Catalog) CreateModel(ctx context.Context, m *types.Model) (*types.Model, error) {
	if m == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	created, err := c.source.CreateModel(ctx, m)
	if err != nil {
		return nil, err
	}
	c.dropAll("create", created.ID)
	return created, nil
}

// UpdateModel replaces a template and drops every cached copy of it.
func (c *Catalog) UpdateModel(ctx context.Context, m *types.Model) (*types.Model, error) {
	if m == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if m.ID == "" {
		return nil, types.ErrNoModel
	}
	updated, err := c.source.UpdateModel(ctx, m)
	if err != nil {
		return nil, err
	}
	c.dropAll("update", m.ID)
	return updated, nil
}

// DeleteModel removes a template and drops every cached copy of it.
func (c *Catalog) DeleteModel(ctx context.Context, id types.ModelID) error {
	if id == "" {
		return types.ErrNoModel
	}
	if err := c.source.DeleteModel(ctx, id); err != nil {
		return err
	}
	c.dropAll("delete", id)
	return nil
}

// dropAll clears the cache after a mutation. Lists are keyed by filter, so
// there is no narrower way to reach every list holding the model.
func (c *Catalog) dropAll(op string, id types.ModelID) {
	if err := c.InvalidateAll(); err != nil {
		c.log.Warn("model cache invalidation failed", "op", op, "model_id", id, "error", err)
	}
}
