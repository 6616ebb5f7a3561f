package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/solatis/cpq/internal/types"
)

// ListModels returns the model templates matching filter.
func (c *Client) ListModels(ctx context.Context, filter types.ModelFilter) ([]types.Model, error) {
	q := url.Values{}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.Active != nil {
		q.Set("is_active", strconv.FormatBool(*filter.Active))
	}

	var out []types.Model
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/models",
		endpoint: "GET /models",
		query:    q,
		shape:    modelListSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []types.Model{}
	}
	return out, nil
}

// GetModel fetches one model template with its option groups.
func (c *Client) GetModel(ctx context.Context, id types.ModelID) (*types.Model, error) {
	var out types.Model
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/models/" + escape(string(id)),
		endpoint: "GET /models/:id",
		shape:    modelSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateModel stores a new template. Admin only.
func (c *Client) CreateModel(ctx context.Context, m *types.Model) (*types.Model, error) {
	var out types.Model
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/models",
		endpoint: "POST /models",
		body:     m,
		shape:    modelSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateModel replaces a template. Admin only.
func (c *Client) UpdateModel(ctx context.Context, m *types.Model) (*types.Model, error) {
	var out types.Model
	err := c.do(ctx, call{
		method:   http.MethodPut,
		path:     "/models/" + escape(string(m.ID)),
		endpoint: "PUT /models/:id",
		body:     m,
		shape:    modelSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteModel removes a template. Admin only.
func (c *Client) DeleteModel(ctx context.Context, id types.ModelID) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     "/models/" + escape(string(id)),
		endpoint: "DELETE /models/:id",
	})
}
