package api

import (
	"context"
	"net/http"

	"github.com/solatis/cpq/internal/types"
)

// CreateConfiguration persists a new configuration aggregate.
func (c *Client) CreateConfiguration(ctx context.Context, modelID types.ModelID, sel types.Selections) (*types.Configuration, error) {
	var out types.Configuration
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/configurations",
		endpoint: "POST /configurations",
		body:     types.Configuration{ModelID: modelID, Selections: sel.Items()},
		shape:    configurationSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetConfiguration(ctx context.Context, id types.ConfigurationID) (*types.Configuration, error) {
	var out types.Configuration
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/configurations/" + escape(string(id)),
		endpoint: "GET /configurations/:id",
		shape:    configurationSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConfiguration replaces the stored selections in place.
func (c *Client) UpdateConfiguration(ctx context.Context, id types.ConfigurationID, modelID types.ModelID, sel types.Selections) (*types.Configuration, error) {
	var out types.Configuration
	err := c.do(ctx, call{
		method:   http.MethodPut,
		path:     "/configurations/" + escape(string(id)),
		endpoint: "PUT /configurations/:id",
		body:     types.Configuration{ID: id, ModelID: modelID, Selections: sel.Items()},
		shape:    configurationSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteConfiguration(ctx context.Context, id types.ConfigurationID) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     "/configurations/" + escape(string(id)),
		endpoint: "DELETE /configurations/:id",
	})
}

// ValidateConfiguration runs the backend constraint engine against sel.
func (c *Client) ValidateConfiguration(ctx context.Context, id types.ConfigurationID, modelID types.ModelID, sel types.Selections) (*types.ValidationResult, error) {
	var out types.ValidationResult
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/configurations/" + escape(string(id)) + "/validate",
		endpoint: "POST /configurations/:id/validate",
		body:     types.ValidateRequest{ModelID: modelID, Selections: sel.Items()},
		shape:    validationSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PriceConfiguration prices the stored configuration.
func (c *Client) PriceConfiguration(ctx context.Context, id types.ConfigurationID) (*types.PricingResult, error) {
	var out types.PricingResult
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/configurations/" + escape(string(id)) + "/price",
		endpoint: "POST /configurations/:id/price",
		shape:    pricingSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddSelection adds one option to a stored configuration.
func (c *Client) AddSelection(ctx context.Context, id types.ConfigurationID, sel types.Selection) (*types.Configuration, error) {
	var out types.Configuration
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/configurations/" + escape(string(id)) + "/selections",
		endpoint: "POST /configurations/:id/selections",
		body:     sel,
		shape:    configurationSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSelection changes the quantity of one stored selection.
func (c *Client) UpdateSelection(ctx context.Context, id types.ConfigurationID, sel types.Selection) (*types.Configuration, error) {
	var out types.Configuration
	err := c.do(ctx, call{
		method:   http.MethodPut,
		path:     "/configurations/" + escape(string(id)) + "/selections/" + escape(string(sel.OptionID)),
		endpoint: "PUT /configurations/:id/selections/:optionId",
		body:     sel,
		shape:    configurationSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveSelection(ctx context.Context, id types.ConfigurationID, optionID types.OptionID) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     "/configurations/" + escape(string(id)) + "/selections/" + escape(string(optionID)),
		endpoint: "DELETE /configurations/:id/selections/:optionId",
	})
}
