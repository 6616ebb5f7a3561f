package api

import (
	"context"
	"net/http"

	"github.com/solatis/cpq/internal/types"
)

// CalculatePricing prices an ad-hoc selection set without a stored configuration.
// pricingContext carries caller facts such as customer tier; nil sends none.
func (c *Client) CalculatePricing(ctx context.Context, modelID types.ModelID, sel types.Selections, pricingContext map[string]any) (*types.PricingResult, error) {
	var out types.PricingResult
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/pricing/calculate",
		endpoint: "POST /pricing/calculate",
		body:     types.PricingRequest{ModelID: modelID, Selections: sel.Items(), Context: pricingContext},
		shape:    pricingSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
