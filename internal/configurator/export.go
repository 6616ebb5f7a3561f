package configurator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/solatis/cpq/internal/types"
)

// Format is an export output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json or yaml)", s)
	}
}

// ExportedOption is one selected option line in an export.
type ExportedOption struct {
	OptionID   types.OptionID `json:"option_id" yaml:"option_id"`
	Name       string         `json:"name" yaml:"name"`
	GroupID    string         `json:"group_id" yaml:"group_id"`
	Quantity   int            `json:"quantity" yaml:"quantity"`
	UnitPrice  float64        `json:"unit_price" yaml:"unit_price"`
	PriceUnit  string         `json:"price_unit,omitempty" yaml:"price_unit,omitempty"`
	TotalPrice float64        `json:"total_price" yaml:"total_price"`
}

type ExportedValidation struct {
	IsValid    bool              `json:"is_valid" yaml:"is_valid"`
	Violations []types.Violation `json:"violations" yaml:"violations"`
	Advisories []types.Violation `json:"advisories,omitempty" yaml:"advisories,omitempty"`
}

// Export is a human-readable snapshot for download or printing.
// It is not meant to be loaded back; use a share token for that.
type Export struct {
	ModelID         types.ModelID         `json:"model_id" yaml:"model_id"`
	ModelName       string                `json:"model_name" yaml:"model_name"`
	ConfigurationID types.ConfigurationID `json:"configuration_id,omitempty" yaml:"configuration_id,omitempty"`
	Options         []ExportedOption      `json:"selected_options" yaml:"selected_options"`
	Subtotal        float64               `json:"subtotal" yaml:"subtotal"`
	Pricing         *types.PricingResult  `json:"pricing" yaml:"pricing"`
	Validation      ExportedValidation    `json:"validation" yaml:"validation"`
	Timestamp       time.Time             `json:"timestamp" yaml:"timestamp"`
}

// NewExport builds an export from a snapshot.
func NewExport(st State, at time.Time) (*Export, error) {
	if st.Model == nil {
		return nil, types.ErrNoModel
	}
	selected := st.SelectedOptions()
	options := make([]ExportedOption, 0, len(selected))
	for _, o := range selected {
		options = append(options, ExportedOption{
			OptionID:   o.ID,
			Name:       o.Name,
			GroupID:    o.GroupID,
			Quantity:   o.Quantity,
			UnitPrice:  o.BasePrice,
			PriceUnit:  o.PriceUnit,
			TotalPrice: o.LineTotal(),
		})
	}
	return &Export{
		ModelID:         st.ModelID,
		ModelName:       st.Model.Name,
		ConfigurationID: st.ConfigurationID,
		Options:         options,
		Subtotal:        st.Subtotal(),
		Pricing:         st.Pricing,
		Validation: ExportedValidation{
			IsValid:    st.IsValid(),
			Violations: st.ValidationResults,
			Advisories: st.Advisories,
		},
		Timestamp: at.UTC(),
	}, nil
}

// Export snapshots the current session.
func (s *Store) Export() (*Export, error) {
	return NewExport(s.Snapshot(), s.now())
}

// Write encodes e to w in format.
func (e *Export) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(e); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
