// Package types provides domain models shared across the CPQ client components.
//
// The backend owns every type here except Selections: models, validation
// results and pricing results are server facts that the client renders and
// reconciles but never computes. JSON tags follow the backend's snake_case
// wire format.
package types

import "time"

// ModelID identifies a server-defined product template.
type ModelID string

// OptionID identifies a selectable option within a model.
type OptionID string

// ConfigurationID identifies a server-persisted configuration aggregate.
type ConfigurationID string

// Model is a configurable product template.
// Immutable within a session; replaced wholesale when refetched.
type Model struct {
	ID           ModelID       `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	Category     string        `json:"category,omitempty" yaml:"category,omitempty"`
	OptionGroups []OptionGroup `json:"option_groups" yaml:"option_groups"`
}

// OptionGroup is an ordered set of options with cardinality rules.
// MaxSelections nil means unbounded.
type OptionGroup struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	SelectionType SelectionType `json:"selection_type" yaml:"selection_type"`
	MinSelections int           `json:"min_selections" yaml:"min_selections"`
	MaxSelections *int          `json:"max_selections,omitempty" yaml:"max_selections,omitempty"`
	Required      bool          `json:"required" yaml:"required"`
	Options       []Option      `json:"options" yaml:"options"`
}

// Option is a selectable product component.
// Constraints are human-readable descriptions only and are never evaluated.
type Option struct {
	ID                 OptionID `json:"id" yaml:"id"`
	Name               string   `json:"name" yaml:"name"`
	BasePrice          float64  `json:"base_price" yaml:"base_price"`
	PriceUnit          string   `json:"price_unit,omitempty" yaml:"price_unit,omitempty"`
	Description        string   `json:"description,omitempty" yaml:"description,omitempty"`
	AvailabilityStatus string   `json:"availability_status,omitempty" yaml:"availability_status,omitempty"`
	Constraints        []string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// FindOption returns the option with the given id and its group.
func (m *Model) FindOption(id OptionID) (*Option, *OptionGroup, bool) {
	if m == nil {
		return nil, nil, false
	}
	for gi := range m.OptionGroups {
		g := &m.OptionGroups[gi]
		for oi := range g.Options {
			if g.Options[oi].ID == id {
				return &g.Options[oi], g, true
			}
		}
	}
	return nil, nil, false
}

// ModelFilter narrows a model listing. Zero values are not sent.
type ModelFilter struct {
	Search   string
	Category string
	Active   *bool
}

// Selections maps option ids to quantities.
// A quantity of zero is equivalent to absence; Set prunes it.
type Selections map[OptionID]int

// Set upserts quantity for id, removing the entry when quantity <= 0.
func (s Selections) Set(id OptionID, quantity int) {
	if quantity <= 0 {
		delete(s, id)
		return
	}
	s[id] = quantity
}

// Clone returns an independent copy. A nil receiver yields an empty map.
func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

// Items converts the map to the wire list form.
func (s Selections) Items() []Selection {
	items := make([]Selection, 0, len(s))
	for id, qty := range s {
		if qty > 0 {
			items = append(items, Selection{OptionID: id, Quantity: qty})
		}
	}
	sortSelections(items)
	return items
}

// SelectionsFromItems builds a pruned map from the wire list form.
func SelectionsFromItems(items []Selection) Selections {
	s := make(Selections, len(items))
	for _, it := range items {
		s.Set(it.OptionID, it.Quantity)
	}
	return s
}

// Selection is one option/quantity pair as sent over the wire.
type Selection struct {
	OptionID OptionID `json:"option_id" yaml:"option_id"`
	Quantity int      `json:"quantity" yaml:"quantity"`
}

// Violation is one constraint violation reported by the backend.
type Violation struct {
	RuleID          string     `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	RuleName        string     `json:"rule_name,omitempty" yaml:"rule_name,omitempty"`
	Severity        Severity   `json:"severity" yaml:"severity"`
	Message         string     `json:"message" yaml:"message"`
	AffectedOptions []OptionID `json:"affected_option_ids,omitempty" yaml:"affected_option_ids,omitempty"`
	AffectedGroupID string     `json:"affected_group_id,omitempty" yaml:"affected_group_id,omitempty"`
}

// ValidationResult is the backend's verdict on a set of selections.
// IsValid is read independently of Violations: informational violations
// do not affect validity.
type ValidationResult struct {
	IsValid    bool        `json:"is_valid" yaml:"is_valid"`
	Violations []Violation `json:"violations" yaml:"violations"`
}

// Adjustment is one itemized pricing rule outcome. Negative amounts are discounts.
type Adjustment struct {
	RuleName    string   `json:"rule_name" yaml:"rule_name"`
	Amount      float64  `json:"amount" yaml:"amount"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Percentage  *float64 `json:"percentage,omitempty" yaml:"percentage,omitempty"`
}

// PricingResult is the backend's computed price.
// TotalPrice is a server fact and is never recomputed client-side.
type PricingResult struct {
	BasePrice   float64      `json:"base_price" yaml:"base_price"`
	TotalPrice  float64      `json:"total_price" yaml:"total_price"`
	Adjustments []Adjustment `json:"adjustments" yaml:"adjustments"`
}

// Configuration is the server-persisted session aggregate.
type Configuration struct {
	ID         ConfigurationID `json:"id,omitempty" yaml:"id,omitempty"`
	ModelID    ModelID         `json:"model_id" yaml:"model_id"`
	Selections []Selection     `json:"selections" yaml:"selections"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// ValidateRequest is the body of POST /configurations/:id/validate.
type ValidateRequest struct {
	ModelID    ModelID     `json:"model_id"`
	Selections []Selection `json:"selections,omitempty"`
}

// PricingRequest is the body of POST /pricing/calculate.
type PricingRequest struct {
	ModelID    ModelID        `json:"model_id"`
	Selections []Selection    `json:"selections"`
	Context    map[string]any `json:"context,omitempty"`
}

// User is the authenticated principal as returned by the auth endpoints.
type User struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
}

// AuthSession is the result of login or refresh.
type AuthSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user,omitempty"`
}
