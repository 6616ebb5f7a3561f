package configurator

import (
	"math"

	"github.com/solatis/cpq/internal/types"
)

// SelectedOption is one option with a positive quantity, in model order.
type SelectedOption struct {
	types.Option `yaml:",inline"`

	GroupID  string `json:"group_id" yaml:"group_id"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

// LineTotal is the optimistic base_price * quantity.
func (o SelectedOption) LineTotal() float64 {
	return o.BasePrice * float64(o.Quantity)
}

// IsValid is true exactly when there are no blocking validation results.
func (st State) IsValid() bool {
	return len(st.ValidationResults) == 0
}

func (st State) BasePrice() float64 {
	if st.Pricing == nil {
		return 0
	}
	return st.Pricing.BasePrice
}

func (st State) TotalPrice() float64 {
	if st.Pricing == nil {
		return 0
	}
	return st.Pricing.TotalPrice
}

func (st State) Adjustments() []types.Adjustment {
	if st.Pricing == nil {
		return []types.Adjustment{}
	}
	return st.Pricing.Adjustments
}

// SelectedOptions flattens every option across all groups with quantity > 0.
func (st State) SelectedOptions() []SelectedOption {
	out := []SelectedOption{}
	if st.Model == nil {
		return out
	}
	for _, g := range st.Model.OptionGroups {
		for _, o := range g.Options {
			if qty := st.Selections[o.ID]; qty > 0 {
				out = append(out, SelectedOption{Option: o, GroupID: g.ID, Quantity: qty})
			}
		}
	}
	return out
}

// Subtotal is the optimistic display price shown while server pricing is
// pending. It is never used in place of TotalPrice.
func (st State) Subtotal() float64 {
	var sum float64
	for _, o := range st.SelectedOptions() {
		sum += o.LineTotal()
	}
	return sum
}

// CompletionPercentage is the share of required groups with at least one
// selected option, rounded. A model with no required groups is 100% complete.
func CompletionPercentage(m *types.Model, sel types.Selections) int {
	if m == nil {
		return 0
	}
	required, satisfied := 0, 0
	for _, g := range m.OptionGroups {
		if !g.Required {
			continue
		}
		required++
		for _, o := range g.Options {
			if sel[o.ID] > 0 {
				satisfied++
				break
			}
		}
	}
	if required == 0 {
		return 100
	}
	return int(math.Round(100 * float64(satisfied) / float64(required)))
}

func (st State) CompletionPercentage() int {
	return CompletionPercentage(st.Model, st.Selections)
}

// CanProceedFrom reports whether forward navigation out of step is allowed.
func (st State) CanProceedFrom(step int) bool {
	switch step {
	case 0:
		return st.Model != nil
	case 1:
		return st.IsValid() && len(st.Selections) > 0
	case 2:
		return st.IsValid() && st.Pricing != nil
	default:
		return true
	}
}

// CanProceedToNextStep gates forward navigation from the current step.
func (st State) CanProceedToNextStep() bool {
	return st.CanProceedFrom(st.CurrentStep)
}

// IsComplete is true on the review step once both step gates before it
// hold. Jumping to the review step does not complete a session.
func (st State) IsComplete() bool {
	return st.CurrentStep >= LastStep && st.CanProceedFrom(1) && st.CanProceedFrom(2)
}

// Phase derives the lifecycle phase from the snapshot.
func (st State) Phase() Phase {
	switch {
	case st.IsLoading:
		return PhaseLoadingModel
	case st.Model == nil && st.Err != nil:
		return PhaseError
	case st.Model == nil:
		return PhaseUninitialized
	case st.IsValidating:
		return PhaseValidating
	case st.IsPricing:
		return PhasePricing
	case st.IsComplete():
		return PhaseComplete
	case len(st.Selections) > 0 || st.IsDirty:
		return PhaseSelecting
	default:
		return PhaseModelReady
	}
}
