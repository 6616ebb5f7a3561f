package configurator

import (
	"time"

	"github.com/solatis/cpq/internal/types"
)

// Phase is the session's position in the configuration lifecycle.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoadingModel  Phase = "loading_model"
	PhaseModelReady    Phase = "model_ready"
	PhaseSelecting     Phase = "selecting"
	PhaseValidating    Phase = "validating"
	PhasePricing       Phase = "pricing"
	PhaseComplete      Phase = "complete"
	PhaseError         Phase = "error"
)

// Step bounds. Step 3 is the review step and has no forward gate.
const (
	FirstStep = 0
	LastStep  = 3
)

// State is an immutable snapshot of a session. Derived values are methods on
// it and are never stored.
type State struct {
	ModelID         types.ModelID
	Model           *types.Model
	ConfigurationID types.ConfigurationID
	Selections      types.Selections

	// ValidationResults are the blocking violations from the last validation
	// pass. Advisories are violations the backend reported alongside a valid
	// result; they never affect IsValid.
	ValidationResults []types.Violation
	Advisories        []types.Violation
	Pricing           *types.PricingResult

	CurrentStep  int
	IsDirty      bool
	IsLoading    bool
	IsValidating bool
	IsPricing    bool

	// Err is the last model load or save failure. PricingErr is the last
	// pricing failure, cleared by the next successful pass.
	Err        error
	PricingErr error
	RetryCount int
	LastSaved  time.Time
}

// initialState is the state after a model change: every downstream fact reset.
func initialState(id types.ModelID) State {
	return State{
		ModelID:           id,
		Selections:        types.Selections{},
		ValidationResults: []types.Violation{},
		CurrentStep:       FirstStep,
	}
}

func (st State) clone() State {
	out := st
	out.Selections = st.Selections.Clone()
	out.ValidationResults = append([]types.Violation{}, st.ValidationResults...)
	if st.Advisories != nil {
		out.Advisories = append([]types.Violation{}, st.Advisories...)
	}
	if st.Pricing != nil {
		p := *st.Pricing
		p.Adjustments = append([]types.Adjustment{}, st.Pricing.Adjustments...)
		out.Pricing = &p
	}
	return out
}
