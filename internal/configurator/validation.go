package configurator

import (
	"context"

	"github.com/solatis/cpq/internal/types"
)

// ValidateSelections runs one validation pass against the backend and
// replaces the validation results wholesale. It returns false without calling
// the backend when a pass is already in flight or no model is loaded.
//
// A failed pass leaves a single "service unavailable" result. A valid result
// with selections triggers a pricing pass.
func (s *Store) ValidateSelections(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed || s.st.Model == nil || s.st.IsValidating {
		s.mu.Unlock()
		return false
	}
	s.st.IsValidating = true
	gen := s.generation
	modelID := s.st.ModelID
	sel := s.st.Selections.Clone()
	s.commitLocked()

	result, err := s.validate(ctx, gen, modelID, sel)

	s.mu.Lock()
	if gen != s.generation {
		// The guard belongs to the old generation and was reset with it.
		s.mu.Unlock()
		return true
	}
	s.st.IsValidating = false
	if err != nil {
		s.log.Warn("validation pass failed", "model_id", modelID, "error", err)
		s.st.ValidationResults = []types.Violation{{
			Severity: types.SeverityError,
			Message:  validationUnavailable,
		}}
		s.st.Advisories = nil
		s.st.Pricing = nil
	} else {
		s.st.ValidationResults, s.st.Advisories = partition(result)
		if !s.st.IsValid() || len(s.st.Selections) == 0 {
			s.st.Pricing = nil
		}
	}
	price := s.st.IsValid() && len(s.st.Selections) > 0
	s.commitLocked()

	if price {
		s.CalculatePricing(ctx)
	}
	return true
}

func (s *Store) validate(ctx context.Context, gen uint64, modelID types.ModelID, sel types.Selections) (*types.ValidationResult, error) {
	id, _, err := s.ensureConfiguration(ctx, gen)
	if err != nil {
		return nil, err
	}
	return s.backend.ValidateConfiguration(ctx, id, modelID, sel)
}

// partition splits a backend verdict into blocking results and advisories.
// The backend's is_valid flag decides: violations reported alongside a valid
// verdict are advisories, and an invalid verdict with no violations still
// yields one blocking result.
func partition(r *types.ValidationResult) (blocking, advisories []types.Violation) {
	if r.IsValid {
		if len(r.Violations) > 0 {
			advisories = append([]types.Violation{}, r.Violations...)
		}
		return []types.Violation{}, advisories
	}
	if len(r.Violations) == 0 {
		return []types.Violation{{Severity: types.SeverityError, Message: "Configuration is invalid"}}, nil
	}
	return append([]types.Violation{}, r.Violations...), nil
}
