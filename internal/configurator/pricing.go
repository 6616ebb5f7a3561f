package configurator

import "context"

// CalculatePricing runs one pricing pass. Pricing requires a valid session
// with at least one selection; otherwise the current pricing is dropped and
// no request is made. Returns false when no request was made.
// A failed pass also drops the pricing rather than leaving it stale.
func (s *Store) CalculatePricing(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed || s.st.Model == nil || s.st.IsPricing {
		s.mu.Unlock()
		return false
	}
	if !s.st.IsValid() || len(s.st.Selections) == 0 {
		if s.st.Pricing != nil || s.st.PricingErr != nil {
			s.st.Pricing = nil
			s.st.PricingErr = nil
			s.commitLocked()
		} else {
			s.mu.Unlock()
		}
		return false
	}
	s.st.IsPricing = true
	gen := s.generation
	modelID := s.st.ModelID
	sel := s.st.Selections.Clone()
	s.commitLocked()

	result, err := s.backend.CalculatePricing(ctx, modelID, sel, s.pricingContext)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return true
	}
	s.st.IsPricing = false
	if err != nil {
		s.log.Warn("pricing pass failed", "model_id", modelID, "error", err)
		s.st.Pricing = nil
		s.st.PricingErr = err
	} else {
		s.st.Pricing = result
		s.st.PricingErr = nil
	}
	s.commitLocked()
	return true
}
