package configurator

// NextStep advances one step when the current step's gate allows it.
func (s *Store) NextStep() bool {
	s.mu.Lock()
	if s.st.CurrentStep >= LastStep || !s.st.CanProceedToNextStep() {
		s.mu.Unlock()
		return false
	}
	s.st.CurrentStep++
	s.commitLocked()
	return true
}

// PreviousStep moves back one step. Backward navigation is never gated.
func (s *Store) PreviousStep() {
	s.mu.Lock()
	s.goToStepLocked(s.st.CurrentStep - 1)
}

// GoToStep jumps to step, clamped to [FirstStep, LastStep]. Not gated.
func (s *Store) GoToStep(step int) {
	s.mu.Lock()
	s.goToStepLocked(step)
}

func (s *Store) goToStepLocked(step int) {
	step = max(FirstStep, min(step, LastStep))
	if step == s.st.CurrentStep {
		s.mu.Unlock()
		return
	}
	s.st.CurrentStep = step
	s.commitLocked()
}

func (s *Store) CanProceedToNextStep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CanProceedToNextStep()
}
