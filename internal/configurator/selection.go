package configurator

import (
	"fmt"

	"github.com/solatis/cpq/internal/types"
)

// UpdateSelection sets the quantity of optionID. A quantity <= 0 removes it.
// The change is committed before any backend call, marks the session dirty,
// and schedules a validation pass.
func (s *Store) UpdateSelection(optionID types.OptionID, quantity int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.st.Model == nil {
		s.mu.Unlock()
		return types.ErrNoModel
	}
	if _, _, ok := s.st.Model.FindOption(optionID); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrUnknownOption, optionID)
	}
	s.st.Selections.Set(optionID, quantity)
	s.markDirtyLocked()
	s.commitLocked()

	s.scheduleValidation()
	return nil
}

// ClearSelections removes every selection.
func (s *Store) ClearSelections() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.st.Model == nil {
		s.mu.Unlock()
		return types.ErrNoModel
	}
	s.st.Selections = types.Selections{}
	s.markDirtyLocked()
	s.commitLocked()

	s.scheduleValidation()
	return nil
}

// markDirtyLocked records a selection change and arms autosave once the
// session has a configuration to save into.
func (s *Store) markDirtyLocked() {
	s.st.IsDirty = true
	s.revision++
	if s.st.ConfigurationID != "" {
		s.armAutosaveLocked()
	}
}

func (s *Store) armAutosaveLocked() {
	if s.autosave != nil && !s.closed {
		s.autosave.Start()
	}
}

func (s *Store) scheduleValidation() {
	if s.debounce != nil {
		s.debounce.Trigger()
	}
}
