package configurator

import (
	"context"
	"fmt"

	"github.com/solatis/cpq/internal/types"
)

// Save upserts the configuration: update when the session has a
// configuration id, else create and record the id. Success clears the dirty
// flag unless selections changed while the save was in flight; failure
// leaves it set so the next autosave tick retries.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.st.Model == nil {
		s.mu.Unlock()
		return types.ErrNoModel
	}
	gen, rev := s.generation, s.revision
	modelID := s.st.ModelID
	sel := s.st.Selections.Clone()
	s.mu.Unlock()

	id, created, err := s.ensureConfiguration(ctx, gen)
	if err == nil && !created {
		_, err = s.backend.UpdateConfiguration(ctx, id, modelID, sel)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return errSuperseded
	}
	if err != nil {
		s.st.Err = err
		s.commitLocked()
		return fmt.Errorf("save configuration: %w", err)
	}
	if rev == s.revision {
		s.st.IsDirty = false
		if s.autosave != nil {
			s.autosave.Stop()
		}
	}
	s.st.LastSaved = s.now()
	s.st.Err = nil
	s.commitLocked()
	return nil
}

// autosaveTick saves a dirty session. The timer stops itself once there is
// nothing to save.
func (s *Store) autosaveTick() {
	s.mu.Lock()
	due := !s.closed && s.st.IsDirty && s.st.ConfigurationID != ""
	if !due && s.autosave != nil {
		s.autosave.Stop()
	}
	s.mu.Unlock()
	if !due {
		return
	}

	if err := s.Save(s.bg); err != nil {
		s.log.Warn("autosave failed", "error", err)
	}
}
