// Package configurator holds the state of one configuration session: the
// active model, the user's selections, and the backend's validation and
// pricing verdicts on them.
//
// Selection changes are applied locally and synchronously; validation and
// pricing follow asynchronously through a debouncer. Each backend pass has
// its own single-flight guard: a trigger while a pass is in flight is
// dropped, not queued. Every model change, reset, or shared-session load
// starts a new generation, and responses belonging to an older generation
// are discarded.
package configurator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solatis/cpq/internal/types"
)

// Backend is the slice of the API client the store drives.
// Implemented by *api.Client.
type Backend interface {
	CreateConfiguration(ctx context.Context, modelID types.ModelID, sel types.Selections) (*types.Configuration, error)
	GetConfiguration(ctx context.Context, id types.ConfigurationID) (*types.Configuration, error)
	UpdateConfiguration(ctx context.Context, id types.ConfigurationID, modelID types.ModelID, sel types.Selections) (*types.Configuration, error)
	ValidateConfiguration(ctx context.Context, id types.ConfigurationID, modelID types.ModelID, sel types.Selections) (*types.ValidationResult, error)
	CalculatePricing(ctx context.Context, modelID types.ModelID, sel types.Selections, pricingContext map[string]any) (*types.PricingResult, error)
}

// ModelSource loads model templates. Implemented by *catalog.Catalog.
type ModelSource interface {
	Model(ctx context.Context, id types.ModelID) (*types.Model, error)
}

// Options configures a Store.
type Options struct {
	// DebounceDelay is the quiescence window before an automatic validation
	// pass. Zero means 400ms; negative disables automatic validation.
	DebounceDelay time.Duration

	// AutosaveInterval is the period of the dirty-session save timer.
	// Zero means 30s; negative disables autosave.
	AutosaveInterval time.Duration

	// MaxRetries bounds RetryLoadModel. Zero allows no retries.
	MaxRetries int

	// PricingContext is sent with every pricing request.
	PricingContext map[string]any

	Logger *slog.Logger
	Now    func() time.Time
}

// errSuperseded marks work whose generation ended while it was in flight.
var errSuperseded = errors.New("superseded by a newer session state")

// Store is one configuration session. Safe for concurrent use.
type Store struct {
	backend        Backend
	models         ModelSource
	log            *slog.Logger
	now            func() time.Time
	maxRetries     int
	pricingContext map[string]any

	// bg scopes timer-driven work; cancelled by Close.
	bg     context.Context
	cancel context.CancelFunc

	debounce *Debouncer
	autosave *Interval

	// createMu serializes lazy configuration creation.
	createMu sync.Mutex

	mu         sync.Mutex
	st         State
	generation uint64
	revision   uint64
	seq        uint64 // commit sequence; guarded by mu
	closed     bool

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int

	// notifyMu serializes delivery; delivered is the newest commit handed
	// to subscribers.
	notifyMu  sync.Mutex
	delivered uint64
}

type subscriber struct {
	id int
	fn func(State)
}

// New creates a store. No timer runs until the session has a dirty selection.
func New(backend Backend, models ModelSource, opts Options) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if models == nil {
		return nil, fmt.Errorf("model source cannot be nil")
	}
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0, got %d", opts.MaxRetries)
	}

	s := &Store{
		backend:        backend,
		models:         models,
		log:            opts.Logger,
		now:            opts.Now,
		maxRetries:     opts.MaxRetries,
		pricingContext: opts.PricingContext,
		st:             initialState(""),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.bg, s.cancel = context.WithCancel(context.Background())

	delay := opts.DebounceDelay
	if delay == 0 {
		delay = 400 * time.Millisecond
	}
	if delay > 0 {
		s.debounce = NewDebouncer(delay, func() { s.ValidateSelections(s.bg) })
	}

	interval := opts.AutosaveInterval
	if interval == 0 {
		interval = 30 * time.Second
	}
	if interval > 0 {
		s.autosave = NewInterval(interval, s.autosaveTick)
	}
	return s, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clone()
}

// Subscribe registers fn to receive a snapshot after committed mutations.
// Snapshots arrive in commit order; one overtaken by a newer commit before
// delivery is skipped, so the last snapshot seen is always the newest.
// fn must not mutate the store. The returned func unregisters it.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(seq uint64, st State) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq

	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(st)
	}
}

// commitLocked snapshots the state and releases the lock, then notifies.
// Must be called with s.mu held.
func (s *Store) commitLocked() State {
	s.seq++
	seq := s.seq
	snap := s.st.clone()
	s.mu.Unlock()
	s.notify(seq, snap)
	return snap
}

// newGenerationLocked invalidates every in-flight pass and pending timer.
func (s *Store) newGenerationLocked() {
	s.generation++
	s.st.IsValidating = false
	s.st.IsPricing = false
	if s.debounce != nil {
		s.debounce.Cancel()
	}
	if s.autosave != nil {
		s.autosave.Stop()
	}
}

// SetModel switches the session to model id and loads it. Every downstream
// fact (selections, validation, pricing, step, configuration) is reset first.
// A load superseded by a newer SetModel returns nil without touching state.
func (s *Store) SetModel(ctx context.Context, id types.ModelID) error {
	if id == "" {
		return types.ErrNoModel
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.newGenerationLocked()
	gen := s.generation
	s.st = initialState(id)
	s.st.IsLoading = true
	s.commitLocked()

	return s.loadModel(ctx, gen, id)
}

// Resume reopens a saved configuration: its model is loaded and its stored
// selections become the session's, bound to the same configuration id.
// Stored options the model no longer offers are dropped, which leaves the
// session dirty. A validation pass is scheduled either way.
func (s *Store) Resume(ctx context.Context, id types.ConfigurationID) error {
	cfg, err := s.backend.GetConfiguration(ctx, id)
	if err != nil {
		return fmt.Errorf("resume configuration %s: %w", id, err)
	}
	if cfg.ModelID == "" {
		return fmt.Errorf("resume configuration %s: %w", id, types.ErrNoModel)
	}
	if cfg.ID != "" {
		id = cfg.ID
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.newGenerationLocked()
	gen := s.generation
	s.st = initialState(cfg.ModelID)
	s.st.ConfigurationID = id
	s.st.IsLoading = true
	s.commitLocked()

	if err := s.loadModel(ctx, gen, cfg.ModelID); err != nil {
		return err
	}

	s.mu.Lock()
	if gen != s.generation || s.st.Model == nil {
		s.mu.Unlock()
		return nil
	}
	sel := types.SelectionsFromItems(cfg.Selections)
	dropped := false
	for optionID := range sel {
		if _, _, ok := s.st.Model.FindOption(optionID); !ok {
			s.log.Warn("dropping stored selection", "configuration_id", id, "option_id", optionID)
			delete(sel, optionID)
			dropped = true
		}
	}
	s.st.Selections = sel
	if dropped {
		s.markDirtyLocked()
	}
	s.commitLocked()

	s.scheduleValidation()
	return nil
}

// RetryLoadModel re-runs a failed model load, at most MaxRetries times per
// model. It is a no-op when the last load did not fail.
func (s *Store) RetryLoadModel(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.st.Err == nil || s.st.Model != nil || s.st.ModelID == "" || s.st.IsLoading {
		s.mu.Unlock()
		return nil
	}
	if s.st.RetryCount >= s.maxRetries {
		s.mu.Unlock()
		return ErrRetriesExhausted
	}
	s.st.RetryCount++
	s.st.IsLoading = true
	gen, id := s.generation, s.st.ModelID
	s.commitLocked()

	return s.loadModel(ctx, gen, id)
}

func (s *Store) loadModel(ctx context.Context, gen uint64, id types.ModelID) error {
	m, err := s.models.Model(ctx, id)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.st.IsLoading = false
	if err != nil {
		s.st.Err = err
		s.commitLocked()
		return fmt.Errorf("load model %s: %w", id, err)
	}
	s.st.Model = m
	s.st.Err = nil
	s.commitLocked()

	if _, _, err := s.ensureConfiguration(ctx, gen); err != nil && !errors.Is(err, errSuperseded) {
		s.log.Warn("deferred configuration creation", "model_id", id, "error", err)
	}
	return nil
}

// ensureConfiguration returns the session's configuration id, creating the
// server-side aggregate on first use. created reports whether this call
// created it.
func (s *Store) ensureConfiguration(ctx context.Context, gen uint64) (id types.ConfigurationID, created bool, err error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return "", false, errSuperseded
	}
	if s.st.ConfigurationID != "" {
		existing := s.st.ConfigurationID
		s.mu.Unlock()
		return existing, false, nil
	}
	modelID := s.st.ModelID
	sel := s.st.Selections.Clone()
	s.mu.Unlock()

	cfg, err := s.backend.CreateConfiguration(ctx, modelID, sel)
	if err != nil {
		return "", false, fmt.Errorf("create configuration: %w", err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return "", false, errSuperseded
	}
	s.st.ConfigurationID = cfg.ID
	if s.st.IsDirty {
		s.armAutosaveLocked()
	}
	s.commitLocked()
	return cfg.ID, true, nil
}

// Reset clears the session for the current model: selections, validation,
// pricing, step, and configuration id. The loaded model is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	s.newGenerationLocked()
	model, id := s.st.Model, s.st.ModelID
	s.st = initialState(id)
	s.st.Model = model
	s.commitLocked()
}

// Close stops all timers and discards in-flight results. It does not save.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.newGenerationLocked()
	s.mu.Unlock()

	s.cancel()
	return nil
}
