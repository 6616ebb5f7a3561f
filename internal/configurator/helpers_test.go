package configurator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solatis/cpq/internal/types"
)

var errBackendDown = errors.New("connection refused")

// testModel is one required single-select group {A $10, B $20} and one
// optional multi-select group {C $5}.
func testModel(id types.ModelID) *types.Model {
	return &types.Model{
		ID:   id,
		Name: "Model " + string(id),
		OptionGroups: []types.OptionGroup{
			{
				ID: "g1", Name: "Base", SelectionType: types.SelectionSingle, MinSelections: 1, Required: true,
				Options: []types.Option{
					{ID: "A", Name: "Option A", BasePrice: 10, PriceUnit: "each"},
					{ID: "B", Name: "Option B", BasePrice: 20},
				},
			},
			{
				ID: "g2", Name: "Extras", SelectionType: types.SelectionMulti,
				Options: []types.Option{
					{ID: "C", Name: "Option C", BasePrice: 5},
				},
			},
		},
	}
}

type fakeModels struct {
	mu     sync.Mutex
	models map[types.ModelID]*types.Model
	err    error
	calls  int
}

func newFakeModels(ids ...types.ModelID) *fakeModels {
	f := &fakeModels{models: map[types.ModelID]*types.Model{}}
	for _, id := range ids {
		f.models[id] = testModel(id)
	}
	return f
}

func (f *fakeModels) Model(_ context.Context, id types.ModelID) (*types.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.models[id]
	if !ok {
		return nil, fmt.Errorf("model %s not found", id)
	}
	return m, nil
}

func (f *fakeModels) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeBackend struct {
	mu sync.Mutex

	creates, updates, validates, prices int
	nextID                              int

	createErr      error
	updateFailures int
	validateErr    error
	priceErr       error
	validation     types.ValidationResult
	pricing        types.PricingResult
	lastValidated  types.Selections

	// saved backs GetConfiguration.
	saved map[types.ConfigurationID]*types.Configuration

	// When a gate is set, the matching call signals its entered channel
	// and blocks until the gate is closed.
	validateGate    chan struct{}
	validateEntered chan struct{}
	priceGate       chan struct{}
	priceEntered    chan struct{}
	updateGate      chan struct{}
	updateEntered   chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		validation: types.ValidationResult{IsValid: true},
		pricing:    types.PricingResult{BasePrice: 20, TotalPrice: 20, Adjustments: []types.Adjustment{}},
		saved:      map[types.ConfigurationID]*types.Configuration{},
	}
}

// wait blocks on gate when it is set.
func wait(gate, entered chan struct{}) {
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
}

func (b *fakeBackend) with(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) counts() (creates, updates, validates, prices int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates, b.updates, b.validates, b.prices
}

func (b *fakeBackend) CreateConfiguration(_ context.Context, modelID types.ModelID, sel types.Selections) (*types.Configuration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.nextID++
	return &types.Configuration{
		ID:         types.ConfigurationID(fmt.Sprintf("cfg-%d", b.nextID)),
		ModelID:    modelID,
		Selections: sel.Items(),
	}, nil
}

func (b *fakeBackend) GetConfiguration(_ context.Context, id types.ConfigurationID) (*types.Configuration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cfg, ok := b.saved[id]
	if !ok {
		return nil, fmt.Errorf("configuration %s not found", id)
	}
	out := *cfg
	return &out, nil
}

func (b *fakeBackend) UpdateConfiguration(_ context.Context, id types.ConfigurationID, modelID types.ModelID, sel types.Selections) (*types.Configuration, error) {
	b.mu.Lock()
	gate, entered := b.updateGate, b.updateEntered
	b.mu.Unlock()
	wait(gate, entered)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates++
	if b.updateFailures > 0 {
		b.updateFailures--
		return nil, errBackendDown
	}
	return &types.Configuration{ID: id, ModelID: modelID, Selections: sel.Items()}, nil
}

func (b *fakeBackend) ValidateConfiguration(_ context.Context, _ types.ConfigurationID, _ types.ModelID, sel types.Selections) (*types.ValidationResult, error) {
	b.mu.Lock()
	b.validates++
	b.lastValidated = sel.Clone()
	gate, entered := b.validateGate, b.validateEntered
	b.mu.Unlock()
	wait(gate, entered)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.validateErr != nil {
		return nil, b.validateErr
	}
	res := b.validation
	res.Violations = append([]types.Violation{}, b.validation.Violations...)
	return &res, nil
}

func (b *fakeBackend) CalculatePricing(_ context.Context, _ types.ModelID, _ types.Selections, _ map[string]any) (*types.PricingResult, error) {
	b.mu.Lock()
	gate, entered := b.priceGate, b.priceEntered
	b.mu.Unlock()
	wait(gate, entered)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices++
	if b.priceErr != nil {
		return nil, b.priceErr
	}
	res := b.pricing
	return &res, nil
}

// newTestStore builds a store with timers disabled unless opts enables them.
func newTestStore(t *testing.T, b *fakeBackend, m *fakeModels, opts Options) *Store {
	t.Helper()
	if opts.DebounceDelay == 0 {
		opts.DebounceDelay = -1
	}
	if opts.AutosaveInterval == 0 {
		opts.AutosaveInterval = -1
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	}
	s, err := New(b, m, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// loadedStore returns a store with model m1 loaded.
func loadedStore(t *testing.T, opts Options) (*Store, *fakeBackend) {
	t.Helper()
	b := newFakeBackend()
	s := newTestStore(t, b, newFakeModels("m1", "m2"), opts)
	require.NoError(t, s.SetModel(context.Background(), "m1"))
	return s, b
}
