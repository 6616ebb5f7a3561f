package configurator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/cpq/internal/types"
)

func TestNew_RejectsNilDependencies(t *testing.T) {
	_, err := New(nil, newFakeModels(), Options{})
	assert.Error(t, err)
	_, err = New(newFakeBackend(), nil, Options{})
	assert.Error(t, err)
	_, err = New(newFakeBackend(), newFakeModels(), Options{MaxRetries: -1})
	assert.Error(t, err)
}

func TestStore_InitialState(t *testing.T) {
	s := newTestStore(t, newFakeBackend(), newFakeModels(), Options{})
	st := s.Snapshot()

	assert.Equal(t, PhaseUninitialized, st.Phase())
	assert.Empty(t, st.Selections)
	assert.True(t, st.IsValid())
	assert.Nil(t, st.Pricing)
	assert.Equal(t, 0.0, st.TotalPrice())
	assert.Empty(t, st.Adjustments())
	assert.Equal(t, 0, st.CurrentStep)
}

func TestStore_SetModelLoadsAndCreatesConfiguration(t *testing.T) {
	s, b := loadedStore(t, Options{})
	st := s.Snapshot()

	assert.Equal(t, PhaseModelReady, st.Phase())
	require.NotNil(t, st.Model)
	assert.Equal(t, types.ModelID("m1"), st.Model.ID)
	assert.Equal(t, types.ConfigurationID("cfg-1"), st.ConfigurationID)
	creates, _, _, _ := b.counts()
	assert.Equal(t, 1, creates)
}

func TestStore_ConfigurationCreationFailureIsDeferred(t *testing.T) {
	b := newFakeBackend()
	b.createErr = errBackendDown
	s := newTestStore(t, b, newFakeModels("m1"), Options{})

	require.NoError(t, s.SetModel(context.Background(), "m1"))
	st := s.Snapshot()
	assert.Equal(t, PhaseModelReady, st.Phase())
	assert.Empty(t, st.ConfigurationID)

	b.with(func(b *fakeBackend) { b.createErr = nil })
	require.NoError(t, s.UpdateSelection("A", 1))
	require.NoError(t, s.Save(context.Background()))

	st = s.Snapshot()
	assert.NotEmpty(t, st.ConfigurationID)
	assert.False(t, st.IsDirty)
	creates, updates, _, _ := b.counts()
	assert.Equal(t, 2, creates)
	assert.Equal(t, 0, updates, "save without an id creates rather than updates")
}

func TestStore_ModelLoadFailureAndRetry(t *testing.T) {
	models := newFakeModels("m1")
	models.setErr(errBackendDown)
	s := newTestStore(t, newFakeBackend(), models, Options{MaxRetries: 2})
	ctx := context.Background()

	err := s.SetModel(ctx, "m1")
	require.ErrorIs(t, err, errBackendDown)
	st := s.Snapshot()
	assert.Equal(t, PhaseError, st.Phase())
	assert.ErrorIs(t, st.Err, errBackendDown)

	require.Error(t, s.RetryLoadModel(ctx))
	assert.Equal(t, 1, s.Snapshot().RetryCount)

	models.setErr(nil)
	require.NoError(t, s.RetryLoadModel(ctx))
	st = s.Snapshot()
	assert.Equal(t, PhaseModelReady, st.Phase())
	assert.NoError(t, st.Err)

	// A successful load leaves nothing to retry.
	assert.NoError(t, s.RetryLoadModel(ctx))
}

func TestStore_RetriesExhausted(t *testing.T) {
	models := newFakeModels("m1")
	models.setErr(errBackendDown)
	s := newTestStore(t, newFakeBackend(), models, Options{MaxRetries: 1})
	ctx := context.Background()

	_ = s.SetModel(ctx, "m1")
	require.ErrorIs(t, s.RetryLoadModel(ctx), errBackendDown)
	require.ErrorIs(t, s.RetryLoadModel(ctx), ErrRetriesExhausted)
	assert.Equal(t, 2, models.calls)

	// Switching models resets the counter.
	_ = s.SetModel(ctx, "m1")
	assert.Equal(t, 0, s.Snapshot().RetryCount)
}

func TestStore_UpdateSelectionErrors(t *testing.T) {
	s := newTestStore(t, newFakeBackend(), newFakeModels("m1"), Options{})
	assert.ErrorIs(t, s.UpdateSelection("A", 1), types.ErrNoModel)

	require.NoError(t, s.SetModel(context.Background(), "m1"))
	assert.ErrorIs(t, s.UpdateSelection("Z", 1), types.ErrUnknownOption)
	assert.Empty(t, s.Snapshot().Selections)
}

func TestStore_UpdateSelectionIsOptimistic(t *testing.T) {
	s, b := loadedStore(t, Options{})

	require.NoError(t, s.UpdateSelection("A", 1))
	st := s.Snapshot()
	assert.Equal(t, types.Selections{"A": 1}, st.Selections)
	assert.True(t, st.IsDirty)
	assert.Equal(t, PhaseSelecting, st.Phase())
	_, _, validates, _ := b.counts()
	assert.Equal(t, 0, validates, "selection must not wait on the backend")

	require.NoError(t, s.UpdateSelection("A", 0))
	assert.Empty(t, s.Snapshot().Selections)
}

func TestStore_ExampleScenario(t *testing.T) {
	s, _ := loadedStore(t, Options{})

	require.NoError(t, s.UpdateSelection("A", 1))
	st := s.Snapshot()
	assert.Equal(t, 100, st.CompletionPercentage())
	require.Len(t, st.SelectedOptions(), 1)
	assert.Equal(t, types.OptionID("A"), st.SelectedOptions()[0].ID)

	require.NoError(t, s.UpdateSelection("C", 2))
	st = s.Snapshot()
	selected := st.SelectedOptions()
	require.Len(t, selected, 2)
	assert.Equal(t, types.OptionID("A"), selected[0].ID)
	assert.Equal(t, types.OptionID("C"), selected[1].ID)
	assert.Equal(t, 2, selected[1].Quantity)
	assert.Equal(t, 20.0, st.Subtotal())
}

func TestStore_InvalidResultSkipsPricing(t *testing.T) {
	s, b := loadedStore(t, Options{})
	b.with(func(b *fakeBackend) {
		b.validation = types.ValidationResult{
			IsValid:    false,
			Violations: []types.Violation{{RuleID: "r1", Severity: types.SeverityError, Message: "A requires C"}},
		}
	})

	require.NoError(t, s.UpdateSelection("A", 1))
	require.True(t, s.ValidateSelections(context.Background()))

	st := s.Snapshot()
	assert.False(t, st.IsValid())
	require.Len(t, st.ValidationResults, 1)
	assert.Equal(t, "r1", st.ValidationResults[0].RuleID)
	assert.Nil(t, st.Pricing)
	_, _, _, prices := b.counts()
	assert.Equal(t, 0, prices)
}

func TestStore_ValidResultTriggersPricing(t *testing.T) {
	s, b := loadedStore(t, Options{})
	b.with(func(b *fakeBackend) {
		b.pricing = types.PricingResult{
			BasePrice:   20,
			TotalPrice:  18,
			Adjustments: []types.Adjustment{{RuleName: "promo", Amount: -2}},
		}
	})

	require.NoError(t, s.UpdateSelection("A", 1))
	require.NoError(t, s.UpdateSelection("C", 2))
	require.True(t, s.ValidateSelections(context.Background()))

	st := s.Snapshot()
	assert.True(t, st.IsValid())
	require.NotNil(t, st.Pricing)
	assert.Equal(t, 18.0, st.TotalPrice())
	assert.Equal(t, 20.0, st.BasePrice())
	assert.Len(t, st.Adjustments(), 1)
	assert.Equal(t, types.Selections{"A": 1, "C": 2}, b.lastValidated)
}

func TestStore_ValidWithNoSelectionsDoesNotPrice(t *testing.T) {
	s, b := loadedStore(t, Options{})

	require.True(t, s.ValidateSelections(context.Background()))
	assert.True(t, s.Snapshot().IsValid())
	_, _, _, prices := b.counts()
	assert.Equal(t, 0, prices)
}

func TestStore_AdvisoriesDoNotAffectValidity(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	s.backend.(*fakeBackend).with(func(b *fakeBackend) {
		b.validation = types.ValidationResult{
			IsValid:    true,
			Violations: []types.Violation{{Severity: types.SeverityInfo, Message: "C ships separately"}},
		}
	})

	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(context.Background())

	st := s.Snapshot()
	assert.True(t, st.IsValid())
	assert.Empty(t, st.ValidationResults)
	require.Len(t, st.Advisories, 1)
	assert.Equal(t, "C ships separately", st.Advisories[0].Message)
	assert.NotNil(t, st.Pricing)
}

func TestStore_InvalidWithoutViolations(t *testing.T) {
	s, b := loadedStore(t, Options{})
	b.with(func(b *fakeBackend) { b.validation = types.ValidationResult{IsValid: false} })

	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(context.Background())

	st := s.Snapshot()
	assert.False(t, st.IsValid())
	assert.Len(t, st.ValidationResults, 1)
}

func TestStore_ValidationFailureIsFailSafe(t *testing.T) {
	s, b := loadedStore(t, Options{})

	// Establish pricing first so the failure has something to clear.
	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(context.Background())
	require.NotNil(t, s.Snapshot().Pricing)

	b.with(func(b *fakeBackend) { b.validateErr = errBackendDown })
	require.True(t, s.ValidateSelections(context.Background()))

	st := s.Snapshot()
	require.Len(t, st.ValidationResults, 1)
	assert.Equal(t, "Validation service unavailable", st.ValidationResults[0].Message)
	assert.False(t, st.IsValidating, "guard released on failure")
	assert.False(t, st.IsValid())
	assert.Nil(t, st.Pricing)
}

func TestStore_ValidationSingleFlight(t *testing.T) {
	s, b := loadedStore(t, Options{})
	gate := make(chan struct{})
	b.with(func(b *fakeBackend) {
		b.validateGate = gate
		b.validateEntered = make(chan struct{}, 1)
	})
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- s.ValidateSelections(ctx) }()
	<-b.validateEntered

	assert.True(t, s.Snapshot().IsValidating)
	assert.Equal(t, PhaseValidating, s.Snapshot().Phase())
	assert.False(t, s.ValidateSelections(ctx), "second trigger is dropped")

	close(gate)
	assert.True(t, <-done)

	_, _, validates, _ := b.counts()
	assert.Equal(t, 1, validates)
	assert.False(t, s.Snapshot().IsValidating)
}

func TestStore_StaleValidationIsDiscarded(t *testing.T) {
	s, b := loadedStore(t, Options{})
	gate := make(chan struct{})
	b.with(func(b *fakeBackend) {
		b.validation = types.ValidationResult{IsValid: false, Violations: []types.Violation{{Message: "stale"}}}
		b.validateGate = gate
		b.validateEntered = make(chan struct{}, 1)
	})
	ctx := context.Background()

	require.NoError(t, s.UpdateSelection("A", 1))
	done := make(chan bool)
	go func() { done <- s.ValidateSelections(ctx) }()
	<-b.validateEntered

	require.NoError(t, s.SetModel(ctx, "m2"))
	close(gate)
	<-done

	st := s.Snapshot()
	assert.Equal(t, types.ModelID("m2"), st.ModelID)
	assert.Empty(t, st.ValidationResults, "response for m1 must not land on m2")
	assert.False(t, st.IsValidating)
	assert.Empty(t, st.Selections)
}

func TestStore_PricingFailureNullsPricing(t *testing.T) {
	s, b := loadedStore(t, Options{})
	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(context.Background())
	require.NotNil(t, s.Snapshot().Pricing)

	b.with(func(b *fakeBackend) { b.priceErr = errBackendDown })
	require.True(t, s.CalculatePricing(context.Background()))

	st := s.Snapshot()
	assert.Nil(t, st.Pricing)
	assert.False(t, st.IsPricing)
	assert.ErrorIs(t, st.PricingErr, errBackendDown)
	assert.NoError(t, st.Err)

	b.with(func(b *fakeBackend) { b.priceErr = nil })
	require.True(t, s.CalculatePricing(context.Background()))
	assert.NoError(t, s.Snapshot().PricingErr)
}

func TestStore_PricingSuccessKeepsSaveError(t *testing.T) {
	s, b := loadedStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.UpdateSelection("A", 1))
	b.with(func(b *fakeBackend) { b.updateFailures = 1 })

	require.Error(t, s.Save(ctx))
	require.True(t, s.ValidateSelections(ctx))

	st := s.Snapshot()
	require.NotNil(t, st.Pricing)
	assert.NoError(t, st.PricingErr)
	assert.ErrorIs(t, st.Err, errBackendDown, "pricing must not clear a save failure")
}

func TestStore_StalePricingIsDiscarded(t *testing.T) {
	s, b := loadedStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.UpdateSelection("A", 1))
	require.True(t, s.ValidateSelections(ctx))

	gate := make(chan struct{})
	b.with(func(b *fakeBackend) {
		b.pricing = types.PricingResult{BasePrice: 99, TotalPrice: 99, Adjustments: []types.Adjustment{}}
		b.priceGate = gate
		b.priceEntered = make(chan struct{}, 1)
	})

	done := make(chan bool)
	go func() { done <- s.CalculatePricing(ctx) }()
	<-b.priceEntered

	require.NoError(t, s.SetModel(ctx, "m2"))
	close(gate)
	assert.True(t, <-done)

	st := s.Snapshot()
	assert.Equal(t, types.ModelID("m2"), st.ModelID)
	assert.Nil(t, st.Pricing, "price for m1 must not land on m2")
	assert.False(t, st.IsPricing)
}

func TestStore_StaleSaveIsDiscarded(t *testing.T) {
	s, b := loadedStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.UpdateSelection("A", 1))

	gate := make(chan struct{})
	b.with(func(b *fakeBackend) {
		b.updateGate = gate
		b.updateEntered = make(chan struct{}, 1)
		b.updateFailures = 1
	})

	done := make(chan error)
	go func() { done <- s.Save(ctx) }()
	<-b.updateEntered

	require.NoError(t, s.SetModel(ctx, "m2"))
	close(gate)
	assert.ErrorIs(t, <-done, errSuperseded)

	st := s.Snapshot()
	assert.Equal(t, types.ModelID("m2"), st.ModelID)
	assert.NoError(t, st.Err, "failure for m1 must not land on m2")
	assert.True(t, st.LastSaved.IsZero())
	assert.False(t, st.IsDirty)
}

func TestStore_SetModelRejectsEmptyID(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	before := s.Snapshot()

	assert.ErrorIs(t, s.SetModel(context.Background(), ""), types.ErrNoModel)

	after := s.Snapshot()
	assert.Equal(t, before.ModelID, after.ModelID)
	assert.Equal(t, before.ConfigurationID, after.ConfigurationID)
	assert.NotNil(t, after.Model)
}

func TestStore_Resume(t *testing.T) {
	b := newFakeBackend()
	b.saved["cfg-42"] = &types.Configuration{
		ID:      "cfg-42",
		ModelID: "m2",
		Selections: []types.Selection{
			{OptionID: "B", Quantity: 1},
			{OptionID: "C", Quantity: 2},
		},
	}
	s := newTestStore(t, b, newFakeModels("m1", "m2"), Options{})

	require.NoError(t, s.Resume(context.Background(), "cfg-42"))
	st := s.Snapshot()
	require.NotNil(t, st.Model)
	assert.Equal(t, types.ModelID("m2"), st.ModelID)
	assert.Equal(t, types.ConfigurationID("cfg-42"), st.ConfigurationID)
	assert.Equal(t, types.Selections{"B": 1, "C": 2}, st.Selections)
	assert.False(t, st.IsDirty)

	creates, _, _, _ := b.counts()
	assert.Equal(t, 0, creates, "resume reuses the stored configuration")
}

func TestStore_ResumeDropsRetiredOptions(t *testing.T) {
	b := newFakeBackend()
	b.saved["cfg-7"] = &types.Configuration{
		ID:         "cfg-7",
		ModelID:    "m1",
		Selections: []types.Selection{{OptionID: "A", Quantity: 1}, {OptionID: "retired", Quantity: 3}},
	}
	s := newTestStore(t, b, newFakeModels("m1"), Options{})

	require.NoError(t, s.Resume(context.Background(), "cfg-7"))
	st := s.Snapshot()
	assert.Equal(t, types.Selections{"A": 1}, st.Selections)
	assert.True(t, st.IsDirty, "dropped options must be saved back")
}

func TestStore_ResumeUnknownConfiguration(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	assert.Error(t, s.Resume(context.Background(), "missing"))
	assert.Equal(t, types.ModelID("m1"), s.Snapshot().ModelID, "session untouched")
}

func TestStore_CalculatePricingRequiresEligibility(t *testing.T) {
	s, b := loadedStore(t, Options{})

	assert.False(t, s.CalculatePricing(context.Background()), "no selections")

	require.NoError(t, s.UpdateSelection("A", 1))
	b.with(func(b *fakeBackend) {
		b.validation = types.ValidationResult{IsValid: false, Violations: []types.Violation{{Message: "no"}}}
	})
	s.ValidateSelections(context.Background())
	assert.False(t, s.CalculatePricing(context.Background()), "invalid session")

	_, _, _, prices := b.counts()
	assert.Equal(t, 0, prices)
}

func TestStore_SaveUpdatesAndClearsDirty(t *testing.T) {
	s, b := loadedStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.UpdateSelection("A", 1))
	b.with(func(b *fakeBackend) { b.updateFailures = 1 })

	require.ErrorIs(t, s.Save(ctx), errBackendDown)
	assert.True(t, s.Snapshot().IsDirty, "failed save leaves the session dirty")

	require.NoError(t, s.Save(ctx))
	st := s.Snapshot()
	assert.False(t, st.IsDirty)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), st.LastSaved)

	creates, updates, _, _ := b.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 2, updates)
}

func TestStore_SaveWithoutModel(t *testing.T) {
	s := newTestStore(t, newFakeBackend(), newFakeModels(), Options{})
	assert.ErrorIs(t, s.Save(context.Background()), types.ErrNoModel)
}

func TestStore_AutosaveRetriesUntilClean(t *testing.T) {
	s, b := loadedStore(t, Options{AutosaveInterval: 10 * time.Millisecond})
	b.with(func(b *fakeBackend) { b.updateFailures = 2 })

	require.NoError(t, s.UpdateSelection("A", 1))

	require.Eventually(t, func() bool {
		return !s.Snapshot().IsDirty
	}, 2*time.Second, 5*time.Millisecond)

	_, updates, _, _ := b.counts()
	assert.GreaterOrEqual(t, updates, 3)
	assert.Eventually(t, func() bool { return !s.autosave.Running() }, time.Second, 5*time.Millisecond)
}

func TestStore_DebouncedValidation(t *testing.T) {
	s, b := loadedStore(t, Options{DebounceDelay: 30 * time.Millisecond})

	require.NoError(t, s.UpdateSelection("A", 1))
	require.NoError(t, s.UpdateSelection("C", 1))
	require.NoError(t, s.UpdateSelection("C", 3))

	require.Eventually(t, func() bool {
		_, _, validates, _ := b.counts()
		return validates == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	_, _, validates, _ := b.counts()
	assert.Equal(t, 1, validates, "a burst produces one trailing pass")
	b.with(func(b *fakeBackend) {
		assert.Equal(t, types.Selections{"A": 1, "C": 3}, b.lastValidated)
	})
}

func TestStore_SetModelResetsEverything(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(ctx)
	require.True(t, s.NextStep())
	require.True(t, s.NextStep())

	require.NoError(t, s.SetModel(ctx, "m2"))
	st := s.Snapshot()
	assert.Empty(t, st.Selections)
	assert.Empty(t, st.ValidationResults)
	assert.Nil(t, st.Pricing)
	assert.Equal(t, 0, st.CurrentStep)
	assert.False(t, st.IsDirty)
	assert.Equal(t, types.ConfigurationID("cfg-2"), st.ConfigurationID)
}

func TestStore_Reset(t *testing.T) {
	s, _ := loadedStore(t, Options{})
	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(context.Background())

	s.Reset()
	st := s.Snapshot()
	assert.NotNil(t, st.Model, "reset keeps the model")
	assert.Empty(t, st.Selections)
	assert.Nil(t, st.Pricing)
	assert.Empty(t, st.ConfigurationID)
	assert.Equal(t, PhaseModelReady, st.Phase())
}

func TestStore_StepNavigation(t *testing.T) {
	s, _ := loadedStore(t, Options{})

	assert.True(t, s.CanProceedToNextStep(), "step 0 needs a model")
	require.True(t, s.NextStep())
	assert.False(t, s.NextStep(), "step 1 needs a selection")

	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(context.Background())
	require.True(t, s.NextStep())
	require.True(t, s.NextStep())
	assert.Equal(t, 3, s.Snapshot().CurrentStep)
	assert.Equal(t, PhaseComplete, s.Snapshot().Phase())
	assert.False(t, s.NextStep(), "no step past the last")

	s.PreviousStep()
	assert.Equal(t, 2, s.Snapshot().CurrentStep)
	s.GoToStep(99)
	assert.Equal(t, 3, s.Snapshot().CurrentStep)
	s.GoToStep(-4)
	assert.Equal(t, 0, s.Snapshot().CurrentStep)
	s.PreviousStep()
	assert.Equal(t, 0, s.Snapshot().CurrentStep)
}

func TestStore_JumpToReviewIsNotComplete(t *testing.T) {
	s, _ := loadedStore(t, Options{})

	s.GoToStep(LastStep)
	st := s.Snapshot()
	assert.Equal(t, LastStep, st.CurrentStep)
	assert.False(t, st.IsComplete())
	assert.Equal(t, PhaseModelReady, st.Phase())

	require.NoError(t, s.UpdateSelection("A", 1))
	assert.Equal(t, PhaseSelecting, s.Snapshot().Phase(), "unpriced selections are not complete")

	s.ValidateSelections(context.Background())
	assert.Equal(t, PhaseComplete, s.Snapshot().Phase())
}

func TestStore_StepTwoNeedsPricing(t *testing.T) {
	s, b := loadedStore(t, Options{})
	b.with(func(b *fakeBackend) { b.priceErr = errBackendDown })

	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(context.Background())
	s.GoToStep(2)
	assert.False(t, s.NextStep())
}

func TestStore_Subscribe(t *testing.T) {
	s, _ := loadedStore(t, Options{})

	var mu sync.Mutex
	var phases []Phase
	cancel := s.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, st.Phase())
	})

	require.NoError(t, s.UpdateSelection("A", 1))
	s.ValidateSelections(context.Background())
	cancel()
	require.NoError(t, s.UpdateSelection("B", 1))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{
		PhaseSelecting,  // update
		PhaseValidating, // validation started
		PhaseSelecting,  // validation committed
		PhasePricing,    // pricing started
		PhaseSelecting,  // pricing committed
	}, phases)
}

func TestStore_SubscribersSeeCommitOrder(t *testing.T) {
	s, _ := loadedStore(t, Options{})

	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var counts []int
	cancel := s.Subscribe(func(st State) {
		if st.Selections["A"] == 1 && len(st.Selections) == 1 {
			once.Do(func() {
				close(entered)
				<-gate
			})
		}
		mu.Lock()
		counts = append(counts, len(st.Selections))
		mu.Unlock()
	})
	defer cancel()

	first := make(chan error)
	go func() { first <- s.UpdateSelection("A", 1) }()
	<-entered

	second := make(chan error)
	go func() { second <- s.UpdateSelection("C", 2) }()
	require.Eventually(t, func() bool {
		return s.Snapshot().Selections["C"] == 2
	}, time.Second, time.Millisecond)

	close(gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, counts)
	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i], counts[i-1], "snapshots delivered out of order: %v", counts)
	}
	assert.Equal(t, 2, counts[len(counts)-1], "last snapshot matches the store")
}

func TestStore_Close(t *testing.T) {
	s, _ := loadedStore(t, Options{AutosaveInterval: time.Hour, DebounceDelay: time.Hour})
	require.NoError(t, s.UpdateSelection("A", 1))
	require.True(t, s.debounce.Pending())
	require.True(t, s.autosave.Running())

	require.NoError(t, s.Close())
	assert.False(t, s.debounce.Pending())
	assert.False(t, s.autosave.Running())
	assert.ErrorIs(t, s.UpdateSelection("A", 2), ErrClosed)
	assert.ErrorIs(t, s.SetModel(context.Background(), "m1"), ErrClosed)
	assert.NoError(t, s.Close(), "close is idempotent")
	assert.ErrorIs(t, s.Save(context.Background()), ErrClosed)
}
