package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsense-server/internal/catalog"
	"github.com/labsense-server/internal/domain"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.ClinicalSignals
	hits    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.ClinicalSignals)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (*domain.ClinicalSignals, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return s, ok
}

func (c *fakeCache) Set(ctx context.Context, key string, signals *domain.ClinicalSignals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = signals
	c.sets++
}

type fakeStore struct {
	mu      sync.Mutex
	records []*domain.EvaluationRecord
	saveErr error
}

func (s *fakeStore) Save(ctx context.Context, record *domain.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*domain.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) ListRecent(ctx context.Context, limit int) ([]*domain.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

func newTestService(t *testing.T, opts ...Option) *EvaluationService {
	t.Helper()
	provider, err := catalog.NewProvider(context.Background(), catalog.BuiltinSource{}, testLogger())
	require.NoError(t, err)
	return NewEvaluationService(provider, testLogger(), opts...)
}

func TestEvaluateAnemiaScenario(t *testing.T) {
	svc := newTestService(t)

	signals, err := svc.Evaluate(context.Background(), []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 9.5, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 32, Unit: "%"},
	}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, signals.Findings)
	assert.Equal(t, "finding-anemia-pattern", signals.Findings[0].ID)

	condIDs := make([]string, 0, len(signals.Conditions))
	for _, c := range signals.Conditions {
		condIDs = append(condIDs, c.ID)
	}
	assert.Contains(t, condIDs, "cond-anemia")

	actionIDs := make([]string, 0, len(signals.Actions))
	for _, a := range signals.Actions {
		actionIDs = append(actionIDs, a.ID)
		assert.True(t, a.Priority.Surfaceable())
	}
	assert.Contains(t, actionIDs, "act-iron-studies")
	// Prenatal advice must not surface without a pregnant profile.
	assert.NotContains(t, actionIDs, "act-prenatal-review")
}

func TestEvaluateNormalPanelIsSilent(t *testing.T) {
	svc := newTestService(t)

	signals, err := svc.Evaluate(context.Background(), []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 14.2, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 42, Unit: "%"},
		{CanonicalName: "Platelet Count", Value: 250, Unit: "10^3/uL"},
		{CanonicalName: "White Blood Cell Count", Value: 7.5, Unit: "10^3/uL"},
	}, nil)
	require.NoError(t, err)
	assert.True(t, signals.IsEmpty())
	assert.NotNil(t, signals.Findings)
	assert.NotNil(t, signals.Conditions)
	assert.NotNil(t, signals.Actions)
}

func TestEvaluateBacterialInfectionScenario(t *testing.T) {
	svc := newTestService(t)

	signals, err := svc.Evaluate(context.Background(), []domain.Reading{
		{CanonicalName: "White Blood Cell Count", Value: 18.5, Unit: "10^3/uL"},
		{CanonicalName: "Neutrophils Absolute", Value: 12.3, Unit: "10^3/uL"},
	}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, signals.Findings)
	assert.Equal(t, "finding-bacterial-pattern", signals.Findings[0].ID)

	require.NotEmpty(t, signals.Conditions)
	assert.Equal(t, "cond-bacterial-infection", signals.Conditions[0].ID)
	assert.Equal(t, domain.UrgencyUrgent, signals.Conditions[0].Urgency)
}

func TestEvaluatePlateletBoundaryBelowCritical(t *testing.T) {
	svc := newTestService(t)

	// 80 is low but not below the critical cutoff of 50: the low-platelet
	// rule fires, the critical one must not.
	signals, err := svc.Evaluate(context.Background(), []domain.Reading{
		{CanonicalName: "Platelet Count", Value: 80, Unit: "10^3/uL"},
	}, nil)
	require.NoError(t, err)

	findingIDs := make([]string, 0, len(signals.Findings))
	for _, f := range signals.Findings {
		findingIDs = append(findingIDs, f.ID)
	}
	assert.Contains(t, findingIDs, "finding-low-platelets")
	assert.NotContains(t, findingIDs, "finding-critical-thrombocytopenia")
}

func TestEvaluateUnknownTestYieldsEmptyBundle(t *testing.T) {
	svc := newTestService(t)

	signals, err := svc.Evaluate(context.Background(), []domain.Reading{
		{CanonicalName: "NonExistentTest", Value: 100},
	}, nil)
	require.NoError(t, err)
	assert.True(t, signals.IsEmpty())
	assert.NotNil(t, signals.Findings)
	assert.NotNil(t, signals.Conditions)
	assert.NotNil(t, signals.Actions)
}

func TestEvaluatePregnancyScenario(t *testing.T) {
	svc := newTestService(t)

	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 11.2, Unit: "g/dL"},
	}

	// Without a profile the pregnancy-adjusted rule stays silent.
	signals, err := svc.Evaluate(context.Background(), readings, nil)
	require.NoError(t, err)
	assert.True(t, signals.IsEmpty())

	profile := &domain.PatientProfile{Age: 28, Sex: domain.SexFemale, Pregnancy: domain.PregnancyPregnant, Symptoms: []domain.Symptom{domain.SymptomFatigue}}
	signals, err = svc.Evaluate(context.Background(), readings, profile)
	require.NoError(t, err)
	require.NotEmpty(t, signals.Findings)
	assert.Equal(t, "finding-pregnancy-anemia", signals.Findings[0].ID)

	actionIDs := make([]string, 0, len(signals.Actions))
	for _, a := range signals.Actions {
		actionIDs = append(actionIDs, a.ID)
	}
	assert.Contains(t, actionIDs, "act-prenatal-review")
}

func TestEvaluateEmergencyScenario(t *testing.T) {
	svc := newTestService(t)

	signals, err := svc.Evaluate(context.Background(), []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 6.2, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 20, Unit: "%"},
	}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, signals.Findings)
	assert.Equal(t, domain.SeverityCritical, signals.Findings[0].Severity)
	require.NotEmpty(t, signals.Conditions)
	assert.Equal(t, domain.UrgencyEmergency, signals.Conditions[0].Urgency)
	require.NotEmpty(t, signals.Actions)
	assert.Equal(t, "act-er-now", signals.Actions[0].ID)
}

func TestEvaluateInputValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Evaluate(ctx, nil, nil)
	assert.Error(t, err)

	_, err = svc.Evaluate(ctx, []domain.Reading{{CanonicalName: "", Value: 1}}, nil)
	assert.Error(t, err)

	badProfile := &domain.PatientProfile{Age: 200, Sex: domain.SexFemale, Pregnancy: domain.PregnancyUnknown, Symptoms: []domain.Symptom{domain.SymptomNone}}
	_, err = svc.Evaluate(ctx, []domain.Reading{{CanonicalName: "Hemoglobin", Value: 12}}, badProfile)
	assert.Error(t, err)

	malePregnant := &domain.PatientProfile{Age: 30, Sex: domain.SexMale, Pregnancy: domain.PregnancyPregnant, Symptoms: []domain.Symptom{domain.SymptomNone}}
	_, err = svc.Evaluate(ctx, []domain.Reading{{CanonicalName: "Hemoglobin", Value: 12}}, malePregnant)
	assert.Error(t, err)
}

func TestEvaluateUsesCache(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(t, WithCache(cache))
	ctx := context.Background()

	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 9.5, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 32, Unit: "%"},
	}

	first, err := svc.Evaluate(ctx, readings, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 0, cache.hits)

	second, err := svc.Evaluate(ctx, readings, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)

	// Reading order must not affect the cache key.
	reversed := []domain.Reading{readings[1], readings[0]}
	_, err = svc.Evaluate(ctx, reversed, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.hits)

	// A profile changes the key.
	profile := &domain.PatientProfile{Age: 70, Sex: domain.SexMale, Pregnancy: domain.PregnancyUnknown, Symptoms: []domain.Symptom{domain.SymptomNone}}
	_, err = svc.Evaluate(ctx, readings, profile)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.hits)
	assert.Equal(t, 2, cache.sets)
}

func TestEvaluateDuplicateReadingOrderGetsDistinctCacheEntries(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(t, WithCache(cache))
	ctx := context.Background()

	low := domain.Reading{CanonicalName: "Hemoglobin", Value: 6.0, Unit: "g/dL"}
	high := domain.Reading{CanonicalName: "Hemoglobin", Value: 10.0, Unit: "g/dL"}

	// First reading wins, so [low, high] evaluates the severe value.
	first, err := svc.Evaluate(ctx, []domain.Reading{low, high}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first.Findings)
	assert.Equal(t, "finding-severe-anemia", first.Findings[0].ID)

	// Reversed, the effective value is 10.0 and nothing fires. The cache
	// must not hand back the severe bundle for this input.
	second, err := svc.Evaluate(ctx, []domain.Reading{high, low}, nil)
	require.NoError(t, err)
	assert.True(t, second.IsEmpty())
	assert.Equal(t, 0, cache.hits)
	assert.Equal(t, 2, cache.sets)
}

func TestEvaluatePersistsRecords(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, WithStore(store))

	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 9.5, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 32, Unit: "%"},
	}
	signals, err := svc.Evaluate(context.Background(), readings, nil)
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.records, 1)
	record := store.records[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, readings, record.Readings)
	assert.Equal(t, signals, record.Signals)
	assert.Contains(t, record.MatchedRuleIDs, "rule-anemia")
	assert.False(t, record.CreatedAt.IsZero())
}

func TestEvaluateSurvivesStoreFailure(t *testing.T) {
	store := &fakeStore{saveErr: assert.AnError}
	svc := newTestService(t, WithStore(store))

	signals, err := svc.Evaluate(context.Background(), []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 9.5, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 32, Unit: "%"},
	}, nil)
	require.NoError(t, err)
	assert.False(t, signals.IsEmpty())
}
