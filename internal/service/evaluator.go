package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/catalog"
	"github.com/labsense-server/internal/domain"
)

// EvaluationService is the public entry point of the pipeline. It evaluates
// readings against the current catalog snapshot, caches computed bundles
// keyed by input and snapshot fingerprint, and records each evaluation for
// auditability when a store is configured.
type EvaluationService struct {
	provider *catalog.Provider
	engine   *Engine
	cache    domain.SignalCache
	store    domain.EvaluationStore
	log      *logrus.Logger
}

// Option configures an EvaluationService.
type Option func(*EvaluationService)

// WithCache attaches a signal cache.
func WithCache(cache domain.SignalCache) Option {
	return func(s *EvaluationService) { s.cache = cache }
}

// WithStore attaches an evaluation record store.
func WithStore(store domain.EvaluationStore) Option {
	return func(s *EvaluationService) { s.store = store }
}

// NewEvaluationService creates the service around a catalog provider.
func NewEvaluationService(provider *catalog.Provider, logger *logrus.Logger, opts ...Option) *EvaluationService {
	s := &EvaluationService{
		provider: provider,
		engine:   NewEngine(logger),
		log:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate implements domain.Evaluator.
func (s *EvaluationService) Evaluate(ctx context.Context, readings []domain.Reading, profile *domain.PatientProfile) (*domain.ClinicalSignals, error) {
	start := time.Now()

	if err := validateInputs(readings, profile); err != nil {
		return nil, err
	}

	cat := s.provider.Snapshot()

	// The key is derived from the indexed reading map, not the raw request
	// slice: duplicate readings resolve first-wins before hashing, so two
	// requests that the engine would evaluate differently never share a key.
	byTest := s.engine.indexReadings(cat, readings)
	key := cacheKey(cat.Fingerprint(), byTest, profile)

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.log.WithField("cache_key", key[:12]).Debug("Evaluation served from cache")
			return cached, nil
		}
	}

	matches, err := s.engine.evaluateIndexed(cat, byTest, profile)
	if err != nil {
		return nil, err
	}
	signals := Aggregate(cat, matches)

	if s.cache != nil {
		s.cache.Set(ctx, key, signals)
	}
	if s.store != nil {
		s.persistRecord(ctx, readings, profile, signals, matches, time.Since(start))
	}

	s.log.WithFields(logrus.Fields{
		"findings":   len(signals.Findings),
		"conditions": len(signals.Conditions),
		"actions":    len(signals.Actions),
		"took_ms":    time.Since(start).Milliseconds(),
	}).Info("Evaluation completed")

	return signals, nil
}

// persistRecord saves the evaluation best effort. Audit storage being down
// must not fail the evaluation itself.
func (s *EvaluationService) persistRecord(ctx context.Context, readings []domain.Reading, profile *domain.PatientProfile, signals *domain.ClinicalSignals, matches []domain.RuleMatch, took time.Duration) {
	ruleIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		ruleIDs = append(ruleIDs, m.RuleID)
	}
	record := &domain.EvaluationRecord{
		ID:               uuid.New().String(),
		Readings:         readings,
		Profile:          profile,
		Signals:          signals,
		MatchedRuleIDs:   ruleIDs,
		ProcessingTimeMS: took.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.Save(ctx, record); err != nil {
		s.log.WithError(err).WithField("evaluation_id", record.ID).Warn("Failed to persist evaluation record")
	}
}

func validateInputs(readings []domain.Reading, profile *domain.PatientProfile) error {
	if len(readings) == 0 {
		return domain.NewValidationError("readings", "at least one reading is required", nil)
	}
	for i, r := range readings {
		if r.CanonicalName == "" {
			return domain.NewValidationError("readings", "canonical name is required", i)
		}
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return domain.NewValidationError("readings", "value must be a finite number", r.CanonicalName)
		}
		if r.Flag != "" && !r.Flag.IsValid() {
			return domain.NewValidationError("readings", "unrecognized abnormal flag", string(r.Flag))
		}
	}
	if profile != nil {
		if err := profile.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// cacheKey digests the evaluation inputs together with the catalog
// fingerprint, so a reload invalidates prior entries implicitly.
func cacheKey(fingerprint string, byTest map[string]domain.Reading, profile *domain.PatientProfile) string {
	type entry struct {
		TestID  string         `json:"test_id"`
		Reading domain.Reading `json:"reading"`
	}
	entries := make([]entry, 0, len(byTest))
	for id, reading := range byTest {
		entries = append(entries, entry{TestID: id, Reading: reading})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TestID < entries[j].TestID })

	payload := struct {
		Fingerprint string                 `json:"fingerprint"`
		Entries     []entry                `json:"entries"`
		Profile     *domain.PatientProfile `json:"profile,omitempty"`
	}{fingerprint, entries, profile}

	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
