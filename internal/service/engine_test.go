package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsense-server/internal/catalog"
	"github.com/labsense-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func builtinCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.BuiltinData())
	require.NoError(t, err)
	return cat
}

func matchedRuleIDs(matches []domain.RuleMatch) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.RuleID)
	}
	return ids
}

func TestEngineAnemiaCombination(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 9.5, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 32, Unit: "%"},
	}

	matches, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	require.Contains(t, matchedRuleIDs(matches), "rule-anemia")

	for _, m := range matches {
		if m.RuleID == "rule-anemia" {
			require.Len(t, m.Evidence, 2)
			assert.Equal(t, "Hemoglobin = 9.5 g/dL (< 12)", m.Evidence[0])
			assert.Equal(t, "Hematocrit = 32 % (< 36)", m.Evidence[1])
		}
	}
}

func TestEngineStrictConjunction(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	// Low hemoglobin with a normal hematocrit must not fire the
	// combination rule.
	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 11.5, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 40, Unit: "%"},
	}
	matches, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	assert.NotContains(t, matchedRuleIDs(matches), "rule-anemia")
}

func TestEngineMissingReadingSuppressesRule(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	// Hematocrit is not reported, so the two-conjunct anemia rule cannot
	// fire even though hemoglobin alone is low.
	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 9.5, Unit: "g/dL"},
	}
	matches, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	assert.NotContains(t, matchedRuleIDs(matches), "rule-anemia")
}

func TestEngineUnknownReadingIsIgnored(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	readings := []domain.Reading{
		{CanonicalName: "Serum Unobtainium", Value: 42},
		{CanonicalName: "Platelet Count", Value: 40, Unit: "10^3/uL"},
	}
	matches, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	ids := matchedRuleIDs(matches)
	assert.Contains(t, ids, "rule-critical-thrombocytopenia")
	assert.Contains(t, ids, "rule-thrombocytopenia")
}

func TestEngineAliasResolution(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	readings := []domain.Reading{
		{CanonicalName: "Hb", Value: 6.5, Unit: "g/dL"},
	}
	matches, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	assert.Contains(t, matchedRuleIDs(matches), "rule-severe-anemia")
}

func TestEngineDemographicGating(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 11.2, Unit: "g/dL"},
	}

	// No profile: the pregnancy and elderly variants stay silent.
	matches, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	ids := matchedRuleIDs(matches)
	assert.NotContains(t, ids, "rule-pregnancy-anemia")
	assert.NotContains(t, ids, "rule-elderly-anemia")

	// Pregnant profile at the same hemoglobin fires the pregnancy rule.
	pregnant := &domain.PatientProfile{Age: 28, Sex: domain.SexFemale, Pregnancy: domain.PregnancyPregnant}
	matches, err = engine.EvaluateRules(cat, readings, pregnant)
	require.NoError(t, err)
	assert.Contains(t, matchedRuleIDs(matches), "rule-pregnancy-anemia")

	// Elderly profile fires the 65+ variant at a lower cutoff.
	elderly := &domain.PatientProfile{Age: 72, Sex: domain.SexMale, Pregnancy: domain.PregnancyUnknown}
	readings[0].Value = 10.8
	matches, err = engine.EvaluateRules(cat, readings, elderly)
	require.NoError(t, err)
	assert.Contains(t, matchedRuleIDs(matches), "rule-elderly-anemia")
}

func TestEngineAbnormalFlagRule(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	readings := []domain.Reading{
		{CanonicalName: "White Blood Cell Count", Value: 10.9, Unit: "10^3/uL", Flag: domain.FlagHigh},
	}
	matches, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	require.Contains(t, matchedRuleIDs(matches), "rule-wbc-analyzer-flag")

	for _, m := range matches {
		if m.RuleID == "rule-wbc-analyzer-flag" {
			require.Len(t, m.Evidence, 1)
			assert.Equal(t, "White Blood Cell Count = 10.9 10^3/uL [HIGH] (analyzer flag present)", m.Evidence[0])
		}
	}
}

func TestEngineMatchOrderIsDeterministic(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 6.5, Unit: "g/dL"},
		{CanonicalName: "Hematocrit", Value: 22, Unit: "%"},
		{CanonicalName: "Platelet Count", Value: 40, Unit: "10^3/uL"},
	}

	first, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	for i := 0; i < 10; i++ {
		again, err := engine.EvaluateRules(cat, readings, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEngineDuplicateReadingFirstWins(t *testing.T) {
	engine := NewEngine(testLogger())
	cat := builtinCatalog(t)

	readings := []domain.Reading{
		{CanonicalName: "Hemoglobin", Value: 14, Unit: "g/dL"},
		{CanonicalName: "HGB", Value: 6, Unit: "g/dL"},
	}
	matches, err := engine.EvaluateRules(cat, readings, nil)
	require.NoError(t, err)
	assert.NotContains(t, matchedRuleIDs(matches), "rule-severe-anemia")
}
