package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsense-server/internal/domain"
)

func TestBuiltinCatalogIsValid(t *testing.T) {
	cat, err := New(BuiltinData())
	require.NoError(t, err)
	require.NotNil(t, cat)

	counts := cat.Counts()
	for _, entity := range []string{"tests", "rules", "findings", "conditions", "actions"} {
		assert.Greater(t, counts[entity], 0, "builtin catalog should ship %s", entity)
	}
}

func TestBuiltinCatalogScenarioWiring(t *testing.T) {
	cat, err := New(BuiltinData())
	require.NoError(t, err)

	// Severe anemia must route to an emergency condition with a critical action.
	condIDs := cat.ConditionsFor("finding-severe-anemia")
	require.NotEmpty(t, condIDs)
	foundEmergency := false
	for _, condID := range condIDs {
		cond, ok := cat.Condition(condID)
		require.True(t, ok)
		if cond.Urgency == domain.UrgencyEmergency {
			foundEmergency = true
			actionIDs := cat.ActionsFor(condID)
			require.NotEmpty(t, actionIDs)
			hasCritical := false
			for _, actionID := range actionIDs {
				action, ok := cat.Action(actionID)
				require.True(t, ok)
				if action.Priority == domain.PriorityCritical {
					hasCritical = true
				}
			}
			assert.True(t, hasCritical, "emergency condition %s should carry a critical action", condID)
		}
	}
	assert.True(t, foundEmergency)

	// Pregnancy anemia advice must not hang off the general anemia condition.
	for _, condID := range cat.ConditionsFor("finding-anemia-pattern") {
		for _, actionID := range cat.ActionsFor(condID) {
			assert.NotEqual(t, "act-prenatal-review", actionID)
		}
	}
}

func TestNewRejectsInvalidData(t *testing.T) {
	base := func() Data {
		return Data{
			Tests: []domain.Test{
				{ID: "test-hgb", CanonicalName: "Hemoglobin", Unit: "g/dL"},
			},
			Findings: []domain.Finding{
				{ID: "finding-a", Label: "A", Severity: domain.SeverityLow},
			},
			Conditions: []domain.Condition{
				{ID: "cond-a", Name: "A", Urgency: domain.UrgencyRoutine},
			},
			Actions: []domain.Action{
				{ID: "act-a", Label: "A", Priority: domain.PriorityLow},
			},
			Rules: []domain.Rule{
				{
					ID:        "rule-a",
					Name:      "A",
					LogicType: domain.LogicThreshold,
					FindingID: "finding-a",
					Thresholds: []domain.Threshold{
						{TestID: "test-hgb", Operator: domain.OpLessThan, Value: fptr(12)},
					},
				},
			},
			Indicates:     []Edge{{From: "finding-a", To: "cond-a"}},
			UrgentActions: []Edge{{From: "cond-a", To: "act-a"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Data)
	}{
		{
			name: "duplicate rule id",
			mutate: func(d *Data) {
				d.Rules = append(d.Rules, d.Rules[0])
			},
		},
		{
			name: "duplicate test canonical name",
			mutate: func(d *Data) {
				d.Tests = append(d.Tests, domain.Test{ID: "test-hgb2", CanonicalName: "Hemoglobin", Unit: "g/dL"})
			},
		},
		{
			name: "rule references unknown finding",
			mutate: func(d *Data) {
				d.Rules[0].FindingID = "finding-missing"
			},
		},
		{
			name: "threshold references unknown test",
			mutate: func(d *Data) {
				d.Rules[0].Thresholds[0].TestID = "test-missing"
			},
		},
		{
			name: "rule with no thresholds",
			mutate: func(d *Data) {
				d.Rules[0].Thresholds = nil
			},
		},
		{
			name: "indicates edge with unknown finding",
			mutate: func(d *Data) {
				d.Indicates = append(d.Indicates, Edge{From: "finding-missing", To: "cond-a"})
			},
		},
		{
			name: "indicates edge with unknown condition",
			mutate: func(d *Data) {
				d.Indicates = append(d.Indicates, Edge{From: "finding-a", To: "cond-missing"})
			},
		},
		{
			name: "urgent-action edge with unknown action",
			mutate: func(d *Data) {
				d.UrgentActions = append(d.UrgentActions, Edge{From: "cond-a", To: "act-missing"})
			},
		},
		{
			name: "between threshold with inverted bounds",
			mutate: func(d *Data) {
				d.Rules[0].Thresholds[0] = domain.Threshold{
					TestID:   "test-hgb",
					Operator: domain.OpBetween,
					ValueMin: fptr(10),
					ValueMax: fptr(5),
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := base()
			tt.mutate(&data)
			cat, err := New(data)
			assert.Error(t, err)
			assert.Nil(t, cat)
		})
	}
}

func TestCatalogLookups(t *testing.T) {
	cat, err := New(BuiltinData())
	require.NoError(t, err)

	rule, ok := cat.Rule("rule-anemia")
	require.True(t, ok)
	assert.Equal(t, "finding-anemia-pattern", rule.FindingID)

	test, ok := cat.TestByName("Hemoglobin")
	require.True(t, ok)
	assert.Equal(t, "HGB", test.ID)

	// Aliases resolve to the same test.
	alias, ok := cat.TestByName("Hb")
	require.True(t, ok)
	assert.Equal(t, test.ID, alias.ID)

	_, ok = cat.Rule("rule-missing")
	assert.False(t, ok)
	_, ok = cat.TestByName("No Such Test")
	assert.False(t, ok)
}

func TestRulesOrderIsDeterministic(t *testing.T) {
	cat, err := New(BuiltinData())
	require.NoError(t, err)

	first := cat.Rules()
	for i := 0; i < 5; i++ {
		again := cat.Rules()
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].ID, again[j].ID)
		}
	}
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].ID, first[i].ID)
	}
}

func TestFingerprintStability(t *testing.T) {
	a, err := New(BuiltinData())
	require.NoError(t, err)
	b, err := New(BuiltinData())
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	// Any content change must move the fingerprint.
	data := BuiltinData()
	data.Findings[0].Label = data.Findings[0].Label + " (edited)"
	c, err := New(data)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
