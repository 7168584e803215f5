package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestThresholdValidate(t *testing.T) {
	tests := []struct {
		name      string
		threshold Threshold
		wantErr   bool
	}{
		{
			name:      "value operator with value",
			threshold: Threshold{TestID: "HGB", Operator: OpLessThan, Value: fptr(12)},
		},
		{
			name:      "value operator missing value",
			threshold: Threshold{TestID: "HGB", Operator: OpLessThan},
			wantErr:   true,
		},
		{
			name:      "between with both bounds",
			threshold: Threshold{TestID: "GLU", Operator: OpBetween, ValueMin: fptr(100), ValueMax: fptr(125)},
		},
		{
			name:      "between missing max",
			threshold: Threshold{TestID: "GLU", Operator: OpBetween, ValueMin: fptr(100)},
			wantErr:   true,
		},
		{
			name:      "between inverted bounds",
			threshold: Threshold{TestID: "GLU", Operator: OpBetween, ValueMin: fptr(125), ValueMax: fptr(100)},
			wantErr:   true,
		},
		{
			name:      "abnormal flag needs no bounds",
			threshold: Threshold{TestID: "WBC", Operator: OpAbnormalFlag},
		},
		{
			name:      "missing test id",
			threshold: Threshold{Operator: OpLessThan, Value: fptr(12)},
			wantErr:   true,
		},
		{
			name:      "unknown operator",
			threshold: Threshold{TestID: "HGB", Operator: "EQUALS", Value: fptr(12)},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.threshold.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDemographicConstraintValidate(t *testing.T) {
	valid := DemographicConstraint{RequiredSex: SexFemale, MinAge: iptr(18), MaxAge: iptr(45)}
	assert.NoError(t, valid.Validate())
	assert.False(t, valid.IsEmpty())

	inverted := DemographicConstraint{MinAge: iptr(65), MaxAge: iptr(18)}
	assert.Error(t, inverted.Validate())

	empty := DemographicConstraint{}
	assert.NoError(t, empty.Validate())
	assert.True(t, empty.IsEmpty())
}

func TestRuleValidate(t *testing.T) {
	rule := Rule{
		ID:   "rule-anemia",
		Name: "Anemia pattern",
		Thresholds: []Threshold{
			{TestID: "HGB", Operator: OpLessThan, Value: fptr(12)},
		},
		FindingID: "finding-anemia",
	}
	require.NoError(t, rule.Validate())

	noThresholds := rule
	noThresholds.Thresholds = nil
	assert.Error(t, noThresholds.Validate())

	noFinding := rule
	noFinding.FindingID = ""
	assert.Error(t, noFinding.Validate())

	badConstraint := rule
	badConstraint.Constraint = &DemographicConstraint{MinAge: iptr(90), MaxAge: iptr(10)}
	assert.Error(t, badConstraint.Validate())
}

func TestRuleRequiredTests(t *testing.T) {
	rule := Rule{
		Thresholds: []Threshold{
			{TestID: "WBC", Operator: OpAbnormalFlag},
			{TestID: "HGB", Operator: OpLessThan, Value: fptr(12)},
			{TestID: "HGB", Operator: OpGreaterThan, Value: fptr(6)},
		},
	}
	assert.Equal(t, []string{"HGB", "WBC"}, rule.RequiredTests())
}

func TestPatientProfileValidate(t *testing.T) {
	valid := PatientProfile{
		Age:       30,
		Sex:       SexFemale,
		Pregnancy: PregnancyPregnant,
		Symptoms:  []Symptom{SymptomFatigue},
	}
	assert.NoError(t, valid.Validate())
	assert.True(t, valid.HasSymptom(SymptomFatigue))
	assert.False(t, valid.HasSymptom(SymptomFever))

	tooOld := valid
	tooOld.Age = 121
	assert.Error(t, tooOld.Validate())

	malePregnant := PatientProfile{
		Age:       40,
		Sex:       SexMale,
		Pregnancy: PregnancyPregnant,
		Symptoms:  []Symptom{SymptomNone},
	}
	assert.Error(t, malePregnant.Validate())

	noSymptoms := valid
	noSymptoms.Symptoms = nil
	assert.Error(t, noSymptoms.Validate())

	badSymptom := valid
	badSymptom.Symptoms = []Symptom{"tired"}
	assert.Error(t, badSymptom.Validate())
}

func TestNewClinicalSignals(t *testing.T) {
	signals := NewClinicalSignals()
	require.NotNil(t, signals.Findings)
	require.NotNil(t, signals.Conditions)
	require.NotNil(t, signals.Actions)
	assert.True(t, signals.IsEmpty())

	signals.Findings = append(signals.Findings, MatchedFinding{ID: "finding-a"})
	assert.False(t, signals.IsEmpty())
}
