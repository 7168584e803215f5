package catalog

import (
	"context"

	"github.com/labsense-server/internal/domain"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func bptr(v bool) *bool       { return &v }

// BuiltinData returns the curated CBC rule base bundled with the binary.
// It backs lite mode and the test suite, and seeds empty SQLite catalogs.
// Test identities and units follow the NHANES CBC variable metadata the
// catalog was originally curated from.
func BuiltinData() Data {
	return Data{
		Tests: []domain.Test{
			{ID: "HGB", CanonicalName: "Hemoglobin", Unit: "g/dL", Aliases: []string{"HGB", "Hb", "Haemoglobin"}},
			{ID: "HCT", CanonicalName: "Hematocrit", Unit: "%", Aliases: []string{"HCT", "PCV", "Packed Cell Volume"}},
			{ID: "WBC", CanonicalName: "White Blood Cell Count", Unit: "10^3/uL", Aliases: []string{"WBC", "Leukocytes", "White Cell Count"}},
			{ID: "NEUT", CanonicalName: "Neutrophils Absolute", Unit: "10^3/uL", Aliases: []string{"ANC", "Absolute Neutrophil Count", "Segmented Neutrophils"}},
			{ID: "PLT", CanonicalName: "Platelet Count", Unit: "10^3/uL", Aliases: []string{"PLT", "Platelets", "Thrombocytes"}},
			{ID: "MCV", CanonicalName: "Mean Corpuscular Volume", Unit: "fL", Aliases: []string{"MCV"}},
			{ID: "RBC", CanonicalName: "Red Blood Cell Count", Unit: "10^6/uL", Aliases: []string{"RBC", "Erythrocytes"}},
			{ID: "GLU", CanonicalName: "Glucose Fasting", Unit: "mg/dL", Aliases: []string{"GLU", "FBS", "Fasting Blood Sugar"}},
		},
		Findings: []domain.Finding{
			{ID: "finding-anemia-pattern", Label: "Anemia Pattern", Severity: domain.SeverityMedium,
				Description: "Hemoglobin and hematocrit are both below their reference ranges, a pattern consistent with anemia."},
			{ID: "finding-severe-anemia", Label: "Severe Anemia Pattern", Severity: domain.SeverityCritical,
				Description: "Hemoglobin is critically low. This level can compromise oxygen delivery to tissues."},
			{ID: "finding-pregnancy-anemia", Label: "Anemia in Pregnancy", Severity: domain.SeverityMedium,
				Description: "Hemoglobin is below the pregnancy-adjusted reference range."},
			{ID: "finding-bacterial-pattern", Label: "Bacterial Infection Pattern", Severity: domain.SeverityHigh,
				Description: "Elevated white cells with a neutrophil predominance, a pattern consistent with acute bacterial infection."},
			{ID: "finding-critical-thrombocytopenia", Label: "Critically Low Platelets", Severity: domain.SeverityCritical,
				Description: "Platelet count is below the level at which spontaneous bleeding becomes a risk."},
			{ID: "finding-low-platelets", Label: "Low Platelet Count", Severity: domain.SeverityMedium,
				Description: "Platelet count is below the reference range."},
			{ID: "finding-microcytosis", Label: "Microcytic Red Cells", Severity: domain.SeverityLow,
				Description: "Red cells are smaller than normal, commonly seen with iron deficiency or thalassemia trait."},
			{ID: "finding-impaired-glucose", Label: "Borderline Fasting Glucose", Severity: domain.SeverityLow,
				Description: "Fasting glucose is in the impaired range, above normal but below the diabetic threshold."},
			{ID: "finding-analyzer-flag-wbc", Label: "Analyzer-Flagged White Cell Count", Severity: domain.SeverityLow,
				Description: "The laboratory analyzer flagged the white cell count as outside its reference interval."},
		},
		Conditions: []domain.Condition{
			{ID: "cond-anemia", Name: "Anemia", Urgency: domain.UrgencySoon},
			{ID: "cond-pregnancy-anemia", Name: "Anemia in Pregnancy", Urgency: domain.UrgencySoon},
			{ID: "cond-severe-anemia", Name: "Severe Anemia", Urgency: domain.UrgencyEmergency},
			{ID: "cond-bacterial-infection", Name: "Acute Bacterial Infection", Urgency: domain.UrgencyUrgent},
			{ID: "cond-bleeding-risk", Name: "Bleeding Risk", Urgency: domain.UrgencyEmergency},
			{ID: "cond-thrombocytopenia", Name: "Thrombocytopenia", Urgency: domain.UrgencySoon},
			{ID: "cond-iron-deficiency", Name: "Possible Iron Deficiency", Urgency: domain.UrgencyRoutine},
			{ID: "cond-prediabetes", Name: "Prediabetes", Urgency: domain.UrgencyRoutine},
		},
		Actions: []domain.Action{
			{ID: "act-er-now", Label: "Seek emergency care now", Priority: domain.PriorityCritical,
				Guidance: "Go to the nearest emergency department or call emergency services. Bring this report with you."},
			{ID: "act-md-48h", Label: "See a doctor within 48 hours", Priority: domain.PriorityHigh,
				Guidance: "Book an appointment with your physician within the next two days and bring this report."},
			{ID: "act-iron-studies", Label: "Ask about iron studies", Priority: domain.PriorityHigh,
				Guidance: "Ask your physician whether ferritin and iron studies are appropriate to find the cause."},
			{ID: "act-prenatal-review", Label: "Discuss at next prenatal visit", Priority: domain.PriorityHigh,
				Guidance: "Share this result with your prenatal care provider at the next visit."},
			{ID: "act-recheck-cbc", Label: "Repeat the blood count", Priority: domain.PriorityMedium,
				Guidance: "A repeat complete blood count in 2-4 weeks can confirm whether the result persists."},
			{ID: "act-lifestyle-glucose", Label: "Review diet and activity", Priority: domain.PriorityLow,
				Guidance: "Diet and activity changes meaningfully reduce progression from borderline glucose levels."},
		},
		Rules: []domain.Rule{
			{
				ID: "rule-anemia", Name: "Anemia Detection", LogicType: domain.LogicCombination,
				Thresholds: []domain.Threshold{
					{TestID: "HGB", Operator: domain.OpLessThan, Value: fptr(12.0), Unit: "g/dL"},
					{TestID: "HCT", Operator: domain.OpLessThan, Value: fptr(36.0), Unit: "%"},
				},
				FindingID: "finding-anemia-pattern",
			},
			{
				ID: "rule-severe-anemia", Name: "Severe Anemia Detection", LogicType: domain.LogicThreshold,
				Thresholds: []domain.Threshold{
					{TestID: "HGB", Operator: domain.OpLessThan, Value: fptr(7.0), Unit: "g/dL"},
				},
				FindingID: "finding-severe-anemia",
			},
			{
				ID: "rule-pregnancy-anemia", Name: "Pregnancy Anemia Detection", LogicType: domain.LogicThreshold,
				Thresholds: []domain.Threshold{
					{TestID: "HGB", Operator: domain.OpLessThan, Value: fptr(11.5), Unit: "g/dL"},
				},
				Constraint: &domain.DemographicConstraint{
					RequiredSex:      domain.SexFemale,
					RequiresPregnant: bptr(true),
				},
				FindingID: "finding-pregnancy-anemia",
			},
			{
				ID: "rule-elderly-anemia", Name: "Anemia Detection (65+)", LogicType: domain.LogicThreshold,
				Thresholds: []domain.Threshold{
					{TestID: "HGB", Operator: domain.OpLessThan, Value: fptr(11.0), Unit: "g/dL"},
				},
				Constraint: &domain.DemographicConstraint{MinAge: iptr(65)},
				FindingID:  "finding-anemia-pattern",
			},
			{
				ID: "rule-bacterial-infection", Name: "Acute Bacterial Infection Detection", LogicType: domain.LogicCombination,
				Thresholds: []domain.Threshold{
					{TestID: "WBC", Operator: domain.OpGreaterThan, Value: fptr(11.0), Unit: "10^3/uL"},
					{TestID: "NEUT", Operator: domain.OpGreaterThan, Value: fptr(7.5), Unit: "10^3/uL"},
				},
				FindingID: "finding-bacterial-pattern",
			},
			{
				ID: "rule-critical-thrombocytopenia", Name: "Critical Thrombocytopenia Detection", LogicType: domain.LogicThreshold,
				Thresholds: []domain.Threshold{
					{TestID: "PLT", Operator: domain.OpLessThan, Value: fptr(50.0), Unit: "10^3/uL"},
				},
				FindingID: "finding-critical-thrombocytopenia",
			},
			{
				ID: "rule-thrombocytopenia", Name: "Thrombocytopenia Detection", LogicType: domain.LogicThreshold,
				Thresholds: []domain.Threshold{
					{TestID: "PLT", Operator: domain.OpLessThan, Value: fptr(150.0), Unit: "10^3/uL"},
				},
				FindingID: "finding-low-platelets",
			},
			{
				ID: "rule-microcytosis", Name: "Microcytosis Detection", LogicType: domain.LogicPattern,
				Thresholds: []domain.Threshold{
					{TestID: "MCV", Operator: domain.OpLessThan, Value: fptr(80.0), Unit: "fL"},
					{TestID: "RBC", Operator: domain.OpGreaterOrEqual, Value: fptr(3.5), Unit: "10^6/uL"},
				},
				FindingID: "finding-microcytosis",
			},
			{
				ID: "rule-impaired-glucose", Name: "Impaired Fasting Glucose Detection", LogicType: domain.LogicThreshold,
				Thresholds: []domain.Threshold{
					{TestID: "GLU", Operator: domain.OpBetween, ValueMin: fptr(100.0), ValueMax: fptr(125.0), Unit: "mg/dL"},
				},
				FindingID: "finding-impaired-glucose",
			},
			{
				ID: "rule-wbc-analyzer-flag", Name: "Analyzer Flag on White Cell Count", LogicType: domain.LogicThreshold,
				Thresholds: []domain.Threshold{
					{TestID: "WBC", Operator: domain.OpAbnormalFlag},
				},
				FindingID: "finding-analyzer-flag-wbc",
			},
		},
		Indicates: []Edge{
			{From: "finding-anemia-pattern", To: "cond-anemia"},
			{From: "finding-severe-anemia", To: "cond-severe-anemia"},
			{From: "finding-pregnancy-anemia", To: "cond-pregnancy-anemia"},
			{From: "finding-bacterial-pattern", To: "cond-bacterial-infection"},
			{From: "finding-critical-thrombocytopenia", To: "cond-bleeding-risk"},
			{From: "finding-low-platelets", To: "cond-thrombocytopenia"},
			{From: "finding-microcytosis", To: "cond-iron-deficiency"},
			{From: "finding-anemia-pattern", To: "cond-iron-deficiency"},
			{From: "finding-impaired-glucose", To: "cond-prediabetes"},
		},
		UrgentActions: []Edge{
			{From: "cond-severe-anemia", To: "act-er-now"},
			{From: "cond-bleeding-risk", To: "act-er-now"},
			{From: "cond-bacterial-infection", To: "act-md-48h"},
			{From: "cond-anemia", To: "act-iron-studies"},
			{From: "cond-anemia", To: "act-recheck-cbc"},
			{From: "cond-pregnancy-anemia", To: "act-prenatal-review"},
			{From: "cond-thrombocytopenia", To: "act-recheck-cbc"},
			{From: "cond-iron-deficiency", To: "act-recheck-cbc"},
			{From: "cond-prediabetes", To: "act-lifestyle-glucose"},
		},
	}
}

// BuiltinSource loads the bundled catalog. It is the default source for
// lite mode.
type BuiltinSource struct{}

// Load implements Source.
func (BuiltinSource) Load(_ context.Context) (*Catalog, error) {
	return New(BuiltinData())
}
