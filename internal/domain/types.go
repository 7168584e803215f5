// Package domain contains the core business entities for clinical
// rule evaluation over structured lab-test readings: the test and rule
// catalogs, patient context, and the signal bundle the engine produces.
package domain

// Severity represents how serious a matched finding is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// IsValid validates the severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rank returns a numeric rank for ordering, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// UrgencyLevel represents how quickly a condition should be acted on.
type UrgencyLevel string

const (
	UrgencyRoutine   UrgencyLevel = "ROUTINE"
	UrgencySoon      UrgencyLevel = "SOON"
	UrgencyUrgent    UrgencyLevel = "URGENT"
	UrgencyEmergency UrgencyLevel = "EMERGENCY"
)

// IsValid validates the urgency level.
func (u UrgencyLevel) IsValid() bool {
	switch u {
	case UrgencyRoutine, UrgencySoon, UrgencyUrgent, UrgencyEmergency:
		return true
	default:
		return false
	}
}

// Rank returns a numeric rank for ordering, higher is more urgent.
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyEmergency:
		return 4
	case UrgencyUrgent:
		return 3
	case UrgencySoon:
		return 2
	case UrgencyRoutine:
		return 1
	default:
		return 0
	}
}

// String returns the string representation of the urgency level.
func (u UrgencyLevel) String() string {
	return string(u)
}

// ActionPriority represents the priority of a recommended action.
type ActionPriority string

const (
	PriorityLow      ActionPriority = "LOW"
	PriorityMedium   ActionPriority = "MEDIUM"
	PriorityHigh     ActionPriority = "HIGH"
	PriorityCritical ActionPriority = "CRITICAL"
)

// IsValid validates the action priority.
func (p ActionPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Rank returns a numeric rank for ordering, higher is more pressing.
func (p ActionPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Surfaceable reports whether an action of this priority belongs in the
// signal bundle. Low and medium priority actions are deliberately excluded:
// they are not actionable enough to surface as a direct signal.
func (p ActionPriority) Surfaceable() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// String returns the string representation of the priority.
func (p ActionPriority) String() string {
	return string(p)
}

// AbnormalFlag represents an analyzer-reported abnormality marker on a
// reading. The empty value means no flag was reported.
type AbnormalFlag string

const (
	FlagNone     AbnormalFlag = ""
	FlagHigh     AbnormalFlag = "HIGH"
	FlagLow      AbnormalFlag = "LOW"
	FlagHighHigh AbnormalFlag = "HIGH_HIGH"
	FlagLowLow   AbnormalFlag = "LOW_LOW"
)

// IsValid validates the abnormal flag. The empty flag is valid.
func (f AbnormalFlag) IsValid() bool {
	switch f {
	case FlagNone, FlagHigh, FlagLow, FlagHighHigh, FlagLowLow:
		return true
	default:
		return false
	}
}

// IsSet reports whether a recognized abnormality flag is present.
// An unknown flag value is treated as absent, never as present.
func (f AbnormalFlag) IsSet() bool {
	switch f {
	case FlagHigh, FlagLow, FlagHighHigh, FlagLowLow:
		return true
	default:
		return false
	}
}

// SexAtBirth represents the patient's sex assigned at birth.
type SexAtBirth string

const (
	SexFemale       SexAtBirth = "FEMALE"
	SexMale         SexAtBirth = "MALE"
	SexIntersex     SexAtBirth = "INTERSEX"
	SexPreferNotSay SexAtBirth = "PREFER_NOT_SAY"
)

// IsValid validates the sex-at-birth value.
func (s SexAtBirth) IsValid() bool {
	switch s {
	case SexFemale, SexMale, SexIntersex, SexPreferNotSay:
		return true
	default:
		return false
	}
}

// PregnancyStatus represents the patient's pregnancy status.
// Meaningful only when sex at birth is female.
type PregnancyStatus string

const (
	PregnancyPregnant    PregnancyStatus = "PREGNANT"
	PregnancyNotPregnant PregnancyStatus = "NOT_PREGNANT"
	PregnancyUnknown     PregnancyStatus = "UNKNOWN"
)

// IsValid validates the pregnancy status.
func (p PregnancyStatus) IsValid() bool {
	switch p {
	case PregnancyPregnant, PregnancyNotPregnant, PregnancyUnknown:
		return true
	default:
		return false
	}
}

// Symptom is one entry of the enumerated symptom vocabulary a patient can
// report alongside their readings.
type Symptom string

const (
	SymptomNone              Symptom = "NONE"
	SymptomFatigue           Symptom = "FATIGUE"
	SymptomShortnessOfBreath Symptom = "SHORTNESS_OF_BREATH"
	SymptomDizziness         Symptom = "DIZZINESS"
	SymptomFever             Symptom = "FEVER"
	SymptomBruising          Symptom = "BRUISING"
	SymptomBleeding          Symptom = "BLEEDING"
	SymptomPalpitations      Symptom = "PALPITATIONS"
	SymptomWeakness          Symptom = "WEAKNESS"
	SymptomHeadache          Symptom = "HEADACHE"
	SymptomWeightLoss        Symptom = "WEIGHT_LOSS"
)

// IsValid validates the symptom against the vocabulary.
func (s Symptom) IsValid() bool {
	switch s {
	case SymptomNone, SymptomFatigue, SymptomShortnessOfBreath, SymptomDizziness,
		SymptomFever, SymptomBruising, SymptomBleeding, SymptomPalpitations,
		SymptomWeakness, SymptomHeadache, SymptomWeightLoss:
		return true
	default:
		return false
	}
}

// ThresholdOperator represents the comparison kind of a threshold condition.
type ThresholdOperator string

const (
	OpGreaterThan    ThresholdOperator = "GREATER_THAN"
	OpLessThan       ThresholdOperator = "LESS_THAN"
	OpGreaterOrEqual ThresholdOperator = "GREATER_OR_EQUAL"
	OpLessOrEqual    ThresholdOperator = "LESS_OR_EQUAL"
	OpBetween        ThresholdOperator = "BETWEEN"
	OpAbnormalFlag   ThresholdOperator = "ABNORMAL_FLAG"
)

// IsValid validates the operator.
func (op ThresholdOperator) IsValid() bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual, OpBetween, OpAbnormalFlag:
		return true
	default:
		return false
	}
}

// NeedsValue reports whether the operator requires a single numeric bound.
func (op ThresholdOperator) NeedsValue() bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return true
	default:
		return false
	}
}

// NeedsRange reports whether the operator requires a min/max bound pair.
func (op ThresholdOperator) NeedsRange() bool {
	return op == OpBetween
}

// String returns the string representation of the operator.
func (op ThresholdOperator) String() string {
	return string(op)
}

// RuleLogicType tags how a rule's author thinks of it. The tag is
// informational only: every rule evaluates as the conjunction of all its
// thresholds regardless of logic type.
type RuleLogicType string

const (
	LogicThreshold   RuleLogicType = "THRESHOLD"
	LogicCombination RuleLogicType = "COMBINATION"
	LogicPattern     RuleLogicType = "PATTERN"
)

// IsValid validates the logic type.
func (lt RuleLogicType) IsValid() bool {
	switch lt {
	case LogicThreshold, LogicCombination, LogicPattern:
		return true
	default:
		return false
	}
}
