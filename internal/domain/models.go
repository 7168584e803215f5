package domain

import (
	"fmt"
	"sort"
	"time"
)

// Catalog entities. These are immutable reference data, loaded once from a
// catalog store and never mutated during evaluation.

// Test is one entry of the test catalog: the canonical identity of a lab
// test the rule base can reference.
type Test struct {
	ID            string   `json:"id"`             // stable symbol, e.g. "HGB"
	CanonicalName string   `json:"canonical_name"` // display and matching key
	Unit          string   `json:"unit"`
	Aliases       []string `json:"aliases,omitempty"` // for upstream normalization, unused by the engine
}

// Validate ensures the test entry is usable as catalog reference data.
func (t *Test) Validate() error {
	if t.ID == "" {
		return NewCatalogError("test", t.ID, "id is required")
	}
	if t.CanonicalName == "" {
		return NewCatalogError("test", t.ID, "canonical name is required")
	}
	return nil
}

// Threshold is one conjunct of a rule: a comparison against a single test's
// reading. Bounds are pointers so that an absent bound is distinguishable
// from a zero bound; which bounds must be present depends on the operator
// and is enforced at catalog-load time, not at evaluation time.
type Threshold struct {
	TestID   string            `json:"test_id"`
	Operator ThresholdOperator `json:"operator"`
	Value    *float64          `json:"value,omitempty"`
	ValueMin *float64          `json:"value_min,omitempty"`
	ValueMax *float64          `json:"value_max,omitempty"`
	Unit     string            `json:"unit,omitempty"` // assumed pre-normalized to the reading's unit
}

// Validate checks that the threshold carries exactly the bounds its
// operator needs. A malformed threshold is a configuration error and must
// fail catalog loading rather than corrupt the engine's AND semantics.
func (t *Threshold) Validate() error {
	if t.TestID == "" {
		return NewCatalogError("threshold", t.TestID, "test id is required")
	}
	if !t.Operator.IsValid() {
		return NewCatalogError("threshold", t.TestID, fmt.Sprintf("unsupported operator %q", t.Operator))
	}
	switch {
	case t.Operator.NeedsValue():
		if t.Value == nil {
			return NewCatalogError("threshold", t.TestID, fmt.Sprintf("operator %s requires a value bound", t.Operator))
		}
	case t.Operator.NeedsRange():
		if t.ValueMin == nil || t.ValueMax == nil {
			return NewCatalogError("threshold", t.TestID, "operator BETWEEN requires both min and max bounds")
		}
		if *t.ValueMin > *t.ValueMax {
			return NewCatalogError("threshold", t.TestID,
				fmt.Sprintf("BETWEEN bounds inverted: min %v > max %v", *t.ValueMin, *t.ValueMax))
		}
	}
	return nil
}

// DemographicConstraint gates a rule on patient context. Nil fields mean
// "don't care"; all set fields must match for the rule to apply.
type DemographicConstraint struct {
	RequiredSex      SexAtBirth `json:"required_sex,omitempty"` // empty means any
	MinAge           *int       `json:"min_age,omitempty"`
	MaxAge           *int       `json:"max_age,omitempty"`
	RequiresPregnant *bool      `json:"requires_pregnant,omitempty"`
}

// Validate checks the constraint's internal consistency.
func (c *DemographicConstraint) Validate() error {
	if c.RequiredSex != "" && !c.RequiredSex.IsValid() {
		return NewCatalogError("constraint", "", fmt.Sprintf("invalid required sex %q", c.RequiredSex))
	}
	if c.MinAge != nil && c.MaxAge != nil && *c.MinAge > *c.MaxAge {
		return NewCatalogError("constraint", "",
			fmt.Sprintf("age bounds inverted: min %d > max %d", *c.MinAge, *c.MaxAge))
	}
	return nil
}

// IsEmpty reports whether no field of the constraint is set.
func (c *DemographicConstraint) IsEmpty() bool {
	return c.RequiredSex == "" && c.MinAge == nil && c.MaxAge == nil && c.RequiresPregnant == nil
}

// Rule is one deterministic clinical rule: the conjunction of its
// thresholds, optionally gated by a demographic constraint, producing
// exactly one finding on a full match.
type Rule struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	LogicType  RuleLogicType          `json:"logic_type"`
	Thresholds []Threshold            `json:"thresholds"`
	Constraint *DemographicConstraint `json:"constraint,omitempty"`
	FindingID  string                 `json:"finding_id"`
}

// RequiredTests returns the distinct test ids the rule's thresholds
// reference, in sorted order.
func (r *Rule) RequiredTests() []string {
	seen := make(map[string]struct{}, len(r.Thresholds))
	ids := make([]string, 0, len(r.Thresholds))
	for _, t := range r.Thresholds {
		if _, ok := seen[t.TestID]; ok {
			continue
		}
		seen[t.TestID] = struct{}{}
		ids = append(ids, t.TestID)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the rule for configuration errors. A rule with zero
// thresholds can never match and is rejected outright.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return NewCatalogError("rule", r.ID, "id is required")
	}
	if r.Name == "" {
		return NewCatalogError("rule", r.ID, "name is required")
	}
	if r.LogicType != "" && !r.LogicType.IsValid() {
		return NewCatalogError("rule", r.ID, fmt.Sprintf("invalid logic type %q", r.LogicType))
	}
	if len(r.Thresholds) == 0 {
		return NewCatalogError("rule", r.ID, "rule has zero thresholds and can never match")
	}
	for i := range r.Thresholds {
		if err := r.Thresholds[i].Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}
	if r.Constraint != nil {
		if err := r.Constraint.Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}
	if r.FindingID == "" {
		return NewCatalogError("rule", r.ID, "finding id is required")
	}
	return nil
}

// Finding is the clinical pattern a rule detects. Multiple rules may
// target the same finding through different evidence paths.
type Finding struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
}

// Validate checks the finding entry.
func (f *Finding) Validate() error {
	if f.ID == "" {
		return NewCatalogError("finding", f.ID, "id is required")
	}
	if f.Label == "" {
		return NewCatalogError("finding", f.ID, "label is required")
	}
	if !f.Severity.IsValid() {
		return NewCatalogError("finding", f.ID, fmt.Sprintf("invalid severity %q", f.Severity))
	}
	return nil
}

// Condition is a medical condition reachable from findings via the
// "indicates" relation.
type Condition struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Urgency UrgencyLevel `json:"urgency_level"`
}

// Validate checks the condition entry.
func (c *Condition) Validate() error {
	if c.ID == "" {
		return NewCatalogError("condition", c.ID, "id is required")
	}
	if c.Name == "" {
		return NewCatalogError("condition", c.ID, "name is required")
	}
	if !c.Urgency.IsValid() {
		return NewCatalogError("condition", c.ID, fmt.Sprintf("invalid urgency %q", c.Urgency))
	}
	return nil
}

// Action is a recommended step reachable from conditions via the
// "urgent-action" relation.
type Action struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Guidance string         `json:"guidance,omitempty"`
	Priority ActionPriority `json:"priority"`
}

// Validate checks the action entry.
func (a *Action) Validate() error {
	if a.ID == "" {
		return NewCatalogError("action", a.ID, "id is required")
	}
	if a.Label == "" {
		return NewCatalogError("action", a.ID, "label is required")
	}
	if !a.Priority.IsValid() {
		return NewCatalogError("action", a.ID, fmt.Sprintf("invalid priority %q", a.Priority))
	}
	return nil
}

// Per-request entities. Created fresh per evaluation, never persisted by
// the engine itself.

// Reading is one observed lab value extracted from a patient's report.
// CanonicalName must already be normalized to a Test.CanonicalName by the
// upstream extraction pipeline; the engine does no fuzzy matching.
type Reading struct {
	CanonicalName string       `json:"canonical_name"`
	Value         float64      `json:"value"`
	Unit          string       `json:"unit,omitempty"`
	Flag          AbnormalFlag `json:"abnormal_flag,omitempty"`
}

// PatientProfile is optional per-request demographic context.
type PatientProfile struct {
	Age       int             `json:"age"`
	Sex       SexAtBirth      `json:"sex_at_birth"`
	Pregnancy PregnancyStatus `json:"pregnancy_status"`
	Symptoms  []Symptom       `json:"symptoms"`
}

// Validate enforces the profile invariants: age in range, pregnancy status
// only meaningful for female sex, and a non-empty symptom set drawn from
// the vocabulary.
func (p *PatientProfile) Validate() error {
	if p.Age < 0 || p.Age > 120 {
		return NewValidationError("age", "must be between 0 and 120", p.Age)
	}
	if !p.Sex.IsValid() {
		return NewValidationError("sex_at_birth", "unrecognized value", p.Sex)
	}
	if !p.Pregnancy.IsValid() {
		return NewValidationError("pregnancy_status", "unrecognized value", p.Pregnancy)
	}
	if p.Sex != SexFemale && p.Pregnancy != PregnancyUnknown {
		return NewValidationError("pregnancy_status", "must be UNKNOWN unless sex at birth is female", p.Pregnancy)
	}
	if len(p.Symptoms) == 0 {
		return NewValidationError("symptoms", "at least one symptom entry is required (use NONE)", nil)
	}
	for _, s := range p.Symptoms {
		if !s.IsValid() {
			return NewValidationError("symptoms", "unrecognized symptom", s)
		}
	}
	return nil
}

// HasSymptom reports whether the profile lists the given symptom.
func (p *PatientProfile) HasSymptom(s Symptom) bool {
	for _, have := range p.Symptoms {
		if have == s {
			return true
		}
	}
	return false
}

// Output entities.

// RuleMatch is one fully satisfied rule: the rule, the finding it binds,
// and one evidence string per satisfied threshold. Matches are emitted per
// rule; finding-level deduplication happens in the aggregator.
type RuleMatch struct {
	RuleID    string   `json:"rule_id"`
	RuleName  string   `json:"rule_name"`
	FindingID string   `json:"finding_id"`
	Evidence  []string `json:"evidence"`
}

// MatchedFinding is a deduplicated finding with the evidence of every rule
// that produced it.
type MatchedFinding struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
	Evidence    []string `json:"evidence"`
}

// LinkedCondition is a condition reachable from matched findings, annotated
// with the finding ids that contributed it.
type LinkedCondition struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Urgency    UrgencyLevel `json:"urgency_level"`
	FindingIDs []string     `json:"finding_ids"`
}

// RecommendedAction is a high or critical priority action reachable from a
// matched condition.
type RecommendedAction struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Guidance string         `json:"guidance,omitempty"`
	Priority ActionPriority `json:"priority"`
}

// ClinicalSignals is the engine's output bundle. All slices are always
// non-nil: an empty bundle is a valid, silent outcome and must be
// distinguishable from an evaluation failure by error return, not by shape.
type ClinicalSignals struct {
	Findings   []MatchedFinding    `json:"findings"`
	Conditions []LinkedCondition   `json:"conditions"`
	Actions    []RecommendedAction `json:"actions"`
}

// NewClinicalSignals returns an empty bundle with non-nil slices.
func NewClinicalSignals() *ClinicalSignals {
	return &ClinicalSignals{
		Findings:   []MatchedFinding{},
		Conditions: []LinkedCondition{},
		Actions:    []RecommendedAction{},
	}
}

// IsEmpty reports whether the bundle carries no signal at all.
func (s *ClinicalSignals) IsEmpty() bool {
	return len(s.Findings) == 0 && len(s.Conditions) == 0 && len(s.Actions) == 0
}

// EvaluationRecord is a persisted evaluation for auditability: the inputs
// and the signal bundle they produced.
type EvaluationRecord struct {
	ID               string           `json:"id"`
	Readings         []Reading        `json:"readings"`
	Profile          *PatientProfile  `json:"profile,omitempty"`
	Signals          *ClinicalSignals `json:"signals"`
	MatchedRuleIDs   []string         `json:"matched_rule_ids"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	CreatedAt        time.Time        `json:"created_at"`
}
