// Package service implements the evaluation pipeline: deterministic rule
// matching over lab readings, aggregation of matches into a signal bundle,
// and the orchestrating evaluation service with caching and persistence.
package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/catalog"
	"github.com/labsense-server/internal/domain"
)

// Engine matches catalog rules against a set of readings. It holds no
// mutable state; every call works on the catalog snapshot passed in, so
// concurrent evaluations against different snapshots are safe.
type Engine struct {
	log *logrus.Logger
}

// NewEngine creates a rule engine.
func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{log: logger}
}

// EvaluateRules runs every rule in the catalog against the readings and
// returns the matches in the catalog's sorted rule order. A rule matches
// only when its demographic constraint is satisfied, every test its
// thresholds reference has a reading present, and every threshold holds.
func (e *Engine) EvaluateRules(cat *catalog.Catalog, readings []domain.Reading, profile *domain.PatientProfile) ([]domain.RuleMatch, error) {
	return e.evaluateIndexed(cat, e.indexReadings(cat, readings), profile)
}

func (e *Engine) evaluateIndexed(cat *catalog.Catalog, byTest map[string]domain.Reading, profile *domain.PatientProfile) ([]domain.RuleMatch, error) {
	var matches []domain.RuleMatch
	for _, rule := range cat.Rules() {
		if !ConstraintApplies(rule.Constraint, profile) {
			continue
		}

		match, ok, err := e.evaluateRule(cat, rule, byTest)
		if err != nil {
			return nil, fmt.Errorf("evaluating rule %s: %w", rule.ID, err)
		}
		if ok {
			matches = append(matches, match)
		}
	}

	e.log.WithFields(logrus.Fields{
		"readings": len(byTest),
		"matches":  len(matches),
	}).Debug("Rule evaluation completed")

	return matches, nil
}

// indexReadings resolves readings to catalog tests by canonical name or
// alias. Unrecognized names are skipped; when the same test is reported
// twice the first reading wins.
func (e *Engine) indexReadings(cat *catalog.Catalog, readings []domain.Reading) map[string]domain.Reading {
	byTest := make(map[string]domain.Reading, len(readings))
	for _, r := range readings {
		test, ok := cat.TestByName(r.CanonicalName)
		if !ok {
			e.log.WithField("canonical_name", r.CanonicalName).Debug("Reading does not match any catalog test")
			continue
		}
		if _, dup := byTest[test.ID]; dup {
			e.log.WithField("test_id", test.ID).Warn("Duplicate reading for test, keeping the first")
			continue
		}
		byTest[test.ID] = r
	}
	return byTest
}

func (e *Engine) evaluateRule(cat *catalog.Catalog, rule domain.Rule, byTest map[string]domain.Reading) (domain.RuleMatch, bool, error) {
	evidence := make([]string, 0, len(rule.Thresholds))
	for _, threshold := range rule.Thresholds {
		reading, present := byTest[threshold.TestID]
		if !present {
			// A rule never fires on absent data.
			return domain.RuleMatch{}, false, nil
		}
		holds, err := EvaluateThreshold(threshold, reading)
		if err != nil {
			return domain.RuleMatch{}, false, err
		}
		if !holds {
			return domain.RuleMatch{}, false, nil
		}
		evidence = append(evidence, evidenceLine(cat, threshold, reading))
	}

	return domain.RuleMatch{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		FindingID: rule.FindingID,
		Evidence:  evidence,
	}, true, nil
}

// evidenceLine renders a satisfied conjunct for end users, e.g.
// "Hemoglobin = 9.5 g/dL (< 12)".
func evidenceLine(cat *catalog.Catalog, threshold domain.Threshold, reading domain.Reading) string {
	name := reading.CanonicalName
	if test, ok := cat.Test(threshold.TestID); ok {
		name = test.CanonicalName
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteString(" = ")
	b.WriteString(strconv.FormatFloat(reading.Value, 'f', -1, 64))
	if reading.Unit != "" {
		b.WriteString(" ")
		b.WriteString(reading.Unit)
	}
	if threshold.Operator == domain.OpAbnormalFlag && reading.Flag.IsSet() {
		b.WriteString(" [")
		b.WriteString(string(reading.Flag))
		b.WriteString("]")
	}
	b.WriteString(" (")
	b.WriteString(describeThreshold(threshold))
	b.WriteString(")")
	return b.String()
}
