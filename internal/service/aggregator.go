package service

import (
	"sort"

	"github.com/labsense-server/internal/catalog"
	"github.com/labsense-server/internal/domain"
)

// Aggregate folds rule matches into the client-facing signal bundle:
// findings deduplicated with merged evidence, conditions expanded through
// the catalog graph, and actions filtered to the surfaceable priorities.
// Ordering is fully deterministic: rank descending, then id ascending.
func Aggregate(cat *catalog.Catalog, matches []domain.RuleMatch) *domain.ClinicalSignals {
	signals := domain.NewClinicalSignals()
	if len(matches) == 0 {
		return signals
	}

	// Findings: several rules can point at the same finding; evidence from
	// all of them is merged in match order, deduplicated exactly.
	findingEvidence := make(map[string][]string)
	var findingIDs []string
	for _, m := range matches {
		if _, seen := findingEvidence[m.FindingID]; !seen {
			findingIDs = append(findingIDs, m.FindingID)
		}
		for _, line := range m.Evidence {
			if !containsString(findingEvidence[m.FindingID], line) {
				findingEvidence[m.FindingID] = append(findingEvidence[m.FindingID], line)
			}
		}
	}

	for _, id := range findingIDs {
		finding, ok := cat.Finding(id)
		if !ok {
			continue
		}
		signals.Findings = append(signals.Findings, domain.MatchedFinding{
			ID:          finding.ID,
			Label:       finding.Label,
			Severity:    finding.Severity,
			Description: finding.Description,
			Evidence:    findingEvidence[id],
		})
	}
	sort.SliceStable(signals.Findings, func(i, j int) bool {
		a, b := signals.Findings[i], signals.Findings[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.ID < b.ID
	})

	// Conditions: union over the indicates edges of matched findings,
	// annotated with every contributing finding.
	condFindings := make(map[string][]string)
	for _, f := range signals.Findings {
		for _, condID := range cat.ConditionsFor(f.ID) {
			if !containsString(condFindings[condID], f.ID) {
				condFindings[condID] = append(condFindings[condID], f.ID)
			}
		}
	}
	for condID, fids := range condFindings {
		cond, ok := cat.Condition(condID)
		if !ok {
			continue
		}
		sort.Strings(fids)
		signals.Conditions = append(signals.Conditions, domain.LinkedCondition{
			ID:         cond.ID,
			Name:       cond.Name,
			Urgency:    cond.Urgency,
			FindingIDs: fids,
		})
	}
	sort.SliceStable(signals.Conditions, func(i, j int) bool {
		a, b := signals.Conditions[i], signals.Conditions[j]
		if a.Urgency.Rank() != b.Urgency.Rank() {
			return a.Urgency.Rank() > b.Urgency.Rank()
		}
		return a.ID < b.ID
	})

	// Actions: union over the matched conditions, surfaceable priorities
	// only. Routine-priority guidance stays out of the bundle.
	seenActions := make(map[string]struct{})
	for _, c := range signals.Conditions {
		for _, actionID := range cat.ActionsFor(c.ID) {
			if _, seen := seenActions[actionID]; seen {
				continue
			}
			seenActions[actionID] = struct{}{}
			action, ok := cat.Action(actionID)
			if !ok || !action.Priority.Surfaceable() {
				continue
			}
			signals.Actions = append(signals.Actions, domain.RecommendedAction{
				ID:       action.ID,
				Label:    action.Label,
				Guidance: action.Guidance,
				Priority: action.Priority,
			})
		}
	}
	sort.SliceStable(signals.Actions, func(i, j int) bool {
		a, b := signals.Actions[i], signals.Actions[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.ID < b.ID
	})

	return signals
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
