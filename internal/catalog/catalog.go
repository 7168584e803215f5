// Package catalog holds the immutable in-memory rule and test catalogs the
// evaluation engine reads. A Catalog is assembled once from a Source,
// validated exhaustively, and then never mutated; hot reload swaps whole
// snapshots atomically so in-flight evaluations always see a consistent
// rule base.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/labsense-server/internal/domain"
)

// Edge is a directed relationship between two catalog entities.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Data is the raw catalog content a Source produces. New validates it and
// freezes it into a Catalog.
type Data struct {
	Tests         []domain.Test
	Rules         []domain.Rule
	Findings      []domain.Finding
	Conditions    []domain.Condition
	Actions       []domain.Action
	Indicates     []Edge // finding -> condition
	UrgentActions []Edge // condition -> action
}

// Catalog is an immutable snapshot of the rule base, held as maps keyed by
// stable string ids with sorted adjacency lists. All accessors are safe for
// concurrent use.
type Catalog struct {
	tests       map[string]domain.Test
	testsByName map[string]string // canonical name or alias -> test id
	rules       map[string]domain.Rule
	ruleIDs     []string // sorted, the engine's deterministic iteration order
	findings    map[string]domain.Finding
	conditions  map[string]domain.Condition
	actions     map[string]domain.Action

	indicates     map[string][]string // finding id -> sorted condition ids
	urgentActions map[string][]string // condition id -> sorted action ids

	fingerprint string
}

// New validates the raw catalog content and assembles an immutable
// snapshot. Any configuration error fails the whole load: a corrupt
// catalog must never serve.
func New(data Data) (*Catalog, error) {
	c := &Catalog{
		tests:         make(map[string]domain.Test, len(data.Tests)),
		testsByName:   make(map[string]string, len(data.Tests)),
		rules:         make(map[string]domain.Rule, len(data.Rules)),
		findings:      make(map[string]domain.Finding, len(data.Findings)),
		conditions:    make(map[string]domain.Condition, len(data.Conditions)),
		actions:       make(map[string]domain.Action, len(data.Actions)),
		indicates:     make(map[string][]string),
		urgentActions: make(map[string][]string),
	}

	for _, t := range data.Tests {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.tests[t.ID]; dup {
			return nil, domain.NewCatalogError("test", t.ID, "duplicate test id")
		}
		if _, dup := c.testsByName[t.CanonicalName]; dup {
			return nil, domain.NewCatalogError("test", t.ID,
				fmt.Sprintf("duplicate canonical name %q", t.CanonicalName))
		}
		c.tests[t.ID] = t
		c.testsByName[t.CanonicalName] = t.ID
		for _, alias := range t.Aliases {
			if _, dup := c.testsByName[alias]; dup {
				return nil, domain.NewCatalogError("test", t.ID,
					fmt.Sprintf("alias %q collides with another test name", alias))
			}
			c.testsByName[alias] = t.ID
		}
	}

	for _, f := range data.Findings {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.findings[f.ID]; dup {
			return nil, domain.NewCatalogError("finding", f.ID, "duplicate finding id")
		}
		c.findings[f.ID] = f
	}

	for _, cond := range data.Conditions {
		if err := cond.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.conditions[cond.ID]; dup {
			return nil, domain.NewCatalogError("condition", cond.ID, "duplicate condition id")
		}
		c.conditions[cond.ID] = cond
	}

	for _, a := range data.Actions {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.actions[a.ID]; dup {
			return nil, domain.NewCatalogError("action", a.ID, "duplicate action id")
		}
		c.actions[a.ID] = a
	}

	for _, r := range data.Rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.rules[r.ID]; dup {
			return nil, domain.NewCatalogError("rule", r.ID, "duplicate rule id")
		}
		for _, t := range r.Thresholds {
			if _, ok := c.tests[t.TestID]; !ok {
				return nil, domain.NewCatalogError("rule", r.ID,
					fmt.Sprintf("threshold references unknown test %q", t.TestID))
			}
		}
		if _, ok := c.findings[r.FindingID]; !ok {
			return nil, domain.NewCatalogError("rule", r.ID,
				fmt.Sprintf("references unknown finding %q", r.FindingID))
		}
		c.rules[r.ID] = r
		c.ruleIDs = append(c.ruleIDs, r.ID)
	}
	sort.Strings(c.ruleIDs)

	for _, e := range data.Indicates {
		if _, ok := c.findings[e.From]; !ok {
			return nil, domain.NewCatalogError("edge", e.From,
				fmt.Sprintf("indicates edge from unknown finding %q", e.From))
		}
		if _, ok := c.conditions[e.To]; !ok {
			return nil, domain.NewCatalogError("edge", e.To,
				fmt.Sprintf("indicates edge to unknown condition %q", e.To))
		}
		c.indicates[e.From] = append(c.indicates[e.From], e.To)
	}
	for _, e := range data.UrgentActions {
		if _, ok := c.conditions[e.From]; !ok {
			return nil, domain.NewCatalogError("edge", e.From,
				fmt.Sprintf("urgent-action edge from unknown condition %q", e.From))
		}
		if _, ok := c.actions[e.To]; !ok {
			return nil, domain.NewCatalogError("edge", e.To,
				fmt.Sprintf("urgent-action edge to unknown action %q", e.To))
		}
		c.urgentActions[e.From] = append(c.urgentActions[e.From], e.To)
	}

	// Adjacency lists are sorted and deduplicated so traversal never
	// depends on source row order.
	for k := range c.indicates {
		c.indicates[k] = sortedUnique(c.indicates[k])
	}
	for k := range c.urgentActions {
		c.urgentActions[k] = sortedUnique(c.urgentActions[k])
	}

	c.fingerprint = computeFingerprint(data)
	return c, nil
}

// Fingerprint is a stable digest of the catalog content, used to scope
// cached evaluation results to the snapshot that produced them.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}

// Rules returns all rules in sorted id order.
func (c *Catalog) Rules() []domain.Rule {
	out := make([]domain.Rule, 0, len(c.ruleIDs))
	for _, id := range c.ruleIDs {
		out = append(out, c.rules[id])
	}
	return out
}

// Rule returns the rule with the given id.
func (c *Catalog) Rule(id string) (domain.Rule, bool) {
	r, ok := c.rules[id]
	return r, ok
}

// Test returns the test with the given id.
func (c *Catalog) Test(id string) (domain.Test, bool) {
	t, ok := c.tests[id]
	return t, ok
}

// TestByName returns the test whose canonical name or alias matches exactly.
func (c *Catalog) TestByName(canonicalName string) (domain.Test, bool) {
	id, ok := c.testsByName[canonicalName]
	if !ok {
		return domain.Test{}, false
	}
	return c.tests[id], true
}

// Tests returns all tests in sorted id order.
func (c *Catalog) Tests() []domain.Test {
	ids := make([]string, 0, len(c.tests))
	for id := range c.tests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.Test, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.tests[id])
	}
	return out
}

// Finding returns the finding with the given id.
func (c *Catalog) Finding(id string) (domain.Finding, bool) {
	f, ok := c.findings[id]
	return f, ok
}

// Condition returns the condition with the given id.
func (c *Catalog) Condition(id string) (domain.Condition, bool) {
	cond, ok := c.conditions[id]
	return cond, ok
}

// Action returns the action with the given id.
func (c *Catalog) Action(id string) (domain.Action, bool) {
	a, ok := c.actions[id]
	return a, ok
}

// ConditionsFor returns the ids of conditions the given finding indicates,
// in sorted order.
func (c *Catalog) ConditionsFor(findingID string) []string {
	return c.indicates[findingID]
}

// ActionsFor returns the ids of actions linked to the given condition, in
// sorted order.
func (c *Catalog) ActionsFor(conditionID string) []string {
	return c.urgentActions[conditionID]
}

// Counts returns entity counts for logging and health reporting.
func (c *Catalog) Counts() map[string]int {
	return map[string]int{
		"tests":      len(c.tests),
		"rules":      len(c.rules),
		"findings":   len(c.findings),
		"conditions": len(c.conditions),
		"actions":    len(c.actions),
	}
}

func sortedUnique(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, v := range in {
		if i > 0 && in[i-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}

// computeFingerprint digests the catalog content in a canonical order.
func computeFingerprint(data Data) string {
	canon := struct {
		Tests         []domain.Test
		Rules         []domain.Rule
		Findings      []domain.Finding
		Conditions    []domain.Condition
		Actions       []domain.Action
		Indicates     []Edge
		UrgentActions []Edge
	}{
		Tests:         append([]domain.Test(nil), data.Tests...),
		Rules:         append([]domain.Rule(nil), data.Rules...),
		Findings:      append([]domain.Finding(nil), data.Findings...),
		Conditions:    append([]domain.Condition(nil), data.Conditions...),
		Actions:       append([]domain.Action(nil), data.Actions...),
		Indicates:     append([]Edge(nil), data.Indicates...),
		UrgentActions: append([]Edge(nil), data.UrgentActions...),
	}
	sort.Slice(canon.Tests, func(i, j int) bool { return canon.Tests[i].ID < canon.Tests[j].ID })
	for i := range canon.Tests {
		if len(canon.Tests[i].Aliases) == 0 {
			canon.Tests[i].Aliases = nil
			continue
		}
		aliases := append([]string(nil), canon.Tests[i].Aliases...)
		sort.Strings(aliases)
		canon.Tests[i].Aliases = aliases
	}
	sort.Slice(canon.Rules, func(i, j int) bool { return canon.Rules[i].ID < canon.Rules[j].ID })
	sort.Slice(canon.Findings, func(i, j int) bool { return canon.Findings[i].ID < canon.Findings[j].ID })
	sort.Slice(canon.Conditions, func(i, j int) bool { return canon.Conditions[i].ID < canon.Conditions[j].ID })
	sort.Slice(canon.Actions, func(i, j int) bool { return canon.Actions[i].ID < canon.Actions[j].ID })
	sort.Slice(canon.Indicates, func(i, j int) bool {
		if canon.Indicates[i].From != canon.Indicates[j].From {
			return canon.Indicates[i].From < canon.Indicates[j].From
		}
		return canon.Indicates[i].To < canon.Indicates[j].To
	})
	sort.Slice(canon.UrgentActions, func(i, j int) bool {
		if canon.UrgentActions[i].From != canon.UrgentActions[j].From {
			return canon.UrgentActions[i].From < canon.UrgentActions[j].From
		}
		return canon.UrgentActions[i].To < canon.UrgentActions[j].To
	})

	raw, err := json.Marshal(canon)
	if err != nil {
		// Catalog content is plain data; marshaling cannot fail in practice.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
