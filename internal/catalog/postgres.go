package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labsense-server/internal/domain"
)

// PostgresSource loads the catalog from a Postgres database. It expects
// the schema created by the catalog migrations.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource wraps an existing connection pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// IsEmpty reports whether the catalog tables hold no rules yet.
func (s *PostgresSource) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM catalog_rules").Scan(&n); err != nil {
		return false, fmt.Errorf("counting rules: %w", err)
	}
	return n == 0, nil
}

// Seed populates empty catalog tables from raw catalog data.
func (s *PostgresSource) Seed(ctx context.Context, data Data) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range data.Tests {
		if _, err := tx.Exec(ctx,
			"INSERT INTO catalog_tests (id, canonical_name, unit) VALUES ($1, $2, $3)",
			t.ID, t.CanonicalName, t.Unit); err != nil {
			return fmt.Errorf("seeding test %s: %w", t.ID, err)
		}
		for _, alias := range t.Aliases {
			if _, err := tx.Exec(ctx,
				"INSERT INTO catalog_test_aliases (test_id, alias) VALUES ($1, $2)",
				t.ID, alias); err != nil {
				return fmt.Errorf("seeding alias for test %s: %w", t.ID, err)
			}
		}
	}
	for _, f := range data.Findings {
		if _, err := tx.Exec(ctx,
			"INSERT INTO catalog_findings (id, label, severity, description) VALUES ($1, $2, $3, $4)",
			f.ID, f.Label, string(f.Severity), f.Description); err != nil {
			return fmt.Errorf("seeding finding %s: %w", f.ID, err)
		}
	}
	for _, c := range data.Conditions {
		if _, err := tx.Exec(ctx,
			"INSERT INTO catalog_conditions (id, name, urgency_level) VALUES ($1, $2, $3)",
			c.ID, c.Name, string(c.Urgency)); err != nil {
			return fmt.Errorf("seeding condition %s: %w", c.ID, err)
		}
	}
	for _, a := range data.Actions {
		if _, err := tx.Exec(ctx,
			"INSERT INTO catalog_actions (id, label, guidance, priority) VALUES ($1, $2, $3, $4)",
			a.ID, a.Label, a.Guidance, string(a.Priority)); err != nil {
			return fmt.Errorf("seeding action %s: %w", a.ID, err)
		}
	}
	for _, r := range data.Rules {
		var sex *string
		var minAge, maxAge *int
		var pregnant *bool
		if r.Constraint != nil {
			if r.Constraint.RequiredSex != "" {
				v := string(r.Constraint.RequiredSex)
				sex = &v
			}
			minAge = r.Constraint.MinAge
			maxAge = r.Constraint.MaxAge
			pregnant = r.Constraint.RequiresPregnant
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO catalog_rules (id, name, logic_type, finding_id, required_sex, min_age, max_age, requires_pregnant)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, r.Name, string(r.LogicType), r.FindingID, sex, minAge, maxAge, pregnant); err != nil {
			return fmt.Errorf("seeding rule %s: %w", r.ID, err)
		}
		for i, t := range r.Thresholds {
			if _, err := tx.Exec(ctx,
				`INSERT INTO catalog_thresholds (rule_id, position, test_id, operator, value, value_min, value_max, unit)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				r.ID, i, t.TestID, string(t.Operator), t.Value, t.ValueMin, t.ValueMax, t.Unit); err != nil {
				return fmt.Errorf("seeding threshold %d of rule %s: %w", i, r.ID, err)
			}
		}
	}
	for _, e := range data.Indicates {
		if _, err := tx.Exec(ctx,
			"INSERT INTO catalog_finding_conditions (finding_id, condition_id) VALUES ($1, $2)",
			e.From, e.To); err != nil {
			return fmt.Errorf("seeding indicates edge %s->%s: %w", e.From, e.To, err)
		}
	}
	for _, e := range data.UrgentActions {
		if _, err := tx.Exec(ctx,
			"INSERT INTO catalog_condition_actions (condition_id, action_id) VALUES ($1, $2)",
			e.From, e.To); err != nil {
			return fmt.Errorf("seeding urgent-action edge %s->%s: %w", e.From, e.To, err)
		}
	}

	return tx.Commit(ctx)
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) (*Catalog, error) {
	var data Data

	rows, err := s.pool.Query(ctx, "SELECT id, canonical_name, unit FROM catalog_tests ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading tests: %w", err)
	}
	for rows.Next() {
		var t domain.Test
		if err := rows.Scan(&t.ID, &t.CanonicalName, &t.Unit); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning test row: %w", err)
		}
		data.Tests = append(data.Tests, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating test rows: %w", err)
	}

	aliasRows, err := s.pool.Query(ctx, "SELECT test_id, alias FROM catalog_test_aliases ORDER BY test_id, alias")
	if err != nil {
		return nil, fmt.Errorf("loading test aliases: %w", err)
	}
	aliases := make(map[string][]string)
	for aliasRows.Next() {
		var testID, alias string
		if err := aliasRows.Scan(&testID, &alias); err != nil {
			aliasRows.Close()
			return nil, fmt.Errorf("scanning alias row: %w", err)
		}
		aliases[testID] = append(aliases[testID], alias)
	}
	aliasRows.Close()
	if err := aliasRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alias rows: %w", err)
	}
	for i := range data.Tests {
		data.Tests[i].Aliases = aliases[data.Tests[i].ID]
	}

	findingRows, err := s.pool.Query(ctx, "SELECT id, label, severity, description FROM catalog_findings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading findings: %w", err)
	}
	for findingRows.Next() {
		var f domain.Finding
		var severity string
		if err := findingRows.Scan(&f.ID, &f.Label, &severity, &f.Description); err != nil {
			findingRows.Close()
			return nil, fmt.Errorf("scanning finding row: %w", err)
		}
		f.Severity = domain.Severity(severity)
		data.Findings = append(data.Findings, f)
	}
	findingRows.Close()
	if err := findingRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating finding rows: %w", err)
	}

	condRows, err := s.pool.Query(ctx, "SELECT id, name, urgency_level FROM catalog_conditions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading conditions: %w", err)
	}
	for condRows.Next() {
		var c domain.Condition
		var urgency string
		if err := condRows.Scan(&c.ID, &c.Name, &urgency); err != nil {
			condRows.Close()
			return nil, fmt.Errorf("scanning condition row: %w", err)
		}
		c.Urgency = domain.UrgencyLevel(urgency)
		data.Conditions = append(data.Conditions, c)
	}
	condRows.Close()
	if err := condRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating condition rows: %w", err)
	}

	actionRows, err := s.pool.Query(ctx, "SELECT id, label, guidance, priority FROM catalog_actions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading actions: %w", err)
	}
	for actionRows.Next() {
		var a domain.Action
		var priority string
		if err := actionRows.Scan(&a.ID, &a.Label, &a.Guidance, &priority); err != nil {
			actionRows.Close()
			return nil, fmt.Errorf("scanning action row: %w", err)
		}
		a.Priority = domain.ActionPriority(priority)
		data.Actions = append(data.Actions, a)
	}
	actionRows.Close()
	if err := actionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action rows: %w", err)
	}

	thresholds, err := s.loadThresholds(ctx)
	if err != nil {
		return nil, err
	}

	ruleRows, err := s.pool.Query(ctx,
		"SELECT id, name, logic_type, finding_id, required_sex, min_age, max_age, requires_pregnant FROM catalog_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	for ruleRows.Next() {
		var r domain.Rule
		var logicType string
		var sex *string
		var minAge, maxAge *int
		var pregnant *bool
		if err := ruleRows.Scan(&r.ID, &r.Name, &logicType, &r.FindingID, &sex, &minAge, &maxAge, &pregnant); err != nil {
			ruleRows.Close()
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		r.LogicType = domain.RuleLogicType(logicType)
		r.Thresholds = thresholds[r.ID]
		if sex != nil || minAge != nil || maxAge != nil || pregnant != nil {
			c := &domain.DemographicConstraint{MinAge: minAge, MaxAge: maxAge, RequiresPregnant: pregnant}
			if sex != nil {
				c.RequiredSex = domain.SexAtBirth(*sex)
			}
			r.Constraint = c
		}
		data.Rules = append(data.Rules, r)
	}
	ruleRows.Close()
	if err := ruleRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rule rows: %w", err)
	}

	data.Indicates, err = s.loadEdges(ctx,
		"SELECT finding_id, condition_id FROM catalog_finding_conditions ORDER BY finding_id, condition_id")
	if err != nil {
		return nil, fmt.Errorf("loading indicates edges: %w", err)
	}
	data.UrgentActions, err = s.loadEdges(ctx,
		"SELECT condition_id, action_id FROM catalog_condition_actions ORDER BY condition_id, action_id")
	if err != nil {
		return nil, fmt.Errorf("loading urgent-action edges: %w", err)
	}

	return New(data)
}

func (s *PostgresSource) loadThresholds(ctx context.Context) (map[string][]domain.Threshold, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT rule_id, test_id, operator, value, value_min, value_max, unit FROM catalog_thresholds ORDER BY rule_id, position")
	if err != nil {
		return nil, fmt.Errorf("loading thresholds: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Threshold)
	for rows.Next() {
		var ruleID, operator string
		var t domain.Threshold
		if err := rows.Scan(&ruleID, &t.TestID, &operator, &t.Value, &t.ValueMin, &t.ValueMax, &t.Unit); err != nil {
			return nil, fmt.Errorf("scanning threshold row: %w", err)
		}
		t.Operator = domain.ThresholdOperator(operator)
		out[ruleID] = append(out[ruleID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threshold rows: %w", err)
	}
	return out, nil
}

func (s *PostgresSource) loadEdges(ctx context.Context, query string) ([]Edge, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
