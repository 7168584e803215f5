package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/labsense-server/internal/domain"
)

// SQLiteSource loads the catalog from a SQLite database. It backs lite
// deployments that want an editable rule base without running Postgres.
type SQLiteSource struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteSource opens (creating if necessary) a catalog database at the
// given path and ensures the schema exists.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	// WAL keeps readers unblocked while an operator edits the catalog.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLiteSource{db: db, dbPath: dbPath}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return s, nil
}

// NewSQLiteSourceFromDB wraps an existing connection. Used by tests.
func NewSQLiteSourceFromDB(db *sql.DB) *SQLiteSource {
	return &SQLiteSource{db: db}
}

// Close closes the underlying database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func (s *SQLiteSource) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tests (
		id TEXT PRIMARY KEY,
		canonical_name TEXT NOT NULL UNIQUE,
		unit TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS test_aliases (
		test_id TEXT NOT NULL REFERENCES tests(id),
		alias TEXT NOT NULL,
		PRIMARY KEY (test_id, alias)
	);

	CREATE TABLE IF NOT EXISTS findings (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS conditions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		urgency_level TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		guidance TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		logic_type TEXT NOT NULL DEFAULT 'THRESHOLD',
		finding_id TEXT NOT NULL,
		required_sex TEXT,
		min_age INTEGER,
		max_age INTEGER,
		requires_pregnant INTEGER
	);

	CREATE TABLE IF NOT EXISTS thresholds (
		rule_id TEXT NOT NULL REFERENCES rules(id),
		position INTEGER NOT NULL,
		test_id TEXT NOT NULL,
		operator TEXT NOT NULL,
		value REAL,
		value_min REAL,
		value_max REAL,
		unit TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (rule_id, position)
	);

	CREATE TABLE IF NOT EXISTS finding_conditions (
		finding_id TEXT NOT NULL,
		condition_id TEXT NOT NULL,
		PRIMARY KEY (finding_id, condition_id)
	);

	CREATE TABLE IF NOT EXISTS condition_actions (
		condition_id TEXT NOT NULL,
		action_id TEXT NOT NULL,
		PRIMARY KEY (condition_id, action_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// IsEmpty reports whether the catalog database holds no rules yet.
func (s *SQLiteSource) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rules").Scan(&n); err != nil {
		return false, fmt.Errorf("counting rules: %w", err)
	}
	return n == 0, nil
}

// Seed populates an empty catalog database from raw catalog data.
func (s *SQLiteSource) Seed(ctx context.Context, data Data) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range data.Tests {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tests (id, canonical_name, unit) VALUES (?, ?, ?)",
			t.ID, t.CanonicalName, t.Unit); err != nil {
			return fmt.Errorf("seeding test %s: %w", t.ID, err)
		}
		for _, alias := range t.Aliases {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO test_aliases (test_id, alias) VALUES (?, ?)",
				t.ID, alias); err != nil {
				return fmt.Errorf("seeding alias for test %s: %w", t.ID, err)
			}
		}
	}
	for _, f := range data.Findings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO findings (id, label, severity, description) VALUES (?, ?, ?, ?)",
			f.ID, f.Label, string(f.Severity), f.Description); err != nil {
			return fmt.Errorf("seeding finding %s: %w", f.ID, err)
		}
	}
	for _, c := range data.Conditions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO conditions (id, name, urgency_level) VALUES (?, ?, ?)",
			c.ID, c.Name, string(c.Urgency)); err != nil {
			return fmt.Errorf("seeding condition %s: %w", c.ID, err)
		}
	}
	for _, a := range data.Actions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO actions (id, label, guidance, priority) VALUES (?, ?, ?, ?)",
			a.ID, a.Label, a.Guidance, string(a.Priority)); err != nil {
			return fmt.Errorf("seeding action %s: %w", a.ID, err)
		}
	}
	for _, r := range data.Rules {
		var sex interface{}
		var minAge, maxAge, pregnant interface{}
		if r.Constraint != nil {
			if r.Constraint.RequiredSex != "" {
				sex = string(r.Constraint.RequiredSex)
			}
			if r.Constraint.MinAge != nil {
				minAge = *r.Constraint.MinAge
			}
			if r.Constraint.MaxAge != nil {
				maxAge = *r.Constraint.MaxAge
			}
			if r.Constraint.RequiresPregnant != nil {
				pregnant = boolToInt(*r.Constraint.RequiresPregnant)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rules (id, name, logic_type, finding_id, required_sex, min_age, max_age, requires_pregnant)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Name, string(r.LogicType), r.FindingID, sex, minAge, maxAge, pregnant); err != nil {
			return fmt.Errorf("seeding rule %s: %w", r.ID, err)
		}
		for i, t := range r.Thresholds {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO thresholds (rule_id, position, test_id, operator, value, value_min, value_max, unit)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, i, t.TestID, string(t.Operator),
				nullableFloat(t.Value), nullableFloat(t.ValueMin), nullableFloat(t.ValueMax), t.Unit); err != nil {
				return fmt.Errorf("seeding threshold %d of rule %s: %w", i, r.ID, err)
			}
		}
	}
	for _, e := range data.Indicates {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO finding_conditions (finding_id, condition_id) VALUES (?, ?)",
			e.From, e.To); err != nil {
			return fmt.Errorf("seeding indicates edge %s->%s: %w", e.From, e.To, err)
		}
	}
	for _, e := range data.UrgentActions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO condition_actions (condition_id, action_id) VALUES (?, ?)",
			e.From, e.To); err != nil {
			return fmt.Errorf("seeding urgent-action edge %s->%s: %w", e.From, e.To, err)
		}
	}

	return tx.Commit()
}

// Load implements Source: it reads the full catalog content and assembles
// a validated snapshot.
func (s *SQLiteSource) Load(ctx context.Context) (*Catalog, error) {
	var data Data

	rows, err := s.db.QueryContext(ctx, "SELECT id, canonical_name, unit FROM tests ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading tests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t domain.Test
		if err := rows.Scan(&t.ID, &t.CanonicalName, &t.Unit); err != nil {
			return nil, fmt.Errorf("scanning test row: %w", err)
		}
		data.Tests = append(data.Tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating test rows: %w", err)
	}

	aliasRows, err := s.db.QueryContext(ctx, "SELECT test_id, alias FROM test_aliases ORDER BY test_id, alias")
	if err != nil {
		return nil, fmt.Errorf("loading test aliases: %w", err)
	}
	defer aliasRows.Close()
	aliases := make(map[string][]string)
	for aliasRows.Next() {
		var testID, alias string
		if err := aliasRows.Scan(&testID, &alias); err != nil {
			return nil, fmt.Errorf("scanning alias row: %w", err)
		}
		aliases[testID] = append(aliases[testID], alias)
	}
	if err := aliasRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alias rows: %w", err)
	}
	for i := range data.Tests {
		data.Tests[i].Aliases = aliases[data.Tests[i].ID]
	}

	findingRows, err := s.db.QueryContext(ctx, "SELECT id, label, severity, description FROM findings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading findings: %w", err)
	}
	defer findingRows.Close()
	for findingRows.Next() {
		var f domain.Finding
		var severity string
		if err := findingRows.Scan(&f.ID, &f.Label, &severity, &f.Description); err != nil {
			return nil, fmt.Errorf("scanning finding row: %w", err)
		}
		f.Severity = domain.Severity(severity)
		data.Findings = append(data.Findings, f)
	}
	if err := findingRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating finding rows: %w", err)
	}

	condRows, err := s.db.QueryContext(ctx, "SELECT id, name, urgency_level FROM conditions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading conditions: %w", err)
	}
	defer condRows.Close()
	for condRows.Next() {
		var c domain.Condition
		var urgency string
		if err := condRows.Scan(&c.ID, &c.Name, &urgency); err != nil {
			return nil, fmt.Errorf("scanning condition row: %w", err)
		}
		c.Urgency = domain.UrgencyLevel(urgency)
		data.Conditions = append(data.Conditions, c)
	}
	if err := condRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating condition rows: %w", err)
	}

	actionRows, err := s.db.QueryContext(ctx, "SELECT id, label, guidance, priority FROM actions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading actions: %w", err)
	}
	defer actionRows.Close()
	for actionRows.Next() {
		var a domain.Action
		var priority string
		if err := actionRows.Scan(&a.ID, &a.Label, &a.Guidance, &priority); err != nil {
			return nil, fmt.Errorf("scanning action row: %w", err)
		}
		a.Priority = domain.ActionPriority(priority)
		data.Actions = append(data.Actions, a)
	}
	if err := actionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action rows: %w", err)
	}

	thresholds, err := s.loadThresholds(ctx)
	if err != nil {
		return nil, err
	}

	ruleRows, err := s.db.QueryContext(ctx,
		"SELECT id, name, logic_type, finding_id, required_sex, min_age, max_age, requires_pregnant FROM rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var r domain.Rule
		var logicType string
		var sex sql.NullString
		var minAge, maxAge sql.NullInt64
		var pregnant sql.NullInt64
		if err := ruleRows.Scan(&r.ID, &r.Name, &logicType, &r.FindingID, &sex, &minAge, &maxAge, &pregnant); err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		r.LogicType = domain.RuleLogicType(logicType)
		r.Thresholds = thresholds[r.ID]
		r.Constraint = buildConstraint(sex, minAge, maxAge, pregnant)
		data.Rules = append(data.Rules, r)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rule rows: %w", err)
	}

	data.Indicates, err = s.loadEdges(ctx, "SELECT finding_id, condition_id FROM finding_conditions ORDER BY finding_id, condition_id")
	if err != nil {
		return nil, fmt.Errorf("loading indicates edges: %w", err)
	}
	data.UrgentActions, err = s.loadEdges(ctx, "SELECT condition_id, action_id FROM condition_actions ORDER BY condition_id, action_id")
	if err != nil {
		return nil, fmt.Errorf("loading urgent-action edges: %w", err)
	}

	return New(data)
}

func (s *SQLiteSource) loadThresholds(ctx context.Context) (map[string][]domain.Threshold, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT rule_id, test_id, operator, value, value_min, value_max, unit FROM thresholds ORDER BY rule_id, position")
	if err != nil {
		return nil, fmt.Errorf("loading thresholds: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Threshold)
	for rows.Next() {
		var ruleID, operator string
		var t domain.Threshold
		var value, valueMin, valueMax sql.NullFloat64
		if err := rows.Scan(&ruleID, &t.TestID, &operator, &value, &valueMin, &valueMax, &t.Unit); err != nil {
			return nil, fmt.Errorf("scanning threshold row: %w", err)
		}
		t.Operator = domain.ThresholdOperator(operator)
		if value.Valid {
			v := value.Float64
			t.Value = &v
		}
		if valueMin.Valid {
			v := valueMin.Float64
			t.ValueMin = &v
		}
		if valueMax.Valid {
			v := valueMax.Float64
			t.ValueMax = &v
		}
		out[ruleID] = append(out[ruleID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threshold rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteSource) loadEdges(ctx context.Context, query string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, query)
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

func buildConstraint(sex sql.NullString, minAge, maxAge, pregnant sql.NullInt64) *domain.DemographicConstraint {
	if !sex.Valid && !minAge.Valid && !maxAge.Valid && !pregnant.Valid {
		return nil
	}
	c := &domain.DemographicConstraint{}
	if sex.Valid {
		c.RequiredSex = domain.SexAtBirth(sex.String)
	}
	if minAge.Valid {
		v := int(minAge.Int64)
		c.MinAge = &v
	}
	if maxAge.Valid {
		v := int(maxAge.Int64)
		c.MaxAge = &v
	}
	if pregnant.Valid {
		v := pregnant.Int64 != 0
		c.RequiresPregnant = &v
	}
	return c
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
