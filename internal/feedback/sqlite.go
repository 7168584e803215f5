package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite. It backs lite deployments
// that run without Postgres.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a SQLite feedback store, creating the database
// file and schema if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		evaluation_id TEXT DEFAULT '',
		finding_id TEXT NOT NULL,
		helpful INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_finding_id ON feedback(finding_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	var helpful int
	err := s.Scan(&fb.ID, &fb.EvaluationID, &fb.FindingID, &helpful, &fb.Notes, &fb.CreatedAt)
	if err != nil {
		return nil, err
	}
	fb.Helpful = helpful != 0
	return fb, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, fb *Feedback) error {
	if fb.FindingID == "" {
		return fmt.Errorf("finding id is required")
	}
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, evaluation_id, finding_id, helpful, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fb.ID, fb.EvaluationID, fb.FindingID, boolToInt(fb.Helpful), fb.Notes, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// ListByFinding implements Store.
func (s *SQLiteStore) ListByFinding(ctx context.Context, findingID string, limit int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, evaluation_id, finding_id, helpful, notes, created_at
		FROM feedback
		WHERE finding_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, findingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()
	return collectFeedback(rows)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, evaluation_id, finding_id, helpful, notes, created_at
		FROM feedback
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()
	return collectFeedback(rows)
}

func collectFeedback(rows *sql.Rows) ([]*Feedback, error) {
	var entries []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		entries = append(entries, fb)
	}
	return entries, rows.Err()
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return n, nil
}

// StatsByFinding implements Store.
func (s *SQLiteStore) StatsByFinding(ctx context.Context) ([]FindingStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT finding_id, COUNT(*), SUM(helpful)
		FROM feedback
		GROUP BY finding_id
		ORDER BY finding_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	defer rows.Close()

	var stats []FindingStats
	for rows.Next() {
		var st FindingStats
		if err := rows.Scan(&st.FindingID, &st.Total, &st.Helpful); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("feedback not found: %s", id)
	}
	return nil
}

// ExportJSON implements Store.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	entries, err := s.List(ctx, 1<<31-1, 0)
	if err != nil {
		return err
	}
	export := Export{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Entries:    entries,
	}
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

// ImportJSON implements Store.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode import: %w", err)
	}

	imported, skipped := 0, 0
	for _, fb := range export.Entries {
		if fb.ID != "" {
			var existing string
			err := s.db.QueryRowContext(ctx, "SELECT id FROM feedback WHERE id = ?", fb.ID).Scan(&existing)
			if err == nil {
				skipped++
				continue
			}
			if err != sql.ErrNoRows {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
		}
		if err := s.Save(ctx, fb); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
