package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the shared Postgres database. The
// schema is created by the server migrations, not by the store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, fb *Feedback) error {
	if fb.FindingID == "" {
		return fmt.Errorf("finding id is required")
	}
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	var evaluationID *string
	if fb.EvaluationID != "" {
		evaluationID = &fb.EvaluationID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback (id, evaluation_id, finding_id, helpful, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, fb.ID, evaluationID, fb.FindingID, fb.Helpful, fb.Notes, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// ListByFinding implements Store.
func (s *PostgresStore) ListByFinding(ctx context.Context, findingID string, limit int) ([]*Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, evaluation_id, finding_id, helpful, notes, created_at
		FROM feedback
		WHERE finding_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, findingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()
	return collectPgxFeedback(rows)
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, evaluation_id, finding_id, helpful, notes, created_at
		FROM feedback
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()
	return collectPgxFeedback(rows)
}

func collectPgxFeedback(rows pgx.Rows) ([]*Feedback, error) {
	var entries []*Feedback
	for rows.Next() {
		fb := &Feedback{}
		var evaluationID *string
		if err := rows.Scan(&fb.ID, &evaluationID, &fb.FindingID, &fb.Helpful, &fb.Notes, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		if evaluationID != nil {
			fb.EvaluationID = *evaluationID
		}
		entries = append(entries, fb)
	}
	return entries, rows.Err()
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM feedback").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return n, nil
}

// StatsByFinding implements Store.
func (s *PostgresStore) StatsByFinding(ctx context.Context) ([]FindingStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT finding_id, COUNT(*), COUNT(*) FILTER (WHERE helpful)
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
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("feedback not found: %s", id)
	}
	return nil
}

// ExportJSON implements Store.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode import: %w", err)
	}

	imported, skipped := 0, 0
	for _, fb := range export.Entries {
		if fb.ID != "" {
			var existing string
			err := s.pool.QueryRow(ctx, "SELECT id FROM feedback WHERE id = $1", fb.ID).Scan(&existing)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, pgx.ErrNoRows) {
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

// Close implements Store. The pool is owned by the server, so this is a
// no-op.
func (s *PostgresStore) Close() error {
	return nil
}
