// Package repository handles evaluation record persistence in Postgres.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/domain"
)

// EvaluationRepository stores evaluation records with their inputs and
// resulting signal bundles as JSONB.
type EvaluationRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewEvaluationRepository creates an evaluation repository.
func NewEvaluationRepository(db *pgxpool.Pool, logger *logrus.Logger) *EvaluationRepository {
	return &EvaluationRepository{
		db:  db,
		log: logger,
	}
}

// Save implements domain.EvaluationStore.
func (r *EvaluationRepository) Save(ctx context.Context, record *domain.EvaluationRecord) error {
	readings, err := json.Marshal(record.Readings)
	if err != nil {
		return fmt.Errorf("marshaling readings: %w", err)
	}
	signals, err := json.Marshal(record.Signals)
	if err != nil {
		return fmt.Errorf("marshaling signals: %w", err)
	}
	var profile []byte
	if record.Profile != nil {
		profile, err = json.Marshal(record.Profile)
		if err != nil {
			return fmt.Errorf("marshaling profile: %w", err)
		}
	}

	query := `
		INSERT INTO evaluations (
			id, readings, profile, signals, matched_rule_ids, processing_time_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err = r.db.Exec(ctx, query,
		record.ID,
		readings,
		profile,
		signals,
		record.MatchedRuleIDs,
		record.ProcessingTimeMS,
		record.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"evaluation_id": record.ID,
			"error":         err,
		}).Error("Failed to save evaluation record")
		return fmt.Errorf("saving evaluation: %w", err)
	}

	r.log.WithField("evaluation_id", record.ID).Debug("Evaluation record saved")
	return nil
}

// GetByID implements domain.EvaluationStore.
func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*domain.EvaluationRecord, error) {
	query := `
		SELECT id, readings, profile, signals, matched_rule_ids, processing_time_ms, created_at
		FROM evaluations
		WHERE id = $1`

	record, err := r.scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("evaluation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting evaluation %s: %w", id, err)
	}
	return record, nil
}

// ListRecent implements domain.EvaluationStore.
func (r *EvaluationRepository) ListRecent(ctx context.Context, limit int) ([]*domain.EvaluationRecord, error) {
	query := `
		SELECT id, readings, profile, signals, matched_rule_ids, processing_time_ms, created_at
		FROM evaluations
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing evaluations: %w", err)
	}
	defer rows.Close()

	var records []*domain.EvaluationRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning evaluation row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating evaluation rows: %w", err)
	}
	return records, nil
}

// CountSince returns the number of evaluations recorded after the cutoff.
func (r *EvaluationRepository) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM evaluations WHERE created_at >= $1", cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting evaluations: %w", err)
	}
	return n, nil
}

func (r *EvaluationRepository) scanRecord(row pgx.Row) (*domain.EvaluationRecord, error) {
	var record domain.EvaluationRecord
	var readings, signals []byte
	var profile []byte

	if err := row.Scan(
		&record.ID,
		&readings,
		&profile,
		&signals,
		&record.MatchedRuleIDs,
		&record.ProcessingTimeMS,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(readings, &record.Readings); err != nil {
		return nil, fmt.Errorf("unmarshaling readings: %w", err)
	}
	if err := json.Unmarshal(signals, &record.Signals); err != nil {
		return nil, fmt.Errorf("unmarshaling signals: %w", err)
	}
	if len(profile) > 0 {
		record.Profile = &domain.PatientProfile{}
		if err := json.Unmarshal(profile, record.Profile); err != nil {
			return nil, fmt.Errorf("unmarshaling profile: %w", err)
		}
	}
	return &record, nil
}
