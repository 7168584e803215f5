package domain

import (
	"context"
)

// Evaluator runs the full evaluation pipeline: readings plus optional
// profile in, signal bundle out. Each call is a pure, stateless transform
// over an immutable catalog snapshot; an empty bundle is a valid non-error
// outcome and is distinguished from failure by the error return.
type Evaluator interface {
	Evaluate(ctx context.Context, readings []Reading, profile *PatientProfile) (*ClinicalSignals, error)
}

// SignalCache caches computed signal bundles keyed by an input fingerprint.
// Implementations must treat cached bundles as immutable.
type SignalCache interface {
	Get(ctx context.Context, key string) (*ClinicalSignals, bool)
	Set(ctx context.Context, key string, signals *ClinicalSignals)
}

// EvaluationStore persists evaluation records for auditability.
type EvaluationStore interface {
	Save(ctx context.Context, record *EvaluationRecord) error
	GetByID(ctx context.Context, id string) (*EvaluationRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*EvaluationRecord, error)
}
