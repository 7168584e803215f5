// Package feedback stores end-user feedback on surfaced findings. The
// signal whether an explanation was helpful feeds catalog curation.
package feedback

import (
	"context"
	"io"
	"time"
)

// Feedback is one user's reaction to a surfaced finding.
type Feedback struct {
	ID           string    `json:"id,omitempty"`
	EvaluationID string    `json:"evaluation_id,omitempty"` // evaluation that surfaced the finding
	FindingID    string    `json:"finding_id"`
	Helpful      bool      `json:"helpful"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FindingStats aggregates feedback for one finding.
type FindingStats struct {
	FindingID string `json:"finding_id"`
	Total     int64  `json:"total"`
	Helpful   int64  `json:"helpful"`
}

// Store defines the feedback storage operations.
type Store interface {
	// Save stores a feedback entry, assigning an id when absent.
	Save(ctx context.Context, fb *Feedback) error

	// ListByFinding returns the most recent feedback for a finding.
	ListByFinding(ctx context.Context, findingID string, limit int) ([]*Feedback, error)

	// List returns feedback entries with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// StatsByFinding aggregates helpful counts per finding.
	StatsByFinding(ctx context.Context) ([]FindingStats, error)

	// Delete removes a feedback entry by id.
	Delete(ctx context.Context, id string) error

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports feedback from a JSON reader. Entries whose id
	// already exists are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export is the JSON export format.
type Export struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Entries    []*Feedback `json:"entries"`
}

// ExportVersion is the current export format version.
const ExportVersion = "1.0"
