package store

import (
	"context"
	"time"

	"github.com/sells-group/domain-runner/internal/model"
)

// SubjectFilter specifies criteria for listing active subjects.
type SubjectFilter struct {
	Domain   string `json:"domain,omitempty"`
	Category string `json:"category,omitempty"`
	// StaleBefore keeps only subjects not observed since this time.
	StaleBefore *time.Time `json:"stale_before,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}

// SubjectDrift is the average drift of one subject over a window.
type SubjectDrift struct {
	Subject  string  `json:"domain"`
	AvgDrift float64 `json:"avg_drift"`
	Records  int     `json:"records"`
}

// WindowDrift is the average of every drift record newer than a cutoff.
type WindowDrift struct {
	AvgDrift float64 `json:"avg_drift"`
	Records  int     `json:"records"`
}

// Store defines the persistence interface for subjects, responses, drift
// records and batches. Every write commits independently.
type Store interface {
	// Subjects
	UpsertSubjects(ctx context.Context, subjects []model.Subject) (int64, error)
	ListActiveSubjects(ctx context.Context, filter SubjectFilter) ([]model.Subject, error)
	GetSubject(ctx context.Context, domain string) (*model.Subject, error)
	DeactivateSubject(ctx context.Context, domain string) error

	// Responses
	SaveResponse(ctx context.Context, rec *model.ResponseRecord) error
	GetBaseline(ctx context.Context, subjectID, modelKey, promptType, excludePromptID string) (*model.ResponseRecord, error)
	ListEmbeddings(ctx context.Context, subjectID, modelKey string, since time.Time) ([][]float64, error)

	// Drift
	InsertDrift(ctx context.Context, rec *model.DriftRecord) error
	InsertDriftBatch(ctx context.Context, recs []model.DriftRecord) error
	LatestDrift(ctx context.Context, subject string) (*model.DriftRecord, error)
	LatestDriftByModel(ctx context.Context, subject string, since time.Time) ([]model.DriftRecord, error)
	DriftStats(ctx context.Context, subject string) (*model.DriftStats, error)
	HighDriftSubjects(ctx context.Context, since time.Time, threshold float64, limit int) ([]SubjectDrift, error)
	WindowDrift(ctx context.Context, since time.Time) (*WindowDrift, error)

	// Ranking
	SubjectAggregates(ctx context.Context, cohort string) ([]model.SubjectAggregate, error)

	// Batches
	CreateBatch(ctx context.Context, batch *model.BatchRun) error
	CompleteBatch(ctx context.Context, batch *model.BatchRun) error
	GetBatch(ctx context.Context, batchID string) (*model.BatchRun, error)
	ListBatches(ctx context.Context, limit int) ([]model.BatchRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
