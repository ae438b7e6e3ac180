package model

import "time"

// BatchStatus is the lifecycle state of a batch run.
type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
)

// BatchRun records one orchestrator pass over a set of subjects.
type BatchRun struct {
	ID                string      `json:"batch_id"`
	StartedAt         time.Time   `json:"started_at"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	SubjectsProcessed int         `json:"domains_processed"`
	ProvidersQueried  int         `json:"providers_queried"`
	TotalCalls        int         `json:"total_api_calls"`
	Successes         int         `json:"success_count"`
	Failures          int         `json:"error_count"`
	Status            BatchStatus `json:"status"`
}

// BatchStats are the running tallies of a batch.
type BatchStats struct {
	SubjectsProcessed int           `json:"domains_processed"`
	TotalCalls        int           `json:"total_calls"`
	Successes         int           `json:"successes"`
	Failures          int           `json:"failures"`
	Duration          time.Duration `json:"duration"`
	SoftDeadlineHit   bool          `json:"soft_deadline_hit"`
	HardDeadlineHit   bool          `json:"hard_deadline_hit"`
}
