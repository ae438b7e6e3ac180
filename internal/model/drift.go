package model

import "time"

// DriftStatus classifies how far an answer moved from its baseline.
type DriftStatus string

const (
	DriftStable   DriftStatus = "stable"
	DriftDrifting DriftStatus = "drifting"
	DriftDecayed  DriftStatus = "decayed"
)

// EnsembleModel is the model label used for cross-model drift records.
const EnsembleModel = "ensemble"

// DriftRecord is one append-only drift measurement.
type DriftRecord struct {
	ID             string      `json:"drift_id"`
	Subject        string      `json:"domain"`
	Model          string      `json:"model"`
	PromptID       string      `json:"prompt_id"`
	PromptType     string      `json:"prompt_type,omitempty"`
	Timestamp      time.Time   `json:"ts_iso"`
	SimilarityPrev float64     `json:"similarity_prev"`
	DriftScore     float64     `json:"drift_score"`
	Status         DriftStatus `json:"status"`
	Explanation    string      `json:"explanation"`
}

// DriftStats summarizes the stored drift records of one subject.
type DriftStats struct {
	Total    int `json:"total_measurements"`
	Stable   int `json:"stable_count"`
	Drifting int `json:"drifting_count"`
	Decayed  int `json:"decayed_count"`
}
