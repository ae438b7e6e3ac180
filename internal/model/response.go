package model

import (
	"encoding/json"
	"time"
)

// ResponseStatus classifies a normalized answer.
type ResponseStatus string

const (
	StatusValid     ResponseStatus = "valid"
	StatusMalformed ResponseStatus = "malformed"
	StatusEmpty     ResponseStatus = "empty"
)

// Quality flags attached to raw responses by adapters.
const (
	QualityHigh           = "high_quality"
	QualitySearchEnhanced = "search_enhanced"
)

// RawResponse is what a provider adapter returns for one call. Payload holds
// the provider's unparsed JSON body; Text is the adapter's best-effort answer.
type RawResponse struct {
	Provider    string          `json:"provider"`
	Model       string          `json:"model"`
	Text        string          `json:"text"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	LatencyMs   int64           `json:"latency_ms"`
	RetryCount  int             `json:"retry_count"`
	QualityFlag string          `json:"quality_flag"`
	Meta        map[string]any  `json:"meta,omitempty"`
}

// Key returns the "provider/model" identifier.
func (r RawResponse) Key() string {
	return r.Provider + "/" + r.Model
}

// NormalizedResponse is derived deterministically from a RawResponse.
type NormalizedResponse struct {
	Text   string         `json:"text"`
	Status ResponseStatus `json:"status"`
}

// ResponseRecord is the persisted form of one provider answer.
type ResponseRecord struct {
	ID          string         `json:"id"`
	SubjectID   string         `json:"subject_id"`
	Subject     string         `json:"subject"`
	Model       string         `json:"model"` // provider/model
	PromptID    string         `json:"prompt_id"`
	PromptType  string         `json:"prompt_type"`
	Prompt      string         `json:"prompt"`
	Raw         string         `json:"raw"`
	Answer      string         `json:"answer"`
	Status      ResponseStatus `json:"normalized_status"`
	LatencyMs   int64          `json:"latency_ms"`
	RetryCount  int            `json:"retry_count"`
	QualityFlag string         `json:"quality_flag"`
	BatchID     string         `json:"batch_id,omitempty"`
	Embedding   []float64      `json:"embedding,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
