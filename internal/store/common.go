package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-runner/internal/model"
)

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

var driftColumns = []string{
	"drift_id", "domain", "model", "prompt_id", "prompt_type", "ts_iso",
	"similarity_prev", "drift_score", "status", "explanation",
}

// driftRow returns rec's values in driftColumns order.
func driftRow(rec model.DriftRecord) []any {
	return []any{
		rec.ID, rec.Subject, rec.Model, rec.PromptID, rec.PromptType, rec.Timestamp.UTC(),
		rec.SimilarityPrev, rec.DriftScore, string(rec.Status), rec.Explanation,
	}
}

const selectBatchSQL = `SELECT batch_id, started_at, completed_at, domains_processed, providers_queried,
	total_api_calls, success_count, error_count, status FROM crawl_batches`

// driftStatsSQL counts drift records per status for one subject. The
// placeholder differs between drivers.
func driftStatsSQL(placeholder string) string {
	return `SELECT COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'stable' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'drifting' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'decayed' THEN 1 ELSE 0 END), 0)
	FROM drift_scores WHERE domain = ` + placeholder + ` AND model <> 'ensemble'`
}

// aggregatesSQL returns observation, citation and drift aggregates for every
// active subject matching cond. Observations count every stored answer;
// citations count the valid ones.
func aggregatesSQL(cond string) string {
	return `SELECT d.domain,
	COALESCE(h.observations, 0),
	COALESCE(h.citations, 0),
	COALESCE(ds.avg_drift, 0)
	FROM domains d
	LEFT JOIN (
		SELECT domain_id, COUNT(*) AS observations,
		SUM(CASE WHEN normalized_status = 'valid' THEN 1 ELSE 0 END) AS citations
		FROM response_history GROUP BY domain_id
	) h ON h.domain_id = d.id
	LEFT JOIN (
		SELECT domain, AVG(drift_score) AS avg_drift
		FROM drift_scores WHERE model <> 'ensemble' GROUP BY domain
	) ds ON ds.domain = d.domain
	WHERE d.active AND ` + cond + `
	ORDER BY d.created_at, d.domain`
}

// prepareSubjects normalizes domains, assigns missing IDs and drops blanks
// and duplicates, keeping the first occurrence.
func prepareSubjects(subjects []model.Subject) []model.Subject {
	now := time.Now().UTC()
	seen := make(map[string]bool, len(subjects))
	out := make([]model.Subject, 0, len(subjects))
	for _, sub := range subjects {
		sub.Domain = strings.ToLower(strings.TrimSpace(sub.Domain))
		if sub.Domain == "" || seen[sub.Domain] {
			continue
		}
		seen[sub.Domain] = true
		if sub.ID == "" {
			sub.ID = newID()
		}
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = now
		}
		out = append(out, sub)
	}
	return out
}

func prepareResponse(rec *model.ResponseRecord) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

func prepareDrift(rec *model.DriftRecord) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
}

func completeBatchFields(batch *model.BatchRun) {
	if batch.CompletedAt == nil {
		now := time.Now().UTC()
		batch.CompletedAt = &now
	}
	if batch.Status == "" || batch.Status == model.BatchRunning {
		batch.Status = model.BatchCompleted
	}
}

func marshalEmbedding(vec []float64) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	return json.Marshal(vec)
}

func unmarshalEmbedding(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, eris.Wrap(err, "store: decode embedding")
	}
	return vec, nil
}

func scanDrift(row scannable) (*model.DriftRecord, error) {
	var rec model.DriftRecord
	var status string
	if err := row.Scan(&rec.ID, &rec.Subject, &rec.Model, &rec.PromptID, &rec.PromptType, &rec.Timestamp,
		&rec.SimilarityPrev, &rec.DriftScore, &status, &rec.Explanation); err != nil {
		return nil, err
	}
	rec.Status = model.DriftStatus(status)
	return &rec, nil
}

func scanBatch(row scannable) (*model.BatchRun, error) {
	var b model.BatchRun
	var status string
	if err := row.Scan(&b.ID, &b.StartedAt, &b.CompletedAt, &b.SubjectsProcessed, &b.ProvidersQueried,
		&b.TotalCalls, &b.Successes, &b.Failures, &status); err != nil {
		return nil, err
	}
	b.Status = model.BatchStatus(status)
	return &b, nil
}
