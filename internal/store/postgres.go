package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-runner/internal/db"
	"github.com/sells-group/domain-runner/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
	// Prepare registers preparedStatements on each new connection. The
	// schema must already exist.
	Prepare bool `yaml:"prepare" mapstructure:"prepare"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the per-call store operations.
var preparedStatements = map[string]string{
	"upsert_response":  upsertResponseSQL,
	"insert_history":   insertHistorySQL,
	"touch_subject":    touchSubjectSQL,
	"get_baseline":     getBaselineSQL,
	"insert_drift":     insertDriftSQL,
	"get_latest_drift": latestDriftSQL,
}

const (
	upsertResponseSQL = `INSERT INTO responses (id, domain_id, model, prompt_id, prompt_type, prompt, raw_response, answer, normalized_status, latency_ms, retry_count, quality_flag, batch_id, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (domain_id, model) DO UPDATE SET
	prompt_id = EXCLUDED.prompt_id, prompt_type = EXCLUDED.prompt_type, prompt = EXCLUDED.prompt,
	raw_response = EXCLUDED.raw_response, answer = EXCLUDED.answer, normalized_status = EXCLUDED.normalized_status,
	latency_ms = EXCLUDED.latency_ms, retry_count = EXCLUDED.retry_count, quality_flag = EXCLUDED.quality_flag,
	batch_id = EXCLUDED.batch_id, meta = EXCLUDED.meta, created_at = EXCLUDED.created_at`

	insertHistorySQL = `INSERT INTO response_history (id, domain_id, model, prompt_id, prompt_type, answer, normalized_status, batch_id, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	touchSubjectSQL = `UPDATE domains SET last_observed_at = $1 WHERE id = $2`

	getBaselineSQL = `SELECT id, domain_id, model, prompt_id, prompt_type, answer, normalized_status, batch_id, embedding, created_at
FROM response_history
WHERE domain_id = $1 AND model = $2 AND prompt_type = $3 AND prompt_id <> $4 AND normalized_status = 'valid'
ORDER BY created_at DESC LIMIT 1`

	insertDriftSQL = `INSERT INTO drift_scores (drift_id, domain, model, prompt_id, prompt_type, ts_iso, similarity_prev, drift_score, status, explanation)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	latestDriftSQL = `SELECT drift_id, domain, model, prompt_id, prompt_type, ts_iso, similarity_prev, drift_score, status, explanation
FROM drift_scores WHERE domain = $1 ORDER BY ts_iso DESC LIMIT 1`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	if poolCfg != nil && poolCfg.Prepare {
		pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			for name, sql := range preparedStatements {
				if _, err := conn.Prepare(ctx, name, sql); err != nil {
					return eris.Wrapf(err, "postgres: prepare %s", name)
				}
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS domains (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain           TEXT NOT NULL UNIQUE,
	category         TEXT NOT NULL DEFAULT '',
	active           BOOLEAN NOT NULL DEFAULT true,
	priority         INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_observed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_domains_active ON domains(active, priority DESC);
CREATE INDEX IF NOT EXISTS idx_domains_category ON domains(category);

CREATE TABLE IF NOT EXISTS responses (
	id                TEXT PRIMARY KEY,
	domain_id         TEXT NOT NULL REFERENCES domains(id),
	model             TEXT NOT NULL,
	prompt_id         TEXT NOT NULL,
	prompt_type       TEXT NOT NULL,
	prompt            TEXT NOT NULL,
	raw_response      TEXT NOT NULL,
	answer            TEXT NOT NULL,
	normalized_status TEXT NOT NULL,
	latency_ms        INTEGER NOT NULL DEFAULT 0,
	retry_count       INTEGER NOT NULL DEFAULT 0,
	quality_flag      TEXT NOT NULL DEFAULT '',
	batch_id          TEXT NOT NULL DEFAULT '',
	meta              JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (domain_id, model)
);

CREATE TABLE IF NOT EXISTS response_history (
	id                TEXT PRIMARY KEY,
	domain_id         TEXT NOT NULL REFERENCES domains(id),
	model             TEXT NOT NULL,
	prompt_id         TEXT NOT NULL,
	prompt_type       TEXT NOT NULL,
	answer            TEXT NOT NULL,
	normalized_status TEXT NOT NULL,
	batch_id          TEXT NOT NULL DEFAULT '',
	embedding         JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_baseline ON response_history(domain_id, model, prompt_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_history_status ON response_history(domain_id, normalized_status);

CREATE TABLE IF NOT EXISTS drift_scores (
	drift_id        TEXT PRIMARY KEY,
	domain          TEXT NOT NULL,
	model           TEXT NOT NULL,
	prompt_id       TEXT NOT NULL DEFAULT '',
	prompt_type     TEXT NOT NULL DEFAULT '',
	ts_iso          TIMESTAMPTZ NOT NULL DEFAULT now(),
	similarity_prev DOUBLE PRECISION NOT NULL,
	drift_score     DOUBLE PRECISION NOT NULL CHECK (drift_score >= 0 AND drift_score <= 1),
	status          TEXT NOT NULL,
	explanation     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_drift_domain_ts ON drift_scores(domain, ts_iso DESC);
CREATE INDEX IF NOT EXISTS idx_drift_ts ON drift_scores(ts_iso);

CREATE TABLE IF NOT EXISTS crawl_batches (
	batch_id          TEXT PRIMARY KEY,
	started_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at      TIMESTAMPTZ,
	domains_processed INTEGER NOT NULL DEFAULT 0,
	providers_queried INTEGER NOT NULL DEFAULT 0,
	total_api_calls   INTEGER NOT NULL DEFAULT 0,
	success_count     INTEGER NOT NULL DEFAULT 0,
	error_count       INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_crawl_batches_started ON crawl_batches(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Subjects ---

func (s *PostgresStore) UpsertSubjects(ctx context.Context, subjects []model.Subject) (int64, error) {
	rows := make([][]any, 0, len(subjects))
	for _, sub := range prepareSubjects(subjects) {
		rows = append(rows, []any{sub.ID, sub.Domain, sub.Category, sub.Active, sub.Priority, sub.CreatedAt})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "domains",
		Columns:      []string{"id", "domain", "category", "active", "priority", "created_at"},
		ConflictKeys: []string{"domain"},
		UpdateCols:   []string{"category", "active", "priority"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert subjects")
}

func (s *PostgresStore) ListActiveSubjects(ctx context.Context, filter SubjectFilter) ([]model.Subject, error) {
	query := `SELECT id, domain, category, active, priority, created_at FROM domains WHERE active = true`
	args := []any{}
	argIdx := 1

	if filter.Domain != "" {
		query += fmt.Sprintf(` AND domain = $%d`, argIdx)
		args = append(args, filter.Domain)
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.StaleBefore != nil {
		query += fmt.Sprintf(` AND (last_observed_at IS NULL OR last_observed_at < $%d)`, argIdx)
		args = append(args, filter.StaleBefore.UTC())
		argIdx++
	}
	query += ` ORDER BY priority DESC, created_at, domain`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subjects")
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Domain, &sub.Category, &sub.Active, &sub.Priority, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subject")
		}
		subjects = append(subjects, sub)
	}
	return subjects, eris.Wrap(rows.Err(), "postgres: list subjects iterate")
}

func (s *PostgresStore) GetSubject(ctx context.Context, domain string) (*model.Subject, error) {
	var sub model.Subject
	err := s.pool.QueryRow(ctx,
		`SELECT id, domain, category, active, priority, created_at FROM domains WHERE domain = $1`,
		domain,
	).Scan(&sub.ID, &sub.Domain, &sub.Category, &sub.Active, &sub.Priority, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get subject %s", domain)
	}
	return &sub, nil
}

func (s *PostgresStore) DeactivateSubject(ctx context.Context, domain string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE domains SET active = false WHERE domain = $1`, domain)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate subject %s", domain)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("subject not found: %s", domain)
	}
	return nil
}

// --- Responses ---

func (s *PostgresStore) SaveResponse(ctx context.Context, rec *model.ResponseRecord) error {
	prepareResponse(rec)

	var metaJSON []byte
	if rec.Meta != nil {
		var err error
		if metaJSON, err = json.Marshal(rec.Meta); err != nil {
			return eris.Wrap(err, "postgres: marshal meta")
		}
	}
	embeddingJSON, err := marshalEmbedding(rec.Embedding)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal embedding")
	}

	if _, err := s.pool.Exec(ctx, upsertResponseSQL,
		rec.ID, rec.SubjectID, rec.Model, rec.PromptID, rec.PromptType, rec.Prompt, rec.Raw, rec.Answer,
		string(rec.Status), rec.LatencyMs, rec.RetryCount, rec.QualityFlag, rec.BatchID, metaJSON, rec.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: upsert response %s/%s", rec.Subject, rec.Model)
	}

	if _, err := s.pool.Exec(ctx, insertHistorySQL,
		rec.ID, rec.SubjectID, rec.Model, rec.PromptID, rec.PromptType, rec.Answer,
		string(rec.Status), rec.BatchID, embeddingJSON, rec.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert response history %s/%s", rec.Subject, rec.Model)
	}

	if _, err := s.pool.Exec(ctx, touchSubjectSQL, rec.CreatedAt, rec.SubjectID); err != nil {
		return eris.Wrapf(err, "postgres: touch subject %s", rec.SubjectID)
	}
	return nil
}

func (s *PostgresStore) GetBaseline(ctx context.Context, subjectID, modelKey, promptType, excludePromptID string) (*model.ResponseRecord, error) {
	var rec model.ResponseRecord
	var status string
	var embeddingJSON []byte

	err := s.pool.QueryRow(ctx, getBaselineSQL, subjectID, modelKey, promptType, excludePromptID).
		Scan(&rec.ID, &rec.SubjectID, &rec.Model, &rec.PromptID, &rec.PromptType, &rec.Answer, &status, &rec.BatchID, &embeddingJSON, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get baseline %s/%s", subjectID, modelKey)
	}
	rec.Status = model.ResponseStatus(status)
	if len(embeddingJSON) > 0 {
		if rec.Embedding, err = unmarshalEmbedding(embeddingJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal embedding")
		}
	}
	return &rec, nil
}

func (s *PostgresStore) ListEmbeddings(ctx context.Context, subjectID, modelKey string, since time.Time) ([][]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT embedding FROM response_history
		WHERE domain_id = $1 AND model = $2 AND created_at >= $3 AND embedding IS NOT NULL
		ORDER BY created_at ASC`,
		subjectID, modelKey, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list embeddings")
	}
	defer rows.Close()

	var out [][]float64
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan embedding")
		}
		vec, err := unmarshalEmbedding(raw)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal embedding")
		}
		out = append(out, vec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list embeddings iterate")
}

// --- Drift ---

func (s *PostgresStore) InsertDrift(ctx context.Context, rec *model.DriftRecord) error {
	prepareDrift(rec)
	_, err := s.pool.Exec(ctx, insertDriftSQL, driftRow(*rec)...)
	return eris.Wrapf(err, "postgres: insert drift %s/%s", rec.Subject, rec.Model)
}

func (s *PostgresStore) InsertDriftBatch(ctx context.Context, recs []model.DriftRecord) error {
	for i := range recs {
		prepareDrift(&recs[i])
	}
	_, err := db.CopyRecords(ctx, s.pool, "drift_scores", driftColumns, recs, driftRow)
	return eris.Wrap(err, "postgres: insert drift batch")
}

func (s *PostgresStore) LatestDrift(ctx context.Context, subject string) (*model.DriftRecord, error) {
	rec, err := scanDrift(s.pool.QueryRow(ctx, latestDriftSQL, subject))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest drift %s", subject)
	}
	return rec, nil
}

func (s *PostgresStore) LatestDriftByModel(ctx context.Context, subject string, since time.Time) ([]model.DriftRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (model) drift_id, domain, model, prompt_id, prompt_type, ts_iso, similarity_prev, drift_score, status, explanation
		FROM drift_scores
		WHERE domain = $1 AND ts_iso >= $2 AND model <> $3
		ORDER BY model, ts_iso DESC`,
		subject, since.UTC(), model.EnsembleModel,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest drift by model %s", subject)
	}
	defer rows.Close()

	var out []model.DriftRecord
	for rows.Next() {
		rec, err := scanDrift(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan drift")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: latest drift by model iterate")
}

func (s *PostgresStore) DriftStats(ctx context.Context, subject string) (*model.DriftStats, error) {
	var st model.DriftStats
	err := s.pool.QueryRow(ctx, driftStatsSQL("$1"), subject).
		Scan(&st.Total, &st.Stable, &st.Drifting, &st.Decayed)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: drift stats %s", subject)
	}
	return &st, nil
}

func (s *PostgresStore) HighDriftSubjects(ctx context.Context, since time.Time, threshold float64, limit int) ([]SubjectDrift, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT domain, AVG(drift_score) AS avg_drift, COUNT(*)
		FROM drift_scores
		WHERE ts_iso > $1 AND status IN ('drifting', 'decayed')
		GROUP BY domain
		HAVING AVG(drift_score) > $2
		ORDER BY avg_drift DESC
		LIMIT $3`,
		since.UTC(), threshold, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: high drift subjects")
	}
	defer rows.Close()

	var out []SubjectDrift
	for rows.Next() {
		var sd SubjectDrift
		if err := rows.Scan(&sd.Subject, &sd.AvgDrift, &sd.Records); err != nil {
			return nil, eris.Wrap(err, "postgres: scan high drift subject")
		}
		out = append(out, sd)
	}
	return out, eris.Wrap(rows.Err(), "postgres: high drift subjects iterate")
}

func (s *PostgresStore) WindowDrift(ctx context.Context, since time.Time) (*WindowDrift, error) {
	var wd WindowDrift
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(drift_score), 0), COUNT(*) FROM drift_scores WHERE ts_iso > $1`,
		since.UTC(),
	).Scan(&wd.AvgDrift, &wd.Records)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: window drift")
	}
	return &wd, nil
}

// --- Ranking ---

func (s *PostgresStore) SubjectAggregates(ctx context.Context, cohort string) ([]model.SubjectAggregate, error) {
	rows, err := s.pool.Query(ctx, aggregatesSQL("($1::text = '' OR d.category = $1)"), cohort)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: subject aggregates")
	}
	defer rows.Close()

	var out []model.SubjectAggregate
	for rows.Next() {
		var agg model.SubjectAggregate
		if err := rows.Scan(&agg.Subject, &agg.Observations, &agg.Citations, &agg.AvgDrift); err != nil {
			return nil, eris.Wrap(err, "postgres: scan aggregate")
		}
		out = append(out, agg)
	}
	return out, eris.Wrap(rows.Err(), "postgres: subject aggregates iterate")
}

// --- Batches ---

func (s *PostgresStore) CreateBatch(ctx context.Context, batch *model.BatchRun) error {
	if batch.StartedAt.IsZero() {
		batch.StartedAt = time.Now().UTC()
	}
	batch.Status = model.BatchRunning
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_batches (batch_id, started_at, providers_queried, status) VALUES ($1, $2, $3, $4)`,
		batch.ID, batch.StartedAt, batch.ProvidersQueried, string(batch.Status),
	)
	return eris.Wrapf(err, "postgres: create batch %s", batch.ID)
}

func (s *PostgresStore) CompleteBatch(ctx context.Context, batch *model.BatchRun) error {
	completeBatchFields(batch)
	tag, err := s.pool.Exec(ctx,
		`UPDATE crawl_batches SET completed_at = $1, domains_processed = $2, providers_queried = $3,
		total_api_calls = $4, success_count = $5, error_count = $6, status = $7
		WHERE batch_id = $8`,
		batch.CompletedAt, batch.SubjectsProcessed, batch.ProvidersQueried,
		batch.TotalCalls, batch.Successes, batch.Failures, string(batch.Status), batch.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete batch %s", batch.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch not found: %s", batch.ID)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*model.BatchRun, error) {
	b, err := scanBatch(s.pool.QueryRow(ctx, selectBatchSQL+` WHERE batch_id = $1`, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get batch %s", batchID)
	}
	return b, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit int) ([]model.BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, selectBatchSQL+` ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var out []model.BatchRun
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}

// newID returns a random identifier for rows created by the store.
func newID() string {
	return uuid.New().String()
}
