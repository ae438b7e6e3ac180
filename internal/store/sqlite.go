package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/domain-runner/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS domains (
	id               TEXT PRIMARY KEY,
	domain           TEXT NOT NULL UNIQUE,
	category         TEXT NOT NULL DEFAULT '',
	active           INTEGER NOT NULL DEFAULT 1,
	priority         INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	last_observed_at DATETIME
);

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
	meta              TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
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
	embedding         TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS drift_scores (
	drift_id        TEXT PRIMARY KEY,
	domain          TEXT NOT NULL,
	model           TEXT NOT NULL,
	prompt_id       TEXT NOT NULL DEFAULT '',
	prompt_type     TEXT NOT NULL DEFAULT '',
	ts_iso          DATETIME NOT NULL DEFAULT (datetime('now')),
	similarity_prev REAL NOT NULL,
	drift_score     REAL NOT NULL CHECK (drift_score >= 0 AND drift_score <= 1),
	status          TEXT NOT NULL,
	explanation     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS crawl_batches (
	batch_id          TEXT PRIMARY KEY,
	started_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at      DATETIME,
	domains_processed INTEGER NOT NULL DEFAULT 0,
	providers_queried INTEGER NOT NULL DEFAULT 0,
	total_api_calls   INTEGER NOT NULL DEFAULT 0,
	success_count     INTEGER NOT NULL DEFAULT 0,
	error_count       INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_domains_active ON domains(active, priority);
CREATE INDEX IF NOT EXISTS idx_history_baseline ON response_history(domain_id, model, prompt_type, created_at);
CREATE INDEX IF NOT EXISTS idx_drift_domain_ts ON drift_scores(domain, ts_iso);
CREATE INDEX IF NOT EXISTS idx_crawl_batches_started ON crawl_batches(started_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Subjects ---

func (s *SQLiteStore) UpsertSubjects(ctx context.Context, subjects []model.Subject) (int64, error) {
	prepared := prepareSubjects(subjects)
	if len(prepared) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert subjects: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, sub := range prepared {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO domains (id, domain, category, active, priority, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(domain) DO UPDATE SET
				category = excluded.category, active = excluded.active, priority = excluded.priority`,
			sub.ID, sub.Domain, sub.Category, sub.Active, sub.Priority, sub.CreatedAt.UTC(),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert subject %s", sub.Domain)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert subjects: commit")
	}
	return n, nil
}

func (s *SQLiteStore) ListActiveSubjects(ctx context.Context, filter SubjectFilter) ([]model.Subject, error) {
	query := `SELECT id, domain, category, active, priority, created_at FROM domains WHERE active = 1`
	args := []any{}

	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.StaleBefore != nil {
		query += ` AND (last_observed_at IS NULL OR last_observed_at < ?)`
		args = append(args, filter.StaleBefore.UTC())
	}
	query += ` ORDER BY priority DESC, created_at, domain`

	// SQLite requires LIMIT before OFFSET.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subjects")
	}
	defer rows.Close() //nolint:errcheck

	var subjects []model.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subject")
		}
		subjects = append(subjects, *sub)
	}
	return subjects, eris.Wrap(rows.Err(), "sqlite: list subjects iterate")
}

func (s *SQLiteStore) GetSubject(ctx context.Context, domain string) (*model.Subject, error) {
	sub, err := scanSubject(s.db.QueryRowContext(ctx,
		`SELECT id, domain, category, active, priority, created_at FROM domains WHERE domain = ?`, domain))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get subject %s", domain)
	}
	return sub, nil
}

func (s *SQLiteStore) DeactivateSubject(ctx context.Context, domain string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE domains SET active = 0 WHERE domain = ?`, domain)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate subject %s", domain)
	}
	return checkRowsAffected(res, "subject", domain)
}

// --- Responses ---

func (s *SQLiteStore) SaveResponse(ctx context.Context, rec *model.ResponseRecord) error {
	prepareResponse(rec)

	var metaJSON []byte
	if rec.Meta != nil {
		var err error
		if metaJSON, err = json.Marshal(rec.Meta); err != nil {
			return eris.Wrap(err, "sqlite: marshal meta")
		}
	}
	embeddingJSON, err := marshalEmbedding(rec.Embedding)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal embedding")
	}
	createdAt := rec.CreatedAt.UTC()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (id, domain_id, model, prompt_id, prompt_type, prompt, raw_response, answer, normalized_status, latency_ms, retry_count, quality_flag, batch_id, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain_id, model) DO UPDATE SET
			prompt_id = excluded.prompt_id, prompt_type = excluded.prompt_type, prompt = excluded.prompt,
			raw_response = excluded.raw_response, answer = excluded.answer, normalized_status = excluded.normalized_status,
			latency_ms = excluded.latency_ms, retry_count = excluded.retry_count, quality_flag = excluded.quality_flag,
			batch_id = excluded.batch_id, meta = excluded.meta, created_at = excluded.created_at`,
		rec.ID, rec.SubjectID, rec.Model, rec.PromptID, rec.PromptType, rec.Prompt, rec.Raw, rec.Answer,
		string(rec.Status), rec.LatencyMs, rec.RetryCount, rec.QualityFlag, rec.BatchID, nullableText(metaJSON), createdAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: upsert response %s/%s", rec.Subject, rec.Model)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO response_history (id, domain_id, model, prompt_id, prompt_type, answer, normalized_status, batch_id, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SubjectID, rec.Model, rec.PromptID, rec.PromptType, rec.Answer,
		string(rec.Status), rec.BatchID, nullableText(embeddingJSON), createdAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert response history %s/%s", rec.Subject, rec.Model)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE domains SET last_observed_at = ? WHERE id = ?`, createdAt, rec.SubjectID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: touch subject %s", rec.SubjectID)
	}
	return nil
}

func (s *SQLiteStore) GetBaseline(ctx context.Context, subjectID, modelKey, promptType, excludePromptID string) (*model.ResponseRecord, error) {
	var rec model.ResponseRecord
	var status string
	var embeddingJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, domain_id, model, prompt_id, prompt_type, answer, normalized_status, batch_id, embedding, created_at
		FROM response_history
		WHERE domain_id = ? AND model = ? AND prompt_type = ? AND prompt_id <> ? AND normalized_status = 'valid'
		ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		subjectID, modelKey, promptType, excludePromptID,
	).Scan(&rec.ID, &rec.SubjectID, &rec.Model, &rec.PromptID, &rec.PromptType, &rec.Answer, &status, &rec.BatchID, &embeddingJSON, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get baseline %s/%s", subjectID, modelKey)
	}
	rec.Status = model.ResponseStatus(status)
	if embeddingJSON.Valid {
		if rec.Embedding, err = unmarshalEmbedding([]byte(embeddingJSON.String)); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal embedding")
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) ListEmbeddings(ctx context.Context, subjectID, modelKey string, since time.Time) ([][]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT embedding FROM response_history
		WHERE domain_id = ? AND model = ? AND created_at >= ? AND embedding IS NOT NULL
		ORDER BY created_at ASC, rowid ASC`,
		subjectID, modelKey, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list embeddings")
	}
	defer rows.Close() //nolint:errcheck

	var out [][]float64
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan embedding")
		}
		vec, err := unmarshalEmbedding([]byte(raw))
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal embedding")
		}
		out = append(out, vec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list embeddings iterate")
}

// --- Drift ---

const sqliteInsertDrift = `INSERT INTO drift_scores (drift_id, domain, model, prompt_id, prompt_type, ts_iso, similarity_prev, drift_score, status, explanation)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) InsertDrift(ctx context.Context, rec *model.DriftRecord) error {
	prepareDrift(rec)
	_, err := s.db.ExecContext(ctx, sqliteInsertDrift, driftRow(*rec)...)
	return eris.Wrapf(err, "sqlite: insert drift %s/%s", rec.Subject, rec.Model)
}

func (s *SQLiteStore) InsertDriftBatch(ctx context.Context, recs []model.DriftRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert drift batch: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertDrift)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert drift batch: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range recs {
		rec := &recs[i]
		prepareDrift(rec)
		if _, err := stmt.ExecContext(ctx, driftRow(*rec)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert drift batch %s/%s", rec.Subject, rec.Model)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: insert drift batch: commit")
}

func (s *SQLiteStore) LatestDrift(ctx context.Context, subject string) (*model.DriftRecord, error) {
	rec, err := scanDrift(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteDriftCols+` FROM drift_scores WHERE domain = ? ORDER BY ts_iso DESC, rowid DESC LIMIT 1`,
		subject,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: latest drift %s", subject)
	}
	return rec, nil
}

// LatestDriftByModel keeps the newest record per model in the window.
func (s *SQLiteStore) LatestDriftByModel(ctx context.Context, subject string, since time.Time) ([]model.DriftRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteDriftCols+` FROM drift_scores
		WHERE domain = ? AND ts_iso >= ? AND model <> ?
		ORDER BY model, ts_iso DESC, rowid DESC`,
		subject, since.UTC(), model.EnsembleModel,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest drift by model %s", subject)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DriftRecord
	seen := make(map[string]bool)
	for rows.Next() {
		rec, err := scanDrift(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan drift")
		}
		if seen[rec.Model] {
			continue
		}
		seen[rec.Model] = true
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: latest drift by model iterate")
}

func (s *SQLiteStore) DriftStats(ctx context.Context, subject string) (*model.DriftStats, error) {
	var st model.DriftStats
	err := s.db.QueryRowContext(ctx, driftStatsSQL("?"), subject).
		Scan(&st.Total, &st.Stable, &st.Drifting, &st.Decayed)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: drift stats %s", subject)
	}
	return &st, nil
}

func (s *SQLiteStore) HighDriftSubjects(ctx context.Context, since time.Time, threshold float64, limit int) ([]SubjectDrift, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, AVG(drift_score) AS avg_drift, COUNT(*)
		FROM drift_scores
		WHERE ts_iso > ? AND status IN ('drifting', 'decayed')
		GROUP BY domain
		HAVING AVG(drift_score) > ?
		ORDER BY avg_drift DESC
		LIMIT ?`,
		since.UTC(), threshold, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: high drift subjects")
	}
	defer rows.Close() //nolint:errcheck

	var out []SubjectDrift
	for rows.Next() {
		var sd SubjectDrift
		if err := rows.Scan(&sd.Subject, &sd.AvgDrift, &sd.Records); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan high drift subject")
		}
		out = append(out, sd)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: high drift subjects iterate")
}

func (s *SQLiteStore) WindowDrift(ctx context.Context, since time.Time) (*WindowDrift, error) {
	var wd WindowDrift
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(drift_score), 0), COUNT(*) FROM drift_scores WHERE ts_iso > ?`,
		since.UTC(),
	).Scan(&wd.AvgDrift, &wd.Records)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: window drift")
	}
	return &wd, nil
}

// --- Ranking ---

func (s *SQLiteStore) SubjectAggregates(ctx context.Context, cohort string) ([]model.SubjectAggregate, error) {
	rows, err := s.db.QueryContext(ctx, aggregatesSQL("(?1 = '' OR d.category = ?1)"), cohort)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: subject aggregates")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SubjectAggregate
	for rows.Next() {
		var agg model.SubjectAggregate
		if err := rows.Scan(&agg.Subject, &agg.Observations, &agg.Citations, &agg.AvgDrift); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan aggregate")
		}
		out = append(out, agg)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: subject aggregates iterate")
}

// --- Batches ---

func (s *SQLiteStore) CreateBatch(ctx context.Context, batch *model.BatchRun) error {
	if batch.StartedAt.IsZero() {
		batch.StartedAt = time.Now().UTC()
	}
	batch.Status = model.BatchRunning
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_batches (batch_id, started_at, providers_queried, status) VALUES (?, ?, ?, ?)`,
		batch.ID, batch.StartedAt.UTC(), batch.ProvidersQueried, string(batch.Status),
	)
	return eris.Wrapf(err, "sqlite: create batch %s", batch.ID)
}

func (s *SQLiteStore) CompleteBatch(ctx context.Context, batch *model.BatchRun) error {
	completeBatchFields(batch)
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_batches SET completed_at = ?, domains_processed = ?, providers_queried = ?,
		total_api_calls = ?, success_count = ?, error_count = ?, status = ?
		WHERE batch_id = ?`,
		batch.CompletedAt.UTC(), batch.SubjectsProcessed, batch.ProvidersQueried,
		batch.TotalCalls, batch.Successes, batch.Failures, string(batch.Status), batch.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete batch %s", batch.ID)
	}
	return checkRowsAffected(res, "batch", batch.ID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.BatchRun, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx, selectBatchSQL+` WHERE batch_id = ?`, batchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get batch %s", batchID)
	}
	return b, nil
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]model.BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectBatchSQL+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.BatchRun
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list batches iterate")
}

const sqliteDriftCols = `drift_id, domain, model, prompt_id, prompt_type, ts_iso, similarity_prev, drift_score, status, explanation`

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanSubject(row scannable) (*model.Subject, error) {
	var sub model.Subject
	if err := row.Scan(&sub.ID, &sub.Domain, &sub.Category, &sub.Active, &sub.Priority, &sub.CreatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

// nullableText stores empty JSON payloads as NULL.
func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
