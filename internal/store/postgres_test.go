package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-runner/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetSubject_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, domain, category, active, priority, created_at FROM domains WHERE domain = \$1`).
		WithArgs("unknown.com").
		WillReturnError(pgx.ErrNoRows)

	sub, err := s.GetSubject(context.Background(), "unknown.com")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSubject_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM domains WHERE domain = \$1`).
		WithArgs("acme.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "domain", "category", "active", "priority", "created_at"}).
			AddRow("sub-1", "acme.com", "saas", true, 3, created))

	sub, err := s.GetSubject(context.Background(), "acme.com")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, 3, sub.Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListActiveSubjects_BuildsFilters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE active = true AND category = \$1 AND \(last_observed_at IS NULL OR last_observed_at < \$2\) ORDER BY priority DESC, created_at, domain LIMIT \$3`).
		WithArgs("saas", cutoff, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "domain", "category", "active", "priority", "created_at"}).
			AddRow("sub-1", "acme.com", "saas", true, 0, cutoff))

	subs, err := s.ListActiveSubjects(context.Background(), SubjectFilter{Category: "saas", StaleBefore: &cutoff, Limit: 5})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "acme.com", subs[0].Domain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeactivateSubject_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE domains SET active = false WHERE domain = \$1`).
		WithArgs("missing.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.DeactivateSubject(context.Background(), "missing.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSubjects_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.UpsertSubjects(context.Background(), []model.Subject{{Domain: "  "}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResponse(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO responses .* ON CONFLICT \(domain_id, model\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO response_history`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE domains SET last_observed_at = \$1 WHERE id = \$2`).
		WithArgs(pgxmock.AnyArg(), "sub-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rec := &model.ResponseRecord{
		SubjectID: "sub-1", Subject: "acme.com", Model: "openai/gpt-4o-mini",
		PromptID: "p1", PromptType: "business_analysis", Answer: "Acme builds rockets",
		Status: model.StatusValid, Embedding: []float64{0.5, 0.5},
	}
	require.NoError(t, s.SaveResponse(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResponse_HistoryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO responses`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO response_history`).
		WillReturnError(errors.New("disk full"))

	err := s.SaveResponse(context.Background(), &model.ResponseRecord{SubjectID: "sub-1", Subject: "acme.com", Model: "openai/gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert response history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBaseline(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM response_history\s+WHERE domain_id = \$1 AND model = \$2 AND prompt_type = \$3 AND prompt_id <> \$4 AND normalized_status = 'valid'`).
		WithArgs("sub-1", "openai/gpt-4o-mini", "business_analysis", "p2").
		WillReturnRows(pgxmock.NewRows([]string{"id", "domain_id", "model", "prompt_id", "prompt_type", "answer", "normalized_status", "batch_id", "embedding", "created_at"}).
			AddRow("r1", "sub-1", "openai/gpt-4o-mini", "p1", "business_analysis", "old answer", "valid", "b1", []byte(`[1,0]`), created))

	rec, err := s.GetBaseline(context.Background(), "sub-1", "openai/gpt-4o-mini", "business_analysis", "p2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "old answer", rec.Answer)
	assert.Equal(t, model.StatusValid, rec.Status)
	assert.Equal(t, []float64{1, 0}, rec.Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBaseline_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM response_history`).
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetBaseline(context.Background(), "sub-1", "openai/gpt-4o-mini", "business_analysis", "p2")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDrift(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO drift_scores`).
		WithArgs(pgxmock.AnyArg(), "acme.com", "openai/gpt-4o-mini", "p1", "business_analysis", pgxmock.AnyArg(),
			0.4, 0.6, "drifting", "moved").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.DriftRecord{
		Subject: "acme.com", Model: "openai/gpt-4o-mini", PromptID: "p1", PromptType: "business_analysis",
		SimilarityPrev: 0.4, DriftScore: 0.6, Status: model.DriftDrifting, Explanation: "moved",
	}
	require.NoError(t, s.InsertDrift(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDriftBatch_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"drift_scores"}, driftColumns).
		WillReturnResult(2)

	err := s.InsertDriftBatch(context.Background(), []model.DriftRecord{
		{Subject: "a.com", Model: model.EnsembleModel, DriftScore: 0.5, Status: model.DriftDrifting},
		{Subject: "b.com", Model: model.EnsembleModel, DriftScore: 0.9, Status: model.DriftDecayed},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestDriftByModel(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT DISTINCT ON \(model\)`).
		WithArgs("acme.com", ts, model.EnsembleModel).
		WillReturnRows(pgxmock.NewRows(driftColumns).
			AddRow("d1", "acme.com", "groq/llama", "p1", "business_analysis", ts, 0.9, 0.1, "stable", "").
			AddRow("d2", "acme.com", "openai/gpt", "p1", "business_analysis", ts, 0.2, 0.8, "decayed", ""))

	recs, err := s.LatestDriftByModel(context.Background(), "acme.com", ts)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.DriftDecayed, recs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DriftStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM drift_scores WHERE domain = \$1`).
		WithArgs("acme.com").
		WillReturnRows(pgxmock.NewRows([]string{"count", "stable", "drifting", "decayed"}).
			AddRow(6, 3, 2, 1))

	stats, err := s.DriftStats(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Equal(t, model.DriftStats{Total: 6, Stable: 3, Drifting: 2, Decayed: 1}, *stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HighDriftSubjects(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`HAVING AVG\(drift_score\) > \$2`).
		WithArgs(since, 0.3, 10).
		WillReturnRows(pgxmock.NewRows([]string{"domain", "avg_drift", "count"}).
			AddRow("acme.com", 0.72, 4))

	out, err := s.HighDriftSubjects(context.Background(), since, 0.3, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, SubjectDrift{Subject: "acme.com", AvgDrift: 0.72, Records: 4}, out[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SubjectAggregates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM domains d\s+LEFT JOIN`).
		WithArgs("saas").
		WillReturnRows(pgxmock.NewRows([]string{"domain", "observations", "citations", "avg_drift"}).
			AddRow("acme.com", 12, 10, 0.1).
			AddRow("idle.com", 0, 0, 0.0))

	aggs, err := s.SubjectAggregates(context.Background(), "saas")
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, 10, aggs[0].Citations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE crawl_batches SET completed_at`).
		WithArgs(pgxmock.AnyArg(), 3, 4, 12, 11, 1, "completed", "rust_crawler_20240301_120000").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	batch := &model.BatchRun{
		ID: "rust_crawler_20240301_120000", SubjectsProcessed: 3, ProvidersQueried: 4,
		TotalCalls: 12, Successes: 11, Failures: 1, Status: model.BatchRunning,
	}
	require.NoError(t, s.CompleteBatch(context.Background(), batch))
	assert.Equal(t, model.BatchCompleted, batch.Status)
	assert.NotNil(t, batch.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBatch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM crawl_batches WHERE batch_id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	b, err := s.GetBatch(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS domains`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WindowDrift(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COALESCE\(AVG\(drift_score\), 0\), COUNT\(\*\) FROM drift_scores WHERE ts_iso > \$1`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"avg", "count"}).AddRow(0.42, 17))

	wd, err := s.WindowDrift(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, WindowDrift{AvgDrift: 0.42, Records: 17}, *wd)
	assert.NoError(t, mock.ExpectationsWereMet())
}
