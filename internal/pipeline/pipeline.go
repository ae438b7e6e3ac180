// Package pipeline drives one end-to-end batch: subject selection, provider
// fan-out, normalization, persistence and drift scoring.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/drift"
	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/orchestrator"
	"github.com/sells-group/domain-runner/internal/provider"
	"github.com/sells-group/domain-runner/internal/store"
)

// batchIDLayout formats generated batch identifiers.
const batchIDLayout = "20060102_150405"

// ErrBatchExists is returned when a batch label is already taken.
var ErrBatchExists = eris.New("batch already exists")

// Runner schedules provider calls for a set of subjects.
type Runner interface {
	Run(ctx context.Context, subjects []model.Subject, sink orchestrator.Sink) model.BatchStats
	Adapters() []provider.Adapter
}

// Request selects what a batch processes. All fields are optional.
type Request struct {
	// BatchID labels the batch and must be unused; a unique ID is generated
	// when empty.
	BatchID string `json:"batch"`
	// Domain restricts the batch to one subject, created if unknown.
	Domain string `json:"domain"`
	// ForceRefresh includes subjects observed within the refresh window.
	ForceRefresh bool `json:"force_refresh"`
	// Limit caps the number of subjects; zero uses the configured limit.
	Limit int `json:"limit"`
}

// Pipeline is the batch controller.
type Pipeline struct {
	cfg          config.BatchConfig
	driftEnabled bool
	store        store.Store
	runner       Runner
	engine       *drift.Engine
	embedder     drift.Embedder
	now          func() time.Time
}

// New creates a Pipeline. embedder may be nil, in which case responses are
// stored without embeddings and drift falls back to lexical similarity.
func New(cfg *config.Config, st store.Store, runner Runner, engine *drift.Engine, embedder drift.Embedder) *Pipeline {
	return &Pipeline{
		cfg:          cfg.Batch,
		driftEnabled: cfg.Drift.Enabled,
		store:        st,
		runner:       runner,
		engine:       engine,
		embedder:     embedder,
		now:          time.Now,
	}
}

// Run executes one batch and returns the closed batch record. Only a failure
// to open the batch or to select subjects is returned as an error; provider
// and persistence failures are counted or logged.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.BatchRun, error) {
	started := p.now().UTC()
	batch := &model.BatchRun{
		ID:               BatchID(req.BatchID, started),
		StartedAt:        started,
		ProvidersQueried: len(p.runner.Adapters()),
		Status:           model.BatchRunning,
	}
	log := zap.L().With(zap.String("batch_id", batch.ID))

	if err := p.checkLabel(ctx, req.BatchID); err != nil {
		return nil, err
	}
	if err := p.store.CreateBatch(ctx, batch); err != nil {
		return nil, eris.Wrap(err, "pipeline: create batch")
	}

	subjects, err := p.selectSubjects(ctx, req)
	if err != nil {
		p.closeBatch(ctx, batch, model.BatchStats{})
		return batch, eris.Wrap(err, "pipeline: select subjects")
	}
	log.Info("pipeline: starting batch",
		zap.Int("subjects", len(subjects)),
		zap.Int("providers", batch.ProvidersQueried),
		zap.Bool("force_refresh", req.ForceRefresh),
	)

	stats := p.runner.Run(ctx, subjects, p.sink(batch.ID))
	p.closeBatch(ctx, batch, stats)

	log.Info("pipeline: batch complete",
		zap.Int("subjects_processed", stats.SubjectsProcessed),
		zap.Int("total_calls", stats.TotalCalls),
		zap.Int("successes", stats.Successes),
		zap.Int("failures", stats.Failures),
		zap.Duration("duration", stats.Duration),
		zap.Bool("hard_deadline_hit", stats.HardDeadlineHit),
	)
	return batch, nil
}

// closeBatch records final tallies. It runs detached from ctx so a cancelled
// batch is still closed.
func (p *Pipeline) closeBatch(ctx context.Context, batch *model.BatchRun, stats model.BatchStats) {
	batch.SubjectsProcessed = stats.SubjectsProcessed
	batch.TotalCalls = stats.TotalCalls
	batch.Successes = stats.Successes
	batch.Failures = stats.Failures
	completed := p.now().UTC()
	batch.CompletedAt = &completed
	batch.Status = model.BatchCompleted
	if err := p.store.CompleteBatch(context.WithoutCancel(ctx), batch); err != nil {
		zap.L().Error("pipeline: complete batch failed",
			zap.String("batch_id", batch.ID),
			zap.Error(err),
		)
	}
}

// checkLabel rejects a caller-supplied label that names an existing batch.
func (p *Pipeline) checkLabel(ctx context.Context, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	existing, err := p.store.GetBatch(ctx, label)
	if err != nil {
		return eris.Wrapf(err, "pipeline: look up batch %s", label)
	}
	if existing != nil {
		return eris.Wrapf(ErrBatchExists, "pipeline: batch %s", label)
	}
	return nil
}

func (p *Pipeline) selectSubjects(ctx context.Context, req Request) ([]model.Subject, error) {
	if domain := strings.ToLower(strings.TrimSpace(req.Domain)); domain != "" {
		sub, err := p.getOrCreate(ctx, domain)
		if err != nil {
			return nil, err
		}
		return []model.Subject{*sub}, nil
	}

	filter := store.SubjectFilter{Limit: req.Limit}
	if filter.Limit <= 0 {
		filter.Limit = p.cfg.Limit
	}
	if !req.ForceRefresh && p.cfg.RefreshHours > 0 {
		stale := p.now().UTC().Add(-time.Duration(p.cfg.RefreshHours) * time.Hour)
		filter.StaleBefore = &stale
	}
	subjects, err := p.store.ListActiveSubjects(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list subjects")
	}
	return subjects, nil
}

func (p *Pipeline) getOrCreate(ctx context.Context, domain string) (*model.Subject, error) {
	sub, err := p.store.GetSubject(ctx, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: get subject %s", domain)
	}
	if sub != nil {
		return sub, nil
	}

	if _, err := p.store.UpsertSubjects(ctx, []model.Subject{{Domain: domain, Active: true}}); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create subject %s", domain)
	}
	sub, err = p.store.GetSubject(ctx, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: get subject %s", domain)
	}
	if sub == nil {
		return nil, eris.Errorf("pipeline: subject %s missing after create", domain)
	}
	zap.L().Info("pipeline: created subject", zap.String("subject", domain))
	return sub, nil
}

// BatchID returns the trimmed label, or a timestamped ID with a random
// suffix when it is empty.
func BatchID(label string, started time.Time) string {
	if label = strings.TrimSpace(label); label != "" {
		return label
	}
	return "batch_" + started.Format(batchIDLayout) + "_" + uuid.NewString()[:8]
}
