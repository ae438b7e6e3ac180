// Package orchestrator fans (subject, provider, prompt) tasks out to provider
// adapters under a global concurrency ceiling, per-provider pacing, tiered
// start staggering, bounded retries, and a soft/hard time budget.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/domain-runner/internal/clock"
	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/provider"
	"github.com/sells-group/domain-runner/internal/resilience"
)

// Config holds the scheduling limits of one orchestrator.
type Config struct {
	GlobalConcurrency int
	ChunkSize         int
	SLATarget         time.Duration
	SLAMax            time.Duration
	MaxAttempts       int
	MediumOffset      time.Duration
	SlowOffset        time.Duration
}

// ConfigFrom converts the orchestrator config section.
func ConfigFrom(oc config.OrchestratorConfig) Config {
	return Config{
		GlobalConcurrency: oc.GlobalConcurrency,
		ChunkSize:         oc.ChunkSize,
		SLATarget:         time.Duration(oc.SLATargetSecs) * time.Second,
		SLAMax:            time.Duration(oc.SLAMaxSecs) * time.Second,
		MaxAttempts:       oc.MaxAttempts,
		MediumOffset:      time.Duration(oc.MediumOffsetMs) * time.Millisecond,
		SlowOffset:        time.Duration(oc.SlowOffsetMs) * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	if c.GlobalConcurrency <= 0 {
		c.GlobalConcurrency = 64
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Task is one (subject, provider, prompt) call. PromptID identifies the
// prompt instance and is shared by every provider asked the same question
// about the same subject in one batch.
type Task struct {
	Subject  model.Subject
	Prompt   model.Prompt
	PromptID string
	Adapter  provider.Adapter
}

// Result is the outcome of one task after retries.
type Result struct {
	Task
	Response *model.RawResponse
	Attempts int
	Err      error
}

// Sink consumes results as they complete. It is called concurrently from
// task goroutines and must be safe for concurrent use.
type Sink func(ctx context.Context, r Result)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for staggering, pacing, retries and deadlines.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// Orchestrator runs batches of provider calls. It owns its pacing state so
// independent instances do not interfere.
type Orchestrator struct {
	cfg      Config
	adapters []provider.Adapter
	prompts  []model.Prompt
	clock    clock.Clock
	sem      *semaphore.Weighted
	pacer    *Pacer
}

// New creates an Orchestrator over the configured subset of adapters.
func New(cfg Config, adapters []provider.Adapter, prompts []model.Prompt, opts ...Option) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		cfg:     cfg,
		prompts: prompts,
		clock:   clock.Real{},
	}
	for _, a := range adapters {
		if !a.IsConfigured() {
			zap.L().Debug("orchestrator: skipping unconfigured provider",
				zap.String("provider", a.Config().Key()),
			)
			continue
		}
		o.adapters = append(o.adapters, a)
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sem = semaphore.NewWeighted(int64(cfg.GlobalConcurrency))
	o.pacer = NewPacer(o.clock)
	return o
}

// Adapters returns the configured adapters the orchestrator schedules.
func (o *Orchestrator) Adapters() []provider.Adapter {
	return o.adapters
}

// stagger returns the admission delay for a tier.
func (o *Orchestrator) stagger(tier model.SpeedTier) time.Duration {
	switch tier {
	case model.TierMedium:
		return o.cfg.MediumOffset
	case model.TierSlow:
		return o.cfg.SlowOffset
	default:
		return 0
	}
}

// Run processes subjects chunk by chunk and reports every result to sink.
// Crossing the soft deadline is logged; crossing the hard deadline stops
// submission of further chunks. In-flight tasks always finish.
func (o *Orchestrator) Run(ctx context.Context, subjects []model.Subject, sink Sink) model.BatchStats {
	start := o.clock.Now()
	var stats model.BatchStats
	var successes, failures atomic.Int64

	zap.L().Info("orchestrator: starting batch",
		zap.Int("subjects", len(subjects)),
		zap.Int("providers", len(o.adapters)),
		zap.Int("prompts", len(o.prompts)),
		zap.Int("concurrency", o.cfg.GlobalConcurrency),
	)

	for chunkStart := 0; chunkStart < len(subjects); chunkStart += o.cfg.ChunkSize {
		if ctx.Err() != nil {
			zap.L().Warn("orchestrator: context canceled, stopping batch", zap.Error(ctx.Err()))
			break
		}

		chunkEnd := min(chunkStart+o.cfg.ChunkSize, len(subjects))
		chunk := subjects[chunkStart:chunkEnd]
		calls := o.runChunk(ctx, chunk, sink, &successes, &failures)

		stats.SubjectsProcessed += len(chunk)
		stats.TotalCalls += calls

		elapsed := o.clock.Now().Sub(start)
		zap.L().Info("orchestrator: chunk complete",
			zap.Int("processed", stats.SubjectsProcessed),
			zap.Int("total", len(subjects)),
			zap.Int64("successes", successes.Load()),
			zap.Int64("failures", failures.Load()),
			zap.Duration("elapsed", elapsed),
		)

		if o.cfg.SLAMax > 0 && elapsed > o.cfg.SLAMax {
			stats.HardDeadlineHit = true
			zap.L().Error("orchestrator: hard deadline exceeded, stopping batch",
				zap.Error(resilience.ErrDeadlineExceeded),
				zap.Duration("elapsed", elapsed),
				zap.Duration("sla_max", o.cfg.SLAMax),
				zap.Int("skipped_subjects", len(subjects)-stats.SubjectsProcessed),
			)
			break
		}
		if o.cfg.SLATarget > 0 && elapsed > o.cfg.SLATarget && !stats.SoftDeadlineHit {
			stats.SoftDeadlineHit = true
			zap.L().Warn("orchestrator: soft deadline exceeded, continuing",
				zap.Duration("elapsed", elapsed),
				zap.Duration("sla_target", o.cfg.SLATarget),
			)
		}
	}

	stats.Successes = int(successes.Load())
	stats.Failures = int(failures.Load())
	stats.Duration = o.clock.Now().Sub(start)
	return stats
}

// runChunk fans out every task of the chunk and waits for all of them. It
// returns the number of tasks run.
func (o *Orchestrator) runChunk(ctx context.Context, chunk []model.Subject, sink Sink, successes, failures *atomic.Int64) int {
	var g errgroup.Group
	calls := 0

	for _, subject := range chunk {
		for _, prompt := range o.prompts {
			promptID := uuid.New().String()
			for _, adapter := range o.adapters {
				task := Task{Subject: subject, Prompt: prompt, PromptID: promptID, Adapter: adapter}
				calls++
				g.Go(func() error {
					res := o.execute(ctx, task)
					if res.Err != nil {
						failures.Add(1)
					} else {
						successes.Add(1)
					}
					if sink != nil {
						sink(ctx, res)
					}
					return nil // a failed task never aborts its siblings
				})
			}
		}
	}

	_ = g.Wait()
	return calls
}

// execute runs one task: tier stagger, then up to MaxAttempts attempts.
// Each attempt holds a concurrency slot while it is paced and sent; backoff
// sleeps happen outside the slot.
func (o *Orchestrator) execute(ctx context.Context, task Task) Result {
	pc := task.Adapter.Config()
	log := zap.L().With(
		zap.String("subject", task.Subject.Domain),
		zap.String("provider", pc.Name),
		zap.String("model", pc.Model),
		zap.String("prompt_type", task.Prompt.Type),
	)
	res := Result{Task: task}

	if offset := o.stagger(pc.Tier); offset > 0 {
		if err := o.clock.Sleep(ctx, offset); err != nil {
			res.Err = err
			return res
		}
	}

	retryCfg := resilience.ForTier(pc.Tier, o.cfg.MaxAttempts, o.clock)
	retryCfg.OnRetry = resilience.RetryLogger(
		zap.String("subject", task.Subject.Domain),
		zap.String("provider", pc.Key()),
	)

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.RawResponse, error) {
		res.Attempts++
		return o.attempt(ctx, task)
	})
	if err != nil {
		log.Warn("provider task failed", zap.Int("attempts", res.Attempts), zap.Error(err))
		res.Err = err
		return res
	}

	resp.RetryCount = res.Attempts - 1
	res.Response = resp
	return res
}

func (o *Orchestrator) attempt(ctx context.Context, task Task) (*model.RawResponse, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.sem.Release(1)

	if _, err := o.pacer.Wait(ctx, task.Adapter.Config()); err != nil {
		return nil, err
	}
	return task.Adapter.Query(ctx, task.Subject.Domain, task.Prompt)
}
