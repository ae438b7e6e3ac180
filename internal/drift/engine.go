// Package drift compares answers against their stored baselines and
// classifies how far they moved.
package drift

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/normalize"
)

// Embedder turns texts into sentence embeddings.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Comparison is one current answer paired with its baseline. Embeddings are
// optional; when both are present the semantic strategy is used.
type Comparison struct {
	Subject           string
	Model             string
	PromptID          string
	PromptType        string
	Current           string
	Baseline          string
	CurrentEmbedding  []float64
	BaselineEmbedding []float64
}

// Engine computes drift records.
type Engine struct {
	thresholds Thresholds
	weights    Weights
	embedder   Embedder
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds overrides the default drift thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithWeights overrides the default composite weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithEmbedder enables semantic similarity for comparisons that carry no
// precomputed embeddings.
func WithEmbedder(emb Embedder) Option {
	return func(e *Engine) { e.embedder = emb }
}

// WithNow overrides the record timestamp source.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a drift engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		thresholds: DefaultThresholds(),
		weights:    DefaultWeights(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Thresholds returns the engine's classification thresholds.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Compute classifies one comparison. It never fails: embedding errors fall
// back to lexical similarity.
func (e *Engine) Compute(ctx context.Context, c Comparison) model.DriftRecord {
	rec := model.DriftRecord{
		ID:         uuid.NewString(),
		Subject:    c.Subject,
		Model:      c.Model,
		PromptID:   c.PromptID,
		PromptType: c.PromptType,
		Timestamp:  e.now().UTC(),
	}

	if normalize.IsTooShort(c.Current) {
		rec.SimilarityPrev = 0
		rec.DriftScore = 1
		rec.Status = model.DriftDecayed
		rec.Explanation = "Current answer is empty or too short"
		return rec
	}
	if normalize.IsTooShort(c.Baseline) {
		rec.SimilarityPrev = 1
		rec.DriftScore = 0
		rec.Status = model.DriftStable
		rec.Explanation = "No baseline available (first measurement)"
		return rec
	}

	sim := Clamp01(e.similarity(ctx, c))
	rec.SimilarityPrev = sim
	rec.DriftScore = Clamp01(1 - sim)
	rec.Status = e.thresholds.Classify(rec.DriftScore)
	rec.Explanation = explain(rec.Status, sim)
	return rec
}

// ComputeWeighted classifies a composite of self, peer and canonical
// similarities using the similarity thresholds.
func (e *Engine) ComputeWeighted(subject, modelName, promptID string, self, peer, canonical float64) (model.DriftRecord, error) {
	sim, err := Composite(self, peer, canonical, e.weights)
	if err != nil {
		return model.DriftRecord{}, err
	}
	status := ClassifySimilarity(sim)
	return model.DriftRecord{
		ID:             uuid.NewString(),
		Subject:        subject,
		Model:          modelName,
		PromptID:       promptID,
		Timestamp:      e.now().UTC(),
		SimilarityPrev: sim,
		DriftScore:     Clamp01(1 - sim),
		Status:         status,
		Explanation:    explain(status, sim),
	}, nil
}

func (e *Engine) similarity(ctx context.Context, c Comparison) float64 {
	if len(c.CurrentEmbedding) > 0 && len(c.BaselineEmbedding) > 0 {
		return SemanticSimilarity(c.CurrentEmbedding, c.BaselineEmbedding)
	}
	if e.embedder != nil {
		vecs, err := e.embedder.Embed(ctx, []string{c.Current, c.Baseline})
		if err == nil && len(vecs) == 2 {
			return SemanticSimilarity(vecs[0], vecs[1])
		}
		zap.L().Warn("drift: embedding failed, using lexical similarity",
			zap.String("subject", c.Subject),
			zap.String("model", c.Model),
			zap.Error(err),
		)
	}
	return Jaccard(c.Current, c.Baseline)
}

func explain(status model.DriftStatus, sim float64) string {
	switch status {
	case model.DriftStable:
		return fmt.Sprintf("Answer is consistent with baseline (similarity: %.2f)", sim)
	case model.DriftDrifting:
		return fmt.Sprintf("Answer shows moderate drift from baseline (similarity: %.2f)", sim)
	default:
		return fmt.Sprintf("Answer has significantly decayed from baseline (similarity: %.2f)", sim)
	}
}

// TemporalDrift returns the drift between each consecutive pair of an
// ordered embedding sequence. Fewer than two embeddings yield nil.
func TemporalDrift(embeddings [][]float64) []float64 {
	if len(embeddings) < 2 {
		return nil
	}
	out := make([]float64, 0, len(embeddings)-1)
	for i := 1; i < len(embeddings); i++ {
		out = append(out, Clamp01(1-SemanticSimilarity(embeddings[i-1], embeddings[i])))
	}
	return out
}

// EnsembleDrift aggregates the drift of several models for one subject.
// Disagreement above threshold is penalized by adding the population
// standard deviation to the mean.
func EnsembleDrift(drifts []float64, threshold float64) float64 {
	if len(drifts) == 0 {
		return 0
	}
	mean, std := meanStd(drifts)
	if std > threshold {
		return Clamp01(mean + std)
	}
	return Clamp01(mean)
}

func meanStd(vals []float64) (mean, std float64) {
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(vals)))
}
