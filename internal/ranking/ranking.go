// Package ranking orders subjects by a composite of citation volume and
// answer stability.
package ranking

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/model"
)

// Composite score weights.
const (
	CitationWeight  = 0.7
	StabilityWeight = 0.3
)

// StabilityScore maps an average drift to a 0..100 stability score.
func StabilityScore(avgDrift float64) float64 {
	return 100 * (1 - avgDrift)
}

// Score returns the composite score of one subject.
func Score(citations int, avgDrift float64) float64 {
	return CitationWeight*float64(citations) + StabilityWeight*StabilityScore(avgDrift)
}

// Rank scores every aggregate with at least one observation, sorts by score
// descending, and assigns 1-based ranks by position. Ties keep the input
// order. A positive limit truncates the result after ranking.
func Rank(aggs []model.SubjectAggregate, limit int) []model.BrandScore {
	scores := make([]model.BrandScore, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Observations <= 0 {
			continue
		}
		scores = append(scores, model.BrandScore{
			Subject:        agg.Subject,
			Score:          Score(agg.Citations, agg.AvgDrift),
			CitationCount:  agg.Citations,
			AvgDrift:       agg.AvgDrift,
			StabilityScore: StabilityScore(agg.AvgDrift),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	for i := range scores {
		scores[i].Rank = i + 1
	}
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

// AggregateSource reads per-subject aggregates. store.Store satisfies it.
type AggregateSource interface {
	SubjectAggregates(ctx context.Context, cohort string) ([]model.SubjectAggregate, error)
}

// Engine computes rankings from stored aggregates.
type Engine struct {
	source       AggregateSource
	defaultLimit int
}

// NewEngine creates an Engine. defaultLimit applies when a request passes
// no limit.
func NewEngine(source AggregateSource, defaultLimit int) *Engine {
	return &Engine{source: source, defaultLimit: defaultLimit}
}

// Compute recomputes the ranking for a cohort. An empty cohort ranks every
// active subject.
func (e *Engine) Compute(ctx context.Context, cohort string, limit int) ([]model.BrandScore, error) {
	if limit <= 0 {
		limit = e.defaultLimit
	}
	aggs, err := e.source.SubjectAggregates(ctx, cohort)
	if err != nil {
		return nil, eris.Wrap(err, "ranking: load aggregates")
	}

	scores := Rank(aggs, limit)
	zap.L().Debug("ranking: computed",
		zap.String("cohort", cohort),
		zap.Int("candidates", len(aggs)),
		zap.Int("ranked", len(scores)),
	)
	return scores, nil
}
