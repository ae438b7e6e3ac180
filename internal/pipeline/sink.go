package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/drift"
	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/normalize"
	"github.com/sells-group/domain-runner/internal/orchestrator"
)

// sink returns the per-result handler for one batch. Failed tasks are only
// logged; successful ones are normalized, stored and scored for drift.
func (p *Pipeline) sink(batchID string) orchestrator.Sink {
	return func(ctx context.Context, r orchestrator.Result) {
		log := zap.L().With(
			zap.String("batch_id", batchID),
			zap.String("subject", r.Subject.Domain),
			zap.String("model", r.Adapter.Config().Key()),
			zap.String("prompt_type", r.Prompt.Type),
		)
		if r.Err != nil {
			log.Warn("pipeline: task failed", zap.Int("attempts", r.Attempts), zap.Error(r.Err))
			return
		}
		if err := p.process(ctx, batchID, r); err != nil {
			log.Error("pipeline: persist result failed", zap.Error(err))
		}
	}
}

// process handles one successful provider answer.
func (p *Pipeline) process(ctx context.Context, batchID string, r orchestrator.Result) error {
	rec := p.buildRecord(ctx, batchID, r)

	// Baseline is read before the new answer is saved so it cannot match itself.
	var baseline *model.ResponseRecord
	if p.driftEnabled {
		b, err := p.store.GetBaseline(ctx, rec.SubjectID, rec.Model, rec.PromptType, rec.PromptID)
		if err != nil {
			zap.L().Warn("pipeline: load baseline failed",
				zap.String("subject", rec.Subject),
				zap.String("model", rec.Model),
				zap.Error(err),
			)
		}
		baseline = b
	}

	if err := p.store.SaveResponse(ctx, rec); err != nil {
		return eris.Wrap(err, "pipeline: save response")
	}
	if !p.driftEnabled {
		return nil
	}

	cmp := drift.Comparison{
		Subject:          rec.Subject,
		Model:            rec.Model,
		PromptID:         rec.PromptID,
		PromptType:       rec.PromptType,
		Current:          rec.Answer,
		CurrentEmbedding: rec.Embedding,
	}
	if baseline != nil {
		cmp.Baseline = baseline.Answer
		cmp.BaselineEmbedding = baseline.Embedding
	}
	dr := p.engine.Compute(ctx, cmp)
	if err := p.store.InsertDrift(ctx, &dr); err != nil {
		return eris.Wrap(err, "pipeline: insert drift")
	}
	zap.L().Debug("pipeline: drift recorded",
		zap.String("subject", dr.Subject),
		zap.String("model", dr.Model),
		zap.Float64("drift_score", dr.DriftScore),
		zap.String("status", string(dr.Status)),
	)
	return nil
}

func (p *Pipeline) buildRecord(ctx context.Context, batchID string, r orchestrator.Result) *model.ResponseRecord {
	raw := r.Response
	norm := normalize.Normalize(*raw)

	stored := raw.Text
	if len(raw.Payload) > 0 {
		stored = string(raw.Payload)
	}

	rec := &model.ResponseRecord{
		ID:          uuid.NewString(),
		SubjectID:   r.Subject.ID,
		Subject:     r.Subject.Domain,
		Model:       r.Adapter.Config().Key(),
		PromptID:    r.PromptID,
		PromptType:  r.Prompt.Type,
		Prompt:      r.Prompt.Render(r.Subject.Domain),
		Raw:         stored,
		Answer:      norm.Text,
		Status:      norm.Status,
		LatencyMs:   raw.LatencyMs,
		RetryCount:  raw.RetryCount,
		QualityFlag: raw.QualityFlag,
		BatchID:     batchID,
		Meta:        raw.Meta,
		CreatedAt:   p.now().UTC(),
	}

	if p.embedder != nil && norm.Status == model.StatusValid {
		vecs, err := p.embedder.Embed(ctx, []string{norm.Text})
		switch {
		case err != nil:
			zap.L().Warn("pipeline: embed answer failed",
				zap.String("subject", rec.Subject),
				zap.String("model", rec.Model),
				zap.Error(err),
			)
		case len(vecs) == 1:
			rec.Embedding = vecs[0]
		}
	}
	return rec
}
