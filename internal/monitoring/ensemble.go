package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/drift"
	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/store"
)

// TemporalSummary describes how one model's answers about a subject moved
// across consecutive embeddings in the similarity window.
type TemporalSummary struct {
	Subject   string  `json:"domain"`
	Model     string  `json:"model"`
	Points    int     `json:"points"`
	MeanDrift float64 `json:"mean_drift"`
	MaxDrift  float64 `json:"max_drift"`
}

// EnsembleReport is the outcome of one ensemble pass.
type EnsembleReport struct {
	SubjectsChecked int                 `json:"subjects_checked"`
	Temporal        []TemporalSummary   `json:"temporal,omitempty"`
	Records         []model.DriftRecord `json:"records,omitempty"`
}

// Ensembler aggregates per-model drift into cross-model ensemble records.
type Ensembler struct {
	store        store.Store
	engine       *drift.Engine
	disagreement float64
	window       time.Duration
	now          func() time.Time
}

// NewEnsembler creates an Ensembler from the drift config.
func NewEnsembler(st store.Store, engine *drift.Engine, cfg config.DriftConfig) *Ensembler {
	days := cfg.SimilarityWindowDays
	if days <= 0 {
		days = 7
	}
	return &Ensembler{
		store:        st,
		engine:       engine,
		disagreement: cfg.DisagreementThreshold,
		window:       time.Duration(days) * 24 * time.Hour,
		now:          time.Now,
	}
}

// Run visits every active subject. For each model with a recent drift
// record it summarizes temporal drift over stored embeddings, then combines
// the latest per-model drifts into an ensemble value. Ensemble values above
// the stable threshold are appended as drift records for the "ensemble"
// model.
func (e *Ensembler) Run(ctx context.Context) (*EnsembleReport, error) {
	subjects, err := e.store.ListActiveSubjects(ctx, store.SubjectFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list subjects")
	}

	now := e.now().UTC()
	since := now.Add(-e.window)
	report := &EnsembleReport{}

	for _, sub := range subjects {
		if ctx.Err() != nil {
			return report, eris.Wrap(ctx.Err(), "monitoring: ensemble canceled")
		}
		report.SubjectsChecked++
		log := zap.L().With(zap.String("subject", sub.Domain))

		latest, err := e.store.LatestDriftByModel(ctx, sub.Domain, since)
		if err != nil {
			log.Warn("monitoring: load latest drift failed", zap.Error(err))
			continue
		}

		drifts := make([]float64, 0, len(latest))
		for _, rec := range latest {
			drifts = append(drifts, rec.DriftScore)

			embeddings, err := e.store.ListEmbeddings(ctx, sub.ID, rec.Model, since)
			if err != nil {
				log.Warn("monitoring: load embeddings failed", zap.String("model", rec.Model), zap.Error(err))
				continue
			}
			if summary, ok := summarizeTemporal(sub.Domain, rec.Model, embeddings); ok {
				report.Temporal = append(report.Temporal, summary)
			}
		}

		if len(drifts) < 2 {
			continue
		}

		ensemble := drift.EnsembleDrift(drifts, e.disagreement)
		if ensemble <= e.engine.Thresholds().Stable {
			continue
		}
		report.Records = append(report.Records, model.DriftRecord{
			Subject:        sub.Domain,
			Model:          model.EnsembleModel,
			PromptID:       model.EnsembleModel,
			Timestamp:      now,
			SimilarityPrev: 1 - ensemble,
			DriftScore:     ensemble,
			Status:         e.engine.Thresholds().Classify(ensemble),
			Explanation:    fmt.Sprintf("Ensemble drift %.2f across %d models", ensemble, len(drifts)),
		})
	}

	if len(report.Records) > 0 {
		if err := e.store.InsertDriftBatch(ctx, report.Records); err != nil {
			return report, eris.Wrap(err, "monitoring: insert ensemble records")
		}
	}

	zap.L().Info("monitoring: ensemble pass complete",
		zap.Int("subjects", report.SubjectsChecked),
		zap.Int("temporal_series", len(report.Temporal)),
		zap.Int("ensemble_records", len(report.Records)),
	)
	return report, nil
}

func summarizeTemporal(subject, modelKey string, embeddings [][]float64) (TemporalSummary, bool) {
	drifts := drift.TemporalDrift(embeddings)
	if len(drifts) == 0 {
		return TemporalSummary{}, false
	}
	s := TemporalSummary{Subject: subject, Model: modelKey, Points: len(embeddings)}
	var sum float64
	for _, d := range drifts {
		sum += d
		if d > s.MaxDrift {
			s.MaxDrift = d
		}
	}
	s.MeanDrift = sum / float64(len(drifts))
	return s, true
}
