package main

import (
	"context"

	"github.com/sells-group/domain-runner/internal/drift"
	"github.com/sells-group/domain-runner/internal/monitoring"
	"github.com/sells-group/domain-runner/internal/orchestrator"
	"github.com/sells-group/domain-runner/internal/pipeline"
	"github.com/sells-group/domain-runner/internal/prompt"
	"github.com/sells-group/domain-runner/internal/provider"
	"github.com/sells-group/domain-runner/internal/ranking"
	"github.com/sells-group/domain-runner/internal/store"
	"github.com/sells-group/domain-runner/pkg/embeddings"
)

// appEnv holds the store, engines and the batch pipeline shared by the run,
// serve and monitor commands.
type appEnv struct {
	Store    store.Store
	Registry *provider.Registry
	Pipeline *pipeline.Pipeline
	Drift    *drift.Engine
	Ranking  *ranking.Engine
	Checker  *monitoring.Checker
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode, opens the store and wires every
// component. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	st, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}

	prompts, err := prompt.Load(cfg.Prompts.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var embedder drift.Embedder
	opts := []drift.Option{
		drift.WithThresholds(drift.Thresholds{Stable: cfg.Drift.ThresholdStable, Decayed: cfg.Drift.ThresholdDecayed}),
		drift.WithWeights(drift.Weights{Self: cfg.Drift.Weights.Self, Peer: cfg.Drift.Weights.Peer, Canonical: cfg.Drift.Weights.Canonical}),
	}
	if cfg.Embeddings.Key != "" {
		embedder = embeddings.NewClient(cfg.Embeddings.Key,
			embeddings.WithBaseURL(cfg.Embeddings.BaseURL),
			embeddings.WithModel(cfg.Embeddings.Model),
		)
		opts = append(opts, drift.WithEmbedder(embedder))
	}
	engine := drift.NewEngine(opts...)

	registry := provider.Build(cfg)
	orch := orchestrator.New(orchestrator.ConfigFrom(cfg.Orchestrator), registry.All(), prompts)

	ensembler := monitoring.NewEnsembler(st, engine, cfg.Drift)
	checker := monitoring.NewChecker(ensembler,
		monitoring.NewCollector(st, cfg.Monitoring),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)

	return &appEnv{
		Store:    st,
		Registry: registry,
		Pipeline: pipeline.New(cfg, st, orch, engine, embedder),
		Drift:    engine,
		Ranking:  ranking.NewEngine(st, cfg.Ranking.DefaultLimit),
		Checker:  checker,
	}, nil
}
