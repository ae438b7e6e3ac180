package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/pipeline"
	"github.com/sells-group/domain-runner/internal/provider"
	"github.com/sells-group/domain-runner/internal/ranking"
	"github.com/sells-group/domain-runner/internal/store"
)

// batchRunner starts one batch. *pipeline.Pipeline satisfies it.
type batchRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*model.BatchRun, error)
}

// api serves the REST front end. ctx bounds batches started by trigger
// requests, which outlive the request itself; runs tracks them so shutdown
// can wait for their final tallies.
type api struct {
	ctx            context.Context
	runs           sync.WaitGroup
	store          store.Store
	registry       *provider.Registry
	batches        batchRunner
	ranking        *ranking.Engine
	rankingEnabled bool
}

func buildRouter(a *api) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/trigger", a.handleTrigger)
		r.Get("/drift/{domain}", a.handleDrift)
		r.Get("/ranking", a.handleRanking)
		r.Get("/batches", a.handleListBatches)
		r.Get("/batches/{id}", a.handleGetBatch)
		r.Get("/providers", a.handleProviders)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok", "providers": "ok"}
	ready := true

	if a.store == nil {
		checks["database"] = "not configured"
		ready = false
	} else if err := a.store.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		ready = false
	}
	if a.registry == nil || len(a.registry.Configured()) == 0 {
		checks["providers"] = "none configured"
		ready = false
	}

	status := http.StatusOK
	body := map[string]any{"status": "ready", "checks": checks}
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "not ready"
	}
	writeJSON(w, status, body)
}

func (a *api) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if a.batches == nil {
		writeError(w, http.StatusServiceUnavailable, "batch pipeline not available")
		return
	}
	if a.ctx.Err() != nil {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	if label := strings.TrimSpace(req.BatchID); label != "" && a.store != nil {
		existing, err := a.store.GetBatch(r.Context(), label)
		if err != nil {
			zap.L().Error("api: look up batch", zap.String("batch_id", label), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to check batch label")
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "batch "+label+" already exists")
			return
		}
	}
	req.BatchID = pipeline.BatchID(req.BatchID, time.Now().UTC())

	a.runs.Add(1)
	go func() {
		defer a.runs.Done()
		batch, err := a.batches.Run(a.ctx, req)
		if err != nil {
			zap.L().Error("api: triggered batch failed",
				zap.String("domain", req.Domain),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("api: triggered batch complete",
			zap.String("batch_id", batch.ID),
			zap.Int("successes", batch.Successes),
			zap.Int("failures", batch.Failures),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":        "accepted",
		"batch_id":      req.BatchID,
		"domain":        req.Domain,
		"force_refresh": req.ForceRefresh,
	})
}

// waitRuns blocks until every triggered batch has returned or ctx is done.
func (a *api) waitRuns(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "api: wait for triggered batches")
	}
}

func (a *api) handleDrift(w http.ResponseWriter, r *http.Request) {
	domain := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "domain")))

	stats, err := a.store.DriftStats(r.Context(), domain)
	if err != nil {
		zap.L().Error("api: drift stats", zap.String("domain", domain), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load drift stats")
		return
	}
	latest, err := a.store.LatestDrift(r.Context(), domain)
	if err != nil {
		zap.L().Error("api: latest drift", zap.String("domain", domain), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest drift")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"domain":       domain,
		"drift_stats":  stats,
		"latest_drift": latest,
	})
}

func (a *api) handleRanking(w http.ResponseWriter, r *http.Request) {
	if !a.rankingEnabled || a.ranking == nil {
		writeError(w, http.StatusNotFound, "ranking is disabled")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cohort := r.URL.Query().Get("cohort")

	scores, err := a.ranking.Compute(r.Context(), cohort, limit)
	if err != nil {
		zap.L().Error("api: ranking", zap.String("cohort", cohort), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute ranking")
		return
	}
	if scores == nil {
		scores = []model.BrandScore{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cohort":  cohort,
		"count":   len(scores),
		"ranking": scores,
	})
}

func (a *api) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	batches, err := a.store.ListBatches(r.Context(), limit)
	if err != nil {
		zap.L().Error("api: list batches", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	if batches == nil {
		batches = []model.BatchRun{}
	}
	writeJSON(w, http.StatusOK, batches)
}

func (a *api) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	batch, err := a.store.GetBatch(r.Context(), id)
	if err != nil {
		zap.L().Error("api: get batch", zap.String("batch_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}
	if batch == nil {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (a *api) handleProviders(w http.ResponseWriter, _ *http.Request) {
	infos := []provider.Info{}
	if a.registry != nil {
		infos = append(infos, a.registry.Infos()...)
	}
	writeJSON(w, http.StatusOK, infos)
}
