package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/config"
)

// Checker runs the drift monitor periodically in the background.
type Checker struct {
	ensembler *Ensembler
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background drift checker. ensembler may be nil to
// skip the ensemble pass.
func NewChecker(ensembler *Ensembler, collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		ensembler: ensembler,
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting drift checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("drift checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check runs one monitor pass: ensemble aggregation, then threshold alerts.
// It returns the alerts raised.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	if c.ensembler != nil {
		if _, err := c.ensembler.Run(ctx); err != nil {
			log.Error("monitoring: ensemble pass failed", zap.Error(err))
		}
	}

	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect drift", zap.Error(err))
		return nil
	}
	log.Info("monitoring: average drift signal",
		zap.Float64("avg_drift", snap.AvgDrift),
		zap.Int("records", snap.Records),
	)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
