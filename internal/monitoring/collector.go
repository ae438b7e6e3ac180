package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/store"
)

// DriftSnapshot holds a point-in-time view of drift across all subjects.
type DriftSnapshot struct {
	AvgDrift  float64              `json:"avg_drift"`
	Records   int                  `json:"records"`
	HighDrift []store.SubjectDrift `json:"high_drift,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers drift signals from the store.
type Collector struct {
	store store.Store
	cfg   config.MonitoringConfig
	now   func() time.Time
}

// NewCollector creates a new drift collector.
func NewCollector(st store.Store, cfg config.MonitoringConfig) *Collector {
	return &Collector{store: st, cfg: cfg, now: time.Now}
}

// Collect averages every drift record in the lookback window. When the
// average crosses the alert threshold it also loads the subjects driving it.
func (c *Collector) Collect(ctx context.Context) (*DriftSnapshot, error) {
	lookback := c.cfg.LookbackWindowHours
	if lookback <= 0 {
		lookback = 24
	}
	now := c.now().UTC()
	snap := &DriftSnapshot{
		LookbackHours: lookback,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookback) * time.Hour)

	wd, err := c.store.WindowDrift(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: window drift")
	}
	snap.AvgDrift = wd.AvgDrift
	snap.Records = wd.Records

	if wd.Records == 0 || wd.AvgDrift <= c.cfg.AlertThreshold {
		return snap, nil
	}

	high, err := c.store.HighDriftSubjects(ctx, cutoff, c.cfg.AlertThreshold, c.cfg.HighDriftLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: high drift subjects")
	}
	snap.HighDrift = high
	return snap, nil
}
