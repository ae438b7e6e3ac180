package config

import (
	"fmt"
	"strings"
)

// Modes accepted by Validate.
const (
	ModeRun     = "run"
	ModeServe   = "serve"
	ModeMonitor = "monitor"
	ModeRead    = "read"
)

// Error is a configuration problem that is fatal at startup.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}

// Validate checks that the settings required by mode are present.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case ModeRun, ModeServe, ModeMonitor, ModeRead:
	default:
		return &Error{Problems: []string{fmt.Sprintf("unknown mode %q", mode)}}
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	case "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unsupported store.driver %q", c.Store.Driver))
	}

	if c.Drift.ThresholdStable < 0 || c.Drift.ThresholdDecayed > 1 || c.Drift.ThresholdStable >= c.Drift.ThresholdDecayed {
		problems = append(problems, "drift thresholds must satisfy 0 <= threshold_stable < threshold_decayed <= 1")
	}
	w := c.Drift.Weights
	if w.Self < 0 || w.Peer < 0 || w.Canonical < 0 {
		problems = append(problems, "drift.weights values must be >= 0")
	}

	switch mode {
	case ModeRun:
		if len(c.ConfiguredProviders()) == 0 {
			problems = append(problems, "no provider credentials configured (set DRIFT_PROVIDERS_<NAME>_KEY)")
		}
		if c.Orchestrator.GlobalConcurrency <= 0 {
			problems = append(problems, "orchestrator.global_concurrency must be > 0")
		}
		if c.Orchestrator.SLAMaxSecs > 0 && c.Orchestrator.SLATargetSecs > c.Orchestrator.SLAMaxSecs {
			problems = append(problems, "orchestrator.sla_target_secs must not exceed sla_max_secs")
		}
	case ModeServe:
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}
