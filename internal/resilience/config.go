package resilience

import (
	"time"

	"github.com/sells-group/domain-runner/internal/clock"
	"github.com/sells-group/domain-runner/internal/model"
)

// Backoff bases per speed tier. Slower tiers back off more aggressively.
const (
	FastBackoff   = 100 * time.Millisecond
	MediumBackoff = 250 * time.Millisecond
	SlowBackoff   = 500 * time.Millisecond
)

// TierBackoff returns the base retry delay for a speed tier.
func TierBackoff(tier model.SpeedTier) time.Duration {
	switch tier {
	case model.TierMedium:
		return MediumBackoff
	case model.TierSlow:
		return SlowBackoff
	default:
		return FastBackoff
	}
}

// ForTier builds the provider retry configuration for a speed tier. Every
// failure is retried until maxAttempts is reached.
func ForTier(tier model.SpeedTier, maxAttempts int, clk clock.Clock) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	cfg.InitialBackoff = TierBackoff(tier)
	cfg.ShouldRetry = RetryAll
	cfg.Clock = clk
	return cfg
}
