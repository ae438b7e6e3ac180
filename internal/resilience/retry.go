package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/clock"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 100ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay
	// (0.0 = no jitter, 0.5 = ±50%).
	JitterFraction float64

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)

	// Clock drives the backoff sleeps. If nil, the system clock is used.
	Clock clock.Clock
}

// DefaultRetryConfig returns the retry configuration used for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// RetryAll treats every error as retryable.
func RetryAll(error) bool { return true }

// Backoff is the explicit retry state machine: it tracks how many attempts
// were made and yields the delay before the next one.
type Backoff struct {
	cfg     RetryConfig
	attempt int
}

// NewBackoff creates a Backoff from cfg with defaults applied.
func NewBackoff(cfg RetryConfig) *Backoff {
	return &Backoff{cfg: applyDefaults(cfg)}
}

// Attempt returns the number of attempts recorded so far.
func (b *Backoff) Attempt() int { return b.attempt }

// Next records a failed attempt. It returns the delay to wait before the
// following attempt and false when the attempt budget is exhausted.
func (b *Backoff) Next() (time.Duration, bool) {
	b.attempt++
	if b.attempt >= b.cfg.MaxAttempts {
		return 0, false
	}
	return computeBackoff(b.attempt-1, b.cfg), true
}

// Do executes fn with retry logic according to cfg. Attempts are strictly
// sequential. Context cancellation stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with retry logic. Same semantics as Do
// but preserves the return value from the successful call.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	b := &Backoff{cfg: cfg}
	for {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}

		// Don't retry on context cancellation or non-retryable errors.
		if ctx.Err() != nil || !shouldRetry(err) {
			return zero, err
		}

		delay, ok := b.Next()
		if !ok {
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(b.Attempt(), err)
		}

		if sErr := cfg.Clock.Sleep(ctx, delay); sErr != nil {
			return zero, err
		}
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return cfg
}

func computeBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}

	// Apply jitter: ±JitterFraction of delay.
	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		jitter := (rand.Float64()*2 - 1) * jitterRange // [-jitterRange, +jitterRange]
		delay += jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(fields ...zap.Field) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying provider call",
			append(fields, zap.Int("attempt", attempt), zap.Error(err))...,
		)
	}
}
