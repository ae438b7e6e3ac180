package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/domain-runner/internal/clock"
	"github.com/sells-group/domain-runner/internal/model"
)

// Pacer spaces admissions to each provider by the provider's minimum
// interval. Each provider owns its own limiter, so pacing one provider never
// blocks another.
type Pacer struct {
	clock clock.Clock

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPacer creates a Pacer driven by clk.
func NewPacer(clk clock.Clock) *Pacer {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Pacer{clock: clk, limiters: make(map[string]*rate.Limiter)}
}

// limiterFor returns the limiter for the provider, creating it on first use.
// Providers without a rate limit get nil.
func (p *Pacer) limiterFor(cfg model.ProviderConfig) *rate.Limiter {
	interval := cfg.MinInterval()
	if interval <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[cfg.Name]
	if !ok {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		p.limiters[cfg.Name] = lim
	}
	return lim
}

// Wait blocks until a call to the provider may be admitted. It returns the
// time spent waiting.
func (p *Pacer) Wait(ctx context.Context, cfg model.ProviderConfig) (time.Duration, error) {
	lim := p.limiterFor(cfg)
	if lim == nil {
		return 0, nil
	}
	now := p.clock.Now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 0, nil
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return 0, nil
	}
	if err := p.clock.Sleep(ctx, delay); err != nil {
		r.CancelAt(p.clock.Now())
		return 0, err
	}
	return delay, nil
}
