package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sells-group/domain-runner/internal/clock"
	"github.com/sells-group/domain-runner/internal/model"
)

func fakeConfig(c *clock.Fake) RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Clock:          c,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	c := clock.NewFake(time.Now())
	var calls int
	err := Do(context.Background(), fakeConfig(c), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(c.Sleeps()) != 0 {
		t.Errorf("expected no sleeps, got %v", c.Sleeps())
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	c := clock.NewFake(time.Now())
	var calls int

	err := Do(context.Background(), fakeConfig(c), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	got := c.Sleeps()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected sleeps %v, got %v", want, got)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	c := clock.NewFake(time.Now())
	var calls int

	err := Do(context.Background(), fakeConfig(c), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(c.Sleeps()) != 2 {
		t.Errorf("expected 2 sleeps (none after last attempt), got %d", len(c.Sleeps()))
	}
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	c := clock.NewFake(time.Now())
	var calls int

	err := Do(context.Background(), fakeConfig(c), func(_ context.Context) error {
		calls++
		return errors.New("permanent error: bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for non-transient), got %d", calls)
	}
}

func TestDo_RetryAll(t *testing.T) {
	c := clock.NewFake(time.Now())
	cfg := fakeConfig(c)
	cfg.ShouldRetry = RetryAll

	var calls int
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return errors.New("permanent error: bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls with RetryAll, got %d", calls)
	}
}

func TestDo_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := clock.NewFake(time.Now())
	cfg := fakeConfig(c)
	cfg.MaxAttempts = 5

	var calls int
	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls before cancel stops retries, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	c := clock.NewFake(time.Now())
	cfg := fakeConfig(c)
	var retryAttempts []int
	cfg.OnRetry = func(attempt int, _ error) {
		retryAttempts = append(retryAttempts, attempt)
	}

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("fail"), 500)
	})

	if len(retryAttempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(retryAttempts))
	}
	if retryAttempts[0] != 1 || retryAttempts[1] != 2 {
		t.Errorf("expected attempts [1, 2], got %v", retryAttempts)
	}
}

func TestDoVal_ReturnsValueOnSuccess(t *testing.T) {
	c := clock.NewFake(time.Now())
	var calls int
	val, err := DoVal(context.Background(), fakeConfig(c), func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", NewTransientError(errors.New("fail"), 500)
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "hello" {
		t.Errorf("expected %q, got %q", "hello", val)
	}
}

func TestDoVal_ReturnsZeroOnFailure(t *testing.T) {
	c := clock.NewFake(time.Now())
	cfg := fakeConfig(c)
	cfg.MaxAttempts = 2

	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 42, NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if val != 0 {
		t.Errorf("expected zero value on failure, got %d", val)
	}
}

func TestBackoff_StateMachine(t *testing.T) {
	b := NewBackoff(RetryConfig{MaxAttempts: 3, InitialBackoff: 250 * time.Millisecond})

	d, ok := b.Next()
	if !ok || d != 250*time.Millisecond {
		t.Fatalf("first retry: got (%v, %v)", d, ok)
	}
	d, ok = b.Next()
	if !ok || d != 500*time.Millisecond {
		t.Fatalf("second retry: got (%v, %v)", d, ok)
	}
	if _, ok = b.Next(); ok {
		t.Fatal("expected attempt budget to be exhausted")
	}
	if b.Attempt() != 3 {
		t.Errorf("expected 3 attempts, got %d", b.Attempt())
	}
}

func TestBackoff_CapsAtMax(t *testing.T) {
	b := NewBackoff(RetryConfig{MaxAttempts: 10, InitialBackoff: time.Second, MaxBackoff: 3 * time.Second})
	var last time.Duration
	for {
		d, ok := b.Next()
		if !ok {
			break
		}
		last = d
	}
	if last != 3*time.Second {
		t.Errorf("expected backoff capped at 3s, got %v", last)
	}
}

func TestForTier_SlowerTiersBackOffMore(t *testing.T) {
	fast := ForTier(model.TierFast, 3, nil)
	medium := ForTier(model.TierMedium, 3, nil)
	slow := ForTier(model.TierSlow, 3, nil)

	if !(fast.InitialBackoff < medium.InitialBackoff && medium.InitialBackoff < slow.InitialBackoff) {
		t.Errorf("expected increasing backoff bases, got %v %v %v",
			fast.InitialBackoff, medium.InitialBackoff, slow.InitialBackoff)
	}
	if fast.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", fast.MaxAttempts)
	}
	if !fast.ShouldRetry(errors.New("anything")) {
		t.Error("expected provider retries to cover every error")
	}
}

func TestComputeBackoff_Jitter(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, JitterFraction: 0.5})
	for i := 0; i < 50; i++ {
		d := computeBackoff(0, cfg)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", d)
		}
	}
}
