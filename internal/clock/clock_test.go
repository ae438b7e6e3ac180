package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	require.NoError(t, c.Sleep(context.Background(), 250*time.Millisecond))
	require.NoError(t, c.Sleep(context.Background(), 0))
	c.Advance(time.Second)

	assert.Equal(t, start.Add(1250*time.Millisecond), c.Now())
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 0}, c.Sleeps())
}

func TestFakeSleepCanceled(t *testing.T) {
	c := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.Sleeps())
}

func TestRealSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Real{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRealSleepShort(t *testing.T) {
	start := time.Now()
	require.NoError(t, Real{}.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
