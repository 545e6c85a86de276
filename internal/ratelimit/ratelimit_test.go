package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiterFirstCallDoesNotWait(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, time.Hour)

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSimpleRateLimiterSpacesCalls(t *testing.T) {
	r := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.Wait(ctx))
	start := time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestSimpleRateLimiterHonorsContext(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestSimpleRateLimiterJitterStaysInWindow(t *testing.T) {
	r := NewSimpleRateLimiter(time.Second, 3*time.Second)
	r.jitter = func(n int64) int64 { return n - 1 }
	assert.Equal(t, 3*time.Second-time.Nanosecond, r.delay())

	r.jitter = func(int64) int64 { return 0 }
	assert.Equal(t, time.Second, r.delay())
}

func TestSetDelayKeepsMaxAboveMin(t *testing.T) {
	r := NewSimpleRateLimiter(time.Second, 2*time.Second)
	r.SetDelay(5*time.Second, time.Second)

	lo, hi := r.Delays()
	assert.Equal(t, 5*time.Second, lo)
	assert.Equal(t, 5*time.Second, hi)
}

func TestAdaptiveRateLimiterBacksOffAfterErrors(t *testing.T) {
	a := NewAdaptiveRateLimiter(2*time.Second, 4*time.Second)

	a.RecordError()
	a.RecordError()
	lo, hi := a.Delays()
	assert.Equal(t, 2*time.Second, lo)
	assert.Equal(t, 4*time.Second, hi)

	a.RecordError()
	lo, hi = a.Delays()
	assert.Equal(t, 3*time.Second, lo)
	assert.Equal(t, 6*time.Second, hi)
}

func TestAdaptiveRateLimiterCapsBackoff(t *testing.T) {
	a := NewAdaptiveRateLimiter(50*time.Second, 100*time.Second)
	for range 3 {
		a.RecordError()
	}

	lo, hi := a.Delays()
	assert.Equal(t, minCeiling, lo)
	assert.Equal(t, maxCeiling, hi)
}

func TestAdaptiveRateLimiterRecoversAfterSuccess(t *testing.T) {
	a := NewAdaptiveRateLimiter(time.Second, 2*time.Second)
	for range 6 {
		a.RecordSuccess()
	}

	lo, hi := a.Delays()
	assert.Equal(t, 900*time.Millisecond, lo)
	assert.Equal(t, 2*time.Second, hi)
}

func TestAdaptiveRateLimiterSuccessResetsErrorRun(t *testing.T) {
	a := NewAdaptiveRateLimiter(time.Second, 2*time.Second)
	a.RecordError()
	a.RecordError()
	a.RecordSuccess()
	a.RecordError()

	lo, _ := a.Delays()
	assert.Equal(t, time.Second, lo)
}
