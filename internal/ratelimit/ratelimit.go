package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	minFloor   = 100 * time.Millisecond
	minCeiling = 60 * time.Second
	maxCeiling = 120 * time.Second
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter spaces calls by a random delay between minDelay and
// maxDelay measured from the previous call. Waiters are served one at a time.
type SimpleRateLimiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	jitter     func(n int64) int64
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   rand.Int64N,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastAction.IsZero() {
		if wait := r.delay() - time.Since(r.lastAction); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if max < min {
		max = min
	}
	r.minDelay = min
	r.maxDelay = max
}

// Delays returns the current bounds.
func (r *SimpleRateLimiter) Delays() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay, r.maxDelay
}

func (r *SimpleRateLimiter) delay() time.Duration {
	if r.minDelay >= r.maxDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(r.jitter(int64(r.maxDelay-r.minDelay)))
}

// AdaptiveRateLimiter widens the delay window after a run of failures and
// narrows the lower bound again after sustained success.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

func NewAdaptiveRateLimiter(minDelay, maxDelay time.Duration) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: NewSimpleRateLimiter(minDelay, maxDelay),
		maxErrorCount:     3,
		backoffFactor:     1.5,
	}
}

func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		a.minDelay = max(time.Duration(float64(a.minDelay)*0.9), minFloor)
		a.maxDelay = max(a.maxDelay, a.minDelay)
		a.successCount = 0
	}
}

func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		a.minDelay = min(time.Duration(float64(a.minDelay)*a.backoffFactor), minCeiling)
		a.maxDelay = min(time.Duration(float64(a.maxDelay)*a.backoffFactor), maxCeiling)
		a.maxDelay = max(a.maxDelay, a.minDelay)
		a.errorCount = 0
	}
}
