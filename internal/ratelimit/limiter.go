// Package ratelimit throttles outbound market-data requests so batch
// scans stay inside the upstream quota.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Penalty bounds after upstream 429 responses
const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 2 * time.Minute
)

// Limiter paces requests to one upstream. On top of the steady token
// bucket it carries a penalty delay that doubles while the upstream
// answers 429 and clears on the next success. Wait serves both.
type Limiter struct {
	bucket *rate.Limiter
	name   string

	mu      sync.Mutex
	penalty time.Duration
}

// NewLimiter creates a limiter allowing perMinute requests with a
// small burst.
func NewLimiter(name string, perMinute int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}

	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		name:   name,
	}
}

// Wait sleeps out any active 429 penalty, then blocks for a bucket
// token. Returns the context error on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	if delay := l.Backoff(); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return l.bucket.Wait(ctx)
}

// Allow reports whether a request may go out immediately. It checks
// the bucket only; paths that must honor the 429 penalty use Wait.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

// SignalRateLimited raises the penalty after an upstream 429
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.penalty == 0 {
		l.penalty = backoffBase
		return
	}
	l.penalty *= 2
	if l.penalty > backoffCap {
		l.penalty = backoffCap
	}
}

// ResetBackoff clears the penalty after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.penalty = 0
}

// Backoff returns the current 429 penalty
func (l *Limiter) Backoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.penalty
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
