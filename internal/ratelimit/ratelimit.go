package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter pauses for a random duration in [minDelay, maxDelay)
// on every Wait.
type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	lastDelay  time.Duration
	mu         sync.Mutex
	jitter     bool
	rnd        *rand.Rand
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Politeness returns the default delay between result pages.
func Politeness() *SimpleRateLimiter {
	return NewSimpleRateLimiter(1500*time.Millisecond, 3500*time.Millisecond)
}

// None never waits.
func None() *SimpleRateLimiter {
	return NewSimpleRateLimiter(0, 0)
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delay := r.calculateDelay()
	r.lastDelay = delay

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
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

// LastDelay reports the pause chosen by the most recent Wait.
func (r *SimpleRateLimiter) LastDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDelay
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if !r.jitter || r.minDelay == r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(r.rnd.Int63n(int64(delta)))
	return r.minDelay + jitter
}
