// Package ratelimit meters tool calls per client with a token bucket.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Error reports a denied call together with the wait that would free a
// token, so transports can surface a retry hint.
type Error struct {
	RetryAfterSeconds int
}

func (e *Error) Error() string {
	return "rate limited"
}

type bucket struct {
	tokens       float64
	capacity     float64
	refillPerSec float64
	lastRefill   time.Time
}

type Limiter struct {
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New() *Limiter {
	return &Limiter{
		now:     func() time.Time { return time.Now().UTC() },
		buckets: make(map[string]*bucket),
	}
}

// Allow spends one token for clientID. rpm sets the refill rate, burst
// the bucket depth; burst <= 0 falls back to rpm. The int return is the
// suggested retry delay in seconds when the call is denied.
func (l *Limiter) Allow(clientID string, rpm, burst int) (bool, int) {
	if rpm <= 0 || clientID == "" {
		return false, 60
	}
	capacity := float64(burst)
	if burst <= 0 {
		capacity = float64(rpm)
	}
	refillPerSec := float64(rpm) / 60.0
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[clientID]
	if !ok {
		l.buckets[clientID] = &bucket{
			tokens:       capacity - 1,
			capacity:     capacity,
			refillPerSec: refillPerSec,
			lastRefill:   now,
		}
		return true, 0
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillPerSec)
		b.lastRefill = now
	}
	if b.capacity != capacity || b.refillPerSec != refillPerSec {
		b.capacity = capacity
		b.refillPerSec = refillPerSec
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	retry := int(math.Ceil((1 - b.tokens) / b.refillPerSec))
	if retry < 1 {
		retry = 1
	}
	return false, retry
}

// Usage reports how much of the bucket a client has spent, for
// utilization logging.
func (l *Limiter) Usage(clientID string) (used, capacity int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[clientID]
	if !ok {
		return 0, 0
	}
	used = int64(math.Round(b.capacity - b.tokens))
	if used < 0 {
		used = 0
	}
	return used, int64(b.capacity)
}
