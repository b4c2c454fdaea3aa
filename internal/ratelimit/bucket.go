// Package ratelimit gates the status API's read-only routes behind a token
// bucket: a global bucket shared by every request, plus optional per-route
// buckets for endpoints that are either cheap to hammer or expensive to
// serve.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket: it holds up to capacity tokens and refills at
// refillRate tokens/second, elapsed time computed lazily on each access
// rather than by a background ticker. Safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewBucket returns a bucket starting full at capacity, refilling at
// refillRate tokens/second.
func NewBucket(capacity, refillRate float64) *Bucket {
	return &Bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// refill catches the bucket up to the current time. Caller must hold mu.
func (b *Bucket) refill() {
	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// TryConsume attempts to withdraw n tokens, refilling first. Reports
// whether the withdrawal succeeded.
func (b *Bucket) TryConsume(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()

	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// Tokens reports the current balance, after catching up any pending
// refill.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// TimeToWait returns how long until n tokens would be available, or 0 if
// they already are.
func (b *Bucket) TimeToWait(n float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()

	if b.tokens >= n {
		return 0
	}
	return time.Duration((n - b.tokens) / b.refillRate * float64(time.Second))
}

// Reset fills the bucket back to capacity, as if it had just been created.
func (b *Bucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = b.capacity
	b.lastRefill = time.Now()
}

// Capacity returns the bucket's maximum token count.
func (b *Bucket) Capacity() float64 { return b.capacity }

// RefillRate returns the bucket's refill rate, in tokens/second.
func (b *Bucket) RefillRate() float64 { return b.refillRate }
