package ratelimit

import (
	"sync"
	"time"
)

// LimitResult is the outcome of one Allow check.
type LimitResult struct {
	Allowed    bool          // whether the request may proceed
	RetryAfter time.Duration // suggested wait before retrying, if not allowed
	LimitType  string        // "global", "disabled", or the route that rejected it
	Remaining  float64       // tokens left in whichever bucket decided
}

// Limiter holds one global bucket and a bucket per route override.
type Limiter struct {
	mu           sync.RWMutex
	enabled      bool
	globalBucket *Bucket
	routeBuckets map[string]*Bucket
	config       *Config
	metrics      *Metrics
}

// NewLimiter builds a Limiter from cfg, falling back to DefaultConfig if
// cfg is nil.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Limiter{
		enabled:      cfg.Enabled,
		routeBuckets: make(map[string]*Bucket),
		config:       cfg,
		metrics:      NewMetrics(),
		globalBucket: NewBucket(float64(cfg.Global.BurstSize), cfg.Global.RequestsPerSecond),
	}
	for _, r := range cfg.Routes {
		l.routeBuckets[r.Name] = NewBucket(float64(r.BurstSize), r.RequestsPerSecond)
	}
	return l
}

// Allow checks whether a request against route may proceed: the global
// bucket is always consulted first, then route's own bucket if one was
// configured for it.
func (l *Limiter) Allow(route string) *LimitResult {
	if !l.enabled {
		return &LimitResult{Allowed: true, LimitType: "disabled", Remaining: -1}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.globalBucket.TryConsume(1) {
		l.metrics.RecordRejection("global", route)
		return &LimitResult{
			Allowed:    false,
			RetryAfter: l.globalBucket.TimeToWait(1),
			LimitType:  "global",
			Remaining:  l.globalBucket.Tokens(),
		}
	}

	routeBucket, hasOverride := l.routeBuckets[route]
	if !hasOverride {
		l.metrics.RecordAllowed(route)
		return &LimitResult{Allowed: true, LimitType: "global", Remaining: l.globalBucket.Tokens()}
	}

	if !routeBucket.TryConsume(1) {
		l.metrics.RecordRejection(route, route)
		return &LimitResult{
			Allowed:    false,
			RetryAfter: routeBucket.TimeToWait(1),
			LimitType:  route,
			Remaining:  routeBucket.Tokens(),
		}
	}

	l.metrics.RecordAllowed(route)
	return &LimitResult{Allowed: true, LimitType: route, Remaining: routeBucket.Tokens()}
}

// IsEnabled reports whether the limiter is currently gating requests.
func (l *Limiter) IsEnabled() bool { return l.enabled }

// SetEnabled toggles gating at runtime.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// GetMetrics returns the limiter's running metrics.
func (l *Limiter) GetMetrics() *Metrics { return l.metrics }

// GetRouteBucket returns the bucket backing route's override, or nil if
// route has none (for tests/diagnostics).
func (l *Limiter) GetRouteBucket(route string) *Bucket {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.routeBuckets[route]
}

// GetGlobalBucket returns the shared global bucket (for tests/diagnostics).
func (l *Limiter) GetGlobalBucket() *Bucket { return l.globalBucket }

// Reset fills every bucket back to capacity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.globalBucket.Reset()
	for _, b := range l.routeBuckets {
		b.Reset()
	}
}

// Stats is a snapshot of current token balances.
type Stats struct {
	Enabled      bool               `json:"enabled"`
	GlobalTokens float64            `json:"global_tokens"`
	RouteTokens  map[string]float64 `json:"route_tokens"`
}

// GetStats returns the current token balance of every bucket.
func (l *Limiter) GetStats() *Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{
		Enabled:      l.enabled,
		GlobalTokens: l.globalBucket.Tokens(),
		RouteTokens:  make(map[string]float64, len(l.routeBuckets)),
	}
	for route, b := range l.routeBuckets {
		stats.RouteTokens[route] = b.Tokens()
	}
	return stats
}
