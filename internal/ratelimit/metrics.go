package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics accumulates allow/reject counts for a Limiter, broken down by
// route, for the status API to surface on its own diagnostics.
type Metrics struct {
	mu sync.RWMutex

	totalAllowed  uint64
	totalRejected uint64

	allowedByRoute    map[string]*uint64
	rejectedByRoute   map[string]*uint64
	rejectionsByLimit map[string]*uint64 // "global" vs the specific route that rejected

	startTime time.Time
}

// NewMetrics returns an empty metrics tracker, timestamped now.
func NewMetrics() *Metrics {
	return &Metrics{
		allowedByRoute:    make(map[string]*uint64),
		rejectedByRoute:   make(map[string]*uint64),
		rejectionsByLimit: make(map[string]*uint64),
		startTime:         time.Now(),
	}
}

func counterFor(m map[string]*uint64, key string) *uint64 {
	if c, ok := m[key]; ok {
		return c
	}
	var zero uint64
	m[key] = &zero
	return &zero
}

// RecordAllowed records one allowed request against route.
func (m *Metrics) RecordAllowed(route string) {
	atomic.AddUint64(&m.totalAllowed, 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.AddUint64(counterFor(m.allowedByRoute, route), 1)
}

// RecordRejection records one rejected request against route, decided by
// limitType ("global" or the route itself).
func (m *Metrics) RecordRejection(limitType, route string) {
	atomic.AddUint64(&m.totalRejected, 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.AddUint64(counterFor(m.rejectedByRoute, route), 1)
	atomic.AddUint64(counterFor(m.rejectionsByLimit, limitType), 1)
}

// MetricsSnapshot is a point-in-time read of Metrics, safe to marshal.
type MetricsSnapshot struct {
	TotalAllowed      uint64            `json:"total_allowed"`
	TotalRejected     uint64            `json:"total_rejected"`
	AllowedByRoute    map[string]uint64 `json:"allowed_by_route"`
	RejectedByRoute   map[string]uint64 `json:"rejected_by_route"`
	RejectionsByLimit map[string]uint64 `json:"rejections_by_limit"`
	Uptime            time.Duration     `json:"uptime"`
	RequestsPerSec    float64           `json:"requests_per_second"`
}

// Snapshot returns a point-in-time copy of the tracked metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &MetricsSnapshot{
		TotalAllowed:      atomic.LoadUint64(&m.totalAllowed),
		TotalRejected:     atomic.LoadUint64(&m.totalRejected),
		AllowedByRoute:    make(map[string]uint64, len(m.allowedByRoute)),
		RejectedByRoute:   make(map[string]uint64, len(m.rejectedByRoute)),
		RejectionsByLimit: make(map[string]uint64, len(m.rejectionsByLimit)),
		Uptime:            time.Since(m.startTime),
	}
	for route, count := range m.allowedByRoute {
		snap.AllowedByRoute[route] = atomic.LoadUint64(count)
	}
	for route, count := range m.rejectedByRoute {
		snap.RejectedByRoute[route] = atomic.LoadUint64(count)
	}
	for limitType, count := range m.rejectionsByLimit {
		snap.RejectionsByLimit[limitType] = atomic.LoadUint64(count)
	}

	total := snap.TotalAllowed + snap.TotalRejected
	if snap.Uptime.Seconds() > 0 {
		snap.RequestsPerSec = float64(total) / snap.Uptime.Seconds()
	}
	return snap
}

// TotalAllowed returns the running count of allowed requests.
func (m *Metrics) TotalAllowed() uint64 { return atomic.LoadUint64(&m.totalAllowed) }

// TotalRejected returns the running count of rejected requests.
func (m *Metrics) TotalRejected() uint64 { return atomic.LoadUint64(&m.totalRejected) }

// RejectionRate returns the fraction of requests rejected so far, in
// [0, 1].
func (m *Metrics) RejectionRate() float64 {
	allowed := atomic.LoadUint64(&m.totalAllowed)
	rejected := atomic.LoadUint64(&m.totalRejected)
	total := allowed + rejected
	if total == 0 {
		return 0
	}
	return float64(rejected) / float64(total)
}

// Reset zeroes every counter and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreUint64(&m.totalAllowed, 0)
	atomic.StoreUint64(&m.totalRejected, 0)
	m.allowedByRoute = make(map[string]*uint64)
	m.rejectedByRoute = make(map[string]*uint64)
	m.rejectionsByLimit = make(map[string]*uint64)
	m.startTime = time.Now()
}
