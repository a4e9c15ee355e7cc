// Package stats provides latency percentile tracking for pm2watch.
//
// Two trackers exist at runtime: one fed by poll-cycle durations, one by
// command executions. Percentiles are computed from a t-digest, which
// keeps memory bounded (~10KB) regardless of sample count.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// LatencySnapshot contains computed percentiles at a point in time.
type LatencySnapshot struct {
	Count int64
	Last  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration

	// Age is time since the last recorded sample; zero when no samples.
	Age time.Duration
}

// LatencyTracker records durations and serves percentile snapshots.
// Safe for concurrent use.
type LatencyTracker struct {
	mu       sync.Mutex
	digest   *tdigest.TDigest
	count    int64
	last     time.Duration
	lastSeen time.Time
	clock    Clock
}

// NewLatencyTracker creates a tracker with the real clock.
func NewLatencyTracker() *LatencyTracker {
	return NewLatencyTrackerWithClock(realClock{})
}

// NewLatencyTrackerWithClock creates a tracker with a custom clock for testing.
func NewLatencyTrackerWithClock(clock Clock) *LatencyTracker {
	return &LatencyTracker{
		digest: tdigest.NewWithCompression(100), // ~100 centroids, ~10KB
		clock:  clock,
	}
}

// Record adds one duration sample.
func (t *LatencyTracker) Record(d time.Duration) {
	if d < 0 {
		return
	}
	t.mu.Lock()
	t.digest.Add(d.Seconds(), 1)
	t.count++
	t.last = d
	t.lastSeen = t.clock.Now()
	t.mu.Unlock()
}

// Count returns the number of recorded samples.
func (t *LatencyTracker) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Quantile returns the q-quantile (0..1) of recorded durations, or zero
// when no samples have been recorded.
func (t *LatencyTracker) Quantile(q float64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quantileLocked(q)
}

func (t *LatencyTracker) quantileLocked(q float64) time.Duration {
	if t.count == 0 {
		return 0
	}
	return time.Duration(t.digest.Quantile(q) * float64(time.Second))
}

// Snapshot returns the current percentile view.
func (t *LatencyTracker) Snapshot() LatencySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := LatencySnapshot{
		Count: t.count,
		Last:  t.last,
		P50:   t.quantileLocked(0.50),
		P95:   t.quantileLocked(0.95),
		P99:   t.quantileLocked(0.99),
	}
	if !t.lastSeen.IsZero() {
		snap.Age = t.clock.Now().Sub(t.lastSeen)
	}
	return snap
}
