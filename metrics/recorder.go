// metrics/recorder.go
package metrics

import (
	"sync"
	"time"

	"github.com/clinicore/authcore/model"
)

// Recorder accumulates decision counters for one session. Every permission
// check reports its outcome here; readers only ever see detached snapshots.
type Recorder struct {
	mu           sync.Mutex
	totalChecks  int64
	cacheHits    int64
	cacheMisses  int64
	denials      int64
	errors       int64
	avgLatencyMs float64
	lastUpdated  time.Time

	now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// RecordCheck registers one completed decision. The running latency average
// is updated incrementally so the recorder never holds per-check samples.
func (r *Recorder) RecordCheck(cacheHit bool, denied bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalChecks++
	if cacheHit {
		r.cacheHits++
	} else {
		r.cacheMisses++
	}
	if denied {
		r.denials++
	}

	latencyMs := float64(latency.Microseconds()) / 1000.0
	r.avgLatencyMs += (latencyMs - r.avgLatencyMs) / float64(r.totalChecks)
	r.lastUpdated = r.now()
}

// RecordError counts an internal fault (cache fault or authority failure).
func (r *Recorder) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors++
	r.lastUpdated = r.now()
}

// Snapshot returns a copy of the counters, never a live reference.
func (r *Recorder) Snapshot() model.MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return model.MetricsSnapshot{
		TotalChecks:  r.totalChecks,
		CacheHits:    r.cacheHits,
		CacheMisses:  r.cacheMisses,
		Denials:      r.denials,
		Errors:       r.errors,
		AvgLatencyMs: r.avgLatencyMs,
		LastUpdated:  r.lastUpdated,
	}
}

// Reset clears all counters. Used when a session is invalidated.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalChecks = 0
	r.cacheHits = 0
	r.cacheMisses = 0
	r.denials = 0
	r.errors = 0
	r.avgLatencyMs = 0
	r.lastUpdated = r.now()
}
