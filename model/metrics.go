// model/metrics.go
package model

import "time"

// MetricsSnapshot is a detached copy of the decision counters; handing out
// copies keeps the live counters safe from external mutation.
type MetricsSnapshot struct {
	TotalChecks  int64     `json:"total_checks"`
	CacheHits    int64     `json:"cache_hits"`
	CacheMisses  int64     `json:"cache_misses"`
	Denials      int64     `json:"denials"`
	Errors       int64     `json:"errors"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	LastUpdated  time.Time `json:"last_updated"`
}

// HitRate returns cache hits over total checks, 0 when nothing was checked.
func (m MetricsSnapshot) HitRate() float64 {
	if m.TotalChecks == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(m.TotalChecks)
}

// DenialRate returns denials over total checks, 0 when nothing was checked.
func (m MetricsSnapshot) DenialRate() float64 {
	if m.TotalChecks == 0 {
		return 0
	}
	return float64(m.Denials) / float64(m.TotalChecks)
}

// ErrorRate returns errors over total checks, 0 when nothing was checked.
func (m MetricsSnapshot) ErrorRate() float64 {
	if m.TotalChecks == 0 {
		return 0
	}
	return float64(m.Errors) / float64(m.TotalChecks)
}
