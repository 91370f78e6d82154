// metrics/recorder_test.go
package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordCheckCounters(t *testing.T) {
	r := NewRecorder()

	r.RecordCheck(true, false, 2*time.Millisecond)
	r.RecordCheck(false, true, 4*time.Millisecond)
	r.RecordCheck(false, false, 6*time.Millisecond)

	snapshot := r.Snapshot()
	assert.Equal(t, int64(3), snapshot.TotalChecks)
	assert.Equal(t, int64(1), snapshot.CacheHits)
	assert.Equal(t, int64(2), snapshot.CacheMisses)
	assert.Equal(t, int64(1), snapshot.Denials)
	assert.InDelta(t, 4.0, snapshot.AvgLatencyMs, 0.01)
	assert.False(t, snapshot.LastUpdated.IsZero())
}

func TestRates(t *testing.T) {
	r := NewRecorder()

	r.RecordCheck(true, false, time.Millisecond)
	r.RecordCheck(false, true, time.Millisecond)
	r.RecordError()

	snapshot := r.Snapshot()
	assert.InDelta(t, 0.5, snapshot.HitRate(), 0.001)
	assert.InDelta(t, 0.5, snapshot.DenialRate(), 0.001)
	assert.InDelta(t, 0.5, snapshot.ErrorRate(), 0.001)
}

func TestRatesWithNoChecks(t *testing.T) {
	snapshot := NewRecorder().Snapshot()

	assert.Zero(t, snapshot.HitRate())
	assert.Zero(t, snapshot.DenialRate())
	assert.Zero(t, snapshot.ErrorRate())
}

func TestSnapshotIsDetached(t *testing.T) {
	r := NewRecorder()
	r.RecordCheck(true, false, time.Millisecond)

	snapshot := r.Snapshot()
	snapshot.TotalChecks = 99

	assert.Equal(t, int64(1), r.Snapshot().TotalChecks)
}

func TestReset(t *testing.T) {
	r := NewRecorder()
	r.RecordCheck(false, true, time.Millisecond)
	r.RecordError()

	r.Reset()

	snapshot := r.Snapshot()
	assert.Zero(t, snapshot.TotalChecks)
	assert.Zero(t, snapshot.Errors)
	assert.Zero(t, snapshot.AvgLatencyMs)
}
