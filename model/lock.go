// model/lock.go
package model

import "time"

// RecordLockStatus is derived on demand from a record's creation time, the
// configured edit window and a live override check. It is never persisted.
type RecordLockStatus struct {
	IsLocked        bool      `json:"is_locked"`
	CreatedAt       time.Time `json:"created_at"`
	LocksAt         time.Time `json:"locks_at"`
	CanOverride     bool      `json:"can_override"`
	TimeRemainingMs int64     `json:"time_remaining_ms"`
}
