// policy/edit_window.go
package policy

import (
	"context"
	"time"

	"github.com/clinicore/authcore/engine"
	"github.com/clinicore/authcore/model"
)

// Compute derives the lock state of a record from its creation time, the
// grace window and the caller's override capability. Pure; callers supply
// the current instant so the boundary is testable.
func Compute(createdAt time.Time, window time.Duration, overrideGranted bool, now time.Time) model.RecordLockStatus {
	locksAt := createdAt.Add(window)
	remaining := locksAt.Sub(now).Milliseconds()

	return model.RecordLockStatus{
		CreatedAt:       createdAt,
		LocksAt:         locksAt,
		CanOverride:     overrideGranted,
		TimeRemainingMs: remaining,
		IsLocked:        remaining <= 0 && !overrideGranted,
	}
}

// EditWindowPolicy evaluates record locks against the live permission state.
// Lock status is recomputed on every call, never cached: a revoked override
// must take effect immediately.
type EditWindowPolicy struct {
	window       time.Duration
	overrideCode string
}

func NewEditWindowPolicy(windowHours int, overrideCode string) *EditWindowPolicy {
	return &EditWindowPolicy{
		window:       time.Duration(windowHours) * time.Hour,
		overrideCode: overrideCode,
	}
}

// Evaluate computes the current lock status of a record for the identity
// behind the given engine. The override permission is checked on every
// evaluation.
func (p *EditWindowPolicy) Evaluate(ctx context.Context, eng *engine.Engine, createdAt time.Time) model.RecordLockStatus {
	overrideGranted, err := eng.Check(ctx, p.overrideCode).Await(ctx)
	if err != nil {
		overrideGranted = false
	}
	return Compute(createdAt, p.window, overrideGranted, time.Now())
}
