// engine/engine.go
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/authcore/authority"
	"github.com/clinicore/authcore/cache"
	authcore_errors "github.com/clinicore/authcore/errors"
	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/metrics"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/registry"
	"github.com/clinicore/authcore/util"
)

// Engine is the decision core for a single authenticated identity. It owns
// the identity's permission cache and metrics recorder; the Manager tears
// all three down together on identity change.
//
// Decision order per code: cache lookup, then remote authority, then cache
// write. A denial is never upgraded to a grant by a stale concurrent write,
// and an error never resolves to a grant.
type Engine struct {
	identityID string
	checker    authority.Checker
	cache      *cache.PermissionCache
	recorder   *metrics.Recorder
	registry   *registry.Registry
	eventBus   *util.EventBus

	now func() time.Time
}

// NewEngine wires a decision engine for one identity. An empty identityID
// produces an engine that denies everything without contacting the
// authority.
func NewEngine(identityID string, checker authority.Checker, permCache *cache.PermissionCache, recorder *metrics.Recorder, reg *registry.Registry, eventBus *util.EventBus) *Engine {
	return &Engine{
		identityID: identityID,
		checker:    checker,
		cache:      permCache,
		recorder:   recorder,
		registry:   reg,
		eventBus:   eventBus,
		now:        time.Now,
	}
}

// IdentityID returns the identity this engine decides for.
func (e *Engine) IdentityID() string {
	return e.identityID
}

// Cache exposes the engine's cache for stats and invalidation endpoints.
func (e *Engine) Cache() *cache.PermissionCache {
	return e.cache
}

// Metrics returns a detached snapshot of the decision counters.
func (e *Engine) Metrics() model.MetricsSnapshot {
	return e.recorder.Snapshot()
}

// Recorder exposes the live recorder; only the Manager uses it directly.
func (e *Engine) Recorder() *metrics.Recorder {
	return e.recorder
}

// Check resolves a single permission code. The returned Future resolves
// immediately on a cache hit or unauthenticated identity and asynchronously
// after the authority call otherwise.
func (e *Engine) Check(ctx context.Context, code string) *Future {
	future := newFuture(code)
	start := e.now()

	// Unknown identity resolves straight to denial: no remote call, no
	// cache write.
	if e.identityID == "" {
		future.resolve(false, authcore_errors.ErrNotAuthenticated)
		return future
	}

	if granted, ok := e.cache.Get(code); ok {
		e.recorder.RecordCheck(true, !granted, e.now().Sub(start))
		e.publishDecision(ctx, code, granted, true)
		future.resolve(granted, nil)
		return future
	}

	// The authority call is detached from the caller's context: a caller
	// that loses interest must not stop the answer from populating the
	// cache for the next caller.
	detached := context.WithoutCancel(ctx)
	go func() {
		granted, err := e.checker.CheckPermission(detached, e.identityID, code)
		latency := e.now().Sub(start)

		if err != nil {
			logger.Warn("Permission check failed, denying",
				zap.Error(err),
				zap.String("identityID", e.identityID),
				zap.String("code", code))
			e.recorder.RecordError()
			e.recorder.RecordCheck(false, true, latency)
			future.resolve(false, err)
			return
		}

		e.cache.Set(detached, code, granted)
		e.recorder.RecordCheck(false, !granted, latency)
		e.publishDecision(detached, code, granted, false)
		future.resolve(granted, nil)
	}()

	return future
}

// CheckBatch resolves every code in the set and reports each one. All codes
// are evaluated; a multi-permission gate must never short-circuit on the
// first entry.
func (e *Engine) CheckBatch(ctx context.Context, codes []string) map[string]bool {
	futures := make(map[string]*Future, len(codes))
	for _, code := range codes {
		if _, dup := futures[code]; dup {
			continue
		}
		futures[code] = e.Check(ctx, code)
	}

	results := make(map[string]bool, len(futures))
	for code, future := range futures {
		granted, err := future.Await(ctx)
		if err != nil {
			granted = false
		}
		results[code] = granted
	}
	return results
}

func (e *Engine) publishDecision(ctx context.Context, code string, granted bool, cacheHit bool) {
	if e.eventBus == nil {
		return
	}
	dangerous := false
	if e.registry != nil {
		dangerous = e.registry.IsDangerous(code)
	}
	e.eventBus.Publish(ctx, util.EventDecisionResolved, util.DecisionEvent{
		IdentityID: e.identityID,
		Code:       code,
		Granted:    granted,
		CacheHit:   cacheHit,
		Dangerous:  dangerous,
	})
}
