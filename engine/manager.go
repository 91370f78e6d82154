// engine/manager.go
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/clinicore/authcore/authority"
	"github.com/clinicore/authcore/cache"
	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/metrics"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/registry"
	"github.com/clinicore/authcore/util"
)

// SessionStoreFactory builds the secondary retention tier for one identity.
// A nil factory means memory-only caches.
type SessionStoreFactory func(identityID string) cache.SessionStore

// Manager owns one Engine per authenticated identity. No state is ever
// shared across identities; switching identities invalidates and
// reconstructs the cache and recorder instead of reusing them.
type Manager struct {
	mu      sync.Mutex
	engines map[string]*Engine

	checker      authority.Checker
	registry     *registry.Registry
	eventBus     *util.EventBus
	cacheConfig  model.CacheConfig
	storeFactory SessionStoreFactory
}

func NewManager(checker authority.Checker, reg *registry.Registry, eventBus *util.EventBus, cacheConfig model.CacheConfig, storeFactory SessionStoreFactory) *Manager {
	return &Manager{
		engines:      make(map[string]*Engine),
		checker:      checker,
		registry:     reg,
		eventBus:     eventBus,
		cacheConfig:  cacheConfig,
		storeFactory: storeFactory,
	}
}

// ForIdentity returns the engine for an identity, constructing it on first
// use. An empty identity gets a transient engine that denies everything.
func (m *Manager) ForIdentity(ctx context.Context, identityID string) *Engine {
	if identityID == "" {
		recorder := metrics.NewRecorder()
		transientCache := cache.New(ctx, model.CacheConfig{
			TTL:        m.cacheConfig.TTL,
			MaxEntries: m.cacheConfig.MaxEntries,
			Retention:  model.RetentionMemory,
		}, nil, recorder.RecordError)
		return NewEngine("", m.checker, transientCache, recorder, m.registry, m.eventBus)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if eng, ok := m.engines[identityID]; ok {
		return eng
	}

	var store cache.SessionStore
	if m.storeFactory != nil {
		store = m.storeFactory(identityID)
	}
	recorder := metrics.NewRecorder()
	permCache := cache.New(ctx, m.cacheConfig, store, recorder.RecordError)
	eng := NewEngine(identityID, m.checker, permCache, recorder, m.registry, m.eventBus)
	m.engines[identityID] = eng

	logger.Info("Decision engine created", zap.String("identityID", identityID))
	return eng
}

// InvalidateIdentity clears both cache tiers and discards the engine. Used
// on logout or bulk role change.
func (m *Manager) InvalidateIdentity(ctx context.Context, identityID string) {
	m.mu.Lock()
	eng, ok := m.engines[identityID]
	delete(m.engines, identityID)
	m.mu.Unlock()

	if !ok {
		return
	}

	eng.Cache().Invalidate(ctx)
	eng.Recorder().Reset()

	if m.eventBus != nil {
		m.eventBus.Publish(ctx, util.EventSessionInvalidated, identityID)
	}
	logger.Info("Decision engine invalidated", zap.String("identityID", identityID))
}
