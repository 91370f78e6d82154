// emergency/manager.go
package emergency

import (
	"sync"
	"time"

	"github.com/clinicore/authcore/audit"
	"github.com/clinicore/authcore/util"
)

// Manager hands out one Workflow per identity. Grants live with the
// identity's session and are discarded with it.
type Manager struct {
	mu        sync.Mutex
	workflows map[string]*Workflow

	auditService audit.Service
	validation   *util.ValidationUtil
	eventBus     *util.EventBus
	grantTTL     time.Duration
}

func NewManager(auditService audit.Service, validation *util.ValidationUtil, eventBus *util.EventBus, grantTTL time.Duration) *Manager {
	return &Manager{
		workflows:    make(map[string]*Workflow),
		auditService: auditService,
		validation:   validation,
		eventBus:     eventBus,
		grantTTL:     grantTTL,
	}
}

// ForIdentity returns the identity's workflow, constructing it on first use.
func (m *Manager) ForIdentity(identityID string) *Workflow {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wf, ok := m.workflows[identityID]; ok {
		return wf
	}
	wf := NewWorkflow(identityID, m.auditService, m.validation, m.eventBus, m.grantTTL)
	if identityID != "" {
		m.workflows[identityID] = wf
	}
	return wf
}

// Remove discards the identity's workflow and any in-memory grant.
func (m *Manager) Remove(identityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.workflows, identityID)
}
