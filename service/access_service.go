// service/access_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/authcore/audit"
	"github.com/clinicore/authcore/emergency"
	"github.com/clinicore/authcore/engine"
	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/policy"
	"github.com/clinicore/authcore/registry"
	"github.com/clinicore/authcore/util"

	sensitivegate "github.com/clinicore/authcore/gate"
)

// IAccessService defines the operations of the authorization decision core
// as consumed by UI-facing callers.
type IAccessService interface {
	CheckPermission(ctx context.Context, identityID, code string) model.CheckResult
	CheckPermissions(ctx context.Context, identityID string, codes []string) map[string]bool
	ResolveDependencies(codes []string) (closure []string, autoEnabled []string)
	ExpandRoleTemplate(name string) ([]string, error)
	RecordLock(ctx context.Context, identityID string, createdAt time.Time) model.RecordLockStatus
	EvaluateCategories(ctx context.Context, identityID string, categories []string) model.CategoryAccess
	RequestEmergencyAccess(ctx context.Context, identityID string, request model.EmergencyAccessRequest) (*model.EmergencyAccessGrant, error)
	RevokeEmergencyAccess(identityID string) error
	EmergencyStatus(identityID string) (model.EmergencyAccessGrant, bool)
	Metrics(ctx context.Context, identityID string) model.MetricsSnapshot
	CacheStats(ctx context.Context, identityID string) model.CacheStats
	InvalidatePermissions(ctx context.Context, identityID string, codes []string)
	EndSession(ctx context.Context, identityID string)
}

// AccessService composes the decision engine, edit-window policy, emergency
// workflow and sensitive-category gate behind one session-aware surface.
type AccessService struct {
	engines      *engine.Manager
	emergencies  *emergency.Manager
	editWindow   *policy.EditWindowPolicy
	gate         *sensitivegate.SensitiveCategoryGate
	registry     *registry.Registry
	auditService audit.Service
	eventBus     *util.EventBus
}

var _ IAccessService = &AccessService{}

// NewAccessService wires the decision core together and registers the event
// subscriptions that keep per-session state and the audit trail aligned.
func NewAccessService(
	engines *engine.Manager,
	emergencies *emergency.Manager,
	editWindow *policy.EditWindowPolicy,
	categoryGate *sensitivegate.SensitiveCategoryGate,
	reg *registry.Registry,
	auditService audit.Service,
	eventBus *util.EventBus,
) *AccessService {
	service := &AccessService{
		engines:      engines,
		emergencies:  emergencies,
		editWindow:   editWindow,
		gate:         categoryGate,
		registry:     reg,
		auditService: auditService,
		eventBus:     eventBus,
	}

	if eventBus != nil {
		eventBus.Subscribe(util.EventSessionInvalidated, service.handleSessionInvalidated)
		eventBus.Subscribe(util.EventDecisionResolved, service.handleDecisionResolved)
	}

	return service
}

func (s *AccessService) handleSessionInvalidated(ctx context.Context, event util.Event) error {
	identityID, ok := event.Payload.(string)
	if !ok {
		return nil
	}
	s.emergencies.Remove(identityID)
	logger.Info("Emergency state dropped with session", zap.String("identityID", identityID))
	return nil
}

// handleDecisionResolved routes grants of dangerous permissions to the audit
// trail asynchronously. Ordinary decision auditing stays out of the hot
// path.
func (s *AccessService) handleDecisionResolved(ctx context.Context, event util.Event) error {
	decision, ok := event.Payload.(util.DecisionEvent)
	if !ok || !decision.Dangerous || !decision.Granted || decision.CacheHit {
		return nil
	}

	_, err := s.auditService.WriteRecord(ctx, audit.Record{
		Timestamp: time.Now(),
		Event:     audit.EventDangerousGrant,
		ActorID:   decision.IdentityID,
		Reason:    decision.Code,
		Granted:   true,
	})
	if err != nil {
		logger.Warn("Failed to audit dangerous permission grant",
			zap.Error(err),
			zap.String("identityID", decision.IdentityID),
			zap.String("code", decision.Code))
	}
	return err
}

// CheckPermission resolves one code for the identity, awaiting the result.
func (s *AccessService) CheckPermission(ctx context.Context, identityID, code string) model.CheckResult {
	eng := s.engines.ForIdentity(ctx, identityID)
	future := eng.Check(ctx, code)

	granted, err := future.Await(ctx)
	result := model.CheckResult{Code: code, Granted: granted}
	if err != nil {
		result.Granted = false
		result.Error = err.Error()
	}
	return result
}

// CheckPermissions resolves a batch of codes; every code is evaluated.
func (s *AccessService) CheckPermissions(ctx context.Context, identityID string, codes []string) map[string]bool {
	eng := s.engines.ForIdentity(ctx, identityID)
	return eng.CheckBatch(ctx, codes)
}

// ResolveDependencies expands the requested codes into their closure and the
// codes the closure implicitly enables.
func (s *AccessService) ResolveDependencies(codes []string) ([]string, []string) {
	return s.registry.Resolve(codes), s.registry.AutoEnabled(codes)
}

// ExpandRoleTemplate materializes the full permission set of a template.
func (s *AccessService) ExpandRoleTemplate(name string) ([]string, error) {
	return s.registry.ExpandRoleTemplate(name)
}

// RecordLock computes the current lock status of a record for the identity.
func (s *AccessService) RecordLock(ctx context.Context, identityID string, createdAt time.Time) model.RecordLockStatus {
	eng := s.engines.ForIdentity(ctx, identityID)
	return s.editWindow.Evaluate(ctx, eng, createdAt)
}

// EvaluateCategories gates a record's sensitive categories for the identity.
func (s *AccessService) EvaluateCategories(ctx context.Context, identityID string, categories []string) model.CategoryAccess {
	eng := s.engines.ForIdentity(ctx, identityID)
	return s.gate.EvaluateAccess(ctx, eng, categories)
}

// RequestEmergencyAccess runs the break-glass workflow for the identity.
func (s *AccessService) RequestEmergencyAccess(ctx context.Context, identityID string, request model.EmergencyAccessRequest) (*model.EmergencyAccessGrant, error) {
	return s.emergencies.ForIdentity(identityID).RequestAccess(ctx, request)
}

// RevokeEmergencyAccess clears the identity's in-memory grant.
func (s *AccessService) RevokeEmergencyAccess(identityID string) error {
	return s.emergencies.ForIdentity(identityID).Revoke()
}

// EmergencyStatus reports the identity's active grant, if any.
func (s *AccessService) EmergencyStatus(identityID string) (model.EmergencyAccessGrant, bool) {
	return s.emergencies.ForIdentity(identityID).ActiveGrant()
}

// Metrics returns the identity's decision counters.
func (s *AccessService) Metrics(ctx context.Context, identityID string) model.MetricsSnapshot {
	return s.engines.ForIdentity(ctx, identityID).Metrics()
}

// CacheStats returns the identity's cache statistics.
func (s *AccessService) CacheStats(ctx context.Context, identityID string) model.CacheStats {
	return s.engines.ForIdentity(ctx, identityID).Cache().Stats()
}

// InvalidatePermissions drops a subset of cached decisions for the identity.
func (s *AccessService) InvalidatePermissions(ctx context.Context, identityID string, codes []string) {
	s.engines.ForIdentity(ctx, identityID).Cache().InvalidateMany(ctx, codes)
}

// EndSession invalidates and reconstructs nothing: the identity's engine,
// cache tiers and emergency state are all discarded.
func (s *AccessService) EndSession(ctx context.Context, identityID string) {
	s.engines.InvalidateIdentity(ctx, identityID)
}
