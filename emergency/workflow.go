// emergency/workflow.go
package emergency

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/authcore/audit"
	authcore_errors "github.com/clinicore/authcore/errors"
	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/util"
)

// Workflow runs the break-glass procedure for one identity: validate the
// justification, write the audit record, and only then produce a
// time-boxed grant. The audit write is a blocking precondition; there is no
// grant-first-audit-later path.
type Workflow struct {
	identityID   string
	auditService audit.Service
	validation   *util.ValidationUtil
	eventBus     *util.EventBus
	grantTTL     time.Duration

	mu    sync.Mutex
	grant *model.EmergencyAccessGrant

	now func() time.Time
}

func NewWorkflow(identityID string, auditService audit.Service, validation *util.ValidationUtil, eventBus *util.EventBus, grantTTL time.Duration) *Workflow {
	if grantTTL <= 0 {
		grantTTL = time.Hour
	}
	return &Workflow{
		identityID:   identityID,
		auditService: auditService,
		validation:   validation,
		eventBus:     eventBus,
		grantTTL:     grantTTL,
		now:          time.Now,
	}
}

// RequestAccess validates the request, writes the mandatory audit record and
// returns the grant. Any validation failure rejects the request before the
// audit interface is contacted; an audit-write failure rejects it after.
func (w *Workflow) RequestAccess(ctx context.Context, request model.EmergencyAccessRequest) (*model.EmergencyAccessGrant, error) {
	if w.identityID == "" {
		return nil, authcore_errors.ErrNotAuthenticated
	}
	if err := w.validation.ValidateEmergencyRequest(request); err != nil {
		return nil, err
	}

	requestedAt := w.now()
	record := audit.Record{
		Timestamp:    requestedAt,
		Event:        audit.EventEmergencyOverride,
		ActorID:      w.identityID,
		ResourceID:   request.ResourceID,
		ResourceType: request.ResourceType,
		Reason:       request.Reason,
		Granted:      true,
	}

	auditRecordID, err := w.auditService.WriteRecord(ctx, record)
	if err != nil {
		logger.Error("Emergency access rejected: audit write failed",
			zap.Error(err),
			zap.String("identityID", w.identityID),
			zap.String("resourceID", request.ResourceID))
		return nil, authcore_errors.ErrAuditWriteFailed
	}

	grant := &model.EmergencyAccessGrant{
		ResourceID:    request.ResourceID,
		ResourceType:  request.ResourceType,
		Reason:        request.Reason,
		RequestedAt:   requestedAt,
		RequestedBy:   w.identityID,
		ExpiresAt:     requestedAt.Add(w.grantTTL),
		AuditRecordID: auditRecordID,
	}

	w.mu.Lock()
	w.grant = grant
	w.mu.Unlock()

	if w.eventBus != nil {
		w.eventBus.Publish(ctx, util.EventEmergencyGranted, *grant)
	}

	logger.Warn("Emergency access granted",
		zap.String("identityID", w.identityID),
		zap.String("resourceID", request.ResourceID),
		zap.String("auditRecordID", auditRecordID),
		zap.Time("expiresAt", grant.ExpiresAt))
	return grant, nil
}

// Revoke clears the in-memory grant. The audit trail is untouched.
func (w *Workflow) Revoke() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.grant == nil {
		return authcore_errors.ErrNoActiveGrant
	}
	logger.Info("Emergency access revoked",
		zap.String("identityID", w.identityID),
		zap.String("resourceID", w.grant.ResourceID))
	w.grant = nil
	return nil
}

// HasActiveAccess is computed, not stored: a grant exists and its window has
// not elapsed.
func (w *Workflow) HasActiveAccess() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.grant.Active(w.now())
}

// ActiveGrant returns a copy of the current grant when it is still active.
func (w *Workflow) ActiveGrant() (model.EmergencyAccessGrant, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.grant.Active(w.now()) {
		return model.EmergencyAccessGrant{}, false
	}
	return *w.grant, true
}
