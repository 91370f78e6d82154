// controller/access_controller_test.go
package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/authcore/controller"
	authcore_errors "github.com/clinicore/authcore/errors"
	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/middleware"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/util"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitTestLogger()
	m.Run()
}

// fakeAccessService implements service.IAccessService with overridable
// function fields; unset operations return zero values.
type fakeAccessService struct {
	checkPermission        func(identityID, code string) model.CheckResult
	checkPermissions       func(identityID string, codes []string) map[string]bool
	resolveDependencies    func(codes []string) ([]string, []string)
	expandRoleTemplate     func(name string) ([]string, error)
	recordLock             func(identityID string, createdAt time.Time) model.RecordLockStatus
	evaluateCategories     func(identityID string, categories []string) model.CategoryAccess
	requestEmergencyAccess func(identityID string, request model.EmergencyAccessRequest) (*model.EmergencyAccessGrant, error)
	revokeEmergencyAccess  func(identityID string) error
	emergencyStatus        func(identityID string) (model.EmergencyAccessGrant, bool)
	invalidatePermissions  func(identityID string, codes []string)
	endSession             func(identityID string)
}

func (f *fakeAccessService) CheckPermission(ctx context.Context, identityID, code string) model.CheckResult {
	if f.checkPermission != nil {
		return f.checkPermission(identityID, code)
	}
	return model.CheckResult{Code: code}
}

func (f *fakeAccessService) CheckPermissions(ctx context.Context, identityID string, codes []string) map[string]bool {
	if f.checkPermissions != nil {
		return f.checkPermissions(identityID, codes)
	}
	return map[string]bool{}
}

func (f *fakeAccessService) ResolveDependencies(codes []string) ([]string, []string) {
	if f.resolveDependencies != nil {
		return f.resolveDependencies(codes)
	}
	return codes, nil
}

func (f *fakeAccessService) ExpandRoleTemplate(name string) ([]string, error) {
	if f.expandRoleTemplate != nil {
		return f.expandRoleTemplate(name)
	}
	return nil, authcore_errors.ErrInvalidRequestData
}

func (f *fakeAccessService) RecordLock(ctx context.Context, identityID string, createdAt time.Time) model.RecordLockStatus {
	if f.recordLock != nil {
		return f.recordLock(identityID, createdAt)
	}
	return model.RecordLockStatus{}
}

func (f *fakeAccessService) EvaluateCategories(ctx context.Context, identityID string, categories []string) model.CategoryAccess {
	if f.evaluateCategories != nil {
		return f.evaluateCategories(identityID, categories)
	}
	return model.CategoryAccess{CanAccess: true}
}

func (f *fakeAccessService) RequestEmergencyAccess(ctx context.Context, identityID string, request model.EmergencyAccessRequest) (*model.EmergencyAccessGrant, error) {
	if f.requestEmergencyAccess != nil {
		return f.requestEmergencyAccess(identityID, request)
	}
	return nil, authcore_errors.ErrInternalServer
}

func (f *fakeAccessService) RevokeEmergencyAccess(identityID string) error {
	if f.revokeEmergencyAccess != nil {
		return f.revokeEmergencyAccess(identityID)
	}
	return authcore_errors.ErrNoActiveGrant
}

func (f *fakeAccessService) EmergencyStatus(identityID string) (model.EmergencyAccessGrant, bool) {
	if f.emergencyStatus != nil {
		return f.emergencyStatus(identityID)
	}
	return model.EmergencyAccessGrant{}, false
}

func (f *fakeAccessService) Metrics(ctx context.Context, identityID string) model.MetricsSnapshot {
	return model.MetricsSnapshot{}
}

func (f *fakeAccessService) CacheStats(ctx context.Context, identityID string) model.CacheStats {
	return model.CacheStats{}
}

func (f *fakeAccessService) InvalidatePermissions(ctx context.Context, identityID string, codes []string) {
	if f.invalidatePermissions != nil {
		f.invalidatePermissions(identityID, codes)
	}
}

func (f *fakeAccessService) EndSession(ctx context.Context, identityID string) {
	if f.endSession != nil {
		f.endSession(identityID)
	}
}

func newTestRouter(svc *fakeAccessService) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Identity())
	api := r.Group("/api/v1")
	controller.NewAccessController(svc, util.NewValidationUtil()).RegisterRoutes(api)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, identityID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identityID != "" {
		req.Header.Set("X-Identity-ID", identityID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckEndpoint(t *testing.T) {
	svc := &fakeAccessService{
		checkPermission: func(identityID, code string) model.CheckResult {
			assert.Equal(t, "dr-house", identityID)
			return model.CheckResult{Code: code, Granted: true}
		},
	}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/access/check", "dr-house",
		gin.H{"code": "records.view"})

	require.Equal(t, http.StatusOK, w.Code)
	var result model.CheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Granted)
	assert.Equal(t, "records.view", result.Code)
}

func TestCheckRequiresIdentity(t *testing.T) {
	r := newTestRouter(&fakeAccessService{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/access/check", "",
		gin.H{"code": "records.view"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckRejectsMissingCode(t *testing.T) {
	r := newTestRouter(&fakeAccessService{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/access/check", "dr-house", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckRejectsEmptyCode(t *testing.T) {
	r := newTestRouter(&fakeAccessService{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/access/check", "dr-house",
		gin.H{"code": ""})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchRejectsEmptyCode(t *testing.T) {
	called := false
	svc := &fakeAccessService{
		checkPermissions: func(string, []string) map[string]bool {
			called = true
			return nil
		},
	}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/access/check/batch", "dr-house",
		gin.H{"codes": []string{"records.view", ""}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called, "an invalid batch must be rejected before evaluation")
}

func TestBatchEndpoint(t *testing.T) {
	svc := &fakeAccessService{
		checkPermissions: func(identityID string, codes []string) map[string]bool {
			return map[string]bool{"records.view": true, "records.edit": false}
		},
	}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/access/check/batch", "dr-house",
		gin.H{"codes": []string{"records.view", "records.edit"}})

	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Results map[string]bool `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.True(t, payload.Results["records.view"])
	assert.False(t, payload.Results["records.edit"])
}

func TestResolveEndpoint(t *testing.T) {
	svc := &fakeAccessService{
		resolveDependencies: func(codes []string) ([]string, []string) {
			return []string{"records.edit", "records.view"}, []string{"records.view"}
		},
	}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/access/resolve", "",
		gin.H{"codes": []string{"records.edit"}})

	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Closure     []string `json:"closure"`
		AutoEnabled []string `json:"auto_enabled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, []string{"records.edit", "records.view"}, payload.Closure)
	assert.Equal(t, []string{"records.view"}, payload.AutoEnabled)
}

func TestTemplateEndpointNotFound(t *testing.T) {
	svc := &fakeAccessService{
		expandRoleTemplate: func(name string) ([]string, error) {
			return nil, assert.AnError
		},
	}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/api/v1/access/templates/janitor", "dr-house", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordLockEndpoint(t *testing.T) {
	createdAt := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)
	svc := &fakeAccessService{
		recordLock: func(identityID string, got time.Time) model.RecordLockStatus {
			assert.True(t, got.Equal(createdAt))
			return model.RecordLockStatus{IsLocked: true}
		},
	}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodGet,
		"/api/v1/access/records/lock?created_at=2025-03-09T09:00:00Z", "dr-house", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var status model.RecordLockStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.IsLocked)
}

func TestRecordLockRejectsBadTimestamp(t *testing.T) {
	r := newTestRouter(&fakeAccessService{})

	w := doJSON(t, r, http.MethodGet,
		"/api/v1/access/records/lock?created_at=yesterday", "dr-house", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmergencyEndpointStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"short reason", authcore_errors.ErrReasonTooShort, http.StatusBadRequest},
		{"audit down", authcore_errors.ErrAuditWriteFailed, http.StatusServiceUnavailable},
		{"other failure", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeAccessService{
				requestEmergencyAccess: func(string, model.EmergencyAccessRequest) (*model.EmergencyAccessGrant, error) {
					return nil, tc.err
				},
			}
			r := newTestRouter(svc)

			w := doJSON(t, r, http.MethodPost, "/api/v1/access/emergency", "dr-house",
				gin.H{"resource_id": "patient-4821", "resource_type": "clinical_record", "reason": "short"})

			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestEmergencyEndpointCreated(t *testing.T) {
	svc := &fakeAccessService{
		requestEmergencyAccess: func(identityID string, request model.EmergencyAccessRequest) (*model.EmergencyAccessGrant, error) {
			return &model.EmergencyAccessGrant{
				ResourceID:    request.ResourceID,
				RequestedBy:   identityID,
				AuditRecordID: "audit-doc-1",
			}, nil
		},
	}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/access/emergency", "dr-house",
		gin.H{"resource_id": "patient-4821", "resource_type": "clinical_record", "reason": "Patient unresponsive in ER"})

	require.Equal(t, http.StatusCreated, w.Code)
	var grant model.EmergencyAccessGrant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &grant))
	assert.Equal(t, "audit-doc-1", grant.AuditRecordID)
}

func TestRevokeWithoutGrantIs404(t *testing.T) {
	r := newTestRouter(&fakeAccessService{})

	w := doJSON(t, r, http.MethodDelete, "/api/v1/access/emergency", "dr-house", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndSessionEndpoint(t *testing.T) {
	ended := ""
	svc := &fakeAccessService{
		endSession: func(identityID string) { ended = identityID },
	}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodDelete, "/api/v1/access/session", "dr-house", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "dr-house", ended)
}
