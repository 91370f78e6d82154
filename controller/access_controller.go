// controller/access_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authcore_errors "github.com/clinicore/authcore/errors"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/service"
	"github.com/clinicore/authcore/util"
	helper_util "github.com/clinicore/authcore/util/helper"
)

type AccessController struct {
	accessService service.IAccessService
	validation    *util.ValidationUtil
}

func NewAccessController(accessService service.IAccessService, validation *util.ValidationUtil) *AccessController {
	return &AccessController{
		accessService: accessService,
		validation:    validation,
	}
}

// RegisterRoutes registers the API routes for access decisions
func (ac *AccessController) RegisterRoutes(r *gin.RouterGroup) {
	access := r.Group("/access")
	{
		access.POST("/check", ac.CheckPermission)
		access.POST("/check/batch", ac.CheckPermissionBatch)
		access.POST("/resolve", ac.ResolveDependencies)
		access.GET("/templates/:name", ac.ExpandRoleTemplate)
		access.GET("/records/lock", ac.RecordLock)
		access.POST("/categories", ac.EvaluateCategories)
		access.POST("/emergency", ac.RequestEmergencyAccess)
		access.GET("/emergency", ac.EmergencyStatus)
		access.DELETE("/emergency", ac.RevokeEmergencyAccess)
		access.GET("/metrics", ac.Metrics)
		access.GET("/cache/stats", ac.CacheStats)
		access.POST("/cache/invalidate", ac.InvalidateCache)
		access.DELETE("/session", ac.EndSession)
	}
}

type checkRequest struct {
	Code string `json:"code" binding:"required"`
}

type codesRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

type categoriesRequest struct {
	Categories []string `json:"categories"`
}

// CheckPermission endpoint
func (ac *AccessController) CheckPermission(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid check request", authcore_errors.ErrInvalidRequestData)
		return
	}
	if err := ac.validation.ValidatePermissionCode(req.Code); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid permission code", err)
		return
	}

	result := ac.accessService.CheckPermission(c, identityID, req.Code)
	c.JSON(http.StatusOK, result)
}

// CheckPermissionBatch endpoint
func (ac *AccessController) CheckPermissionBatch(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	var req codesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid batch request", authcore_errors.ErrInvalidRequestData)
		return
	}
	for _, code := range req.Codes {
		if err := ac.validation.ValidatePermissionCode(code); err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid permission code", err)
			return
		}
	}

	results := ac.accessService.CheckPermissions(c, identityID, req.Codes)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ResolveDependencies endpoint
func (ac *AccessController) ResolveDependencies(c *gin.Context) {
	var req codesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid resolve request", authcore_errors.ErrInvalidRequestData)
		return
	}

	closure, autoEnabled := ac.accessService.ResolveDependencies(req.Codes)
	c.JSON(http.StatusOK, gin.H{
		"closure":      closure,
		"auto_enabled": autoEnabled,
	})
}

// ExpandRoleTemplate endpoint
func (ac *AccessController) ExpandRoleTemplate(c *gin.Context) {
	name := c.Param("name")

	permissions, err := ac.accessService.ExpandRoleTemplate(name)
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Role template not found", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"permissions": permissions})
}

// RecordLock endpoint
func (ac *AccessController) RecordLock(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	createdAt, err := helper_util.ParseTime(c.Query("created_at"))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid created_at timestamp", authcore_errors.ErrInvalidLockRequest)
		return
	}

	status := ac.accessService.RecordLock(c, identityID, createdAt)
	c.JSON(http.StatusOK, status)
}

// EvaluateCategories endpoint
func (ac *AccessController) EvaluateCategories(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	var req categoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid categories request", authcore_errors.ErrInvalidRequestData)
		return
	}

	verdict := ac.accessService.EvaluateCategories(c, identityID, req.Categories)
	c.JSON(http.StatusOK, verdict)
}

// RequestEmergencyAccess endpoint
func (ac *AccessController) RequestEmergencyAccess(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	var req model.EmergencyAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid emergency access request", authcore_errors.ErrInvalidRequestData)
		return
	}

	grant, err := ac.accessService.RequestEmergencyAccess(c, identityID, req)
	if err != nil {
		switch {
		case errors.Is(err, authcore_errors.ErrReasonTooShort):
			util.RespondWithError(c, http.StatusBadRequest, "Justification must be at least 10 characters", err)
		case errors.Is(err, authcore_errors.ErrInvalidRequestData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid emergency access request", err)
		case errors.Is(err, authcore_errors.ErrNotAuthenticated):
			util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		case errors.Is(err, authcore_errors.ErrAuditWriteFailed):
			util.RespondWithError(c, http.StatusServiceUnavailable, "Audit trail unavailable, access denied", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to grant emergency access", authcore_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, grant)
}

// EmergencyStatus endpoint
func (ac *AccessController) EmergencyStatus(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	grant, active := ac.accessService.EmergencyStatus(identityID)
	if !active {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "grant": grant})
}

// RevokeEmergencyAccess endpoint
func (ac *AccessController) RevokeEmergencyAccess(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	if err := ac.accessService.RevokeEmergencyAccess(identityID); err != nil {
		if errors.Is(err, authcore_errors.ErrNoActiveGrant) {
			util.RespondWithError(c, http.StatusNotFound, "No active emergency access grant", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to revoke emergency access", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// Metrics endpoint
func (ac *AccessController) Metrics(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	snapshot := ac.accessService.Metrics(c, identityID)
	c.JSON(http.StatusOK, gin.H{
		"metrics":     snapshot,
		"hit_rate":    snapshot.HitRate(),
		"denial_rate": snapshot.DenialRate(),
		"error_rate":  snapshot.ErrorRate(),
	})
}

// CacheStats endpoint
func (ac *AccessController) CacheStats(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	c.JSON(http.StatusOK, ac.accessService.CacheStats(c, identityID))
}

// InvalidateCache endpoint
func (ac *AccessController) InvalidateCache(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	var req codesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid invalidation request", authcore_errors.ErrInvalidRequestData)
		return
	}

	ac.accessService.InvalidatePermissions(c, identityID, req.Codes)
	c.Status(http.StatusNoContent)
}

// EndSession endpoint
func (ac *AccessController) EndSession(c *gin.Context) {
	identityID, err := util.GetIdentityFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Not authenticated", err)
		return
	}

	ac.accessService.EndSession(c, identityID)
	c.Status(http.StatusNoContent)
}
