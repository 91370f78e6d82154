// util/http_util.go
package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authcore_errors "github.com/clinicore/authcore/errors"
	logger "github.com/clinicore/authcore/logging"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// GetIdentityFromContext returns the authenticated identity set by the
// identity middleware. An empty identity means the caller is unauthenticated
// and every decision resolves to denial.
func GetIdentityFromContext(c *gin.Context) (string, error) {
	identityID, exists := c.Get("identityID")
	if !exists {
		return "", authcore_errors.ErrNotAuthenticated
	}
	id, ok := identityID.(string)
	if !ok || id == "" {
		return "", authcore_errors.ErrNotAuthenticated
	}
	return id, nil
}
