// middleware/identity.go

package middleware

import (
	"github.com/gin-gonic/gin"
)

// Identity lifts the authenticated identity from the gateway-supplied header
// into the request context. Authentication itself happens upstream; an
// absent header leaves the request unauthenticated and every decision
// downstream resolves to denial.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identityID := c.GetHeader("X-Identity-ID"); identityID != "" {
			c.Set("identityID", identityID)
		}
		c.Next()
	}
}
