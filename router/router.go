// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/authcore/controller"
	"github.com/clinicore/authcore/middleware"
)

func SetupRouter(
	accessController *controller.AccessController,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))
	router.Use(middleware.Identity())

	api := router.Group("/api/v1")

	accessController.RegisterRoutes(api)

	return router
}
