package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clinicore/authcore/audit"
	"github.com/clinicore/authcore/authority"
	"github.com/clinicore/authcore/cache"
	"github.com/clinicore/authcore/config"
	"github.com/clinicore/authcore/controller"
	"github.com/clinicore/authcore/db"
	"github.com/clinicore/authcore/emergency"
	"github.com/clinicore/authcore/engine"
	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/policy"
	"github.com/clinicore/authcore/registry"
	"github.com/clinicore/authcore/router"
	"github.com/clinicore/authcore/service"
	"github.com/clinicore/authcore/util"

	sensitivegate "github.com/clinicore/authcore/gate"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Load the permission definition table
	permRegistry, err := registry.Load(config.GetString("auth.definitionsFile"))
	if err != nil {
		logger.Fatal("Failed to load permission definitions", zap.Error(err))
	}
	logger.Info("Permission definitions loaded", zap.Int("count", permRegistry.Size()))

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize services and utilities
	validationUtil := util.NewValidationUtil()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// Initialize the decision core
	permissionAuthority := authority.NewNeo4jAuthority(db.Neo4jDriver)
	cacheConfig := model.CacheConfig{
		TTL:        config.GetDuration("auth.cacheTTL"),
		MaxEntries: config.GetInt("auth.cacheMaxEntries"),
		Retention:  model.RetentionMode(config.GetString("auth.cacheRetention")),
	}
	engineManager := engine.NewManager(
		permissionAuthority,
		permRegistry,
		eventBus,
		cacheConfig,
		func(identityID string) cache.SessionStore {
			return db.NewSessionCacheStore(identityID)
		},
	)
	emergencyManager := emergency.NewManager(
		auditService,
		validationUtil,
		eventBus,
		config.GetDuration("auth.emergencyTTL"),
	)
	editWindowPolicy := policy.NewEditWindowPolicy(
		config.GetInt("auth.editWindowHours"),
		config.GetString("auth.overridePermission"),
	)
	categoryGate := sensitivegate.NewSensitiveCategoryGate(permRegistry)

	// Initialize services
	accessService := service.NewAccessService(
		engineManager,
		emergencyManager,
		editWindowPolicy,
		categoryGate,
		permRegistry,
		auditService,
		eventBus,
	)

	// Initialize controllers
	accessController := controller.NewAccessController(accessService, validationUtil)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engineRouter := router.SetupRouter(
		accessController,
		config.GetInt("ratelimit.requests"),
		config.GetDuration("ratelimit.window"),
	)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engineRouter,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
