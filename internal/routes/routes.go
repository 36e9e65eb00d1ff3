// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"rn2903-service/internal/config"
	"rn2903-service/internal/database"
	"rn2903-service/internal/handler"
	"rn2903-service/internal/middleware"
	"rn2903-service/internal/service"
	"rn2903-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config           *config.Config
	logger           *zap.Logger
	db               *database.DB
	radioService     *service.RadioService
	discoveryService *service.DiscoveryService

	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance. db may be nil.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	radioService *service.RadioService,
	discoveryService *service.DiscoveryService,
) *Router {
	return &Router{
		config:           config,
		logger:           logger,
		db:               db,
		radioService:     radioService,
		discoveryService: discoveryService,
		wsHandler: handler.NewWebSocketHandler(
			radioService,
			radioService.Events(),
			config.Server.AllowedOrigins,
			logger,
		),
	}
}

// WebSocket returns the handler whose Run loop forwards events to clients
func (r *Router) WebSocket() *handler.WebSocketHandler {
	return r.wsHandler
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)
	return router
}

func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RequestIDMiddleware())

	// recovery runs inside logging so panicked requests are logged with their 500
	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))
	router.Use(middleware.RecoveryMiddleware(r.logger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))

	r.logger.Debug("Middleware configured")
}

func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.radioService, r.config, r.logger)
	radioHandler := handler.NewRadioHandler(r.radioService, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.discoveryService, r.logger)

	healthHandler.RegisterRoutes(router)

	apiV1 := router.Group("/api/v1")
	r.addRadioRoutes(apiV1, radioHandler)
	r.addDiscoveryRoutes(apiV1, discoveryHandler)

	router.GET("/ws/events", r.wsHandler.HandleEventConnection)

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

func (r *Router) addRadioRoutes(api *gin.RouterGroup, h *handler.RadioHandler) {
	radio := api.Group("/radio")
	{
		radio.POST("/commands", h.ExecuteCommand)
		radio.POST("/validate", h.ValidateCommand)
		radio.POST("/events/next", h.NextEvent)
		radio.GET("/status", h.GetStatus)
		radio.PUT("/safe-mode", h.SetSafeMode)

		radio.GET("/config", h.GetConfig)
		radio.PUT("/config", h.PushConfig)
		radio.POST("/config/pull", h.PullConfig)
		radio.GET("/config/history", h.GetHistory)
	}
}

func (r *Router) addDiscoveryRoutes(api *gin.RouterGroup, h *handler.DiscoveryHandler) {
	discovery := api.Group("/discovery")
	{
		discovery.GET("/scan", h.ScanDevices)
		discovery.GET("/scanners", h.GetScanners)
	}
}

func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
