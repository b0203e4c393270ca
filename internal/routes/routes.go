// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"openbci-service/internal/config"
	"openbci-service/internal/handler"
	"openbci-service/internal/middleware"
	"openbci-service/internal/service"
	"openbci-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config       *config.Config
	logger       *zap.Logger
	boardService *service.BoardService
	wsHandler    *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, boardService *service.BoardService) *Router {
	return &Router{
		config:       config,
		logger:       logger,
		boardService: boardService,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)
	return router
}

// WebSocketHandler returns the stream handler built by SetupRouter
func (r *Router) WebSocketHandler() *handler.WebSocketHandler { return r.wsHandler }

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(utils.NewServiceLogger(r.logger, "http-server")))
	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	r.wsHandler = handler.NewWebSocketHandler(r.boardService, r.config, r.logger)
	boardHandler := handler.NewBoardHandler(r.boardService, r.logger)
	healthHandler := handler.NewHealthHandler(r.boardService, r.wsHandler.Connections(), r.config, r.logger)

	healthHandler.RegisterRoutes(router.Group(""))
	boardHandler.RegisterRoutes(router.Group("/api/v1"))
	r.wsHandler.RegisterRoutes(router.Group("/ws"))
	r.addDocumentationRoutes(router)

	r.logger.Debug("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
