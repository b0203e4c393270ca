// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"openbci-service/internal/config"
	"openbci-service/internal/model"
	"openbci-service/internal/service"
	"openbci-service/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	boardService *service.BoardService
	connections  *ConnectionManager
	config       *config.Config
	logger       *utils.ServiceLogger
	startTime    time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(boardService *service.BoardService, connections *ConnectionManager, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		boardService: boardService,
		connections:  connections,
		config:       config,
		logger:       utils.NewServiceLogger(logger, "health-handler"),
		startTime:    time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Service health including the board connection. A board that failed after connecting reports degraded.
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.boardService.Status()
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	board := CheckResult{
		Status:  "healthy",
		Message: string(status.Stats.State),
		Data: map[string]interface{}{
			"connected":    status.Stats.Connected,
			"streaming":    status.Stats.Reading,
			"sample_count": status.Stats.SampleCount,
			"bad_packets":  status.Stats.BadPackets,
		},
	}
	// a session whose transport failed stays open until disconnected
	if status.Stats.State != model.BoardStateDisconnected && !status.Stats.Connected &&
		status.Stats.State != model.BoardStateConnecting {
		board.Status = "degraded"
		health.Status = "degraded"
	}
	health.Checks["board"] = board

	health.Checks["stream"] = CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"clients":        h.connections.Count(),
			"subscribers":    status.Subscribers,
			"dropped_events": status.DroppedEvents,
		},
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
