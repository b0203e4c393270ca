// internal/handler/board_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"openbci-service/internal/board"
	"openbci-service/internal/model"
	"openbci-service/internal/service"
	"openbci-service/internal/utils"
)

// BoardHandler handles board HTTP requests
type BoardHandler struct {
	boardService *service.BoardService
	logger       *utils.ServiceLogger
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(boardService *service.BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		boardService: boardService,
		logger:       utils.NewServiceLogger(logger, "board-handler"),
	}
}

// RegisterRoutes registers board routes
func (h *BoardHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ports", h.ListPorts)

	b := router.Group("/board")
	{
		b.GET("", h.GetStatus)
		b.POST("/connect", h.Connect)
		b.POST("/disconnect", h.Disconnect)
		b.POST("/stream/start", h.simple("Stream start queued", (*service.BoardService).StreamStart))
		b.POST("/stream/stop", h.simple("Stream stop queued", (*service.BoardService).StreamStop))
		b.POST("/pause", h.simple("Board paused", (*service.BoardService).Pause))
		b.POST("/resume", h.simple("Board resumed", (*service.BoardService).Resume))
		b.POST("/reset", h.simple("Soft reset queued", (*service.BoardService).SoftReset))
		b.POST("/registers", h.simple("Register query queued", (*service.BoardService).QueryRegisters))
		b.POST("/test-signal", h.TestSignal)

		channels := b.Group("/channels")
		{
			channels.POST("/defaults", h.simple("Default channel settings queued", (*service.BoardService).DefaultChannelSettings))
			channels.PUT("/:channel", h.SetChannel)
			channels.POST("/:channel/on", h.ChannelPower(true))
			channels.POST("/:channel/off", h.ChannelPower(false))
		}

		imp := b.Group("/impedance")
		{
			imp.GET("", h.GetImpedance)
			imp.POST("/start", h.StartImpedance)
			imp.POST("/stop", h.simple("Impedance test stopped", (*service.BoardService).StopImpedance))
		}
	}
}

// Connect opens the board
// @Summary Connect the board
// @Description Open a board session. Fields left out of the body use the configured defaults.
// @Tags Board
// @Accept json
// @Produce json
// @Param request body service.ConnectRequest false "Connection overrides"
// @Success 200 {object} utils.APIResponse{data=service.BoardStatus} "Board connecting"
// @Failure 400 {object} utils.APIResponse "Invalid configuration"
// @Failure 409 {object} utils.APIResponse "Board already open"
// @Failure 502 {object} utils.APIResponse "Transport failed to open"
// @Router /board/connect [post]
func (h *BoardHandler) Connect(c *gin.Context) {
	var req service.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status, err := h.boardService.Connect(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Failed to connect board", zap.Error(err))
		utils.BoardErrorResponse(c, "Failed to connect board", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Board connecting", status)
}

// Disconnect closes the board
// @Summary Disconnect the board
// @Tags Board
// @Produce json
// @Success 200 {object} utils.APIResponse "Board disconnected"
// @Failure 409 {object} utils.APIResponse "Board not connected"
// @Router /board/disconnect [post]
func (h *BoardHandler) Disconnect(c *gin.Context) {
	if err := h.boardService.Disconnect(c.Request.Context()); err != nil {
		utils.BoardErrorResponse(c, "Failed to disconnect board", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Board disconnected", nil)
}

// GetStatus returns the board status
// @Summary Board status
// @Description Lifecycle state, flags, counters and channel settings
// @Tags Board
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.BoardStatus}
// @Router /board [get]
func (h *BoardHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Board status", h.boardService.Status())
}

// simple wraps a service call that takes no input
func (h *BoardHandler) simple(message string, fn func(*service.BoardService) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(h.boardService); err != nil {
			utils.BoardErrorResponse(c, "Board command failed", err)
			return
		}
		utils.SuccessResponse(c, http.StatusOK, message, nil)
	}
}

// ChannelPower powers a channel up or down
// @Summary Channel power
// @Tags Channels
// @Produce json
// @Param channel path int true "1-based channel"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse "Invalid channel"
// @Failure 409 {object} utils.APIResponse "Board not connected"
// @Router /board/channels/{channel}/on [post]
// @Router /board/channels/{channel}/off [post]
func (h *BoardHandler) ChannelPower(on bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		channel, ok := channelParam(c)
		if !ok {
			return
		}
		if err := h.boardService.SetChannelPower(channel, on); err != nil {
			utils.BoardErrorResponse(c, "Failed to change channel power", err)
			return
		}
		utils.SuccessResponse(c, http.StatusOK, "Channel power queued", gin.H{"channel": channel, "on": on})
	}
}

// ChannelSettingsRequest is the body of a channel settings update
type ChannelSettingsRequest struct {
	PowerDown bool   `json:"power_down"`
	Gain      int    `json:"gain" binding:"required"`
	Input     string `json:"input"`
	Bias      bool   `json:"bias"`
	SRB2      bool   `json:"srb2"`
	SRB1      bool   `json:"srb1"`
}

// SetChannel applies channel settings
// @Summary Set channel
// @Description Power, gain, input type, bias and SRB routing for one channel
// @Tags Channels
// @Accept json
// @Produce json
// @Param channel path int true "1-based channel"
// @Param request body ChannelSettingsRequest true "Channel settings"
// @Success 200 {object} utils.APIResponse{data=model.ChannelSettings}
// @Failure 400 {object} utils.APIResponse "Invalid settings"
// @Router /board/channels/{channel} [put]
func (h *BoardHandler) SetChannel(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}
	var req ChannelSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	input, err := model.ParseInputType(req.Input)
	if err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"input": err.Error()})
		return
	}

	settings := model.ChannelSettings{
		Channel:   channel,
		PowerDown: req.PowerDown,
		Gain:      req.Gain,
		Input:     input,
		Bias:      req.Bias,
		SRB2:      req.SRB2,
		SRB1:      req.SRB1,
	}
	if err := h.boardService.SetChannel(settings); err != nil {
		utils.BoardErrorResponse(c, "Failed to set channel", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Channel settings queued", settings)
}

// TestSignalRequest names an internal test signal
type TestSignalRequest struct {
	Signal string `json:"signal" binding:"required"`
}

// TestSignal routes a test signal to every channel
// @Summary Test signal
// @Tags Channels
// @Accept json
// @Produce json
// @Param request body TestSignalRequest true "ground, pulse_1x_slow, pulse_2x_slow, pulse_1x_fast, pulse_2x_fast or dc"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse "Unknown signal"
// @Router /board/test-signal [post]
func (h *BoardHandler) TestSignal(c *gin.Context) {
	var req TestSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.boardService.TestSignal(req.Signal); err != nil {
		utils.BoardErrorResponse(c, "Failed to set test signal", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Test signal queued", gin.H{"signal": req.Signal})
}

// StartImpedance starts an impedance test
// @Summary Start impedance test
// @Description Single channel ({"channel": n}) or every channel ({"continuous": true})
// @Tags Impedance
// @Accept json
// @Produce json
// @Param request body service.ImpedanceRequest true "Test mode"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse "Invalid channel"
// @Router /board/impedance/start [post]
func (h *BoardHandler) StartImpedance(c *gin.Context) {
	var req service.ImpedanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !req.Continuous && req.Channel == 0 {
		utils.ValidationErrorResponse(c, map[string]string{"channel": "required unless continuous"})
		return
	}
	if err := h.boardService.StartImpedance(req); err != nil {
		utils.BoardErrorResponse(c, "Failed to start impedance test", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Impedance test started", req)
}

// ImpedanceReading is one channel's estimate for API consumers
type ImpedanceReading struct {
	Channel   int             `json:"channel"`
	Ohms      float64         `json:"ohms"`
	KiloOhms  decimal.Decimal `json:"kilo_ohms"`
	Connected bool            `json:"connected"`
}

// ImpedanceResponse lists the last-known estimates
type ImpedanceResponse struct {
	Mode     model.ImpedanceMode `json:"mode"`
	Readings []ImpedanceReading  `json:"readings"`
}

// contactThreshold separates an attached electrode from an open lead
var contactThreshold = decimal.NewFromInt(5000) // kΩ

// NewImpedanceResponse converts raw estimates into rounded readings
func NewImpedanceResponse(mode model.ImpedanceMode, values []model.ImpedanceValue) ImpedanceResponse {
	out := ImpedanceResponse{Mode: mode, Readings: make([]ImpedanceReading, 0, len(values))}
	for _, v := range values {
		kohm := decimal.NewFromFloat(v.Ohms).Div(decimal.NewFromInt(1000)).Round(2)
		out.Readings = append(out.Readings, ImpedanceReading{
			Channel:   v.Channel,
			Ohms:      v.Ohms,
			KiloOhms:  kohm,
			Connected: kohm.LessThan(contactThreshold),
		})
	}
	return out
}

// GetImpedance returns the last-known impedances
// @Summary Impedance readings
// @Tags Impedance
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ImpedanceResponse}
// @Failure 409 {object} utils.APIResponse "Board not connected"
// @Router /board/impedance [get]
func (h *BoardHandler) GetImpedance(c *gin.Context) {
	mode, values, err := h.boardService.Impedances()
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to read impedance", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Impedance readings", NewImpedanceResponse(mode, values))
}

// ListPorts lists serial ports
// @Summary List serial ports
// @Description Serial ports on the host, OpenBCI dongles first
// @Tags Board
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.PortInfo}
// @Failure 500 {object} utils.APIResponse
// @Router /ports [get]
func (h *BoardHandler) ListPorts(c *gin.Context) {
	ports, err := h.boardService.ListPorts()
	if err != nil {
		h.logger.Error("Failed to list ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list ports", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Ports retrieved", ports)
}

func channelParam(c *gin.Context) (int, bool) {
	channel, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		utils.BoardErrorResponse(c, "Invalid channel", board.ErrInvalidChannel)
		return 0, false
	}
	return channel, true
}
