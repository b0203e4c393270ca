// internal/handler/websocket_handler.go
package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"openbci-service/internal/config"
	"openbci-service/internal/model"
	"openbci-service/internal/service"
	"openbci-service/internal/utils"
)

// WebSocketHandler streams board events to WebSocket clients
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	connections  *ConnectionManager
	boardService *service.BoardService
	config       config.StreamConfig
	logger       *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(boardService *service.BoardService, cfg *config.Config, logger *zap.Logger) *WebSocketHandler {
	allowed := cfg.Security.AllowedOrigins
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range allowed {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
		connections:  NewConnectionManager(),
		boardService: boardService,
		config:       cfg.Stream,
		logger:       utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/stream", h.HandleStream)
}

// Connections returns the connection manager
func (h *WebSocketHandler) Connections() *ConnectionManager { return h.connections }

// HandleStream upgrades the request and streams board events
// @Summary Live board events
// @Description WebSocket stream of data, impedanceArray, info, open, close and error events. format=msgpack switches to binary frames.
// @Tags Stream
// @Param format query string false "json or msgpack" Enums(json, msgpack) default(json)
// @Param types query string false "Comma separated event types, all when empty"
// @Success 101 "Switching protocols"
// @Failure 400 {object} utils.APIResponse "Invalid query"
// @Router /ws/stream [get]
func (h *WebSocketHandler) HandleStream(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", FormatJSON))
	if format != FormatJSON && format != FormatMsgpack {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid format", fmt.Errorf("unknown format %q", format))
		return
	}
	types, err := parseEventTypes(c.Query("types"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid event types", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan interface{}, 16),
		Format:      format,
		Types:       types,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}

	events, unsubscribe := h.boardService.Events().Subscribe(h.config.ClientBuffer, types...)
	h.connections.Register(client)
	h.logger.Info("Stream client connected",
		zap.String("client_id", client.ID),
		zap.String("format", format),
		zap.String("remote_addr", client.RemoteAddr),
	)

	client.enqueue(&WebSocketMessage{
		Type:      "welcome",
		Data:      map[string]interface{}{"client_id": client.ID, "status": h.boardService.Status()},
		Timestamp: time.Now(),
		RequestID: c.GetString("request_id"),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client, events, unsubscribe)
}

func parseEventTypes(raw string) ([]model.EventType, error) {
	if raw == "" {
		return nil, nil
	}
	var out []model.EventType
	for _, part := range strings.Split(raw, ",") {
		t := model.EventType(strings.TrimSpace(part))
		known := false
		for _, k := range model.EventTypes {
			if k == t {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown event type %q", t)
		}
		out = append(out, t)
	}
	return out, nil
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer client.close()

	timeout := 2 * h.config.PingInterval
	client.Connection.SetReadDeadline(time.Now().Add(timeout))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(timeout))
		return nil
	})

	for {
		messageType, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error", zap.Error(err), zap.String("client_id", client.ID))
			}
			return
		}

		var message WebSocketMessage
		if err := client.decode(messageType, messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}
		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite forwards bus events and control replies to the client
func (h *WebSocketHandler) handleClientWrite(client *Client, events <-chan service.StreamEvent, unsubscribe func()) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		unsubscribe()
		h.connections.Unregister(client)
		client.close()
		client.Connection.Close()
		h.logger.Info("Stream client disconnected", zap.String("client_id", client.ID))
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.writeClose(client)
				return
			}
			if !h.write(client, ev) {
				return
			}

		case msg := <-client.Send:
			if !h.write(client, msg) {
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			h.writeClose(client)
			return
		}
	}
}

func (h *WebSocketHandler) write(client *Client, v interface{}) bool {
	messageType, data, err := client.encode(v)
	if err != nil {
		h.logger.Error("Failed to encode stream message", zap.Error(err), zap.String("client_id", client.ID))
		return true
	}
	client.Connection.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	if err := client.Connection.WriteMessage(messageType, data); err != nil {
		h.logger.Warn("WebSocket write error", zap.Error(err), zap.String("client_id", client.ID))
		return false
	}
	return true
}

func (h *WebSocketHandler) writeClose(client *Client) {
	client.Connection.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	client.Connection.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "ping":
		client.enqueue(&WebSocketMessage{Type: "pong", Timestamp: time.Now(), RequestID: message.RequestID})
	case "command":
		h.handleCommand(client, message)
	default:
		h.sendError(client, fmt.Sprintf("unknown message type: %s", message.Type))
	}
}

// handleCommand runs one of the parameterless board commands
func (h *WebSocketHandler) handleCommand(client *Client, message *WebSocketMessage) {
	name, _ := message.Data["command"].(string)
	commands := map[string]func() error{
		"stream_start":   h.boardService.StreamStart,
		"stream_stop":    h.boardService.StreamStop,
		"pause":          h.boardService.Pause,
		"resume":         h.boardService.Resume,
		"soft_reset":     h.boardService.SoftReset,
		"impedance_stop": h.boardService.StopImpedance,
		"impedance_continuous": func() error {
			return h.boardService.StartImpedance(service.ImpedanceRequest{Continuous: true})
		},
	}
	fn, ok := commands[name]
	if !ok {
		h.sendError(client, fmt.Sprintf("unknown command: %s", name))
		return
	}

	err := fn()
	data := map[string]interface{}{"command": name, "success": err == nil}
	if err != nil {
		data["error"] = err.Error()
	}
	client.enqueue(&WebSocketMessage{
		Type:      "command_response",
		Data:      data,
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

func (h *WebSocketHandler) sendError(client *Client, message string) {
	client.enqueue(&WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"message": message},
		Timestamp: time.Now(),
	})
}
