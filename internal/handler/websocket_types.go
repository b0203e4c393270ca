// internal/handler/websocket_types.go
package handler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"openbci-service/internal/model"
)

// Wire formats for stream clients
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Client represents a WebSocket client
type Client struct {
	ID          string            `json:"id"`
	Connection  *websocket.Conn   `json:"-"`
	Send        chan interface{}  `json:"-"`
	Format      string            `json:"format"`
	Types       []model.EventType `json:"types"`
	UserAgent   string            `json:"user_agent"`
	RemoteAddr  string            `json:"remote_addr"`
	ConnectedAt time.Time         `json:"connected_at"`

	closeOnce sync.Once
	done      chan struct{}
}

// encode renders v as a websocket frame in the client's format
func (c *Client) encode(v interface{}) (int, []byte, error) {
	if c.Format == FormatMsgpack {
		data, err := msgpack.Marshal(v)
		return websocket.BinaryMessage, data, err
	}
	data, err := json.Marshal(v)
	return websocket.TextMessage, data, err
}

// decode parses a client message in either format
func (c *Client) decode(messageType int, data []byte, v interface{}) error {
	if messageType == websocket.BinaryMessage {
		return msgpack.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// enqueue hands v to the writer without blocking; it reports false when
// the client is gone or its buffer is full
func (c *Client) enqueue(v interface{}) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- v:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// WebSocketMessage represents a control message in either direction
type WebSocketMessage struct {
	Type      string                 `json:"type" msgpack:"type"`
	Data      map[string]interface{} `json:"data,omitempty" msgpack:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp" msgpack:"timestamp"`
	RequestID string                 `json:"request_id,omitempty" msgpack:"request_id,omitempty"`
}

// ConnectionManager tracks connected stream clients
type ConnectionManager struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{clients: make(map[string]*Client)}
}

// Register registers a new client
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.clients[client.ID] = client
}

// Unregister unregisters a client
func (cm *ConnectionManager) Unregister(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	delete(cm.clients, client.ID)
}

// Count returns the number of connected clients
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.clients)
}

// Clients returns a snapshot of the connected clients
func (cm *ConnectionManager) Clients() []*Client {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	out := make([]*Client, 0, len(cm.clients))
	for _, c := range cm.clients {
		out = append(out, c)
	}
	return out
}

// CloseAll closes every client connection
func (cm *ConnectionManager) CloseAll() {
	for _, c := range cm.Clients() {
		c.close()
	}
}
