// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"time"

	"openbci-service/internal/model"
)

// ErrNotOpen is returned by operations on a transport that is not open
var ErrNotOpen = errors.New("transport not open")

// Transport is a byte-oriented link to a board
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication. Read blocks until data arrives, the context ends
	// or the transport closes; a closed transport reports io.EOF. An empty
	// result with a nil error means the read timed out with nothing to report.
	Write(ctx context.Context, data []byte) error
	Drain() error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Protocol information
	GetProtocolType() model.ConnectionType
	Stats() ProtocolStats
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

func (s *ProtocolStats) recordWrite(n int, latency time.Duration) {
	s.BytesWritten += int64(n)
	s.OperationCount++
	s.LastActivity = time.Now()
	if s.AverageLatency == 0 {
		s.AverageLatency = latency
	} else {
		s.AverageLatency = (s.AverageLatency + latency) / 2
	}
}

func (s *ProtocolStats) recordRead(n int) {
	s.BytesRead += int64(n)
	s.OperationCount++
	s.LastActivity = time.Now()
}
