// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"openbci-service/internal/model"
)

// TCPConnection implements Transport for a WiFi shield streaming raw packets over TCP
type TCPConnection struct {
	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	statsMu sync.Mutex
	stats   ProtocolStats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) *TCPConnection {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Open opens the TCP connection
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	tc.logger.Info("Opening TCP connection",
		zap.String("host", tc.config.Host),
		zap.Int("port", tc.config.Port),
	)

	dialer := &net.Dialer{
		Timeout:   tc.config.Timeout,
		KeepAlive: 30 * time.Second,
	}

	address := net.JoinHostPort(tc.config.Host, fmt.Sprint(tc.config.Port))
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		if tc.config.KeepAlive {
			tcpConn.SetKeepAlive(true)
			tcpConn.SetKeepAlivePeriod(30 * time.Second)
		}
	}

	tc.conn = conn
	tc.isOpen = true

	tc.statsMu.Lock()
	tc.stats.IsConnected = true
	tc.stats.LastActivity = time.Now()
	tc.statsMu.Unlock()

	tc.logger.Info("TCP connection opened successfully")
	return nil
}

// Close closes the TCP connection
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false

	tc.statsMu.Lock()
	tc.stats.IsConnected = false
	tc.statsMu.Unlock()

	if err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tc.logger.Info("TCP connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

// Write writes data to the TCP connection
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	if !tc.isOpen || tc.conn == nil {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if tc.config.WriteTimeout > 0 {
		tc.conn.SetWriteDeadline(time.Now().Add(tc.config.WriteTimeout))
	}

	startTime := time.Now()
	n, err := tc.conn.Write(data)
	if err != nil {
		tc.recordError()
		tc.logger.Error("TCP write failed", zap.Error(err))
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}

	tc.statsMu.Lock()
	tc.stats.recordWrite(n, time.Since(startTime))
	tc.statsMu.Unlock()

	tc.logger.Debug("TCP write completed", zap.Int("bytes", len(data)))
	return nil
}

// Drain is a no-op: a completed Write has been handed to the kernel
func (tc *TCPConnection) Drain() error {
	if !tc.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// Read reads from the TCP connection. A read deadline expiring is reported
// as an empty read so the caller can check for cancellation.
func (tc *TCPConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	tc.mutex.RLock()
	conn := tc.conn
	open := tc.isOpen
	tc.mutex.RUnlock()

	if !open || conn == nil {
		return nil, io.EOF
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if tc.config.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(tc.config.ReadTimeout))
	}

	buffer := make([]byte, maxBytes)
	n, err := conn.Read(buffer)
	if n > 0 {
		tc.statsMu.Lock()
		tc.stats.recordRead(n)
		tc.statsMu.Unlock()
	}
	if err != nil {
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			return buffer[:n], nil
		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			if n > 0 {
				return buffer[:n], nil
			}
			return nil, io.EOF
		}
		tc.recordError()
		return nil, fmt.Errorf("failed to read from TCP connection: %w", err)
	}

	return buffer[:n], nil
}

// GetProtocolType returns the protocol type
func (tc *TCPConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeTCP
}

// Stats returns a snapshot of the connection statistics
func (tc *TCPConnection) Stats() ProtocolStats {
	tc.statsMu.Lock()
	defer tc.statsMu.Unlock()
	return tc.stats
}

func (tc *TCPConnection) recordError() {
	tc.statsMu.Lock()
	tc.stats.ErrorCount++
	tc.statsMu.Unlock()
}
