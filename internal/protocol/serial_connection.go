// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"openbci-service/internal/model"
)

// SerialConnection implements Transport for the USB dongle's serial port
type SerialConnection struct {
	config *SerialConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	statsMu sync.Mutex
	stats   ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	sc.logger.Info("Opening serial port",
		zap.String("port", sc.config.Port),
		zap.Int("baud_rate", sc.config.BaudRate),
	)

	// Configure serial port mode
	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		StopBits: serial.OneStopBit,
	}
	if sc.config.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	// Set parity
	switch sc.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(sc.config.Port, mode)
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	// A bounded read timeout lets the reader notice cancellation
	if err := port.SetReadTimeout(sc.config.Timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.isOpen = true

	sc.statsMu.Lock()
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()
	sc.statsMu.Unlock()

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false

	sc.statsMu.Lock()
	sc.stats.IsConnected = false
	sc.statsMu.Unlock()

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	startTime := time.Now()
	n, err := sc.port.Write(data)
	if err != nil {
		sc.recordError()
		sc.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}

	if n != len(data) {
		sc.recordError()
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	sc.statsMu.Lock()
	sc.stats.recordWrite(n, time.Since(startTime))
	sc.statsMu.Unlock()

	sc.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

// Drain waits until every written byte has been transmitted
func (sc *SerialConnection) Drain() error {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}
	if err := sc.port.Drain(); err != nil {
		sc.recordError()
		return fmt.Errorf("failed to drain serial port: %w", err)
	}
	return nil
}

// Read reads whatever is available on the serial port
func (sc *SerialConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.RLock()
	port := sc.port
	open := sc.isOpen
	sc.mutex.RUnlock()

	if !open || port == nil {
		return nil, io.EOF
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	buffer := make([]byte, maxBytes)
	n, err := port.Read(buffer)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
			return nil, io.EOF
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		sc.recordError()
		return nil, fmt.Errorf("failed to read from serial port: %w", err)
	}

	sc.statsMu.Lock()
	sc.stats.recordRead(n)
	sc.statsMu.Unlock()

	return buffer[:n], nil
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Stats returns a snapshot of the connection statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	return sc.stats
}

func (sc *SerialConnection) recordError() {
	sc.statsMu.Lock()
	sc.stats.ErrorCount++
	sc.statsMu.Unlock()
}
