// internal/board/errors.go
package board

import (
	"errors"
	"fmt"

	"openbci-service/internal/codec"
)

var (
	// ErrNotConnected is returned when a command is written without an open connection
	ErrNotConnected = errors.New("board not connected")
	// ErrAlreadyOpen is returned by Open while a session is live
	ErrAlreadyOpen = errors.New("board already open")
	// ErrInvalidChannel is returned for channel numbers outside the board's range
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrQueueClosed is returned when enqueueing on a closed write queue
	ErrQueueClosed = errors.New("write queue closed")
	// ErrDecode marks a packet the decoder rejected
	ErrDecode = codec.ErrBadPacket
)

// TransportError wraps a failure reported by the underlying transport
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing or invalid parameter
type ConfigurationError struct {
	Parameter string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Parameter, e.Reason)
}
