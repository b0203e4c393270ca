// internal/model/connection.go
package model

// ConnectionType represents how the board is reached
type ConnectionType string

const (
	ConnectionTypeSerial    ConnectionType = "SERIAL"
	ConnectionTypeTCP       ConnectionType = "TCP"
	ConnectionTypeSimulator ConnectionType = "SIMULATOR"
)

// SimulatorPortName selects the simulator when given as the port
const SimulatorPortName = "OpenBCISimulator"

// PortInfo describes a serial port found on the host
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}
