// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"openbci-service/internal/model"
)

// tcpScheme prefixes WiFi shield addresses given as a port name
const tcpScheme = "tcp://"

// ResolveConnectionType infers the transport from the port name
func ResolveConnectionType(port string, simulate bool) model.ConnectionType {
	switch {
	case simulate || port == model.SimulatorPortName:
		return model.ConnectionTypeSimulator
	case strings.HasPrefix(port, tcpScheme):
		return model.ConnectionTypeTCP
	default:
		return model.ConnectionTypeSerial
	}
}

// CreateTransport creates a transport based on connection type and configuration
func CreateTransport(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	switch connectionType {
	case model.ConnectionTypeSerial:
		return createSerialTransport(config, logger)
	case model.ConnectionTypeTCP:
		return createTCPTransport(config, logger)
	case model.ConnectionTypeSimulator:
		return createSimulatorTransport(config, logger)
	default:
		return nil, fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// createSerialTransport creates a serial transport
func createSerialTransport(config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	serialConfig := &SerialConfig{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  DefaultSerialTimeout,
	}

	// Parse port
	if port, ok := config["port"].(string); ok && port != "" {
		serialConfig.Port = port
	} else {
		return nil, fmt.Errorf("serial port is required")
	}

	if v, ok := intValue(config, "baud_rate"); ok {
		serialConfig.BaudRate = v
	}
	if v, ok := intValue(config, "data_bits"); ok {
		serialConfig.DataBits = v
	}
	if v, ok := intValue(config, "stop_bits"); ok {
		serialConfig.StopBits = v
	}
	if parity, ok := config["parity"].(string); ok {
		serialConfig.Parity = parity
	}
	if v, ok := durationValue(config, "timeout"); ok {
		serialConfig.Timeout = v
	}

	logger.Info("Creating serial transport",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialConnection(serialConfig, logger), nil
}

// createTCPTransport creates a WiFi shield transport. The address is taken
// from "host"/"port" or from a "tcp://host:port" port name.
func createTCPTransport(config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	tcpConfig := &TCPConfig{
		Port:        DefaultWiFiPort,
		KeepAlive:   true,
		Timeout:     DefaultTCPTimeout,
		ReadTimeout: DefaultSerialTimeout,
	}

	if host, ok := config["host"].(string); ok && host != "" {
		tcpConfig.Host = host
		if v, ok := intValue(config, "tcp_port"); ok {
			tcpConfig.Port = v
		}
	} else if port, ok := config["port"].(string); ok && strings.HasPrefix(port, tcpScheme) {
		host, portStr, err := net.SplitHostPort(strings.TrimPrefix(port, tcpScheme))
		if err != nil {
			return nil, fmt.Errorf("invalid TCP address %q: %w", port, err)
		}
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TCP port %q: %w", portStr, err)
		}
		tcpConfig.Host = host
		tcpConfig.Port = p
	} else {
		return nil, fmt.Errorf("TCP host is required")
	}

	if tcpConfig.Port < 1 || tcpConfig.Port > 65535 {
		return nil, fmt.Errorf("invalid port number: %d", tcpConfig.Port)
	}
	if v, ok := durationValue(config, "timeout"); ok {
		tcpConfig.Timeout = v
	}
	if v, ok := durationValue(config, "read_timeout"); ok {
		tcpConfig.ReadTimeout = v
	}
	if v, ok := durationValue(config, "write_timeout"); ok {
		tcpConfig.WriteTimeout = v
	}

	logger.Info("Creating TCP transport",
		zap.String("host", tcpConfig.Host),
		zap.Int("port", tcpConfig.Port),
	)

	return NewTCPConnection(tcpConfig, logger), nil
}

// createSimulatorTransport creates a synthetic board
func createSimulatorTransport(config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	simConfig := &SimulatorConfig{
		SampleRate:       model.SampleRateDefault,
		LeadOffImpedance: DefaultLeadOffImpedance,
		NoiseAmplitude:   1e-6,
		Speed:            1,
		Seed:             time.Now().UnixNano(),
	}

	if v, ok := floatValue(config, "sample_rate"); ok {
		simConfig.SampleRate = v
	}
	if v, ok := config["daisy"].(bool); ok {
		simConfig.Daisy = v
	}
	if v, ok := intValue(config, "channels"); ok {
		simConfig.Channels = v
	}
	if v, ok := floatValue(config, "lead_off_impedance"); ok {
		simConfig.LeadOffImpedance = v
	}
	if v, ok := floatValue(config, "noise_amplitude"); ok {
		simConfig.NoiseAmplitude = v
	}
	if v, ok := config["line_noise"].(bool); ok {
		simConfig.LineNoise = v
	}
	if v, ok := floatValue(config, "speed"); ok {
		simConfig.Speed = v
	}
	if v, ok := intValue(config, "max_chunk_size"); ok {
		simConfig.MaxChunkSize = v
	}
	if v, ok := intValue(config, "seed"); ok {
		simConfig.Seed = int64(v)
	}

	logger.Info("Creating simulator transport",
		zap.Float64("sample_rate", simConfig.SampleRate),
		zap.Bool("daisy", simConfig.Daisy),
	)

	return NewSimulator(simConfig, logger), nil
}

// ValidateConfig validates configuration for a specific connection type
func ValidateConfig(connectionType model.ConnectionType, config map[string]interface{}) error {
	switch connectionType {
	case model.ConnectionTypeSerial:
		return validateSerialConfig(config)
	case model.ConnectionTypeTCP, model.ConnectionTypeSimulator:
		return nil
	default:
		return fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// validateSerialConfig validates serial configuration
func validateSerialConfig(config map[string]interface{}) error {
	if port, ok := config["port"].(string); !ok || port == "" {
		return fmt.Errorf("serial port is required")
	}

	if _, present := config["baud_rate"]; present {
		rate, ok := intValue(config, "baud_rate")
		if !ok {
			return fmt.Errorf("invalid baud_rate type")
		}

		validRates := []int{9600, 19200, 38400, 57600, 115200, 230400, 921600}
		for _, validRate := range validRates {
			if rate == validRate {
				return nil
			}
		}
		return fmt.Errorf("invalid baud rate: %d", rate)
	}

	return nil
}

func intValue(config map[string]interface{}, key string) (int, bool) {
	switch v := config[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

func floatValue(config map[string]interface{}, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func durationValue(config map[string]interface{}, key string) (time.Duration, bool) {
	switch v := config[key].(type) {
	case time.Duration:
		return v, true
	case string:
		if dur, err := time.ParseDuration(v); err == nil {
			return dur, true
		}
	}
	return 0, false
}
