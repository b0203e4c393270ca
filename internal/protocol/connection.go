// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// TCPConfig represents a WiFi shield raw TCP connection
type TCPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	KeepAlive    bool          `json:"keep_alive"`
	Timeout      time.Duration `json:"timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// SimulatorConfig configures the synthetic board. LeadOffImpedance is the
// electrode impedance in ohms shown on channels whose lead-off current is
// enabled; NoiseAmplitude is the standard deviation of the background noise
// in volts. Speed scales wall-clock emission without changing the waveform,
// and MaxChunkSize, when set, fragments output into random-length reads the
// way a USB serial dongle does.
type SimulatorConfig struct {
	SampleRate       float64 `json:"sample_rate"`
	Daisy            bool    `json:"daisy"`
	Channels         int     `json:"channels"`
	LeadOffImpedance float64 `json:"lead_off_impedance"`
	NoiseAmplitude   float64 `json:"noise_amplitude"`
	LineNoise        bool    `json:"line_noise"`
	Speed            float64 `json:"speed"`
	MaxChunkSize     int     `json:"max_chunk_size"`
	Seed             int64   `json:"seed"`
}

// Defaults
const (
	DefaultBaudRate         = 115200
	DefaultSerialTimeout    = 100 * time.Millisecond
	DefaultWiFiPort         = 3000
	DefaultTCPTimeout       = 5 * time.Second
	DefaultReadBufferSize   = 4096
	DefaultLeadOffImpedance = 5000.0
)
