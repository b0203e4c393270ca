// internal/board/options.go
package board

import (
	"time"

	"go.uber.org/zap"

	"openbci-service/internal/codec"
	"openbci-service/internal/dsp"
	"openbci-service/internal/model"
	"openbci-service/internal/protocol"
)

// Default timings
const (
	DefaultWriteDelay           = 50 * time.Millisecond
	DefaultSettleDelay          = 300 * time.Millisecond
	DefaultSimulatedSettleDelay = 50 * time.Millisecond
	DefaultResetDelay           = 300 * time.Millisecond
	DefaultCloseGrace           = 100 * time.Millisecond
	DefaultReadyMarker          = "$$$"
)

// Decoder turns one framed packet into a sample
type Decoder interface {
	Decode(packet []byte, settings []model.ChannelSettings) (*model.Sample, error)
}

// TransportFactory builds the transport for a session
type TransportFactory func(opts Options, logger *zap.Logger) (protocol.Transport, error)

// Options configures a Board. Zero values take the documented defaults.
type Options struct {
	BoardType model.BoardType
	Simulate  bool
	Port      string
	BaudRate  int

	// WriteDelay is the minimum spacing between consecutive command writes
	WriteDelay time.Duration
	// SettleDelay runs from transport open to the defensive stream stop
	SettleDelay          time.Duration
	SimulatedSettleDelay time.Duration
	// ResetDelay runs from the stream stop to the soft reset
	ResetDelay time.Duration
	// CloseGrace lets a final stream stop reach the board before the transport closes
	CloseGrace time.Duration

	ReadyMarker     string
	SampleRate      float64
	ImpedanceWindow int
	ReadBufferSize  int
	Verbose         bool

	// Simulator tunes the synthetic board when Simulate is set
	Simulator protocol.SimulatorConfig

	Logger    *zap.Logger
	Decoder   Decoder
	Transport TransportFactory
}

// DefaultOptions returns options for a simulated default board
func DefaultOptions() Options {
	return Options{
		BoardType: model.BoardTypeDefault,
		Simulate:  true,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.BoardType == "" {
		o.BoardType = model.BoardTypeDefault
	}
	if o.BaudRate <= 0 {
		o.BaudRate = protocol.DefaultBaudRate
	}
	if o.WriteDelay <= 0 {
		o.WriteDelay = DefaultWriteDelay
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.SimulatedSettleDelay <= 0 {
		o.SimulatedSettleDelay = DefaultSimulatedSettleDelay
	}
	if o.ResetDelay <= 0 {
		o.ResetDelay = DefaultResetDelay
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = DefaultCloseGrace
	}
	if o.ReadyMarker == "" {
		o.ReadyMarker = DefaultReadyMarker
	}
	if o.SampleRate <= 0 {
		o.SampleRate = o.BoardType.SampleRate()
	}
	if o.ImpedanceWindow <= 0 {
		o.ImpedanceWindow = dsp.DefaultWindow
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = protocol.DefaultReadBufferSize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Decoder == nil {
		o.Decoder = codec.Cyton{}
	}
	if o.Transport == nil {
		o.Transport = DefaultTransport
	}
	return o
}

func (o Options) settleDelay() time.Duration {
	if o.Simulate {
		return o.SimulatedSettleDelay
	}
	return o.SettleDelay
}

// DefaultTransport picks serial, TCP or the simulator from the port name and
// the simulate flag
func DefaultTransport(opts Options, logger *zap.Logger) (protocol.Transport, error) {
	connType := protocol.ResolveConnectionType(opts.Port, opts.Simulate)
	config := map[string]interface{}{
		"port":      opts.Port,
		"baud_rate": opts.BaudRate,
	}

	if connType == model.ConnectionTypeSimulator {
		sim := opts.Simulator
		config["sample_rate"] = opts.SampleRate
		config["daisy"] = opts.BoardType == model.BoardTypeDaisy
		config["channels"] = opts.BoardType.NumberOfChannels()
		if sim.SampleRate > 0 {
			config["sample_rate"] = sim.SampleRate
		}
		if sim.LeadOffImpedance > 0 {
			config["lead_off_impedance"] = sim.LeadOffImpedance
		}
		if sim.NoiseAmplitude > 0 {
			config["noise_amplitude"] = sim.NoiseAmplitude
		}
		if sim.Speed > 0 {
			config["speed"] = sim.Speed
		}
		if sim.MaxChunkSize > 0 {
			config["max_chunk_size"] = sim.MaxChunkSize
		}
		if sim.Seed != 0 {
			config["seed"] = sim.Seed
		}
		config["line_noise"] = sim.LineNoise
	}

	if err := protocol.ValidateConfig(connType, config); err != nil {
		return nil, err
	}
	return protocol.CreateTransport(connType, config, logger)
}
