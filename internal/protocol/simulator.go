// internal/protocol/simulator.go
package protocol

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"openbci-service/internal/codec"
	"openbci-service/internal/command"
	"openbci-service/internal/dsp"
	"openbci-service/internal/model"
)

const (
	simulatorTick       = 10 * time.Millisecond
	simulatorQueueSize  = 256
	lineNoiseAmplitude  = 10e-6
	testSignalAmplitude = 1.875e-3
)

const simulatorBanner = "OpenBCI V3 Simulator\n" +
	"On Board ADS1299 Device ID: 0x3E\n" +
	"LIS3DH Device ID: 0x33\n" +
	"Firmware: v2.0.0\n"

// Simulator implements Transport with a synthetic board. It follows the
// firmware's command set closely enough to drive a full session: soft reset
// answers with the ready marker, 'b' and 's' start and stop streaming, and
// lead-off frames inject the drive tone on the selected channels. Text
// replies are suppressed while streaming.
type Simulator struct {
	config *SimulatorConfig
	logger *zap.Logger
	codec  codec.Cyton

	mutex     sync.Mutex
	isOpen    bool
	streaming bool
	settings  []model.ChannelSettings
	leadOff   []bool
	testSig   byte
	frame     []byte
	rng       *rand.Rand

	packetNumber byte
	produced     int64
	streamStart  time.Time
	stopStream   chan struct{}
	streamDone   chan struct{}

	out     chan []byte
	closed  chan struct{}
	pending []byte

	statsMu sync.Mutex
	stats   ProtocolStats
}

// NewSimulator creates a simulated board
func NewSimulator(config *SimulatorConfig, logger *zap.Logger) *Simulator {
	if config.SampleRate <= 0 {
		config.SampleRate = model.SampleRateDefault
	}
	if config.Channels <= 0 || config.Channels > codec.ChannelSlots {
		config.Channels = codec.ChannelSlots
	}
	if config.Speed <= 0 {
		config.Speed = 1
	}
	if config.LeadOffImpedance <= 0 {
		config.LeadOffImpedance = DefaultLeadOffImpedance
	}

	return &Simulator{
		config: config,
		logger: logger.With(zap.String("protocol", "simulator")),
	}
}

// Open starts the simulated board
func (s *Simulator) Open(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isOpen {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.settings = model.DefaultChannelSettings(model.ChannelsDaisy)
	s.leadOff = make([]bool, model.ChannelsDaisy)
	s.testSig = 0
	s.frame = nil
	s.rng = rand.New(rand.NewSource(s.config.Seed))
	s.packetNumber = 0
	s.out = make(chan []byte, simulatorQueueSize)
	s.closed = make(chan struct{})
	s.pending = nil
	s.isOpen = true

	s.statsMu.Lock()
	s.stats.IsConnected = true
	s.stats.LastActivity = time.Now()
	s.statsMu.Unlock()

	s.logger.Info("Simulator started",
		zap.Float64("sample_rate", s.config.SampleRate),
		zap.Bool("daisy", s.config.Daisy),
	)
	return nil
}

// Close stops the simulated board. Pending reads return io.EOF.
func (s *Simulator) Close() error {
	s.mutex.Lock()
	if !s.isOpen {
		s.mutex.Unlock()
		return nil
	}
	done := s.stopStreamingLocked()
	s.isOpen = false
	close(s.closed)
	s.mutex.Unlock()

	if done != nil {
		<-done
	}

	s.statsMu.Lock()
	s.stats.IsConnected = false
	s.statsMu.Unlock()

	s.logger.Info("Simulator stopped")
	return nil
}

// IsOpen returns whether the simulator is open
func (s *Simulator) IsOpen() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.isOpen
}

// Streaming reports whether the simulator is emitting packets
func (s *Simulator) Streaming() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.streaming
}

// LeadOff reports whether the lead-off current is enabled on a 1-based channel
func (s *Simulator) LeadOff(channel int) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if channel < 1 || channel > len(s.leadOff) {
		return false
	}
	return s.leadOff[channel-1]
}

// Write feeds command bytes to the simulated firmware
func (s *Simulator) Write(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrNotOpen
	}

	for _, b := range data {
		s.handleByte(b)
	}

	s.statsMu.Lock()
	s.stats.recordWrite(len(data), 0)
	s.statsMu.Unlock()
	return nil
}

// Drain is a no-op for the simulator
func (s *Simulator) Drain() error {
	if !s.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// Read returns the next chunk emitted by the simulated board
func (s *Simulator) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	s.mutex.Lock()
	out, closed := s.out, s.closed
	if len(s.pending) > 0 {
		chunk := s.takePendingLocked(maxBytes)
		s.mutex.Unlock()
		s.recordRead(len(chunk))
		return chunk, nil
	}
	s.mutex.Unlock()

	if out == nil {
		return nil, io.EOF
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-closed:
		return nil, io.EOF
	case data := <-out:
		s.mutex.Lock()
		s.pending = append(s.pending, data...)
		chunk := s.takePendingLocked(maxBytes)
		s.mutex.Unlock()
		s.recordRead(len(chunk))
		return chunk, nil
	}
}

// GetProtocolType returns the protocol type
func (s *Simulator) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSimulator
}

// Stats returns a snapshot of the simulator statistics
func (s *Simulator) Stats() ProtocolStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Simulator) recordRead(n int) {
	s.statsMu.Lock()
	s.stats.recordRead(n)
	s.statsMu.Unlock()
}

// takePendingLocked cuts the next read from the pending bytes, fragmenting
// when MaxChunkSize is set
func (s *Simulator) takePendingLocked(maxBytes int) []byte {
	n := len(s.pending)
	if maxBytes > 0 && n > maxBytes {
		n = maxBytes
	}
	if s.config.MaxChunkSize > 0 && n > 1 {
		limit := s.config.MaxChunkSize
		if limit > n {
			limit = n
		}
		n = 1 + s.rng.Intn(limit)
	}
	chunk := make([]byte, n)
	copy(chunk, s.pending[:n])
	s.pending = s.pending[n:]
	return chunk
}

func (s *Simulator) emitLocked(data []byte) {
	select {
	case s.out <- data:
	default:
		s.logger.Warn("Simulator output overflow, dropping chunk", zap.Int("bytes", len(data)))
	}
}

func (s *Simulator) replyLocked(text string) {
	if s.streaming {
		return
	}
	s.emitLocked([]byte(text))
}

func (s *Simulator) handleByte(b byte) {
	// Multi-byte frames
	if len(s.frame) > 0 {
		s.frame = append(s.frame, b)
		switch {
		case s.frame[0] == command.ChannelSetStart && len(s.frame) == 9:
			s.applyChannelSet(s.frame)
			s.frame = nil
		case s.frame[0] == command.LeadOffStart && len(s.frame) == 5:
			s.applyLeadOff(s.frame)
			s.frame = nil
		}
		return
	}

	switch b {
	case command.ChannelSetStart, command.LeadOffStart:
		s.frame = []byte{b}
	case command.StreamStart:
		s.startStreamingLocked()
	case command.StreamStop:
		s.stopStreamingLocked()
	case command.SoftReset:
		s.stopStreamingLocked()
		s.settings = model.DefaultChannelSettings(model.ChannelsDaisy)
		s.leadOff = make([]bool, model.ChannelsDaisy)
		s.testSig = 0
		s.replyLocked(simulatorBanner + "$$$")
	case command.QueryRegisters:
		s.replyLocked(s.registerDump() + "$$$")
	case command.DefaultSettings:
		s.settings = model.DefaultChannelSettings(model.ChannelsDaisy)
		s.replyLocked("updating channel settings to default$$$")
	case command.DaisyAdd:
		s.config.Daisy = true
		s.replyLocked("daisy attached16$$$")
	case command.DaisyRemove:
		s.config.Daisy = false
		s.replyLocked("daisy removed$$$")
	case command.TestGround, command.TestPulse1xSlow, command.TestPulse2xSlow,
		command.TestPulse1xFast, command.TestPulse2xFast, command.TestDC:
		s.testSig = b
		s.replyLocked("Success: Configured internal test signal.$$$")
	default:
		for ch := 1; ch <= model.ChannelsDaisy; ch++ {
			if off, _ := command.ChannelOff(ch); off[0] == b {
				s.settings[ch-1].PowerDown = true
				return
			}
			if on, _ := command.ChannelOn(ch); on[0] == b {
				s.settings[ch-1].PowerDown = false
				return
			}
		}
	}
}

func (s *Simulator) applyChannelSet(frame []byte) {
	// Reuse the lead-off parser for the channel code
	ch, _, _, err := command.ParseLeadOff([]byte{command.LeadOffStart, frame[1], '0', '0', command.LeadOffEnd})
	if err != nil || frame[8] != command.ChannelSetEnd {
		s.replyLocked("Failure: too few chars$$$")
		return
	}
	gainCode := int(frame[3] - '0')
	if gainCode < 0 || gainCode >= len(model.Gains) {
		s.replyLocked("Failure: invalid gain$$$")
		return
	}
	s.settings[ch-1] = model.ChannelSettings{
		Channel:   ch,
		PowerDown: frame[2] == '1',
		Gain:      model.Gains[gainCode],
		Input:     model.InputType(frame[4] - '0'),
		Bias:      frame[5] == '1',
		SRB2:      frame[6] == '1',
		SRB1:      frame[7] == '1',
	}
	s.replyLocked(fmt.Sprintf("Success: Channel set for %d$$$", ch))
}

func (s *Simulator) applyLeadOff(frame []byte) {
	ch, p, n, err := command.ParseLeadOff(frame)
	if err != nil {
		s.replyLocked("Failure: too few chars$$$")
		return
	}
	s.leadOff[ch-1] = p || n
	s.replyLocked(fmt.Sprintf("Success: Lead off set for %d$$$", ch))
}

func (s *Simulator) registerDump() string {
	var sb strings.Builder
	sb.WriteString("\nBoard ADS Registers\n")
	sb.WriteString("ADS_ID, 00, 3E, 0, 0, 1, 1, 1, 1, 1, 0\n")
	for i, cs := range s.settings[:codec.ChannelSlots] {
		gain, _ := model.GainCode(cs.Gain)
		reg := gain<<4 | byte(cs.Input)
		if cs.PowerDown {
			reg |= 0x80
		}
		if cs.SRB2 {
			reg |= 0x08
		}
		fmt.Fprintf(&sb, "CH%dSET, %02X, %02X\n", i+1, 5+i, reg)
	}
	return sb.String()
}

func (s *Simulator) startStreamingLocked() {
	if s.streaming {
		return
	}
	s.streaming = true
	s.streamStart = time.Now()
	s.produced = 0
	s.stopStream = make(chan struct{})
	s.streamDone = make(chan struct{})
	go s.streamLoop(s.stopStream, s.streamDone)
}

// stopStreamingLocked signals the stream loop and returns a channel that
// closes once it exits, or nil if it was not running
func (s *Simulator) stopStreamingLocked() chan struct{} {
	if !s.streaming {
		return nil
	}
	s.streaming = false
	close(s.stopStream)
	return s.streamDone
}

func (s *Simulator) streamLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(simulatorTick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.mutex.Lock()
			select {
			case <-stop:
				s.mutex.Unlock()
				return
			default:
			}
			elapsed := now.Sub(s.streamStart).Seconds() * s.config.Speed
			due := int64(elapsed*s.packetRate()) - s.produced
			if due > 0 {
				chunk := make([]byte, 0, int(due)*codec.PacketSize)
				for i := int64(0); i < due; i++ {
					chunk = append(chunk, s.nextPacketLocked()...)
					s.produced++
				}
				s.emitLocked(chunk)
			}
			s.mutex.Unlock()
		}
	}
}

// packetRate is the packet rate in simulated time. A daisy board interleaves
// two packets per sample period.
func (s *Simulator) packetRate() float64 {
	if s.config.Daisy {
		return s.config.SampleRate * 2
	}
	return s.config.SampleRate
}

func (s *Simulator) nextPacketLocked() []byte {
	number := s.packetNumber
	s.packetNumber++

	daisy := s.config.Daisy && number%2 == 1
	sampleIndex := float64(s.produced)
	bank := s.settings[:codec.ChannelSlots]
	if s.config.Daisy {
		sampleIndex = float64(s.produced / 2)
		if daisy {
			bank = s.settings[codec.ChannelSlots:]
		}
	}
	t := sampleIndex / s.config.SampleRate

	volts := make([]float64, codec.ChannelSlots)
	for i := 0; i < s.config.Channels; i++ {
		cs := bank[i]
		if cs.PowerDown {
			continue
		}
		v := s.config.NoiseAmplitude * s.rng.NormFloat64()
		if s.config.LineNoise {
			v += lineNoiseAmplitude * math.Sin(2*math.Pi*60*t)
		}
		if s.leadOff[cs.Channel-1] {
			peak := s.config.LeadOffImpedance * dsp.DriveCurrent
			v += peak * math.Sin(2*math.Pi*dsp.LeadOffFrequency*t)
		}
		v += s.testSignal(t)
		volts[i] = v
	}

	packet := s.codec.EncodeVolts(number, volts, bank)
	// Gravity on Z
	codec.PutAccel(packet, 2, codec.AccelCounts(1.0))
	return packet
}

func (s *Simulator) testSignal(t float64) float64 {
	square := func(freq float64) float64 {
		if math.Mod(t*freq, 1) < 0.5 {
			return testSignalAmplitude
		}
		return -testSignalAmplitude
	}
	switch s.testSig {
	case command.TestPulse1xSlow:
		return square(1)
	case command.TestPulse2xSlow:
		return 2 * square(1)
	case command.TestPulse1xFast:
		return square(2)
	case command.TestPulse2xFast:
		return 2 * square(2)
	case command.TestDC:
		return testSignalAmplitude
	default:
		return 0
	}
}
