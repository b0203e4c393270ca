// internal/board/board.go
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"openbci-service/internal/codec"
	"openbci-service/internal/command"
	"openbci-service/internal/model"
	"openbci-service/internal/protocol"
)

// Board drives one bio-signal board: it owns the transport for the length of
// a session, waits for the ready marker, frames and decodes the stream, paces
// outbound commands and runs impedance tests.
//
// Every inbound chunk and timer continuation runs on a single event loop
// goroutine per session, so the framer and marker scanner are never touched
// concurrently. Lifecycle flags are atomic and may be read from anywhere.
type Board struct {
	opts    Options
	logger  *zap.Logger
	decoder Decoder
	events  *dispatcher

	connected *atomic.Bool
	paused    *atomic.Bool
	readable  *atomic.Bool
	reading   *atomic.Bool
	state     *atomic.String

	sampleCount *atomic.Uint64
	badPackets  *atomic.Uint64

	settingsMu sync.RWMutex
	settings   []model.ChannelSettings

	impedance *impedanceTest

	mu      sync.Mutex
	session *session
}

// session is the state of one open connection
type session struct {
	id        string
	transport protocol.Transport
	queue     *WriteQueue

	inbox chan func()
	quit  chan struct{}
	done  chan struct{}

	cancelRead     context.CancelFunc
	closeRequested *atomic.Bool
	// set by callers, consumed by the loop on the next chunk
	discardLeftover *atomic.Bool
	rearmMarker     *atomic.Bool

	// loop-owned
	framer   *Framer
	scanner  *MarkerScanner
	timers   []*time.Timer
	finished bool
}

// New creates a board. Nothing is opened until Open is called.
func New(opts Options) *Board {
	opts = opts.withDefaults()
	n := opts.BoardType.NumberOfChannels()

	b := &Board{
		opts:    opts,
		decoder: opts.Decoder,
		logger: opts.Logger.With(
			zap.String("component", "board"),
			zap.String("board_type", string(opts.BoardType)),
			zap.String("port", opts.Port),
		),
		events:      newDispatcher(),
		connected:   atomic.NewBool(false),
		paused:      atomic.NewBool(false),
		readable:    atomic.NewBool(false),
		reading:     atomic.NewBool(false),
		state:       atomic.NewString(string(model.BoardStateDisconnected)),
		sampleCount: atomic.NewUint64(0),
		badPackets:  atomic.NewUint64(0),
		settings:    model.DefaultChannelSettings(n),
		impedance:   newImpedanceTest(n, opts.SampleRate, opts.ImpedanceWindow),
	}
	return b
}

// On subscribes h to events of kind and returns a function that unsubscribes it
func (b *Board) On(kind model.EventType, h Handler) func() {
	return b.events.subscribe(kind, h)
}

// Options returns the effective options
func (b *Board) Options() Options { return b.opts }

// NumberOfChannels returns the channel count of the board variant
func (b *Board) NumberOfChannels() int { return len(b.settings) }

// State returns the current lifecycle state
func (b *Board) State() model.BoardState { return model.BoardState(b.state.Load()) }

// IsConnected reports whether the transport is open and healthy
func (b *Board) IsConnected() bool { return b.connected.Load() }

// IsStreaming reports whether the ready marker was seen and packets are being framed
func (b *Board) IsStreaming() bool { return b.reading.Load() }

// IsPaused reports whether inbound samples are being dropped
func (b *Board) IsPaused() bool { return b.paused.Load() }

// SampleCount returns the number of samples decoded since New
func (b *Board) SampleCount() uint64 { return b.sampleCount.Load() }

// BadPackets returns the number of framed packets the decoder rejected
func (b *Board) BadPackets() uint64 { return b.badPackets.Load() }

// Open starts a session. Missing configuration fails synchronously; the
// stream-stop, soft-reset and ready-marker steps then run in the background
// and streaming begins once the board reports ready.
func (b *Board) Open(ctx context.Context) error {
	if b.opts.Port == "" && !b.opts.Simulate {
		return &ConfigurationError{Parameter: "port", Reason: "a port is required unless simulating"}
	}

	b.mu.Lock()
	if b.session != nil {
		b.mu.Unlock()
		return ErrAlreadyOpen
	}

	transport, err := b.opts.Transport(b.opts, b.opts.Logger)
	if err != nil {
		b.mu.Unlock()
		return &ConfigurationError{Parameter: "transport", Reason: err.Error()}
	}

	s := b.newSession(transport)
	b.session = s
	b.impedance.clear()
	b.paused.Store(true)
	b.readable.Store(true)
	b.reading.Store(false)
	b.connected.Store(false)
	b.state.Store(string(model.BoardStateConnecting))
	b.mu.Unlock()

	go b.loop(s)

	b.logger.Info("Opening board",
		zap.String("session_id", s.id),
		zap.String("transport", string(transport.GetProtocolType())),
		zap.Bool("simulate", b.opts.Simulate),
	)

	if err := transport.Open(ctx); err != nil {
		terr := &TransportError{Op: "open", Err: err}
		b.logger.Error("Failed to open transport", zap.Error(err))
		b.do(s, func() {
			b.events.emit(Event{Kind: model.EventError, Err: terr})
			b.teardown(s, false)
		})
		return terr
	}

	b.do(s, func() { b.onOpen(s) })
	return nil
}

// Close ends the session. While streaming a stream stop is sent first and
// given CloseGrace to reach the board. Queued commands are abandoned.
func (b *Board) Close(ctx context.Context) error {
	s := b.current()
	if s == nil {
		return ErrNotConnected
	}

	if s.closeRequested.CompareAndSwap(false, true) {
		b.state.Store(string(model.BoardStateClosing))
		b.logger.Info("Closing board", zap.String("session_id", s.id))

		if b.reading.Load() && b.connected.Load() {
			if err := s.queue.Enqueue(command.Single(command.StreamStop)); err == nil {
				grace := time.NewTimer(b.opts.CloseGrace)
				select {
				case <-grace.C:
				case <-s.done:
					grace.Stop()
				case <-ctx.Done():
					grace.Stop()
				}
			}
		}

		b.post(s, func() { b.teardown(s, true) })
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops delivering samples. The write queue is not affected.
func (b *Board) Pause() error {
	if !b.connected.Load() {
		return ErrNotConnected
	}
	b.paused.Store(true)
	return nil
}

// Resume delivers samples again. Any partial packet buffered before the
// pause is discarded, so at most one packet is lost at the boundary.
func (b *Board) Resume() error {
	s := b.current()
	if s == nil || !b.connected.Load() {
		return ErrNotConnected
	}
	s.discardLeftover.Store(true)
	b.paused.Store(false)
	return nil
}

// Write queues raw command bytes
func (b *Board) Write(cmd []byte) error {
	s := b.current()
	if s == nil || !b.connected.Load() {
		return ErrNotConnected
	}
	if b.opts.Verbose {
		b.logger.Debug("Queueing command", zap.ByteString("command", cmd))
	}
	return s.queue.Enqueue(cmd)
}

// StreamStart asks the board to start streaming
func (b *Board) StreamStart() error {
	return b.Write(command.Single(command.StreamStart))
}

// StreamStop asks the board to stop streaming
func (b *Board) StreamStop() error {
	return b.Write(command.Single(command.StreamStop))
}

// SoftReset resets the board and waits for the ready marker again; streaming
// restarts once the marker arrives
func (b *Board) SoftReset() error {
	return b.awaitReply(command.SoftReset)
}

// QueryRegisters asks the board for its register dump. The text arrives as
// info events and streaming resumes after the trailing marker.
func (b *Board) QueryRegisters() error {
	return b.awaitReply(command.QueryRegisters)
}

// awaitReply sends a command whose reply is text terminated by the ready
// marker, switching the session back to marker scanning
func (b *Board) awaitReply(cmd byte) error {
	s := b.current()
	if s == nil || !b.connected.Load() {
		return ErrNotConnected
	}
	if b.reading.Load() {
		if err := s.queue.Enqueue(command.Single(command.StreamStop)); err != nil {
			return err
		}
	}
	b.reading.Store(false)
	b.paused.Store(true)
	s.rearmMarker.Store(true)
	b.state.Store(string(model.BoardStateAwaitingReadyMarker))
	return s.queue.Enqueue(command.Single(cmd))
}

// DefaultChannelSettings restores every channel to its power-on settings
func (b *Board) DefaultChannelSettings() error {
	if err := b.Write(command.Single(command.DefaultSettings)); err != nil {
		return err
	}
	b.settingsMu.Lock()
	b.settings = model.DefaultChannelSettings(len(b.settings))
	b.settingsMu.Unlock()
	return nil
}

// ChannelOn powers up a 1-based channel
func (b *Board) ChannelOn(channel int) error {
	return b.setChannelPower(channel, false)
}

// ChannelOff powers down a 1-based channel
func (b *Board) ChannelOff(channel int) error {
	return b.setChannelPower(channel, true)
}

func (b *Board) setChannelPower(channel int, down bool) error {
	if err := b.checkChannel(channel); err != nil {
		return err
	}
	build := command.ChannelOn
	if down {
		build = command.ChannelOff
	}
	cmd, err := build(channel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChannel, err)
	}
	if err := b.Write(cmd); err != nil {
		return err
	}

	b.settingsMu.Lock()
	b.settings[channel-1].PowerDown = down
	b.settingsMu.Unlock()
	return nil
}

// ChannelSet applies settings to settings.Channel
func (b *Board) ChannelSet(settings model.ChannelSettings) error {
	if err := b.checkChannel(settings.Channel); err != nil {
		return err
	}
	cmd, err := command.ChannelSet(settings)
	if err != nil {
		return &ConfigurationError{Parameter: "channel_settings", Reason: err.Error()}
	}
	if err := b.Write(cmd); err != nil {
		return err
	}

	b.settingsMu.Lock()
	b.settings[settings.Channel-1] = settings
	b.settingsMu.Unlock()
	return nil
}

// ChannelSettings returns a copy of the channel settings
func (b *Board) ChannelSettings() []model.ChannelSettings {
	b.settingsMu.RLock()
	defer b.settingsMu.RUnlock()
	return append([]model.ChannelSettings(nil), b.settings...)
}

// TestSignal routes an internal test signal to every channel
func (b *Board) TestSignal(name string) error {
	cmd, ok := command.TestSignals[name]
	if !ok {
		return &ConfigurationError{Parameter: "test_signal", Reason: fmt.Sprintf("unknown signal %q", name)}
	}
	return b.Write(command.Single(cmd))
}

func (b *Board) checkChannel(channel int) error {
	if channel < 1 || channel > b.NumberOfChannels() {
		return fmt.Errorf("%w: %d (board has %d)", ErrInvalidChannel, channel, b.NumberOfChannels())
	}
	return nil
}

// SessionID returns the ID of the open session, or "" when closed
func (b *Board) SessionID() string {
	if s := b.current(); s != nil {
		return s.id
	}
	return ""
}

// Stats is a snapshot of the board's counters and flags
type Stats struct {
	SessionID       string                 `json:"session_id,omitempty"`
	State           model.BoardState       `json:"state"`
	Connected       bool                   `json:"connected"`
	Paused          bool                   `json:"paused"`
	Readable        bool                   `json:"readable"`
	Reading         bool                   `json:"reading"`
	SampleCount     uint64                 `json:"sample_count"`
	BadPackets      uint64                 `json:"bad_packets"`
	PendingCommands int                    `json:"pending_commands"`
	ImpedanceMode   model.ImpedanceMode    `json:"impedance_mode"`
	Transport       protocol.ProtocolStats `json:"transport"`
}

// Stats returns a snapshot of the board state
func (b *Board) Stats() Stats {
	mode, _ := b.impedance.active()
	st := Stats{
		State:         b.State(),
		Connected:     b.connected.Load(),
		Paused:        b.paused.Load(),
		Readable:      b.readable.Load(),
		Reading:       b.reading.Load(),
		SampleCount:   b.sampleCount.Load(),
		BadPackets:    b.badPackets.Load(),
		ImpedanceMode: mode,
	}
	if s := b.current(); s != nil {
		st.SessionID = s.id
		st.PendingCommands = s.queue.Pending()
		st.Transport = s.transport.Stats()
	}
	return st
}

func (b *Board) current() *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

func (b *Board) newSession(transport protocol.Transport) *session {
	s := &session{
		id:              uuid.NewString(),
		transport:       transport,
		inbox:           make(chan func()),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		closeRequested:  atomic.NewBool(false),
		discardLeftover: atomic.NewBool(false),
		rearmMarker:     atomic.NewBool(false),
		framer:          NewFramer(codec.PacketSize, codec.StartByte, codec.StopByte),
		scanner:         NewMarkerScanner([]byte(b.opts.ReadyMarker)),
		cancelRead:      func() {},
	}
	s.queue = NewWriteQueue(transport, b.opts.WriteDelay, func(cmd []byte, err error) {
		b.post(s, func() {
			b.events.emit(Event{Kind: model.EventError, Err: &TransportError{Op: "write", Err: err}})
		})
	}, b.logger)
	return s
}

// loop runs closures for one session until it is torn down
func (b *Board) loop(s *session) {
	defer close(s.done)
	for {
		select {
		case fn := <-s.inbox:
			fn()
			if s.finished {
				return
			}
		case <-s.quit:
			return
		}
	}
}

// post hands fn to the session loop. It reports false once the session is gone.
func (b *Board) post(s *session, fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.quit:
		return false
	}
}

// do posts fn and waits for it to run
func (b *Board) do(s *session, fn func()) bool {
	ran := make(chan struct{})
	if !b.post(s, func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-s.done:
		return false
	}
}

// after schedules fn on the loop. Must be called from the loop.
func (b *Board) after(s *session, d time.Duration, fn func()) {
	t := time.AfterFunc(d, func() { b.post(s, fn) })
	s.timers = append(s.timers, t)
}

func (b *Board) onOpen(s *session) {
	b.connected.Store(true)
	b.logger.Info("Board transport open", zap.String("session_id", s.id))
	b.events.emit(Event{Kind: model.EventOpen})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelRead = cancel
	go b.readLoop(ctx, s)

	b.after(s, b.opts.settleDelay(), func() {
		if !b.connected.Load() || s.closeRequested.Load() {
			return
		}
		s.queue.Enqueue(command.Single(command.StreamStop))

		b.after(s, b.opts.ResetDelay, func() {
			if !b.connected.Load() || s.closeRequested.Load() {
				return
			}
			s.scanner.Reset()
			b.state.Store(string(model.BoardStateAwaitingReadyMarker))
			s.queue.Enqueue(command.Single(command.SoftReset))
		})
	})
}

// readLoop forwards transport reads to the session loop. It stops after the
// first read error.
func (b *Board) readLoop(ctx context.Context, s *session) {
	for {
		data, err := s.transport.Read(ctx, b.opts.ReadBufferSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.post(s, func() { b.onReadError(s, err) })
			return
		}
		if len(data) == 0 {
			continue
		}
		if !b.post(s, func() { b.onChunk(s, data) }) {
			return
		}
	}
}

func (b *Board) onReadError(s *session, err error) {
	if errors.Is(err, io.EOF) || s.closeRequested.Load() {
		b.logger.Info("Transport closed", zap.String("session_id", s.id))
		b.teardown(s, true)
		return
	}

	b.logger.Error("Transport read failed", zap.String("session_id", s.id), zap.Error(err))
	b.reading.Store(false)
	b.connected.Store(false)
	b.events.emit(Event{Kind: model.EventError, Err: &TransportError{Op: "read", Err: err}})
}

// onChunk routes inbound bytes to the marker scan or to the framer
func (b *Board) onChunk(s *session, data []byte) {
	if b.opts.Verbose {
		b.logger.Debug("Chunk received", zap.Int("bytes", len(data)), zap.Bool("reading", b.reading.Load()))
	}

	if !b.reading.Load() {
		b.events.emit(Event{Kind: model.EventInfo, Info: data})

		if s.rearmMarker.Swap(false) {
			s.scanner.Reset()
		}
		if b.State() != model.BoardStateAwaitingReadyMarker {
			return
		}
		// bytes after the marker in the same chunk precede the stream start
		// command and are not framed
		if _, found := s.scanner.Scan(data); found {
			b.onReady(s)
		}
		return
	}

	if b.paused.Load() {
		return
	}
	if s.discardLeftover.Swap(false) {
		s.framer.Reset()
	}

	for _, packet := range s.framer.Feed(data) {
		b.onPacket(packet)
	}
}

func (b *Board) onReady(s *session) {
	b.logger.Info("Ready marker received, starting stream", zap.String("session_id", s.id))
	s.framer.Reset()
	s.discardLeftover.Store(false)
	if err := s.queue.Enqueue(command.Single(command.StreamStart)); err != nil {
		b.events.emit(Event{Kind: model.EventError, Err: err})
		return
	}
	b.reading.Store(true)
	b.paused.Store(false)
	b.state.Store(string(model.BoardStateStreaming))
}

func (b *Board) onPacket(packet []byte) {
	daisy := b.opts.BoardType == model.BoardTypeDaisy && packet[1]%2 == 1

	b.settingsMu.RLock()
	settings := b.settings
	if b.opts.BoardType == model.BoardTypeDaisy {
		if daisy {
			settings = settings[codec.ChannelSlots:]
		} else {
			settings = settings[:codec.ChannelSlots]
		}
	}
	sample, err := b.decoder.Decode(packet, settings)
	b.settingsMu.RUnlock()

	if err != nil {
		n := b.badPackets.Inc()
		b.logger.Debug("Dropping packet", zap.Uint64("bad_packets", n), zap.Error(err))
		return
	}

	sample.Sequence = b.sampleCount.Inc() - 1
	sample.Daisy = daisy
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	taken, results := b.impedance.consume(sample)
	if taken {
		if results != nil {
			b.events.emit(Event{Kind: model.EventImpedanceArray, Impedance: results})
		}
		return
	}
	b.events.emit(Event{Kind: model.EventData, Sample: sample})
}

// teardown releases the session. It runs on the loop and is idempotent.
func (b *Board) teardown(s *session, notify bool) {
	if s.finished {
		return
	}
	s.finished = true

	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.queue.Close()
	s.cancelRead()
	if err := s.transport.Close(); err != nil {
		b.logger.Warn("Failed to close transport", zap.String("session_id", s.id), zap.Error(err))
	}

	b.impedance.stop()
	b.connected.Store(false)
	b.paused.Store(false)
	b.readable.Store(false)
	b.reading.Store(false)
	b.state.Store(string(model.BoardStateDisconnected))

	b.mu.Lock()
	if b.session == s {
		b.session = nil
	}
	b.mu.Unlock()

	b.logger.Info("Board closed", zap.String("session_id", s.id))
	if notify {
		b.events.emit(Event{Kind: model.EventClose})
	}
	close(s.quit)
}
