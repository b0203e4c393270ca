// internal/service/board_service.go
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"openbci-service/internal/board"
	"openbci-service/internal/config"
	"openbci-service/internal/model"
	"openbci-service/internal/protocol"
	"openbci-service/internal/utils"
)

// ConnectRequest overrides the configured board for one session. Empty
// fields fall back to the board section of the configuration.
type ConnectRequest struct {
	Port      string `json:"port"`
	BoardType string `json:"board_type"`
	Simulate  *bool  `json:"simulate,omitempty"`
	BaudRate  int    `json:"baud_rate"`
	Verbose   *bool  `json:"verbose,omitempty"`
}

// ImpedanceRequest starts a single-channel or continuous test
type ImpedanceRequest struct {
	Channel    int  `json:"channel"`
	Continuous bool `json:"continuous"`
}

// BoardStatus is the service view of the board
type BoardStatus struct {
	Configured      bool                    `json:"configured"`
	BoardType       model.BoardType         `json:"board_type,omitempty"`
	Port            string                  `json:"port,omitempty"`
	Simulate        bool                    `json:"simulate"`
	Channels        int                     `json:"channels,omitempty"`
	SampleRate      float64                 `json:"sample_rate,omitempty"`
	Stats           board.Stats             `json:"stats"`
	ChannelSettings []model.ChannelSettings `json:"channel_settings,omitempty"`
	Subscribers     int                     `json:"subscribers"`
	DroppedEvents   uint64                  `json:"dropped_events"`
}

// BoardService owns the active board and republishes its events on the bus
type BoardService struct {
	config    *config.Config
	logger    *utils.ServiceLogger
	base      *zap.Logger
	bus       *EventBus
	transport board.TransportFactory

	mu          sync.Mutex
	board       *board.Board
	boardLogger *utils.BoardLogger
	unsubscribe []func()
}

// Option customises a BoardService
type Option func(*BoardService)

// WithTransport replaces the transport factory of every board the service opens
func WithTransport(f board.TransportFactory) Option {
	return func(bs *BoardService) { bs.transport = f }
}

// NewBoardService creates a new board service instance and starts its event bus
func NewBoardService(cfg *config.Config, logger *zap.Logger, opts ...Option) *BoardService {
	bs := &BoardService{
		config: cfg,
		logger: utils.NewServiceLogger(logger, "board-service"),
		base:   logger,
		bus:    NewEventBus(cfg.Stream.ClientBuffer*4, logger.With(zap.String("component", "event_bus"))),
	}
	for _, opt := range opts {
		opt(bs)
	}
	go bs.bus.Start()
	return bs
}

// Events returns the service event bus
func (bs *BoardService) Events() *EventBus { return bs.bus }

// Connect opens a board. Options come from the configuration overlaid with req.
func (bs *BoardService) Connect(ctx context.Context, req ConnectRequest) (*BoardStatus, error) {
	opts, err := bs.options(req)
	if err != nil {
		return nil, err
	}

	bs.mu.Lock()
	if bs.board != nil && bs.board.State() != model.BoardStateDisconnected {
		bs.mu.Unlock()
		return nil, board.ErrAlreadyOpen
	}
	bs.detachLocked()

	bl := utils.NewBoardLogger(bs.base, opts.BoardType, opts.Port, opts.Simulate)
	opts.Logger = bl.Logger
	b := board.New(opts)
	bs.board = b
	bs.boardLogger = bl
	bs.attachLocked(b)
	bs.mu.Unlock()

	start := time.Now()
	err = b.Open(ctx)
	bl.LogConnection("connect", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	status := bs.Status()
	return &status, nil
}

// Disconnect closes the active board
func (bs *BoardService) Disconnect(ctx context.Context) error {
	b, bl, err := bs.current()
	if err != nil {
		return err
	}

	start := time.Now()
	err = b.Close(ctx)
	bl.LogConnection("disconnect", time.Since(start), err)
	return err
}

// Shutdown closes the board if one is open and stops the event bus
func (bs *BoardService) Shutdown(ctx context.Context) error {
	var err error
	if b, _, cerr := bs.current(); cerr == nil && b.State() != model.BoardStateDisconnected {
		err = b.Close(ctx)
	}

	bs.mu.Lock()
	bs.detachLocked()
	bs.mu.Unlock()
	bs.bus.Stop()
	return err
}

// Status reports the board state, counters and channel settings
func (bs *BoardService) Status() BoardStatus {
	status := BoardStatus{
		Subscribers:   bs.bus.SubscriberCount(),
		DroppedEvents: bs.bus.Dropped(),
	}
	bs.mu.Lock()
	b := bs.board
	bs.mu.Unlock()
	if b == nil {
		status.Stats.State = model.BoardStateDisconnected
		return status
	}

	opts := b.Options()
	status.Configured = true
	status.BoardType = opts.BoardType
	status.Port = opts.Port
	status.Simulate = opts.Simulate
	status.Channels = b.NumberOfChannels()
	status.SampleRate = opts.SampleRate
	status.Stats = b.Stats()
	status.ChannelSettings = b.ChannelSettings()
	return status
}

// StreamStart asks the board to start streaming
func (bs *BoardService) StreamStart() error {
	return bs.command("stream_start", func(b *board.Board) error { return b.StreamStart() })
}

// StreamStop asks the board to stop streaming
func (bs *BoardService) StreamStop() error {
	return bs.command("stream_stop", func(b *board.Board) error { return b.StreamStop() })
}

// Pause stops sample delivery
func (bs *BoardService) Pause() error {
	return bs.command("pause", func(b *board.Board) error { return b.Pause() })
}

// Resume restarts sample delivery
func (bs *BoardService) Resume() error {
	return bs.command("resume", func(b *board.Board) error { return b.Resume() })
}

// SoftReset resets the board
func (bs *BoardService) SoftReset() error {
	return bs.command("soft_reset", func(b *board.Board) error { return b.SoftReset() })
}

// QueryRegisters requests the register dump, delivered as info events
func (bs *BoardService) QueryRegisters() error {
	return bs.command("query_registers", func(b *board.Board) error { return b.QueryRegisters() })
}

// DefaultChannelSettings restores the power-on channel settings
func (bs *BoardService) DefaultChannelSettings() error {
	return bs.command("default_channel_settings", func(b *board.Board) error { return b.DefaultChannelSettings() })
}

// SetChannelPower powers a channel up or down
func (bs *BoardService) SetChannelPower(channel int, on bool) error {
	name := "channel_off"
	if on {
		name = "channel_on"
	}
	return bs.command(name, func(b *board.Board) error {
		if on {
			return b.ChannelOn(channel)
		}
		return b.ChannelOff(channel)
	}, zap.Int("channel", channel))
}

// SetChannel applies channel settings
func (bs *BoardService) SetChannel(settings model.ChannelSettings) error {
	return bs.command("channel_set", func(b *board.Board) error { return b.ChannelSet(settings) },
		zap.Int("channel", settings.Channel),
		zap.Int("gain", settings.Gain),
	)
}

// TestSignal routes an internal test signal to every channel
func (bs *BoardService) TestSignal(name string) error {
	return bs.command("test_signal", func(b *board.Board) error { return b.TestSignal(name) }, zap.String("signal", name))
}

// StartImpedance starts a single-channel or continuous impedance test
func (bs *BoardService) StartImpedance(req ImpedanceRequest) error {
	if req.Continuous {
		return bs.command("impedance_continuous", func(b *board.Board) error { return b.StartContinuousImpedanceTest() })
	}
	return bs.command("impedance_single", func(b *board.Board) error { return b.StartImpedanceTest(req.Channel) },
		zap.Int("channel", req.Channel))
}

// StopImpedance stops the impedance test
func (bs *BoardService) StopImpedance() error {
	return bs.command("impedance_stop", func(b *board.Board) error { return b.StopImpedanceTest() })
}

// Impedances returns the test mode and every known estimate
func (bs *BoardService) Impedances() (model.ImpedanceMode, []model.ImpedanceValue, error) {
	b, _, err := bs.current()
	if err != nil {
		return model.ImpedanceModeOff, nil, err
	}
	return b.ImpedanceMode(), b.Impedances(), nil
}

// ListPorts lists serial ports on the host, dongles first
func (bs *BoardService) ListPorts() ([]model.PortInfo, error) {
	return protocol.ListPorts()
}

func (bs *BoardService) command(name string, fn func(*board.Board) error, fields ...zap.Field) error {
	b, bl, err := bs.current()
	if err != nil {
		return err
	}
	err = fn(b)
	bl.LogCommand(name, err, fields...)
	return err
}

func (bs *BoardService) current() (*board.Board, *utils.BoardLogger, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.board == nil {
		return nil, nil, board.ErrNotConnected
	}
	return bs.board, bs.boardLogger, nil
}

func (bs *BoardService) options(req ConnectRequest) (board.Options, error) {
	opts := bs.config.BoardOptions()
	if req.BoardType != "" {
		bt, err := model.ParseBoardType(req.BoardType)
		if err != nil {
			return opts, &board.ConfigurationError{Parameter: "board_type", Reason: err.Error()}
		}
		opts.BoardType = bt
		// the configured rate belongs to the configured board type
		opts.SampleRate = 0
	}
	if req.Port != "" {
		opts.Port = req.Port
		if req.Simulate == nil {
			opts.Simulate = false
		}
	}
	if req.Simulate != nil {
		opts.Simulate = *req.Simulate
	}
	if req.BaudRate > 0 {
		opts.BaudRate = req.BaudRate
	}
	if req.Verbose != nil {
		opts.Verbose = *req.Verbose
	}
	if bs.transport != nil {
		opts.Transport = bs.transport
	}
	if opts.Port == "" && !opts.Simulate {
		return opts, &board.ConfigurationError{Parameter: "port", Reason: "a port is required unless simulating"}
	}
	return opts, nil
}

// attachLocked republishes every board event on the bus
func (bs *BoardService) attachLocked(b *board.Board) {
	for _, kind := range model.EventTypes {
		kind := kind
		bs.unsubscribe = append(bs.unsubscribe, b.On(kind, func(ev board.Event) {
			bs.bus.Publish(toStreamEvent(ev, b.SessionID()))
			if kind == model.EventError {
				bs.logger.Warn("Board error", zap.Error(ev.Err))
			}
		}))
	}
}

func (bs *BoardService) detachLocked() {
	for _, fn := range bs.unsubscribe {
		fn()
	}
	bs.unsubscribe = nil
}

func toStreamEvent(ev board.Event, sessionID string) StreamEvent {
	out := StreamEvent{
		Type:      ev.Kind,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Sample:    ev.Sample,
		Impedance: ev.Impedance,
	}
	if ev.Info != nil {
		out.Info = string(ev.Info)
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	if ev.Sample != nil {
		out.Timestamp = ev.Sample.Timestamp
	}
	return out
}

