package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"openbci-service/internal/board"
	"openbci-service/internal/config"
	"openbci-service/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Board.Simulate = true
	cfg.Board.WriteDelay = time.Millisecond
	cfg.Board.ResetDelay = 5 * time.Millisecond
	cfg.Board.Simulator.Speed = 4
	return cfg
}

func newTestService(t *testing.T) *BoardService {
	t.Helper()
	bs := NewBoardService(testConfig(t), zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		bs.Shutdown(ctx)
	})
	return bs
}

func receive(t *testing.T, ch <-chan StreamEvent, kind model.EventType) StreamEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed before %s event", kind)
			}
			if ev.Type == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestCommandsRequireBoard(t *testing.T) {
	bs := newTestService(t)

	if err := bs.StreamStart(); !errors.Is(err, board.ErrNotConnected) {
		t.Errorf("StreamStart = %v, want ErrNotConnected", err)
	}
	if err := bs.Disconnect(context.Background()); !errors.Is(err, board.ErrNotConnected) {
		t.Errorf("Disconnect = %v, want ErrNotConnected", err)
	}
	if _, _, err := bs.Impedances(); !errors.Is(err, board.ErrNotConnected) {
		t.Errorf("Impedances = %v, want ErrNotConnected", err)
	}

	st := bs.Status()
	if st.Configured || st.Stats.State != model.BoardStateDisconnected {
		t.Errorf("Status() = %+v, want unconfigured and disconnected", st)
	}
}

func TestConnectRejectsBadRequest(t *testing.T) {
	bs := newTestService(t)

	var cfgErr *board.ConfigurationError
	if _, err := bs.Connect(context.Background(), ConnectRequest{BoardType: "octopus"}); !errors.As(err, &cfgErr) {
		t.Errorf("Connect(bad type) = %v, want ConfigurationError", err)
	}

	off := false
	if _, err := bs.Connect(context.Background(), ConnectRequest{Simulate: &off}); !errors.As(err, &cfgErr) {
		t.Errorf("Connect(no port) = %v, want ConfigurationError", err)
	}
}

func TestSimulatedStreamReachesSubscribers(t *testing.T) {
	bs := newTestService(t)
	events, cancel := bs.Events().Subscribe(1024)
	defer cancel()

	status, err := bs.Connect(context.Background(), ConnectRequest{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !status.Configured || !status.Simulate || status.Channels != 8 {
		t.Errorf("status = %+v", status)
	}

	receive(t, events, model.EventOpen)
	ev := receive(t, events, model.EventData)
	if ev.Sample == nil || len(ev.Sample.ChannelData) != 8 {
		t.Fatalf("data event = %+v", ev)
	}
	if ev.SessionID == "" {
		t.Error("data event without session id")
	}

	if _, err := bs.Connect(context.Background(), ConnectRequest{}); !errors.Is(err, board.ErrAlreadyOpen) {
		t.Errorf("second Connect = %v, want ErrAlreadyOpen", err)
	}

	if err := bs.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	receive(t, events, model.EventClose)

	if st := bs.Status(); st.Stats.State != model.BoardStateDisconnected {
		t.Errorf("state after disconnect = %s", st.Stats.State)
	}
}

func TestSimulatedContinuousImpedance(t *testing.T) {
	bs := newTestService(t)
	bs.config.Board.Simulator.Speed = 16
	events, cancel := bs.Events().Subscribe(64, model.EventImpedanceArray)
	defer cancel()

	if _, err := bs.Connect(context.Background(), ConnectRequest{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for bs.Status().Stats.State != model.BoardStateStreaming {
		if time.Now().After(deadline) {
			t.Fatal("board never started streaming")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := bs.StartImpedance(ImpedanceRequest{Continuous: true}); err != nil {
		t.Fatalf("StartImpedance: %v", err)
	}

	// the first window may straddle the lead-off switch-on
	receive(t, events, model.EventImpedanceArray)
	ev := receive(t, events, model.EventImpedanceArray)
	if len(ev.Impedance) != 8 {
		t.Fatalf("impedance array has %d channels, want 8", len(ev.Impedance))
	}
	for _, v := range ev.Impedance {
		if v.Ohms < 4000 || v.Ohms > 6000 {
			t.Errorf("channel %d = %.0f ohms, want about 5000", v.Channel, v.Ohms)
		}
	}

	mode, values, err := bs.Impedances()
	if err != nil || mode != model.ImpedanceModeContinuous || len(values) != 8 {
		t.Errorf("Impedances() = %s, %d values, %v", mode, len(values), err)
	}
	if err := bs.StopImpedance(); err != nil {
		t.Fatalf("StopImpedance: %v", err)
	}
}

func TestEventBusFiltersAndUnsubscribes(t *testing.T) {
	bus := NewEventBus(16, zap.NewNop())
	go bus.Start()
	defer bus.Stop()

	errs, cancelErrs := bus.Subscribe(4, model.EventError)
	all, cancelAll := bus.Subscribe(4)
	defer cancelAll()

	bus.Publish(StreamEvent{Type: model.EventInfo, Info: "hello"})
	bus.Publish(StreamEvent{Type: model.EventError, Error: "boom"})

	if ev := receive(t, errs, model.EventError); ev.Error != "boom" {
		t.Errorf("error event = %+v", ev)
	}
	receive(t, all, model.EventInfo)

	cancelErrs()
	cancelErrs()
	if _, ok := <-errs; ok {
		t.Error("channel still open after unsubscribe")
	}
	if bus.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", bus.SubscriberCount())
	}
}
