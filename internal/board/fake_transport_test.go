package board

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"openbci-service/internal/codec"
	"openbci-service/internal/model"
	"openbci-service/internal/protocol"
)

// fakeTransport hands each pushed chunk to exactly one Read call and records writes
type fakeTransport struct {
	mu         sync.Mutex
	open       bool
	writes     []string
	writeTimes []time.Time
	openErr    error
	writeErr   error

	reads  chan readResult
	closed chan struct{}
	once   sync.Once
}

type readResult struct {
	data []byte
	err  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		reads:  make(chan readResult),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, string(data))
	f.writeTimes = append(f.writeTimes, time.Now())
	return nil
}

func (f *fakeTransport) Drain() error { return nil }

func (f *fakeTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	select {
	case r := <-f.reads:
		return r.data, r.err
	case <-f.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) GetProtocolType() model.ConnectionType { return model.ConnectionTypeSerial }

func (f *fakeTransport) Stats() protocol.ProtocolStats { return protocol.ProtocolStats{} }

func (f *fakeTransport) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeTransport) countWrites(cmd string) int {
	n := 0
	for _, w := range f.Writes() {
		if w == cmd {
			n++
		}
	}
	return n
}

// push blocks until the board's reader has taken the chunk
func (f *fakeTransport) push(t *testing.T, data []byte) {
	t.Helper()
	select {
	case f.reads <- readResult{data: data}:
	case <-time.After(2 * time.Second):
		t.Fatalf("reader did not take chunk %q", data)
	}
}

func (f *fakeTransport) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case f.reads <- readResult{err: err}:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not take error")
	}
}

// recorder collects events from every kind
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(b *Board) *recorder {
	r := &recorder{}
	for _, kind := range model.EventTypes {
		b.On(kind, func(ev Event) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) of(kind model.EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// flush returns once every chunk pushed so far has been handled by the loop.
// The empty read can only be taken after the previous chunk was posted.
func flush(t *testing.T, b *Board, ft *fakeTransport) {
	t.Helper()
	ft.push(t, []byte{})
	if s := b.current(); s != nil {
		b.do(s, func() {})
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testOptions(ft *fakeTransport) Options {
	return Options{
		Port:        "/dev/null",
		WriteDelay:  time.Millisecond,
		SettleDelay: time.Millisecond,
		ResetDelay:  time.Millisecond,
		CloseGrace:  5 * time.Millisecond,
		ReadyMarker: "$$$",
		Logger:      zap.NewNop(),
		Transport: func(Options, *zap.Logger) (protocol.Transport, error) {
			return ft, nil
		},
	}
}

// openStreaming opens a board on ft and drives it through the ready marker
func openStreaming(t *testing.T, opts Options, ft *fakeTransport) *Board {
	t.Helper()
	b := New(opts)
	if err := b.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b.Close(ctx)
	})

	waitFor(t, "soft reset", func() bool { return ft.countWrites("v") == 1 })
	ft.push(t, []byte(opts.ReadyMarker))
	waitFor(t, "stream start", func() bool { return ft.countWrites("b") == 1 })
	if !b.IsStreaming() {
		t.Fatal("IsStreaming() = false after ready marker")
	}
	return b
}

func packet(number byte, counts ...int32) []byte {
	return codec.Cyton{}.Encode(number, counts, nil)
}

func packets(from, n int) []byte {
	var out []byte
	for i := 0; i < n; i++ {
		out = append(out, packet(byte(from+i), int32(from+i))...)
	}
	return out
}

func sampleNumbers(events []Event) []int {
	out := make([]int, len(events))
	for i, ev := range events {
		out[i] = int(ev.Sample.SampleNumber)
	}
	return out
}
