package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingWriter struct {
	mu       sync.Mutex
	writes   []string
	times    []time.Time
	failOn   string
	drains   int
	blockFor time.Duration
}

func (w *recordingWriter) Write(ctx context.Context, data []byte) error {
	if w.blockFor > 0 {
		time.Sleep(w.blockFor)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, string(data))
	w.times = append(w.times, time.Now())
	if string(data) == w.failOn {
		return errors.New("write failed")
	}
	return nil
}

func (w *recordingWriter) Drain() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drains++
	return nil
}

func (w *recordingWriter) snapshot() ([]string, []time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.writes...), append([]time.Time(nil), w.times...)
}

func waitIdle(t *testing.T, q *WriteQueue) {
	t.Helper()
	select {
	case <-q.Idle():
	case <-time.After(3 * time.Second):
		t.Fatal("queue did not go idle")
	}
}

func TestWriteQueueFIFOWithDelay(t *testing.T) {
	const delay = 20 * time.Millisecond
	w := &recordingWriter{}
	q := NewWriteQueue(w, delay, nil, zap.NewNop())

	want := []string{"a", "b", "c", "d", "e"}
	for _, cmd := range want {
		if err := q.Enqueue([]byte(cmd)); err != nil {
			t.Fatalf("Enqueue(%q): %v", cmd, err)
		}
	}
	waitIdle(t, q)

	got, times := w.snapshot()
	if len(got) != len(want) {
		t.Fatalf("wrote %d commands, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, got[i], want[i])
		}
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < delay {
			t.Errorf("gap between writes %d and %d = %v, want >= %v", i-1, i, gap, delay)
		}
	}
	if w.drains != len(want) {
		t.Errorf("drains = %d, want %d", w.drains, len(want))
	}
}

func TestWriteQueueStopsWhenEmpty(t *testing.T) {
	w := &recordingWriter{}
	q := NewWriteQueue(w, time.Millisecond, nil, zap.NewNop())

	if q.Draining() {
		t.Fatal("new queue is draining")
	}
	q.Enqueue([]byte("x"))
	waitIdle(t, q)

	if q.Draining() {
		t.Error("Draining() = true after queue emptied")
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", q.Pending())
	}
}

func TestWriteQueueDelayAcrossCycles(t *testing.T) {
	const delay = 30 * time.Millisecond
	w := &recordingWriter{}
	q := NewWriteQueue(w, delay, nil, zap.NewNop())

	q.Enqueue([]byte("first"))
	waitIdle(t, q)
	q.Enqueue([]byte("second"))
	waitIdle(t, q)

	_, times := w.snapshot()
	if len(times) != 2 {
		t.Fatalf("wrote %d commands, want 2", len(times))
	}
	if gap := times[1].Sub(times[0]); gap < delay {
		t.Errorf("gap across drain cycles = %v, want >= %v", gap, delay)
	}
}

func TestWriteQueueErrorDoesNotHalt(t *testing.T) {
	w := &recordingWriter{failOn: "bad"}
	var (
		mu     sync.Mutex
		failed []string
	)
	q := NewWriteQueue(w, time.Millisecond, func(cmd []byte, err error) {
		mu.Lock()
		failed = append(failed, string(cmd))
		mu.Unlock()
	}, zap.NewNop())

	for _, cmd := range []string{"ok1", "bad", "ok2"} {
		q.Enqueue([]byte(cmd))
	}
	waitIdle(t, q)

	got, _ := w.snapshot()
	if len(got) != 3 || got[2] != "ok2" {
		t.Errorf("writes = %v, want all three", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || failed[0] != "bad" {
		t.Errorf("reported failures = %v, want [bad]", failed)
	}
}

func TestWriteQueueCloseAbandonsPending(t *testing.T) {
	w := &recordingWriter{blockFor: 10 * time.Millisecond}
	q := NewWriteQueue(w, 50*time.Millisecond, nil, zap.NewNop())

	for _, cmd := range []string{"a", "b", "c"} {
		q.Enqueue([]byte(cmd))
	}
	time.Sleep(20 * time.Millisecond)
	q.Close()
	waitIdle(t, q)

	got, _ := w.snapshot()
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("writes = %v, want only [a]", got)
	}
	if err := q.Enqueue([]byte("late")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue after Close = %v, want ErrQueueClosed", err)
	}
}

func TestWriteQueueCopiesEntry(t *testing.T) {
	w := &recordingWriter{}
	q := NewWriteQueue(w, time.Millisecond, nil, zap.NewNop())

	cmd := []byte("abc")
	q.Enqueue(cmd)
	cmd[0] = 'X'
	waitIdle(t, q)

	got, _ := w.snapshot()
	if len(got) != 1 || got[0] != "abc" {
		t.Errorf("writes = %v, want [abc]", got)
	}
}
