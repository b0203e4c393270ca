// internal/board/write_queue.go
package board

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Writer is the part of a transport the write queue drives
type Writer interface {
	Write(ctx context.Context, data []byte) error
	Drain() error
}

// WriteQueue sends byte sequences one at a time in submission order, keeping
// at least delay between consecutive writes. A single drain goroutine runs
// while entries are pending and exits once the queue is empty.
type WriteQueue struct {
	writer  Writer
	delay   time.Duration
	onError func(cmd []byte, err error)
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	entries   [][]byte
	draining  bool
	closed    bool
	lastWrite time.Time
	idle      chan struct{}
}

// NewWriteQueue creates a queue writing to w. onError receives write and
// drain failures; the queue keeps draining after a failure.
func NewWriteQueue(w Writer, delay time.Duration, onError func(cmd []byte, err error), logger *zap.Logger) *WriteQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &WriteQueue{
		writer:  w,
		delay:   delay,
		onError: onError,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		idle:    idle,
	}
}

// Enqueue appends cmd and starts a drain cycle if none is running
func (q *WriteQueue) Enqueue(cmd []byte) error {
	entry := append([]byte(nil), cmd...)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.entries = append(q.entries, entry)
	if !q.draining {
		q.draining = true
		q.idle = make(chan struct{})
		go q.drain(q.idle)
	}
	return nil
}

// Pending returns the number of entries not yet written
func (q *WriteQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Draining reports whether a drain goroutine is running
func (q *WriteQueue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Idle returns a channel that is closed when no drain cycle is running
func (q *WriteQueue) Idle() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle
}

// Close abandons pending entries and stops the drain goroutine after its
// current write
func (q *WriteQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	if n := len(q.entries); n > 0 {
		q.logger.Debug("Abandoning queued commands", zap.Int("count", n))
	}
	q.entries = nil
	q.cancel()
}

func (q *WriteQueue) drain(idle chan struct{}) {
	defer close(idle)

	for {
		cmd, ok := q.next()
		if !ok {
			return
		}

		err := q.writer.Write(q.ctx, cmd)
		if err == nil {
			err = q.writer.Drain()
		}

		q.mu.Lock()
		q.lastWrite = time.Now()
		closed := q.closed
		q.mu.Unlock()

		if err != nil {
			q.logger.Warn("Command write failed", zap.ByteString("command", cmd), zap.Error(err))
			if !closed && q.onError != nil {
				q.onError(cmd, err)
			}
		}
	}
}

// next waits out the inter-command delay and pops the oldest entry. It
// clears the draining flag when there is nothing left to send.
func (q *WriteQueue) next() ([]byte, bool) {
	q.mu.Lock()
	if q.closed || len(q.entries) == 0 {
		q.draining = false
		q.mu.Unlock()
		return nil, false
	}
	wait := time.Duration(0)
	if !q.lastWrite.IsZero() {
		wait = q.delay - time.Since(q.lastWrite)
	}
	q.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-q.ctx.Done():
			timer.Stop()
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.entries) == 0 {
		q.draining = false
		return nil, false
	}
	cmd := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	return cmd, true
}
