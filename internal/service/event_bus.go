// internal/service/event_bus.go
package service

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"openbci-service/internal/model"
)

// StreamEvent is a board event as delivered to API subscribers
type StreamEvent struct {
	Type      model.EventType        `json:"type" msgpack:"type"`
	Timestamp time.Time              `json:"timestamp" msgpack:"timestamp"`
	SessionID string                 `json:"session_id,omitempty" msgpack:"session_id,omitempty"`
	Sample    *model.Sample          `json:"sample,omitempty" msgpack:"sample,omitempty"`
	Impedance []model.ImpedanceValue `json:"impedance,omitempty" msgpack:"impedance,omitempty"`
	Info      string                 `json:"info,omitempty" msgpack:"info,omitempty"`
	Error     string                 `json:"error,omitempty" msgpack:"error,omitempty"`
}

// EventBus fans board events out to subscribers. Publish never blocks the
// board: when the queue or a subscriber is full the event is dropped and
// counted.
type EventBus struct {
	subscribers map[uint64]*subscription
	nextID      uint64
	events      chan StreamEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
	dropped     *atomic.Uint64
	stop        chan struct{}
	stopOnce    sync.Once
}

type subscription struct {
	types map[model.EventType]bool
	ch    chan StreamEvent
}

// NewEventBus creates a new event bus
func NewEventBus(queueSize int, logger *zap.Logger) *EventBus {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &EventBus{
		subscribers: make(map[uint64]*subscription),
		events:      make(chan StreamEvent, queueSize),
		logger:      logger,
		dropped:     atomic.NewUint64(0),
		stop:        make(chan struct{}),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.stop:
			return
		}
	}
}

// Stop ends distribution and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.stop)
		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		for id, sub := range eb.subscribers {
			close(sub.ch)
			delete(eb.subscribers, id)
		}
	})
}

// Publish publishes an event
func (eb *EventBus) Publish(event StreamEvent) {
	select {
	case eb.events <- event:
	default:
		if n := eb.dropped.Inc(); n%1000 == 1 {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", string(event.Type)),
				zap.Uint64("dropped", n),
			)
		}
	}
}

// Subscribe returns a channel receiving events of the given types, or every
// type when none are named, and a function that cancels the subscription
func (eb *EventBus) Subscribe(buffer int, types ...model.EventType) (<-chan StreamEvent, func()) {
	if len(types) == 0 {
		types = model.EventTypes
	}
	sub := &subscription{
		types: make(map[model.EventType]bool, len(types)),
		ch:    make(chan StreamEvent, buffer),
	}
	for _, t := range types {
		sub.types[t] = true
	}

	eb.mutex.Lock()
	id := eb.nextID
	eb.nextID++
	eb.subscribers[id] = sub
	eb.mutex.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			eb.mutex.Lock()
			defer eb.mutex.Unlock()
			if _, ok := eb.subscribers[id]; ok {
				delete(eb.subscribers, id)
				close(sub.ch)
			}
		})
	}
}

// Dropped returns the number of events lost to full queues
func (eb *EventBus) Dropped() uint64 { return eb.dropped.Load() }

// SubscriberCount returns the number of active subscriptions
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event StreamEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		if !sub.types[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow subscriber
			eb.dropped.Inc()
		}
	}
}
