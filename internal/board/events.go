// internal/board/events.go
package board

import (
	"sync"

	"openbci-service/internal/model"
)

// Event is the payload delivered to subscribers. Which field is set depends on Kind:
// Sample for data, Impedance for impedanceArray, Info for info and Err for error.
type Event struct {
	Kind      model.EventType
	Sample    *model.Sample
	Impedance []model.ImpedanceValue
	Info      []byte
	Err       error
}

// Handler receives events. Handlers run synchronously on the board's event
// loop in registration order; they must not block on Open or Close.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// dispatcher keeps one subscriber list per event kind
type dispatcher struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[model.EventType][]subscription
}

func newDispatcher() *dispatcher {
	return &dispatcher{subs: make(map[model.EventType][]subscription)}
}

func (d *dispatcher) subscribe(kind model.EventType, h Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs[kind] = append(d.subs[kind], subscription{id: id, handler: h})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			list := d.subs[kind]
			for i, s := range list {
				if s.id == id {
					d.subs[kind] = append(list[:i:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

func (d *dispatcher) emit(ev Event) {
	d.mu.RLock()
	list := d.subs[ev.Kind]
	d.mu.RUnlock()

	for _, s := range list {
		s.handler(ev)
	}
}
