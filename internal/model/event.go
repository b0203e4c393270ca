// internal/model/event.go
package model

// EventType names the events a board emits
type EventType string

const (
	EventData           EventType = "data"
	EventImpedanceArray EventType = "impedanceArray"
	EventInfo           EventType = "info"
	EventOpen           EventType = "open"
	EventClose          EventType = "close"
	EventError          EventType = "error"
)

// EventTypes lists every event type in a stable order
var EventTypes = []EventType{
	EventData,
	EventImpedanceArray,
	EventInfo,
	EventOpen,
	EventClose,
	EventError,
}
