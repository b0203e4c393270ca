// internal/model/sample.go
package model

import "time"

// Sample is one decoded packet
type Sample struct {
	// Sequence is assigned by the engine and increases by one per decoded sample
	Sequence uint64 `json:"sequence" msgpack:"sequence"`
	// SampleNumber is the device's rolling 8-bit counter
	SampleNumber byte      `json:"sample_number" msgpack:"sample_number"`
	ChannelData  []float64 `json:"channel_data" msgpack:"channel_data"` // volts
	AuxData      []float64 `json:"aux_data" msgpack:"aux_data"`         // g
	Daisy        bool      `json:"daisy,omitempty" msgpack:"daisy,omitempty"`
	Timestamp    time.Time `json:"timestamp" msgpack:"timestamp"`
}

// ImpedanceValue is the estimate for one channel
type ImpedanceValue struct {
	Channel int     `json:"channel" msgpack:"channel"`
	Ohms    float64 `json:"ohms" msgpack:"ohms"`
}

// ImpedanceMode selects how the impedance test feeds the detector
type ImpedanceMode string

const (
	ImpedanceModeOff        ImpedanceMode = "off"
	ImpedanceModeSingle     ImpedanceMode = "single"
	ImpedanceModeContinuous ImpedanceMode = "continuous"
)
