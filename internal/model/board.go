// internal/model/board.go
package model

import (
	"fmt"
	"strings"
)

// BoardType represents the board variant, which fixes the channel count
type BoardType string

const (
	BoardTypeDefault  BoardType = "default"
	BoardTypeDaisy    BoardType = "daisy"
	BoardTypeGanglion BoardType = "ganglion"
)

// Channel counts per board variant
const (
	ChannelsDefault  = 8
	ChannelsDaisy    = 16
	ChannelsGanglion = 4
)

// Sample rates per board variant, in Hz
const (
	SampleRateDefault  = 250
	SampleRateDaisy    = 125
	SampleRateGanglion = 200
)

// ParseBoardType parses a board type, accepting the legacy spellings
func ParseBoardType(s string) (BoardType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "cyton":
		return BoardTypeDefault, nil
	case "daisy", "cyton-daisy":
		return BoardTypeDaisy, nil
	case "ganglion":
		return BoardTypeGanglion, nil
	default:
		return "", fmt.Errorf("unknown board type %q", s)
	}
}

// NumberOfChannels returns the physical channel count of the board variant
func (b BoardType) NumberOfChannels() int {
	switch b {
	case BoardTypeDaisy:
		return ChannelsDaisy
	case BoardTypeGanglion:
		return ChannelsGanglion
	default:
		return ChannelsDefault
	}
}

// SampleRate returns the default sample rate of the board variant
func (b BoardType) SampleRate() float64 {
	switch b {
	case BoardTypeDaisy:
		return SampleRateDaisy
	case BoardTypeGanglion:
		return SampleRateGanglion
	default:
		return SampleRateDefault
	}
}

// BoardState represents where the connection is in its lifecycle
type BoardState string

const (
	BoardStateDisconnected        BoardState = "DISCONNECTED"
	BoardStateConnecting          BoardState = "CONNECTING"
	BoardStateAwaitingReadyMarker BoardState = "AWAITING_READY_MARKER"
	BoardStateStreaming           BoardState = "STREAMING"
	BoardStateClosing             BoardState = "CLOSING"
)

// InputType selects the ADS1299 channel input multiplexer
type InputType byte

const (
	InputNormal InputType = iota
	InputShorted
	InputBiasMeas
	InputMVDD
	InputTemp
	InputTestSig
	InputBiasDRP
	InputBiasDRN
)

var inputTypeNames = []string{"normal", "shorted", "bias_meas", "mvdd", "temp", "testsig", "bias_drp", "bias_drn"}

func (t InputType) String() string {
	if int(t) < len(inputTypeNames) {
		return inputTypeNames[t]
	}
	return fmt.Sprintf("InputType(%d)", byte(t))
}

// ParseInputType accepts the names returned by String; empty means normal
func ParseInputType(s string) (InputType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return InputNormal, nil
	}
	for i, name := range inputTypeNames {
		if name == s {
			return InputType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown input type %q", s)
}

// Gains supported by the ADS1299 programmable gain amplifier, in register order
var Gains = []int{1, 2, 4, 6, 8, 12, 24}

// DefaultGain is the power-on gain of every channel
const DefaultGain = 24

// ChannelSettings mirrors one channel's configuration register
type ChannelSettings struct {
	Channel   int       `json:"channel"`
	PowerDown bool      `json:"power_down"`
	Gain      int       `json:"gain"`
	Input     InputType `json:"input_type"`
	Bias      bool      `json:"bias"`
	SRB2      bool      `json:"srb2"`
	SRB1      bool      `json:"srb1"`
}

// DefaultChannelSettings returns power-on settings for n channels, numbered from 1
func DefaultChannelSettings(n int) []ChannelSettings {
	settings := make([]ChannelSettings, n)
	for i := range settings {
		settings[i] = ChannelSettings{
			Channel: i + 1,
			Gain:    DefaultGain,
			Input:   InputNormal,
			Bias:    true,
			SRB2:    true,
		}
	}
	return settings
}

// GainCode returns the register code for a gain value
func GainCode(gain int) (byte, error) {
	for i, g := range Gains {
		if g == gain {
			return byte(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported gain %d", gain)
}
