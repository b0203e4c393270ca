// internal/command/command.go
package command

import (
	"fmt"

	"openbci-service/internal/model"
)

// Single-byte device commands
const (
	StreamStart     byte = 'b'
	StreamStop      byte = 's'
	SoftReset       byte = 'v'
	QueryRegisters  byte = '?'
	DefaultSettings byte = 'd'
	DaisyAdd        byte = 'C'
	DaisyRemove     byte = 'c'
	TimeSync        byte = '<'
)

// Test signal commands
const (
	TestGround      byte = '0'
	TestPulse1xSlow byte = '-'
	TestPulse2xSlow byte = '='
	TestPulse1xFast byte = 'p'
	TestPulse2xFast byte = '['
	TestDC          byte = ']'
)

// Channel settings framing
const (
	ChannelSetStart byte = 'x'
	ChannelSetEnd   byte = 'X'
	LeadOffStart    byte = 'z'
	LeadOffEnd      byte = 'Z'
)

var (
	channelOff = []byte("12345678qwertyui")
	channelOn  = []byte("!@#$%^&*QWERTYUI")
)

// TestSignals maps the test signal names accepted by the API to their command byte
var TestSignals = map[string]byte{
	"ground":        TestGround,
	"pulse_1x_slow": TestPulse1xSlow,
	"pulse_2x_slow": TestPulse2xSlow,
	"pulse_1x_fast": TestPulse1xFast,
	"pulse_2x_fast": TestPulse2xFast,
	"dc":            TestDC,
}

// Single wraps a one-byte command
func Single(b byte) []byte {
	return []byte{b}
}

// ChannelOff returns the power-down command for a 1-based channel
func ChannelOff(channel int) ([]byte, error) {
	if channel < 1 || channel > len(channelOff) {
		return nil, fmt.Errorf("channel %d out of range", channel)
	}
	return []byte{channelOff[channel-1]}, nil
}

// ChannelOn returns the power-up command for a 1-based channel
func ChannelOn(channel int) ([]byte, error) {
	if channel < 1 || channel > len(channelOn) {
		return nil, fmt.Errorf("channel %d out of range", channel)
	}
	return []byte{channelOn[channel-1]}, nil
}

// channelCode is the channel identifier used inside x...X and z...Z frames
func channelCode(channel int) (byte, error) {
	if channel < 1 || channel > len(channelOff) {
		return 0, fmt.Errorf("channel %d out of range", channel)
	}
	if channel <= 8 {
		return byte('0' + channel), nil
	}
	return channelOn[channel-1], nil
}

// ChannelSet encodes a full channel settings frame:
// x CHANNEL POWER_DOWN GAIN INPUT_TYPE BIAS SRB2 SRB1 X
func ChannelSet(s model.ChannelSettings) ([]byte, error) {
	ch, err := channelCode(s.Channel)
	if err != nil {
		return nil, err
	}
	gain, err := model.GainCode(s.Gain)
	if err != nil {
		return nil, err
	}
	if s.Input > model.InputBiasDRN {
		return nil, fmt.Errorf("invalid input type %d", s.Input)
	}

	return []byte{
		ChannelSetStart,
		ch,
		flag(s.PowerDown),
		'0' + gain,
		'0' + byte(s.Input),
		flag(s.Bias),
		flag(s.SRB2),
		flag(s.SRB1),
		ChannelSetEnd,
	}, nil
}

// LeadOff encodes an impedance (lead-off current) frame: z CHANNEL P N Z
func LeadOff(channel int, pInput, nInput bool) ([]byte, error) {
	ch, err := channelCode(channel)
	if err != nil {
		return nil, err
	}
	return []byte{LeadOffStart, ch, flag(pInput), flag(nInput), LeadOffEnd}, nil
}

// ParseLeadOff decodes a z...Z frame, returning the 1-based channel
func ParseLeadOff(frame []byte) (channel int, pInput, nInput bool, err error) {
	if len(frame) != 5 || frame[0] != LeadOffStart || frame[4] != LeadOffEnd {
		return 0, false, false, fmt.Errorf("malformed lead-off frame %q", frame)
	}
	channel = channelIndex(frame[1])
	if channel == 0 {
		return 0, false, false, fmt.Errorf("unknown channel code %q", frame[1])
	}
	return channel, frame[2] == '1', frame[3] == '1', nil
}

func channelIndex(code byte) int {
	if code >= '1' && code <= '8' {
		return int(code - '0')
	}
	for i := 8; i < len(channelOn); i++ {
		if channelOn[i] == code {
			return i + 1
		}
	}
	return 0
}

func flag(v bool) byte {
	if v {
		return '1'
	}
	return '0'
}
