// internal/codec/cyton.go
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"openbci-service/internal/model"
)

// Packet framing
const (
	PacketSize = 33
	StartByte  = 0xA0
	StopByte   = 0xC0

	// ChannelSlots is the number of 24-bit channel slots in one packet
	ChannelSlots = 8
	// AuxSlots is the number of 16-bit auxiliary slots in one packet
	AuxSlots = 3
)

const (
	adsReference  = 4.5
	adsFullScale  = 1<<23 - 1
	accelScale    = 0.002 / 16
	channelOffset = 2
	auxOffset     = channelOffset + 3*ChannelSlots
)

// ErrBadPacket is returned for packets that fail framing or decoding checks
var ErrBadPacket = errors.New("bad packet")

// ChannelScale returns the volts per count for a channel at the given gain
func ChannelScale(gain int) float64 {
	return adsReference / float64(gain) / adsFullScale
}

// Cyton decodes and encodes the 33-byte Cyton packet:
//
//	[0]      0xA0
//	[1]      sample number
//	[2:26]   8 x 24-bit signed big-endian channel counts
//	[26:32]  3 x 16-bit signed big-endian accelerometer counts
//	[32]     0xC0
type Cyton struct{}

// Decode turns one packet into a sample. Only the first len(settings) channel
// slots are decoded, up to ChannelSlots.
func (Cyton) Decode(packet []byte, settings []model.ChannelSettings) (*model.Sample, error) {
	if len(packet) != PacketSize {
		return nil, fmt.Errorf("%w: length %d", ErrBadPacket, len(packet))
	}
	if packet[0] != StartByte || packet[PacketSize-1] != StopByte {
		return nil, fmt.Errorf("%w: framing 0x%02X..0x%02X", ErrBadPacket, packet[0], packet[PacketSize-1])
	}

	n := len(settings)
	if n > ChannelSlots {
		n = ChannelSlots
	}

	sample := &model.Sample{
		SampleNumber: packet[1],
		ChannelData:  make([]float64, n),
		AuxData:      make([]float64, AuxSlots),
	}

	for i := 0; i < n; i++ {
		gain := settings[i].Gain
		if gain <= 0 {
			return nil, fmt.Errorf("%w: channel %d has gain %d", ErrBadPacket, i+1, gain)
		}
		off := channelOffset + 3*i
		sample.ChannelData[i] = float64(Int24(packet[off:off+3])) * ChannelScale(gain)
	}

	for i := 0; i < AuxSlots; i++ {
		off := auxOffset + 2*i
		sample.AuxData[i] = float64(int16(binary.BigEndian.Uint16(packet[off:off+2]))) * accelScale
	}

	return sample, nil
}

// Encode builds a packet from raw counts
func (Cyton) Encode(sampleNumber byte, counts []int32, aux []int16) []byte {
	packet := make([]byte, PacketSize)
	packet[0] = StartByte
	packet[1] = sampleNumber
	for i := 0; i < ChannelSlots && i < len(counts); i++ {
		PutInt24(packet[channelOffset+3*i:], counts[i])
	}
	for i := 0; i < AuxSlots && i < len(aux); i++ {
		binary.BigEndian.PutUint16(packet[auxOffset+2*i:], uint16(aux[i]))
	}
	packet[PacketSize-1] = StopByte
	return packet
}

// EncodeVolts builds a packet from channel voltages, clamping to the 24-bit range
func (c Cyton) EncodeVolts(sampleNumber byte, volts []float64, settings []model.ChannelSettings) []byte {
	counts := make([]int32, ChannelSlots)
	for i := 0; i < ChannelSlots && i < len(volts) && i < len(settings); i++ {
		v := math.Round(volts[i] / ChannelScale(settings[i].Gain))
		switch {
		case v > adsFullScale:
			v = adsFullScale
		case v < -adsFullScale-1:
			v = -adsFullScale - 1
		}
		counts[i] = int32(v)
	}
	return c.Encode(sampleNumber, counts, nil)
}

// PutAccel writes one accelerometer axis (0-2) into a packet
func PutAccel(packet []byte, axis int, counts int16) {
	binary.BigEndian.PutUint16(packet[auxOffset+2*axis:], uint16(counts))
}

// AccelCounts converts acceleration in g to accelerometer counts
func AccelCounts(g float64) int16 {
	return int16(math.Round(g / accelScale))
}

// Int24 interprets three big-endian bytes as a signed 24-bit integer
func Int24(b []byte) int32 {
	v := int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// PutInt24 writes the low 24 bits of v big-endian into b
func PutInt24(b []byte, v int32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
