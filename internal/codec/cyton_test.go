package codec

import (
	"errors"
	"math"
	"testing"

	"openbci-service/internal/model"
)

func TestInt24(t *testing.T) {
	tests := []struct {
		in   []byte
		want int32
	}{
		{[]byte{0x00, 0x00, 0x00}, 0},
		{[]byte{0x00, 0x00, 0x01}, 1},
		{[]byte{0x7F, 0xFF, 0xFF}, 8388607},
		{[]byte{0xFF, 0xFF, 0xFF}, -1},
		{[]byte{0x80, 0x00, 0x00}, -8388608},
	}
	for _, tt := range tests {
		if got := Int24(tt.in); got != tt.want {
			t.Errorf("Int24(% X) = %d, want %d", tt.in, got, tt.want)
		}
	}

	buf := make([]byte, 3)
	for _, v := range []int32{0, 1, -1, 123456, -8388608, 8388607} {
		PutInt24(buf, v)
		if got := Int24(buf); got != v {
			t.Errorf("PutInt24/Int24(%d) = %d", v, got)
		}
	}
}

func TestDecode(t *testing.T) {
	settings := model.DefaultChannelSettings(8)
	settings[1].Gain = 1

	var c Cyton
	counts := []int32{1000, -2000, 0, 1, -1, 8388607, -8388608, 42}
	aux := []int16{16, -16, 0}
	packet := c.Encode(7, counts, aux)

	sample, err := c.Decode(packet, settings)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sample.SampleNumber != 7 {
		t.Errorf("SampleNumber = %d, want 7", sample.SampleNumber)
	}
	if len(sample.ChannelData) != 8 {
		t.Fatalf("len(ChannelData) = %d, want 8", len(sample.ChannelData))
	}
	for i, cnt := range counts {
		want := float64(cnt) * ChannelScale(settings[i].Gain)
		if math.Abs(sample.ChannelData[i]-want) > 1e-15 {
			t.Errorf("channel %d = %g, want %g", i+1, sample.ChannelData[i], want)
		}
	}
	if got, want := sample.AuxData[0], 0.002; math.Abs(got-want) > 1e-12 {
		t.Errorf("aux[0] = %g, want %g", got, want)
	}
	if got, want := sample.AuxData[1], -0.002; math.Abs(got-want) > 1e-12 {
		t.Errorf("aux[1] = %g, want %g", got, want)
	}
}

func TestDecodeChannelSubset(t *testing.T) {
	var c Cyton
	packet := c.Encode(1, []int32{1, 2, 3, 4, 5, 6, 7, 8}, nil)
	sample, err := c.Decode(packet, model.DefaultChannelSettings(model.ChannelsGanglion))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(sample.ChannelData) != 4 {
		t.Errorf("len(ChannelData) = %d, want 4", len(sample.ChannelData))
	}
}

func TestDecodeRejects(t *testing.T) {
	var c Cyton
	settings := model.DefaultChannelSettings(8)
	good := c.Encode(0, nil, nil)

	short := good[:PacketSize-1]
	badStart := append([]byte(nil), good...)
	badStart[0] = 0x00
	badStop := append([]byte(nil), good...)
	badStop[PacketSize-1] = 0x00
	zeroGain := model.DefaultChannelSettings(8)
	zeroGain[0].Gain = 0

	cases := []struct {
		name     string
		packet   []byte
		settings []model.ChannelSettings
	}{
		{"short", short, settings},
		{"bad start", badStart, settings},
		{"bad stop", badStop, settings},
		{"zero gain", good, zeroGain},
	}
	for _, tc := range cases {
		if _, err := c.Decode(tc.packet, tc.settings); !errors.Is(err, ErrBadPacket) {
			t.Errorf("%s: err = %v, want ErrBadPacket", tc.name, err)
		}
	}
}

func TestEncodeVoltsClamps(t *testing.T) {
	var c Cyton
	settings := model.DefaultChannelSettings(8)
	volts := []float64{1, -1, 10e-6}
	packet := c.EncodeVolts(0, volts, settings)

	if got := Int24(packet[2:5]); got != 8388607 {
		t.Errorf("positive clamp = %d, want 8388607", got)
	}
	if got := Int24(packet[5:8]); got != -8388608 {
		t.Errorf("negative clamp = %d, want -8388608", got)
	}

	sample, err := c.Decode(packet, settings)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if math.Abs(sample.ChannelData[2]-10e-6) > ChannelScale(24) {
		t.Errorf("channel 3 = %g, want about 10e-6", sample.ChannelData[2])
	}
}
