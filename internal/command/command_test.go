package command

import (
	"testing"

	"openbci-service/internal/model"
)

func TestChannelOnOff(t *testing.T) {
	tests := []struct {
		channel int
		off     byte
		on      byte
	}{
		{1, '1', '!'},
		{8, '8', '*'},
		{9, 'q', 'Q'},
		{16, 'i', 'I'},
	}
	for _, tt := range tests {
		off, err := ChannelOff(tt.channel)
		if err != nil {
			t.Fatalf("ChannelOff(%d): %v", tt.channel, err)
		}
		if off[0] != tt.off {
			t.Errorf("ChannelOff(%d) = %q, want %q", tt.channel, off[0], tt.off)
		}
		on, err := ChannelOn(tt.channel)
		if err != nil {
			t.Fatalf("ChannelOn(%d): %v", tt.channel, err)
		}
		if on[0] != tt.on {
			t.Errorf("ChannelOn(%d) = %q, want %q", tt.channel, on[0], tt.on)
		}
	}

	for _, ch := range []int{0, 17} {
		if _, err := ChannelOff(ch); err == nil {
			t.Errorf("ChannelOff(%d) should fail", ch)
		}
		if _, err := ChannelOn(ch); err == nil {
			t.Errorf("ChannelOn(%d) should fail", ch)
		}
	}
}

func TestChannelSet(t *testing.T) {
	got, err := ChannelSet(model.ChannelSettings{
		Channel: 3,
		Gain:    24,
		Input:   model.InputShorted,
		Bias:    true,
		SRB2:    true,
	})
	if err != nil {
		t.Fatalf("ChannelSet: %v", err)
	}
	if want := "x3061110X"; string(got) != want {
		t.Errorf("ChannelSet = %q, want %q", got, want)
	}

	got, err = ChannelSet(model.ChannelSettings{Channel: 10, PowerDown: true, Gain: 1})
	if err != nil {
		t.Fatalf("ChannelSet: %v", err)
	}
	if want := "xW100000X"; string(got) != want {
		t.Errorf("ChannelSet = %q, want %q", got, want)
	}

	if _, err := ChannelSet(model.ChannelSettings{Channel: 1, Gain: 3}); err == nil {
		t.Error("gain 3 should be rejected")
	}
}

func TestLeadOffRoundTrip(t *testing.T) {
	frame, err := LeadOff(12, false, true)
	if err != nil {
		t.Fatalf("LeadOff: %v", err)
	}
	if want := "zR01Z"; string(frame) != want {
		t.Fatalf("LeadOff = %q, want %q", frame, want)
	}

	ch, p, n, err := ParseLeadOff(frame)
	if err != nil {
		t.Fatalf("ParseLeadOff: %v", err)
	}
	if ch != 12 || p || !n {
		t.Errorf("ParseLeadOff = (%d, %v, %v), want (12, false, true)", ch, p, n)
	}

	if _, _, _, err := ParseLeadOff([]byte("z901Z")); err == nil {
		t.Error("unknown channel code should fail")
	}
}
