package board

import (
	"bytes"
	"math/rand"
	"testing"

	"openbci-service/internal/codec"
)

func newCytonFramer() *Framer {
	return NewFramer(codec.PacketSize, codec.StartByte, codec.StopByte)
}

func feedAll(f *Framer, chunks [][]byte) [][]byte {
	var out [][]byte
	for _, c := range chunks {
		out = append(out, f.Feed(c)...)
	}
	return out
}

func equalPackets(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// noisyStream interleaves packets with junk, including stray start bytes
func noisyStream(rng *rand.Rand, n int) []byte {
	var stream []byte
	for i := 0; i < n; i++ {
		if rng.Intn(4) == 0 {
			junk := make([]byte, rng.Intn(40))
			rng.Read(junk)
			if len(junk) > 0 {
				junk[0] = codec.StartByte
			}
			stream = append(stream, junk...)
		}
		stream = append(stream, packet(byte(i), int32(rng.Intn(1<<20)))...)
	}
	return stream
}

func TestFramerChunkBoundaryIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	stream := noisyStream(rng, 200)

	whole := newCytonFramer().Feed(stream)
	if len(whole) < 190 {
		t.Fatalf("single feed found %d packets, want about 200", len(whole))
	}

	for trial := 0; trial < 50; trial++ {
		var chunks [][]byte
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.Intn(80)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		got := feedAll(newCytonFramer(), chunks)
		if !equalPackets(got, whole) {
			t.Fatalf("trial %d: chunked feed gave %d packets, single feed %d", trial, len(got), len(whole))
		}
	}
}

func TestFramerKeepsLeftover(t *testing.T) {
	f := newCytonFramer()
	p := packet(9, 123)

	if got := f.Feed(p[:10]); len(got) != 0 {
		t.Fatalf("partial chunk produced %d packets", len(got))
	}
	if !bytes.Equal(f.Leftover(), p[:10]) {
		t.Fatalf("leftover = % X, want % X", f.Leftover(), p[:10])
	}

	got := f.Feed(p[10:])
	if len(got) != 1 || !bytes.Equal(got[0], p) {
		t.Fatalf("Feed returned %d packets, want the reassembled packet", len(got))
	}
	if len(f.Leftover()) != 0 {
		t.Errorf("leftover = % X after complete packet, want empty", f.Leftover())
	}
}

func TestFramerEmptyChunkIsNoop(t *testing.T) {
	f := newCytonFramer()
	f.Feed([]byte{codec.StartByte, 1, 2})
	before := f.Leftover()

	if got := f.Feed(nil); got != nil {
		t.Errorf("Feed(nil) = %v, want nil", got)
	}
	if !bytes.Equal(f.Leftover(), before) {
		t.Errorf("leftover changed on empty chunk: % X -> % X", before, f.Leftover())
	}
}

func TestFramerStrayStartByte(t *testing.T) {
	// a payload byte equal to the start byte must not open a frame whose
	// stop check fails
	p1 := packet(1, 0xA0A0A0)
	p2 := packet(2, 7)
	stream := append(append([]byte{codec.StartByte, 0x01, 0x02}, p1...), p2...)

	got := newCytonFramer().Feed(stream)
	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}
	if !bytes.Equal(got[0], p1) || !bytes.Equal(got[1], p2) {
		t.Error("packets were not the two genuine frames")
	}
}

func TestFramerMultiplePacketsInOrder(t *testing.T) {
	got := newCytonFramer().Feed(packets(0, 5))
	if len(got) != 5 {
		t.Fatalf("got %d packets, want 5", len(got))
	}
	for i, p := range got {
		if p[1] != byte(i) {
			t.Errorf("packet %d has sample number %d", i, p[1])
		}
	}
}

func TestFramerLeftoverShorterThanPacket(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	f := newCytonFramer()
	stream := noisyStream(rng, 50)
	for len(stream) > 0 {
		n := 1 + rng.Intn(100)
		if n > len(stream) {
			n = len(stream)
		}
		f.Feed(stream[:n])
		stream = stream[n:]
		if l := len(f.Leftover()); l >= codec.PacketSize {
			t.Fatalf("leftover length %d, want < %d", l, codec.PacketSize)
		}
	}
}

func TestFramerReset(t *testing.T) {
	f := newCytonFramer()
	p := packet(4, 1)
	f.Feed(p[:20])
	f.Reset()

	if got := f.Feed(p[20:]); len(got) != 0 {
		t.Fatalf("tail after reset produced %d packets", len(got))
	}
	got := f.Feed(packet(5, 2))
	if len(got) != 1 || got[0][1] != 5 {
		t.Fatalf("framing did not resynchronize after reset: %d packets", len(got))
	}
}
