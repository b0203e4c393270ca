// internal/board/framer.go
package board

// Framer reassembles a fragmented byte stream into fixed-size packets
// bounded by a start and a stop byte. It is not safe for concurrent use.
type Framer struct {
	size     int
	start    byte
	stop     byte
	leftover []byte
}

// NewFramer creates a framer for packets of size bytes
func NewFramer(size int, start, stop byte) *Framer {
	return &Framer{size: size, start: start, stop: stop}
}

// Feed appends chunk to the leftover bytes and returns every complete packet
// in order. An offset is accepted only when the start byte and the stop byte
// one packet later both match; otherwise scanning moves on by one byte. The
// bytes from the first offset where a packet no longer fits are kept for the
// next call, so the output does not depend on how the stream was chunked.
func (f *Framer) Feed(chunk []byte) [][]byte {
	if len(chunk) == 0 {
		return nil
	}

	buf := make([]byte, 0, len(f.leftover)+len(chunk))
	buf = append(buf, f.leftover...)
	buf = append(buf, chunk...)

	var packets [][]byte
	i := 0
	for i+f.size <= len(buf) {
		if buf[i] == f.start && buf[i+f.size-1] == f.stop {
			packets = append(packets, buf[i:i+f.size:i+f.size])
			i += f.size
			continue
		}
		i++
	}

	f.leftover = append(f.leftover[:0:0], buf[i:]...)
	return packets
}

// Leftover returns a copy of the bytes waiting for the next chunk
func (f *Framer) Leftover() []byte {
	return append([]byte(nil), f.leftover...)
}

// Reset discards the leftover bytes
func (f *Framer) Reset() {
	f.leftover = nil
}
