// internal/board/marker.go
package board

import "bytes"

// MarkerScanner finds a byte marker in a chunked stream, carrying the last
// len(marker)-1 bytes over so a marker split across chunks is still found.
type MarkerScanner struct {
	marker []byte
	tail   []byte
}

// NewMarkerScanner creates a scanner for marker
func NewMarkerScanner(marker []byte) *MarkerScanner {
	return &MarkerScanner{marker: append([]byte(nil), marker...)}
}

// Scan reports whether the marker completes in chunk. On a match it returns
// the offset in chunk just past the marker and clears the carry-over.
func (m *MarkerScanner) Scan(chunk []byte) (int, bool) {
	if len(m.marker) == 0 || len(chunk) == 0 {
		return 0, false
	}

	buf := make([]byte, 0, len(m.tail)+len(chunk))
	buf = append(buf, m.tail...)
	buf = append(buf, chunk...)

	if idx := bytes.Index(buf, m.marker); idx >= 0 {
		end := idx + len(m.marker) - len(m.tail)
		m.tail = nil
		return end, true
	}

	keep := len(m.marker) - 1
	if keep > len(buf) {
		keep = len(buf)
	}
	m.tail = append(m.tail[:0:0], buf[len(buf)-keep:]...)
	return 0, false
}

// Reset drops the carry-over
func (m *MarkerScanner) Reset() {
	m.tail = nil
}
