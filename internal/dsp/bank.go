// internal/dsp/bank.go
package dsp

// Bank runs one detector per channel
type Bank struct {
	detectors []*Goertzel
}

// NewBank creates detectors for n channels
func NewBank(n int, freq, sampleRate float64, window int) *Bank {
	b := &Bank{detectors: make([]*Goertzel, n)}
	for i := range b.detectors {
		b.detectors[i] = NewGoertzel(freq, sampleRate, window)
	}
	return b
}

// Len returns the channel count
func (b *Bank) Len() int { return len(b.detectors) }

// PushAll feeds one value per channel. All detectors advance in lockstep, so
// when the window completes every channel's impedance is returned together.
func (b *Bank) PushAll(values []float64) ([]float64, bool) {
	var (
		out  []float64
		done bool
	)
	for i, d := range b.detectors {
		if i >= len(values) {
			break
		}
		mag, ok := d.Push(values[i])
		if !ok {
			continue
		}
		if out == nil {
			out = make([]float64, len(b.detectors))
		}
		out[i] = Impedance(mag, d.Window())
		done = true
	}
	return out, done
}

// Push feeds a single channel (0-based) and returns its impedance when the
// window completes.
func (b *Bank) Push(channel int, value float64) (float64, bool) {
	if channel < 0 || channel >= len(b.detectors) {
		return 0, false
	}
	d := b.detectors[channel]
	mag, ok := d.Push(value)
	if !ok {
		return 0, false
	}
	return Impedance(mag, d.Window()), true
}

// Reset discards every partial window
func (b *Bank) Reset() {
	for _, d := range b.detectors {
		d.Reset()
	}
}
