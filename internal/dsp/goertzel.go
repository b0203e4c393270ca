// internal/dsp/goertzel.go
package dsp

import "math"

const (
	// LeadOffFrequency is the AC lead-off drive frequency at 250 Hz sampling
	LeadOffFrequency = 31.25
	// DriveCurrent is the lead-off drive current in amps
	DriveCurrent = 6e-9
	// DefaultWindow holds an integer number of lead-off cycles at 250 Hz
	DefaultWindow = 256
)

// Goertzel estimates the amplitude of a single frequency bin over a fixed
// window of samples.
type Goertzel struct {
	window int
	coeff  float64
	cos    float64
	sin    float64

	s1, s2 float64
	count  int
}

// NewGoertzel creates a detector tuned to freq at the given sample rate
func NewGoertzel(freq, sampleRate float64, window int) *Goertzel {
	if window <= 0 {
		window = DefaultWindow
	}
	w := 2 * math.Pi * freq / sampleRate
	return &Goertzel{
		window: window,
		coeff:  2 * math.Cos(w),
		cos:    math.Cos(w),
		sin:    math.Sin(w),
	}
}

// Push feeds one sample. When the window completes it returns the bin
// magnitude and resets for the next window.
func (g *Goertzel) Push(x float64) (float64, bool) {
	s := x + g.coeff*g.s1 - g.s2
	g.s2 = g.s1
	g.s1 = s
	g.count++

	if g.count < g.window {
		return 0, false
	}

	re := g.s1 - g.s2*g.cos
	im := g.s2 * g.sin
	mag := math.Hypot(re, im)
	g.Reset()
	return mag, true
}

// Reset discards the partial window
func (g *Goertzel) Reset() {
	g.s1, g.s2 = 0, 0
	g.count = 0
}

// Count returns how many samples the current window holds
func (g *Goertzel) Count() int { return g.count }

// Window returns the window length in samples
func (g *Goertzel) Window() int { return g.window }

// PeakVoltage converts a bin magnitude over window samples to the peak
// amplitude of the tone.
func PeakVoltage(magnitude float64, window int) float64 {
	return 2 * magnitude / float64(window)
}

// Impedance converts a bin magnitude to ohms for the lead-off drive current
func Impedance(magnitude float64, window int) float64 {
	return PeakVoltage(magnitude, window) / DriveCurrent
}
