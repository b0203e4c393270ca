// internal/board/impedance.go
package board

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"openbci-service/internal/command"
	"openbci-service/internal/dsp"
	"openbci-service/internal/model"
)

// impedanceTest holds the detector bank and the last-known value per channel.
// Samples arrive from the event loop while Start and Stop come from callers.
type impedanceTest struct {
	mu      sync.Mutex
	mode    model.ImpedanceMode
	channel int
	bank    *dsp.Bank
	values  []float64
	known   []bool

	// continuous mode on a daisy board completes its windows one packet
	// apart, so results are gathered until every channel has reported
	round      []float64
	roundCount int
}

func newImpedanceTest(channels int, sampleRate float64, window int) *impedanceTest {
	return &impedanceTest{
		mode:   model.ImpedanceModeOff,
		bank:   dsp.NewBank(channels, dsp.LeadOffFrequency, sampleRate, window),
		values: make([]float64, channels),
		known:  make([]bool, channels),
		round:  make([]float64, channels),
	}
}

// start resets every detector and switches mode. channel is 1-based and
// only used in single mode.
func (t *impedanceTest) start(mode model.ImpedanceMode, channel int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bank.Reset()
	t.mode = mode
	t.channel = channel
	t.roundCount = 0
}

// stop discards in-flight accumulation and returns the mode that was active
func (t *impedanceTest) stop() (model.ImpedanceMode, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mode, channel := t.mode, t.channel
	t.bank.Reset()
	t.mode = model.ImpedanceModeOff
	t.channel = 0
	t.roundCount = 0
	return mode, channel
}

func (t *impedanceTest) active() (model.ImpedanceMode, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode, t.channel
}

// consume feeds one sample. It reports whether the sample was taken by the
// test and, in continuous mode, the completed array of estimates.
func (t *impedanceTest) consume(sample *model.Sample) (bool, []model.ImpedanceValue) {
	t.mu.Lock()
	defer t.mu.Unlock()

	offset := 0
	if sample.Daisy {
		offset = len(sample.ChannelData)
	}

	switch t.mode {
	case model.ImpedanceModeSingle:
		idx := t.channel - 1 - offset
		if idx >= 0 && idx < len(sample.ChannelData) {
			if z, ok := t.bank.Push(t.channel-1, sample.ChannelData[idx]); ok {
				t.values[t.channel-1] = z
				t.known[t.channel-1] = true
			}
		}
		return true, nil

	case model.ImpedanceModeContinuous:
		if offset == 0 && len(sample.ChannelData) == t.bank.Len() {
			out, ok := t.bank.PushAll(sample.ChannelData)
			if !ok {
				return true, nil
			}
			copy(t.values, out)
			for i := range t.known {
				t.known[i] = true
			}
			return true, t.snapshotLocked()
		}

		for i, v := range sample.ChannelData {
			ch := offset + i
			if z, ok := t.bank.Push(ch, v); ok {
				t.round[ch] = z
				t.roundCount++
			}
		}
		if t.roundCount < t.bank.Len() {
			return true, nil
		}
		t.roundCount = 0
		copy(t.values, t.round)
		for i := range t.known {
			t.known[i] = true
		}
		return true, t.snapshotLocked()

	default:
		return false, nil
	}
}

// value returns the last-known estimate for a 1-based channel
func (t *impedanceTest) value(channel int) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channel < 1 || channel > len(t.values) {
		return 0, false
	}
	return t.values[channel-1], t.known[channel-1]
}

// snapshot returns every known estimate
func (t *impedanceTest) snapshot() []model.ImpedanceValue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *impedanceTest) snapshotLocked() []model.ImpedanceValue {
	out := make([]model.ImpedanceValue, 0, len(t.values))
	for i, v := range t.values {
		if t.known[i] {
			out = append(out, model.ImpedanceValue{Channel: i + 1, Ohms: v})
		}
	}
	return out
}

// clear forgets every estimate
func (t *impedanceTest) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.values {
		t.values[i] = 0
		t.known[i] = false
	}
}

// StartImpedanceTest measures a single 1-based channel. The estimate is
// polled through Impedance; samples are not delivered as data meanwhile.
func (b *Board) StartImpedanceTest(channel int) error {
	if err := b.checkChannel(channel); err != nil {
		return err
	}
	return b.startImpedance(model.ImpedanceModeSingle, []int{channel})
}

// StartContinuousImpedanceTest measures every channel and emits an
// impedanceArray event per completed window
func (b *Board) StartContinuousImpedanceTest() error {
	channels := make([]int, b.NumberOfChannels())
	for i := range channels {
		channels[i] = i + 1
	}
	return b.startImpedance(model.ImpedanceModeContinuous, channels)
}

func (b *Board) startImpedance(mode model.ImpedanceMode, channels []int) error {
	if !b.connected.Load() {
		return ErrNotConnected
	}
	if prev, _ := b.impedance.active(); prev != model.ImpedanceModeOff {
		if err := b.StopImpedanceTest(); err != nil {
			return err
		}
	}

	for _, ch := range channels {
		cmd, err := command.LeadOff(ch, false, true)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidChannel, err)
		}
		if err := b.Write(cmd); err != nil {
			return err
		}
	}

	target := 0
	if mode == model.ImpedanceModeSingle {
		target = channels[0]
	}
	b.impedance.start(mode, target)
	b.logger.Info("Impedance test started", zap.String("mode", string(mode)), zap.Int("channel", target))
	return nil
}

// StopImpedanceTest disables the lead-off current and discards any partial window
func (b *Board) StopImpedanceTest() error {
	mode, channel := b.impedance.stop()
	if mode == model.ImpedanceModeOff {
		return nil
	}

	channels := []int{channel}
	if mode == model.ImpedanceModeContinuous {
		channels = channels[:0]
		for ch := 1; ch <= b.NumberOfChannels(); ch++ {
			channels = append(channels, ch)
		}
	}

	b.logger.Info("Impedance test stopped", zap.String("mode", string(mode)))
	for _, ch := range channels {
		cmd, err := command.LeadOff(ch, false, false)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidChannel, err)
		}
		if err := b.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Impedance returns the last estimate for a 1-based channel in ohms
func (b *Board) Impedance(channel int) (float64, bool) {
	return b.impedance.value(channel)
}

// Impedances returns every channel with a known estimate
func (b *Board) Impedances() []model.ImpedanceValue {
	return b.impedance.snapshot()
}

// ImpedanceMode returns the active test mode
func (b *Board) ImpedanceMode() model.ImpedanceMode {
	mode, _ := b.impedance.active()
	return mode
}
