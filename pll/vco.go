package pll

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pll/dsp/filter/iir"
)

const twoPi = 2 * math.Pi

// VCO is a numerically controlled oscillator. Each Update maps a control
// value to a frequency correction, smooths and clamps the frequency, and
// integrates it into an angle kept in [0, 2π).
type VCO struct {
	nominal    float64
	deviation  float64
	k0         float64
	sampleRate float64
	phase0     float64

	minFreq, maxFreq float64

	freq       float64
	correction float64
	theta      float64

	lpf *iir.Filter
}

// NewVCO builds a VCO from cfg. The frequency low-pass starts in steady
// state at the nominal frequency.
func NewVCO(cfg Config) (*VCO, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newVCO(cfg)
}

func newVCO(cfg Config) (*VCO, error) {
	lpf, err := iir.NewLowpass(cfg.vcoCutoff(), cfg.SampleRate, lowpassOrder,
		iir.WithSteadyState(cfg.SignalFreq))
	if err != nil {
		return nil, fmt.Errorf("pll: vco low-pass: %w", err)
	}

	lo, hi := cfg.FreqBounds()
	return &VCO{
		nominal:    cfg.SignalFreq,
		deviation:  cfg.FreqDeviation,
		k0:         cfg.K0,
		sampleRate: cfg.SampleRate,
		phase0:     wrapPhase(cfg.InitialPhase),
		minFreq:    lo,
		maxFreq:    hi,
		freq:       cfg.SignalFreq,
		theta:      wrapPhase(cfg.InitialPhase),
		lpf:        lpf,
	}, nil
}

// Update advances the oscillator by one sample and returns the new angle.
// A non-finite control value is treated as zero.
func (v *VCO) Update(control float64) float64 {
	v.correction = v.k0 * finiteOr(control, 0)

	f := v.lpf.ProcessSample(v.nominal + v.correction)
	v.freq = clamp(finiteOr(f, v.nominal), v.minFreq, v.maxFreq)

	v.theta = wrapPhase(v.theta + twoPi*v.freq/v.sampleRate)
	return v.theta
}

// Phase returns the current angle in [0, 2π).
func (v *VCO) Phase() float64 { return v.theta }

// Frequency returns the smoothed, clamped frequency of the last update.
func (v *VCO) Frequency() float64 { return v.freq }

// FrequencyCorrection returns k0*control from the last update.
func (v *VCO) FrequencyCorrection() float64 { return v.correction }

// Bounds returns the frequency clamp.
func (v *VCO) Bounds() (lo, hi float64) { return v.minFreq, v.maxFreq }

// NominalFrequency returns the centre frequency.
func (v *VCO) NominalFrequency() float64 { return v.nominal }

// SetNominalFrequency moves the centre frequency and the clamp with it,
// keeping the configured deviation. The smoothing low-pass is not
// reseeded, so the frequency glides to the new centre.
func (v *VCO) SetNominalFrequency(freq float64) error {
	if !finite(freq) || freq <= v.deviation || freq >= v.sampleRate/2 {
		return fmt.Errorf("%w: %v Hz", ErrInvalidFrequency, freq)
	}
	v.nominal = freq
	v.minFreq = freq - v.deviation
	v.maxFreq = freq + v.deviation
	return nil
}

// Output returns the current angle in the requested form.
func (v *VCO) Output(kind OutputKind) (float64, error) {
	return evalOutput(v.theta, kind)
}

// Reset returns the oscillator to its initial phase at the nominal
// frequency.
func (v *VCO) Reset() {
	v.theta = v.phase0
	v.correction = 0
	v.freq = v.lpf.Seed(v.nominal)
	v.freq = clamp(v.freq, v.minFreq, v.maxFreq)
}

// wrapPhase folds theta into [0, 2π).
func wrapPhase(theta float64) float64 {
	theta = math.Mod(theta, twoPi)
	if theta < 0 {
		theta += twoPi
	}
	if theta >= twoPi {
		// -tiny + 2π rounds to 2π
		theta = 0
	}
	return theta
}
