package pll

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pll/dsp/filter/design"
)

const (
	DefaultSignalFreq       = 50.0
	DefaultSampleRate       = 1000.0
	DefaultNotchQ           = 10.0
	DefaultFreqDeviation    = 5.0
	DefaultLPFCutoff        = 50.0
	DefaultMagnitudeCutoff  = 10.0
	DefaultDiagnosticCutoff = 5.0
	DefaultMagnitudeFloor   = 1e-6

	// vcoCutoffRatio places the VCO smoothing cutoff at a fixed fraction of
	// the sample rate when Config.VCOCutoff is zero.
	vcoCutoffRatio = 0.4

	// lowpassOrder is the Butterworth order of every internal low-pass.
	lowpassOrder = 4
)

// Config holds the construction parameters of a PLL. Start from
// DefaultConfig and override fields; every field is used as given.
type Config struct {
	SignalFreq float64 `yaml:"signal_freq"` // nominal signal frequency in Hz
	SampleRate float64 `yaml:"fs"`          // sample rate in Hz

	Kd float64 `yaml:"kd"` // static phase-detector gain
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	K0 float64 `yaml:"k0"` // VCO gain in Hz per unit control, also the PI loop gain

	NotchHarmonics  []int           `yaml:"notch_filter_harmonics"`
	NotchQ          float64         `yaml:"notch_q"`
	NotchQOverrides map[int]float64 `yaml:"notch_q_overrides"`

	SignalMagnitudeEst float64 `yaml:"signal_magnitude_est"` // seeds the magnitude low-pass

	IntegralMin float64 `yaml:"integral_min"`
	IntegralMax float64 `yaml:"integral_max"`
	OutputMin   float64 `yaml:"output_min"`
	OutputMax   float64 `yaml:"output_max"`

	LPFCutoff float64 `yaml:"lpf_cutoff"` // optional pre-PI low-pass

	// FreqDeviation is the VCO clamp half-width: the frequency stays in
	// [SignalFreq-FreqDeviation, SignalFreq+FreqDeviation].
	FreqDeviation float64 `yaml:"freq_deviation"`

	// VCOCutoff is the cutoff of the VCO frequency smoothing low-pass.
	// Zero selects 0.4*SampleRate.
	VCOCutoff float64 `yaml:"vco_cutoff"`

	MagnitudeCutoff  float64 `yaml:"magnitude_cutoff"`  // detector magnitude smoothing
	DiagnosticCutoff float64 `yaml:"diagnostic_cutoff"` // diagnostic-only error low-pass
	MagnitudeFloor   float64 `yaml:"magnitude_floor"`   // lower bound before 1/magnitude

	InitialPhase float64 `yaml:"initial_phase"` // VCO angle before the first tick
}

// DefaultConfig returns a 50 Hz, 1 kHz configuration with unit gains,
// notches at harmonics 2 through 6 and clamps of ±10.
func DefaultConfig() Config {
	return Config{
		SignalFreq:         DefaultSignalFreq,
		SampleRate:         DefaultSampleRate,
		Kd:                 1,
		Kp:                 1,
		Ki:                 1,
		K0:                 1,
		NotchHarmonics:     []int{2, 3, 4, 5, 6},
		NotchQ:             DefaultNotchQ,
		SignalMagnitudeEst: 1,
		IntegralMin:        -10,
		IntegralMax:        10,
		OutputMin:          -10,
		OutputMax:          10,
		LPFCutoff:          DefaultLPFCutoff,
		FreqDeviation:      DefaultFreqDeviation,
		MagnitudeCutoff:    DefaultMagnitudeCutoff,
		DiagnosticCutoff:   DefaultDiagnosticCutoff,
		MagnitudeFloor:     DefaultMagnitudeFloor,
	}
}

// Validate reports the first configuration error in c, or nil.
//
//nolint:cyclop
func (c Config) Validate() error {
	if c.SampleRate <= 0 || !finite(c.SampleRate) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, c.SampleRate)
	}
	nyquist := c.SampleRate / 2

	if c.SignalFreq <= 0 || !finite(c.SignalFreq) || c.SignalFreq >= nyquist {
		return fmt.Errorf("%w: %v Hz at fs %v Hz", ErrInvalidFrequency, c.SignalFreq, c.SampleRate)
	}

	params := []struct {
		name string
		v    float64
	}{
		{"kd", c.Kd}, {"kp", c.Kp}, {"ki", c.Ki}, {"k0", c.K0},
		{"signal_magnitude_est", c.SignalMagnitudeEst},
		{"initial_phase", c.InitialPhase},
	}
	for _, p := range params {
		if !finite(p.v) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidParameter, p.name, p.v)
		}
	}
	if c.MagnitudeFloor <= 0 || !finite(c.MagnitudeFloor) {
		return fmt.Errorf("%w: magnitude_floor = %v", ErrInvalidParameter, c.MagnitudeFloor)
	}

	if err := c.validateHarmonics(nyquist); err != nil {
		return err
	}

	if !validRange(c.IntegralMin, c.IntegralMax) {
		return fmt.Errorf("%w: integral [%v, %v]", ErrInvalidBounds, c.IntegralMin, c.IntegralMax)
	}
	if !validRange(c.OutputMin, c.OutputMax) {
		return fmt.Errorf("%w: output [%v, %v]", ErrInvalidBounds, c.OutputMin, c.OutputMax)
	}
	if c.FreqDeviation < 0 || !finite(c.FreqDeviation) || c.FreqDeviation >= c.SignalFreq {
		return fmt.Errorf("%w: freq_deviation %v for %v Hz", ErrInvalidBounds, c.FreqDeviation, c.SignalFreq)
	}

	cutoffs := []struct {
		name string
		v    float64
	}{
		{"lpf_cutoff", c.LPFCutoff},
		{"vco_cutoff", c.vcoCutoff()},
		{"magnitude_cutoff", c.MagnitudeCutoff},
		{"diagnostic_cutoff", c.DiagnosticCutoff},
	}
	for _, co := range cutoffs {
		if co.v <= 0 || !finite(co.v) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidCutoff, co.name, co.v)
		}
		if co.v >= nyquist {
			return fmt.Errorf("%w: %s = %v: %w", ErrInvalidCutoff, co.name, co.v, design.ErrAboveNyquist)
		}
	}

	return nil
}

func (c Config) validateHarmonics(nyquist float64) error {
	if len(c.NotchHarmonics) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidHarmonics)
	}
	seen := make(map[int]bool, len(c.NotchHarmonics))
	for _, k := range c.NotchHarmonics {
		switch {
		case k < 1:
			return fmt.Errorf("%w: multiple %d", ErrInvalidHarmonics, k)
		case seen[k]:
			return fmt.Errorf("%w: duplicate multiple %d", ErrInvalidHarmonics, k)
		case float64(k)*c.SignalFreq >= nyquist:
			return fmt.Errorf("%w: harmonic %d (%v Hz) at or above Nyquist", ErrInvalidHarmonics, k, float64(k)*c.SignalFreq)
		}
		seen[k] = true
	}

	if c.NotchQ <= 0 || !finite(c.NotchQ) {
		return fmt.Errorf("%w: notch_q = %v", ErrInvalidParameter, c.NotchQ)
	}
	for k, q := range c.NotchQOverrides {
		if q <= 0 || !finite(q) {
			return fmt.Errorf("%w: notch_q_overrides[%d] = %v", ErrInvalidParameter, k, q)
		}
	}
	return nil
}

func (c Config) vcoCutoff() float64 {
	if c.VCOCutoff == 0 {
		return vcoCutoffRatio * c.SampleRate
	}
	return c.VCOCutoff
}

// FreqBounds returns the VCO frequency clamp [min, max].
func (c Config) FreqBounds() (lo, hi float64) {
	return c.SignalFreq - c.FreqDeviation, c.SignalFreq + c.FreqDeviation
}

func validRange(lo, hi float64) bool {
	return finite(lo) && finite(hi) && lo <= hi
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, fallback float64) float64 {
	if finite(v) {
		return v
	}
	return fallback
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
