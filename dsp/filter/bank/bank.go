package bank

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-pll/dsp/filter/iir"
)

const defaultQ = 10.0

var (
	ErrEmptyHarmonics     = errors.New("bank: harmonic set must not be empty")
	ErrInvalidHarmonic    = errors.New("bank: harmonic multiple must be >= 1")
	ErrDuplicateHarmonic  = errors.New("bank: duplicate harmonic multiple")
	ErrInvalidFundamental = errors.New("bank: fundamental frequency must be positive and finite")
)

// Notch describes one filter in a Bank.
type Notch struct {
	Harmonic int     // multiple of the fundamental
	Freq     float64 // notch center in Hz
	Q        float64 // quality factor

	filter *iir.Filter
}

// Bank is an ordered cascade of harmonic notch filters.
type Bank struct {
	notches     []Notch
	fundamental float64
	sampleRate  float64
}

type bankConfig struct {
	q         float64
	overrides map[int]float64
}

// Option configures a Bank.
type Option func(*bankConfig)

// WithQ sets the quality factor of every notch. Defaults to 10.
func WithQ(q float64) Option {
	return func(cfg *bankConfig) { cfg.q = q }
}

// WithHarmonicQ sets the quality factor of the notch at one harmonic,
// overriding WithQ for that harmonic.
func WithHarmonicQ(harmonic int, q float64) Option {
	return func(cfg *bankConfig) {
		if cfg.overrides == nil {
			cfg.overrides = make(map[int]float64)
		}
		cfg.overrides[harmonic] = q
	}
}

// New builds a notch bank for the given harmonic multiples of fundamental.
//
// It fails if the set is empty, contains a multiple below 1 or a duplicate,
// or places any notch at or above Nyquist.
//
// Every notch starts from zero state rather than the unit-step steady state,
// so a constant input sees a start-up transient before it passes at unity.
func New(fundamental, sampleRate float64, harmonics []int, opts ...Option) (*Bank, error) {
	cfg := bankConfig{q: defaultQ}
	for _, o := range opts {
		o(&cfg)
	}

	if fundamental <= 0 || math.IsNaN(fundamental) || math.IsInf(fundamental, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFundamental, fundamental)
	}
	if len(harmonics) == 0 {
		return nil, ErrEmptyHarmonics
	}

	seen := make(map[int]bool, len(harmonics))
	b := &Bank{
		notches:     make([]Notch, 0, len(harmonics)),
		fundamental: fundamental,
		sampleRate:  sampleRate,
	}

	for _, k := range harmonics {
		if k < 1 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidHarmonic, k)
		}
		if seen[k] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateHarmonic, k)
		}
		seen[k] = true

		q := cfg.q
		if oq, ok := cfg.overrides[k]; ok {
			q = oq
		}

		freq := float64(k) * fundamental
		f, err := iir.NewNotch(freq, sampleRate, q)
		if err != nil {
			return nil, fmt.Errorf("bank: harmonic %d: %w", k, err)
		}

		b.notches = append(b.notches, Notch{Harmonic: k, Freq: freq, Q: q, filter: f})
	}

	return b, nil
}

// ProcessSample pipes x through every notch in configured order.
func (b *Bank) ProcessSample(x float64) float64 {
	for i := range b.notches {
		x = b.notches[i].filter.ProcessSample(x)
	}
	return x
}

// ProcessBlock filters buf in place through the full cascade.
func (b *Bank) ProcessBlock(buf []float64) {
	for i := range b.notches {
		b.notches[i].filter.ProcessBlock(buf)
	}
}

// Reset clears every notch back to zero state, as after New.
func (b *Bank) Reset() {
	for i := range b.notches {
		b.notches[i].filter.Reset()
	}
}

// Notches returns the bank's notch descriptors in processing order.
func (b *Bank) Notches() []Notch {
	return append([]Notch(nil), b.notches...)
}

// Harmonics returns the configured harmonic multiples in processing order.
func (b *Bank) Harmonics() []int {
	out := make([]int, len(b.notches))
	for i, n := range b.notches {
		out[i] = n.Harmonic
	}
	return out
}

// Frequencies returns the notch center frequencies in processing order.
func (b *Bank) Frequencies() []float64 {
	out := make([]float64, len(b.notches))
	for i, n := range b.notches {
		out[i] = n.Freq
	}
	return out
}

// NumFilters returns the number of notches.
func (b *Bank) NumFilters() int {
	return len(b.notches)
}

// Fundamental returns the fundamental frequency in Hz.
func (b *Bank) Fundamental() float64 {
	return b.fundamental
}

// Response computes the complex frequency response of the full cascade.
func (b *Bank) Response(freqHz float64) complex128 {
	h := complex(1, 0)
	for i := range b.notches {
		h *= b.notches[i].filter.Response(freqHz, b.sampleRate)
	}
	return h
}

// MagnitudeDB returns the cascaded magnitude response in dB.
func (b *Bank) MagnitudeDB(freqHz float64) float64 {
	return 20 * math.Log10(cmplx.Abs(b.Response(freqHz)))
}

// Sanitized returns the total count of non-finite values replaced by the
// notches.
func (b *Bank) Sanitized() int {
	var n int
	for i := range b.notches {
		n += b.notches[i].filter.Sanitized()
	}
	return n
}
