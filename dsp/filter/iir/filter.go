package iir

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-pll/dsp/filter/design"
)

var (
	ErrEmptyCoefficients = errors.New("iir: coefficient vectors must not be empty")
	ErrLeadingZero       = errors.New("iir: a[0] must be non-zero")
	ErrNonFinite         = errors.New("iir: coefficients must be finite")
)

// stage is one Direct Form II Transposed section of a Filter.
type stage struct {
	b, a []float64
	z    []float64
}

func newStage(b, a []float64) (stage, error) {
	if len(b) == 0 || len(a) == 0 {
		return stage{}, ErrEmptyCoefficients
	}
	if a[0] == 0 {
		return stage{}, ErrLeadingZero
	}
	for _, v := range b {
		if !finite(v) {
			return stage{}, ErrNonFinite
		}
	}
	for _, v := range a {
		if !finite(v) {
			return stage{}, ErrNonFinite
		}
	}

	n := max(len(b), len(a))
	s := stage{
		b: make([]float64, n),
		a: make([]float64, n),
		z: make([]float64, n-1),
	}

	a0 := a[0]
	for i, v := range b {
		s.b[i] = v / a0
	}
	for i, v := range a {
		s.a[i] = v / a0
	}
	return s, nil
}

func (s *stage) process(x float64) float64 {
	n := len(s.z)
	if n == 0 {
		return s.b[0] * x
	}

	y := s.b[0]*x + s.z[0]
	if !finite(y) {
		return y
	}
	for i := 0; i < n-1; i++ {
		s.z[i] = s.b[i+1]*x - s.a[i+1]*y + s.z[i+1]
	}
	s.z[n-1] = s.b[n]*x - s.a[n]*y
	return y
}

// seed solves the delay line backwards from the last register for a
// constant input v: z[n-1] = b[n]*v - a[n]*y and
// z[i] = b[i+1]*v - a[i+1]*y + z[i+1], where y = H(1)*v.
func (s *stage) seed(v float64) float64 {
	y := s.transfer().DCGain() * v
	n := len(s.z)
	if n == 0 || !finite(y) {
		return y
	}

	s.z[n-1] = s.b[n]*v - s.a[n]*y
	for i := n - 2; i >= 0; i-- {
		s.z[i] = s.b[i+1]*v - s.a[i+1]*y + s.z[i+1]
	}
	return y
}

func (s *stage) transfer() design.Transfer {
	return design.Transfer{B: s.b, A: s.a}
}

// Filter is a linear recursive filter with persistent delay-line state,
// realized as a cascade of one or more sections.
type Filter struct {
	stages []stage

	lastInput float64
	sanitized int
}

// New returns a single-section Filter for the transfer function b/a with
// zero state.
//
// The vectors are copied, normalized so that a[0] == 1, and zero-padded to a
// common length. The filter order is that common length minus one.
func New(b, a []float64) (*Filter, error) {
	s, err := newStage(b, a)
	if err != nil {
		return nil, err
	}
	return &Filter{stages: []stage{s}}, nil
}

// FromTransfer returns a Filter for a designed transfer function.
func FromTransfer(t design.Transfer) (*Filter, error) {
	return New(t.B, t.A)
}

// FromSections returns a Filter that runs the given sections in cascade,
// each with its own delay line.
func FromSections(sections design.Sections) (*Filter, error) {
	if len(sections) == 0 {
		return nil, ErrEmptyCoefficients
	}
	f := &Filter{stages: make([]stage, len(sections))}
	for i, t := range sections {
		s, err := newStage(t.B, t.A)
		if err != nil {
			return nil, fmt.Errorf("iir: section %d: %w", i, err)
		}
		f.stages[i] = s
	}
	return f, nil
}

// NewNotch returns a notch filter centered at freq with quality factor q.
func NewNotch(freq, sampleRate, q float64) (*Filter, error) {
	t, err := design.Notch(freq, q, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("iir: notch at %v Hz: %w", freq, err)
	}
	return FromTransfer(t)
}

type lowpassConfig struct {
	seeded bool
	level  float64
}

// LowpassOption configures NewLowpass.
type LowpassOption func(*lowpassConfig)

// WithSteadyState seeds the delay line with the state the filter would
// reach after an infinitely long constant input of the given level.
func WithSteadyState(level float64) LowpassOption {
	return func(cfg *lowpassConfig) {
		cfg.seeded = true
		cfg.level = level
	}
}

// NewLowpass returns a Butterworth lowpass filter of the given order, run as
// a cascade of second-order sections.
// A cutoff at or above sampleRate/2 is rejected with design.ErrAboveNyquist.
func NewLowpass(cutoff, sampleRate float64, order int, opts ...LowpassOption) (*Filter, error) {
	var cfg lowpassConfig
	for _, o := range opts {
		o(&cfg)
	}

	sections, err := design.ButterworthLPSections(cutoff, order, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("iir: lowpass at %v Hz: %w", cutoff, err)
	}

	f, err := FromSections(sections)
	if err != nil {
		return nil, err
	}
	if cfg.seeded {
		f.Seed(cfg.level)
	}
	return f, nil
}

// ProcessSample filters one input sample and returns the output.
func (f *Filter) ProcessSample(x float64) float64 {
	if !finite(x) {
		f.sanitized++
		x = f.lastInput
	} else {
		f.lastInput = x
	}

	y := x
	for i := range f.stages {
		y = f.stages[i].process(y)
		if !finite(y) {
			f.sanitized++
			f.Reset()
			return 0
		}
	}

	if !f.stateFinite() {
		f.sanitized++
		f.Reset()
	}
	return y
}

// ProcessBlock filters buf in place.
func (f *Filter) ProcessBlock(buf []float64) {
	for i, x := range buf {
		buf[i] = f.ProcessSample(x)
	}
}

// Seed sets every delay line to the steady state for a constant input level
// and returns the corresponding steady-state output.
//
// Each section is seeded at its own DC input, which is the steady output of
// the section before it.
func (f *Filter) Seed(level float64) float64 {
	if !finite(level) {
		level = 0
	}
	f.lastInput = level

	y := level
	for i := range f.stages {
		y = f.stages[i].seed(y)
		if !finite(y) {
			// Integrator-like filters have no finite steady state.
			f.Reset()
			return 0
		}
	}
	return y
}

// Reset clears the delay line to zero.
func (f *Filter) Reset() {
	for i := range f.stages {
		clear(f.stages[i].z)
	}
	f.lastInput = 0
}

// State returns a copy of the delay line, the sections' registers in
// cascade order.
func (f *Filter) State() []float64 {
	out := make([]float64, 0, f.Order())
	for _, s := range f.stages {
		out = append(out, s.z...)
	}
	return out
}

// SetState restores a delay line previously returned by State. It panics if
// the length does not match the filter order.
func (f *Filter) SetState(state []float64) {
	if len(state) != f.Order() {
		panic(fmt.Sprintf("iir: state length %d, want %d", len(state), f.Order()))
	}
	for i := range f.stages {
		n := copy(f.stages[i].z, state)
		state = state[n:]
	}
}

// Order returns the filter order, which is also the total delay-line length.
func (f *Filter) Order() int {
	n := 0
	for _, s := range f.stages {
		n += len(s.z)
	}
	return n
}

// NumSections returns the number of cascaded sections.
func (f *Filter) NumSections() int {
	return len(f.stages)
}

// Coefficients returns the normalized numerator and denominator of the whole
// cascade, expanded into one transfer function.
func (f *Filter) Coefficients() (b, a []float64) {
	t := f.sections().Expand()
	return append([]float64(nil), t.B...), append([]float64(nil), t.A...)
}

// Sanitized returns how many non-finite inputs or outputs the filter has
// replaced since construction.
func (f *Filter) Sanitized() int {
	return f.sanitized
}

// DCGain returns the steady-state gain for a constant input.
func (f *Filter) DCGain() float64 {
	return f.sections().DCGain()
}

func (f *Filter) stateFinite() bool {
	for _, s := range f.stages {
		for _, v := range s.z {
			if !finite(v) {
				return false
			}
		}
	}
	return true
}

func (f *Filter) sections() design.Sections {
	out := make(design.Sections, len(f.stages))
	for i := range f.stages {
		out[i] = f.stages[i].transfer()
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
