package design

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Transfer holds the coefficients of a rational transfer function
//
//	H(z) = (B[0] + B[1] z^-1 + ... + B[n] z^-n) / (A[0] + A[1] z^-1 + ... + A[n] z^-n)
//
// with A[0] == 1. B and A always have the same length, order+1.
type Transfer struct {
	B []float64 // feedforward (numerator)
	A []float64 // feedback (denominator)
}

// Order returns the filter order.
func (t Transfer) Order() int {
	return len(t.A) - 1
}

// DCGain returns H(1), the gain for a constant input.
func (t Transfer) DCGain() float64 {
	var num, den float64
	for _, b := range t.B {
		num += b
	}
	for _, a := range t.A {
		den += a
	}
	return num / den
}

// Response computes the complex frequency response H(e^jw) at the given
// frequency (Hz) and sample rate (Hz).
func (t Transfer) Response(freqHz, sampleRate float64) complex128 {
	w := 2 * math.Pi * freqHz / sampleRate
	zinv := cmplx.Exp(complex(0, -w))

	// Horner over z^-1, highest power first.
	var num, den complex128
	for i := len(t.B) - 1; i >= 0; i-- {
		num = num*zinv + complex(t.B[i], 0)
	}
	for i := len(t.A) - 1; i >= 0; i-- {
		den = den*zinv + complex(t.A[i], 0)
	}
	return num / den
}

// MagnitudeDB returns 20*log10(|H(f)|).
func (t Transfer) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return 20 * math.Log10(cmplx.Abs(t.Response(freqHz, sampleRate)))
}

// Cascade returns the transfer function of t followed by u.
func (t Transfer) Cascade(u Transfer) Transfer {
	return Transfer{
		B: polyMul(t.B, u.B),
		A: polyMul(t.A, u.A),
	}
}

// Notch designs a second-order notch centered at freq (Hz) with quality
// factor q. The -3 dB rejection bandwidth is freq/q.
//
// The design works on the normalized frequency w0 = freq/(fs/2) and places
// the zeros on the unit circle at w0, so the response is exactly zero at
// the notch frequency and exactly one at DC and Nyquist.
func Notch(freq, q, sampleRate float64) (Transfer, error) {
	if err := checkFrequency(freq, sampleRate); err != nil {
		return Transfer{}, err
	}
	if q <= 0 || !finite(q) {
		return Transfer{}, fmt.Errorf("%w: %v", ErrInvalidQ, q)
	}

	w0 := math.Pi * freq / (sampleRate / 2)
	bw := w0 / q
	gain := 1 / (1 + math.Tan(bw/2))
	cw := math.Cos(w0)

	return Transfer{
		B: []float64{gain, -2 * gain * cw, gain},
		A: []float64{1, -2 * gain * cw, 2*gain - 1},
	}, nil
}

// Lowpass designs a single RBJ lowpass section at freq (Hz) with quality
// factor q.
func Lowpass(freq, q, sampleRate float64) (Transfer, error) {
	if err := checkFrequency(freq, sampleRate); err != nil {
		return Transfer{}, err
	}
	if q <= 0 || !finite(q) {
		return Transfer{}, fmt.Errorf("%w: %v", ErrInvalidQ, q)
	}
	return lowpassSection(freq, q, sampleRate), nil
}

func lowpassSection(freq, q, sampleRate float64) Transfer {
	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b0 := (1 - cw) / 2
	b1 := 1 - cw
	b2 := (1 - cw) / 2
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha

	return normalize([]float64{b0, b1, b2}, []float64{a0, a1, a2})
}

func checkFrequency(freq, sampleRate float64) error {
	if sampleRate <= 0 || !finite(sampleRate) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	if freq <= 0 || !finite(freq) {
		return fmt.Errorf("%w: %v", ErrInvalidFrequency, freq)
	}
	if freq >= sampleRate/2 {
		return fmt.Errorf("%w: %v Hz >= %v Hz", ErrAboveNyquist, freq, sampleRate/2)
	}
	return nil
}

func normalize(b, a []float64) Transfer {
	a0 := a[0]
	tb := make([]float64, len(b))
	ta := make([]float64, len(a))
	for i := range b {
		tb[i] = b[i] / a0
	}
	for i := range a {
		ta[i] = a[i] / a0
	}
	return Transfer{B: tb, A: ta}
}

func polyMul(p, q []float64) []float64 {
	if len(p) == 0 || len(q) == 0 {
		return nil
	}
	out := make([]float64, len(p)+len(q)-1)
	for i, x := range p {
		for j, y := range q {
			out[i+j] += x * y
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
