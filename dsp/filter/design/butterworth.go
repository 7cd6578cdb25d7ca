package design

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Sections is a cascade of low-order transfer functions applied in order.
type Sections []Transfer

// Order returns the total order of the cascade.
func (s Sections) Order() int {
	n := 0
	for _, t := range s {
		n += t.Order()
	}
	return n
}

// DCGain returns the product of the section DC gains.
func (s Sections) DCGain() float64 {
	g := 1.0
	for _, t := range s {
		g *= t.DCGain()
	}
	return g
}

// Response computes the complex frequency response of the cascade.
func (s Sections) Response(freqHz, sampleRate float64) complex128 {
	h := complex(1, 0)
	for _, t := range s {
		h *= t.Response(freqHz, sampleRate)
	}
	return h
}

// MagnitudeDB returns 20*log10(|H(f)|) of the cascade.
func (s Sections) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return 20 * math.Log10(cmplx.Abs(s.Response(freqHz, sampleRate)))
}

// Expand multiplies the sections out into a single transfer function.
func (s Sections) Expand() Transfer {
	out := Transfer{B: []float64{1}, A: []float64{1}}
	for _, t := range s {
		out = out.Cascade(t)
	}
	return out
}

// ButterworthLPSections designs a lowpass Butterworth filter of the given
// order as order/2 RBJ lowpass sections with Butterworth quality factors,
// plus one first-order section for odd orders.
//
// Both section forms are the bilinear transform prewarped at freq, so the
// cascade matches the classic analog-prototype design: -3 dB at freq, unity
// gain at DC. Run the sections as a cascade; at cutoffs far below the sample
// rate the expanded polynomial loses most of its significant digits.
func ButterworthLPSections(freq float64, order int, sampleRate float64) (Sections, error) {
	if order <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOrder, order)
	}
	if err := checkFrequency(freq, sampleRate); err != nil {
		return nil, err
	}

	out := make(Sections, 0, (order+1)/2)
	for i := order/2 - 1; i >= 0; i-- {
		out = append(out, lowpassSection(freq, butterworthQ(order, i), sampleRate))
	}
	if order%2 != 0 {
		out = append(out, firstOrderLP(freq, sampleRate))
	}
	return out, nil
}

// ButterworthLP designs the same lowpass as [ButterworthLPSections] and
// expands it into one transfer function, for coefficient reporting and
// comparison with other tools.
func ButterworthLP(freq float64, order int, sampleRate float64) (Transfer, error) {
	s, err := ButterworthLPSections(freq, order, sampleRate)
	if err != nil {
		return Transfer{}, err
	}
	return s.Expand(), nil
}

// butterworthQ returns the quality factor for a Butterworth filter section.
// index ranges from 0 to (order/2 - 1) for the biquad sections.
func butterworthQ(order, index int) float64 {
	theta := math.Pi * float64(2*index+1) / (2 * float64(order))

	s := math.Sin(theta)
	if s == 0 {
		return 1 / math.Sqrt2
	}

	return 1 / (2 * s)
}

func firstOrderLP(freq, sampleRate float64) Transfer {
	k := math.Tan(math.Pi * freq / sampleRate)
	norm := 1 / (1 + k)

	return Transfer{
		B: []float64{k * norm, k * norm},
		A: []float64{1, (k - 1) * norm},
	}
}
