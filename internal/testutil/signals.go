// Package testutil holds deterministic signal generators and numeric
// assertions shared by the package tests.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a sine wave starting at phase 0.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	return PhasedSine(freqHz, sampleRate, amplitude, 0, length)
}

// PhasedSine generates amplitude*sin(2*pi*f*n/fs + phase).
func PhasedSine(freqHz, sampleRate, amplitude, phase float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i)+phase)
	}
	return out
}

// Harmonic is one overtone of a [HarmonicSignal]: the integer multiple of
// the fundamental and its amplitude relative to the fundamental.
type Harmonic struct {
	Multiple  int
	Amplitude float64
}

// HarmonicSignal generates a unit-amplitude fundamental plus the given
// harmonics, all starting at phase 0, scaled by amplitude.
func HarmonicSignal(fundamental, sampleRate, amplitude float64, harmonics []Harmonic, length int) []float64 {
	out := DeterministicSine(fundamental, sampleRate, amplitude, length)
	for _, h := range harmonics {
		step := 2 * math.Pi * fundamental * float64(h.Multiple) / sampleRate
		for i := range out {
			out[i] += amplitude * h.Amplitude * math.Sin(step*float64(i))
		}
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Add returns the element-wise sum of a and b, truncated to the shorter length.
func Add(a, b []float64) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	for i := range out {
		out[i] = a[i] + b[i]
	}
	return out
}
