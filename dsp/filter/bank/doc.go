// Package bank provides a harmonic notch filter bank.
//
// A [Bank] holds one notch filter per configured harmonic multiple k of a
// fundamental frequency and pipes every sample through all of them in the
// configured order, each filter's output feeding the next:
//
//	b, err := bank.New(50, 1000, []int{2, 3, 4, 5, 6})
//	y := b.ProcessSample(x)
//
// The order is preserved exactly as given. Each notch carries memory, so a
// different order yields the same steady-state response but different
// transients. The notches start from zero state, not from a unit-step
// steady state, so the first samples carry a start-up transient.
//
// The default quality factor is 10 for every notch; [WithQ] changes it for
// all of them and [WithHarmonicQ] for a single harmonic.
package bank
