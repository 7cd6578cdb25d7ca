// Package design provides digital IIR filter coefficient designers.
//
// Every designer returns a [Transfer], a numerator/denominator pair in
// ascending powers of z^-1 with A[0] normalized to 1. The runtime that
// consumes these coefficients lives in dsp/filter/iir.
//
// Two families are needed by the phase-locked loop:
//
//   - [Notch] builds a second-order band-reject filter from a target
//     frequency and quality factor, using the normalized frequency
//     w0 = f / (fs/2).
//   - [ButterworthLPSections] builds a maximally flat lowpass of arbitrary
//     order as [Sections], a cascade of prewarped second-order sections.
//     [ButterworthLP] expands the same cascade into one transfer function.
//
// Designers reject parameters that would give unstable or meaningless
// coefficients, most importantly any frequency at or above Nyquist, with
// the sentinel errors declared in this package.
package design
