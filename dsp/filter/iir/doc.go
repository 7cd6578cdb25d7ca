// Package iir provides the recursive filter runtime used throughout the
// phase-locked loop.
//
// A [Filter] realizes a transfer function (see dsp/filter/design) as a
// cascade of Direct Form II Transposed sections. [New] builds a single
// section of any order; [FromSections] runs a designed cascade, one delay
// line per section. The delay lines together hold exactly as many registers
// as the filter order, are allocated once at construction and are never
// resized.
//
// Two specializations cover everything the loop needs:
//
//   - [NewNotch] rejects a narrow band around one frequency.
//   - [NewLowpass] is a Butterworth lowpass run as second-order sections. It
//     can be seeded with an expected steady-state input level
//     ([WithSteadyState]) so that it starts settled instead of ramping up
//     from zero; every section is seeded at its own DC input.
//
// A non-finite value must never reach the delay line: one NaN would poison
// every later output. ProcessSample therefore holds the last finite input in
// place of a non-finite one, and resets the delay line if the recursion itself
// overflows. Both events are counted by [Filter.Sanitized].
//
// A Filter is not safe for concurrent use; it is owned by exactly one caller.
package iir
