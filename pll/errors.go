package pll

import "errors"

// Configuration errors returned by Config.Validate and New.
var (
	ErrInvalidSampleRate = errors.New("pll: sample rate must be positive and finite")
	ErrInvalidFrequency  = errors.New("pll: signal frequency must be positive and below Nyquist")
	ErrInvalidHarmonics  = errors.New("pll: invalid notch harmonic set")
	ErrInvalidBounds     = errors.New("pll: inconsistent clamp bounds")
	ErrInvalidCutoff     = errors.New("pll: invalid low-pass cutoff")
	ErrInvalidParameter  = errors.New("pll: invalid parameter")
)

// ErrUnknownOutput is returned for an OutputKind outside the defined set.
var ErrUnknownOutput = errors.New("pll: unknown output kind")
