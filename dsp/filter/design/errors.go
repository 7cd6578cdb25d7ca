package design

import "errors"

var (
	ErrInvalidSampleRate = errors.New("design: sample rate must be positive and finite")
	ErrInvalidFrequency  = errors.New("design: frequency must be positive and finite")
	ErrAboveNyquist      = errors.New("design: frequency at or above Nyquist")
	ErrInvalidQ          = errors.New("design: quality factor must be positive and finite")
	ErrInvalidOrder      = errors.New("design: filter order must be positive")
)
