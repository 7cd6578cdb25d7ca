package pll

import (
	"fmt"
	"math"
	"strings"
)

// OutputKind selects which form of the oscillator angle is returned.
type OutputKind int

const (
	OutputAngle OutputKind = iota // the angle itself, in radians
	OutputSin                     // sin(angle)
	OutputCos                     // cos(angle)
)

var outputNames = map[OutputKind]string{
	OutputAngle: "angle",
	OutputSin:   "sin",
	OutputCos:   "cos",
}

func (k OutputKind) String() string {
	if s, ok := outputNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OutputKind(%d)", int(k))
}

// ParseOutputKind maps "angle", "sin" or "cos" (case-insensitive) to an
// OutputKind.
func ParseOutputKind(s string) (OutputKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range outputNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOutput, s)
}

func evalOutput(theta float64, kind OutputKind) (float64, error) {
	switch kind {
	case OutputAngle:
		return theta, nil
	case OutputSin:
		return math.Sin(theta), nil
	case OutputCos:
		return math.Cos(theta), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownOutput, int(kind))
	}
}
