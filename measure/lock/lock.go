// Package lock computes lock-quality metrics from a recorded PLL trace.
package lock

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const defaultThreshold = 0.01

var (
	ErrEmptyTrace     = errors.New("lock: empty trace")
	ErrLengthMismatch = errors.New("lock: phase and frequency traces differ in length")
	ErrInvalidConfig  = errors.New("lock: invalid configuration")
)

// Config holds the lock criteria.
type Config struct {
	SampleRate float64 // converts LockIndex to seconds
	Nominal    float64 // expected frequency in Hz, for FreqMaxDeviation

	// Threshold is the phase-error bound in radians the loop must stay under
	// to count as locked. Default 0.01.
	Threshold float64
}

// Result summarizes a trace. Statistics cover the locked region, or the
// whole trace when the loop never locked.
type Result struct {
	Locked    bool
	LockIndex int     // first sample from which |phase error| stays under Threshold; -1 if never
	LockTime  float64 // LockIndex in seconds

	PhaseMean   float64
	PhaseStdDev float64
	PhaseRMS    float64
	PhaseMaxAbs float64

	FreqMean         float64
	FreqStdDev       float64
	FreqMaxDeviation float64 // max |f - Nominal|
}

// Analyze evaluates a phase-error trace and the matching frequency trace.
// freq may be nil.
func Analyze(phaseErr, freq []float64, cfg Config) (Result, error) {
	if len(phaseErr) == 0 {
		return Result{}, ErrEmptyTrace
	}
	if freq != nil && len(freq) != len(phaseErr) {
		return Result{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(phaseErr), len(freq))
	}
	if cfg.SampleRate <= 0 {
		return Result{}, fmt.Errorf("%w: sample rate %v", ErrInvalidConfig, cfg.SampleRate)
	}
	if cfg.Threshold < 0 {
		return Result{}, fmt.Errorf("%w: threshold %v", ErrInvalidConfig, cfg.Threshold)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = defaultThreshold
	}

	res := Result{LockIndex: LockIndex(phaseErr, cfg.Threshold)}
	start := 0
	if res.LockIndex >= 0 {
		res.Locked = true
		res.LockTime = float64(res.LockIndex) / cfg.SampleRate
		start = res.LockIndex
	}

	pe := phaseErr[start:]
	res.PhaseMean, res.PhaseStdDev = meanStdDev(pe)
	res.PhaseRMS = floats.Norm(pe, 2) / math.Sqrt(float64(len(pe)))
	res.PhaseMaxAbs = math.Max(math.Abs(floats.Max(pe)), math.Abs(floats.Min(pe)))

	if freq != nil {
		f := freq[start:]
		res.FreqMean, res.FreqStdDev = meanStdDev(f)
		res.FreqMaxDeviation = math.Max(math.Abs(floats.Max(f)-cfg.Nominal), math.Abs(floats.Min(f)-cfg.Nominal))
	}

	return res, nil
}

// LockIndex returns the first index from which every |phaseErr| is below
// threshold, or -1 if the last sample is not.
func LockIndex(phaseErr []float64, threshold float64) int {
	idx := -1
	for i := len(phaseErr) - 1; i >= 0; i-- {
		if !(math.Abs(phaseErr[i]) < threshold) {
			break
		}
		idx = i
	}
	return idx
}

// PhaseErrors returns the wrapped difference in (-π, π] between each angle
// and the ideal phase 2π*freq*n/sampleRate + phase of sample n.
func PhaseErrors(angles []float64, freq, sampleRate, phase float64) []float64 {
	out := make([]float64, len(angles))
	step := 2 * math.Pi * freq / sampleRate
	for n, a := range angles {
		d := math.Remainder(a-(step*float64(n)+phase), 2*math.Pi)
		if d == -math.Pi {
			d = math.Pi
		}
		out[n] = d
	}
	return out
}

// meanStdDev wraps stat.MeanStdDev, which is undefined for one sample.
func meanStdDev(x []float64) (mean, std float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
