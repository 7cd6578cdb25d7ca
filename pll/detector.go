package pll

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pll/dsp/filter/iir"
)

// Detector is the multiplying phase detector. Its output is
// Kd * x * cos(theta); with x = A*sin(wt) and the loop near lock this is
// (Kd*A/2)*sin(phase error) plus a component at twice the signal frequency.
//
// Alongside the product it estimates the signal amplitude from the current
// and previous sample, assuming the signal advances by the nominal phase
// step each sample. The estimate is smoothed by a low-pass seeded with
// Config.SignalMagnitudeEst and, in dynamic mode, sets Kd = 1/magnitude so
// the detector gain no longer depends on amplitude.
type Detector struct {
	staticKd float64
	kd       float64
	floor    float64

	// cos and sin of half the nominal per-sample phase step
	cosHalf float64
	sinHalf float64

	last float64
	mag  float64
	est  float64
	lpf  *iir.Filter
}

// NewDetector builds a Detector from the kd, signal frequency, sample
// rate and magnitude fields of cfg.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newDetector(cfg)
}

func newDetector(cfg Config) (*Detector, error) {
	lpf, err := iir.NewLowpass(cfg.MagnitudeCutoff, cfg.SampleRate, lowpassOrder,
		iir.WithSteadyState(cfg.SignalMagnitudeEst))
	if err != nil {
		return nil, fmt.Errorf("pll: magnitude low-pass: %w", err)
	}

	half := math.Pi * cfg.SignalFreq / cfg.SampleRate
	return &Detector{
		staticKd: cfg.Kd,
		kd:       cfg.Kd,
		floor:    cfg.MagnitudeFloor,
		cosHalf:  math.Cos(half),
		sinHalf:  math.Sin(half),
		mag:      cfg.SignalMagnitudeEst,
		est:      cfg.SignalMagnitudeEst,
		lpf:      lpf,
	}, nil
}

// Detect returns the phase error for one sample against the oscillator
// angle theta. A non-finite sample is replaced by the previous one.
func (d *Detector) Detect(sample, theta float64, dynamicKd bool) float64 {
	sample = finiteOr(sample, d.last)

	// x[n] + x[n-1] and x[n] - x[n-1] of A*sin(wt) are 2A*sin(.)*cos(step/2)
	// and 2A*cos(.)*sin(step/2).
	s := (sample + d.last) / d.cosHalf / 2
	c := (sample - d.last) / d.sinHalf / 2
	d.mag = d.lpf.ProcessSample(math.Hypot(s, c))

	if dynamicKd {
		d.kd = 1 / math.Max(d.mag, d.floor)
	}
	d.last = sample
	return d.kd * sample * math.Cos(theta)
}

// Kd returns the gain used by the most recent Detect call, or the static
// gain before the first call.
func (d *Detector) Kd() float64 { return d.kd }

// Magnitude returns the smoothed amplitude estimate.
func (d *Detector) Magnitude() float64 { return d.mag }

// Reset restores the static gain, clears the held sample and reseeds the
// magnitude low-pass at the configured estimate.
func (d *Detector) Reset() {
	d.kd = d.staticKd
	d.last = 0
	d.mag = d.lpf.Seed(d.est)
}
