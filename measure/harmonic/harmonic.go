package harmonic

import (
	"errors"
	"fmt"
	"math"
	"slices"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

const (
	defaultSearchLower = 10.0
	defaultMaxHarmonic = 16
)

var (
	ErrEmptySignal       = errors.New("harmonic: signal too short")
	ErrInvalidSampleRate = errors.New("harmonic: sample rate must be positive")
	ErrInvalidFFTSize    = errors.New("harmonic: fft size smaller than signal")
	ErrNoFundamental     = errors.New("harmonic: no fundamental in search range")
)

// Config holds the analysis parameters. Zero values select defaults.
type Config struct {
	SampleRate float64

	// Fundamental fixes the fundamental frequency in Hz. Zero searches for
	// the strongest bin in [SearchLower, SearchUpper].
	Fundamental float64
	SearchLower float64 // default 10 Hz
	SearchUpper float64 // default Nyquist / 2

	FFTSize     int // default: next power of two >= len(signal)
	CaptureBins int // half-width of a lobe in bins; default 2 * FFTSize/len(signal)
	MaxHarmonic int // highest multiple analyzed; default 16
}

// Harmonic is the measured level of one multiple of the fundamental.
type Harmonic struct {
	Multiple int
	Freq     float64
	Level    float64 // peak amplitude in signal units
	Relative float64 // Level / fundamental level
}

// RelativeDB returns the relative level in dB.
func (h Harmonic) RelativeDB() float64 { return ratioToDB(h.Relative) }

// Result holds the outcome of an analysis.
type Result struct {
	Fundamental      float64
	FundamentalLevel float64
	Harmonics        []Harmonic // multiples 2..MaxHarmonic below Nyquist
	THD              float64    // sqrt(sum of Relative^2)
}

// THDdB returns the total harmonic distortion in dB.
func (r Result) THDdB() float64 { return ratioToDB(r.THD) }

// SuggestHarmonics returns the multiples whose relative level reaches
// threshold, in ascending order. The result can be used directly as a notch
// harmonic set; note that the PLL's own detector produces a strong second
// harmonic that the set should contain regardless.
func (r Result) SuggestHarmonics(threshold float64) []int {
	var out []int
	for _, h := range r.Harmonics {
		if h.Relative >= threshold {
			out = append(out, h.Multiple)
		}
	}
	return out
}

// Analyzer runs harmonic analyses with a fixed configuration. It keeps the
// FFT plan and window between calls and is not safe for concurrent use.
type Analyzer struct {
	cfg Config

	plan   *algofft.Plan[complex128]
	window []float64
	sumW2  float64

	in, out []complex128
	re, im  []float64
	power   []float64
}

// NewAnalyzer validates the sample rate and returns an Analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.SampleRate <= 0 || math.IsNaN(cfg.SampleRate) || math.IsInf(cfg.SampleRate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRate, cfg.SampleRate)
	}
	if cfg.SearchLower <= 0 {
		cfg.SearchLower = defaultSearchLower
	}
	if cfg.SearchUpper <= 0 {
		cfg.SearchUpper = cfg.SampleRate / 4
	}
	if cfg.MaxHarmonic <= 0 {
		cfg.MaxHarmonic = defaultMaxHarmonic
	}
	return &Analyzer{cfg: cfg}, nil
}

// AnalyzeSignal is a one-shot Analyze.
func AnalyzeSignal(signal []float64, cfg Config) (Result, error) {
	a, err := NewAnalyzer(cfg)
	if err != nil {
		return Result{}, err
	}
	return a.Analyze(signal)
}

// Analyze measures the harmonic content of signal.
func (a *Analyzer) Analyze(signal []float64) (Result, error) {
	if len(signal) < 2 {
		return Result{}, ErrEmptySignal
	}

	fftSize := a.cfg.FFTSize
	if fftSize <= 0 {
		fftSize = nextPowerOf2(len(signal))
	}
	if fftSize < len(signal) {
		return Result{}, fmt.Errorf("%w: %d < %d", ErrInvalidFFTSize, fftSize, len(signal))
	}

	if err := a.prepare(fftSize, len(signal)); err != nil {
		return Result{}, err
	}

	buf := slices.Clone(signal)
	vecmath.MulBlockInPlace(buf, a.window)

	clear(a.in)
	for i, v := range buf {
		a.in[i] = complex(v, 0)
	}
	if err := a.plan.Forward(a.out, a.in); err != nil {
		return Result{}, fmt.Errorf("harmonic: fft: %w", err)
	}

	for i := range a.re {
		a.re[i] = real(a.out[i])
		a.im[i] = imag(a.out[i])
	}
	vecmath.Power(a.power, a.re, a.im)

	capture := a.cfg.CaptureBins
	if capture <= 0 {
		capture = 2 * int(math.Ceil(float64(fftSize)/float64(len(signal))))
	}

	return a.fromPower(fftSize, capture)
}

func (a *Analyzer) prepare(fftSize, n int) error {
	if a.plan == nil || len(a.in) != fftSize {
		plan, err := algofft.NewPlan64(fftSize)
		if err != nil {
			return fmt.Errorf("harmonic: fft plan: %w", err)
		}
		bins := fftSize/2 + 1
		a.plan = plan
		a.in = make([]complex128, fftSize)
		a.out = make([]complex128, fftSize)
		a.re = make([]float64, bins)
		a.im = make([]float64, bins)
		a.power = make([]float64, bins)
	}

	if len(a.window) != n {
		a.window = hann(n)
		a.sumW2 = floats.Dot(a.window, a.window)
	}
	return nil
}

func (a *Analyzer) fromPower(fftSize, capture int) (Result, error) {
	binHz := a.cfg.SampleRate / float64(fftSize)
	maxBin := len(a.power) - 1

	f0 := a.cfg.Fundamental
	if f0 <= 0 {
		lo := clampInt(int(math.Round(a.cfg.SearchLower/binHz)), 1, maxBin)
		hi := clampInt(int(math.Round(a.cfg.SearchUpper/binHz)), lo, maxBin)
		peak := lo + floats.MaxIdx(a.power[lo:hi+1])
		if a.power[peak] <= 0 {
			return Result{}, ErrNoFundamental
		}
		f0 = a.centroid(peak, capture) * binHz
	}

	// Peak amplitude of a sine from the one-sided energy of its lobe.
	scale := 1 / (float64(fftSize) * a.sumW2)
	level := func(freq float64) float64 {
		bin := int(math.Round(freq / binHz))
		lo, hi := max(bin-capture, 0), min(bin+capture, maxBin)
		return 2 * math.Sqrt(floats.Sum(a.power[lo:hi+1])*scale)
	}

	res := Result{Fundamental: f0, FundamentalLevel: level(f0)}
	if res.FundamentalLevel <= 0 {
		return res, ErrNoFundamental
	}

	nyquist := a.cfg.SampleRate / 2
	sumSq := 0.0
	for k := 2; k <= a.cfg.MaxHarmonic; k++ {
		freq := float64(k) * f0
		if freq+float64(capture)*binHz >= nyquist {
			break
		}
		l := level(freq)
		rel := l / res.FundamentalLevel
		res.Harmonics = append(res.Harmonics, Harmonic{Multiple: k, Freq: freq, Level: l, Relative: rel})
		sumSq += rel * rel
	}
	res.THD = math.Sqrt(sumSq)

	return res, nil
}

// centroid returns the power-weighted mean bin of the lobe around peak.
func (a *Analyzer) centroid(peak, capture int) float64 {
	lo, hi := max(peak-capture, 0), min(peak+capture, len(a.power)-1)
	var num, den float64
	for k := lo; k <= hi; k++ {
		num += float64(k) * a.power[k]
		den += a.power[k]
	}
	return num / den
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func ratioToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

func clampInt(val, lo, hi int) int {
	return max(lo, min(val, hi))
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
