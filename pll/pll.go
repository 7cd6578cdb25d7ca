package pll

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/cwbudde/algo-pll/control/pi"
	"github.com/cwbudde/algo-pll/dsp/filter/bank"
	"github.com/cwbudde/algo-pll/dsp/filter/iir"
)

// Diagnostics is a snapshot of every stage's output from the last tick.
type Diagnostics struct {
	Ticks uint64

	PhaseError    float64 // detector output
	NotchedError  float64 // after the notch bank, and the prefilter when applied
	FilteredError float64 // diagnostic low-pass of the notched error, not fed back
	Control       float64 // PI output

	Kd        float64
	Magnitude float64
	Integral  float64

	FreqCorrection float64 // k0 * control
	Frequency      float64 // VCO frequency after smoothing and clamping
	Angle          float64 // VCO angle, returned by the next tick

	SanitizedSamples int // non-finite input samples replaced so far
}

// Option configures a PLL.
type Option func(*PLL)

// WithLogger routes construction and sanitization events to l. The default
// logger discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(p *PLL) {
		if l != nil {
			p.log = l
		}
	}
}

// PLL is a single-phase phase-locked loop. Create one with New.
type PLL struct {
	cfg Config
	dt  float64

	detector   *Detector
	notches    *bank.Bank
	prefilter  *iir.Filter
	diagnostic *iir.Filter
	controller *pi.Controller
	vco        *VCO

	// The angle reported on a tick is the one produced by the previous tick.
	currAngle float64
	nextAngle float64
	currFreq  float64

	lastSample float64
	sanitized  int
	diag       Diagnostics

	log *slog.Logger
}

// New validates cfg and builds the loop. All filters are designed here;
// an error means no PLL exists.
func New(cfg Config, opts ...Option) (*PLL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &PLL{
		cfg: cloneConfig(cfg),
		dt:  1 / cfg.SampleRate,
		log: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(p)
	}

	if err := p.build(); err != nil {
		return nil, err
	}
	p.Reset()

	p.log.Debug("pll configured",
		slog.Float64("signal_freq", cfg.SignalFreq),
		slog.Float64("fs", cfg.SampleRate),
		slog.Any("harmonics", cfg.NotchHarmonics),
		slog.Float64("k0", cfg.K0),
	)
	return p, nil
}

func (p *PLL) build() error {
	cfg := p.cfg
	var err error

	if p.detector, err = newDetector(cfg); err != nil {
		return err
	}

	bankOpts := []bank.Option{bank.WithQ(cfg.NotchQ)}
	for k, q := range cfg.NotchQOverrides {
		bankOpts = append(bankOpts, bank.WithHarmonicQ(k, q))
	}
	if p.notches, err = bank.New(cfg.SignalFreq, cfg.SampleRate, cfg.NotchHarmonics, bankOpts...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHarmonics, err)
	}

	if p.prefilter, err = iir.NewLowpass(cfg.LPFCutoff, cfg.SampleRate, lowpassOrder); err != nil {
		return fmt.Errorf("pll: prefilter: %w", err)
	}
	if p.diagnostic, err = iir.NewLowpass(cfg.DiagnosticCutoff, cfg.SampleRate, lowpassOrder); err != nil {
		return fmt.Errorf("pll: diagnostic low-pass: %w", err)
	}

	p.controller, err = pi.New(pi.Config{
		Kp:          cfg.Kp,
		Ki:          cfg.Ki,
		Gain:        cfg.K0,
		IntegralMin: cfg.IntegralMin,
		IntegralMax: cfg.IntegralMax,
		OutputMin:   cfg.OutputMin,
		OutputMax:   cfg.OutputMax,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBounds, err)
	}

	if p.vco, err = newVCO(cfg); err != nil {
		return err
	}
	return nil
}

// Update advances the loop by one sample and returns the current angle,
// which is the VCO angle computed on the previous tick.
//
// dynamicKd replaces the static detector gain by 1/magnitude. lpfBeforePI
// inserts the low-pass prefilter between the notch bank and the
// controller. The prefilter only advances on ticks where it is inserted.
func (p *PLL) Update(sample float64, dynamicKd, lpfBeforePI bool) float64 {
	p.currAngle = p.nextAngle

	if !finite(sample) {
		p.sanitized++
		if p.sanitized == 1 {
			p.log.Warn("non-finite sample replaced", slog.Float64("sample", sample), slog.Uint64("tick", p.diag.Ticks))
		} else {
			p.log.Debug("non-finite sample replaced", slog.Int("count", p.sanitized))
		}
		sample = p.lastSample
	}
	p.lastSample = sample

	e := p.detector.Detect(sample, p.currAngle, dynamicKd)
	notched := p.notches.ProcessSample(e)

	if lpfBeforePI {
		notched = p.prefilter.ProcessSample(notched)
	}
	filtered := p.diagnostic.ProcessSample(notched)

	u := p.controller.Update(notched, p.dt)
	p.nextAngle = p.vco.Update(u)
	p.currFreq = p.vco.Frequency()

	p.diag = Diagnostics{
		Ticks:            p.diag.Ticks + 1,
		PhaseError:       e,
		NotchedError:     notched,
		FilteredError:    filtered,
		Control:          u,
		Kd:               p.detector.Kd(),
		Magnitude:        p.detector.Magnitude(),
		Integral:         p.controller.Integral(),
		FreqCorrection:   p.vco.FrequencyCorrection(),
		Frequency:        p.currFreq,
		Angle:            p.nextAngle,
		SanitizedSamples: p.sanitized,
	}
	return p.currAngle
}

// ProcessBlock runs Update over samples and writes each returned angle to
// dst. dst must be at least as long as samples.
func (p *PLL) ProcessBlock(dst, samples []float64, dynamicKd, lpfBeforePI bool) {
	if len(samples) == 0 {
		return
	}
	_ = dst[len(samples)-1]
	for i, x := range samples {
		dst[i] = p.Update(x, dynamicKd, lpfBeforePI)
	}
}

// CurrentAngle returns the angle returned by the last Update.
func (p *PLL) CurrentAngle() float64 { return p.currAngle }

// CurrentFreq returns the VCO frequency from the last Update.
func (p *PLL) CurrentFreq() float64 { return p.currFreq }

// Output returns the current angle as an angle, sine or cosine.
func (p *PLL) Output(kind OutputKind) (float64, error) {
	return evalOutput(p.currAngle, kind)
}

// Diagnostics returns the per-stage outputs of the last Update.
func (p *PLL) Diagnostics() Diagnostics { return p.diag }

// Config returns a copy of the configuration the loop was built with.
func (p *PLL) Config() Config { return cloneConfig(p.cfg) }

// Reset returns every stage to its construction state.
func (p *PLL) Reset() {
	p.detector.Reset()
	p.notches.Reset()
	p.prefilter.Reset()
	p.diagnostic.Reset()
	p.controller.Reset()
	p.vco.Reset()

	p.currAngle = p.vco.Phase()
	p.nextAngle = p.currAngle
	p.currFreq = p.vco.Frequency()
	p.lastSample = 0
	p.sanitized = 0
	p.diag = Diagnostics{
		Kd:        p.detector.Kd(),
		Magnitude: p.detector.Magnitude(),
		Frequency: p.currFreq,
		Angle:     p.nextAngle,
	}
}

func cloneConfig(c Config) Config {
	c.NotchHarmonics = slices.Clone(c.NotchHarmonics)
	c.NotchQOverrides = maps.Clone(c.NotchQOverrides)
	return c
}

// PhaseError returns the wrapped difference between the current angle and
// ref, in (-π, π].
func (p *PLL) PhaseError(ref float64) float64 {
	d := math.Remainder(p.currAngle-ref, twoPi)
	if d == -math.Pi {
		d = math.Pi
	}
	return d
}
