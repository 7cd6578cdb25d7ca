package pll

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/cwbudde/algo-pll/internal/testutil"
)

func mustNew(t *testing.T, cfg Config, opts ...Option) *PLL {
	t.Helper()
	p, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// run feeds x and returns the wrapped phase error of each returned angle
// against the reference phase 2*pi*f*n/fs + phase.
func run(p *PLL, x []float64, f, phase float64, dynamicKd, lpf bool) []float64 {
	fs := p.Config().SampleRate
	errs := make([]float64, len(x))
	for n, s := range x {
		angle := p.Update(s, dynamicKd, lpf)
		errs[n] = testutil.WrapPi(angle - (2*math.Pi*f*float64(n)/fs + phase))
	}
	return errs
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func TestLockAcquisition(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	x := testutil.DeterministicSine(50, 1000, 1, 2000)
	errs := run(p, x, 50, 0, false, false)

	if e := math.Abs(errs[len(errs)-1]); e >= 0.01 {
		t.Fatalf("phase error after 2000 ticks = %g, want < 0.01", e)
	}
	if e := maxAbs(errs[len(errs)-200:]); e >= 0.01 {
		t.Fatalf("max phase error over last 200 ticks = %g", e)
	}
	if d := math.Abs(p.CurrentFreq() - 50); d >= 0.01 {
		t.Fatalf("CurrentFreq = %g, want 50 ± 0.01", p.CurrentFreq())
	}
}

func TestLockWithHarmonicsAndNoise(t *testing.T) {
	clean := testutil.HarmonicSignal(50, 1000, 1, []testutil.Harmonic{
		{Multiple: 3, Amplitude: 0.2},
		{Multiple: 5, Amplitude: 0.1},
	}, 4000)
	x := testutil.Add(clean, testutil.DeterministicNoise(7, 0.1, len(clean)))

	for _, tc := range []struct {
		name      string
		dynamicKd bool
		lpf       bool
	}{
		{"static", false, false},
		{"static+lpf", false, true},
		{"dynamic", true, false},
		{"dynamic+lpf", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := mustNew(t, DefaultConfig())
			errs := run(p, x, 50, 0, tc.dynamicKd, tc.lpf)
			if e := maxAbs(errs[len(errs)-1000:]); e > 0.05 {
				t.Fatalf("max phase error over last 1000 ticks = %g, want <= 0.05", e)
			}
			if d := math.Abs(p.CurrentFreq() - 50); d > 0.5 {
				t.Fatalf("CurrentFreq = %g", p.CurrentFreq())
			}
		})
	}
}

func TestPrefilterReducesFrequencyJitter(t *testing.T) {
	x := testutil.Add(
		testutil.DeterministicSine(50, 1000, 1, 4000),
		testutil.DeterministicNoise(11, 0.1, 4000),
	)

	jitter := func(lpf bool) float64 {
		p := mustNew(t, DefaultConfig())
		m := 0.0
		for n, s := range x {
			p.Update(s, false, lpf)
			if n >= 3000 {
				m = math.Max(m, math.Abs(p.CurrentFreq()-50))
			}
		}
		return m
	}

	without, with := jitter(false), jitter(true)
	if with >= without {
		t.Fatalf("frequency jitter with prefilter %g, without %g", with, without)
	}
}

func TestPrefilterIdleWhileBypassed(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	x := testutil.DeterministicSine(50, 1000, 1, 1000)

	for _, s := range x[:500] {
		p.Update(s, false, false)
	}
	for i, v := range p.prefilter.State() {
		if v != 0 {
			t.Fatalf("prefilter register %d = %g after 500 bypassed ticks, want 0", i, v)
		}
	}

	for _, s := range x[500:600] {
		p.Update(s, false, true)
	}
	moved := false
	for _, v := range p.prefilter.State() {
		moved = moved || v != 0
	}
	if !moved {
		t.Fatal("prefilter state still zero after 100 ticks with the prefilter inserted")
	}

	held := p.prefilter.State()
	for _, s := range x[600:] {
		p.Update(s, false, false)
	}
	testutil.RequireSliceNearlyEqual(t, p.prefilter.State(), held, 0)
}

func TestTracksOffNominalFrequency(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	x := testutil.DeterministicSine(51, 1000, 1, 5000)
	for _, s := range x {
		p.Update(s, false, false)
	}
	if d := math.Abs(p.CurrentFreq() - 51); d > 0.05 {
		t.Fatalf("CurrentFreq = %g, want about 51", p.CurrentFreq())
	}
}

func TestLockWithPhaseOffset(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	x := testutil.PhasedSine(50, 1000, 1, 0.5, 4000)
	errs := run(p, x, 50, 0.5, false, false)
	if e := maxAbs(errs[len(errs)-500:]); e > 0.01 {
		t.Fatalf("max phase error over last 500 ticks = %g", e)
	}
}

func TestAccessorsAreIdempotent(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	for _, s := range testutil.DeterministicSine(50, 1000, 1, 123) {
		p.Update(s, true, false)
	}

	a1, f1, d1 := p.CurrentAngle(), p.CurrentFreq(), p.Diagnostics()
	a2, f2, d2 := p.CurrentAngle(), p.CurrentFreq(), p.Diagnostics()
	if a1 != a2 || f1 != f2 || d1 != d2 {
		t.Fatal("accessors changed state")
	}
	if d1.Ticks != 123 {
		t.Fatalf("Ticks = %d, want 123", d1.Ticks)
	}
}

func TestReturnedAngleLagsOneTick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialPhase = 1
	p := mustNew(t, cfg)

	if got := p.Update(0, false, false); got != 1 {
		t.Fatalf("first Update = %g, want initial phase 1", got)
	}

	x := testutil.DeterministicSine(50, 1000, 1, 50)
	for _, s := range x {
		want := p.Diagnostics().Angle
		if got := p.Update(s, false, false); got != want {
			t.Fatalf("Update = %g, want previous VCO angle %g", got, want)
		}
		if a := p.Diagnostics().Angle; a < 0 || a >= 2*math.Pi {
			t.Fatalf("angle %g outside [0, 2π)", a)
		}
	}
}

func TestDynamicGainNormalizesAmplitude(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	for _, s := range testutil.DeterministicSine(50, 1000, 2, 2000) {
		p.Update(s, true, false)
	}

	d := p.Diagnostics()
	if math.Abs(d.Magnitude-2)/2 > 0.05 {
		t.Fatalf("Magnitude = %g, want 2 within 5%%", d.Magnitude)
	}
	if math.Abs(d.Kd-0.5)/0.5 > 0.05 {
		t.Fatalf("Kd = %g, want 0.5 within 5%%", d.Kd)
	}
}

func TestStaticGainIsKept(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kd = 0.75
	p := mustNew(t, cfg)
	for _, s := range testutil.DeterministicSine(50, 1000, 3, 500) {
		p.Update(s, false, false)
	}
	if kd := p.Diagnostics().Kd; kd != 0.75 {
		t.Fatalf("Kd = %g, want static 0.75", kd)
	}
}

func TestFrequencyStaysInBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.K0 = 50
	p := mustNew(t, cfg)

	x := testutil.DeterministicNoise(3, 100, 5000)
	for _, s := range x {
		p.Update(s, true, false)
		if f := p.CurrentFreq(); f < 45 || f > 55 {
			t.Fatalf("CurrentFreq = %g outside [45, 55]", f)
		}
		if c := p.Diagnostics().Control; c < cfg.OutputMin || c > cfg.OutputMax {
			t.Fatalf("control %g outside output bounds", c)
		}
		if i := p.Diagnostics().Integral; i < cfg.IntegralMin || i > cfg.IntegralMax {
			t.Fatalf("integral %g outside bounds", i)
		}
	}
}

func TestNonFiniteSamples(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	x := testutil.DeterministicSine(50, 1000, 1, 3000)
	x[100] = math.NaN()
	x[101] = math.Inf(1)
	x[1500] = math.Inf(-1)

	angles := make([]float64, len(x))
	for n, s := range x {
		angles[n] = p.Update(s, true, true)
	}
	testutil.RequireFinite(t, angles)

	d := p.Diagnostics()
	if d.SanitizedSamples != 3 {
		t.Fatalf("SanitizedSamples = %d, want 3", d.SanitizedSamples)
	}
	if !finite(d.Kd) || !finite(d.Magnitude) || !finite(p.CurrentFreq()) {
		t.Fatalf("non-finite state: %+v", d)
	}
	if e := math.Abs(testutil.WrapPi(angles[len(x)-1] - 2*math.Pi*50*float64(len(x)-1)/1000)); e > 0.05 {
		t.Fatalf("phase error after recovery = %g", e)
	}
}

func TestSanitizedSampleIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	p := mustNew(t, DefaultConfig(), WithLogger(logger))

	p.Update(0.1, false, false)
	p.Update(math.NaN(), false, false)
	p.Update(math.NaN(), false, false)

	out := buf.String()
	if !strings.Contains(out, "non-finite sample replaced") {
		t.Fatalf("missing warning, log = %q", out)
	}
	if n := strings.Count(out, "level=WARN"); n != 1 {
		t.Fatalf("got %d warnings, want 1", n)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero fs", func(c *Config) { c.SampleRate = 0 }, ErrInvalidSampleRate},
		{"nan fs", func(c *Config) { c.SampleRate = math.NaN() }, ErrInvalidSampleRate},
		{"zero freq", func(c *Config) { c.SignalFreq = 0 }, ErrInvalidFrequency},
		{"freq above nyquist", func(c *Config) { c.SignalFreq = 600 }, ErrInvalidFrequency},
		{"empty harmonics", func(c *Config) { c.NotchHarmonics = nil }, ErrInvalidHarmonics},
		{"harmonic zero", func(c *Config) { c.NotchHarmonics = []int{0, 2} }, ErrInvalidHarmonics},
		{"duplicate harmonic", func(c *Config) { c.NotchHarmonics = []int{2, 3, 2} }, ErrInvalidHarmonics},
		{"harmonic at nyquist", func(c *Config) { c.NotchHarmonics = []int{2, 10} }, ErrInvalidHarmonics},
		{"integral bounds", func(c *Config) { c.IntegralMin, c.IntegralMax = 1, -1 }, ErrInvalidBounds},
		{"output bounds", func(c *Config) { c.OutputMin, c.OutputMax = 1, -1 }, ErrInvalidBounds},
		{"deviation", func(c *Config) { c.FreqDeviation = 50 }, ErrInvalidBounds},
		{"lpf cutoff", func(c *Config) { c.LPFCutoff = 500 }, ErrInvalidCutoff},
		{"vco cutoff", func(c *Config) { c.VCOCutoff = -1 }, ErrInvalidCutoff},
		{"magnitude cutoff", func(c *Config) { c.MagnitudeCutoff = 0 }, ErrInvalidCutoff},
		{"notch q", func(c *Config) { c.NotchQ = 0 }, ErrInvalidParameter},
		{"notch q override", func(c *Config) { c.NotchQOverrides = map[int]float64{3: -1} }, ErrInvalidParameter},
		{"nan gain", func(c *Config) { c.Kp = math.NaN() }, ErrInvalidParameter},
		{"magnitude floor", func(c *Config) { c.MagnitudeFloor = 0 }, ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			p, err := New(cfg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("New error = %v, want %v", err, tt.want)
			}
			if p != nil {
				t.Fatal("New returned a PLL alongside an error")
			}
		})
	}
}

func TestOutput(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	for _, s := range testutil.DeterministicSine(50, 1000, 1, 37) {
		p.Update(s, false, false)
	}
	theta := p.CurrentAngle()

	for kind, want := range map[OutputKind]float64{
		OutputAngle: theta,
		OutputSin:   math.Sin(theta),
		OutputCos:   math.Cos(theta),
	} {
		got, err := p.Output(kind)
		if err != nil {
			t.Fatalf("Output(%v): %v", kind, err)
		}
		if got != want {
			t.Fatalf("Output(%v) = %g, want %g", kind, got, want)
		}
	}

	if _, err := p.Output(OutputKind(7)); !errors.Is(err, ErrUnknownOutput) {
		t.Fatalf("unknown kind error = %v", err)
	}
}

func TestResetReproducesRun(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	x := testutil.Add(
		testutil.DeterministicSine(50, 1000, 1.3, 800),
		testutil.DeterministicNoise(5, 0.05, 800),
	)

	first := make([]float64, len(x))
	p.ProcessBlock(first, x, true, true)
	p.Reset()

	if d := p.Diagnostics(); d.Ticks != 0 || d.Integral != 0 {
		t.Fatalf("Reset left state: %+v", d)
	}

	second := make([]float64, len(x))
	p.ProcessBlock(second, x, true, true)
	testutil.RequireSliceNearlyEqual(t, second, first, 0)
}

func TestIndependentInstances(t *testing.T) {
	x := testutil.Add(
		testutil.DeterministicSine(50, 1000, 1, 1000),
		testutil.DeterministicNoise(9, 0.2, 1000),
	)

	ref := make([]float64, len(x))
	mustNew(t, DefaultConfig()).ProcessBlock(ref, x, false, false)

	const workers = 4
	results := make([][]float64, workers)
	var wg sync.WaitGroup
	for w := range workers {
		p := mustNew(t, DefaultConfig())
		results[w] = make([]float64, len(x))
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.ProcessBlock(results[w], x, false, false)
		}()
	}
	wg.Wait()

	for w := range workers {
		testutil.RequireSliceNearlyEqual(t, results[w], ref, 0)
	}
}

func TestConfigIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NotchQOverrides = map[int]float64{3: 20}
	p := mustNew(t, cfg)

	cfg.NotchHarmonics[0] = 99
	cfg.NotchQOverrides[3] = 1

	got := p.Config()
	if got.NotchHarmonics[0] != 2 || got.NotchQOverrides[3] != 20 {
		t.Fatalf("PLL config aliased caller slices: %+v", got)
	}
}

func TestPhaseError(t *testing.T) {
	p := mustNew(t, DefaultConfig())
	p.Update(0, false, false)
	if e := p.PhaseError(2*math.Pi + 0.25); math.Abs(e+0.25) > 1e-12 {
		t.Fatalf("PhaseError = %g, want -0.25", e)
	}
}

func BenchmarkPLLUpdate(b *testing.B) {
	p, err := New(DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	x := testutil.Add(
		testutil.DeterministicSine(50, 1000, 1, 4096),
		testutil.DeterministicNoise(1, 0.1, 4096),
	)

	b.ReportAllocs()
	b.ResetTimer()
	for i := range b.N {
		p.Update(x[i%len(x)], true, true)
	}
}
