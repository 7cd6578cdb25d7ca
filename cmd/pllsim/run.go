package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-pll/measure/lock"
	"github.com/cwbudde/algo-pll/pll"
)

type runOptions struct {
	signal signalOptions

	dynamicKd bool
	lpf       bool
	output    string
	logFile   string
	plot      bool
	threshold float64
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the loop and report lock quality",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, g)
		},
	}

	o.signal.register(cmd)
	f := cmd.Flags()
	f.BoolVar(&o.dynamicKd, "dynamic-kd", false, "normalize the detector gain by the estimated amplitude")
	f.BoolVar(&o.lpf, "lpf", false, "low-pass the error before the PI controller")
	f.StringVar(&o.output, "output", "angle", "logged output form: angle, sin or cos")
	f.StringVar(&o.logFile, "log", "", "write a per-tick CSV trace to this file")
	f.BoolVar(&o.plot, "plot", false, "plot the frequency estimate")
	f.Float64Var(&o.threshold, "threshold", 0.01, "lock threshold in radians")
	return cmd
}

type trace struct {
	samples []float64
	angles  []float64
	outputs []float64
	diag    []pll.Diagnostics
}

func (o *runOptions) run(cmd *cobra.Command, g *globalOptions) error {
	log := g.logger(cmd)

	kind, err := pll.ParseOutputKind(o.output)
	if err != nil {
		return err
	}
	cfg, err := g.pllConfig(cmd)
	if err != nil {
		return err
	}
	samples, err := o.signal.load(cfg.SampleRate)
	if err != nil {
		return err
	}

	p, err := pll.New(cfg, pll.WithLogger(log))
	if err != nil {
		return err
	}
	log.Debug("running", slog.Int("samples", len(samples)), slog.Bool("dynamic_kd", o.dynamicKd), slog.Bool("lpf", o.lpf))

	tr := trace{
		samples: samples,
		angles:  make([]float64, len(samples)),
		outputs: make([]float64, len(samples)),
		diag:    make([]pll.Diagnostics, len(samples)),
	}
	freqs := make([]float64, len(samples))
	for n, x := range samples {
		tr.angles[n] = p.Update(x, o.dynamicKd, o.lpf)
		tr.outputs[n], _ = p.Output(kind)
		tr.diag[n] = p.Diagnostics()
		freqs[n] = p.CurrentFreq()
	}

	// Without a known reference the low-passed detector output stands in
	// for the phase error.
	var phaseErr []float64
	if o.signal.synthesized() {
		phaseErr = lock.PhaseErrors(tr.angles, o.signal.freq, cfg.SampleRate, o.signal.phase)
	} else {
		phaseErr = make([]float64, len(samples))
		for n, d := range tr.diag {
			phaseErr[n] = d.FilteredError
		}
	}

	res, err := lock.Analyze(phaseErr, freqs, lock.Config{
		SampleRate: cfg.SampleRate,
		Nominal:    cfg.SignalFreq,
		Threshold:  o.threshold,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, p, res)

	if o.plot {
		fmt.Fprintln(out)
		fmt.Fprintln(out, asciigraph.Plot(downsample(freqs, 120),
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("frequency estimate (Hz)"),
		))
	}

	if o.logFile != "" {
		if err := writeTrace(o.logFile, tr, phaseErr, kind); err != nil {
			return err
		}
		log.Info("trace written", slog.String("path", o.logFile), slog.Int("rows", len(samples)))
	}
	return nil
}

func printSummary(w io.Writer, p *pll.PLL, res lock.Result) {
	d := p.Diagnostics()
	fmt.Fprintf(w, "samples        %d\n", d.Ticks)
	if res.Locked {
		fmt.Fprintf(w, "locked after   %d samples (%.3f s)\n", res.LockIndex, res.LockTime)
	} else {
		fmt.Fprintln(w, "locked after   never")
	}
	fmt.Fprintf(w, "frequency      %.6f Hz\n", p.CurrentFreq())
	fmt.Fprintf(w, "freq mean/std  %.6f / %.6f Hz\n", res.FreqMean, res.FreqStdDev)
	fmt.Fprintf(w, "phase rms/max  %.6f / %.6f rad\n", res.PhaseRMS, res.PhaseMaxAbs)
	fmt.Fprintf(w, "kd / magnitude %.6f / %.6f\n", d.Kd, d.Magnitude)
	if d.SanitizedSamples > 0 {
		fmt.Fprintf(w, "sanitized      %d samples\n", d.SanitizedSamples)
	}
}

func writeTrace(path string, tr trace, phaseErr []float64, kind pll.OutputKind) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeTraceCSV(f, tr, phaseErr, kind); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeTraceCSV writes one row per tick and stops at the first write error.
func writeTraceCSV(out io.Writer, tr trace, phaseErr []float64, kind pll.OutputKind) error {
	w := csv.NewWriter(out)
	header := []string{
		"tick", "sample", "angle", kind.String(), "frequency", "phase_error",
		"detector", "notched", "filtered", "control", "integral", "kd", "magnitude",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	for n, d := range tr.diag {
		row := []string{
			strconv.Itoa(n), ff(tr.samples[n]), ff(tr.angles[n]), ff(tr.outputs[n]),
			ff(d.Frequency), ff(phaseErr[n]), ff(d.PhaseError), ff(d.NotchedError),
			ff(d.FilteredError), ff(d.Control), ff(d.Integral), ff(d.Kd), ff(d.Magnitude),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// downsample keeps every k-th value so at most n points are plotted.
func downsample(v []float64, n int) []float64 {
	if len(v) <= n {
		return v
	}
	k := (len(v) + n - 1) / n
	out := make([]float64, 0, n)
	for i := 0; i < len(v); i += k {
		out = append(out, v[i])
	}
	return out
}
