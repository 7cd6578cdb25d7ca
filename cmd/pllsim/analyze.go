package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-pll/measure/harmonic"
)

type analyzeOptions struct {
	signal    signalOptions
	threshold float64
	fixed     bool
}

func newAnalyzeCmd(g *globalOptions) *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "measure harmonic content and suggest a notch set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, g)
		},
	}
	o.signal.register(cmd)
	cmd.Flags().Float64Var(&o.threshold, "threshold", 0.01, "relative level that earns a notch")
	cmd.Flags().BoolVar(&o.fixed, "fixed", false, "use the nominal frequency instead of searching for the fundamental")
	return cmd
}

func (o *analyzeOptions) run(cmd *cobra.Command, g *globalOptions) error {
	cfg, err := g.pllConfig(cmd)
	if err != nil {
		return err
	}
	samples, err := o.signal.load(cfg.SampleRate)
	if err != nil {
		return err
	}

	hc := harmonic.Config{SampleRate: cfg.SampleRate}
	if o.fixed {
		hc.Fundamental = cfg.SignalFreq
	}
	res, err := harmonic.AnalyzeSignal(samples, hc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fundamental %.3f Hz, level %.4f, THD %.2f%% (%.1f dB)\n\n",
		res.Fundamental, res.FundamentalLevel, 100*res.THD, res.THDdB())

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "k\tfreq Hz\tlevel\trelative dB\t")
	for _, h := range res.Harmonics {
		fmt.Fprintf(tw, "%d\t%.2f\t%.5f\t%.1f\t\n", h.Multiple, h.Freq, h.Level, h.RelativeDB())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nsuggested notch_filter_harmonics: %v\n", withSecond(res.SuggestHarmonics(o.threshold)))
	return nil
}

// withSecond prepends multiple 2, which the detector produces on its own.
func withSecond(ks []int) []int {
	if slices.Contains(ks, 2) {
		return ks
	}
	return append([]int{2}, ks...)
}
