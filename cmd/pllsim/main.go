// Command pllsim runs the phase-locked loop offline over a synthesized or
// recorded signal.
//
// Usage:
//
//	pllsim run [flags]
//	pllsim analyze [flags]
//
// Examples:
//
//	pllsim run --freq 50.5 --harmonics 3:0.2,5:0.1 --noise 0.05 --plot
//	pllsim run --config pll.yaml --input capture.csv --column 1 --log trace.csv
//	pllsim analyze --input capture.csv --threshold 0.01
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-pll/internal/config"
	"github.com/cwbudde/algo-pll/pll"
)

type globalOptions struct {
	verbose    bool
	configFile string
	sampleRate float64
	nominal    float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "pllsim",
		Short:         "single-phase PLL simulator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "PLL config file (yaml)")
	root.PersistentFlags().Float64Var(&g.sampleRate, "fs", pll.DefaultSampleRate, "sample rate in Hz")
	root.PersistentFlags().Float64Var(&g.nominal, "nominal", pll.DefaultSignalFreq, "nominal signal frequency in Hz")

	root.AddCommand(newRunCmd(g), newAnalyzeCmd(g))
	return root
}

func (g *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// pllConfig loads the config file when given; --fs and --nominal override
// it only when set explicitly.
func (g *globalOptions) pllConfig(cmd *cobra.Command) (pll.Config, error) {
	cfg := pll.DefaultConfig()
	if g.configFile != "" {
		var err error
		if cfg, err = config.Load(g.configFile); err != nil {
			return pll.Config{}, err
		}
	}

	flags := cmd.Flags()
	if g.configFile == "" || flags.Changed("fs") {
		cfg.SampleRate = g.sampleRate
	}
	if g.configFile == "" || flags.Changed("nominal") {
		cfg.SignalFreq = g.nominal
	}

	if err := cfg.Validate(); err != nil {
		return pll.Config{}, fmt.Errorf("pllsim: %w", err)
	}
	return cfg, nil
}
