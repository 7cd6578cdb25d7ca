package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type signalOptions struct {
	freq      float64
	amplitude float64
	phase     float64
	duration  float64
	harmonics string
	noise     float64
	seed      int64

	input  string
	column int
	skip   int
}

func (o *signalOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&o.freq, "freq", 50, "synthesized signal frequency in Hz")
	f.Float64Var(&o.amplitude, "amplitude", 1, "synthesized fundamental amplitude")
	f.Float64Var(&o.phase, "phase", 0, "synthesized initial phase in radians")
	f.Float64Var(&o.duration, "duration", 2, "synthesized duration in seconds")
	f.StringVar(&o.harmonics, "harmonics", "", "harmonic content as multiple:relative pairs, e.g. 3:0.2,5:0.1")
	f.Float64Var(&o.noise, "noise", 0, "uniform noise amplitude")
	f.Int64Var(&o.seed, "seed", 1, "noise seed")
	f.StringVar(&o.input, "input", "", "read samples from a CSV file instead of synthesizing")
	f.IntVar(&o.column, "column", 0, "CSV column holding the samples")
	f.IntVar(&o.skip, "skip", 0, "CSV header rows to skip")
}

// synthesized reports whether the reference phase of the signal is known.
func (o *signalOptions) synthesized() bool { return o.input == "" }

func (o *signalOptions) load(sampleRate float64) ([]float64, error) {
	if o.input != "" {
		f, err := os.Open(o.input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readColumn(f, o.column, o.skip)
	}

	harmonics, err := parseHarmonics(o.harmonics)
	if err != nil {
		return nil, err
	}
	n := int(math.Round(o.duration * sampleRate))
	if n <= 0 {
		return nil, fmt.Errorf("pllsim: duration %v s gives no samples", o.duration)
	}
	return synthesize(o.freq, sampleRate, o.amplitude, o.phase, harmonics, o.noise, o.seed, n), nil
}

type harmonicTone struct {
	multiple int
	relative float64
}

func parseHarmonics(s string) ([]harmonicTone, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out []harmonicTone
	for _, part := range strings.Split(s, ",") {
		k, rel, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("pllsim: harmonic %q: want multiple:relative", part)
		}
		m, err := strconv.Atoi(k)
		if err != nil || m < 2 {
			return nil, fmt.Errorf("pllsim: harmonic %q: multiple must be an integer >= 2", part)
		}
		r, err := strconv.ParseFloat(rel, 64)
		if err != nil {
			return nil, fmt.Errorf("pllsim: harmonic %q: %w", part, err)
		}
		out = append(out, harmonicTone{multiple: m, relative: r})
	}
	return out, nil
}

func synthesize(freq, sampleRate, amplitude, phase float64, harmonics []harmonicTone, noise float64, seed int64, n int) []float64 {
	out := make([]float64, n)
	rng := rand.New(rand.NewSource(seed))
	step := 2 * math.Pi * freq / sampleRate
	for i := range out {
		ph := step*float64(i) + phase
		v := math.Sin(ph)
		for _, h := range harmonics {
			v += h.relative * math.Sin(float64(h.multiple)*ph)
		}
		out[i] = amplitude * v
		if noise > 0 {
			out[i] += (rng.Float64()*2 - 1) * noise
		}
	}
	return out
}

func readColumn(r io.Reader, column, skip int) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []float64
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if row < skip {
			continue
		}
		if column < 0 || column >= len(rec) {
			return nil, fmt.Errorf("pllsim: row %d has no column %d", row+1, column)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[column]), 64)
		if err != nil {
			return nil, fmt.Errorf("pllsim: row %d: %w", row+1, err)
		}
		out = append(out, v)
	}

	if len(out) == 0 {
		return nil, errors.New("pllsim: no samples in input")
	}
	return out, nil
}
