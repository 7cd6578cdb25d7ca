// Package pll implements a single-phase digital phase-locked loop.
//
// The loop tracks the phase and frequency of an AC signal corrupted by
// harmonics and noise. Each call to [PLL.Update] advances it by exactly one
// sample:
//
//	sample -> Detector -> notch bank -> [prefilter] -> PI -> VCO -> angle
//	              ^                                             |
//	              +----------- angle from previous tick --------+
//
// The [Detector] multiplies the sample by the cosine of the oscillator
// angle. When the loop is locked to x = A*sin(wt) this product is a DC term
// proportional to the phase error plus a component at twice the signal
// frequency; the harmonic notch bank (dsp/filter/bank) removes that
// component and the ones produced by input harmonics. The clamped PI
// controller (control/pi) steers the numerically simulated [VCO], whose
// angle is fed back on the next tick.
//
// The angle returned by Update is the one computed on the previous tick.
// This one-sample delay is part of the loop dynamics and is kept in an
// explicit current/next pair.
//
// Construction takes a [Config] and fails with a configuration error before
// any state exists; see [Config.Validate]. After that nothing in the
// per-tick path returns an error: non-finite input samples are replaced by
// the last finite one, and every filter guards its own delay line.
//
// The PI integral lives inside [Config.IntegralMin, Config.IntegralMax]. It
// starts at zero clamped into that window, and an override of the integral
// (see control/pi Controller.Override) outside the window is clamped to the
// nearer bound; in-range override values are stored exactly.
//
// A PLL is not safe for concurrent use. Independent instances share no
// state and may run on separate goroutines without synchronization.
//
// Basic usage:
//
//	p, err := pll.New(pll.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	for _, x := range samples {
//	    angle := p.Update(x, false, false)
//	    _ = angle
//	}
//	fmt.Println(p.CurrentFreq())
package pll
