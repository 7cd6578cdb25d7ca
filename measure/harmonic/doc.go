// Package harmonic measures the harmonic content of a recorded AC signal.
//
// An input record is Hann windowed and transformed with a forward FFT. The
// fundamental is located by peak search (or taken from the configuration),
// and the level of every integer harmonic below Nyquist is read from the
// energy in its main lobe. From the per-harmonic levels it derives total
// harmonic distortion and a suggested notch set for the PLL.
package harmonic
