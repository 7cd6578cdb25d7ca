package iir

// Response computes the complex frequency response H(e^jw) at the given
// frequency (Hz) and sample rate (Hz).
func (f *Filter) Response(freqHz, sampleRate float64) complex128 {
	return f.sections().Response(freqHz, sampleRate)
}

// MagnitudeDB returns 20*log10(|H(f)|).
func (f *Filter) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return f.sections().MagnitudeDB(freqHz, sampleRate)
}

// ImpulseResponse computes n samples of the impulse response. The filter
// state is saved and restored, so the call has no lasting effect.
func (f *Filter) ImpulseResponse(n int) []float64 {
	if n <= 0 {
		return nil
	}
	saved := f.State()
	last := f.lastInput
	f.Reset()

	ir := make([]float64, n)
	ir[0] = f.ProcessSample(1)
	for i := 1; i < n; i++ {
		ir[i] = f.ProcessSample(0)
	}

	f.SetState(saved)
	f.lastInput = last
	return ir
}
