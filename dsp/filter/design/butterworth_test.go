package design

import (
	"errors"
	"math"
	"testing"
)

func TestButterworthLPKnownCoefficients(t *testing.T) {
	// 4th-order, 10 Hz cutoff at 1 kHz.
	wantB := []float64{
		8.984861463970671e-07, 3.5939445855882685e-06, 5.390916878382403e-06,
		3.5939445855882685e-06, 8.984861463970671e-07,
	}
	wantA := []float64{
		1.0, -3.835825540647348, 5.520819136622227, -3.5335352194630136, 0.8485559992664768,
	}

	tf, err := ButterworthLP(10, 4, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(tf.B) != 5 || len(tf.A) != 5 {
		t.Fatalf("len(B)=%d len(A)=%d, want 5", len(tf.B), len(tf.A))
	}
	for i := range wantB {
		if math.Abs(tf.B[i]-wantB[i]) > 1e-15 {
			t.Fatalf("B[%d] = %v, want %v", i, tf.B[i], wantB[i])
		}
		if math.Abs(tf.A[i]-wantA[i]) > 1e-9 {
			t.Fatalf("A[%d] = %v, want %v", i, tf.A[i], wantA[i])
		}
	}
}

func TestButterworthLPOrder(t *testing.T) {
	for order := 1; order <= 8; order++ {
		tf, err := ButterworthLP(100, order, 1000)
		if err != nil {
			t.Fatalf("order %d: %v", order, err)
		}
		if tf.Order() != order {
			t.Fatalf("order %d: got %d", order, tf.Order())
		}
		if len(tf.B) != len(tf.A) {
			t.Fatalf("order %d: len(B)=%d len(A)=%d", order, len(tf.B), len(tf.A))
		}
	}
}

func TestButterworthLPMinus3dBAtCutoff(t *testing.T) {
	sr := 1000.0
	cutoffs := []struct {
		fc    float64
		dcTol float64
	}{
		{0.1, 1e-9},
		{0.5, 1e-10},
		{1, 1e-11},
		{5, 1e-12},
		{10, 1e-12},
		{50, 1e-13},
		{400, 1e-13},
	}
	for _, order := range []int{1, 2, 3, 4, 5, 6} {
		for _, c := range cutoffs {
			s, err := ButterworthLPSections(c.fc, order, sr)
			if err != nil {
				t.Fatal(err)
			}
			if got := s.MagnitudeDB(c.fc, sr); math.Abs(got+3.0103) > 0.01 {
				t.Fatalf("order %d fc %v: %v dB at cutoff, want -3.01", order, c.fc, got)
			}
			if got := s.DCGain(); math.Abs(got-1) > c.dcTol {
				t.Fatalf("order %d fc %v: DC gain %v, want 1 within %g", order, c.fc, got, c.dcTol)
			}
		}
	}
}

func TestButterworthLPSectionsLayout(t *testing.T) {
	for order := 1; order <= 8; order++ {
		s, err := ButterworthLPSections(20, order, 1000)
		if err != nil {
			t.Fatalf("order %d: %v", order, err)
		}
		if len(s) != (order+1)/2 {
			t.Fatalf("order %d: %d sections, want %d", order, len(s), (order+1)/2)
		}
		if s.Order() != order {
			t.Fatalf("order %d: cascade order %d", order, s.Order())
		}
		for i, sec := range s {
			if sec.Order() > 2 {
				t.Fatalf("order %d: section %d has order %d", order, i, sec.Order())
			}
		}
	}
}

func TestButterworthLPExpandsSections(t *testing.T) {
	s, err := ButterworthLPSections(50, 5, 1000)
	if err != nil {
		t.Fatal(err)
	}
	tf, err := ButterworthLP(50, 5, 1000)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []float64{0, 20, 50, 120, 300} {
		want := s.MagnitudeDB(f, 1000)
		if got := tf.MagnitudeDB(f, 1000); math.Abs(got-want) > 1e-9 {
			t.Fatalf("%v Hz: expanded %v dB, cascade %v dB", f, got, want)
		}
	}
}

func TestButterworthLPSteeperWithOrder(t *testing.T) {
	sr := 1000.0
	prev := 0.0
	for _, order := range []int{1, 2, 4, 6} {
		tf, _ := ButterworthLP(20, order, sr)
		atten := tf.MagnitudeDB(100, sr)
		if atten >= prev {
			t.Fatalf("order %d: %v dB at 100 Hz, not steeper than %v", order, atten, prev)
		}
		prev = atten
	}
}

func TestButterworthLPRejectsInvalid(t *testing.T) {
	if _, err := ButterworthLP(500, 4, 1000); !errors.Is(err, ErrAboveNyquist) {
		t.Fatalf("cutoff at nyquist: err = %v", err)
	}
	if _, err := ButterworthLP(700, 4, 1000); !errors.Is(err, ErrAboveNyquist) {
		t.Fatalf("cutoff above nyquist: err = %v", err)
	}
	if _, err := ButterworthLP(10, 0, 1000); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("order 0: err = %v", err)
	}
	if _, err := ButterworthLP(10, 4, 0); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("sample rate 0: err = %v", err)
	}
	if _, err := ButterworthLPSections(10, -1, 1000); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("sections order -1: err = %v", err)
	}
}
