package pi

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidBounds = errors.New("pi: clamp bounds must be finite with min <= max")
	ErrInvalidGain   = errors.New("pi: gains must be finite")
)

// Config holds the controller parameters.
type Config struct {
	Kp   float64
	Ki   float64
	Gain float64 // overall loop gain applied to Kp and Ki at construction

	IntegralMin float64
	IntegralMax float64
	OutputMin   float64
	OutputMax   float64
}

// DefaultConfig returns unit gains with integral and output limits of ±10.
func DefaultConfig() Config {
	return Config{
		Kp:          1,
		Ki:          1,
		Gain:        1,
		IntegralMin: -10,
		IntegralMax: 10,
		OutputMin:   -10,
		OutputMax:   10,
	}
}

// Validate reports whether cfg describes a usable controller.
func (c Config) Validate() error {
	for _, g := range []float64{c.Kp, c.Ki, c.Gain} {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return fmt.Errorf("%w: kp=%v ki=%v gain=%v", ErrInvalidGain, c.Kp, c.Ki, c.Gain)
		}
	}
	if !validRange(c.IntegralMin, c.IntegralMax) {
		return fmt.Errorf("%w: integral [%v, %v]", ErrInvalidBounds, c.IntegralMin, c.IntegralMax)
	}
	if !validRange(c.OutputMin, c.OutputMax) {
		return fmt.Errorf("%w: output [%v, %v]", ErrInvalidBounds, c.OutputMin, c.OutputMax)
	}
	return nil
}

func validRange(lo, hi float64) bool {
	return !math.IsNaN(lo) && !math.IsNaN(hi) && !math.IsInf(lo, 0) && !math.IsInf(hi, 0) && lo <= hi
}

// Controller is a clamped PI controller.
type Controller struct {
	kp, ki   float64
	integral float64

	integralMin, integralMax float64
	outputMin, outputMax     float64
}

// New returns a Controller whose integral starts at zero, or at the nearer
// integral bound when zero lies outside them.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		kp:          cfg.Gain * cfg.Kp,
		ki:          cfg.Gain * cfg.Ki,
		integralMin: cfg.IntegralMin,
		integralMax: cfg.IntegralMax,
		outputMin:   cfg.OutputMin,
		outputMax:   cfg.OutputMax,
	}
	c.Reset()
	return c, nil
}

// Update accumulates e*dt into the integral and returns the clamped control
// signal. A non-finite error or time step is treated as zero so it cannot
// poison the integral.
func (c *Controller) Update(e, dt float64) float64 {
	e = finiteOrZero(e)
	dt = finiteOrZero(dt)

	c.integral = clamp(c.integral+e*dt, c.integralMin, c.integralMax)
	return c.output(e)
}

// Override replaces the integral with value, bypassing accumulation for this
// call only, and returns the control signal for error e. The value is
// clamped to the integral limits; in-range values are stored exactly.
func (c *Controller) Override(e, value float64) float64 {
	e = finiteOrZero(e)
	c.integral = clamp(finiteOrZero(value), c.integralMin, c.integralMax)
	return c.output(e)
}

func (c *Controller) output(e float64) float64 {
	return clamp(c.kp*e+c.ki*c.integral, c.outputMin, c.outputMax)
}

// Integral returns the accumulated integral.
func (c *Controller) Integral() float64 {
	return c.integral
}

// Gains returns the loop-gain-scaled proportional and integral gains.
func (c *Controller) Gains() (kp, ki float64) {
	return c.kp, c.ki
}

// IntegralLimits returns the integral clamp bounds.
func (c *Controller) IntegralLimits() (lo, hi float64) {
	return c.integralMin, c.integralMax
}

// OutputLimits returns the output clamp bounds.
func (c *Controller) OutputLimits() (lo, hi float64) {
	return c.outputMin, c.outputMax
}

// Reset sets the integral back to its starting value, zero clamped to the
// integral limits.
func (c *Controller) Reset() {
	c.integral = clamp(0, c.integralMin, c.integralMax)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
