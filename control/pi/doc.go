// Package pi implements a clamped proportional-integral controller.
//
// The integral is accumulated with forward Euler and clamped to
// [IntegralMin, IntegralMax] on every update (anti-windup by clamping). The
// output kp*e + ki*integral is clamped to [OutputMin, OutputMax]. The
// integral starts, and resets, at zero clamped into its bounds.
//
// The proportional and integral gains are multiplied by Config.Gain once, in
// [New]; Update never rescales them.
package pi
