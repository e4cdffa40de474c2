package krotov

import "math"

// Shape is an update shape S(t): a real-valued function of time with values
// in [0, 1].
type Shape func(t float64) float64

// OneShape leaves the pulse update unscaled.
func OneShape(t float64) float64 { return 1.0 }

// ZeroShape suppresses the pulse update entirely, freezing the control at
// its guess.
func ZeroShape(t float64) float64 { return 0.0 }

// FlatTop returns a shape that switches on smoothly over tRise after
// tStart, holds at 1, and switches off smoothly over tFall before tStop.
// Outside [tStart, tStop] the shape is zero. The ramps are sin² ramps, so
// S(tStart) = S(tStop) = 0 exactly.
func FlatTop(tStart, tStop, tRise, tFall float64) Shape {
	return func(t float64) float64 {
		if t < tStart || t > tStop {
			return 0.0
		}
		if t < tStart+tRise {
			f := math.Sin(0.5 * math.Pi * (t - tStart) / tRise)
			return f * f
		}
		if t > tStop-tFall {
			f := math.Sin(0.5 * math.Pi * (tStop - t) / tFall)
			return f * f
		}
		return 1.0
	}
}

// Blackman returns a Blackman window spanning [tStart, tStop]. Compared to
// a Gaussian it starts and ends at exactly zero, which makes it a common
// choice both for guess pulses and for update shapes.
func Blackman(tStart, tStop float64) Shape {
	const a = 0.16
	return func(t float64) float64 {
		if t < tStart || t > tStop {
			return 0.0
		}
		x := (t - tStart) / (tStop - tStart)
		return 0.5 * (1.0 - a - math.Cos(2.0*math.Pi*x) + a*math.Cos(4.0*math.Pi*x))
	}
}
