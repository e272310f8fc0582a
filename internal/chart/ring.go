// Package chart maps statistics onto drawable geometry. Every function is pure:
// the same data and animation progress always give the same geometry.
package chart

import "math"

// RingStartDeg is the angle of the first slice: 12 o'clock.
const RingStartDeg = -90.0

// Datum is one labelled value to be drawn.
type Datum struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Slice is one ring segment. Angles are in degrees, clockwise from 3 o'clock.
type Slice struct {
	Datum
	StartDeg float64 `json:"start_deg"`
	SweepDeg float64 `json:"sweep_deg"`
	// Percent is the integer share of the total, truncated; 0 when the total is 0.
	Percent int `json:"percent"`
}

// Clamp bounds animation progress to [0, 1].
func Clamp(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Ring lays out data as ring slices in the given order. At t = 1 the sweeps of a
// non-empty total add up to 360; with a zero total every sweep is 0.
func Ring(data []Datum, t float64) []Slice {
	t = Clamp(t)

	var total float64
	for _, d := range data {
		total += d.Value
	}

	slices := make([]Slice, len(data))
	start := RingStartDeg
	for i, d := range data {
		s := Slice{Datum: d, StartDeg: start}
		if total > 0 {
			s.SweepDeg = 360 * d.Value / total * t
			s.Percent = int(d.Value / total * 100)
		}
		slices[i] = s
		start += s.SweepDeg
	}
	return slices
}
