// Package coordinate defines the 9-dimensional semantic coordinate space and
// the canonical fixed-precision key encoding used as the store's primary key.
//
// All vectors are rounded to Precision decimal places before key encoding.
// The precision is a system-wide constant: it determines which distinct inputs
// collide on the same coordinate key, so it must never vary between writers of
// the same store.
package coordinate

import "math"

// Dimensions is the number of axes in the coordinate space.
const Dimensions = 9

// Precision is the number of decimal places kept when rounding axis values
// for key encoding.
const Precision = 3

// Axes lists the axis names in canonical encoding order. The first triple is
// conventionally the primary semantic group, the second and third triples the
// secondary and tertiary groups.
var Axes = [Dimensions]string{"x", "y", "z", "a", "b", "c", "d", "e", "f"}

// Vector is a point in the 9-dimensional coordinate space.
type Vector [Dimensions]float64

// roundScale is 10^Precision.
const roundScale = 1000

// Round returns a copy of v with every axis rounded to Precision decimals.
func (v Vector) Round() Vector {
	var out Vector
	for i, x := range v {
		out[i] = math.Round(x*roundScale) / roundScale
		if out[i] == 0 {
			out[i] = 0 // normalize negative zero so keys stay canonical
		}
	}
	return out
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
