// Package floatutils provides utilities for working with floats
package floatutils

import "math"

// Clip clips value to [min, max]
func Clip(value, min, max float64) float64 {
	return math.Max(math.Min(value, max), min)
}

// ClipSlice clips each element of values in place to [min, max] and
// returns values
func ClipSlice(values []float64, min, max float64) []float64 {
	for i := range values {
		values[i] = Clip(values[i], min, max)
	}
	return values
}

// Finite returns whether no element of values is infinite or NaN
func Finite(values []float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
