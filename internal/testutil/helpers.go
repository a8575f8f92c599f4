// Package testutil provides reusable test helpers for the audio
// pipeline tests: signal generators and slice-level assertions.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Sine generates n samples of a sine wave at freq Hz sampled at
// sampleRate, scaled by amplitude.
func Sine(n int, freq, sampleRate, amplitude float64) []float64 {
	s := make([]float64, n)
	w := 2 * math.Pi * freq / sampleRate
	for i := range s {
		s[i] = amplitude * math.Sin(w*float64(i))
	}
	return s
}

// Ramp generates n samples rising linearly from 0 by step per sample.
func Ramp(n int, step float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = float64(i) * step
	}
	return s
}

// RMS returns the root-mean-square level of a signal.
func RMS(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(s)))
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllInRange verifies that all elements are within [min, max].
func AssertAllInRange(t *testing.T, s []float64, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, "value out of range",
				"s[%d]=%f is outside range [%f, %f]", i, v, minVal, maxVal)
		}
	}
	return true
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, "value out of range",
			"value %f is outside range [%f, %f]", value, minVal, maxVal)
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual
// and expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}
