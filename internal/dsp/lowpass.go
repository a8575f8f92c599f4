package dsp

import "math"

// LowPassFilter is a first-order RC low-pass stage. The engine pipeline
// uses it for DC estimation (subtracting its output DC-blocks a signal).
type LowPassFilter struct {
	cutoff float64 // Hz
	dt     float64 // sample period in seconds
	y      float64
}

// NewLowPassFilter creates a one-pole low-pass with the given cutoff
// frequency and sample rate.
func NewLowPassFilter(cutoff, sampleRate float64) *LowPassFilter {
	return &LowPassFilter{cutoff: cutoff, dt: 1.0 / sampleRate}
}

// SetCutoffFrequency retunes the filter without clearing its state.
func (f *LowPassFilter) SetCutoffFrequency(cutoff float64) {
	f.cutoff = cutoff
}

// Process advances the filter by one sample.
func (f *LowPassFilter) Process(sample float64) float64 {
	rc := 1.0 / (2.0 * math.Pi * f.cutoff)
	alpha := f.dt / (rc + f.dt)
	f.y += alpha * (sample - f.y)
	f.y = FlushSubnormal(f.y)
	return f.y
}

// Reset clears the filter state.
func (f *LowPassFilter) Reset() { f.y = 0 }

// DerivativeFilter outputs the first difference of its input scaled by
// the sample rate, approximating d/dt of the incoming signal.
type DerivativeFilter struct {
	dt   float64
	prev float64
}

// NewDerivativeFilter creates a derivative stage for the given sample rate.
func NewDerivativeFilter(sampleRate float64) *DerivativeFilter {
	return &DerivativeFilter{dt: 1.0 / sampleRate}
}

// Process returns (sample - previous) / dt.
func (f *DerivativeFilter) Process(sample float64) float64 {
	d := (sample - f.prev) / f.dt
	f.prev = sample
	return d
}

// Reset clears the difference history.
func (f *DerivativeFilter) Reset() { f.prev = 0 }
