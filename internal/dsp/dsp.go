// Package dsp implements the streaming filter primitives of the engine
// audio pipeline: one-pole and Butterworth low-pass stages, a first
// difference, circular FIR convolution, band-limited timing jitter, and
// adaptive leveling.
//
// Every filter satisfies the same contract: Process consumes one sample
// and produces one sample, carrying whatever state the algorithm needs
// between calls. Filters are not safe for concurrent use.
package dsp

import "math"

// Filter is the single-sample streaming contract shared by all stages.
// Implementations may vectorize internally but must not expose it.
type Filter interface {
	Process(sample float64) float64
}

// FlushSubnormal zeroes subnormal values. Sustained subnormal arithmetic
// is dramatically slower on common CPUs, so recursive filters flush to
// zero once a decaying signal falls below the normal float range.
func FlushSubnormal(v float64) float64 {
	if v != 0 && math.Abs(v) < math.SmallestNonzeroFloat32 {
		return 0
	}
	return v
}
