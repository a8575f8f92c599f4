package dsp

import (
	"github.com/tphakala/simd/cpu"
	"github.com/tphakala/simd/f64"
)

// MaxConvolutionTaps caps impulse-response length. Convolution cost is
// O(taps) per sample, so the cap bounds worst-case render latency.
// 4000 taps at 44.1 kHz is ~90 ms of reverb tail.
const MaxConvolutionTaps = 4000

// ConvolutionFilter is a fixed-length FIR implemented as a circular
// correlation: each sample is stored at the current shift offset, the
// impulse response is folded against the register starting there, and
// the offset walks backwards, wrapping at zero.
//
// The inner product runs through SIMD-accelerated dot products split at
// the register's wrap point; the vectorization never leaks past Process.
type ConvolutionFilter struct {
	impulseResponse []float64
	shiftRegister   []float64
	shiftOffset     int
}

// NewConvolutionFilter creates a filter with the given impulse response.
// The response length is clamped to MaxConvolutionTaps. An empty
// response yields the identity filter so a missing impulse-response
// asset degrades to a pass-through rather than an error.
func NewConvolutionFilter(impulseResponse []float64) *ConvolutionFilter {
	if len(impulseResponse) == 0 {
		impulseResponse = []float64{1.0}
	}
	if len(impulseResponse) > MaxConvolutionTaps {
		impulseResponse = impulseResponse[:MaxConvolutionTaps]
	}

	ir := make([]float64, len(impulseResponse))
	copy(ir, impulseResponse)

	return &ConvolutionFilter{
		impulseResponse: ir,
		shiftRegister:   make([]float64, len(ir)),
	}
}

// Len returns the impulse-response length in taps.
func (f *ConvolutionFilter) Len() int { return len(f.impulseResponse) }

// ImpulseResponse returns the filter's impulse response. The slice is
// the filter's own storage; callers must not mutate it mid-stream.
func (f *ConvolutionFilter) ImpulseResponse() []float64 { return f.impulseResponse }

// Process pushes one sample through the FIR and returns the convolved
// output.
func (f *ConvolutionFilter) Process(sample float64) float64 {
	f.shiftRegister[f.shiftOffset] = sample

	// The register is circular: taps [0, n-off) align with register
	// [off, n), the remainder wraps to the register's start.
	n := len(f.impulseResponse)
	split := n - f.shiftOffset

	result := f64.DotProductUnsafe(f.impulseResponse[:split], f.shiftRegister[f.shiftOffset:])
	if f.shiftOffset > 0 {
		result += f64.DotProductUnsafe(f.impulseResponse[split:], f.shiftRegister[:f.shiftOffset])
	}

	f.shiftOffset--
	if f.shiftOffset < 0 {
		f.shiftOffset = n - 1
	}

	return result
}

// Reset clears the shift register, keeping the impulse response.
func (f *ConvolutionFilter) Reset() {
	clear(f.shiftRegister)
	f.shiftOffset = 0
}

// SIMDInfo reports the vector instruction set backing the dot products.
func (f *ConvolutionFilter) SIMDInfo() string { return cpu.Info() }
