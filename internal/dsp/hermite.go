package dsp

import "math"

// Hermite basis coefficients for 4-point, 3rd-order interpolation.
// Formula: y = ((a*x + b)*x + c)*x + d.
const (
	hermiteCoeff0_5 = 0.5
	hermiteCoeff1_5 = 1.5
	hermiteCoeff2_5 = 2.5
)

// HermiteResampler performs cubic (4-point Hermite) resampling at a
// fixed ratio. The pipeline uses it to convert impulse responses whose
// file sample rate differs from the synthesizer's audio rate; quality is
// plenty for reverb tails and the state machine stays tiny.
type HermiteResampler struct {
	ratio   float64
	phase   float64
	history [4]float64
}

// NewHermiteResampler creates a resampler producing ratio output samples
// per input sample.
func NewHermiteResampler(ratio float64) *HermiteResampler {
	return &HermiteResampler{ratio: ratio}
}

// Process resamples one block of input, appending output to dst and
// returning the extended slice.
func (h *HermiteResampler) Process(dst, input []float64) []float64 {
	if len(input) == 0 {
		return dst
	}

	if cap(dst)-len(dst) == 0 {
		need := int(math.Ceil(float64(len(input)) * h.ratio))
		grown := make([]float64, len(dst), len(dst)+need+1)
		copy(grown, dst)
		dst = grown
	}

	for _, sample := range input {
		h.history[3] = h.history[2]
		h.history[2] = h.history[1]
		h.history[1] = h.history[0]
		h.history[0] = sample

		for h.phase < 1.0 {
			dst = append(dst, h.interpolate(h.phase))
			h.phase += 1.0 / h.ratio
		}
		h.phase -= 1.0
	}

	return dst
}

// interpolate evaluates the Hermite polynomial at fractional position x
// between the two middle history points.
func (h *HermiteResampler) interpolate(x float64) float64 {
	y0 := h.history[3] // oldest
	y1 := h.history[2]
	y2 := h.history[1]
	y3 := h.history[0] // newest

	coefA := -hermiteCoeff0_5*y0 + hermiteCoeff1_5*y1 - hermiteCoeff1_5*y2 + hermiteCoeff0_5*y3
	coefB := y0 - hermiteCoeff2_5*y1 + 2*y2 - hermiteCoeff0_5*y3
	coefC := -hermiteCoeff0_5*y0 + hermiteCoeff0_5*y2
	coefD := y1

	return ((coefA*x+coefB)*x+coefC)*x + coefD
}

// Reset clears phase and history.
func (h *HermiteResampler) Reset() {
	h.phase = 0
	h.history = [4]float64{}
}
