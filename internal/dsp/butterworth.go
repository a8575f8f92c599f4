package dsp

import "math"

// ButterworthLowPassFilter is a second-order (biquad) Butterworth
// low-pass stage. It is the pipeline's antialiasing and noise-shaping
// workhorse: steeper than the one-pole stage with maximally flat
// passband response.
type ButterworthLowPassFilter struct {
	cutoff     float64
	sampleRate float64

	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// NewButterworthLowPass creates a biquad tuned to the given cutoff
// frequency at the given sample rate.
func NewButterworthLowPass(cutoff, sampleRate float64) *ButterworthLowPassFilter {
	f := &ButterworthLowPassFilter{}
	f.SetCutoffFrequency(cutoff, sampleRate)
	return f
}

// SetCutoffFrequency retunes the biquad coefficients via the bilinear
// transform. Cutoff is clamped below the Nyquist frequency; an
// unchanged cutoff is a no-op so repeated retuning leaves the delay
// line alone.
func (f *ButterworthLowPassFilter) SetCutoffFrequency(cutoff, sampleRate float64) {
	const nyquistGuard = 0.499
	if cutoff > sampleRate*nyquistGuard {
		cutoff = sampleRate * nyquistGuard
	}
	if cutoff <= 0 {
		cutoff = 1
	}
	if cutoff == f.cutoff && sampleRate == f.sampleRate {
		return
	}
	f.cutoff = cutoff
	f.sampleRate = sampleRate

	ita := 1.0 / math.Tan(math.Pi*cutoff/sampleRate)
	q := math.Sqrt2

	f.b0 = 1.0 / (1.0 + q*ita + ita*ita)
	f.b1 = 2.0 * f.b0
	f.b2 = f.b0
	f.a1 = 2.0 * (ita*ita - 1.0) * f.b0
	f.a2 = -(1.0 - q*ita + ita*ita) * f.b0

	// Collapse the output slope carried over from the old tuning. The
	// new pole pair amplifies it by 1/(1-|pole|), which is unbounded as
	// the cutoff approaches DC; flattening the delay line keeps the
	// retune transient within the current output level.
	f.y2 = f.y1
}

// Process advances the biquad by one sample.
func (f *ButterworthLowPassFilter) Process(sample float64) float64 {
	y := f.b0*sample + f.b1*f.x1 + f.b2*f.x2 + f.a1*f.y1 + f.a2*f.y2
	y = FlushSubnormal(y)

	f.x2 = f.x1
	f.x1 = sample
	f.y2 = f.y1
	f.y1 = y

	return y
}

// Reset clears the delay line without touching the coefficients.
func (f *ButterworthLowPassFilter) Reset() {
	f.x1, f.x2 = 0, 0
	f.y1, f.y2 = 0, 0
}
