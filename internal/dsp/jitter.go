package dsp

import "math"

// JitterFilter perturbs sample timing by interpolated lookback into a
// short history of recent samples. The lookback position is driven by a
// low-pass filtered random walk, so the perturbation sounds like
// mechanical wobble rather than added white noise.
type JitterFilter struct {
	history []float64
	offset  int

	noiseFilter *ButterworthLowPassFilter
	noise       *NoiseSource
	scale       float64
}

// NewJitterFilter creates a jitter stage with maxJitter samples of
// lookback depth. The random position signal is band-limited below
// noiseCutoff at the given audio sample rate.
func NewJitterFilter(maxJitter int, noiseCutoff, sampleRate float64, seed uint32) *JitterFilter {
	if maxJitter < 1 {
		maxJitter = 1
	}
	return &JitterFilter{
		history:     make([]float64, maxJitter),
		noiseFilter: NewButterworthLowPass(noiseCutoff, sampleRate),
		noise:       NewNoiseSource(seed),
	}
}

// SetScale adjusts jitter intensity in [0, 1]. Zero disables the effect.
func (f *JitterFilter) SetScale(scale float64) { f.scale = scale }

// Scale returns the current jitter intensity.
func (f *JitterFilter) Scale() float64 { return f.scale }

// SetNoiseCutoff retunes the band limit on the lookback position signal.
func (f *JitterFilter) SetNoiseCutoff(cutoff, sampleRate float64) {
	f.noiseFilter.SetCutoffFrequency(cutoff, sampleRate)
}

// Process appends the sample to the history and returns a value read
// back from a band-limited random position within it.
func (f *JitterFilter) Process(sample float64) float64 {
	depth := len(f.history)

	f.history[f.offset] = sample
	f.offset++
	if f.offset >= depth {
		f.offset = 0
	}

	if depth <= 1 || f.scale <= 0 {
		return sample
	}

	random := f.noise.Float01() * float64(depth-1)
	s := f.noiseFilter.Process(random * f.scale)

	s0 := math.Floor(s)
	s1 := math.Ceil(s)
	s0 = min(max(s0, 0), float64(depth-1))
	s1 = min(max(s1, 0), float64(depth-1))
	frac := s - s0

	i0 := int(s0) + f.offset
	i1 := int(s1) + f.offset
	if i0 >= depth {
		i0 -= depth
	}
	if i1 >= depth {
		i1 -= depth
	}

	return f.history[i1]*frac + f.history[i0]*(1-frac)
}

// Reset clears the history and the band-limiting filter state.
func (f *JitterFilter) Reset() {
	clear(f.history)
	f.offset = 0
	f.noiseFilter.Reset()
}
