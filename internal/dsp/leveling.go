package dsp

import "math"

// Leveling filter tuning. The decay keeps the peak estimate alive
// through frame-timing gaps (~2 s to fall to 37% at 44.1 kHz) and the
// gain smoothing spreads level changes over ~16 ms so gain steps never
// read as clicks.
const (
	levelerPeakDecay     = 0.99999
	levelerGainSmoothing = 0.001
)

// LevelingFilter is an automatic gain control stage. It tracks a slowly
// decaying peak envelope, derives the gain that would bring that peak to
// the target level, clamps it to [MinGain, MaxGain], and eases the
// applied gain toward it.
type LevelingFilter struct {
	// Target is the output peak level the leveler steers toward.
	Target float64

	// MinGain and MaxGain bound the applied gain.
	MinGain float64
	MaxGain float64

	peak float64
	gain float64
}

// NewLevelingFilter creates a leveler with the given target level and
// gain bounds.
func NewLevelingFilter(target, minGain, maxGain float64) *LevelingFilter {
	gain := 1.0
	if gain < minGain {
		gain = minGain
	} else if gain > maxGain {
		gain = maxGain
	}
	return &LevelingFilter{
		Target:  target,
		MinGain: minGain,
		MaxGain: maxGain,
		peak:    target,
		gain:    gain,
	}
}

// Process applies adaptive leveling to one sample.
func (f *LevelingFilter) Process(sample float64) float64 {
	f.peak *= levelerPeakDecay
	if a := math.Abs(sample); a > f.peak {
		f.peak = a
	}

	if f.peak == 0 {
		return 0
	}

	gain := f.Target / f.peak
	if gain < f.MinGain {
		gain = f.MinGain
	} else if gain > f.MaxGain {
		gain = f.MaxGain
	}

	f.gain = (1-levelerGainSmoothing)*f.gain + levelerGainSmoothing*gain

	return sample * f.gain
}

// Gain returns the currently applied (smoothed) gain.
func (f *LevelingFilter) Gain() float64 { return f.gain }
