package synth

import (
	"errors"
	"fmt"
)

// RenderPolicy selects how render passes are scheduled.
type RenderPolicy int

const (
	// RenderPolicyThread runs a dedicated goroutine that renders
	// continuously, waking on new input with a short timed wait. Best
	// for steady low-latency operation.
	RenderPolicyThread RenderPolicy = iota

	// RenderPolicyOnRead renders inside ReadAudioOutput, running as
	// many catch-up passes as the request needs (bounded). For hosts
	// that cannot spare an extra goroutine.
	RenderPolicyOnRead
)

// AudioParameters is the live-tunable control surface of the
// synthesizer. Reads and writes go through the synthesizer lock and the
// render pass works on a by-value copy, so retuning never tears
// mid-render.
type AudioParameters struct {
	// Volume scales the leveled output signal.
	Volume float64

	// Convolution mixes the convolution-reverb response into the dry
	// signal, 0 = dry, 1 = fully convolved.
	Convolution float64

	// HighFrequencyMix blends the derivative (rate-of-change) term
	// against the DC-blocked signal.
	HighFrequencyMix float64

	// InputSampleNoise is the timing-jitter intensity in [0, 1];
	// InputSampleNoiseCutoff band-limits the jitter position signal.
	InputSampleNoise       float64
	InputSampleNoiseCutoff float64

	// AirNoise is the ambient-turbulence modulation amount in [0, 1];
	// AirNoiseCutoff band-limits the turbulence noise.
	AirNoise       float64
	AirNoiseCutoff float64

	// Leveler configuration, forwarded to the adaptive gain stage.
	LevelerTarget  float64
	LevelerMinGain float64
	LevelerMaxGain float64
}

// DefaultAudioParameters returns the stock engine voicing.
func DefaultAudioParameters() AudioParameters {
	return AudioParameters{
		Volume:                 10.0,
		Convolution:            1.0,
		HighFrequencyMix:       0.01,
		InputSampleNoise:       0.5,
		InputSampleNoiseCutoff: 10000.0,
		AirNoise:               1.0,
		AirNoiseCutoff:         2000.0,
		LevelerTarget:          30000.0,
		LevelerMinGain:         0.00001,
		LevelerMaxGain:         100.0,
	}
}

// Parameters configures a Synthesizer at construction.
type Parameters struct {
	// InputChannels is the number of audio-contributing channels
	// (typically one per exhaust outlet). Fixed for the synthesizer's
	// lifetime.
	InputChannels int

	// InputBufferSize is the per-channel capacity, in audio-rate
	// samples, of the resampled input rings. It must comfortably hold
	// one physics frame's worth of output-rate samples.
	InputBufferSize int

	// AudioBufferSize is the PCM16 output ring capacity.
	AudioBufferSize int

	// InputSampleRate is the physics step rate in Hz; AudioSampleRate
	// is the fixed output PCM rate in Hz.
	InputSampleRate float64
	AudioSampleRate float64

	// Policy selects the render scheduling mode.
	Policy RenderPolicy

	// MinRenderSamples and MaxRenderSamples bound the chunk size of a
	// single render pass. Zero selects the defaults.
	MinRenderSamples int
	MaxRenderSamples int

	// Audio is the initial control surface.
	Audio AudioParameters
}

// ErrInvalidParameters indicates an unusable synthesizer configuration.
var ErrInvalidParameters = errors.New("invalid synthesizer parameters")

// Validate checks the parameter set for internal consistency.
func (p *Parameters) Validate() error {
	if p.InputChannels < 1 {
		return fmt.Errorf("%w: at least one input channel required", ErrInvalidParameters)
	}
	if p.InputBufferSize < 1 || p.AudioBufferSize < 1 {
		return fmt.Errorf("%w: buffer sizes must be positive", ErrInvalidParameters)
	}
	if p.InputSampleRate <= 0 || p.AudioSampleRate <= 0 {
		return fmt.Errorf("%w: sample rates must be positive", ErrInvalidParameters)
	}
	if p.MinRenderSamples < 0 || p.MaxRenderSamples < 0 {
		return fmt.Errorf("%w: render chunk bounds must be non-negative", ErrInvalidParameters)
	}
	if p.MinRenderSamples > 0 && p.MaxRenderSamples > 0 && p.MinRenderSamples > p.MaxRenderSamples {
		return fmt.Errorf("%w: min render chunk exceeds max", ErrInvalidParameters)
	}
	return nil
}
