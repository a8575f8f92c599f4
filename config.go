package enginesim

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jak6jak/engine-sim/internal/synth"
)

// Configuration errors.
var (
	// ErrInvalidConfig indicates a configuration that fails validation.
	ErrInvalidConfig = errors.New("enginesim: invalid config")

	// ErrChannelMismatch indicates a physics engine whose channel count
	// disagrees with the configured pipeline.
	ErrChannelMismatch = errors.New("enginesim: channel count mismatch")
)

// Render policy names accepted in Config.RenderPolicy.
const (
	PolicyThread = "thread"  // dedicated render goroutine (default)
	PolicyOnRead = "on-read" // render inline in ReadAudioOutput
)

// Default configuration values.
const (
	DefaultSimulationFrequency = 10000.0 // physics steps per second
	DefaultSimulationSpeed     = 1.0
	DefaultTargetLatency       = 0.1 // seconds of buffered synthesizer input
	DefaultAudioSampleRate     = 44100.0
	DefaultInputBufferSize     = 8192
	DefaultAudioBufferSize     = 44100
)

// ChannelConfig describes one audio channel of the engine: an optional
// impulse-response WAV file and its playback volume.
type ChannelConfig struct {
	// ImpulseResponse is a path to a WAV file convolved with the
	// channel's signal. Empty means an identity (pass-through) stage.
	ImpulseResponse string `yaml:"impulse_response"`

	// Volume scales the impulse response on load. Zero means 1.0.
	Volume float64 `yaml:"volume"`
}

// AudioConfig is the YAML shape of the synthesizer's live control
// surface.
type AudioConfig struct {
	Volume                 float64 `yaml:"volume"`
	Convolution            float64 `yaml:"convolution"`
	HighFrequencyMix       float64 `yaml:"high_frequency_mix"`
	InputSampleNoise       float64 `yaml:"input_sample_noise"`
	InputSampleNoiseCutoff float64 `yaml:"input_sample_noise_cutoff"`
	AirNoise               float64 `yaml:"air_noise"`
	AirNoiseCutoff         float64 `yaml:"air_noise_cutoff"`
	LevelerTarget          float64 `yaml:"leveler_target"`
	LevelerMinGain         float64 `yaml:"leveler_min_gain"`
	LevelerMaxGain         float64 `yaml:"leveler_max_gain"`
}

// Config is the fully resolved parameter bundle a Simulator is built
// from. Load it from YAML or start from DefaultConfig and adjust.
type Config struct {
	// Channels lists the engine's audio channels, one per exhaust
	// system. At least one is required.
	Channels []ChannelConfig `yaml:"channels"`

	// SimulationFrequency is the physics step rate in Hz.
	SimulationFrequency float64 `yaml:"simulation_frequency"`

	// SimulationSpeed scales simulated time against wall clock.
	SimulationSpeed float64 `yaml:"simulation_speed"`

	// TargetLatency is the synthesizer input latency (seconds) the
	// per-frame step feedback steers toward.
	TargetLatency float64 `yaml:"target_latency"`

	AudioSampleRate float64 `yaml:"audio_sample_rate"`
	InputBufferSize int     `yaml:"input_buffer_size"`
	AudioBufferSize int     `yaml:"audio_buffer_size"`

	// RenderPolicy selects the render scheduling mode: "thread" or
	// "on-read".
	RenderPolicy string `yaml:"render_policy"`

	// MinRenderSamples and MaxRenderSamples bound the per-pass render
	// batch size. Zero selects the built-in defaults.
	MinRenderSamples int `yaml:"min_render_samples"`
	MaxRenderSamples int `yaml:"max_render_samples"`

	Audio AudioConfig `yaml:"audio"`
}

// DefaultConfig returns a single-channel configuration with the
// standard control-surface values.
func DefaultConfig() *Config {
	def := synth.DefaultAudioParameters()
	return &Config{
		Channels:            []ChannelConfig{{Volume: 1.0}},
		SimulationFrequency: DefaultSimulationFrequency,
		SimulationSpeed:     DefaultSimulationSpeed,
		TargetLatency:       DefaultTargetLatency,
		AudioSampleRate:     DefaultAudioSampleRate,
		InputBufferSize:     DefaultInputBufferSize,
		AudioBufferSize:     DefaultAudioBufferSize,
		RenderPolicy:        PolicyThread,
		Audio: AudioConfig{
			Volume:                 def.Volume,
			Convolution:            def.Convolution,
			HighFrequencyMix:       def.HighFrequencyMix,
			InputSampleNoise:       def.InputSampleNoise,
			InputSampleNoiseCutoff: def.InputSampleNoiseCutoff,
			AirNoise:               def.AirNoise,
			AirNoiseCutoff:         def.AirNoiseCutoff,
			LevelerTarget:          def.LevelerTarget,
			LevelerMinGain:         def.LevelerMinGain,
			LevelerMaxGain:         def.LevelerMaxGain,
		},
	}
}

// LoadConfig reads a YAML configuration file over DefaultConfig and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("enginesim: read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("enginesim: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("%w: at least one channel required", ErrInvalidConfig)
	}
	if c.SimulationFrequency <= 0 {
		return fmt.Errorf("%w: simulation_frequency must be positive, got %g", ErrInvalidConfig, c.SimulationFrequency)
	}
	if c.SimulationSpeed <= 0 {
		return fmt.Errorf("%w: simulation_speed must be positive, got %g", ErrInvalidConfig, c.SimulationSpeed)
	}
	if c.TargetLatency <= 0 {
		return fmt.Errorf("%w: target_latency must be positive, got %g", ErrInvalidConfig, c.TargetLatency)
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("%w: audio_sample_rate must be positive, got %g", ErrInvalidConfig, c.AudioSampleRate)
	}
	if c.InputBufferSize <= 0 || c.AudioBufferSize <= 0 {
		return fmt.Errorf("%w: buffer sizes must be positive", ErrInvalidConfig)
	}
	if c.MinRenderSamples < 0 || c.MaxRenderSamples < 0 {
		return fmt.Errorf("%w: render batch sizes cannot be negative", ErrInvalidConfig)
	}
	if c.MaxRenderSamples > 0 && c.MinRenderSamples > c.MaxRenderSamples {
		return fmt.Errorf("%w: min_render_samples %d exceeds max_render_samples %d",
			ErrInvalidConfig, c.MinRenderSamples, c.MaxRenderSamples)
	}
	if _, err := c.renderPolicy(); err != nil {
		return err
	}
	return nil
}

// renderPolicy maps the YAML policy name onto the synthesizer enum.
func (c *Config) renderPolicy() (synth.RenderPolicy, error) {
	switch c.RenderPolicy {
	case "", PolicyThread:
		return synth.RenderPolicyThread, nil
	case PolicyOnRead:
		return synth.RenderPolicyOnRead, nil
	default:
		return 0, fmt.Errorf("%w: unknown render_policy %q", ErrInvalidConfig, c.RenderPolicy)
	}
}

// audioParameters converts the YAML audio section to the synthesizer's
// control surface.
func (c *Config) audioParameters() synth.AudioParameters {
	return synth.AudioParameters{
		Volume:                 c.Audio.Volume,
		Convolution:            c.Audio.Convolution,
		HighFrequencyMix:       c.Audio.HighFrequencyMix,
		InputSampleNoise:       c.Audio.InputSampleNoise,
		InputSampleNoiseCutoff: c.Audio.InputSampleNoiseCutoff,
		AirNoise:               c.Audio.AirNoise,
		AirNoiseCutoff:         c.Audio.AirNoiseCutoff,
		LevelerTarget:          c.Audio.LevelerTarget,
		LevelerMinGain:         c.Audio.LevelerMinGain,
		LevelerMaxGain:         c.Audio.LevelerMaxGain,
	}
}
