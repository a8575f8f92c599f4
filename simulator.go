package enginesim

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/jak6jak/engine-sim/internal/impulse"
	"github.com/jak6jak/engine-sim/internal/synth"
)

// AudioParameters is the synthesizer's live-tunable control surface.
type AudioParameters = synth.AudioParameters

// DefaultAudioParameters returns the standard control-surface values.
func DefaultAudioParameters() AudioParameters {
	return synth.DefaultAudioParameters()
}

const (
	// dynoBucketCount is the resolution of the torque sample ring over
	// one full four-stroke cycle.
	dynoBucketCount = 512

	// fullCycle is one four-stroke engine cycle in radians.
	fullCycle = 4 * math.Pi

	// speedFilterTimeConstant shapes the exponential smoothing of the
	// engine-speed estimate: alpha = dt / (timeConstant + dt).
	speedFilterTimeConstant = 100.0

	// stepAdjustUp and stepAdjustDown are the single-term latency
	// feedback gains applied to the per-frame step count.
	stepAdjustUp   = 1.1
	stepAdjustDown = 0.9
)

// Simulator drives fixed-timestep physics iterations per external
// frame, routes each step's output into the audio pipeline and samples
// dyno torque into a crank-angle bucket ring.
//
// Simulator is not safe for concurrent use; the frame protocol belongs
// to a single producer context. ReadAudioOutput and WaitProcessed are
// the exception: they may run from a separate consumer context, as the
// synthesizer guards its own state.
type Simulator struct {
	synth   *synth.Synthesizer
	physics PhysicsEngine

	simulationSpeed     float64
	simulationFrequency float64
	targetLatency       float64

	steps            int
	currentIteration int

	filteredSpeed float64
	lastSpeed     float64

	dynoTorque     []float64
	lastDynoSample int
}

// NewSimulator builds the full pipeline from a validated configuration:
// the synthesizer sized per the config, with each channel's impulse
// response loaded, conditioned and installed.
func NewSimulator(cfg *Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := cfg.renderPolicy()
	if err != nil {
		return nil, err
	}

	syn, err := synth.New(synth.Parameters{
		InputChannels:    len(cfg.Channels),
		InputBufferSize:  cfg.InputBufferSize,
		AudioBufferSize:  cfg.AudioBufferSize,
		InputSampleRate:  cfg.SimulationFrequency * cfg.SimulationSpeed,
		AudioSampleRate:  cfg.AudioSampleRate,
		Policy:           policy,
		MinRenderSamples: cfg.MinRenderSamples,
		MaxRenderSamples: cfg.MaxRenderSamples,
		Audio:            cfg.audioParameters(),
	})
	if err != nil {
		return nil, err
	}

	for i, ch := range cfg.Channels {
		if ch.ImpulseResponse == "" {
			continue
		}
		volume := ch.Volume
		if volume == 0 {
			volume = 1.0
		}
		r, err := impulse.LoadFile(ch.ImpulseResponse, volume, cfg.AudioSampleRate)
		if err != nil {
			syn.Close()
			return nil, err
		}
		syn.SetImpulseResponse(i, r.Samples)
	}

	return &Simulator{
		synth:               syn,
		simulationSpeed:     cfg.SimulationSpeed,
		simulationFrequency: cfg.SimulationFrequency,
		targetLatency:       cfg.TargetLatency,
		dynoTorque:          make([]float64, dynoBucketCount),
	}, nil
}

// LoadSimulation attaches the physics engine the frame protocol will
// drive. The engine's channel count must match the configuration.
func (s *Simulator) LoadSimulation(p PhysicsEngine) error {
	if p.ChannelCount() != s.synth.ChannelCount() {
		return ErrChannelMismatch
	}
	s.physics = p
	return nil
}

// Start launches the render goroutine under the thread policy.
func (s *Simulator) Start() { s.synth.Start() }

// Close shuts the pipeline down. Safe to call multiple times.
func (s *Simulator) Close() { s.synth.Close() }

// Timestep returns the fixed physics step duration in seconds.
func (s *Simulator) Timestep() float64 { return 1.0 / s.simulationFrequency }

// StartFrame begins a frame spanning dt seconds of wall-clock time. The
// raw step count round(dt·speed/timestep) gets one proportional
// correction from measured synthesizer latency: ~10% more steps below
// the target (build headroom), ~10% fewer above it (drain), clamped at
// zero. With no simulation loaded the frame is a no-op.
func (s *Simulator) StartFrame(dt float64) {
	if s.physics == nil {
		s.steps = 0
		return
	}

	s.currentIteration = 0
	s.synth.SetInputSampleRate(s.simulationFrequency * s.simulationSpeed)

	s.steps = int(math.Round(dt * s.simulationSpeed / s.Timestep()))

	latency := s.synth.Latency()
	switch {
	case latency < s.targetLatency:
		s.steps = int(float64(s.steps+1) * stepAdjustUp)
	case latency > s.targetLatency:
		s.steps = int(float64(s.steps-1) * stepAdjustDown)
		if s.steps < 0 {
			s.steps = 0
		}
	}
}

// SimulateStep advances one fixed-timestep physics iteration, samples
// the dyno torque ring and feeds the step's channel flows into the
// synthesizer. It returns false once the frame's step budget is spent.
func (s *Simulator) SimulateStep() bool {
	if s.physics == nil || s.currentIteration >= s.steps {
		return false
	}

	timestep := s.Timestep()
	state := s.physics.AdvanceStep(timestep)

	alpha := timestep / (speedFilterTimeConstant + timestep)
	s.filteredSpeed = alpha*s.filteredSpeed + (1-alpha)*state.Speed
	s.lastSpeed = state.Speed

	s.sampleDyno(state)
	s.synth.WriteInput(state.ChannelFlow)

	s.currentIteration++
	return true
}

// sampleDyno records the step's torque in the bucket for the current
// cycle angle. When the crank moved more than one bucket since the
// previous step, every skipped bucket is back-filled with the same
// torque, walking in the spin direction and wrapping at both ends.
func (s *Simulator) sampleDyno(state StepState) {
	index := int(math.Floor(dynoBucketCount * state.CycleAngle / fullCycle))
	if index >= dynoBucketCount {
		index = dynoBucketCount - 1
	} else if index < 0 {
		index = 0
	}

	step := 1
	if state.SpinDirection < 0 {
		step = -1
	}

	s.dynoTorque[index] = state.Torque
	if s.lastDynoSample == index {
		return
	}

	for i := s.lastDynoSample + step; i != index; i += step {
		if i >= dynoBucketCount {
			i = -1
			continue
		}
		if i < 0 {
			i = dynoBucketCount
			continue
		}
		s.dynoTorque[i] = state.Torque
	}
	s.lastDynoSample = index
}

// EndFrame marks the frame's input block complete, waking the renderer.
func (s *Simulator) EndFrame() { s.synth.EndInputBlock() }

// SimulationSteps returns the step budget of the current frame.
func (s *Simulator) SimulationSteps() int { return s.steps }

// CurrentIteration returns how many steps of the current frame ran.
func (s *Simulator) CurrentIteration() int { return s.currentIteration }

// ReadAudioOutput drains up to len(dst) PCM16 samples, zero-filling any
// shortfall, and returns the real sample count. It never blocks.
func (s *Simulator) ReadAudioOutput(dst []int16) int {
	return s.synth.ReadAudioOutput(dst)
}

// WaitProcessed waits, time-bounded, for the last input block to have
// been rendered at least once.
func (s *Simulator) WaitProcessed() { s.synth.WaitProcessed() }

// AudioParameters returns the current control surface.
func (s *Simulator) AudioParameters() AudioParameters {
	return s.synth.AudioParameters()
}

// SetAudioParameters replaces the control surface live.
func (s *Simulator) SetAudioParameters(p AudioParameters) {
	s.synth.SetAudioParameters(p)
}

// SetImpulseResponse installs a conditioned impulse response on one
// channel.
func (s *Simulator) SetImpulseResponse(channel int, response []float64) {
	s.synth.SetImpulseResponse(channel, response)
}

// SimulationSpeed returns the simulated-time scale factor.
func (s *Simulator) SimulationSpeed() float64 { return s.simulationSpeed }

// SetSimulationSpeed rescales simulated time against wall clock. Takes
// effect at the next StartFrame.
func (s *Simulator) SetSimulationSpeed(speed float64) {
	if speed > 0 {
		s.simulationSpeed = speed
	}
}

// SimulationFrequency returns the physics step rate in Hz.
func (s *Simulator) SimulationFrequency() float64 { return s.simulationFrequency }

// SetSimulationFrequency changes the physics step rate. Takes effect at
// the next StartFrame.
func (s *Simulator) SetSimulationFrequency(freq float64) {
	if freq > 0 {
		s.simulationFrequency = freq
	}
}

// FilteredEngineSpeed returns the exponentially smoothed engine speed.
func (s *Simulator) FilteredEngineSpeed() float64 { return s.filteredSpeed }

// Latency reports the synthesizer's measured input latency in seconds.
func (s *Simulator) Latency() float64 { return s.synth.Latency() }

// LevelerGain reports the leveler's current smoothed gain.
func (s *Simulator) LevelerGain() float64 { return s.synth.LevelerGain() }

// DynoTorque returns the average torque across the full dyno sample
// ring, independent of the audio path's buffering.
func (s *Simulator) DynoTorque() float64 {
	return stat.Mean(s.dynoTorque, nil)
}

// DynoPower returns average dyno torque times current engine speed.
func (s *Simulator) DynoPower() float64 {
	return s.DynoTorque() * s.lastSpeed
}
