// Package synth converts irregular-rate physics signals into a
// fixed-rate PCM16 stream. It owns per-channel input rings, the DSP
// filter chain, the output ring, and the render scheduling policy that
// bridges the simulation-driving and audio-driving execution contexts.
package synth

import (
	"math"
	"sync"
	"time"

	"github.com/jak6jak/engine-sim/internal/buffer"
	"github.com/jak6jak/engine-sim/internal/dsp"
)

const (
	defaultMinRenderSamples = 512
	defaultMaxRenderSamples = 8192

	// jitterDepth is the timing-jitter lookback history in samples.
	jitterDepth = 10

	// dcBlockCutoff is the one-pole cutoff used for DC estimation.
	dcBlockCutoff = 10.0

	// antialiasingFactor places the antialiasing cutoff at 90% of the
	// output Nyquist frequency, keeping as much high end as possible.
	antialiasingFactor = 0.45

	// maxHeldRenders bounds how many consecutive render passes may run
	// on a held (repeated) sample before the renderer gives up.
	maxHeldRenders = 5

	// pullTargetMargin is the extra buffered output a pull-driven read
	// renders beyond the immediate request.
	pullTargetMargin = 1024

	// maxPullIterations bounds catch-up passes per pull-driven read.
	maxPullIterations = 256

	// renderWaitTimeout is the dedicated render thread's wake
	// interval when no input notification arrives.
	renderWaitTimeout = 2 * time.Millisecond

	// processedWaitTimeout bounds WaitProcessed so a stalled renderer
	// can never deadlock the caller.
	processedWaitTimeout = 50 * time.Millisecond
)

// inputChannel carries one channel's resampled raw signal from the
// producer context to the render pass.
type inputChannel struct {
	data *buffer.Ring[float64]

	// transfer is private render scratch: input is copied here under
	// the lock, the DSP cascade then reads it lock-free.
	transfer []float64

	lastInput float64 // last raw value written by the producer
	lastRead  float64 // last value consumed by the renderer, for holds

	// fracAccum carries resampling remainders across writes so the
	// long-run output rate matches the configured ratio exactly.
	fracAccum float64
}

// channelFilters is the per-channel DSP state.
type channelFilters struct {
	convolution     *dsp.ConvolutionFilter
	derivative      *dsp.DerivativeFilter
	jitter          *dsp.JitterFilter
	airNoiseLowPass *dsp.ButterworthLowPassFilter
	inputDC         *dsp.LowPassFilter
	antialiasing    *dsp.ButterworthLowPassFilter
}

// Synthesizer converts per-channel raw values arriving at an irregular
// rate into one mono PCM16 stream at a fixed rate.
//
// Exactly one producer context may call WriteInput/EndInputBlock and
// exactly one consumer context may call ReadAudioOutput; the
// RenderAudio pass is driven either by the internal render goroutine
// (RenderPolicyThread) or by ReadAudioOutput (RenderPolicyOnRead).
type Synthesizer struct {
	mu     sync.Mutex
	params AudioParameters

	channels []inputChannel
	filters  []channelFilters
	out      *buffer.Ring[int16]

	antialiasing *dsp.ButterworthLowPassFilter
	leveler      *dsp.LevelingFilter
	noise        *dsp.NoiseSource

	// levelerGain mirrors the leveler's smoothed gain under the lock;
	// the leveler itself is touched only by the render pass.
	levelerGain float64

	// pendingConv stages impulse-response installs until the next
	// render pass boundary, keeping the live filter chain private to
	// the renderer.
	pendingConv []*dsp.ConvolutionFilter

	inputBufferSize int
	inputSampleRate float64
	audioSampleRate float64

	inputWriteOffset float64
	lastInputOffset  float64

	latencySamples int
	processed      bool
	heldRenders    int

	policy     RenderPolicy
	minRender  int
	maxRender  int
	targetFill int
	renderBuf  []int16

	kick        chan struct{} // new input may be available
	processedCh chan struct{} // a render pass completed
	stop        chan struct{}
	done        chan struct{}
	started     bool
	closed      bool
}

// New creates a Synthesizer from the given parameters. The channel
// count, buffer sizes and rates are fixed for the synthesizer's life.
func New(p Parameters) (*Synthesizer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	minRender := p.MinRenderSamples
	if minRender == 0 {
		minRender = defaultMinRenderSamples
	}
	maxRender := p.MaxRenderSamples
	if maxRender == 0 {
		maxRender = defaultMaxRenderSamples
	}
	maxRender = min(maxRender, p.InputBufferSize)
	minRender = min(minRender, maxRender)

	targetFill := max(defaultMaxRenderSamples, int(p.AudioSampleRate/2))
	targetFill = min(targetFill, p.AudioBufferSize)

	s := &Synthesizer{
		params:          p.Audio,
		channels:        make([]inputChannel, p.InputChannels),
		filters:         make([]channelFilters, p.InputChannels),
		out:             buffer.NewRing[int16](p.AudioBufferSize),
		antialiasing:    dsp.NewButterworthLowPass(p.AudioSampleRate*antialiasingFactor, p.AudioSampleRate),
		leveler:         dsp.NewLevelingFilter(p.Audio.LevelerTarget, p.Audio.LevelerMinGain, p.Audio.LevelerMaxGain),
		noise:           dsp.NewNoiseSource(uint32(time.Now().UnixNano())),
		pendingConv:     make([]*dsp.ConvolutionFilter, p.InputChannels),
		inputBufferSize: p.InputBufferSize,
		inputSampleRate: p.InputSampleRate,
		audioSampleRate: p.AudioSampleRate,
		processed:       true,
		policy:          p.Policy,
		minRender:       minRender,
		maxRender:       maxRender,
		targetFill:      targetFill,
		renderBuf:       make([]int16, maxRender),
		kick:            make(chan struct{}, 1),
		processedCh:     make(chan struct{}, 1),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}

	for i := range s.channels {
		s.channels[i].data = buffer.NewRing[float64](p.InputBufferSize)
		s.channels[i].transfer = make([]float64, maxRender)

		s.filters[i] = channelFilters{
			// Identity until an impulse response is installed, so the
			// render pass is always safe.
			convolution:     dsp.NewConvolutionFilter(nil),
			derivative:      dsp.NewDerivativeFilter(p.AudioSampleRate),
			jitter:          dsp.NewJitterFilter(jitterDepth, p.Audio.InputSampleNoiseCutoff, p.AudioSampleRate, uint32(i+1)*0x9e3779b9),
			airNoiseLowPass: dsp.NewButterworthLowPass(p.Audio.AirNoiseCutoff, p.AudioSampleRate),
			inputDC:         dsp.NewLowPassFilter(dcBlockCutoff, p.AudioSampleRate),
			antialiasing:    dsp.NewButterworthLowPass(p.AudioSampleRate*antialiasingFactor, p.AudioSampleRate),
		}
	}
	s.levelerGain = s.leveler.Gain()

	return s, nil
}

// Start launches the render goroutine when the thread policy is
// selected. It is a no-op for the pull policy and when already started.
func (s *Synthesizer) Start() {
	s.mu.Lock()
	if s.started || s.closed || s.policy != RenderPolicyThread {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.renderLoop()
}

// Close shuts the synthesizer down, unblocking the render goroutine and
// any WaitProcessed caller. It is safe to call multiple times.
func (s *Synthesizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	close(s.stop)
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// SetImpulseResponse installs a convolution impulse response on one
// channel, replacing the identity (or previous) response. Response
// length is capped by dsp.MaxConvolutionTaps. The install takes effect
// at the next render pass boundary.
func (s *Synthesizer) SetImpulseResponse(channel int, impulseResponse []float64) {
	conv := dsp.NewConvolutionFilter(impulseResponse)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingConv[channel] = conv
}

// ChannelCount returns the fixed input channel count.
func (s *Synthesizer) ChannelCount() int { return len(s.channels) }

// AudioParameters returns a copy of the current control surface.
func (s *Synthesizer) AudioParameters() AudioParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetAudioParameters replaces the control surface. The next render pass
// picks the new values up atomically.
func (s *Synthesizer) SetAudioParameters(p AudioParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

// SetInputSampleRate retunes the physics input rate, typically when the
// simulation speed changes.
func (s *Synthesizer) SetInputSampleRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rate > 0 {
		s.inputSampleRate = rate
	}
}

// InputSampleRate returns the current physics input rate in Hz.
func (s *Synthesizer) InputSampleRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputSampleRate
}

// LevelerGain reports the leveler's smoothed gain as of the last
// completed render pass.
func (s *Synthesizer) LevelerGain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levelerGain
}

// Latency reports the most recently measured input latency in seconds:
// the resampled input buffered ahead of the renderer at the last block
// boundary.
func (s *Synthesizer) Latency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.latencySamples) / s.audioSampleRate
}

// WriteInput feeds one physics step's raw values, one per channel. The
// write offset advances by the audio/input rate ratio; the gap since
// the previous write is filled by linear interpolation, each point
// antialiased before storage. A per-channel fractional accumulator
// carries rounding remainders so the long-run rate never drifts.
//
// WriteInput never blocks; the input rings are sized so a full physics
// block always fits.
func (s *Synthesizer) WriteInput(values []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		panic("synth: WriteInput after Close")
	}

	s.inputWriteOffset += s.audioSampleRate / s.inputSampleRate
	if s.inputWriteOffset >= float64(s.inputBufferSize) {
		s.inputWriteOffset -= float64(s.inputBufferSize)
	}

	distance := s.inputDistance(s.inputWriteOffset, s.lastInputOffset)

	for i := range s.channels {
		ch := &s.channels[i]

		generate := distance + ch.fracAccum
		whole := int(math.Floor(generate))
		ch.fracAccum = generate - float64(whole)

		for j := range whole {
			f := (float64(j) + 0.5) / float64(whole)
			sample := ch.lastInput*(1-f) + values[i]*f
			ch.data.Write(s.filters[i].antialiasing.Process(sample))
		}

		ch.lastInput = values[i]
	}

	s.lastInputOffset = s.inputWriteOffset
}

// EndInputBlock marks the completion of one physics-driven write batch.
// It snapshots the input latency and wakes the renderer.
func (s *Synthesizer) EndInputBlock() {
	s.mu.Lock()
	s.latencySamples = s.channels[0].data.Len()
	s.processed = false
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// ReadAudioOutput drains up to len(dst) PCM16 samples into dst,
// zero-filling any shortfall, and returns the number of real samples
// delivered. It never blocks. Under RenderPolicyOnRead it first runs
// bounded catch-up render passes to satisfy the request.
func (s *Synthesizer) ReadAudioOutput(dst []int16) int {
	if s.policy == RenderPolicyOnRead && len(dst) > 0 {
		target := len(dst) + pullTargetMargin
		for range maxPullIterations {
			s.mu.Lock()
			buffered := s.out.Len()
			s.mu.Unlock()

			if buffered >= target {
				break
			}
			if !s.RenderAudio() {
				break
			}
		}
	}

	s.mu.Lock()
	n := s.out.Read(dst)
	s.mu.Unlock()

	clear(dst[n:])
	return n
}

// WaitProcessed waits, bounded by a short timeout, until the most
// recent input block has been rendered at least once. It returns
// immediately under the pull policy, where the reader itself renders.
func (s *Synthesizer) WaitProcessed() {
	if s.policy == RenderPolicyOnRead {
		return
	}

	deadline := time.NewTimer(processedWaitTimeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		done := s.processed
		s.mu.Unlock()
		if done {
			return
		}

		select {
		case <-s.processedCh:
		case <-s.stop:
			return
		case <-deadline.C:
			return
		}
	}
}

// inputDistance measures the forward distance between two offsets in
// the circular input buffer.
func (s *Synthesizer) inputDistance(s1, s0 float64) float64 {
	if s1 < s0 {
		return float64(s.inputBufferSize) - s0 + s1
	}
	return s1 - s0
}
