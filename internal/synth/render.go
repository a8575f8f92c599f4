package synth

import (
	"math"
	"time"

	"github.com/jak6jak/engine-sim/internal/dsp"
)

// renderLoop is the dedicated render goroutine: it renders continuously,
// waking on input notifications or a short timer so shutdown and
// latency both stay bounded.
func (s *Synthesizer) renderLoop() {
	defer close(s.done)

	ticker := time.NewTicker(renderWaitTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.mu.Lock()
			s.processed = true
			s.mu.Unlock()
			s.signalProcessed()
			return
		case <-s.kick:
		case <-ticker.C:
		}

		// Drain whatever input accumulated; RenderAudio returns false
		// once no further progress is possible.
		for s.RenderAudio() {
		}
	}
}

// RenderAudio executes one render pass: it sizes a chunk from available
// input, output space and the configured chunk bounds, copies input out
// of the rings under the lock, runs the DSP cascade outside the lock,
// and appends the finished PCM16 block. It reports whether any samples
// were produced.
//
// If input is exhausted but the output buffer is running low, the last
// known sample is held for up to maxHeldRenders consecutive passes so a
// brief input stall never becomes an audible gap.
func (s *Synthesizer) RenderAudio() bool {
	s.mu.Lock()

	// Consume staged impulse-response installs at the pass boundary;
	// past this point only the rendering goroutine touches the filters.
	for i, conv := range s.pendingConv {
		if conv != nil {
			s.filters[i].convolution = conv
			s.pendingConv[i] = nil
		}
	}

	avail := s.channels[0].data.Len()
	buffered := s.out.Len()
	space := min(s.out.Space(), s.targetFill-buffered)

	n := min(avail, s.maxRender, space)
	if n < s.minRender {
		// Below the batch threshold. Render anyway only when the
		// output buffer is close to underrun, and only a bounded
		// number of times on held input.
		starving := buffered < s.targetFill/4
		if !starving || s.heldRenders >= maxHeldRenders || space <= 0 {
			if avail == 0 {
				s.processed = true
			}
			s.mu.Unlock()
			s.signalProcessed()
			return false
		}
		n = min(s.minRender, space)
	}
	if n <= 0 {
		s.processed = true
		s.mu.Unlock()
		s.signalProcessed()
		return false
	}

	if avail < n {
		s.heldRenders++
	} else {
		s.heldRenders = 0
	}

	// Pull input into the transfer scratch while holding the lock;
	// shortfalls repeat the last consumed value.
	for i := range s.channels {
		ch := &s.channels[i]
		read := ch.data.Read(ch.transfer[:min(n, ch.data.Len())])
		if read > 0 {
			ch.lastRead = ch.transfer[read-1]
		}
		for j := read; j < n; j++ {
			ch.transfer[j] = ch.lastRead
		}
	}

	params := s.params
	s.mu.Unlock()

	// Retune the live-controlled filter stages, then run the expensive
	// per-sample cascade without the lock so the producer never stalls.
	for i := range s.filters {
		s.filters[i].airNoiseLowPass.SetCutoffFrequency(params.AirNoiseCutoff, s.audioSampleRate)
		s.filters[i].jitter.SetScale(params.InputSampleNoise)
		s.filters[i].jitter.SetNoiseCutoff(params.InputSampleNoiseCutoff, s.audioSampleRate)
	}

	for i := range n {
		s.renderBuf[i] = s.renderSample(i, params)
	}

	s.mu.Lock()
	for _, v := range s.renderBuf[:n] {
		s.out.Write(v)
	}
	s.levelerGain = s.leveler.Gain()
	s.processed = true
	s.mu.Unlock()
	s.signalProcessed()

	return true
}

// renderSample runs the per-sample DSP cascade for one output sample
// and quantizes the mono sum to PCM16.
func (s *Synthesizer) renderSample(idx int, p AudioParameters) int16 {
	// When every noise and mix control sits at zero the DC block
	// serves no purpose; bypassing it keeps the transparent path exact.
	bypassDC := p.InputSampleNoise == 0 && p.AirNoise == 0 && p.HighFrequencyMix == 0

	signal := 0.0
	for i := range s.channels {
		flt := &s.filters[i]

		in := flt.jitter.Process(s.channels[i].transfer[idx])

		dc := flt.inputDC.Process(in)
		f := in - dc
		if bypassDC {
			f = in
		}

		deriv := flt.derivative.Process(in)

		turbulence := flt.airNoiseLowPass.Process(s.noise.Bipolar())
		airMix := p.AirNoise*turbulence + (1 - p.AirNoise)

		v := deriv*p.HighFrequencyMix + f*airMix*(1-p.HighFrequencyMix)
		v = dsp.FlushSubnormal(v)

		v = p.Convolution*flt.convolution.Process(v) + (1-p.Convolution)*v

		signal += v
	}

	signal = s.antialiasing.Process(signal)

	s.leveler.Target = p.LevelerTarget
	s.leveler.MinGain = p.LevelerMinGain
	s.leveler.MaxGain = p.LevelerMaxGain
	leveled := s.leveler.Process(signal) * p.Volume

	quantized := math.Round(leveled)
	if quantized > math.MaxInt16 {
		quantized = math.MaxInt16
	} else if quantized < math.MinInt16 {
		quantized = math.MinInt16
	}
	return int16(quantized)
}

// signalProcessed wakes at most one WaitProcessed caller.
func (s *Synthesizer) signalProcessed() {
	select {
	case s.processedCh <- struct{}{}:
	default:
	}
}
