package synth

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// transparentAudioParameters returns a control surface with every
// nonlinearity disabled so the signal path is directly checkable.
func transparentAudioParameters() AudioParameters {
	p := DefaultAudioParameters()
	p.AirNoise = 0
	p.InputSampleNoise = 0
	p.HighFrequencyMix = 0
	p.LevelerMinGain = 1.0
	p.LevelerMaxGain = 1.0
	return p
}

// newSynchronizedSynthesizer builds a rate-matched synthesizer (input
// rate == audio rate) with manually driven rendering.
func newSynchronizedSynthesizer(t *testing.T) *Synthesizer {
	t.Helper()
	s, err := New(Parameters{
		InputChannels:    8,
		InputBufferSize:  1024,
		AudioBufferSize:  512 * 16,
		InputSampleRate:  32,
		AudioSampleRate:  32,
		Policy:           RenderPolicyThread, // not started: rendering stays manual
		MinRenderSamples: 1,
		Audio:            transparentAudioParameters(),
	})
	require.NoError(t, err)
	return s
}

func TestSynthesizer_InitializeThenClose(t *testing.T) {
	for _, channels := range []int{1, 2, 8, 32} {
		s, err := New(Parameters{
			InputChannels:   channels,
			InputBufferSize: 256,
			AudioBufferSize: 4096,
			InputSampleRate: 10000,
			AudioSampleRate: 44100,
			Audio:           DefaultAudioParameters(),
		})
		require.NoError(t, err, "channels=%d", channels)
		assert.Equal(t, channels, s.ChannelCount())

		s.Start()
		s.Close()
		s.Close() // idempotent
	}
}

func TestSynthesizer_InvalidParameters(t *testing.T) {
	cases := []struct {
		name string
		p    Parameters
	}{
		{"no channels", Parameters{InputBufferSize: 1, AudioBufferSize: 1, InputSampleRate: 1, AudioSampleRate: 1}},
		{"zero input buffer", Parameters{InputChannels: 1, AudioBufferSize: 1, InputSampleRate: 1, AudioSampleRate: 1}},
		{"zero audio rate", Parameters{InputChannels: 1, InputBufferSize: 1, AudioBufferSize: 1, InputSampleRate: 1}},
		{"min above max", Parameters{InputChannels: 1, InputBufferSize: 1, AudioBufferSize: 1, InputSampleRate: 1, AudioSampleRate: 1, MinRenderSamples: 64, MaxRenderSamples: 8}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.p)
			require.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

// TestSynthesizer_RampSignalPath is the end-to-end signal path check:
// a ramp fed on 8 channels through the fully transparent configuration
// must come out scaled by channelCount*volume once the antialiasing
// stages settle.
func TestSynthesizer_RampSignalPath(t *testing.T) {
	const (
		inputSamples = 64
		volume       = 10.0
		channelGain  = 8 * volume
	)

	s := newSynchronizedSynthesizer(t)
	defer s.Close()

	output := make([]int16, inputSamples)
	total := 0
	values := make([]float64, 8)

	for i := 0; i < inputSamples; {
		for range 16 {
			for c := range values {
				values[c] = float64(i)
			}
			s.WriteInput(values)
			i++
		}

		s.EndInputBlock()
		require.True(t, s.RenderAudio())

		total += s.ReadAudioOutput(output[total : total+16])
	}
	require.Equal(t, inputSamples, total)

	// The very first sample saw pure silence.
	assert.EqualValues(t, 0, output[0])

	// After the filters settle the output tracks i * channels * volume.
	for i := 20; i < inputSamples; i++ {
		expected := float64(i) * channelGain
		assert.InDelta(t, expected, float64(output[i]), expected*0.25+50,
			"sample %d", i)
	}
}

func TestSynthesizer_ReadAudioOutputZeroFills(t *testing.T) {
	s := newSynchronizedSynthesizer(t)
	defer s.Close()

	// Produce a short burst of nonzero output.
	values := []float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000}
	for range 8 {
		s.WriteInput(values)
	}
	s.EndInputBlock()
	s.RenderAudio()

	dst := make([]int16, 64)
	for i := range dst {
		dst[i] = -1 // sentinel to catch missing zero-fill
	}

	n := s.ReadAudioOutput(dst)
	require.LessOrEqual(t, n, len(dst))
	require.Positive(t, n)

	for i := n; i < len(dst); i++ {
		assert.EqualValues(t, 0, dst[i], "shortfall at %d must be zero-filled", i)
	}

	// A fully drained synthesizer produces nothing but zeros.
	n = s.ReadAudioOutput(dst)
	assert.Zero(t, n)
	for i, v := range dst {
		assert.EqualValues(t, 0, v, "sample %d", i)
	}
}

func TestSynthesizer_ReadEmptyDst(t *testing.T) {
	s := newSynchronizedSynthesizer(t)
	defer s.Close()
	assert.Zero(t, s.ReadAudioOutput(nil))
}

func TestSynthesizer_PullPolicyRendersOnRead(t *testing.T) {
	p := transparentAudioParameters()
	s, err := New(Parameters{
		InputChannels:    2,
		InputBufferSize:  8192,
		AudioBufferSize:  44100,
		InputSampleRate:  10000,
		AudioSampleRate:  44100,
		Policy:           RenderPolicyOnRead,
		MinRenderSamples: 64,
		Audio:            p,
	})
	require.NoError(t, err)
	defer s.Close()

	// One frame of physics input (~10ms at 10 kHz).
	for i := range 100 {
		v := math.Sin(float64(i) * 0.05)
		s.WriteInput([]float64{v * 100, v * 100})
	}
	s.EndInputBlock()

	dst := make([]int16, 256)
	n := s.ReadAudioOutput(dst)
	assert.Positive(t, n, "pull-driven read must render to satisfy the request")
	assert.LessOrEqual(t, n, len(dst))
}

func TestSynthesizer_ThreadPolicyEndToEnd(t *testing.T) {
	s, err := New(Parameters{
		InputChannels:    1,
		InputBufferSize:  44100,
		AudioBufferSize:  44100 * 2,
		InputSampleRate:  10000,
		AudioSampleRate:  44100,
		Policy:           RenderPolicyThread,
		MinRenderSamples: 128,
		Audio:            transparentAudioParameters(),
	})
	require.NoError(t, err)
	s.Start()
	defer s.Close()

	// Feed ~50 ms of simulation input in frame-sized blocks.
	for block := range 5 {
		for i := range 100 {
			s.WriteInput([]float64{float64(block*100 + i)})
		}
		s.EndInputBlock()
		s.WaitProcessed()
	}

	deadline := time.Now().Add(2 * time.Second)
	dst := make([]int16, 1024)
	got := 0
	for got == 0 && time.Now().Before(deadline) {
		got = s.ReadAudioOutput(dst)
		if got == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	assert.Positive(t, got, "render thread must eventually produce output")
}

func TestSynthesizer_WaitProcessedIsBounded(t *testing.T) {
	s := newSynchronizedSynthesizer(t)
	defer s.Close()

	// No renderer is running; the wait must time out, not hang.
	s.EndInputBlock()
	start := time.Now()
	s.WaitProcessed()
	assert.Less(t, time.Since(start), time.Second)
}

func TestSynthesizer_CloseUnblocksWaiters(t *testing.T) {
	s, err := New(Parameters{
		InputChannels:   1,
		InputBufferSize: 256,
		AudioBufferSize: 4096,
		InputSampleRate: 100,
		AudioSampleRate: 100,
		Policy:          RenderPolicyThread,
		Audio:           DefaultAudioParameters(),
	})
	require.NoError(t, err)
	s.Start()

	s.EndInputBlock()
	done := make(chan struct{})
	go func() {
		s.WaitProcessed()
		close(done)
	}()

	s.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitProcessed did not return after Close")
	}
}

func TestSynthesizer_AudioParametersRoundTrip(t *testing.T) {
	s := newSynchronizedSynthesizer(t)
	defer s.Close()

	p := s.AudioParameters()
	p.Volume = 2.5
	p.Convolution = 0.75
	s.SetAudioParameters(p)

	got := s.AudioParameters()
	assert.Equal(t, 2.5, got.Volume)
	assert.Equal(t, 0.75, got.Convolution)
}

func TestSynthesizer_InputSampleRateRetune(t *testing.T) {
	s := newSynchronizedSynthesizer(t)
	defer s.Close()

	s.SetInputSampleRate(64)
	assert.Equal(t, 64.0, s.InputSampleRate())

	// Non-positive rates are ignored.
	s.SetInputSampleRate(0)
	assert.Equal(t, 64.0, s.InputSampleRate())
}

func TestSynthesizer_LevelerGainTracksRendering(t *testing.T) {
	p := DefaultAudioParameters()
	p.InputSampleNoise = 0
	p.AirNoise = 0
	p.HighFrequencyMix = 0
	s, err := New(Parameters{
		InputChannels:    1,
		InputBufferSize:  1024,
		AudioBufferSize:  4096,
		InputSampleRate:  32,
		AudioSampleRate:  32,
		Policy:           RenderPolicyThread, // not started: rendering stays manual
		MinRenderSamples: 1,
		Audio:            p,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 1.0, s.LevelerGain())

	// A signal far above the leveler target forces the gain down; the
	// reported value must reflect the completed pass.
	for range 256 {
		s.WriteInput([]float64{200000})
	}
	s.EndInputBlock()
	require.True(t, s.RenderAudio())

	gain := s.LevelerGain()
	assert.Less(t, gain, 1.0)
	assert.Greater(t, gain, 0.0)
}

func TestSynthesizer_ImpulseResponseInstallsAtPassBoundary(t *testing.T) {
	s := newSynchronizedSynthesizer(t)
	defer s.Close()

	// A zero impulse response with full convolution mix silences a
	// channel; staged before any rendering it must govern the first pass.
	for c := range 8 {
		s.SetImpulseResponse(c, []float64{0})
	}
	values := []float64{500, 500, 500, 500, 500, 500, 500, 500}
	for range 64 {
		s.WriteInput(values)
	}
	s.EndInputBlock()
	require.True(t, s.RenderAudio())

	dst := make([]int16, 64)
	n := s.ReadAudioOutput(dst)
	require.Positive(t, n)
	for i := range n {
		assert.EqualValues(t, 0, dst[i], "sample %d", i)
	}

	// Swapping back to a unit response mid-stream takes effect on the
	// next pass.
	for c := range 8 {
		s.SetImpulseResponse(c, []float64{1})
	}
	for range 64 {
		s.WriteInput(values)
	}
	s.EndInputBlock()
	require.True(t, s.RenderAudio())

	n = s.ReadAudioOutput(dst)
	require.Positive(t, n)
	nonzero := false
	for _, v := range dst[:n] {
		if v != 0 {
			nonzero = true
			break
		}
	}
	assert.True(t, nonzero, "unit response must restore the signal")
}

// TestSynthesizer_LiveControlsDuringRender exercises the host-facing
// gain read and impulse-response install against a running render
// goroutine; its assertions are weak on purpose, the race detector does
// the real checking.
func TestSynthesizer_LiveControlsDuringRender(t *testing.T) {
	s, err := New(Parameters{
		InputChannels:    2,
		InputBufferSize:  4096,
		AudioBufferSize:  8192,
		InputSampleRate:  10000,
		AudioSampleRate:  44100,
		Policy:           RenderPolicyThread,
		MinRenderSamples: 32,
		Audio:            DefaultAudioParameters(),
	})
	require.NoError(t, err)
	s.Start()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		values := make([]float64, 2)
		for block := range 100 {
			for i := range 50 {
				v := math.Sin(float64(block*50+i) * 0.02)
				values[0], values[1] = v*1000, v*800
				s.WriteInput(values)
			}
			s.EndInputBlock()
		}
	}()

	go func() {
		defer wg.Done()
		ir := []float64{0.8, 0.15, 0.05}
		for i := range 500 {
			if s.LevelerGain() < 0 {
				t.Error("leveler gain went negative")
				return
			}
			s.SetImpulseResponse(i%2, ir)
			time.Sleep(50 * time.Microsecond)
		}
	}()

	wg.Wait()
	s.Close()
}

// TestSynthesizer_Stress interleaves a producer and a consumer under
// the race detector: no panic, no out-of-range read, and every read
// respects its bounds.
func TestSynthesizer_Stress(t *testing.T) {
	s, err := New(Parameters{
		InputChannels:    4,
		InputBufferSize:  4096,
		AudioBufferSize:  8192,
		InputSampleRate:  10000,
		AudioSampleRate:  44100,
		Policy:           RenderPolicyThread,
		MinRenderSamples: 32,
		Audio:            DefaultAudioParameters(),
	})
	require.NoError(t, err)
	s.Start()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		values := make([]float64, 4)
		noise := uint32(1)
		for block := range 200 {
			for range 50 {
				noise ^= noise << 13
				noise ^= noise >> 17
				noise ^= noise << 5
				for c := range values {
					values[c] = float64(noise%1000) - 500
				}
				s.WriteInput(values)
			}
			s.EndInputBlock()
			if block%10 == 0 {
				s.WaitProcessed()
			}
		}
	}()

	go func() {
		defer wg.Done()
		dst := make([]int16, 512)
		for range 400 {
			n := s.ReadAudioOutput(dst)
			if n > len(dst) {
				t.Error("read returned more than requested")
				return
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()

	wg.Wait()
	s.Close()
}
