// Package impulse loads convolution impulse responses from WAV files
// and conditions them for the render path: fold-down to mono, tail
// trimming, tap capping, level scaling and rate conversion.
package impulse

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/floats"

	"github.com/jak6jak/engine-sim/internal/dsp"
)

// ErrInvalidFile reports a WAV file that cannot serve as an impulse
// response.
var ErrInvalidFile = fmt.Errorf("impulse: invalid file")

const (
	// tailThreshold is the absolute 16-bit sample level below which the
	// trailing silence of a response is trimmed away.
	tailThreshold = 100

	// int16Scale normalizes 16-bit PCM to the render path's unit range.
	int16Scale = 32767.0
)

// Response is a conditioned impulse response ready for installation on
// a synthesizer channel.
type Response struct {
	// Samples is the mono response, scaled to unit range times the
	// configured volume and resampled to the output audio rate.
	Samples []float64

	// SourceSampleRate is the rate the file was recorded at.
	SourceSampleRate float64
}

// LoadFile reads a WAV impulse response and conditions it for rendering
// at audioSampleRate. Multichannel files are folded down to mono. The
// response is trimmed past its last audible sample, capped at
// dsp.MaxConvolutionTaps taps and scaled by volume.
func LoadFile(path string, volume, audioSampleRate float64) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("impulse: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("impulse: decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: %s has no sample data", ErrInvalidFile, path)
	}
	if buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: %s has malformed format", ErrInvalidFile, path)
	}

	mono := foldDown(buf.Data, buf.Format.NumChannels)
	mono = trimTail(mono, tailThreshold)
	if len(mono) == 0 {
		return nil, fmt.Errorf("%w: %s is silent", ErrInvalidFile, path)
	}

	samples := Condition(mono, volume)

	sourceRate := float64(buf.Format.SampleRate)
	if sourceRate != audioSampleRate {
		samples = resampleTo(samples, sourceRate, audioSampleRate)
	}

	return &Response{Samples: samples, SourceSampleRate: sourceRate}, nil
}

// Condition converts raw 16-bit integer samples to the unit-range
// response, scaled by volume and capped at dsp.MaxConvolutionTaps.
func Condition(raw []int, volume float64) []float64 {
	n := min(len(raw), dsp.MaxConvolutionTaps)
	samples := make([]float64, n)
	for i, v := range raw[:n] {
		samples[i] = float64(v)
	}
	floats.Scale(volume/int16Scale, samples)
	return samples
}

// foldDown averages interleaved frames into a mono signal.
func foldDown(data []int, channels int) []int {
	if channels == 1 {
		return data
	}
	frames := len(data) / channels
	mono := make([]int, frames)
	for i := range frames {
		sum := 0
		for c := range channels {
			sum += data[i*channels+c]
		}
		mono[i] = sum / channels
	}
	return mono
}

// trimTail drops everything past the last sample whose magnitude
// exceeds threshold.
func trimTail(data []int, threshold int) []int {
	last := -1
	for i, v := range data {
		if v > threshold || v < -threshold {
			last = i
		}
	}
	return data[:last+1]
}

// resampleTo converts a response recorded at sourceRate to targetRate
// using Hermite interpolation, preserving its duration.
func resampleTo(samples []float64, sourceRate, targetRate float64) []float64 {
	ratio := targetRate / sourceRate
	outLen := int(math.Ceil(float64(len(samples)) * ratio))
	outLen = min(outLen, dsp.MaxConvolutionTaps)

	r := dsp.NewHermiteResampler(ratio)
	out := r.Process(make([]float64, 0, outLen), samples)
	if len(out) > outLen {
		out = out[:outLen]
	}
	return out
}
