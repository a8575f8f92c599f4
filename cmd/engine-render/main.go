// Command engine-render runs the engine audio pipeline offline and
// writes the result to a WAV file.
//
// Usage:
//
//	engine-render -duration 5 output.wav
//	engine-render -config engine.yaml -rpm 4500 output.wav
//	engine-render -config engine.yaml -duration 10 -v output.wav
//
// Without -config a single-channel default engine is used. The demo
// physics model spins up toward the requested RPM over the run.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	enginesim "github.com/jak6jak/engine-sim"
)

const (
	// frameDuration is the simulated wall-clock span of one frame,
	// matching a 60 FPS host.
	frameDuration = 1.0 / 60.0

	defaultDurationSec = 5.0
	defaultRPM         = 3000.0

	rpmToRadPerSec = 2 * math.Pi / 60

	bitsPerSample   = 16
	monoChannels    = 1
	wavPCMFormat    = 1
	progressSeconds = 1.0
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Engine YAML config (default: built-in single channel)")
	duration := flag.Float64("duration", defaultDurationSec, "Seconds of audio to render")
	rpm := flag.Float64("rpm", defaultRPM, "Target engine speed")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] output.wav\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
		return fmt.Errorf("missing output file")
	}
	outputPath := flag.Arg(0)

	if *duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", *duration)
	}

	cfg := enginesim.DefaultConfig()
	if *configPath != "" {
		loaded, err := enginesim.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	sim, err := enginesim.NewSimulator(cfg)
	if err != nil {
		return err
	}
	defer sim.Close()

	engine := enginesim.NewDemoEngine(len(cfg.Channels), *rpm*rpmToRadPerSec)
	if err := sim.LoadSimulation(engine); err != nil {
		return err
	}
	sim.Start()

	if *verbose {
		log.Printf("rendering %.1fs at %.0f Hz, %d channel(s), %.0f RPM target",
			*duration, cfg.AudioSampleRate, len(cfg.Channels), *rpm)
	}

	start := time.Now()
	pcm, err := render(sim, cfg.AudioSampleRate, *duration, *verbose)
	if err != nil {
		return err
	}
	if *verbose {
		log.Printf("rendered %d samples in %v", len(pcm), time.Since(start).Round(time.Millisecond))
	}

	if err := writeWAV(outputPath, pcm, int(cfg.AudioSampleRate)); err != nil {
		return err
	}
	if *verbose {
		log.Printf("wrote %s", outputPath)
	}
	return nil
}

// render drives the frame protocol until durationSec of audio has been
// drained from the pipeline.
func render(sim *enginesim.Simulator, sampleRate, durationSec float64, verbose bool) ([]int16, error) {
	wanted := int(durationSec * sampleRate)
	pcm := make([]int16, 0, wanted)
	chunk := make([]int16, 4096)

	idleFrames := 0
	nextProgress := progressSeconds

	for len(pcm) < wanted {
		sim.StartFrame(frameDuration)
		for sim.SimulateStep() {
		}
		sim.EndFrame()
		sim.WaitProcessed()

		n := sim.ReadAudioOutput(chunk)
		if n == 0 {
			idleFrames++
			// The latency feedback should always restart production;
			// a long silence means the pipeline is wedged.
			if idleFrames > 1000 {
				return nil, fmt.Errorf("pipeline produced no audio for %d frames", idleFrames)
			}
			continue
		}
		idleFrames = 0

		if got := len(pcm) + n; got > wanted {
			n = wanted - len(pcm)
		}
		pcm = append(pcm, chunk[:n]...)

		if verbose && float64(len(pcm))/sampleRate >= nextProgress {
			log.Printf("  %.0f%%", 100*float64(len(pcm))/float64(wanted))
			nextProgress += progressSeconds
		}
	}
	return pcm, nil
}

// writeWAV encodes mono PCM16 to a WAV file.
func writeWAV(path string, pcm []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(v)
	}

	enc := wav.NewEncoder(f, sampleRate, bitsPerSample, monoChannels, wavPCMFormat)
	writeErr := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: monoChannels},
		Data:           data,
		SourceBitDepth: bitsPerSample,
	})
	if writeErr == nil {
		writeErr = enc.Close()
	} else {
		_ = enc.Close()
	}

	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return fmt.Errorf("write %s: %w", path, writeErr)
	}
	return nil
}
