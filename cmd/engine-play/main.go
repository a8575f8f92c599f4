// Command engine-play runs the engine audio pipeline live through the
// system audio device.
//
// Usage:
//
//	engine-play
//	engine-play -config engine.yaml -rpm 4500
//	engine-play -duration 30 -sweep
//
// The demo physics model spins up toward the target RPM; -sweep cycles
// the target up and down to exercise the pipeline across the rev range.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/ebitengine/oto/v3"

	enginesim "github.com/jak6jak/engine-sim"
)

const (
	frameDuration = 1.0 / 60.0

	defaultRPM     = 3000.0
	sweepLowRPM    = 900.0
	sweepPeriodSec = 8.0

	rpmToRadPerSec = 2 * math.Pi / 60
	bytesPerSample = 2
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Engine YAML config (default: built-in single channel)")
	rpm := flag.Float64("rpm", defaultRPM, "Target engine speed")
	duration := flag.Float64("duration", 0, "Stop after this many seconds (0 = run until interrupted)")
	sweep := flag.Bool("sweep", false, "Sweep the target RPM up and down")
	flag.Parse()

	cfg := enginesim.DefaultConfig()
	if *configPath != "" {
		loaded, err := enginesim.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	// The device callback is the consumer; render inline in its reads.
	cfg.RenderPolicy = enginesim.PolicyOnRead

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

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(cfg.AudioSampleRate),
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	// The device pulls on its own goroutine; all simulation access,
	// including the RPM sweep, stays inside the source's Read.
	src := &simSource{
		sim:        sim,
		engine:     engine,
		sampleRate: cfg.AudioSampleRate,
		peakRPM:    *rpm,
		sweep:      *sweep,
		start:      time.Now(),
	}
	player := ctx.NewPlayer(src)
	player.Play()
	defer func() { _ = player.Close() }()

	log.Printf("playing at %.0f Hz, %d channel(s); Ctrl-C to stop", cfg.AudioSampleRate, len(cfg.Channels))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	var stopAt <-chan time.Time
	if *duration > 0 {
		stopAt = time.After(time.Duration(*duration * float64(time.Second)))
	}

	select {
	case <-interrupt:
		log.Printf("interrupted")
	case <-stopAt:
	}
	return nil
}

// sweepTarget oscillates between sweepLowRPM and peakRPM.
func sweepTarget(elapsed, peakRPM float64) float64 {
	phase := (1 - math.Cos(2*math.Pi*elapsed/sweepPeriodSec)) / 2
	return sweepLowRPM + phase*(peakRPM-sweepLowRPM)
}

// simSource adapts the simulator to the audio device's pull model: each
// device read advances the simulation far enough to cover the request,
// then drains PCM16 into the byte buffer. Shortfalls come out as
// silence rather than blocking the device.
type simSource struct {
	sim        *enginesim.Simulator
	engine     *enginesim.DemoEngine
	sampleRate float64
	peakRPM    float64
	sweep      bool
	start      time.Time
	pcm        []int16
}

func (s *simSource) Read(p []byte) (int, error) {
	samples := len(p) / bytesPerSample
	if samples == 0 {
		return 0, nil
	}
	if len(s.pcm) < samples {
		s.pcm = make([]int16, samples)
	}

	if s.sweep {
		s.engine.SetTargetSpeed(sweepTarget(time.Since(s.start).Seconds(), s.peakRPM) * rpmToRadPerSec)
	}

	// Run whole frames until the buffered latency covers this request.
	deficit := float64(samples)/s.sampleRate + frameDuration
	for s.sim.Latency() < deficit {
		s.sim.StartFrame(frameDuration)
		for s.sim.SimulateStep() {
		}
		s.sim.EndFrame()
		if s.sim.SimulationSteps() == 0 {
			break
		}
	}

	s.sim.ReadAudioOutput(s.pcm[:samples])
	for i, v := range s.pcm[:samples] {
		binary.LittleEndian.PutUint16(p[i*bytesPerSample:], uint16(v))
	}
	return samples * bytesPerSample, nil
}
