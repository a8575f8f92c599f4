// Package enginesim converts discrete-time combustion-engine physics
// into continuous 16-bit PCM audio.
//
// The pipeline has three layers. A Simulator translates wall-clock
// frame durations into fixed-timestep physics iterations, feeding each
// step's per-channel flow signals into a Synthesizer and sampling dyno
// torque into a crank-angle bucket ring. The Synthesizer resamples the
// irregular-rate input onto a fixed audio rate, runs a per-channel DSP
// cascade (timing jitter, DC blocking, derivative/air-noise blending,
// convolution reverb) plus global antialiasing and adaptive leveling,
// and emits mono PCM16 into a ring buffer the host drains at its own
// pace.
//
// # Frame protocol
//
//	sim, err := enginesim.NewSimulator(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sim.LoadSimulation(physics); err != nil {
//	    log.Fatal(err)
//	}
//	sim.Start()
//	defer sim.Close()
//
//	for running {
//	    sim.StartFrame(frameDt)
//	    for sim.SimulateStep() {
//	    }
//	    sim.EndFrame()
//
//	    n := sim.ReadAudioOutput(pcm)
//	    play(pcm[:n])
//	}
//
// The step count per frame follows a single-term latency feedback rule:
// when the synthesizer's buffered input falls below the target latency
// the frame runs ~10% more steps, above it ~10% fewer, so audio
// production tracks real time without drifting.
//
// Rendering runs either on a dedicated goroutine (the default) or
// inline in ReadAudioOutput for hosts that cannot spare one; see
// RenderPolicy in Config.
package enginesim
