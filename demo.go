package enginesim

import "math"

// Demo engine tuning.
const (
	demoPulseWidth     = 0.35 // exhaust pulse decay width in radians
	demoSpinUpRate     = 2.0  // approach rate toward the target speed
	demoTorqueScale    = 0.12 // peak torque per unit speed
	demoCombustionKick = 0.02 // speed ripple amplitude per firing pulse
)

// DemoEngine is a simple kinematic engine model for the example
// commands and tests: no real combustion solving, just exhaust pulses
// shaped against crank position. One cylinder feeds each audio channel,
// firing evenly spaced across the four-stroke cycle.
type DemoEngine struct {
	cylinders   int
	targetSpeed float64

	angle float64 // unwrapped crank angle, radians
	speed float64 // rad/s
	flows []float64
}

// NewDemoEngine creates a model with the given cylinder count, spinning
// up toward targetSpeed rad/s from rest.
func NewDemoEngine(cylinders int, targetSpeed float64) *DemoEngine {
	return &DemoEngine{
		cylinders:   cylinders,
		targetSpeed: targetSpeed,
		flows:       make([]float64, cylinders),
	}
}

// ChannelCount implements PhysicsEngine.
func (e *DemoEngine) ChannelCount() int { return e.cylinders }

// SetTargetSpeed retargets the spin-up, e.g. to sweep RPM.
func (e *DemoEngine) SetTargetSpeed(speed float64) { e.targetSpeed = speed }

// AdvanceStep implements PhysicsEngine. Each cylinder emits an
// exponentially decaying exhaust pulse at its firing angle; torque is
// the summed pulse activity.
func (e *DemoEngine) AdvanceStep(timestep float64) StepState {
	e.speed += (e.targetSpeed - e.speed) * demoSpinUpRate * timestep
	e.angle += e.speed * timestep

	cycleAngle := math.Mod(e.angle, fullCycle)
	if cycleAngle < 0 {
		cycleAngle += fullCycle
	}

	totalPulse := 0.0
	for i := range e.flows {
		firingAngle := float64(i) * fullCycle / float64(e.cylinders)

		// Angle since this cylinder last fired, in [0, 4π).
		since := math.Mod(cycleAngle-firingAngle+fullCycle, fullCycle)
		pulse := math.Exp(-since / demoPulseWidth)

		e.flows[i] = pulse * e.speed
		totalPulse += pulse
	}

	// Combustion ripple keeps the audio from sounding machine-perfect.
	e.speed += totalPulse * demoCombustionKick * e.speed * timestep

	return StepState{
		CycleAngle:    cycleAngle,
		Speed:         e.speed,
		SpinDirection: 1,
		Torque:        totalPulse * demoTorqueScale * e.speed,
		ChannelFlow:   e.flows,
	}
}
