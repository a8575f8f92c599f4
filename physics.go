package enginesim

// StepState is the physics output of one fixed-timestep iteration,
// consumed by the Simulator's dyno sampling and audio routing.
type StepState struct {
	// CycleAngle is the crank position within one full four-stroke
	// cycle, in radians over [0, 4π).
	CycleAngle float64

	// Speed is the rotational speed of the output shaft in rad/s.
	Speed float64

	// SpinDirection is +1 for clockwise rotation, -1 for
	// counter-clockwise. It selects the dyno back-fill direction.
	SpinDirection int

	// Torque is the instantaneous dyno torque in N·m.
	Torque float64

	// ChannelFlow holds each audio channel's instantaneous flow
	// signal. Its length must equal the engine's channel count.
	ChannelFlow []float64
}

// PhysicsEngine is the external solver the Simulator drives. The
// Simulator calls AdvanceStep exactly once per fixed-timestep
// iteration; physics divergence is the solver's concern, not the
// pipeline's, so the call cannot fail.
type PhysicsEngine interface {
	// ChannelCount reports how many audio channels the engine
	// produces. It must stay constant for the engine's life.
	ChannelCount() int

	// AdvanceStep advances the solver by one fixed timestep (in
	// seconds) and returns the resulting state. The returned
	// ChannelFlow slice may be reused across calls.
	AdvanceStep(timestep float64) StepState
}
