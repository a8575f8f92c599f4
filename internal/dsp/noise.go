package dsp

// NoiseSource is a xorshift32 generator used for the air-turbulence and
// jitter noise terms. The render path draws one or two values per sample
// per channel, so generation cost matters more than statistical quality.
type NoiseSource struct {
	state uint32
}

// NewNoiseSource creates a generator from a seed. A zero seed is
// replaced, xorshift32 has a fixed point at zero.
func NewNoiseSource(seed uint32) *NoiseSource {
	if seed == 0 {
		seed = 0x87654321
	}
	return &NoiseSource{state: seed}
}

// Uint32 returns the next raw generator value.
func (n *NoiseSource) Uint32() uint32 {
	n.state ^= n.state << 13
	n.state ^= n.state >> 17
	n.state ^= n.state << 5
	return n.state
}

// Float01 returns a value uniformly distributed in [0, 1).
func (n *NoiseSource) Float01() float64 {
	return float64(n.Uint32()) / 4294967296.0
}

// Bipolar returns a value uniformly distributed in [-1, 1).
func (n *NoiseSource) Bipolar() float64 {
	return n.Float01()*2.0 - 1.0
}
