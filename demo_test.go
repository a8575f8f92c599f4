package enginesim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoEngine_SpinsUpTowardTarget(t *testing.T) {
	const target = 300.0
	e := NewDemoEngine(4, target)
	require.Equal(t, 4, e.ChannelCount())

	var st StepState
	for range 100000 {
		st = e.AdvanceStep(1e-4)
	}

	assert.InDelta(t, target, st.Speed, target*0.05)
	assert.GreaterOrEqual(t, st.CycleAngle, 0.0)
	assert.Less(t, st.CycleAngle, fullCycle)
	assert.Len(t, st.ChannelFlow, 4)
	assert.Equal(t, 1, st.SpinDirection)
	assert.Positive(t, st.Torque)
}

func TestDemoEngine_CylindersFireInSequence(t *testing.T) {
	e := NewDemoEngine(2, 200)

	// Warm up, then find each channel's flow peak angle over one cycle.
	for range 50000 {
		e.AdvanceStep(1e-4)
	}

	peakAngle := make([]float64, 2)
	peakFlow := make([]float64, 2)
	start := e.angle
	for e.angle-start < fullCycle {
		st := e.AdvanceStep(1e-4)
		for c, f := range st.ChannelFlow {
			if f > peakFlow[c] {
				peakFlow[c] = f
				peakAngle[c] = st.CycleAngle
			}
		}
	}

	for c := range peakFlow {
		require.Positive(t, peakFlow[c], "cylinder %d never fired", c)
	}
	// Two cylinders fire half a cycle apart.
	separation := peakAngle[1] - peakAngle[0]
	if separation < 0 {
		separation += fullCycle
	}
	assert.InDelta(t, fullCycle/2, separation, 0.5)
}
