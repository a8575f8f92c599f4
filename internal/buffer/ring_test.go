package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_WriteRead(t *testing.T) {
	r := NewRing[int](8)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 8, r.Cap())

	for i := range 5 {
		r.Write(i)
	}
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, 3, r.Space())

	dst := make([]int, 3)
	n := r.Read(dst)
	require.Equal(t, 3, n)
	assert.Equal(t, []int{0, 1, 2}, dst)
	assert.Equal(t, 2, r.Len())
}

func TestRing_PeekDoesNotRemove(t *testing.T) {
	r := NewRing[float64](4)
	r.Write(1.5)
	r.Write(2.5)

	dst := make([]float64, 4)
	n := r.Peek(dst)
	require.Equal(t, 2, n)
	assert.Equal(t, []float64{1.5, 2.5}, dst[:n])
	assert.Equal(t, 2, r.Len())

	n = r.Read(dst)
	require.Equal(t, 2, n)
	assert.Equal(t, 0, r.Len())
}

func TestRing_WrapAround(t *testing.T) {
	r := NewRing[int](4)
	dst := make([]int, 4)

	// Walk the read/write positions past the physical end several times.
	for round := range 10 {
		for i := range 3 {
			r.Write(round*10 + i)
		}
		n := r.Read(dst[:3])
		require.Equal(t, 3, n)
		for i := range 3 {
			assert.Equal(t, round*10+i, dst[i])
		}
	}
}

func TestRing_OverwriteOldestWhenFull(t *testing.T) {
	r := NewRing[int](3)
	for i := range 5 {
		r.Write(i)
	}
	assert.Equal(t, 3, r.Len(), "occupancy must never exceed capacity")

	dst := make([]int, 3)
	n := r.Read(dst)
	require.Equal(t, 3, n)
	assert.Equal(t, []int{2, 3, 4}, dst)
}

func TestRing_RemoveFront(t *testing.T) {
	r := NewRing[int](8)
	for i := range 6 {
		r.Write(i)
	}

	removed := r.Remove(4)
	assert.Equal(t, 4, removed)
	assert.Equal(t, 2, r.Len())

	// Removing more than stored is clamped.
	removed = r.Remove(10)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, r.Len())
}

func TestRing_WriteIndexAdvances(t *testing.T) {
	r := NewRing[int](4)
	assert.Equal(t, 0, r.WriteIndex())
	r.Write(1)
	assert.Equal(t, 1, r.WriteIndex())
	r.Write(2)
	r.Write(3)
	r.Write(4)
	assert.Equal(t, 0, r.WriteIndex(), "write index wraps at capacity")
}

func TestRing_Clear(t *testing.T) {
	r := NewRing[int](4)
	r.Write(1)
	r.Write(2)
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 4, r.Space())
}
