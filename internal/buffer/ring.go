// Package buffer implements the fixed-capacity circular buffers used to
// move samples between the simulation and the audio renderer.
package buffer

// Ring is a fixed-capacity circular buffer.
//
// The capacity is set once at construction and never changes. Ring performs
// no internal locking; callers that share a Ring across goroutines must
// serialize access externally.
type Ring[T any] struct {
	data     []T
	readPos  int
	writePos int
	size     int
}

// NewRing creates a ring buffer holding at most capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Write appends one element. If the buffer is full the oldest element is
// dropped so that a producer never blocks.
func (r *Ring[T]) Write(v T) {
	if r.size == len(r.data) {
		r.readPos++
		if r.readPos == len(r.data) {
			r.readPos = 0
		}
		r.size--
	}
	r.data[r.writePos] = v
	r.writePos++
	if r.writePos == len(r.data) {
		r.writePos = 0
	}
	r.size++
}

// Peek copies up to len(dst) elements into dst without removing them.
// It returns the number of elements copied.
func (r *Ring[T]) Peek(dst []T) int {
	n := min(len(dst), r.size)
	pos := r.readPos
	for i := range n {
		dst[i] = r.data[pos]
		pos++
		if pos == len(r.data) {
			pos = 0
		}
	}
	return n
}

// Read copies up to len(dst) elements into dst and removes them from the
// buffer. It returns the number of elements copied.
func (r *Ring[T]) Read(dst []T) int {
	n := r.Peek(dst)
	r.Remove(n)
	return n
}

// Remove discards up to n elements from the front of the buffer and
// returns the number discarded.
func (r *Ring[T]) Remove(n int) int {
	n = min(n, r.size)
	r.readPos = (r.readPos + n) % len(r.data)
	r.size -= n
	return n
}

// Len returns the number of elements currently stored.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Space returns the remaining free capacity.
func (r *Ring[T]) Space() int { return len(r.data) - r.size }

// WriteIndex returns the index the next Write will store to.
func (r *Ring[T]) WriteIndex() int { return r.writePos }

// Clear removes all elements.
func (r *Ring[T]) Clear() {
	r.readPos = 0
	r.writePos = 0
	r.size = 0
}
