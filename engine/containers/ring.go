package containers

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Ring is a fixed capacity overwrite ring of ordered values. The capacity is
// rounded up to a power of two so that wrapping is a mask instead of a modulo.
type Ring[T constraints.Ordered] struct {
	data  []T
	mask  int
	index int
	count int
}

func NewRing[T constraints.Ordered](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	size := 1 << bits.Len(uint(capacity-1))
	return &Ring[T]{
		data: make([]T, size),
		mask: size - 1,
	}
}

// Push stores v in the next slot and returns the value it replaced. The
// second result is false while the ring has not wrapped yet.
func (r *Ring[T]) Push(v T) (T, bool) {
	old := r.data[r.index]
	evicted := r.count == len(r.data)
	r.data[r.index] = v
	r.index = (r.index + 1) & r.mask
	if !evicted {
		r.count++
	}
	return old, evicted
}

// At returns the i-th oldest stored value.
func (r *Ring[T]) At(i int) T {
	start := (r.index - r.count) & r.mask
	return r.data[(start+i)&r.mask]
}

func (r *Ring[T]) Len() int {
	return r.count
}

func (r *Ring[T]) Cap() int {
	return len(r.data)
}

// Max returns the largest stored value, or the zero value when empty.
func (r *Ring[T]) Max() T {
	var max T
	for i := 0; i < r.count; i++ {
		v := r.At(i)
		if i == 0 || v > max {
			max = v
		}
	}
	return max
}
