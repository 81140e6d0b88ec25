// SPDX-License-Identifier: MIT
/*
Package ringbuf implements the bounded queues that connect the audio
callbacks, the engine loop and the controller.

A Ring has exactly one producer goroutine and one consumer goroutine. Both
ends are wait-free: TryPush fails with ErrFull instead of blocking and TryPop
reports an empty ring instead of waiting. Storage is allocated once in New
and never grows, so neither end allocates after construction.
*/
package ringbuf

import (
	"errors"
	"sync/atomic"

	"tapeloop/pkg/bitint"
)

// ErrFull is returned by TryPush when the ring has no free slot.
var ErrFull = errors.New("ring buffer is full")

// cacheLine separates the producer and consumer cursors.
const cacheLine = 64

type Ring[T any] struct {
	buf  []T
	size int

	head atomic.Uint64 // next slot to read, owned by the consumer
	_    [cacheLine - 8]byte
	tail atomic.Uint64 // next slot to write, owned by the producer
	_    [cacheLine - 8]byte
}

// New creates a ring holding at least capacity items. The capacity is
// rounded up to a power of two so cursors can be masked instead of divided.
func New[T any](capacity int) *Ring[T] {
	size := bitint.NextPowerOfTwo(capacity)
	return &Ring[T]{
		buf:  make([]T, size),
		size: size,
	}
}

// TryPush appends v. Producer side only.
func (r *Ring[T]) TryPush(v T) error {
	tail := r.tail.Load()
	if tail-r.head.Load() >= uint64(r.size) {
		return ErrFull
	}
	r.buf[bitint.Wrap(tail, r.size)] = v
	r.tail.Store(tail + 1)
	return nil
}

// TryPop removes the oldest item. Consumer side only.
func (r *Ring[T]) TryPop() (T, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		var zero T
		return zero, false
	}
	v := r.buf[bitint.Wrap(head, r.size)]
	r.head.Store(head + 1)
	return v, true
}

// Discard drops up to n of the oldest items and returns how many were
// dropped. Consumer side only.
func (r *Ring[T]) Discard(n int) int {
	if n <= 0 {
		return 0
	}
	head := r.head.Load()
	avail := r.tail.Load() - head
	if uint64(n) > avail {
		n = int(avail)
	}
	r.head.Store(head + uint64(n))
	return n
}

// Len returns the number of occupied slots. It is exact when called from
// either end and a lower or upper bound otherwise.
func (r *Ring[T]) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail < head {
		return 0
	}
	n := int(tail - head)
	if n > r.size {
		n = r.size
	}
	return n
}

// empty reports whether the ring has no occupied slot.
func (r *Ring[T]) empty() bool {
	return r.Len() == 0
}

// Cap returns the fixed number of slots.
func (r *Ring[T]) Cap() int {
	return r.size
}
