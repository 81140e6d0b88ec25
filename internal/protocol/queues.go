// SPDX-License-Identifier: MIT
package protocol

import (
	"errors"
	"fmt"
	"sync/atomic"

	"tapeloop/internal/ringbuf"
)

// Default queue capacities.
const (
	InputCapacity  = 8192 // (index, sample) pairs from the input callback
	OutputCapacity = 8192 // mixed samples for the output callback
	ActionCapacity = 16   // user intent, never bulk data
	EventCapacity  = 1024
	NoticeCapacity = 32
)

// ErrActionQueueFull means the engine has not drained its actions; under
// normal use this only happens when the engine is stuck.
var ErrActionQueueFull = errors.New("action queue is full")

// Input is one captured sample and the tape position it belongs to.
type Input struct {
	Index  int
	Sample float32
}

// Queues bundles every bounded queue of the system. Each ring has exactly
// one producer and one consumer:
//
//	Input    input callback -> engine
//	Output   engine         -> output callback
//	Actions  controller     -> engine
//	Events   engine         -> controller
//	Notices  engine         -> controller
type Queues struct {
	Input   *ringbuf.Ring[Input]
	Output  *ringbuf.Ring[float32]
	Actions *ringbuf.Ring[Action]
	Events  *ringbuf.Ring[Event]
	Notices *ringbuf.Ring[Notice]

	Diag Diagnostics
}

// NewQueues allocates every queue at its default capacity.
func NewQueues() *Queues {
	return NewQueuesWithCapacity(InputCapacity, OutputCapacity)
}

// NewQueuesWithCapacity allocates the sample queues at the given sizes and
// the control queues at their defaults.
func NewQueuesWithCapacity(input, output int) *Queues {
	return &Queues{
		Input:   ringbuf.New[Input](input),
		Output:  ringbuf.New[float32](output),
		Actions: ringbuf.New[Action](ActionCapacity),
		Events:  ringbuf.New[Event](EventCapacity),
		Notices: ringbuf.New[Notice](NoticeCapacity),
	}
}

// SendAction enqueues a for the engine without blocking.
func (q *Queues) SendAction(a Action) error {
	if err := q.Actions.TryPush(a); err != nil {
		return fmt.Errorf("%w: %s", ErrActionQueueFull, a)
	}
	return nil
}

// Diagnostics are counters bumped by the audio callbacks, which own no
// queue they could report on. The engine drains them once per iteration.
type Diagnostics struct {
	InputDropped  atomic.Uint64 // samples the input callback could not push
	OutputTrimmed atomic.Uint64 // samples the output callback skipped
}
