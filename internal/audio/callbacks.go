// SPDX-License-Identifier: MIT
package audio

import (
	"tapeloop/internal/protocol"
)

// TrimThreshold is the output backlog above which the output callback
// discards samples to keep latency bounded.
const TrimThreshold = 4096

// InputCallback feeds captured samples into the input queue, tagging each
// with its position on the tape.
//
// Performance Critical:
// - Runs on the audio driver's thread
// - No allocations, no locks, no logging
// - Overflow is counted, never waited on
type InputCallback struct {
	q      *protocol.Queues
	gate   *Gate
	length int
	index  int
}

// NewInputCallback creates a callback for a tape of length samples. gate
// may be nil.
func NewInputCallback(q *protocol.Queues, length int, gate *Gate) *InputCallback {
	return &InputCallback{q: q, gate: gate, length: length}
}

// Process pushes every sample of in. The tape index advances for every
// sample, including those that did not fit, so positions stay aligned with
// wall-clock time.
func (c *InputCallback) Process(in []float32) {
	var dropped uint64
	for _, sample := range in {
		if c.gate != nil {
			sample = c.gate.Apply(sample)
		}
		if err := c.q.Input.TryPush(protocol.Input{Index: c.index, Sample: sample}); err != nil {
			dropped++
		}
		c.index++
		if c.index == c.length {
			c.index = 0
		}
	}
	if dropped > 0 {
		c.q.Diag.InputDropped.Add(dropped)
	}
}

// OutputCallback drains the output queue into the device buffer.
type OutputCallback struct {
	q    *protocol.Queues
	skip int
}

// NewOutputCallback creates a callback for a stream with the given number
// of interleaved channels.
func NewOutputCallback(q *protocol.Queues, channels int) *OutputCallback {
	if channels <= 0 {
		channels = 1
	}
	return &OutputCallback{q: q, skip: TrimThreshold - TrimThreshold%channels}
}

// Fill writes one queued sample per slot of out, or silence on underrun.
// If the queue still holds more than TrimThreshold samples afterwards, a
// whole number of frames is discarded and counted for the engine to report.
func (c *OutputCallback) Fill(out []float32) {
	for i := range out {
		v, ok := c.q.Output.TryPop()
		if !ok {
			v = 0
		}
		out[i] = v
	}

	if c.q.Output.Len() > TrimThreshold {
		if n := c.q.Output.Discard(c.skip); n > 0 {
			c.q.Diag.OutputTrimmed.Add(uint64(n))
		}
	}
}
