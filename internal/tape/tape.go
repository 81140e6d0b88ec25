// SPDX-License-Identifier: MIT
/*
Package tape holds the recorded material of the looper.

A Tape is a fixed-length buffer of interleaved float32 samples indexed by
absolute tape position, plus its volume, mute and solo state. Tapes are owned
by the engine loop; nothing in this package is safe for concurrent use.
*/
package tape

import "fmt"

const (
	Count       = 8    // Number of tape slots
	VolumeStep  = 0.05 // Volume change per VolumeUp/VolumeDown
	BeatsPerBar = 4    // 4/4 time
)

type Tape struct {
	samples []float32
	volume  float32
	muted   bool
	solo    bool
}

// New creates a silent tape of length samples at full volume.
func New(length int) *Tape {
	return &Tape{
		samples: make([]float32, length),
		volume:  1.0,
	}
}

// Gain is the factor applied to every mixed sample: 0 when muted, otherwise
// the volume.
func (t *Tape) Gain() float32 {
	if t.muted {
		return 0
	}
	return t.volume
}

func (t *Tape) Volume() float32 { return t.volume }
func (t *Tape) Muted() bool     { return t.muted }
func (t *Tape) Solo() bool      { return t.solo }
func (t *Tape) Len() int        { return len(t.samples) }

// Samples exposes the backing buffer. Callers must not retain it across a
// Replace.
func (t *Tape) Samples() []float32 { return t.samples }

// At returns the sample at position i.
func (t *Tape) At(i int) float32 { return t.samples[i] }

// StepVolume moves the volume one VolumeStep up (dir > 0) or down (dir < 0),
// clamped to [0, 1].
func (t *Tape) StepVolume(dir int) {
	switch {
	case dir > 0:
		t.volume += VolumeStep
	case dir < 0:
		t.volume -= VolumeStep
	}
	if t.volume > 1.0 {
		t.volume = 1.0
	}
	if t.volume < 0.0 {
		t.volume = 0.0
	}
}

func (t *Tape) VolumeUp()   { t.StepVolume(1) }
func (t *Tape) VolumeDown() { t.StepVolume(-1) }

func (t *Tape) ToggleMute() { t.muted = !t.muted }
func (t *Tape) ToggleSolo() { t.solo = !t.solo }

// Clear overwrites every sample with value. O(len); engine loop only.
func (t *Tape) Clear(value float32) {
	for i := range t.samples {
		t.samples[i] = value
	}
}

// Replace swaps in samples as the new tape content and returns the previous
// buffer so the caller can recycle it. The length must match.
func (t *Tape) Replace(samples []float32) []float32 {
	if len(samples) != len(t.samples) {
		panic(fmt.Sprintf("tape: replace with %d samples, tape holds %d", len(samples), len(t.samples)))
	}
	old := t.samples
	t.samples = samples
	return old
}

// Add sums other into the tape sample by sample. No clipping is applied.
func (t *Tape) Add(other []float32) {
	n := min(len(other), len(t.samples))
	for i := range n {
		t.samples[i] += other[i]
	}
}

// Length computes the tape length in samples for the given stream format and
// loop size, truncated to a whole number of frames.
func Length(sampleRate float64, channels, bpm, bars int) int {
	if channels <= 0 || bpm <= 0 || bars <= 0 || sampleRate <= 0 {
		return 0
	}
	n := int(int64(sampleRate) * int64(channels) * BeatsPerBar * 60 * int64(bars) / int64(bpm))
	return n - n%channels
}

// BarSeconds is the duration of one bar at bpm.
func BarSeconds(bpm int) float64 {
	return BeatsPerBar * 60.0 / float64(bpm)
}
