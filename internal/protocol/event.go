// SPDX-License-Identifier: MIT
package protocol

import (
	"fmt"

	"tapeloop/internal/analysis"
	"tapeloop/internal/tape"
)

// PeakSlots holds one peak per tape plus the live input.
const PeakSlots = tape.Count + 1

// InputPeakSlot is the peak slot reserved for the play-through input.
const InputPeakSlot = tape.Count

// EventKind enumerates the state deltas the engine reports.
type EventKind uint8

const (
	AudioIndex EventKind = iota
	Recording
	RecordingPlayback
	PlayThrough
	ShowBeat
	BeatIndex
	Peaks
	Waveform
	Spectrum

	eventKindCount
)

func (k EventKind) String() string {
	switch k {
	case AudioIndex:
		return "AudioIndex"
	case Recording:
		return "Recording"
	case RecordingPlayback:
		return "RecordingPlayback"
	case PlayThrough:
		return "PlayThrough"
	case ShowBeat:
		return "ShowBeat"
	case BeatIndex:
		return "BeatIndex"
	case Peaks:
		return "Peaks"
	case Waveform:
		return "Waveform"
	case Spectrum:
		return "Spectrum"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is one state delta. Which fields are meaningful depends on Kind:
//
//	AudioIndex                          Index
//	Recording, RecordingPlayback,
//	PlayThrough, ShowBeat               Flag
//	BeatIndex                           Beat
//	Peaks                               Peaks
//	Waveform                            Tape, Waveform
//	Spectrum                            Spectrum
type Event struct {
	Kind     EventKind
	Flag     bool
	Index    int
	Beat     uint32
	Tape     int
	Peaks    [PeakSlots]float32
	Waveform [analysis.WaveformSize]float32
	Spectrum [analysis.Bands]float32
}
