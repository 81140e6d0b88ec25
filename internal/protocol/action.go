// SPDX-License-Identifier: MIT
/*
Package protocol defines the messages exchanged between the controller, the
engine loop and the audio callbacks, and the bounded queues that carry them.

Every message is a fixed-size value. Producing one never allocates, so the
engine can emit events and notices from its loop without touching the heap.
*/
package protocol

import "fmt"

// ActionKind enumerates the commands the controller can issue.
type ActionKind uint8

const (
	SelectPrimaryTape ActionKind = iota
	SelectSecondaryTape
	MergeTapes
	ToggleRecord
	ToggleRecordingPlayback
	TogglePlayThrough
	Write
	Clear
	ClearAll
	ToggleMute
	ToggleSolo
	VolumeUp
	VolumeDown
	StartMetronome
	StopMetronome

	actionKindCount
)

var actionNames = [actionKindCount]string{
	SelectPrimaryTape:       "select_primary",
	SelectSecondaryTape:     "select_secondary",
	MergeTapes:              "merge",
	ToggleRecord:            "record",
	ToggleRecordingPlayback: "record_playback",
	TogglePlayThrough:       "play_through",
	Write:                   "write",
	Clear:                   "clear",
	ClearAll:                "clear_all",
	ToggleMute:              "mute",
	ToggleSolo:              "solo",
	VolumeUp:                "volume_up",
	VolumeDown:              "volume_down",
	StartMetronome:          "metronome_start",
	StopMetronome:           "metronome_stop",
}

func (k ActionKind) String() string {
	if k < actionKindCount {
		return actionNames[k]
	}
	return fmt.Sprintf("ActionKind(%d)", uint8(k))
}

// Valid reports whether k is a known action.
func (k ActionKind) Valid() bool {
	return k < actionKindCount
}

// ParseActionKind maps a wire name (as produced by String) back to its kind.
func ParseActionKind(name string) (ActionKind, error) {
	for k, n := range actionNames {
		if n == name {
			return ActionKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// ActionKinds lists every action in declaration order.
func ActionKinds() []ActionKind {
	kinds := make([]ActionKind, actionKindCount)
	for i := range kinds {
		kinds[i] = ActionKind(i)
	}
	return kinds
}

// Action is a command plus its optional tape payload. Tape is only read by
// SelectPrimaryTape, SelectSecondaryTape and Clear.
type Action struct {
	Kind ActionKind
	Tape int
}

func (a Action) String() string {
	switch a.Kind {
	case SelectPrimaryTape, SelectSecondaryTape, Clear:
		return fmt.Sprintf("%s(%d)", a.Kind, a.Tape)
	default:
		return a.Kind.String()
	}
}
