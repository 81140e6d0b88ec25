// SPDX-License-Identifier: MIT
package protocol

import (
	"fmt"
	"strings"

	"tapeloop/internal/tape"
)

// NoticeCode identifies a human-readable log line. The engine only pushes
// codes and integers; text is produced by the consumer.
type NoticeCode uint8

const (
	OutputFull NoticeCode = iota
	ChannelRealign
	TapeCleared
	AllTapesCleared
	TapesMerged
	RecordingStarted
	RecordingStopped
	WritingFull
	ExportQueued
	ExportBusy
	ExportEmpty
	ExportDisabled
	InputBehind
	OutputTrimmed
	ReceiverBusy
)

// Notice is a log entry with up to two integer arguments.
type Notice struct {
	Code NoticeCode
	A, B int
}

func (n Notice) String() string {
	switch n.Code {
	case OutputFull:
		return fmt.Sprintf("buffer is full: %d", n.A)
	case ChannelRealign:
		return fmt.Sprintf("output length %% %d is not 0, fixing", n.A)
	case TapeCleared:
		return fmt.Sprintf("Cleared tape %d", n.A+1)
	case AllTapesCleared:
		return "Cleared all tapes"
	case TapesMerged:
		return fmt.Sprintf("Merging tapes, primary: %d, secondary: %s", n.A+1, maskString(n.B))
	case RecordingStarted:
		return fmt.Sprintf("Recording on tape %d", n.A+1)
	case RecordingStopped:
		return fmt.Sprintf("Recorded %d samples on tape %d", n.A, n.B+1)
	case WritingFull:
		return fmt.Sprintf("Writing tape is full at %d samples", n.A)
	case ExportQueued:
		return fmt.Sprintf("Writing %d samples to disk", n.A)
	case ExportBusy:
		return "Export already in progress"
	case ExportEmpty:
		return "Nothing to write"
	case ExportDisabled:
		return "Writing to disk is not available"
	case InputBehind:
		return fmt.Sprintf("Audio processing fell behind, %d input samples lost", n.A)
	case OutputTrimmed:
		return fmt.Sprintf("Skipped %d output samples", n.A)
	case ReceiverBusy:
		return fmt.Sprintf("Receiver busy, %d events dropped", n.A)
	default:
		return fmt.Sprintf("notice %d (%d, %d)", n.Code, n.A, n.B)
	}
}

// maskString renders a tape bitmask as one-based slot numbers.
func maskString(mask int) string {
	var parts []string
	for i := range tape.Count {
		if mask&(1<<i) != 0 {
			parts = append(parts, fmt.Sprint(i+1))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
