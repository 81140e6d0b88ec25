// SPDX-License-Identifier: MIT
package engine

import (
	"tapeloop/internal/analysis"
	"tapeloop/internal/protocol"
	"tapeloop/internal/tape"
)

// apply mutates engine state for one action. Every kind is handled and every
// tape index is clamped, so no action can fail.
func (e *Engine) apply(a protocol.Action) {
	switch a.Kind {
	case protocol.SelectPrimaryTape:
		e.primary = tape.Clamp(a.Tape)
	case protocol.SelectSecondaryTape:
		e.secondary.Toggle(a.Tape)
	case protocol.MergeTapes:
		e.merge()
	case protocol.ToggleRecord:
		if e.recording {
			e.stopRecording()
		} else {
			e.startRecording()
		}
	case protocol.ToggleRecordingPlayback:
		e.recordingPlayback = !e.recordingPlayback
		e.emit(protocol.Event{Kind: protocol.RecordingPlayback, Flag: e.recordingPlayback})
	case protocol.TogglePlayThrough:
		e.playThrough = !e.playThrough
		e.emit(protocol.Event{Kind: protocol.PlayThrough, Flag: e.playThrough})
	case protocol.Write:
		e.export()
	case protocol.Clear:
		i := tape.Clamp(a.Tape)
		e.tapes.Tapes[i].Clear(0)
		e.emitWaveform(i)
		e.notice(protocol.TapeCleared, i, 0)
	case protocol.ClearAll:
		for i, t := range e.tapes.Tapes {
			t.Clear(0)
			e.emitWaveform(i)
		}
		e.notice(protocol.AllTapesCleared, 0, 0)
	case protocol.ToggleMute:
		e.group((*tape.Tape).ToggleMute)
	case protocol.ToggleSolo:
		e.group((*tape.Tape).ToggleSolo)
	case protocol.VolumeUp:
		e.group((*tape.Tape).VolumeUp)
	case protocol.VolumeDown:
		e.group((*tape.Tape).VolumeDown)
	case protocol.StartMetronome:
		e.metronome.SetRunning(true)
	case protocol.StopMetronome:
		e.metronome.SetRunning(false)
	}
}

// group applies fn to the primary tape and every secondary tape, each once.
func (e *Engine) group(fn func(*tape.Tape)) {
	fn(e.tapes.Tapes[e.primary])
	e.secondary.Each(func(i int) {
		if i != e.primary {
			fn(e.tapes.Tapes[i])
		}
	})
}

// merge adds every secondary tape into the primary tape. Secondaries keep
// their content and the primary is never added to itself.
func (e *Engine) merge() {
	e.notice(protocol.TapesMerged, e.primary, int(e.secondary.Mask()))
	dst := e.tapes.Tapes[e.primary]
	e.secondary.Each(func(i int) {
		if i != e.primary {
			dst.Add(e.tapes.Tapes[i].Samples())
		}
	})
	e.emitWaveform(e.primary)
}

func (e *Engine) startRecording() {
	clear(e.take)
	e.recorded = 0
	e.recording = true
	e.emit(protocol.Event{Kind: protocol.Recording, Flag: true})
	e.notice(protocol.RecordingStarted, e.primary, 0)
}

// stopRecording swaps the take into the primary tape. Positions not covered
// by the take become silent.
func (e *Engine) stopRecording() {
	e.recording = false
	e.recordingPlayback = false
	e.emit(protocol.Event{Kind: protocol.Recording, Flag: false})
	e.emit(protocol.Event{Kind: protocol.RecordingPlayback, Flag: false})

	e.take = e.tapes.Tapes[e.primary].Replace(e.take)

	e.emitWaveform(e.primary)
	e.notice(protocol.RecordingStopped, e.recorded, e.primary)
}

// export hands a copy of the writing tape to the exporter. The copy is the
// only allocation an action may make and happens off the sample path.
func (e *Engine) export() {
	if e.exporter == nil {
		e.notice(protocol.ExportDisabled, 0, 0)
		return
	}
	if len(e.writing) == 0 {
		e.notice(protocol.ExportEmpty, 0, 0)
		return
	}
	samples := make([]float32, len(e.writing))
	copy(samples, e.writing)
	if err := e.exporter.TryExport(samples); err != nil {
		e.notice(protocol.ExportBusy, 0, 0)
		return
	}
	e.notice(protocol.ExportQueued, len(samples), 0)
}

func (e *Engine) emitWaveform(i int) {
	e.ev = protocol.Event{Kind: protocol.Waveform, Tape: i}
	analysis.Downsample(e.tapes.Tapes[i].Samples(), e.ev.Waveform[:])
	e.emit(e.ev)
}
