// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapeloop/internal/protocol"
	"tapeloop/internal/tape"
)

// 100 Hz mono at 240 bpm gives a 100 sample tape and a 25 sample beat.
func testOptions() Options {
	return Options{
		SampleRate:      100,
		InputChannels:   1,
		OutputChannels:  1,
		BPM:             240,
		Bars:            1,
		WritingCapacity: 1000,
	}
}

type fakeExporter struct {
	got  [][]float32
	busy bool
}

func (f *fakeExporter) TryExport(samples []float32) error {
	if f.busy {
		return errors.New("busy")
	}
	f.got = append(f.got, samples)
	return nil
}

func newTestEngine(t *testing.T, opts Options, q *protocol.Queues, exp Exporter) *Engine {
	t.Helper()
	if q == nil {
		q = protocol.NewQueues()
	}
	e, err := New(opts, q, exp)
	require.NoError(t, err)
	return e
}

func pushInputs(t *testing.T, q *protocol.Queues, start int, samples ...float32) {
	t.Helper()
	for i, s := range samples {
		require.NoError(t, q.Input.TryPush(protocol.Input{Index: start + i, Sample: s}))
	}
}

func sendActions(t *testing.T, q *protocol.Queues, actions ...protocol.Action) {
	t.Helper()
	for _, a := range actions {
		require.NoError(t, q.SendAction(a))
	}
}

func drainOutput(q *protocol.Queues) []float32 {
	var out []float32
	for {
		v, ok := q.Output.TryPop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func drainEvents(q *protocol.Queues) []protocol.Event {
	var out []protocol.Event
	for {
		v, ok := q.Events.TryPop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func drainNotices(q *protocol.Queues) []protocol.Notice {
	var out []protocol.Notice
	for {
		v, ok := q.Notices.TryPop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func hasNotice(notices []protocol.Notice, code protocol.NoticeCode) bool {
	for _, n := range notices {
		if n.Code == code {
			return true
		}
	}
	return false
}

func lastEvent(events []protocol.Event, kind protocol.EventKind) (protocol.Event, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return protocol.Event{}, false
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Options)
	}{
		{"zero sample rate", func(o *Options) { o.SampleRate = 0 }},
		{"zero input channels", func(o *Options) { o.InputChannels = 0 }},
		{"zero output channels", func(o *Options) { o.OutputChannels = 0 }},
		{"zero bpm", func(o *Options) { o.BPM = 0 }},
		{"zero bars", func(o *Options) { o.Bars = 0 }},
		{"bad spectrum size", func(o *Options) { o.SpectrumSize = 12 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mod(&opts)
			_, err := New(opts, protocol.NewQueues(), nil)
			assert.Error(t, err)
		})
	}
}

func TestTapeLengthFromOptions(t *testing.T) {
	e := newTestEngine(t, testOptions(), nil, nil)
	assert.Equal(t, 100, e.TapeLength())
	for _, tp := range e.tapes.Tapes {
		assert.Equal(t, 100, tp.Len())
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()
	require.True(t, e.recording)

	input := make([]float32, 10)
	input[5] = 0.5
	input[9] = -0.25
	pushInputs(t, q, 0, input...)
	e.Step()

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()
	require.False(t, e.recording)

	primary := e.tapes.Tapes[0]
	for i := range primary.Len() {
		switch i {
		case 5:
			assert.Equal(t, float32(0.5), primary.At(i))
		case 9:
			assert.Equal(t, float32(-0.25), primary.At(i))
		default:
			assert.Zero(t, primary.At(i), "index %d", i)
		}
	}

	events := drainEvents(q)
	wf, ok := lastEvent(events, protocol.Waveform)
	require.True(t, ok, "stopping a recording publishes the tape waveform")
	assert.Equal(t, 0, wf.Tape)
	assert.True(t, hasNotice(drainNotices(q), protocol.RecordingStopped))

	// Playing the tape back reproduces the take.
	drainOutput(q)
	pushInputs(t, q, 0, make([]float32, 10)...)
	e.Step()
	out := drainOutput(q)
	require.Len(t, out, 10)
	assert.Equal(t, float32(0.5), out[5])
	assert.Equal(t, float32(-0.25), out[9])
}

func TestRecordOnSelectedPrimary(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	sendActions(t, q,
		protocol.Action{Kind: protocol.SelectPrimaryTape, Tape: 3},
		protocol.Action{Kind: protocol.ToggleRecord},
	)
	e.Step()
	pushInputs(t, q, 20, 0.1, 0.2)
	e.Step()
	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()

	assert.Equal(t, float32(0.1), e.tapes.Tapes[3].At(20))
	assert.Equal(t, float32(0.2), e.tapes.Tapes[3].At(21))
	assert.Zero(t, e.tapes.Tapes[0].At(20))
}

func TestRecordingLastPassWins(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	length := e.TapeLength()

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()

	// Three full passes over the tape, each at its own level.
	for _, level := range []float32{0.1, 0.2, 0.3} {
		pass := make([]float32, length)
		for i := range pass {
			pass[i] = level
		}
		pushInputs(t, q, 0, pass...)
		e.Step()
	}
	drainNotices(q)

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()

	for i := range length {
		require.Equal(t, float32(0.3), e.tapes.Tapes[0].Samples()[i], "index %d", i)
	}
	assert.Contains(t, drainNotices(q), protocol.Notice{Code: protocol.RecordingStopped, A: 3 * length, B: 0})
}

func TestNewTakeStartsSilent(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()
	pushInputs(t, q, 0, 0.5, 0.5)
	e.Step()
	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()

	// A second take only covering index 1 leaves index 0 silent.
	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()
	pushInputs(t, q, 1, 0.7)
	e.Step()
	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()

	samples := e.tapes.Tapes[0].Samples()
	assert.Zero(t, samples[0])
	assert.Equal(t, float32(0.7), samples[1])
}

func TestStopRecordingDisablesRecordingPlayback(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	sendActions(t, q,
		protocol.Action{Kind: protocol.ToggleRecord},
		protocol.Action{Kind: protocol.ToggleRecordingPlayback},
	)
	e.Step()
	require.True(t, e.recordingPlayback)

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()
	assert.False(t, e.recordingPlayback)

	ev, ok := lastEvent(drainEvents(q), protocol.RecordingPlayback)
	require.True(t, ok)
	assert.False(t, ev.Flag)
}

func TestSoloPrecedence(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	e.tapes.Tapes[0].Clear(0.3)
	e.tapes.Tapes[1].Clear(0.2)
	e.tapes.Tapes[2].Clear(0.1)

	sendActions(t, q, protocol.Action{Kind: protocol.SelectPrimaryTape, Tape: 1},
		protocol.Action{Kind: protocol.ToggleSolo})
	e.Step()
	require.True(t, e.tapes.Tapes[1].Solo())

	pushInputs(t, q, 0, 0, 0, 0)
	e.Step()
	for _, v := range drainOutput(q) {
		assert.Equal(t, float32(0.2), v, "only the soloed tape is heard")
	}

	// Muting the soloed tape silences it; the others stay excluded.
	sendActions(t, q, protocol.Action{Kind: protocol.ToggleMute})
	e.Step()
	pushInputs(t, q, 3, 0, 0, 0)
	e.Step()
	for _, v := range drainOutput(q) {
		assert.Zero(t, v)
	}
}

func TestMixHonorsGain(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	e.tapes.Tapes[0].Clear(0.5)
	e.tapes.Tapes[4].Clear(0.25)

	sendActions(t, q, protocol.Action{Kind: protocol.VolumeDown})
	e.Step()

	pushInputs(t, q, 0, 0, 0)
	e.Step()
	out := drainOutput(q)
	require.Len(t, out, 2)
	want := 0.5*(1-tape.VolumeStep) + 0.25
	assert.InDelta(t, want, float64(out[0]), 1e-6)

	ev, ok := lastEvent(drainEvents(q), protocol.Peaks)
	require.True(t, ok)
	assert.InDelta(t, 0.5*(1-tape.VolumeStep), float64(ev.Peaks[0]), 1e-6)
	assert.InDelta(t, 0.25, float64(ev.Peaks[4]), 1e-6)
	assert.Zero(t, ev.Peaks[1])
}

func TestOutputFullKeepsProcessing(t *testing.T) {
	q := protocol.NewQueuesWithCapacity(64, 4)
	e := newTestEngine(t, testOptions(), q, nil)

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecord})
	e.Step()
	drainEvents(q)

	samples := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	pushInputs(t, q, 0, samples...)
	e.Step()

	assert.Equal(t, 4, q.Output.Len())
	assert.True(t, hasNotice(drainNotices(q), protocol.OutputFull))
	assert.Equal(t, len(samples), e.recorded, "recording continues past a full output queue")

	ev, ok := lastEvent(drainEvents(q), protocol.AudioIndex)
	require.True(t, ok)
	assert.Equal(t, 9, ev.Index)
}

func TestChannelRealign(t *testing.T) {
	q := protocol.NewQueues()
	opts := testOptions()
	opts.OutputChannels = 2
	e := newTestEngine(t, opts, q, nil)

	pushInputs(t, q, 0, 0.1, 0.2, 0.3)
	e.Step()
	assert.Equal(t, 4, q.Output.Len(), "exactly one zero is appended")

	notices := drainNotices(q)
	require.True(t, hasNotice(notices, protocol.ChannelRealign))
	for _, n := range notices {
		if n.Code == protocol.ChannelRealign {
			assert.Equal(t, 2, n.A)
		}
	}

	out := drainOutput(q)
	assert.Zero(t, out[3])

	pushInputs(t, q, 3, 0.1, 0.2)
	e.Step()
	assert.Equal(t, 2, q.Output.Len())
	assert.False(t, hasNotice(drainNotices(q), protocol.ChannelRealign))
}

func TestMergeEmptySecondarySetIsNoop(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	for i := range e.tapes.Tapes[0].Samples() {
		e.tapes.Tapes[0].Samples()[i] = float32(i) / 100
	}
	e.tapes.Tapes[1].Clear(0.5)
	before := append([]float32(nil), e.tapes.Tapes[0].Samples()...)

	sendActions(t, q, protocol.Action{Kind: protocol.MergeTapes})
	e.Step()
	assert.Equal(t, before, e.tapes.Tapes[0].Samples())

	// Selecting the primary as a secondary does not double it.
	sendActions(t, q,
		protocol.Action{Kind: protocol.SelectSecondaryTape, Tape: 0},
		protocol.Action{Kind: protocol.MergeTapes},
	)
	e.Step()
	assert.Equal(t, before, e.tapes.Tapes[0].Samples())
}

func TestMergeAddsSecondaries(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	e.tapes.Tapes[0].Clear(0.2)
	e.tapes.Tapes[1].Clear(0.1)
	e.tapes.Tapes[2].Clear(0.05)

	sendActions(t, q,
		protocol.Action{Kind: protocol.SelectSecondaryTape, Tape: 1},
		protocol.Action{Kind: protocol.SelectSecondaryTape, Tape: 2},
		protocol.Action{Kind: protocol.MergeTapes},
	)
	e.Step()

	for _, v := range e.tapes.Tapes[0].Samples() {
		assert.InDelta(t, 0.35, float64(v), 1e-6)
	}
	assert.Equal(t, float32(0.1), e.tapes.Tapes[1].At(0), "secondaries keep their content")

	notices := drainNotices(q)
	require.True(t, hasNotice(notices, protocol.TapesMerged))
	for _, n := range notices {
		if n.Code == protocol.TapesMerged {
			assert.Equal(t, 0, n.A)
			assert.Equal(t, 0b110, n.B)
		}
	}
}

func TestGroupOperations(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	sendActions(t, q,
		protocol.Action{Kind: protocol.SelectPrimaryTape, Tape: 2},
		protocol.Action{Kind: protocol.SelectSecondaryTape, Tape: 2},
		protocol.Action{Kind: protocol.SelectSecondaryTape, Tape: 5},
		protocol.Action{Kind: protocol.ToggleMute},
		protocol.Action{Kind: protocol.VolumeDown},
	)
	e.Step()

	assert.True(t, e.tapes.Tapes[2].Muted(), "primary in the secondary set toggles once")
	assert.True(t, e.tapes.Tapes[5].Muted())
	assert.False(t, e.tapes.Tapes[0].Muted())
	assert.InDelta(t, 1-tape.VolumeStep, float64(e.tapes.Tapes[2].Volume()), 1e-6)
	assert.InDelta(t, 1-tape.VolumeStep, float64(e.tapes.Tapes[5].Volume()), 1e-6)
	assert.Equal(t, float32(1), e.tapes.Tapes[0].Volume())

	// Deselecting removes a tape from the group.
	sendActions(t, q,
		protocol.Action{Kind: protocol.SelectSecondaryTape, Tape: 5},
		protocol.Action{Kind: protocol.ToggleSolo},
	)
	e.Step()
	assert.True(t, e.tapes.Tapes[2].Solo())
	assert.False(t, e.tapes.Tapes[5].Solo())
}

func TestClear(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	for _, tp := range e.tapes.Tapes {
		tp.Clear(0.4)
	}

	sendActions(t, q, protocol.Action{Kind: protocol.Clear, Tape: 6})
	e.Step()
	for _, v := range e.tapes.Tapes[6].Samples() {
		require.Zero(t, v)
	}
	assert.Equal(t, float32(0.4), e.tapes.Tapes[0].At(0))

	ev, ok := lastEvent(drainEvents(q), protocol.Waveform)
	require.True(t, ok)
	assert.Equal(t, 6, ev.Tape)
	for _, v := range ev.Waveform {
		assert.Zero(t, v)
	}
	notices := drainNotices(q)
	require.NotEmpty(t, notices)
	assert.Equal(t, protocol.Notice{Code: protocol.TapeCleared, A: 6}, notices[len(notices)-1])

	sendActions(t, q, protocol.Action{Kind: protocol.ClearAll})
	e.Step()
	for i, tp := range e.tapes.Tapes {
		for _, v := range tp.Samples() {
			require.Zero(t, v, "tape %d", i)
		}
	}
	waveforms := 0
	for _, ev := range drainEvents(q) {
		if ev.Kind == protocol.Waveform {
			waveforms++
		}
	}
	assert.Equal(t, tape.Count, waveforms)
	assert.True(t, hasNotice(drainNotices(q), protocol.AllTapesCleared))
}

func TestEveryActionIsTotal(t *testing.T) {
	indices := []int{-100, -1, 0, 3, tape.Count - 1, tape.Count, 1000}
	kinds := append(protocol.ActionKinds(), protocol.ActionKind(200))

	for _, kind := range kinds {
		for _, idx := range indices {
			q := protocol.NewQueues()
			e := newTestEngine(t, testOptions(), q, &fakeExporter{})
			a := protocol.Action{Kind: kind, Tape: idx}

			assert.NotPanics(t, func() {
				sendActions(t, q, a)
				e.Step()
				// Toggle recording twice so the stop path runs too.
				pushInputs(t, q, 0, 0.1)
				sendActions(t, q, a, protocol.Action{Kind: protocol.ToggleRecord}, protocol.Action{Kind: protocol.ToggleRecord})
				e.Step()
			}, "%s", a)

			assert.GreaterOrEqual(t, e.primary, 0, "%s", a)
			assert.Less(t, e.primary, tape.Count, "%s", a)
			for i, tp := range e.tapes.Tapes {
				assert.Equal(t, e.TapeLength(), tp.Len(), "%s tape %d", a, i)
			}
		}
	}
}

func TestPlayThroughMixesInput(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	e.tapes.Tapes[0].Clear(0.1)

	pushInputs(t, q, 0, 0.5)
	e.Step()
	assert.Equal(t, []float32{0.1}, drainOutput(q), "input is not heard without play-through")

	sendActions(t, q, protocol.Action{Kind: protocol.TogglePlayThrough})
	e.Step()
	drainEvents(q)

	pushInputs(t, q, 1, 0.5, -0.7)
	e.Step()
	out := drainOutput(q)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.6, float64(out[0]), 1e-6)
	assert.InDelta(t, -0.6, float64(out[1]), 1e-6)

	ev, ok := lastEvent(drainEvents(q), protocol.Peaks)
	require.True(t, ok)
	assert.InDelta(t, 0.7, float64(ev.Peaks[protocol.InputPeakSlot]), 1e-6)
}

func TestPeaksOnlyWhenSamplesProcessed(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	e.Step()
	events := drainEvents(q)
	_, ok := lastEvent(events, protocol.Peaks)
	assert.False(t, ok)
	_, ok = lastEvent(events, protocol.AudioIndex)
	assert.True(t, ok, "audio index is reported every iteration")
}

func TestMetronomeClick(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	pushInputs(t, q, 0, 0, 0, 0, 0)
	e.Step()
	for _, v := range drainOutput(q) {
		assert.Zero(t, v, "stopped metronome is silent")
	}

	sendActions(t, q, protocol.Action{Kind: protocol.StartMetronome})
	e.Step()
	pushInputs(t, q, 4, 0, 0, 0, 0)
	e.Step()
	out := drainOutput(q)
	require.Len(t, out, 4)
	for i, v := range out {
		assert.Equal(t, e.metronome.Click(4+i), v)
	}
	assert.NotZero(t, out[1])

	sendActions(t, q, protocol.Action{Kind: protocol.StopMetronome})
	e.Step()
	pushInputs(t, q, 8, 0, 0)
	e.Step()
	for _, v := range drainOutput(q) {
		assert.Zero(t, v)
	}
}

func TestBeatEvents(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	// 60 samples at a 25 sample period: beat 2, 10 samples past the tick.
	pushInputs(t, q, 0, make([]float32, 60)...)
	e.Step()

	events := drainEvents(q)
	beat, ok := lastEvent(events, protocol.BeatIndex)
	require.True(t, ok)
	assert.Equal(t, uint32(2), beat.Beat)
	show, ok := lastEvent(events, protocol.ShowBeat)
	require.True(t, ok)
	assert.True(t, show.Flag)
}

func TestWritingTapeAndExport(t *testing.T) {
	q := protocol.NewQueues()
	exp := &fakeExporter{}
	e := newTestEngine(t, testOptions(), q, exp)
	e.tapes.Tapes[0].Clear(0.1)

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecordingPlayback})
	e.Step()
	pushInputs(t, q, 0, 0.2, 0.3)
	e.Step()

	sendActions(t, q, protocol.Action{Kind: protocol.Write})
	e.Step()
	require.Len(t, exp.got, 1)
	require.Len(t, exp.got[0], 2)
	assert.InDelta(t, 0.3, float64(exp.got[0][0]), 1e-6)
	assert.InDelta(t, 0.4, float64(exp.got[0][1]), 1e-6)

	notices := drainNotices(q)
	require.NotEmpty(t, notices)
	assert.Equal(t, protocol.Notice{Code: protocol.ExportQueued, A: 2}, notices[len(notices)-1])

	// The exported slice is a copy.
	exp.got[0][0] = 9
	assert.InDelta(t, 0.3, float64(e.writing[0]), 1e-6)

	exp.busy = true
	sendActions(t, q, protocol.Action{Kind: protocol.Write})
	e.Step()
	assert.True(t, hasNotice(drainNotices(q), protocol.ExportBusy))
}

func TestWritingTapeFollowsTheMix(t *testing.T) {
	q := protocol.NewQueues()
	exp := &fakeExporter{}
	e := newTestEngine(t, testOptions(), q, exp)
	e.tapes.Tapes[0].Clear(0.1)

	// Without recording-playback only the tapes are written.
	pushInputs(t, q, 0, 0.2, 0.3)
	e.Step()
	sendActions(t, q, protocol.Action{Kind: protocol.Write})
	e.Step()

	require.Len(t, exp.got, 1)
	require.Len(t, exp.got[0], 2)
	assert.InDelta(t, 0.1, float64(exp.got[0][0]), 1e-6)
	assert.InDelta(t, 0.1, float64(exp.got[0][1]), 1e-6)
	assert.Contains(t, drainNotices(q), protocol.Notice{Code: protocol.ExportQueued, A: 2})
}

func TestWriteWithNothingToExport(t *testing.T) {
	q := protocol.NewQueues()
	exp := &fakeExporter{}
	e := newTestEngine(t, testOptions(), q, exp)

	sendActions(t, q, protocol.Action{Kind: protocol.Write})
	e.Step()
	notices := drainNotices(q)
	assert.True(t, hasNotice(notices, protocol.ExportEmpty))
	assert.False(t, hasNotice(notices, protocol.ExportBusy))
	assert.Empty(t, exp.got)

	noExport := newTestEngine(t, testOptions(), q, nil)
	pushInputs(t, q, 0, 0.2)
	noExport.Step()
	sendActions(t, q, protocol.Action{Kind: protocol.Write})
	noExport.Step()
	assert.True(t, hasNotice(drainNotices(q), protocol.ExportDisabled))
}

func TestWritingDisabledStaysQuiet(t *testing.T) {
	q := protocol.NewQueues()
	opts := testOptions()
	opts.WritingCapacity = 0
	e := newTestEngine(t, opts, q, nil)

	pushInputs(t, q, 0, 0.1, 0.2)
	e.Step()
	assert.Empty(t, e.writing)
	assert.False(t, hasNotice(drainNotices(q), protocol.WritingFull))
}

func TestWritingTapeFull(t *testing.T) {
	q := protocol.NewQueues()
	opts := testOptions()
	opts.WritingCapacity = 3
	e := newTestEngine(t, opts, q, nil)

	sendActions(t, q, protocol.Action{Kind: protocol.ToggleRecordingPlayback})
	e.Step()
	pushInputs(t, q, 0, 1, 1, 1, 1, 1)
	e.Step()

	assert.Len(t, e.writing, 3)
	var full int
	for _, n := range drainNotices(q) {
		if n.Code == protocol.WritingFull {
			full++
		}
	}
	assert.Equal(t, 1, full, "the full writing tape is reported once")
}

func TestDiagnosticsBecomeNotices(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	q.Diag.InputDropped.Add(5)
	q.Diag.OutputTrimmed.Add(4096)
	e.Step()

	notices := drainNotices(q)
	assert.Contains(t, notices, protocol.Notice{Code: protocol.InputBehind, A: 5})
	assert.Contains(t, notices, protocol.Notice{Code: protocol.OutputTrimmed, A: 4096})
	assert.Zero(t, q.Diag.InputDropped.Load())

	e.Step()
	assert.Empty(t, drainNotices(q))
}

func TestReceiverBusy(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)

	// Each idle iteration emits three events; nobody drains them.
	for range protocol.EventCapacity/3 + 2 {
		e.Step()
	}

	assert.Positive(t, e.DroppedEvents())
	assert.True(t, hasNotice(drainNotices(q), protocol.ReceiverBusy))
}

func TestSpectrumEvents(t *testing.T) {
	q := protocol.NewQueues()
	opts := testOptions()
	opts.SpectrumSize = 16
	opts.SpectrumEvery = 1
	e := newTestEngine(t, opts, q, nil)
	sendActions(t, q, protocol.Action{Kind: protocol.TogglePlayThrough})
	e.Step()

	samples := make([]float32, 32)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 25 * float64(i) / 100))
	}
	pushInputs(t, q, 0, samples...)
	e.Step()

	ev, ok := lastEvent(drainEvents(q), protocol.Spectrum)
	require.True(t, ok)
	var peak float32
	for _, v := range ev.Spectrum {
		peak = max(peak, v)
	}
	assert.InDelta(t, 1.0, float64(peak), 1e-6, "bands are normalized to the loudest")
}

func TestStepNoAllocs(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	e.tapes.Tapes[0].Clear(0.1)
	require.NoError(t, q.SendAction(protocol.Action{Kind: protocol.StartMetronome}))
	e.Step()

	index := 0
	allocs := testing.AllocsPerRun(100, func() {
		for range 32 {
			_ = q.Input.TryPush(protocol.Input{Index: index, Sample: 0.1})
			index = (index + 1) % e.TapeLength()
		}
		e.Step()
		q.Output.Discard(q.Output.Len())
		q.Events.Discard(q.Events.Len())
		q.Notices.Discard(q.Notices.Len())
	})
	assert.Zero(t, allocs)
}

func TestRunWithManualScheduler(t *testing.T) {
	q := protocol.NewQueues()
	e := newTestEngine(t, testOptions(), q, nil)
	sched := NewManualScheduler()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, sched) }()

	pushInputs(t, q, 0, 0.25, 0.25)
	sched.Tick()
	sched.Tick()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 2, len(drainOutput(q)))
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(0)
	defer s.Stop()
	select {
	case <-s.Ticks():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func BenchmarkStep(b *testing.B) {
	q := protocol.NewQueues()
	e, err := New(testOptions(), q, nil)
	if err != nil {
		b.Fatal(err)
	}
	e.tapes.Tapes[0].Clear(0.1)
	index := 0
	for b.Loop() {
		for range 128 {
			_ = q.Input.TryPush(protocol.Input{Index: index})
			index = (index + 1) % e.TapeLength()
		}
		e.Step()
		q.Output.Discard(q.Output.Len())
		q.Events.Discard(q.Events.Len())
		q.Notices.Discard(q.Notices.Len())
	}
}
