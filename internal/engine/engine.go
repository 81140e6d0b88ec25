// SPDX-License-Identifier: MIT
/*
Package engine implements the looper's single-owner processing loop:
- Drains the input queue, mixes the tapes and pushes to the output queue
- Records into the primary tape and accumulates the writing tape
- Applies user actions between iterations
- Reports state deltas as events and log lines as notices

Thread Safety:
- All tape state is owned by the goroutine calling Step or Run
- Communication with other goroutines happens only through protocol.Queues
- No allocation on the per-iteration path once constructed
*/
package engine

import (
	"fmt"
	"sync/atomic"

	"tapeloop/internal/analysis"
	"tapeloop/internal/metronome"
	"tapeloop/internal/protocol"
	"tapeloop/internal/tape"
)

// DefaultSpectrumEvery is the number of iterations between spectrum events.
const DefaultSpectrumEvery = 33

// Exporter receives a copy of the writing tape when a Write action is applied.
// TryExport must not block.
type Exporter interface {
	TryExport(samples []float32) error
}

// Options describe the engine's fixed geometry.
type Options struct {
	SampleRate     float64
	InputChannels  int
	OutputChannels int
	BPM            int
	Bars           int

	// WritingCapacity bounds the writing tape in samples. Zero disables it.
	WritingCapacity int

	// SpectrumSize is the FFT size in frames. Zero disables the spectrum.
	SpectrumSize   int
	SpectrumWindow analysis.WindowFunc
	SpectrumEvery  int
}

// TapeLength returns the tape length in samples implied by the options.
func (o Options) TapeLength() int {
	return tape.Length(o.SampleRate, o.InputChannels, o.BPM, o.Bars)
}

func (o Options) validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %v", o.SampleRate)
	}
	if o.InputChannels <= 0 || o.OutputChannels <= 0 {
		return fmt.Errorf("channel counts must be positive, got in=%d out=%d", o.InputChannels, o.OutputChannels)
	}
	if o.BPM <= 0 || o.Bars <= 0 {
		return fmt.Errorf("bpm and bars must be positive, got bpm=%d bars=%d", o.BPM, o.Bars)
	}
	if o.TapeLength() == 0 {
		return fmt.Errorf("tape length is zero for bpm=%d bars=%d", o.BPM, o.Bars)
	}
	return nil
}

// Engine is the looper's state machine. Create it with New and drive it with
// Step (tests) or Run (production).
type Engine struct {
	opts     Options
	q        *protocol.Queues
	exporter Exporter

	tapes     *tape.Model
	metronome *metronome.Metronome
	spectrum  *analysis.Spectrum

	primary           int
	secondary         tape.SecondarySet
	recording         bool
	recordingPlayback bool
	playThrough       bool
	audioIndex        int

	// take receives recorded samples at their tape index, so the latest
	// pass wins. It is swapped into the primary tape on stop.
	take     []float32
	recorded int

	writing           []float32
	writingFullWarned bool

	iterations   uint64
	busy         atomic.Uint64 // events dropped because the receiver was full
	busyReported uint64

	ev protocol.Event // scratch for large events
}

// New builds an engine with all buffers allocated up front. exporter may be
// nil, in which case Write actions are reported as busy.
func New(opts Options, q *protocol.Queues, exporter Exporter) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine options: %w", err)
	}
	length := opts.TapeLength()
	if opts.SpectrumEvery <= 0 {
		opts.SpectrumEvery = DefaultSpectrumEvery
	}

	e := &Engine{
		opts:      opts,
		q:         q,
		exporter:  exporter,
		tapes:     tape.NewModel(length),
		metronome: metronome.New(opts.BPM, opts.SampleRate, opts.InputChannels),
		take:      make([]float32, length),
		writing:   make([]float32, 0, opts.WritingCapacity),
	}

	if opts.SpectrumSize > 0 {
		s, err := analysis.NewSpectrum(opts.SpectrumSize, opts.SampleRate, opts.OutputChannels, opts.SpectrumWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to create spectrum: %w", err)
		}
		e.spectrum = s
	}

	return e, nil
}

// TapeLength returns the shared length of every tape in samples.
func (e *Engine) TapeLength() int {
	return e.tapes.Tapes[0].Len()
}

// DroppedEvents returns how many events were lost because the event queue
// was full. Safe to call from any goroutine.
func (e *Engine) DroppedEvents() uint64 {
	return e.busy.Load()
}

// Step runs one iteration of the loop.
func (e *Engine) Step() {
	q := e.q
	n := q.Input.Len()

	e.metronome.Advance(n)
	e.emit(protocol.Event{Kind: protocol.ShowBeat, Flag: e.metronome.ShowBeat()})
	e.emit(protocol.Event{Kind: protocol.BeatIndex, Beat: e.metronome.BeatIndex()})

	var peaks [protocol.PeakSlots]float32
	anySolo := e.tapes.AnySolo()
	click := e.metronome.Audible()

	// Exactly n samples are drained so the metronome count matches the
	// samples processed; later arrivals wait for the next iteration.
	for range n {
		in, ok := q.Input.TryPop()
		if !ok {
			break
		}
		index := in.Index
		e.audioIndex = index

		if e.recording {
			e.record(in)
		}

		var mix float32
		for i := range tape.Count {
			c := e.tapes.Contribution(i, index, anySolo)
			peaks[i] = analysis.Peak(peaks[i], c)
			mix += c
		}
		tapeMix := mix

		if e.playThrough {
			mix += in.Sample
			peaks[protocol.InputPeakSlot] = analysis.Peak(peaks[protocol.InputPeakSlot], in.Sample)
		}
		if click {
			mix += e.metronome.Click(index)
		}

		if err := q.Output.TryPush(mix); err != nil {
			e.notice(protocol.OutputFull, q.Output.Len(), 0)
		} else if e.spectrum != nil {
			e.spectrum.Feed(mix)
		}

		if e.recordingPlayback {
			tapeMix += in.Sample
		}
		e.write(tapeMix)
	}

	if ch := e.opts.OutputChannels; q.Output.Len()%ch != 0 {
		e.notice(protocol.ChannelRealign, ch, 0)
		if err := q.Output.TryPush(0); err != nil {
			e.notice(protocol.OutputFull, q.Output.Len(), 0)
		}
	}

	e.emit(protocol.Event{Kind: protocol.AudioIndex, Index: e.audioIndex})
	if n > 0 {
		e.emit(protocol.Event{Kind: protocol.Peaks, Peaks: peaks})
	}

	e.iterations++
	if e.spectrum != nil && e.iterations%uint64(e.opts.SpectrumEvery) == 0 {
		e.ev = protocol.Event{Kind: protocol.Spectrum}
		if e.spectrum.BandsInto(&e.ev.Spectrum) {
			e.emit(e.ev)
		}
	}

	e.reportDiagnostics()

	for {
		a, ok := q.Actions.TryPop()
		if !ok {
			break
		}
		e.apply(a)
	}
}

// record stores one input in the take. A later pass over the same index
// overwrites the earlier one.
func (e *Engine) record(in protocol.Input) {
	if in.Index >= 0 && in.Index < len(e.take) {
		e.take[in.Index] = in.Sample
		e.recorded++
	}
}

// write appends the mix to the writing tape, warning once when it is full.
func (e *Engine) write(v float32) {
	if cap(e.writing) == 0 {
		return
	}
	if len(e.writing) < cap(e.writing) {
		e.writing = append(e.writing, v)
		return
	}
	if !e.writingFullWarned {
		e.writingFullWarned = true
		e.notice(protocol.WritingFull, len(e.writing), 0)
	}
}

// reportDiagnostics turns the counters bumped by the audio callbacks and
// by emit into notices.
func (e *Engine) reportDiagnostics() {
	if lost := e.q.Diag.InputDropped.Swap(0); lost > 0 {
		e.notice(protocol.InputBehind, int(lost), 0)
	}
	if trimmed := e.q.Diag.OutputTrimmed.Swap(0); trimmed > 0 {
		e.notice(protocol.OutputTrimmed, int(trimmed), 0)
	}
	if busy := e.busy.Load(); busy != e.busyReported {
		e.notice(protocol.ReceiverBusy, int(busy-e.busyReported), 0)
		e.busyReported = busy
	}
}

// emit pushes an event, counting it as dropped when the receiver is behind.
func (e *Engine) emit(ev protocol.Event) {
	if err := e.q.Events.TryPush(ev); err != nil {
		e.busy.Add(1)
	}
}

// notice pushes a log line. A full notice queue drops it silently.
func (e *Engine) notice(code protocol.NoticeCode, a, b int) {
	_ = e.q.Notices.TryPush(protocol.Notice{Code: code, A: a, B: b})
}
