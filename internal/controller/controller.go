// SPDX-License-Identifier: MIT
/*
Package controller is the command surface of the looper. It turns method
calls into actions for the engine and folds the engine's events and notices
into a Snapshot that user interfaces and transports can read.

A Controller is safe for concurrent use. Its mutex serializes the action
producers and the event consumer, so the engine still sees exactly one of
each on the lock-free queues.
*/
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tapeloop/internal/analysis"
	"tapeloop/internal/protocol"
	"tapeloop/internal/tape"
)

// LogHistory is the number of log lines kept in the snapshot.
const LogHistory = 10

// DefaultPollInterval is used by Run when no interval is given.
const DefaultPollInterval = 33 * time.Millisecond

// Stats are fixed at startup and shown alongside the live state.
type Stats struct {
	BPM            int     `json:"bpm"`
	Bars           int     `json:"bars"`
	BarSeconds     float64 `json:"bar_seconds"`
	TapeLength     int     `json:"tape_length"`
	SampleRate     float64 `json:"sample_rate"`
	InputDevice    string  `json:"input_device"`
	OutputDevice   string  `json:"output_device"`
	InputChannels  int     `json:"input_channels"`
	OutputChannels int     `json:"output_channels"`
	InputBuffer    int     `json:"input_buffer"`
	OutputBuffer   int     `json:"output_buffer"`
}

// Snapshot is a read-only view of the engine as seen through its events.
type Snapshot struct {
	AudioIndex        int                                        `json:"audio_index"`
	Recording         bool                                       `json:"recording"`
	RecordingPlayback bool                                       `json:"recording_playback"`
	PlayThrough       bool                                       `json:"play_through"`
	ShowBeat          bool                                       `json:"show_beat"`
	BeatIndex         uint32                                     `json:"beat_index"`
	Peaks             [protocol.PeakSlots]float32                `json:"peaks"`
	Waveforms         [tape.Count][analysis.WaveformSize]float32 `json:"waveforms"`
	Spectrum          [analysis.Bands]float32                    `json:"spectrum"`

	Primary     int               `json:"primary"`
	Secondary   tape.SecondarySet `json:"secondary"`
	MetronomeOn bool              `json:"metronome_on"`

	Log           []string `json:"log"`
	Dropped       uint64   `json:"dropped"`
	DroppedEvents uint64   `json:"dropped_events"`
	Stats         Stats    `json:"stats"`
}

// Options configure a Controller.
type Options struct {
	Stats Stats
	// DroppedEvents reports events the engine could not deliver.
	DroppedEvents func() uint64
	// Now is the clock used for log timestamps.
	Now func() time.Time
}

type Controller struct {
	q    *protocol.Queues
	opts Options

	mu      sync.Mutex
	snap    Snapshot
	start   time.Time
	dropped uint64
}

// New creates a controller for the given queues. Log timestamps count from
// this call.
func New(q *protocol.Queues, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{
		q:     q,
		opts:  opts,
		start: opts.Now(),
	}
	c.snap.Stats = opts.Stats
	c.snap.Log = make([]string, 0, LogHistory)
	return c
}

// Do sends a to the engine. Local mirrors of the selection and metronome
// state are only updated when the engine will see the action.
func (c *Controller) Do(a protocol.Action) error {
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown action %s", a.Kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(a)
}

// send must be called with mu held.
func (c *Controller) send(a protocol.Action) error {
	if err := c.q.SendAction(a); err != nil {
		c.dropped++
		return err
	}

	switch a.Kind {
	case protocol.SelectPrimaryTape:
		c.snap.Primary = tape.Clamp(a.Tape)
	case protocol.SelectSecondaryTape:
		c.snap.Secondary.Toggle(a.Tape)
	case protocol.StartMetronome:
		c.snap.MetronomeOn = true
	case protocol.StopMetronome:
		c.snap.MetronomeOn = false
	}
	return nil
}

func (c *Controller) do(kind protocol.ActionKind) error {
	return c.Do(protocol.Action{Kind: kind})
}

func (c *Controller) SelectPrimaryTape(n int) error {
	return c.Do(protocol.Action{Kind: protocol.SelectPrimaryTape, Tape: n})
}

func (c *Controller) SelectSecondaryTape(n int) error {
	return c.Do(protocol.Action{Kind: protocol.SelectSecondaryTape, Tape: n})
}

func (c *Controller) MergeTapes() error     { return c.do(protocol.MergeTapes) }
func (c *Controller) Record() error         { return c.do(protocol.ToggleRecord) }
func (c *Controller) RecordPlayback() error { return c.do(protocol.ToggleRecordingPlayback) }
func (c *Controller) PlayThrough() error    { return c.do(protocol.TogglePlayThrough) }
func (c *Controller) Write() error          { return c.do(protocol.Write) }
func (c *Controller) ClearAll() error       { return c.do(protocol.ClearAll) }
func (c *Controller) ToggleMute() error     { return c.do(protocol.ToggleMute) }
func (c *Controller) ToggleSolo() error     { return c.do(protocol.ToggleSolo) }
func (c *Controller) VolumeUp() error       { return c.do(protocol.VolumeUp) }
func (c *Controller) VolumeDown() error     { return c.do(protocol.VolumeDown) }
func (c *Controller) StartMetronome() error { return c.do(protocol.StartMetronome) }
func (c *Controller) StopMetronome() error  { return c.do(protocol.StopMetronome) }

// Clear clears the primary tape. The selection cannot change between
// reading it and sending.
func (c *Controller) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(protocol.Action{Kind: protocol.Clear, Tape: c.snap.Primary})
}

// SwitchMetronome starts or stops the metronome.
func (c *Controller) SwitchMetronome(on bool) error {
	if on {
		return c.StartMetronome()
	}
	return c.StopMetronome()
}

// ToggleMetronome flips the metronome based on the mirrored state.
func (c *Controller) ToggleMetronome() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kind := protocol.StartMetronome
	if c.snap.MetronomeOn {
		kind = protocol.StopMetronome
	}
	return c.send(protocol.Action{Kind: kind})
}

// Poll drains pending events and notices into the snapshot and returns the
// number of items consumed.
func (c *Controller) Poll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for {
		ev, ok := c.q.Events.TryPop()
		if !ok {
			break
		}
		c.fold(&ev)
		n++
	}
	for {
		notice, ok := c.q.Notices.TryPop()
		if !ok {
			break
		}
		c.appendLog(notice.String())
		n++
	}
	return n
}

func (c *Controller) fold(ev *protocol.Event) {
	s := &c.snap
	switch ev.Kind {
	case protocol.AudioIndex:
		s.AudioIndex = ev.Index
	case protocol.Recording:
		s.Recording = ev.Flag
	case protocol.RecordingPlayback:
		s.RecordingPlayback = ev.Flag
	case protocol.PlayThrough:
		s.PlayThrough = ev.Flag
	case protocol.ShowBeat:
		s.ShowBeat = ev.Flag
	case protocol.BeatIndex:
		s.BeatIndex = ev.Beat
	case protocol.Peaks:
		s.Peaks = ev.Peaks
	case protocol.Waveform:
		if ev.Tape >= 0 && ev.Tape < tape.Count {
			s.Waveforms[ev.Tape] = ev.Waveform
		}
	case protocol.Spectrum:
		s.Spectrum = ev.Spectrum
	}
}

// Logf adds a line to the log history, e.g. from a collaborator that runs
// outside the engine.
func (c *Controller) Logf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLog(fmt.Sprintf(format, args...))
}

// appendLog timestamps text and keeps the newest LogHistory lines.
func (c *Controller) appendLog(text string) {
	elapsed := c.opts.Now().Sub(c.start).Seconds()
	line := fmt.Sprintf("[%5.2f] %s", elapsed, text)
	if len(c.snap.Log) == LogHistory {
		copy(c.snap.Log, c.snap.Log[1:])
		c.snap.Log = c.snap.Log[:LogHistory-1]
	}
	c.snap.Log = append(c.snap.Log, line)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snap
	s.Log = append([]string(nil), c.snap.Log...)
	s.Dropped = c.dropped
	if c.opts.DroppedEvents != nil {
		s.DroppedEvents = c.opts.DroppedEvents()
	}
	return s
}

// Run polls every interval until ctx is done.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Poll()
		}
	}
}
