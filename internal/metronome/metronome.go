// SPDX-License-Identifier: MIT
/*
Package metronome counts processed samples and derives beats from them.

Tick counting and run gating are independent: the counter advances whether
or not the click is audible, so the beat index always reflects the time since
the engine started. BeatIndex and ShowBeat depend on nothing but the counter.
*/
package metronome

import "math"

const (
	ClickWindow  = 10000  // Samples after a tick during which the click sounds
	ClickVolume  = 0.02   // Click amplitude
	DownbeatFreq = 523.25 // C5, first beat of the bar
	OffbeatFreq  = 440.0  // A4, remaining beats
	BeatsPerBar  = 4
)

type Metronome struct {
	running    bool
	count      uint64
	tickPeriod uint64
	beat       uint32
	showBeat   bool
	sampleRate float64
}

// New creates a stopped metronome. The tick period is expressed in
// interleaved samples: sampleRate * channels * 60 / bpm.
func New(bpm int, sampleRate float64, channels int) *Metronome {
	if bpm <= 0 {
		bpm = 1
	}
	if channels <= 0 {
		channels = 1
	}
	period := uint64(sampleRate) * uint64(channels) * 60 / uint64(bpm)
	if period == 0 {
		period = 1
	}
	return &Metronome{
		tickPeriod: period,
		sampleRate: sampleRate,
	}
}

// Advance adds n processed samples and recomputes the beat state.
func (m *Metronome) Advance(n int) {
	if n > 0 {
		m.count += uint64(n)
	}
	rem := m.count % m.tickPeriod
	m.showBeat = rem > 0 && rem < ClickWindow
	m.beat = uint32(m.count / m.tickPeriod)
}

func (m *Metronome) TickPeriod() uint64  { return m.tickPeriod }
func (m *Metronome) Count() uint64       { return m.count }
func (m *Metronome) BeatIndex() uint32   { return m.beat }
func (m *Metronome) ShowBeat() bool      { return m.showBeat }
func (m *Metronome) Running() bool       { return m.running }
func (m *Metronome) SetRunning(run bool) { m.running = run }

// Audible reports whether the mixer should add the click right now.
func (m *Metronome) Audible() bool {
	return m.running && m.showBeat
}

// Click synthesizes the click tone at absolute tape position index. The
// phase is taken from index alone so it never drifts between ticks.
func (m *Metronome) Click(index int) float32 {
	freq := OffbeatFreq
	if m.beat%BeatsPerBar == 0 {
		freq = DownbeatFreq
	}
	return float32(math.Sin(float64(index)*2*math.Pi*freq/m.sampleRate) * ClickVolume)
}
