// SPDX-License-Identifier: MIT

// Package tui is the terminal front end of the looper.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"tapeloop/internal/controller"
)

// DefaultRefresh is the interval between controller polls.
const DefaultRefresh = 33 * time.Millisecond

// Controller is the part of controller.Controller the terminal UI drives.
type Controller interface {
	Poll() int
	Snapshot() controller.Snapshot

	SelectPrimaryTape(n int) error
	SelectSecondaryTape(n int) error
	MergeTapes() error
	Record() error
	RecordPlayback() error
	PlayThrough() error
	Write() error
	Clear() error
	ClearAll() error
	ToggleMute() error
	ToggleSolo() error
	VolumeUp() error
	VolumeDown() error
	ToggleMetronome() error
}

type tickMsg time.Time

// Model is the Bubble Tea model of the looper screen.
type Model struct {
	ctrl    Controller
	refresh time.Duration
	keys    keyMap
	help    help.Model

	snap  controller.Snapshot
	width int
	err   error
}

// New creates a model polling ctrl every refresh, or DefaultRefresh if
// refresh is not positive.
func New(ctrl Controller, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return Model{
		ctrl:    ctrl,
		refresh: refresh,
		keys:    defaultKeyMap(),
		help:    help.New(),
		snap:    ctrl.Snapshot(),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, window resizes and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.ctrl.Poll()
		m.snap = m.ctrl.Snapshot()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		m.err = m.handleKey(msg)
		m.snap = m.ctrl.Snapshot()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) error {
	k := m.keys
	switch {
	case key.Matches(msg, k.Primary):
		i, _ := tapeIndex(msg.String())
		return m.ctrl.SelectPrimaryTape(i)
	case key.Matches(msg, k.Secondary):
		i, _ := tapeIndex(msg.String())
		return m.ctrl.SelectSecondaryTape(i)
	case key.Matches(msg, k.Record):
		return m.ctrl.Record()
	case key.Matches(msg, k.RecordPlayback):
		return m.ctrl.RecordPlayback()
	case key.Matches(msg, k.PlayThrough):
		return m.ctrl.PlayThrough()
	case key.Matches(msg, k.Write):
		return m.ctrl.Write()
	case key.Matches(msg, k.Clear):
		return m.ctrl.Clear()
	case key.Matches(msg, k.ClearAll):
		return m.ctrl.ClearAll()
	case key.Matches(msg, k.Mute):
		return m.ctrl.ToggleMute()
	case key.Matches(msg, k.Solo):
		return m.ctrl.ToggleSolo()
	case key.Matches(msg, k.VolumeUp):
		return m.ctrl.VolumeUp()
	case key.Matches(msg, k.VolumeDown):
		return m.ctrl.VolumeDown()
	case key.Matches(msg, k.Metronome):
		return m.ctrl.ToggleMetronome()
	case key.Matches(msg, k.Merge):
		return m.ctrl.MergeTapes()
	}
	return nil
}

// Run shows the looper screen until the user quits or ctx is done.
func Run(ctx context.Context, ctrl Controller, refresh time.Duration) error {
	p := tea.NewProgram(
		New(ctrl, refresh),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
