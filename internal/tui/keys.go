// SPDX-License-Identifier: MIT
package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// secondaryKeys are the shifted digits on a US layout, one per tape.
var secondaryKeys = [...]string{"!", "@", "#", "$", "%", "^", "&", "*"}

type keyMap struct {
	Primary        key.Binding
	Secondary      key.Binding
	Record         key.Binding
	RecordPlayback key.Binding
	PlayThrough    key.Binding
	Write          key.Binding
	Clear          key.Binding
	ClearAll       key.Binding
	Mute           key.Binding
	Solo           key.Binding
	VolumeUp       key.Binding
	VolumeDown     key.Binding
	Metronome      key.Binding
	Merge          key.Binding
	Quit           key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Primary:        key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8"), key.WithHelp("1-8", "primary")),
		Secondary:      key.NewBinding(key.WithKeys(secondaryKeys[:]...), key.WithHelp("⇧1-8", "secondary")),
		Record:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "record")),
		RecordPlayback: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "rec playback")),
		PlayThrough:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "play through")),
		Write:          key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write")),
		Clear:          key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		ClearAll:       key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear all")),
		Mute:           key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Solo:           key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "solo")),
		VolumeUp:       key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "vol up")),
		VolumeDown:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "vol down")),
		Metronome:      key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "metronome")),
		Merge:          key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "merge")),
		Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Primary, k.Record, k.Write, k.Metronome, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Primary, k.Secondary, k.Merge},
		{k.Record, k.RecordPlayback, k.PlayThrough, k.Write},
		{k.Clear, k.ClearAll, k.Mute, k.Solo},
		{k.VolumeUp, k.VolumeDown, k.Metronome, k.Quit},
	}
}

// tapeIndex returns the zero-based tape a digit or shifted digit refers to.
func tapeIndex(s string) (int, bool) {
	if len(s) == 1 && s[0] >= '1' && s[0] <= '8' {
		return int(s[0] - '1'), true
	}
	for i, k := range secondaryKeys {
		if s == k {
			return i, true
		}
	}
	return 0, false
}
