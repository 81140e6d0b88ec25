// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tapeloop/internal/controller"
	"tapeloop/internal/protocol"
	"tapeloop/internal/tape"
)

const meterWidth = 24

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	recStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))

	meterLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	meterMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	meterHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))

	sparkRunes = []rune("▁▂▃▄▅▆▇█")
)

// View renders the looper screen.
func (m Model) View() string {
	s := &m.snap
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("tapeloop"))
	sb.WriteString(" ")
	sb.WriteString(infoStyle.Render(header(s)))
	sb.WriteString("\n\n")

	sb.WriteString(status(s))
	sb.WriteString("\n")
	sb.WriteString(playhead(s, meterWidth+12))
	sb.WriteString("\n\n")

	for i := range tape.Count {
		sb.WriteString(tapeRow(s, i))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("  in    %s\n\n", meter(s.Peaks[protocol.InputPeakSlot], meterWidth)))

	sb.WriteString(dimStyle.Render(fmt.Sprintf("tape %d ", s.Primary+1)))
	sb.WriteString(sparkline(s.Waveforms[s.Primary][:]))
	sb.WriteString("\n\n")

	for _, line := range s.Log {
		sb.WriteString(dimStyle.Render(line))
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func header(s *controller.Snapshot) string {
	st := s.Stats
	return fmt.Sprintf("%d bpm • %d bars × %.2fs • %.0f Hz • in %q • out %q",
		st.BPM, st.Bars, st.BarSeconds, st.SampleRate, st.InputDevice, st.OutputDevice)
}

func status(s *controller.Snapshot) string {
	parts := []string{beat(s)}
	if s.Recording {
		parts = append(parts, recStyle.Render("● REC"))
	}
	if s.RecordingPlayback {
		parts = append(parts, highlightStyle.Render("WRITE"))
	}
	if s.PlayThrough {
		parts = append(parts, highlightStyle.Render("THRU"))
	}
	if s.MetronomeOn {
		parts = append(parts, "metronome")
	}
	if s.Dropped > 0 || s.DroppedEvents > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("dropped %d/%d", s.Dropped, s.DroppedEvents)))
	}
	return strings.Join(parts, "  ")
}

func beat(s *controller.Snapshot) string {
	label := fmt.Sprintf("beat %4d", s.BeatIndex)
	if s.ShowBeat {
		return highlightStyle.Render("◆ " + label)
	}
	return dimStyle.Render("◇ " + label)
}

// playhead draws the position of the audio index within the tape.
func playhead(s *controller.Snapshot, width int) string {
	length := s.Stats.TapeLength
	if length <= 0 || width <= 0 {
		return ""
	}
	pos := s.AudioIndex * width / length
	pos = min(max(pos, 0), width-1)
	return dimStyle.Render(strings.Repeat("─", pos)) + "▼" + dimStyle.Render(strings.Repeat("─", width-pos-1))
}

func tapeRow(s *controller.Snapshot, i int) string {
	marker := "  "
	switch {
	case i == s.Primary:
		marker = "▶ "
	case s.Secondary.Has(i):
		marker = "+ "
	}
	label := fmt.Sprintf("%s%d", marker, i+1)
	if i == s.Primary {
		label = highlightStyle.Render(label)
	}
	return fmt.Sprintf("%s     %s", label, meter(s.Peaks[i], meterWidth))
}

// meter renders a peak as a horizontal bar, coloured by level.
func meter(peak float32, width int) string {
	level := math.Min(math.Abs(float64(peak)), 1)
	filled := int(math.Round(level * float64(width)))
	bar := strings.Repeat("█", filled)

	style := meterLow
	switch {
	case level >= 0.9:
		style = meterHigh
	case level >= 0.6:
		style = meterMid
	}
	return style.Render(bar) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// sparkline draws one rune per waveform point scaled to the loudest point.
func sparkline(points []float32) string {
	var peak float32
	for _, p := range points {
		peak = max(peak, float32(math.Abs(float64(p))))
	}

	out := make([]rune, len(points))
	for i, p := range points {
		if peak == 0 {
			out[i] = sparkRunes[0]
			continue
		}
		v := math.Abs(float64(p)) / float64(peak)
		out[i] = sparkRunes[int(v*float64(len(sparkRunes)-1))]
	}
	return string(out)
}
