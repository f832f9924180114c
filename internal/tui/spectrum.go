// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"analyser/internal/compare"
	applog "analyser/internal/log"
	"analyser/pkg/dbscale"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// barGlyphs are the eighth-block characters used for fractional bar tops.
var barGlyphs = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#25A065"))
	barStyles       = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#E8A33D")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#5A8DEE")),
	}
	diffStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0445A"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// BarHeight converts a byte bin back to decibels on the default -100 dB
// scale and returns its bar height in [0, height], linear in magnitude
// between the analyser's min and max decibels.
func BarHeight(b byte, height float64, minDb, maxDb float64) float64 {
	db := -100 * (1 - float64(b)/256)
	return height * dbscale.Val2Pct(dbscale.Db2Mag(db), dbscale.Db2Mag(minDb), dbscale.Db2Mag(maxDb))
}

// Controls are the optional playback controls of a source.
type Controls interface {
	Pause(now time.Time)
	Resume(now time.Time)
	Paused() bool
	Restart(now time.Time)
}

type spectrumKeyMap struct {
	Quit    key.Binding
	Pause   key.Binding
	Restart key.Binding
	Print   key.Binding
}

var spectrumKeys = spectrumKeyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Pause:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
	Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Print:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "print snapshot")),
}

type tickMsg time.Time

// SpectrumModel is the Bubble Tea model that steps a comparison session at
// the refresh rate and draws one bar chart per analyser plus the difference
// row.
type SpectrumModel struct {
	title    string
	session  *compare.Session
	source   compare.Source
	controls Controls // nil for live input
	interval time.Duration
	now      func() time.Time

	width, height int
	snap          compare.Snapshot
	hasSnap       bool
	done          bool
	printed       int
}

// NewSpectrumModel creates a model that pulls from src every interval. When
// src also implements Controls, pause and restart are enabled.
func NewSpectrumModel(title string, session *compare.Session, src compare.Source, interval time.Duration) SpectrumModel {
	m := SpectrumModel{
		title:    title,
		session:  session,
		source:   src,
		interval: interval,
		now:      time.Now,
		width:    80,
		height:   24,
	}
	if c, ok := src.(Controls); ok {
		m.controls = c
	}
	return m
}

func (m SpectrumModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh ticker.
func (m SpectrumModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, resizes and key presses.
func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		if m.done {
			return m, nil
		}
		var done bool
		m.snap, done = m.session.Pull(m.source, time.Time(msg))
		m.hasSnap = true
		if done {
			m.done = true
			applog.Infof("TUI: Playback finished after %d frames", m.snap.Step+1)
			return m, nil
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, spectrumKeys.Quit):
			return m, tea.Quit

		case key.Matches(msg, spectrumKeys.Pause):
			if m.controls != nil {
				now := m.now()
				if m.controls.Paused() {
					m.controls.Resume(now)
				} else {
					m.controls.Pause(now)
				}
			}

		case key.Matches(msg, spectrumKeys.Restart):
			if m.controls != nil {
				m.session.Reset()
				m.controls.Restart(m.now())
				if m.done {
					m.done = false
					return m, m.tick()
				}
			}

		case key.Matches(msg, spectrumKeys.Print):
			if m.hasSnap {
				var sb strings.Builder
				_, _ = m.snap.WriteTo(&sb)
				applog.Info(sb.String())
				m.printed++
			}
		}
	}
	return m, nil
}

// View renders the panels.
func (m SpectrumModel) View() string {
	if !m.hasSnap {
		return "Waiting for audio..."
	}

	panels := len(m.snap.Frames)
	rows := 1 // Status line
	if m.snap.Diff != nil {
		rows += 2
	}
	barRows := max(2, (m.height-rows)/max(1, panels)-1)
	cols := max(1, m.width)

	var sb strings.Builder
	for i, f := range m.snap.Frames {
		cfg := m.session.Engine(f.Analyser).Config()
		peak := m.snap.PeakBin(i)
		fmt.Fprintf(&sb, "%s  α=%.2f  [%.0f, %.0f] dB  peak %.0f Hz\n",
			panelTitleStyle.Render(f.Analyser), cfg.SmoothingTimeConstant, cfg.MinDecibels, cfg.MaxDecibels,
			m.session.Engine(f.Analyser).FrequencyForBin(peak))
		style := barStyles[i%len(barStyles)]
		for _, line := range RenderBars(f.Bytes, cols, barRows, cfg.MinDecibels, cfg.MaxDecibels) {
			sb.WriteString(style.Render(line))
			sb.WriteByte('\n')
		}
	}

	if m.snap.Diff != nil {
		st := m.snap.DiffStats
		fmt.Fprintf(&sb, "%s  mean %.2f%%  max %.2f%% @ bin %d\n",
			panelTitleStyle.Render("difference"), st.Mean, st.Max, st.MaxBin)
		sb.WriteString(diffStyle.Render(RenderDiff(m.snap.Diff, cols)))
		sb.WriteByte('\n')
	}

	state := "playing"
	switch {
	case m.done:
		state = "finished, r to replay"
	case m.controls == nil:
		state = "live"
	case m.controls.Paused():
		state = "paused"
	}
	sb.WriteString(statusStyle.Render(fmt.Sprintf("%s • %s • frame %d • q quit • space pause • r restart • p print (%d)",
		m.title, state, m.snap.Step, m.printed)))
	return sb.String()
}

// columnMax returns the largest value of each of cols equal groups of v.
func columnMax(v []byte, cols int) []byte {
	cols = min(cols, len(v))
	out := make([]byte, cols)
	for c := range cols {
		lo, hi := c*len(v)/cols, (c+1)*len(v)/cols
		for _, b := range v[lo:hi] {
			out[c] = max(out[c], b)
		}
	}
	return out
}

// RenderBars draws bins as a rows-high bar chart at most cols wide. Each
// column shows the loudest bin of its group.
func RenderBars(bins []byte, cols, rows int, minDb, maxDb float64) []string {
	levels := columnMax(bins, cols)
	heights := make([]float64, len(levels))
	for i, b := range levels {
		heights[i] = BarHeight(b, float64(rows), minDb, maxDb)
	}

	lines := make([]string, rows)
	line := make([]rune, len(levels))
	for r := range rows {
		floor := float64(rows - 1 - r)
		for c, h := range heights {
			fill := h - floor
			switch {
			case fill >= 1:
				line[c] = barGlyphs[8]
			case fill <= 0:
				line[c] = barGlyphs[0]
			default:
				line[c] = barGlyphs[int(fill*8)]
			}
		}
		lines[r] = string(line)
	}
	return lines
}

// RenderDiff draws a one-line sparkline of percent differences.
func RenderDiff(diff []float64, cols int) string {
	cols = min(cols, len(diff))
	line := make([]rune, cols)
	for c := range cols {
		lo, hi := c*len(diff)/cols, (c+1)*len(diff)/cols
		peak := 0.0
		for _, d := range diff[lo:hi] {
			peak = max(peak, d)
		}
		idx := int(dbscale.Clamp(peak/100, 0, 1) * 8)
		if peak > 0 && idx == 0 {
			idx = 1
		}
		line[c] = barGlyphs[idx]
	}
	return string(line)
}

// RunSpectrum runs the spectrum UI on the alternate screen until the user quits.
func RunSpectrum(m SpectrumModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
