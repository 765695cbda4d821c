// Package tui provides the BubbleTea-based now-playing interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nvallinder/audiowalk/internal/guide"
)

// KeyMap defines the guide key bindings.
type KeyMap struct {
	Toggle   key.Binding
	Next     key.Binding
	Previous key.Binding
	Force    key.Binding
	Stop     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Next: key.NewBinding(
			key.WithKeys("n", "right"),
			key.WithHelp("n", "next stop"),
		),
		Previous: key.NewBinding(
			key.WithKeys("p", "left"),
			key.WithHelp("p", "previous stop"),
		),
		Force: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "play anyway"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Next, k.Previous, k.Force, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Next, k.Previous},
		{k.Force, k.Stop, k.Quit},
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	stopStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	stateStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	advisoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	barFillStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

type tickMsg time.Time

type guideEventMsg guide.Event

type eventsClosedMsg struct{}

// Model is the now-playing TUI model.
type Model struct {
	controller *guide.Controller
	events     <-chan guide.Event

	keys KeyMap
	help help.Model

	snap     guide.Snapshot
	advisory string
	errMsg   string
	finished bool

	width int
}

// NewModel creates a TUI model over the controller.
func NewModel(controller *guide.Controller) Model {
	return Model{
		controller: controller,
		events:     controller.Subscribe(),
		keys:       DefaultKeyMap(),
		help:       help.New(),
		snap:       controller.Snapshot(),
		width:      80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForEvent())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return eventsClosedMsg{}
		}
		return guideEventMsg(ev)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		m.snap = m.controller.Snapshot()
		return m, m.tick()

	case guideEventMsg:
		m.applyEvent(guide.Event(msg))
		m.snap = m.controller.Snapshot()
		return m, m.waitForEvent()

	case eventsClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) applyEvent(ev guide.Event) {
	switch ev.Type {
	case guide.EventStopStarted:
		m.advisory = ""
		m.errMsg = ""
	case guide.EventAudioUnavailable:
		m.errMsg = "audio unavailable for this stop"
	case guide.EventPlaybackFailed:
		m.errMsg = "playback failed"
	case guide.EventMoveCloser:
		m.advisory = "move closer to the next stop to continue"
	case guide.EventCountdownTick:
		m.advisory = ""
	case guide.EventCountdownCancelled:
		m.advisory = ""
	case guide.EventTourCompleted:
		m.finished = true
		m.advisory = ""
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Toggle):
		m.controller.Toggle(context.Background())
	case key.Matches(msg, m.keys.Next):
		m.controller.Next(context.Background())
	case key.Matches(msg, m.keys.Previous):
		m.controller.Previous(context.Background())
	case key.Matches(msg, m.keys.Force):
		m.controller.ForceNext(context.Background())
	case key.Matches(msg, m.keys.Stop):
		m.controller.Stop()
	}
	m.snap = m.controller.Snapshot()
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	tour := m.controller.Tour()
	b.WriteString(titleStyle.Render(tour.Title))
	b.WriteString("\n\n")

	snap := m.snap
	b.WriteString(fmt.Sprintf("%s %s",
		stopStyle.Render(fmt.Sprintf("[%d/%d]", snap.StopIndex+1, len(tour.Stops))),
		snap.Stop.Title))
	if snap.Completed {
		b.WriteString(dimStyle.Render("  (completed)"))
	}
	b.WriteString("\n")

	b.WriteString(stateStyle.Render(snap.State.String()))
	if snap.Duration > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s / %s",
			formatDuration(snap.Position), formatDuration(snap.Duration))))
	}
	b.WriteString("\n")
	b.WriteString(m.progressBar(snap))
	b.WriteString("\n\n")

	switch {
	case m.finished:
		b.WriteString(stateStyle.Render(fmt.Sprintf("tour completed: %d/%d stops (%d%%)",
			snap.Stats.Completed, snap.Stats.Total, snap.Stats.Percentage)))
	case snap.CountdownRemaining > 0:
		b.WriteString(advisoryStyle.Render(fmt.Sprintf("next stop in %d...", snap.CountdownRemaining)))
	case m.advisory != "":
		b.WriteString(advisoryStyle.Render(m.advisory))
	case m.errMsg != "":
		b.WriteString(errorStyle.Render(m.errMsg))
	default:
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d/%d stops completed",
			snap.Stats.Completed, snap.Stats.Total)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// progressBar renders the playback position as a fixed-width bar.
func (m Model) progressBar(snap guide.Snapshot) string {
	width := m.width - 4
	if width > 60 {
		width = 60
	}
	if width < 10 {
		width = 10
	}

	filled := 0
	if snap.Duration > 0 {
		filled = int(float64(width) * float64(snap.Position) / float64(snap.Duration))
		if filled > width {
			filled = width
		}
	}

	return barFillStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", mins, secs)
}
