// ABOUTME: Terminal now-playing view driven by bus notifications
// ABOUTME: Each song-info-update message re-renders the title and artist
package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harper/nowplaying/internal/domain/song"
	"github.com/harper/nowplaying/internal/infrastructure/bus"
)

// SongMsg carries one published update into the program.
type SongMsg song.Info

// ThemeMsg restyles the view with a new accent colour.
type ThemeMsg string

type updatesClosedMsg struct{}

type Model struct {
	current song.Info
	theme   string
	styles  Styles
	updates <-chan bus.Message
	closed  bool
	width   int
}

// New starts from the current snapshot so the view is never blank, then
// follows updates until the channel closes.
func New(current song.Info, themeColor string, updates <-chan bus.Message) Model {
	return Model{
		current: current,
		theme:   themeColor,
		styles:  NewStyles(themeColor),
		updates: updates,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func waitForUpdate(updates <-chan bus.Message) tea.Cmd {
	return func() tea.Msg {
		for msg := range updates {
			if msg.Topic == song.TopicUpdate {
				return SongMsg(msg.Song)
			}
		}
		return updatesClosedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case SongMsg:
		m.current = song.Info(msg)
		return m, waitForUpdate(m.updates)
	case ThemeMsg:
		m.theme = string(msg)
		m.styles = NewStyles(m.theme)
	case updatesClosedMsg:
		m.closed = true
	}
	return m, nil
}

func (m Model) Current() song.Info {
	return m.current
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.current.Title))
	if m.current.Artist != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Artist.Render(m.current.Artist))
	}

	help := "[q] quit"
	if m.closed {
		help = "stream stopped · " + help
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.App.Render(b.String()),
		m.styles.Help.Render(help),
	)
}
