// ABOUTME: Lipgloss styles for the terminal view
// ABOUTME: Rebuilt whenever the theme colour changes
package ui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	App    lipgloss.Style
	Title  lipgloss.Style
	Artist lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles builds the palette around a theme colour. Any value lipgloss
// accepts works: "#rrggbb" or an ANSI index such as "212".
func NewStyles(themeColor string) Styles {
	accent := lipgloss.Color(themeColor)
	return Styles{
		App: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(accent).
			Padding(0, 2),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		Artist: lipgloss.NewStyle().Faint(true),
		Help:   lipgloss.NewStyle().Faint(true),
	}
}
