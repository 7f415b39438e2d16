// Package ui holds the terminal styling shared by the example
// commands: a lipgloss color theme, glamour markdown rendering, and
// terminal detection helpers.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for command output.
type Theme struct {
	Primary   lipgloss.Color // main accent color (commands, highlights)
	Secondary lipgloss.Color // secondary accent (headers, borders)
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Muted     lipgloss.Color // dimmed/secondary text
	Text      lipgloss.Color
}

// DefaultTheme returns the default color theme (gruvbox).
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#b8bb26"), // gruvbox green
		Secondary: lipgloss.Color("#83a598"), // gruvbox aqua
		Success:   lipgloss.Color("#b8bb26"),
		Error:     lipgloss.Color("#fb4934"), // gruvbox red
		Warning:   lipgloss.Color("#fabd2f"), // gruvbox yellow
		Muted:     lipgloss.Color("#928374"), // gruvbox gray
		Text:      lipgloss.Color("#ebdbb2"), // gruvbox foreground
	}
}

// Styles bundles the ready-to-use lipgloss styles derived from a theme.
type Styles struct {
	Header  lipgloss.Style
	Step    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Tool    lipgloss.Style
}

// NewStyles derives styles from a theme.
func NewStyles(theme *Theme) *Styles {
	return &Styles{
		Header:  lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true),
		Step:    lipgloss.NewStyle().Foreground(theme.Primary),
		Success: lipgloss.NewStyle().Foreground(theme.Success),
		Error:   lipgloss.NewStyle().Foreground(theme.Error).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(theme.Warning),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Tool:    lipgloss.NewStyle().Foreground(theme.Warning).Italic(true),
	}
}

// DefaultStyles returns styles for the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}
