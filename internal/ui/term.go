package ui

import (
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const defaultWidth = 80

// TerminalWidth returns the current terminal width, or a sensible
// default when stdout is not a terminal.
func TerminalWidth() int {
	if !IsTerminal() {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// StringWidth returns the display width of s, accounting for wide
// characters.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// TruncateWidth bounds s to the given display width, accounting for
// wide characters, appending an ellipsis when cut.
func TruncateWidth(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// PadRight pads s with spaces to the given display width.
func PadRight(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}
