package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/treesync/internal/config"
)

// Catppuccin Mocha palette, mutable so config can override.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorBlue   = lipgloss.Color("#89b4fa")
	ColorMuted  = lipgloss.Color("#5a6278")
)

// ApplyTheme overrides colors from a config ThemeConfig.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Green != nil {
		ColorGreen = lipgloss.Color(*tc.Green)
	}
	if tc.Yellow != nil {
		ColorYellow = lipgloss.Color(*tc.Yellow)
	}
	if tc.Red != nil {
		ColorRed = lipgloss.Color(*tc.Red)
	}
	if tc.Blue != nil {
		ColorBlue = lipgloss.Color(*tc.Blue)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
}

// palette holds the styles for one output stream. The zero palette
// renders text unchanged.
type palette struct {
	add    lipgloss.Style
	change lipgloss.Style
	move   lipgloss.Style
	remove lipgloss.Style
	muted  lipgloss.Style
	styled bool
}

func newPalette(w io.Writer, color bool) palette {
	if !color || w == nil {
		return palette{}
	}
	r := lipgloss.NewRenderer(w)
	return palette{
		add:    r.NewStyle().Foreground(ColorGreen),
		change: r.NewStyle().Foreground(ColorYellow),
		move:   r.NewStyle().Foreground(ColorBlue),
		remove: r.NewStyle().Foreground(ColorRed),
		muted:  r.NewStyle().Foreground(ColorMuted),
		styled: true,
	}
}

func (p palette) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}
