// Package render formats run summaries, search results and index details
// for the terminal.
package render

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette names the colours the styles draw from. Each colour has a light
// and a dark terminal variant; lipgloss picks one from the background.
type Palette struct {
	Accent lipgloss.AdaptiveColor // titles, selection
	Info   lipgloss.AdaptiveColor // section and table headers
	Text   lipgloss.AdaptiveColor
	Dim    lipgloss.AdaptiveColor // labels, provenance, help
	Good   lipgloss.AdaptiveColor
	Warn   lipgloss.AdaptiveColor // skipped input
	Bad    lipgloss.AdaptiveColor // failed chunks, errors
	Rule   lipgloss.AdaptiveColor // borders
}

// DefaultPalette is used when no palette is given.
var DefaultPalette = Palette{
	Accent: lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#A78BFA"},
	Info:   lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#67E8F9"},
	Text:   lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E7EB"},
	Dim:    lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"},
	Good:   lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#86EFAC"},
	Warn:   lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"},
	Bad:    lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"},
	Rule:   lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#4B5563"},
}

// Styles are the lipgloss styles shared by the CLI renderers and the TUI.
type Styles struct {
	palette Palette

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	Header  lipgloss.Style
	Cell    lipgloss.Style
	Border  lipgloss.Style
	Passage lipgloss.Style

	Selected   lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
}

// NewStyles derives the styles from p.
func NewStyles(p Palette) *Styles {
	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}
	return &Styles{
		palette: p,

		Title:    fg(p.Accent).Bold(true),
		Subtitle: fg(p.Info).Bold(true),
		Label:    fg(p.Dim).Width(12),
		Normal:   fg(p.Text),
		Muted:    fg(p.Dim),
		Success:  fg(p.Good),
		Warning:  fg(p.Warn),
		Error:    fg(p.Bad),

		Header: fg(p.Info).Bold(true).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: fg(p.Rule),
		Passage: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(p.Rule).
			PaddingLeft(1),

		Selected: fg(p.Accent).Bold(true),
		InputField: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Rule).
			Padding(0, 1),
		StatusBar: fg(p.Text).Padding(0, 1),
		Help:      fg(p.Dim).Italic(true),
	}
}

// DefaultStyles returns the styles of DefaultPalette.
func DefaultStyles() *Styles {
	return NewStyles(DefaultPalette)
}

// Palette returns the colours the styles were built from.
func (s *Styles) Palette() Palette {
	return s.palette
}
