package render

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestDefaultPalette_Complete(t *testing.T) {
	p := DefaultPalette
	for name, c := range map[string]lipgloss.AdaptiveColor{
		"accent": p.Accent, "info": p.Info, "text": p.Text, "dim": p.Dim,
		"good": p.Good, "warn": p.Warn, "bad": p.Bad, "rule": p.Rule,
	} {
		assert.NotEmpty(t, c.Light, name)
		assert.NotEmpty(t, c.Dark, name)
	}
}

func TestDefaultPalette_StatusColoursDistinct(t *testing.T) {
	p := DefaultPalette
	seen := map[string]bool{}
	for _, c := range []lipgloss.AdaptiveColor{p.Accent, p.Info, p.Good, p.Warn, p.Bad} {
		assert.False(t, seen[c.Dark], "duplicate colour %s", c.Dark)
		seen[c.Dark] = true
	}
}

func TestNewStyles(t *testing.T) {
	custom := DefaultPalette
	custom.Accent = lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}

	styles := NewStyles(custom)

	assert.Equal(t, custom, styles.Palette())
	assert.Equal(t, DefaultPalette, DefaultStyles().Palette())
	assert.Contains(t, styles.Title.Render("Index"), "Index")
	assert.Contains(t, styles.Error.Render("failed"), "failed")
	assert.Contains(t, styles.Passage.Render("body"), "body")
}
