package console

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/msto63/mBOT/pkg/command"
)

// Colors
var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorFg      = lipgloss.Color("#F9FAFB")
)

// Styles holds the reply styles bound to one output. The renderer detects
// the output's color profile, so a non-terminal writer gets plain text.
type Styles struct {
	Prompt   lipgloss.Style
	Basic    lipgloss.Style
	Success  lipgloss.Style
	Failure  lipgloss.Style
	Warning  lipgloss.Style
	Question lipgloss.Style
	Hint     lipgloss.Style
}

// NewStyles creates styles for the given writer
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Prompt: r.NewStyle().
			Foreground(colorPrimary).
			Bold(true),
		Basic: r.NewStyle().
			Foreground(colorFg),
		Success: r.NewStyle().
			Foreground(colorSuccess),
		Failure: r.NewStyle().
			Foreground(colorError).
			Bold(true),
		Warning: r.NewStyle().
			Foreground(colorWarning),
		Question: r.NewStyle().
			Foreground(colorPrimary).
			Italic(true),
		Hint: r.NewStyle().
			Foreground(colorMuted).
			Italic(true),
	}
}

// ForReply picks the style from the reply's leading glyph
func (s Styles) ForReply(text string) lipgloss.Style {
	switch {
	case strings.HasPrefix(text, command.GlyphSuccess):
		return s.Success
	case strings.HasPrefix(text, command.GlyphFailure):
		return s.Failure
	case strings.HasPrefix(text, command.GlyphWarning):
		return s.Warning
	case strings.HasPrefix(text, command.GlyphQuestion):
		return s.Question
	default:
		return s.Basic
	}
}

// RenderReply styles one reply
func (s Styles) RenderReply(text string) string {
	return s.ForReply(text).Render(text)
}
