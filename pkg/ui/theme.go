package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// plainTerminal reports whether stage colors cannot be shown, in which case
// segments are drawn with glyphs instead.
func plainTerminal() bool {
	return TermProfile < colorprofile.ANSI
}

type Theme struct {
	Renderer *lipgloss.Renderer

	Primary lipgloss.AdaptiveColor
	Subtext lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Header   lipgloss.Style
	Gutter   lipgloss.Style
	Cursor   lipgloss.Style
	Detail   lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	HelpText lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,
		Primary:  ColorPrimary,
		Subtext:  ColorSubtext,
		Border:   ColorBorder,
		Muted:    ColorMuted,
	}

	t.Base = r.NewStyle().Foreground(ColorText)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Gutter = r.NewStyle().Foreground(t.Muted)
	t.Cursor = r.NewStyle().Foreground(t.Primary).Bold(true)

	t.Detail = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, SpaceXS)

	t.Status = r.NewStyle().Foreground(ColorSuccess)
	t.Error = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.HelpText = r.NewStyle().Foreground(t.Subtext)

	return t
}

// Segment returns the style of a segment cell drawn in enc's fill color.
func (t Theme) Segment(enc stage.Encoding, cursor bool) lipgloss.Style {
	s := t.Renderer.NewStyle().Background(lipgloss.Color(enc.Hex()))
	if cursor {
		s = s.Foreground(ColorCursorMark).Bold(true)
	}
	return s
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
