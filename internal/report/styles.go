package report

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	spinner   = "[..]"
	warnMark  = "[??]"
	skipMark  = "[--]"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

// styles are bound to one renderer so color can be switched off per writer.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	ready   lipgloss.Style
	failed  lipgloss.Style
	warning lipgloss.Style
	dim     lipgloss.Style
	active  lipgloss.Style
	value   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(colorWhite),
		section: r.NewStyle().
			Bold(true).
			Foreground(colorBlue),
		ready:   r.NewStyle().Foreground(colorGreen),
		failed:  r.NewStyle().Foreground(colorRed),
		warning: r.NewStyle().Foreground(colorYellow),
		dim:     r.NewStyle().Foreground(colorDim),
		active: r.NewStyle().
			Foreground(colorWhite).
			Bold(true),
		value: r.NewStyle().
			Foreground(colorBlue).
			Underline(true),
	}
}

func (s styles) statusIcon(ok bool) (string, styleFunc) {
	if ok {
		return checkMark, sf(s.ready)
	}
	return crossMark, sf(s.failed)
}
