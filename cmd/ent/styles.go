package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/highlab/entomologist/internal/issue"
)

var (
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorGood   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarm   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}

	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	stateStyles = map[issue.State]lipgloss.Style{
		issue.StateNew:        lipgloss.NewStyle().Foreground(colorAccent),
		issue.StateBacklog:    mutedStyle,
		issue.StateInProgress: lipgloss.NewStyle().Foreground(colorWarm),
		issue.StateDone:       lipgloss.NewStyle().Foreground(colorGood),
		issue.StateWontDo:     mutedStyle,
	}
)

// colorEnabled reports whether styled output makes sense: stdout is a
// terminal and the environment advertises color support.
func colorEnabled() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

func renderState(state issue.State) string {
	if !colorEnabled() {
		return string(state)
	}
	if style, ok := stateStyles[state]; ok {
		return style.Render(string(state))
	}
	return string(state)
}

func renderMuted(s string) string {
	if !colorEnabled() {
		return s
	}
	return mutedStyle.Render(s)
}

func renderTitle(s string) string {
	if !colorEnabled() {
		return s
	}
	return titleStyle.Render(s)
}

func renderHeader(s string) string {
	if !colorEnabled() {
		return s
	}
	return headerStyle.Render(s)
}
