package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

var (
	stateOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	stateWorking = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	stateIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stateBad     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// interactive reports whether stdout is a terminal. Progress bars and colour
// are only used when it is.
func interactive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func setupOutput() {
	if !interactive() {
		pterm.DisableStyling()
	}
}

func stateLabel(s domain.LevelState, downloading bool) string {
	label := string(s)
	if downloading {
		label += " (downloading)"
	}
	if !interactive() {
		return label
	}

	switch {
	case s.Playable():
		return stateOK.Render(label)
	case s == domain.StateBroken:
		return stateBad.Render(label)
	case downloading, s == domain.StateDownloaded, s == domain.StateExtracted, s == domain.StateLinked:
		return stateWorking.Render(label)
	default:
		return stateIdle.Render(label)
	}
}
