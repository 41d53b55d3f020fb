package tui

import (
	"github.com/charmbracelet/lipgloss"

	"musinsacrawler/pkg/metadata"
)

var (
	accentCyan   = lipgloss.Color("#00D7FF")
	accentBlue   = lipgloss.Color("#3D5AFE")
	accentGreen  = lipgloss.Color("#39FF14")
	accentYellow = lipgloss.Color("#FFD600")
	accentOrange = lipgloss.Color("#FF6700")
	errorRed     = lipgloss.Color("#FF3B30")
	darkBg       = lipgloss.Color("#0E0E10")
	panelBg      = lipgloss.Color("#1A1A1E")
	dimWhite     = lipgloss.Color("#B0B0B0")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	logoStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentBlue).
			Background(panelBg).
			Padding(1, 2)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(accentYellow)

	successStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentOrange).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Faint(true)

	currentStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)

	titleStyle = lipgloss.NewStyle().
			Background(accentBlue).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)
)

// StageStyle returns the style and icon for a stage state
func StageStyle(state StageState) (lipgloss.Style, string) {
	switch state {
	case StageActive:
		return currentStyle, "▶"
	case StageDone:
		return successStyle, "✓"
	case StageFailed:
		return errorStyle, "✗"
	default:
		return dimStyle, "·"
	}
}

// StatusStyle returns the style and icon for a download status
func StatusStyle(status metadata.Status) (lipgloss.Style, string) {
	switch {
	case status == metadata.StatusSuccess:
		return successStyle, "✓"
	case status == metadata.StatusSkipped:
		return dimStyle, "-"
	case status == metadata.StatusLowQuality:
		return warningStyle, "↓"
	default:
		return errorStyle, "✗"
	}
}
