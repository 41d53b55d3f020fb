package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"musinsacrawler/pkg/metadata"
)

const logo = `
 █▀▄▀█ █ █ █▀ █ █▄ █ █▀ ▄▀█   █▀▀ █▀█ ▄▀█ █ █ █ █   █▀▀ █▀█
 █ ▀ █ █▄█ ▄█ █ █ ▀█ ▄█ █▀█   █▄▄ █▀▄ █▀█ ▀▄▀▄▀ █▄▄ ██▄ █▀▄`

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	width := (m.width - 4) / 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStagesPanel(width),
		m.renderStatsPanel(width),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderDownloadsPanel(width),
		m.renderLogsPanel(width),
	)

	sections := []string{
		logoStyle.Width(m.width).Render(logo),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}

	switch {
	case m.showHelp:
		sections = append(sections, m.renderHelp())
	case m.done:
		sections = append(sections, helpStyle.Render(m.doneMessage+" • press q to exit"))
	default:
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderStagesPanel(width int) string {
	title := titleStyle.Render(" PIPELINE ")

	var lines []string
	for _, s := range m.stages {
		style, icon := StageStyle(s.State)
		if s.State == StageActive {
			icon = m.spinner.View()
		}

		line := fmt.Sprintf("%s %s", icon, style.Render(s.Name))
		if s.Elapsed > 0 {
			line += " " + dimStyle.Render(formatDuration(s.Elapsed))
		}
		if s.Detail != "" {
			line += " " + dimStyle.Render(truncate(s.Detail, width-len(s.Name)-16))
		}
		lines = append(lines, line)
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" DOWNLOADS ")

	stat := func(label, value string) string {
		return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
	}

	bar := m.progress
	bar.Width = width - 8
	if bar.Width < 10 {
		bar.Width = 10
	}

	lines := []string{
		stat("Elapsed:", formatDuration(time.Since(m.startTime))),
		stat("Progress:", fmt.Sprintf("%d/%d", m.finished, m.total)),
		stat("Saved:", fmt.Sprintf("%d files, %s", m.counts[metadata.StatusSuccess], FormatBytes(m.totalSize))),
		stat("Skipped:", fmt.Sprintf("%d", m.counts[metadata.StatusSkipped])),
		stat("Failed:", fmt.Sprintf("%d", m.failures())),
		stat("ETA:", formatDuration(m.eta())),
		bar.ViewAs(m.percent()),
	}
	if m.current != "" {
		lines = append(lines, currentStyle.Render("→ "+truncate(m.current, width-8)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderDownloadsPanel(width int) string {
	title := titleStyle.Render(" RECENT ")

	if len(m.recent) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("No downloads yet")),
		)
	}

	var lines []string
	for _, item := range m.recent {
		style, icon := StatusStyle(item.Status)
		line := fmt.Sprintf("%s %s", style.Render(icon), truncate(item.Filename, width-24))
		if item.Status == metadata.StatusSuccess {
			line += " " + dimStyle.Render(FormatBytes(item.Size))
		} else {
			line += " " + style.Render(string(item.Status))
		}
		lines = append(lines, line)
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = dimStyle.Render("No logs yet...")
	}

	logsHeight := m.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit (cancels a running crawl)
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Download status:
    ` + successStyle.Render("✓") + `  saved       ` + dimStyle.Render("-") + `  already present
    ` + warningStyle.Render("↓") + `  too small   ` + errorStyle.Render("✗") + `  failed
`

	return panelStyle.Width(m.width).Render(help)
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
