package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"musinsacrawler/pkg/metadata"
)

// StageStartMsg is sent when a pipeline stage starts
type StageStartMsg struct {
	Stage string
}

// StageDoneMsg is sent when a pipeline stage ends
type StageDoneMsg struct {
	Stage  string
	Detail string
	Err    error
}

// DownloadStartMsg is sent when a download starts
type DownloadStartMsg struct {
	Index    int
	Total    int
	Filename string
}

// DownloadDoneMsg is sent when a download has an outcome
type DownloadDoneMsg struct {
	Index   int
	Total   int
	Outcome metadata.DownloadOutcome
}

// RunDoneMsg is sent once the crawl is over
type RunDoneMsg struct {
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case StageStartMsg:
		m.StartStage(msg.Stage)
		m.AddLogMessage("INFO", "Started "+msg.Stage)
		return m, nil

	case StageDoneMsg:
		m.FinishStage(msg.Stage, msg.Detail, msg.Err)
		if msg.Err != nil {
			m.AddLogMessage("ERROR", msg.Stage+": "+msg.Err.Error())
		} else {
			m.AddLogMessage("SUCCESS", "Finished "+msg.Stage)
		}
		return m, nil

	case DownloadStartMsg:
		m.StartDownload(msg.Index, msg.Total, msg.Filename)
		return m, nil

	case DownloadDoneMsg:
		m.FinishDownload(msg.Index, msg.Total, msg.Outcome)
		if msg.Outcome.Status.Failed() {
			m.AddLogMessage("WARN", msg.Outcome.Filename+": "+string(msg.Outcome.Status))
		}
		return m, nil

	case RunDoneMsg:
		m.Finish(msg.Message)
		m.AddLogMessage("SUCCESS", msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
