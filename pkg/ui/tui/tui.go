package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"musinsacrawler/pkg/metadata"
	"musinsacrawler/pkg/ui"
)

// ErrQuit is returned by Start when the user quits before the run ends
var ErrQuit = errors.New("tui: quit by user")

// TUI is the full-screen crawl dashboard. It satisfies ui.Reporter, so the
// crawler drives it directly from its own goroutine.
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ ui.Reporter = (*TUI)(nil)

// NewTUI lists stages as pending before the first event arrives
func NewTUI(stages ...string) *TUI {
	model := NewModel(stages...)
	return &TUI{
		program: tea.NewProgram(&model, tea.WithAltScreen()),
		model:   &model,
	}
}

// Start blocks until the program exits. Leaving with q or ctrl+c before
// Finish was called yields ErrQuit so the caller can cancel the crawl.
func (t *TUI) Start() error {
	final, err := t.program.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(*Model); ok && !m.done {
		return ErrQuit
	}
	return nil
}

// Stop closes the program without waiting for the user
func (t *TUI) Stop() {
	t.program.Quit()
}

// Finish shows message and leaves the dashboard open until the user quits
func (t *TUI) Finish(message string) {
	t.send(RunDoneMsg{Message: message})
}

func (t *TUI) send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) StageStarted(stage string) {
	t.send(StageStartMsg{Stage: stage})
}

func (t *TUI) StageFinished(stage, detail string, err error) {
	t.send(StageDoneMsg{Stage: stage, Detail: detail, Err: err})
}

func (t *TUI) DownloadStarted(index, total int, filename string) {
	t.send(DownloadStartMsg{Index: index, Total: total, Filename: filename})
}

func (t *TUI) DownloadFinished(index, total int, outcome metadata.DownloadOutcome) {
	t.send(DownloadDoneMsg{Index: index, Total: total, Outcome: outcome})
}
