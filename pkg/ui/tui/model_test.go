package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musinsacrawler/pkg/metadata"
)

func TestModelStages(t *testing.T) {
	model := NewModel("authenticate", "download")

	model.StartStage("authenticate")
	model.FinishStage("authenticate", "1 attempt", nil)
	model.StartStage("download")
	model.FinishStage("download", "", errors.New("cancelled"))
	model.StartStage("extra")

	stages := model.Stages()
	require.Len(t, stages, 3)
	assert.Equal(t, StageDone, stages[0].State)
	assert.Equal(t, "1 attempt", stages[0].Detail)
	assert.Equal(t, StageFailed, stages[1].State)
	assert.Equal(t, "cancelled", stages[1].Detail)
	assert.Equal(t, "extra", stages[2].Name)
	assert.Equal(t, StageActive, stages[2].State)
}

func TestModelDownloads(t *testing.T) {
	model := NewModel()
	model.maxRecent = 2

	model.StartDownload(1, 4, "a.jpg")
	assert.Equal(t, "a.jpg", model.current)

	model.FinishDownload(1, 4, metadata.DownloadOutcome{Filename: "a.jpg", Status: metadata.StatusSuccess, ByteSize: 100})
	model.FinishDownload(2, 4, metadata.DownloadOutcome{Filename: "b.jpg", Status: metadata.StatusSkipped})
	model.FinishDownload(3, 4, metadata.DownloadOutcome{Filename: "c.jpg", Status: metadata.StatusNonImageContent})

	assert.Equal(t, "", model.current)
	assert.Equal(t, int64(100), model.totalSize)
	assert.Equal(t, 1, model.Failures())
	assert.InDelta(t, 0.75, model.Percent(), 0.001)
	require.Len(t, model.recent, 2)
	assert.Equal(t, "b.jpg", model.recent[0].Filename)
}

func TestUpdateMessages(t *testing.T) {
	model := NewModel("extract")

	model.Update(StageStartMsg{Stage: "extract"})
	model.Update(StageDoneMsg{Stage: "extract", Detail: "12 assets"})
	model.Update(DownloadStartMsg{Index: 1, Total: 1, Filename: "x.png"})
	model.Update(DownloadDoneMsg{Index: 1, Total: 1, Outcome: metadata.DownloadOutcome{Filename: "x.png", Status: metadata.StatusLowQuality}})
	model.Update(RunDoneMsg{Message: "done"})
	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.True(t, model.done)
	assert.Equal(t, 120, model.width)
	assert.Equal(t, StageDone, model.Stages()[0].State)
	require.NotEmpty(t, model.logMessages)
	assert.Equal(t, "done", model.logMessages[len(model.logMessages)-1].Message)

	view := model.View()
	assert.Contains(t, view, "extract")
	assert.Contains(t, view, "x.png")
}

func TestQuitKey(t *testing.T) {
	model := NewModel()
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLogTrimming(t *testing.T) {
	model := NewModel()
	model.maxLogMessages = 3
	for i := 0; i < 5; i++ {
		model.AddLogMessage("INFO", string(rune('a'+i)))
	}
	require.Len(t, model.logMessages, 3)
	assert.Equal(t, "c", model.logMessages[0].Message)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "상품이...", truncate("상품이미지파일", 6))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", formatDuration(-1))
	assert.Equal(t, "01:05", formatDuration(65e9))
	assert.Equal(t, "01:00:01", formatDuration(3601e9))
}
