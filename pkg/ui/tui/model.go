package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"musinsacrawler/pkg/metadata"
)

// StageState is the state of a pipeline stage
type StageState int

const (
	StagePending StageState = iota
	StageActive
	StageDone
	StageFailed
)

// StageItem is one pipeline stage as shown in the TUI
type StageItem struct {
	Name      string
	State     StageState
	Detail    string
	StartTime time.Time
	Elapsed   time.Duration
}

// DownloadItem is one finished download
type DownloadItem struct {
	Index    int
	Filename string
	Status   metadata.Status
	Size     int64
	Error    string
}

// Model represents the TUI model
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	stages     []*StageItem
	stageIndex map[string]int

	// download state
	total       int
	current     string
	finished    int
	counts      map[metadata.Status]int
	totalSize   int64
	recent      []DownloadItem
	maxRecent   int
	startTime   time.Time
	done        bool
	doneMessage string

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a model listing the given stages as pending
func NewModel(stages ...string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	m := Model{
		spinner:        s,
		progress:       p,
		stageIndex:     make(map[string]int),
		counts:         make(map[metadata.Status]int),
		maxRecent:      8,
		startTime:      time.Now(),
		maxLogMessages: 50,
	}
	for _, name := range stages {
		m.addStage(name)
	}
	return m
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *Model) addStage(name string) *StageItem {
	item := &StageItem{Name: name}
	m.stageIndex[name] = len(m.stages)
	m.stages = append(m.stages, item)
	return item
}

func (m *Model) stage(name string) *StageItem {
	if i, ok := m.stageIndex[name]; ok {
		return m.stages[i]
	}
	return m.addStage(name)
}

// StartStage marks a stage active
func (m *Model) StartStage(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.stage(name)
	item.State = StageActive
	item.StartTime = time.Now()
}

// FinishStage marks a stage done, or failed when err is set
func (m *Model) FinishStage(name, detail string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.stage(name)
	item.State = StageDone
	item.Detail = detail
	if err != nil {
		item.State = StageFailed
		item.Detail = err.Error()
	}
	if !item.StartTime.IsZero() {
		item.Elapsed = time.Since(item.StartTime)
	}
}

// StartDownload records the file currently being fetched
func (m *Model) StartDownload(index, total int, filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = total
	m.current = filename
}

// FinishDownload records a download outcome
func (m *Model) FinishDownload(index, total int, o metadata.DownloadOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = total
	m.finished++
	m.current = ""
	m.counts[o.Status]++
	if o.Status == metadata.StatusSuccess {
		m.totalSize += o.ByteSize
	}

	m.recent = append(m.recent, DownloadItem{
		Index:    index,
		Filename: o.Filename,
		Status:   o.Status,
		Size:     o.ByteSize,
		Error:    o.Error,
	})
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

// Finish marks the run as over
func (m *Model) Finish(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.done = true
	m.doneMessage = message
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = errorRed
	case "WARN":
		color = accentOrange
	case "SUCCESS":
		color = accentGreen
	case "INFO":
		color = accentCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Stages returns a copy of the stages in order
func (m *Model) Stages() []StageItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StageItem, len(m.stages))
	for i, s := range m.stages {
		out[i] = *s
	}
	return out
}

// Failures counts failed downloads
func (m *Model) Failures() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failures()
}

func (m *Model) failures() int {
	n := 0
	for status, count := range m.counts {
		if status.Failed() {
			n += count
		}
	}
	return n
}

// Percent returns the share of assets finished so far
func (m *Model) Percent() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.percent()
}

func (m *Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	p := float64(m.finished) / float64(m.total)
	if p > 1 {
		p = 1
	}
	return p
}

// eta is based on the average time per finished download
func (m *Model) eta() time.Duration {
	if m.finished == 0 || m.total <= m.finished {
		return 0
	}
	per := time.Since(m.startTime) / time.Duration(m.finished)
	return per * time.Duration(m.total-m.finished)
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
