package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"musinsacrawler/pkg/metadata"
)

// ProgressDisplay provides a clean, minimal progress display
type ProgressDisplay struct {
	mu              sync.Mutex
	w               io.Writer
	total           int
	finished        int
	counts          map[metadata.Status]int
	currentFile     string
	startTime       time.Time
	bytesDownloaded int64
	isDebug         bool
}

// NewProgressDisplay creates a progress display writing to w, or stdout
// when w is nil. In debug mode every download gets its own line.
func NewProgressDisplay(w io.Writer, debug bool) *ProgressDisplay {
	if w == nil {
		w = os.Stdout
	}
	return &ProgressDisplay{
		w:         w,
		counts:    make(map[metadata.Status]int),
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// StageStarted implements Reporter
func (p *ProgressDisplay) StageStarted(stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "%s %s\n", Magenta("→"), stage)
}

// StageFinished implements Reporter
func (p *ProgressDisplay) StageFinished(stage, detail string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		fmt.Fprintf(p.w, "%s %s: %v\n", Red("✗"), stage, err)
		return
	}
	if detail == "" {
		fmt.Fprintf(p.w, "%s %s\n", Green("✓"), stage)
		return
	}
	fmt.Fprintf(p.w, "%s %s • %s\n", Green("✓"), stage, Dim(detail))
}

// DownloadStarted implements Reporter
func (p *ProgressDisplay) DownloadStarted(index, total int, filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.currentFile = filename

	if !p.isDebug {
		p.printProgress()
	}
}

// DownloadFinished implements Reporter
func (p *ProgressDisplay) DownloadFinished(index, total int, outcome metadata.DownloadOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.finished++
	p.counts[outcome.Status]++
	if outcome.Status == metadata.StatusSuccess {
		p.bytesDownloaded += outcome.ByteSize
	}
	p.currentFile = ""

	if p.isDebug {
		p.printDebugOutcome(outcome)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) failures() int {
	n := 0
	for status, count := range p.counts {
		if status.Failed() {
			n += count
		}
	}
	return n
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	bar := progressBar(p.finished, p.total, 20)

	line := fmt.Sprintf("%s [%s] %d/%d • %s • %s",
		Cyan("images"),
		bar,
		p.finished,
		p.total,
		formatBytes(p.bytesDownloaded),
		p.calculateETA(),
	)

	if p.currentFile != "" {
		line += fmt.Sprintf(" • %s", p.currentFile)
	}
	if skipped := p.counts[metadata.StatusSkipped]; skipped > 0 {
		line += fmt.Sprintf(" • %s", Dim(fmt.Sprintf("%d skipped", skipped)))
	}
	if failed := p.failures(); failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", failed)))
	}

	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

func (p *ProgressDisplay) printDebugOutcome(o metadata.DownloadOutcome) {
	switch {
	case o.Status == metadata.StatusSuccess:
		fmt.Fprintf(p.w, "%s %s • %s", Green("✓"), o.Filename, formatBytes(o.ByteSize))
		if o.Width > 0 {
			fmt.Fprintf(p.w, " • %s", Dim(fmt.Sprintf("%dx%d %s", o.Width, o.Height, o.AspectRatio())))
		}
		fmt.Fprintln(p.w)
	case o.Status == metadata.StatusSkipped:
		fmt.Fprintf(p.w, "%s %s • %s\n", Dim("-"), o.Filename, Dim("already present"))
	default:
		fmt.Fprintf(p.w, "%s %s • %s %s\n", Red("✗"), o.Filename, o.Status, Dim(o.Error))
	}
}

// Complete prints the final run summary
func (p *ProgressDisplay) Complete(manifest *metadata.Manifest, outputDir string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	if !p.isDebug && p.total > 0 {
		fmt.Fprintln(p.w)
	}
	if manifest == nil {
		fmt.Fprintf(p.w, "\n%s No images were downloaded\n", Yellow("!"))
		return
	}

	fmt.Fprintf(p.w, "\n%s Downloaded %d of %d images\n",
		Green("✓"),
		manifest.Count(metadata.StatusSuccess),
		manifest.TotalImages,
	)
	fmt.Fprintf(p.w, "  %s %s in %s\n", Dim("•"), formatBytes(manifest.TotalSizeBytes), formatDuration(elapsed))

	for _, status := range metadata.Statuses {
		if status == metadata.StatusSuccess {
			continue
		}
		if n := manifest.Count(status); n > 0 {
			fmt.Fprintf(p.w, "  %s %d %s\n", Dim("•"), n, status)
		}
	}
	if outputDir != "" {
		fmt.Fprintf(p.w, "  %s %s\n", Dim("•"), outputDir)
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	if p.finished == 0 {
		return "calculating..."
	}

	remaining := p.total - p.finished
	rate := float64(p.finished) / time.Since(p.startTime).Seconds()
	if rate == 0 {
		return "calculating..."
	}

	return formatDuration(time.Duration(float64(remaining)/rate) * time.Second)
}

func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
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

var _ Reporter = (*ProgressDisplay)(nil)
