package ui

import "musinsacrawler/pkg/metadata"

// Reporter follows a crawl as it runs. The line-based ProgressDisplay and
// the bubbletea TUI both implement it.
type Reporter interface {
	StageStarted(stage string)
	StageFinished(stage, detail string, err error)
	DownloadStarted(index, total int, filename string)
	DownloadFinished(index, total int, outcome metadata.DownloadOutcome)
}

// NopReporter ignores every event
type NopReporter struct{}

func (NopReporter) StageStarted(string)                                 {}
func (NopReporter) StageFinished(string, string, error)                 {}
func (NopReporter) DownloadStarted(int, int, string)                    {}
func (NopReporter) DownloadFinished(int, int, metadata.DownloadOutcome) {}
