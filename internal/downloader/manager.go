package downloader

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"musinsacrawler/pkg/config"
	errs "musinsacrawler/pkg/errors"
	"musinsacrawler/pkg/extractor"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/metadata"
	"musinsacrawler/pkg/ratelimit"
	"musinsacrawler/pkg/runlog"
)

// Storage is where downloaded assets are kept
type Storage interface {
	ExistingSize(filename string) (int64, bool)
	Save(r io.Reader, filename string) (int64, error)
	Remove(filename string) error
	Path(filename string) string
	OutputDir() string
}

// Observer follows download progress, e.g. for a progress display
type Observer interface {
	DownloadStarted(index, total int, filename string)
	DownloadFinished(index, total int, outcome metadata.DownloadOutcome)
}

// Manager downloads assets one at a time
type Manager struct {
	fetcher       Fetcher
	store         Storage
	limiter       ratelimit.Limiter
	minFileSize   int64
	qualityFilter bool
	config        *config.Config
	runID         string
	observer      Observer
	recorder      runlog.Sink
	logger        logger.Logger
	now           func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithRunID stamps the manifest with id
func WithRunID(id string) Option {
	return func(m *Manager) { m.runID = id }
}

// WithObserver reports progress to o
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithRecorder sets the run log sink
func WithRecorder(s runlog.Sink) Option {
	return func(m *Manager) { m.recorder = s }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a download manager
func NewManager(fetcher Fetcher, store Storage, limiter ratelimit.Limiter, cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		fetcher:       fetcher,
		store:         store,
		limiter:       limiter,
		minFileSize:   cfg.MinFileSize,
		qualityFilter: cfg.ImageQualityFilter,
		config:        cfg,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limiter == nil {
		m.limiter = ratelimit.NewInterval(cfg.DownloadDelayDuration())
	}
	m.logger = logger.OrGlobal(m.logger).WithField("component", "downloader")
	m.recorder = runlog.OrDiscard(m.recorder)
	return m
}

// DownloadAll processes assets in order and persists the manifest into the
// output directory. Every asset that reaches processing gets exactly one
// outcome. When ctx ends the asset in flight is recorded as a cancelled
// network failure, the rest are left unprocessed, the partial manifest is
// still saved and ctx's error is returned with it.
func (m *Manager) DownloadAll(ctx context.Context, assets []extractor.Asset) (*metadata.Manifest, error) {
	manifest := metadata.NewManifest(m.runID, m.config)
	total := len(assets)

	m.logger.InfoWithFields("Starting downloads", map[string]interface{}{
		"total":          total,
		"output_dir":     m.store.OutputDir(),
		"min_size":       m.minFileSize,
		"quality_filter": m.qualityFilter,
	})

	var runErr error
	for i, asset := range assets {
		index := i + 1
		outcome, err := m.process(ctx, asset, index, total)
		if err != nil {
			runErr = err
			outcome = m.fail(outcome, metadata.StatusNetworkFailure, fmt.Errorf("cancelled: %w", err))
		}
		manifest.Append(outcome)
		if m.observer != nil {
			m.observer.DownloadFinished(index, total, outcome)
		}
		if runErr != nil {
			m.logger.WarnWithFields("Downloads interrupted", map[string]interface{}{
				"processed": index,
				"total":     total,
			})
			break
		}
	}

	path, err := manifest.Save(m.store.OutputDir())
	if err != nil {
		m.logger.WithError(err).Error("Failed to save manifest")
	} else {
		m.logger.DebugWithFields("Manifest saved", map[string]interface{}{"path": path})
	}

	summary := map[string]interface{}{
		"total_images":     manifest.TotalImages,
		"total_size_bytes": manifest.TotalSizeBytes,
	}
	failed := 0
	for _, s := range metadata.Statuses {
		summary[string(s)] = manifest.Count(s)
		if s.Failed() {
			failed += manifest.Count(s)
		}
	}
	m.recorder.Record(runlog.EventDownloadSummary, fmt.Sprintf("%d downloaded, %d skipped, %d failed",
		manifest.Count(metadata.StatusSuccess),
		manifest.Count(metadata.StatusSkipped),
		failed,
	), summary)
	m.logger.InfoWithFields("Downloads finished", summary)

	return manifest, runErr
}

// process handles a single asset. It only returns an error when ctx has
// ended; every other failure becomes the outcome's status.
func (m *Manager) process(ctx context.Context, asset extractor.Asset, index, total int) (metadata.DownloadOutcome, error) {
	url := asset.NormalizedURL
	outcome := metadata.DownloadOutcome{
		Index:     index,
		Filename:  Filename(url, index),
		SourceURL: url,
	}
	if m.observer != nil {
		m.observer.DownloadStarted(index, total, outcome.Filename)
	}

	if size, ok := m.store.ExistingSize(outcome.Filename); ok && size > m.minFileSize {
		outcome.Status = metadata.StatusSkipped
		outcome.ByteSize = size
		outcome.Timestamp = m.now()
		m.logger.DebugWithFields("Already downloaded", map[string]interface{}{
			"index":    index,
			"filename": outcome.Filename,
			"size":     size,
		})
		return outcome, nil
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return outcome, err
	}

	start := time.Now()
	resp, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		return m.fail(outcome, metadata.StatusNetworkFailure, err), nil
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(strings.ToLower(resp.ContentType), "image/") {
		outcome.ContentType = resp.ContentType
		err := errs.Download(errs.ReasonNonImageContent, url, fmt.Errorf("content type %q", resp.ContentType))
		return m.fail(outcome, metadata.StatusNonImageContent, err), nil
	}
	outcome.ContentType = resp.ContentType

	n, err := m.store.Save(resp.Body, outcome.Filename)
	if err != nil {
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		return m.fail(outcome, metadata.StatusNetworkFailure, errs.Download(errs.ReasonNetwork, url, err)), nil
	}
	outcome.ByteSize = n
	if resp.Length > 0 && n != resp.Length {
		if err := m.store.Remove(outcome.Filename); err != nil {
			m.logger.WithError(err).Warn("Failed to remove truncated file")
		}
		err := errs.Download(errs.ReasonNetwork, url, fmt.Errorf("truncated body: got %d of %d bytes", n, resp.Length))
		return m.fail(outcome, metadata.StatusNetworkFailure, err), nil
	}

	if m.qualityFilter && n < m.minFileSize {
		if err := m.store.Remove(outcome.Filename); err != nil {
			m.logger.WithError(err).Warn("Failed to remove low quality file")
		}
		err := errs.Download(errs.ReasonLowQuality, url, fmt.Errorf("%d bytes is below %d", n, m.minFileSize))
		return m.fail(outcome, metadata.StatusLowQuality, err), nil
	}

	if w, h, err := Dimensions(m.store.Path(outcome.Filename)); err == nil {
		outcome.Width, outcome.Height = w, h
	}

	outcome.Status = metadata.StatusSuccess
	outcome.Timestamp = m.now()
	m.logger.DebugWithFields("Downloaded", map[string]interface{}{
		"index":    index,
		"total":    total,
		"filename": outcome.Filename,
		"size":     n,
		"duration": time.Since(start).String(),
	})
	return outcome, nil
}

func (m *Manager) fail(outcome metadata.DownloadOutcome, status metadata.Status, err error) metadata.DownloadOutcome {
	outcome.Status = status
	outcome.Error = err.Error()
	outcome.Timestamp = m.now()
	m.logger.WarnWithFields("Download failed", map[string]interface{}{
		"index":    outcome.Index,
		"filename": outcome.Filename,
		"status":   string(status),
		"error":    err.Error(),
	})
	return outcome
}
