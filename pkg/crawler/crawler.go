package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"musinsacrawler/internal/downloader"
	"musinsacrawler/pkg/browser"
	"musinsacrawler/pkg/checkpoint"
	"musinsacrawler/pkg/config"
	errs "musinsacrawler/pkg/errors"
	"musinsacrawler/pkg/extractor"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/metadata"
	"musinsacrawler/pkg/pagination"
	"musinsacrawler/pkg/ratelimit"
	"musinsacrawler/pkg/retry"
	"musinsacrawler/pkg/runlog"
	"musinsacrawler/pkg/session"
	"musinsacrawler/pkg/storage"
	"musinsacrawler/pkg/ui"
)

// Outcome is how a run ended
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeAuthFailed     Outcome = "auth_failed"
	OutcomePageLoadFailed Outcome = "page_load_failed"
	OutcomeNoAssets       Outcome = "no_assets"
	OutcomeNoDownloads    Outcome = "no_downloads"
	OutcomeInterrupted    Outcome = "interrupted"
)

// Pipeline stages as reported to a ui.Reporter
const (
	StageAuthenticate = "authenticate"
	StageOrderList    = "open order list"
	StageExpand       = "expand pages"
	StageExtract      = "extract images"
	StageDownload     = "download"
)

// Stages lists the pipeline stages in order
var Stages = []string{StageAuthenticate, StageOrderList, StageExpand, StageExtract, StageDownload}

const (
	orderListWait   = 15 * time.Second
	orderListSettle = 3 * time.Second
)

// Result describes a finished run
type Result struct {
	RunID     string
	Outcome   Outcome
	OutputDir string
	Pages     int
	Assets    int
	// Manifest is nil when the run ended before downloading
	Manifest *metadata.Manifest
	// Err is the failure behind an unsuccessful outcome
	Err error
}

// Succeeded reports whether the run produced or kept at least one image
func (r *Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// BrowserFactory starts the browser for a run
type BrowserFactory func(cfg *config.Config, log logger.Logger) (browser.Browser, error)

// ChromeFactory starts a local Chrome configured from cfg
func ChromeFactory(cfg *config.Config, log logger.Logger) (browser.Browser, error) {
	opts := browser.OptionsFromConfig(cfg)
	opts.Logger = log
	return browser.NewChrome(opts)
}

// Crawler runs the authenticate, expand, extract and download pipeline
type Crawler struct {
	config      *config.Config
	newBrowser  BrowserFactory
	fetcher     downloader.Fetcher
	reporter    ui.Reporter
	checkpoints *checkpoint.Manager
	outputDir   string
	logger      logger.Logger
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
	newRunID    func() string

	sessionOpts []session.Option
	loaderOpts  []pagination.Option
}

// Option configures a Crawler
type Option func(*Crawler)

// WithBrowserFactory replaces the Chrome launcher
func WithBrowserFactory(f BrowserFactory) Option {
	return func(c *Crawler) { c.newBrowser = f }
}

// WithFetcher replaces the HTTP image fetcher
func WithFetcher(f downloader.Fetcher) Option {
	return func(c *Crawler) { c.fetcher = f }
}

// WithReporter sends stage and download progress to r
func WithReporter(r ui.Reporter) Option {
	return func(c *Crawler) { c.reporter = r }
}

// WithCheckpoint remembers each run so it can be resumed
func WithCheckpoint(m *checkpoint.Manager) Option {
	return func(c *Crawler) { c.checkpoints = m }
}

// WithOutputDir writes into dir instead of a new timestamped directory
func WithOutputDir(dir string) Option {
	return func(c *Crawler) { c.outputDir = dir }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// WithClock sets the time source used to name the output directory
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) { c.now = now }
}

// WithSleep replaces every fixed settle wait in the pipeline
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Crawler) {
		c.sleep = sleep
		c.sessionOpts = append(c.sessionOpts, session.WithSleep(sleep))
		c.loaderOpts = append(c.loaderOpts, pagination.WithSleep(sleep))
	}
}

// WithSessionOptions passes options to the session controller
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *Crawler) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// WithLoaderOptions passes options to the pagination loader
func WithLoaderOptions(opts ...pagination.Option) Option {
	return func(c *Crawler) { c.loaderOpts = append(c.loaderOpts, opts...) }
}

// WithRunID fixes the run id
func WithRunID(id string) Option {
	return func(c *Crawler) { c.newRunID = func() string { return id } }
}

// New creates a Crawler for cfg
func New(cfg *config.Config, opts ...Option) *Crawler {
	c := &Crawler{
		config:     cfg,
		newBrowser: ChromeFactory,
		reporter:   ui.NopReporter{},
		now:        time.Now,
		sleep:      retry.Wait,
		newRunID:   newRunID,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrGlobal(c.logger).WithField("component", "crawler")
	if c.fetcher == nil {
		c.fetcher = downloader.NewHTTPFetcher(cfg)
	}
	return c
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// run carries the state of one Run call
type run struct {
	*Crawler
	result   *Result
	recorder *runlog.Recorder
	store    *storage.Manager
	browser  browser.Browser
	cp       *checkpoint.Checkpoint
}

// Run executes the whole pipeline with creds. Pipeline failures are
// reported through Result.Outcome; the returned error is only set when the
// output directory cannot be prepared. The run log is flushed on every
// path out of Run, including panics.
func (c *Crawler) Run(ctx context.Context, creds session.Credentials) (*Result, error) {
	outputDir := c.outputDir
	if outputDir == "" {
		outputDir = storage.RunDirName(c.config.Output.BaseDirectory, c.now())
	}
	store, err := storage.NewManager(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	r := &run{
		Crawler: c,
		result: &Result{
			RunID:     c.newRunID(),
			OutputDir: outputDir,
		},
		store: store,
	}
	r.recorder = runlog.NewRecorder(r.result.RunID, runlog.WithLogger(c.logger))
	defer r.finish()

	r.recorder.Record(runlog.EventRunStart, "crawl started", map[string]interface{}{
		"output_dir":     outputDir,
		"existing_files": store.FileCount(),
		"max_images":     c.config.MaxImages,
		"max_pages":      c.config.MaxPages,
		"headless":       c.config.HeadlessMode,
	})
	c.logger.InfoWithFields("Crawl started", map[string]interface{}{
		"run_id":     r.result.RunID,
		"output_dir": outputDir,
		"username":   logger.MaskUsername(creds.Username),
	})

	if c.checkpoints != nil {
		if r.cp, err = c.checkpoints.Create(r.result.RunID, outputDir); err != nil {
			c.logger.WithError(err).Warn("Failed to save checkpoint")
		}
	}

	r.browser, err = c.newBrowser(c.config, c.logger)
	if err != nil {
		r.fail(OutcomePageLoadFailed, errs.PageLoad("browser", err))
		return r.result, nil
	}
	defer r.browser.Close()

	r.pipeline(ctx, creds)
	return r.result, nil
}

func (r *run) pipeline(ctx context.Context, creds session.Credentials) {
	if err := r.stage(StageAuthenticate, func() (string, error) {
		state, err := session.NewController(r.browser, r.config, r.sessionOptions()...).Authenticate(ctx, creds)
		return plural(state.Attempts, "attempt"), err
	}); err != nil {
		r.fail(r.classify(ctx, OutcomeAuthFailed), err)
		return
	}

	if err := r.stage(StageOrderList, func() (string, error) {
		return "", r.openOrderList(ctx)
	}); err != nil {
		r.fail(r.classify(ctx, OutcomePageLoadFailed), err)
		return
	}

	_ = r.stage(StageExpand, func() (string, error) {
		r.result.Pages = pagination.NewLoader(r.browser, r.config, r.loaderOptions()...).ExpandAll(ctx, r.config.MaxPages)
		return plural(r.result.Pages, "page"), nil
	})
	if ctx.Err() != nil {
		r.fail(OutcomeInterrupted, ctx.Err())
		return
	}

	var assets []extractor.Asset
	if err := r.stage(StageExtract, func() (string, error) {
		var err error
		assets, err = extractor.New(r.browser, r.config,
			extractor.WithLogger(r.logger),
			extractor.WithRecorder(r.recorder),
		).Extract(ctx)
		return plural(len(assets), "image"), err
	}); err != nil {
		r.fail(r.classify(ctx, OutcomeNoAssets), err)
		return
	}
	r.result.Assets = len(assets)

	mgr := downloader.NewManager(r.fetcher, r.store, ratelimit.NewInterval(r.config.DownloadDelayDuration()), r.config,
		downloader.WithRunID(r.result.RunID),
		downloader.WithObserver(r.reporter),
		downloader.WithRecorder(r.recorder),
		downloader.WithLogger(r.logger),
	)
	err := r.stage(StageDownload, func() (string, error) {
		manifest, err := mgr.DownloadAll(ctx, assets)
		r.result.Manifest = manifest
		if manifest == nil {
			return "", err
		}
		return fmt.Sprintf("%d saved, %d skipped", manifest.Count(metadata.StatusSuccess), manifest.Count(metadata.StatusSkipped)), err
	})
	switch {
	case err != nil:
		r.fail(OutcomeInterrupted, err)
	case r.result.Manifest.Count(metadata.StatusSuccess)+r.result.Manifest.Count(metadata.StatusSkipped) == 0:
		r.fail(OutcomeNoDownloads, errors.New("no image could be downloaded"))
	default:
		r.result.Outcome = OutcomeSuccess
	}
}

// openOrderList loads the order history page and waits for it to settle
func (r *run) openOrderList(ctx context.Context) error {
	url := r.config.Site.OrderListURL
	start := time.Now()

	err := r.browser.Navigate(ctx, url)
	if err == nil {
		err = r.browser.WaitReady(ctx, "body", orderListWait)
	}
	if err == nil {
		err = r.sleep(ctx, orderListSettle)
	}
	if err != nil {
		err = errs.PageLoad(url, err)
		r.recorder.Record(runlog.EventPageLoad, "order list failed to load", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return err
	}

	r.recorder.Record(runlog.EventPageLoad, "order list loaded", map[string]interface{}{
		"url":         url,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// stage wraps fn in reporter start and finish events
func (r *run) stage(name string, fn func() (string, error)) error {
	r.reporter.StageStarted(name)
	r.logger.DebugWithFields("Stage started", map[string]interface{}{"stage": name})

	detail, err := fn()
	r.reporter.StageFinished(name, detail, err)
	return err
}

// classify turns a stage failure into an outcome, preferring interrupted
// once ctx has ended
func (r *run) classify(ctx context.Context, outcome Outcome) Outcome {
	if ctx.Err() != nil {
		return OutcomeInterrupted
	}
	return outcome
}

func (r *run) fail(outcome Outcome, err error) {
	r.result.Outcome = outcome
	r.result.Err = err

	log := r.logger.WithError(err).WithField("outcome", string(outcome))
	if errs.IsFatal(err) {
		log.Error("Run aborted")
	} else {
		log.Warn("Run ended early")
	}
}

func (r *run) sessionOptions() []session.Option {
	opts := []session.Option{
		session.WithLogger(r.logger),
		session.WithRecorder(r.recorder),
	}
	return append(opts, r.sessionOpts...)
}

func (r *run) loaderOptions() []pagination.Option {
	opts := []pagination.Option{
		pagination.WithLogger(r.logger),
		pagination.WithRecorder(r.recorder),
	}
	return append(opts, r.loaderOpts...)
}

// finish records how the run ended and flushes the run log. It runs
// deferred, so it also sees panics.
func (r *run) finish() {
	if p := recover(); p != nil {
		r.recorder.Record(runlog.EventTermination, "unexpected failure", map[string]interface{}{
			"panic": fmt.Sprint(p),
		})
		r.flush()
		panic(p)
	}

	fields := map[string]interface{}{
		"outcome": string(r.result.Outcome),
		"pages":   r.result.Pages,
		"assets":  r.result.Assets,
	}
	if r.result.Err != nil {
		fields["error"] = r.result.Err.Error()
		if t := errs.TypeOf(r.result.Err); t != errs.ErrorTypeUnknown {
			fields["error_type"] = string(t)
		}
	}
	r.recorder.Record(runlog.EventTermination, terminationMessage(r.result.Outcome), fields)
	r.recorder.Record(runlog.EventOutcome, string(r.result.Outcome), nil)
	r.flush()

	if r.checkpoints != nil && r.cp != nil {
		downloaded := 0
		if r.result.Manifest != nil {
			downloaded = r.result.Manifest.Count(metadata.StatusSuccess)
		}
		if err := r.checkpoints.RecordResult(r.cp, string(r.result.Outcome), r.result.Assets, downloaded); err != nil {
			r.logger.WithError(err).Warn("Failed to update checkpoint")
		}
	}

	r.logger.InfoWithFields("Crawl finished", fields)
}

func (r *run) flush() {
	path, err := r.recorder.Flush(r.result.OutputDir)
	if err != nil {
		r.logger.WithError(err).Error("Failed to write run log")
		return
	}
	r.logger.DebugWithFields("Run log written", map[string]interface{}{"path": path})
}

func terminationMessage(o Outcome) string {
	switch o {
	case OutcomeSuccess:
		return "completed"
	case OutcomeAuthFailed:
		return "authentication failed"
	case OutcomePageLoadFailed:
		return "order list could not be loaded"
	case OutcomeNoAssets:
		return "no images found"
	case OutcomeNoDownloads:
		return "no images downloaded"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "ended"
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
