package crawler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musinsacrawler/internal/downloader"
	"musinsacrawler/pkg/browser"
	"musinsacrawler/pkg/browser/browsertest"
	"musinsacrawler/pkg/checkpoint"
	"musinsacrawler/pkg/config"
	errs "musinsacrawler/pkg/errors"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/metadata"
	"musinsacrawler/pkg/runlog"
	"musinsacrawler/pkg/session"
)

var creds = session.Credentials{Username: "shopper01", Password: "s3cret"}

const orderHTML = `<html><body>
<div class="order-item"><img src="https://image.msscdn.net/images/goods_img/20240101/1234567/1234567_1_500.jpg"></div>
<div class="order-item"><img src="https://image.msscdn.net/images/goods_img/20240102/7654321/7654321_1_500.jpg"></div>
</body></html>`

// fakeFetcher serves bodies by URL
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []string
	onCall func(url string)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*downloader.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	body, ok := f.bodies[url]
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Download(errs.ReasonNetwork, url, errors.New("unexpected status 404"))
	}
	return &downloader.Response{
		Body:        io.NopCloser(bytes.NewReader(body)),
		ContentType: "image/jpeg",
		Length:      int64(len(body)),
	}, nil
}

// recordingReporter keeps the stage sequence
type recordingReporter struct {
	mu       sync.Mutex
	started  []string
	failed   map[string]error
	outcomes []metadata.DownloadOutcome
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{failed: make(map[string]error)}
}

func (r *recordingReporter) StageStarted(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, stage)
}

func (r *recordingReporter) StageFinished(stage, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed[stage] = err
	}
}

func (r *recordingReporter) DownloadStarted(int, int, string) {}

func (r *recordingReporter) DownloadFinished(_, _ int, o metadata.DownloadOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

// storefront scripts a browser that accepts the login and shows orderHTML
func storefront(loginWorks bool) *browsertest.Browser {
	b := browsertest.New()
	b.SetElements("input[name='id']", browsertest.Input())
	b.SetElements("input[name='pw']", browsertest.Input())
	b.SetElements("button[type='submit']", browsertest.Button("로그인"))
	b.SetElements("body", browser.Element{Tag: "body", Visible: true})
	b.SetHTML(orderHTML)
	if loginWorks {
		b.OnClick = func(b *browsertest.Browser, el browser.Element) error {
			b.SetURL("https://www.musinsa.com/main")
			return nil
		}
	}
	return b
}

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DownloadDelay = 0
	cfg.RetryAttempts = 2
	return cfg
}

func newCrawler(t *testing.T, cfg *config.Config, b browser.Browser, f downloader.Fetcher, opts ...Option) (*Crawler, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "run")
	base := []Option{
		WithBrowserFactory(func(*config.Config, logger.Logger) (browser.Browser, error) { return b, nil }),
		WithFetcher(f),
		WithOutputDir(dir),
		WithLogger(logger.NewNopLogger()),
		WithSleep(noSleep),
		WithRunID("run-test"),
		WithSessionOptions(session.WithTimings(session.Timings{Poll: time.Millisecond})),
	}
	return New(cfg, append(base, opts...)...), dir
}

func largeBody() []byte {
	return bytes.Repeat([]byte{0xAB}, 6000)
}

func loadLog(t *testing.T, dir string) []runlog.Entry {
	t.Helper()
	runID, entries, err := runlog.Load(filepath.Join(dir, runlog.FileName))
	require.NoError(t, err)
	assert.Equal(t, "run-test", runID)
	return entries
}

func events(entries []runlog.Entry) []runlog.Event {
	var out []runlog.Event
	for _, e := range entries {
		out = append(out, e.Event)
	}
	return out
}

func TestRunSuccess(t *testing.T) {
	b := storefront(true)
	f := &fakeFetcher{bodies: map[string][]byte{
		"https://image.msscdn.net/images/goods_img/20240101/1234567/1234567_1_500.jpg": largeBody(),
		"https://image.msscdn.net/images/goods_img/20240102/7654321/7654321_1_500.jpg": largeBody(),
	}}
	rep := newRecordingReporter()

	c, dir := newCrawler(t, testConfig(), b, f, WithReporter(rep))
	res, err := c.Run(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.Succeeded())
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.Assets)
	require.NotNil(t, res.Manifest)
	assert.Equal(t, 2, res.Manifest.Count(metadata.StatusSuccess))
	assert.Equal(t, Stages, rep.started)
	assert.Empty(t, rep.failed)
	assert.Len(t, rep.outcomes, 2)
	assert.Equal(t, 1, b.Closed)

	assert.Contains(t, b.Navigations, "https://www.musinsa.com/order/order-list")

	manifest, err := metadata.Load(filepath.Join(dir, metadata.FileName))
	require.NoError(t, err)
	assert.Equal(t, "run-test", manifest.RunID)
	assert.Equal(t, 2, manifest.TotalImages)
	assert.Equal(t, int64(12000), manifest.TotalSizeBytes)

	entries := loadLog(t, dir)
	got := events(entries)
	assert.Equal(t, runlog.EventRunStart, got[0])
	assert.Contains(t, got, runlog.EventAuthResult)
	assert.Contains(t, got, runlog.EventPageLoad)
	assert.Contains(t, got, runlog.EventExtraction)
	assert.Contains(t, got, runlog.EventDownloadSummary)
	assert.Equal(t, runlog.EventTermination, got[len(got)-2])
	assert.Equal(t, runlog.EventOutcome, got[len(got)-1])
	assert.Equal(t, "success", entries[len(entries)-1].Message)

	raw, err := os.ReadFile(filepath.Join(dir, runlog.FileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")
	assert.NotContains(t, string(raw), "shopper01")
}

func TestRunAuthFailure(t *testing.T) {
	b := storefront(false)
	f := &fakeFetcher{}
	rep := newRecordingReporter()

	c, dir := newCrawler(t, testConfig(), b, f, WithReporter(rep))
	res, err := c.Run(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAuthFailed, res.Outcome)
	assert.True(t, errs.IsType(res.Err, errs.ErrorTypeAuth))
	assert.Equal(t, errs.ReasonMaxAttemptsExceeded, errs.ReasonOf(res.Err))
	assert.Nil(t, res.Manifest)
	assert.Equal(t, []string{StageAuthenticate}, rep.started)
	assert.Empty(t, f.calls)
	assert.Equal(t, 1, b.Closed)

	got := events(loadLog(t, dir))
	assert.Contains(t, got, runlog.EventAuthAttempt)
	assert.Equal(t, runlog.EventOutcome, got[len(got)-1])

	_, err = os.Stat(filepath.Join(dir, metadata.FileName))
	assert.True(t, os.IsNotExist(err))
}

func TestRunPageLoadFailure(t *testing.T) {
	b := storefront(true)
	b.OnNavigate = func(b *browsertest.Browser, url string) error {
		if strings.Contains(url, "order-list") {
			return errors.New("net::ERR_CONNECTION_RESET")
		}
		return nil
	}

	c, dir := newCrawler(t, testConfig(), b, &fakeFetcher{})
	res, err := c.Run(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, OutcomePageLoadFailed, res.Outcome)
	assert.True(t, errs.IsType(res.Err, errs.ErrorTypePageLoad))
	assert.FileExists(t, filepath.Join(dir, runlog.FileName))
}

func TestRunBrowserStartFailure(t *testing.T) {
	cfg := testConfig()
	dir := filepath.Join(t.TempDir(), "run")
	c := New(cfg,
		WithBrowserFactory(func(*config.Config, logger.Logger) (browser.Browser, error) {
			return nil, errors.New("chrome not found")
		}),
		WithOutputDir(dir),
		WithRunID("run-test"),
		WithLogger(logger.NewNopLogger()),
	)

	res, err := c.Run(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, OutcomePageLoadFailed, res.Outcome)
	assert.ErrorContains(t, res.Err, "chrome not found")
	assert.FileExists(t, filepath.Join(dir, runlog.FileName))
}

func TestRunNoAssets(t *testing.T) {
	b := storefront(true)
	b.SetHTML("<html><body><p>주문 내역이 없습니다</p></body></html>")

	c, _ := newCrawler(t, testConfig(), b, &fakeFetcher{})
	res, err := c.Run(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoAssets, res.Outcome)
	assert.True(t, errs.IsType(res.Err, errs.ErrorTypeExtractionEmpty))
}

func TestRunNoDownloads(t *testing.T) {
	b := storefront(true)

	c, dir := newCrawler(t, testConfig(), b, &fakeFetcher{})
	res, err := c.Run(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoDownloads, res.Outcome)
	require.NotNil(t, res.Manifest)
	assert.Equal(t, 2, res.Manifest.Count(metadata.StatusNetworkFailure))
	assert.FileExists(t, filepath.Join(dir, metadata.FileName))
}

func TestRunInterruptedDuringDownload(t *testing.T) {
	b := storefront(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeFetcher{
		bodies: map[string][]byte{
			"https://image.msscdn.net/images/goods_img/20240101/1234567/1234567_1_500.jpg": largeBody(),
		},
		onCall: func(string) { cancel() },
	}

	c, dir := newCrawler(t, testConfig(), b, f)
	res, err := c.Run(ctx, creds)
	require.NoError(t, err)

	assert.Equal(t, OutcomeInterrupted, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Len(t, f.calls, 1)

	entries := loadLog(t, dir)
	assert.Equal(t, "interrupted", entries[len(entries)-1].Message)
	assert.FileExists(t, filepath.Join(dir, metadata.FileName))
}

func TestRunInterruptedBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, dir := newCrawler(t, testConfig(), storefront(true), &fakeFetcher{})
	res, err := c.Run(ctx, creds)
	require.NoError(t, err)

	assert.Equal(t, OutcomeInterrupted, res.Outcome)
	assert.FileExists(t, filepath.Join(dir, runlog.FileName))
}

func TestRunResumeSkipsExistingFiles(t *testing.T) {
	body := largeBody()
	f := &fakeFetcher{bodies: map[string][]byte{
		"https://image.msscdn.net/images/goods_img/20240101/1234567/1234567_1_500.jpg": body,
		"https://image.msscdn.net/images/goods_img/20240102/7654321/7654321_1_500.jpg": body,
	}}

	dir := filepath.Join(t.TempDir(), "resume")
	cfg := testConfig()
	run := func() *Result {
		c := New(cfg,
			WithBrowserFactory(func(*config.Config, logger.Logger) (browser.Browser, error) { return storefront(true), nil }),
			WithFetcher(f),
			WithOutputDir(dir),
			WithLogger(logger.NewNopLogger()),
			WithSleep(noSleep),
			WithSessionOptions(session.WithTimings(session.Timings{Poll: time.Millisecond})),
		)
		res, err := c.Run(context.Background(), creds)
		require.NoError(t, err)
		return res
	}

	first := run()
	require.Equal(t, OutcomeSuccess, first.Outcome)
	require.Len(t, f.calls, 2)

	second := run()
	assert.Equal(t, OutcomeSuccess, second.Outcome)
	assert.Equal(t, 2, second.Manifest.Count(metadata.StatusSkipped))
	assert.Len(t, f.calls, 2, "nothing refetched")
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunUpdatesCheckpoint(t *testing.T) {
	cps, err := checkpoint.NewManagerAt(filepath.Join(t.TempDir(), "last_run.json"), logger.NewNopLogger())
	require.NoError(t, err)

	c, dir := newCrawler(t, testConfig(), storefront(false), &fakeFetcher{}, WithCheckpoint(cps))
	_, err = c.Run(context.Background(), creds)
	require.NoError(t, err)

	cp, err := cps.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "run-test", cp.RunID)
	assert.Equal(t, string(OutcomeAuthFailed), cp.Outcome)

	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, cp.OutputDir)
}

func TestDefaultOutputDirIsTimestamped(t *testing.T) {
	cfg := testConfig()
	cfg.Output.BaseDirectory = filepath.Join(t.TempDir(), "musinsa_images")
	at := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	c := New(cfg,
		WithBrowserFactory(func(*config.Config, logger.Logger) (browser.Browser, error) { return storefront(false), nil }),
		WithFetcher(&fakeFetcher{}),
		WithClock(func() time.Time { return at }),
		WithLogger(logger.NewNopLogger()),
		WithSleep(noSleep),
		WithSessionOptions(session.WithTimings(session.Timings{Poll: time.Millisecond})),
	)
	res, err := c.Run(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, cfg.Output.BaseDirectory+"_20240309_140506", res.OutputDir)
	assert.DirExists(t, res.OutputDir)
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 page", plural(1, "page"))
	assert.Equal(t, "0 images", plural(0, "image"))
	assert.Equal(t, "3 attempts", plural(3, "attempt"))
}
