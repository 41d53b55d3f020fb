package downloader

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musinsacrawler/pkg/config"
	"musinsacrawler/pkg/extractor"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/metadata"
	"musinsacrawler/pkg/ratelimit"
	"musinsacrawler/pkg/runlog"
	"musinsacrawler/pkg/storage"
)

// noisyPNG encodes a w x h image that does not compress well
func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type cdn struct {
	server *httptest.Server
	calls  atomic.Int32
}

func newCDN(t *testing.T, large []byte) *cdn {
	c := &cdn{}
	mux := http.NewServeMux()
	mux.HandleFunc("/goods/1000001/large.png", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "https://www.musinsa.com/", r.Header.Get("Referer"))
		assert.Equal(t, DefaultAccept, r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "image/png")
		w.Write(large)
	})
	mux.HandleFunc("/goods/1000002/small.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(bytes.Repeat([]byte{0xff}, 3000))
	})
	mux.HandleFunc("/goods/1000003/page.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>login required</html>"))
	})
	mux.HandleFunc("/goods/1000004/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.calls.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *cdn) asset(path string) extractor.Asset {
	return extractor.Asset{RawURL: c.server.URL + path, NormalizedURL: c.server.URL + path}
}

func newManager(t *testing.T, cfg *config.Config, dir string, opts ...Option) *Manager {
	t.Helper()
	store, err := storage.NewManager(dir)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(logger.NewNopLogger()), WithRunID("run-1")}, opts...)
	return NewManager(NewHTTPFetcher(cfg), store, ratelimit.NewInterval(0), cfg, opts...)
}

func TestDownloadAllOutcomes(t *testing.T) {
	large := noisyPNG(t, 64, 48)
	require.Greater(t, len(large), 5120)
	c := newCDN(t, large)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	rec := runlog.NewRecorder("run-1")

	assets := []extractor.Asset{
		c.asset("/goods/1000001/large.png"),
		c.asset("/goods/1000002/small.jpg"),
		c.asset("/goods/1000003/page.jpg"),
		c.asset("/goods/1000004/missing.jpg"),
	}

	manifest, err := newManager(t, cfg, dir, WithRecorder(rec)).DownloadAll(context.Background(), assets)
	require.NoError(t, err)

	outcomes := manifest.Outcomes()
	require.Len(t, outcomes, 4)
	assert.Equal(t, metadata.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, int64(len(large)), outcomes[0].ByteSize)
	assert.Equal(t, 64, outcomes[0].Width)
	assert.Equal(t, 48, outcomes[0].Height)
	assert.Equal(t, metadata.StatusLowQuality, outcomes[1].Status)
	assert.Equal(t, int64(3000), outcomes[1].ByteSize)
	assert.Equal(t, metadata.StatusNonImageContent, outcomes[2].Status)
	assert.Equal(t, metadata.StatusNetworkFailure, outcomes[3].Status)
	assert.Contains(t, outcomes[3].Error, "404")

	for i, o := range outcomes {
		assert.Equal(t, i+1, o.Index)
		assert.False(t, o.Timestamp.IsZero())
	}

	// low quality file is gone, only success bytes are counted
	_, err = os.Stat(filepath.Join(dir, outcomes[1].Filename))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 4, manifest.TotalImages)
	assert.Equal(t, int64(len(large)), manifest.TotalSizeBytes)

	saved, err := metadata.Load(filepath.Join(dir, metadata.FileName))
	require.NoError(t, err)
	assert.Equal(t, "run-1", saved.RunID)
	assert.Equal(t, manifest.TotalSizeBytes, saved.TotalSizeBytes)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.EventDownloadSummary, entries[0].Event)
	assert.Equal(t, 1, entries[0].Fields["success"])
	assert.Equal(t, "1 downloaded, 0 skipped, 3 failed", entries[0].Message)
}

func TestRerunSkipsWithoutNetwork(t *testing.T) {
	large := noisyPNG(t, 64, 48)
	c := newCDN(t, large)
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	assets := []extractor.Asset{c.asset("/goods/1000001/large.png")}

	_, err := newManager(t, cfg, dir).DownloadAll(context.Background(), assets)
	require.NoError(t, err)
	require.Equal(t, int32(1), c.calls.Load())

	manifest, err := newManager(t, cfg, dir).DownloadAll(context.Background(), assets)
	require.NoError(t, err)

	assert.Equal(t, int32(1), c.calls.Load())
	outcomes := manifest.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, metadata.StatusSkipped, outcomes[0].Status)
	assert.Equal(t, int64(len(large)), outcomes[0].ByteSize)
	assert.Equal(t, int64(0), manifest.TotalSizeBytes)
}

func TestExistingSmallFileIsFetchedAgain(t *testing.T) {
	c := newCDN(t, noisyPNG(t, 64, 48))
	dir := t.TempDir()
	asset := c.asset("/goods/1000001/large.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename(asset.NormalizedURL, 1)), []byte("partial"), 0644))

	manifest, err := newManager(t, config.DefaultConfig(), dir).DownloadAll(context.Background(), []extractor.Asset{asset})
	require.NoError(t, err)

	assert.Equal(t, int32(1), c.calls.Load())
	assert.Equal(t, metadata.StatusSuccess, manifest.Outcomes()[0].Status)
}

func TestQualityFilterDisabledKeepsSmallFiles(t *testing.T) {
	c := newCDN(t, nil)
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ImageQualityFilter = false

	manifest, err := newManager(t, cfg, dir).DownloadAll(context.Background(), []extractor.Asset{c.asset("/goods/1000002/small.jpg")})
	require.NoError(t, err)

	o := manifest.Outcomes()[0]
	assert.Equal(t, metadata.StatusSuccess, o.Status)
	assert.Equal(t, int64(3000), manifest.TotalSizeBytes)
	_, err = os.Stat(filepath.Join(dir, o.Filename))
	assert.NoError(t, err)
}

type cancelAfterFirst struct {
	cancel context.CancelFunc
	starts int
}

func (o *cancelAfterFirst) DownloadStarted(int, int, string) { o.starts++ }

func (o *cancelAfterFirst) DownloadFinished(index, _ int, _ metadata.DownloadOutcome) {
	if index == 1 {
		o.cancel()
	}
}

func TestDownloadAllStopsWhenCancelled(t *testing.T) {
	c := newCDN(t, noisyPNG(t, 64, 48))
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	obs := &cancelAfterFirst{cancel: cancel}

	assets := []extractor.Asset{
		c.asset("/goods/1000001/large.png"),
		c.asset("/goods/1000002/small.jpg"),
		c.asset("/goods/1000003/page.jpg"),
	}
	manifest, err := newManager(t, config.DefaultConfig(), dir, WithObserver(obs)).DownloadAll(ctx, assets)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), c.calls.Load())
	assert.Equal(t, 2, obs.starts)

	// the asset in flight is recorded, the rest are not
	outcomes := manifest.Outcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, metadata.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, 2, outcomes[1].Index)
	assert.Equal(t, metadata.StatusNetworkFailure, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Error, "cancel")
	assert.False(t, outcomes[1].Timestamp.IsZero())

	// the partial manifest is still written
	saved, err := metadata.Load(filepath.Join(dir, metadata.FileName))
	require.NoError(t, err)
	assert.Equal(t, 2, saved.TotalImages)
	assert.Equal(t, 1, saved.Count(metadata.StatusNetworkFailure))
}

type countingLimiter struct {
	waits atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return ctx.Err()
}

func TestLimiterWaitsOncePerFetch(t *testing.T) {
	large := noisyPNG(t, 64, 48)
	c := newCDN(t, large)
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	store, err := storage.NewManager(dir)
	require.NoError(t, err)

	run := func(assets ...extractor.Asset) (*metadata.Manifest, int32) {
		limiter := &countingLimiter{}
		m := NewManager(NewHTTPFetcher(cfg), store, limiter, cfg, WithLogger(logger.NewNopLogger()))
		manifest, err := m.DownloadAll(context.Background(), assets)
		require.NoError(t, err)
		return manifest, limiter.waits.Load()
	}

	_, waits := run(c.asset("/goods/1000001/large.png"))
	assert.Equal(t, int32(1), waits)

	// the already downloaded asset is skipped without waiting, the other three are fetched
	manifest, waits := run(
		c.asset("/goods/1000001/large.png"),
		c.asset("/goods/1000002/small.jpg"),
		c.asset("/goods/1000003/page.jpg"),
		c.asset("/goods/1000004/missing.jpg"),
	)
	assert.Equal(t, 1, manifest.Count(metadata.StatusSkipped))
	assert.Equal(t, int32(3), waits)
	assert.Equal(t, c.calls.Load()-1, waits)
}

type shortFetcher struct {
	body   []byte
	length int64
}

func (f shortFetcher) Fetch(context.Context, string) (*Response, error) {
	return &Response{Body: io.NopCloser(bytes.NewReader(f.body)), ContentType: "image/png", Length: f.length}, nil
}

func TestTruncatedBodyIsNetworkFailure(t *testing.T) {
	large := noisyPNG(t, 64, 48)
	tests := []struct {
		name   string
		length int64
		want   metadata.Status
	}{
		{"advertised length matches", int64(len(large)), metadata.StatusSuccess},
		{"unknown length", -1, metadata.StatusSuccess},
		{"body shorter than advertised", int64(len(large)) + 100, metadata.StatusNetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.DefaultConfig()
			store, err := storage.NewManager(dir)
			require.NoError(t, err)
			m := NewManager(shortFetcher{body: large, length: tt.length}, store, ratelimit.NewInterval(0), cfg,
				WithLogger(logger.NewNopLogger()))

			manifest, err := m.DownloadAll(context.Background(), []extractor.Asset{
				{RawURL: "https://image.msscdn.net/goods/1/a.png", NormalizedURL: "https://image.msscdn.net/goods/1/a.png"},
			})
			require.NoError(t, err)

			o := manifest.Outcomes()[0]
			assert.Equal(t, tt.want, o.Status)
			_, statErr := os.Stat(filepath.Join(dir, o.Filename))
			if tt.want == metadata.StatusNetworkFailure {
				assert.Contains(t, o.Error, "truncated")
				assert.True(t, os.IsNotExist(statErr))
			} else {
				assert.NoError(t, statErr)
			}
		})
	}
}

func TestFetcherRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(config.DefaultConfig()).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
