package crawler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musinsacrawler/internal/downloader"
	"musinsacrawler/pkg/browser"
	"musinsacrawler/pkg/config"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/metadata"
	"musinsacrawler/pkg/session"
)

// mockCDN serves product images the way image.msscdn.net does
type mockCDN struct {
	server   *httptest.Server
	requests int32
	referers chan string
}

func newMockCDN(t *testing.T, photo []byte) *mockCDN {
	t.Helper()
	m := &mockCDN{referers: make(chan string, 16)}

	mux := http.NewServeMux()
	mux.HandleFunc("/images/goods_img/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.requests, 1)
		select {
		case m.referers <- r.Header.Get("Referer"):
		default:
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	})
	mux.HandleFunc("/images/maintenance/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.requests, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>점검 중</html>"))
	})
	mux.HandleFunc("/images/tiny/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.requests, 1)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo[:1024])
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

// redirectFetcher sends every request to the mock CDN, keeping the path
type redirectFetcher struct {
	target *url.URL
	next   downloader.Fetcher
}

func (f *redirectFetcher) Fetch(ctx context.Context, raw string) (*downloader.Response, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	u.Scheme = f.target.Scheme
	u.Host = f.target.Host
	return f.next.Fetch(ctx, u.String())
}

// noisyJPEG encodes an image that stays well above min_file_size
func noisyJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	require.Greater(t, buf.Len(), 5120)
	return buf.Bytes()
}

func TestCrawlAgainstMockCDN(t *testing.T) {
	photo := noisyJPEG(t, 120, 80)
	cdn := newMockCDN(t, photo)
	target, err := url.Parse(cdn.server.URL)
	require.NoError(t, err)

	b := storefront(true)
	b.SetHTML(`<html><body>
<div class="order-item"><img src="//image.msscdn.net/images/goods_img/20240101/1234567/1234567_1_150.jpg?w=150"></div>
<div class="order-item"><img src="https://image.msscdn.net/images/goods_img/20240101/1234567/1234567_1_150.jpg"></div>
<div class="order-item"><img data-src="https://image.msscdn.net/images/maintenance/20240102/2222222/2222222_1_500.jpg"></div>
<div class="order-item"><img src="https://image.msscdn.net/images/tiny/20240103/3333333/3333333_1_500.jpg"></div>
<img src="https://image.msscdn.net/images/logo/musinsa_logo.png">
</body></html>`)

	cfg := config.DefaultConfig()
	cfg.DownloadDelay = 0.001
	dir := filepath.Join(t.TempDir(), "run")

	c := New(cfg,
		WithBrowserFactory(func(*config.Config, logger.Logger) (browser.Browser, error) { return b, nil }),
		WithFetcher(&redirectFetcher{target: target, next: downloader.NewHTTPFetcher(cfg)}),
		WithOutputDir(dir),
		WithLogger(logger.NewNopLogger()),
		WithSleep(noSleep),
		WithSessionOptions(session.WithTimings(session.Timings{Poll: time.Millisecond})),
	)

	res, err := c.Run(context.Background(), creds)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome, "err: %v", res.Err)
	require.NotNil(t, res.Manifest)

	// the two thumbnails collapse into one full-size asset
	assert.Equal(t, 3, res.Assets)
	assert.Equal(t, int32(3), atomic.LoadInt32(&cdn.requests))
	assert.Equal(t, "https://www.musinsa.com/", <-cdn.referers)

	manifest, err := metadata.Load(filepath.Join(dir, metadata.FileName))
	require.NoError(t, err)
	require.Len(t, manifest.Images, 3)

	first := manifest.Images[0]
	assert.Equal(t, metadata.StatusSuccess, first.Status)
	assert.Equal(t, "https://image.msscdn.net/images/goods_img/20240101/1234567/1234567_1_500.jpg", first.SourceURL)
	assert.Equal(t, int64(len(photo)), first.ByteSize)
	assert.Equal(t, 120, first.Width)
	assert.Equal(t, 80, first.Height)
	assert.FileExists(t, filepath.Join(dir, first.Filename))

	// src selectors run before data-src ones
	assert.Equal(t, metadata.StatusLowQuality, manifest.Images[1].Status)
	assert.NoFileExists(t, filepath.Join(dir, manifest.Images[1].Filename))
	assert.Equal(t, metadata.StatusNonImageContent, manifest.Images[2].Status)

	assert.Equal(t, 1, manifest.Counts[metadata.StatusSuccess])
	assert.Equal(t, int64(len(photo)), manifest.TotalSizeBytes)
}
