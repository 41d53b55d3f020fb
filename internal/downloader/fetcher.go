package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"musinsacrawler/pkg/config"
	errs "musinsacrawler/pkg/errors"
)

// Default request headers for asset downloads
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultAccept    = "image/webp,image/apng,image/*,*/*;q=0.8"
)

// Response is an open asset download. The caller must close Body.
// Length is the advertised size, or -1 when unknown.
type Response struct {
	Body        io.ReadCloser
	ContentType string
	Length      int64
}

// Fetcher opens asset downloads
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher fetches assets with a browser-like header set
type HTTPFetcher struct {
	client  *http.Client
	headers http.Header
}

// NewHTTPFetcher creates a fetcher whose requests, body included, are
// bounded by cfg's download timeout
func NewHTTPFetcher(cfg *config.Config) *HTTPFetcher {
	timeout := cfg.DownloadTimeoutDuration()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	headers := http.Header{}
	headers.Set("User-Agent", DefaultUserAgent)
	headers.Set("Accept", DefaultAccept)
	if cfg.Site.Referer != "" {
		headers.Set("Referer", cfg.Site.Referer)
	}

	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// Fetch implements Fetcher. Transport failures and non-2xx statuses are
// download errors with reason network.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Download(errs.ReasonNetwork, url, err)
	}
	req.Header = f.headers.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errs.Download(errs.ReasonNetwork, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errs.Download(errs.ReasonNetwork, url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	return &Response{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
	}, nil
}
