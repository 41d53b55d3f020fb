package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musinsacrawler/pkg/browser/browsertest"
	"musinsacrawler/pkg/config"
	errs "musinsacrawler/pkg/errors"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/runlog"
)

const orderPage = `<html><body>
<div class="order-item">
  <img src="https://image.msscdn.net/images/goods_img/20240101/1111111/1111111_1_150.jpg" alt="상품 이미지">
  <img data-src="https://image.msscdn.net/images/goods_img/20240101/2222222/thumb/2222222.jpg" alt="상품">
  <img src="https://image.msscdn.net/images/logo/musinsa_logo.png">
</div>
<div class="goods-thumb"><img src="" data-original="//image.msscdn.net/images/goods_img/3333333/3333333_300.webp"></div>
<img src="https://image.msscdn.net/images/goods_img/20240101/1111111/1111111_1_150.jpg?ver=2">
<img src="https://cdn.example.com/1.jpg" alt="product">
</body></html>`

func newExtractor(b *browsertest.Browser, maxImages int, rec runlog.Sink) *Extractor {
	cfg := config.DefaultConfig()
	cfg.MaxImages = maxImages
	return New(b, cfg, WithLogger(logger.NewNopLogger()), WithRecorder(rec))
}

func TestExtractFromSnapshot(t *testing.T) {
	b := browsertest.New()
	b.SetHTML(orderPage)

	rec := runlog.NewRecorder("run")
	assets, err := newExtractor(b, 1000, rec).Extract(context.Background())
	require.NoError(t, err)

	var got []string
	for _, a := range assets {
		got = append(got, a.NormalizedURL)
	}
	assert.Equal(t, []string{
		"https://image.msscdn.net/images/goods_img/20240101/1111111/1111111_1_500.jpg",
		"https://image.msscdn.net/images/goods_img/20240101/2222222/large/2222222.jpg",
		"https://image.msscdn.net/images/goods_img/3333333/3333333_800.webp",
	}, got)
	assert.Equal(t, "img[src*='image.msscdn.net']", assets[0].Source)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.EventExtraction, entries[0].Event)
	assert.Equal(t, 3, entries[0].Fields["kept"])
}

func TestExtractScriptPassAddsMissedImages(t *testing.T) {
	b := browsertest.New()
	b.SetHTML(orderPage)
	b.OnEvaluate = func(_ *browsertest.Browser, script string) (interface{}, error) {
		return []string{
			"https://image.msscdn.net/images/goods_img/4444444/4444444.jpg",
			"https://image.msscdn.net/images/goods_img/20240101/1111111/1111111_1_150.jpg",
		}, nil
	}

	assets, err := newExtractor(b, 1000, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 4)
	assert.Equal(t, SourceScript, assets[3].Source)
}

func TestExtractTruncatesToMaxImages(t *testing.T) {
	b := browsertest.New()
	b.OnEvaluate = func(*browsertest.Browser, string) (interface{}, error) {
		return []string{
			"https://image.msscdn.net/goods/1000001.jpg",
			"https://image.msscdn.net/goods/1000002.jpg",
			"https://image.msscdn.net/goods/1000003.jpg",
			"https://image.msscdn.net/goods/1000004.jpg",
			"https://image.msscdn.net/goods/1000005.jpg",
		}, nil
	}

	assets, err := newExtractor(b, 2, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "https://image.msscdn.net/goods/1000001.jpg", assets[0].NormalizedURL)
	assert.Equal(t, "https://image.msscdn.net/goods/1000002.jpg", assets[1].NormalizedURL)
}

func TestExtractEmpty(t *testing.T) {
	b := browsertest.New()
	b.SetHTML(`<html><body><img src="https://image.msscdn.net/banner.jpg"></body></html>`)

	assets, err := newExtractor(b, 1000, nil).Extract(context.Background())
	assert.Nil(t, assets)
	assert.True(t, errs.IsType(err, errs.ErrorTypeExtractionEmpty))
}

func TestExtractSurvivesScriptFailure(t *testing.T) {
	b := browsertest.New()
	b.SetHTML(orderPage)
	b.OnEvaluate = func(*browsertest.Browser, string) (interface{}, error) {
		return nil, errors.New("execution context was destroyed")
	}

	assets, err := newExtractor(b, 1000, nil).Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, assets, 3)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExtractor(browsertest.New(), 1000, nil).Extract(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
