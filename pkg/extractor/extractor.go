package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"musinsacrawler/pkg/browser"
	"musinsacrawler/pkg/config"
	errs "musinsacrawler/pkg/errors"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/runlog"
)

// Selectors are independent strategies for locating product images
var Selectors = []string{
	// asset host
	"img[src*='image.msscdn.net']",
	"img[src*='image.musinsa.com']",
	"img[data-src*='image.msscdn.net']",
	// component classes
	".product-image img",
	".item-image img",
	".order-item img",
	".product-thumb img",
	".goods-thumb img",
	// lazy-load markers
	"img[data-original*='msscdn']",
	"img[data-lazy*='msscdn']",
	// alt text
	"img[alt*='상품']",
	"img[alt*='product']",
	"img[alt*='브랜드']",
}

// AttrPriority lists where an element keeps its image URL
var AttrPriority = []string{"src", "data-src", "data-original", "data-lazy"}

// SourceScript names assets found by scanImagesScript
const SourceScript = "script"

const scanImagesScript = `(() => {
	const images = [];
	document.querySelectorAll('img').forEach(img => {
		const src = img.src || img.dataset.src || img.dataset.original;
		if (src && (src.includes('msscdn.net') || src.includes('musinsa.com'))) {
			images.push(src);
		}
	});
	return images;
})()`

// Extractor turns the expanded order pages into a deduplicated asset list
type Extractor struct {
	browser   browser.Browser
	maxImages int
	log       logger.Logger
	recorder  runlog.Sink
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// WithRecorder sets the run log sink
func WithRecorder(s runlog.Sink) Option {
	return func(e *Extractor) { e.recorder = s }
}

// New creates an Extractor reading from b
func New(b browser.Browser, cfg *config.Config, opts ...Option) *Extractor {
	e := &Extractor{
		browser:   b,
		maxImages: cfg.MaxImages,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logger.OrGlobal(e.log).WithField("component", "extractor")
	e.recorder = runlog.OrDiscard(e.recorder)
	return e
}

// Extract collects valid image URLs from the rendered page, upgrades them to
// full resolution and deduplicates them in discovery order, keeping at most
// max_images. No valid asset yields an extraction_empty error.
func (e *Extractor) Extract(ctx context.Context) ([]Asset, error) {
	set := NewSet()
	add := func(raw, source string) {
		if !IsValid(raw) {
			return
		}
		set.Add(Asset{
			RawURL:        raw,
			NormalizedURL: Normalize(raw),
			Source:        source,
		})
	}

	if err := e.selectorPass(ctx, add); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.log.WithError(err).Warn("Selector pass failed")
	}
	fromSelectors := set.Len()

	if err := e.scriptPass(ctx, add); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.log.WithError(err).Warn("Script pass failed")
	}

	assets := set.Assets(e.maxImages)
	fields := map[string]interface{}{
		"unique":         set.Len(),
		"from_selectors": fromSelectors,
		"from_script":    set.Len() - fromSelectors,
		"kept":           len(assets),
	}
	e.recorder.Record(runlog.EventExtraction, fmt.Sprintf("%d image URLs extracted", len(assets)), fields)

	if len(assets) == 0 {
		e.log.Warn("No valid image assets found")
		return nil, errs.ExtractionEmpty()
	}
	if set.Len() > len(assets) {
		e.log.InfoWithFields("Asset list truncated to max_images", map[string]interface{}{
			"found":      set.Len(),
			"max_images": e.maxImages,
		})
	}
	e.log.InfoWithFields("Extraction finished", fields)
	return assets, nil
}

// selectorPass runs Selectors over a snapshot of the document. When the
// snapshot cannot be taken it queries the live page instead.
func (e *Extractor) selectorPass(ctx context.Context, add func(raw, source string)) error {
	html, err := e.browser.HTML(ctx)
	if err == nil {
		doc, perr := goquery.NewDocumentFromReader(strings.NewReader(html))
		if perr == nil {
			for _, sel := range Selectors {
				matched := doc.Find(sel)
				matched.Each(func(_ int, s *goquery.Selection) {
					if raw, ok := firstAttr(func(name string) (string, bool) { return s.Attr(name) }); ok {
						add(raw, sel)
					}
				})
				e.log.DebugWithFields("Selector matched", map[string]interface{}{
					"selector": sel,
					"count":    matched.Length(),
				})
			}
			return nil
		}
		err = perr
	}

	e.log.WithError(err).Debug("Document snapshot unavailable, querying live page")
	var lastErr error
	for _, sel := range Selectors {
		els, qerr := e.browser.Query(ctx, sel)
		if qerr != nil {
			lastErr = qerr
			continue
		}
		for _, el := range els {
			if raw, ok := firstAttr(func(name string) (string, bool) {
				v, ok := el.Attrs[name]
				return v, ok
			}); ok {
				add(raw, sel)
			}
		}
	}
	return lastErr
}

func firstAttr(get func(string) (string, bool)) (string, bool) {
	for _, name := range AttrPriority {
		if v, ok := get(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// scriptPass asks the page for every img pointing at an asset host
func (e *Extractor) scriptPass(ctx context.Context, add func(raw, source string)) error {
	var urls []string
	if err := e.browser.Evaluate(ctx, scanImagesScript, &urls); err != nil {
		return err
	}
	for _, u := range urls {
		add(u, SourceScript)
	}
	return nil
}
