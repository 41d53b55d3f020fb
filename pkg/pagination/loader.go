package pagination

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"musinsacrawler/pkg/browser"
	"musinsacrawler/pkg/config"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/retry"
	"musinsacrawler/pkg/runlog"
)

const (
	heightScript = `document.body.scrollHeight`
	scrollScript = `window.scrollTo(0, document.body.scrollHeight)`
)

// LoadMoreLocators find an in-page "load more" control
var LoadMoreLocators = []browser.Locator{
	browser.WithText("button", "더보기"),
	browser.WithText("a", "더보기"),
	browser.CSS(".more-btn"),
	browser.CSS("[data-testid='more']"),
	browser.CSS(".load-more"),
}

// nextPageLocators find a numbered link to page n
func nextPageLocators(n int) []browser.Locator {
	num := strconv.Itoa(n)
	return []browser.Locator{
		browser.CSS(fmt.Sprintf("a[href*='page=%s']", num)),
		{CSS: ".pagination a", Text: num, Exact: true},
	}
}

// Timings are the settle waits of the traversal
type Timings struct {
	// ScrollSettle follows every scroll to the bottom
	ScrollSettle time.Duration
	// AdvanceSettle follows a load-more click or page link
	AdvanceSettle time.Duration
}

// DefaultTimings returns the waits used against the live site
func DefaultTimings() Timings {
	return Timings{
		ScrollSettle:  2 * time.Second,
		AdvanceSettle: 3 * time.Second,
	}
}

// traversal is the per-call page state, dropped when ExpandAll returns
type traversal struct {
	page       int
	lastHeight int64
	loaded     int
}

// Loader reveals every order page before extraction
type Loader struct {
	browser    browser.Browser
	maxScrolls int
	log        logger.Logger
	recorder   runlog.Sink
	timings    Timings
	sleep      func(context.Context, time.Duration) error
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(ld *Loader) { ld.log = l }
}

// WithRecorder sets the run log sink
func WithRecorder(s runlog.Sink) Option {
	return func(ld *Loader) { ld.recorder = s }
}

// WithTimings overrides the settle waits
func WithTimings(t Timings) Option {
	return func(ld *Loader) { ld.timings = t }
}

// WithSleep replaces the settle waits
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(ld *Loader) { ld.sleep = sleep }
}

// NewLoader creates a Loader driving b
func NewLoader(b browser.Browser, cfg *config.Config, opts ...Option) *Loader {
	ld := &Loader{
		browser:    b,
		maxScrolls: cfg.MaxScrollIterations,
		timings:    DefaultTimings(),
		sleep:      retry.Wait,
	}
	for _, opt := range opts {
		opt(ld)
	}
	ld.log = logger.OrGlobal(ld.log).WithField("component", "pagination")
	ld.recorder = runlog.OrDiscard(ld.recorder)
	return ld
}

// ExpandAll scrolls the current page until its height settles, then
// advances through load-more controls or numbered links until neither is
// left or maxPages pages have been expanded. It never fails: an error on
// one page ends the traversal and the pages loaded so far are kept.
func (ld *Loader) ExpandAll(ctx context.Context, maxPages int) int {
	st := &traversal{}
	var stopReason string

	for st.page = 1; st.page <= maxPages; st.page++ {
		ld.log.DebugWithFields("Expanding page", map[string]interface{}{"page": st.page})

		if err := ld.scrollToBottom(ctx, st); err != nil {
			stopReason = ld.stopOnError(st, err)
			break
		}
		st.loaded = st.page

		if st.page == maxPages {
			stopReason = "page cap reached"
			break
		}

		advanced, err := ld.advance(ctx, st.page)
		if err != nil {
			stopReason = ld.stopOnError(st, err)
			break
		}
		if !advanced {
			stopReason = "no more pages"
			break
		}
	}

	ld.recorder.Record(runlog.EventPagination, fmt.Sprintf("%d pages loaded", st.loaded), map[string]interface{}{
		"pages_loaded": st.loaded,
		"max_pages":    maxPages,
		"stop_reason":  stopReason,
	})
	ld.log.InfoWithFields("Pagination finished", map[string]interface{}{
		"pages_loaded": st.loaded,
		"stop_reason":  stopReason,
	})
	return st.loaded
}

func (ld *Loader) stopOnError(st *traversal, err error) string {
	ld.log.WithError(err).WarnWithFields("Page load failed, keeping content gathered so far", map[string]interface{}{
		"page": st.page,
	})
	return "error: " + err.Error()
}

// scrollToBottom scrolls until two consecutive height readings match or
// maxScrolls is reached.
func (ld *Loader) scrollToBottom(ctx context.Context, st *traversal) error {
	height, err := ld.height(ctx)
	if err != nil {
		return err
	}
	st.lastHeight = height

	for i := 0; ld.maxScrolls <= 0 || i < ld.maxScrolls; i++ {
		if err := ld.browser.Evaluate(ctx, scrollScript, nil); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := ld.sleep(ctx, ld.timings.ScrollSettle); err != nil {
			return err
		}

		height, err := ld.height(ctx)
		if err != nil {
			return err
		}
		if height == st.lastHeight {
			return nil
		}
		st.lastHeight = height
	}

	ld.log.WarnWithFields("Page height never settled", map[string]interface{}{
		"page":       st.page,
		"iterations": ld.maxScrolls,
	})
	return nil
}

func (ld *Loader) height(ctx context.Context) (int64, error) {
	var h int64
	if err := ld.browser.Evaluate(ctx, heightScript, &h); err != nil {
		return 0, fmt.Errorf("read page height: %w", err)
	}
	return h, nil
}

// advance activates a load-more control, or failing that follows the link
// to page+1. It reports false when neither exists.
func (ld *Loader) advance(ctx context.Context, page int) (bool, error) {
	more, ok, err := browser.FindFirst(ctx, ld.browser, LoadMoreLocators, browser.Interactable)
	if err != nil {
		return false, err
	}
	if ok {
		if err := ld.browser.JSClick(ctx, more); err != nil {
			return false, fmt.Errorf("activate %s: %w", more.Selector, err)
		}
		ld.log.DebugWithFields("Activated load-more control", map[string]interface{}{"selector": more.Selector})
		return true, ld.sleep(ctx, ld.timings.AdvanceSettle)
	}

	link, ok, err := browser.FindFirst(ctx, ld.browser, nextPageLocators(page+1), nil)
	if err != nil || !ok {
		return false, err
	}
	if err := ld.browser.Click(ctx, link); err != nil {
		return false, fmt.Errorf("open page %d: %w", page+1, err)
	}
	ld.log.DebugWithFields("Followed page link", map[string]interface{}{"page": page + 1})
	return true, ld.sleep(ctx, ld.timings.AdvanceSettle)
}
