package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"musinsacrawler/pkg/config"
	"musinsacrawler/pkg/logger"
)

// hideWebdriver runs before any page script on every new document
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// queryScript snapshots every match of a selector. %s is a JSON string.
const queryScript = `(() => {
	return Array.from(document.querySelectorAll(%s)).map((el, i) => {
		const attrs = {};
		for (const a of el.attributes) { attrs[a.name] = a.value; }
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return {
			index: i,
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.textContent || '').trim(),
			attrs: attrs,
			visible: rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none',
			enabled: !el.disabled
		};
	});
})()`

const jsClickScript = `(() => {
	const el = document.querySelectorAll(%s)[%d];
	if (!el) { return false; }
	el.click();
	return true;
})()`

// Options configures the Chrome instance
type Options struct {
	Headless      bool
	UserAgent     string
	ExecPath      string
	WindowWidth   int
	WindowHeight  int
	DisableImages bool
	// PageLoadTimeout bounds Navigate
	PageLoadTimeout time.Duration
	// ActionTimeout bounds element actions such as Type and Click
	ActionTimeout time.Duration
	Logger        logger.Logger
}

// OptionsFromConfig derives browser options from a run configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Headless:        cfg.HeadlessMode,
		UserAgent:       cfg.Browser.UserAgent,
		ExecPath:        cfg.Browser.ExecPath,
		WindowWidth:     cfg.Browser.WindowWidth,
		WindowHeight:    cfg.Browser.WindowHeight,
		DisableImages:   cfg.Browser.DisableImages,
		PageLoadTimeout: cfg.PageLoadTimeoutDuration(),
		ActionTimeout:   cfg.ImplicitWaitDuration(),
	}
}

// Chrome drives a local Chrome through the DevTools protocol
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	log         logger.Logger
	closeOnce   sync.Once
}

// NewChrome starts Chrome and prepares a tab with automation fingerprints
// suppressed and JavaScript dialogs auto-accepted.
func NewChrome(opts Options) (*Chrome, error) {
	log := logger.OrGlobal(opts.Logger).WithField("component", "browser")

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		execOpts = append(execOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.DisableImages {
		execOpts = append(execOpts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	c := &Chrome{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		log:         log,
	}

	// first Run launches the browser
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	})); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			log.WarnWithFields("Accepting page dialog", map[string]interface{}{
				"type":    string(e.Type),
				"message": e.Message,
			})
			go chromedp.Run(ctx, page.HandleJavaScriptDialog(true))
		}
	})

	log.InfoWithFields("Browser started", map[string]interface{}{
		"headless": opts.Headless,
	})
	return c, nil
}

// scoped derives a context from the browser tab that also ends when the
// caller's ctx does. Cancelling it never closes the tab.
func (c *Chrome) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		rctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		rctx, cancel = context.WithTimeout(c.ctx, timeout)
	} else {
		rctx, cancel = context.WithCancel(c.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

// Navigate implements Browser
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	rctx, cancel := c.scoped(ctx, c.opts.PageLoadTimeout)
	defer cancel()

	if err := chromedp.Run(rctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitReady implements Browser
func (c *Chrome) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	rctx, cancel := c.scoped(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(rctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

type elementSnapshot struct {
	Index   int               `json:"index"`
	Tag     string            `json:"tag"`
	Text    string            `json:"text"`
	Attrs   map[string]string `json:"attrs"`
	Visible bool              `json:"visible"`
	Enabled bool              `json:"enabled"`
}

// Query implements Browser
func (c *Chrome) Query(ctx context.Context, selector string) ([]Element, error) {
	var snaps []elementSnapshot
	if err := c.Evaluate(ctx, fmt.Sprintf(queryScript, jsString(selector)), &snaps); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}

	out := make([]Element, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, Element{
			Selector: selector,
			Index:    s.Index,
			Tag:      s.Tag,
			Text:     s.Text,
			Attrs:    s.Attrs,
			Visible:  s.Visible,
			Enabled:  s.Enabled,
		})
	}
	return out, nil
}

// node resolves el back to a DevTools node id
func (c *Chrome) node(ctx context.Context, el Element) ([]cdp.NodeID, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(el.Selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if el.Index >= len(nodes) {
		return nil, fmt.Errorf("element %s #%d is gone", el.Selector, el.Index)
	}
	return []cdp.NodeID{nodes[el.Index].NodeID}, nil
}

func (c *Chrome) onNode(ctx context.Context, el Element, what string, action func(ids []cdp.NodeID) chromedp.Tasks) error {
	rctx, cancel := c.scoped(ctx, c.opts.ActionTimeout)
	defer cancel()

	ids, err := c.node(rctx, el)
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, el.Selector, err)
	}
	if err := chromedp.Run(rctx, action(ids)); err != nil {
		return fmt.Errorf("%s %s: %w", what, el.Selector, err)
	}
	return nil
}

// Type implements Browser
func (c *Chrome) Type(ctx context.Context, el Element, text string) error {
	return c.onNode(ctx, el, "type into", func(ids []cdp.NodeID) chromedp.Tasks {
		return chromedp.Tasks{
			chromedp.Clear(ids, chromedp.ByNodeID),
			chromedp.SendKeys(ids, text, chromedp.ByNodeID),
		}
	})
}

// Click implements Browser
func (c *Chrome) Click(ctx context.Context, el Element) error {
	return c.onNode(ctx, el, "click", func(ids []cdp.NodeID) chromedp.Tasks {
		return chromedp.Tasks{chromedp.Click(ids, chromedp.ByNodeID)}
	})
}

// PressEnter implements Browser
func (c *Chrome) PressEnter(ctx context.Context, el Element) error {
	return c.onNode(ctx, el, "press enter on", func(ids []cdp.NodeID) chromedp.Tasks {
		return chromedp.Tasks{chromedp.SendKeys(ids, kb.Enter, chromedp.ByNodeID)}
	})
}

// JSClick implements Browser
func (c *Chrome) JSClick(ctx context.Context, el Element) error {
	var clicked bool
	if err := c.Evaluate(ctx, fmt.Sprintf(jsClickScript, jsString(el.Selector), el.Index), &clicked); err != nil {
		return fmt.Errorf("script click %s: %w", el.Selector, err)
	}
	if !clicked {
		return fmt.Errorf("script click %s: element #%d is gone", el.Selector, el.Index)
	}
	return nil
}

// Evaluate implements Browser
func (c *Chrome) Evaluate(ctx context.Context, script string, out interface{}) error {
	rctx, cancel := c.scoped(ctx, c.opts.ActionTimeout)
	defer cancel()

	return chromedp.Run(rctx, chromedp.Evaluate(script, out))
}

// Location implements Browser
func (c *Chrome) Location(ctx context.Context) (string, error) {
	rctx, cancel := c.scoped(ctx, c.opts.ActionTimeout)
	defer cancel()

	var url string
	if err := chromedp.Run(rctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// HTML implements Browser
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	rctx, cancel := c.scoped(ctx, c.opts.ActionTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(rctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close implements Browser. It is safe to call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.allocCancel()
		c.log.Debug("Browser closed")
	})
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
