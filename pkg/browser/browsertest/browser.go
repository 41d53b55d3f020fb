// Package browsertest provides a scriptable in-memory browser.Browser.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"musinsacrawler/pkg/browser"
)

// Browser is a fake browser whose DOM is a map from selector to elements.
// Hooks let tests react to navigation, clicks and scripts. Hooks run
// without the lock held, so they may call the setter methods.
type Browser struct {
	mu       sync.Mutex
	url      string
	html     string
	elements map[string][]browser.Element
	queryErr map[string]error

	OnNavigate func(b *Browser, url string) error
	OnClick    func(b *Browser, el browser.Element) error
	OnEnter    func(b *Browser, el browser.Element) error
	OnEvaluate func(b *Browser, script string) (interface{}, error)

	// recorded calls
	Navigations []string
	Typed       []Typed
	Clicks      []browser.Element
	Scripts     []string
	Closed      int
}

// Typed is one Type call
type Typed struct {
	Selector string
	Text     string
}

// New creates an empty fake browser
func New() *Browser {
	return &Browser{
		elements: make(map[string][]browser.Element),
		queryErr: make(map[string]error),
	}
}

// SetURL changes the current location
func (b *Browser) SetURL(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.url = url
}

// SetHTML sets the document returned by HTML
func (b *Browser) SetHTML(html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.html = html
}

// SetElements replaces everything matching selector
func (b *Browser) SetElements(selector string, els ...browser.Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.elements[selector] = els
}

// SetQueryError makes Query fail for selector
func (b *Browser) SetQueryError(selector string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queryErr[selector] = err
}

// Button is a visible, enabled element with the given text
func Button(text string) browser.Element {
	return browser.Element{Tag: "button", Text: text, Visible: true, Enabled: true}
}

// Input is a visible, enabled input element
func Input() browser.Element {
	return browser.Element{Tag: "input", Visible: true, Enabled: true}
}

// Image is an img element with the given attributes
func Image(attrs map[string]string) browser.Element {
	return browser.Element{Tag: "img", Attrs: attrs, Visible: true, Enabled: true}
}

// Navigate implements browser.Browser
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.Navigations = append(b.Navigations, url)
	b.url = url
	hook := b.OnNavigate
	b.mu.Unlock()

	if hook != nil {
		return hook(b, url)
	}
	return nil
}

// WaitReady implements browser.Browser
func (b *Browser) WaitReady(ctx context.Context, selector string, _ time.Duration) error {
	els, err := b.Query(ctx, selector)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return fmt.Errorf("wait for %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

// Query implements browser.Browser
func (b *Browser) Query(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.queryErr[selector]; err != nil {
		return nil, err
	}
	src := b.elements[selector]
	out := make([]browser.Element, len(src))
	for i, el := range src {
		el.Selector = selector
		el.Index = i
		out[i] = el
	}
	return out, nil
}

// Type implements browser.Browser
func (b *Browser) Type(ctx context.Context, el browser.Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Typed = append(b.Typed, Typed{Selector: el.Selector, Text: text})
	return nil
}

// Click implements browser.Browser
func (b *Browser) Click(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.Clicks = append(b.Clicks, el)
	hook := b.OnClick
	b.mu.Unlock()

	if hook != nil {
		return hook(b, el)
	}
	return nil
}

// JSClick implements browser.Browser. Script clicks share the OnClick hook.
func (b *Browser) JSClick(ctx context.Context, el browser.Element) error {
	return b.Click(ctx, el)
}

// PressEnter implements browser.Browser
func (b *Browser) PressEnter(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	hook := b.OnEnter
	b.mu.Unlock()

	if hook != nil {
		return hook(b, el)
	}
	return nil
}

// Evaluate implements browser.Browser. The OnEvaluate result is passed
// through JSON into out, the way a real browser result would be.
func (b *Browser) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.Scripts = append(b.Scripts, script)
	hook := b.OnEvaluate
	b.mu.Unlock()

	if hook == nil {
		return nil
	}
	res, err := hook(b, script)
	if err != nil || out == nil {
		return err
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Location implements browser.Browser
func (b *Browser) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url, nil
}

// HTML implements browser.Browser
func (b *Browser) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.html, nil
}

// Close implements browser.Browser
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed++
	return nil
}

// TypedInto returns the text typed into selector, if any
func (b *Browser) TypedInto(selector string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.Typed) - 1; i >= 0; i-- {
		if b.Typed[i].Selector == selector {
			return b.Typed[i].Text, true
		}
	}
	return "", false
}

var _ browser.Browser = (*Browser)(nil)
