package browser

import (
	"context"
	"time"
)

// Browser is the automation surface the crawl pipeline drives. Every call
// blocks until the browser has answered or ctx is done.
type Browser interface {
	// Navigate loads url and waits for the load event
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until selector matches a node or timeout elapses
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// Query returns every element currently matching selector, in document order.
	// No match is not an error.
	Query(ctx context.Context, selector string) ([]Element, error)
	// Type clears el and sends text to it
	Type(ctx context.Context, el Element, text string) error
	// Click performs a native mouse click on el
	Click(ctx context.Context, el Element) error
	// JSClick calls el.click() from script, bypassing overlays
	JSClick(ctx context.Context, el Element) error
	// PressEnter sends the Enter key to el
	PressEnter(ctx context.Context, el Element) error
	// Evaluate runs script and decodes its JSON result into out. A nil out
	// discards the result.
	Evaluate(ctx context.Context, script string, out interface{}) error
	// Location returns the current page URL
	Location(ctx context.Context) (string, error)
	// HTML returns the serialized document
	HTML(ctx context.Context) (string, error)
	// Close releases the browser and its process
	Close() error
}

// Element is a snapshot of one DOM element taken by Query. Selector and
// Index identify the node again for follow-up actions.
type Element struct {
	Selector string
	Index    int
	Tag      string
	Text     string
	Attrs    map[string]string
	Visible  bool
	Enabled  bool
}

// Attr returns the named attribute, or "" when absent
func (e Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}
