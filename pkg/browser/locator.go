package browser

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultPoll is how often WaitFor re-runs its locators
const DefaultPoll = 250 * time.Millisecond

// Locator finds elements by CSS selector, optionally narrowed by the
// element's visible text.
type Locator struct {
	CSS  string
	Text string
	// Exact requires the trimmed text to equal Text instead of containing it
	Exact bool
}

// CSS builds a plain selector locator
func CSS(selector string) Locator {
	return Locator{CSS: selector}
}

// WithText builds a locator matching selector whose text contains text
func WithText(selector, text string) Locator {
	return Locator{CSS: selector, Text: text}
}

func (l Locator) String() string {
	if l.Text == "" {
		return l.CSS
	}
	return fmt.Sprintf("%s[text=%q]", l.CSS, l.Text)
}

// Matches reports whether el satisfies the text constraint
func (l Locator) Matches(el Element) bool {
	if l.Text == "" {
		return true
	}
	text := strings.TrimSpace(el.Text)
	if l.Exact {
		return text == l.Text
	}
	return strings.Contains(text, l.Text)
}

// Filter accepts or rejects a located element
type Filter func(Element) bool

// Visible accepts displayed elements
func Visible(el Element) bool {
	return el.Visible
}

// Interactable accepts displayed, enabled elements
func Interactable(el Element) bool {
	return el.Visible && el.Enabled
}

// FindFirst tries locators in order and returns the first element that
// matches and passes keep. A nil keep accepts everything. Query errors for
// a single locator are skipped so one bad selector cannot hide the rest.
func FindFirst(ctx context.Context, b Browser, locators []Locator, keep Filter) (Element, bool, error) {
	for _, loc := range locators {
		if err := ctx.Err(); err != nil {
			return Element{}, false, err
		}

		found, err := b.Query(ctx, loc.CSS)
		if err != nil {
			continue
		}
		for _, el := range found {
			if !loc.Matches(el) {
				continue
			}
			if keep != nil && !keep(el) {
				continue
			}
			return el, true, nil
		}
	}
	return Element{}, false, ctx.Err()
}

// WaitFor polls FindFirst until something matches or timeout elapses.
// An expired wait is reported as not found, not as an error; only
// cancellation of ctx returns one.
func WaitFor(ctx context.Context, b Browser, locators []Locator, keep Filter, timeout, poll time.Duration) (Element, bool, error) {
	if poll <= 0 {
		poll = DefaultPoll
	}
	deadline := time.Now().Add(timeout)

	for {
		el, ok, err := FindFirst(ctx, b, locators, keep)
		if err != nil || ok {
			return el, ok, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Element{}, false, nil
		}
		wait := poll
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Element{}, false, ctx.Err()
		case <-timer.C:
		}
	}
}
