// Package browser defines the automation surface used by the crawler and a
// chromedp-backed implementation of it.
//
// Markup on the storefront is not stable, so callers describe what they
// look for as an ordered list of Locators and let FindFirst or WaitFor
// try them in turn:
//
//	field, ok, err := browser.WaitFor(ctx, b, []browser.Locator{
//		browser.CSS("input[name='id']"),
//		browser.CSS("#userId"),
//	}, browser.Visible, 10*time.Second, 0)
//
// A WaitFor that runs out of time reports not found rather than an error.
package browser
