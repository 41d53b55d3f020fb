// Package extractor finds product image URLs in the expanded order pages.
//
// Two passes feed one ordered set: the Selectors run over a goquery
// snapshot of the rendered document, then a script asks the live page for
// every img on an asset host. Each candidate must pass IsValid, is
// upgraded by the first matching Rule and is keyed by its Normalize form,
// so the same image reached through different selectors or query strings
// is kept once, in the order it was first seen.
package extractor
