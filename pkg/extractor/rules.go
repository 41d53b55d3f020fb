package extractor

import (
	"net/url"
	"strings"
)

// AssetDomains are the hosts product images are served from
var AssetDomains = []string{"msscdn.net", "musinsa.com"}

var (
	deniedKeywords = []string{"logo", "banner", "ad", "icon", "sprite"}
	imageFormats   = []string{".jpg", ".jpeg", ".png", ".webp"}
	iconSizes      = []string{"16x16", "32x32", "50x50"}
)

// Rule rewrites a thumbnail token into its full-resolution form
type Rule struct {
	From string
	To   string
}

// Rules are tried in order; only the first match is applied
var Rules = []Rule{
	{"/thumb/", "/large/"},
	{"/small/", "/origin/"},
	{"_thumb", "_large"},
	{"_small", "_origin"},
	{"/150/", "/500/"},
	{"/300/", "/800/"},
	{"_150.", "_500."},
	{"_300.", "_800."},
}

// absolute gives protocol-relative references an https scheme
func absolute(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

// IsValid reports whether raw looks like a product image on an asset host
func IsValid(raw string) bool {
	raw = absolute(raw)
	if raw == "" {
		return false
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:") {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil || !allowedHost(u.Hostname()) {
		return false
	}
	if containsAny(lower, deniedKeywords) {
		return false
	}
	if !containsAny(lower, imageFormats) {
		return false
	}
	return !containsAny(lower, iconSizes)
}

func allowedHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range AssetDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Upgrade applies the first matching Rule to every occurrence of its token
func Upgrade(raw string) string {
	for _, r := range Rules {
		if strings.Contains(raw, r.From) {
			return strings.ReplaceAll(raw, r.From, r.To)
		}
	}
	return raw
}

// Normalize returns the dedup key and download URL for raw: scheme added,
// resolution upgraded, query and fragment dropped.
func Normalize(raw string) string {
	upgraded := Upgrade(absolute(raw))
	u, err := url.Parse(upgraded)
	if err != nil {
		return upgraded
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
