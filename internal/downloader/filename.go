package downloader

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minProductIDLen = 6
	minBrandLen     = 3
	maxBrandLen     = 20
)

var (
	reservedChars  = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedUnders = regexp.MustCompile(`_{2,}`)
)

// Filename derives the local file name for the index-th asset (1-based).
// A numeric path segment of six or more digits is taken as the product id
// and the last other segment longer than two characters as the brand.
func Filename(rawURL string, index int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("musinsa_image_%03d.jpg", index)
	}

	original := path.Base(u.Path)
	if original == "/" || original == "." {
		original = ""
	}

	var brand, productID string
	for _, part := range strings.Split(u.Path, "/") {
		switch {
		case isDigits(part) && len(part) >= minProductIDLen:
			productID = part
		case part != "" && !isDigits(part) && utf8.RuneCountInString(part) >= minBrandLen:
			brand = truncateRunes(part, maxBrandLen)
		}
	}

	ext := ""
	if strings.Contains(original, ".") {
		ext = path.Ext(original)
	} else {
		lower := strings.ToLower(rawURL)
		switch {
		case strings.Contains(lower, "webp"):
			ext = ".webp"
		case strings.Contains(lower, "png"):
			ext = ".png"
		default:
			ext = ".jpg"
		}
	}

	var name string
	switch {
	case productID != "" && brand != "":
		name = fmt.Sprintf("musinsa_%s_%s_%03d%s", brand, productID, index, ext)
	case productID != "":
		name = fmt.Sprintf("musinsa_product_%s_%03d%s", productID, index, ext)
	case original != "":
		name = fmt.Sprintf("musinsa_%03d_%s", index, original)
	default:
		name = fmt.Sprintf("musinsa_image_%03d%s", index, ext)
	}

	name = reservedChars.ReplaceAllString(name, "_")
	return repeatedUnders.ReplaceAllString(name, "_")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
