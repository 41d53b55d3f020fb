package extractor

// Asset is one discovered image reference
type Asset struct {
	RawURL        string `json:"raw_url"`
	NormalizedURL string `json:"normalized_url"`
	// Source names the selector or pass that found the asset first
	Source string `json:"source"`
}

// Set deduplicates assets by normalized URL and keeps discovery order
type Set struct {
	assets []Asset
	seen   map[string]struct{}
}

// NewSet creates an empty Set
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add inserts a unless an asset with the same normalized URL is present.
// It reports whether a was new.
func (s *Set) Add(a Asset) bool {
	if _, ok := s.seen[a.NormalizedURL]; ok {
		return false
	}
	s.seen[a.NormalizedURL] = struct{}{}
	s.assets = append(s.assets, a)
	return true
}

// Len returns the number of distinct assets
func (s *Set) Len() int {
	return len(s.assets)
}

// Assets returns the assets in discovery order, at most limit of them.
// A non-positive limit returns all.
func (s *Set) Assets(limit int) []Asset {
	n := len(s.assets)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Asset, n)
	copy(out, s.assets[:n])
	return out
}
