// Package checkpoint remembers the last crawl so `crawl --resume` can write
// into the same output directory and skip images that are already there.
//
// The checkpoint lives in the platform data directory:
//   - Linux: $XDG_DATA_HOME/musinsa-crawler/checkpoints/ or ~/.local/share/musinsa-crawler/checkpoints/
//   - macOS: ~/Library/Application Support/musinsa-crawler/checkpoints/
//   - Windows: %APPDATA%/musinsa-crawler/checkpoints/
//
// It is saved atomically and never contains account details.
package checkpoint
