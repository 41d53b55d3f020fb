package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"musinsacrawler/pkg/config"
	"musinsacrawler/pkg/storage"
)

// FileName is the manifest written into the output directory
const FileName = "download_info.json"

// Status is the result of processing one asset
type Status string

const (
	StatusSuccess         Status = "success"
	StatusSkipped         Status = "skipped"
	StatusNetworkFailure  Status = "network_failure"
	StatusNonImageContent Status = "non_image_content"
	StatusLowQuality      Status = "low_quality"
)

// Statuses lists every Status in reporting order
var Statuses = []Status{StatusSuccess, StatusSkipped, StatusNetworkFailure, StatusNonImageContent, StatusLowQuality}

// Failed reports whether s counts as a failure in the run summary
func (s Status) Failed() bool {
	return s != StatusSuccess && s != StatusSkipped
}

// DownloadOutcome records what happened to one asset
type DownloadOutcome struct {
	Index       int       `json:"index"`
	Filename    string    `json:"filename"`
	SourceURL   string    `json:"url"`
	ByteSize    int64     `json:"size"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AspectRatio returns the aspect ratio as a string
func (o DownloadOutcome) AspectRatio() string {
	if o.Height == 0 {
		return "unknown"
	}

	ratio := float64(o.Width) / float64(o.Height)

	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}

// Manifest is the record of one run's downloads
type Manifest struct {
	mu sync.Mutex

	RunID          string            `json:"run_id"`
	DownloadDate   time.Time         `json:"download_date"`
	TotalImages    int               `json:"total_images"`
	TotalSizeBytes int64             `json:"total_size_bytes"`
	Counts         map[Status]int    `json:"counts"`
	ConfigUsed     *config.Config    `json:"config_used"`
	Images         []DownloadOutcome `json:"images"`
}

// NewManifest starts an empty manifest holding a copy of cfg
func NewManifest(runID string, cfg *config.Config) *Manifest {
	var snapshot *config.Config
	if cfg != nil {
		c := *cfg
		snapshot = &c
	}
	return &Manifest{
		RunID:      runID,
		ConfigUsed: snapshot,
		Counts:     make(map[Status]int),
		Images:     []DownloadOutcome{},
	}
}

// Append adds an outcome. Outcomes are never modified afterwards.
func (m *Manifest) Append(o DownloadOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Images = append(m.Images, o)
}

// Outcomes returns a copy of the outcomes so far
func (m *Manifest) Outcomes() []DownloadOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DownloadOutcome, len(m.Images))
	copy(out, m.Images)
	return out
}

// Finalize recomputes the totals from the outcomes. Only successful
// downloads count towards total_size_bytes.
func (m *Manifest) Finalize(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DownloadDate = at
	m.TotalImages = len(m.Images)
	m.TotalSizeBytes = 0
	m.Counts = make(map[Status]int, len(Statuses))
	for _, o := range m.Images {
		m.Counts[o.Status]++
		if o.Status == StatusSuccess {
			m.TotalSizeBytes += o.ByteSize
		}
	}
}

// Count returns the number of outcomes with status s as of the last Finalize
func (m *Manifest) Count(s Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[s]
}

// Save finalizes the manifest and writes it to dir/download_info.json
func (m *Manifest) Save(dir string) (string, error) {
	m.Finalize(time.Now())

	m.mu.Lock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := storage.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// Load reads a manifest written by Save
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
