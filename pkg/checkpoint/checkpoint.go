package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/storage"
)

const (
	appDirName = "musinsa-crawler"
	fileName   = "last_run.checkpoint.json"
	version    = 1
)

// Checkpoint points at the most recent run so the next one can resume
// into the same output directory
type Checkpoint struct {
	RunID           string    `json:"run_id"`
	OutputDir       string    `json:"output_dir"`
	Outcome         string    `json:"outcome,omitempty"`
	TotalAssets     int       `json:"total_assets"`
	TotalDownloaded int       `json:"total_downloaded"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Version         int       `json:"version"`
}

// Manager reads and writes the single last-run checkpoint
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager keeps the checkpoint under the platform data directory
func NewManager(log logger.Logger) (*Manager, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(filepath.Join(dir, "checkpoints", fileName), log)
}

// NewManagerAt keeps the checkpoint at path
func NewManagerAt(path string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return &Manager{path: path, logger: logger.OrGlobal(log)}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.path
}

// Create records the start of a run writing into outputDir
func (m *Manager) Create(runID, outputDir string) (*Checkpoint, error) {
	if abs, err := filepath.Abs(outputDir); err == nil {
		outputDir = abs
	}

	now := time.Now()
	cp := &Checkpoint{
		RunID:     runID,
		OutputDir: outputDir,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   version,
	}
	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint created", map[string]interface{}{
		"run_id": runID,
		"path":   m.path,
	})
	return cp, nil
}

// Load returns nil, nil when no run has been recorded yet
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}
	return &cp, nil
}

// Save stamps UpdatedAt and replaces the file atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return storage.WriteFileAtomic(m.path, data, 0644)
}

// RecordResult stores how the run ended
func (m *Manager) RecordResult(cp *Checkpoint, outcome string, totalAssets, downloaded int) error {
	cp.Outcome = outcome
	cp.TotalAssets = totalAssets
	cp.TotalDownloaded = downloaded
	return m.Save(cp)
}

// ResumeDir returns the last run's output directory if it still exists
func (m *Manager) ResumeDir() (string, bool, error) {
	cp, err := m.Load()
	if err != nil || cp == nil {
		return "", false, err
	}
	if info, err := os.Stat(cp.OutputDir); err != nil || !info.IsDir() {
		return "", false, nil
	}

	m.logger.DebugWithFields("Resuming run directory", map[string]interface{}{
		"run_id":     cp.RunID,
		"output_dir": cp.OutputDir,
		"outcome":    cp.Outcome,
	})
	return cp.OutputDir, true, nil
}

// Delete removes the checkpoint. A missing file is not an error.
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists reports whether a checkpoint file is present
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// dataDir follows XDG on linux and the platform convention elsewhere
func dataDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appDirName), nil
	}

	// UserConfigDir is Application Support on darwin and %AppData% on windows
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}
