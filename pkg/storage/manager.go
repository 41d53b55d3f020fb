package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunDirLayout is the timestamp suffix appended to the base directory
const RunDirLayout = "20060102_150405"

// RunDirName returns the per-run output directory for base started at t
func RunDirName(base string, t time.Time) string {
	return base + "_" + t.Format(RunDirLayout)
}

// Manager owns one run's output directory
type Manager struct {
	outputDir string
	files     map[string]int64
	mu        sync.RWMutex
}

// NewManager creates outputDir if needed and indexes the files already in it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		files:     make(map[string]int64),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records the size of every image left by an earlier run
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".tmp") || filepath.Ext(name) == ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		m.files[name] = info.Size()
	}

	return nil
}

// Path returns the destination path of filename
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.outputDir, filename)
}

// ExistingSize reports the size of filename if it is already on disk
func (m *Manager) ExistingSize(filename string) (int64, bool) {
	info, err := os.Stat(m.Path(filename))
	if err != nil || info.IsDir() {
		return 0, false
	}

	m.mu.Lock()
	m.files[filename] = info.Size()
	m.mu.Unlock()

	return info.Size(), true
}

// Save streams r into filename and returns the number of bytes written.
// The file only appears under its final name once fully written.
func (m *Manager) Save(r io.Reader, filename string) (int64, error) {
	target := m.Path(filename)
	tempFile := target + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to save image data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.files[filename] = n
	m.mu.Unlock()

	return n, nil
}

// Remove deletes filename
func (m *Manager) Remove(filename string) error {
	if err := os.Remove(m.Path(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", filename, err)
	}

	m.mu.Lock()
	delete(m.files, filename)
	m.mu.Unlock()

	return nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// FileCount returns the number of images currently in the directory
func (m *Manager) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// WriteFileAtomic writes data to path through a temporary file and rename
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, perm); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
