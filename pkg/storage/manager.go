package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Manager owns the target folder and writes numbered image files into it
type Manager struct {
	outputDir string
	created   bool

	mu      sync.Mutex
	written []string
}

// NewManager creates outputDir if it is missing. An existing directory is
// fine; an existing regular file with that name is not.
func NewManager(outputDir string) (*Manager, error) {
	created := false
	info, err := os.Stat(outputDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		created = true
	case err != nil:
		return nil, fmt.Errorf("failed to stat output directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("output path %s is not a directory", outputDir)
	}

	return &Manager{outputDir: outputDir, created: created}, nil
}

// FileName returns image_NNN plus ext for a 1-based index
func FileName(index int, ext string) string {
	return fmt.Sprintf("image_%03d%s", index, ext)
}

// Path returns the full path FileName(index, ext) would be written to
func (m *Manager) Path(index int, ext string) string {
	return filepath.Join(m.outputDir, FileName(index, ext))
}

// SaveImage copies r into image_NNN<ext>. The data goes to a temp file
// first and is renamed into place, so a failed write never leaves a
// partial image behind. It returns the final path and the bytes written.
func (m *Manager) SaveImage(r io.Reader, index int, ext string) (string, int64, error) {
	filename := m.Path(index, ext)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to save image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.written = append(m.written, filename)
	m.mu.Unlock()

	return filename, n, nil
}

// WriteFile atomically writes data under name in the output directory
func (m *Manager) WriteFile(name string, data []byte) (string, error) {
	filename := filepath.Join(m.outputDir, name)
	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return filename, nil
}

// Created reports whether NewManager had to create the directory
func (m *Manager) Created() bool {
	return m.created
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetSavedCount returns the number of images written by this manager
func (m *Manager) GetSavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.written)
}
