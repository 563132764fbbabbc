// Package pairing mirrors the current pairing code into a file so that
// other processes serving the status endpoint can show it.
package pairing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sales-collector/internal/ports"
)

// FileCache stores the pairing code in a single file.
type FileCache struct {
	path string
	mu   sync.Mutex
}

var _ ports.PairingCache = (*FileCache)(nil)

// NewFileCache creates a cache at path. The directory is created on first save.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Save replaces the cached code atomically.
func (c *FileCache) Save(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create pairing cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".qrcode-*")
	if err != nil {
		return fmt.Errorf("create pairing cache: %w", err)
	}
	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write pairing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close pairing cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace pairing cache: %w", err)
	}
	return nil
}

// Load returns the cached code, or "" when none is cached.
func (c *FileCache) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read pairing cache: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Clear removes the cached code.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove pairing cache: %w", err)
	}
	return nil
}
