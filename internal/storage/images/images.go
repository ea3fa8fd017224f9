// Package images stores downloaded product pictures on the local filesystem.
package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store writes image files under a base directory.
type Store struct {
	baseDir string
}

// New creates the base directory if needed and verifies it is writable.
func New(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("images: base directory is required")
	}

	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("images: create %s: %w", baseDir, mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("images: stat %s: %w", baseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("images: %s is not a directory", baseDir)
	}

	probe := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("images: %s is not writable: %w", baseDir, err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("images: clean up probe: %w", err)
	}

	return &Store{baseDir: baseDir}, nil
}

// Put writes data to name inside the base directory, replacing any existing
// file, and returns the stored path.
func (s *Store) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("images: name is required")
	}

	full := filepath.Clean(filepath.Join(s.baseDir, name))
	if !strings.HasPrefix(full, filepath.Clean(s.baseDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("images: path traversal detected in %q", name)
	}

	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("images: write %s: %w", full, err)
	}
	return full, nil
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.baseDir
}
