package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrOutsideTempDir is returned for paths that do not live under the
	// storage root. Job records carry paths, so every read and removal is
	// confined to the root.
	ErrOutsideTempDir = errors.New("path is outside the temp directory")
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage keeps staged videos and per-job frame directories under a
// single root directory. S3 publication needs S3Storage.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates root (default: $TMPDIR/framegrab) if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "framegrab")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve temp directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// TempDir returns the absolute storage root.
func (s *LocalStorage) TempDir() string {
	return s.root
}

// SaveTemp stages data as <name>_<random> under the root. A partially
// written file is removed.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := live(ctx); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.root, filepath.Base(name)+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	_, copyErr := io.Copy(f, data)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", closeErr)
	}
	return path, nil
}

// WorkDir creates <name>_<random>/ under the root for one job's frames.
func (s *LocalStorage) WorkDir(ctx context.Context, name string) (string, error) {
	if err := live(ctx); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(s.root, filepath.Base(name)+"_*")
	if err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}

// LoadTemp opens a staged file. The caller closes the returned reader.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	if !s.contains(path) {
		return nil, fmt.Errorf("open %s: %w", path, ErrOutsideTempDir)
	}

	f, err := os.Open(path) // #nosec G304 - confined to the storage root
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	return f, nil
}

// CleanupTemp removes staged files and job directories. Missing paths are
// not an error. Every path is attempted; the first failure is returned.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := live(ctx); err != nil {
			return err
		}

		var err error
		if !s.contains(p) {
			err = ErrOutsideTempDir
		} else {
			err = os.RemoveAll(p)
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove temp path %s: %w", p, err)
		}
	}
	return firstErr
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader, _ string) (string, error) {
	return "", ErrS3NotConfigured
}

// contains reports whether p names an entry strictly below the root.
func (s *LocalStorage) contains(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return nil
}
