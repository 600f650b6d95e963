package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File stores the object at a local path. Conditional writes are serialized
// across processes by an advisory lock on a sibling "<path>.lock" file.
type File struct {
	Path string
}

// NewFile returns a blob for path
func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) ReadVersion(ctx context.Context) ([]byte, Version, error) {
	data, err := f.Read(ctx)
	if err != nil {
		return nil, "", err
	}
	return data, versionOf(data), nil
}

// WriteIf replaces the file when its contents are still at v. The compare
// and the rename happen under the lock file.
func (f *File) WriteIf(ctx context.Context, data []byte, v Version) (Version, error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	unlock, err := lockFile(f.Path + ".lock")
	if err != nil {
		return "", fmt.Errorf("failed to lock %s: %w", f.Path, err)
	}
	defer unlock()

	var cur Version
	switch existing, err := f.Read(ctx); {
	case err == nil:
		cur = versionOf(existing)
	case !errors.Is(err, ErrNotFound):
		return "", err
	}
	if cur != v {
		return "", ErrConflict
	}

	if err := f.Write(ctx, data); err != nil {
		return "", err
	}
	return versionOf(data), nil
}

func (f *File) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return data, nil
}

// Write replaces the file atomically: data goes to a temporary file in the
// same directory which is then renamed over the target.
func (f *File) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, f.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", f.Path, err)
	}
	return nil
}
