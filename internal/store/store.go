// Package store persists registry snapshots as indented JSON files.
//
// Writes go through a temp file in the target directory followed by a rename,
// so a crash mid-write never leaves a truncated store behind. An optional
// backup copy of the previous snapshot and an optional cross-process lock can
// be enabled per file.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

// File is a single JSON document on disk
type File struct {
	fs         afero.Fs
	path       string
	backupPath string
	lockPath   string
}

// Option configures a File
type Option func(*File)

// WithBackup copies the previous snapshot to path before every write.
func WithBackup(path string) Option {
	return func(f *File) { f.backupPath = path }
}

// WithLock serializes writes across processes using an OS file lock at path.
// Only meaningful on a real filesystem.
func WithLock(path string) Option {
	return func(f *File) { f.lockPath = path }
}

// NewFile returns a File rooted on fs
func NewFile(fs afero.Fs, path string, opts ...Option) *File {
	f := &File{fs: fs, path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the document path
func (f *File) Path() string { return f.path }

// Exists reports whether the document is present
func (f *File) Exists() bool {
	ok, err := afero.Exists(f.fs, f.path)
	return err == nil && ok
}

// Read returns the raw document bytes. A missing document yields errs.ErrNotFound.
func (f *File) Read() ([]byte, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, f.path)
		}
		return nil, err
	}
	return data, nil
}

// ReadJSON decodes the document into v
func (f *File) ReadJSON(v any) error {
	data, err := f.Read()
	if err != nil {
		return err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrParseDegraded, f.path, err)
	}
	return nil
}

// WriteJSON encodes v and atomically replaces the document.
// Every failure is reported as errs.ErrPersistence.
func (f *File) WriteJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Persistence(f.path, fmt.Errorf("failed to marshal: %w", err))
	}
	return f.Write(data)
}

// Write atomically replaces the document with data
func (f *File) Write(data []byte) error {
	if f.lockPath != "" {
		unlock, err := acquire(f.lockPath)
		if err != nil {
			return errs.Persistence(f.path, err)
		}
		defer unlock()
	}

	dir := filepath.Dir(f.path)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return errs.Persistence(f.path, fmt.Errorf("failed to create directory: %w", err))
	}

	if f.backupPath != "" {
		f.backup()
	}

	tmp, err := afero.TempFile(f.fs, dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errs.Persistence(f.path, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	// Best-effort cleanup if we fail
	defer func() { _ = f.fs.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errs.Persistence(f.path, fmt.Errorf("failed to write: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errs.Persistence(f.path, fmt.Errorf("failed to fsync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return errs.Persistence(f.path, fmt.Errorf("failed to close: %w", err))
	}

	if err := f.fs.Rename(tmpPath, f.path); err != nil {
		return errs.Persistence(f.path, fmt.Errorf("failed to replace: %w", err))
	}
	return nil
}

// backup copies the current document aside. Failures are ignored.
func (f *File) backup() {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		return
	}
	_ = afero.WriteFile(f.fs, f.backupPath, data, 0o644)
}

func acquire(path string) (func(), error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", path, err)
	}
	if !locked {
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("failed to acquire lock on %s after waiting: %w", path, err)
		}
	}
	return func() { _ = lock.Unlock() }, nil
}
