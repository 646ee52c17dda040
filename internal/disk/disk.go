// Package disk implements the disk-interface capability set (C1):
// opaque access to mtimes, reads, writes, removals, and directory
// creation, behind an interface so the rest of the engine can be driven
// against an in-memory fake in tests.
package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"forge/internal/builderrors"
	"forge/internal/graph"
)

// RemoveResult is the three-way outcome of RemoveFile.
type RemoveResult int

const (
	RemoveRemoved RemoveResult = iota
	RemoveNotFound
	RemoveError
)

// Interface is the capability set every component above C1 depends on.
// disk.Real backs it with the OS; disk.Virtual backs it with an
// in-memory map for tests.
type Interface interface {
	Stat(path string) (graph.TimeStamp, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	MakeDir(path string) error
	MakeDirs(path string) error
	RemoveFile(path string) RemoveResult
}

// ErrNotFound is returned by ReadFile when path does not exist.
var ErrNotFound = errors.New("not found")

// Real backs Interface with the host filesystem.
type Real struct{}

// NewReal constructs a disk.Interface backed by the real filesystem.
func NewReal() *Real { return &Real{} }

// Stat returns the path's mtime as a TimeStamp. A mtime of exactly zero
// from the OS is promoted to 1 so that 0 remains the unambiguous
// "missing" sentinel. A missing file returns (Missing, nil), not an
// error: absence is an expected outcome, not a failure.
func (r *Real) Stat(path string) (graph.TimeStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return graph.Missing, nil
		}
		return -1, &builderrors.IOError{Op: "stat", Path: path, Err: err}
	}
	ts := info.ModTime().UnixNano()
	if ts == 0 {
		ts = 1
	}
	return graph.TimeStamp(ts), nil
}

// ReadFile reads the full contents of path.
func (r *Real) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &builderrors.IOError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// WriteFile writes data to path, creating or truncating it.
func (r *Real) WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &builderrors.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// MakeDir creates exactly one directory level; succeeds if it already
// exists as a directory.
func (r *Real) MakeDir(path string) error {
	if err := os.Mkdir(path, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return &builderrors.IOError{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// MakeDirs creates the directory containing path (filepath.Dir(path))
// and every missing parent, succeeding if it already exists; path itself
// is not created.
func (r *Real) MakeDirs(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &builderrors.IOError{Op: "mkdirs", Path: path, Err: err}
	}
	return nil
}

// RemoveFile removes path, classifying the outcome.
func (r *Real) RemoveFile(path string) RemoveResult {
	err := os.Remove(path)
	switch {
	case err == nil:
		return RemoveRemoved
	case errors.Is(err, fs.ErrNotExist):
		return RemoveNotFound
	default:
		return RemoveError
	}
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory followed by rename, so a crash mid-write never leaves a
// half-written file at path. Mirrors the atomic-write-then-rename
// pattern used for the recompacted build and deps logs.
func WriteFileAtomic(path string, data []byte) (committed bool, err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return false, &builderrors.IOError{Op: "create-temp", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return false, &builderrors.IOError{Op: "write-temp", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return false, &builderrors.IOError{Op: "fsync-temp", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return false, &builderrors.IOError{Op: "close-temp", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return false, &builderrors.IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true

	if dirFile, err := os.Open(dir); err == nil {
		dirFile.Sync()
		dirFile.Close()
	}
	return true, nil
}
