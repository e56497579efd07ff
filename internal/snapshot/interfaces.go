// Package snapshot archives fetched JSON payloads on disk.
//
// Each snapshot is written to <dir>/<name>.json and recorded in
// <dir>/index.json. Writes go through a temp file and an atomic rename while
// holding a cross-process file lock, so concurrent poe2arb processes never
// observe a half-written index.
package snapshot

import (
	"context"
	"os"
)

// Locker provides file locking for concurrent access safety.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// FileSystem abstracts the file operations the store performs, for testing.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(path string) error
	Rename(oldpath, newpath string) error
}

// OSFileSystem is the production implementation of FileSystem.
type OSFileSystem struct{}

// ReadFile reads the file at the given path.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to the file at the given path.
func (OSFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// MkdirAll creates a directory and all parent directories.
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove removes the file at the given path.
func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// Rename renames (moves) oldpath to newpath.
// This operation is atomic on POSIX systems.
func (OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}
