// Package ports defines interfaces (contracts) for external dependencies.
// These enable dependency injection and testability via mock implementations.
package ports

import (
	"os"
)

// FileSystem abstracts filesystem operations for testability.
// Production code uses OSFileSystem adapter; tests use MockFileSystem.
type FileSystem interface {
	// Stat returns file info for the named file.
	Stat(name string) (os.FileInfo, error)

	// Mkdir creates a single directory. It fails if the directory exists.
	Mkdir(path string, perm os.FileMode) error

	// MkdirAll creates a directory along with any necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// ReadFile reads the named file and returns the contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Remove removes the named file or empty directory.
	Remove(name string) error

	// Rename renames (moves) oldpath to newpath.
	Rename(oldpath, newpath string) error
}
