// Package osfs provides a filesystem adapter using the standard library os package.
package osfs

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// OSFileSystem implements ports.FileSystem using the standard library.
type OSFileSystem struct{}

// New creates a new OSFileSystem adapter.
func New() *OSFileSystem {
	return &OSFileSystem{}
}

// Stat returns file info for the named file.
func (f *OSFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Mkdir creates a single directory. It fails if the directory exists.
func (f *OSFileSystem) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

// MkdirAll creates a directory along with any necessary parents.
func (f *OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// ReadFile reads the named file and returns the contents.
func (f *OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile writes data to the named file, creating it if necessary.
func (f *OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// Remove removes the named file or empty directory.
func (f *OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}

// Rename moves oldpath to newpath, copying when they are on different
// filesystems.
func (f *OSFileSystem) Rename(oldpath, newpath string) error {
	return Move(oldpath, newpath)
}

// Move renames src to dst. When the rename fails because src and dst are on
// different filesystems the file is copied and src removed instead.
func Move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !IsCrossDevice(err) {
		return err
	}
	return MoveByCopy(src, dst)
}

// MoveByCopy copies the regular file src to dst, which must not exist, and
// then removes src. If src cannot be removed the copy is deleted again, so
// the file is never left in both places.
func MoveByCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	info, err := in.Stat()
	if err != nil {
		_ = in.Close()
		return err
	}
	if !info.Mode().IsRegular() {
		_ = in.Close()
		return errors.Newf("%s is not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		_ = in.Close()
		return err
	}
	_, err = io.Copy(out, in)
	_ = in.Close()
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return errors.Wrapf(err, "copying %s to %s", src, dst)
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return errors.Wrapf(err, "removing %s after copy", src)
	}
	return nil
}

// Compile-time check that OSFileSystem implements ports.FileSystem.
var _ ports.FileSystem = (*OSFileSystem)(nil)
