// Package mocks provides mock implementations for testing.
package mocks

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// MockFileSystem implements ports.FileSystem for testing.
type MockFileSystem struct {
	// Files maps paths to file contents for ReadFile/WriteFile
	Files map[string][]byte
	// Stats maps paths to FileInfo for Stat
	Stats map[string]os.FileInfo
	// Errors maps paths to errors (for simulating failures)
	Errors map[string]error
	// StatCalls records every path passed to Stat
	StatCalls []string
	// Renames records completed Rename calls as [old, new]
	Renames [][2]string
}

// NewMockFileSystem creates a new mock filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files:  make(map[string][]byte),
		Stats:  make(map[string]os.FileInfo),
		Errors: make(map[string]error),
	}
}

// AddDir marks path as an existing directory.
func (m *MockFileSystem) AddDir(path string) {
	m.Stats[path] = &mockFileInfo{name: filepath.Base(path), isDir: true, mode: os.ModeDir | 0o755}
}

// Stat returns file info for the named file.
func (m *MockFileSystem) Stat(name string) (os.FileInfo, error) {
	m.StatCalls = append(m.StatCalls, name)
	if err, ok := m.Errors[name]; ok {
		return nil, err
	}
	if info, ok := m.Stats[name]; ok {
		return info, nil
	}
	// Check if we have file content (implies file exists)
	if _, ok := m.Files[name]; ok {
		return &mockFileInfo{name: filepath.Base(name), size: int64(len(m.Files[name]))}, nil
	}
	return nil, os.ErrNotExist
}

// Mkdir creates a single directory, failing if something exists at path.
func (m *MockFileSystem) Mkdir(path string, perm os.FileMode) error {
	if err, ok := m.Errors[path]; ok {
		return err
	}
	if _, ok := m.Stats[path]; ok {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrExist}
	}
	if _, ok := m.Files[path]; ok {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrExist}
	}
	m.AddDir(path)
	return nil
}

// MkdirAll creates a directory along with any necessary parents.
func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	if err, ok := m.Errors[path]; ok {
		return err
	}
	// Mark directory as existing
	m.AddDir(path)
	return nil
}

// ReadFile reads the named file and returns the contents.
func (m *MockFileSystem) ReadFile(name string) ([]byte, error) {
	if err, ok := m.Errors[name]; ok {
		return nil, err
	}
	if content, ok := m.Files[name]; ok {
		return content, nil
	}
	return nil, os.ErrNotExist
}

// WriteFile writes data to the named file, creating it if necessary.
func (m *MockFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	if err, ok := m.Errors[name]; ok {
		return err
	}
	m.Files[name] = data
	return nil
}

// Remove removes the named file or empty directory.
func (m *MockFileSystem) Remove(name string) error {
	if err, ok := m.Errors[name]; ok {
		return err
	}
	_, isFile := m.Files[name]
	_, isStat := m.Stats[name]
	if !isFile && !isStat {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	delete(m.Files, name)
	delete(m.Stats, name)
	return nil
}

// Rename renames (moves) oldpath to newpath.
func (m *MockFileSystem) Rename(oldpath, newpath string) error {
	if err, ok := m.Errors[oldpath]; ok {
		return err
	}
	content, isFile := m.Files[oldpath]
	info, isStat := m.Stats[oldpath]
	if !isFile && !isStat {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrNotExist}
	}
	if isFile {
		m.Files[newpath] = content
		delete(m.Files, oldpath)
	}
	if isStat {
		m.Stats[newpath] = info
		delete(m.Stats, oldpath)
	}
	m.Renames = append(m.Renames, [2]string{oldpath, newpath})
	return nil
}

// mockFileInfo implements os.FileInfo for testing.
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
}

func (fi *mockFileInfo) Name() string       { return fi.name }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *mockFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *mockFileInfo) IsDir() bool        { return fi.isDir }
func (fi *mockFileInfo) Sys() interface{}   { return nil }

// Compile-time check that MockFileSystem implements ports.FileSystem.
var _ ports.FileSystem = (*MockFileSystem)(nil)
