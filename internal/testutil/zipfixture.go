// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

// ZipEntry describes one entry written by WriteZip. Names ending in "/"
// become directory markers.
type ZipEntry struct {
	Name string
	Body string
	Mode os.FileMode
}

// WriteZip creates a zip archive at path containing entries in order.
func WriteZip(t testing.TB, path string, entries ...ZipEntry) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating dir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}

	w := zip.NewWriter(f)
	for _, e := range entries {
		header := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		if e.Mode != 0 {
			header.SetMode(e.Mode)
		}
		ew, err := w.CreateHeader(header)
		if err != nil {
			t.Fatalf("adding %s: %v", e.Name, err)
		}
		if _, err := ew.Write([]byte(e.Body)); err != nil {
			t.Fatalf("writing %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing zip file: %v", err)
	}
}

// ReadTree returns the files under root keyed by slash-separated relative
// path. Directories map to "/".
func ReadTree(t testing.TB, root string) map[string]string {
	t.Helper()

	tree := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			tree[rel] = "/"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", root, err)
	}
	return tree
}
