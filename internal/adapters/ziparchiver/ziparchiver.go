// Package ziparchiver provides an archiver adapter using the archive/zip package.
package ziparchiver

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// MaxDecompressSize is the maximum allowed uncompressed size of one entry (10GB).
// This prevents decompression bomb attacks (G110).
const MaxDecompressSize = 10 * 1024 * 1024 * 1024

// copyBufferSize bounds the memory used while streaming one entry.
const copyBufferSize = 32 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, copyBufferSize)
		return &b
	},
}

// ZipArchiver implements ports.Archiver using archive/zip.
type ZipArchiver struct{}

// New creates a new ZipArchiver adapter.
func New() *ZipArchiver {
	return &ZipArchiver{}
}

// Open opens a zip archive for sequential extraction.
func (a *ZipArchiver) Open(path string) (ports.Archive, error) {
	r, err := zip.OpenReader(path)
	// Non-local names are reported by OpenReader only when GODEBUG asks for
	// it; Extract performs its own containment check, so keep the reader.
	if err != nil && (r == nil || !errors.Is(err, zip.ErrInsecurePath)) {
		return nil, errors.Mark(errors.Wrapf(err, "opening %s", path), ports.ErrArchiveOpen)
	}
	return &zipArchive{path: path, r: r}, nil
}

// Extract extracts the zip archive at zipPath into destDir and returns the
// number of entries written.
func (a *ZipArchiver) Extract(ctx context.Context, zipPath, destDir string) (int, error) {
	arc, err := a.Open(zipPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = arc.Close() }()

	return arc.Extract(ctx, destDir)
}

// zipArchive is an opened zip file.
type zipArchive struct {
	path string
	r    *zip.ReadCloser
}

// Extract materializes every entry under destDir in archive order.
func (z *zipArchive) Extract(ctx context.Context, destDir string) (int, error) {
	// Get cleaned absolute path for destination
	absDestDir, err := filepath.Abs(destDir)
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "resolving destination path"), ports.ErrDirectoryCreation)
	}
	absDestDir = filepath.Clean(absDestDir)

	written := 0
	for _, f := range z.r.File {
		if err := ctx.Err(); err != nil {
			return written, errors.Mark(errors.Wrapf(err, "extracting %s", z.path), ports.ErrEntryExtraction)
		}

		fpath, err := entryPath(absDestDir, f.Name)
		if err != nil {
			return written, err
		}

		if isDirEntry(f) {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return written, errors.Mark(errors.Wrapf(err, "creating directory %s", fpath), ports.ErrDirectoryCreation)
			}
			written++
			continue
		}

		// Create parent directories
		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return written, errors.Mark(errors.Wrapf(err, "creating parent directory for %s", fpath), ports.ErrDirectoryCreation)
		}

		if err := extractFile(f, fpath); err != nil {
			return written, errors.Mark(errors.Wrapf(err, "extracting %s", f.Name), ports.ErrEntryExtraction)
		}
		written++
	}

	return written, nil
}

// Close releases the archive's file handle.
func (z *zipArchive) Close() error {
	return z.r.Close()
}

// isDirEntry reports whether the entry is a directory marker.
func isDirEntry(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}

// entryPath maps an entry name to its location under absDestDir.
func entryPath(absDestDir, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if strings.HasPrefix(name, "/") || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", errors.Mark(errors.Newf("absolute entry path: %s", name), ports.ErrPathEscape)
	}

	fpath := filepath.Join(absDestDir, rel)

	// SECURITY: Check for ZipSlip vulnerability
	if !isWithinDir(absDestDir, fpath) {
		return "", errors.Mark(errors.Newf("invalid file path (path traversal detected): %s", name), ports.ErrPathEscape)
	}
	return fpath, nil
}

// extractFile streams a single entry to destPath, replacing any file there.
// Symlink entries are written as regular files holding the link text.
func extractFile(f *zip.File, destPath string) error {
	// SECURITY: Limit decompression size to prevent zip bombs (G110)
	declaredSize := f.UncompressedSize64
	if declaredSize > MaxDecompressSize {
		return errors.Newf("file too large: %d bytes exceeds limit of %d bytes", declaredSize, MaxDecompressSize)
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o600)
	if err != nil {
		return err
	}

	bufp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufp)

	// Use LimitReader to enforce size limit during decompression
	// Add 1 byte to detect if actual size exceeds declared size
	limitedReader := io.LimitReader(rc, int64(declaredSize)+1)
	// The anonymous struct hides os.File's ReaderFrom so the pooled buffer is used.
	written, err := io.CopyBuffer(struct{ io.Writer }{outFile}, limitedReader, *bufp)
	if err != nil {
		_ = outFile.Close()
		return err
	}

	// Check if more data was available than declared (corrupted/malicious zip)
	if written > int64(declaredSize) {
		_ = outFile.Close()
		return errors.New("decompressed size exceeds declared size")
	}

	return outFile.Close()
}

// isWithinDir checks if the target path is within the base directory.
func isWithinDir(absBaseDir, targetPath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absTarget = filepath.Clean(absTarget)

	prefix := absBaseDir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(absTarget, prefix) || absTarget == absBaseDir
}

// Compile-time check that ZipArchiver implements ports.Archiver.
var _ ports.Archiver = (*ZipArchiver)(nil)
