// Package trash provides reversible deletion: a directory-based trash bin
// (freedesktop.org layout or a flat bin such as ~/.Trash) and, on Windows,
// the shell recycle bin.
package trash

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/mcdonaldj/zipwatch/internal/adapters/osfs"
	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// Layout selects how a Bin stores deleted files.
type Layout int

const (
	// Freedesktop stores files under files/ with a .trashinfo record under info/.
	Freedesktop Layout = iota
	// Flat moves files directly into the bin root (macOS ~/.Trash).
	Flat
)

// maxNameAttempts bounds the search for a free name inside the bin.
const maxNameAttempts = 10000

// Bin implements ports.RecycleDeleter by moving files into a trash directory.
type Bin struct {
	root      string
	layout    Layout
	inUse     ports.InUseChecker
	now       func() time.Time
	rename    func(oldpath, newpath string) error
	volumeTop func(path string) (string, error)

	// mu serializes name allocation between concurrent deletions in this process.
	mu sync.Mutex
}

// New creates a Bin rooted at root. inUse may be nil.
func New(root string, layout Layout, inUse ports.InUseChecker) *Bin {
	return &Bin{
		root:      root,
		layout:    layout,
		inUse:     inUse,
		now:       time.Now,
		rename:    os.Rename,
		volumeTop: mountPoint,
	}
}

// Delete moves path into the bin and returns its new location. A file on
// another filesystem goes to that filesystem's $topdir/.Trash-$uid, or is
// copied into the bin when no such directory can be used.
func (b *Bin) Delete(path string) (string, bool) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	if b.inUse != nil {
		// A failed probe is not evidence of use; let the rename decide.
		if busy, err := b.inUse.InUse(path); err == nil && busy {
			return "", false
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dest, err := b.store(b.root, b.layout, abs, abs, b.rename)
	if err == nil {
		return dest, true
	}
	if !osfs.IsCrossDevice(err) {
		return "", false
	}

	if b.layout == Freedesktop && runtime.GOOS != "windows" {
		if dest, err := b.storeOnVolume(abs); err == nil {
			return dest, true
		}
	}
	dest, err = b.store(b.root, b.layout, abs, abs, osfs.MoveByCopy)
	return dest, err == nil
}

// storeOnVolume moves abs into the per-user trash at the top of its own
// filesystem. The recorded path is relative to that top directory.
func (b *Bin) storeOnVolume(abs string) (string, error) {
	top, err := b.volumeTop(abs)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(top, abs)
	if err != nil {
		return "", err
	}
	root := filepath.Join(top, fmt.Sprintf(".Trash-%d", os.Getuid()))
	if info, err := os.Lstat(root); err == nil && (!info.IsDir() || info.Mode()&os.ModeSymlink != 0) {
		return "", errors.Newf("%s is not a directory", root)
	}
	return b.store(root, Freedesktop, abs, filepath.ToSlash(rel), b.rename)
}

// store moves src into the bin at root using move, picking a free name.
// recorded is the Path written to the .trashinfo record.
func (b *Bin) store(root string, layout Layout, src, recorded string, move func(string, string) error) (string, error) {
	filesDir, infoDir := root, ""
	if layout == Freedesktop {
		filesDir = filepath.Join(root, "files")
		infoDir = filepath.Join(root, "info")
		if err := os.MkdirAll(infoDir, 0o700); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(filesDir, 0o700); err != nil {
		return "", err
	}

	base := filepath.Base(src)
	for n := 1; n <= maxNameAttempts; n++ {
		name := candidateName(base, n)
		dest := filepath.Join(filesDir, name)

		infoPath := ""
		if layout == Freedesktop {
			infoPath = filepath.Join(infoDir, name+".trashinfo")
			created, err := b.writeInfo(infoPath, recorded)
			if err != nil {
				return "", err
			}
			if !created {
				continue
			}
		}

		if _, err := os.Lstat(dest); err == nil {
			if infoPath != "" {
				_ = os.Remove(infoPath)
			}
			continue
		} else if !os.IsNotExist(err) {
			if infoPath != "" {
				_ = os.Remove(infoPath)
			}
			return "", err
		}

		if err := move(src, dest); err != nil {
			if infoPath != "" {
				_ = os.Remove(infoPath)
			}
			return "", err
		}
		return dest, nil
	}
	return "", errors.Newf("no free name for %s in %s", base, filesDir)
}

// mountPoint returns the mount point of the filesystem holding path.
func mountPoint(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		path = filepath.Join(resolved, filepath.Base(path))
	}
	parts, err := disk.Partitions(true)
	if err != nil {
		return "", errors.Wrap(err, "listing mounts")
	}
	best := ""
	for _, p := range parts {
		if within(path, p.Mountpoint) && len(p.Mountpoint) > len(best) {
			best = p.Mountpoint
		}
	}
	if best == "" {
		return "", errors.Newf("no mount holds %s", path)
	}
	return best, nil
}

func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	if dir == string(filepath.Separator) {
		return filepath.IsAbs(path)
	}
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// writeInfo creates the .trashinfo record exclusively. created is false
// when a record with that name already exists.
func (b *Bin) writeInfo(infoPath, recorded string) (created bool, err error) {
	f, err := os.OpenFile(infoPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}

	content := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		(&url.URL{Path: recorded}).EscapedPath(),
		b.now().Format("2006-01-02T15:04:05"))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(infoPath)
		return false, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(infoPath)
		return false, err
	}
	return true, nil
}

// InfoPath returns the .trashinfo companion of a file inside a freedesktop
// bin, or "" when dest is not laid out that way.
func InfoPath(dest string) string {
	filesDir := filepath.Dir(dest)
	if filepath.Base(filesDir) != "files" {
		return ""
	}
	return filepath.Join(filepath.Dir(filesDir), "info", filepath.Base(dest)+".trashinfo")
}

// candidateName returns base for n == 1, otherwise "stem.N.ext".
func candidateName(base string, n int) string {
	if n == 1 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		return fmt.Sprintf("%s.%d", base, n)
	}
	return fmt.Sprintf("%s.%d%s", stem, n, ext)
}

// Compile-time check that Bin implements ports.RecycleDeleter.
var _ ports.RecycleDeleter = (*Bin)(nil)
