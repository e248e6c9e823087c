// Package watch turns filesystem notifications for one directory into
// archive events and hands each to a handler on its own goroutine.
package watch

import (
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// DefaultPatterns matches the only supported container format.
var DefaultPatterns = []string{"*.zip"}

// WatchedDirectory is the directory being watched, its file-name filter and
// whether notifications are currently delivered.
type WatchedDirectory struct {
	Path     string
	Patterns []string

	live atomic.Bool
}

// NewWatchedDirectory validates the patterns and makes path absolute. An
// empty pattern list means DefaultPatterns.
func NewWatchedDirectory(path string, patterns []string) (*WatchedDirectory, error) {
	if path == "" {
		return nil, errors.New("watch directory is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if err := ValidatePattern(p); err != nil {
			return nil, err
		}
		lowered = append(lowered, strings.ToLower(p))
	}
	return &WatchedDirectory{Path: abs, Patterns: lowered}, nil
}

// ValidatePattern reports whether p is a usable base-name glob.
func ValidatePattern(p string) error {
	if p == "" || strings.ContainsRune(p, filepath.Separator) || strings.Contains(p, "/") {
		return errors.Newf("invalid pattern %q: must be a base-name glob", p)
	}
	if _, err := filepath.Match(p, ""); err != nil {
		return errors.Wrapf(err, "invalid pattern %q", p)
	}
	return nil
}

// Matches reports whether path is a direct child of the directory whose
// base name matches one of the patterns, ignoring case.
func (d *WatchedDirectory) Matches(path string) bool {
	if filepath.Dir(path) != d.Path {
		return false
	}
	base := strings.ToLower(filepath.Base(path))
	for _, p := range d.Patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Live reports whether notifications are being delivered.
func (d *WatchedDirectory) Live() bool { return d.live.Load() }

func (d *WatchedDirectory) setLive(v bool) { d.live.Store(v) }
