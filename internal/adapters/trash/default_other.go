//go:build !windows

package trash

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// NewDefault returns the platform's recycle facility. A non-empty dir
// overrides it with a freedesktop-style bin rooted at dir.
func NewDefault(dir string, inUse ports.InUseChecker) ports.RecycleDeleter {
	if dir != "" {
		return New(dir, Freedesktop, inUse)
	}
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		return New(filepath.Join(home, ".Trash"), Flat, inUse)
	}
	return New(filepath.Join(xdg.DataHome, "Trash"), Freedesktop, inUse)
}
