// Package procscan detects files held open by running processes.
package procscan

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// DefaultTimeout bounds a full scan of the process table.
const DefaultTimeout = 5 * time.Second

// Checker implements ports.InUseChecker using gopsutil's open-file tables.
// Processes whose descriptors cannot be read (other users, exited) are skipped.
type Checker struct {
	timeout time.Duration
}

// New creates a Checker with DefaultTimeout.
func New() *Checker {
	return &Checker{timeout: DefaultTimeout}
}

// InUse reports whether any readable process has path open.
func (c *Checker) InUse(path string) (bool, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return false, errors.Wrapf(err, "resolving %s", path)
	}
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, errors.Wrap(err, "listing processes")
	}

	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return false, errors.Wrap(err, "scanning open files")
		}
		files, err := p.OpenFilesWithContext(ctx)
		if err != nil {
			continue
		}
		for _, f := range files {
			if samePath(f.Path, target) {
				return true, nil
			}
		}
	}
	return false, nil
}

func samePath(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

// Compile-time check that Checker implements ports.InUseChecker.
var _ ports.InUseChecker = (*Checker)(nil)
