//go:build !windows

package osfs

import (
	"syscall"

	"github.com/cockroachdb/errors"
)

// IsCrossDevice reports whether err is a rename refused because source and
// destination are on different filesystems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
