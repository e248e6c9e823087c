//go:build windows

package osfs

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/windows"
)

// IsCrossDevice reports whether err is a rename refused because source and
// destination are on different volumes.
func IsCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
