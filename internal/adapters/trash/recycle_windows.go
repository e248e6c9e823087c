//go:build windows

package trash

import (
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

var (
	shell32              = windows.NewLazySystemDLL("shell32.dll")
	procSHFileOperationW = shell32.NewProc("SHFileOperationW")
)

const (
	foDelete          = 0x0003
	fofSilent         = 0x0004
	fofNoConfirmation = 0x0010
	fofAllowUndo      = 0x0040
	fofNoErrorUI      = 0x0400
)

// shFileOpStruct mirrors SHFILEOPSTRUCTW for 64-bit targets.
type shFileOpStruct struct {
	hwnd                  windows.Handle
	wFunc                 uint32
	pFrom                 *uint16
	pTo                   *uint16
	fFlags                uint16
	fAnyOperationsAborted int32
	hNameMappings         uintptr
	lpszProgressTitle     *uint16
}

// RecycleBin implements ports.RecycleDeleter with the shell recycle bin.
type RecycleBin struct {
	inUse ports.InUseChecker
}

// NewRecycleBin creates a RecycleBin. inUse may be nil.
func NewRecycleBin(inUse ports.InUseChecker) *RecycleBin {
	return &RecycleBin{inUse: inUse}
}

// Delete sends path to the recycle bin. The bin's location is not exposed,
// so dest is always empty.
func (r *RecycleBin) Delete(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	if r.inUse != nil {
		if busy, err := r.inUse.InUse(path); err == nil && busy {
			return "", false
		}
	}
	if err := procSHFileOperationW.Find(); err != nil {
		return "", false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	from, err := windows.UTF16FromString(abs)
	if err != nil {
		return "", false
	}
	// pFrom is a list terminated by an empty string.
	from = append(from, 0)

	op := shFileOpStruct{
		wFunc:  foDelete,
		pFrom:  &from[0],
		fFlags: fofAllowUndo | fofNoConfirmation | fofSilent | fofNoErrorUI,
	}
	ret, _, _ := procSHFileOperationW.Call(uintptr(unsafe.Pointer(&op)))
	if ret != 0 || op.fAnyOperationsAborted != 0 {
		return "", false
	}
	return "", true
}

// NewDefault returns the shell recycle bin. A non-empty dir overrides it
// with a freedesktop-style bin rooted at dir.
func NewDefault(dir string, inUse ports.InUseChecker) ports.RecycleDeleter {
	if dir != "" {
		return New(dir, Freedesktop, inUse)
	}
	return NewRecycleBin(inUse)
}

// Compile-time check that RecycleBin implements ports.RecycleDeleter.
var _ ports.RecycleDeleter = (*RecycleBin)(nil)
