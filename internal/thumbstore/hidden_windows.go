//go:build windows

package thumbstore

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// hideFile marks the database file hidden using FILE_ATTRIBUTE_HIDDEN.
// Failure is non-fatal per spec: platform-specific best-effort.
func hideFile(path string) {
	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return
	}
	windows.SetFileAttributes(p, attrs|windows.FILE_ATTRIBUTE_HIDDEN)
}
