//go:build windows
// +build windows

package filesystem

import (
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
)

// FreeSpace reports the number of free bytes available to the current user
// on the volume containing path.
func FreeSpace(path string) (uint64, error) {
	pathPointer, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0, errors.Wrap(err, "unable to convert path")
	}

	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceExW := kernel32.NewProc("GetDiskFreeSpaceExW")

	var freeBytesAvailable uint64
	ret, _, callErr := getDiskFreeSpaceExW.Call(
		uintptr(unsafe.Pointer(pathPointer)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		0,
		0,
	)
	if ret == 0 {
		return 0, errors.Wrap(callErr, "GetDiskFreeSpaceExW failed")
	}
	return freeBytesAvailable, nil
}
