//go:build !windows
// +build !windows

package vfs

import (
	"syscall"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
)

// errnoFor maps a dmerrors error to the closest POSIX errno, per spec §7's
// propagation policy: "VFS never raises to applications: every error is
// mapped to the closest POSIX errno."
func errnoFor(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch dmerrors.CodeOf(err) {
	case dmerrors.CodeNotFound:
		return syscall.ENOENT
	case dmerrors.CodeInvalidPath, dmerrors.CodeInvalidConfig:
		return syscall.EINVAL
	case dmerrors.CodePermissionDenied:
		return syscall.EACCES
	case dmerrors.CodeInsufficientSpace:
		return syscall.ENOSPC
	case dmerrors.CodeLockBusy, dmerrors.CodeTimeout:
		return syscall.EBUSY
	case dmerrors.CodeDiskNotConnected:
		return syscall.EHOSTDOWN
	case dmerrors.CodeCancelled:
		return syscall.EINTR
	default:
		return syscall.EIO
	}
}
