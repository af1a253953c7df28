//go:build !windows
// +build !windows

package filesystem

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// FreeSpace reports the number of free bytes available to an unprivileged
// user on the filesystem containing path. CacheEvictor uses this for the
// targetFreeSpace part of its eviction target (spec §4.6).
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, errors.Wrap(err, "unable to statfs path")
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
