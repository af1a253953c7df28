package vfs

import "time"

// DirtyFile is the transient queue entry VFS publishes on close-after-write,
// consumed by the Coordinator to debounce a SyncEngine run (spec §3, §4.4).
type DirtyFile struct {
	VirtualPath   string
	LocalPath     string
	CreatedAt     time.Time
	ModifiedAt    time.Time
	SyncAttempts  int
	LastSyncError string
}
