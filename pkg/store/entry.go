// Package store implements the persistent, transactional record-keeping
// layer described in spec §4.1: a bbolt-backed key/value store for
// FileEntry records (keyed by sync pair and virtual path) and a sqlite
// database for the append-only SyncHistory log and the incrementally
// updated SyncStatistics aggregates.
package store

import (
	"time"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
)

// Location describes where the file backing a FileEntry currently exists.
type Location string

const (
	LocationNotExists    Location = "notExists"
	LocationLocalOnly    Location = "localOnly"
	LocationExternalOnly Location = "externalOnly"
	LocationBoth         Location = "both"
)

// LockState describes whether a FileEntry is currently held by an in-flight
// sync action.
type LockState string

const (
	LockStateUnlocked   LockState = "unlocked"
	LockStateSyncLocked LockState = "syncLocked"
)

// LockDirection is the direction a syncLocked entry is being transferred in.
type LockDirection string

const (
	LockDirectionLocalToExternal LockDirection = "localToExternal"
	LockDirectionExternalToLocal LockDirection = "externalToLocal"
)

// LockTimeout is the duration after which a syncLocked entry is considered
// expired and is reclaimed on next access, per spec §5.
const LockTimeout = 30 * time.Second

// FileEntry is the central persisted record described in spec §3, keyed by
// (SyncPairID, VirtualPath).
type FileEntry struct {
	SyncPairID   string
	VirtualPath  string
	LocalPath    string
	ExternalPath string
	Location     Location
	Size         int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
	AccessedAt   time.Time
	Checksum     string
	IsDirty      bool
	IsDirectory  bool

	LockState     LockState
	LockTime      time.Time
	LockDirection LockDirection
}

// Key returns the entry's store key.
func (e *FileEntry) Key() EntryKey {
	return EntryKey{SyncPairID: e.SyncPairID, VirtualPath: e.VirtualPath}
}

// LockExpired reports whether a syncLocked entry's lock has exceeded
// LockTimeout as of now.
func (e *FileEntry) LockExpired(now time.Time) bool {
	return e.LockState == LockStateSyncLocked && now.Sub(e.LockTime) >= LockTimeout
}

// EntryKey identifies a FileEntry.
type EntryKey struct {
	SyncPairID  string
	VirtualPath string
}

// Validate checks the invariants from spec §3 that a FileEntry must satisfy
// before it may be persisted.
func (e *FileEntry) Validate() error {
	hasLocal := e.LocalPath != ""
	hasExternal := e.ExternalPath != ""

	switch e.Location {
	case LocationNotExists:
		if hasLocal || hasExternal {
			return dmerrors.New(dmerrors.CodeInternal, "notExists entry must have no paths set")
		}
	case LocationLocalOnly:
		if !hasLocal || hasExternal {
			return dmerrors.New(dmerrors.CodeInternal, "localOnly entry must have only localPath set")
		}
	case LocationExternalOnly:
		if hasLocal || !hasExternal {
			return dmerrors.New(dmerrors.CodeInternal, "externalOnly entry must have only externalPath set")
		}
	case LocationBoth:
		if !hasLocal || !hasExternal {
			return dmerrors.New(dmerrors.CodeInternal, "both entry must have localPath and externalPath set")
		}
	default:
		return dmerrors.New(dmerrors.CodeInternal, "unrecognized location").With("location", string(e.Location))
	}

	if e.IsDirty && !(e.Location == LocationLocalOnly || e.Location == LocationBoth) {
		return dmerrors.New(dmerrors.CodeInternal, "dirty entry must be localOnly or both")
	}

	if e.IsDirectory {
		if e.Size != 0 {
			return dmerrors.New(dmerrors.CodeInternal, "directory entry must have zero size")
		}
		if e.Checksum != "" {
			return dmerrors.New(dmerrors.CodeInternal, "directory entry must have no checksum")
		}
	}

	if e.LockState == LockStateSyncLocked {
		if e.LockTime.IsZero() || e.LockDirection == "" {
			return dmerrors.New(dmerrors.CodeInternal, "syncLocked entry must have lockTime and lockDirection set")
		}
	}

	return nil
}
