// Package indexer implements the breadth-first dual-tree scan that
// reconciles on-disk reality for a sync pair against the Store, producing
// FileEntry records (spec §4.3).
package indexer

import (
	"os"
	"time"

	"github.com/driftmirror/driftmirror/pkg/filter"
)

// Snapshot is the result of walking one side (local or external) of a sync
// pair: a flat map from virtual path to the stat information observed during
// the walk. It corresponds to spec §4.5 step 1's "DirectorySnapshot".
type Snapshot struct {
	// Entries maps virtual path to the observed file metadata.
	Entries map[string]SnapshotEntry
}

// SnapshotEntry captures the metadata observed for one path during a scan.
type SnapshotEntry struct {
	Size        int64
	ModTime     time.Time
	IsDirectory bool
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Entries: make(map[string]SnapshotEntry)}
}

// quickCompareEqual implements spec §4.3's quick-compare rule: equal size
// and modification times within one second of one another.
func quickCompareEqual(a, b SnapshotEntry) bool {
	if a.Size != b.Size {
		return false
	}
	delta := a.ModTime.Sub(b.ModTime)
	if delta < 0 {
		delta = -delta
	}
	return delta < time.Second
}

// fromFileInfo converts an os.FileInfo into a SnapshotEntry.
func fromFileInfo(info os.FileInfo) SnapshotEntry {
	return SnapshotEntry{
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		IsDirectory: info.IsDir(),
	}
}

// included reports whether a path survives the pair's exclude/hidden/size
// filter rules (spec §4.3's "Exclusion" paragraph, spec §4.8) before being
// admitted to a scan's reconciled set.
func included(rules *filter.Rules, virtualPath, fileName string, size int64, isDir bool) bool {
	if rules == nil {
		return true
	}
	return rules.Included(virtualPath, fileName, size, isDir)
}
