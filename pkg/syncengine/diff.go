package syncengine

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/driftmirror/driftmirror/pkg/indexer"
)

// quickCompareInconclusive reports whether spec §4.5 step 2's quick-compare
// rule cannot determine equality from size/mtime alone: sizes match but the
// modification times differ by at least one second (the case the spec calls
// out as needing checksum comparison to refine).
func quickCompareInconclusive(a, b indexer.SnapshotEntry) bool {
	if a.Size != b.Size {
		return false
	}
	delta := a.ModTime.Sub(b.ModTime)
	if delta < 0 {
		delta = -delta
	}
	return delta >= time.Second
}

// calculate implements spec §4.5 step 2: for every path in the union of the
// two snapshots, emit an action or a conflict. mirrorDelete controls whether
// a path present only on the destination is scheduled for deletion (the
// "mirror-delete policy" the spec mentions) or left alone.
func calculate(sourceSnapshot, destSnapshot *indexer.Snapshot, sourcePath, destPath string, mirrorDelete bool) ([]PlanAction, []ConflictInfo) {
	var actions []PlanAction
	var conflicts []ConflictInfo

	paths := unionPaths(sourceSnapshot, destSnapshot)
	for _, virtualPath := range paths {
		source, hasSource := sourceSnapshot.Entries[virtualPath]
		dest, hasDest := destSnapshot.Entries[virtualPath]
		depth := strings.Count(virtualPath, "/")

		switch {
		case hasSource && !hasDest:
			actions = append(actions, PlanAction{
				Kind:            actionForCreate(source),
				VirtualPath:     virtualPath,
				SourcePath:      filepath.Join(sourcePath, filepath.FromSlash(virtualPath)),
				DestinationPath: filepath.Join(destPath, filepath.FromSlash(virtualPath)),
				Depth:           depth,
			})
		case !hasSource && hasDest:
			if mirrorDelete {
				actions = append(actions, PlanAction{
					Kind:            ActionDelete,
					VirtualPath:     virtualPath,
					DestinationPath: filepath.Join(destPath, filepath.FromSlash(virtualPath)),
					Depth:           depth,
				})
			}
		case hasSource && hasDest:
			if source.IsDirectory != dest.IsDirectory {
				conflicts = append(conflicts, ConflictInfo{
					RelativePath: virtualPath,
					ConflictType: ConflictTypeChanged,
					LocalMeta:    &SideMeta{Size: source.Size, ModTime: source.ModTime},
					ExternalMeta: &SideMeta{Size: dest.Size, ModTime: dest.ModTime},
				})
				continue
			}
			if source.IsDirectory {
				continue
			}
			if source.Size != dest.Size || quickCompareInconclusive(source, dest) {
				actions = append(actions, PlanAction{
					Kind:            ActionUpdate,
					VirtualPath:     virtualPath,
					SourcePath:      filepath.Join(sourcePath, filepath.FromSlash(virtualPath)),
					DestinationPath: filepath.Join(destPath, filepath.FromSlash(virtualPath)),
					Depth:           depth,
				})
			}
		}
	}

	return actions, conflicts
}

// actionForCreate chooses CreateDirectory or Copy depending on whether the
// newly-discovered source entry is a directory.
func actionForCreate(entry indexer.SnapshotEntry) ActionKind {
	if entry.IsDirectory {
		return ActionCreateDirectory
	}
	return ActionCopy
}

// unionPaths returns the sorted union of both snapshots' virtual paths, so
// that plan construction (and therefore wave grouping) is deterministic.
func unionPaths(a, b *indexer.Snapshot) []string {
	seen := make(map[string]bool, len(a.Entries)+len(b.Entries))
	for p := range a.Entries {
		seen[p] = true
	}
	for p := range b.Entries {
		seen[p] = true
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
