package syncengine

import (
	"testing"
	"time"

	"github.com/driftmirror/driftmirror/pkg/indexer"
)

func TestCalculateNewOnSourceEmitsCopy(t *testing.T) {
	source := indexer.NewSnapshot()
	source.Entries["a.txt"] = indexer.SnapshotEntry{Size: 5}
	dest := indexer.NewSnapshot()

	actions, conflicts := calculate(source, dest, "/src", "/dst", false)
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %d", len(conflicts))
	}
	if len(actions) != 1 || actions[0].Kind != ActionCopy {
		t.Fatalf("expected 1 Copy action, got %+v", actions)
	}
}

func TestCalculateAbsentOnSourceWithMirrorDeleteEmitsDelete(t *testing.T) {
	source := indexer.NewSnapshot()
	dest := indexer.NewSnapshot()
	dest.Entries["a.txt"] = indexer.SnapshotEntry{Size: 5}

	actions, _ := calculate(source, dest, "/src", "/dst", true)
	if len(actions) != 1 || actions[0].Kind != ActionDelete {
		t.Fatalf("expected 1 Delete action, got %+v", actions)
	}
}

func TestCalculateAbsentOnSourceWithoutMirrorDeleteEmitsNothing(t *testing.T) {
	source := indexer.NewSnapshot()
	dest := indexer.NewSnapshot()
	dest.Entries["a.txt"] = indexer.SnapshotEntry{Size: 5}

	actions, _ := calculate(source, dest, "/src", "/dst", false)
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %+v", actions)
	}
}

func TestCalculateSizeMismatchEmitsUpdate(t *testing.T) {
	now := time.Now()
	source := indexer.NewSnapshot()
	source.Entries["a.txt"] = indexer.SnapshotEntry{Size: 10, ModTime: now}
	dest := indexer.NewSnapshot()
	dest.Entries["a.txt"] = indexer.SnapshotEntry{Size: 5, ModTime: now}

	actions, _ := calculate(source, dest, "/src", "/dst", false)
	if len(actions) != 1 || actions[0].Kind != ActionUpdate {
		t.Fatalf("expected 1 Update action, got %+v", actions)
	}
}

func TestCalculateEqualSizeAndMtimeEmitsNothing(t *testing.T) {
	now := time.Now()
	source := indexer.NewSnapshot()
	source.Entries["a.txt"] = indexer.SnapshotEntry{Size: 10, ModTime: now}
	dest := indexer.NewSnapshot()
	dest.Entries["a.txt"] = indexer.SnapshotEntry{Size: 10, ModTime: now}

	actions, _ := calculate(source, dest, "/src", "/dst", false)
	if len(actions) != 0 {
		t.Fatalf("expected no actions for equal files, got %+v", actions)
	}
}

func TestCalculateTypeChangeEmitsConflict(t *testing.T) {
	source := indexer.NewSnapshot()
	source.Entries["a"] = indexer.SnapshotEntry{IsDirectory: true}
	dest := indexer.NewSnapshot()
	dest.Entries["a"] = indexer.SnapshotEntry{IsDirectory: false, Size: 5}

	actions, conflicts := calculate(source, dest, "/src", "/dst", false)
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %+v", actions)
	}
	if len(conflicts) != 1 || conflicts[0].ConflictType != ConflictTypeChanged {
		t.Fatalf("expected 1 typeChanged conflict, got %+v", conflicts)
	}
}
