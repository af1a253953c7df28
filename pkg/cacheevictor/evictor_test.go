package cacheevictor

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, io.Discard)
}

func newTestStore(t *testing.T) *store.EntryStore {
	t.Helper()
	dir := t.TempDir()
	s, err := store.OpenEntryStore(filepath.Join(dir, "entries.db"), testLogger())
	if err != nil {
		t.Fatalf("unable to open store: %s", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeLocalFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("unable to write local file: %s", err)
	}
	return path
}

func TestRunEvictsOldestFirstUnderModifiedTimeStrategy(t *testing.T) {
	entries := newTestStore(t)
	localDir := t.TempDir()

	older := writeLocalFile(t, localDir, "old.txt", 100)
	newer := writeLocalFile(t, localDir, "new.txt", 100)

	now := time.Now()
	mustUpsert(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "old.txt", LocalPath: older, ExternalPath: "ext/old.txt",
		Location: store.LocationBoth, Size: 100, ModifiedAt: now.Add(-time.Hour), AccessedAt: now.Add(-time.Hour),
	})
	mustUpsert(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "new.txt", LocalPath: newer, ExternalPath: "ext/new.txt",
		Location: store.LocationBoth, Size: 100, ModifiedAt: now, AccessedAt: now,
	})

	evictor := New(entries, testLogger())
	result, err := evictor.Run(Budget{
		SyncPairID: "pair", LocalDir: localDir, Strategy: StrategyModifiedTime,
		MaxLocalCacheSize: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(result.EvictedPaths) != 1 || result.EvictedPaths[0] != "old.txt" {
		t.Fatalf("expected only old.txt evicted, got %+v", result.EvictedPaths)
	}

	if _, err := os.Stat(older); !os.IsNotExist(err) {
		t.Error("expected local copy of old.txt to be removed")
	}
	if _, err := os.Stat(newer); err != nil {
		t.Error("expected local copy of new.txt to remain")
	}

	entry, err := entries.GetEntry("pair", "old.txt")
	if err != nil {
		t.Fatalf("unable to read entry: %s", err)
	}
	if entry.Location != store.LocationExternalOnly || entry.LocalPath != "" {
		t.Errorf("expected old.txt transitioned to externalOnly with no localPath, got %+v", entry)
	}
}

func TestRunSkipsDirtyAndLockedEntries(t *testing.T) {
	entries := newTestStore(t)
	localDir := t.TempDir()

	dirtyPath := writeLocalFile(t, localDir, "dirty.txt", 100)
	lockedPath := writeLocalFile(t, localDir, "locked.txt", 100)

	now := time.Now()
	mustUpsert(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "dirty.txt", LocalPath: dirtyPath, ExternalPath: "ext/dirty.txt",
		Location: store.LocationBoth, Size: 100, ModifiedAt: now.Add(-time.Hour), IsDirty: true,
	})
	mustUpsert(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "locked.txt", LocalPath: lockedPath, ExternalPath: "ext/locked.txt",
		Location: store.LocationBoth, Size: 100, ModifiedAt: now.Add(-time.Hour),
		LockState: store.LockStateSyncLocked, LockTime: now, LockDirection: store.LockDirectionLocalToExternal,
	})

	evictor := New(entries, testLogger())
	result, err := evictor.Run(Budget{
		SyncPairID: "pair", LocalDir: localDir, Strategy: StrategyModifiedTime,
		MaxLocalCacheSize: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(result.EvictedPaths) != 0 {
		t.Fatalf("expected no evictions, got %+v", result.EvictedPaths)
	}
}

func TestRunStopsOnceBudgetSatisfied(t *testing.T) {
	entries := newTestStore(t)
	localDir := t.TempDir()

	a := writeLocalFile(t, localDir, "a.txt", 100)
	b := writeLocalFile(t, localDir, "b.txt", 100)

	now := time.Now()
	mustUpsert(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "a.txt", LocalPath: a, ExternalPath: "ext/a.txt",
		Location: store.LocationBoth, Size: 100, ModifiedAt: now.Add(-2 * time.Hour),
	})
	mustUpsert(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "b.txt", LocalPath: b, ExternalPath: "ext/b.txt",
		Location: store.LocationBoth, Size: 100, ModifiedAt: now.Add(-time.Hour),
	})

	evictor := New(entries, testLogger())
	result, err := evictor.Run(Budget{
		SyncPairID: "pair", LocalDir: localDir, Strategy: StrategyModifiedTime,
		MaxLocalCacheSize: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(result.EvictedPaths) != 1 || result.EvictedPaths[0] != "a.txt" {
		t.Fatalf("expected only the oldest file evicted once budget satisfied, got %+v", result.EvictedPaths)
	}
}

func TestRunNoopWhenWithinBudget(t *testing.T) {
	entries := newTestStore(t)
	localDir := t.TempDir()

	path := writeLocalFile(t, localDir, "a.txt", 100)
	mustUpsert(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "a.txt", LocalPath: path, ExternalPath: "ext/a.txt",
		Location: store.LocationBoth, Size: 100, ModifiedAt: time.Now(),
	})

	evictor := New(entries, testLogger())
	result, err := evictor.Run(Budget{
		SyncPairID: "pair", LocalDir: localDir, Strategy: StrategyModifiedTime,
		MaxLocalCacheSize: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(result.EvictedPaths) != 0 {
		t.Fatalf("expected no evictions when within budget, got %+v", result.EvictedPaths)
	}
}

func TestRankCandidatesSizeFirstBreaksTiesByAccessTime(t *testing.T) {
	now := time.Now()
	candidates := []*store.FileEntry{
		{VirtualPath: "small-old", Size: 10, AccessedAt: now.Add(-time.Hour)},
		{VirtualPath: "large", Size: 100, AccessedAt: now},
		{VirtualPath: "small-new", Size: 10, AccessedAt: now},
	}
	rankCandidates(candidates, StrategySizeFirst)

	if candidates[0].VirtualPath != "large" {
		t.Fatalf("expected largest file first, got %+v", candidates)
	}
	if candidates[1].VirtualPath != "small-old" {
		t.Fatalf("expected older same-size file before newer, got %+v", candidates)
	}
}

func mustUpsert(t *testing.T, entries *store.EntryStore, entry *store.FileEntry) {
	t.Helper()
	if err := entries.UpsertEntry(entry); err != nil {
		t.Fatalf("unable to upsert entry %q: %s", entry.VirtualPath, err)
	}
}
