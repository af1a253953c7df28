package indexer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

func newTestIndexer(t *testing.T) (*Indexer, *store.EntryStore) {
	t.Helper()
	logger := logging.NewLogger(logging.LevelError, &bytes.Buffer{})
	entries, err := store.OpenEntryStore(filepath.Join(t.TempDir(), "store.db"), logger)
	if err != nil {
		t.Fatalf("OpenEntryStore failed: %v", err)
	}
	t.Cleanup(func() { entries.Close() })
	return New(entries, logger), entries
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestReconcileLocalOnly(t *testing.T) {
	idx, entries := newTestIndexer(t)
	localDir := t.TempDir()
	writeFile(t, filepath.Join(localDir, "a.txt"), "hello")

	pair := Pair{SyncPairID: "pair1", LocalDir: localDir}
	count, err := idx.Run(context.Background(), pair, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reconciled entry, got %d", count)
	}

	entry, err := entries.GetEntry("pair1", "a.txt")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry == nil || entry.Location != store.LocationLocalOnly {
		t.Errorf("expected localOnly entry, got %+v", entry)
	}
}

func TestReconcileBothEqualNotDirty(t *testing.T) {
	idx, entries := newTestIndexer(t)
	localDir := t.TempDir()
	externalDir := t.TempDir()
	writeFile(t, filepath.Join(localDir, "a.txt"), "hello")
	writeFile(t, filepath.Join(externalDir, "a.txt"), "hello")

	pair := Pair{SyncPairID: "pair1", LocalDir: localDir, ExternalDir: externalDir, ExternalOnline: true}
	if _, err := idx.Run(context.Background(), pair, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entry, _ := entries.GetEntry("pair1", "a.txt")
	if entry.Location != store.LocationBoth {
		t.Errorf("expected both location, got %v", entry.Location)
	}
	if entry.IsDirty {
		t.Errorf("expected equal-content entry not to be dirty")
	}
}

func TestReconcileBothDifferentSizeMarksDirty(t *testing.T) {
	idx, entries := newTestIndexer(t)
	localDir := t.TempDir()
	externalDir := t.TempDir()
	writeFile(t, filepath.Join(localDir, "a.txt"), "hello world")
	writeFile(t, filepath.Join(externalDir, "a.txt"), "hi")

	pair := Pair{SyncPairID: "pair1", LocalDir: localDir, ExternalDir: externalDir, ExternalOnline: true}
	if _, err := idx.Run(context.Background(), pair, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entry, _ := entries.GetEntry("pair1", "a.txt")
	if !entry.IsDirty {
		t.Errorf("expected size-mismatched entry to be dirty")
	}
}

func TestReconcileDeletesStaleStoreEntry(t *testing.T) {
	idx, entries := newTestIndexer(t)
	localDir := t.TempDir()

	if err := entries.UpsertEntry(&store.FileEntry{
		SyncPairID: "pair1", VirtualPath: "gone.txt",
		LocalPath: filepath.Join(localDir, "gone.txt"), Location: store.LocationLocalOnly,
		ModifiedAt: time.Now(),
	}); err != nil {
		t.Fatalf("UpsertEntry failed: %v", err)
	}

	pair := Pair{SyncPairID: "pair1", LocalDir: localDir}
	if _, err := idx.Run(context.Background(), pair, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, err := entries.GetEntry("pair1", "gone.txt")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected stale entry to be deleted, got %+v", got)
	}
}

func TestReconcileReportsProgress(t *testing.T) {
	idx, _ := newTestIndexer(t)
	localDir := t.TempDir()
	writeFile(t, filepath.Join(localDir, "a.txt"), "hello")

	progress := make(chan Progress, 8)
	pair := Pair{SyncPairID: "pair1", LocalDir: localDir}
	if _, err := idx.Run(context.Background(), pair, progress); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	close(progress)

	var sawDone bool
	for p := range progress {
		if p.Done {
			sawDone = true
		}
	}
	if !sawDone {
		t.Error("expected a terminal Done progress event")
	}
}
