package housekeeping

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftmirror/driftmirror/pkg/cacheevictor"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

func testLogger() (*logging.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logging.NewLogger(logging.LevelError, buf), buf
}

// TestHousekeepNoTargets tests that Housekeep succeeds without panicking
// when there are no targets and no journal.
func TestHousekeepNoTargets(t *testing.T) {
	logger, _ := testLogger()
	Housekeep(logger, nil, nil)
}

// TestHousekeepReplaysJournalAndRemovesTempFile tests that Housekeep
// removes a temp file left behind by an interrupted rename.
func TestHousekeepReplaysJournalAndRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.log")
	journal, err := store.OpenJournal(journalPath)
	if err != nil {
		t.Fatalf("unable to open journal: %s", err)
	}
	defer journal.Close()

	tempPath := filepath.Join(dir, "a.tmp")
	if err := os.WriteFile(tempPath, []byte("partial"), 0644); err != nil {
		t.Fatalf("unable to write temp file: %s", err)
	}
	if _, err := journal.BeginRename("a.txt", tempPath, filepath.Join(dir, "a.txt")); err != nil {
		t.Fatalf("unable to begin rename: %s", err)
	}

	logger, _ := testLogger()
	Housekeep(logger, journal, nil)

	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be removed, stat error: %v", err)
	}
}

// TestHousekeepRunsEvictionForTargets tests that Housekeep invokes the
// CacheEvictor for each target without error.
func TestHousekeepRunsEvictionForTargets(t *testing.T) {
	dir := t.TempDir()
	logger, _ := testLogger()
	entries, err := store.OpenEntryStore(filepath.Join(dir, "entries.db"), logging.NewLogger(logging.LevelError, io.Discard))
	if err != nil {
		t.Fatalf("unable to open store: %s", err)
	}
	defer entries.Close()

	targets := []Target{{
		Budget: cacheevictor.Budget{
			SyncPairID:        "pair",
			LocalDir:          dir,
			Strategy:          cacheevictor.StrategyModifiedTime,
			MaxLocalCacheSize: 1 << 30,
			TargetFreeSpace:   0,
		},
		Entries: entries,
	}}

	Housekeep(logger, nil, targets)
}
