package store

import (
	"path/filepath"
	"testing"
)

func TestJournalReplayFindsUncommittedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}

	pending1, err := j.BeginRename("a.txt", "/dest/.tmp-a", "/dest/a.txt")
	if err != nil {
		t.Fatalf("BeginRename failed: %v", err)
	}
	if _, err := j.BeginRename("b.txt", "/dest/.tmp-b", "/dest/b.txt"); err != nil {
		t.Fatalf("BeginRename failed: %v", err)
	}
	if err := pending1.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen OpenJournal failed: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.Replay()
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 pending record after commit, got %d", len(records))
	}
	if records[0].VirtualPath != "b.txt" {
		t.Errorf("expected pending record for b.txt, got %+v", records[0])
	}
}

func TestJournalEmptyReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	defer j.Close()

	records, err := j.Replay()
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
