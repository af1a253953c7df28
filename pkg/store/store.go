package store

import (
	"path/filepath"

	"github.com/driftmirror/driftmirror/pkg/logging"
)

// Store combines the bbolt-backed FileEntry store, the sqlite-backed
// history/statistics database, and the recovery journal into the single
// persistence component described in spec §4.1. It is the only component
// that directly owns persistent records (spec §3, "Ownership").
type Store struct {
	Entries *EntryStore
	History *HistoryStore
	Journal *Journal
}

// Open opens (creating as necessary) the three files that make up a
// Store's persisted layout within dataDir: store.db (bbolt), history.db
// (sqlite), and journal.log (recovery journal), per spec §6.2.
func Open(dataDir string, logger *logging.Logger) (*Store, error) {
	entries, err := OpenEntryStore(filepath.Join(dataDir, "store.db"), logger)
	if err != nil {
		return nil, err
	}

	history, err := OpenHistoryStore(filepath.Join(dataDir, "history.db"))
	if err != nil {
		entries.Close()
		return nil, err
	}

	journal, err := OpenJournal(filepath.Join(dataDir, "journal.log"))
	if err != nil {
		entries.Close()
		history.Close()
		return nil, err
	}

	return &Store{Entries: entries, History: history, Journal: journal}, nil
}

// Close closes all three underlying stores, flushing any pending in-memory
// accessedAt updates first.
func (s *Store) Close() error {
	flushErr := s.Entries.FlushAccess()
	journalErr := s.Journal.Close()
	entriesErr := s.Entries.Close()
	historyErr := s.History.Close()

	for _, err := range []error{flushErr, journalErr, entriesErr, historyErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
