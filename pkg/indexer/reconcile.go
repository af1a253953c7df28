package indexer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/driftmirror/driftmirror/pkg/filesystem"
	"github.com/driftmirror/driftmirror/pkg/filter"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// Progress reports incremental scan progress over the IndexProgress channel
// described in spec §5.
type Progress struct {
	SyncPairID   string
	LocalEntries int
	ExternalEntries int
	Done         bool
	Err          error
}

// Pair describes the filesystem roots and configuration an Indexer run scans
// for one sync pair.
type Pair struct {
	SyncPairID     string
	LocalDir       string
	ExternalDir    string
	ExternalOnline bool
	AllowPull      bool
	Rules          *filter.Rules
}

// Indexer performs the breadth-first dual-tree walk and Store reconciliation
// of spec §4.3.
type Indexer struct {
	store  *store.EntryStore
	logger *logging.Logger
}

// New creates an Indexer backed by the given EntryStore.
func New(entries *store.EntryStore, logger *logging.Logger) *Indexer {
	return &Indexer{store: entries, logger: logger.Sublogger("indexer")}
}

// Run performs one indexing pass for the pair, publishing Progress events on
// the (optional) progress channel as it completes each side's walk. It
// returns the number of FileEntry records reconciled.
func (idx *Indexer) Run(ctx context.Context, pair Pair, progress chan<- Progress) (int, error) {
	local := NewSnapshot()
	if err := scanSide(pair.LocalDir, pair.Rules, local); err != nil {
		return 0, err
	}
	emit(progress, Progress{SyncPairID: pair.SyncPairID, LocalEntries: len(local.Entries)})

	external := NewSnapshot()
	if pair.ExternalOnline && pair.ExternalDir != "" {
		if err := scanSide(pair.ExternalDir, pair.Rules, external); err != nil {
			return 0, err
		}
	}
	emit(progress, Progress{
		SyncPairID:      pair.SyncPairID,
		LocalEntries:    len(local.Entries),
		ExternalEntries: len(external.Entries),
	})

	reconciled, err := idx.reconcile(ctx, pair, local, external)
	emit(progress, Progress{SyncPairID: pair.SyncPairID, Done: true, Err: err})
	return reconciled, err
}

func emit(progress chan<- Progress, p Progress) {
	if progress == nil {
		return
	}
	select {
	case progress <- p:
	default:
	}
}

// ScanDir walks root and returns a Snapshot of every entry that survives
// rules, for use by any caller needing a raw directory scan (the SyncEngine
// scan phase of spec §4.5 step 1 reuses this rather than re-walking).
func ScanDir(root string, rules *filter.Rules) (*Snapshot, error) {
	snapshot := NewSnapshot()
	if err := scanSide(root, rules, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// scanSide walks root and records every entry that survives the pair's
// filter rules into snapshot.
func scanSide(root string, rules *filter.Rules, snapshot *Snapshot) error {
	if root == "" {
		return nil
	}
	return filesystem.Walk(root, func(entry filesystem.WalkEntry) error {
		name := filepath.Base(entry.VirtualPath)
		if !included(rules, entry.VirtualPath, name, entry.Info.Size(), entry.Info.IsDir()) {
			return nil
		}
		snapshot.Entries[entry.VirtualPath] = fromFileInfo(entry.Info)
		return nil
	})
}

// reconcile merges the local and external snapshots against the Store per
// the rules in spec §4.3, upserting FileEntry records and deleting Store
// records for paths absent from both snapshots.
func (idx *Indexer) reconcile(ctx context.Context, pair Pair, local, external *Snapshot) (int, error) {
	now := time.Now()
	seen := make(map[string]bool, len(local.Entries)+len(external.Entries))
	count := 0

	for virtualPath := range local.Entries {
		seen[virtualPath] = true
	}
	for virtualPath := range external.Entries {
		seen[virtualPath] = true
	}

	for virtualPath := range seen {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		localEntry, hasLocal := local.Entries[virtualPath]
		externalEntry, hasExternal := external.Entries[virtualPath]

		entry := &store.FileEntry{
			SyncPairID:  pair.SyncPairID,
			VirtualPath: virtualPath,
			ModifiedAt:  now,
		}

		switch {
		case hasLocal && !hasExternal:
			entry.Location = store.LocationLocalOnly
			entry.LocalPath = filepath.Join(pair.LocalDir, filepath.FromSlash(virtualPath))
			entry.Size = localEntry.Size
			entry.IsDirectory = localEntry.IsDirectory
		case !hasLocal && hasExternal:
			entry.Location = store.LocationExternalOnly
			entry.ExternalPath = filepath.Join(pair.ExternalDir, filepath.FromSlash(virtualPath))
			entry.Size = externalEntry.Size
			entry.IsDirectory = externalEntry.IsDirectory
		case hasLocal && hasExternal:
			entry.Location = store.LocationBoth
			entry.LocalPath = filepath.Join(pair.LocalDir, filepath.FromSlash(virtualPath))
			entry.ExternalPath = filepath.Join(pair.ExternalDir, filepath.FromSlash(virtualPath))
			entry.Size = localEntry.Size
			entry.IsDirectory = localEntry.IsDirectory
			if !quickCompareEqual(localEntry, externalEntry) {
				entry.IsDirty = !entry.IsDirectory
			}
		default:
			// Absent from both sides but present in the Store: delete it.
			if err := idx.store.DeleteEntry(pair.SyncPairID, virtualPath); err != nil {
				return count, err
			}
			continue
		}

		if err := idx.store.UpsertEntry(entry); err != nil {
			return count, err
		}
		count++
	}

	// Store records absent from both snapshots are deleted; while the external
	// side is unscanned, only localOnly records are considered.
	externalScanned := pair.ExternalOnline && pair.ExternalDir != ""
	stored, err := idx.store.ListAll(pair.SyncPairID)
	if err != nil {
		return count, err
	}
	for _, record := range stored {
		if seen[record.VirtualPath] || (!externalScanned && record.Location != store.LocationLocalOnly) {
			continue
		}
		if err := idx.store.DeleteEntry(pair.SyncPairID, record.VirtualPath); err != nil {
			return count, err
		}
	}

	return count, nil
}
