package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/logging"
)

const (
	// schemaMagic identifies the bbolt store's record format. bbolt owns the
	// first bytes of the on-disk file itself, so the magic/version pair from
	// spec §3.1 is recorded in a dedicated meta bucket rather than as
	// literal leading bytes (unlike the recovery journal, which is our own
	// format and does prefix literal bytes — see journal.go).
	schemaMagic   = "DMS1"
	schemaVersion = uint16(1)

	entriesBucket = "entries"
	metaBucket    = "meta"

	metaMagicKey   = "magic"
	metaVersionKey = "version"
)

// EntryStore is the bbolt-backed transactional store for FileEntry records,
// implementing spec §4.1's Store operations. At-most one writer is active
// at a time (bbolt's own single-writer transaction guarantee); readers take
// a concurrent read-only transaction that never blocks the writer beyond a
// bounded critical section.
type EntryStore struct {
	db     *bolt.DB
	path   string
	logger *logging.Logger

	// accessMu guards the in-memory, best-effort accessedAt cache; these
	// updates are not flushed durably on every touch (spec §4.1).
	accessMu sync.Mutex
	access   map[EntryKey]time.Time
}

// OpenEntryStore opens (creating if necessary) the bbolt store at path. If
// the file exists but carries an unrecognized or missing schema version, the
// whole file is moved aside to a quarantine file and a fresh store is opened
// in its place, per spec §4.1's "corrupted records are quarantined, never
// silently discarded" failure mode.
func OpenEntryStore(path string, logger *logging.Logger) (*EntryStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to open store file").With("path", path)
	}

	s := &EntryStore{db: db, path: path, logger: logger, access: make(map[EntryKey]time.Time)}

	if err := s.ensureSchema(); err != nil {
		db.Close()
		if quarantineErr := quarantineFile(path, logger); quarantineErr != nil {
			return nil, dmerrors.Wrap(quarantineErr, dmerrors.CodeStoreError, "unable to quarantine corrupted store")
		}
		db, err = bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
		if err != nil {
			return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to open replacement store file")
		}
		s = &EntryStore{db: db, path: path, logger: logger, access: make(map[EntryKey]time.Time)}
		if err := s.ensureSchema(); err != nil {
			db.Close()
			return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to initialize replacement store")
		}
	}

	return s, nil
}

// ensureSchema creates the required buckets on a fresh store, or verifies
// the recorded schema magic/version on an existing one.
func (s *EntryStore) ensureSchema() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return errors.Wrap(err, "unable to create meta bucket")
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(entriesBucket)); err != nil {
			return errors.Wrap(err, "unable to create entries bucket")
		}

		magic := meta.Get([]byte(metaMagicKey))
		if magic == nil {
			if err := meta.Put([]byte(metaMagicKey), []byte(schemaMagic)); err != nil {
				return err
			}
			return meta.Put([]byte(metaVersionKey), encodeVersion(schemaVersion))
		}

		if string(magic) != schemaMagic {
			return fmt.Errorf("unrecognized store magic %q", magic)
		}
		version := meta.Get([]byte(metaVersionKey))
		if len(version) != 2 || decodeVersion(version) != schemaVersion {
			return fmt.Errorf("unsupported store schema version")
		}
		return nil
	})
}

func encodeVersion(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

func decodeVersion(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// Close closes the underlying bbolt database.
func (s *EntryStore) Close() error {
	return s.db.Close()
}

func keyBytes(key EntryKey) []byte {
	return []byte(key.SyncPairID + "\x00" + key.VirtualPath)
}

// GetEntry retrieves the FileEntry for (syncPairID, virtualPath), or nil if
// none exists.
func (s *EntryStore) GetEntry(syncPairID, virtualPath string) (*FileEntry, error) {
	var entry *FileEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(entriesBucket)).Get(keyBytes(EntryKey{syncPairID, virtualPath}))
		if data == nil {
			return nil
		}
		decoded, err := decodeEntry(data)
		if err != nil {
			return err
		}
		entry = decoded
		return nil
	})
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to read entry")
	}
	if entry != nil {
		s.applyCachedAccess(entry)
	}
	return entry, nil
}

// UpsertEntry writes entry under the store's single-writer transaction,
// after validating its invariants.
func (s *EntryStore) UpsertEntry(entry *FileEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to encode entry")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entriesBucket)).Put(keyBytes(entry.Key()), data)
	})
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to write entry")
	}
	s.clearCachedAccess(entry.Key())
	return nil
}

// DeleteEntry removes the entry for (syncPairID, virtualPath), if present.
func (s *EntryStore) DeleteEntry(syncPairID, virtualPath string) error {
	key := EntryKey{syncPairID, virtualPath}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entriesBucket)).Delete(keyBytes(key))
	})
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to delete entry")
	}
	s.clearCachedAccess(key)
	return nil
}

// UpdateLocation atomically updates an entry's location and path fields and
// bumps modifiedAt, per spec §4.1.
func (s *EntryStore) UpdateLocation(syncPairID, virtualPath string, location Location, localPath, externalPath string) error {
	return s.mutate(syncPairID, virtualPath, func(entry *FileEntry) {
		entry.Location = location
		entry.LocalPath = localPath
		entry.ExternalPath = externalPath
		entry.ModifiedAt = time.Now()
	})
}

// MarkClean clears isDirty on the entry for (syncPairID, virtualPath).
func (s *EntryStore) MarkClean(syncPairID, virtualPath string) error {
	return s.mutate(syncPairID, virtualPath, func(entry *FileEntry) {
		entry.IsDirty = false
	})
}

// MarkDirty sets isDirty and refreshes size/modifiedAt on the entry for
// (syncPairID, virtualPath), creating a localOnly entry if none exists yet.
// VFS calls this on close-after-write (spec §4.4).
func (s *EntryStore) MarkDirty(syncPairID, virtualPath, localPath string, size int64, modifiedAt time.Time) error {
	key := EntryKey{syncPairID, virtualPath}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(entriesBucket))
		data := bucket.Get(keyBytes(key))

		var entry *FileEntry
		if data == nil {
			entry = &FileEntry{
				SyncPairID: syncPairID, VirtualPath: virtualPath,
				Location: LocationLocalOnly, LocalPath: localPath,
				CreatedAt: modifiedAt,
			}
		} else {
			decoded, err := decodeEntry(data)
			if err != nil {
				return err
			}
			entry = decoded
			if entry.Location == LocationNotExists {
				entry.Location = LocationLocalOnly
				entry.LocalPath = localPath
			}
		}
		entry.IsDirty = true
		entry.Size = size
		entry.ModifiedAt = modifiedAt

		if err := entry.Validate(); err != nil {
			return err
		}
		encoded, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return bucket.Put(keyBytes(key), encoded)
	})
	if err != nil {
		if _, ok := err.(*dmerrors.Error); ok {
			return err
		}
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to mark entry dirty")
	}
	s.clearCachedAccess(key)
	return nil
}

// Lock marks the entry syncLocked with the given direction, or returns
// dmerrors.CodeLockBusy if it is already locked and unexpired.
func (s *EntryStore) Lock(syncPairID, virtualPath string, direction LockDirection, now time.Time) error {
	var busy bool
	err := s.mutateErr(syncPairID, virtualPath, func(entry *FileEntry) error {
		if entry.LockState == LockStateSyncLocked && !entry.LockExpired(now) {
			busy = true
			return nil
		}
		entry.LockState = LockStateSyncLocked
		entry.LockDirection = direction
		entry.LockTime = now
		return nil
	})
	if err != nil {
		return err
	}
	if busy {
		return dmerrors.New(dmerrors.CodeLockBusy, "entry is already sync-locked").With("path", virtualPath)
	}
	return nil
}

// Unlock clears the syncLocked state on the entry for (syncPairID,
// virtualPath).
func (s *EntryStore) Unlock(syncPairID, virtualPath string) error {
	return s.mutate(syncPairID, virtualPath, func(entry *FileEntry) {
		entry.LockState = LockStateUnlocked
		entry.LockDirection = ""
		entry.LockTime = time.Time{}
	})
}

// TouchAccess updates accessedAt in memory only; it is flushed to bbolt
// opportunistically by FlushAccess and carries no durability guarantee, per
// spec §4.1.
func (s *EntryStore) TouchAccess(syncPairID, virtualPath string, at time.Time) {
	s.accessMu.Lock()
	defer s.accessMu.Unlock()
	s.access[EntryKey{syncPairID, virtualPath}] = at
}

// FlushAccess writes all pending in-memory accessedAt updates to bbolt. The
// Coordinator calls this periodically (housekeeping) rather than on every
// touch, since accessedAt durability is explicitly best-effort.
func (s *EntryStore) FlushAccess() error {
	s.accessMu.Lock()
	pending := s.access
	s.access = make(map[EntryKey]time.Time)
	s.accessMu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(entriesBucket))
		for key, at := range pending {
			data := bucket.Get(keyBytes(key))
			if data == nil {
				continue
			}
			entry, err := decodeEntry(data)
			if err != nil {
				continue
			}
			entry.AccessedAt = at
			encoded, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := bucket.Put(keyBytes(key), encoded); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *EntryStore) applyCachedAccess(entry *FileEntry) {
	s.accessMu.Lock()
	defer s.accessMu.Unlock()
	if at, ok := s.access[entry.Key()]; ok {
		entry.AccessedAt = at
	}
}

func (s *EntryStore) clearCachedAccess(key EntryKey) {
	s.accessMu.Lock()
	defer s.accessMu.Unlock()
	delete(s.access, key)
}

// mutate reads, mutates, and rewrites a single entry within one write
// transaction. It is a no-op if the entry does not exist.
func (s *EntryStore) mutate(syncPairID, virtualPath string, fn func(*FileEntry)) error {
	return s.mutateErr(syncPairID, virtualPath, func(entry *FileEntry) error {
		fn(entry)
		return nil
	})
}

func (s *EntryStore) mutateErr(syncPairID, virtualPath string, fn func(*FileEntry) error) error {
	key := EntryKey{syncPairID, virtualPath}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(entriesBucket))
		data := bucket.Get(keyBytes(key))
		if data == nil {
			return dmerrors.New(dmerrors.CodeNotFound, "no such entry").With("path", virtualPath)
		}
		entry, err := decodeEntry(data)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
		if err := entry.Validate(); err != nil {
			return err
		}
		encoded, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return bucket.Put(keyBytes(key), encoded)
	})
	if err != nil {
		if _, ok := err.(*dmerrors.Error); ok {
			return err
		}
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to mutate entry")
	}
	return nil
}

// ListEvictable returns every entry for syncPairID with location = both,
// not dirty, and unlocked — the candidate set for CacheEvictor (spec §4.1,
// §4.6).
func (s *EntryStore) ListEvictable(syncPairID string) ([]*FileEntry, error) {
	return s.listWhere(syncPairID, func(entry *FileEntry) bool {
		return entry.Location == LocationBoth && !entry.IsDirty && entry.LockState == LockStateUnlocked
	})
}

// ListDirty returns every dirty entry for syncPairID.
func (s *EntryStore) ListDirty(syncPairID string) ([]*FileEntry, error) {
	return s.listWhere(syncPairID, func(entry *FileEntry) bool {
		return entry.IsDirty
	})
}

// ListAll returns every entry for syncPairID, sorted by virtual path.
func (s *EntryStore) ListAll(syncPairID string) ([]*FileEntry, error) {
	return s.listWhere(syncPairID, func(*FileEntry) bool { return true })
}

func (s *EntryStore) listWhere(syncPairID string, predicate func(*FileEntry) bool) ([]*FileEntry, error) {
	var results []*FileEntry
	prefix := []byte(syncPairID + "\x00")
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(entriesBucket)).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			entry, err := decodeEntry(v)
			if err != nil {
				return err
			}
			if predicate(entry) {
				results = append(results, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to list entries")
	}
	sort.Slice(results, func(i, j int) bool { return results[i].VirtualPath < results[j].VirtualPath })
	return results, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func decodeEntry(data []byte) (*FileEntry, error) {
	entry := &FileEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to decode entry record")
	}
	return entry, nil
}

// quarantineFile moves a corrupted store file aside so it is never silently
// discarded, per spec §4.1's failure mode.
func quarantineFile(path string, logger *logging.Logger) error {
	quarantinePath := fmt.Sprintf("%s.quarantined-%d", path, time.Now().UnixNano())
	if err := os.Rename(path, quarantinePath); err != nil {
		return err
	}
	logger.Warnf("quarantined corrupted store file %s to %s", path, quarantinePath)
	return nil
}
