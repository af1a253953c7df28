// Package vfs implements the VFS of spec §4.4: for each mounted sync pair it
// presents targetDir as a filesystem, dispatching POSIX-shaped operations to
// local or external storage based on the FileEntry's location and lock
// state. Dispatch logic is factored into Dispatcher, which depends only on
// the Backend interface and pkg/store, so it is testable against a mock
// backend without a real mount (spec §9).
package vfs

import (
	"context"
	"io"
	"os"
	"path"
	"sort"
	"time"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/pathguard"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// WriteWaitTimeout is how long open(write) blocks for an in-progress
// localToExternal sync lock to clear before returning EBUSY (spec §5).
const WriteWaitTimeout = 5 * time.Second

// Attr is the metadata VFS reports for lookup/getattr.
type Attr struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// DirEntry is one entry returned by Readdir.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Dispatcher implements the VFS operation table of spec §4.4 for a single
// mounted sync pair.
type Dispatcher struct {
	syncPairID     string
	entries        *store.EntryStore
	backend        Backend
	externalOnline func() bool
	events         chan<- DirtyFile
	now            func() time.Time
}

// Options configures a Dispatcher.
type Options struct {
	SyncPairID     string
	Entries        *store.EntryStore
	Backend        Backend
	ExternalOnline func() bool
	Events         chan<- DirtyFile
}

// New creates a Dispatcher for one mounted sync pair.
func New(opts Options) *Dispatcher {
	online := opts.ExternalOnline
	if online == nil {
		online = func() bool { return true }
	}
	return &Dispatcher{
		syncPairID:     opts.SyncPairID,
		entries:        opts.Entries,
		backend:        opts.Backend,
		externalOnline: online,
		events:         opts.Events,
		now:            time.Now,
	}
}

// Lookup implements lookup/getattr: read the Store entry; if syncLocked,
// serve metadata from the side being read from (syncSourcePath); if
// location=both, prefer local.
func (d *Dispatcher) Lookup(ctx context.Context, virtualPath string) (Attr, error) {
	virtualPath, err := pathguard.ValidateVirtual(virtualPath)
	if err != nil {
		return Attr{}, err
	}

	entry, err := d.entries.GetEntry(d.syncPairID, virtualPath)
	if err != nil {
		return Attr{}, err
	}
	if entry == nil {
		return Attr{}, dmerrors.New(dmerrors.CodeNotFound, "no such entry").With("path", virtualPath)
	}

	if entry.LockState == store.LockStateSyncLocked {
		if entry.LockDirection == store.LockDirectionExternalToLocal {
			return d.statExternal(virtualPath, entry)
		}
		return d.statLocal(virtualPath, entry)
	}

	if entry.Location == store.LocationLocalOnly || entry.Location == store.LocationBoth {
		return d.statLocal(virtualPath, entry)
	}
	return d.statExternal(virtualPath, entry)
}

func (d *Dispatcher) statLocal(virtualPath string, entry *store.FileEntry) (Attr, error) {
	info, err := d.backend.StatLocal(virtualPath)
	if err != nil {
		return Attr{}, dmerrors.Wrap(err, dmerrors.CodeNotFound, "unable to stat local path").With("path", virtualPath)
	}
	return attrFromFileInfo(info), nil
}

func (d *Dispatcher) statExternal(virtualPath string, entry *store.FileEntry) (Attr, error) {
	info, err := d.backend.StatExternal(virtualPath)
	if err != nil {
		return Attr{}, dmerrors.Wrap(err, dmerrors.CodeNotFound, "unable to stat external path").With("path", virtualPath)
	}
	return attrFromFileInfo(info), nil
}

func attrFromFileInfo(info os.FileInfo) Attr {
	return Attr{Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}
}

// Readdir implements readdir: merge the local directory listing with Store
// entries whose parent matches this directory and location ∈ {externalOnly,
// both}, de-duplicating by name.
func (d *Dispatcher) Readdir(ctx context.Context, virtualPath string) ([]DirEntry, error) {
	virtualPath, err := pathguard.ValidateVirtual(virtualPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var result []DirEntry

	localInfos, err := d.backend.ReadDirLocal(virtualPath)
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to read local directory").With("path", virtualPath)
	}
	for _, info := range localInfos {
		if seen[info.Name()] {
			continue
		}
		seen[info.Name()] = true
		result = append(result, DirEntry{Name: info.Name(), IsDir: info.IsDir()})
	}

	allEntries, err := d.entries.ListAll(d.syncPairID)
	if err != nil {
		return nil, err
	}
	for _, entry := range allEntries {
		if path.Dir(entry.VirtualPath) != virtualPath {
			continue
		}
		if entry.Location != store.LocationExternalOnly && entry.Location != store.LocationBoth {
			continue
		}
		name := path.Base(entry.VirtualPath)
		if seen[name] {
			continue
		}
		seen[name] = true
		result = append(result, DirEntry{Name: name, IsDir: entry.IsDirectory})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// OpenRead implements open(read). If location ∈ {localOnly, both}, opens
// local. If externalOnly and external is online, opens external and begins
// a streaming copy-in to local. If syncLocked, opens syncSourcePath.
func (d *Dispatcher) OpenRead(ctx context.Context, virtualPath string) (io.ReadCloser, error) {
	virtualPath, err := pathguard.ValidateVirtual(virtualPath)
	if err != nil {
		return nil, err
	}

	entry, err := d.entries.GetEntry(d.syncPairID, virtualPath)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, dmerrors.New(dmerrors.CodeNotFound, "no such entry").With("path", virtualPath)
	}

	if entry.LockState == store.LockStateSyncLocked {
		if entry.LockDirection == store.LockDirectionExternalToLocal {
			return d.backend.OpenExternal(virtualPath)
		}
		return d.backend.OpenLocal(virtualPath)
	}

	switch entry.Location {
	case store.LocationLocalOnly, store.LocationBoth:
		return d.backend.OpenLocal(virtualPath)
	case store.LocationExternalOnly:
		if !d.externalOnline() {
			return nil, dmerrors.New(dmerrors.CodeDiskNotConnected, "external volume is not connected").With("path", virtualPath)
		}
		reader, err := d.backend.OpenExternal(virtualPath)
		if err != nil {
			return nil, err
		}
		go d.backend.CopyExternalToLocal(context.Background(), virtualPath)
		return reader, nil
	default:
		return nil, dmerrors.New(dmerrors.CodeNotFound, "entry does not exist").With("path", virtualPath)
	}
}

// OpenWrite implements open(write): if syncLocked with
// lockDirection=localToExternal, blocks up to WriteWaitTimeout for unlock,
// returning EBUSY on timeout; otherwise opens local, creating parent
// entries as needed. The returned WriteCloser marks the entry dirty on
// Close, per the write/close rule.
func (d *Dispatcher) OpenWrite(ctx context.Context, virtualPath string) (io.WriteCloser, error) {
	virtualPath, err := pathguard.ValidateVirtual(virtualPath)
	if err != nil {
		return nil, err
	}

	if err := d.waitForUnlock(ctx, virtualPath); err != nil {
		return nil, err
	}

	writer, err := d.backend.CreateLocal(virtualPath)
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to open local path for write").With("path", virtualPath)
	}

	return &dirtyOnCloseWriter{
		WriteCloser: writer,
		commit: func() {
			d.commitWrite(virtualPath)
		},
	}, nil
}

func (d *Dispatcher) waitForUnlock(ctx context.Context, virtualPath string) error {
	deadline := d.now().Add(WriteWaitTimeout)
	for {
		entry, err := d.entries.GetEntry(d.syncPairID, virtualPath)
		if err != nil {
			return err
		}
		if entry == nil || entry.LockState != store.LockStateSyncLocked ||
			entry.LockDirection != store.LockDirectionLocalToExternal || entry.LockExpired(d.now()) {
			return nil
		}
		if d.now().After(deadline) {
			return dmerrors.New(dmerrors.CodeLockBusy, "timed out waiting for sync lock to clear").With("path", virtualPath)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// commitWrite marks the entry dirty and publishes a DirtyFile event,
// implementing the write/close rule.
func (d *Dispatcher) commitWrite(virtualPath string) {
	info, err := d.backend.StatLocal(virtualPath)
	if err != nil {
		return
	}
	localPath := d.backend.LocalPath(virtualPath)
	now := d.now()
	if err := d.entries.MarkDirty(d.syncPairID, virtualPath, localPath, info.Size(), info.ModTime()); err != nil {
		return
	}
	d.publish(DirtyFile{VirtualPath: virtualPath, LocalPath: localPath, CreatedAt: now, ModifiedAt: info.ModTime()})
}

func (d *Dispatcher) publish(event DirtyFile) {
	if d.events == nil {
		return
	}
	select {
	case d.events <- event:
	default:
	}
}

// dirtyOnCloseWriter wraps a Backend-provided WriteCloser and invokes commit
// once the caller closes it successfully.
type dirtyOnCloseWriter struct {
	io.WriteCloser
	commit func()
}

func (w *dirtyOnCloseWriter) Close() error {
	err := w.WriteCloser.Close()
	if err == nil {
		w.commit()
	}
	return err
}

// Unlink implements unlink: apply to local, update the Store, and if
// location=both mark the entry so the external side is deleted/renamed on
// the next sync (it degrades to externalOnly so the next Indexer/SyncEngine
// pass observes "missing locally").
func (d *Dispatcher) Unlink(ctx context.Context, virtualPath string) error {
	virtualPath, err := pathguard.ValidateVirtual(virtualPath)
	if err != nil {
		return err
	}

	entry, err := d.entries.GetEntry(d.syncPairID, virtualPath)
	if err != nil {
		return err
	}
	if err := d.backend.RemoveLocal(virtualPath); err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to remove local file").With("path", virtualPath)
	}
	if entry == nil {
		return nil
	}

	if entry.Location == store.LocationBoth {
		return d.entries.UpdateLocation(d.syncPairID, virtualPath, store.LocationExternalOnly, "", entry.ExternalPath)
	}
	return d.entries.DeleteEntry(d.syncPairID, virtualPath)
}

// Rename implements rename: apply to local, then re-key the Store entry.
func (d *Dispatcher) Rename(ctx context.Context, oldVirtualPath, newVirtualPath string) error {
	oldVirtualPath, err := pathguard.ValidateVirtual(oldVirtualPath)
	if err != nil {
		return err
	}
	newVirtualPath, err = pathguard.ValidateVirtual(newVirtualPath)
	if err != nil {
		return err
	}

	entry, err := d.entries.GetEntry(d.syncPairID, oldVirtualPath)
	if err != nil {
		return err
	}
	if err := d.backend.RenameLocal(oldVirtualPath, newVirtualPath); err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to rename local file").With("path", oldVirtualPath)
	}
	if entry == nil {
		return nil
	}

	renamed := *entry
	renamed.VirtualPath = newVirtualPath
	renamed.LocalPath = d.backend.LocalPath(newVirtualPath)
	if renamed.Location == store.LocationBoth {
		// The external side still needs renaming on the next sync; until
		// then this record only reflects the local rename.
		renamed.Location = store.LocationLocalOnly
		renamed.ExternalPath = ""
	}
	if err := d.entries.UpsertEntry(&renamed); err != nil {
		return err
	}
	return d.entries.DeleteEntry(d.syncPairID, oldVirtualPath)
}

// Mkdir implements mkdir: create locally and upsert a directory entry.
func (d *Dispatcher) Mkdir(ctx context.Context, virtualPath string) error {
	virtualPath, err := pathguard.ValidateVirtual(virtualPath)
	if err != nil {
		return err
	}
	if err := d.backend.MkdirLocal(virtualPath); err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to create local directory").With("path", virtualPath)
	}
	now := d.now()
	return d.entries.UpsertEntry(&store.FileEntry{
		SyncPairID: d.syncPairID, VirtualPath: virtualPath,
		LocalPath: d.backend.LocalPath(virtualPath),
		Location:  store.LocationLocalOnly,
		IsDirectory: true, CreatedAt: now, ModifiedAt: now,
	})
}
