package coordinator

import (
	"context"
	"time"

	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/indexer"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// MountInfo summarizes one mounted sync pair, per spec §6.1's
// "getAllMounts() → [MountInfo]".
type MountInfo struct {
	SyncPairID     string
	TargetDir      string
	ExternalOnline bool
	ReadOnly       bool
	Paused         bool
}

// GetMountStatus reports whether syncPairID is currently mounted, per spec
// §6.1's "getMountStatus(syncPairId) → bool".
func (c *Coordinator) GetMountStatus(syncPairID string) bool {
	_, err := c.pair(syncPairID)
	return err == nil
}

// GetAllMounts reports MountInfo for every currently mounted sync pair.
func (c *Coordinator) GetAllMounts() []MountInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	infos := make([]MountInfo, 0, len(c.pairs))
	for id, p := range c.pairs {
		infos = append(infos, MountInfo{
			SyncPairID:     id,
			TargetDir:      p.config.LocalPath,
			ExternalOnline: p.isExternalOnline(),
			ReadOnly:       p.isReadOnly(),
			Paused:         p.isPaused(),
		})
	}
	return infos
}

// GetFileStatus returns the FileEntry for (syncPairID, virtualPath), per
// spec §6.1's "getFileStatus(syncPairId, virtualPath) → FileEntry?".
func (c *Coordinator) GetFileStatus(syncPairID, virtualPath string) (*store.FileEntry, error) {
	return c.store.Entries.GetEntry(syncPairID, virtualPath)
}

// UpdateExternalPath implements spec §6.1's "updateExternalPath".
func (c *Coordinator) UpdateExternalPath(syncPairID, newPath string) error {
	p, err := c.pair(syncPairID)
	if err != nil {
		return err
	}
	p.updateExternalPath(newPath)
	return nil
}

// SetReadOnly implements spec §6.1's "setReadOnly".
func (c *Coordinator) SetReadOnly(syncPairID string, readOnly bool) error {
	p, err := c.pair(syncPairID)
	if err != nil {
		return err
	}
	p.setReadOnly(readOnly)
	return nil
}

// RebuildIndex implements spec §6.1's "rebuildIndex(syncPairId)": it
// re-runs the Indexer against the pair's current on-disk state.
func (c *Coordinator) RebuildIndex(ctx context.Context, syncPairID string) error {
	p, err := c.pair(syncPairID)
	if err != nil {
		return err
	}
	_, err = c.index.Run(ctx, indexerPairFor(p), nil)
	if err == nil {
		c.events.publish(Event{Kind: EventIndexReady, SyncPairID: syncPairID})
	}
	return err
}

// IndexStats summarizes the reconciled state of one sync pair's entries,
// per spec §6.1's "getIndexStats → IndexStats".
type IndexStats struct {
	TotalEntries int
	DirtyCount   int
}

// GetIndexStats implements spec §6.1's "getIndexStats".
func (c *Coordinator) GetIndexStats(syncPairID string) (*IndexStats, error) {
	all, err := c.store.Entries.ListAll(syncPairID)
	if err != nil {
		return nil, err
	}
	stats := &IndexStats{TotalEntries: len(all)}
	for _, entry := range all {
		if entry.IsDirty {
			stats.DirtyCount++
		}
	}
	return stats, nil
}

// SyncNow implements spec §6.1's "syncNow(syncPairId)": it runs (and waits
// for) an immediate sync, bypassing the debounce window.
func (c *Coordinator) SyncNow(ctx context.Context, syncPairID string) error {
	p, err := c.pair(syncPairID)
	if err != nil {
		return err
	}
	c.triggerSync(ctx, p)
	return nil
}

// SyncAll implements spec §6.1's "syncAll()".
func (c *Coordinator) SyncAll(ctx context.Context) error {
	for _, id := range c.MountedPairs() {
		if err := c.SyncNow(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// SyncFile implements spec §6.1's "syncFile(virtualPath, syncPairId)": it
// marks the single file dirty and triggers an immediate sync of the whole
// pair, since SyncEngine runs operate over a pair's full Plan rather than a
// single path.
func (c *Coordinator) SyncFile(ctx context.Context, syncPairID, virtualPath string) error {
	entry, err := c.store.Entries.GetEntry(syncPairID, virtualPath)
	if err != nil {
		return err
	}
	if entry == nil {
		return dmerrors.New(dmerrors.CodeNotFound, "file is not indexed").With("virtualPath", virtualPath)
	}
	if err := c.store.Entries.MarkDirty(syncPairID, virtualPath, entry.LocalPath, entry.Size, time.Now()); err != nil {
		return err
	}
	return c.SyncNow(ctx, syncPairID)
}

// PauseSync implements spec §6.1's "pauseSync": debounced and periodic
// triggers become no-ops until ResumeSync is called.
func (c *Coordinator) PauseSync(syncPairID string) error {
	p, err := c.pair(syncPairID)
	if err != nil {
		return err
	}
	p.setPaused(true)
	return nil
}

// ResumeSync implements spec §6.1's "resumeSync".
func (c *Coordinator) ResumeSync(syncPairID string) error {
	p, err := c.pair(syncPairID)
	if err != nil {
		return err
	}
	p.setPaused(false)
	return nil
}

// CancelSync implements spec §6.1's "cancelSync" / spec §4.7's "task
// cancellation": it cancels the pair's scheduling context and restarts it,
// invalidating any debounce timer currently pending and letting the
// in-flight SyncEngine run observe cancellation on its next checkpoint.
func (c *Coordinator) CancelSync(syncPairID string) error {
	p, err := c.pair(syncPairID)
	if err != nil {
		return err
	}
	p.cancel()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(2)
	go p.debounceLoop(ctx)
	go p.periodicLoop(ctx)
	return nil
}

// GetSyncStatus reports a pair's current paused/online state, per spec
// §6.1's "getSyncStatus".
func (c *Coordinator) GetSyncStatus(syncPairID string) (*MountInfo, error) {
	p, err := c.pair(syncPairID)
	if err != nil {
		return nil, err
	}
	return &MountInfo{
		SyncPairID:     syncPairID,
		TargetDir:      p.config.LocalPath,
		ExternalOnline: p.isExternalOnline(),
		ReadOnly:       p.isReadOnly(),
		Paused:         p.isPaused(),
	}, nil
}

// GetAllSyncStatus implements spec §6.1's "getAllSyncStatus".
func (c *Coordinator) GetAllSyncStatus() []MountInfo {
	return c.GetAllMounts()
}

// GetPendingQueue implements spec §6.1's "getPendingQueue": it is an alias
// for the dirty-file queue, since driftmirror has no separate pending-task
// structure beyond the Store's dirty bit.
func (c *Coordinator) GetPendingQueue(syncPairID string) ([]*store.FileEntry, error) {
	return c.store.Entries.ListDirty(syncPairID)
}

// GetDirtyFiles implements spec §6.1's "getDirtyFiles".
func (c *Coordinator) GetDirtyFiles(syncPairID string) ([]*store.FileEntry, error) {
	return c.store.Entries.ListDirty(syncPairID)
}

// MarkFileDirty implements spec §6.1's "markFileDirty".
func (c *Coordinator) MarkFileDirty(syncPairID, virtualPath string) error {
	entry, err := c.store.Entries.GetEntry(syncPairID, virtualPath)
	if err != nil {
		return err
	}
	if entry == nil {
		return dmerrors.New(dmerrors.CodeNotFound, "file is not indexed").With("virtualPath", virtualPath)
	}
	return c.store.Entries.MarkDirty(syncPairID, virtualPath, entry.LocalPath, entry.Size, time.Now())
}

// ClearFileDirty implements spec §6.1's "clearFileDirty".
func (c *Coordinator) ClearFileDirty(syncPairID, virtualPath string) error {
	return c.store.Entries.MarkClean(syncPairID, virtualPath)
}

// GetSyncHistory implements spec §6.1's "getSyncHistory(limit)".
func (c *Coordinator) GetSyncHistory(ctx context.Context, syncPairID string, limit int) ([]*store.SyncHistory, error) {
	return c.store.History.GetHistory(ctx, syncPairID, limit)
}

// GetSyncStatistics implements spec §6.1's "getSyncStatistics".
func (c *Coordinator) GetSyncStatistics(ctx context.Context, syncPairID, startDate, endDate string) ([]*store.SyncStatistics, error) {
	return c.store.History.GetStatistics(ctx, syncPairID, startDate, endDate)
}

// AddDisk implements spec §6.1's "addDisk": it is a pass-through
// configuration mutation; the Coordinator does not itself persist
// configuration, leaving that to pkg/config.Save via the RPC layer's
// config-document round trip.
func (c *Coordinator) AddDisk(doc *config.Document, disk config.Disk) (*config.Document, error) {
	updated := *doc
	updated.Disks = append(append([]config.Disk{}, doc.Disks...), disk)
	if err := config.Validate(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddSyncPair implements spec §6.1's "addSyncPair".
func (c *Coordinator) AddSyncPair(doc *config.Document, pair config.SyncPair) (*config.Document, error) {
	updated := *doc
	updated.SyncPairs = append(append([]config.SyncPair{}, doc.SyncPairs...), pair)
	if err := config.Validate(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// PrepareForShutdown implements spec §6.1's "prepareForShutdown()": it
// begins refusing new tasks without yet tearing down mounts, so that a
// subsequent daemon stop can proceed straight to Shutdown.
func (c *Coordinator) PrepareForShutdown() {
	c.mu.Lock()
	c.shuttingDown = true
	c.mu.Unlock()
}

func indexerPairFor(p *mountedPair) indexer.Pair {
	return indexer.Pair{
		SyncPairID:     p.config.ID,
		LocalDir:       p.config.LocalPath,
		ExternalDir:    p.config.ExternalRelativePath,
		ExternalOnline: p.isExternalOnline(),
		Rules:          p.rules,
	}
}
