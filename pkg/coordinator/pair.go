package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/filter"
	"github.com/driftmirror/driftmirror/pkg/indexer"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/state"
	"github.com/driftmirror/driftmirror/pkg/syncengine"
	"github.com/driftmirror/driftmirror/pkg/vfs"
)

// mountedPair is the Coordinator's per-sync-pair runtime state: the VFS
// mount, the debounce coalescer that turns bursts of write-close/external
// events into a single scheduled run (spec §4.7), the periodic sync timer,
// and the external-volume watcher.
type mountedPair struct {
	config config.SyncPair

	coordinator *Coordinator
	logger      *logging.Logger

	dispatcher *vfs.Dispatcher
	fuseServer vfsUnmounter
	dirty      chan vfs.DirtyFile

	debounce *state.Coalescer
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu             sync.Mutex
	externalOnline bool
	readOnly       bool
	paused         bool
	watcher        *fsnotify.Watcher

	rules *filter.Rules
}

// vfsUnmounter is satisfied by *fuse.Server; declared as an interface so
// tests can mount without a real FUSE session.
type vfsUnmounter interface {
	Unmount() error
}

// Mount starts the VFS for pair, registers its debounce scheduler and
// periodic timer, and begins watching its external volume for
// connect/disconnect events, implementing the "mount" RPC of spec §6.1.
func (c *Coordinator) Mount(ctx context.Context, pair config.SyncPair) error {
	c.mu.Lock()
	if _, exists := c.pairs[pair.ID]; exists {
		c.mu.Unlock()
		return dmerrors.New(dmerrors.CodeInvalidConfig, "sync pair is already mounted").With("syncPairId", pair.ID)
	}
	c.mu.Unlock()

	rules, err := filter.Compile(filter.Options{
		IncludePatterns: pair.IncludePatterns,
		ExcludePatterns: pair.ExcludePatterns,
	})
	if err != nil {
		return err
	}

	dirty := make(chan vfs.DirtyFile, 64)
	externalDir := pair.ExternalRelativePath

	p := &mountedPair{
		config:         pair,
		coordinator:    c,
		logger:         c.logger.Sublogger("pair-" + pair.ID),
		dirty:          dirty,
		debounce:       state.NewCoalescer(debounceWindow(pair)),
		externalOnline: true,
		rules:          rules,
	}

	backend := vfs.NewOSBackend(pair.LocalPath, externalDir)
	p.dispatcher = vfs.New(vfs.Options{
		SyncPairID:     pair.ID,
		Entries:        c.store.Entries,
		Backend:        backend,
		ExternalOnline: p.isExternalOnline,
		Events:         dirty,
	})

	server, err := vfs.Mount(pair.LocalPath, p.dispatcher)
	if err != nil {
		p.debounce.Terminate()
		return dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to mount VFS").With("syncPairId", pair.ID)
	}
	p.fuseServer = server

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	if watcher, err := watcherForDisk(externalDir); err == nil {
		p.watcher = watcher
	} else {
		p.logger.Warnf("unable to watch external volume for %s: %s", pair.ID, err)
	}

	c.mu.Lock()
	c.pairs[pair.ID] = p
	c.mu.Unlock()

	p.wg.Add(3)
	go p.debounceLoop(runCtx)
	go p.periodicLoop(runCtx)
	go p.watchLoop(runCtx)

	return nil
}

// Unmount tears down pair's VFS and cancels its scheduling Goroutines,
// implementing spec §6.1's "unmount" RPC ("pending writes are drained").
func (c *Coordinator) Unmount(syncPairID string) error {
	c.mu.Lock()
	p, ok := c.pairs[syncPairID]
	if !ok {
		c.mu.Unlock()
		return dmerrors.New(dmerrors.CodeNotFound, "sync pair is not mounted").With("syncPairId", syncPairID)
	}
	delete(c.pairs, syncPairID)
	c.mu.Unlock()

	p.stop()
	return nil
}

// UnmountAll tears down every mounted sync pair.
func (c *Coordinator) UnmountAll() error {
	for _, id := range c.MountedPairs() {
		if err := c.Unmount(id); err != nil {
			return err
		}
	}
	return nil
}

// stop cancels the pair's background loops and unmounts its VFS. It is
// idempotent-safe to call at most once per mountedPair.
func (p *mountedPair) stop() {
	p.cancel()
	p.debounce.Terminate()
	if p.watcher != nil {
		p.watcher.Close()
	}
	p.wg.Wait()
	if p.fuseServer != nil {
		if err := p.fuseServer.Unmount(); err != nil {
			p.logger.Warnf("unable to unmount %s cleanly: %s", p.config.ID, err)
		}
	}
}

func (p *mountedPair) isExternalOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.externalOnline
}

// SetExternalOffline implements spec §6.1's "setExternalOffline" RPC: marks
// the pair's external side offline (reads fall back to local-only) or
// online (triggering a re-index and sync), per spec §4.7's external-volume
// event handling.
func (c *Coordinator) SetExternalOffline(syncPairID string, offline bool) error {
	p, err := c.pair(syncPairID)
	if err != nil {
		return err
	}
	p.setExternalOnline(!offline)
	return nil
}

func (p *mountedPair) setExternalOnline(online bool) {
	p.mu.Lock()
	wasOnline := p.externalOnline
	p.externalOnline = online
	p.mu.Unlock()

	if online && !wasOnline {
		p.logger.Infof("external volume for %s reconnected", p.config.ID)
		p.coordinator.reindexAndSync(p)
	} else if !online && wasOnline {
		p.logger.Infof("external volume for %s disconnected", p.config.ID)
	}
}

// debounceWindow returns the debounce delay used for a pair. It always
// returns defaultDebounceWindow; the configuration document's
// advanced.debounceDelay is not read.
func debounceWindow(pair config.SyncPair) time.Duration {
	return defaultDebounceWindow
}

// debounceLoop consumes the pair's Coalescer events and submits a sync run
// for each, implementing spec §4.7's "debounced sync scheduling".
func (p *mountedPair) debounceLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case dirty, ok := <-p.dirty:
			if !ok {
				return
			}
			_ = dirty
			p.debounce.Strobe()
		case <-p.debounce.Events():
			p.coordinator.triggerSync(ctx, p)
		}
	}
}

// periodicLoop runs a sync every defaultSyncInterval (3600 s) regardless of
// dirty-event activity, implementing spec §4.7's "periodic sync" timer. The
// interval is the same for every pair and is not read from configuration.
func (p *mountedPair) periodicLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(defaultSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.coordinator.triggerSync(ctx, p)
		}
	}
}

// watchLoop bridges fsnotify events on the external volume's mount path
// into connect/disconnect transitions, per spec §4.7's "external-volume
// events" responsibility.
func (p *mountedPair) watchLoop(ctx context.Context) {
	defer p.wg.Done()
	if p.watcher == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				p.setExternalOnline(true)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				p.setExternalOnline(false)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warnf("external volume watcher error for %s: %s", p.config.ID, err)
		}
	}
}

// reindexAndSync implements the "On connect: set pair's external as online,
// trigger Indexer, then a sync" half of spec §4.7's external-volume event
// handling.
func (c *Coordinator) reindexAndSync(p *mountedPair) {
	ctx := context.Background()
	if _, err := c.index.Run(ctx, indexer.Pair{
		SyncPairID:  p.config.ID,
		LocalDir:    p.config.LocalPath,
		ExternalDir: p.config.ExternalRelativePath,
		Rules:       p.rules,
	}, nil); err != nil {
		p.logger.Warnf("re-index after reconnect failed for %s: %s", p.config.ID, err)
	}
	c.triggerSync(ctx, p)
}

// triggerSync runs the SyncEngine for p's sync pair in the configured
// direction, publishing progress through the Coordinator's broadcaster.
func (c *Coordinator) triggerSync(ctx context.Context, p *mountedPair) {
	if err := c.refuseIfShuttingDown(); err != nil {
		return
	}
	if p.isPaused() {
		return
	}

	progress := make(chan syncengine.Progress, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for prog := range progress {
			c.events.publish(Event{Kind: EventSyncProgress, SyncPairID: p.config.ID, SyncProgress: &prog})
		}
	}()

	_, err := c.engine.Run(ctx, syncengine.Options{
		SyncPairID:      p.config.ID,
		Direction:       p.config.Direction,
		LocalDir:        p.config.LocalPath,
		ExternalDir:     p.config.ExternalRelativePath,
		ExternalOnline:  p.isExternalOnline(),
		EnableChecksums: false,
		ConflictStrategy: p.config.ConflictStrategy,
		Rules:           p.rules,
	}, progress)
	close(progress)
	<-done

	if err != nil {
		p.logger.Warnf("sync run failed for %s: %s", p.config.ID, err)
	}
	c.events.publish(Event{Kind: EventSyncStatusChanged, SyncPairID: p.config.ID})
}

func (p *mountedPair) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *mountedPair) setPaused(paused bool) {
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
}

func (p *mountedPair) isReadOnly() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readOnly
}

func (p *mountedPair) setReadOnly(readOnly bool) {
	p.mu.Lock()
	p.readOnly = readOnly
	p.mu.Unlock()
}

func (p *mountedPair) updateExternalPath(newPath string) {
	p.mu.Lock()
	p.config.ExternalRelativePath = newPath
	p.mu.Unlock()
}
