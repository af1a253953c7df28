// Package coordinator implements the Coordinator of spec §4.7: the
// component sitting above Store, Indexer, VFS, SyncEngine, and CacheEvictor
// that owns the RPC surface's request dispatch, schedules debounced and
// periodic sync runs, reacts to external-volume connect/disconnect events,
// fans out progress to subscribers, and replays the recovery journal and
// runs cache eviction at startup. It is the single place that instantiates
// every other core component and hands out owning handles to them, per spec
// §9's "Singletons" design note.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/driftmirror/driftmirror/pkg/cacheevictor"
	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/housekeeping"
	"github.com/driftmirror/driftmirror/pkg/indexer"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
	"github.com/driftmirror/driftmirror/pkg/syncengine"
)

// defaultShutdownTimeout is the bounded wait for in-flight syncs to finish
// during shutdown, per spec §4.7's "wait bounded (configurable, default
// 30 s)".
const defaultShutdownTimeout = 30 * time.Second

// defaultDebounceWindow is the coalescing window applied to every pair's
// dirty events (see debounceWindow), matching pkg/config.Default's
// advanced.debounceDelay of 5s.
const defaultDebounceWindow = 5 * time.Second

// defaultSyncInterval is the periodic sync timer's default period, per spec
// §4.7 ("Timer per pair at a configured interval (default 3600 s)").
const defaultSyncInterval = time.Hour

// Coordinator owns the daemon's core components and every mounted sync
// pair's lifecycle. Exactly one Coordinator exists per daemon process.
type Coordinator struct {
	logger *logging.Logger
	store  *store.Store
	engine *syncengine.Engine
	index  *indexer.Indexer

	mu    sync.Mutex
	pairs map[string]*mountedPair

	configPath string
	doc        *config.Document

	events *broadcaster

	shutdownTimeout time.Duration
	shuttingDown    bool
}

// New creates a Coordinator around an already-open Store. The caller
// retains ownership of store and must Close it after the Coordinator has
// been shut down.
func New(s *store.Store, logger *logging.Logger) *Coordinator {
	log := logger.Sublogger("coordinator")
	return &Coordinator{
		logger:          log,
		store:           s,
		engine:          syncengine.New(s, log),
		index:           indexer.New(s.Entries, log),
		pairs:           make(map[string]*mountedPair),
		events:          newBroadcaster(),
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// Start performs startup recovery (replaying the recovery journal left by
// any rename interrupted by a crash, per spec §4.9) and mounts every
// enabled sync pair found in doc.
func (c *Coordinator) Start(ctx context.Context, configPath string, doc *config.Document) error {
	c.mu.Lock()
	c.configPath = configPath
	c.doc = doc
	c.mu.Unlock()

	housekeeping.Housekeep(c.logger, c.store.Journal, c.evictionTargets(doc))

	for _, pair := range doc.SyncPairs {
		if !pair.Enabled {
			continue
		}
		if err := c.Mount(ctx, pair); err != nil {
			c.logger.Warnf("unable to mount sync pair %s at startup: %s", pair.ID, err)
		}
	}

	return nil
}

// Engine exposes the Coordinator's SyncEngine so the RPC layer can wire
// pkg/state.Tracker.WaitForChange into the GetSyncProgress long-poll (spec
// §6.1), without otherwise exposing sync execution internals.
func (c *Coordinator) Engine() *syncengine.Engine {
	return c.engine
}

// GetConfig implements spec §6.1's "getConfig".
func (c *Coordinator) GetConfig() *config.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// UpdateConfig implements spec §6.1's "updateConfig": it validates and
// persists the new document, then reconciles mounted pairs against it
// (mounting newly enabled pairs, unmounting removed or disabled ones), and
// publishes a configUpdated event.
func (c *Coordinator) UpdateConfig(ctx context.Context, doc *config.Document) error {
	if err := config.Validate(doc); err != nil {
		return err
	}

	c.mu.Lock()
	path := c.configPath
	c.mu.Unlock()

	if path != "" {
		if err := config.Save(path, doc); err != nil {
			return err
		}
	}

	c.reconcile(ctx, doc)

	c.mu.Lock()
	c.doc = doc
	c.mu.Unlock()

	c.events.publish(Event{Kind: EventConfigUpdated})
	return nil
}

// reconcile mounts sync pairs newly present/enabled in doc and unmounts
// ones no longer present or no longer enabled.
func (c *Coordinator) reconcile(ctx context.Context, doc *config.Document) {
	wanted := make(map[string]config.SyncPair, len(doc.SyncPairs))
	for _, pair := range doc.SyncPairs {
		if pair.Enabled {
			wanted[pair.ID] = pair
		}
	}

	for _, id := range c.MountedPairs() {
		if _, ok := wanted[id]; !ok {
			if err := c.Unmount(id); err != nil {
				c.logger.Warnf("unable to unmount removed sync pair %s: %s", id, err)
			}
		}
	}

	for id, pair := range wanted {
		if c.GetMountStatus(id) {
			continue
		}
		if err := c.Mount(ctx, pair); err != nil {
			c.logger.Warnf("unable to mount sync pair %s: %s", id, err)
		}
	}
}

// evictionTargets builds one housekeeping.Target per sync pair that has
// automatic eviction enabled, for both the startup pass and the daemon's
// regular housekeeping loop.
func (c *Coordinator) evictionTargets(doc *config.Document) []housekeeping.Target {
	var targets []housekeeping.Target
	for _, pair := range doc.SyncPairs {
		if !pair.AutoEvictionEnabled {
			continue
		}
		targets = append(targets, housekeeping.Target{
			Budget: budgetFor(pair, doc),
			Entries: c.store.Entries,
		})
	}
	return targets
}

func budgetFor(pair config.SyncPair, doc *config.Document) cacheevictor.Budget {
	return cacheevictor.Budget{
		SyncPairID:        pair.ID,
		LocalDir:          pair.LocalPath,
		Strategy:          doc.Cache.EvictionStrategy,
		MaxLocalCacheSize: pair.MaxLocalCacheSize,
		TargetFreeSpace:   pair.TargetFreeSpace,
		ReserveBuffer:     doc.Cache.ReserveBuffer,
	}
}

// EvictionTargets builds the current set of housekeeping.Target values from
// the Coordinator's live configuration, for use as a housekeeping.Target
// supplier in the daemon's regular (24h) housekeeping loop so that targets
// track configuration changes made after startup.
func (c *Coordinator) EvictionTargets() []housekeeping.Target {
	c.mu.Lock()
	doc := c.doc
	c.mu.Unlock()
	if doc == nil {
		return nil
	}
	return c.evictionTargets(doc)
}

// Subscribe registers a new progress/event subscriber, per spec §4.7's
// "progress fan-out" responsibility. The returned channel is closed when
// unsubscribe is called or the Coordinator shuts down.
func (c *Coordinator) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}

// pair returns the live mountedPair for syncPairID, or an error if it isn't
// currently mounted.
func (c *Coordinator) pair(syncPairID string) (*mountedPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pairs[syncPairID]
	if !ok {
		return nil, dmerrors.New(dmerrors.CodeNotFound, "sync pair is not mounted").With("syncPairId", syncPairID)
	}
	return p, nil
}

// MountedPairs returns the IDs of every currently mounted sync pair.
func (c *Coordinator) MountedPairs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.pairs))
	for id := range c.pairs {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown implements spec §4.7's bounded shutdown sequence: refuse new
// tasks, cancel every running sync, wait up to shutdownTimeout, then flush
// the Store. It does not close the Store or RPC listener; callers own those.
func (c *Coordinator) Shutdown() error {
	c.mu.Lock()
	c.shuttingDown = true
	pairs := make([]*mountedPair, 0, len(c.pairs))
	for _, p := range c.pairs {
		pairs = append(pairs, p)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range pairs {
		wg.Add(1)
		go func(p *mountedPair) {
			defer wg.Done()
			p.stop()
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.shutdownTimeout):
		c.logger.Warn("shutdown timed out waiting for in-flight syncs; proceeding")
	}

	c.events.close()
	return c.store.Entries.FlushAccess()
}

// refuseIfShuttingDown returns an error for any task-submitting RPC once
// PrepareForShutdown/Shutdown has begun, per spec §4.7's "refuse new tasks".
func (c *Coordinator) refuseIfShuttingDown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shuttingDown {
		return dmerrors.New(dmerrors.CodeCancelled, "daemon is shutting down")
	}
	return nil
}

// watcherForDisk starts an fsnotify watch on an external volume's mount path
// itself (so events concern its direct entries), used to detect
// connect/disconnect of removable volumes out-of-band from any VFS activity.
// The returned watcher is owned by the caller.
func watcherForDisk(mountPath string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create filesystem watcher: %w", err)
	}
	if err := watcher.Add(mountPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("unable to watch external volume path: %w", err)
	}
	return watcher, nil
}
