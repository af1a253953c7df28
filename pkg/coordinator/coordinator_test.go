package coordinator

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/filter"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/state"
	"github.com/driftmirror/driftmirror/pkg/store"
	"github.com/driftmirror/driftmirror/pkg/syncengine"
	"github.com/driftmirror/driftmirror/pkg/vfs"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, &bytes.Buffer{})
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	st, err := store.Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("unable to open store: %s", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, testLogger())
}

// newTestPair constructs a mountedPair without going through Mount, so
// tests can exercise scheduling logic without requiring a real FUSE mount.
func newTestPair(t *testing.T, c *Coordinator, id string) *mountedPair {
	t.Helper()
	rules, err := filter.Compile(filter.Options{})
	if err != nil {
		t.Fatalf("unable to compile filter rules: %s", err)
	}

	p := &mountedPair{
		config: config.SyncPair{
			ID:                   id,
			LocalPath:            t.TempDir(),
			ExternalRelativePath: t.TempDir(),
			Direction:            syncengine.DirectionLocalToExternal,
		},
		coordinator:    c,
		logger:         testLogger(),
		dirty:          make(chan vfs.DirtyFile, 8),
		debounce:       state.NewCoalescer(10 * time.Millisecond),
		externalOnline: true,
		rules:          rules,
	}

	c.mu.Lock()
	c.pairs[id] = p
	c.mu.Unlock()

	return p
}

func TestBroadcasterDeliversToSubscribers(t *testing.T) {
	b := newBroadcaster()
	ch, unsubscribe := b.subscribe()
	defer unsubscribe()

	b.publish(Event{Kind: EventStateChanged})

	select {
	case event := <-ch:
		if event.Kind != EventStateChanged {
			t.Errorf("expected EventStateChanged, got %s", event.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	b := newBroadcaster()
	ch, unsubscribe := b.subscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestDebounceLoopTriggersSyncAfterBurst(t *testing.T) {
	c := newTestCoordinator(t)
	p := newTestPair(t, c, "pair-1")

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	p.wg.Add(1)
	go p.debounceLoop(ctx)
	defer func() {
		cancel()
		p.debounce.Terminate()
		p.wg.Wait()
	}()

	for i := 0; i < 3; i++ {
		p.dirty <- vfs.DirtyFile{VirtualPath: "a.txt"}
	}

	select {
	case event := <-events:
		if event.Kind != EventSyncProgress && event.Kind != EventSyncStatusChanged {
			t.Errorf("unexpected event kind: %s", event.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync to be triggered by debounce")
	}
}

func TestPauseSyncSkipsTriggeredSync(t *testing.T) {
	c := newTestCoordinator(t)
	p := newTestPair(t, c, "pair-2")
	p.setPaused(true)

	if err := c.PauseSync("pair-2"); err != nil {
		t.Fatalf("PauseSync returned error: %s", err)
	}

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.triggerSync(context.Background(), p)

	select {
	case event := <-events:
		t.Fatalf("expected no sync event while paused, got %v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGetMountStatusReflectsRegisteredPairs(t *testing.T) {
	c := newTestCoordinator(t)
	newTestPair(t, c, "pair-3")

	if !c.GetMountStatus("pair-3") {
		t.Error("expected pair-3 to report mounted")
	}
	if c.GetMountStatus("missing") {
		t.Error("expected unknown pair to report unmounted")
	}
}

func TestMarkAndClearFileDirty(t *testing.T) {
	c := newTestCoordinator(t)
	localDir := t.TempDir()
	filePath := filepath.Join(localDir, "a.txt")

	entry := &store.FileEntry{
		SyncPairID:  "pair-4",
		VirtualPath: "a.txt",
		LocalPath:   filePath,
		Location:    store.LocationLocalOnly,
	}
	if err := c.store.Entries.UpsertEntry(entry); err != nil {
		t.Fatalf("unable to seed entry: %s", err)
	}

	if err := c.MarkFileDirty("pair-4", "a.txt"); err != nil {
		t.Fatalf("MarkFileDirty returned error: %s", err)
	}
	dirty, err := c.GetDirtyFiles("pair-4")
	if err != nil {
		t.Fatalf("GetDirtyFiles returned error: %s", err)
	}
	if len(dirty) != 1 {
		t.Fatalf("expected 1 dirty file, got %d", len(dirty))
	}

	if err := c.ClearFileDirty("pair-4", "a.txt"); err != nil {
		t.Fatalf("ClearFileDirty returned error: %s", err)
	}
	dirty, err = c.GetDirtyFiles("pair-4")
	if err != nil {
		t.Fatalf("GetDirtyFiles returned error: %s", err)
	}
	if len(dirty) != 0 {
		t.Fatalf("expected 0 dirty files after clearing, got %d", len(dirty))
	}
}
