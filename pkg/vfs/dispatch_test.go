package vfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// fakeFileInfo is a minimal os.FileInfo for the mock backend.
type fakeFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0644 }
func (f fakeFileInfo) ModTime() time.Time { return f.modTime }
func (f fakeFileInfo) IsDir() bool        { return f.isDir }
func (f fakeFileInfo) Sys() interface{}   { return nil }

// mockBackend is an in-memory Backend, per spec §9's requirement that VFS
// dispatch logic be testable without a real mount.
type mockBackend struct {
	local    map[string][]byte
	external map[string][]byte
	copiedIn map[string]bool
}

func newMockBackend() *mockBackend {
	return &mockBackend{local: map[string][]byte{}, external: map[string][]byte{}, copiedIn: map[string]bool{}}
}

func (b *mockBackend) StatLocal(virtualPath string) (os.FileInfo, error) {
	data, ok := b.local[virtualPath]
	if !ok {
		return nil, os.ErrNotExist
	}
	return fakeFileInfo{name: filepath.Base(virtualPath), size: int64(len(data))}, nil
}

func (b *mockBackend) StatExternal(virtualPath string) (os.FileInfo, error) {
	data, ok := b.external[virtualPath]
	if !ok {
		return nil, os.ErrNotExist
	}
	return fakeFileInfo{name: filepath.Base(virtualPath), size: int64(len(data))}, nil
}

func (b *mockBackend) ReadDirLocal(virtualPath string) ([]os.FileInfo, error) {
	return nil, nil
}

func (b *mockBackend) ReadDirExternal(virtualPath string) ([]os.FileInfo, error) {
	return nil, nil
}

func (b *mockBackend) OpenLocal(virtualPath string) (io.ReadCloser, error) {
	data, ok := b.local[virtualPath]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *mockBackend) OpenExternal(virtualPath string) (io.ReadCloser, error) {
	data, ok := b.external[virtualPath]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type mockWriter struct {
	buf  bytes.Buffer
	done func([]byte)
}

func (w *mockWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *mockWriter) Close() error                { w.done(w.buf.Bytes()); return nil }

func (b *mockBackend) CreateLocal(virtualPath string) (io.WriteCloser, error) {
	return &mockWriter{done: func(data []byte) { b.local[virtualPath] = data }}, nil
}

func (b *mockBackend) RemoveLocal(virtualPath string) error {
	delete(b.local, virtualPath)
	return nil
}

func (b *mockBackend) RenameLocal(oldVirtualPath, newVirtualPath string) error {
	data, ok := b.local[oldVirtualPath]
	if !ok {
		return os.ErrNotExist
	}
	delete(b.local, oldVirtualPath)
	b.local[newVirtualPath] = data
	return nil
}

func (b *mockBackend) MkdirLocal(virtualPath string) error { return nil }

func (b *mockBackend) LocalPath(virtualPath string) string    { return "/local/" + virtualPath }
func (b *mockBackend) ExternalPath(virtualPath string) string { return "/external/" + virtualPath }

func (b *mockBackend) CopyExternalToLocal(ctx context.Context, virtualPath string) error {
	b.copiedIn[virtualPath] = true
	b.local[virtualPath] = b.external[virtualPath]
	return nil
}

func newTestDispatcher(t *testing.T, backend *mockBackend) (*Dispatcher, *store.EntryStore) {
	t.Helper()
	dir := t.TempDir()
	entries, err := store.OpenEntryStore(filepath.Join(dir, "entries.db"), logging.NewLogger(logging.LevelError, io.Discard))
	if err != nil {
		t.Fatalf("unable to open store: %s", err)
	}
	t.Cleanup(func() { entries.Close() })

	return New(Options{SyncPairID: "pair", Entries: entries, Backend: backend, ExternalOnline: func() bool { return true }}), entries
}

func TestLookupPrefersLocalWhenBoth(t *testing.T) {
	backend := newMockBackend()
	backend.local["a.txt"] = []byte("local")
	backend.external["a.txt"] = []byte("external-longer")
	dispatcher, entries := newTestDispatcher(t, backend)

	if err := entries.UpsertEntry(&store.FileEntry{
		SyncPairID: "pair", VirtualPath: "a.txt", LocalPath: "/local/a.txt", ExternalPath: "/external/a.txt",
		Location: store.LocationBoth, Size: 5,
	}); err != nil {
		t.Fatalf("unable to upsert entry: %s", err)
	}

	attr, err := dispatcher.Lookup(context.Background(), "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if attr.Size != 5 {
		t.Errorf("expected local size 5, got %d", attr.Size)
	}
}

func TestLookupMissingEntryReturnsNotFound(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, newMockBackend())
	_, err := dispatcher.Lookup(context.Background(), "missing.txt")
	if dmerrors.CodeOf(err) != dmerrors.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestOpenReadExternalOnlyBeginsCopyIn(t *testing.T) {
	backend := newMockBackend()
	backend.external["a.txt"] = []byte("external")
	dispatcher, entries := newTestDispatcher(t, backend)
	mustUpsertVFS(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "a.txt", ExternalPath: "/external/a.txt",
		Location: store.LocationExternalOnly, Size: 8,
	})

	reader, err := dispatcher.OpenRead(context.Background(), "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	data, _ := io.ReadAll(reader)
	reader.Close()
	if string(data) != "external" {
		t.Errorf("expected external contents, got %q", data)
	}

	deadline := time.Now().Add(time.Second)
	for !backend.copiedIn["a.txt"] && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !backend.copiedIn["a.txt"] {
		t.Error("expected a background copy-in to have been triggered")
	}
}

func TestOpenReadExternalOnlyOfflineFails(t *testing.T) {
	backend := newMockBackend()
	backend.external["a.txt"] = []byte("external")
	dir := t.TempDir()
	entries, err := store.OpenEntryStore(filepath.Join(dir, "entries.db"), logging.NewLogger(logging.LevelError, io.Discard))
	if err != nil {
		t.Fatalf("unable to open store: %s", err)
	}
	t.Cleanup(func() { entries.Close() })
	dispatcher := New(Options{SyncPairID: "pair", Entries: entries, Backend: backend, ExternalOnline: func() bool { return false }})
	mustUpsertVFS(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "a.txt", ExternalPath: "/external/a.txt",
		Location: store.LocationExternalOnly, Size: 8,
	})

	_, err = dispatcher.OpenRead(context.Background(), "a.txt")
	if dmerrors.CodeOf(err) != dmerrors.CodeDiskNotConnected {
		t.Fatalf("expected CodeDiskNotConnected, got %v", err)
	}
}

func TestOpenWriteBlockedBySyncLockTimesOut(t *testing.T) {
	backend := newMockBackend()
	dispatcher, entries := newTestDispatcher(t, backend)

	lockTime := time.Unix(1000, 0)
	var calls int
	dispatcher.now = func() time.Time {
		calls++
		// Jump straight past WriteWaitTimeout after the first read so the
		// wait loop resolves to a timeout on its second check, instead of
		// looping for the real 5s wall-clock duration.
		if calls == 1 {
			return lockTime
		}
		return lockTime.Add(WriteWaitTimeout + time.Second)
	}

	mustUpsertVFS(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "a.txt", LocalPath: "/local/a.txt",
		Location: store.LocationLocalOnly, LockState: store.LockStateSyncLocked,
		LockDirection: store.LockDirectionLocalToExternal, LockTime: lockTime,
	})

	_, err := dispatcher.OpenWrite(context.Background(), "a.txt")
	if dmerrors.CodeOf(err) != dmerrors.CodeLockBusy {
		t.Fatalf("expected CodeLockBusy on timeout, got %v", err)
	}
}

func TestOpenWriteCloseMarksDirtyAndPublishesEvent(t *testing.T) {
	backend := newMockBackend()
	dir := t.TempDir()
	entries, err := store.OpenEntryStore(filepath.Join(dir, "entries.db"), logging.NewLogger(logging.LevelError, io.Discard))
	if err != nil {
		t.Fatalf("unable to open store: %s", err)
	}
	t.Cleanup(func() { entries.Close() })

	events := make(chan DirtyFile, 1)
	dispatcher := New(Options{SyncPairID: "pair", Entries: entries, Backend: backend, Events: events})

	writer, err := dispatcher.OpenWrite(context.Background(), "new.txt")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := writer.Write([]byte("hello")); err != nil {
		t.Fatalf("unexpected write error: %s", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("unexpected close error: %s", err)
	}

	entry, err := entries.GetEntry("pair", "new.txt")
	if err != nil {
		t.Fatalf("unable to read entry: %s", err)
	}
	if entry == nil || !entry.IsDirty || entry.Size != 5 {
		t.Fatalf("expected dirty entry with size 5, got %+v", entry)
	}

	select {
	case event := <-events:
		if event.VirtualPath != "new.txt" {
			t.Errorf("expected event for new.txt, got %+v", event)
		}
	default:
		t.Error("expected a DirtyFile event to be published")
	}
}

func TestUnlinkBothLocationDegradesToExternalOnly(t *testing.T) {
	backend := newMockBackend()
	backend.local["a.txt"] = []byte("data")
	dispatcher, entries := newTestDispatcher(t, backend)
	mustUpsertVFS(t, entries, &store.FileEntry{
		SyncPairID: "pair", VirtualPath: "a.txt", LocalPath: "/local/a.txt", ExternalPath: "/external/a.txt",
		Location: store.LocationBoth, Size: 4,
	})

	if err := dispatcher.Unlink(context.Background(), "a.txt"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	entry, err := entries.GetEntry("pair", "a.txt")
	if err != nil {
		t.Fatalf("unable to read entry: %s", err)
	}
	if entry.Location != store.LocationExternalOnly || entry.LocalPath != "" {
		t.Fatalf("expected entry degraded to externalOnly, got %+v", entry)
	}
	if _, ok := backend.local["a.txt"]; ok {
		t.Error("expected local file removed")
	}
}

func mustUpsertVFS(t *testing.T, entries *store.EntryStore, entry *store.FileEntry) {
	t.Helper()
	if err := entries.UpsertEntry(entry); err != nil {
		t.Fatalf("unable to upsert entry %q: %s", entry.VirtualPath, err)
	}
}
