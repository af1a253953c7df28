package vfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/driftmirror/driftmirror/pkg/filesystem"
)

// Backend is the filesystem-facing half of a VFS mount: everything the
// Dispatcher needs from local and external storage, isolated behind an
// interface so dispatch logic is testable against a mock (spec §9, "VFS
// dispatch logic MUST be implementable against a mock backend").
type Backend interface {
	StatLocal(virtualPath string) (os.FileInfo, error)
	StatExternal(virtualPath string) (os.FileInfo, error)
	ReadDirLocal(virtualPath string) ([]os.FileInfo, error)
	ReadDirExternal(virtualPath string) ([]os.FileInfo, error)
	OpenLocal(virtualPath string) (io.ReadCloser, error)
	OpenExternal(virtualPath string) (io.ReadCloser, error)
	CreateLocal(virtualPath string) (io.WriteCloser, error)
	RemoveLocal(virtualPath string) error
	RenameLocal(oldVirtualPath, newVirtualPath string) error
	MkdirLocal(virtualPath string) error
	LocalPath(virtualPath string) string
	ExternalPath(virtualPath string) string
	// CopyExternalToLocal streams the external copy of virtualPath down to
	// local storage, implementing open(read)'s "begin streaming copy-in to
	// local" policy for externalOnly files (spec §4.4).
	CopyExternalToLocal(ctx context.Context, virtualPath string) error
}

// osBackend is the real Backend, rooted at a sync pair's localDir/externalDir.
type osBackend struct {
	localDir    string
	externalDir string
}

// NewOSBackend creates a Backend rooted at localDir and externalDir.
func NewOSBackend(localDir, externalDir string) Backend {
	return &osBackend{localDir: localDir, externalDir: externalDir}
}

func (b *osBackend) LocalPath(virtualPath string) string {
	return filepath.Join(b.localDir, filepath.FromSlash(virtualPath))
}

func (b *osBackend) ExternalPath(virtualPath string) string {
	return filepath.Join(b.externalDir, filepath.FromSlash(virtualPath))
}

func (b *osBackend) StatLocal(virtualPath string) (os.FileInfo, error) {
	return os.Stat(b.LocalPath(virtualPath))
}

func (b *osBackend) StatExternal(virtualPath string) (os.FileInfo, error) {
	return os.Stat(b.ExternalPath(virtualPath))
}

func (b *osBackend) ReadDirLocal(virtualPath string) ([]os.FileInfo, error) {
	return readDir(b.LocalPath(virtualPath))
}

func (b *osBackend) ReadDirExternal(virtualPath string) ([]os.FileInfo, error) {
	return readDir(b.ExternalPath(virtualPath))
}

func readDir(path string) ([]os.FileInfo, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (b *osBackend) OpenLocal(virtualPath string) (io.ReadCloser, error) {
	return os.Open(b.LocalPath(virtualPath))
}

func (b *osBackend) OpenExternal(virtualPath string) (io.ReadCloser, error) {
	return os.Open(b.ExternalPath(virtualPath))
}

func (b *osBackend) CreateLocal(virtualPath string) (io.WriteCloser, error) {
	path := b.LocalPath(virtualPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func (b *osBackend) RemoveLocal(virtualPath string) error {
	err := os.Remove(b.LocalPath(virtualPath))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (b *osBackend) RenameLocal(oldVirtualPath, newVirtualPath string) error {
	newPath := b.LocalPath(newVirtualPath)
	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		return err
	}
	return os.Rename(b.LocalPath(oldVirtualPath), newPath)
}

func (b *osBackend) MkdirLocal(virtualPath string) error {
	return os.MkdirAll(b.LocalPath(virtualPath), 0755)
}

func (b *osBackend) CopyExternalToLocal(ctx context.Context, virtualPath string) error {
	_, err := filesystem.CopyFileAtomic(ctx, b.ExternalPath(virtualPath), b.LocalPath(virtualPath), 0644)
	return err
}
