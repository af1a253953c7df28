//go:build !windows
// +build !windows

package vfs

import (
	"context"
	"io"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// node adapts a Dispatcher to go-fuse's high-level node API. Every node in
// the tree shares the same Dispatcher and is distinguished only by its
// virtualPath; directory structure is resolved lazily through Lookup rather
// than mirrored into the Inode tree up front.
type node struct {
	fs.Inode
	dispatcher  *Dispatcher
	virtualPath string
}

var (
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
	_ fs.NodeCreater   = (*node)(nil)
	_ fs.NodeUnlinker  = (*node)(nil)
	_ fs.NodeMkdirer   = (*node)(nil)
	_ fs.NodeRenamer   = (*node)(nil)
)

func childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func (n *node) child(name string) *node {
	return &node{dispatcher: n.dispatcher, virtualPath: childPath(n.virtualPath, name)}
}

func attrToFuse(attr Attr, out *fuse.AttrOut) {
	out.Size = uint64(attr.Size)
	out.SetTimes(nil, &attr.ModTime, &attr.ModTime)
	if attr.IsDir {
		out.Mode = syscall.S_IFDIR | 0755
	} else {
		out.Mode = syscall.S_IFREG | 0644
	}
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.child(name)
	attr, err := n.dispatcher.Lookup(ctx, child.virtualPath)
	if err != nil {
		return nil, errnoFor(err)
	}
	attrToFuse(attr, &out.Attr)

	mode := uint32(fuse.S_IFREG)
	if attr.IsDir {
		mode = fuse.S_IFDIR
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: mode}), 0
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := n.dispatcher.Lookup(ctx, n.virtualPath)
	if err != nil {
		return errnoFor(err)
	}
	attrToFuse(attr, out)
	return 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.dispatcher.Readdir(ctx, n.virtualPath)
	if err != nil {
		return nil, errnoFor(err)
	}
	fuseEntries := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		mode := uint32(fuse.S_IFREG)
		if entry.IsDir {
			mode = fuse.S_IFDIR
		}
		fuseEntries = append(fuseEntries, fuse.DirEntry{Name: entry.Name, Mode: mode})
	}
	return fs.NewListDirStream(fuseEntries), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		writer, err := n.dispatcher.OpenWrite(ctx, n.virtualPath)
		if err != nil {
			return nil, 0, errnoFor(err)
		}
		return &writeHandle{writer: writer}, 0, 0
	}
	reader, err := n.dispatcher.OpenRead(ctx, n.virtualPath)
	if err != nil {
		return nil, 0, errnoFor(err)
	}
	return &readHandle{reader: reader}, 0, 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child := n.child(name)
	writer, err := n.dispatcher.OpenWrite(ctx, child.virtualPath)
	if err != nil {
		return nil, nil, 0, errnoFor(err)
	}
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG})
	return inode, &writeHandle{writer: writer}, 0, 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	if err := n.dispatcher.Unlink(ctx, childPath(n.virtualPath, name)); err != nil {
		return errnoFor(err)
	}
	return 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.child(name)
	if err := n.dispatcher.Mkdir(ctx, child.virtualPath); err != nil {
		return nil, errnoFor(err)
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	destParent, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}
	oldPath := childPath(n.virtualPath, name)
	newPath := childPath(destParent.virtualPath, newName)
	if err := n.dispatcher.Rename(ctx, oldPath, newPath); err != nil {
		return errnoFor(err)
	}
	return 0
}

// readHandle adapts an io.ReadCloser to go-fuse's FileHandle read interface.
type readHandle struct {
	reader io.ReadCloser
}

func (h *readHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if seeker, ok := h.reader.(io.Seeker); ok {
		if _, err := seeker.Seek(off, io.SeekStart); err != nil {
			return nil, syscall.EIO
		}
	}
	n, err := h.reader.Read(dest)
	if err != nil && err != io.EOF {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *readHandle) Release(ctx context.Context) syscall.Errno {
	h.reader.Close()
	return 0
}

// writeHandle adapts an io.WriteCloser to go-fuse's FileHandle write
// interface. It passes writes through in arrival order and ignores their
// offset; random-access writes within a single open are out of scope (spec §4.4 models write/close, not partial
// random writes).
type writeHandle struct {
	writer io.WriteCloser
}

func (h *writeHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := h.writer.Write(data)
	if err != nil {
		return uint32(n), syscall.EIO
	}
	return uint32(n), 0
}

func (h *writeHandle) Release(ctx context.Context) syscall.Errno {
	if err := h.writer.Close(); err != nil {
		return errnoFor(err)
	}
	return 0
}

var (
	_ fs.FileReader    = (*readHandle)(nil)
	_ fs.FileReleaser  = (*readHandle)(nil)
	_ fs.FileWriter    = (*writeHandle)(nil)
	_ fs.FileReleaser  = (*writeHandle)(nil)
)

// Mount mounts dispatcher's sync pair at targetDir, serving FUSE requests
// until the returned server is unmounted (spec §6's mount RPC).
func Mount(targetDir string, dispatcher *Dispatcher) (*fuse.Server, error) {
	root := &node{dispatcher: dispatcher, virtualPath: ""}
	return fs.Mount(targetDir, root, &fs.Options{
		MountOptions: fuse.MountOptions{FsName: "driftmirror", Name: "driftmirror"},
	})
}
