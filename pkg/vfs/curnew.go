package vfs

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tomhrr/fsmu/internal/refresh"
	"github.com/tomhrr/fsmu/internal/vpath"
)

// CurNewNode is a query's "cur" or "new" directory: the materialised
// result set, one symlink per matched message, plus the ".refresh"
// trigger file.
type CurNewNode struct {
	BaseNode
	query  string
	subdir string // "cur" or "new"
}

var _ fs.NodeReaddirer = (*CurNewNode)(nil)
var _ fs.NodeLookuper = (*CurNewNode)(nil)
var _ fs.NodeGetattrer = (*CurNewNode)(nil)
var _ fs.NodeUnlinker = (*CurNewNode)(nil)
var _ fs.NodeRenamer = (*CurNewNode)(nil)

func (c *CurNewNode) backingDir() string {
	return vpath.QueryBackingRoot(c.fsys.backingDir, c.query) + "/" + c.subdir
}

func (c *CurNewNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	// A failed refresh still reports whatever attributes were there
	// before it; the error isn't surfaced to getattr's caller.
	if refresh.Refreshable(c.virtual) {
		_ = c.fsys.engine.Refresh(ctx, c.query, false)
	}

	now := time.Now()
	out.Mode = 0755 | syscall.S_IFDIR
	c.SetOwner(out)
	out.SetTimes(&now, &now, &now)
	return 0
}

// Readdir consults the staleness clock and runs a refresh if the
// query is due, then lists the (possibly just-updated) backing
// directory's entries.
func (c *CurNewNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	// A failed refresh still shows whatever was there before it; the
	// error isn't surfaced to readdir's caller.
	if refresh.Refreshable(c.virtual) {
		_ = c.fsys.engine.Refresh(ctx, c.query, false)
	}

	entries, err := os.ReadDir(c.backingDir())
	if err != nil {
		return nil, syscall.EIO
	}
	out := []fuse.DirEntry{{Name: ".refresh", Mode: syscall.S_IFREG}}
	for _, e := range entries {
		out = append(out, fuse.DirEntry{Name: e.Name(), Mode: syscall.S_IFLNK})
	}
	return fs.NewListDirStream(out), 0
}

func (c *CurNewNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if name == ".refresh" {
		now := time.Now()
		node := &RefreshNode{BaseNode: BaseNode{fsys: c.fsys, virtual: c.virtual + "/.refresh"}, query: c.query}
		out.Attr.Mode = 0644 | syscall.S_IFREG
		c.SetOwner(&out.Attr)
		out.Attr.SetTimes(&now, &now, &now)
		return c.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFREG}), 0
	}

	target, err := os.Readlink(c.backingDir() + "/" + name)
	if err != nil {
		return nil, syscall.ENOENT
	}
	now := time.Now()
	node := &EntryNode{BaseNode: BaseNode{fsys: c.fsys, virtual: c.virtual + "/" + name}, target: target}
	out.Attr.Mode = 0777 | syscall.S_IFLNK
	c.SetOwner(&out.Attr)
	out.Attr.SetTimes(&now, &now, &now)
	return c.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFLNK}), 0
}

func (c *CurNewNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if name == ".refresh" {
		return syscall.EPERM
	}
	if err := c.fsys.proto.Unlink(c.virtual + "/" + name); err != nil {
		return errnoFor(err)
	}
	return 0
}

func (c *CurNewNode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	dest, ok := newParent.(*CurNewNode)
	if !ok {
		return syscall.EINVAL
	}
	from := c.virtual + "/" + name
	to := dest.virtual + "/" + newName
	if err := c.fsys.proto.Rename(from, to); err != nil {
		return errnoFor(err)
	}
	return 0
}

// EntryNode is a single materialised message: a symlink to its real
// path on disk.
type EntryNode struct {
	BaseNode
	target string
}

var _ fs.NodeGetattrer = (*EntryNode)(nil)
var _ fs.NodeReadlinker = (*EntryNode)(nil)

func (e *EntryNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	now := time.Now()
	out.Mode = 0777 | syscall.S_IFLNK
	out.Size = uint64(len(e.target))
	e.SetOwner(out)
	out.SetTimes(&now, &now, &now)
	return 0
}

func (e *EntryNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	return []byte(e.target), 0
}
