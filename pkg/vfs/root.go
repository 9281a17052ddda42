package vfs

import (
	"context"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tomhrr/fsmu/internal/vpath"
)

// RootNode is the mountpoint's own directory: one entry per saved
// query, plus the reserved "_reverse" shadow tree and per-query
// marker files hidden from readdir.
type RootNode struct {
	BaseNode
}

var _ fs.NodeReaddirer = (*RootNode)(nil)
var _ fs.NodeLookuper = (*RootNode)(nil)
var _ fs.NodeGetattrer = (*RootNode)(nil)
var _ fs.NodeMkdirer = (*RootNode)(nil)
var _ fs.NodeRmdirer = (*RootNode)(nil)

func (r *RootNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	now := time.Now()
	out.Mode = 0755 | syscall.S_IFDIR
	r.SetOwner(out)
	out.SetTimes(&now, &now, &now)
	return 0
}

func (r *RootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := os.ReadDir(r.fsys.backingDir)
	if err != nil {
		return nil, syscall.EIO
	}
	var out []fuse.DirEntry
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "_") || !e.IsDir() {
			continue
		}
		if name == "_reverse" {
			continue
		}
		if strings.HasPrefix(name, "_tempdir.") {
			continue
		}
		out = append(out, fuse.DirEntry{Name: strings.TrimPrefix(name, "_"), Mode: syscall.S_IFDIR})
	}
	return fs.NewListDirStream(out), 0
}

func (r *RootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if vpath.IsReserved(name) {
		return nil, syscall.ENOENT
	}
	backingRoot := vpath.QueryBackingRoot(r.fsys.backingDir, name)
	if _, err := os.Stat(backingRoot); err != nil {
		return nil, syscall.ENOENT
	}
	now := time.Now()
	node := &QueryNode{BaseNode: BaseNode{fsys: r.fsys, virtual: "/" + name}, query: name}
	out.Attr.Mode = 0755 | syscall.S_IFDIR
	r.SetOwner(&out.Attr)
	out.Attr.SetTimes(&now, &now, &now)
	return r.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
}

// Mkdir creates a new saved query: the mount presents a directory
// named after the query (with "/" written as "+"), and creating it is
// how a client registers a new search to be materialised.
func (r *RootNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if vpath.IsReserved(name) {
		return nil, syscall.EINVAL
	}
	backingRoot := vpath.QueryBackingRoot(r.fsys.backingDir, name)
	if _, err := os.Stat(backingRoot); err == nil {
		return nil, syscall.EEXIST
	}
	if err := os.MkdirAll(backingRoot+"/cur", 0755); err != nil {
		return nil, syscall.EIO
	}
	if err := os.MkdirAll(backingRoot+"/new", 0755); err != nil {
		return nil, syscall.EIO
	}

	now := time.Now()
	node := &QueryNode{BaseNode: BaseNode{fsys: r.fsys, virtual: "/" + name}, query: name}
	out.Attr.Mode = 0755 | syscall.S_IFDIR
	r.SetOwner(&out.Attr)
	out.Attr.SetTimes(&now, &now, &now)
	return r.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
}

func (r *RootNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if vpath.IsReserved(name) {
		return syscall.EINVAL
	}
	if err := r.fsys.proto.Rmdir("/" + name); err != nil {
		return errnoFor(err)
	}
	return 0
}
