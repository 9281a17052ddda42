package vfs

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// QueryNode is a saved query's own directory: it holds exactly "cur"
// and "new", mirroring a real maildir's top-level layout.
type QueryNode struct {
	BaseNode
	query string // encoded query name, as it appears in the virtual path
}

var _ fs.NodeReaddirer = (*QueryNode)(nil)
var _ fs.NodeLookuper = (*QueryNode)(nil)
var _ fs.NodeGetattrer = (*QueryNode)(nil)

func (q *QueryNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	now := time.Now()
	out.Mode = 0755 | syscall.S_IFDIR
	q.SetOwner(out)
	out.SetTimes(&now, &now, &now)
	return 0
}

func (q *QueryNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Name: "cur", Mode: syscall.S_IFDIR},
		{Name: "new", Mode: syscall.S_IFDIR},
	}
	return fs.NewListDirStream(entries), 0
}

func (q *QueryNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if name != "cur" && name != "new" {
		return nil, syscall.ENOENT
	}
	now := time.Now()
	node := &CurNewNode{
		BaseNode: BaseNode{fsys: q.fsys, virtual: q.virtual + "/" + name},
		query:    q.query,
		subdir:   name,
	}
	out.Attr.Mode = 0755 | syscall.S_IFDIR
	q.SetOwner(&out.Attr)
	out.Attr.SetTimes(&now, &now, &now)
	return q.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
}
