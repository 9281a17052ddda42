package vfs

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tomhrr/fsmu/internal/refresh"
)

// RefreshNode is the ".refresh" file inside a query's cur/ or new/:
// opening it forces an immediate refresh regardless of the staleness
// clock. It always reads back empty.
type RefreshNode struct {
	BaseNode
	query string
}

var _ fs.NodeGetattrer = (*RefreshNode)(nil)
var _ fs.NodeOpener = (*RefreshNode)(nil)
var _ fs.NodeReader = (*RefreshNode)(nil)

func (r *RefreshNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	now := time.Now()
	out.Mode = 0644 | syscall.S_IFREG
	out.Size = 1
	r.SetOwner(out)
	out.SetTimes(&now, &now, &now)
	return 0
}

func (r *RefreshNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if !refresh.Refreshable(r.virtual) {
		return nil, 0, syscall.EINVAL
	}
	if err := r.fsys.engine.Refresh(ctx, r.query, true); err != nil {
		return nil, 0, errnoFor(err)
	}
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (r *RefreshNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return fuse.ReadResultData(nil), 0
}
