// Package vfs is the FUSE bridge: it wires the path algebra, reverse
// index, staleness clock, search invoker, refresh engine and rename
// protocol onto go-fuse's node interfaces.
package vfs

import (
	"log"
	"os"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tomhrr/fsmu/internal/refresh"
	"github.com/tomhrr/fsmu/internal/rename"
	"github.com/tomhrr/fsmu/internal/revindex"
	"github.com/tomhrr/fsmu/internal/search"
	"github.com/tomhrr/fsmu/internal/staleness"
)

// FS holds every component the mounted filesystem's nodes share.
type FS struct {
	backingDir string
	rev        *revindex.Store
	engine     *refresh.Engine
	proto      *rename.Protocol
	server     *fuse.Server
	uid        uint32
	gid        uint32
	debug      bool
}

// Options configures a new FS.
type Options struct {
	BackingDir     string
	Search         search.Options
	RefreshTimeout time.Duration
	AllowDelete    bool
	Debug          bool
}

// New builds an FS, opening its reverse index under BackingDir.
func New(opts Options) (*FS, error) {
	if err := os.MkdirAll(opts.BackingDir, 0755); err != nil {
		return nil, err
	}
	rev, err := revindex.Open(opts.BackingDir)
	if err != nil {
		return nil, err
	}
	clock := staleness.New(opts.RefreshTimeout)
	invoker := search.New(opts.Search)
	engine := refresh.New(opts.BackingDir, clock, invoker, rev, opts.Debug)
	proto := rename.New(opts.BackingDir, rev, opts.AllowDelete, opts.Debug)

	return &FS{
		backingDir: opts.BackingDir,
		rev:        rev,
		engine:     engine,
		proto:      proto,
		uid:        uint32(os.Getuid()),
		gid:        uint32(os.Getgid()),
		debug:      opts.Debug,
	}, nil
}

// BaseNode carries the FS handle and this node's own virtual path,
// which every node type needs to build backing paths and delegate to
// the core components.
type BaseNode struct {
	fs.Inode
	fsys    *FS
	virtual string
}

// SetOwner stamps out's Uid/Gid from the mounting user, the way every
// Getattr implementation in this tree should.
func (b *BaseNode) SetOwner(out *fuse.AttrOut) {
	out.Uid = b.fsys.uid
	out.Gid = b.fsys.gid
}

// Mount mounts fsys at mountpoint and returns the running server.
func Mount(mountpoint string, fsys *FS, debug bool) (*fuse.Server, error) {
	root := &RootNode{BaseNode: BaseNode{fsys: fsys, virtual: "/"}}

	attrTimeout := 1 * time.Second
	entryTimeout := 1 * time.Second

	opts := &fs.Options{
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
		MountOptions: fuse.MountOptions{
			Name:   "fsmu",
			FsName: "fsmu",
			Debug:  debug,
		},
	}

	if debug {
		log.Println("[vfs] mounting with debug enabled")
	}

	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	fsys.server = server
	return server, nil
}
