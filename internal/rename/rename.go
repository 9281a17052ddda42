// Package rename implements the rename/unlink/rmdir protocol:
// propagating a flag change or a cur/new folder move on one
// view of a message to the real file it points at, and fanning that
// change out to every other query view of the same message recorded
// in the reverse index.
package rename

import (
	"log"
	"os"
	"path/filepath"

	"github.com/tomhrr/fsmu/internal/ferrors"
	"github.com/tomhrr/fsmu/internal/maildir"
	"github.com/tomhrr/fsmu/internal/revindex"
	"github.com/tomhrr/fsmu/internal/vpath"
)

// Protocol implements Rename, Unlink and Rmdir against a backing
// directory and its reverse index.
type Protocol struct {
	backingDir  string
	rev         *revindex.Store
	allowDelete bool
	debug       bool
}

// New returns a Protocol. allowDelete gates Unlink behind the
// --delete-remove flag.
func New(backingDir string, rev *revindex.Store, allowDelete, debug bool) *Protocol {
	return &Protocol{backingDir: backingDir, rev: rev, allowDelete: allowDelete, debug: debug}
}

// Rename implements the kernel's rename(2) on two virtual entry
// paths. Both must be maildir entries ("cur" or "new" children) under
// the same query; crossing queries is rejected as an invalid request,
// matching mv's own refusal to rename across filesystems sharing
// nothing but a mountpoint.
func (p *Protocol) Rename(from, to string) error {
	if vpath.Classify(from) != vpath.ClassEntry || vpath.Classify(to) != vpath.ClassEntry {
		return ferrors.New(ferrors.KindInvalidArgument, "rename.Rename", from, nil)
	}

	fromQuery, _ := vpath.GrandparentQuery(from)
	toQuery, _ := vpath.GrandparentQuery(to)
	if fromQuery != toQuery {
		return ferrors.New(ferrors.KindInvalidArgument, "rename.Rename", from, nil)
	}

	if from == to {
		return nil
	}

	backingFrom := vpath.ToBacking(p.backingDir, from)
	backingTo := vpath.ToBacking(p.backingDir, to)

	real, err := os.Readlink(backingFrom)
	if err != nil {
		if os.IsNotExist(err) {
			return ferrors.New(ferrors.KindNotFound, "rename.Rename", from, err)
		}
		return ferrors.New(ferrors.KindIOError, "rename.Rename", from, err)
	}

	toBase := vpath.Basename(to)
	toFlags := maildir.Parse(toBase).Flags
	toParent := vpath.MaildirParent(to)

	newReal := retarget(real, toFlags, toParent)

	if newReal != real {
		if err := os.Rename(real, newReal); err != nil {
			return ferrors.New(ferrors.KindIOError, "rename.Rename", real, err)
		}
	}

	// Fan out to every other view of this message before touching the
	// view being renamed directly. The real file has already moved, so
	// a failure part-way through leaves the primary view's symlink
	// pointing at the old, now missing, real path.
	entries, err := p.rev.Enumerate(real)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if ent.Backing == backingFrom {
			continue
		}
		if err := p.rev.Remove(real, ent.Backing); err != nil && !ferrors.Is(err, ferrors.KindNotFound) {
			return err
		}
		newBasename := maildir.WithFlags(ent.Basename, toFlags)
		newBacking := filepath.Join(filepath.Dir(ent.Backing), newBasename)
		if newBacking != ent.Backing {
			if err := os.Remove(ent.Backing); err != nil && !os.IsNotExist(err) {
				return ferrors.New(ferrors.KindIOError, "rename.Rename", ent.Backing, err)
			}
			if err := os.Symlink(newReal, newBacking); err != nil {
				return ferrors.New(ferrors.KindIOError, "rename.Rename", newBacking, err)
			}
		} else if newReal != real {
			// Basename unchanged but the target moved: recreate the
			// symlink in place with the new target.
			if err := os.Remove(ent.Backing); err != nil && !os.IsNotExist(err) {
				return ferrors.New(ferrors.KindIOError, "rename.Rename", ent.Backing, err)
			}
			if err := os.Symlink(newReal, ent.Backing); err != nil {
				return ferrors.New(ferrors.KindIOError, "rename.Rename", ent.Backing, err)
			}
		}
		if err := p.rev.Add(newReal, newBacking); err != nil {
			return err
		}
	}

	// Now the view being renamed: drop its old reverse-index entry and
	// backing symlink, install the new one.
	if err := p.rev.Remove(real, backingFrom); err != nil && !ferrors.Is(err, ferrors.KindNotFound) {
		return err
	}
	if err := os.Remove(backingFrom); err != nil && !os.IsNotExist(err) {
		return ferrors.New(ferrors.KindIOError, "rename.Rename", backingFrom, err)
	}
	if err := os.MkdirAll(filepath.Dir(backingTo), 0755); err != nil {
		return ferrors.New(ferrors.KindIOError, "rename.Rename", backingTo, err)
	}
	if err := os.Symlink(newReal, backingTo); err != nil {
		return ferrors.New(ferrors.KindIOError, "rename.Rename", backingTo, err)
	}
	if err := p.rev.Add(newReal, backingTo); err != nil {
		return err
	}
	if p.debug {
		log.Printf("[rename] %s -> %s (%d view(s) in reverse index updated)", from, to, len(entries))
	}
	return nil
}

// retarget computes the real-file path a rename's new flags/folder
// should produce: same directory and unique id, new flags, and (if
// the real path's own parent is itself named "cur" or "new") the new
// folder classification.
func retarget(real, newFlags, newParent string) string {
	dir := filepath.Dir(real)
	base := filepath.Base(real)
	newBase := maildir.WithFlags(base, newFlags)

	if newParent != "" {
		parentBase := filepath.Base(dir)
		if parentBase == "cur" || parentBase == "new" {
			dir = filepath.Join(filepath.Dir(dir), newParent)
		}
	}
	return filepath.Join(dir, newBase)
}

// Unlink removes one virtual entry, along with the underlying real
// file and every other view of it recorded in the reverse index.
// Without allowDelete it refuses outright and mutates nothing, since
// there is no view-only removal that leaves the real file safe from
// a stale reverse-index entry.
func (p *Protocol) Unlink(virtual string) error {
	if vpath.Classify(virtual) != vpath.ClassEntry {
		return ferrors.New(ferrors.KindInvalidArgument, "rename.Unlink", virtual, nil)
	}
	backing := vpath.ToBacking(p.backingDir, virtual)
	real, err := os.Readlink(backing)
	if err != nil {
		if os.IsNotExist(err) {
			return ferrors.New(ferrors.KindNotFound, "rename.Unlink", virtual, err)
		}
		return ferrors.New(ferrors.KindIOError, "rename.Unlink", virtual, err)
	}

	if !p.allowDelete {
		return ferrors.New(ferrors.KindPermissionDenied, "rename.Unlink", virtual, nil)
	}

	entries, err := p.rev.Enumerate(real)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if err := p.rev.Remove(real, ent.Backing); err != nil && !ferrors.Is(err, ferrors.KindNotFound) {
			return err
		}
		if err := os.Remove(ent.Backing); err != nil && !os.IsNotExist(err) {
			return ferrors.New(ferrors.KindIOError, "rename.Unlink", ent.Backing, err)
		}
	}
	if err := os.Remove(backing); err != nil && !os.IsNotExist(err) {
		return ferrors.New(ferrors.KindIOError, "rename.Unlink", backing, err)
	}
	if err := os.Remove(real); err != nil && !os.IsNotExist(err) {
		return ferrors.New(ferrors.KindIOError, "rename.Unlink", real, err)
	}
	if p.debug {
		log.Printf("[rename] unlink %s (real file and %d view(s) in reverse index removed)", virtual, len(entries))
	}
	return nil
}

// Rmdir removes a query's whole directory: every entry it owns,
// detaching each from the reverse index, the now-empty cur/new
// subdirectories, the query's own backing directory, and (best
// effort) its staleness marker.
func (p *Protocol) Rmdir(virtual string) error {
	if vpath.Classify(virtual) != vpath.ClassQueryRoot {
		return ferrors.New(ferrors.KindInvalidArgument, "rename.Rmdir", virtual, nil)
	}
	encodedQuery := vpath.Basename(virtual)
	root := vpath.QueryBackingRoot(p.backingDir, encodedQuery)

	for _, sub := range []string{"cur", "new"} {
		dir := filepath.Join(root, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return ferrors.New(ferrors.KindIOError, "rename.Rmdir", dir, err)
		}
		for _, e := range entries {
			backing := filepath.Join(dir, e.Name())
			if real, lerr := os.Readlink(backing); lerr == nil {
				if rerr := p.rev.Remove(real, backing); rerr != nil && !ferrors.Is(rerr, ferrors.KindNotFound) {
					return rerr
				}
			}
			if rerr := os.Remove(backing); rerr != nil && !os.IsNotExist(rerr) {
				return ferrors.New(ferrors.KindIOError, "rename.Rmdir", backing, rerr)
			}
		}
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			return ferrors.New(ferrors.KindIOError, "rename.Rmdir", dir, err)
		}
	}

	if err := os.Remove(root); err != nil && !os.IsNotExist(err) {
		return ferrors.New(ferrors.KindIOError, "rename.Rmdir", root, err)
	}
	os.Remove(vpath.LastUpdateMarker(p.backingDir, encodedQuery))
	return nil
}
