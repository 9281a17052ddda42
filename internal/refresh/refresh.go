// Package refresh implements the refresh engine: the atomic two-pass
// reconciliation of a query's backing maildir against a freshly
// staged result set, with the reverse index kept in sync.
package refresh

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tomhrr/fsmu/internal/ferrors"
	"github.com/tomhrr/fsmu/internal/revindex"
	"github.com/tomhrr/fsmu/internal/search"
	"github.com/tomhrr/fsmu/internal/staleness"
	"github.com/tomhrr/fsmu/internal/vpath"
)

// Engine drives refreshes for all of a mount's query directories.
type Engine struct {
	backingDir string
	clock      *staleness.Clock
	invoker    *search.Invoker
	rev        *revindex.Store
	debug      bool

	// group coalesces concurrent Refresh calls for the same query into
	// one in-flight execution whose result every joined caller shares.
	// It works alongside the stamp-before-search in refreshOnce.
	group singleflight.Group
}

// New returns an Engine. backingDir is the root of the backing
// directory tree; clock, invoker and rev are the staleness clock,
// search invoker and reverse-index store it drives.
func New(backingDir string, clock *staleness.Clock, invoker *search.Invoker, rev *revindex.Store, debug bool) *Engine {
	return &Engine{backingDir: backingDir, clock: clock, invoker: invoker, rev: rev, debug: debug}
}

// Refreshable reports whether virtual is a path that refresh may act
// on — anything other than the root, a bare query root, or a reserved
// ("_"-prefixed) name.
func Refreshable(virtual string) bool {
	switch vpath.Classify(virtual) {
	case vpath.ClassCurOrNew, vpath.ClassEntry, vpath.ClassRefreshTrigger:
		return true
	default:
		return false
	}
}

// Refresh reconciles the query's backing maildir (cur/ and new/)
// against a fresh run of the search tool, unless a prior refresh is
// still fresh and force is false.
func (e *Engine) Refresh(ctx context.Context, encodedQuery string, force bool) error {
	marker := vpath.LastUpdateMarker(e.backingDir, encodedQuery)

	due, err := e.clock.Due(marker, force)
	if err != nil {
		return err
	}
	if !due {
		return nil
	}

	_, err, _ = e.group.Do(encodedQuery, func() (any, error) {
		return nil, e.refreshOnce(ctx, encodedQuery)
	})
	return err
}

func (e *Engine) refreshOnce(ctx context.Context, encodedQuery string) error {
	marker := vpath.LastUpdateMarker(e.backingDir, encodedQuery)

	// Stamp before running the search so that a caller arriving while
	// this execution is in flight sees a fresh marker in Due and
	// returns without starting or joining another refresh.
	if err := staleness.Stamp(marker); err != nil {
		return err
	}

	stagingDir := filepath.Join(e.backingDir, "_tempdir."+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return ferrors.New(ferrors.KindIOError, "refresh.Refresh", stagingDir, err)
	}
	defer os.RemoveAll(stagingDir)

	query := vpath.DecodeQuery(encodedQuery)
	if err := e.invoker.Run(ctx, query, stagingDir); err != nil {
		return err
	}

	backingRoot := vpath.QueryBackingRoot(e.backingDir, encodedQuery)
	if err := os.MkdirAll(filepath.Join(backingRoot, "cur"), 0755); err != nil {
		return ferrors.New(ferrors.KindIOError, "refresh.Refresh", backingRoot, err)
	}
	if err := os.MkdirAll(filepath.Join(backingRoot, "new"), 0755); err != nil {
		return ferrors.New(ferrors.KindIOError, "refresh.Refresh", backingRoot, err)
	}

	for _, sub := range []string{"cur", "new"} {
		evicted, installed, err := e.reconcile(
			filepath.Join(backingRoot, sub),
			filepath.Join(stagingDir, sub),
		)
		if err != nil {
			return err
		}
		if e.debug {
			log.Printf("[refresh] %s/%s: evicted %s, installed %s",
				encodedQuery, sub, humanize.Comma(int64(evicted)), humanize.Comma(int64(installed)))
		}
	}
	return nil
}

// reconcile runs Pass 1 (preserve overlap, evict gone) then Pass 2
// (install new) for one maildir subdirectory ("cur" or "new"),
// maintaining the reverse index as it goes.
func (e *Engine) reconcile(backingSub, stagingSub string) (evicted, installed int, err error) {
	backingEntries, err := os.ReadDir(backingSub)
	if err != nil {
		return 0, 0, ferrors.New(ferrors.KindIOError, "refresh.reconcile", backingSub, err)
	}

	// Pass 1: preserve overlap, evict gone.
	for _, be := range backingEntries {
		name := be.Name()
		stagingPath := filepath.Join(stagingSub, name)
		backingPath := filepath.Join(backingSub, name)

		if _, serr := os.Stat(backingPath); os.IsNotExist(serr) {
			// A dangling backing symlink (its real file is gone) is
			// corrupt: evict it with its reverse-index entry, log.
			log.Printf("[refresh] dangling backing entry %s, evicting", backingPath)
			if target, lerr := os.Readlink(backingPath); lerr == nil {
				if rerr := e.rev.Remove(target, backingPath); rerr != nil && !ferrors.Is(rerr, ferrors.KindNotFound) {
					log.Printf("[refresh] reverse-index remove failed for %s: %v", backingPath, rerr)
				}
			}
			os.Remove(backingPath)
			evicted++
			continue
		}

		if _, serr := os.Lstat(stagingPath); serr == nil {
			// Same filename in both sets: same message (maildir unique
			// ids make the filename the identity).
			// Keep the backing symlink in place, discard the staging
			// copy so Pass 2 doesn't reinstall it.
			if rerr := os.Remove(stagingPath); rerr != nil {
				return evicted, installed, ferrors.New(ferrors.KindIOError, "refresh.reconcile", stagingPath, rerr)
			}
			continue
		}

		target, lerr := os.Readlink(backingPath)
		if lerr != nil {
			// A pre-existing backing symlink whose target can't be
			// read is corrupt: evict it, skip the reverse-index
			// removal (there's nothing reliable to key it by), log.
			log.Printf("[refresh] corrupt backing entry %s, evicting: %v", backingPath, lerr)
			os.Remove(backingPath)
			evicted++
			continue
		}

		if rerr := e.rev.Remove(target, backingPath); rerr != nil && !ferrors.Is(rerr, ferrors.KindNotFound) {
			log.Printf("[refresh] reverse-index remove failed for %s: %v", backingPath, rerr)
		}
		if rerr := os.Remove(backingPath); rerr != nil {
			return evicted, installed, ferrors.New(ferrors.KindIOError, "refresh.reconcile", backingPath, rerr)
		}
		evicted++
	}

	// Pass 2: install new. Whatever remains in staging after Pass 1
	// wasn't already present in backing.
	stagingEntries, err := os.ReadDir(stagingSub)
	if err != nil {
		return evicted, installed, ferrors.New(ferrors.KindIOError, "refresh.reconcile", stagingSub, err)
	}
	for _, se := range stagingEntries {
		name := se.Name()
		stagingPath := filepath.Join(stagingSub, name)
		backingPath := filepath.Join(backingSub, name)

		// Can't happen under invariant 4, but defensively: if Pass 1
		// somehow left a backing entry with this name, the rename
		// must replace it.
		if _, serr := os.Lstat(backingPath); serr == nil {
			os.Remove(backingPath)
		}

		if rerr := os.Rename(stagingPath, backingPath); rerr != nil {
			return evicted, installed, ferrors.New(ferrors.KindIOError, "refresh.reconcile", backingPath, rerr)
		}
		target, lerr := os.Readlink(backingPath)
		if lerr != nil {
			log.Printf("[refresh] installed entry %s unreadable immediately after rename: %v", backingPath, lerr)
			continue
		}
		if aerr := e.rev.Add(target, backingPath); aerr != nil {
			return evicted, installed, aerr
		}
		installed++
	}

	return evicted, installed, nil
}
