// Package revindex implements the reverse-index store: a filesystem-backed
// multimap from real message path to every backing path currently
// referencing it. The index lives under "<backing-dir>/_reverse"
// as a shadow tree keyed by the real path's own directory components, so
// that persistence survives process restarts with no separate consistency
// protocol to keep in sync with an in-memory structure.
package revindex

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tomhrr/fsmu/internal/ferrors"
)

// SentinelName is the root directory name of the reverse-index shadow
// tree, relative to the backing directory.
const SentinelName = "_reverse"

// Store is a handle onto the reverse index rooted at
// "<backingDir>/_reverse".
type Store struct {
	root string // "<backingDir>/_reverse"
}

// Open returns a Store rooted under backingDir, creating the sentinel
// directory if it doesn't already exist.
func Open(backingDir string) (*Store, error) {
	root := filepath.Join(backingDir, SentinelName)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, ferrors.New(ferrors.KindIOError, "revindex.Open", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the reverse index's root directory.
func (s *Store) Root() string { return s.root }

// realDir maps a real message path onto its shadow directory under
// the reverse index root, by reproducing the real path's own
// directory components under the root.
func (s *Store) realDir(real string) string {
	clean := strings.TrimPrefix(filepath.Clean(real), string(filepath.Separator))
	return filepath.Join(s.root, clean)
}

// backingTail splits a backing path "<backingDir>/_<query>/<cur|new>/<basename>"
// into its query/cur-or-new/basename tail, the shape the reverse index
// nests real-path entries under.
func backingTail(backing string) (query, curOrNew, basename string, ok bool) {
	parts := strings.Split(filepath.ToSlash(backing), "/")
	if len(parts) < 3 {
		return "", "", "", false
	}
	tail := parts[len(parts)-3:]
	query = strings.TrimPrefix(tail[0], "_")
	curOrNew = tail[1]
	basename = tail[2]
	if curOrNew != "cur" && curOrNew != "new" {
		return "", "", "", false
	}
	return query, curOrNew, basename, true
}

// Add records that backing is a symlink pointing at real, creating
// "_reverse/<real>/<query>/<cur|new>/<basename>" as a symlink to
// backing (invariant 1).
func (s *Store) Add(real, backing string) error {
	query, curOrNew, basename, ok := backingTail(backing)
	if !ok {
		return ferrors.New(ferrors.KindIOError, "revindex.Add", backing, nil)
	}
	dir := filepath.Join(s.realDir(real), query, curOrNew)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ferrors.New(ferrors.KindIOError, "revindex.Add", dir, err)
	}
	link := filepath.Join(dir, basename)
	if err := os.Symlink(backing, link); err != nil {
		return ferrors.New(ferrors.KindIOError, "revindex.Add", link, err)
	}
	return nil
}

// Remove deletes the reverse-index entry for (real, backing), then
// reaps now-empty parent directories upward until it reaches a
// non-empty directory or the sentinel root (invariant 5).
func (s *Store) Remove(real, backing string) error {
	query, curOrNew, basename, ok := backingTail(backing)
	if !ok {
		return ferrors.New(ferrors.KindIOError, "revindex.Remove", backing, nil)
	}
	dir := filepath.Join(s.realDir(real), query, curOrNew)
	link := filepath.Join(dir, basename)

	if _, err := os.Lstat(link); err != nil {
		if os.IsNotExist(err) {
			return ferrors.New(ferrors.KindNotFound, "revindex.Remove", link, err)
		}
		return ferrors.New(ferrors.KindIOError, "revindex.Remove", link, err)
	}
	if err := os.Remove(link); err != nil {
		return ferrors.New(ferrors.KindIOError, "revindex.Remove", link, err)
	}
	s.reap(dir)
	return nil
}

// reap removes dir and its ancestors while they are empty, stopping
// at (and never removing) the sentinel root.
func (s *Store) reap(dir string) {
	for {
		if dir == s.root || !strings.HasPrefix(dir, s.root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// BackingEntry is one (query, cur-or-new, basename, backing path)
// tuple returned by Enumerate.
type BackingEntry struct {
	Query    string
	CurOrNew string
	Basename string
	Backing  string
}

// Enumerate returns every backing path currently mapped from real,
// used by the rename protocol's fan-out step.
func (s *Store) Enumerate(real string) ([]BackingEntry, error) {
	base := s.realDir(real)
	if _, err := os.Stat(base); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ferrors.New(ferrors.KindIOError, "revindex.Enumerate", base, err)
	}

	var out []BackingEntry
	queryDirs, err := os.ReadDir(base)
	if err != nil {
		return nil, ferrors.New(ferrors.KindIOError, "revindex.Enumerate", base, err)
	}
	for _, qd := range queryDirs {
		if !qd.IsDir() {
			continue
		}
		query := qd.Name()
		queryPath := filepath.Join(base, query)
		curNewDirs, err := os.ReadDir(queryPath)
		if err != nil {
			continue
		}
		for _, cn := range curNewDirs {
			if !cn.IsDir() || (cn.Name() != "cur" && cn.Name() != "new") {
				continue
			}
			curOrNew := cn.Name()
			entDir := filepath.Join(queryPath, curOrNew)
			entries, err := os.ReadDir(entDir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				link := filepath.Join(entDir, e.Name())
				target, err := os.Readlink(link)
				if err != nil {
					continue
				}
				out = append(out, BackingEntry{
					Query:    query,
					CurOrNew: curOrNew,
					Basename: e.Name(),
					Backing:  target,
				})
			}
		}
	}
	return out, nil
}
