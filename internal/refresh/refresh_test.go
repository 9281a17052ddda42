package refresh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomhrr/fsmu/internal/revindex"
	"github.com/tomhrr/fsmu/internal/search"
	"github.com/tomhrr/fsmu/internal/staleness"
	"github.com/tomhrr/fsmu/internal/vpath"
)

// fakeMu writes a shell script that, when run as "find", populates
// its --linksdir with symlinks to the given real paths (all placed in
// "cur").
func fakeMu(t *testing.T, reals ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mu")
	script := "#!/bin/sh\n" +
		"case \"$1\" in\n" +
		"  index) exit 0 ;;\n" +
		"esac\n" +
		"dir=\"\"\n" +
		"for a in \"$@\"; do\n" +
		"  case \"$a\" in\n" +
		"    --linksdir=*) dir=\"${a#--linksdir=}\" ;;\n" +
		"  esac\n" +
		"done\n" +
		"mkdir -p \"$dir/cur\" \"$dir/new\"\n"
	for _, r := range reals {
		script += fmt.Sprintf("ln -s %q \"$dir/cur/%s\"\n", r, filepath.Base(r))
	}
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newEngine(t *testing.T, muPath string) (*Engine, string, *revindex.Store) {
	t.Helper()
	backingDir := t.TempDir()
	rev, err := revindex.Open(backingDir)
	if err != nil {
		t.Fatal(err)
	}
	clock := staleness.New(time.Hour)
	invoker := search.New(search.Options{MuPath: muPath})
	return New(backingDir, clock, invoker, rev, false), backingDir, rev
}

func TestRefreshInstallsAndCoalesces(t *testing.T) {
	t.Parallel()
	real := filepath.Join(t.TempDir(), "1234.foo:2,S")
	os.WriteFile(real, []byte("msg"), 0644)

	engine, backingDir, rev := newEngine(t, fakeMu(t, real))
	if err := os.MkdirAll(vpath.QueryBackingRoot(backingDir, "work")+"/cur", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(vpath.QueryBackingRoot(backingDir, "work")+"/new", 0755); err != nil {
		t.Fatal(err)
	}

	if err := engine.Refresh(context.Background(), "work", true); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	backing := filepath.Join(vpath.QueryBackingRoot(backingDir, "work"), "cur", filepath.Base(real))
	target, err := os.Readlink(backing)
	if err != nil {
		t.Fatalf("expected installed symlink, Readlink error: %v", err)
	}
	if target != real {
		t.Errorf("installed symlink target = %q, want %q", target, real)
	}

	entries, err := rev.Enumerate(real)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Enumerate() after refresh returned %d entries, want 1", len(entries))
	}

	// A second non-forced refresh within the clock's timeout should be
	// a no-op: the marker was just stamped.
	marker := vpath.LastUpdateMarker(backingDir, "work")
	stamped := staleness.LastUpdate(marker)
	if err := engine.Refresh(context.Background(), "work", false); err != nil {
		t.Fatalf("second Refresh() error: %v", err)
	}
	if got := staleness.LastUpdate(marker); !got.Equal(stamped) {
		t.Errorf("second Refresh() re-stamped the marker: mtime %v, want %v", got, stamped)
	}
}

func TestRefreshEvictsGone(t *testing.T) {
	t.Parallel()
	keep := filepath.Join(t.TempDir(), "1111.keep")
	os.WriteFile(keep, nil, 0644)
	gone := filepath.Join(t.TempDir(), "2222.gone")
	os.WriteFile(gone, nil, 0644)

	engine, backingDir, rev := newEngine(t, fakeMu(t, keep))
	curDir := vpath.QueryBackingRoot(backingDir, "work") + "/cur"
	os.MkdirAll(curDir, 0755)
	os.MkdirAll(vpath.QueryBackingRoot(backingDir, "work")+"/new", 0755)

	goneBacking := filepath.Join(curDir, filepath.Base(gone))
	os.Symlink(gone, goneBacking)
	if err := rev.Add(gone, goneBacking); err != nil {
		t.Fatal(err)
	}

	if err := engine.Refresh(context.Background(), "work", true); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if _, err := os.Lstat(goneBacking); !os.IsNotExist(err) {
		t.Errorf("expected evicted entry to be gone, stat err = %v", err)
	}
	entries, err := rev.Enumerate(gone)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected evicted entry removed from reverse index, found %d", len(entries))
	}

	keepBacking := filepath.Join(curDir, filepath.Base(keep))
	if _, err := os.Lstat(keepBacking); err != nil {
		t.Errorf("expected overlap entry preserved: %v", err)
	}
}

func TestRefreshableClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		virtual string
		want    bool
	}{
		{"/", false},
		{"/work", false},
		{"/_reverse", false},
		{"/work/cur", true},
		{"/work/cur/1234.foo", true},
		{"/work/cur/.refresh", true},
	}
	for _, tt := range tests {
		if got := Refreshable(tt.virtual); got != tt.want {
			t.Errorf("Refreshable(%q) = %v, want %v", tt.virtual, got, tt.want)
		}
	}
}
