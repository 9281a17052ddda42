package revindex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddEnumerateRemove(t *testing.T) {
	t.Parallel()
	backingDir := t.TempDir()
	store, err := Open(backingDir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	real := "/home/user/Maildir/archive/cur/1234.foo:2,S"
	backing := filepath.Join(backingDir, "_work", "cur", "1234.foo:2,S")
	if err := os.MkdirAll(filepath.Dir(backing), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(real, backing); err != nil {
		t.Fatal(err)
	}

	if err := store.Add(real, backing); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	entries, err := store.Enumerate(real)
	if err != nil {
		t.Fatalf("Enumerate() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Enumerate() returned %d entries, want 1", len(entries))
	}
	if entries[0].Query != "work" || entries[0].CurOrNew != "cur" || entries[0].Basename != "1234.foo:2,S" {
		t.Errorf("Enumerate() entry = %+v, unexpected", entries[0])
	}

	if err := store.Remove(real, backing); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	entries, err = store.Enumerate(real)
	if err != nil {
		t.Fatalf("Enumerate() after remove error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Enumerate() after remove returned %d entries, want 0", len(entries))
	}
}

func TestRemoveReapsEmptyDirs(t *testing.T) {
	t.Parallel()
	backingDir := t.TempDir()
	store, err := Open(backingDir)
	if err != nil {
		t.Fatal(err)
	}

	real := "/home/user/Maildir/archive/cur/1234.foo"
	backing := filepath.Join(backingDir, "_work", "cur", "1234.foo")
	os.MkdirAll(filepath.Dir(backing), 0755)
	os.Symlink(real, backing)

	if err := store.Add(real, backing); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(real, backing); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(store.realDir(real)); !os.IsNotExist(err) {
		t.Errorf("expected reaped real-path shadow directory to be gone, stat err = %v", err)
	}
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected reverse index root to be empty, found %d entries", len(entries))
	}
}

func TestRemoveNotFound(t *testing.T) {
	t.Parallel()
	backingDir := t.TempDir()
	store, err := Open(backingDir)
	if err != nil {
		t.Fatal(err)
	}
	err = store.Remove("/nowhere", filepath.Join(backingDir, "_work", "cur", "x"))
	if err == nil {
		t.Fatal("expected error removing an entry that was never added")
	}
}

func TestEnumerateMultipleQueries(t *testing.T) {
	t.Parallel()
	backingDir := t.TempDir()
	store, err := Open(backingDir)
	if err != nil {
		t.Fatal(err)
	}

	real := "/home/user/Maildir/archive/cur/1234.foo"
	for _, q := range []string{"_work", "_urgent"} {
		backing := filepath.Join(backingDir, q, "cur", "1234.foo")
		os.MkdirAll(filepath.Dir(backing), 0755)
		os.Symlink(real, backing)
		if err := store.Add(real, backing); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.Enumerate(real)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("Enumerate() returned %d entries, want 2", len(entries))
	}
}
