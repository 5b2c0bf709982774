package vfs

import (
	"testing"

	"defs"
)

func TestRootHasDotAndDotDot(t *testing.T) {
	fs := New()
	root := fs.Root()
	if _, err := fs.Lookup(root, "."); err != 0 {
		t.Fatal("expected . to resolve in root")
	}
	if _, err := fs.Lookup(root, ".."); err != 0 {
		t.Fatal("expected .. to resolve in root")
	}
}

func TestCreateAndLookup(t *testing.T) {
	fs := New()
	root := fs.Root()
	f, err := fs.Create(root, "a")
	if err != 0 {
		t.Fatalf("create failed: %v", err)
	}
	got, err := fs.Lookup(root, "a")
	if err != 0 || got != f {
		t.Fatalf("lookup mismatch: %v %v", got, err)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	fs := New()
	root := fs.Root()
	fs.Create(root, "a")
	if _, err := fs.Create(root, "a"); err != defs.EEXIST {
		t.Fatalf("expected EEXIST, got %v", err)
	}
}

func TestMkdirLinksDotDot(t *testing.T) {
	fs := New()
	root := fs.Root()
	d, err := fs.Mkdir(root, "sub")
	if err != 0 {
		t.Fatalf("mkdir failed: %v", err)
	}
	parent, err := fs.Lookup(d, "..")
	if err != 0 || parent != root {
		t.Fatalf("expected .. to point to root, got %v %v", parent, err)
	}
}

func TestRemoveNonemptyDirFails(t *testing.T) {
	fs := New()
	root := fs.Root()
	d, _ := fs.Mkdir(root, "sub")
	fs.Create(d, "f")
	if err := fs.Remove(root, "sub"); err != defs.ENOTEMPTY {
		t.Fatalf("expected ENOTEMPTY, got %v", err)
	}
}

func TestRemoveThenLookupFails(t *testing.T) {
	fs := New()
	root := fs.Root()
	fs.Create(root, "a")
	if err := fs.Remove(root, "a"); err != 0 {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := fs.Lookup(root, "a"); err != defs.ENOENT {
		t.Fatalf("expected ENOENT after remove, got %v", err)
	}
}

func TestOpenFdSurvivesRemoval(t *testing.T) {
	fs := New()
	root := fs.Root()
	f, _ := fs.Create(root, "a")
	f.WriteAt([]byte("hi"), 0)
	fs.Remove(root, "a")
	// the inode handle itself (as an already-open fd would hold) still
	// works after unlink, per the open-fds-survive-removal resolution.
	buf := make([]byte, 2)
	n, err := f.ReadAt(buf, 0)
	if err != 0 || n != 2 || string(buf) != "hi" {
		t.Fatalf("expected removed-but-open inode still readable, got n=%d err=%v", n, err)
	}
}

func TestReadWriteAt(t *testing.T) {
	fs := New()
	root := fs.Root()
	f, _ := fs.Create(root, "a")
	if _, err := f.WriteAt([]byte("hello"), 0); err != 0 {
		t.Fatalf("write failed: %v", err)
	}
	if f.Size() != 5 {
		t.Fatalf("expected size 5, got %d", f.Size())
	}
	buf := make([]byte, 5)
	n, err := f.ReadAt(buf, 0)
	if err != 0 || n != 5 || string(buf) != "hello" {
		t.Fatalf("read mismatch: n=%d buf=%q err=%v", n, buf, err)
	}
}

func TestWriteAtGrowsFile(t *testing.T) {
	fs := New()
	root := fs.Root()
	f, _ := fs.Create(root, "a")
	f.WriteAt([]byte("abc"), 0)
	f.WriteAt([]byte("xyz"), 5)
	if f.Size() != 8 {
		t.Fatalf("expected size 8, got %d", f.Size())
	}
}

func TestDenyWriteRefcount(t *testing.T) {
	fs := New()
	root := fs.Root()
	f, _ := fs.Create(root, "a")
	f.DenyWrite()
	f.DenyWrite()
	if _, err := f.WriteAt([]byte("x"), 0); err != defs.EACCES {
		t.Fatalf("expected EACCES while denied, got %v", err)
	}
	f.AllowWrite()
	if _, err := f.WriteAt([]byte("x"), 0); err != defs.EACCES {
		t.Fatalf("expected still denied after one AllowWrite (refcount 1), got %v", err)
	}
	f.AllowWrite()
	if _, err := f.WriteAt([]byte("x"), 0); err != 0 {
		t.Fatalf("expected write allowed after both deny refs released, got %v", err)
	}
}

func TestReaddirSkipsDotEntries(t *testing.T) {
	fs := New()
	root := fs.Root()
	fs.Create(root, "a")
	fs.Create(root, "b")
	names := map[string]bool{}
	for i := 0; ; i++ {
		name, ok := root.Readdir(i)
		if !ok {
			break
		}
		names[name] = true
	}
	if len(names) != 2 || !names["a"] || !names["b"] {
		t.Fatalf("unexpected readdir result: %v", names)
	}
}
