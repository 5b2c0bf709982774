package fd

import (
	"testing"

	"defs"
	"ustr"
	"vfs"
)

func TestFileReadWriteSeekTell(t *testing.T) {
	fs := vfs.New()
	ino, _ := fs.Create(fs.Root(), "a")
	f := NewFile(ino)

	if _, err := f.Write([]byte("hello")); err != 0 {
		t.Fatalf("write failed: %v", err)
	}
	if f.Tell() != 5 {
		t.Fatalf("expected pos 5, got %d", f.Tell())
	}
	f.Seek(0)
	buf := make([]byte, 5)
	n, err := f.Read(buf)
	if err != 0 || n != 5 || string(buf) != "hello" {
		t.Fatalf("read mismatch: n=%d buf=%q err=%v", n, buf, err)
	}
	if f.Filesize() != 5 {
		t.Fatalf("expected filesize 5, got %d", f.Filesize())
	}
}

func TestDirReaddirExhausted(t *testing.T) {
	fs := vfs.New()
	fs.Create(fs.Root(), "a")
	fs.Create(fs.Root(), "b")
	d := NewDir(fs.Root())

	seen := map[string]bool{}
	for {
		name, ok := d.Readdir()
		if !ok {
			break
		}
		seen[name] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 entries, got %v", seen)
	}
}

func TestTableInstallAssignsFromFdFirst(t *testing.T) {
	fs := vfs.New()
	ino, _ := fs.Create(fs.Root(), "a")
	tbl := NewTable()
	fdn := tbl.InstallFile(NewFile(ino))
	if fdn != defs.FD_FIRST {
		t.Fatalf("expected first fd to be %d, got %d", defs.FD_FIRST, fdn)
	}
	fdn2 := tbl.InstallDir(NewDir(fs.Root()))
	if fdn2 != defs.FD_FIRST+1 {
		t.Fatalf("expected second fd to be %d, got %d", defs.FD_FIRST+1, fdn2)
	}
}

func TestTableGetRemove(t *testing.T) {
	fs := vfs.New()
	ino, _ := fs.Create(fs.Root(), "a")
	tbl := NewTable()
	fdn := tbl.InstallFile(NewFile(ino))

	e := tbl.Get(fdn)
	if e == nil || e.IsDir() {
		t.Fatal("expected a non-dir entry")
	}
	if e.Inumber() != ino.Ino {
		t.Fatalf("expected inumber %d, got %d", ino.Ino, e.Inumber())
	}

	tbl.Remove(fdn)
	if tbl.Get(fdn) != nil {
		t.Fatal("expected entry gone after remove")
	}
}

// TestTableReusesFdAfterTableEmpties covers the fd-reuse scenario: once
// every descriptor is removed, the next install must restart from
// defs.FD_FIRST rather than continue the monotonic counter.
func TestTableReusesFdAfterTableEmpties(t *testing.T) {
	fs := vfs.New()
	ino, _ := fs.Create(fs.Root(), "a")
	tbl := NewTable()

	fdn := tbl.InstallFile(NewFile(ino))
	if fdn != defs.FD_FIRST {
		t.Fatalf("expected first fd to be %d, got %d", defs.FD_FIRST, fdn)
	}
	tbl.Remove(fdn)

	fdn2 := tbl.InstallFile(NewFile(ino))
	if fdn2 != defs.FD_FIRST {
		t.Fatalf("expected reused fd to be %d, got %d", defs.FD_FIRST, fdn2)
	}
}

func TestTableForEach(t *testing.T) {
	fs := vfs.New()
	ino, _ := fs.Create(fs.Root(), "a")
	tbl := NewTable()
	tbl.InstallFile(NewFile(ino))
	tbl.InstallDir(NewDir(fs.Root()))

	count := 0
	tbl.ForEach(func(e *Entry_t) { count++ })
	if count != 2 {
		t.Fatalf("expected 2 entries visited, got %d", count)
	}
}

func TestCwdSetGet(t *testing.T) {
	fs := vfs.New()
	cwd := MkRootCwd(fs.Root())
	dir, path := cwd.Get()
	if dir != fs.Root() || !path.Eq(ustr.MkUstrRoot()) {
		t.Fatalf("expected root cwd, got dir=%v path=%q", dir, path.String())
	}

	sub, _ := fs.Mkdir(fs.Root(), "sub")
	cwd.Set(sub, ustr.Ustr("/sub"))
	dir2, path2 := cwd.Get()
	if dir2 != sub || path2.String() != "/sub" {
		t.Fatalf("expected updated cwd, got dir=%v path=%q", dir2, path2.String())
	}
}

func TestCwdCloneIsIndependent(t *testing.T) {
	fs := vfs.New()
	cwd := MkRootCwd(fs.Root())
	clone := cwd.Clone()

	sub, _ := fs.Mkdir(fs.Root(), "sub")
	cwd.Set(sub, ustr.Ustr("/sub"))

	dir, path := clone.Get()
	if dir != fs.Root() || path.String() != "/" {
		t.Fatalf("expected clone unaffected by later Set, got dir=%v path=%q", dir, path.String())
	}
}
