package fsys

import (
	"testing"

	"defs"
	"fd"
	"ustr"
	"vfs"
)

func newTestFsys(t *testing.T) (*Fsys_t, *fd.Cwd_t) {
	t.Helper()
	vf := vfs.New()
	s := New(vf)
	cwd := fd.MkRootCwd(vf.Root())
	return s, cwd
}

func TestCreateAndLookupAbsolute(t *testing.T) {
	s, cwd := newTestFsys(t)
	if _, err := s.Create(cwd, ustr.Ustr("/a")); err != 0 {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := s.Lookup(cwd, ustr.Ustr("/a")); err != 0 {
		t.Fatalf("lookup failed: %v", err)
	}
}

func TestCreateMissingParentFails(t *testing.T) {
	s, cwd := newTestFsys(t)
	if _, err := s.Create(cwd, ustr.Ustr("/nosuchdir/a")); err != defs.ENOENT {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestMkdirAndChdirRelative(t *testing.T) {
	s, cwd := newTestFsys(t)
	if err := s.Mkdir(cwd, ustr.Ustr("/sub")); err != 0 {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := s.Chdir(cwd, ustr.Ustr("/sub")); err != 0 {
		t.Fatalf("chdir failed: %v", err)
	}
	_, path := cwd.Get()
	if path.String() != "/sub" {
		t.Fatalf("expected cwd /sub, got %q", path.String())
	}

	// now create a relative path from within /sub
	if _, err := s.Create(cwd, ustr.Ustr("f")); err != 0 {
		t.Fatalf("relative create failed: %v", err)
	}
	if _, err := s.Lookup(cwd, ustr.Ustr("/sub/f")); err != 0 {
		t.Fatalf("expected relative create to land in /sub: %v", err)
	}
}

func TestChdirDotDotAboveCwdWalksRealAncestry(t *testing.T) {
	s, cwd := newTestFsys(t)
	s.Mkdir(cwd, ustr.Ustr("/a"))
	s.Mkdir(cwd, ustr.Ustr("/a/b"))
	s.Chdir(cwd, ustr.Ustr("/a/b"))

	if err := s.Chdir(cwd, ustr.Ustr("..")); err != 0 {
		t.Fatalf("chdir .. failed: %v", err)
	}
	_, path := cwd.Get()
	if path.String() != "/a" {
		t.Fatalf("expected cwd /a after .., got %q", path.String())
	}
}

func TestRemoveThenLookupFails(t *testing.T) {
	s, cwd := newTestFsys(t)
	s.Create(cwd, ustr.Ustr("/a"))
	if err := s.Remove(cwd, ustr.Ustr("/a")); err != 0 {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := s.Lookup(cwd, ustr.Ustr("/a")); err != defs.ENOENT {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestIsdir(t *testing.T) {
	s, cwd := newTestFsys(t)
	s.Mkdir(cwd, ustr.Ustr("/d"))
	s.Create(cwd, ustr.Ustr("/f"))

	if ok, err := s.Isdir(cwd, ustr.Ustr("/d")); err != 0 || !ok {
		t.Fatalf("expected /d to be a dir, got ok=%v err=%v", ok, err)
	}
	if ok, err := s.Isdir(cwd, ustr.Ustr("/f")); err != 0 || ok {
		t.Fatalf("expected /f to not be a dir, got ok=%v err=%v", ok, err)
	}
}

func TestLookupTrailingSlashReturnsDirItself(t *testing.T) {
	s, cwd := newTestFsys(t)
	s.Mkdir(cwd, ustr.Ustr("/d"))
	target, err := s.Lookup(cwd, ustr.Ustr("/d/"))
	if err != 0 || !target.IsDir {
		t.Fatalf("expected trailing-slash lookup to resolve the directory itself, got %v %v", target, err)
	}
}
