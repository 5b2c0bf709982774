package main

import (
	"testing"

	"ustr"
	"vfs"
)

func TestLookupPathRoot(t *testing.T) {
	fs := vfs.New()
	got, err := lookupPath(fs, ustr.MkUstrRoot())
	if err != 0 || got != fs.Root() {
		t.Fatalf("expected root, got %v err=%d", got, err)
	}
	got2, err2 := lookupPath(fs, ustr.MkUstr())
	if err2 != 0 || got2 != fs.Root() {
		t.Fatalf("expected root for empty path, got %v err=%d", got2, err2)
	}
}

func TestLookupPathNested(t *testing.T) {
	fs := vfs.New()
	sub, _ := fs.Mkdir(fs.Root(), "a")
	fs.Mkdir(sub, "b")

	got, err := lookupPath(fs, ustr.Ustr("/a/b"))
	if err != 0 {
		t.Fatalf("lookup failed: %d", err)
	}
	want, _ := fs.Lookup(sub, "b")
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLookupPathMissingComponentFails(t *testing.T) {
	fs := vfs.New()
	if _, err := lookupPath(fs, ustr.Ustr("/nope")); err == 0 {
		t.Fatal("expected lookup of missing path to fail")
	}
}
