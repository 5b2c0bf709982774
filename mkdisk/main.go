// Command mkdisk builds an in-memory filesystem image from a skeleton
// directory tree, the same way mkfs built a disk image from "bins/" and
// "c/" skeleton trees -- adapted here to populate vfs.Fs_t (this kernel
// core's in-memory stand-in for the on-disk filesystem) instead of
// writing ufs blocks to a raw disk file, since there is no real disk
// format to target.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bpath"
	"ustr"
	"vfs"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: mkdisk <skeleton-dir>...\n")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	fsys := vfs.New()
	var nfiles, ndirs int
	var nbytes int64

	for _, skeldir := range os.Args[1:] {
		err := filepath.WalkDir(skeldir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(skeldir, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			dst := bpath.Canonicalize(ustr.Ustr("/" + filepath.ToSlash(rel)))
			parent, last := bpath.SplitLast(dst)
			parentDir, perr := lookupPath(fsys, parent)
			if perr != 0 {
				return fmt.Errorf("mkdisk: missing parent for %s", rel)
			}
			if d.IsDir() {
				if _, merr := fsys.Mkdir(parentDir, last.String()); merr != 0 {
					return fmt.Errorf("mkdisk: mkdir %s: %v", rel, merr)
				}
				ndirs++
				return nil
			}
			data, rerr := os.ReadFile(path)
			if rerr != nil {
				return rerr
			}
			ino, cerr := fsys.Create(parentDir, last.String())
			if cerr != 0 {
				return fmt.Errorf("mkdisk: create %s: %v", rel, cerr)
			}
			if _, werr := ino.WriteAt(data, 0); werr != 0 {
				return fmt.Errorf("mkdisk: write %s: %v", rel, werr)
			}
			nfiles++
			nbytes += int64(len(data))
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	fmt.Printf("mkdisk: %d files, %d dirs, %d bytes\n", nfiles, ndirs, nbytes)
}

// lookupPath walks dst component-by-component from fsys's root -- a
// minimal standalone resolver since this tool predates any process
// having a cwd to resolve against.
func lookupPath(fsys *vfs.Fs_t, dst ustr.Ustr) (*vfs.Inode_t, int) {
	cur := fsys.Root()
	if dst.Eq(ustr.MkUstrRoot()) || len(dst) == 0 {
		return cur, 0
	}
	for _, comp := range strings.Split(strings.Trim(dst.String(), "/"), "/") {
		if comp == "" {
			continue
		}
		next, err := fsys.Lookup(cur, comp)
		if err != 0 {
			return nil, -1
		}
		cur = next
	}
	return cur, 0
}
