// Package vfs is a from-scratch, in-memory implementation of the
// "assumed provided" on-disk filesystem API spec §1 describes
// (open/create/remove/mkdir/read/write/seek/tell/length/close, inode
// identity, directory iteration). A real on-disk filesystem's log,
// superblock, and block cache are explicitly out of scope (spec §1 "the
// on-disk filesystem ... assumed provided"); this package only needs to
// honor the calling convention an Fs_open/Fs_mkdir/deny-write machinery
// would establish, not reimplement the disk log.
package vfs

import (
	"sync"

	"defs"
)

// Inode_t is either a regular file or a directory.
type Inode_t struct {
	mu        sync.Mutex
	Ino       uint64
	IsDir     bool
	data      []byte
	entries   []dirent
	denyWrite int // spec §4.F/§9: refcount, not a bool, so two readers
	// both deny writes until both exit
	removed bool
}

type dirent struct {
	name  string
	inode *Inode_t
}

// Fs_t is the in-memory filesystem singleton.
type Fs_t struct {
	mu      sync.Mutex
	nextIno uint64
	root    *Inode_t
}

// New creates a filesystem containing only the root directory.
func New() *Fs_t {
	fs := &Fs_t{nextIno: 1}
	fs.root = fs.newInode(true)
	fs.root.entries = []dirent{{".", fs.root}, {"..", fs.root}}
	return fs
}

// Root returns the root directory inode.
func (fs *Fs_t) Root() *Inode_t {
	return fs.root
}

func (fs *Fs_t) newInode(isDir bool) *Inode_t {
	fs.mu.Lock()
	ino := fs.nextIno
	fs.nextIno++
	fs.mu.Unlock()
	return &Inode_t{Ino: ino, IsDir: isDir}
}

// Lookup finds name within dir. "." and ".." are honored as ordinary
// entries (installed at directory creation time).
func (fs *Fs_t) Lookup(dir *Inode_t, name string) (*Inode_t, defs.Err_t) {
	if !dir.IsDir {
		return nil, defs.ENOTDIR
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	for _, d := range dir.entries {
		if d.name == name {
			return d.inode, 0
		}
	}
	return nil, defs.ENOENT
}

// Create makes a new, empty regular file named name inside dir.
func (fs *Fs_t) Create(dir *Inode_t, name string) (*Inode_t, defs.Err_t) {
	return fs.link(dir, name, false)
}

// Mkdir makes a new, empty directory named name inside dir, with "."
// and ".." entries pointing to itself and dir (spec §4.J).
func (fs *Fs_t) Mkdir(dir *Inode_t, name string) (*Inode_t, defs.Err_t) {
	child, err := fs.link(dir, name, true)
	if err != 0 {
		return nil, err
	}
	child.entries = []dirent{{".", child}, {"..", dir}}
	return child, 0
}

func (fs *Fs_t) link(dir *Inode_t, name string, isDir bool) (*Inode_t, defs.Err_t) {
	if !dir.IsDir {
		return nil, defs.ENOTDIR
	}
	if len(name) == 0 {
		return nil, defs.EINVAL
	}
	if len(name) > 255 {
		return nil, defs.ENAMETOOLONG
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if dir.removed {
		// spec §7: "creating through a removed directory" is a
		// filesystem error, never a process termination.
		return nil, defs.ENOENT
	}
	for _, d := range dir.entries {
		if d.name == name {
			return nil, defs.EEXIST
		}
	}
	child := fs.newInode(isDir)
	dir.entries = append(dir.entries, dirent{name, child})
	return child, 0
}

// Remove unlinks name from dir. A non-empty directory (entry count
// excluding "." and ".." nonzero) cannot be removed (spec §4.J). Open
// file descriptors on the removed inode continue to function until
// closed (spec §9's resolution of the open-question).
func (fs *Fs_t) Remove(dir *Inode_t, name string) defs.Err_t {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	idx := -1
	for i, d := range dir.entries {
		if d.name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return defs.ENOENT
	}
	target := dir.entries[idx].inode
	if target.IsDir {
		target.mu.Lock()
		n := 0
		for _, d := range target.entries {
			if d.name != "." && d.name != ".." {
				n++
			}
		}
		target.mu.Unlock()
		if n > 0 {
			return defs.ENOTEMPTY
		}
	}
	dir.entries = append(dir.entries[:idx], dir.entries[idx+1:]...)
	target.mu.Lock()
	target.removed = true
	target.mu.Unlock()
	return 0
}

// Readdir returns the name of the i'th entry beyond "." and "..", or
// ok=false past the end.
func (in *Inode_t) Readdir(i int) (name string, ok bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, d := range in.entries {
		if d.name == "." || d.name == ".." {
			continue
		}
		if n == i {
			return d.name, true
		}
		n++
	}
	return "", false
}

// Size returns a file's current length.
func (in *Inode_t) Size() int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return int64(len(in.data))
}

// ReadAt reads into buf starting at off, returning bytes read (spec
// §4.C's FROM_FILESYS backing calls this through spt.FileBacking_i).
func (in *Inode_t) ReadAt(buf []byte, off int64) (int, defs.Err_t) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if off < 0 {
		return 0, defs.EINVAL
	}
	if off >= int64(len(in.data)) {
		return 0, 0
	}
	n := copy(buf, in.data[off:])
	return n, 0
}

// WriteAt writes buf at off, growing the file if necessary. Returns
// EACCES if the inode currently denies writes (spec: executable
// write-denial).
func (in *Inode_t) WriteAt(buf []byte, off int64) (int, defs.Err_t) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.denyWrite > 0 {
		return 0, defs.EACCES
	}
	if off < 0 {
		return 0, defs.EINVAL
	}
	end := off + int64(len(buf))
	if end > int64(len(in.data)) {
		grown := make([]byte, end)
		copy(grown, in.data)
		in.data = grown
	}
	copy(in.data[off:end], buf)
	return len(buf), 0
}

// DenyWrite/AllowWrite implement the deny-write refcount described in
// SPEC_FULL.md §4: two concurrent readers (e.g. two processes executing
// the same binary) both deny writes until both release.
func (in *Inode_t) DenyWrite() {
	in.mu.Lock()
	in.denyWrite++
	in.mu.Unlock()
}

func (in *Inode_t) AllowWrite() {
	in.mu.Lock()
	if in.denyWrite > 0 {
		in.denyWrite--
	}
	in.mu.Unlock()
}
