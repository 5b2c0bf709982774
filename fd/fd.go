// Package fd implements the per-process file-descriptor layer (spec
// §4.I): small-integer handles mapping to an opened regular file or
// directory, plus the per-process current-working-directory handle
// (fd.Cwd_t). Descriptors are assigned monotonically starting at
// defs.FD_FIRST, resetting back to FD_FIRST whenever the table empties.
package fd

import (
	"sync"

	"defs"
	"ustr"
	"vfs"
)

// File_t is an open regular-file handle with its own read/write cursor.
type File_t struct {
	mu   sync.Mutex
	Ino  *vfs.Inode_t
	pos  int64
}

func NewFile(in *vfs.Inode_t) *File_t {
	return &File_t{Ino: in}
}

func (f *File_t) Read(buf []byte) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.Ino.ReadAt(buf, f.pos)
	if err != 0 {
		return 0, err
	}
	f.pos += int64(n)
	return n, 0
}

func (f *File_t) Write(buf []byte) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.Ino.WriteAt(buf, f.pos)
	if err != 0 {
		return 0, err
	}
	f.pos += int64(n)
	return n, 0
}

func (f *File_t) Seek(pos int64) {
	f.mu.Lock()
	f.pos = pos
	f.mu.Unlock()
}

func (f *File_t) Tell() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *File_t) Filesize() int64 {
	return f.Ino.Size()
}

// Dir_t is an open directory handle with its own readdir cursor.
type Dir_t struct {
	mu   sync.Mutex
	Ino  *vfs.Inode_t
	next int
}

func NewDir(in *vfs.Inode_t) *Dir_t {
	return &Dir_t{Ino: in}
}

// Readdir yields the next non-"."/".." entry name, or ok=false at end
// (spec §4.I).
func (d *Dir_t) Readdir() (name string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name, ok = d.Ino.Readdir(d.next)
	if ok {
		d.next++
	}
	return name, ok
}

// Entry_t is one file-descriptor-table entry: exactly one of File/Dir is
// non-nil (spec §3).
type Entry_t struct {
	Fd   int
	File *File_t
	Dir  *Dir_t
}

func (e *Entry_t) IsDir() bool { return e.Dir != nil }

func (e *Entry_t) Inumber() uint64 {
	if e.Dir != nil {
		return e.Dir.Ino.Ino
	}
	return e.File.Ino.Ino
}

func (e *Entry_t) Close() {
	// closing just drops the handle; vfs inodes have no close-time side
	// effect in this in-memory filesystem beyond write-deny release,
	// which proc.Exit handles through the PCB's Exe handle rather than
	// through a descriptor.
}

// Table_t is a process's file-descriptor table: descriptors are assigned
// monotonically -- FD_FIRST if empty, else last-assigned+1 (spec §3).
type Table_t struct {
	mu      sync.Mutex
	entries map[int]*Entry_t
	last    int
}

func NewTable() *Table_t {
	return &Table_t{entries: make(map[int]*Entry_t), last: defs.FD_FIRST - 1}
}

// InstallFile allocates the next descriptor for a file handle and returns it.
func (t *Table_t) InstallFile(f *File_t) int {
	return t.install(&Entry_t{File: f})
}

// InstallDir allocates the next descriptor for a directory handle.
func (t *Table_t) InstallDir(d *Dir_t) int {
	return t.install(&Entry_t{Dir: d})
}

func (t *Table_t) install(e *Entry_t) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		t.last = defs.FD_FIRST - 1
	}
	t.last++
	e.Fd = t.last
	t.entries[e.Fd] = e
	return e.Fd
}

// Get returns the entry for fd, or nil.
func (t *Table_t) Get(fdn int) *Entry_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[fdn]
}

// Remove deletes fd from the table (does not close the underlying
// handle -- callers close first, then Remove).
func (t *Table_t) Remove(fdn int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, fdn)
}

// ForEach visits every live descriptor, used by process exit to close
// everything still open.
func (t *Table_t) ForEach(f func(*Entry_t)) {
	t.mu.Lock()
	entries := make([]*Entry_t, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.Unlock()
	for _, e := range entries {
		f(e)
	}
}

// Cwd_t tracks a process's current working directory.
type Cwd_t struct {
	mu   sync.Mutex
	Dir  *vfs.Inode_t
	Path ustr.Ustr
}

// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd(root *vfs.Inode_t) *Cwd_t {
	return &Cwd_t{Dir: root, Path: ustr.MkUstrRoot()}
}

// Clone returns an independent copy of c. Unused by spawn itself (spec
// §9's open question is resolved in favor of the source behavior: a
// spawned child's cwd starts at root, not a copy of its parent's --
// see proc.Spawn), but kept for callers that do want an explicit
// snapshot of a cwd, e.g. tests.
func (c *Cwd_t) Clone() *Cwd_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Cwd_t{Dir: c.Dir, Path: c.Path.Clone()}
}

// Set updates the cwd after a successful chdir.
func (c *Cwd_t) Set(dir *vfs.Inode_t, path ustr.Ustr) {
	c.mu.Lock()
	c.Dir = dir
	c.Path = path
	c.mu.Unlock()
}

// Get returns the current directory inode and canonical path.
func (c *Cwd_t) Get() (*vfs.Inode_t, ustr.Ustr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Dir, c.Path
}
