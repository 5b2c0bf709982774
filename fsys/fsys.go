// Package fsys resolves hierarchical paths against a process's current
// working directory and dispatches to vfs, gluing together bpath, fd, and
// vfs the way an Fs_open/Fs_mkdir entry point pairing would (spec §4.J).
// Nothing here touches the syscall ABI directly -- scall calls into this
// package after validating user pointers.
package fsys

import (
	"defs"
	"bpath"
	"fd"
	"ustr"
	"vfs"
)

// Fsys_t binds an in-memory filesystem to path-resolution helpers.
type Fsys_t struct {
	Fs *vfs.Fs_t
}

func New(fs *vfs.Fs_t) *Fsys_t {
	return &Fsys_t{Fs: fs}
}

// resolve walks path's components starting from cwd (if relative) or the
// filesystem root (if absolute), stopping short of the last component
// when stopBeforeLast is set -- used by Create/Mkdir/Remove, which need
// the parent directory rather than the target itself.
func (s *Fsys_t) resolve(cwd *fd.Cwd_t, path ustr.Ustr, stopBeforeLast bool) (dir *vfs.Inode_t, last ustr.Ustr, err defs.Err_t) {
	// re-root a relative path under the cwd's own canonical path first, so
	// that ".." above the cwd resolves against real ancestry rather than
	// being clamped at the first component; an absolute path is
	// canonicalized as-is.
	full := bpath.Canonicalize(path)
	if !path.IsAbsolute() {
		_, cp := cwd.Get()
		full = bpath.Canonicalize(cp.Extend(path))
	}

	comps := bpath.Split(full)
	if len(comps) == 0 {
		return s.Fs.Root(), ustr.MkUstr(), 0
	}

	cur := s.Fs.Root()
	stop := len(comps)
	if stopBeforeLast {
		stop--
	}
	for i := 0; i < stop; i++ {
		next, e := s.Fs.Lookup(cur, string(comps[i]))
		if e != 0 {
			return nil, nil, e
		}
		if !next.IsDir {
			return nil, nil, defs.ENOTDIR
		}
		cur = next
	}
	if stopBeforeLast {
		return cur, comps[len(comps)-1], 0
	}
	return cur, nil, 0
}

// Lookup resolves path fully and returns the target inode.
func (s *Fsys_t) Lookup(cwd *fd.Cwd_t, path ustr.Ustr) (*vfs.Inode_t, defs.Err_t) {
	target, last, err := s.resolve(cwd, path, true)
	if err != 0 {
		return nil, err
	}
	if len(last) == 0 {
		// the path canonicalized to the root itself (e.g. "/" or "/..")
		return target, 0
	}
	return s.Fs.Lookup(target, string(last))
}

// Create makes a new regular file at path, failing with EEXIST if it is
// already present.
func (s *Fsys_t) Create(cwd *fd.Cwd_t, path ustr.Ustr) (*vfs.Inode_t, defs.Err_t) {
	dir, last, err := s.resolve(cwd, path, true)
	if err != 0 {
		return nil, err
	}
	if len(last) == 0 {
		return nil, defs.EINVAL
	}
	return s.Fs.Create(dir, string(last))
}

// Mkdir makes a new directory at path.
func (s *Fsys_t) Mkdir(cwd *fd.Cwd_t, path ustr.Ustr) defs.Err_t {
	dir, last, err := s.resolve(cwd, path, true)
	if err != 0 {
		return err
	}
	if len(last) == 0 {
		return defs.EINVAL
	}
	_, err = s.Fs.Mkdir(dir, string(last))
	return err
}

// Remove unlinks path.
func (s *Fsys_t) Remove(cwd *fd.Cwd_t, path ustr.Ustr) defs.Err_t {
	dir, last, err := s.resolve(cwd, path, true)
	if err != 0 {
		return err
	}
	if len(last) == 0 {
		return defs.EINVAL
	}
	return s.Fs.Remove(dir, string(last))
}

// Chdir resolves path and, if it names a directory, updates cwd.
func (s *Fsys_t) Chdir(cwd *fd.Cwd_t, path ustr.Ustr) defs.Err_t {
	target, err := s.Lookup(cwd, path)
	if err != 0 {
		return err
	}
	if !target.IsDir {
		return defs.ENOTDIR
	}
	newPath := bpath.Canonicalize(path)
	if !path.IsAbsolute() {
		_, cp := cwd.Get()
		newPath = bpath.Canonicalize(cp.Extend(path))
	}
	cwd.Set(target, newPath)
	return 0
}

// Isdir reports whether path names a directory.
func (s *Fsys_t) Isdir(cwd *fd.Cwd_t, path ustr.Ustr) (bool, defs.Err_t) {
	target, err := s.Lookup(cwd, path)
	if err != 0 {
		return false, err
	}
	return target.IsDir, 0
}
