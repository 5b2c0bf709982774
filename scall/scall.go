// Package scall is the system-call gateway (spec §4.H): it fetches the
// call number and arguments off the user stack through vm's fault-aware
// accessors, validates every user pointer it touches, and dispatches to
// proc/fd/fsys. A bad pointer anywhere in argument fetch or a filesystem
// buffer terminates the process with status -1, following spec §9's
// "the validator IS the fault handler" design.
package scall

import (
	"encoding/binary"

	"defs"
	"fd"
	"proc"
	"ustr"
)

// Outcome reports what Dispatch did to the calling process, beyond the
// ordinary return value.
type Outcome int

const (
	Continue Outcome = iota // process keeps running
	Killed                  // process was terminated (exit, or a bad pointer)
	Halted                  // halt: the caller should stop the whole kernel
)

const wordSize = 4

// Dispatch reads a call number and its arguments from the user stack at
// sp, runs the call, and returns its result plus what became of the
// process. wordAt(sp) is the call number; wordAt(sp+4), wordAt(sp+8), ...
// are its arguments (spec §6's ABI).
func Dispatch(p *proc.Pcb_t, sp uintptr) (int, Outcome) {
	callno, ok := readWord(p, sp, sp)
	if !ok {
		proc.Exit(p, -1)
		return -1, Killed
	}
	arity := defs.Arity(int(int32(callno)))
	if arity < 0 {
		proc.Exit(p, -1)
		return -1, Killed
	}

	args := make([]uint32, arity)
	for i := 0; i < arity; i++ {
		w, ok := readWord(p, sp+uintptr(wordSize*(i+1)), sp)
		if !ok {
			proc.Exit(p, -1)
			return -1, Killed
		}
		args[i] = w
	}

	return dispatch(p, int(int32(callno)), args, sp)
}

func readWord(p *proc.Pcb_t, va uintptr, userSp uintptr) (uint32, bool) {
	var b [wordSize]byte
	if err := p.Vm.ReadUser(b[:], va, userSp); err != 0 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[:]), true
}

func dispatch(p *proc.Pcb_t, callno int, args []uint32, sp uintptr) (int, Outcome) {
	switch callno {
	case defs.SYS_HALT:
		return 0, Halted

	case defs.SYS_EXIT:
		status := int(int32(args[0]))
		proc.Exit(p, status)
		return status, Killed

	case defs.SYS_WAIT:
		pid := defs.Pid_t(int32(args[0]))
		status, err := proc.Wait(p, pid)
		if err != 0 {
			return -1, Continue
		}
		return status, Continue

	case defs.SYS_EXEC:
		cmdline, ok := readUserString(p, uintptr(args[0]), sp)
		if !ok {
			return term(p)
		}
		pid, err := proc.Spawn(p, cmdline)
		if err != 0 {
			return int(defs.SpawnErrPid), Continue
		}
		return int(pid), Continue

	case defs.SYS_CREATE:
		name, ok := readUserString(p, uintptr(args[0]), sp)
		if !ok {
			return term(p)
		}
		size := int(args[1])
		return boolCall(sysCreate(p, name, size))

	case defs.SYS_REMOVE:
		name, ok := readUserString(p, uintptr(args[0]), sp)
		if !ok {
			return term(p)
		}
		return boolCall(p.K.Fsys.Remove(p.Cwd, ustr.Ustr(name)) == 0)

	case defs.SYS_OPEN:
		name, ok := readUserString(p, uintptr(args[0]), sp)
		if !ok {
			return term(p)
		}
		fdn, err := sysOpen(p, name)
		if err != 0 {
			return -1, Continue
		}
		return fdn, Continue

	case defs.SYS_FILESIZE:
		return sysFilesize(p, int(int32(args[0]))), Continue

	case defs.SYS_READ:
		n, ok := sysRead(p, int(int32(args[0])), uintptr(args[1]), int(args[2]), sp)
		if !ok {
			return term(p)
		}
		return n, Continue

	case defs.SYS_WRITE:
		n, ok := sysWrite(p, int(int32(args[0])), uintptr(args[1]), int(args[2]), sp)
		if !ok {
			return term(p)
		}
		return n, Continue

	case defs.SYS_SEEK:
		sysSeek(p, int(int32(args[0])), int64(int32(args[1])))
		return 0, Continue

	case defs.SYS_TELL:
		return sysTell(p, int(int32(args[0]))), Continue

	case defs.SYS_CLOSE:
		sysClose(p, int(int32(args[0])))
		return 0, Continue

	case defs.SYS_CHDIR:
		path, ok := readUserString(p, uintptr(args[0]), sp)
		if !ok {
			return term(p)
		}
		return boolCall(p.K.Fsys.Chdir(p.Cwd, ustr.Ustr(path)) == 0)

	case defs.SYS_MKDIR:
		path, ok := readUserString(p, uintptr(args[0]), sp)
		if !ok {
			return term(p)
		}
		return boolCall(p.K.Fsys.Mkdir(p.Cwd, ustr.Ustr(path)) == 0)

	case defs.SYS_READDIR:
		name, ok := sysReaddir(p, int(int32(args[0])))
		if !ok {
			return boolCall(false)
		}
		if err := writeUserString(p, uintptr(args[1]), name, sp); err != 0 {
			return term(p)
		}
		return boolCall(true)

	case defs.SYS_ISDIR:
		e := p.Fds.Get(int(int32(args[0])))
		return boolCall(e != nil && e.IsDir())

	case defs.SYS_INUMBER:
		e := p.Fds.Get(int(int32(args[0])))
		if e == nil {
			return -1, Continue
		}
		return int(e.Inumber()), Continue

	default:
		proc.Exit(p, -1)
		return -1, Killed
	}
}

func term(p *proc.Pcb_t) (int, Outcome) {
	proc.Exit(p, -1)
	return -1, Killed
}

func boolCall(ok bool) (int, Outcome) {
	if ok {
		return 1, Continue
	}
	return 0, Continue
}

// readUserString fetches a NUL-terminated string, spec §4.H's
// verify_string, up to an arbitrary sane ceiling.
func readUserString(p *proc.Pcb_t, va uintptr, userSp uintptr) (string, bool) {
	b, err := p.Vm.ReadUserString(va, 4096, userSp)
	if err != 0 {
		return "", false
	}
	return string(b), true
}

func writeUserString(p *proc.Pcb_t, va uintptr, s string, userSp uintptr) defs.Err_t {
	buf := append([]byte(s), 0)
	return p.Vm.WriteUser(va, buf, userSp)
}

func sysCreate(p *proc.Pcb_t, name string, size int) bool {
	ino, err := p.K.Fsys.Create(p.Cwd, ustr.Ustr(name))
	if err != 0 {
		return false
	}
	if size > 0 {
		pad := make([]byte, size)
		if _, werr := ino.WriteAt(pad, 0); werr != 0 {
			return false
		}
	}
	return true
}

func sysOpen(p *proc.Pcb_t, name string) (int, defs.Err_t) {
	ino, err := p.K.Fsys.Lookup(p.Cwd, ustr.Ustr(name))
	if err != 0 {
		return -1, err
	}
	if !p.K.Limits.Fds.Take() {
		return -1, defs.EMFILE
	}
	if ino.IsDir {
		d := fd.NewDir(ino)
		return p.Fds.InstallDir(d), 0
	}
	f := fd.NewFile(ino)
	return p.Fds.InstallFile(f), 0
}

func sysFilesize(p *proc.Pcb_t, fdn int) int {
	e := p.Fds.Get(fdn)
	if e == nil || e.File == nil {
		return -1
	}
	return int(e.File.Filesize())
}

// sysRead implements spec §4.I: fd 0 reads from the console one
// keystroke at a time; any other fd requires a (non-directory) file
// handle.
func sysRead(p *proc.Pcb_t, fdn int, va uintptr, n int, userSp uintptr) (int, bool) {
	if fdn == defs.FD_STDIN {
		buf := make([]byte, n)
		for i := 0; i < n; i++ {
			buf[i] = p.K.Console.GetC()
		}
		if err := p.Vm.WriteUser(va, buf, userSp); err != 0 {
			return 0, false
		}
		return n, true
	}
	e := p.Fds.Get(fdn)
	if e == nil || e.File == nil {
		return -1, true
	}
	buf := make([]byte, n)
	got, err := e.File.Read(buf)
	if err != 0 {
		return -1, true
	}
	if got > 0 {
		if werr := p.Vm.WriteUser(va, buf[:got], userSp); werr != 0 {
			return 0, false
		}
	}
	return got, true
}

// sysWrite implements spec §4.I: fd 1 writes to the console; any other
// fd requires a file handle (writing to a directory handle is an
// error).
func sysWrite(p *proc.Pcb_t, fdn int, va uintptr, n int, userSp uintptr) (int, bool) {
	buf := make([]byte, n)
	if err := p.Vm.ReadUser(buf, va, userSp); err != 0 {
		return 0, false
	}
	if fdn == defs.FD_STDOUT {
		p.K.Console.PutBuf(buf)
		return n, true
	}
	e := p.Fds.Get(fdn)
	if e == nil || e.File == nil {
		return -1, true
	}
	wrote, err := e.File.Write(buf)
	if err != 0 {
		return -1, true
	}
	return wrote, true
}

func sysSeek(p *proc.Pcb_t, fdn int, pos int64) {
	e := p.Fds.Get(fdn)
	if e != nil && e.File != nil {
		e.File.Seek(pos)
	}
}

func sysTell(p *proc.Pcb_t, fdn int) int {
	e := p.Fds.Get(fdn)
	if e == nil || e.File == nil {
		return -1
	}
	return int(e.File.Tell())
}

func sysClose(p *proc.Pcb_t, fdn int) {
	e := p.Fds.Get(fdn)
	if e == nil {
		return
	}
	e.Close()
	p.Fds.Remove(fdn)
	p.K.Limits.Fds.Give()
}

func sysReaddir(p *proc.Pcb_t, fdn int) (string, bool) {
	e := p.Fds.Get(fdn)
	if e == nil || e.Dir == nil {
		return "", false
	}
	return e.Dir.Readdir()
}
