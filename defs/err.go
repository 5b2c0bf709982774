package defs

import "golang.org/x/sys/unix"

// Err_t is the kernel's error/return-code type: zero is success, a negative
// value is the negated errno. Syscalls and internal kernel operations never
// return a Go error; they return Err_t so the gateway can hand the raw
// number straight back to user space (spec: system-call ABI).
type Err_t int

// Canonical errno values, borrowed from golang.org/x/sys/unix so the kernel
// reports real POSIX numbers instead of inventing its own.
var (
	EFAULT     = Err_t(-int(unix.EFAULT))
	ENOMEM     = Err_t(-int(unix.ENOMEM))
	ENAMETOOLONG = Err_t(-int(unix.ENAMETOOLONG))
	ENOTDIR    = Err_t(-int(unix.ENOTDIR))
	EISDIR     = Err_t(-int(unix.EISDIR))
	ENOENT     = Err_t(-int(unix.ENOENT))
	EEXIST     = Err_t(-int(unix.EEXIST))
	ENOTEMPTY  = Err_t(-int(unix.ENOTEMPTY))
	EINVAL     = Err_t(-int(unix.EINVAL))
	EMFILE     = Err_t(-int(unix.EMFILE))
	ENOSPC     = Err_t(-int(unix.ENOSPC))
	EBADF      = Err_t(-int(unix.EBADF))
	EACCES     = Err_t(-int(unix.EACCES))
	ECHILD     = Err_t(-int(unix.ECHILD))
	ESRCH      = Err_t(-int(unix.ESRCH))
	ENXIO      = Err_t(-int(unix.ENXIO))
)

// Ok reports whether e denotes success.
func (e Err_t) Ok() bool {
	return e == 0
}

// Int converts the error code to the plain int the syscall ABI writes into
// the accumulator register.
func (e Err_t) Int() int {
	return int(e)
}
