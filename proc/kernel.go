// Package proc implements the process descriptor and lifecycle
// coordination (spec §4.D, §4.F): spawn/wait/exit, orphan/zombie
// handling, and executable write-denial, built atop vm, fd, fsys,
// thread, accnt, and res.
package proc

import (
	"sync/atomic"

	"defs"
	"frame"
	"fsys"
	"mem"
	"res"
	"swap"
)

// Console_i is the fd-0/fd-1 console device, implemented by
// scall.Console_t. Declared here (not imported from scall) since scall
// depends on proc, not the reverse.
type Console_i interface {
	GetC() byte
	PutBuf(buf []byte)
}

// Kernel_t bundles the global singletons every process needs, passed
// explicitly rather than held in package-level vars (spec §9) so tests
// can run several independent kernels side by side.
type Kernel_t struct {
	Pool    mem.Pool_i
	Frames  *frame.Table_t
	Swap    *swap.Swap_t
	Fsys    *fsys.Fsys_t
	Limits  *res.Limits_t
	Console Console_i
	UserMin uintptr
	UserMax uintptr

	nextPid int64
}

// NewKernel constructs a kernel context over the given singletons and
// user address-space bounds.
func NewKernel(pool mem.Pool_i, frames *frame.Table_t, sw *swap.Swap_t, fs *fsys.Fsys_t, limits *res.Limits_t, console Console_i, userMin, userMax uintptr) *Kernel_t {
	return &Kernel_t{
		Pool:    pool,
		Frames:  frames,
		Swap:    sw,
		Fsys:    fs,
		Limits:  limits,
		Console: console,
		UserMin: userMin,
		UserMax: userMax,
	}
}

func (k *Kernel_t) allocPid() defs.Pid_t {
	return defs.Pid_t(atomic.AddInt64(&k.nextPid, 1))
}
