// Package thread stands in for the scheduler/thread primitives spec §1
// treats as an external collaborator (current/create/exit/block/yield
// plus a counting semaphore). It is implemented on top of real
// goroutines -- the closest the Go runtime has to a preemptive kernel
// thread -- rather than hand-rolling one with sync.Cond the way
// Killnaps.Cond does; see Sema_t for why golang.org/x/sync/semaphore
// was considered and rejected for the counting semaphore specifically.
package thread

import (
	"runtime"
	"sync/atomic"

	"defs"
)

var nextTid int64

// newTid hands out process-unique thread ids.
func newTid() defs.Tid_t {
	return defs.Tid_t(atomic.AddInt64(&nextTid, 1))
}

// Note_t is the per-thread bookkeeping record, modeled on tinfo.Tnote_t:
// enough state for the owner (proc) to know whether the thread backing
// a PCB is still alive.
type Note_t struct {
	Tid   defs.Tid_t
	alive atomic.Bool
	done  chan struct{}
}

// Alive reports whether the thread has not yet returned from its entry
// function.
func (n *Note_t) Alive() bool {
	return n.alive.Load()
}

// Wait blocks until the thread exits. Used by tests; the kernel itself
// never waits on thread death directly -- it waits on Sema_t (wait_done).
func (n *Note_t) Wait() {
	<-n.done
}

// Create spawns entry on a new goroutine standing in for a kernel thread
// and returns its Note_t immediately (spec: thread API "create").
func Create(entry func()) *Note_t {
	n := &Note_t{Tid: newTid(), done: make(chan struct{})}
	n.alive.Store(true)
	go func() {
		defer func() {
			n.alive.Store(false)
			close(n.done)
		}()
		entry()
	}()
	return n
}

// Yield cooperatively yields the current goroutine, the nearest analog to
// the scheduler's "yield" primitive available without a custom runtime.
func Yield() {
	runtime.Gosched()
}

// Sema_t is the counting semaphore spec §5 calls for: exec_ready and
// wait_done are each a Sema_t initialized to 0, Up()'d exactly once under
// the already_waited-style at-most-once guard, Down()'d by the blocker.
//
// golang.org/x/sync/semaphore.Weighted was considered here but its
// capacity model is inverted for this use: a Weighted semaphore starts
// "full" (all N permits immediately acquirable) and Release restores
// capacity, whereas exec_ready/wait_done need a counter that starts at
// zero and is opened by Up -- so a small buffered channel, Go's
// idiomatic counting semaphore, is used instead.
type Sema_t struct {
	c chan struct{}
}

// NewSema returns a semaphore initialized to 0.
func NewSema() *Sema_t {
	return &Sema_t{c: make(chan struct{}, 1)}
}

// Up (signal / V) lets one Down proceed. The channel has capacity 1, so an
// Up while a signal is already pending is dropped; spec's usage never
// signals more than once per semaphore, so a capacity-1 channel suffices.
func (s *Sema_t) Up() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

// Down (wait / P) blocks the calling goroutine until the semaphore is
// positive, then decrements it.
func (s *Sema_t) Down() {
	<-s.c
}
