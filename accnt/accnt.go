// Package accnt tracks per-process CPU accounting, exposed to a parent
// through wait()'s rusage-style output: a pair of atomically-updated
// nanosecond counters behind a mutex for consistent snapshots.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"util"
)

// Accnt_t accumulates one process's CPU usage. Userns/Sysns are
// nanoseconds; the embedded mutex lets callers take a consistent
// snapshot when exporting usage statistics.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userns, int64(delta))
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

// Now returns the current time in nanoseconds since the epoch.
func (a *Accnt_t) Now() int64 {
	return time.Now().UnixNano()
}

// Finish adds the time elapsed since inttime to system time, called once
// at process exit to account for the final slice.
func (a *Accnt_t) Finish(inttime int64) {
	a.Systadd(int(a.Now() - inttime))
}

// Add merges child into the receiver -- used when a parent folds a
// reaped zombie's accounting into its own.
func (a *Accnt_t) Add(child *Accnt_t) {
	a.Lock()
	a.Userns += child.Userns
	a.Sysns += child.Sysns
	a.Unlock()
}

// Fetch returns a consistent snapshot encoded the way a POSIX rusage
// structure would be marshalled for a user-space caller.
func (a *Accnt_t) Fetch() []uint8 {
	a.Lock()
	defer a.Unlock()
	return a.toRusage()
}

func (a *Accnt_t) toRusage() []uint8 {
	ret := make([]uint8, 4*8)
	totv := func(nano int64) (int, int) {
		return int(nano / 1e9), int((nano % 1e9) / 1000)
	}
	off := 0
	for _, ns := range []int64{a.Userns, a.Sysns} {
		s, us := totv(ns)
		util.Writen(ret, 8, off, s)
		off += 8
		util.Writen(ret, 8, off, us)
		off += 8
	}
	return ret
}
