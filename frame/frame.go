// Package frame implements the global frame table (spec §4.B): a registry
// of every physical frame currently backing a user page, with clock
// (second-chance) eviction. A single mutex serializes the list, the
// eviction cursor, and the eviction path itself, including swap I/O --
// exactly the concurrency discipline spec §5 calls for.
package frame

import (
	"container/list"
	"sync"

	"defs"
	"mem"
	"swap"
)

// Owner_i is the minimal slice of vm.Vm_t the frame table needs in order
// to evict one of a process's pages: query/clear the hardware access bit,
// fetch the SPTE for a page, and materialize the eviction outcome into
// it. vm.Vm_t implements this; frame never imports vm (vm imports frame),
// so the dependency is expressed as an interface here instead.
type Owner_i interface {
	// TestAndClearAccessed reports the access bit for va and clears it.
	TestAndClearAccessed(va uintptr) bool
	// ClearPresent removes the page from the hardware mapping, preserving
	// the dirty bit, and reports whether it was dirty.
	ClearPresent(va uintptr) (dirty bool)
	// EvictToSwap or EvictDrop updates the owner's SPTE to reflect that
	// the frame holding va has been evicted.
	EvictToSwap(va uintptr, slot swap.Slot_t)
	EvictDrop(va uintptr)
	// CleanFileBacked reports whether va is a clean, file-backed page that
	// can simply be dropped instead of written to swap.
	CleanFileBacked(va uintptr) bool
}

// Entry_t is one frame-table entry (FTE): a frame bound to exactly one
// owner process and the virtual page currently mapped to it.
type Entry_t struct {
	Frame mem.Pa_t
	Owner Owner_i
	Page  uintptr
}

// Table_t is the global frame table singleton -- constructed explicitly
// (spec §9) rather than as a package-level var, so unit tests can run
// several in isolation.
type Table_t struct {
	mu     sync.Mutex
	pool   mem.Pool_i
	sw     *swap.Swap_t
	l      *list.List // of *Entry_t, clock order
	cursor *list.Element
	byPage map[Owner_i]map[uintptr]*list.Element
}

// New constructs a frame table over the given user-pool allocator and
// swap area.
func New(pool mem.Pool_i, sw *swap.Swap_t) *Table_t {
	return &Table_t{
		pool:   pool,
		sw:     sw,
		l:      list.New(),
		byPage: make(map[Owner_i]map[uintptr]*list.Element),
	}
}

// Allocate acquires the frame mutex, requests a frame from the pool,
// running eviction and retrying (which must then succeed) if the pool is
// exhausted, records an FTE, and returns the frame. Spec §4.B.
func (t *Table_t) Allocate(owner Owner_i, page uintptr) (mem.Pa_t, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pa, ok := t.pool.Alloc()
	if !ok {
		t.evictLocked()
		pa, ok = t.pool.Alloc()
		if !ok {
			// spec §4.B: eviction "MUST now succeed" -- failing here
			// means the pool itself is misconfigured (e.g. 0 frames),
			// not ordinary resource exhaustion.
			panic("frame: eviction did not free a frame")
		}
	}
	t.insertLocked(owner, page, pa)
	return pa, 0
}

func (t *Table_t) insertLocked(owner Owner_i, page uintptr, pa mem.Pa_t) {
	e := &Entry_t{Frame: pa, Owner: owner, Page: page}
	el := t.l.PushBack(e)
	m, ok := t.byPage[owner]
	if !ok {
		m = make(map[uintptr]*list.Element)
		t.byPage[owner] = m
	}
	m[page] = el
}

// Free locates the FTE for (owner, page), removes it, and releases the
// underlying frame back to the pool.
func (t *Table_t) Free(owner Owner_i, page uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el := t.removeEntryLocked(owner, page)
	if el == nil {
		return
	}
	t.pool.Free(el.Value.(*Entry_t).Frame)
}

// EntryDelete is like Free but does not release the physical frame --
// used when the caller (spt_destroy / the owner's page-directory
// destructor) will free the frame itself. Spec §4.B.
func (t *Table_t) EntryDelete(owner Owner_i, page uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeEntryLocked(owner, page)
}

func (t *Table_t) removeEntryLocked(owner Owner_i, page uintptr) *list.Element {
	m, ok := t.byPage[owner]
	if !ok {
		return nil
	}
	el, ok := m[page]
	if !ok {
		return nil
	}
	delete(m, page)
	if len(m) == 0 {
		delete(t.byPage, owner)
	}
	if t.cursor == el {
		t.cursor = t.cursorNext(el)
	}
	t.l.Remove(el)
	return el
}

func (t *Table_t) cursorNext(el *list.Element) *list.Element {
	n := el.Next()
	if n == nil {
		n = t.l.Front()
		if n == el {
			n = nil
		}
	}
	return n
}

// evictLocked runs the clock/second-chance sweep: advance the cursor,
// clearing access bits, until an FTE with a clear access bit is found;
// evict it. Caller must hold t.mu. Spec §4.B.
func (t *Table_t) evictLocked() {
	if t.l.Len() == 0 {
		panic("frame: nothing to evict")
	}
	if t.cursor == nil {
		t.cursor = t.l.Front()
	}
	// second-chance sweep: at most two laps around the list -- the first
	// clears every access bit it sees, so the second is guaranteed to
	// find one already clear.
	for {
		e := t.cursor.Value.(*Entry_t)
		if e.Owner.TestAndClearAccessed(e.Page) {
			t.cursor = t.advance(t.cursor)
			continue
		}
		t.evictEntryLocked(e)
		return
	}
}

func (t *Table_t) advance(el *list.Element) *list.Element {
	n := el.Next()
	if n == nil {
		n = t.l.Front()
	}
	return n
}

func (t *Table_t) evictEntryLocked(e *Entry_t) {
	dirty := e.Owner.ClearPresent(e.Page)
	if !dirty && e.Owner.CleanFileBacked(e.Page) {
		e.Owner.EvictDrop(e.Page)
	} else {
		pg := t.pool.At(e.Frame)
		slot, ok := t.sw.SwapOut(pg)
		if !ok {
			// spec §7: no free swap slot while evicting is catastrophic.
			panic("frame: swap area full during eviction")
		}
		e.Owner.EvictToSwap(e.Page, slot)
	}
	t.removeEntryLocked(e.Owner, e.Page)
	t.pool.Free(e.Frame)
}

// Len reports the number of live FTEs, for tests and trace snapshots.
func (t *Table_t) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.l.Len()
}

// Snapshot returns a point-in-time copy of every live FTE, in clock
// order, for the trace package's pprof-format dump.
func (t *Table_t) Snapshot() []Entry_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry_t, 0, t.l.Len())
	for e := t.l.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*Entry_t))
	}
	return out
}
