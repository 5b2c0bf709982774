// Package vm implements the per-process address space and page-fault
// handler (spec §4.G): it owns a simulated hardware page table (present/
// writable/accessed/dirty bits per user virtual page) plus the process's
// supplemental page table, and resolves faults by materializing pages on
// demand from zero-fill, swap, or the executable's file image.
//
// There is no real MMU here (spec §1 treats the page-table hardware
// interface as an external collaborator); Vm_t's ptes map stands in for
// it, recording exactly the present/writable/accessed/dirty bits a real
// hardware page table would.
package vm

import (
	"sync"

	"defs"
	"frame"
	"mem"
	"spt"
	"swap"
	"util"
)

// pte_t is the simulated hardware page-table entry for one user page.
type pte_t struct {
	present  bool
	writable bool
	accessed bool
	dirty    bool
	frame    mem.Pa_t
}

// StackGrowSlack is the number of bytes below the stack pointer a fault
// is still allowed to grow into, matching the PUSHA instruction the
// growth heuristic accommodates (spec §4.G).
const StackGrowSlack = 32

// DefaultStackCap is the maximum size the stack region may grow to.
const DefaultStackCap = 8 * 1024 * 1024

// Vm_t is one process's address space.
type Vm_t struct {
	mu sync.Mutex

	pool   mem.Pool_i
	frames *frame.Table_t
	swap   *swap.Swap_t

	Spt *spt.Table_t

	ptes map[uintptr]*pte_t

	UserMin  uintptr
	UserMax  uintptr
	StackBot uintptr // lowest address currently backed by the stack region
	StackCap uintptr // max bytes the stack may grow to
}

// New constructs an address space over the given pool/frame-table/swap
// singletons, bounded to [userMin, userMax).
func New(pool mem.Pool_i, frames *frame.Table_t, sw *swap.Swap_t, userMin, userMax uintptr) *Vm_t {
	return &Vm_t{
		pool:     pool,
		frames:   frames,
		swap:     sw,
		Spt:      spt.New(),
		ptes:     make(map[uintptr]*pte_t),
		UserMin:  userMin,
		UserMax:  userMax,
		StackCap: DefaultStackCap,
	}
}

func pground(va uintptr) uintptr {
	return uintptr(util.Rounddown(int(va), mem.PGSIZE))
}

func (as *Vm_t) inUser(va uintptr) bool {
	return va >= as.UserMin && va < as.UserMax
}

// ---- frame.Owner_i ----------------------------------------------------

func (as *Vm_t) TestAndClearAccessed(page uintptr) bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	pte := as.ptes[page]
	if pte == nil {
		return false
	}
	a := pte.accessed
	pte.accessed = false
	return a
}

func (as *Vm_t) ClearPresent(page uintptr) bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	pte := as.ptes[page]
	if pte == nil {
		return false
	}
	pte.present = false
	return pte.dirty
}

func (as *Vm_t) CleanFileBacked(page uintptr) bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	pte := as.ptes[page]
	if pte == nil || pte.dirty {
		return false
	}
	e := as.Spt.Lookup(page)
	return e != nil && e.State == spt.FROM_FILESYS
}

func (as *Vm_t) EvictToSwap(page uintptr, slot swap.Slot_t) {
	as.mu.Lock()
	defer as.mu.Unlock()
	delete(as.ptes, page)
	e := as.Spt.Lookup(page)
	if e == nil {
		panic("vm: evicting page with no SPTE")
	}
	e.State = spt.SWAP_SLOT
	e.Slot = slot
	e.Present = false
	e.Frame = mem.NoPa
}

func (as *Vm_t) EvictDrop(page uintptr) {
	as.mu.Lock()
	defer as.mu.Unlock()
	delete(as.ptes, page)
	e := as.Spt.Lookup(page)
	if e == nil {
		panic("vm: evicting page with no SPTE")
	}
	e.Present = false
	e.Frame = mem.NoPa
}

// ---- fault resolution ---------------------------------------------------

// Fault resolves a fault at virtual address va. userSp is the faulting
// process's current user stack pointer, needed only to decide stack
// growth when no SPTE covers va. A fault outside [UserMin, UserMax) is
// unrecoverable here (spec §4.G step 1): Fault returns EFAULT and the
// caller must terminate the process with -1.
func (as *Vm_t) Fault(va uintptr, write bool, userSp uintptr) defs.Err_t {
	if !as.inUser(va) {
		return defs.EFAULT
	}
	page := pground(va)

	as.mu.Lock()
	e := as.Spt.Lookup(page)
	as.mu.Unlock()

	if e == nil {
		return as.growStack(va, page, userSp)
	}
	return as.materialize(e, write)
}

// materialize resolves one SPTE to a resident frame. It must not hold
// as.mu while calling into the frame table: Allocate may need to evict a
// frame, and eviction calls back into this same Vm_t's Owner_i methods
// (each of which takes as.mu itself), so holding the lock across the call
// would self-deadlock the very first time a single address space runs out
// of frames. Only the brief state check and the final SPTE/pte commit are
// done under the lock.
func (as *Vm_t) materialize(e *spt.Spte_t, write bool) defs.Err_t {
	as.mu.Lock()
	if write && !e.Writable {
		as.mu.Unlock()
		return defs.EFAULT
	}
	state := e.State
	as.mu.Unlock()

	switch state {
	case spt.ON_FRAME:
		// already resident; nothing to do (e.g. a second racing fault).
		return 0
	case spt.ALL_ZERO:
		pa, ok := as.frames.Allocate(as, e.Page)
		if ok != 0 {
			return defs.ENOMEM
		}
		as.mu.Lock()
		as.mapLocked(e.Page, pa, e.Writable)
		e.State = spt.ON_FRAME
		e.Frame = pa
		e.Present = true
		as.mu.Unlock()
		return 0
	case spt.SWAP_SLOT:
		pa, errc := as.frames.Allocate(as, e.Page)
		if errc != 0 {
			return defs.ENOMEM
		}
		pg := as.pool.At(pa)
		if err := as.swap.SwapIn(e.Slot, pg); err != 0 {
			as.frames.Free(as, e.Page)
			return err
		}
		as.mu.Lock()
		as.mapLocked(e.Page, pa, e.Writable)
		e.State = spt.ON_FRAME
		e.Frame = pa
		e.Slot = swap.NoSlot
		e.Present = true
		as.mu.Unlock()
		return 0
	case spt.FROM_FILESYS:
		pa, errc := as.frames.Allocate(as, e.Page)
		if errc != 0 {
			return defs.ENOMEM
		}
		pg := as.pool.At(pa)
		if e.ReadBytes > 0 {
			n, err := e.File.ReadAt(pg[:e.ReadBytes], e.FileOff)
			if err != 0 {
				as.frames.Free(as, e.Page)
				return err
			}
			for i := n; i < e.ReadBytes; i++ {
				pg[i] = 0
			}
		}
		for i := e.ReadBytes; i < e.ReadBytes+e.ZeroBytes && i < mem.PGSIZE; i++ {
			pg[i] = 0
		}
		as.mu.Lock()
		as.mapLocked(e.Page, pa, e.Writable)
		e.Present = true
		e.Frame = pa
		// state intentionally left as FROM_FILESYS: eviction of a clean
		// copy can drop it and re-read later (spec §4.G step 3).
		as.mu.Unlock()
		return 0
	default:
		panic("vm: bad spte state")
	}
}

// growStack implements the stack auto-grow heuristic (spec §4.G step 4):
// an unmapped page qualifies if its faulting address is within
// [userSp-StackGrowSlack, the current stack bound) and within the stack
// size cap.
func (as *Vm_t) growStack(va uintptr, page uintptr, userSp uintptr) defs.Err_t {
	as.mu.Lock()
	if as.StackBot == 0 {
		as.mu.Unlock()
		return defs.EFAULT
	}
	bot := as.StackBot
	top := as.UserMax
	as.mu.Unlock()

	if page >= top {
		return defs.EFAULT
	}
	if userSp < StackGrowSlack {
		return defs.EFAULT
	}
	// the faulting address itself must be at or above user_sp - 32, not
	// just its containing page -- a page can start below that bound yet
	// still hold the one faulting byte that qualifies.
	if va < userSp-StackGrowSlack {
		return defs.EFAULT
	}
	if top-page > as.StackCap {
		return defs.EFAULT
	}
	if page >= bot {
		// already within the backed region; nothing to grow, but this is
		// not itself a fault we understand (no SPTE existed), so reject.
		return defs.EFAULT
	}

	as.mu.Lock()
	for p := page; p < bot; p += uintptr(mem.PGSIZE) {
		if as.Spt.Lookup(p) != nil {
			continue
		}
		if _, ok := as.Spt.Create(p, spt.ALL_ZERO, true, spt.Spte_t{}); !ok {
			as.mu.Unlock()
			return defs.ENOMEM
		}
	}
	as.StackBot = page
	as.mu.Unlock()

	// materialize every newly grown page, not just the faulting one, so
	// a subsequent access anywhere in the grown region finds it resident.
	for p := page; p < bot; p += uintptr(mem.PGSIZE) {
		if err := as.materializeAt(p, false); err != 0 {
			return err
		}
	}
	return 0
}

func (as *Vm_t) materializeAt(page uintptr, write bool) defs.Err_t {
	as.mu.Lock()
	e := as.Spt.Lookup(page)
	as.mu.Unlock()
	if e == nil {
		return defs.EFAULT
	}
	return as.materialize(e, write)
}

func (as *Vm_t) mapLocked(page uintptr, pa mem.Pa_t, writable bool) {
	as.ptes[page] = &pte_t{present: true, writable: writable, accessed: true, frame: pa}
}

// InitStack reserves [top-StackCap, top) as the stack region's ceiling and
// installs one zero page at the very top of user space, as the loader's
// setup_stack does (spec §4.E step 4).
func (as *Vm_t) InitStack(top uintptr) defs.Err_t {
	page := pground(top - 1)
	as.mu.Lock()
	if _, ok := as.Spt.Create(page, spt.ALL_ZERO, true, spt.Spte_t{}); !ok {
		as.mu.Unlock()
		return defs.ENOMEM
	}
	as.StackBot = page
	as.mu.Unlock()
	return as.materializeAt(page, true)
}

// Destroy tears down the address space: every SPTE is walked; each resident
// page's FTE is removed with EntryDelete (which leaves the frame allocated)
// and its frame is then returned to the pool here, standing in for the
// page-directory destructor; swap slots are freed.
func (as *Vm_t) Destroy() {
	as.mu.Lock()
	entries := make([]*spt.Spte_t, 0, as.Spt.Len())
	as.Spt.ForEach(func(e *spt.Spte_t) { entries = append(entries, e) })
	as.mu.Unlock()

	for _, e := range entries {
		switch e.State {
		case spt.ON_FRAME:
			as.frames.EntryDelete(as, e.Page)
			as.pool.Free(e.Frame)
		case spt.FROM_FILESYS:
			if e.Present {
				as.frames.EntryDelete(as, e.Page)
				as.pool.Free(e.Frame)
			}
		case spt.SWAP_SLOT:
			as.swap.Free(e.Slot)
		}
	}
}

// ---- user memory access for the syscall gateway ------------------------

// touch ensures va's page is present (faulting it in if necessary) and
// returns the byte slice of the page starting at va's offset, or an
// error. userSp is only consulted if the page needs to grow the stack.
func (as *Vm_t) touch(va uintptr, write bool, userSp uintptr) ([]byte, defs.Err_t) {
	if !as.inUser(va) {
		return nil, defs.EFAULT
	}
	page := pground(va)
	as.mu.Lock()
	pte, present := as.ptes[page], false
	if pte != nil {
		present = pte.present
	}
	as.mu.Unlock()
	if !present || pte == nil {
		if err := as.Fault(va, write, userSp); err != 0 {
			return nil, err
		}
		as.mu.Lock()
		pte = as.ptes[page]
		as.mu.Unlock()
		if pte == nil {
			return nil, defs.EFAULT
		}
	}
	if write && !pte.writable {
		return nil, defs.EFAULT
	}
	as.mu.Lock()
	pte.accessed = true
	if write {
		pte.dirty = true
	}
	as.mu.Unlock()
	pg := as.pool.At(pte.frame)
	off := int(va - page)
	return pg[off:], 0
}

// ReadUser copies len(dst) bytes from user address va into dst.
func (as *Vm_t) ReadUser(dst []byte, va uintptr, userSp uintptr) defs.Err_t {
	for len(dst) > 0 {
		src, err := as.touch(va, false, userSp)
		if err != 0 {
			return err
		}
		n := util.Min(len(dst), len(src))
		copy(dst, src[:n])
		dst = dst[n:]
		va += uintptr(n)
	}
	return 0
}

// WriteUser copies src into user address va.
func (as *Vm_t) WriteUser(va uintptr, src []byte, userSp uintptr) defs.Err_t {
	for len(src) > 0 {
		dst, err := as.touch(va, true, userSp)
		if err != 0 {
			return err
		}
		n := util.Min(len(src), len(dst))
		copy(dst, src[:n])
		src = src[n:]
		va += uintptr(n)
	}
	return 0
}

// ReadUserString walks user bytes from va until NUL (spec §4.H's
// verify_string), up to lenmax bytes, returning the bytes read (without
// the NUL).
func (as *Vm_t) ReadUserString(va uintptr, lenmax int, userSp uintptr) ([]byte, defs.Err_t) {
	var out []byte
	for {
		b, err := as.touch(va, false, userSp)
		if err != 0 {
			return nil, err
		}
		for _, c := range b {
			if c == 0 {
				return out, 0
			}
			out = append(out, c)
			if len(out) >= lenmax {
				return nil, defs.ENAMETOOLONG
			}
		}
		va += uintptr(len(b))
	}
}

// VerifyBuffer probes every byte of [va, va+n) for accessibility without
// returning the contents -- spec §4.H's verify_buffer.
func (as *Vm_t) VerifyBuffer(va uintptr, n int, write bool, userSp uintptr) defs.Err_t {
	for off := 0; off < n; {
		b, err := as.touch(va+uintptr(off), write, userSp)
		if err != 0 {
			return err
		}
		off += len(b)
	}
	return 0
}
