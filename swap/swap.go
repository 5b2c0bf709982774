// Package swap implements the disk-backed swap area (spec §4.A): a
// fixed-size slot store with a free-slot bitmap, sized off an injected
// block device the way frame.Table_t and vm.Vm_t are constructed with an
// injected mem.Pool_i (spec §9, "pass a context handle explicitly").
package swap

import (
	"sync"

	"defs"
	"mem"
)

// BlockDevice_i is the "swap" role block device spec §6 describes: a
// contiguous run of page-sized slots starting at sector 0. Real disk I/O
// is out of scope (spec §1); an implementation backs this with a byte
// buffer, a file, or a real block device.
type BlockDevice_i interface {
	// NumSlots reports how many page-sized slots the device holds.
	NumSlots() int
	// ReadSlot copies slot i's bytes into dst (len(dst) == mem.PGSIZE).
	ReadSlot(i int, dst []byte)
	// WriteSlot writes src (len(src) == mem.PGSIZE) into slot i.
	WriteSlot(i int, src []byte)
}

// Slot_t indexes a swap slot. NoSlot means "no swap slot assigned".
type Slot_t int

const NoSlot Slot_t = -1

// Swap_t is the global swap area singleton (one per booted kernel, but
// constructed explicitly rather than package-level so tests can run
// several in parallel).
type Swap_t struct {
	mu     sync.Mutex
	dev    BlockDevice_i
	used   []bool
	nfree  int
}

// New creates a swap area backed by dev. All slots start free.
func New(dev BlockDevice_i) *Swap_t {
	n := dev.NumSlots()
	return &Swap_t{
		dev:   dev,
		used:  make([]bool, n),
		nfree: n,
	}
}

// SwapOut finds the first free slot, marks it used, and writes page into
// it. Returns NoSlot if the device is full -- spec §7 treats "no free swap
// slot while evicting" as catastrophic (the caller panics), but SwapOut
// itself just reports the condition.
func (s *Swap_t) SwapOut(page *mem.Page_t) (Slot_t, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.used {
		if !u {
			s.used[i] = true
			s.nfree--
			s.dev.WriteSlot(i, page[:])
			return Slot_t(i), true
		}
	}
	return NoSlot, false
}

// SwapIn copies slot's contents back into page and frees the slot. The
// precondition is that slot is currently marked used (spec §4.A).
func (s *Swap_t) SwapIn(slot Slot_t, page *mem.Page_t) defs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := int(slot)
	if i < 0 || i >= len(s.used) || !s.used[i] {
		panic("swap: swap-in of unallocated slot")
	}
	s.dev.ReadSlot(i, page[:])
	s.used[i] = false
	s.nfree++
	return 0
}

// Free discards a swap-resident page without reading it back -- used when
// a process exits while one of its pages is still out on disk.
func (s *Swap_t) Free(slot Slot_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := int(slot)
	if i < 0 || i >= len(s.used) {
		panic("swap: bad slot")
	}
	if !s.used[i] {
		panic("swap: double free")
	}
	s.used[i] = false
	s.nfree++
}

// Used reports the number of occupied slots.
func (s *Swap_t) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.used) - s.nfree
}

// FreeCount reports the number of free slots.
func (s *Swap_t) FreeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nfree
}
