// Package spt implements the per-process supplemental page table (spec
// §4.C): an associative map from user virtual page to its backing store.
package spt

import (
	"defs"
	"mem"
	"swap"
)

// State_t tags how a page is currently backed.
type State_t int

const (
	ON_FRAME State_t = iota
	ALL_ZERO
	SWAP_SLOT
	FROM_FILESYS
)

// FileBacking_i is the minimal file handle the supplemental page table
// needs to materialize a FROM_FILESYS page: seek to an offset and read up
// to len(buf) bytes, returning how many were actually read.
type FileBacking_i interface {
	ReadAt(buf []byte, off int64) (int, defs.Err_t)
}

// Spte_t is one supplemental page-table entry.
type Spte_t struct {
	Page     uintptr // page-aligned user virtual address; the map key
	Frame    mem.Pa_t
	Writable bool
	Present  bool
	State    State_t

	// FROM_FILESYS
	File       FileBacking_i
	FileOff    int64
	ReadBytes  int
	ZeroBytes  int

	// SWAP_SLOT
	Slot swap.Slot_t
}

// Table_t is a process's supplemental page table.
type Table_t struct {
	entries map[uintptr]*Spte_t
}

// New returns an empty supplemental page table.
func New() *Table_t {
	return &Table_t{entries: make(map[uintptr]*Spte_t)}
}

// Create installs a new SPTE at page. It fails if one already exists
// there (spec §4.C). For FROM_FILESYS with readBytes==0 the entry is
// coerced to ALL_ZERO, per spec's explicit design decision.
func (t *Table_t) Create(page uintptr, state State_t, writable bool, aux Spte_t) (*Spte_t, bool) {
	if _, ok := t.entries[page]; ok {
		return nil, false
	}
	if state == FROM_FILESYS && aux.ReadBytes == 0 {
		state = ALL_ZERO
	}
	e := &Spte_t{Page: page, State: state, Writable: writable, Slot: swap.NoSlot, Frame: mem.NoPa}
	switch state {
	case ON_FRAME:
		e.Frame = aux.Frame
		e.Present = true
	case ALL_ZERO:
		e.Present = false
	case FROM_FILESYS:
		e.File = aux.File
		e.FileOff = aux.FileOff
		e.ReadBytes = aux.ReadBytes
		e.ZeroBytes = aux.ZeroBytes
		e.Present = false
	case SWAP_SLOT:
		// spec: SWAP_SLOT is never directly created, only via eviction.
		panic("spt: SWAP_SLOT must be created by eviction, not Create")
	}
	t.entries[page] = e
	return e, true
}

// Lookup returns the entry at page, or nil.
func (t *Table_t) Lookup(page uintptr) *Spte_t {
	return t.entries[page]
}

// Remove deletes the entry at page, if any, without touching its frame or
// swap slot -- callers that need cleanup should inspect the entry first
// (see Destroy).
func (t *Table_t) Remove(page uintptr) {
	delete(t.entries, page)
}

// ForEach visits every entry. The supplied function must not mutate the
// table.
func (t *Table_t) ForEach(f func(*Spte_t)) {
	for _, e := range t.entries {
		f(e)
	}
}

// Len reports the number of entries.
func (t *Table_t) Len() int {
	return len(t.entries)
}
