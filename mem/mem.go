// Package mem simulates the kernel's physical user-pool memory. A real
// kernel manages actual physical RAM through a custom runtime (Get_phys,
// a direct-map region, recursive page-table slots); this module has no
// hardware to program, so a physical frame is represented as a plain
// byte-array "page" handed out from a fixed-size pool, addressed by an
// opaque Pa_t. Everything above this layer (frame table, supplemental
// page table, page-fault handler) only ever sees Pa_t + Pool_i, never a
// raw pointer, so the simulation is a drop-in substitute for real frames.
package mem

import (
	"fmt"
	"sync"
)

// PGSHIFT/PGSIZE mirror the standard x86 page geometry exactly.
const PGSHIFT uint = 12
const PGSIZE int = 1 << PGSHIFT

// Pa_t is an opaque physical frame identifier (an index into the pool,
// not a real address -- there is nothing to dereference).
type Pa_t int

// NoPa is the sentinel meaning "no frame" (frame ids start at 0).
const NoPa Pa_t = -1

// Page_t is the byte-addressable content of one physical frame.
type Page_t [PGSIZE]byte

// Pool_i abstracts the user-pool frame allocator. Frame, swap, and vm only
// depend on this interface, never on Pool_t directly, so tests can inject
// a tiny pool to force eviction deterministically (spec §8 scenario 3).
type Pool_i interface {
	// Alloc returns a zero-filled frame and its id, or ok=false if the
	// pool is exhausted.
	Alloc() (Pa_t, bool)
	// Free returns a frame to the pool.
	Free(Pa_t)
	// At returns the page backing pa. pa must currently be allocated.
	At(Pa_t) *Page_t
	// Avail reports remaining capacity.
	Avail() int
	Cap() int
}

// Pool_t is a fixed-capacity in-process simulation of the kernel's user
// page pool.
type Pool_t struct {
	mu    sync.Mutex
	pages []Page_t
	used  []bool
	free  []Pa_t
}

// NewPool creates a pool with room for n frames.
func NewPool(n int) *Pool_t {
	if n <= 0 {
		panic("mem: pool size must be positive")
	}
	p := &Pool_t{
		pages: make([]Page_t, n),
		used:  make([]bool, n),
		free:  make([]Pa_t, n),
	}
	for i := 0; i < n; i++ {
		p.free[i] = Pa_t(n - 1 - i)
	}
	return p
}

func (p *Pool_t) Alloc() (Pa_t, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return NoPa, false
	}
	pa := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[pa] = true
	p.pages[pa] = Page_t{}
	return pa, true
}

func (p *Pool_t) Free(pa Pa_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pa < 0 || int(pa) >= len(p.pages) {
		panic("mem: bad frame id")
	}
	if !p.used[pa] {
		panic("mem: double free")
	}
	p.used[pa] = false
	p.free = append(p.free, pa)
}

func (p *Pool_t) At(pa Pa_t) *Page_t {
	if pa < 0 || int(pa) >= len(p.pages) {
		panic("mem: bad frame id")
	}
	return &p.pages[pa]
}

func (p *Pool_t) Avail() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

func (p *Pool_t) Cap() int {
	return len(p.pages)
}

func (p *Pool_t) String() string {
	return fmt.Sprintf("pool(%d/%d free)", p.Avail(), p.Cap())
}
