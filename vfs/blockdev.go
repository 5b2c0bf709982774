package vfs

import "mem"

// MemDisk_t is an in-memory block device sized in page-granular slots,
// implementing swap.BlockDevice_i (the "swap" role device, spec §6).
type MemDisk_t struct {
	slots [][mem.PGSIZE]byte
}

// NewMemDisk creates a device with n page-sized slots, all zeroed.
func NewMemDisk(n int) *MemDisk_t {
	return &MemDisk_t{slots: make([][mem.PGSIZE]byte, n)}
}

func (d *MemDisk_t) NumSlots() int { return len(d.slots) }

func (d *MemDisk_t) ReadSlot(i int, dst []byte) {
	copy(dst, d.slots[i][:])
}

func (d *MemDisk_t) WriteSlot(i int, src []byte) {
	copy(d.slots[i][:], src)
}
