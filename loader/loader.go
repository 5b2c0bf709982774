// Package loader parses an ELF32 executable and lazily maps it into a
// fresh address space (spec §4.E): header validation, one FROM_FILESYS
// SPTE per page of every PT_LOAD segment, and the initial argv stack.
// No physical frames are touched at load time -- everything is demand
// paged through vm.Vm_t on first access.
package loader

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"defs"
	"mem"
	"spt"
	"util"
	"vm"
)

// MaxPhnum bounds the number of program headers a header is allowed to
// declare, matching spec §4.E step 2.
const MaxPhnum = 1024

// Image_t is a parsed executable ready to back a fresh address space.
type Image_t struct {
	Entry uintptr
}

// FileBacking_i is the handle the loader reads segment bytes through;
// satisfied by vfs.Inode_t.
type FileBacking_i interface {
	ReadAt(buf []byte, off int64) (int, defs.Err_t)
}

// Load validates hdr/phdrs from file, and for every PT_LOAD segment
// installs FROM_FILESYS SPTEs covering its pages into as.Spt. It returns
// the ELF entry point on success.
func Load(as *vm.Vm_t, file FileBacking_i, raw []byte, userMax uintptr) (Image_t, defs.Err_t) {
	ef, err := elf.NewFile(byteReaderAt(raw))
	if err != nil {
		return Image_t{}, defs.EINVAL
	}
	if ef.Class != elf.ELFCLASS32 {
		return Image_t{}, defs.EINVAL
	}
	if ef.Type != elf.ET_EXEC {
		return Image_t{}, defs.EINVAL
	}
	if ef.Machine != elf.EM_386 {
		return Image_t{}, defs.EINVAL
	}
	if ef.Version != elf.EV_CURRENT {
		return Image_t{}, defs.EINVAL
	}
	if len(ef.Progs) > MaxPhnum {
		return Image_t{}, defs.EINVAL
	}

	for _, ph := range ef.Progs {
		switch ph.Type {
		case elf.PT_LOAD:
			if e := loadSegment(as, file, ph, userMax); e != 0 {
				return Image_t{}, e
			}
		case elf.PT_DYNAMIC, elf.PT_INTERP, elf.PT_SHLIB:
			// spec §4.E step 3: reject dynamic/interp/shared executables.
			return Image_t{}, defs.EINVAL
		default:
			// not loadable; ignored.
		}
	}

	entry := uintptr(ef.Entry)
	if derr := sanityCheckEntry(raw, ef, entry); derr != nil {
		fmt.Printf("loader: entry point sanity check failed: %v\n", derr)
	}
	return Image_t{Entry: entry}, 0
}

func loadSegment(as *vm.Vm_t, file FileBacking_i, ph *elf.Prog, userMax uintptr) defs.Err_t {
	vaddr := uintptr(ph.Vaddr)
	offset := int64(ph.Off)
	filesz := ph.Filesz
	memsz := ph.Memsz

	if memsz == 0 {
		return defs.EINVAL
	}
	if memsz < filesz {
		return defs.EINVAL
	}
	if vaddr < uintptr(mem.PGSIZE) {
		// spec §4.E step 3: vaddr must be at or above page 0's ceiling.
		return defs.EINVAL
	}
	end := vaddr + uintptr(memsz)
	if end < vaddr {
		return defs.EINVAL // wraps
	}
	if end > userMax {
		return defs.EINVAL
	}
	if int64(vaddr)%int64(mem.PGSIZE) != offset%int64(mem.PGSIZE) {
		// offset and vaddr must agree modulo page size.
		return defs.EINVAL
	}

	pageVa := util.Rounddown(int(vaddr), mem.PGSIZE)
	segStart := int(vaddr)
	segFileEnd := segStart + int(filesz)
	segEnd := segStart + int(memsz)

	for p := pageVa; p < segEnd; p += mem.PGSIZE {
		pageEnd := p + mem.PGSIZE
		readStart := util.Max(p, segStart)
		readEnd := util.Min(pageEnd, segFileEnd)
		readBytes := 0
		var fileOff int64
		if readEnd > readStart {
			readBytes = readEnd - readStart
			fileOff = offset + int64(readStart-segStart)
		}
		zeroBytes := mem.PGSIZE - readBytes

		writable := ph.Flags&elf.PF_W != 0
		if _, ok := as.Spt.Create(uintptr(p), spt.FROM_FILESYS, writable, spt.Spte_t{
			File:      file,
			FileOff:   fileOff,
			ReadBytes: readBytes,
			ZeroBytes: zeroBytes,
		}); !ok {
			// two segments mapping the same page is a malformed binary.
			return defs.EINVAL
		}
	}
	return 0
}

// sanityCheckEntry decodes the first instruction at the ELF entry point
// as a best-effort validation that execution starts on a real x86
// instruction boundary rather than mid-segment garbage. Failure to
// decode is logged by the caller but does not fail the load -- spec
// §4.E does not require instruction-level validation, this is defense
// in depth grounded on x86asm's decoder.
func sanityCheckEntry(raw []byte, ef *elf.File, entry uintptr) error {
	for _, ph := range ef.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		if entry < uintptr(ph.Vaddr) || entry >= uintptr(ph.Vaddr+ph.Filesz) {
			continue
		}
		off := int64(ph.Off) + int64(entry-uintptr(ph.Vaddr))
		if off < 0 || off >= int64(len(raw)) {
			continue
		}
		_, err := x86asm.Decode(raw[off:util.Min(len(raw), int(off)+16)], 32)
		return err
	}
	return errors.New("loader: entry point not within any PT_LOAD segment")
}

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, fmt.Errorf("loader: out-of-range offset %d", off)
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, errors.New("loader: short read")
	}
	return n, nil
}

// ---- stack setup --------------------------------------------------------

// BuildStack lays out argv on the fresh stack per spec §4.E step 4:
// strings pushed in reverse with their addresses recorded, the pointer
// array 4-byte aligned with a NULL sentinel, then argv, argc, and a
// zero return address. It returns the resulting stack pointer.
//
// Each write passes its own post-decrement sp as the growStack reference
// point rather than the fixed top-of-stack userSp: argv large enough to
// spill below the page InitStack already backed would otherwise fault
// more than StackGrowSlack bytes below a userSp pinned at top, and
// growStack would reject the very growth this function depends on.
func BuildStack(as *vm.Vm_t, top uintptr, argv []string) (uintptr, defs.Err_t) {
	sp := top

	addrs := make([]uintptr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i]
		n := len(s) + 1 // NUL
		sp -= uintptr(n)
		buf := make([]byte, n)
		copy(buf, s)
		if err := as.WriteUser(sp, buf, sp); err != 0 {
			return 0, err
		}
		addrs[i] = sp
	}

	sp = uintptr(util.Rounddown(int(sp), 4))

	// NULL sentinel, then each string address in reverse (so argv[0]'s
	// address ends up lowest, i.e. at argv[0] of the eventual array).
	sp -= 4
	if err := writeWord(as, sp, 0, sp); err != 0 {
		return 0, err
	}
	for i := len(addrs) - 1; i >= 0; i-- {
		sp -= 4
		if err := writeWord(as, sp, uint32(addrs[i]), sp); err != 0 {
			return 0, err
		}
	}
	argvPtr := sp

	sp -= 4
	if err := writeWord(as, sp, uint32(argvPtr), sp); err != 0 {
		return 0, err
	}
	sp -= 4
	if err := writeWord(as, sp, uint32(len(argv)), sp); err != 0 {
		return 0, err
	}
	sp -= 4
	if err := writeWord(as, sp, 0, sp); err != 0 { // fake return address
		return 0, err
	}
	return sp, 0
}

func writeWord(as *vm.Vm_t, va uintptr, v uint32, userSp uintptr) defs.Err_t {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return as.WriteUser(va, buf[:], userSp)
}
