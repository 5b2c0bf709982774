package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"defs"
	"frame"
	"mem"
	"spt"
	"swap"
	"vfs"
	"vm"
)

const testVaddr = 0x2000
const testOff = 0x1000
const testFilesz = 16

// buildMinimalElf assembles a minimal valid ELF32/EM_386/ET_EXEC image with
// one PT_LOAD segment: a page-aligned header region, followed at testOff by
// testFilesz bytes of x86 NOPs (0x90), which decode cleanly under x86asm and
// serve as the segment's entry point.
func buildMinimalElf() []byte {
	buf := make([]byte, testOff+testFilesz)

	ident := []byte{0x7f, 'E', 'L', 'F', 1 /* ELFCLASS32 */, 1 /* ELFDATA2LSB */, 1 /* EV_CURRENT */, 0}
	copy(buf[0:16], ident)

	bo := binary.LittleEndian
	bo.PutUint16(buf[16:18], 2)           // e_type = ET_EXEC
	bo.PutUint16(buf[18:20], 3)           // e_machine = EM_386
	bo.PutUint32(buf[20:24], 1)           // e_version = EV_CURRENT
	bo.PutUint32(buf[24:28], testVaddr)   // e_entry
	bo.PutUint32(buf[28:32], 52)          // e_phoff, right after the 52-byte Ehdr
	bo.PutUint32(buf[32:36], 0)           // e_shoff
	bo.PutUint32(buf[36:40], 0)           // e_flags
	bo.PutUint16(buf[40:42], 52)          // e_ehsize
	bo.PutUint16(buf[42:44], 32)          // e_phentsize
	bo.PutUint16(buf[44:46], 1)           // e_phnum
	bo.PutUint16(buf[46:48], 0)           // e_shentsize
	bo.PutUint16(buf[48:50], 0)           // e_shnum
	bo.PutUint16(buf[50:52], 0)           // e_shstrndx

	ph := buf[52:84]
	bo.PutUint32(ph[0:4], 1)             // p_type = PT_LOAD
	bo.PutUint32(ph[4:8], testOff)       // p_offset
	bo.PutUint32(ph[8:12], testVaddr)    // p_vaddr
	bo.PutUint32(ph[12:16], testVaddr)   // p_paddr
	bo.PutUint32(ph[16:20], testFilesz)  // p_filesz
	bo.PutUint32(ph[20:24], mem.PGSIZE)  // p_memsz: one page
	bo.PutUint32(ph[24:28], 5)           // p_flags = PF_R|PF_X
	bo.PutUint32(ph[28:32], mem.PGSIZE)  // p_align

	for i := testOff; i < testOff+testFilesz; i++ {
		buf[i] = 0x90 // NOP, decodes cleanly for the entry-point sanity check
	}
	return buf
}

type fakeFile struct{ data []byte }

func (f *fakeFile) ReadAt(dst []byte, off int64) (int, defs.Err_t) {
	if off < 0 || off >= int64(len(f.data)) {
		return 0, 0
	}
	n := copy(dst, f.data[off:])
	return n, 0
}

func newTestVm(t *testing.T, userMax uintptr) *vm.Vm_t {
	t.Helper()
	pool := mem.NewPool(8)
	sw := swap.New(vfs.NewMemDisk(8))
	ft := frame.New(pool, sw)
	return vm.New(pool, ft, sw, uintptr(mem.PGSIZE), userMax)
}

func TestLoadValidImage(t *testing.T) {
	raw := buildMinimalElf()
	as := newTestVm(t, 0x100000)
	img, err := Load(as, &fakeFile{data: raw}, raw, 0x100000)
	if err != 0 {
		t.Fatalf("load failed: %v", err)
	}
	if img.Entry != testVaddr {
		t.Fatalf("expected entry %#x, got %#x", testVaddr, img.Entry)
	}
	spte := as.Spt.Lookup(testVaddr)
	if spte == nil {
		t.Fatal("expected an SPTE installed at the segment's page")
	}
	if spte.State != spt.FROM_FILESYS {
		t.Fatalf("expected FROM_FILESYS state, got %v", spte.State)
	}
	if spte.ReadBytes != testFilesz {
		t.Fatalf("expected ReadBytes %d, got %d", testFilesz, spte.ReadBytes)
	}
	if spte.ZeroBytes != mem.PGSIZE-testFilesz {
		t.Fatalf("expected ZeroBytes %d, got %d", mem.PGSIZE-testFilesz, spte.ZeroBytes)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	raw := buildMinimalElf()
	raw[0] = 0x00
	as := newTestVm(t, 0x100000)
	if _, err := Load(as, &fakeFile{data: raw}, raw, 0x100000); err != defs.EINVAL {
		t.Fatalf("expected EINVAL for bad magic, got %v", err)
	}
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	raw := buildMinimalElf()
	binary.LittleEndian.PutUint16(raw[18:20], 0x28) // EM_ARM, not EM_386
	as := newTestVm(t, 0x100000)
	if _, err := Load(as, &fakeFile{data: raw}, raw, 0x100000); err != defs.EINVAL {
		t.Fatalf("expected EINVAL for wrong machine, got %v", err)
	}
}

func TestLoadRejectsSegmentBeyondUserMax(t *testing.T) {
	raw := buildMinimalElf()
	as := newTestVm(t, 0x100000)
	if _, err := Load(as, &fakeFile{data: raw}, raw, testVaddr); err != defs.EINVAL {
		t.Fatalf("expected EINVAL for segment beyond userMax, got %v", err)
	}
}

func TestBuildStackLayout(t *testing.T) {
	as := newTestVm(t, 0x100000)
	top := uintptr(0x100000)
	if err := as.InitStack(top); err != 0 {
		t.Fatalf("InitStack failed: %v", err)
	}
	argv := []string{"prog", "arg1"}
	sp, err := BuildStack(as, top, argv)
	if err != 0 {
		t.Fatalf("BuildStack failed: %v", err)
	}

	var argc [4]byte
	if err := as.ReadUser(argc[:], sp, sp); err != 0 {
		t.Fatalf("read argc failed: %v", err)
	}
	if binary.LittleEndian.Uint32(argc[:]) != 0 {
		t.Fatalf("expected fake return address 0 at sp, got %v", argc)
	}

	var argcWord [4]byte
	as.ReadUser(argcWord[:], sp+4, sp)
	if got := binary.LittleEndian.Uint32(argcWord[:]); got != uint32(len(argv)) {
		t.Fatalf("expected argc %d, got %d", len(argv), got)
	}

	var argvPtrBuf [4]byte
	as.ReadUser(argvPtrBuf[:], sp+8, sp)
	argvPtr := uintptr(binary.LittleEndian.Uint32(argvPtrBuf[:]))

	var addr0Buf [4]byte
	as.ReadUser(addr0Buf[:], argvPtr, sp)
	addr0 := uintptr(binary.LittleEndian.Uint32(addr0Buf[:]))
	got := make([]byte, len("prog")+1)
	as.ReadUser(got, addr0, sp)
	if !bytes.Equal(got[:len("prog")], []byte("prog")) {
		t.Fatalf("expected argv[0] == %q, got %q", "prog", got)
	}
}
