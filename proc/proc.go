package proc

import (
	"fmt"
	"strings"
	"sync"

	"accnt"
	"defs"
	"fd"
	"loader"
	"thread"
	"ustr"
	"vfs"
	"vm"
)

// Pcb_t is one process descriptor (spec §3's PCB). A child holds only its
// pid plus a transient thread handle invalidated at thread death -- it
// never points back at its parent; ownership is strictly one-way via the
// parent's children slice (spec §9).
type Pcb_t struct {
	mu sync.Mutex

	K    *Kernel_t
	Pid  defs.Pid_t
	Name string

	ExitStatus    int
	AlreadyWaited bool
	Killed        bool
	Orphan        bool

	Exe *vfs.Inode_t // executable handle, write-denied while running

	children []*Pcb_t

	ExecReady *thread.Sema_t
	WaitDone  *thread.Sema_t
	Thread    *thread.Note_t

	Vm   *vm.Vm_t
	Fds  *fd.Table_t
	Cwd  *fd.Cwd_t
	Acc  *accnt.Accnt_t

	startns int64

	Entry uintptr
}

func newPcb(k *Kernel_t, name string) *Pcb_t {
	acc := &accnt.Accnt_t{}
	return &Pcb_t{
		K:         k,
		Pid:       k.allocPid(),
		Name:      name,
		ExecReady: thread.NewSema(),
		WaitDone:  thread.NewSema(),
		Vm:        vm.New(k.Pool, k.Frames, k.Swap, k.UserMin, k.UserMax),
		Fds:       fd.NewTable(),
		Cwd:       fd.MkRootCwd(k.Fsys.Fs.Root()),
		Acc:       acc,
		startns:   acc.Now(),
	}
}

// Init bootstraps the first process directly, without a parent or a
// process-count quota charge -- there is no spawner to wait on it.
func Init(k *Kernel_t, cmdline string) (*Pcb_t, defs.Err_t) {
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return nil, defs.EINVAL
	}
	p := newPcb(k, argv[0])
	p.Thread = thread.Create(func() { loadAndSignal(p, argv) })
	p.ExecReady.Down()
	if p.ExitStatus == -1 {
		return nil, defs.EINVAL
	}
	return p, 0
}

// Spawn implements process_execute (spec §4.F): charge the process
// quota, tokenize cmdline, run the loader on a fresh thread, link the
// child into parent's children, and block until the child's load
// either succeeds or fails.
func Spawn(parent *Pcb_t, cmdline string) (defs.Pid_t, defs.Err_t) {
	k := parent.K
	if !k.Limits.Procs.Take() {
		return defs.SpawnErrPid, defs.ENOMEM
	}
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		k.Limits.Procs.Give()
		return defs.SpawnErrPid, defs.EINVAL
	}

	child := newPcb(k, argv[0])

	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()

	child.Thread = thread.Create(func() { loadAndSignal(child, argv) })

	child.ExecReady.Down()
	if child.ExitStatus == -1 {
		return defs.SpawnErrPid, defs.EINVAL
	}
	return child.Pid, 0
}

// loadAndSignal is the loader-entry thread body (spec §4.F "Loader
// entry"): it performs the load and argv stack setup, then signals
// exec_ready. This thread's job ends there -- the user code that runs
// afterward is driven externally through the syscall gateway (spec §1
// treats the trap dispatcher, and by extension "what runs between
// traps," as an assumed-provided external collaborator).
func loadAndSignal(p *Pcb_t, argv []string) {
	k := p.K
	path := ustr.Ustr(argv[0])

	ino, err := k.Fsys.Lookup(p.Cwd, path)
	if err == 0 && ino.IsDir {
		err = defs.EISDIR
	}
	if err != 0 {
		failLoad(p)
		return
	}

	raw := make([]byte, ino.Size())
	if _, rerr := ino.ReadAt(raw, 0); rerr != 0 {
		failLoad(p)
		return
	}

	img, lerr := loader.Load(p.Vm, ino, raw, k.UserMax)
	if lerr != 0 {
		failLoad(p)
		return
	}
	if serr := p.Vm.InitStack(k.UserMax); serr != 0 {
		failLoad(p)
		return
	}
	if _, berr := loader.BuildStack(p.Vm, k.UserMax, argv); berr != 0 {
		failLoad(p)
		return
	}

	p.mu.Lock()
	p.Entry = img.Entry
	p.Exe = ino
	p.mu.Unlock()
	ino.DenyWrite()

	p.ExecReady.Up()
}

func failLoad(p *Pcb_t) {
	p.mu.Lock()
	p.ExitStatus = -1
	p.mu.Unlock()
	p.ExecReady.Up()
	Exit(p, -1)
}

// Wait implements process_wait (spec §4.F). Returns -1 without blocking
// for an unknown pid, a double-wait, or the spawn-error sentinel.
func Wait(parent *Pcb_t, pid defs.Pid_t) (int, defs.Err_t) {
	if pid == defs.SpawnErrPid {
		return -1, defs.ECHILD
	}

	parent.mu.Lock()
	var target *Pcb_t
	for _, c := range parent.children {
		if c.Pid == pid {
			target = c
			break
		}
	}
	parent.mu.Unlock()
	if target == nil {
		return -1, defs.ECHILD
	}

	target.mu.Lock()
	already := target.AlreadyWaited
	target.AlreadyWaited = true
	target.mu.Unlock()
	if already {
		return -1, defs.ECHILD
	}

	target.WaitDone.Down()

	target.mu.Lock()
	status := target.ExitStatus
	target.mu.Unlock()

	parent.Acc.Add(target.Acc)

	parent.mu.Lock()
	for i, c := range parent.children {
		if c == target {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	parent.mu.Unlock()

	return status, 0
}

// Exit implements process exit (spec §4.F). Idempotent: a second call
// on an already-killed PCB is a no-op, so a partially initialized
// process (failed load) can safely call it once more via failLoad's own
// teardown path without double-releasing resources.
func Exit(p *Pcb_t, status int) {
	p.mu.Lock()
	if p.Killed {
		p.mu.Unlock()
		return
	}
	p.ExitStatus = status
	p.mu.Unlock()

	fmt.Printf("%s: exit(%d)\n", p.Name, status)

	p.mu.Lock()
	children := p.children
	p.children = nil
	p.mu.Unlock()
	for _, c := range children {
		c.mu.Lock()
		if !c.Killed {
			c.Orphan = true
		}
		c.mu.Unlock()
		// a child already marked Killed was already fully torn down by
		// its own Exit; dropping our reference is all "freeing" means
		// under garbage collection.
	}

	if p.Fds != nil {
		p.Fds.ForEach(func(e *fd.Entry_t) { e.Close() })
	}
	p.mu.Lock()
	exe := p.Exe
	p.Exe = nil
	p.mu.Unlock()
	if exe != nil {
		exe.AllowWrite()
	}

	p.Acc.Finish(p.startns)

	p.mu.Lock()
	p.Killed = true
	p.mu.Unlock()

	p.WaitDone.Up()

	if p.Vm != nil {
		p.Vm.Destroy()
	}

	if p.K != nil && p.K.Limits != nil {
		p.K.Limits.Procs.Give()
	}
}
