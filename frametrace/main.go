// Command frametrace drives a synthetic multi-process paging workload
// against a small physical frame pool and writes a pprof snapshot of the
// resulting frame table (spec §4.B) -- a standing reproduction of the
// clock-eviction sweep, in the same accounting-snapshot spirit as
// accnt's rusage fetch, generalized here into a format a real profiler
// can open.
package main

import (
	"fmt"
	"os"
	"strconv"

	"frame"
	"mem"
	"spt"
	"swap"
	"trace"
	"vfs"
	"vm"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: frametrace <nframes> <nprocs> <pages-per-proc> <outfile>\n")
	os.Exit(1)
}

func main() {
	if len(os.Args) != 5 {
		usage()
	}
	nframes := atoiOrDie(os.Args[1])
	nprocs := atoiOrDie(os.Args[2])
	pagesPerProc := atoiOrDie(os.Args[3])
	outPath := os.Args[4]

	pool := mem.NewPool(nframes)
	sw := swap.New(vfs.NewMemDisk(nframes))
	ft := frame.New(pool, sw)

	const userMin = uintptr(0x1000)
	userMax := userMin + uintptr(pagesPerProc+1)*uintptr(mem.PGSIZE)

	for i := 0; i < nprocs; i++ {
		as := vm.New(pool, ft, sw, userMin, userMax)
		if err := as.InitStack(userMax); err != 0 {
			fmt.Fprintf(os.Stderr, "frametrace: proc %d: InitStack: %v\n", i, err)
			os.Exit(1)
		}
		sp := userMax - 4
		for p := 0; p < pagesPerProc; p++ {
			page := userMin + uintptr(p)*uintptr(mem.PGSIZE)
			if _, ok := as.Spt.Create(page, spt.ALL_ZERO, true, spt.Spte_t{}); !ok {
				continue
			}
			if err := as.WriteUser(page, []byte{byte(p)}, sp); err != 0 {
				fmt.Fprintf(os.Stderr, "frametrace: proc %d: fault on page %#x: %v\n", i, page, err)
				os.Exit(1)
			}
		}
	}

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()
	if err := trace.Write(f, ft); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("frametrace: wrote %d live frame-table entries from %d address spaces to %s\n",
		ft.Len(), nprocs, outPath)
}

func atoiOrDie(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "frametrace: bad integer %q: %v\n", s, err)
		os.Exit(1)
	}
	return n
}
