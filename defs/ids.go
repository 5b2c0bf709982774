package defs

// Tid_t identifies a kernel thread; Pid_t identifies a user process. A
// process is backed by exactly one thread in this kernel (spec Non-goals:
// no multi-threaded user processes), but the two id spaces are kept
// distinct because a PCB outlives the thread that ran it (zombie/orphan
// states survive thread death).
type Tid_t int
type Pid_t int

// SpawnErrPid is returned by Spawn when no child could be started (process
// quota exhausted, empty command line) or the child's load failed. Wait on
// this pid always fails, matching spec §4.F.
const SpawnErrPid Pid_t = -1
