package kernel

import (
	"sync"

	"github.com/mcavallo/minos/internal/logger"
)

// ProcessControlBlock is one process: its pid, address space, fd table,
// parent/children links, thread list, and the per-process tables of
// synchronization objects. Children are owned by the parent; the parent
// link is a plain back-reference (the garbage collector handles the
// cycle the original breaks with weak pointers).
type ProcessControlBlock struct {
	k    *Kernel
	pid  int
	name string

	mu        sync.Mutex
	addrSpace *AddressSpace
	parent    *ProcessControlBlock
	children  []*ProcessControlBlock
	zombie    bool
	exitCode  int

	fdTable []File

	// tasks is indexed by tid; slots are nil until created and nil again
	// after a thread is reaped.
	tasks    []*TaskControlBlock
	tidAlloc RecycleAllocator

	mutexes    []Mutex
	semaphores []*Semaphore
	condvars   []*Condvar

	deadlockDetect bool
}

// Pid returns the process id.
func (p *ProcessControlBlock) Pid() int { return p.pid }

// Name returns the program name the process was spawned from.
func (p *ProcessControlBlock) Name() string { return p.name }

// IsZombie reports whether the process exited and awaits its parent.
func (p *ProcessControlBlock) IsZombie() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zombie
}

// ExitCode returns the recorded exit code; meaningful once zombie.
func (p *ProcessControlBlock) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// MainTask returns the process main thread (tid 0), or nil after reaping.
func (p *ProcessControlBlock) MainTask() *TaskControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tasks) == 0 {
		return nil
	}
	return p.tasks[0]
}

// registerTask stores t at its tid slot, growing the sparse list.
func (p *ProcessControlBlock) registerTask(t *TaskControlBlock) {
	tid := t.res.tid
	for len(p.tasks) <= tid {
		p.tasks = append(p.tasks, nil)
	}
	p.tasks[tid] = t
}

// newProcess creates a process whose main thread runs prog. fdTable nil
// selects the standard descriptors; fork passes the parent's copy.
func (k *Kernel) newProcess(name string, prog Program, fdTable []File) *ProcessControlBlock {
	p := &ProcessControlBlock{
		k:         k,
		pid:       k.pidAlloc.Alloc(),
		name:      name,
		addrSpace: newAddressSpace(),
	}
	if fdTable == nil {
		fdTable = []File{
			&Stdin{k: k},  // 0 -> stdin
			&Stdout{k: k}, // 1 -> stdout
			&Stdout{k: k}, // 2 -> stderr
		}
	}
	p.fdTable = fdTable

	t := k.newTask(p)
	p.registerTask(t)
	k.startTask(t, func() int { return prog(k.env) })
	k.sched.Add(t)

	logger.Debug("process created", logger.KeyPid, p.pid, logger.KeyName, name)
	return p
}

// fork creates a child process. The child's main thread runs entry; its
// fd table shares the parent's open file capabilities slot for slot.
// Go cannot snapshot a goroutine mid-flight, so the child entry stands in
// for the copied address-space image.
func (p *ProcessControlBlock) fork(entry Program) *ProcessControlBlock {
	k := p.k

	p.mu.Lock()
	fdTable := make([]File, len(p.fdTable))
	for i, f := range p.fdTable {
		if f != nil {
			retainFile(f)
			fdTable[i] = f
		}
	}
	p.mu.Unlock()

	child := k.newProcess(p.name, entry, fdTable)
	child.mu.Lock()
	child.parent = p
	child.mu.Unlock()
	p.mu.Lock()
	p.children = append(p.children, child)
	p.mu.Unlock()
	return child
}

// allocFD returns the lowest free fd slot, extending the table if full.
// Callers must hold p.mu.
func (p *ProcessControlBlock) allocFD() int {
	for fd, f := range p.fdTable {
		if f == nil {
			return fd
		}
	}
	p.fdTable = append(p.fdTable, nil)
	return len(p.fdTable) - 1
}

// fileFor returns the capability at fd, or nil for a free or out-of-range
// slot. Callers must hold p.mu.
func (p *ProcessControlBlock) fileFor(fd int) File {
	if fd < 0 || fd >= len(p.fdTable) {
		return nil
	}
	return p.fdTable[fd]
}
