// Package kernel implements the task and synchronization core of minos: a
// process/thread model with a stride scheduler, blocking synchronization
// primitives with FIFO wait queues, a banker's-algorithm deadlock
// detector, and a numeric syscall surface over file capabilities.
//
// Threads are goroutines driven by a trampoline: the processor's idle
// loop resumes exactly one thread goroutine at a time and regains control
// whenever the thread yields, blocks or exits, so the kernel keeps the
// cooperative single-core semantics of the machine it models. User code
// runs as registered Programs and talks to the kernel only through Env,
// the syscall handle.
package kernel

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mcavallo/minos/pkg/minfs"
)

// ErrDeadlock is returned by Run when threads remain but none is Ready
// and no timer is pending. The machine this models would simply hang its
// core; returning instead keeps the condition observable.
var ErrDeadlock = errors.New("kernel: all remaining threads are blocked")

// ErrUnknownProgram is returned by Spawn for a name missing from the
// program registry.
var ErrUnknownProgram = errors.New("kernel: unknown program")

// Program is a process main: the unit the loader contract hands to the
// kernel in place of an ELF image.
type Program func(env *Env) int

// ThreadFunc is a thread entry started by ThreadCreate.
type ThreadFunc func(env *Env, arg int) int

// Options configures a Kernel. Zero values select: monotonic real-time
// clock, no filesystem, stdout console, no console input, no metrics,
// and the package default scheduling priorities.
type Options struct {
	// FS supplies the root directory for the file syscalls. Optional.
	FS *minfs.FileSystem

	// Clock supplies the millisecond clock used by sleep and get_time.
	Clock Clock

	// ConsoleIn polls the console for one byte; it returns 0 when no byte
	// is pending. Matches the SBI console contract.
	ConsoleIn func() int

	// ConsoleOut receives stdout/stderr writes.
	ConsoleOut io.Writer

	// Metrics observes scheduling and syscall activity. Optional.
	Metrics SchedMetrics

	// DefaultPriority is assigned to newly created threads. Zero selects
	// the package default.
	DefaultPriority uint64

	// MinPriority is the lowest priority SetPriority accepts. Zero
	// selects the package default.
	MinPriority uint64
}

// Kernel is the top-level kernel value: it owns the scheduler, the
// processor, the id allocators, the timer wheel and the program registry.
type Kernel struct {
	clock      Clock
	sched      *Scheduler
	proc       *Processor
	timer      *timerWheel
	metrics    SchedMetrics
	consoleIn  func() int
	consoleOut io.Writer

	pidAlloc    RecycleAllocator
	kstackAlloc RecycleAllocator

	defaultPriority uint64
	minPriority     uint64

	fs   *minfs.FileSystem
	root *minfs.Inode

	mu       sync.Mutex
	programs map[string]Program
	initProc *ProcessControlBlock

	// alive counts threads that have been created and not yet exited.
	alive atomic.Int64

	env *Env
}

// New creates a kernel with the given options.
func New(opts Options) *Kernel {
	k := &Kernel{
		clock:           opts.Clock,
		metrics:         opts.Metrics,
		consoleIn:       opts.ConsoleIn,
		consoleOut:      opts.ConsoleOut,
		fs:              opts.FS,
		programs:        make(map[string]Program),
		defaultPriority: opts.DefaultPriority,
		minPriority:     opts.MinPriority,
	}
	if k.clock == nil {
		k.clock = NewMonotonicClock()
	}
	if k.defaultPriority == 0 {
		k.defaultPriority = DefaultPriority
	}
	if k.minPriority == 0 {
		k.minPriority = MinPriority
	}
	if k.consoleIn == nil {
		k.consoleIn = func() int { return 0 }
	}
	if k.consoleOut == nil {
		k.consoleOut = os.Stdout
	}
	if k.fs != nil {
		k.root = k.fs.RootInode()
	}
	k.sched = newScheduler()
	k.proc = newProcessor()
	k.timer = newTimerWheel()
	k.env = &Env{k: k}
	return k
}

// Register adds a program to the registry under its path name. Exec and
// Spawn resolve names against this registry, the way the loader resolves
// paths against the app image.
func (k *Kernel) Register(name string, prog Program) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.programs[name] = prog
}

// Spawn creates a new process running the named program. The first
// spawned process becomes init: orphans are re-parented to it. Spawn may
// only be called before Run or from within a running thread (via Env).
func (k *Kernel) Spawn(name string) (*ProcessControlBlock, error) {
	k.mu.Lock()
	prog, ok := k.programs[name]
	k.mu.Unlock()
	if !ok {
		return nil, ErrUnknownProgram
	}
	p := k.newProcess(name, prog, nil)
	k.mu.Lock()
	if k.initProc == nil {
		k.initProc = p
	}
	k.mu.Unlock()
	return p, nil
}

// Env returns the syscall handle threads use to enter the kernel.
func (k *Kernel) Env() *Env { return k.env }

// currentTask returns the thread running on the processor. Only the
// running thread itself calls syscalls, so the slot is stable while user
// code executes.
func (k *Kernel) currentTask() *TaskControlBlock {
	t := k.proc.Current()
	if t == nil {
		panic("kernel: syscall outside a running thread")
	}
	return t
}

func (k *Kernel) currentProcess() *ProcessControlBlock {
	return k.currentTask().process
}
