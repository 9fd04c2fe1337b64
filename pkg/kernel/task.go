package kernel

import (
	"sync"
)

// TaskStatus is the scheduling state of a thread.
type TaskStatus int

const (
	// TaskReady means the thread sits in the ready set.
	TaskReady TaskStatus = iota
	// TaskRunning means the thread occupies the processor.
	TaskRunning
	// TaskBlocked means the thread waits in exactly one wait queue or on
	// the timer wheel.
	TaskBlocked
	// TaskZombie means the thread has exited and awaits reaping.
	TaskZombie
)

func (s TaskStatus) String() string {
	switch s {
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskBlocked:
		return "Blocked"
	case TaskZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// Stride scheduling parameters. BigStride is large enough that strides do
// not drift into wraparound within realistic workloads.
const (
	BigStride       uint64 = 1 << 16
	DefaultPriority uint64 = 16
	MinPriority     uint64 = 2
)

// TaskUserRes holds a thread's user-side resources: its tid and the user
// stack and trap-context slots derived from it.
type TaskUserRes struct {
	tid        int
	ustackBase uintptr
	process    *ProcessControlBlock
}

const userStackSize = 8192

func newTaskUserRes(p *ProcessControlBlock) *TaskUserRes {
	tid := p.tidAlloc.Alloc()
	return &TaskUserRes{
		tid:        tid,
		ustackBase: uintptr(0x1_0000_0000) + uintptr(tid)*(userStackSize+pageSize),
		process:    p,
	}
}

// Tid returns the thread id within its process.
func (r *TaskUserRes) Tid() int { return r.tid }

// userStackTop returns the top of the thread's user stack slot.
func (r *TaskUserRes) userStackTop() uintptr {
	return r.ustackBase + userStackSize
}

// dealloc recycles the tid and the user-side slots.
func (r *TaskUserRes) dealloc() {
	r.process.tidAlloc.Dealloc(r.tid)
}

// TaskControlBlock is one thread: its kernel stack, its resume channel
// (the saved context the trampoline switches to), and the mutable inner
// state guarded by mu.
type TaskControlBlock struct {
	process *ProcessControlBlock
	kstack  *KernelStack

	// resume is the thread's saved continuation: sending on it hands the
	// core to the thread; the thread hands it back through the processor's
	// idle channel.
	resume chan struct{}

	mu       sync.Mutex
	res      *TaskUserRes
	trapCx   TrapContext
	status   TaskStatus
	exited   bool
	exitCode int

	stride   uint64
	priority uint64

	// allocation and need track semaphore units held and requested by
	// this thread, keyed by semaphore id, for the deadlock detector.
	allocation map[int]int
	need       map[int]int

	syscalls uint64
}

func (k *Kernel) newTask(p *ProcessControlBlock) *TaskControlBlock {
	t := &TaskControlBlock{
		process:    p,
		kstack:     k.newKernelStack(),
		resume:     make(chan struct{}, 1),
		status:     TaskReady,
		priority:   k.defaultPriority,
		allocation: make(map[int]int),
		need:       make(map[int]int),
	}
	t.res = newTaskUserRes(p)
	t.trapCx = appInitContext(0, t.res.userStackTop(), t.kstack.Top(), p.addrSpace.Token())
	return t
}

// Tid returns the thread id, or -1 after its user resources were
// recycled.
func (t *TaskControlBlock) Tid() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.res == nil {
		return -1
	}
	return t.res.tid
}

// Status returns the scheduling state.
func (t *TaskControlBlock) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *TaskControlBlock) setStatus(s TaskStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// pass is the stride increment charged when the thread is suspended from
// Running back to Ready.
func (t *TaskControlBlock) pass() uint64 {
	return BigStride / t.priority
}

// unwind values thrown through user code to stop or replace it. They are
// recovered by the task trampoline, never by user code.
type exitUnwind struct{ code int }

type execUnwind struct{ prog Program }

type userResult struct {
	code int
	exec Program
}

func runUser(run func() int) (res userResult) {
	defer func() {
		switch r := recover().(type) {
		case nil:
		case exitUnwind:
			res.code = r.code
		case execUnwind:
			res.exec = r.prog
		default:
			panic(r)
		}
	}()
	res.code = run()
	return
}

// startTask launches the thread goroutine, parked until the processor
// first resumes it. The goroutine runs user code, honoring exec restarts,
// then enters the exit path.
func (k *Kernel) startTask(t *TaskControlBlock, run func() int) {
	k.alive.Add(1)
	go func() {
		<-t.resume
		code := 0
		for {
			res := runUser(run)
			if res.exec != nil {
				prog := res.exec
				run = func() int { return prog(k.env) }
				continue
			}
			code = res.code
			break
		}
		k.exitCurrentAndRunNext(code)
	}()
}
