package kernel

import (
	"github.com/mcavallo/minos/internal/logger"
)

// Syscall return codes. All syscalls return int; negative is failure.
const (
	// ErrnoInval covers invalid arguments and not-found lookups.
	ErrnoInval = -1
	// ErrnoAgain means the waited-on target is still running.
	ErrnoAgain = -2
	// ErrnoDeadlock is the deadlock-avoidance refusal sentinel.
	ErrnoDeadlock = -0xDEAD
)

// Env is the syscall handle handed to user programs. Every method runs on
// the calling thread and may suspend it; the semantics and return codes
// are the kernel's user-facing contract.
type Env struct {
	k *Kernel
}

// Yield gives up the core: the caller's stride is charged its pass and it
// re-enters the ready set.
func (e *Env) Yield() {
	e.k.observeSyscall("yield")
	e.k.suspendCurrentAndRunNext()
}

// Exit ends the calling thread with code. A main-thread exit ends the
// process. Does not return.
func (e *Env) Exit(code int) {
	e.k.observeSyscall("exit")
	panic(exitUnwind{code: code})
}

// GetPid returns the calling process id.
func (e *Env) GetPid() int {
	e.k.observeSyscall("getpid")
	return e.k.currentProcess().pid
}

// GetTid returns the calling thread id within its process.
func (e *Env) GetTid() int {
	e.k.observeSyscall("gettid")
	return e.k.currentTask().Tid()
}

// GetTime fills tv with the current time and returns 0. A single logical
// clock read.
func (e *Env) GetTime(tv *TimeVal) int {
	e.k.observeSyscall("get_time")
	*tv = timeValFromMS(e.k.clock.NowMS())
	return 0
}

// GetTimeMS returns the current time in milliseconds.
func (e *Env) GetTimeMS() int64 {
	var tv TimeVal
	e.GetTime(&tv)
	return tv.AsMS()
}

// Sleep parks the caller for at least ms milliseconds.
func (e *Env) Sleep(ms int) int {
	e.k.observeSyscall("sleep")
	t := e.k.currentTask()
	e.k.timer.add(e.k.clock.NowMS()+int64(ms), t)
	e.k.blockCurrentAndRunNext()
	return 0
}

// SetPriority sets the calling thread's stride priority; values below the
// minimum are refused with ErrnoInval.
func (e *Env) SetPriority(prio int) int {
	e.k.observeSyscall("set_priority")
	if prio < int(e.k.minPriority) {
		return ErrnoInval
	}
	t := e.k.currentTask()
	t.mu.Lock()
	t.priority = uint64(prio)
	t.mu.Unlock()
	return prio
}

// Spawn creates a child process running the named registered program and
// returns its pid, or ErrnoInval for an unknown name.
func (e *Env) Spawn(path string) int {
	e.k.observeSyscall("spawn")
	k := e.k
	k.mu.Lock()
	prog, ok := k.programs[path]
	k.mu.Unlock()
	if !ok {
		return ErrnoInval
	}
	parent := k.currentProcess()
	child := parent.fork(prog)
	// spawn starts from a fresh image: fresh descriptors, nothing copied
	child.mu.Lock()
	for _, f := range child.fdTable {
		releaseFile(f)
	}
	child.fdTable = []File{
		&Stdin{k: k},
		&Stdout{k: k},
		&Stdout{k: k},
	}
	child.name = path
	child.mu.Unlock()
	return child.pid
}

// Fork creates a child process whose main thread runs entry with a copy
// of the parent's fd table (capabilities shared slot for slot). Returns
// the child pid.
func (e *Env) Fork(entry Program) int {
	e.k.observeSyscall("fork")
	child := e.k.currentProcess().fork(entry)
	return child.pid
}

// Exec replaces the calling thread's program with the named registered
// one, in a fresh address space, keeping the fd table. Returns ErrnoInval
// if the name is unknown; on success it does not return.
func (e *Env) Exec(path string) int {
	e.k.observeSyscall("exec")
	k := e.k
	k.mu.Lock()
	prog, ok := k.programs[path]
	k.mu.Unlock()
	if !ok {
		return ErrnoInval
	}
	p := k.currentProcess()
	p.mu.Lock()
	p.addrSpace.Recycle()
	p.addrSpace = newAddressSpace()
	p.name = path
	p.mu.Unlock()
	logger.Debug("exec", logger.KeyPid, p.pid, logger.KeyName, path)
	panic(execUnwind{prog: prog})
}

// Waitpid reaps a zombie child. pid -1 matches any child. Returns
// ErrnoInval when no such child exists, ErrnoAgain while the child still
// runs, otherwise the reaped pid with the exit code stored through
// exitCode.
func (e *Env) Waitpid(pid int, exitCode *int) int {
	e.k.observeSyscall("waitpid")
	k := e.k
	p := k.currentProcess()

	p.mu.Lock()
	defer p.mu.Unlock()

	matched := false
	for idx, child := range p.children {
		if pid != -1 && child.pid != pid {
			continue
		}
		matched = true
		if !child.IsZombie() {
			continue
		}
		p.children = append(p.children[:idx], p.children[idx+1:]...)
		k.reapProcess(child)
		if exitCode != nil {
			*exitCode = child.ExitCode()
		}
		return child.pid
	}
	if !matched {
		return ErrnoInval
	}
	return ErrnoAgain
}

// WaitpidBlocking loops Waitpid with yields until the target is reaped.
func (e *Env) WaitpidBlocking(pid int, exitCode *int) int {
	for {
		ret := e.Waitpid(pid, exitCode)
		if ret != ErrnoAgain {
			return ret
		}
		e.Yield()
	}
}

// reapProcess releases the resources a zombie holds until reaped: the
// kernel stacks of its remaining threads and the pid.
func (k *Kernel) reapProcess(child *ProcessControlBlock) {
	child.mu.Lock()
	for i, t := range child.tasks {
		if t == nil {
			continue
		}
		t.kstack.free(k)
		child.tasks[i] = nil
	}
	child.mu.Unlock()
	k.pidAlloc.Dealloc(child.pid)
	logger.Debug("process reaped", logger.KeyPid, child.pid)
}

// ThreadCreate starts a new thread in the calling process running entry
// with arg and returns its tid.
func (e *Env) ThreadCreate(entry ThreadFunc, arg int) int {
	e.k.observeSyscall("thread_create")
	k := e.k
	p := k.currentProcess()

	p.mu.Lock()
	t := k.newTask(p)
	p.registerTask(t)
	tid := t.res.tid
	p.mu.Unlock()

	k.startTask(t, func() int { return entry(k.env, arg) })
	k.sched.Add(t)
	logger.Debug("thread created", logger.KeyPid, p.pid, logger.KeyTid, tid)
	return tid
}

// Waittid reaps an exited sibling thread: ErrnoInval for a missing tid or
// a wait on self, ErrnoAgain while it runs, otherwise its exit code. The
// reaped thread's kernel stack is freed here.
func (e *Env) Waittid(tid int) int {
	e.k.observeSyscall("waittid")
	k := e.k
	cur := k.currentTask()
	p := cur.process

	if cur.Tid() == tid {
		return ErrnoInval
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tid < 0 || tid >= len(p.tasks) || p.tasks[tid] == nil {
		return ErrnoInval
	}
	t := p.tasks[tid]
	t.mu.Lock()
	exited, code := t.exited, t.exitCode
	t.mu.Unlock()
	if !exited {
		return ErrnoAgain
	}
	t.kstack.free(k)
	p.tasks[tid] = nil
	return code
}

// WaittidBlocking loops Waittid with yields until the thread is reaped.
func (e *Env) WaittidBlocking(tid int) int {
	for {
		ret := e.Waittid(tid)
		if ret != ErrnoAgain {
			return ret
		}
		e.Yield()
	}
}
