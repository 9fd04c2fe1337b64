package kernel

import (
	"sync"
	"time"

	"github.com/mcavallo/minos/internal/logger"
)

// Processor is the per-core slot holding the running thread plus the idle
// context the trampoline returns to. minos models a single core.
type Processor struct {
	mu      sync.Mutex
	current *TaskControlBlock

	// idle is the idle context: threads send on it to hand the core back
	// to the fetch loop.
	idle chan struct{}
}

func newProcessor() *Processor {
	return &Processor{idle: make(chan struct{}, 1)}
}

// Current returns the thread occupying the processor, if any.
func (p *Processor) Current() *TaskControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// takeCurrent removes and returns the running thread.
func (p *Processor) takeCurrent() *TaskControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.current
	p.current = nil
	return t
}

func (p *Processor) setCurrent(t *TaskControlBlock) {
	p.mu.Lock()
	p.current = t
	p.mu.Unlock()
}

// Run is the idle loop: pop the next ready thread, hand it the core, and
// regain control when it yields, blocks or exits. It returns nil once
// every thread has exited, or ErrDeadlock when threads remain but none
// can ever run again.
func (k *Kernel) Run() error {
	for {
		k.timer.wakeExpired(k.clock.NowMS(), k.wakeupTask)

		t := k.sched.Fetch()
		if t == nil {
			if deadline, ok := k.timer.nextDeadline(); ok {
				wait := deadline - k.clock.NowMS()
				if wait > 0 {
					time.Sleep(time.Duration(min64(wait, 1)) * time.Millisecond)
				}
				continue
			}
			if k.alive.Load() == 0 {
				return nil
			}
			logger.Warn("no runnable threads", "blocked", k.alive.Load())
			return ErrDeadlock
		}

		t.mu.Lock()
		exited := t.exited
		t.mu.Unlock()
		if exited {
			// torn down with its process while sitting in the ready set
			continue
		}

		k.proc.setCurrent(t)
		t.setStatus(TaskRunning)
		k.observeContextSwitch()
		k.observeReadyDepth()

		t.resume <- struct{}{}
		<-k.proc.idle
	}
}

// schedule saves the outgoing thread's continuation and resumes the idle
// context. The thread parks until the scheduler hands it the core again.
func (k *Kernel) schedule(t *TaskControlBlock) {
	k.proc.idle <- struct{}{}
	<-t.resume
}

// suspendCurrentAndRunNext moves the running thread back to Ready,
// charging its stride pass, and re-enters the scheduler.
func (k *Kernel) suspendCurrentAndRunNext() {
	t := k.proc.takeCurrent()
	t.mu.Lock()
	t.status = TaskReady
	t.stride += t.pass()
	t.mu.Unlock()
	k.sched.Add(t)
	k.schedule(t)
}

// blockCurrentAndRunNext parks the running thread as Blocked. The caller
// has already queued it on exactly one wait queue (or the timer wheel).
func (k *Kernel) blockCurrentAndRunNext() {
	t := k.proc.takeCurrent()
	t.setStatus(TaskBlocked)
	k.schedule(t)
}

// exitCurrentAndRunNext ends the running thread. A main-thread exit ends
// the whole process: children are re-parented to init, the fd table and
// address space released now, the kernel stack only at the parent's reap.
func (k *Kernel) exitCurrentAndRunNext(code int) {
	t := k.proc.takeCurrent()
	p := t.process

	t.mu.Lock()
	tid := t.res.tid
	t.res.dealloc()
	t.res = nil
	t.status = TaskZombie
	t.exited = true
	t.exitCode = code
	t.mu.Unlock()

	logger.Debug("thread exit", logger.KeyPid, p.pid, logger.KeyTid, tid, logger.KeyExit, code)

	if tid == 0 {
		p.mu.Lock()
		p.zombie = true
		p.exitCode = code
		children := p.children
		p.children = nil
		for _, f := range p.fdTable {
			releaseFile(f)
		}
		p.fdTable = nil
		p.mutexes = nil
		p.semaphores = nil
		p.condvars = nil
		// tear down sibling threads with the process; their goroutines are
		// never resumed again
		for _, sibling := range p.tasks {
			if sibling == nil || sibling == t {
				continue
			}
			sibling.mu.Lock()
			if !sibling.exited {
				sibling.exited = true
				sibling.status = TaskZombie
				if sibling.res != nil {
					sibling.res.dealloc()
					sibling.res = nil
				}
				k.alive.Add(-1)
			}
			sibling.mu.Unlock()
		}
		p.addrSpace.Recycle()
		p.mu.Unlock()

		k.mu.Lock()
		init := k.initProc
		k.mu.Unlock()
		if init != nil && init != p && len(children) > 0 {
			for _, c := range children {
				c.mu.Lock()
				c.parent = init
				c.mu.Unlock()
			}
			init.mu.Lock()
			init.children = append(init.children, children...)
			init.mu.Unlock()
		}
	}

	k.alive.Add(-1)
	// no context to save; hand the core straight back
	k.proc.idle <- struct{}{}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
