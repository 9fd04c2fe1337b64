package kernel

import "sync"

// Condvar is a process-local condition variable: a bare FIFO wait queue.
//
// Wait has Mesa semantics: a woken thread re-acquires the mutex and
// competes normally, so the predicate is not guaranteed on wakeup and
// callers must re-check in a loop.
type Condvar struct {
	k *Kernel

	mu    sync.Mutex
	waitq []*TaskControlBlock
}

// NewCondvar creates an empty condition variable.
func NewCondvar(k *Kernel) *Condvar {
	return &Condvar{k: k}
}

// Signal wakes the longest-waiting thread, if any.
func (c *Condvar) Signal() {
	c.mu.Lock()
	if len(c.waitq) == 0 {
		c.mu.Unlock()
		return
	}
	waking := c.waitq[0]
	c.waitq = c.waitq[1:]
	c.mu.Unlock()
	c.k.wakeupTask(waking)
}

// Wait releases mutex, parks the caller, and re-acquires mutex once
// signaled.
func (c *Condvar) Wait(mutex Mutex) {
	mutex.Unlock()
	c.mu.Lock()
	c.waitq = append(c.waitq, c.k.currentTask())
	c.mu.Unlock()
	c.k.blockCurrentAndRunNext()
	mutex.Lock()
}
