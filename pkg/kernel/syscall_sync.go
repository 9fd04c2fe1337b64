package kernel

import (
	"github.com/mcavallo/minos/internal/logger"
)

// MutexCreate adds a mutex to the process mutex list, reusing a freed
// slot when one exists, and returns its id. blocking selects the queueing
// variant over the spinning one.
func (e *Env) MutexCreate(blocking bool) int {
	e.k.observeSyscall("mutex_create")
	p := e.k.currentProcess()

	var m Mutex
	if blocking {
		m = NewMutexBlocking(e.k)
	} else {
		m = NewMutexSpin(e.k)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id, slot := range p.mutexes {
		if slot == nil {
			p.mutexes[id] = m
			return id
		}
	}
	p.mutexes = append(p.mutexes, m)
	return len(p.mutexes) - 1
}

// MutexLock acquires the mutex. With deadlock detection enabled, a lock
// of an already-held mutex is refused with ErrnoDeadlock.
func (e *Env) MutexLock(id int) int {
	e.k.observeSyscall("mutex_lock")
	p := e.k.currentProcess()
	p.mu.Lock()
	if id < 0 || id >= len(p.mutexes) || p.mutexes[id] == nil {
		p.mu.Unlock()
		return ErrnoInval
	}
	m := p.mutexes[id]
	detect := p.deadlockDetect
	p.mu.Unlock()

	if detect && m.IsLocked() {
		logger.Debug("mutex lock refused", logger.KeyPid, p.pid, logger.KeyMutex, id)
		return ErrnoDeadlock
	}
	m.Lock()
	return 0
}

// MutexUnlock releases the mutex, waking its longest waiter if any.
func (e *Env) MutexUnlock(id int) int {
	e.k.observeSyscall("mutex_unlock")
	p := e.k.currentProcess()
	p.mu.Lock()
	if id < 0 || id >= len(p.mutexes) || p.mutexes[id] == nil {
		p.mu.Unlock()
		return ErrnoInval
	}
	m := p.mutexes[id]
	p.mu.Unlock()
	m.Unlock()
	return 0
}

// SemaphoreCreate adds a semaphore with initial count n and returns its
// id, reusing a freed slot when one exists.
func (e *Env) SemaphoreCreate(n int) int {
	e.k.observeSyscall("semaphore_create")
	p := e.k.currentProcess()
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, slot := range p.semaphores {
		if slot == nil {
			p.semaphores[id] = NewSemaphore(e.k, id, n)
			return id
		}
	}
	id := len(p.semaphores)
	p.semaphores = append(p.semaphores, NewSemaphore(e.k, id, n))
	return id
}

// SemaphoreUp performs V on the semaphore.
func (e *Env) SemaphoreUp(id int) int {
	e.k.observeSyscall("semaphore_up")
	p := e.k.currentProcess()
	p.mu.Lock()
	if id < 0 || id >= len(p.semaphores) || p.semaphores[id] == nil {
		p.mu.Unlock()
		return ErrnoInval
	}
	s := p.semaphores[id]
	p.mu.Unlock()
	s.Up()
	return 0
}

// SemaphoreDown performs P on the semaphore. With deadlock detection
// enabled the banker's safety check runs first, treating the request as
// pending need; an unsafe request is refused with ErrnoDeadlock and no
// state changes.
func (e *Env) SemaphoreDown(id int) int {
	e.k.observeSyscall("semaphore_down")
	p := e.k.currentProcess()
	t := e.k.currentTask()

	p.mu.Lock()
	if id < 0 || id >= len(p.semaphores) || p.semaphores[id] == nil {
		p.mu.Unlock()
		return ErrnoInval
	}
	s := p.semaphores[id]
	if p.deadlockDetect && !p.bankersSafe(t, id) {
		p.mu.Unlock()
		logger.Debug("semaphore down refused", logger.KeyPid, p.pid, logger.KeySem, id)
		return ErrnoDeadlock
	}
	p.mu.Unlock()

	s.Down()
	return 0
}

// CondvarCreate adds a condition variable and returns its id.
func (e *Env) CondvarCreate() int {
	e.k.observeSyscall("condvar_create")
	p := e.k.currentProcess()
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, slot := range p.condvars {
		if slot == nil {
			p.condvars[id] = NewCondvar(e.k)
			return id
		}
	}
	p.condvars = append(p.condvars, NewCondvar(e.k))
	return len(p.condvars) - 1
}

// CondvarSignal wakes the condition variable's longest waiter, if any.
func (e *Env) CondvarSignal(id int) int {
	e.k.observeSyscall("condvar_signal")
	p := e.k.currentProcess()
	p.mu.Lock()
	if id < 0 || id >= len(p.condvars) || p.condvars[id] == nil {
		p.mu.Unlock()
		return ErrnoInval
	}
	cv := p.condvars[id]
	p.mu.Unlock()
	cv.Signal()
	return 0
}

// CondvarWait releases the mutex, parks on the condition variable, and
// re-acquires the mutex on wakeup. Mesa semantics: re-check the predicate
// in a loop.
func (e *Env) CondvarWait(cvID, mutexID int) int {
	e.k.observeSyscall("condvar_wait")
	p := e.k.currentProcess()
	p.mu.Lock()
	if cvID < 0 || cvID >= len(p.condvars) || p.condvars[cvID] == nil {
		p.mu.Unlock()
		return ErrnoInval
	}
	if mutexID < 0 || mutexID >= len(p.mutexes) || p.mutexes[mutexID] == nil {
		p.mu.Unlock()
		return ErrnoInval
	}
	cv := p.condvars[cvID]
	m := p.mutexes[mutexID]
	p.mu.Unlock()
	cv.Wait(m)
	return 0
}

// EnableDeadlockDetect toggles deadlock detection for the calling
// process.
func (e *Env) EnableDeadlockDetect(on bool) int {
	e.k.observeSyscall("enable_deadlock_detect")
	p := e.k.currentProcess()
	p.mu.Lock()
	p.deadlockDetect = on
	p.mu.Unlock()
	return 0
}
