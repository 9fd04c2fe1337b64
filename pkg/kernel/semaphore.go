package kernel

import "sync"

// Semaphore is the process-local counting semaphore. The count may go
// negative; a negative count equals the number of waiting threads. Down
// and Up maintain the caller's per-thread allocation and need vectors for
// the deadlock detector.
type Semaphore struct {
	k  *Kernel
	id int

	mu    sync.Mutex
	count int
	waitq []*TaskControlBlock
}

// NewSemaphore creates a semaphore with id and initial count n.
func NewSemaphore(k *Kernel, id, n int) *Semaphore {
	return &Semaphore{k: k, id: id, count: n}
}

// Count returns the current count. Negative means waiters.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Down is the P operation: take one unit or park on the FIFO queue until
// a holder hands one over. On success the caller's allocation for this
// semaphore grows by one; while parked the pending unit is accounted in
// its need vector.
func (s *Semaphore) Down() {
	t := s.k.currentTask()
	s.mu.Lock()
	s.count--
	if s.count < 0 {
		s.waitq = append(s.waitq, t)
		t.mu.Lock()
		t.need[s.id]++
		t.mu.Unlock()
		s.mu.Unlock()
		s.k.blockCurrentAndRunNext()
		// the waker moved the unit from need to allocation
		return
	}
	s.mu.Unlock()
	t.mu.Lock()
	t.allocation[s.id]++
	t.mu.Unlock()
}

// Up is the V operation: return one unit. If anyone waits, the unit moves
// straight to the queue head (need decremented, allocation incremented)
// and the head wakes. The caller gives up one unit of its allocation.
func (s *Semaphore) Up() {
	t := s.k.currentTask()
	s.mu.Lock()
	s.count++
	if s.count <= 0 && len(s.waitq) > 0 {
		waking := s.waitq[0]
		s.waitq = s.waitq[1:]
		s.mu.Unlock()
		waking.mu.Lock()
		waking.need[s.id]--
		waking.allocation[s.id]++
		waking.mu.Unlock()
		s.k.wakeupTask(waking)
	} else {
		s.mu.Unlock()
	}
	t.mu.Lock()
	t.allocation[s.id]--
	t.mu.Unlock()
}
