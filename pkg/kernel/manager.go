package kernel

import (
	"container/heap"
	"sync"
)

// Scheduler is the stride-ordered ready set. Fetch removes the thread
// with the minimum stride; ties go to the earlier insertion.
type Scheduler struct {
	mu    sync.Mutex
	queue readyQueue
	seq   uint64
}

type readyItem struct {
	task   *TaskControlBlock
	stride uint64
	seq    uint64
}

type readyQueue []readyItem

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].stride != q[j].stride {
		return q[i].stride < q[j].stride
	}
	return q[i].seq < q[j].seq
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) { *q = append(*q, x.(readyItem)) }

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func newScheduler() *Scheduler {
	return &Scheduler{}
}

// Add inserts a thread into the ready set at its current stride.
func (s *Scheduler) Add(t *TaskControlBlock) {
	t.mu.Lock()
	stride := t.stride
	t.mu.Unlock()

	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, readyItem{task: t, stride: stride, seq: s.seq})
	s.mu.Unlock()
}

// Fetch removes and returns the minimum-stride thread, or nil when the
// ready set is empty.
func (s *Scheduler) Fetch() *TaskControlBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	item := heap.Pop(&s.queue).(readyItem)
	return item.task
}

// Len reports the ready-set size.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// wakeupTask moves a blocked thread to Ready and enqueues it. The woken
// thread competes from its current stride; waking grants no immediate
// execution. Threads torn down with their process stay down.
func (k *Kernel) wakeupTask(t *TaskControlBlock) {
	t.mu.Lock()
	exited := t.exited
	t.mu.Unlock()
	if exited {
		return
	}
	t.setStatus(TaskReady)
	k.sched.Add(t)
	k.observeReadyDepth()
}
