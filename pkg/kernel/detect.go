package kernel

// bankersSafe runs the banker's-algorithm safety check for the caller's
// pending request of one unit of semaphore semID.
//
// The snapshot is taken under the process lock (held by the caller): for
// each live semaphore, available = max(count, 0); for each live thread,
// its allocation and need vectors, with the pending request added to the
// caller's need. A thread is finishable when all of its needs fit within
// available; finishing returns its allocation. The state is safe when
// every thread can finish in some order.
func (p *ProcessControlBlock) bankersSafe(caller *TaskControlBlock, semID int) bool {
	available := make(map[int]int)
	for id, s := range p.semaphores {
		if s == nil {
			continue
		}
		c := s.Count()
		if c < 0 {
			c = 0
		}
		available[id] = c
	}

	type threadState struct {
		allocation map[int]int
		need       map[int]int
		finished   bool
	}
	var threads []*threadState
	for _, t := range p.tasks {
		if t == nil {
			continue
		}
		t.mu.Lock()
		if t.res == nil {
			t.mu.Unlock()
			continue
		}
		st := &threadState{
			allocation: make(map[int]int, len(t.allocation)),
			need:       make(map[int]int, len(t.need)),
		}
		for id, n := range t.allocation {
			st.allocation[id] = n
		}
		for id, n := range t.need {
			st.need[id] = n
		}
		if t == caller {
			st.need[semID]++
		}
		t.mu.Unlock()
		threads = append(threads, st)
	}

	for progress := true; progress; {
		progress = false
		for _, st := range threads {
			if st.finished {
				continue
			}
			enough := true
			for id, n := range st.need {
				if n > available[id] {
					enough = false
					break
				}
			}
			if !enough {
				continue
			}
			for id, n := range st.allocation {
				available[id] += n
			}
			st.finished = true
			progress = true
		}
	}

	for _, st := range threads {
		if !st.finished {
			return false
		}
	}
	return true
}
