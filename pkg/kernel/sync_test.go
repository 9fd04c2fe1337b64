package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Blocking mutex hand-off
// ============================================================================

// The observable order of lock holders is A, B, A: unlock hands the mutex
// to the blocked thread, and the former holder queues behind it.
func TestMutexBlocking_HandOffOrder(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	var order []string
	k.Register("main", func(env *Env) int {
		m := env.MutexCreate(true)
		require.Equal(t, 0, env.MutexLock(m))
		order = append(order, "A")

		tid := env.ThreadCreate(func(env *Env, _ int) int {
			require.Equal(t, 0, env.MutexLock(m))
			order = append(order, "B")
			require.Equal(t, 0, env.MutexUnlock(m))
			return 0
		}, 0)

		env.Yield() // let B block on the mutex
		require.Equal(t, 0, env.MutexUnlock(m))
		require.Equal(t, 0, env.MutexLock(m)) // blocks until B unlocks
		order = append(order, "A")
		require.Equal(t, 0, env.MutexUnlock(m))

		require.Equal(t, 0, env.WaittidBlocking(tid))
		return 0
	})

	_, err := k.Spawn("main")
	require.NoError(t, err)
	require.NoError(t, k.Run())
	assert.Equal(t, []string{"A", "B", "A"}, order)
}

func TestMutexSpin_MutualExclusion(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	counter := 0
	k.Register("main", func(env *Env) int {
		m := env.MutexCreate(false)

		worker := func(env *Env, _ int) int {
			for i := 0; i < 10; i++ {
				require.Equal(t, 0, env.MutexLock(m))
				v := counter
				env.Yield() // invite interleaving inside the critical section
				counter = v + 1
				require.Equal(t, 0, env.MutexUnlock(m))
			}
			return 0
		}
		t1 := env.ThreadCreate(worker, 0)
		t2 := env.ThreadCreate(worker, 0)
		require.Equal(t, 0, env.WaittidBlocking(t1))
		require.Equal(t, 0, env.WaittidBlocking(t2))
		return 0
	})

	_, err := k.Spawn("main")
	require.NoError(t, err)
	require.NoError(t, k.Run())
	assert.Equal(t, 20, counter)
}

func TestMutex_InvalidID(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	k.Register("main", func(env *Env) int {
		assert.Equal(t, ErrnoInval, env.MutexLock(3))
		assert.Equal(t, ErrnoInval, env.MutexUnlock(3))
		return 0
	})
	_, err := k.Spawn("main")
	require.NoError(t, err)
	require.NoError(t, k.Run())
}

// ============================================================================
// Semaphores
// ============================================================================

// Waiters wake in strict FIFO order, one per up.
func TestSemaphore_FIFOWakeup(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	var order []int
	k.Register("main", func(env *Env) int {
		sem := env.SemaphoreCreate(0)

		var tids []int
		for i := 0; i < 3; i++ {
			tids = append(tids, env.ThreadCreate(func(env *Env, arg int) int {
				require.Equal(t, 0, env.SemaphoreDown(sem))
				order = append(order, arg)
				return 0
			}, i))
		}
		env.Yield() // let all three park
		env.Yield()
		for range tids {
			require.Equal(t, 0, env.SemaphoreUp(sem))
		}
		for _, tid := range tids {
			require.Equal(t, 0, env.WaittidBlocking(tid))
		}
		return 0
	})

	_, err := k.Spawn("main")
	require.NoError(t, err)
	require.NoError(t, k.Run())
	assert.Equal(t, []int{0, 1, 2}, order)
}

// At quiescence, count + completed downs - ups equals the initial value.
func TestSemaphore_CountInvariant(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	var proc *ProcessControlBlock
	k.Register("main", func(env *Env) int {
		sem := env.SemaphoreCreate(2)
		tid := env.ThreadCreate(func(env *Env, _ int) int {
			require.Equal(t, 0, env.SemaphoreDown(sem))
			return 0
		}, 0)
		require.Equal(t, 0, env.SemaphoreDown(sem))
		require.Equal(t, 0, env.WaittidBlocking(tid))

		// 2 initial - 2 completed downs
		p := env.k.currentProcess()
		assert.Equal(t, 0, p.semaphores[sem].Count())

		require.Equal(t, 0, env.SemaphoreUp(sem))
		assert.Equal(t, 1, p.semaphores[sem].Count())
		return 0
	})

	p, err := k.Spawn("main")
	require.NoError(t, err)
	proc = p
	require.NoError(t, k.Run())
	assert.True(t, proc.IsZombie())
}

// ============================================================================
// Condition variables (Mesa semantics)
// ============================================================================

func TestCondvar_WaitSignal(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	var order []string
	k.Register("main", func(env *Env) int {
		m := env.MutexCreate(true)
		cv := env.CondvarCreate()
		ready := false

		tid := env.ThreadCreate(func(env *Env, _ int) int {
			require.Equal(t, 0, env.MutexLock(m))
			for !ready {
				require.Equal(t, 0, env.CondvarWait(cv, m))
			}
			order = append(order, "woke")
			require.Equal(t, 0, env.MutexUnlock(m))
			return 0
		}, 0)

		env.Yield() // waiter parks first
		require.Equal(t, 0, env.MutexLock(m))
		ready = true
		order = append(order, "set")
		require.Equal(t, 0, env.MutexUnlock(m))
		require.Equal(t, 0, env.CondvarSignal(cv))

		require.Equal(t, 0, env.WaittidBlocking(tid))
		return 0
	})

	_, err := k.Spawn("main")
	require.NoError(t, err)
	require.NoError(t, k.Run())
	assert.Equal(t, []string{"set", "woke"}, order)
}

func TestCondvar_SignalWithoutWaiters(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	k.Register("main", func(env *Env) int {
		cv := env.CondvarCreate()
		assert.Equal(t, 0, env.CondvarSignal(cv))
		return 0
	})
	_, err := k.Spawn("main")
	require.NoError(t, err)
	require.NoError(t, k.Run())
}

// ============================================================================
// Dining philosophers & deadlock detection
// ============================================================================

func philosophers(t *testing.T, env *Env, refusals *int, park bool) int {
	var sems [5]int
	for i := range sems {
		sems[i] = env.SemaphoreCreate(1)
	}

	var tids [5]int
	for i := 0; i < 5; i++ {
		tids[i] = env.ThreadCreate(func(env *Env, arg int) int {
			left := sems[arg]
			right := sems[(arg+1)%5]
			require.Equal(t, 0, env.SemaphoreDown(left))
			env.Yield() // everyone grabs the left chopstick first
			if env.SemaphoreDown(right) == ErrnoDeadlock {
				*refusals++
				env.SemaphoreUp(left)
				return 0
			}
			env.SemaphoreUp(right)
			env.SemaphoreUp(left)
			return 0
		}, i)
	}

	if park {
		// with detection off the table deadlocks; park the main thread on
		// an empty semaphore so the stall is total
		parkSem := env.SemaphoreCreate(0)
		env.SemaphoreDown(parkSem)
		return 0 // unreachable
	}
	for _, tid := range tids {
		require.Equal(t, 0, env.WaittidBlocking(tid))
	}
	return 0
}

func TestPhilosophers_DetectionOff_Deadlocks(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	refusals := 0
	k.Register("main", func(env *Env) int {
		return philosophers(t, env, &refusals, true)
	})
	_, err := k.Spawn("main")
	require.NoError(t, err)

	assert.ErrorIs(t, k.Run(), ErrDeadlock)
	assert.Zero(t, refusals)
}

func TestPhilosophers_DetectionOn_OneRefusal(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	refusals := 0
	k.Register("main", func(env *Env) int {
		require.Equal(t, 0, env.EnableDeadlockDetect(true))
		return philosophers(t, env, &refusals, false)
	})
	_, err := k.Spawn("main")
	require.NoError(t, err)

	require.NoError(t, k.Run())
	assert.Equal(t, 1, refusals, "exactly one down is refused; the rest make progress")
}

// With detection on, a lock of an already-held mutex is refused.
func TestMutex_DeadlockDetection(t *testing.T) {
	t.Parallel()
	k := New(Options{})

	k.Register("main", func(env *Env) int {
		require.Equal(t, 0, env.EnableDeadlockDetect(true))
		m := env.MutexCreate(true)
		require.Equal(t, 0, env.MutexLock(m))

		tid := env.ThreadCreate(func(env *Env, _ int) int {
			return env.MutexLock(m)
		}, 0)
		code := env.WaittidBlocking(tid)
		assert.Equal(t, ErrnoDeadlock, code)

		require.Equal(t, 0, env.MutexUnlock(m))
		return 0
	})
	_, err := k.Spawn("main")
	require.NoError(t, err)
	require.NoError(t, k.Run())
}
