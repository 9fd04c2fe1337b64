package kernel

// SchedMetrics provides observability for scheduling and syscall
// activity. Optional; a kernel without a sink skips collection. The
// Prometheus implementation lives in pkg/metrics/prometheus.
type SchedMetrics interface {
	// ObserveContextSwitch records one idle-loop dispatch.
	ObserveContextSwitch()

	// ObserveSyscall records one syscall entry by name.
	ObserveSyscall(name string)

	// SetReadyDepth records the current ready-set size.
	SetReadyDepth(n int)
}

func (k *Kernel) observeContextSwitch() {
	if k.metrics != nil {
		k.metrics.ObserveContextSwitch()
	}
}

func (k *Kernel) observeSyscall(name string) {
	t := k.proc.Current()
	if t != nil {
		t.mu.Lock()
		t.syscalls++
		t.mu.Unlock()
	}
	if k.metrics != nil {
		k.metrics.ObserveSyscall(name)
	}
}

func (k *Kernel) observeReadyDepth() {
	if k.metrics != nil {
		k.metrics.SetReadyDepth(k.sched.Len())
	}
}
