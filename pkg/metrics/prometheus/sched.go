package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcavallo/minos/pkg/kernel"
	"github.com/mcavallo/minos/pkg/metrics"
)

// schedMetrics is the Prometheus implementation of kernel.SchedMetrics.
type schedMetrics struct {
	contextSwitches prometheus.Counter
	syscalls        *prometheus.CounterVec
	readyDepth      prometheus.Gauge
}

// NewSchedMetrics creates a Prometheus-backed scheduler metrics sink.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewSchedMetrics() kernel.SchedMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &schedMetrics{
		contextSwitches: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "minos_sched_context_switches_total",
			Help: "Total number of idle-loop dispatches to a thread",
		}),
		syscalls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "minos_syscalls_total",
				Help: "Total number of syscall entries by name",
			},
			[]string{"syscall"},
		),
		readyDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "minos_sched_ready_threads",
			Help: "Current number of threads in the ready set",
		}),
	}
}

// ObserveContextSwitch implements kernel.SchedMetrics.
func (m *schedMetrics) ObserveContextSwitch() { m.contextSwitches.Inc() }

// ObserveSyscall implements kernel.SchedMetrics.
func (m *schedMetrics) ObserveSyscall(name string) {
	m.syscalls.WithLabelValues(name).Inc()
}

// SetReadyDepth implements kernel.SchedMetrics.
func (m *schedMetrics) SetReadyDepth(n int) {
	m.readyDepth.Set(float64(n))
}
