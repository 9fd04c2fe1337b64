package blockcache

// Metrics provides observability for cache operations.
//
// Implementations can count hits, misses, evictions and write-backs. This
// is optional: a Manager with no metrics sink skips collection. The
// Prometheus implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	// ObserveHit records a lookup served from a resident block.
	ObserveHit()

	// ObserveMiss records a lookup that had to read through the device.
	ObserveMiss()

	// ObserveEviction records the replacement of a resident block.
	ObserveEviction()

	// ObserveWriteBack records a dirty buffer written back to the device.
	ObserveWriteBack()
}

func (m *Manager) observeHit() {
	if m.metrics != nil {
		m.metrics.ObserveHit()
	}
}

func (m *Manager) observeMiss() {
	if m.metrics != nil {
		m.metrics.ObserveMiss()
	}
}

func (m *Manager) observeEviction() {
	if m.metrics != nil {
		m.metrics.ObserveEviction()
	}
}

func (m *Manager) observeWriteBack() {
	if m.metrics != nil {
		m.metrics.ObserveWriteBack()
	}
}
