// Package blockcache implements a bounded write-back cache of device
// blocks.
//
// The cache holds at most Capacity blocks in insertion order. Lookups of a
// resident block return it directly; otherwise the earliest-inserted block
// that nobody is currently using is written back (if dirty) and replaced.
// Every access happens inside a closure passed to View or Modify, which
// pins the block for the closure's duration; nesting access to a second
// block inside the closure is legal and is how multi-block structures
// (inode plus its index blocks) are traversed. Keep the acquisition order
// consistent: inode block before any data or index block it references.
package blockcache

import (
	"sync"

	"github.com/mcavallo/minos/pkg/blockdev"
)

// DefaultCapacity is the default number of resident blocks.
const DefaultCapacity = 16

// Block is one cached device block with dirty tracking.
type Block struct {
	mu    sync.Mutex
	id    uint32
	dev   blockdev.BlockDevice
	data  [blockdev.BlockSize]byte
	dirty bool
	pins  int
}

func loadBlock(dev blockdev.BlockDevice, id uint32) *Block {
	b := &Block{id: id, dev: dev}
	dev.ReadBlock(id, b.data[:])
	return b
}

// sync writes the buffer back if it is dirty. Callers must hold b.mu.
func (b *Block) sync() {
	if b.dirty {
		b.dirty = false
		b.dev.WriteBlock(b.id, b.data[:])
	}
}

// Manager is the bounded block cache. One Manager serves one filesystem
// instance; all access to a given device should go through the same
// Manager so each block id has at most one resident buffer.
type Manager struct {
	mu       sync.Mutex
	capacity int
	entries  []*Block // insertion order, oldest first
	metrics  Metrics
}

// NewManager creates a cache bounded to capacity blocks. A non-positive
// capacity selects DefaultCapacity.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{capacity: capacity}
}

// SetMetrics attaches a metrics sink. Passing nil disables collection.
func (m *Manager) SetMetrics(metrics Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

// get returns the resident block for id, loading and possibly evicting
// under the manager lock. The returned block is pinned.
func (m *Manager) get(dev blockdev.BlockDevice, id uint32) *Block {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.entries {
		if b.id == id {
			b.pins++
			m.observeHit()
			return b
		}
	}
	m.observeMiss()

	if len(m.entries) == m.capacity {
		victim := -1
		for i, b := range m.entries {
			if b.pins == 0 {
				victim = i
				break
			}
		}
		if victim < 0 {
			panic("blockcache: out of evictable blocks")
		}
		b := m.entries[victim]
		b.mu.Lock()
		if b.dirty {
			m.observeWriteBack()
		}
		b.sync()
		b.mu.Unlock()
		m.entries = append(m.entries[:victim], m.entries[victim+1:]...)
		m.observeEviction()
	}

	b := loadBlock(dev, id)
	b.pins = 1
	m.entries = append(m.entries, b)
	return b
}

func (m *Manager) put(b *Block) {
	m.mu.Lock()
	b.pins--
	m.mu.Unlock()
}

// View runs fn with read intent over the block's 512-byte buffer. The
// block is pinned and its mutex held for the duration of fn.
func (m *Manager) View(dev blockdev.BlockDevice, id uint32, fn func(data []byte)) {
	b := m.get(dev, id)
	defer m.put(b)
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.data[:])
}

// Modify runs fn with write intent over the block's 512-byte buffer and
// marks the block dirty.
func (m *Manager) Modify(dev blockdev.BlockDevice, id uint32, fn func(data []byte)) {
	b := m.get(dev, id)
	defer m.put(b)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty = true
	fn(b.data[:])
}

// Sync writes back the named block if it is resident and dirty.
func (m *Manager) Sync(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.entries {
		if b.id == id {
			b.mu.Lock()
			b.sync()
			b.mu.Unlock()
			return
		}
	}
}

// SyncAll flushes every resident dirty block to its device. This is the
// filesystem's durability barrier: call it after any metadata mutation
// that must survive a crash.
func (m *Manager) SyncAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.entries {
		b.mu.Lock()
		b.sync()
		b.mu.Unlock()
	}
}

// Len reports the number of resident blocks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
