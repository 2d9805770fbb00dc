// Package metrics
package metrics

import (
	"sync"

	"hostpulse/internal/domain"
)

// Buffer holds the live snapshot history in insertion order. A positive
// capacity bounds it; the oldest entries are evicted first.
type Buffer struct {
	mu       sync.Mutex
	items    []domain.Snapshot
	capacity int
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}

	initial := capacity
	if initial == 0 || initial > 1024 {
		initial = 64
	}

	return &Buffer{
		items:    make([]domain.Snapshot, 0, initial),
		capacity: capacity,
	}
}

func (b *Buffer) Append(s domain.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, s)

	if b.capacity > 0 && len(b.items) > b.capacity {
		over := len(b.items) - b.capacity
		clear(b.items[:over])
		b.items = b.items[over:]
	}
}

func (b *Buffer) Latest() (domain.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return domain.Snapshot{}, false
	}
	return b.items[len(b.items)-1], true
}

// History returns a copy that later appends never touch.
func (b *Buffer) History() []domain.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Snapshot, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = make([]domain.Snapshot, 0, cap(b.items))
}

func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.items)
}

func (b *Buffer) Capacity() int {
	return b.capacity
}
