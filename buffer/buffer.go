// Package buffer provides the bounded FIFO buffers that back each capture
// category. Entries are append-only and immutable once stored; when a buffer
// is full the oldest entries are evicted first, so a buffer always holds the
// most recent activity in insertion order.
package buffer

import "sync"

// DefaultCapacity is used when a buffer is created with a non-positive size.
const DefaultCapacity = 100

// Buffer is a fixed-capacity circular buffer. It is safe for concurrent use.
type Buffer[T any] struct {
	mu       sync.RWMutex
	entries  []T
	head     int // next write position
	count    int // current number of entries
	capacity int // max entries
}

// New creates a buffer that retains at most capacity entries.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{
		entries:  make([]T, capacity),
		capacity: capacity,
	}
}

// Append adds an entry, evicting the oldest entry if the buffer is full.
func (b *Buffer[T]) Append(entry T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity

	if b.count < b.capacity {
		b.count++
	}
}

// Snapshot returns an independent copy of the buffer contents in insertion
// order. The returned slice is never the live backing store, so appends after
// the call cannot mutate a snapshot already handed out. An empty buffer
// yields an empty non-nil slice, which keeps the wire fields built from
// snapshots serializing as arrays rather than null.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.count)

	// Oldest entry sits at head once the buffer has wrapped.
	start := 0
	if b.count == b.capacity {
		start = b.head
	}

	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}

	return result
}

// Len returns the current number of entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the maximum number of entries the buffer retains.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Clear empties the buffer in place.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.entries {
		b.entries[i] = zero
	}
	b.head = 0
	b.count = 0
}
