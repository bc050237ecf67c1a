// Package logbuf holds the dashboard's capacity-bounded activity log.
package logbuf

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when no capacity is given.
const DefaultCapacity = 100

// StampLayout is the time-of-day layout used for Entry.Stamp.
const StampLayout = "15:04:05"

// Entry is one rendered log line.
type Entry struct {
	Time    time.Time `json:"time"`
	Stamp   string    `json:"stamp"`
	Message string    `json:"message"`
}

// NewEntry stamps message with the time of day of t.
func NewEntry(t time.Time, message string) Entry {
	return Entry{Time: t, Stamp: t.Format(StampLayout), Message: message}
}

// String renders the entry as "[15:04:05] message".
func (e Entry) String() string { return "[" + e.Stamp + "] " + e.Message }

// Buffer is a FIFO ring: once full, each append evicts the oldest entry.
// It is safe for concurrent use.
type Buffer struct {
	mu    sync.RWMutex
	items []Entry
	head  int // index of the oldest entry
	size  int
}

// New returns an empty buffer. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{items: make([]Entry, capacity)}
}

// Append adds e as the newest entry and reports whether the oldest was evicted.
func (b *Buffer) Append(e Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = e
		b.size++
		return false
	}
	b.items[b.head] = e
	b.head = (b.head + 1) % capacity
	return true
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Last returns the newest entry.
func (b *Buffer) Last() (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.size == 0 {
		return Entry{}, false
	}
	return b.items[(b.head+b.size-1)%len(b.items)], true
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *Buffer) Cap() int { return len(b.items) }

// Reset drops every entry.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.items)
	b.head, b.size = 0, 0
}
