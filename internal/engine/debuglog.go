package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDebugLogSize is the debug log capacity used when none is configured.
const DefaultDebugLogSize = 100

// DebugEntry is one recorded inbound message.
type DebugEntry struct {
	ID         uuid.UUID
	ReceivedAt time.Time
	Topic      string
	Payload    string
	Outcome    Outcome
}

// DebugLog is a bounded newest-first log of inbound messages.
// The engine goroutine writes it while API handlers read it.
type DebugLog struct {
	mu sync.Mutex
	// entries is a ring buffer, next is the slot the next entry goes to.
	entries []DebugEntry
	next    int
	size    int
}

// NewDebugLog creates a log holding at most capacity entries.
func NewDebugLog(capacity int) *DebugLog {
	if capacity <= 0 {
		capacity = DefaultDebugLogSize
	}

	return &DebugLog{
		entries: make([]DebugEntry, capacity),
	}
}

// Add records an entry, evicting the oldest one when full.
func (l *DebugLog) Add(entry DebugEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)

	if l.size < len(l.entries) {
		l.size++
	}
}

// Entries returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (l *DebugLog) Entries(limit int) []DebugEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > l.size {
		limit = l.size
	}

	result := make([]DebugEntry, 0, limit)

	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.entries)) % len(l.entries)
		result = append(result, l.entries[idx])
	}

	return result
}

// Len returns the number of stored entries.
func (l *DebugLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.size
}
