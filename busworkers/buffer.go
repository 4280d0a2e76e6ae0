package busworkers

import (
	"container/list"
	"sync"

	"github.com/busmesh/testorch/domain"
)

// CorrelationBuffer holds consumed records keyed by correlation id until a
// waiter claims them, bounded by capacity. Overflow evicts the oldest
// unclaimed record and counts it as unmatched.
type CorrelationBuffer struct {
	mu       sync.Mutex
	capacity int
	records  map[string]domain.ConsumedRecord
	waiters  map[string][]chan domain.ConsumedRecord
	order    *list.List // correlation ids, oldest first, for unclaimed-only eviction
	inOrder  map[string]*list.Element
	unmatched int
}

// NewCorrelationBuffer bounds the buffer at capacity unclaimed records.
func NewCorrelationBuffer(capacity int) *CorrelationBuffer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &CorrelationBuffer{
		capacity: capacity,
		records:  make(map[string]domain.ConsumedRecord),
		waiters:  make(map[string][]chan domain.ConsumedRecord),
		order:    list.New(),
		inOrder:  make(map[string]*list.Element),
	}
}

// Deliver is called once per consumed record off the broker. If a waiter is
// already registered for the correlation id, it is matched immediately and
// removed; otherwise the record is buffered, evicting the oldest unclaimed
// entry if the buffer is at capacity.
func (b *CorrelationBuffer) Deliver(record domain.ConsumedRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if waiters, ok := b.waiters[record.CorrelationID]; ok && len(waiters) > 0 {
		record.State = domain.MatchMatched
		waiters[0] <- record
		if len(waiters) == 1 {
			delete(b.waiters, record.CorrelationID)
		} else {
			b.waiters[record.CorrelationID] = waiters[1:]
		}
		return
	}

	if len(b.records) >= b.capacity {
		b.evictOldest()
	}
	record.State = domain.MatchPending
	b.records[record.CorrelationID] = record
	b.inOrder[record.CorrelationID] = b.order.PushBack(record.CorrelationID)
}

func (b *CorrelationBuffer) evictOldest() {
	front := b.order.Front()
	if front == nil {
		return
	}
	id := front.Value.(string)
	b.order.Remove(front)
	delete(b.inOrder, id)
	delete(b.records, id)
	b.unmatched++
}

// Claim returns a channel that resolves with the record matching
// correlationID once observed, either immediately (if already buffered) or
// when Deliver next sees it.
func (b *CorrelationBuffer) Claim(correlationID string) <-chan domain.ConsumedRecord {
	ch := make(chan domain.ConsumedRecord, 1)
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.records[correlationID]; ok {
		record.State = domain.MatchMatched
		delete(b.records, correlationID)
		if elem, exists := b.inOrder[correlationID]; exists {
			b.order.Remove(elem)
			delete(b.inOrder, correlationID)
		}
		ch <- record
		return ch
	}
	b.waiters[correlationID] = append(b.waiters[correlationID], ch)
	return ch
}

// UnmatchedCount returns the number of unclaimed records evicted over this
// buffer's lifetime, reported in evidence at teardown.
func (b *CorrelationBuffer) UnmatchedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unmatched
}

// PendingCount returns the number of records currently buffered and
// unclaimed.
func (b *CorrelationBuffer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
