package llm

import (
	"sync"
	"time"
)

// Budget is the shared daily cap on LLM calls. Both the executor path and the
// life scheduler draw from the same instance, so the check-and-increment is
// guarded by a mutex.
type Budget struct {
	mu      sync.Mutex
	limit   int
	used    int
	day     time.Time // midnight (local) of the current accounting day
	nowFunc func() time.Time
}

// NewBudget creates a Budget allowing limit calls per calendar day.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit, nowFunc: time.Now}
}

// SetNowFunc overrides the clock, for tests.
func (b *Budget) SetNowFunc(f func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowFunc = f
}

// TryAcquire consumes one call from today's budget. Returns false when the
// budget is exhausted.
func (b *Budget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Remaining returns how many calls are left today.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if b.used >= b.limit {
		return 0
	}
	return b.limit - b.used
}

// Limit returns the configured daily cap.
func (b *Budget) Limit() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

// rollover resets the counter when the calendar day changes. Caller holds mu.
func (b *Budget) rollover() {
	now := b.nowFunc()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !midnight.Equal(b.day) {
		b.day = midnight
		b.used = 0
	}
}
