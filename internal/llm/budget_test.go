package llm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBudgetExhaustion(t *testing.T) {
	b := NewBudget(3)

	for i := 0; i < 3; i++ {
		if !b.TryAcquire() {
			t.Fatalf("Acquire %d should succeed", i+1)
		}
	}
	if b.TryAcquire() {
		t.Error("Fourth acquire should fail")
	}
	if b.Remaining() != 0 {
		t.Errorf("Expected 0 remaining, got %d", b.Remaining())
	}
}

func TestBudgetRemaining(t *testing.T) {
	b := NewBudget(5)
	if b.Remaining() != 5 {
		t.Errorf("Expected 5 remaining, got %d", b.Remaining())
	}
	b.TryAcquire()
	b.TryAcquire()
	if b.Remaining() != 3 {
		t.Errorf("Expected 3 remaining, got %d", b.Remaining())
	}
	if b.Limit() != 5 {
		t.Errorf("Expected limit 5, got %d", b.Limit())
	}
}

func TestBudgetZeroLimit(t *testing.T) {
	b := NewBudget(0)
	if b.TryAcquire() {
		t.Error("Zero-limit budget should never grant a call")
	}
	if b.Remaining() != 0 {
		t.Errorf("Expected 0 remaining, got %d", b.Remaining())
	}
}

func TestBudgetMidnightRollover(t *testing.T) {
	now := time.Date(2026, 8, 28, 23, 50, 0, 0, time.UTC)
	b := NewBudget(2)
	b.SetNowFunc(func() time.Time { return now })

	b.TryAcquire()
	b.TryAcquire()
	if b.TryAcquire() {
		t.Fatal("Budget should be exhausted before midnight")
	}

	// Clock crosses midnight.
	now = time.Date(2026, 8, 29, 0, 5, 0, 0, time.UTC)
	if b.Remaining() != 2 {
		t.Errorf("Expected full budget after rollover, got %d", b.Remaining())
	}
	if !b.TryAcquire() {
		t.Error("Acquire should succeed after rollover")
	}
}

func TestBudgetConcurrentAcquire(t *testing.T) {
	const limit = 50
	b := NewBudget(limit)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TryAcquire() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := granted.Load(); got != limit {
		t.Errorf("Expected exactly %d grants under contention, got %d", limit, got)
	}
}
