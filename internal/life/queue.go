package life

import (
	"container/heap"
	"sync"

	"github.com/genesis-minds/genesis/internal/models"
)

// eventQueue is a priority queue over events: highest priority first, FIFO
// within equal priority.
type eventQueue struct {
	mu    sync.Mutex
	items eventHeap
	seq   uint64
}

type queuedEvent struct {
	event models.Event
	seq   uint64
}

type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].event.Priority != h[j].event.Priority {
		return h[i].event.Priority > h[j].event.Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queuedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

// push enqueues an event.
func (q *eventQueue) push(e models.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.items, queuedEvent{event: e, seq: q.seq})
}

// pop dequeues the highest-priority event, or ok=false when empty.
func (q *eventQueue) pop() (models.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.Event{}, false
	}
	item := heap.Pop(&q.items).(queuedEvent)
	return item.event, true
}

// depth returns the number of queued events.
func (q *eventQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
