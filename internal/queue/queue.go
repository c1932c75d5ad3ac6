// Package queue provides a bounded, byte-budgeted blocking queue shared by
// the logger and probe extractor to hand data across a producer/consumer
// boundary without unbounded memory growth.
package queue

import "sync"

// SizeFunc reports the memory cost of one queued element.
type SizeFunc[T any] func(T) int

// BlockingQueue is a FIFO bounded by total element byte size rather than
// element count. Remove blocks while the queue is open and empty; it
// returns ok=false once the queue is closed and drained. Add never blocks:
// once the byte budget is exhausted, new elements are dropped (the newest
// element loses, the queue never evicts to make room).
type BlockingQueue[T any] struct {
	maxBytes int
	sizeOf   SizeFunc[T]

	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	curSize int
	open    bool
}

// New builds a closed queue with the given byte budget and element sizer.
func New[T any](maxBytes int, sizeOf SizeFunc[T]) *BlockingQueue[T] {
	q := &BlockingQueue[T]{maxBytes: maxBytes, sizeOf: sizeOf}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Open allows elements to be enqueued.
func (q *BlockingQueue[T]) Open() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.open = true
}

// Close prevents further enqueues and wakes every blocked Remove; already
// queued elements remain retrievable until drained, after which Remove
// returns ok=false.
func (q *BlockingQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.open {
		q.open = false
		q.cond.Broadcast()
	}
}

// Add enqueues one element, returning false if the queue is closed or the
// byte budget would be exceeded.
func (q *BlockingQueue[T]) Add(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.open {
		return false
	}
	size := q.sizeOf(item)
	if size+q.curSize > q.maxBytes {
		return false
	}
	q.items = append(q.items, item)
	q.curSize += size
	q.cond.Signal()
	return true
}

// Remove blocks until an element is available or the queue closes with
// nothing left to drain.
func (q *BlockingQueue[T]) Remove() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if !q.open {
			return item, false
		}
		q.cond.Wait()
	}
	return q.removeLocked(), true
}

func (q *BlockingQueue[T]) removeLocked() T {
	item := q.items[0]
	q.items = q.items[1:]
	q.curSize -= q.sizeOf(item)
	return item
}

// Clear discards all queued elements.
func (q *BlockingQueue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.curSize = 0
}

// ElementCount returns the number of currently queued elements.
func (q *BlockingQueue[T]) ElementCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MemorySize returns the current total byte size of queued elements.
func (q *BlockingQueue[T]) MemorySize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.curSize
}

// IsOpen reports whether the queue currently accepts Add calls.
func (q *BlockingQueue[T]) IsOpen() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.open
}

// AutoOpenClose opens a queue on construction and closes it on Close,
// mirroring a defer-scoped open/close pair.
type AutoOpenClose[T any] struct {
	q *BlockingQueue[T]
}

// NewAutoOpenClose opens q and returns a handle to close it later.
func NewAutoOpenClose[T any](q *BlockingQueue[T]) *AutoOpenClose[T] {
	q.Open()
	return &AutoOpenClose[T]{q: q}
}

// Close closes the underlying queue.
func (a *AutoOpenClose[T]) Close() { a.q.Close() }
