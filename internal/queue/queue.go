// Package queue provides the small generic collections the
// spanning-forest linearizer needs for its round-robin worklists:
// a FIFO Deque that supports indexed swaps (so the initial order of a
// worklist can be shuffled in place) and a PriorityQueue built on
// container/heap, used by SpanningForestState.GetLinearization's
// chunk/transaction readiness heaps.
//
// Adapted from the collection helpers in
// github.com/btcsuite/btcd/mempool/txgraph (collections.go): that
// package's Queue[T] is a plain FIFO with no index access, which is
// enough for simple worklists but not for the randomized initial
// ordering MakeTopological/StartOptimizing/StartMinimizing need (swap
// the newly appended entry with a uniformly random existing one). Deque
// below adds that index access; PriorityQueue keeps the txgraph
// heap.Interface wrapper as-is, since nothing about it is cluster-linearize
// specific.
package queue

import "container/heap"

// Deque is a generic double-ended worklist with O(1) amortized PushBack
// and PopFront, plus O(1) indexed access and swap so that callers can
// randomize the order of entries already queued (the pattern every
// "queue of chunks to consider" in the linearizer uses to turn a FIFO
// into a uniformly shuffled initial order without allocating a separate
// permutation). The zero value is ready to use.
type Deque[T any] struct {
	items []T
}

// NewDeque creates an empty deque with optional initial capacity.
func NewDeque[T any](capacity ...int) *Deque[T] {
	c := 0
	if len(capacity) > 0 {
		c = capacity[0]
	}
	return &Deque[T]{items: make([]T, 0, c)}
}

// PushBack appends an item to the back of the deque.
func (d *Deque[T]) PushBack(item T) {
	d.items = append(d.items, item)
}

// PopFront removes and returns the item at the front of the deque.
// Returns false if the deque is empty.
func (d *Deque[T]) PopFront() (T, bool) {
	if len(d.items) == 0 {
		var zero T
		return zero, false
	}
	item := d.items[0]
	d.items = d.items[1:]
	return item, true
}

// Len returns the number of items in the deque.
func (d *Deque[T]) Len() int { return len(d.items) }

// Empty reports whether the deque holds no items.
func (d *Deque[T]) Empty() bool { return len(d.items) == 0 }

// At returns the item at index i, where i=0 is the front.
func (d *Deque[T]) At(i int) T { return d.items[i] }

// Back returns the item at the back of the deque (index Len()-1).
func (d *Deque[T]) Back() T { return d.items[len(d.items)-1] }

// Swap exchanges the items at indices i and j.
func (d *Deque[T]) Swap(i, j int) { d.items[i], d.items[j] = d.items[j], d.items[i] }

// Reserve grows the backing array's capacity to at least n, without
// changing Len. It mirrors VecDeque::reserve in the original
// implementation, which pre-sizes the minimization worklist to the
// cluster's transaction count.
func (d *Deque[T]) Reserve(n int) {
	if cap(d.items) >= n {
		return
	}
	grown := make([]T, len(d.items), n)
	copy(grown, d.items)
	d.items = grown
}

// PriorityQueue is a generic heap that pops first the item ranked first
// by a caller-supplied comparison function, used by SpanningForestState.GetLinearization for
// its chunk-readiness and transaction-readiness heaps. The zero value is
// NOT ready to use; call NewPriorityQueue.
type PriorityQueue[T any] struct {
	impl *heapImpl[T]
}

// NewPriorityQueue creates a priority queue where less(a, b) == true
// means a should be popped before b.
func NewPriorityQueue[T any](less func(a, b T) bool, capacity ...int) *PriorityQueue[T] {
	c := 0
	if len(capacity) > 0 {
		c = capacity[0]
	}
	return &PriorityQueue[T]{impl: &heapImpl[T]{items: make([]T, 0, c), less: less}}
}

// Push adds an item to the priority queue.
func (pq *PriorityQueue[T]) Push(item T) { heap.Push(pq.impl, item) }

// Pop removes and returns the highest priority item. Returns false if
// the queue is empty.
func (pq *PriorityQueue[T]) Pop() (T, bool) {
	if pq.impl.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(pq.impl).(T), true
}

// Len returns the number of items in the priority queue.
func (pq *PriorityQueue[T]) Len() int { return pq.impl.Len() }

// Empty reports whether the priority queue holds no items.
func (pq *PriorityQueue[T]) Empty() bool { return pq.impl.Len() == 0 }

type heapImpl[T any] struct {
	items []T
	less  func(a, b T) bool
}

func (h *heapImpl[T]) Len() int            { return len(h.items) }
func (h *heapImpl[T]) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h *heapImpl[T]) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *heapImpl[T]) Push(x any)          { h.items = append(h.items, x.(T)) }
func (h *heapImpl[T]) Pop() any {
	n := len(h.items) - 1
	item := h.items[n]
	h.items = h.items[:n]
	return item
}
