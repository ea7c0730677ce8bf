package core

import "sync"

// Item can be compared for priority ordering.
type Item interface {
	Less(Item) bool
}

// PriorityQueue is a thread-safe min-heap. The live pipeline uses it to
// restore chronological order over out-of-order candle arrivals before
// they reach the strategy.
type PriorityQueue struct {
	sync.Mutex
	length          int
	data            []Item
	notifyCallbacks []func(Item)
}

// NewPriorityQueue creates a queue heapified over the provided items.
func NewPriorityQueue(data []Item) *PriorityQueue {
	q := &PriorityQueue{
		data:   data,
		length: len(data),
	}

	if q.length > 0 {
		for i := q.length >> 1; i >= 0; i-- {
			q.down(i)
		}
	}

	return q
}

// Push adds an item and notifies subscribers.
func (q *PriorityQueue) Push(item Item) {
	q.Lock()
	defer q.Unlock()

	q.data = append(q.data, item)
	q.length++
	q.up(q.length - 1)

	for _, notify := range q.notifyCallbacks {
		go notify(item)
	}
}

// PopLock returns a channel that receives the next item whenever one
// becomes available.
func (q *PriorityQueue) PopLock() <-chan Item {
	ch := make(chan Item)
	q.Lock()
	defer q.Unlock()
	q.notifyCallbacks = append(q.notifyCallbacks, func(_ Item) {
		ch <- q.Pop()
	})
	return ch
}

// Pop removes and returns the lowest item, or nil when empty.
func (q *PriorityQueue) Pop() Item {
	q.Lock()
	defer q.Unlock()

	if q.length == 0 {
		return nil
	}

	top := q.data[0]
	q.length--

	if q.length > 0 {
		q.data[0] = q.data[q.length]
		q.down(0)
	}

	q.data = q.data[:q.length]

	return top
}

// Peek returns the lowest item without removing it.
func (q *PriorityQueue) Peek() Item {
	q.Lock()
	defer q.Unlock()

	if q.length == 0 {
		return nil
	}
	return q.data[0]
}

// Len returns the number of queued items.
func (q *PriorityQueue) Len() int {
	q.Lock()
	defer q.Unlock()
	return q.length
}

func (q *PriorityQueue) up(pos int) {
	for pos > 0 {
		parent := (pos - 1) >> 1
		if !q.data[pos].Less(q.data[parent]) {
			break
		}
		q.data[pos], q.data[parent] = q.data[parent], q.data[pos]
		pos = parent
	}
}

func (q *PriorityQueue) down(pos int) {
	for {
		left := pos<<1 + 1
		if left >= q.length {
			break
		}

		smallest := left
		if right := left + 1; right < q.length && q.data[right].Less(q.data[left]) {
			smallest = right
		}

		if !q.data[smallest].Less(q.data[pos]) {
			break
		}

		q.data[pos], q.data[smallest] = q.data[smallest], q.data[pos]
		pos = smallest
	}
}
