// Package queue provides the bounded priority queue used for exact top-k selection.
package queue

// Item is a candidate neighbour: a store position and its distance to the query.
type Item struct {
	Position uint32
	Distance float32
}

// worse reports whether a ranks strictly after b in result order.
// Results ascend by distance; equal distances ascend by position.
func worse(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Position > b.Position
}

// TopK keeps the k best items seen so far.
// Internally it is a max-heap on result order, so the current worst
// candidate sits at the root and is evicted first.
// Value-based storage, no pointer indirection.
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a queue retaining at most k items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Len returns the number of retained items.
func (q *TopK) Len() int { return len(q.items) }

// Offer considers item for the result set. It reports whether the item was kept.
func (q *TopK) Offer(item Item) bool {
	if q.k == 0 {
		return false
	}
	if len(q.items) < q.k {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return true
	}
	if !worse(q.items[0], item) {
		return false
	}
	q.items[0] = item
	q.siftDown(0)
	return true
}

// Drain empties the queue and returns its items best first.
func (q *TopK) Drain() []Item {
	n := len(q.items)
	out := make([]Item, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = q.items[0]
		last := len(q.items) - 1
		q.items[0] = q.items[last]
		q.items = q.items[:last]
		if last > 0 {
			q.siftDown(0)
		}
	}
	return out
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !worse(q.items[i], q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		top := l
		if r := l + 1; r < n && worse(q.items[r], q.items[l]) {
			top = r
		}
		if !worse(q.items[top], q.items[i]) {
			return
		}
		q.items[i], q.items[top] = q.items[top], q.items[i]
		i = top
	}
}
