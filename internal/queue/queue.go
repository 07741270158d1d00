package queue

// Item is one unit of durable progress.
type Item[T any] struct {
	Finished bool `json:"finished"`
	Data     T    `json:"data"`
}

// Queue is an ordered, append-only log of work items. It is immutable, every
// mutation returns a new snapshot and leaves the receiver untouched.
//
// Scheduling is strict FIFO over unfinished items: Next and Finish both resolve
// the first unfinished item in insertion order.
type Queue[T any] struct {
	items []Item[T]
}

func New[T any](items []Item[T]) Queue[T] {
	return Queue[T]{items: append([]Item[T](nil), items...)}
}

func (q Queue[T]) Add(items ...Item[T]) Queue[T] {
	out := make([]Item[T], 0, len(q.items)+len(items))
	out = append(out, q.items...)
	out = append(out, items...)
	return Queue[T]{items: out}
}

func (q Queue[T]) AddData(data ...T) Queue[T] {
	items := make([]Item[T], len(data))
	for i, d := range data {
		items[i] = Item[T]{Data: d}
	}
	return q.Add(items...)
}

func (q Queue[T]) Len() int {
	return len(q.items)
}

func (q Queue[T]) NumWaiting() int {
	count := 0
	for _, item := range q.items {
		if !item.Finished {
			count++
		}
	}
	return count
}

func (q Queue[T]) firstWaiting() int {
	for i, item := range q.items {
		if !item.Finished {
			return i
		}
	}
	return -1
}

// Next returns the data of the first unfinished item.
func (q Queue[T]) Next() (T, bool) {
	idx := q.firstWaiting()
	if idx < 0 {
		var zero T
		return zero, false
	}
	return q.items[idx].Data, true
}

// Finish marks the item Next would return as finished. It is a no-op when
// nothing is waiting, callers are expected to only call it after Next
// returned a value.
func (q Queue[T]) Finish() Queue[T] {
	idx := q.firstWaiting()
	if idx < 0 {
		return q
	}
	out := New(q.items)
	out.items[idx] = Item[T]{Finished: true, Data: q.items[idx].Data}
	return out
}

// Find returns the data of the first item matching pred, finished or not.
func (q Queue[T]) Find(pred func(T) bool) (T, bool) {
	for _, item := range q.items {
		if pred(item.Data) {
			return item.Data, true
		}
	}
	var zero T
	return zero, false
}

// Items returns a copy of the underlying items.
func (q Queue[T]) Items() []Item[T] {
	return append([]Item[T](nil), q.items...)
}
