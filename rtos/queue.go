package rtos

import "context"

// Queue is a bounded single-slot queue. Send never blocks; Receive blocks
// until a value arrives or ctx is done.
type Queue[T any] struct {
	slot   chan T
	onSend func(T)
}

// NewQueue returns an empty queue. onSend, if not nil, observes every value
// that is successfully sent, after it is in the slot.
func NewQueue[T any](onSend func(T)) *Queue[T] {
	return &Queue[T]{slot: make(chan T, 1), onSend: onSend}
}

// Send places v in the slot and reports whether it fit. A full slot is left
// untouched.
func (q *Queue[T]) Send(v T) bool {
	select {
	case q.slot <- v:
	default:
		return false
	}
	if q.onSend != nil {
		q.onSend(v)
	}
	return true
}

// Receive takes the value in the slot, waiting for one if necessary.
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v := <-q.slot:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Len returns the number of values waiting, 0 or 1.
func (q *Queue[T]) Len() int {
	return len(q.slot)
}
