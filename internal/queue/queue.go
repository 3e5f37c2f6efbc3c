// Package queue provides the bounded, non-blocking multi-producer /
// multi-consumer queue used for worker task queues and the notification
// channel.
//
// The queue is a thin wrapper over a buffered channel: Push and Pop never
// block, which lets callers apply their own retry-and-yield backpressure.
package queue

import (
	"errors"
	"fmt"
)

// ErrCapacity is returned when a queue capacity is not a positive power of two.
var ErrCapacity = errors.New("queue capacity must be a positive power of two")

// Queue is a bounded FIFO safe for any number of concurrent producers and
// consumers.
type Queue[T any] struct {
	ch chan T
}

// New creates a queue holding at most capacity items.
func New[T any](capacity int) (*Queue[T], error) {
	if err := ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	return &Queue[T]{ch: make(chan T, capacity)}, nil
}

// ValidateCapacity reports whether capacity has the shape the queue requires.
func ValidateCapacity(capacity int) error {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}
	return nil
}

// Push appends item and returns false if the queue is full.
func (q *Queue[T]) Push(item T) bool {
	select {
	case q.ch <- item:
		return true
	default:
		return false
	}
}

// Pop removes the oldest item. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	select {
	case item = <-q.ch:
		return item, true
	default:
		return item, false
	}
}

// Len returns a snapshot of the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}
