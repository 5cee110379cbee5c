// Package queue provides the bounded transports that move log events from
// producer goroutines to the background consumer.
package queue

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by Enqueue once the queue has been closed.
var ErrClosed = errors.New("queue: closed")

// Queue is a bounded multi-producer queue. Entries enqueued by one producer
// are dequeued in the order they were enqueued; nothing is promised across
// producers.
type Queue[T any] interface {
	// TryEnqueue never blocks; it reports false when the queue is full or closed.
	TryEnqueue(v T) bool
	// Enqueue blocks until space is available, ctx is done or the queue is closed.
	Enqueue(ctx context.Context, v T) error
	TryDequeue() (T, bool)
	Len() int
	Cap() int
	// Ready is signalled after every successful enqueue.
	Ready() <-chan struct{}
	// Close rejects further enqueues and wakes blocked producers. Remaining
	// entries can still be dequeued.
	Close()
}

// Kind selects a Queue implementation.
type Kind string

const (
	KindRing    Kind = "ring"
	KindChannel Kind = "channel"
)

// New builds a queue of the given kind. An empty kind selects the ring.
func New[T any](kind Kind, capacity int) (Queue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue: capacity must be positive, got %d", capacity)
	}
	switch kind {
	case KindRing, "":
		return NewRing[T](capacity), nil
	case KindChannel:
		return NewChannel[T](capacity), nil
	default:
		return nil, fmt.Errorf("queue: unknown kind %q", kind)
	}
}

// signal performs a non-blocking send on a 1-buffered channel.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
