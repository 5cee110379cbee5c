package queue

import (
	"context"
	"sync"
)

// Channel is a Queue backed by a buffered channel.
type Channel[T any] struct {
	ch        chan T
	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel[T]{
		ch:     make(chan T, capacity),
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *Channel[T]) TryEnqueue(v T) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.ch <- v:
		signal(c.ready)
		return true
	default:
		return false
	}
}

func (c *Channel[T]) Enqueue(ctx context.Context, v T) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.ch <- v:
		signal(c.ready)
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel[T]) TryDequeue() (T, bool) {
	select {
	case v := <-c.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

func (c *Channel[T]) Len() int { return len(c.ch) }

func (c *Channel[T]) Cap() int { return cap(c.ch) }

func (c *Channel[T]) Ready() <-chan struct{} { return c.ready }

func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}
