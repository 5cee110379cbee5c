package queue

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// recheckInterval bounds how long a blocked producer sleeps before retrying
// when it missed a wakeup to a competing producer.
const recheckInterval = 5 * time.Millisecond

type slot[T any] struct {
	seq atomic.Uint64
	val T
}

// Ring is a bounded MPMC array queue (Vyukov). The slot array is sized to the
// next power of two so indexing is a mask; the logical capacity is exact.
type Ring[T any] struct {
	_        cpu.CacheLinePad
	enq      atomic.Uint64
	_        cpu.CacheLinePad
	deq      atomic.Uint64
	_        cpu.CacheLinePad
	mask     uint64
	capacity uint64
	slots    []slot[T]

	ready     chan struct{}
	notFull   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewRing returns a ring holding at most capacity entries. Capacity below one
// is raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	size := nextPow2(capacity)
	r := &Ring[T]{
		mask:     uint64(size - 1),
		capacity: uint64(capacity),
		slots:    make([]slot[T], size),
		ready:    make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// nextPow2 returns the next power of two >= n, with a floor of 2 so a slot's
// "filled" sequence never aliases the next lap's "free" sequence.
func nextPow2(n int) int {
	if n <= 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func (r *Ring[T]) isClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}

func (r *Ring[T]) TryEnqueue(v T) bool {
	if r.isClosed() {
		return false
	}
	for {
		pos := r.enq.Load()
		if int64(pos-r.deq.Load()) >= int64(r.capacity) {
			return false
		}
		s := &r.slots[pos&r.mask]
		dif := int64(s.seq.Load()) - int64(pos)
		switch {
		case dif == 0:
			if r.enq.CompareAndSwap(pos, pos+1) {
				s.val = v
				s.seq.Store(pos + 1)
				signal(r.ready)
				return true
			}
		case dif < 0:
			// A consumer claimed the slot but has not released it yet.
			if int64(pos-r.deq.Load()) >= int64(r.capacity) {
				return false
			}
			runtime.Gosched()
		}
	}
}

func (r *Ring[T]) Enqueue(ctx context.Context, v T) error {
	var timer *time.Timer
	for {
		if r.isClosed() {
			return ErrClosed
		}
		if r.TryEnqueue(v) {
			if timer != nil {
				timer.Stop()
			}
			return nil
		}
		if timer == nil {
			timer = time.NewTimer(recheckInterval)
		} else {
			timer.Reset(recheckInterval)
		}
		select {
		case <-r.notFull:
		case <-timer.C:
		case <-r.closed:
			timer.Stop()
			return ErrClosed
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (r *Ring[T]) TryDequeue() (T, bool) {
	var zero T
	for {
		pos := r.deq.Load()
		s := &r.slots[pos&r.mask]
		dif := int64(s.seq.Load()) - int64(pos+1)
		switch {
		case dif == 0:
			if r.deq.CompareAndSwap(pos, pos+1) {
				v := s.val
				s.val = zero
				s.seq.Store(pos + r.mask + 1)
				signal(r.notFull)
				return v, true
			}
		case dif < 0:
			return zero, false
		}
	}
}

func (r *Ring[T]) Len() int {
	n := int64(r.enq.Load() - r.deq.Load())
	switch {
	case n < 0:
		return 0
	case n > int64(r.capacity):
		return int(r.capacity)
	}
	return int(n)
}

func (r *Ring[T]) Cap() int { return int(r.capacity) }

func (r *Ring[T]) Ready() <-chan struct{} { return r.ready }

func (r *Ring[T]) Close() {
	r.closeOnce.Do(func() { close(r.closed) })
}
