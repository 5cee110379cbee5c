package queue

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// WaitStrategy decides how an idle consumer waits for the next entry.
// attempt counts consecutive empty polls and resets once an entry arrives.
// Idle returns ctx.Err() when the consumer should stop waiting.
type WaitStrategy interface {
	Idle(ctx context.Context, ready <-chan struct{}, attempt int) error
}

const (
	spinTries  = 100
	yieldTries = 100
)

// DefaultTimeout is the wake-up period of TimeoutWait.
const DefaultTimeout = 10 * time.Millisecond

// BlockWait parks until an entry is signalled.
type BlockWait struct{}

func (BlockWait) Idle(ctx context.Context, ready <-chan struct{}, _ int) error {
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TimeoutWait parks like BlockWait but wakes after Timeout regardless, so a
// lost signal never stalls the consumer for longer than that.
type TimeoutWait struct {
	Timeout time.Duration
}

func (w TimeoutWait) Idle(ctx context.Context, ready <-chan struct{}, _ int) error {
	d := w.Timeout
	if d <= 0 {
		d = DefaultTimeout
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ready:
		return nil
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SleepWait spins, then yields, then sleeps for Sleep between polls.
type SleepWait struct {
	Sleep time.Duration
}

func (w SleepWait) Idle(ctx context.Context, _ <-chan struct{}, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case attempt < spinTries:
	case attempt < spinTries+yieldTries:
		runtime.Gosched()
	default:
		d := w.Sleep
		if d <= 0 {
			d = 100 * time.Microsecond
		}
		time.Sleep(d)
	}
	return nil
}

// YieldWait spins, then yields the processor between polls.
type YieldWait struct{}

func (YieldWait) Idle(ctx context.Context, _ <-chan struct{}, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if attempt >= spinTries {
		runtime.Gosched()
	}
	return nil
}

// BusySpinWait polls continuously. It burns a core while idle.
type BusySpinWait struct{}

func (BusySpinWait) Idle(ctx context.Context, _ <-chan struct{}, _ int) error {
	return ctx.Err()
}

// ParseWait maps a strategy name to its implementation. An empty name
// selects TimeoutWait.
func ParseWait(name string) (WaitStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "timeout":
		return TimeoutWait{Timeout: DefaultTimeout}, nil
	case "block":
		return BlockWait{}, nil
	case "sleep":
		return SleepWait{}, nil
	case "yield":
		return YieldWait{}, nil
	case "busyspin", "busy_spin", "spin":
		return BusySpinWait{}, nil
	default:
		return nil, fmt.Errorf("queue: unknown wait strategy %q", name)
	}
}
