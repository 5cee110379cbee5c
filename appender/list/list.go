// Package list provides an appender that keeps events in memory, for tests
// and diagnostics.
package list

import (
	"context"
	"sync"
	"time"

	"github.com/trickstertwo/xlog4"
)

// Record is one captured event with the circumstances of its delivery.
type Record struct {
	Event *xlog4.LogEvent
	// Background is true when the event was delivered by an async consumer.
	Background bool
}

// Hook runs inside Append before the event is recorded. A non-nil error is
// returned from Append and the event is not recorded.
type Hook func(ctx context.Context, ev *xlog4.LogEvent) error

// Options configure an Appender.
type Options struct {
	Filter xlog4.Filter
	// Strict propagates errors to synchronous callers.
	Strict bool
	Hook   Hook
}

// Appender records a snapshot of every event it receives.
type Appender struct {
	xlog4.BaseAppender
	hook Hook

	mu      sync.Mutex
	records []Record
	changed chan struct{}
}

func New(name string, opts Options) *Appender {
	return &Appender{
		BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict),
		hook:         opts.Hook,
		changed:      make(chan struct{}),
	}
}

func (a *Appender) Append(ctx context.Context, ev *xlog4.LogEvent) error {
	if a.hook != nil {
		if err := a.hook(ctx, ev); err != nil {
			return err
		}
	}
	r := Record{Event: ev.Snapshot(), Background: xlog4.InBackground(ctx)}
	a.mu.Lock()
	a.records = append(a.records, r)
	close(a.changed)
	a.changed = make(chan struct{})
	a.mu.Unlock()
	return nil
}

// Records returns a copy of everything captured so far.
func (a *Appender) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Record(nil), a.records...)
}

// Events returns the captured events in arrival order.
func (a *Appender) Events() []*xlog4.LogEvent {
	rs := a.Records()
	out := make([]*xlog4.LogEvent, len(rs))
	for i, r := range rs {
		out[i] = r.Event
	}
	return out
}

// Messages returns the formatted messages in arrival order.
func (a *Appender) Messages() []string {
	rs := a.Records()
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Event.FormattedMessage()
	}
	return out
}

func (a *Appender) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

func (a *Appender) Clear() {
	a.mu.Lock()
	a.records = nil
	a.mu.Unlock()
}

// WaitFor blocks until at least n events were captured or timeout elapses.
func (a *Appender) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		a.mu.Lock()
		have, ch := len(a.records), a.changed
		a.mu.Unlock()
		if have >= n {
			return true
		}
		select {
		case <-ch:
		case <-deadline.C:
			return false
		}
	}
}
