// Package async provides an appender that hands events to a goroutine which
// forwards them to other appenders. It is independent of the async logger
// configs: any configuration can use it to decouple one slow sink.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/status"
)

// DropPolicy controls behavior when the queue is full.
type DropPolicy uint8

const (
	DropNewest DropPolicy = iota // fast, no producer stall (default)
	DropOldest                   // discard oldest entry to make room
	Block                        // producer blocks until space available
)

// ParseDropPolicy reads newest, oldest or block.
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch s {
	case "", "newest", "drop-newest":
		return DropNewest, nil
	case "oldest", "drop-oldest":
		return DropOldest, nil
	case "block":
		return Block, nil
	}
	return 0, errors.New("async: unknown drop policy " + s)
}

var (
	// ErrQueueFull is reported to the error handler for every dropped event.
	ErrQueueFull = errors.New("async: queue full, dropping log event")
	// ErrNoTargets is returned by New without target appenders.
	ErrNoTargets = errors.New("async: at least one target appender is required")
)

// ErrorHandler receives failures that cannot be returned to a caller.
type ErrorHandler func(error)

// Options configure the appender.
type Options struct {
	QueueSize int
	Policy    DropPolicy
	Filter    xlog4.Filter
	// ErrorHandler defaults to reporting on status.Default().
	ErrorHandler ErrorHandler
}

type stats struct {
	forwarded    atomic.Uint64
	dropped      atomic.Uint64
	loggedErrors atomic.Uint64
}

// StatsSnapshot is a point-in-time counters snapshot.
type StatsSnapshot struct {
	Forwarded    uint64
	Dropped      uint64
	LoggedErrors uint64
}

// Appender queues snapshots of events and forwards them in order.
type Appender struct {
	xlog4.BaseAppender
	targets []xlog4.Appender
	opts    Options

	queue   chan *xlog4.LogEvent
	mu      sync.RWMutex // guards stopped against concurrent sends
	stopped bool
	started atomic.Bool
	wg      sync.WaitGroup

	st stats
}

func New(name string, targets []xlog4.Appender, opts Options) (*Appender, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.ErrorHandler == nil {
		st := status.Default()
		opts.ErrorHandler = func(err error) {
			st.Error().Err(err).Str("appender", name).Msg("async appender")
		}
	}
	return &Appender{
		BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, false),
		targets:      append([]xlog4.Appender(nil), targets...),
		opts:         opts,
		queue:        make(chan *xlog4.LogEvent, opts.QueueSize),
	}, nil
}

// Stats returns a snapshot of internal counters.
func (a *Appender) Stats() StatsSnapshot {
	return StatsSnapshot{
		Forwarded:    a.st.forwarded.Load(),
		Dropped:      a.st.dropped.Load(),
		LoggedErrors: a.st.loggedErrors.Load(),
	}
}

// Start launches the forwarding goroutine and starts Lifecycle targets.
func (a *Appender) Start() error {
	if !a.started.CompareAndSwap(false, true) {
		return nil
	}
	var errs error
	for _, t := range a.targets {
		if lc, ok := t.(xlog4.Lifecycle); ok {
			errs = multierr.Append(errs, lc.Start())
		}
	}
	a.wg.Add(1)
	go a.process()
	return errs
}

// Stop closes the queue, waits for the goroutine to forward what is queued
// or for ctx to end, then stops Lifecycle targets.
func (a *Appender) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	var errs error
	select {
	case <-done:
	case <-ctx.Done():
		errs = ctx.Err()
	}
	for i := len(a.targets) - 1; i >= 0; i-- {
		if lc, ok := a.targets[i].(xlog4.Lifecycle); ok {
			errs = multierr.Append(errs, lc.Stop(ctx))
		}
	}
	return errs
}

// forwarderKey marks contexts derived from an appender's forwarding
// goroutine.
type forwarderKey struct{}

func (a *Appender) Append(ctx context.Context, ev *xlog4.LogEvent) error {
	if ctx != nil && ctx.Value(forwarderKey{}) == a {
		// A target logged back through this appender. Queueing here would
		// wait on the only goroutine that empties the queue.
		cp := ev.Snapshot()
		cp.EndOfBatch = false
		a.forward(ctx, cp)
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped || !a.started.Load() {
		a.drop()
		return nil
	}
	cp := ev.Snapshot()
	cp.EndOfBatch = false
	select {
	case a.queue <- cp:
		return nil
	default:
	}
	switch a.opts.Policy {
	case DropOldest:
		select {
		case <-a.queue:
			a.drop()
		default:
		}
		select {
		case a.queue <- cp:
		default:
			a.drop()
		}
	case Block:
		a.queue <- cp
	default:
		a.drop()
	}
	return nil
}

func (a *Appender) drop() {
	a.st.dropped.Add(1)
	a.opts.ErrorHandler(ErrQueueFull)
}

func (a *Appender) process() {
	defer a.wg.Done()
	ctx := context.WithValue(xlog4.WithBackground(context.Background()), forwarderKey{}, a)
	for ev := range a.queue {
		ev.EndOfBatch = len(a.queue) == 0
		a.forward(ctx, ev)
	}
}

func (a *Appender) forward(ctx context.Context, ev *xlog4.LogEvent) {
	var errs error
	for _, t := range a.targets {
		errs = multierr.Append(errs, a.call(ctx, t, ev))
	}
	if errs != nil {
		a.st.loggedErrors.Add(1)
		a.opts.ErrorHandler(errs)
		return
	}
	a.st.forwarded.Add(1)
}

func (a *Appender) call(ctx context.Context, t xlog4.Appender, ev *xlog4.LogEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &xlog4.AppenderError{Appender: t.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if f, ok := t.(xlog4.Filterable); ok && f.Filter() != nil && f.Filter().Filter(ev) == xlog4.Deny {
		return nil
	}
	if err := t.Append(ctx, ev); err != nil {
		return &xlog4.AppenderError{Appender: t.Name(), Err: err}
	}
	return nil
}
