package xlog4

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/trickstertwo/xlog4/internal/queue"
)

// Queue implementations accepted by AsyncOptions.Queue.
const (
	QueueRing    = string(queue.KindRing)
	QueueChannel = string(queue.KindChannel)
)

const (
	// DefaultAsyncCapacity is the queue capacity when none is configured.
	DefaultAsyncCapacity = 8192
	// DefaultShutdownTimeout bounds the drain performed by Stop when the
	// caller passes no timeout.
	DefaultShutdownTimeout = 10 * time.Second
)

// AsyncOptions configure the delegate shared by all async logger configs of
// one Configuration.
type AsyncOptions struct {
	// Capacity of the transport queue; zero means DefaultAsyncCapacity.
	Capacity int
	// Queue is "ring" (default) or "channel".
	Queue string
	// Wait is the consumer idle strategy: timeout (default), block, sleep,
	// yield or busyspin.
	Wait string
	// Policy handles events the full queue rejects; nil means DefaultPolicy.
	Policy QueueFullPolicy
	// Consumers is the number of consumer goroutines; more than one gives up
	// per-producer ordering.
	Consumers int
	// ShutdownTimeout is used by Stop when called with a zero timeout.
	ShutdownTimeout time.Duration
}

func (o AsyncOptions) withDefaults() AsyncOptions {
	if o.Capacity == 0 {
		o.Capacity = DefaultAsyncCapacity
	}
	if o.Policy == nil {
		o.Policy = DefaultPolicy{}
	}
	if o.Consumers <= 0 {
		o.Consumers = 1
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	return o
}

// queueEntry moves one event to the consumer. factory is set when the event
// is owned by the logging call and must be released after processing.
type queueEntry struct {
	event   *LogEvent
	config  *LoggerConfig
	factory *eventFactory
}

type offerResult uint8

const (
	offerAccepted offerResult = iota
	offerFull
	offerStopped
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopping
	stateStopped
)

// AsyncDelegate owns the transport queue, the consumer goroutines and the
// overflow policy for one Configuration.
type AsyncDelegate struct {
	opts   AsyncOptions
	q      queue.Queue[queueEntry]
	wait   queue.WaitStrategy
	policy QueueFullPolicy
	env    *dispatchEnv

	state     atomic.Int32
	live      atomic.Int32
	abandon   atomic.Bool
	discarded atomic.Uint64
	warned    atomic.Bool

	stopCtx    context.Context
	stopCancel context.CancelFunc
	drained    chan struct{}
	drainOnce  sync.Once
	supCancel  context.CancelFunc
	supDone    <-chan error
}

func newAsyncDelegate(opts AsyncOptions, env *dispatchEnv) (*AsyncDelegate, error) {
	opts = opts.withDefaults()
	if opts.Capacity < 0 {
		return nil, fmt.Errorf("xlog4: async capacity must be positive, got %d", opts.Capacity)
	}
	q, err := queue.New[queueEntry](queue.Kind(opts.Queue), opts.Capacity)
	if err != nil {
		return nil, err
	}
	w, err := queue.ParseWait(opts.Wait)
	if err != nil {
		return nil, err
	}
	stopCtx, stopCancel := context.WithCancel(context.Background())
	return &AsyncDelegate{
		opts:       opts,
		q:          q,
		wait:       w,
		policy:     opts.Policy,
		env:        env,
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
		drained:    make(chan struct{}),
	}, nil
}

// Options returns the effective options.
func (d *AsyncDelegate) Options() AsyncOptions { return d.opts }

// Policy returns the overflow policy.
func (d *AsyncDelegate) Policy() QueueFullPolicy { return d.policy }

// Len is the number of queued entries.
func (d *AsyncDelegate) Len() int { return d.q.Len() }

// Cap is the queue capacity.
func (d *AsyncDelegate) Cap() int { return d.q.Cap() }

// RemainingCapacity is Cap minus Len.
func (d *AsyncDelegate) RemainingCapacity() int { return d.q.Cap() - d.q.Len() }

// DiscardCount is the number of events dropped for any reason: full queue
// under a discarding policy, shutdown, or drain timeout.
func (d *AsyncDelegate) DiscardCount() uint64 { return d.discarded.Load() }

// Running reports whether consumers have been started and not stopped.
func (d *AsyncDelegate) Running() bool { return d.state.Load() == stateRunning }

// prepare builds the entry for req. Owned events travel by reference with
// their message frozen; borrowed events are copied.
func (d *AsyncDelegate) prepare(req *logRequest, lc *LoggerConfig) queueEntry {
	if !req.owned() {
		return queueEntry{event: req.event.Snapshot(), config: lc}
	}
	ev := req.event
	if ev.Message != nil {
		ev.Message = freeze(ev.Message)
	}
	return queueEntry{event: ev, config: lc, factory: req.factory}
}

func (d *AsyncDelegate) offer(e queueEntry) offerResult {
	if d.state.Load() >= stateStopping {
		return offerStopped
	}
	if d.q.TryEnqueue(e) {
		d.env.metrics.Enqueued()
		return offerAccepted
	}
	return offerFull
}

// enqueue blocks for space. It reports whether the entry was queued.
func (d *AsyncDelegate) enqueue(ctx context.Context, e queueEntry) bool {
	err := d.q.Enqueue(ctx, e)
	switch {
	case err == nil:
		d.env.metrics.Enqueued()
		return true
	case errors.Is(err, queue.ErrClosed):
		d.rejectAfterShutdown(e)
	default:
		d.env.status.Warn().Err(err).Str("logger", e.event.LoggerName).
			Msg("async enqueue aborted; event dropped")
		d.discard(DropAborted)
	}
	return false
}

func (d *AsyncDelegate) rejectAfterShutdown(e queueEntry) {
	if d.warned.CompareAndSwap(false, true) {
		d.env.status.Warn().Str("logger", e.event.LoggerName).
			Msg("ignoring log event after shutdown")
	}
	d.discard(DropShutdown)
}

func (d *AsyncDelegate) discard(reason string) {
	d.discarded.Add(1)
	d.env.metrics.Dropped(reason)
}

// dropEntry discards an entry already taken off the queue.
func (d *AsyncDelegate) dropEntry(e queueEntry, reason string) {
	d.discard(reason)
	d.finish(e)
}

func (d *AsyncDelegate) finish(e queueEntry) {
	if e.factory != nil {
		e.factory.release(e.event)
	}
}

// process runs the async half of the dispatch for one entry.
func (d *AsyncDelegate) process(ctx context.Context, e queueEntry) {
	defer func() {
		if r := recover(); r != nil {
			d.env.metrics.ConsumerPanicked()
			d.env.status.Error().Interface("panic", r).Str("logger", e.event.LoggerName).
				Msg("async consumer recovered from panic")
		}
		d.finish(e)
	}()
	e.event.EndOfBatch = d.q.Len() == 0
	_ = e.config.logChain(ctx, &logRequest{event: e.event}, predAsyncOnly)
}

func (d *AsyncDelegate) onSupervisorEvent(ev suture.Event) {
	d.env.status.Warn().Str("supervisor", "xlog4-async").Msg(ev.String())
}

// start launches the consumers. It is a no-op unless the delegate is idle.
func (d *AsyncDelegate) start() {
	if !d.state.CompareAndSwap(stateIdle, stateRunning) {
		return
	}
	sup := suture.New("xlog4-async", suture.Spec{
		EventHook:        d.onSupervisorEvent,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   100 * time.Millisecond,
		Timeout:          time.Second,
	})
	d.live.Store(int32(d.opts.Consumers))
	for i := 0; i < d.opts.Consumers; i++ {
		sup.Add(&consumer{d: d, id: i})
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.supCancel = cancel
	d.supDone = sup.ServeBackground(ctx)
	if qo, ok := d.env.metrics.(QueueObserver); ok {
		qo.ObserveQueue(d.Len, d.Cap)
	}
}

// stop rejects new events and drains the queue for at most timeout. It
// reports whether the drain completed; on timeout the remaining entries are
// discarded.
func (d *AsyncDelegate) stop(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = d.opts.ShutdownTimeout
	}
	if d.state.CompareAndSwap(stateIdle, stateStopped) {
		d.q.Close()
		d.stopCancel()
		d.sweep(DropShutdown)
		return true
	}
	if !d.state.CompareAndSwap(stateRunning, stateStopping) {
		return true
	}
	d.q.Close()
	d.stopCancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ok := true
	select {
	case <-d.drained:
	case <-timer.C:
		ok = false
		d.abandon.Store(true)
		d.env.status.Warn().Dur("timeout", timeout).Int("remaining", d.q.Len()).
			Msg("async queue not drained before timeout; discarding remaining events")
	}
	d.sweep(DropDrainTimeout)
	d.supCancel()
	if ok {
		select {
		case <-d.supDone:
		case <-timer.C:
		}
	}
	d.state.Store(stateStopped)
	return ok
}

func (d *AsyncDelegate) sweep(reason string) {
	for {
		e, ok := d.q.TryDequeue()
		if !ok {
			return
		}
		d.dropEntry(e, reason)
	}
}

func (d *AsyncDelegate) consumerDone() {
	if d.live.Add(-1) == 0 {
		d.drainOnce.Do(func() { close(d.drained) })
	}
}

// consumer is one background goroutine draining the queue.
type consumer struct {
	d  *AsyncDelegate
	id int
}

func (c *consumer) String() string { return fmt.Sprintf("xlog4-consumer-%d", c.id) }

func (c *consumer) Serve(ctx context.Context) error {
	d := c.d
	bg := WithBackground(ctx)

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unhook := context.AfterFunc(d.stopCtx, cancel)
	defer unhook()

	attempt := 0
	for {
		if d.abandon.Load() {
			d.sweep(DropDrainTimeout)
			d.consumerDone()
			return suture.ErrDoNotRestart
		}
		if e, ok := d.q.TryDequeue(); ok {
			attempt = 0
			d.process(bg, e)
			continue
		}
		if d.state.Load() >= stateStopping {
			d.consumerDone()
			return suture.ErrDoNotRestart
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = d.wait.Idle(wctx, d.q.Ready(), attempt)
		attempt++
	}
}
