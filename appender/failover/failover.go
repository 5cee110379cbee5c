// Package failover provides an appender that writes to a primary appender
// and falls back to secondaries while the primary is failing. A circuit
// breaker stops calling the primary after repeated failures and probes it
// again after RetryInterval.
package failover

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/multierr"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/status"
)

var (
	// ErrNoPrimary is returned by New with a nil primary.
	ErrNoPrimary = errors.New("failover: primary appender is required")
	// ErrAllFailed wraps the errors when neither the primary nor any
	// secondary accepted an event.
	ErrAllFailed = errors.New("failover: all appenders failed")
)

// Options configure the breaker and the appender.
type Options struct {
	// FailureThreshold consecutive primary failures open the breaker;
	// zero means 1.
	FailureThreshold uint32
	// RetryInterval is how long the breaker stays open; zero means 60s.
	RetryInterval time.Duration
	Filter        xlog4.Filter
	Strict        bool
	Status        *status.Logger
}

// Appender routes each event to the primary, or to the first secondary that
// accepts it.
type Appender struct {
	xlog4.BaseAppender
	primary     xlog4.Appender
	secondaries []xlog4.Appender
	cb          *gobreaker.CircuitBreaker[struct{}]
}

func New(name string, primary xlog4.Appender, secondaries []xlog4.Appender, opts Options) (*Appender, error) {
	if primary == nil {
		return nil, ErrNoPrimary
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 1
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Minute
	}
	st := opts.Status
	if st == nil {
		st = status.Default()
	}
	threshold := opts.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.RetryInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			st.Warn().Str("appender", name).Str("from", from.String()).Str("to", to.String()).
				Msg("failover primary state changed")
		},
	})
	return &Appender{
		BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict),
		primary:      primary,
		secondaries:  append([]xlog4.Appender(nil), secondaries...),
		cb:           cb,
	}, nil
}

// State reports the breaker state: closed, half-open or open.
func (a *Appender) State() string { return a.cb.State().String() }

func (a *Appender) Append(ctx context.Context, ev *xlog4.LogEvent) error {
	_, err := a.cb.Execute(func() (struct{}, error) {
		return struct{}{}, call(ctx, a.primary, ev)
	})
	if err == nil {
		return nil
	}
	errs := err
	for _, s := range a.secondaries {
		serr := call(ctx, s, ev)
		if serr == nil {
			return nil
		}
		errs = multierr.Append(errs, serr)
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, errs)
}

func call(ctx context.Context, t xlog4.Appender, ev *xlog4.LogEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &xlog4.AppenderError{Appender: t.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := t.Append(ctx, ev); err != nil {
		return &xlog4.AppenderError{Appender: t.Name(), Err: err}
	}
	return nil
}

func (a *Appender) all() []xlog4.Appender {
	return append([]xlog4.Appender{a.primary}, a.secondaries...)
}

// Start starts every Lifecycle member.
func (a *Appender) Start() error {
	var errs error
	for _, t := range a.all() {
		if lc, ok := t.(xlog4.Lifecycle); ok {
			errs = multierr.Append(errs, lc.Start())
		}
	}
	return errs
}

// Stop stops every Lifecycle member, secondaries first.
func (a *Appender) Stop(ctx context.Context) error {
	var errs error
	ts := a.all()
	for i := len(ts) - 1; i >= 0; i-- {
		if lc, ok := ts[i].(xlog4.Lifecycle); ok {
			errs = multierr.Append(errs, lc.Stop(ctx))
		}
	}
	return errs
}
