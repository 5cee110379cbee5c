package xlog4

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// EventRoute is what happens to an event the async queue could not accept.
type EventRoute uint8

const (
	// RouteEnqueue blocks the producer until the queue has room.
	RouteEnqueue EventRoute = iota + 1
	// RouteSynchronous processes the event on the producer, bypassing the queue.
	RouteSynchronous
	// RouteDiscard drops the event.
	RouteDiscard
)

func (r EventRoute) String() string {
	switch r {
	case RouteEnqueue:
		return "ENQUEUE"
	case RouteSynchronous:
		return "SYNCHRONOUS"
	case RouteDiscard:
		return "DISCARD"
	default:
		return "UNSET"
	}
}

// ParseRoute reads enqueue, synchronous or discard.
func ParseRoute(s string) (EventRoute, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enqueue":
		return RouteEnqueue, nil
	case "synchronous", "sync":
		return RouteSynchronous, nil
	case "discard":
		return RouteDiscard, nil
	default:
		return 0, fmt.Errorf("xlog4: unknown event route %q", s)
	}
}

// QueueFullPolicy picks a route for an event rejected by a full queue.
// ctx is the producer's context; InBackground(ctx) tells whether the producer
// is the consumer itself.
type QueueFullPolicy interface {
	Route(ctx context.Context, level Level) EventRoute
}

// DefaultPolicy enqueues, except on the consumer goroutine where waiting for
// space would wait on itself.
type DefaultPolicy struct{}

func (DefaultPolicy) Route(ctx context.Context, _ Level) EventRoute {
	if InBackground(ctx) {
		return RouteSynchronous
	}
	return RouteEnqueue
}

// EnqueuePolicy always blocks for space.
type EnqueuePolicy struct{}

func (EnqueuePolicy) Route(context.Context, Level) EventRoute { return RouteEnqueue }

// SynchronousPolicy always processes overflow on the producer.
type SynchronousPolicy struct{}

func (SynchronousPolicy) Route(context.Context, Level) EventRoute { return RouteSynchronous }

// DiscardPolicy drops events below a threshold and routes the rest with a
// fallback policy.
type DiscardPolicy struct {
	threshold Level
	fallback  QueueFullPolicy
	discarded atomic.Uint64
}

// NewDiscardPolicy discards events whose level is below threshold; LevelOff
// discards everything. Events at or above it take the above route, or the
// DefaultPolicy route when above is zero.
func NewDiscardPolicy(threshold Level, above EventRoute) *DiscardPolicy {
	p := &DiscardPolicy{threshold: threshold, fallback: DefaultPolicy{}}
	switch above {
	case RouteEnqueue:
		p.fallback = EnqueuePolicy{}
	case RouteSynchronous:
		p.fallback = SynchronousPolicy{}
	case RouteDiscard:
		p.threshold = LevelOff
	}
	return p
}

func (p *DiscardPolicy) Route(ctx context.Context, level Level) EventRoute {
	if p.threshold == LevelOff || level < p.threshold {
		p.discarded.Add(1)
		return RouteDiscard
	}
	return p.fallback.Route(ctx, level)
}

func (p *DiscardPolicy) Threshold() Level { return p.threshold }

// DiscardCount is the number of events this policy has discarded.
func (p *DiscardPolicy) DiscardCount() uint64 { return p.discarded.Load() }

// ParsePolicy builds a policy from its name. threshold and above are used by
// "discard" only; an empty threshold means WARN, so INFO and below are
// discarded.
func ParsePolicy(name, threshold, above string) (QueueFullPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultPolicy{}, nil
	case "enqueue":
		return EnqueuePolicy{}, nil
	case "synchronous", "sync":
		return SynchronousPolicy{}, nil
	case "discard":
		lvl := LevelWarn
		if threshold != "" {
			l, err := ParseLevel(threshold)
			if err != nil {
				return nil, err
			}
			lvl = l
		}
		var route EventRoute
		if above != "" {
			r, err := ParseRoute(above)
			if err != nil {
				return nil, err
			}
			route = r
		}
		return NewDiscardPolicy(lvl, route), nil
	default:
		return nil, fmt.Errorf("xlog4: unknown queue full policy %q", name)
	}
}
