package xlog4

import (
	"context"

	"go.uber.org/multierr"
)

// DispatchKind tags a LoggerConfig as synchronous or asynchronous.
type DispatchKind uint8

const (
	DispatchSync DispatchKind = iota
	DispatchAsync
)

func (k DispatchKind) String() string {
	if k == DispatchAsync {
		return "async"
	}
	return "sync"
}

// DispatchMode is chosen when the configuration is built. Delegate is set
// only for DispatchAsync.
type DispatchMode struct {
	Kind     DispatchKind
	Delegate *AsyncDelegate
}

// predicate selects which configs along an additive chain call their
// appenders.
type predicate uint8

const (
	predAll predicate = iota
	predSyncOnly
	predAsyncOnly
)

func (p predicate) allows(lc *LoggerConfig) bool {
	switch p {
	case predSyncOnly:
		return lc.mode.Kind == DispatchSync
	case predAsyncOnly:
		return lc.mode.Kind == DispatchAsync
	default:
		return true
	}
}

// logRequest tracks ownership of an event during one dispatch. An event
// with a factory is owned and may be handed to the consumer by reference;
// handedOff records that the consumer now releases it.
type logRequest struct {
	event     *LogEvent
	factory   *eventFactory
	handedOff bool
}

func (r *logRequest) owned() bool { return r.factory != nil }

// LoggerConfig is one node of the immutable logger tree.
type LoggerConfig struct {
	name            string
	level           Level
	hasLevel        bool
	effective       Level
	additive        bool
	includeLocation bool
	filter          Filter
	appenders       []*appenderControl
	parent          *LoggerConfig
	mode            DispatchMode
	env             *dispatchEnv
}

func (lc *LoggerConfig) Name() string { return lc.name }

// Level returns the configured level and whether one was set.
func (lc *LoggerConfig) Level() (Level, bool) { return lc.level, lc.hasLevel }

// EffectiveLevel is the configured level or the nearest ancestor's.
func (lc *LoggerConfig) EffectiveLevel() Level { return lc.effective }

func (lc *LoggerConfig) Additive() bool        { return lc.additive }
func (lc *LoggerConfig) IncludeLocation() bool { return lc.includeLocation }
func (lc *LoggerConfig) Filter() Filter        { return lc.filter }
func (lc *LoggerConfig) Parent() *LoggerConfig { return lc.parent }
func (lc *LoggerConfig) Mode() DispatchMode    { return lc.mode }

// AppenderNames lists the appenders referenced by this node, in order.
func (lc *LoggerConfig) AppenderNames() []string {
	out := make([]string, len(lc.appenders))
	for i, ac := range lc.appenders {
		out[i] = ac.name
	}
	return out
}

// log is the entry point for a resolved node. An async node reached with
// the full predicate splits the work: appenders of synchronous nodes along
// the chain run here, exactly once and before the hand-off, then the event
// goes to the delegate for the async ones.
func (lc *LoggerConfig) log(ctx context.Context, req *logRequest, pred predicate) error {
	if lc.mode.Kind == DispatchAsync && pred == predAll && !asyncEntered(ctx) && len(lc.appenders) > 0 {
		ctx = markAsyncEntered(ctx)
		err := lc.logChain(ctx, req, predSyncOnly)
		return multierr.Append(err, lc.logToAsyncDelegate(ctx, req))
	}
	return lc.logChain(ctx, req, pred)
}

// logChain calls this node's appenders when pred allows it, then continues
// to the parent while additive. Levels are not rechecked on the way up.
func (lc *LoggerConfig) logChain(ctx context.Context, req *logRequest, pred predicate) error {
	ev := req.event
	if isDenied(lc.filter, ev) {
		return nil
	}
	var errs error
	if pred.allows(lc) {
		for _, ac := range lc.appenders {
			errs = multierr.Append(errs, ac.call(ctx, ev, lc.env))
		}
	}
	if lc.additive && lc.parent != nil {
		errs = multierr.Append(errs, lc.parent.log(ctx, req, pred))
	}
	return errs
}

func (lc *LoggerConfig) logToAsyncDelegate(ctx context.Context, req *logRequest) error {
	if isDenied(lc.filter, req.event) {
		return nil
	}
	d := lc.mode.Delegate
	entry := d.prepare(req, lc)
	switch d.offer(entry) {
	case offerAccepted:
		req.handedOff = req.owned()
		return nil
	case offerStopped:
		d.rejectAfterShutdown(entry)
		return nil
	}
	return lc.handleQueueFull(ctx, req, entry)
}

func (lc *LoggerConfig) handleQueueFull(ctx context.Context, req *logRequest, entry queueEntry) error {
	d := lc.mode.Delegate
	if Depth(ctx) > 1 {
		d.env.status.WarnOnce("reentrant-full:"+lc.name).Str("logger", req.event.LoggerName).
			Msg("recursive logging with a full async queue; logging synchronously to avoid deadlock")
		d.env.metrics.Synchronous(SyncReentrant)
		return lc.logChain(ctx, req, predAsyncOnly)
	}

	route := d.policy.Route(ctx, req.event.Level)
	if route == RouteEnqueue && InBackground(ctx) {
		route = RouteSynchronous
	}
	switch route {
	case RouteSynchronous:
		d.env.metrics.Synchronous(SyncPolicy)
		return lc.logChain(ctx, req, predAsyncOnly)
	case RouteDiscard:
		d.discard(DropQueueFull)
		return nil
	default:
		if d.enqueue(ctx, entry) {
			req.handedOff = req.owned()
		}
		return nil
	}
}
