package xlog4

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/trickstertwo/xlog4/status"
)

// dispatchEnv is shared by every node of a Configuration.
type dispatchEnv struct {
	status  *status.Logger
	metrics MetricsCollector
	measure bool
}

func newDispatchEnv(st *status.Logger, m MetricsCollector) *dispatchEnv {
	if st == nil {
		st = status.Default()
	}
	if m == nil {
		m = NoopMetricsCollector{}
	}
	env := &dispatchEnv{status: st, metrics: m}
	if do, ok := m.(DurationObserver); ok {
		env.measure = do.ObservesDuration()
	}
	return env
}

// Configuration is an immutable logger tree plus the appenders it references
// and, when any node is async, the delegate they share. Build one with
// ConfigurationBuilder.
type Configuration struct {
	name      string
	root      *LoggerConfig
	configs   map[string]*LoggerConfig
	appenders map[string]Appender
	order     []string
	filter    Filter
	delegate  *AsyncDelegate
	env       *dispatchEnv
	src       *ConfigurationBuilder

	resolved sync.Map // logger name -> *LoggerConfig
	state    atomic.Int32
	inflight atomic.Int64 // dispatches pinned to this configuration
}

func (c *Configuration) Name() string { return c.name }

// Builder returns a builder preloaded with this configuration's appenders,
// nodes and options. Building it yields an independent Configuration that
// shares the appender instances.
func (c *Configuration) Builder() *ConfigurationBuilder { return c.src.clone() }

// Status returns the diagnostic logger.
func (c *Configuration) Status() *status.Logger { return c.env.status }

// Metrics returns the collector.
func (c *Configuration) Metrics() MetricsCollector { return c.env.metrics }

// Root returns the root logger config.
func (c *Configuration) Root() *LoggerConfig { return c.root }

// Filter returns the context-wide filter, if any.
func (c *Configuration) Filter() Filter { return c.filter }

// AsyncDelegate returns the shared delegate, or nil when every node is
// synchronous.
func (c *Configuration) AsyncDelegate() *AsyncDelegate { return c.delegate }

// LoggerConfig returns the node configured with exactly this name.
func (c *Configuration) LoggerConfig(name string) (*LoggerConfig, bool) {
	lc, ok := c.configs[name]
	return lc, ok
}

// LoggerConfigs returns every configured node, root first, then by name.
func (c *Configuration) LoggerConfigs() []*LoggerConfig {
	names := make([]string, 0, len(c.configs))
	for n := range c.configs {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*LoggerConfig, 0, len(names))
	for _, n := range names {
		out = append(out, c.configs[n])
	}
	return out
}

// Appender returns the appender registered under name.
func (c *Configuration) Appender(name string) (Appender, bool) {
	a, ok := c.appenders[name]
	return a, ok
}

// AppenderNames lists the registered appenders in registration order.
func (c *Configuration) AppenderNames() []string {
	return append([]string(nil), c.order...)
}

// Resolve returns the most specific node for a logger name: the longest
// configured dotted prefix, or root.
func (c *Configuration) Resolve(name string) *LoggerConfig {
	if v, ok := c.resolved.Load(name); ok {
		return v.(*LoggerConfig)
	}
	lc := c.lookup(name)
	c.resolved.Store(name, lc)
	return lc
}

func (c *Configuration) lookup(name string) *LoggerConfig {
	for n := name; ; {
		if lc, ok := c.configs[n]; ok {
			return lc
		}
		i := strings.LastIndexByte(n, '.')
		if i < 0 {
			return c.root
		}
		n = n[:i]
	}
}

// Start starts every Lifecycle appender and the async consumers. Appender
// start failures are reported to the status logger and returned joined; the
// configuration is usable either way.
func (c *Configuration) Start() error { return c.start(nil) }

func (c *Configuration) start(prev *Configuration) error {
	if !c.state.CompareAndSwap(stateIdle, stateRunning) {
		return nil
	}
	var errs error
	for _, name := range c.order {
		a := c.appenders[name]
		if prev != nil && prev.holds(name, a) {
			continue
		}
		lc, ok := a.(Lifecycle)
		if !ok {
			continue
		}
		if err := lc.Start(); err != nil {
			err = &AppenderError{Appender: name, Err: err}
			c.env.status.Error().Err(err).Msg("appender failed to start")
			errs = multierr.Append(errs, err)
		}
	}
	if c.delegate != nil {
		c.delegate.start()
	}
	return errs
}

// Stop drains the async queue for at most timeout, then stops the Lifecycle
// appenders. It reports whether the drain completed in time.
func (c *Configuration) Stop(timeout time.Duration) bool { return c.stop(timeout, nil) }

func (c *Configuration) stop(timeout time.Duration, next *Configuration) bool {
	prev := c.state.Swap(stateStopped)
	if prev == stateStopped {
		return true
	}
	ok := c.quiesce(timeout)
	if c.delegate != nil {
		ok = c.delegate.stop(timeout) && ok
	}
	if prev != stateRunning {
		return ok
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(c.order) - 1; i >= 0; i-- {
		name := c.order[i]
		a := c.appenders[name]
		if next != nil && next.holds(name, a) {
			continue
		}
		if lc, isLC := a.(Lifecycle); isLC {
			if err := lc.Stop(ctx); err != nil {
				c.env.status.Error().Err(err).Str("appender", name).Msg("appender failed to stop")
			}
		}
	}
	return ok
}

func (c *Configuration) unpin() { c.inflight.Add(-1) }

// quiesce waits up to timeout for pinned dispatches to return.
func (c *Configuration) quiesce(timeout time.Duration) bool {
	if c.inflight.Load() <= 0 {
		return true
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	deadline := time.Now().Add(timeout)
	for c.inflight.Load() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

// holds reports whether a is registered here under name.
func (c *Configuration) holds(name string, a Appender) bool {
	b, ok := c.appenders[name]
	return ok && sameAppender(a, b)
}

func sameAppender(a, b Appender) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
