package xlog4

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"

	"github.com/trickstertwo/xlog4/internal/recycler"
	"github.com/trickstertwo/xlog4/status"
)

var (
	// ErrContextStopped is returned by Reconfigure and SetLevel after Stop.
	ErrContextStopped = errors.New("xlog4: logger context stopped")
	// ErrNilConfiguration is returned by Reconfigure for a nil configuration.
	ErrNilConfiguration = errors.New("xlog4: nil configuration")
)

// ContextOptions configure a LoggerContext.
type ContextOptions struct {
	// Name identifies the context in diagnostics; empty means a random UUID.
	Name string
	// Clock stamps events; nil reads xclock's process default.
	Clock xclock.Clock
	// Recycler selects the event recycler: "queue" (default),
	// "queue:capacity=N", "pool" or "none".
	Recycler string
	// Status receives diagnostics; nil means status.Default().
	Status    *status.Logger
	Observers []Observer
}

// LoggerContext owns a configuration, the event factory and the Logger
// handles created from it. Applications create one at start-up and pass it
// to whatever needs loggers.
type LoggerContext struct {
	name    string
	status  *status.Logger
	factory *eventFactory

	config  atomic.Pointer[Configuration]
	mu      sync.Mutex // serializes Reconfigure, SetLevel and Stop
	stopped bool

	loggers sync.Map // name -> *Logger

	// Observers: lock-free reads via atomic.Value; synchronized updates via obsMu.
	// Stored value is []Observer and MUST be treated as immutable by readers.
	observers atomic.Value
	obsMu     sync.Mutex
}

// NewLoggerContext creates a context and starts cfg. A nil cfg yields an
// empty configuration that discards everything below ERROR and has no
// appenders.
func NewLoggerContext(cfg *Configuration, opts ContextOptions) *LoggerContext {
	st := opts.Status
	if st == nil {
		st = status.Default()
	}
	name := opts.Name
	if name == "" {
		name = uuid.NewString()
	}
	rc, err := recycler.ParseConfig(opts.Recycler)
	if err != nil {
		st.Debug().Err(err).Str("recycler", opts.Recycler).Msg("invalid recycler setting; using default")
		rc = recycler.Config{Strategy: recycler.StrategyQueue, Capacity: recycler.DefaultCapacity}
	}
	lctx := &LoggerContext{
		name:    name,
		status:  st,
		factory: newEventFactory(rc, opts.Clock, st),
	}
	obs := make([]Observer, len(opts.Observers))
	copy(obs, opts.Observers)
	lctx.observers.Store(obs)

	if cfg == nil {
		st.Warn().Str("context", name).Msg("no configuration supplied; using an empty one")
		cfg, _ = NewConfigurationBuilder("empty").WithStatus(st).Build()
	}
	_ = cfg.Start()
	lctx.config.Store(cfg)
	return lctx
}

func (lc *LoggerContext) Name() string { return lc.name }

// Configuration returns the active configuration.
func (lc *LoggerContext) Configuration() *Configuration { return lc.config.Load() }

// pin returns the active configuration with a dispatch registered on it, so
// a concurrent swap waits for the dispatch before stopping it. Callers unpin
// when the dispatch returns.
func (lc *LoggerContext) pin() *Configuration {
	for {
		c := lc.config.Load()
		c.inflight.Add(1)
		if lc.config.Load() == c {
			return c
		}
		c.unpin()
	}
}

// Logger returns the handle for name, creating it on first use.
func (lc *LoggerContext) Logger(name string) *Logger {
	if v, ok := lc.loggers.Load(name); ok {
		return v.(*Logger)
	}
	v, _ := lc.loggers.LoadOrStore(name, &Logger{name: name, lctx: lc})
	return v.(*Logger)
}

// Reconfigure starts next, makes it active, then stops the previous
// configuration with a drain. Appenders present in both are neither stopped
// nor restarted. Events already dispatched finish against the configuration
// they were dispatched with.
func (lc *LoggerContext) Reconfigure(next *Configuration) error {
	if next == nil {
		return ErrNilConfiguration
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.swapLocked(next)
}

func (lc *LoggerContext) swapLocked(next *Configuration) error {
	if lc.stopped {
		return ErrContextStopped
	}
	prev := lc.config.Load()
	if prev == next {
		return nil
	}
	_ = next.start(prev)
	lc.config.Store(next)
	if prev.inflight.Load() > 0 {
		// A pinned dispatch may be the caller's own logging, waiting on this
		// swap. Retire prev once it returns instead of blocking here.
		go lc.retire(prev, next)
	} else {
		lc.retire(prev, next)
	}
	lc.status.Info().Str("context", lc.name).Str("configuration", next.Name()).Msg("reconfigured")
	lc.notify(ConfigChange{Context: lc.name, Previous: prev, Current: next})
	return nil
}

func (lc *LoggerContext) retire(prev, next *Configuration) {
	if !prev.stop(shutdownTimeout(prev), next) {
		lc.status.Warn().Str("context", lc.name).Str("configuration", prev.Name()).
			Msg("previous configuration did not drain in time")
	}
}

// SetLevel changes the level of one logger config, adding it when absent.
// An empty name targets the root.
func (lc *LoggerContext) SetLevel(name string, level Level) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.stopped {
		return ErrContextStopped
	}
	next, err := lc.config.Load().Builder().SetLevel(name, level).Build()
	if err != nil {
		return err
	}
	return lc.swapLocked(next)
}

// Stop drains and stops the active configuration. It reports whether the
// drain finished within timeout; zero uses the configuration's own timeout.
func (lc *LoggerContext) Stop(timeout time.Duration) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.stopped {
		return true
	}
	lc.stopped = true
	cfg := lc.config.Load()
	if timeout <= 0 {
		timeout = shutdownTimeout(cfg)
	}
	return cfg.Stop(timeout)
}

func shutdownTimeout(c *Configuration) time.Duration {
	if c.delegate != nil {
		return c.delegate.opts.ShutdownTimeout
	}
	return DefaultShutdownTimeout
}

func (lc *LoggerContext) AddObserver(o Observer) {
	lc.obsMu.Lock()
	defer lc.obsMu.Unlock()
	cur := lc.snapshotObservers()
	lc.observers.Store(append(cur, o))
}

func (lc *LoggerContext) snapshotObservers() []Observer {
	cur, _ := lc.observers.Load().([]Observer)
	if len(cur) == 0 {
		return nil
	}
	out := make([]Observer, len(cur))
	copy(out, cur)
	return out
}

func (lc *LoggerContext) notify(c ConfigChange) {
	obs, _ := lc.observers.Load().([]Observer)
	for _, o := range obs {
		o.OnConfig(c)
	}
}
