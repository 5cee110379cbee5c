package config

import (
	"sync"

	"github.com/knadh/koanf/providers/file"

	"github.com/trickstertwo/xlog4"
)

// Watcher rebuilds a LoggerContext's configuration when its file changes.
type Watcher struct {
	fp *file.File

	mu     sync.Mutex
	opts   Options
	loaded int
}

// Watch reloads path into lctx on every change. A file that fails to load
// or validate is reported to the status logger and the running
// configuration stays in place. The metrics collector and status logger of
// the current configuration are reused unless opts sets them.
func Watch(path string, lctx *xlog4.LoggerContext, opts Options) (*Watcher, error) {
	cur := lctx.Configuration()
	if opts.Status == nil {
		opts.Status = cur.Status()
	}
	if opts.Metrics == nil {
		if m := cur.Metrics(); m != nil {
			if _, noop := m.(xlog4.NoopMetricsCollector); !noop {
				opts.Metrics = m
			}
		}
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	w := &Watcher{fp: file.Provider(path), opts: opts}
	err := w.fp.Watch(func(_ interface{}, err error) {
		if err != nil {
			opts.Status.Warn().Err(err).Str("path", path).Msg("config watch failed")
			return
		}
		w.reload(path, lctx)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Watcher) reload(path string, lctx *xlog4.LoggerContext) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.opts.Status
	cfg, _, err := LoadConfiguration(path, w.opts)
	if err != nil {
		st.Error().Err(err).Str("path", path).Msg("config reload rejected")
		return
	}
	// A collector created for this build is kept for later ones; Prometheus
	// rejects registering the same metrics twice.
	if w.opts.Metrics == nil {
		if _, noop := cfg.Metrics().(xlog4.NoopMetricsCollector); !noop {
			w.opts.Metrics = cfg.Metrics()
		}
	}
	if err := lctx.Reconfigure(cfg); err != nil {
		st.Error().Err(err).Str("path", path).Msg("config reload failed")
		return
	}
	w.loaded++
	st.Info().Str("path", path).Int("reloads", w.loaded).Msg("configuration reloaded")
}

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Close stops watching.
func (w *Watcher) Close() error { return w.fp.Unwatch() }
