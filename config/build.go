package config

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/layout"
	"github.com/trickstertwo/xlog4/metrics"
	"github.com/trickstertwo/xlog4/status"
)

// Options control how a File becomes a Configuration.
type Options struct {
	// Registry defaults to NewRegistry().
	Registry *Registry
	// Status defaults to a stderr logger at File.Status.Level.
	Status *status.Logger
	// Metrics overrides File.Metrics. When nil and File.Metrics.Enabled is
	// set, a metrics.Collector is registered with Registerer.
	Metrics    xlog4.MetricsCollector
	Registerer prometheus.Registerer
}

func (o Options) withDefaults(f *File) Options {
	if o.Registry == nil {
		o.Registry = NewRegistry()
	}
	if o.Status == nil {
		o.Status = status.New(os.Stderr, status.ParseLevel(f.Status.Level))
	}
	if o.Metrics == nil && f.Metrics.Enabled {
		o.Metrics = metrics.New(o.Registerer, metrics.Options{Namespace: f.Metrics.Namespace, Durations: f.Metrics.Durations})
	}
	return o
}

// BuildContext is handed to appender factories. It builds referenced
// appenders on demand and remembers which ones a wrapping appender owns.
type BuildContext struct {
	reg      *Registry
	status   *status.Logger
	byName   map[string]AppenderConfig
	built    map[string]xlog4.Appender
	building map[string]bool
	owned    map[string]bool
	// pending holds refs claimed by an appender still being built; they
	// become owned only if it builds.
	pending map[string][]string
}

// Status returns the logger configuration problems are reported to.
func (bc *BuildContext) Status() *status.Logger { return bc.status }

// Registry returns the registry in use.
func (bc *BuildContext) Registry() *Registry { return bc.reg }

func (bc *BuildContext) common(c AppenderConfig, defLayout string) (layout.Layout, xlog4.Filter, error) {
	lc := c.Layout
	if lc.Type == "" {
		lc.Type = defLayout
	}
	lay, err := bc.reg.Layout(lc)
	if err != nil {
		return nil, nil, err
	}
	flt, err := bc.reg.Filters(c.Filters)
	if err != nil {
		return nil, nil, err
	}
	return lay, flt, nil
}

// refs builds the appenders named by c.Refs. They are owned by c and are not
// added to the configuration on their own.
func (bc *BuildContext) refs(c AppenderConfig) ([]xlog4.Appender, error) {
	out := make([]xlog4.Appender, 0, len(c.Refs))
	for _, name := range c.Refs {
		a, err := bc.appender(name)
		if err != nil {
			return nil, fmt.Errorf("config: appender %q ref %q: %w", c.Name, name, err)
		}
		bc.pending[c.Name] = append(bc.pending[c.Name], name)
		out = append(out, a)
	}
	return out, nil
}

func (bc *BuildContext) appender(name string) (xlog4.Appender, error) {
	if a, ok := bc.built[name]; ok {
		return a, nil
	}
	c, ok := bc.byName[name]
	if !ok {
		return nil, fmt.Errorf("no appender named %q", name)
	}
	if bc.building[name] {
		return nil, fmt.Errorf("reference cycle through %q", name)
	}
	f, ok := bc.reg.appender(c.Type)
	if !ok {
		return nil, fmt.Errorf("unknown appender type %q", c.Type)
	}
	bc.building[name] = true
	a, err := f(bc, c)
	delete(bc.building, name)
	claimed := bc.pending[name]
	delete(bc.pending, name)
	if err != nil {
		return nil, err
	}
	for _, r := range claimed {
		bc.owned[r] = true
	}
	bc.built[name] = a
	return a, nil
}

// Builder turns f into a ConfigurationBuilder. Mistakes in individual
// appenders, filters or policies are reported to the status logger and the
// item is left out, so a partly broken file still yields a usable
// configuration.
func Builder(f *File, opts Options) *xlog4.ConfigurationBuilder {
	opts = opts.withDefaults(f)
	st := opts.Status
	b := xlog4.NewConfigurationBuilder(f.Name).WithStatus(st)
	if opts.Metrics != nil {
		b = b.WithMetrics(opts.Metrics)
	}

	pol, err := xlog4.ParsePolicy(f.Async.Policy, f.Async.DiscardThreshold, f.Async.AboveThreshold)
	if err != nil {
		st.Warn().Err(err).Msg("invalid queue-full policy; using default")
		pol = xlog4.DefaultPolicy{}
	}
	b = b.WithAsync(xlog4.AsyncOptions{
		Capacity:        f.Async.Capacity,
		Queue:           f.Async.Queue,
		Wait:            f.Async.Wait,
		Policy:          pol,
		Consumers:       f.Async.Consumers,
		ShutdownTimeout: f.Async.ShutdownTimeout,
	})

	if flt := filters(opts.Registry, st, f.Filters, "configuration"); flt != nil {
		b = b.WithFilter(flt)
	}

	bc := &BuildContext{
		reg:      opts.Registry,
		status:   st,
		byName:   make(map[string]AppenderConfig, len(f.Appenders)),
		built:    make(map[string]xlog4.Appender, len(f.Appenders)),
		building: map[string]bool{},
		owned:    map[string]bool{},
		pending:  map[string][]string{},
	}
	for _, c := range f.Appenders {
		bc.byName[c.Name] = c
	}
	for _, c := range f.Appenders {
		if _, err := bc.appender(c.Name); err != nil {
			st.Error().Err(err).Str("appender", c.Name).Msg("appender left out of configuration")
		}
	}
	for _, c := range f.Appenders {
		if a, ok := bc.built[c.Name]; ok && !bc.owned[c.Name] {
			b = b.AddAppender(a)
		}
	}

	b = b.Root(loggerSpec(opts.Registry, st, f.Root))
	for _, l := range f.Loggers {
		b = b.AddLogger(loggerSpec(opts.Registry, st, l))
	}
	return b
}

// Build is Builder(f, opts).Build().
func Build(f *File, opts Options) (*xlog4.Configuration, error) {
	return Builder(f, opts).Build()
}

// LoadConfiguration loads path and builds it.
func LoadConfiguration(path string, opts Options) (*xlog4.Configuration, *File, error) {
	f, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Build(f, opts)
	if err != nil {
		return nil, f, err
	}
	return cfg, f, nil
}

func filters(reg *Registry, st *status.Logger, cs []FilterConfig, owner string) xlog4.Filter {
	flt, err := reg.Filters(cs)
	if err != nil {
		st.Error().Err(err).Str("owner", owner).Msg("filter left out of configuration")
		return nil
	}
	return flt
}

func loggerSpec(reg *Registry, st *status.Logger, c LoggerConfig) xlog4.LoggerSpec {
	owner := c.Name
	if owner == "" {
		owner = "root"
	}
	s := xlog4.LoggerSpec{
		Name:            c.Name,
		Level:           c.Level,
		Additivity:      c.Additivity,
		IncludeLocation: c.IncludeLocation,
		Async:           c.Async,
		Filter:          filters(reg, st, c.Filters, owner),
	}
	for _, r := range c.AppenderRefs {
		s.AppenderRefs = append(s.AppenderRefs, xlog4.AppenderRef{
			Ref:    r.Ref,
			Level:  r.Level,
			Filter: filters(reg, st, r.Filters, owner+"->"+r.Ref),
		})
	}
	return s
}
