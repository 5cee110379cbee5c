package xlog4

import (
	"errors"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/trickstertwo/xlog4/status"
)

var (
	// ErrNilAppender is returned by Build when AddAppender received nil.
	ErrNilAppender = errors.New("xlog4: nil appender")
	// ErrUnnamedAppender is returned by Build for an appender with an empty name.
	ErrUnnamedAppender = errors.New("xlog4: appender has no name")
)

// DefaultRootLevel is the root level when none is configured.
const DefaultRootLevel = LevelError

// LoggerSpec describes one node of the logger tree. An empty Level inherits
// from the nearest configured ancestor.
type LoggerSpec struct {
	Name            string
	Level           string
	Additivity      *bool
	IncludeLocation *bool
	Async           bool
	AppenderRefs    []AppenderRef
	Filter          Filter
}

// Ref is shorthand for an unconditional AppenderRef.
func Ref(name string) AppenderRef { return AppenderRef{Ref: name} }

// ConfigurationBuilder separates the construction of a Configuration from
// its representation. Configuration mistakes (bad levels, unknown appender
// references, duplicates) are reported to the status logger and the offending
// item is left out; Build fails only on programmer errors.
type ConfigurationBuilder struct {
	name      string
	appenders []Appender
	root      LoggerSpec
	loggers   []LoggerSpec
	filter    Filter
	async     AsyncOptions
	status    *status.Logger
	metrics   MetricsCollector
	err       error
}

func NewConfigurationBuilder(name string) *ConfigurationBuilder {
	if name == "" {
		name = "default"
	}
	return &ConfigurationBuilder{name: name}
}

func (b *ConfigurationBuilder) WithStatus(s *status.Logger) *ConfigurationBuilder {
	b.status = s
	return b
}

func (b *ConfigurationBuilder) WithMetrics(m MetricsCollector) *ConfigurationBuilder {
	b.metrics = m
	return b
}

// WithAsync sets the options of the delegate created when any node is async.
func (b *ConfigurationBuilder) WithAsync(o AsyncOptions) *ConfigurationBuilder {
	b.async = o
	return b
}

// WithFilter sets the context-wide filter, consulted before the level check.
func (b *ConfigurationBuilder) WithFilter(f Filter) *ConfigurationBuilder {
	b.filter = f
	return b
}

func (b *ConfigurationBuilder) AddAppender(a Appender) *ConfigurationBuilder {
	switch {
	case a == nil:
		b.err = multierr.Append(b.err, ErrNilAppender)
	case a.Name() == "":
		b.err = multierr.Append(b.err, ErrUnnamedAppender)
	default:
		b.appenders = append(b.appenders, a)
	}
	return b
}

// Root configures the root node. Its name is ignored.
func (b *ConfigurationBuilder) Root(spec LoggerSpec) *ConfigurationBuilder {
	spec.Name = ""
	b.root = spec
	return b
}

// AddLogger adds a named node. An empty name configures the root.
func (b *ConfigurationBuilder) AddLogger(spec LoggerSpec) *ConfigurationBuilder {
	if spec.Name == "" {
		return b.Root(spec)
	}
	b.loggers = append(b.loggers, spec)
	return b
}

// Build constructs the Configuration. The result is not started.
func (b *ConfigurationBuilder) Build() (*Configuration, error) {
	if b.err != nil {
		return nil, b.err
	}
	env := newDispatchEnv(b.status, b.metrics)
	st := env.status

	c := &Configuration{
		name:      b.name,
		configs:   make(map[string]*LoggerConfig, len(b.loggers)+1),
		appenders: make(map[string]Appender, len(b.appenders)),
		filter:    b.filter,
		env:       env,
		src:       b.clone(),
	}
	for _, a := range b.appenders {
		name := a.Name()
		if _, dup := c.appenders[name]; dup {
			st.Error().Str("appender", name).Msg("duplicate appender name; keeping the first")
			continue
		}
		c.appenders[name] = a
		c.order = append(c.order, name)
	}

	specs := make([]LoggerSpec, 0, len(b.loggers)+1)
	specs = append(specs, b.root)
	for _, s := range b.loggers {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			st.Error().Msg("blank logger name ignored")
			continue
		}
		dup := false
		for _, prev := range specs[1:] {
			if prev.Name == s.Name {
				dup = true
				break
			}
		}
		if dup {
			st.Error().Str("logger", s.Name).Msg("duplicate logger config; keeping the first")
			continue
		}
		specs = append(specs, s)
	}

	for _, s := range specs {
		if !s.Async {
			continue
		}
		d, err := newAsyncDelegate(b.async, env)
		if err != nil {
			st.Error().Err(err).Msg("invalid async options; using defaults")
			d, _ = newAsyncDelegate(AsyncOptions{Policy: b.async.Policy}, env)
		}
		c.delegate = d
		break
	}

	for _, s := range specs {
		lc := b.node(s, c, st)
		c.configs[lc.name] = lc
	}
	c.root = c.configs[""]
	if !c.root.hasLevel {
		c.root.level, c.root.hasLevel = DefaultRootLevel, true
	}

	for name, lc := range c.configs {
		if name == "" {
			continue
		}
		lc.parent = c.parentOf(name)
	}
	for _, lc := range c.configs {
		n := lc
		for !n.hasLevel {
			n = n.parent
		}
		lc.effective = n.level
	}
	return c, nil
}

func (b *ConfigurationBuilder) clone() *ConfigurationBuilder {
	cp := *b
	cp.appenders = append([]Appender(nil), b.appenders...)
	cp.loggers = make([]LoggerSpec, len(b.loggers))
	for i, s := range b.loggers {
		cp.loggers[i] = s.clone()
	}
	cp.root = b.root.clone()
	return &cp
}

func (s LoggerSpec) clone() LoggerSpec {
	s.AppenderRefs = append([]AppenderRef(nil), s.AppenderRefs...)
	return s
}

// SetLevel sets the level of the named node, adding the node when it is not
// configured. An empty name targets the root.
func (b *ConfigurationBuilder) SetLevel(name string, level Level) *ConfigurationBuilder {
	text := levelText(level)
	if name == "" {
		b.root.Level = text
		return b
	}
	for i := range b.loggers {
		if b.loggers[i].Name == name {
			b.loggers[i].Level = text
			return b
		}
	}
	b.loggers = append(b.loggers, LoggerSpec{Name: name, Level: text})
	return b
}

// levelText renders l so that ParseLevel reads it back.
func levelText(l Level) string {
	s := l.String()
	if strings.HasPrefix(s, "LEVEL(") {
		return strconv.Itoa(int(l))
	}
	return s
}

func (b *ConfigurationBuilder) node(s LoggerSpec, c *Configuration, st *status.Logger) *LoggerConfig {
	lc := &LoggerConfig{
		name:     s.Name,
		additive: true,
		filter:   s.Filter,
		env:      c.env,
		mode:     DispatchMode{Kind: DispatchSync},
	}
	if s.Additivity != nil {
		lc.additive = *s.Additivity
	}
	if s.Async {
		lc.mode = DispatchMode{Kind: DispatchAsync, Delegate: c.delegate}
	}
	lc.includeLocation = !s.Async
	if s.IncludeLocation != nil {
		lc.includeLocation = *s.IncludeLocation
	}
	if s.Level != "" {
		l, err := ParseLevel(s.Level)
		if err != nil {
			st.Error().Err(err).Str("logger", s.Name).Str("level", s.Level).
				Msg("invalid logger level; inheriting")
		} else {
			lc.level, lc.hasLevel = l, true
		}
	}
	for _, ref := range s.AppenderRefs {
		a, ok := c.appenders[ref.Ref]
		if !ok {
			st.Error().Str("logger", s.Name).Str("appender", ref.Ref).
				Msg("unknown appender reference ignored")
			continue
		}
		var lvl Level
		hasLevel := false
		if ref.Level != "" {
			l, err := ParseLevel(ref.Level)
			if err != nil {
				st.Error().Err(err).Str("logger", s.Name).Str("appender", ref.Ref).
					Msg("invalid appender reference level ignored")
			} else {
				lvl, hasLevel = l, true
			}
		}
		lc.appenders = append(lc.appenders, newAppenderControl(a, lvl, hasLevel, ref.Filter))
	}
	return lc
}

// parentOf returns the nearest configured strict ancestor of name.
func (c *Configuration) parentOf(name string) *LoggerConfig {
	for n := name; ; {
		i := strings.LastIndexByte(n, '.')
		if i < 0 {
			return c.root
		}
		n = n[:i]
		if lc, ok := c.configs[n]; ok {
			return lc
		}
	}
}
