package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/trickstertwo/xlog4"
	asyncapp "github.com/trickstertwo/xlog4/appender/async"
	badgerapp "github.com/trickstertwo/xlog4/appender/badger"
	"github.com/trickstertwo/xlog4/appender/console"
	"github.com/trickstertwo/xlog4/appender/failover"
	fileapp "github.com/trickstertwo/xlog4/appender/file"
	"github.com/trickstertwo/xlog4/appender/list"
	natsapp "github.com/trickstertwo/xlog4/appender/nats"
	slogapp "github.com/trickstertwo/xlog4/appender/slog"
	wmapp "github.com/trickstertwo/xlog4/appender/watermill"
	zapapp "github.com/trickstertwo/xlog4/appender/zap"
	zlapp "github.com/trickstertwo/xlog4/appender/zerolog"
	"github.com/trickstertwo/xlog4/filter"
	"github.com/trickstertwo/xlog4/layout"
)

// AppenderFactory builds the appender described by c. Wrapping appenders
// resolve c.Refs through bc.
type AppenderFactory func(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error)

// FilterFactory builds the filter described by c.
type FilterFactory func(c FilterConfig) (xlog4.Filter, error)

// LayoutFactory builds a layout from its options.
type LayoutFactory func(opts layout.Options) (layout.Layout, error)

// Registry maps type names to factories. Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	appenders map[string]AppenderFactory
	filters   map[string]FilterFactory
	layouts   map[string]LayoutFactory
}

// NewRegistry returns a registry holding the stock appenders, filters and
// layouts.
func NewRegistry() *Registry {
	r := &Registry{
		appenders: map[string]AppenderFactory{},
		filters:   map[string]FilterFactory{},
		layouts:   map[string]LayoutFactory{},
	}
	r.RegisterLayout("text", func(o layout.Options) (layout.Layout, error) { return layout.NewText(o), nil })
	r.RegisterLayout("json", func(o layout.Options) (layout.Layout, error) { return layout.NewJSON(o), nil })

	r.RegisterFilter("threshold", thresholdFilter)
	r.RegisterFilter("burst", burstFilter)
	r.RegisterFilter("marker", markerFilter)
	r.RegisterFilter("regex", regexFilter)
	r.RegisterFilter("logger", loggerNameFilter)

	r.RegisterAppender("console", consoleAppender)
	r.RegisterAppender("file", fileAppender)
	r.RegisterAppender("list", listAppender)
	r.RegisterAppender("async", asyncAppender)
	r.RegisterAppender("failover", failoverAppender)
	r.RegisterAppender("zap", zapAppender)
	r.RegisterAppender("zerolog", zerologAppender)
	r.RegisterAppender("slog", slogAppender)
	r.RegisterAppender("nats", natsAppender)
	r.RegisterAppender("badger", badgerAppender)
	return r
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (r *Registry) RegisterAppender(name string, f AppenderFactory) {
	r.mu.Lock()
	r.appenders[key(name)] = f
	r.mu.Unlock()
}

func (r *Registry) RegisterFilter(name string, f FilterFactory) {
	r.mu.Lock()
	r.filters[key(name)] = f
	r.mu.Unlock()
}

func (r *Registry) RegisterLayout(name string, f LayoutFactory) {
	r.mu.Lock()
	r.layouts[key(name)] = f
	r.mu.Unlock()
}

// AppenderTypes lists the registered appender type names, sorted.
func (r *Registry) AppenderTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.appenders))
	for k := range r.appenders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) appender(name string) (AppenderFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.appenders[key(name)]
	return f, ok
}

// Filter builds one filter.
func (r *Registry) Filter(c FilterConfig) (xlog4.Filter, error) {
	r.mu.RLock()
	f, ok := r.filters[key(c.Type)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: unknown filter type %q", c.Type)
	}
	return f(c)
}

// Filters builds cs and combines them with xlog4.Filters.
func (r *Registry) Filters(cs []FilterConfig) (xlog4.Filter, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	fs := make([]xlog4.Filter, 0, len(cs))
	for _, c := range cs {
		f, err := r.Filter(c)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return xlog4.Filters(fs...), nil
}

// Layout builds a layout; an empty type means "text".
func (r *Registry) Layout(c LayoutConfig) (layout.Layout, error) {
	t := key(c.Type)
	if t == "" {
		t = "text"
	}
	r.mu.RLock()
	f, ok := r.layouts[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: unknown layout type %q", c.Type)
	}
	return f(layout.Options{TimeFormat: c.TimeFormat, LevelNumbers: c.LevelNumbers, NoContext: c.NoContext})
}

// WatermillFactory returns a factory for appenders publishing through pub.
// Register it under a type name of your choice; the topic comes from the
// "topic" property.
func WatermillFactory(pub message.Publisher) AppenderFactory {
	return func(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
		lay, flt, err := bc.common(c, "json")
		if err != nil {
			return nil, err
		}
		return wmapp.New(c.Name, pub, wmapp.Options{
			Topic:  c.Prop("topic", ""),
			Layout: lay,
			Filter: flt,
			Strict: c.Strict,
		})
	}
}

// Prop returns property k, or def when unset.
func (c AppenderConfig) Prop(k, def string) string {
	if v, ok := c.Properties[k]; ok && v != "" {
		return v
	}
	return def
}

func (c AppenderConfig) propInt(k string, def int) (int, error) {
	v := c.Prop(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: appender %q property %s: %w", c.Name, k, err)
	}
	return n, nil
}

func (c AppenderConfig) propBool(k string) (bool, error) {
	v := c.Prop(k, "")
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: appender %q property %s: %w", c.Name, k, err)
	}
	return b, nil
}

func (c AppenderConfig) propDuration(k string, def time.Duration) (time.Duration, error) {
	v := c.Prop(k, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: appender %q property %s: %w", c.Name, k, err)
	}
	return d, nil
}

func (c AppenderConfig) propLevel(k string, def xlog4.Level) (xlog4.Level, error) {
	v := c.Prop(k, "")
	if v == "" {
		return def, nil
	}
	l, err := xlog4.ParseLevel(v)
	if err != nil {
		return 0, fmt.Errorf("config: appender %q property %s: %w", c.Name, k, err)
	}
	return l, nil
}

func outcome(c FilterConfig) (filter.Outcome, error) {
	return filter.ParseOutcome(strings.ToUpper(c.OnMatch), strings.ToUpper(c.OnMismatch))
}

func filterLevel(c FilterConfig) (xlog4.Level, error) {
	if c.Level == "" {
		return 0, fmt.Errorf("config: %s filter needs a level", c.Type)
	}
	return xlog4.ParseLevel(c.Level)
}

func thresholdFilter(c FilterConfig) (xlog4.Filter, error) {
	o, err := outcome(c)
	if err != nil {
		return nil, err
	}
	l, err := filterLevel(c)
	if err != nil {
		return nil, err
	}
	return filter.NewThreshold(l, o), nil
}

func burstFilter(c FilterConfig) (xlog4.Filter, error) {
	o, err := outcome(c)
	if err != nil {
		return nil, err
	}
	l, err := filterLevel(c)
	if err != nil {
		return nil, err
	}
	return filter.NewBurst(l, c.Rate, c.MaxBurst, o), nil
}

func markerFilter(c FilterConfig) (xlog4.Filter, error) {
	o, err := outcome(c)
	if err != nil {
		return nil, err
	}
	if c.Marker == "" {
		return nil, fmt.Errorf("config: marker filter needs a marker")
	}
	return filter.NewMarker(c.Marker, o), nil
}

func regexFilter(c FilterConfig) (xlog4.Filter, error) {
	o, err := outcome(c)
	if err != nil {
		return nil, err
	}
	return filter.NewRegex(c.Regex, c.Raw, o)
}

func loggerNameFilter(c FilterConfig) (xlog4.Filter, error) {
	o, err := outcome(c)
	if err != nil {
		return nil, err
	}
	return filter.NewLoggerName(c.Patterns, o)
}

func consoleAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	lay, flt, err := bc.common(c, "text")
	if err != nil {
		return nil, err
	}
	buffered, err := c.propBool("buffered")
	if err != nil {
		return nil, err
	}
	return console.New(c.Name, nil, console.Options{
		Layout:   lay,
		Filter:   flt,
		Strict:   c.Strict,
		Target:   console.Target(strings.ToLower(c.Prop("target", string(console.Stdout)))),
		Buffered: buffered,
	}), nil
}

func fileAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	lay, flt, err := bc.common(c, "text")
	if err != nil {
		return nil, err
	}
	o := fileapp.Options{Path: c.Prop("path", ""), Layout: lay, Filter: flt, Strict: c.Strict}
	if o.MaxSizeMB, err = c.propInt("max_size_mb", 0); err != nil {
		return nil, err
	}
	if o.MaxBackups, err = c.propInt("max_backups", 0); err != nil {
		return nil, err
	}
	if o.MaxAgeDays, err = c.propInt("max_age_days", 0); err != nil {
		return nil, err
	}
	if o.Compress, err = c.propBool("compress"); err != nil {
		return nil, err
	}
	if o.LocalTime, err = c.propBool("local_time"); err != nil {
		return nil, err
	}
	if o.Buffered, err = c.propBool("buffered"); err != nil {
		return nil, err
	}
	return fileapp.New(c.Name, o)
}

func listAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	flt, err := bc.reg.Filters(c.Filters)
	if err != nil {
		return nil, err
	}
	return list.New(c.Name, list.Options{Filter: flt, Strict: c.Strict}), nil
}

func asyncAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	targets, err := bc.refs(c)
	if err != nil {
		return nil, err
	}
	flt, err := bc.reg.Filters(c.Filters)
	if err != nil {
		return nil, err
	}
	size, err := c.propInt("queue_size", 0)
	if err != nil {
		return nil, err
	}
	pol, err := asyncapp.ParseDropPolicy(c.Prop("policy", ""))
	if err != nil {
		return nil, err
	}
	st := bc.status
	return asyncapp.New(c.Name, targets, asyncapp.Options{
		QueueSize: size,
		Policy:    pol,
		Filter:    flt,
		ErrorHandler: func(err error) {
			st.Warn().Err(err).Str("appender", c.Name).Msg("async appender target failed")
		},
	})
}

func failoverAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	targets, err := bc.refs(c)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, failover.ErrNoPrimary
	}
	flt, err := bc.reg.Filters(c.Filters)
	if err != nil {
		return nil, err
	}
	threshold, err := c.propInt("failure_threshold", 1)
	if err != nil {
		return nil, err
	}
	retry, err := c.propDuration("retry_interval", time.Minute)
	if err != nil {
		return nil, err
	}
	return failover.New(c.Name, targets[0], targets[1:], failover.Options{
		FailureThreshold: uint32(threshold),
		RetryInterval:    retry,
		Filter:           flt,
		Strict:           c.Strict,
		Status:           bc.status,
	})
}

func stream(c AppenderConfig) *os.File {
	if strings.EqualFold(c.Prop("target", ""), "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func zapAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	flt, err := bc.reg.Filters(c.Filters)
	if err != nil {
		return nil, err
	}
	lvl, err := c.propLevel("level", xlog4.LevelTrace)
	if err != nil {
		return nil, err
	}
	l := zapapp.NewLogger(stream(c), lvl, c.Prop("format", "json") == "console")
	return zapapp.New(c.Name, l, zapapp.Options{Filter: flt, Strict: c.Strict}), nil
}

func zerologAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	flt, err := bc.reg.Filters(c.Filters)
	if err != nil {
		return nil, err
	}
	lvl, err := c.propLevel("level", xlog4.LevelTrace)
	if err != nil {
		return nil, err
	}
	l := zlapp.NewLogger(stream(c), lvl, c.Prop("format", "json") == "console")
	return zlapp.New(c.Name, l, zlapp.Options{Filter: flt, Strict: c.Strict}), nil
}

func slogAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	flt, err := bc.reg.Filters(c.Filters)
	if err != nil {
		return nil, err
	}
	lvl, err := c.propLevel("level", xlog4.LevelTrace)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: slog.Level(lvl)}
	var h slog.Handler
	if c.Prop("format", "json") == "text" {
		h = slog.NewTextHandler(stream(c), hopts)
	} else {
		h = slog.NewJSONHandler(stream(c), hopts)
	}
	return slogapp.New(c.Name, slog.New(h), slogapp.Options{Filter: flt, Strict: c.Strict}), nil
}

func natsAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	lay, flt, err := bc.common(c, "json")
	if err != nil {
		return nil, err
	}
	perLogger, err := c.propBool("subject_per_logger")
	if err != nil {
		return nil, err
	}
	return natsapp.New(c.Name, natsapp.Options{
		URL:              c.Prop("url", ""),
		Subject:          c.Prop("subject", ""),
		SubjectPerLogger: perLogger,
		Layout:           lay,
		Filter:           flt,
		Strict:           c.Strict,
	})
}

func badgerAppender(bc *BuildContext, c AppenderConfig) (xlog4.Appender, error) {
	flt, err := bc.reg.Filters(c.Filters)
	if err != nil {
		return nil, err
	}
	ttl, err := c.propDuration("ttl", 0)
	if err != nil {
		return nil, err
	}
	return badgerapp.New(c.Name, badgerapp.Options{Dir: c.Prop("dir", ""), TTL: ttl, Filter: flt, Strict: c.Strict}), nil
}
