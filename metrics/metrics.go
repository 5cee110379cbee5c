// Package metrics exports the dispatch core's counters to Prometheus.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trickstertwo/xlog4"
)

// Collector implements xlog4.MetricsCollector, xlog4.DurationObserver and
// xlog4.QueueObserver.
type Collector struct {
	enqueued    prometheus.Counter
	dropped     *prometheus.CounterVec
	synchronous *prometheus.CounterVec
	appended    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	panics      prometheus.Counter

	queue atomic.Pointer[queueFuncs]
	timed bool
}

type queueFuncs struct {
	size, capacity func() int
}

// Options configure a Collector.
type Options struct {
	// Namespace prefixes every metric; empty means "xlog4".
	Namespace string
	// Durations enables the appender latency histogram.
	Durations bool
}

// New registers the collector's metrics with reg; a nil reg uses the default
// registerer.
func New(reg prometheus.Registerer, opts Options) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "xlog4"
	}
	f := promauto.With(reg)
	c := &Collector{timed: opts.Durations}

	c.enqueued = f.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "async_enqueued_total",
		Help:      "Events accepted by the async queue",
	})
	c.dropped = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "async_dropped_total",
		Help:      "Events dropped by the async path, by reason",
	}, []string{"reason"})
	c.synchronous = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "async_synchronous_total",
		Help:      "Async events processed on the producer because the queue was full, by reason",
	}, []string{"reason"})
	c.appended = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "appender_events_total",
		Help:      "Events delivered to appenders",
	}, []string{"appender", "level"})
	c.failures = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "appender_failures_total",
		Help:      "Appender calls that returned an error or panicked",
	}, []string{"appender"})
	c.panics = f.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "async_consumer_panics_total",
		Help:      "Panics recovered by async consumers",
	})
	if opts.Durations {
		c.duration = f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "appender_duration_seconds",
			Help:      "Appender call latency",
			Buckets:   []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"appender"})
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "async_queue_size",
		Help:      "Entries waiting in the most recently started async queue",
	}, func() float64 { return c.queueValue(func(q *queueFuncs) func() int { return q.size }) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "async_queue_capacity",
		Help:      "Capacity of the most recently started async queue",
	}, func() float64 { return c.queueValue(func(q *queueFuncs) func() int { return q.capacity }) })
	return c
}

func (c *Collector) queueValue(pick func(*queueFuncs) func() int) float64 {
	q := c.queue.Load()
	if q == nil {
		return 0
	}
	return float64(pick(q)())
}

func (c *Collector) Enqueued() { c.enqueued.Inc() }

func (c *Collector) Dropped(reason string) { c.dropped.WithLabelValues(reason).Inc() }

func (c *Collector) Synchronous(reason string) { c.synchronous.WithLabelValues(reason).Inc() }

func (c *Collector) Appended(appender string, level xlog4.Level, d time.Duration, err error) {
	c.appended.WithLabelValues(appender, level.String()).Inc()
	if err != nil {
		c.failures.WithLabelValues(appender).Inc()
	}
	if c.duration != nil && d > 0 {
		c.duration.WithLabelValues(appender).Observe(d.Seconds())
	}
}

func (c *Collector) ConsumerPanicked() { c.panics.Inc() }

func (c *Collector) ObservesDuration() bool { return c.timed }

func (c *Collector) ObserveQueue(size, capacity func() int) {
	c.queue.Store(&queueFuncs{size: size, capacity: capacity})
}

var (
	_ xlog4.MetricsCollector = (*Collector)(nil)
	_ xlog4.DurationObserver = (*Collector)(nil)
	_ xlog4.QueueObserver    = (*Collector)(nil)
)
