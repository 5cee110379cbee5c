// Package recycler hands out reusable instances with an explicit
// acquire/release discipline.
package recycler

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/trickstertwo/xlog4/internal/queue"
)

// Recycler hands out instances and takes them back. Every acquired instance
// is owned by exactly one caller until it is released.
type Recycler[V any] interface {
	Acquire() V
	Release(v V)
}

// Strategy names a recycling strategy.
type Strategy string

const (
	// StrategyNone allocates on every Acquire and drops released instances.
	StrategyNone Strategy = "none"
	// StrategyPool keeps released instances in a sync.Pool.
	StrategyPool Strategy = "pool"
	// StrategyQueue keeps up to Capacity released instances in a bounded FIFO.
	StrategyQueue Strategy = "queue"
)

// DefaultCapacity is the queue strategy's capacity when none is configured.
const DefaultCapacity = 256

// Config selects and sizes a strategy.
type Config struct {
	Strategy Strategy
	Capacity int
}

// ParseConfig reads "queue", "queue:capacity=64", "pool" or "none".
func ParseConfig(s string) (Config, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Config{Strategy: StrategyQueue, Capacity: DefaultCapacity}, nil
	}
	name, args, _ := strings.Cut(s, ":")
	cfg := Config{Strategy: Strategy(strings.ToLower(name))}
	if cfg.Strategy == StrategyQueue {
		cfg.Capacity = DefaultCapacity
	}
	for _, kv := range strings.Split(args, ",") {
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) != "capacity" {
			return Config{}, fmt.Errorf("recycler: unknown argument %q", kv)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("recycler: capacity: %w", err)
		}
		cfg.Capacity = n
	}
	return cfg, nil
}

// New builds a recycler. factory creates fresh instances; cleaner, when set,
// resets an instance on release so the next acquirer sees it as new.
func New[V any](cfg Config, factory func() V, cleaner func(V)) (Recycler[V], error) {
	if factory == nil {
		return nil, fmt.Errorf("recycler: nil factory")
	}
	if cleaner == nil {
		cleaner = func(V) {}
	}
	switch cfg.Strategy {
	case StrategyNone:
		return NewDummy(factory), nil
	case StrategyPool:
		return newPool(factory, cleaner), nil
	case StrategyQueue, "":
		capacity := cfg.Capacity
		if cfg.Strategy == "" && capacity == 0 {
			capacity = DefaultCapacity
		}
		if capacity <= 0 {
			return nil, fmt.Errorf("recycler: queue capacity must be positive, got %d", capacity)
		}
		return newQueueing(capacity, factory, cleaner), nil
	default:
		return nil, fmt.Errorf("recycler: unknown strategy %q", cfg.Strategy)
	}
}

// Dummy never reuses instances.
type Dummy[V any] struct {
	factory func() V
}

func NewDummy[V any](factory func() V) *Dummy[V] { return &Dummy[V]{factory: factory} }

func (d *Dummy[V]) Acquire() V { return d.factory() }
func (d *Dummy[V]) Release(V)  {}

type pooled[V any] struct {
	p       sync.Pool
	cleaner func(V)
}

func newPool[V any](factory func() V, cleaner func(V)) *pooled[V] {
	r := &pooled[V]{cleaner: cleaner}
	r.p.New = func() any { return factory() }
	return r
}

func (r *pooled[V]) Acquire() V { return r.p.Get().(V) }

func (r *pooled[V]) Release(v V) {
	r.cleaner(v)
	r.p.Put(v)
}

// queueing keeps released instances in a bounded ring. When the ring is full
// released instances are dropped; when it is empty Acquire allocates.
type queueing[V any] struct {
	q       *queue.Ring[V]
	factory func() V
	cleaner func(V)
}

func newQueueing[V any](capacity int, factory func() V, cleaner func(V)) *queueing[V] {
	return &queueing[V]{q: queue.NewRing[V](capacity), factory: factory, cleaner: cleaner}
}

func (r *queueing[V]) Acquire() V {
	if v, ok := r.q.TryDequeue(); ok {
		return v
	}
	return r.factory()
}

func (r *queueing[V]) Release(v V) {
	r.cleaner(v)
	r.q.TryEnqueue(v)
}
