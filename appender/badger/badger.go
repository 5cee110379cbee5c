// Package badger provides an appender that persists events in an embedded
// Badger key-value store, keyed so that iteration returns them in time
// order.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/trickstertwo/xlog4"
)

// ErrClosed is returned by Append and Scan after Stop.
var ErrClosed = errors.New("badger: store is closed")

// Prefix is the key prefix of every stored record.
var Prefix = []byte("log/")

// Record is the stored form of an event.
type Record struct {
	Time    time.Time         `json:"ts"`
	Level   string            `json:"level"`
	Logger  string            `json:"logger"`
	Message string            `json:"msg"`
	Thread  string            `json:"thread,omitempty"`
	Marker  string            `json:"marker,omitempty"`
	Error   string            `json:"error,omitempty"`
	Context map[string]string `json:"context,omitempty"`
	Stack   []string          `json:"stack,omitempty"`
	Fields  map[string]any    `json:"fields,omitempty"`
}

// Options configure the store.
type Options struct {
	// Dir is the database directory. Empty means an in-memory store.
	Dir string
	// DB is an existing database. The appender does not close it.
	DB *badger.DB
	// TTL expires records; zero keeps them.
	TTL    time.Duration
	Filter xlog4.Filter
	Strict bool
}

type Appender struct {
	xlog4.BaseAppender
	opts Options

	mu    sync.RWMutex
	db    *badger.DB
	owned bool
}

func New(name string, opts Options) *Appender {
	return &Appender{BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict), opts: opts}
}

func (a *Appender) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return nil
	}
	if a.opts.DB != nil {
		a.db = a.opts.DB
		return nil
	}
	bopts := badger.DefaultOptions(a.opts.Dir)
	if a.opts.Dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	db, err := badger.Open(bopts)
	if err != nil {
		return fmt.Errorf("badger: open %q: %w", a.opts.Dir, err)
	}
	a.db, a.owned = db, true
	return nil
}

func (a *Appender) Stop(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	db, owned := a.db, a.owned
	a.db, a.owned = nil, false
	if db == nil || !owned {
		return nil
	}
	var err error
	if a.opts.Dir != "" {
		err = db.Sync()
	}
	return multierr.Append(err, db.Close())
}

// key is Prefix, the big-endian UnixNano instant, then a UUID so events
// sharing an instant do not collide.
func key(ev *xlog4.LogEvent) []byte {
	id := uuid.New()
	k := make([]byte, 0, len(Prefix)+8+len(id))
	k = append(k, Prefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(ev.Instant.UnixNano()))
	return append(k, id[:]...)
}

func toRecord(ev *xlog4.LogEvent) Record {
	r := Record{
		Time:    ev.Instant,
		Level:   ev.Level.String(),
		Logger:  ev.LoggerName,
		Message: ev.FormattedMessage(),
		Thread:  ev.Thread.Name,
		Context: ev.ContextData,
		Stack:   ev.ContextStack,
	}
	if ev.Marker != nil {
		r.Marker = ev.Marker.Name()
	}
	if ev.Thrown != nil {
		r.Error = ev.Thrown.Error()
	}
	if fs := ev.Fields(); len(fs) > 0 {
		r.Fields = make(map[string]any, len(fs))
		for _, f := range fs {
			v := f.Value()
			if err, isErr := v.(error); isErr && err != nil {
				v = err.Error()
			}
			r.Fields[f.K] = v
		}
	}
	return r
}

func (a *Appender) Append(_ context.Context, ev *xlog4.LogEvent) error {
	val, err := json.Marshal(toRecord(ev))
	if err != nil {
		return fmt.Errorf("badger: encode: %w", err)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return ErrClosed
	}
	return a.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(ev), val)
		if a.opts.TTL > 0 {
			e = e.WithTTL(a.opts.TTL)
		}
		return txn.SetEntry(e)
	})
}

// Scan calls fn for each stored record at or after since, oldest first,
// until fn returns false.
func (a *Appender) Scan(since time.Time, fn func(Record) bool) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return ErrClosed
	}
	start := Prefix
	if !since.IsZero() {
		start = binary.BigEndian.AppendUint64(append([]byte(nil), Prefix...), uint64(since.UnixNano()))
	}
	return a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = Prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(start); it.ValidForPrefix(Prefix); it.Next() {
			var r Record
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &r)
			}); err != nil {
				return fmt.Errorf("badger: decode %x: %w", it.Item().Key(), err)
			}
			if !fn(r) {
				return nil
			}
		}
		return nil
	})
}
