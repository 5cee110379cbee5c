// Package console provides a writer appender: each event is formatted with a
// layout and written to a writer chosen by level.
package console

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/layout"
)

// WriterFactory allows custom writers per log level.
type WriterFactory interface {
	GetWriter(level xlog4.Level) io.Writer
}

type DefaultWriterFactory struct{ Writer io.Writer }

func (f *DefaultWriterFactory) GetWriter(xlog4.Level) io.Writer { return f.Writer }

// LevelWriterFactory routes by exact level, falling back to Default.
type LevelWriterFactory struct {
	Default     io.Writer
	LevelWriter map[xlog4.Level]io.Writer
}

func (f *LevelWriterFactory) GetWriter(level xlog4.Level) io.Writer {
	if w, ok := f.LevelWriter[level]; ok {
		return w
	}
	return f.Default
}

// Target names the standard streams accepted by Options.Target.
type Target string

const (
	Stdout Target = "stdout"
	Stderr Target = "stderr"
)

// Options configure the appender.
type Options struct {
	// Layout formats events; nil means layout.NewText with default options.
	Layout layout.Layout
	Filter xlog4.Filter
	// Strict propagates write errors to synchronous callers.
	Strict bool
	// Target picks stdout or stderr when no writer is supplied.
	Target Target
	// Buffered wraps each writer in a bufio.Writer of BufferSize bytes.
	// Buffered output is flushed at the end of an async batch, on every
	// synchronous event, and on Stop.
	Buffered   bool
	BufferSize int
}

type stats struct {
	written      atomic.Uint64
	loggedErrors atomic.Uint64
}

// StatsSnapshot is a point-in-time counters snapshot.
type StatsSnapshot struct {
	Written      uint64
	LoggedErrors uint64
}

// Appender writes formatted events. Writes are serialized.
type Appender struct {
	xlog4.BaseAppender
	factory WriterFactory
	layout  layout.Layout
	opts    Options

	mu       sync.Mutex
	buffered map[io.Writer]*bufio.Writer

	st stats
}

// New writes to w, or to opts.Target when w is nil.
func New(name string, w io.Writer, opts Options) *Appender {
	if w == nil {
		w = os.Stdout
		if opts.Target == Stderr {
			w = os.Stderr
		}
	}
	return NewWithWriterFactory(name, &DefaultWriterFactory{Writer: w}, opts)
}

func NewWithWriterFactory(name string, factory WriterFactory, opts Options) *Appender {
	if factory == nil {
		factory = &DefaultWriterFactory{Writer: os.Stdout}
	}
	l := opts.Layout
	if l == nil {
		l = layout.NewText(layout.Options{})
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 8 << 10
	}
	a := &Appender{
		BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict),
		factory:      factory,
		layout:       l,
		opts:         opts,
	}
	if opts.Buffered {
		a.buffered = make(map[io.Writer]*bufio.Writer)
	}
	return a
}

// Layout returns the layout in use.
func (a *Appender) Layout() layout.Layout { return a.layout }

// Stats returns a snapshot of internal counters.
func (a *Appender) Stats() StatsSnapshot {
	return StatsSnapshot{Written: a.st.written.Load(), LoggedErrors: a.st.loggedErrors.Load()}
}

func (a *Appender) Append(ctx context.Context, ev *xlog4.LogEvent) error {
	w := a.factory.GetWriter(ev.Level)
	if w == nil {
		return nil
	}
	buf := layout.GetBuffer()
	defer layout.PutBuffer(buf)
	a.layout.Format(buf, ev)

	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if a.buffered != nil {
		bw := a.writerFor(w)
		_, err = bw.Write(buf.Bytes())
		if err == nil && (ev.EndOfBatch || !xlog4.InBackground(ctx)) {
			err = bw.Flush()
		}
	} else {
		_, err = w.Write(buf.Bytes())
	}
	if err != nil {
		a.st.loggedErrors.Add(1)
		return err
	}
	a.st.written.Add(1)
	return nil
}

func (a *Appender) writerFor(w io.Writer) *bufio.Writer {
	bw, ok := a.buffered[w]
	if !ok {
		bw = bufio.NewWriterSize(w, a.opts.BufferSize)
		a.buffered[w] = bw
	}
	return bw
}

// Flush writes any buffered output.
func (a *Appender) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs error
	for _, bw := range a.buffered {
		errs = multierr.Append(errs, bw.Flush())
	}
	return errs
}

func (a *Appender) Start() error { return nil }

func (a *Appender) Stop(context.Context) error { return a.Flush() }
