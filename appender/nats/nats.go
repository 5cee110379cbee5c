// Package nats provides an appender that publishes layout-encoded events to
// a NATS subject.
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/layout"
)

var (
	// ErrNoSubject is returned by New without a subject.
	ErrNoSubject = errors.New("nats: subject is required")
	// ErrNotConnected is returned by Append before Start or after Stop.
	ErrNotConnected = errors.New("nats: appender is not connected")
)

// Header names set on every published message.
const (
	HeaderLevel  = "Xlog4-Level"
	HeaderLogger = "Xlog4-Logger"
)

// Options configure the appender.
type Options struct {
	// URL is dialed by Start when Conn is nil; empty means nats.DefaultURL.
	URL string
	// Conn is an existing connection. The appender does not close it.
	Conn *natsgo.Conn
	// Subject is the base subject. With SubjectPerLogger the logger name
	// is appended as further tokens ("logs.app.db").
	Subject          string
	SubjectPerLogger bool
	// Layout defaults to JSON.
	Layout        layout.Layout
	Filter        xlog4.Filter
	Strict        bool
	FlushTimeout  time.Duration
	ConnectOption []natsgo.Option
}

// Appender publishes one NATS message per event. The message id header is
// a fresh UUID so JetStream streams can deduplicate redeliveries.
type Appender struct {
	xlog4.BaseAppender
	opts Options

	mu    sync.RWMutex
	conn  *natsgo.Conn
	owned bool
}

func New(name string, opts Options) (*Appender, error) {
	if strings.TrimSpace(opts.Subject) == "" {
		return nil, ErrNoSubject
	}
	if opts.Layout == nil {
		opts.Layout = layout.NewJSON(layout.Options{})
	}
	if opts.URL == "" {
		opts.URL = natsgo.DefaultURL
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 5 * time.Second
	}
	return &Appender{BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict), opts: opts}, nil
}

// Start uses the configured connection or dials URL.
func (a *Appender) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		return nil
	}
	if a.opts.Conn != nil {
		a.conn = a.opts.Conn
		return nil
	}
	copts := append([]natsgo.Option{natsgo.Name(a.Name()), natsgo.MaxReconnects(-1)}, a.opts.ConnectOption...)
	nc, err := natsgo.Connect(a.opts.URL, copts...)
	if err != nil {
		return fmt.Errorf("nats: connect %s: %w", a.opts.URL, err)
	}
	a.conn, a.owned = nc, true
	return nil
}

// Stop flushes pending publishes and drains a connection the appender dialed.
func (a *Appender) Stop(ctx context.Context) error {
	a.mu.Lock()
	nc, owned := a.conn, a.owned
	a.conn, a.owned = nil, false
	a.mu.Unlock()
	if nc == nil {
		return nil
	}
	var err error
	if nc.IsConnected() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.opts.FlushTimeout)
			defer cancel()
		}
		err = nc.FlushWithContext(ctx)
	}
	if owned {
		if derr := nc.Drain(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Subject returns the subject an event is published on.
func (a *Appender) Subject(ev *xlog4.LogEvent) string {
	if !a.opts.SubjectPerLogger || ev.LoggerName == "" {
		return a.opts.Subject
	}
	return a.opts.Subject + "." + ev.LoggerName
}

func (a *Appender) Append(_ context.Context, ev *xlog4.LogEvent) error {
	a.mu.RLock()
	nc := a.conn
	a.mu.RUnlock()
	if nc == nil {
		return ErrNotConnected
	}
	msg := natsgo.NewMsg(a.Subject(ev))
	msg.Header.Set(natsgo.MsgIdHdr, uuid.NewString())
	msg.Header.Set(HeaderLevel, ev.Level.String())
	msg.Header.Set(HeaderLogger, ev.LoggerName)
	msg.Header.Set("Content-Type", a.opts.Layout.ContentType())
	msg.Data = layout.Encode(a.opts.Layout, ev)
	if err := nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	return nil
}
