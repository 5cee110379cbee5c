// Package watermill provides an appender that publishes events through any
// Watermill message.Publisher (NATS, Kafka, SQL, in-process channels).
package watermill

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/layout"
)

var (
	ErrNoPublisher = errors.New("watermill: publisher is required")
	ErrNoTopic     = errors.New("watermill: topic is required")
)

// Metadata keys set on every message.
const (
	MetaLevel   = "level"
	MetaLogger  = "logger"
	MetaContent = "content_type"
	MetaSeconds = "epoch_second"
)

// TopicFunc picks the topic for an event.
type TopicFunc func(ev *xlog4.LogEvent) string

// Options configure the appender.
type Options struct {
	Topic string
	// TopicFunc overrides Topic when set.
	TopicFunc TopicFunc
	// Layout defaults to JSON.
	Layout layout.Layout
	// ClosePublisher closes the publisher on Stop.
	ClosePublisher bool
	Filter         xlog4.Filter
	Strict         bool
}

type Appender struct {
	xlog4.BaseAppender
	pub  message.Publisher
	opts Options
}

func New(name string, pub message.Publisher, opts Options) (*Appender, error) {
	if pub == nil {
		return nil, ErrNoPublisher
	}
	if opts.Topic == "" && opts.TopicFunc == nil {
		return nil, ErrNoTopic
	}
	if opts.Layout == nil {
		opts.Layout = layout.NewJSON(layout.Options{})
	}
	return &Appender{BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict), pub: pub, opts: opts}, nil
}

func (a *Appender) topic(ev *xlog4.LogEvent) string {
	if a.opts.TopicFunc != nil {
		if t := a.opts.TopicFunc(ev); t != "" {
			return t
		}
	}
	return a.opts.Topic
}

func (a *Appender) Append(ctx context.Context, ev *xlog4.LogEvent) error {
	msg := message.NewMessage(uuid.NewString(), layout.Encode(a.opts.Layout, ev))
	msg.Metadata.Set(MetaLevel, ev.Level.String())
	msg.Metadata.Set(MetaLogger, ev.LoggerName)
	msg.Metadata.Set(MetaContent, a.opts.Layout.ContentType())
	msg.Metadata.Set(MetaSeconds, strconv.FormatInt(ev.EpochSecond(), 10))
	msg.SetContext(ctx)
	if err := a.pub.Publish(a.topic(ev), msg); err != nil {
		return fmt.Errorf("watermill: publish: %w", err)
	}
	return nil
}

func (a *Appender) Start() error { return nil }

func (a *Appender) Stop(context.Context) error {
	if a.opts.ClosePublisher {
		return a.pub.Close()
	}
	return nil
}
