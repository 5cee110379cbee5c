// Package file provides a rolling file appender backed by lumberjack.
package file

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/appender/console"
	"github.com/trickstertwo/xlog4/layout"
)

// ErrNoPath is returned by New without a file name.
var ErrNoPath = errors.New("file: path is required")

// Options configure rotation and formatting.
type Options struct {
	Path string
	// MaxSizeMB triggers rotation; zero means lumberjack's 100 MB default.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	LocalTime  bool

	Layout layout.Layout
	Filter xlog4.Filter
	Strict bool
	// Buffered defers writes to the end of an async batch.
	Buffered bool
}

// Appender writes formatted events to a rotating file.
type Appender struct {
	*console.Appender
	out *lumberjack.Logger
}

func New(name string, opts Options) (*Appender, error) {
	if opts.Path == "" {
		return nil, ErrNoPath
	}
	out := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
		LocalTime:  opts.LocalTime,
	}
	w := console.New(name, out, console.Options{
		Layout:   opts.Layout,
		Filter:   opts.Filter,
		Strict:   opts.Strict,
		Buffered: opts.Buffered,
	})
	return &Appender{Appender: w, out: out}, nil
}

// Path returns the active file name.
func (a *Appender) Path() string { return a.out.Filename }

// Rotate closes the current file and starts a new one.
func (a *Appender) Rotate() error {
	if err := a.Flush(); err != nil {
		return err
	}
	return a.out.Rotate()
}

// Stop flushes and closes the file. lumberjack reopens it on the next
// write, so a restarted appender keeps working.
func (a *Appender) Stop(ctx context.Context) error {
	return multierr.Append(a.Appender.Stop(ctx), a.out.Close())
}
