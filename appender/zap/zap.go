// Package zap provides an appender that forwards events to a go.uber.org/zap
// logger.
package zap

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trickstertwo/xlog4"
)

// Appender bridges xlog4 events to zap.
//
//   - Uses Logger.Check(level, msg) to avoid building fields when disabled.
//   - Guarantees RFC3339Nano "ts" precision by writing it as a string field.
//   - Maps FATAL to Error so the process never exits from an appender.
type Appender struct {
	xlog4.BaseAppender
	l     *zap.Logger
	tsKey string
}

// Options configure the appender.
type Options struct {
	Filter xlog4.Filter
	Strict bool
	// TimestampKey defaults to "ts".
	TimestampKey string
}

func New(name string, l *zap.Logger, opts Options) *Appender {
	if l == nil {
		l = zap.NewNop()
	}
	if opts.TimestampKey == "" {
		opts.TimestampKey = "ts"
	}
	return &Appender{
		BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict),
		l:            l,
		tsKey:        opts.TimestampKey,
	}
}

// NewJSON builds a zap JSON (or console) core on w at level and wraps it.
func NewJSON(name string, w io.Writer, level xlog4.Level, console bool) *Appender {
	return New(name, NewLogger(w, level, console), Options{})
}

// NewLogger builds a zap logger on w. zap's own time key is disabled; the
// appender writes the event instant as "ts".
func NewLogger(w io.Writer, level xlog4.Level, console bool) *zap.Logger {
	if w == nil {
		w = os.Stdout
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	var enc zapcore.Encoder
	if console {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(ToZapLevel(level)))
	return zap.New(core)
}

// Logger returns the wrapped zap logger.
func (a *Appender) Logger() *zap.Logger { return a.l }

func (a *Appender) Append(_ context.Context, ev *xlog4.LogEvent) error {
	ce := a.l.Check(ToZapLevel(ev.Level), ev.FormattedMessage())
	if ce == nil {
		return nil
	}
	ce.LoggerName = ev.LoggerName
	fields := ev.Fields()
	zfs := make([]zap.Field, 0, 4+len(fields)+len(ev.ContextData))
	zfs = append(zfs, zap.String(a.tsKey, ev.Instant.UTC().Format(time.RFC3339Nano)))
	if ev.Thread.Name != "" {
		zfs = append(zfs, zap.String("thread", ev.Thread.Name))
	}
	if ev.Marker != nil {
		zfs = append(zfs, zap.String("marker", ev.Marker.Name()))
	}
	for i := range fields {
		zfs = append(zfs, toZapField(&fields[i]))
	}
	for k, v := range ev.ContextData {
		zfs = append(zfs, zap.String("ctx."+k, v))
	}
	if ev.Thrown != nil {
		zfs = append(zfs, zap.Error(ev.Thrown))
	}
	ce.Write(zfs...)
	return nil
}

func (a *Appender) Start() error { return nil }

// Stop flushes zap's buffers. Sync errors from terminals are ignored.
func (a *Appender) Stop(context.Context) error {
	_ = a.l.Sync()
	return nil
}

// ToZapLevel maps a level onto zap's scale. zap has no trace.
func ToZapLevel(l xlog4.Level) zapcore.Level {
	switch {
	case l <= xlog4.LevelDebug:
		return zapcore.DebugLevel
	case l <= xlog4.LevelInfo:
		return zapcore.InfoLevel
	case l <= xlog4.LevelWarn:
		return zapcore.WarnLevel
	default:
		// Avoid Fatal/DPanic to prevent exits in library code.
		return zapcore.ErrorLevel
	}
}

func toZapField(f *xlog4.Field) zap.Field {
	switch f.Kind {
	case xlog4.KindString:
		return zap.String(f.K, f.Str)
	case xlog4.KindInt64:
		return zap.Int64(f.K, f.Int64)
	case xlog4.KindUint64:
		return zap.Uint64(f.K, f.Uint64)
	case xlog4.KindFloat64:
		return zap.Float64(f.K, f.Float64)
	case xlog4.KindBool:
		return zap.Bool(f.K, f.Bool)
	case xlog4.KindDuration:
		return zap.Duration(f.K, f.Dur) // encoder decides string vs numeric
	case xlog4.KindTime:
		return zap.Time(f.K, f.Time)
	case xlog4.KindError:
		if f.Err == nil {
			return zap.Skip()
		}
		if f.K == "" || f.K == "error" {
			return zap.Error(f.Err)
		}
		return zap.NamedError(f.K, f.Err)
	case xlog4.KindBytes:
		return zap.ByteString(f.K, f.Bytes)
	case xlog4.KindAny:
		return zap.Any(f.K, f.Any)
	default:
		return zap.Skip()
	}
}
