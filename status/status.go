// Package status is the diagnostic channel for the logging core's own
// operational messages: configuration problems, dropped events, appender
// failures. It never routes through the core it reports on.
package status

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Env:
//
//	XLOG4_STATUS_LEVEL   : trace|debug|info|warn|error|off (default warn)
//	XLOG4_STATUS_CONSOLE : 1 enables zerolog's ConsoleWriter
const (
	EnvLevel   = "XLOG4_STATUS_LEVEL"
	EnvConsole = "XLOG4_STATUS_CONSOLE"
)

// Logger wraps a zerolog.Logger with warn-once bookkeeping.
type Logger struct {
	zl   zerolog.Logger
	once sync.Map // key -> struct{}
}

// New returns a status logger writing JSON lines to w at the given level.
func New(w io.Writer, level zerolog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Str("component", "xlog4").Logger()
	return &Logger{zl: zl}
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zl zerolog.Logger) *Logger { return &Logger{zl: zl} }

// Nop discards everything.
func Nop() *Logger { return &Logger{zl: zerolog.Nop()} }

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns the process-wide status logger configured from the
// environment on first use.
func Default() *Logger {
	defaultOnce.Do(func() {
		var w io.Writer = os.Stderr
		if os.Getenv(EnvConsole) == "1" {
			w = zerolog.ConsoleWriter{Out: os.Stderr}
		}
		defaultLog = New(w, ParseLevel(os.Getenv(EnvLevel)))
	})
	return defaultLog
}

// ParseLevel maps a level name to zerolog; unknown or empty names give warn.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// WarnOnce returns a warn event the first time key is seen and a disabled
// event afterwards.
func (l *Logger) WarnOnce(key string) *zerolog.Event {
	if _, seen := l.once.LoadOrStore(key, struct{}{}); seen {
		return nil
	}
	return l.zl.Warn()
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }
