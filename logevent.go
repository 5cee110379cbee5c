package xlog4

import (
	"time"
)

// ThreadInfo identifies the producer. Go has no goroutine identity, so the
// producer declares it on its context with WithThread.
type ThreadInfo struct {
	ID       int64
	Name     string
	Priority int
}

// Location is the source position of the logging call.
type Location struct {
	Function string
	File     string
	Line     int
}

// LogEvent is one logging call. Once handed to an appender its content does
// not change, with one exception: a reusable event (Reusable reports true) is
// only valid until the appender returns. Appenders that keep events must
// call Snapshot.
type LogEvent struct {
	LoggerName   string
	Level        Level
	Message      Message
	Instant      time.Time
	Thread       ThreadInfo
	Location     *Location
	Thrown       error
	ContextData  map[string]string
	ContextStack []string
	Marker       *Marker
	// EndOfBatch is set by the async consumer when no further entries are
	// queued. Appenders may use it to decide when to flush.
	EndOfBatch bool

	reusable bool
}

// EpochSecond and NanoOfSecond split Instant the way wire formats expect.
func (e *LogEvent) EpochSecond() int64 { return e.Instant.Unix() }

func (e *LogEvent) NanoOfSecond() int32 { return int32(e.Instant.Nanosecond()) }

// Reusable reports whether the instance is recycled after processing.
func (e *LogEvent) Reusable() bool { return e.reusable }

// FormattedMessage is a nil-safe shortcut for Message.FormattedMessage.
func (e *LogEvent) FormattedMessage() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.FormattedMessage()
}

// Snapshot returns a detached immutable copy. Context data and stack are
// copy-on-write and shared; the message is replaced by its memento.
func (e *LogEvent) Snapshot() *LogEvent {
	cp := *e
	cp.reusable = false
	if e.Message != nil {
		cp.Message = freeze(e.Message)
	}
	if e.Location != nil {
		loc := *e.Location
		cp.Location = &loc
	}
	return &cp
}

// Reset clears every field so the instance is indistinguishable from a new one.
func (e *LogEvent) Reset() {
	*e = LogEvent{}
}
