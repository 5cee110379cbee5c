package xlog4

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Message is the payload of a log call. The core treats it opaquely except
// for FormattedMessage, which implementations may compute lazily.
type Message interface {
	FormattedMessage() string
	Format() string
	Parameters() []any
	Throwable() error
}

// ReusableMessage is a Message whose backing storage is recycled by its
// producer. Memento returns an immutable copy that may outlive the producer's
// next log call.
type ReusableMessage interface {
	Message
	Memento() Message
}

// SimpleMessage is a plain string.
type SimpleMessage string

func NewSimpleMessage(s string) Message { return SimpleMessage(s) }

func (m SimpleMessage) FormattedMessage() string { return string(m) }
func (m SimpleMessage) Format() string           { return string(m) }
func (m SimpleMessage) Parameters() []any        { return nil }
func (m SimpleMessage) Throwable() error         { return nil }

// ParameterizedMessage substitutes "{}" placeholders with its arguments in
// order. A backslash escapes a placeholder. A trailing error argument that no
// placeholder consumes becomes the message's throwable.
type ParameterizedMessage struct {
	format    string
	params    []any
	thrown    error
	once      sync.Once
	formatted string
}

func NewParameterizedMessage(format string, args ...any) *ParameterizedMessage {
	m := &ParameterizedMessage{format: format, params: args}
	if n := len(args); n > 0 && countPlaceholders(format) < n {
		if err, ok := args[n-1].(error); ok {
			m.thrown = err
		}
	}
	return m
}

func (m *ParameterizedMessage) FormattedMessage() string {
	m.once.Do(func() { m.formatted = formatParameterized(m.format, m.params) })
	return m.formatted
}

func (m *ParameterizedMessage) Format() string    { return m.format }
func (m *ParameterizedMessage) Parameters() []any { return m.params }
func (m *ParameterizedMessage) Throwable() error  { return m.thrown }

func countPlaceholders(format string) int {
	n := 0
	for i := 0; i < len(format)-1; i++ {
		switch {
		case format[i] == '\\':
			i++
		case format[i] == '{' && format[i+1] == '}':
			n++
			i++
		}
	}
	return n
}

func formatParameterized(format string, params []any) string {
	if len(params) == 0 || !strings.Contains(format, "{}") {
		return format
	}
	var b strings.Builder
	b.Grow(len(format) + 16*len(params))
	arg := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '\\' && i+2 < len(format) && format[i+1] == '{' && format[i+2] == '}' {
			b.WriteString("{}")
			i += 2
			continue
		}
		if c == '{' && i+1 < len(format) && format[i+1] == '}' && arg < len(params) {
			writeArg(&b, params[arg])
			arg++
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func writeArg(b *strings.Builder, v any) {
	switch vv := v.(type) {
	case string:
		b.WriteString(vv)
	case int:
		b.WriteString(strconv.Itoa(vv))
	case error:
		b.WriteString(vv.Error())
	case fmt.Stringer:
		b.WriteString(vv.String())
	default:
		fmt.Fprint(b, vv)
	}
}

// SprintfMessage formats with fmt.Sprintf on first use.
type SprintfMessage struct {
	format    string
	params    []any
	once      sync.Once
	formatted string
}

func NewSprintfMessage(format string, args ...any) *SprintfMessage {
	return &SprintfMessage{format: format, params: args}
}

func (m *SprintfMessage) FormattedMessage() string {
	m.once.Do(func() { m.formatted = fmt.Sprintf(m.format, m.params...) })
	return m.formatted
}

func (m *SprintfMessage) Format() string    { return m.format }
func (m *SprintfMessage) Parameters() []any { return m.params }
func (m *SprintfMessage) Throwable() error  { return nil }

// MapMessage renders key="value" pairs sorted by key.
type MapMessage struct {
	data map[string]string
}

// NewMapMessage copies data.
func NewMapMessage(data map[string]string) *MapMessage {
	cp := make(map[string]string, len(data))
	for k, v := range data {
		cp[k] = v
	}
	return &MapMessage{data: cp}
}

func (m *MapMessage) Data() map[string]string { return m.data }

func (m *MapMessage) FormattedMessage() string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strconv.Quote(m.data[k]))
	}
	return b.String()
}

func (m *MapMessage) Format() string    { return "" }
func (m *MapMessage) Parameters() []any { return nil }
func (m *MapMessage) Throwable() error  { return nil }

// ObjectMessage wraps an arbitrary value.
type ObjectMessage struct {
	obj any
}

func NewObjectMessage(v any) *ObjectMessage { return &ObjectMessage{obj: v} }

func (m *ObjectMessage) Object() any { return m.obj }

func (m *ObjectMessage) FormattedMessage() string {
	var b strings.Builder
	writeArg(&b, m.obj)
	return b.String()
}

func (m *ObjectMessage) Format() string    { return m.FormattedMessage() }
func (m *ObjectMessage) Parameters() []any { return []any{m.obj} }
func (m *ObjectMessage) Throwable() error {
	if err, ok := m.obj.(error); ok {
		return err
	}
	return nil
}

// FieldsMessage is free text plus structured fields. The fluent Event builder
// produces it from recycled storage, so it is a ReusableMessage.
type FieldsMessage struct {
	Text   string
	Fields []Field
	Thrown error
}

func NewFieldsMessage(text string, fields ...Field) *FieldsMessage {
	return &FieldsMessage{Text: text, Fields: fields}
}

func (m *FieldsMessage) FormattedMessage() string { return m.Text }
func (m *FieldsMessage) Format() string           { return m.Text }
func (m *FieldsMessage) Parameters() []any {
	if len(m.Fields) == 0 {
		return nil
	}
	out := make([]any, len(m.Fields))
	for i := range m.Fields {
		out[i] = m.Fields[i].Value()
	}
	return out
}
func (m *FieldsMessage) Throwable() error { return m.Thrown }

func (m *FieldsMessage) Memento() Message {
	return &FieldsMessage{Text: m.Text, Fields: copyFields(nil, m.Fields), Thrown: m.Thrown}
}

// freeze returns an immutable form of msg suitable for another goroutine.
func freeze(msg Message) Message {
	if rm, ok := msg.(ReusableMessage); ok {
		return rm.Memento()
	}
	return msg
}
