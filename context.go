package xlog4

import "context"

// Task-local state travels on context.Context: callers propagate the ctx they
// were given (including the one passed to Appender.Append) so nested logging
// calls are recognised.

type ctxKey uint8

const (
	threadKey ctxKey = iota + 1
	dataKey
	stackKey
	depthKey
	backgroundKey
	asyncEnteredKey
	activeAppendersKey
)

// WithThread declares the producer identity recorded on events.
func WithThread(ctx context.Context, t ThreadInfo) context.Context {
	return context.WithValue(ctx, threadKey, t)
}

func ThreadFrom(ctx context.Context) ThreadInfo {
	t, _ := ctx.Value(threadKey).(ThreadInfo)
	return t
}

// WithContextData returns ctx carrying key=value in addition to the data
// already present. The underlying map is never mutated after publication.
func WithContextData(ctx context.Context, key, value string) context.Context {
	cur := ContextDataFrom(ctx)
	next := make(map[string]string, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[key] = value
	return context.WithValue(ctx, dataKey, next)
}

// WithoutContextData returns ctx without key.
func WithoutContextData(ctx context.Context, key string) context.Context {
	cur := ContextDataFrom(ctx)
	if _, ok := cur[key]; !ok {
		return ctx
	}
	next := make(map[string]string, len(cur))
	for k, v := range cur {
		if k != key {
			next[k] = v
		}
	}
	return context.WithValue(ctx, dataKey, next)
}

// ContextDataFrom returns the context data map. Callers must not modify it.
func ContextDataFrom(ctx context.Context) map[string]string {
	m, _ := ctx.Value(dataKey).(map[string]string)
	return m
}

// PushContextStack returns ctx with s on top of the context stack.
func PushContextStack(ctx context.Context, s string) context.Context {
	cur := ContextStackFrom(ctx)
	next := make([]string, len(cur), len(cur)+1)
	copy(next, cur)
	return context.WithValue(ctx, stackKey, append(next, s))
}

// PopContextStack returns ctx without the top element, and that element.
func PopContextStack(ctx context.Context) (context.Context, string) {
	cur := ContextStackFrom(ctx)
	if len(cur) == 0 {
		return ctx, ""
	}
	return context.WithValue(ctx, stackKey, cur[:len(cur)-1:len(cur)-1]), cur[len(cur)-1]
}

// ContextStackFrom returns the context stack, bottom first. Callers must not
// modify it.
func ContextStackFrom(ctx context.Context) []string {
	s, _ := ctx.Value(stackKey).([]string)
	return s
}

// Depth is the number of logging calls active in the ctx's call chain.
func Depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey).(int)
	return d
}

func enterLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, depthKey, Depth(ctx)+1)
}

// InBackground reports whether ctx belongs to an async consumer goroutine.
func InBackground(ctx context.Context) bool {
	b, _ := ctx.Value(backgroundKey).(bool)
	return b
}

// WithBackground marks ctx as belonging to a background worker. Appender
// errors are not returned on such a ctx, and buffering appenders may defer
// flushing until EndOfBatch. Wrapping appenders that run their own goroutine
// use it for the calls they make.
func WithBackground(ctx context.Context) context.Context {
	return context.WithValue(ctx, backgroundKey, true)
}

func asyncEntered(ctx context.Context) bool {
	b, _ := ctx.Value(asyncEnteredKey).(bool)
	return b
}

func markAsyncEntered(ctx context.Context) context.Context {
	return context.WithValue(ctx, asyncEnteredKey, true)
}

// activeAppenders is an immutable list of appenders currently running in
// this call chain.
type activeAppenders struct {
	ac   *appenderControl
	next *activeAppenders
}

func appenderActive(ctx context.Context, ac *appenderControl) bool {
	for n, _ := ctx.Value(activeAppendersKey).(*activeAppenders); n != nil; n = n.next {
		if n.ac.name == ac.name {
			return true
		}
	}
	return false
}

func enterAppender(ctx context.Context, ac *appenderControl) context.Context {
	head, _ := ctx.Value(activeAppendersKey).(*activeAppenders)
	return context.WithValue(ctx, activeAppendersKey, &activeAppenders{ac: ac, next: head})
}
