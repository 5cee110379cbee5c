package xlog4

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Level mirrors slog numeric semantics and extends with Trace (-8) and Fatal (12).
// Higher values are more severe. LevelAll and LevelOff are threshold sentinels.
type Level int

const (
	LevelAll   Level = math.MinInt32
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
	LevelFatal Level = 12
	LevelOff   Level = math.MaxInt32
)

// ErrUnknownLevel is returned by ParseLevel for names that are not registered.
var ErrUnknownLevel = errors.New("xlog4: unknown level")

type levelRegistry struct {
	mu     sync.RWMutex
	byName map[string]Level
	byVal  map[Level]string
}

var levels = &levelRegistry{
	byName: map[string]Level{
		"ALL": LevelAll, "TRACE": LevelTrace, "DEBUG": LevelDebug, "INFO": LevelInfo,
		"WARN": LevelWarn, "ERROR": LevelError, "FATAL": LevelFatal, "OFF": LevelOff,
	},
	byVal: map[Level]string{
		LevelAll: "ALL", LevelTrace: "TRACE", LevelDebug: "DEBUG", LevelInfo: "INFO",
		LevelWarn: "WARN", LevelError: "ERROR", LevelFatal: "FATAL", LevelOff: "OFF",
	},
}

// ForName registers a custom level and returns it. Registering a name twice
// returns the level registered first.
func ForName(name string, intLevel int) Level {
	key := strings.ToUpper(strings.TrimSpace(name))
	levels.mu.Lock()
	defer levels.mu.Unlock()
	if l, ok := levels.byName[key]; ok {
		return l
	}
	l := Level(intLevel)
	levels.byName[key] = l
	if _, ok := levels.byVal[l]; !ok {
		levels.byVal[l] = key
	}
	return l
}

// ParseLevel resolves a level name (case-insensitive) or a plain integer.
func ParseLevel(s string) (Level, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if key == "WARNING" {
		key = "WARN"
	}
	levels.mu.RLock()
	l, ok := levels.byName[key]
	levels.mu.RUnlock()
	if ok {
		return l, nil
	}
	if n, err := strconv.Atoi(key); err == nil {
		return Level(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Levels returns all registered levels, least severe first.
func Levels() []Level {
	levels.mu.RLock()
	out := make([]Level, 0, len(levels.byVal))
	for l := range levels.byVal {
		out = append(out, l)
	}
	levels.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l Level) String() string {
	levels.mu.RLock()
	name, ok := levels.byVal[l]
	levels.mu.RUnlock()
	if ok {
		return name
	}
	return "LEVEL(" + strconv.Itoa(int(l)) + ")"
}

// Enabled reports whether an event at l passes threshold.
func (l Level) Enabled(threshold Level) bool {
	if l == LevelOff || l == LevelAll {
		return false
	}
	return l >= threshold
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
