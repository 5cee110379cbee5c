// Package config loads xlog4 configurations from YAML files and the
// environment and turns them into *xlog4.Configuration values.
//
// Sources are layered with increasing priority:
//
//  1. Defaults: Default()
//  2. Config file: YAML, optional
//  3. Environment: XLOG4_* variables, "__" separating path segments
//     (XLOG4_ASYNC__CAPACITY -> async.capacity)
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/trickstertwo/xlog4"
)

// EnvPrefix marks environment variables read by Load.
const EnvPrefix = "XLOG4_"

// File is the document read from YAML and the environment.
type File struct {
	Name      string           `koanf:"name" validate:"required"`
	Status    StatusConfig     `koanf:"status"`
	Async     AsyncConfig      `koanf:"async"`
	Metrics   MetricsConfig    `koanf:"metrics"`
	Filters   []FilterConfig   `koanf:"filters" validate:"dive"`
	Appenders []AppenderConfig `koanf:"appenders" validate:"unique=Name,dive"`
	Root      LoggerConfig     `koanf:"root"`
	Loggers   []LoggerConfig   `koanf:"loggers" validate:"dive"`
}

type StatusConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
}

type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
	Durations bool   `koanf:"durations"`
}

// AsyncConfig mirrors xlog4.AsyncOptions; the policy is given by name.
type AsyncConfig struct {
	Capacity         int           `koanf:"capacity" validate:"gte=1"`
	Queue            string        `koanf:"queue" validate:"oneof=ring channel"`
	Wait             string        `koanf:"wait" validate:"oneof=timeout block sleep yield busyspin"`
	Policy           string        `koanf:"policy" validate:"oneof=default enqueue synchronous sync discard"`
	DiscardThreshold string        `koanf:"discard_threshold"`
	AboveThreshold   string        `koanf:"above_threshold" validate:"omitempty,oneof=enqueue synchronous discard"`
	Consumers        int           `koanf:"consumers" validate:"gte=1"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// FilterConfig selects a filter from the Registry by Type. Which of the
// remaining keys apply depends on the type.
type FilterConfig struct {
	Type       string   `koanf:"type" validate:"required"`
	Level      string   `koanf:"level"`
	OnMatch    string   `koanf:"on_match" validate:"omitempty,oneof=ACCEPT NEUTRAL DENY accept neutral deny"`
	OnMismatch string   `koanf:"on_mismatch" validate:"omitempty,oneof=ACCEPT NEUTRAL DENY accept neutral deny"`
	Marker     string   `koanf:"marker"`
	Regex      string   `koanf:"regex"`
	Raw        bool     `koanf:"raw"`
	Patterns   []string `koanf:"patterns"`
	Rate       float64  `koanf:"rate" validate:"gte=0"`
	MaxBurst   int      `koanf:"max_burst" validate:"gte=0"`
}

// LayoutConfig selects a layout from the Registry by Type.
type LayoutConfig struct {
	Type         string `koanf:"type"`
	TimeFormat   string `koanf:"time_format"`
	LevelNumbers bool   `koanf:"level_numbers"`
	NoContext    bool   `koanf:"no_context"`
}

// AppenderConfig selects an appender from the Registry by Type. Refs names
// the appenders a wrapping appender (async, failover) delegates to.
// Properties carry the type-specific settings.
type AppenderConfig struct {
	Name       string            `koanf:"name" validate:"required"`
	Type       string            `koanf:"type" validate:"required"`
	Layout     LayoutConfig      `koanf:"layout"`
	Filters    []FilterConfig    `koanf:"filters" validate:"dive"`
	Strict     bool              `koanf:"strict"`
	Refs       []string          `koanf:"refs"`
	Properties map[string]string `koanf:"properties"`
}

type LoggerConfig struct {
	Name            string         `koanf:"name"`
	Level           string         `koanf:"level"`
	Additivity      *bool          `koanf:"additivity"`
	IncludeLocation *bool          `koanf:"include_location"`
	Async           bool           `koanf:"async"`
	AppenderRefs    []RefConfig    `koanf:"appender_refs" validate:"dive"`
	Filters         []FilterConfig `koanf:"filters" validate:"dive"`
}

type RefConfig struct {
	Ref     string         `koanf:"ref" validate:"required"`
	Level   string         `koanf:"level"`
	Filters []FilterConfig `koanf:"filters" validate:"dive"`
}

// Default returns the built-in defaults.
func Default() File {
	return File{
		Name:   "xlog4",
		Status: StatusConfig{Level: "warn"},
		Async: AsyncConfig{
			Capacity:        xlog4.DefaultAsyncCapacity,
			Queue:           "ring",
			Wait:            "timeout",
			Policy:          "default",
			Consumers:       1,
			ShutdownTimeout: xlog4.DefaultShutdownTimeout,
		},
		Metrics: MetricsConfig{Namespace: "xlog4"},
		Root:    LoggerConfig{Level: xlog4.DefaultRootLevel.String()},
	}
}

// Load reads path (optional; empty skips the file layer) over the defaults,
// applies XLOG4_* overrides and validates the result.
func Load(path string) (*File, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// envKey maps XLOG4_ASYNC__SHUTDOWN_TIMEOUT to async.shutdown_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// ErrInvalid wraps every validation failure returned by Load and Validate.
var ErrInvalid = errors.New("config: invalid configuration")
