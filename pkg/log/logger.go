package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("log: unknown level %q", s)
}

// Format selects the output encoding.
type Format int

// Output formats
const (
	TextFormat Format = iota
	JSONFormat
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return TextFormat, nil
	case "json":
		return JSONFormat, nil
	}
	return TextFormat, fmt.Errorf("log: unknown format %q", s)
}

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value any
}

// Str returns a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int returns an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 returns an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Bool returns a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Err returns an error field under the conventional "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Component tags log lines with the emitting component name.
func Component(name string) Field { return Field{Key: "component", Value: name} }

// Logger is the facade all Tidefeed components log through.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a Logger that carries the given fields on every line.
	With(fields ...Field) Logger

	// SetLevel adjusts the minimum level at runtime.
	SetLevel(level Level)
}

// Option configures a Logger under construction.
type Option func(*options)

type options struct {
	level  Level
	format Format
	out    io.Writer
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) Option { return func(o *options) { o.level = level } }

// WithFormat sets the output encoding.
func WithFormat(format Format) Option { return func(o *options) { o.format = format } }

// WithWriter directs output to w instead of stderr.
func WithWriter(w io.Writer) Option { return func(o *options) { o.out = w } }

// New builds a Logger. Defaults: InfoLevel, text format, stderr.
func New(opts ...Option) Logger {
	o := options{level: InfoLevel, format: TextFormat, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	lv := new(slog.LevelVar)
	lv.Set(toSlogLevel(o.level))
	ho := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if o.format == JSONFormat {
		h = slog.NewJSONHandler(o.out, ho)
	} else {
		h = slog.NewTextHandler(o.out, ho)
	}
	return &baseLogger{sl: slog.New(h), lv: lv}
}

// NewNop returns a Logger that discards everything. Useful in tests.
func NewNop() Logger {
	return &baseLogger{sl: slog.New(slog.NewTextHandler(io.Discard, nil)), lv: new(slog.LevelVar)}
}

// Config is the declarative logger configuration loaded from file/env.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// FromConfig builds a Logger from a Config, falling back to defaults for
// empty or invalid values.
func FromConfig(cfg Config) Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = InfoLevel
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		format = TextFormat
	}
	return New(WithLevel(level), WithFormat(format))
}

type baseLogger struct {
	sl *slog.Logger
	lv *slog.LevelVar
}

func (b *baseLogger) Debug(msg string, fields ...Field) { b.sl.Debug(msg, attrs(fields)...) }
func (b *baseLogger) Info(msg string, fields ...Field)  { b.sl.Info(msg, attrs(fields)...) }
func (b *baseLogger) Warn(msg string, fields ...Field)  { b.sl.Warn(msg, attrs(fields)...) }
func (b *baseLogger) Error(msg string, fields ...Field) { b.sl.Error(msg, attrs(fields)...) }

func (b *baseLogger) With(fields ...Field) Logger {
	return &baseLogger{sl: b.sl.With(attrs(fields)...), lv: b.lv}
}

func (b *baseLogger) SetLevel(level Level) { b.lv.Set(toSlogLevel(level)) }

func attrs(fields []Field) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
