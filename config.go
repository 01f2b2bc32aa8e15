package forestz

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Output formats.
const (
	FormatPretty      = "pretty"
	FormatJSON        = "json"
	FormatJSONCompact = "json-compact"
)

// Fallback destinations for trees the pipeline could not process.
const (
	FallbackStderr = "stderr"
	FallbackStdout = "stdout"
	FallbackIgnore = "ignore"
	FallbackNone   = "none"
)

// Config describes a Runtime. The zero value is not valid; start from
// DefaultConfig or ConfigFromEnv.
type Config struct {
	// Level is the minimum level of spans and events that are recorded.
	Level string
	// Format is one of "pretty", "json" or "json-compact".
	Format string
	// Output is "stdout", "stderr" or a file path trees are appended to.
	Output string
	// Fallback receives trees the pipeline could not process:
	// "stderr", "stdout", "ignore" or "none".
	Fallback string
	// ServiceName is attached to the diagnostics logger.
	ServiceName string
	// LogLevel is the level of the diagnostics logger.
	LogLevel string
	// Worker processes trees on a background goroutine. When false trees
	// are written synchronously by the goroutine closing the root span.
	Worker bool
	// Timestamps records wall-clock timestamps on spans and events.
	Timestamps bool
	// CorrelationIDs tracks a correlation id per root span.
	CorrelationIDs bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Level:          "trace",
		Format:         FormatPretty,
		Output:         "stdout",
		Fallback:       FallbackStderr,
		ServiceName:    "forestz",
		LogLevel:       "info",
		Worker:         true,
		Timestamps:     true,
		CorrelationIDs: true,
	}
}

// ConfigFromEnv reads configuration from FOREST_* environment variables
// with defaults from DefaultConfig.
func ConfigFromEnv() (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		Level:          envStr("FOREST_LEVEL", def.Level),
		Format:         envStr("FOREST_FORMAT", def.Format),
		Output:         envStr("FOREST_OUTPUT", def.Output),
		Fallback:       envStr("FOREST_FALLBACK", def.Fallback),
		ServiceName:    envStr("FOREST_SERVICE_NAME", def.ServiceName),
		LogLevel:       envStr("FOREST_LOG_LEVEL", def.LogLevel),
		Worker:         envBool("FOREST_WORKER", def.Worker),
		Timestamps:     envBool("FOREST_TIMESTAMPS", def.Timestamps),
		CorrelationIDs: envBool("FOREST_CORRELATION_IDS", def.CorrelationIDs),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every field holds a known value.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return fmt.Errorf("config: FOREST_LEVEL: %w", err)
	}
	switch c.Format {
	case FormatPretty, FormatJSON, FormatJSONCompact:
	default:
		return fmt.Errorf("config: FOREST_FORMAT must be pretty, json or json-compact, got %q", c.Format)
	}
	switch c.Fallback {
	case FallbackStderr, FallbackStdout, FallbackIgnore, FallbackNone:
	default:
		return fmt.Errorf("config: FOREST_FALLBACK must be stderr, stdout, ignore or none, got %q", c.Fallback)
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("config: FOREST_OUTPUT is required")
	}
	return nil
}

// Formatter returns the formatter named by Format.
func (c Config) Formatter() Formatter {
	switch c.Format {
	case FormatJSON:
		return JSON{Indent: true}
	case FormatJSONCompact:
		return JSON{}
	default:
		return Pretty{}
	}
}

// NewRuntimeFromConfig builds a Runtime from cfg. A file Output is opened
// for appending and closed by Runtime.Shutdown.
func NewRuntimeFromConfig(cfg Config, logger *zap.Logger, opts ...RuntimeOption) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := ParseLevel(cfg.Level)

	var (
		w      io.Writer
		closer io.Closer
	)
	switch cfg.Output {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("forestz: opening output: %w", err)
		}
		w, closer = f, f
	}

	base := []RuntimeOption{
		WithFormatter(cfg.Formatter()),
		WithWriter(w),
		WithRuntimeLogger(logger),
		WithTracerOptions(
			WithLevel(level),
			WithTimestamps(cfg.Timestamps),
			WithCorrelationIDs(cfg.CorrelationIDs),
		),
	}
	if !cfg.Worker {
		base = append(base, WithBlocking())
	}
	switch cfg.Fallback {
	case FallbackStderr:
		base = append(base, WithFallbackProcessor(StderrPrinter()))
	case FallbackStdout:
		base = append(base, WithFallbackProcessor(StdoutPrinter()))
	case FallbackIgnore:
		base = append(base, WithFallbackProcessor(Sink))
	}

	rt := NewRuntime(append(base, opts...)...)
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}
	return rt, nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
