package forestz

import (
	"io"
	"os"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Option configures an Assembler, Tracer or Runtime.
type Option func(*options)

type options struct {
	clock          clockz.Clock
	logger         *zap.Logger
	urgent         io.Writer
	tagParser      TagParser
	level          Level
	timestamps     bool
	correlationIDs bool
}

func defaultOptions() options {
	return options{
		clock:          clockz.RealClock,
		logger:         zap.NewNop(),
		urgent:         os.Stderr,
		level:          LevelTrace,
		timestamps:     true,
		correlationIDs: true,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock used for enter/exit instants and timestamps.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithUrgentWriter sets where immediate events are written. Defaults to stderr.
func WithUrgentWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.urgent = w
		}
	}
}

// WithTagParser installs a parser for custom event tags.
func WithTagParser(parser TagParser) Option {
	return func(o *options) { o.tagParser = parser }
}

// WithLevel drops spans and events below level.
func WithLevel(level Level) Option {
	return func(o *options) { o.level = level }
}

// WithTimestamps toggles wall-clock timestamps on spans and events.
func WithTimestamps(enabled bool) Option {
	return func(o *options) { o.timestamps = enabled }
}

// WithCorrelationIDs toggles correlation id tracking.
func WithCorrelationIDs(enabled bool) Option {
	return func(o *options) { o.correlationIDs = enabled }
}
