// Package forestz assembles span lifecycle notifications into trees.
//
// forestz listens to span-opened, span-entered, span-exited, span-closed and
// event-recorded notifications and rebuilds the nesting that actually happened,
// even when concurrent work interleaves. Every completed root tree is handed to
// a Processor which formats and writes it.
//
// Core Components:
//   - Assembler: State machine turning lifecycle notifications into trees.
//   - Tracer: Context-driven instrumentation source feeding an Assembler.
//   - Processor: Destination for completed root trees.
//   - Printer: Blocking processor (format and write on the caller's goroutine).
//   - Worker: Decoupled processor draining an unbounded queue on its own goroutine.
//   - Pretty / JSON: Formatters.
//
// Basic Usage:
//
//	rt := forestz.NewRuntime()
//	err := rt.On(ctx, func(ctx context.Context) error {
//		ctx, span := forestz.StartSpan(ctx, "handle-request")
//		defer span.Finish()
//
//		forestz.Info(ctx, "request accepted", "user", "123")
//		return nil
//	})
//
// Output:
//
//	INFO     handle-request [ 26.0µs | 100.000% ]
//	INFO     ┕━ 💬 [info]: request accepted | user: 123
//
// Thread Safety:
//
// Tracer, Assembler, Registry and every Processor in this package are safe for
// concurrent use. Trees handed to a Processor are immutable.
//
// Shutdown:
//
// When a Worker is used, call Worker.Shutdown and then Worker.Join (or
// Runtime.On / Runtime.Shutdown, which do both) before the process exits,
// otherwise buffered trees may never be written.
package forestz

import (
	"fmt"
	"strings"
)

// SpanID identifies an open span within a Registry.
// The zero value means "no span".
type SpanID uint64

// Level is the severity of a span or event.
type Level int8

// Severity levels, least to most severe.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int8(l))
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("forestz: unknown level %q", s)
}
