package forestz

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Reserved event keys interpreted by Tracer.Event instead of being recorded
// as fields.
const (
	// ImmediateKey with a true bool value writes the event to the urgent
	// writer as soon as it is recorded.
	ImmediateKey = "immediate"
	// CategoryKey with a string value prefixes the event tag, e.g. "security".
	CategoryKey = "category"
)

// contextBundle holds both tracer and span to reduce context allocations.
type contextBundle struct {
	tracer *Tracer
	span   *ActiveSpan
}

// Tracer is an instrumentation source: it turns context-scoped spans and
// events into lifecycle notifications for its Assembler.
// Safe for concurrent use by multiple goroutines.
type Tracer struct {
	assembler *Assembler
	opts      options
	nextID    atomic.Uint64
}

// NewTracer creates a tracer whose root trees go to processor.
func NewTracer(processor Processor, opts ...Option) *Tracer {
	return &Tracer{
		assembler: NewAssembler(processor, opts...),
		opts:      buildOptions(opts),
	}
}

// Assembler returns the tracer's assembler.
func (t *Tracer) Assembler() *Assembler {
	return t.assembler
}

// Context returns a copy of ctx carrying the tracer, so the package-level
// helpers (StartSpan, Info, ...) record through it.
func (t *Tracer) Context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bundleKey, &contextBundle{tracer: t})
}

// Close releases the tracer's background resources.
func (t *Tracer) Close() {
	t.assembler.Stop()
}

// SpanOption configures a span at open time.
type SpanOption func(*spanConfig)

type spanConfig struct {
	correlation uuid.UUID
	level       Level
}

// WithSpanLevel sets the span level. Defaults to LevelInfo.
func WithSpanLevel(level Level) SpanOption {
	return func(c *spanConfig) { c.level = level }
}

// WithSpanCorrelationID gives the span an explicit correlation id instead
// of inheriting its parent's.
func WithSpanCorrelationID(id uuid.UUID) SpanOption {
	return func(c *spanConfig) { c.correlation = id }
}

// OpenSpan opens a span without entering it. If ctx carries a span of this
// tracer, the new span is its child.
//
// A span below the tracer level is not recorded: the returned span is inert
// and ctx is returned unchanged, so nested work attaches to the nearest
// recorded ancestor.
func (t *Tracer) OpenSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *ActiveSpan) {
	// Handle nil context by creating a new one.
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := spanConfig{level: LevelInfo}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.level < t.opts.level {
		return ctx, &ActiveSpan{name: name}
	}

	var parent SpanID
	if ps := t.currentSpan(ctx); ps != nil {
		parent = ps.id
	}

	id := SpanID(t.nextID.Add(1))
	err := t.assembler.Open(SpanStart{
		ID:            id,
		Parent:        parent,
		Name:          name,
		Level:         cfg.level,
		CorrelationID: cfg.correlation,
	})
	if err != nil {
		duplicateSpan(err)
	}

	correlation, _ := t.assembler.CorrelationID(id)
	span := &ActiveSpan{
		tracer:      t,
		id:          id,
		name:        name,
		correlation: correlation,
	}

	// Create new context with bundled tracer and span (single allocation optimization).
	return context.WithValue(ctx, bundleKey, &contextBundle{tracer: t, span: span}), span
}

// StartSpan opens a span and enters it.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *ActiveSpan) {
	ctx, span := t.OpenSpan(ctx, name, opts...)
	span.Enter()
	return ctx, span
}

// Event records an event in the current span of ctx, or as a root tree if
// there is none. kv holds alternating keys and values; values are rendered
// with fmt.Sprint. See ImmediateKey and CategoryKey for reserved keys.
func (t *Tracer) Event(ctx context.Context, level Level, msg string, kv ...any) {
	if level < t.opts.level {
		return
	}

	var parent SpanID
	if span := t.currentSpan(ctx); span != nil {
		parent = span.id
	}

	t.assembler.RecordEvent(parent, t.eventRecord(level, msg, kv))
}

// eventRecord visits the key-value pairs of an event.
func (t *Tracer) eventRecord(level Level, msg string, kv []any) EventRecord {
	rec := EventRecord{
		Level:  level,
		Fields: make([]Field, 0, 1+len(kv)/2),
	}
	rec.Fields = append(rec.Fields, Field{Key: messageKey, Value: msg})

	var category string
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			rec.Fields = append(rec.Fields, Field{Key: "!BADKEY", Value: fmt.Sprint(kv[i])})
			break
		}

		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		value := kv[i+1]

		switch v := value.(type) {
		case bool:
			if key == ImmediateKey {
				rec.Immediate = rec.Immediate || v
				continue
			}
		case string:
			if key == CategoryKey && category == "" {
				category = v
				continue
			}
		}
		rec.Fields = append(rec.Fields, Field{Key: key, Value: fmt.Sprint(value)})
	}

	if t.opts.tagParser != nil {
		if tag, ok := t.opts.tagParser(level, category); ok {
			rec.Tag = tag
			return rec
		}
	}
	rec.Tag = ResolveTag(level, category)
	return rec
}

// currentSpan returns the recorded span of this tracer carried by ctx.
func (t *Tracer) currentSpan(ctx context.Context) *ActiveSpan {
	if ctx == nil {
		return nil
	}
	bundle, ok := ctx.Value(bundleKey).(*contextBundle)
	if !ok || bundle.tracer != t || bundle.span == nil {
		return nil
	}
	return bundle.span
}

// FromContext returns the tracer carried by ctx, or nil.
func FromContext(ctx context.Context) *Tracer {
	if ctx == nil {
		return nil
	}
	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.tracer
	}
	return nil
}

// StartSpan opens and enters a span using the tracer carried by ctx.
// Without a tracer the span is inert.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *ActiveSpan) {
	if t := FromContext(ctx); t != nil {
		return t.StartSpan(ctx, name, opts...)
	}
	return ctx, &ActiveSpan{name: name}
}

// OpenSpan opens a span without entering it, using the tracer carried by ctx.
func OpenSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *ActiveSpan) {
	if t := FromContext(ctx); t != nil {
		return t.OpenSpan(ctx, name, opts...)
	}
	return ctx, &ActiveSpan{name: name}
}

func record(ctx context.Context, level Level, msg string, kv []any) {
	if t := FromContext(ctx); t != nil {
		t.Event(ctx, level, msg, kv...)
	}
}

// Trace records a trace-level event through the tracer carried by ctx.
func Trace(ctx context.Context, msg string, kv ...any) { record(ctx, LevelTrace, msg, kv) }

// Debug records a debug-level event through the tracer carried by ctx.
func Debug(ctx context.Context, msg string, kv ...any) { record(ctx, LevelDebug, msg, kv) }

// Info records an info-level event through the tracer carried by ctx.
func Info(ctx context.Context, msg string, kv ...any) { record(ctx, LevelInfo, msg, kv) }

// Warn records a warn-level event through the tracer carried by ctx.
func Warn(ctx context.Context, msg string, kv ...any) { record(ctx, LevelWarn, msg, kv) }

// Error records an error-level event through the tracer carried by ctx.
func Error(ctx context.Context, msg string, kv ...any) { record(ctx, LevelError, msg, kv) }

// CorrelationID returns the correlation id of the current span in ctx.
// It panics if ctx is not inside a recorded span.
func CorrelationID(ctx context.Context) uuid.UUID {
	span := GetSpan(ctx)
	if span == nil || span.tracer == nil {
		noCurrentSpan()
	}
	return span.correlation
}
