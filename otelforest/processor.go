// Package otelforest assembles OpenTelemetry spans into forestz trees.
//
// Register a SpanProcessor with an sdk TracerProvider and every completed
// local trace is delivered to a forestz.Processor as one tree, keyed by the
// trace id:
//
//	p := otelforest.NewSpanProcessor(forestz.StdoutPrinter())
//	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(p))
package otelforest

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zoobzio/forestz"
)

// Attribute keys read from spans and span events.
const (
	// LevelKey holds a level name such as "debug" or "warn". Defaults to info.
	LevelKey = attribute.Key("forest.level")
	// CategoryKey prefixes an event's tag, e.g. "security".
	CategoryKey = attribute.Key("forest.category")
)

var _ sdktrace.SpanProcessor = (*SpanProcessor)(nil)

// SpanProcessor is an sdktrace.SpanProcessor feeding an Assembler.
//
// Span events are only visible once a span ends, so within a span they are
// placed after its child spans.
type SpanProcessor struct {
	assembler *forestz.Assembler
	logger    *zap.Logger
}

// NewSpanProcessor returns a SpanProcessor delivering root trees to
// processor. Options configure the underlying Assembler.
func NewSpanProcessor(processor forestz.Processor, opts ...forestz.Option) *SpanProcessor {
	assembler := forestz.NewAssembler(processor, opts...)
	return &SpanProcessor{
		assembler: assembler,
		logger:    assembler.Logger(),
	}
}

// Assembler returns the underlying assembler.
func (p *SpanProcessor) Assembler() *forestz.Assembler {
	return p.assembler
}

// OnStart opens and enters the span at its start time.
func (p *SpanProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	sc := s.SpanContext()
	id := spanID(sc.SpanID())

	var parent forestz.SpanID
	if ps := s.Parent(); ps.IsValid() && !ps.IsRemote() {
		parent = spanID(ps.SpanID())
	}

	start := s.StartTime()
	err := p.assembler.Open(forestz.SpanStart{
		ID:            id,
		Parent:        parent,
		Name:          s.Name(),
		Level:         levelOf(s.Attributes(), forestz.LevelInfo),
		CorrelationID: uuid.UUID(sc.TraceID()),
		Timestamp:     start,
	})
	if err != nil {
		p.logger.Warn("otelforest: span not tracked",
			zap.Error(err),
			zap.String("span", s.Name()),
			zap.Stringer("span_id", sc.SpanID()),
		)
		return
	}
	p.assembler.EnterAt(id, start)
}

// OnEnd records the span's events, exits it at its end time and closes it.
func (p *SpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	id := spanID(s.SpanContext().SpanID())
	if !p.assembler.Registry().Contains(id) {
		return
	}

	for _, ev := range s.Events() {
		p.assembler.RecordEvent(id, eventRecord(ev.Name, ev.Time, ev.Attributes))
	}
	if st := s.Status(); st.Code == codes.Error {
		msg := st.Description
		if msg == "" {
			msg = "span failed"
		}
		p.assembler.RecordEvent(id, forestz.EventRecord{
			Timestamp: s.EndTime(),
			Level:     forestz.LevelError,
			Fields:    []forestz.Field{{Key: "message", Value: msg}},
		})
	}

	p.assembler.ExitAt(id, s.EndTime())
	p.assembler.Close(id)
}

// Shutdown releases the assembler's background resources.
func (p *SpanProcessor) Shutdown(context.Context) error {
	p.assembler.Stop()
	return nil
}

// ForceFlush is a no-op: trees are delivered as soon as their root ends.
func (p *SpanProcessor) ForceFlush(context.Context) error {
	return nil
}

func spanID(id trace.SpanID) forestz.SpanID {
	return forestz.SpanID(binary.BigEndian.Uint64(id[:]))
}

func levelOf(attrs []attribute.KeyValue, def forestz.Level) forestz.Level {
	for _, kv := range attrs {
		if kv.Key != LevelKey {
			continue
		}
		if level, err := forestz.ParseLevel(kv.Value.Emit()); err == nil {
			return level
		}
	}
	return def
}

func eventRecord(name string, at time.Time, attrs []attribute.KeyValue) forestz.EventRecord {
	level := levelOf(attrs, forestz.LevelInfo)

	var category string
	fields := make([]forestz.Field, 0, 1+len(attrs))
	fields = append(fields, forestz.Field{Key: "message", Value: name})
	for _, kv := range attrs {
		switch kv.Key {
		case LevelKey:
		case CategoryKey:
			category = kv.Value.Emit()
		default:
			fields = append(fields, forestz.Field{Key: string(kv.Key), Value: kv.Value.Emit()})
		}
	}

	return forestz.EventRecord{
		Timestamp: at,
		Tag:       forestz.ResolveTag(level, category),
		Fields:    fields,
		Level:     level,
	}
}
