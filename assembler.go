package forestz

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSpanExists is returned by Open when the span id is already open.
var ErrSpanExists = errors.New("forestz: span already open")

// ErrSelfParent is returned by Open when a span names itself as its parent.
var ErrSelfParent = errors.New("forestz: span is its own parent")

// SpanStart describes a span being opened.
type SpanStart struct {
	// Timestamp overrides the wall-clock time the span opened at.
	Timestamp time.Time
	Name      string
	// CorrelationID is used as-is when not uuid.Nil. Otherwise the span
	// inherits its parent's id, or gets a fresh one if it is a root.
	CorrelationID uuid.UUID
	ID            SpanID
	Parent        SpanID
	Level         Level
}

// EventRecord describes an event being recorded.
type EventRecord struct {
	// Timestamp overrides the wall-clock time the event was recorded at.
	Timestamp time.Time
	// Tag defaults to the level's tag when left zero.
	Tag Tag
	// Fields in recorded order. The first "message" field becomes the message.
	Fields []Field
	Level  Level
	// Immediate additionally writes the event to the urgent writer right away.
	Immediate bool
}

// Assembler turns span lifecycle notifications into trees and forwards every
// completed root tree to its Processor.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for readability
type Assembler struct {
	registry  *Registry
	processor Processor
	opts      options
	ids       *IDPool
	idsMu     sync.Mutex
	urgentMu  sync.Mutex
	dropped   atomic.Uint64
}

// NewAssembler creates an assembler forwarding root trees to processor.
// A nil processor discards them.
func NewAssembler(processor Processor, opts ...Option) *Assembler {
	if processor == nil {
		processor = Sink
	}
	return &Assembler{
		registry:  NewRegistry(),
		processor: processor,
		opts:      buildOptions(opts),
	}
}

// Registry exposes the open-span registry.
func (a *Assembler) Registry() *Registry {
	return a.registry
}

// Logger returns the diagnostics logger.
func (a *Assembler) Logger() *zap.Logger {
	return a.opts.logger
}

// idPool returns the correlation id pool, creating it on first use.
func (a *Assembler) idPool() *IDPool {
	a.idsMu.Lock()
	defer a.idsMu.Unlock()

	if a.ids == nil {
		// Pool size based on number of CPUs for optimal contention balance.
		a.ids = NewIDPool(runtime.NumCPU()*16, randomID(a.opts.clock))
	}
	return a.ids
}

func (a *Assembler) now(override time.Time) time.Time {
	if !a.opts.timestamps {
		return time.Time{}
	}
	if !override.IsZero() {
		return override
	}
	return a.opts.clock.Now()
}

// Open registers a new span. It fails when the id is already open or the
// span is its own parent.
func (a *Assembler) Open(start SpanStart) error {
	if start.Parent != 0 && start.Parent == start.ID {
		return fmt.Errorf("%w: %d", ErrSelfParent, start.ID)
	}

	entry := &spanEntry{
		id:     start.ID,
		parent: start.Parent,
		name:   start.Name,
	}

	if a.opts.correlationIDs {
		switch parent, ok := a.registry.lookup(start.Parent); {
		case start.CorrelationID != uuid.Nil:
			entry.correlation = start.CorrelationID
		case ok:
			entry.correlation = parent.correlation
		default:
			entry.correlation = a.idPool().Get()
		}
	}

	entry.span = &openSpan{
		shared: Shared{
			CorrelationID: entry.correlation,
			Timestamp:     a.now(start.Timestamp),
			Level:         start.Level,
		},
		name: start.Name,
	}

	if !a.registry.insert(entry) {
		return fmt.Errorf("%w: %d", ErrSpanExists, start.ID)
	}
	return nil
}

// entry returns the open span for id or aborts with a usage error.
func (a *Assembler) entry(op string, id SpanID) *spanEntry {
	e, ok := a.registry.lookup(id)
	if !ok {
		spanNotFound(op, id)
	}
	return e
}

// Enter marks the span as entered now.
func (a *Assembler) Enter(id SpanID) {
	a.EnterAt(id, a.opts.clock.Now())
}

// EnterAt marks the span as entered at the given instant.
func (a *Assembler) EnterAt(id SpanID, at time.Time) {
	e := a.entry("enter", id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.span == nil {
		spanNotFound("enter", id)
	}
	e.span.enter(at)
}

// Exit adds the time since the last Enter to the span's total duration.
func (a *Assembler) Exit(id SpanID) {
	a.ExitAt(id, a.opts.clock.Now())
}

// ExitAt adds the time between the last enter and at to the span's total.
func (a *Assembler) ExitAt(id SpanID, at time.Time) {
	e := a.entry("exit", id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.span == nil {
		spanNotFound("exit", id)
	}
	if !e.span.exit(at) {
		exitWithoutEnter(id)
	}
}

// RecordEvent attaches an event to the open span parent, or forwards it as a
// root tree when parent is zero or no longer open.
func (a *Assembler) RecordEvent(parent SpanID, rec EventRecord) {
	tag := rec.Tag
	if tag == (Tag{}) {
		tag = TagForLevel(rec.Level)
	}
	event := NewEvent(Shared{
		Timestamp: a.now(rec.Timestamp),
		Level:     rec.Level,
	}, tag, rec.Fields...)

	if rec.Immediate {
		a.writeImmediate(event, parent)
	}

	if e, ok := a.registry.lookup(parent); ok {
		e.mu.Lock()
		if e.span != nil {
			e.span.recordEvent(event)
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}

	a.forward(event)
}

// Close removes the span from the registry and attaches it to its parent,
// or forwards it as a root tree when the parent is no longer open.
// A span closed while entered is exited first.
func (a *Assembler) Close(id SpanID) {
	e, ok := a.registry.remove(id)
	if !ok {
		spanNotFound("close", id)
	}

	e.mu.Lock()
	open := e.span
	e.span = nil
	if open != nil && open.entered {
		open.exit(a.opts.clock.Now())
	}
	e.mu.Unlock()
	if open == nil {
		spanNotFound("close", id)
	}

	span := open.close()

	if parent, ok := a.registry.lookup(e.parent); ok {
		parent.mu.Lock()
		if parent.span != nil {
			parent.span.recordSpan(span)
			parent.mu.Unlock()
			return
		}
		parent.mu.Unlock()
	}

	a.forward(span)
}

// CorrelationID returns the correlation id of an open span.
func (a *Assembler) CorrelationID(id SpanID) (uuid.UUID, bool) {
	e, ok := a.registry.lookup(id)
	if !ok {
		return uuid.Nil, false
	}
	return e.correlation, true
}

// Scope returns the names of the open span and its open ancestors, root first.
func (a *Assembler) Scope(id SpanID) []string {
	return a.registry.Scope(id)
}

// DroppedTrees returns the number of root trees no processor accepted.
func (a *Assembler) DroppedTrees() uint64 {
	return a.dropped.Load()
}

// Stop releases the correlation id pool's refill goroutine.
// Ids are still generated on demand afterwards.
func (a *Assembler) Stop() {
	a.idsMu.Lock()
	defer a.idsMu.Unlock()

	if a.ids != nil {
		a.ids.Close()
	}
}

func (a *Assembler) forward(tree Tree) {
	if err := a.processor.Process(tree); err != nil {
		a.dropped.Add(1)
		a.opts.logger.Error("forestz: root tree could not be processed",
			zap.Error(err),
			zap.String("kind", treeKind(tree)),
		)
	}
}

func treeKind(tree Tree) string {
	if _, ok := tree.(*Span); ok {
		return "span"
	}
	return "event"
}
