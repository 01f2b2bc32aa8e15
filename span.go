package forestz

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const (
	bundleKey bundleKeyType = "forestz"
)

// ActiveSpan is the handle of an open span.
// Safe for concurrent use by multiple goroutines.
//
// A span may be entered and exited many times, e.g. around waits, and only
// entered time counts toward its duration. Finish closes it.
//
//nolint:govet // Field order optimized for readability
type ActiveSpan struct {
	tracer      *Tracer
	name        string
	correlation uuid.UUID
	id          SpanID
	mu          sync.Mutex
	entered     bool
	finished    bool
}

// Enter starts counting time toward the span. No-op if already entered or
// finished.
func (a *ActiveSpan) Enter() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tracer == nil || a.finished || a.entered {
		return
	}
	a.tracer.assembler.Enter(a.id)
	a.entered = true
}

// Exit stops counting time toward the span. No-op if not entered.
func (a *ActiveSpan) Exit() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tracer == nil || a.finished || !a.entered {
		return
	}
	a.tracer.assembler.Exit(a.id)
	a.entered = false
}

// InScope runs fn with the span entered.
func (a *ActiveSpan) InScope(fn func()) {
	a.Enter()
	defer a.Exit()
	fn()
}

// Finish exits the span if needed and closes it, attaching it to its parent
// or emitting it as a root tree.
// Safe to call multiple times - subsequent calls are no-ops.
func (a *ActiveSpan) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Prevent double-finishing.
	if a.tracer == nil || a.finished {
		return
	}
	a.finished = true

	if a.entered {
		a.tracer.assembler.Exit(a.id)
		a.entered = false
	}
	a.tracer.assembler.Close(a.id)
}

// ID returns the span id, or 0 for a span that is not recorded.
func (a *ActiveSpan) ID() SpanID {
	return a.id
}

// Name returns the span name.
func (a *ActiveSpan) Name() string {
	return a.name
}

// CorrelationID returns the span's correlation id.
func (a *ActiveSpan) CorrelationID() uuid.UUID {
	return a.correlation
}

// IsRecording reports whether the span is recorded by a tracer.
func (a *ActiveSpan) IsRecording() bool {
	return a.tracer != nil
}

// Context creates a new context with this span embedded.
// The returned context can be used to start child spans.
func (a *ActiveSpan) Context(parent context.Context) context.Context {
	if a.tracer == nil {
		return parent
	}
	if parent == nil {
		parent = context.Background()
	}
	// Use bundled approach for performance optimization.
	bundle := &contextBundle{tracer: a.tracer, span: a}
	return context.WithValue(parent, bundleKey, bundle)
}

// GetSpan extracts the current span from a context.
// Returns nil if no span is present.
func GetSpan(ctx context.Context) *ActiveSpan {
	if ctx == nil {
		return nil
	}

	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.span
	}

	return nil
}
