package forestz

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// openSpan is the in-flight state of a span between open and close.
type openSpan struct {
	shared    Shared
	name      string
	children  []Tree
	total     time.Duration
	nested    time.Duration
	enteredAt time.Time
	entered   bool
}

func (o *openSpan) enter(at time.Time) {
	o.enteredAt = at
	o.entered = true
}

func (o *openSpan) exit(at time.Time) bool {
	if !o.entered {
		return false
	}
	if d := at.Sub(o.enteredAt); d > 0 {
		o.total += d
	}
	o.entered = false
	return true
}

func (o *openSpan) recordEvent(event *Event) {
	o.children = append(o.children, event.withCorrelationID(o.shared.CorrelationID))
}

func (o *openSpan) recordSpan(span *Span) {
	o.nested += span.total
	o.children = append(o.children, span)
}

// close converts the open span into an immutable Span.
// A child can run while its parent is not entered (a stored span re-entered
// elsewhere), so total is raised to at least the nested time.
func (o *openSpan) close() *Span {
	total := o.total
	if total < o.nested {
		total = o.nested
	}
	return &Span{
		shared:   o.shared,
		name:     o.name,
		children: o.children,
		total:    total,
		nested:   o.nested,
	}
}

// spanEntry is the registry slot of one span. id, parent, name and
// correlation never change after insertion; span is guarded by mu and set to
// nil once the span closes.
type spanEntry struct {
	span        *openSpan
	name        string
	correlation uuid.UUID
	id          SpanID
	parent      SpanID
	mu          sync.Mutex
}

// Registry stores open spans keyed by SpanID.
// Safe for concurrent use; each entry is mutated under its own lock.
type Registry struct {
	spans map[SpanID]*spanEntry
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{spans: make(map[SpanID]*spanEntry)}
}

func (r *Registry) insert(e *spanEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.spans[e.id]; exists {
		return false
	}
	r.spans[e.id] = e
	return true
}

func (r *Registry) lookup(id SpanID) (*spanEntry, bool) {
	if id == 0 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.spans[id]
	return e, ok
}

func (r *Registry) remove(id SpanID) (*spanEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.spans[id]
	if ok {
		delete(r.spans, id)
	}
	return e, ok
}

// Contains reports whether the span is open.
func (r *Registry) Contains(id SpanID) bool {
	_, ok := r.lookup(id)
	return ok
}

// Parent returns the parent recorded when the span was opened.
func (r *Registry) Parent(id SpanID) (SpanID, bool) {
	e, ok := r.lookup(id)
	if !ok || e.parent == 0 {
		return 0, false
	}
	return e.parent, true
}

// Len returns the number of open spans.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.spans)
}

// Scope returns the names of the span and its open ancestors, root first.
// The walk stops at the first span already visited, so parent cycles built
// from foreign ids terminate.
func (r *Registry) Scope(id SpanID) []string {
	var names []string
	seen := make(map[SpanID]struct{})
	for e, ok := r.lookup(id); ok; e, ok = r.lookup(e.parent) {
		if _, dup := seen[e.id]; dup {
			break
		}
		seen[e.id] = struct{}{}
		names = append(names, e.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}
