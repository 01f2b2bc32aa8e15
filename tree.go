package forestz

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrExpectedEvent is returned by AsEvent when the tree is a span.
	ErrExpectedEvent = errors.New("forestz: expected an event, found a span")

	// ErrExpectedSpan is returned by AsSpan when the tree is an event.
	ErrExpectedSpan = errors.New("forestz: expected a span, found an event")
)

// messageKey is the field captured as an event's message.
const messageKey = "message"

// Tree is a completed node: either an *Event or a *Span.
// Trees are immutable once handed to a Processor.
type Tree interface {
	// AsEvent narrows the tree to an event or returns ErrExpectedEvent.
	AsEvent() (*Event, error)
	// AsSpan narrows the tree to a span or returns ErrExpectedSpan.
	AsSpan() (*Span, error)
	// Shared returns the attributes common to events and spans.
	Shared() Shared

	isTree()
}

// Shared holds the attributes common to events and spans.
// A zero CorrelationID or Timestamp means the attribute is absent.
type Shared struct {
	CorrelationID uuid.UUID
	Timestamp     time.Time
	Level         Level
}

// HasCorrelationID reports whether a correlation id was recorded.
func (s Shared) HasCorrelationID() bool { return s.CorrelationID != uuid.Nil }

// HasTimestamp reports whether a timestamp was recorded.
func (s Shared) HasTimestamp() bool { return !s.Timestamp.IsZero() }

// Field is a recorded key-value pair. Keys need not be unique.
type Field struct {
	Key   string
	Value string
}

// Event is a point-in-time record attached to a span or emitted at the root.
type Event struct {
	shared     Shared
	message    string
	hasMessage bool
	tag        Tag
	fields     []Field
}

// NewEvent builds an event. The first field named "message" becomes the
// event's message; any later "message" fields stay ordinary fields.
func NewEvent(shared Shared, tag Tag, fields ...Field) *Event {
	e := &Event{shared: shared, tag: tag}
	if len(fields) > 0 {
		e.fields = make([]Field, 0, len(fields))
	}
	for _, f := range fields {
		if f.Key == messageKey && !e.hasMessage {
			e.message = f.Value
			e.hasMessage = true
			continue
		}
		e.fields = append(e.fields, f)
	}
	return e
}

func (*Event) isTree() {}

// AsEvent returns the event itself.
func (e *Event) AsEvent() (*Event, error) { return e, nil }

// AsSpan always fails for an event.
func (*Event) AsSpan() (*Span, error) { return nil, ErrExpectedSpan }

// Shared returns the event's shared attributes.
func (e *Event) Shared() Shared { return e.shared }

// CorrelationID returns the id of the span the event is attached to.
func (e *Event) CorrelationID() uuid.UUID { return e.shared.CorrelationID }

// Timestamp returns when the event was recorded.
func (e *Event) Timestamp() time.Time { return e.shared.Timestamp }

// Level returns the event's level.
func (e *Event) Level() Level { return e.shared.Level }

// Message returns the event message and whether one was recorded.
func (e *Event) Message() (string, bool) { return e.message, e.hasMessage }

// Tag returns the event's display tag.
func (e *Event) Tag() Tag { return e.tag }

// Fields returns the recorded fields in insertion order.
// The returned slice must not be modified.
func (e *Event) Fields() []Field { return e.fields }

// withCorrelationID returns a copy of the event attached under id.
func (e *Event) withCorrelationID(id uuid.UUID) *Event {
	c := *e
	c.shared.CorrelationID = id
	return &c
}

// Span is a closed unit of work and everything recorded while it was open.
type Span struct {
	shared   Shared
	name     string
	children []Tree
	total    time.Duration
	nested   time.Duration
}

// NewSpan builds a closed span from its children. The nested duration is
// the sum of the child spans' totals, and total is raised to at least that.
func NewSpan(shared Shared, name string, total time.Duration, children ...Tree) *Span {
	s := &Span{shared: shared, name: name, children: children, total: total}
	for _, child := range children {
		if cs, ok := child.(*Span); ok {
			s.nested += cs.total
		}
	}
	if s.total < s.nested {
		s.total = s.nested
	}
	return s
}

func (*Span) isTree() {}

// AsEvent always fails for a span.
func (*Span) AsEvent() (*Event, error) { return nil, ErrExpectedEvent }

// AsSpan returns the span itself.
func (s *Span) AsSpan() (*Span, error) { return s, nil }

// Shared returns the span's shared attributes.
func (s *Span) Shared() Shared { return s.shared }

// CorrelationID returns the span's correlation id.
func (s *Span) CorrelationID() uuid.UUID { return s.shared.CorrelationID }

// Timestamp returns when the span was opened.
func (s *Span) Timestamp() time.Time { return s.shared.Timestamp }

// Level returns the span's level.
func (s *Span) Level() Level { return s.shared.Level }

// Name returns the span name.
func (s *Span) Name() string { return s.name }

// Children returns the attached events and spans in completion order.
// The returned slice must not be modified.
func (s *Span) Children() []Tree { return s.children }

// TotalDuration is the sum of every enter-to-exit interval of the span.
func (s *Span) TotalDuration() time.Duration { return s.total }

// NestedDuration is the sum of the total durations of direct child spans.
func (s *Span) NestedDuration() time.Duration { return s.nested }

// ExclusiveDuration is the time spent in the span outside of child spans.
func (s *Span) ExclusiveDuration() time.Duration { return s.total - s.nested }
