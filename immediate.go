package forestz

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// formatImmediate renders an urgent event on a single line:
//
//	<correlation id> <timestamp> LEVEL    🚨 IMMEDIATE 🚨 root > inner > message | key: value
//
// scope holds the names of the enclosing spans, root first.
func formatImmediate(event *Event, shared Shared, scope []string) string {
	var b strings.Builder
	b.Grow(256)

	if shared.HasCorrelationID() {
		b.WriteString(shared.CorrelationID.String())
		b.WriteByte(' ')
	}
	if event.shared.HasTimestamp() {
		b.WriteString(event.shared.Timestamp.Format(time.RFC3339Nano))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-8s ", event.shared.Level)

	icon := string(TagForLevel(event.shared.Level).Icon())
	b.WriteString(icon + " IMMEDIATE " + icon + " ")

	for _, name := range scope {
		b.WriteString(name)
		b.WriteString(" > ")
	}

	if msg, ok := event.Message(); ok {
		b.WriteString(msg)
	}
	writeFields(&b, event.fields)
	b.WriteByte('\n')
	return b.String()
}

// writeImmediate writes the event to the urgent writer without waiting for
// the enclosing tree to close.
func (a *Assembler) writeImmediate(event *Event, parent SpanID) {
	var (
		shared Shared
		scope  []string
	)
	if id, ok := a.CorrelationID(parent); ok {
		shared.CorrelationID = id
		scope = a.registry.Scope(parent)
	}

	line := formatImmediate(event, shared, scope)

	a.urgentMu.Lock()
	defer a.urgentMu.Unlock()
	if _, err := a.opts.urgent.Write([]byte(line)); err != nil {
		a.opts.logger.Error("forestz: writing immediate event failed", zap.Error(err))
	}
}

func writeFields(b *strings.Builder, fields []Field) {
	for _, f := range fields {
		b.WriteString(" | ")
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
}
