package forestz

import (
	"fmt"
	"strings"
	"time"
)

// Pretty formats trees for humans.
//
// Spans render as:
//
//	<NAME> [ <DURATION> | <EXCL> / <INCL> ]
//
// DURATION is the total time the span was entered. INCL is that time as a
// percentage of the outermost span in the tree. EXCL is the same percentage
// excluding time spent in child spans; it is omitted for spans without child
// spans, where it would equal INCL.
//
//	INFO     try_from_entry_ro [ 7.47ms | 6.523% / 100.000% ]
//	INFO     ┝━ server::internal_search [ 6.98ms | 31.887% / 93.477% ]
//	INFO     │  ┝━ 💬 [filter.info]: Some filter info...
//	INFO     │  ┕━ server::search [ 4.59ms | 61.410% ]
//	TRACE    ┕━ 📍 [trace]: Finished!
type Pretty struct{}

// Format implements Formatter.
func (Pretty) Format(tree Tree) (string, error) {
	var b strings.Builder
	b.Grow(256)

	indent := make([]edge, 0, 16)
	formatTree(&b, tree, -1, &indent)
	return b.String(), nil
}

type edge uint8

const (
	edgeNull edge = iota
	edgeLine
	edgeFork
	edgeTurn
)

func (e edge) String() string {
	switch e {
	case edgeLine:
		return "│  "
	case edgeFork:
		return "┝━ "
	case edgeTurn:
		return "┕━ "
	default:
		return "   "
	}
}

// formatTree renders one node and its subtree. root is the total duration
// of the outermost span in nanoseconds, or negative while rendering it.
func formatTree(b *strings.Builder, tree Tree, root float64, indent *[]edge) {
	formatShared(b, tree.Shared())
	for _, e := range *indent {
		b.WriteString(e.String())
	}

	switch n := tree.(type) {
	case *Event:
		formatEvent(b, n)
	case *Span:
		formatSpan(b, n, root, indent)
	}
}

func formatShared(b *strings.Builder, shared Shared) {
	if shared.HasCorrelationID() {
		b.WriteString(shared.CorrelationID.String())
		b.WriteByte(' ')
	}
	if shared.HasTimestamp() {
		fmt.Fprintf(b, "%-32s ", shared.Timestamp.Format(time.RFC3339Nano))
	}
	fmt.Fprintf(b, "%-8s ", shared.Level)
}

func formatEvent(b *strings.Builder, event *Event) {
	msg, _ := event.Message()
	b.WriteString(event.tag.Display())
	b.WriteString(": ")
	b.WriteString(msg)
	writeFields(b, event.fields)
	b.WriteByte('\n')
}

func formatSpan(b *strings.Builder, span *Span, root float64, indent *[]edge) {
	total := float64(span.total.Nanoseconds())
	if root < 0 {
		root = total
	}

	fmt.Fprintf(b, "%s [ %s | ", span.name, formatDuration(total))
	if span.nested > 0 {
		fmt.Fprintf(b, "%.3f%% / ", percentOf(float64(span.ExclusiveDuration().Nanoseconds()), root))
	}
	fmt.Fprintf(b, "%.3f%% ]\n", percentOf(total, root))

	children := span.children
	if len(children) == 0 {
		return
	}

	// Connectors only continue where a sibling still follows at that depth.
	if n := len(*indent); n > 0 {
		switch (*indent)[n-1] {
		case edgeTurn:
			(*indent)[n-1] = edgeNull
		case edgeFork:
			(*indent)[n-1] = edgeLine
		}
	}

	*indent = append(*indent, edgeFork)
	last := len(*indent) - 1
	for i, child := range children {
		if i == len(children)-1 {
			(*indent)[last] = edgeTurn
		} else {
			(*indent)[last] = edgeFork
		}
		formatTree(b, child, root, indent)
	}
	*indent = (*indent)[:last]
}

func percentOf(part, root float64) float64 {
	if root <= 0 {
		return 100
	}
	return 100 * part / root
}

// formatDuration scales nanoseconds to ns, µs, ms or s with two decimals
// under 10, one under 100 and none under 1000 of the unit.
func formatDuration(nanos float64) string {
	t := nanos
	for _, unit := range [...]string{"ns", "µs", "ms", "s"} {
		switch {
		case t < 10:
			return fmt.Sprintf("%.2f%s", t, unit)
		case t < 100:
			return fmt.Sprintf("%.1f%s", t, unit)
		case t < 1000:
			return fmt.Sprintf("%.0f%s", t, unit)
		}
		t /= 1000
	}
	return fmt.Sprintf("%.0fs", t*1000)
}
