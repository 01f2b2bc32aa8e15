package forestz

import (
	"bytes"
	"encoding/json"
	"time"
)

// JSON formats trees as JSON objects, one per line.
//
// A root event renders as {"event": {...}} and a root span as {"span": {...}}.
// Span durations are integer nanoseconds under "nanos_total" and "nanos_nested".
type JSON struct {
	// Indent pretty-prints the object with two-space indentation.
	Indent bool
}

// Format implements Formatter.
func (j JSON) Format(tree Tree) (string, error) {
	var (
		data []byte
		err  error
	)
	if j.Indent {
		data, err = json.MarshalIndent(jsonTree{tree}, "", "  ")
	} else {
		data, err = json.Marshal(jsonTree{tree})
	}
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

type jsonEvent struct {
	CorrelationID string   `json:"correlation_id,omitempty"`
	Timestamp     string   `json:"timestamp,omitempty"`
	Level         string   `json:"level"`
	Message       *string  `json:"message,omitempty"`
	Tag           string   `json:"tag"`
	Fields        fieldSet `json:"fields"`
}

type jsonSpan struct {
	CorrelationID string     `json:"correlation_id,omitempty"`
	Timestamp     string     `json:"timestamp,omitempty"`
	Level         string     `json:"level"`
	Name          string     `json:"name"`
	NanosTotal    int64      `json:"nanos_total"`
	NanosNested   int64      `json:"nanos_nested"`
	Children      []jsonTree `json:"children"`
}

// jsonTree wraps a node with its kind so children stay distinguishable.
type jsonTree struct {
	Tree
}

func (t jsonTree) MarshalJSON() ([]byte, error) {
	switch n := t.Tree.(type) {
	case *Event:
		return json.Marshal(map[string]*Event{"event": n})
	case *Span:
		return json.Marshal(map[string]*Span{"span": n})
	}
	return []byte("null"), nil
}

// fieldSet marshals as an object that keeps insertion order and duplicate keys.
type fieldSet []Field

func (fs fieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func sharedJSON(s Shared) (id, ts string) {
	if s.HasCorrelationID() {
		id = s.CorrelationID.String()
	}
	if s.HasTimestamp() {
		ts = s.Timestamp.Format(time.RFC3339Nano)
	}
	return id, ts
}

// MarshalJSON implements json.Marshaler.
func (e *Event) MarshalJSON() ([]byte, error) {
	id, ts := sharedJSON(e.shared)
	out := jsonEvent{
		CorrelationID: id,
		Timestamp:     ts,
		Level:         e.shared.Level.String(),
		Tag:           e.tag.String(),
		Fields:        fieldSet(e.fields),
	}
	if msg, ok := e.Message(); ok {
		out.Message = &msg
	}
	return json.Marshal(out)
}

// MarshalJSON implements json.Marshaler.
func (s *Span) MarshalJSON() ([]byte, error) {
	id, ts := sharedJSON(s.shared)
	out := jsonSpan{
		CorrelationID: id,
		Timestamp:     ts,
		Level:         s.shared.Level.String(),
		Name:          s.name,
		NanosTotal:    s.total.Nanoseconds(),
		NanosNested:   s.nested.Nanoseconds(),
		Children:      make([]jsonTree, len(s.children)),
	}
	for i, child := range s.children {
		out.Children[i] = jsonTree{child}
	}
	return json.Marshal(out)
}
