package forestz

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONFormatSpan(t *testing.T) {
	event := NewEvent(info(), TagForLevel(LevelInfo),
		Field{Key: "message", Value: "hit"},
		Field{Key: "k", Value: "1"},
		Field{Key: "k", Value: "2"},
	)
	inner := NewSpan(info(), "inner", 40*time.Millisecond)
	outer := NewSpan(info(), "outer", 100*time.Millisecond, inner, event)

	got, err := JSON{}.Format(outer)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Error("Expected trailing newline")
	}

	var decoded struct {
		Span struct {
			Name        string            `json:"name"`
			NanosTotal  int64             `json:"nanos_total"`
			NanosNested int64             `json:"nanos_nested"`
			Children    []json.RawMessage `json:"children"`
		} `json:"span"`
	}
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %v: %s", err, got)
	}
	if decoded.Span.Name != "outer" {
		t.Errorf("Expected name 'outer', got %q", decoded.Span.Name)
	}
	if decoded.Span.NanosTotal != int64(100*time.Millisecond) {
		t.Errorf("Expected nanos_total %d, got %d", int64(100*time.Millisecond), decoded.Span.NanosTotal)
	}
	if decoded.Span.NanosNested != int64(40*time.Millisecond) {
		t.Errorf("Expected nanos_nested %d, got %d", int64(40*time.Millisecond), decoded.Span.NanosNested)
	}
	if len(decoded.Span.Children) != 2 {
		t.Fatalf("Expected 2 children, got %d", len(decoded.Span.Children))
	}
	if !strings.HasPrefix(string(decoded.Span.Children[0]), `{"span":`) {
		t.Errorf("Expected first child tagged as span, got %s", decoded.Span.Children[0])
	}

	// Duplicate field keys survive in order.
	child := string(decoded.Span.Children[1])
	if !strings.Contains(child, `"fields":{"k":"1","k":"2"}`) {
		t.Errorf("Expected ordered duplicate fields, got %s", child)
	}
	if strings.Contains(got, "correlation_id") || strings.Contains(got, "timestamp") {
		t.Errorf("Expected absent shared attributes to be omitted, got %s", got)
	}
}

func TestJSONFormatIndent(t *testing.T) {
	got, err := JSON{Indent: true}.Format(testEvent("pretty"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.HasPrefix(got, "{\n  \"event\": {") {
		t.Errorf("Expected indented output, got %q", got)
	}
}
