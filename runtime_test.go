package forestz

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// syncBuffer is a bytes.Buffer safe for the worker and the test to share.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRuntimeOnFlushesWorker(t *testing.T) {
	var out syncBuffer
	rt := NewRuntime(WithWriter(&out))

	err := rt.On(context.Background(), func(ctx context.Context) error {
		for _, name := range []string{"first", "second", "third"} {
			ctx, span := StartSpan(ctx, name)
			Info(ctx, "inside "+name)
			span.Finish()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got := out.String()
	for _, want := range []string{"first [", "second [", "third [", "inside third"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}
	if rt.Worker().Processed() != 3 {
		t.Errorf("Expected 3 trees processed, got %d", rt.Worker().Processed())
	}
}

func TestRuntimeOnReturnsBodyError(t *testing.T) {
	rt := NewRuntime(WithProcessor(Sink))
	bodyErr := errors.New("task failed")

	err := rt.On(context.Background(), func(context.Context) error { return bodyErr })
	if !errors.Is(err, bodyErr) {
		t.Errorf("Expected body error, got %v", err)
	}
}

func TestRuntimeBlocking(t *testing.T) {
	capture := NewCapture()
	rt := NewRuntime(WithBlocking(), WithProcessor(capture))

	ctx := rt.Context(context.Background())
	_, span := StartSpan(ctx, "sync")
	span.Finish()

	// Delivered before Finish returns.
	if capture.Count() != 1 {
		t.Errorf("Expected tree delivered synchronously, got %d", capture.Count())
	}
	if rt.Worker() != nil {
		t.Error("Expected no worker for a blocking runtime")
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}

func TestRuntimeFallbackAfterShutdown(t *testing.T) {
	fallback := NewCapture()
	rt := NewRuntime(WithProcessor(Sink), WithFallbackProcessor(fallback))

	ctx := rt.Context(context.Background())
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Expected clean shutdown, got %v", err)
	}
	// Idempotent.
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Expected second shutdown to succeed, got %v", err)
	}

	Warn(ctx, "after shutdown")
	if fallback.Count() != 1 {
		t.Errorf("Expected late tree in fallback, got %d", fallback.Count())
	}
}

func TestRuntimeFormatter(t *testing.T) {
	var out syncBuffer
	rt := NewRuntime(WithWriter(&out), WithFormatter(JSON{}), WithTracerOptions(WithTimestamps(false)))

	_ = rt.On(context.Background(), func(ctx context.Context) error {
		Error(ctx, "json please")
		return nil
	})

	if !strings.HasPrefix(out.String(), `{"event":{`) {
		t.Errorf("Expected JSON output, got %q", out.String())
	}
}

func TestCaptureTrees(t *testing.T) {
	clock := clockz.NewFakeClock()
	trees := CaptureTrees(context.Background(), func(ctx context.Context) {
		ctx, span := StartSpan(ctx, "outer")
		defer span.Finish()

		_, inner := StartSpan(ctx, "inner")
		clock.Advance(40 * time.Millisecond)
		inner.Finish()
		clock.Advance(60 * time.Millisecond)
		Info(ctx, "done")
	}, WithClock(clock))

	if len(trees) != 1 {
		t.Fatalf("Expected 1 tree, got %d", len(trees))
	}
	span, err := trees[0].AsSpan()
	if err != nil {
		t.Fatalf("Expected span, got %v", err)
	}
	if span.TotalDuration() != 100*time.Millisecond || span.NestedDuration() != 40*time.Millisecond {
		t.Errorf("Expected 100ms/40ms, got %v/%v", span.TotalDuration(), span.NestedDuration())
	}
	if len(span.Children()) != 2 {
		t.Errorf("Expected inner span and event, got %d children", len(span.Children()))
	}
}
