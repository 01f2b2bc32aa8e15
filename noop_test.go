package forestz

import (
	"context"
	"runtime"
	"testing"
)

func BenchmarkNoOpSpan(b *testing.B) {
	ctx := context.Background()

	b.Run("no-tracer", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			sctx, span := StartSpan(ctx, "test-op")
			Info(sctx, "event", "key", "value")
			span.Finish()
		}
	})

	b.Run("filtered", func(b *testing.B) {
		tracer := NewTracer(Sink, WithLevel(LevelError))
		defer tracer.Close()
		tctx := tracer.Context(ctx)

		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			sctx, span := StartSpan(tctx, "test-op")
			Info(sctx, "event", "key", "value")
			span.Finish()
		}
	})
}

func TestNoOpBehavior(t *testing.T) {
	ctx := context.Background()

	ctx, span := StartSpan(ctx, "test-op")
	span.Enter()
	span.Exit()
	span.InScope(func() {})

	if span.ID() != 0 {
		t.Errorf("Expected zero id for inert span, got %d", span.ID())
	}
	if span.Name() != "test-op" {
		t.Errorf("Expected name to be kept, got %s", span.Name())
	}
	if span.Context(ctx) != ctx {
		t.Error("Expected inert span not to alter the context")
	}

	// Finish is safe on an inert span.
	span.Finish()
	span.Finish()
}

func TestNoOpMemoryUsage(t *testing.T) {
	tracer := NewTracer(Sink, WithLevel(LevelError))
	defer tracer.Close()
	ctx := tracer.Context(context.Background())

	runtime.GC()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	for i := 0; i < 1000; i++ {
		sctx, span := StartSpan(ctx, "filtered")
		Debug(sctx, "dropped")
		span.Finish()
	}

	if n := tracer.Assembler().Registry().Len(); n != 0 {
		t.Errorf("Expected filtered spans not to be registered, got %d", n)
	}

	runtime.GC()
	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	t.Logf("Filtered spans retained %d heap bytes", int64(after.HeapAlloc)-int64(before.HeapAlloc))
}
