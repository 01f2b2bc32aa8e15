package integration

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/forestz"
)

// TestWorkerDrainsEveryProducer floods a decoupled runtime from many
// goroutines and shuts it down at once; every tree must still arrive.
func TestWorkerDrainsEveryProducer(t *testing.T) {
	capture := forestz.NewCapture()
	var delivered atomic.Int64
	slow := forestz.ProcessorFunc(func(tree forestz.Tree) error {
		time.Sleep(10 * time.Microsecond)
		delivered.Add(1)
		return capture.Process(tree)
	})

	rt := forestz.NewRuntime(forestz.WithProcessor(slow))
	producers := 16
	perProducer := 50

	err := rt.On(context.Background(), func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for p := 0; p < producers; p++ {
			g.Go(func() error {
				for i := 0; i < perProducer; i++ {
					sctx, span := forestz.StartSpan(gctx, "request")
					forestz.Info(sctx, "handled", "i", i)
					span.Finish()
				}
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		t.Fatalf("Expected clean run, got %v", err)
	}

	want := int64(producers * perProducer)
	if delivered.Load() != want {
		t.Errorf("Expected %d trees delivered, got %d", want, delivered.Load())
	}
	if rt.Worker().Pending() != 0 {
		t.Errorf("Expected empty queue after join, got %d", rt.Worker().Pending())
	}
	if rt.Tracer().Assembler().DroppedTrees() != 0 {
		t.Errorf("Expected no dropped trees, got %d", rt.Tracer().Assembler().DroppedTrees())
	}
	if capture.Count() != int(want) {
		t.Errorf("Expected %d captured trees, got %d", want, capture.Count())
	}
}

// TestLateProducerFallsBack keeps a producer running past shutdown and
// checks its trees reach the fallback instead of being lost.
func TestLateProducerFallsBack(t *testing.T) {
	primary := forestz.NewCapture()
	fallback := forestz.NewCapture()
	rt := forestz.NewRuntime(forestz.WithProcessor(primary), forestz.WithFallbackProcessor(fallback))

	ctx := rt.Context(context.Background())
	_, early := forestz.StartSpan(ctx, "early")
	early.Finish()

	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Expected clean shutdown, got %v", err)
	}

	_, late := forestz.StartSpan(ctx, "late")
	late.Finish()

	if primary.Count() != 1 {
		t.Errorf("Expected early tree processed by the worker, got %d", primary.Count())
	}
	trees := fallback.Export()
	if len(trees) != 1 || requireSpan(t, trees[0]).Name() != "late" {
		t.Errorf("Expected late tree in fallback, got %d trees", len(trees))
	}
}
