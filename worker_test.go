package forestz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// slowCapture delays every tree so the queue is still full at shutdown.
func slowCapture(capture *Capture, delay time.Duration) ProcessorFunc {
	return func(tree Tree) error {
		time.Sleep(delay)
		return capture.Process(tree)
	}
}

func joinWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Join(ctx); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	capture := NewCapture()
	sender, worker := NewWorker(slowCapture(capture, 5*time.Millisecond))

	for _, msg := range []string{"one", "two", "three"} {
		if err := sender.Process(testEvent(msg)); err != nil {
			t.Fatalf("Expected send to succeed, got %v", err)
		}
	}
	worker.Shutdown()
	joinWorker(t, worker)

	trees := capture.Export()
	if len(trees) != 3 {
		t.Fatalf("Expected all 3 trees processed, got %d", len(trees))
	}
	for i, want := range []string{"one", "two", "three"} {
		event, _ := trees[i].AsEvent()
		if msg, _ := event.Message(); msg != want {
			t.Errorf("Expected tree %d to be %q, got %q", i, want, msg)
		}
	}
	if worker.Processed() != 3 {
		t.Errorf("Expected 3 processed, got %d", worker.Processed())
	}
}

func TestWorkerSendAfterShutdown(t *testing.T) {
	sender, worker := NewWorker(Sink)
	worker.Shutdown()
	joinWorker(t, worker)

	tree := testEvent("late")
	err := sender.Process(tree)
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Expected ErrQueueClosed, got %v", err)
	}
	if payload, ok := PayloadOf(err); !ok || payload != tree {
		t.Error("Expected late tree to be handed back")
	}

	// A fallback catches it.
	capture := NewCapture()
	if err := WithFallback(sender, capture).Process(tree); err != nil {
		t.Errorf("Expected fallback to take the tree, got %v", err)
	}
	if capture.Count() != 1 {
		t.Errorf("Expected 1 tree in fallback, got %d", capture.Count())
	}
}

func TestWorkerPerProducerOrder(t *testing.T) {
	capture := NewCapture()
	sender, worker := NewWorker(capture)

	producers := 4
	perProducer := 250
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = sender.Process(NewSpan(info(), string(rune('a'+p)), time.Duration(i)))
			}
		}(p)
	}
	wg.Wait()
	worker.Shutdown()
	joinWorker(t, worker)

	trees := capture.Export()
	if len(trees) != producers*perProducer {
		t.Fatalf("Expected %d trees, got %d", producers*perProducer, len(trees))
	}
	last := make(map[string]time.Duration)
	for _, tree := range trees {
		span, _ := tree.AsSpan()
		if prev, ok := last[span.Name()]; ok && span.TotalDuration() <= prev {
			t.Fatalf("Producer %s out of order: %v after %v", span.Name(), span.TotalDuration(), prev)
		}
		last[span.Name()] = span.TotalDuration()
	}
}

func TestWorkerRecoversFromPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var (
		mu       sync.Mutex
		panicked []interface{}
	)
	calls := 0
	processor := ProcessorFunc(func(Tree) error {
		calls++
		if calls == 1 {
			panic("formatter exploded")
		}
		return nil
	})

	sender, worker := NewWorker(processor,
		WithWorkerLogger(zap.New(core)),
		WithPanicHook(func(_ Tree, r interface{}) {
			mu.Lock()
			defer mu.Unlock()
			panicked = append(panicked, r)
		}),
	)
	_ = sender.Process(testEvent("boom"))
	_ = sender.Process(testEvent("fine"))
	worker.Shutdown()
	joinWorker(t, worker)

	if worker.Failed() != 1 || worker.Processed() != 1 {
		t.Errorf("Expected 1 failed and 1 processed, got %d and %d", worker.Failed(), worker.Processed())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(panicked) != 1 || panicked[0] != "formatter exploded" {
		t.Errorf("Expected panic hook to see the panic, got %v", panicked)
	}
	if logs.FilterMessage("forestz: processor panicked").Len() != 1 {
		t.Errorf("Expected panic to be logged, got %d entries", logs.Len())
	}
}

func TestWorkerJoinTimeout(t *testing.T) {
	block := make(chan struct{})
	sender, worker := NewWorker(ProcessorFunc(func(Tree) error {
		<-block
		return nil
	}))
	_ = sender.Process(testEvent("stuck"))
	worker.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := worker.Join(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	close(block)
	joinWorker(t, worker)
	select {
	case <-worker.Done():
	default:
		t.Error("Expected Done to be closed after join")
	}
}
