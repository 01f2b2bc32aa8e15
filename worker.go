package forestz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// queue is an unbounded multi-producer, single-consumer queue of trees.
type queue struct {
	items  []Tree
	ready  chan struct{}
	mu     sync.Mutex
	closed bool
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

// push appends the tree unless the queue is closed.
func (q *queue) push(tree Tree) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, tree)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns every buffered tree in send order.
func (q *queue) take() []Tree {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Sender is the producer side of a Worker. Process enqueues and returns
// immediately.
type Sender struct {
	queue *queue
}

// Process enqueues the tree for the worker. Once the worker has shut down
// it fails with ErrQueueClosed and hands the tree back for a fallback.
func (s *Sender) Process(tree Tree) error {
	if !s.queue.push(tree) {
		return NewReport(tree, ErrQueueClosed)
	}
	return nil
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the logger for processing failures on the worker.
func WithWorkerLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithPanicHook sets a function called when the processor panics on the
// worker. The worker recovers and keeps going.
func WithPanicHook(hook func(tree Tree, r interface{})) WorkerOption {
	return func(w *Worker) { w.panicHook = hook }
}

// Worker formats and writes trees on its own goroutine, off the critical
// path of the instrumented code.
//
//nolint:govet // Field order optimized for readability
type Worker struct {
	processor Processor
	queue     *queue
	logger    *zap.Logger
	panicHook func(tree Tree, r interface{})
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewWorker starts a worker goroutine feeding every tree sent through the
// returned Sender to processor.
//
// Call Shutdown and then Join before exiting: trees still buffered when the
// process exits are lost.
func NewWorker(processor Processor, opts ...WorkerOption) (*Sender, *Worker) {
	w := &Worker{
		processor: processor,
		queue:     newQueue(),
		logger:    zap.NewNop(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return &Sender{queue: w.queue}, w
}

// run is the worker's main loop.
func (w *Worker) run() {
	defer close(w.done)

	for {
		select {
		case <-w.queue.ready:
			w.processAll(w.queue.take())
		case <-w.stop:
			// Refuse new trees, then drain what is already buffered.
			w.queue.close()
			w.processAll(w.queue.take())
			w.logger.Debug("forestz: worker stopped", zap.Uint64("processed", w.processed.Load()))
			return
		}
	}
}

func (w *Worker) processAll(trees []Tree) {
	for _, tree := range trees {
		w.safeProcess(tree)
	}
}

func (w *Worker) safeProcess(tree Tree) {
	defer func() {
		if r := recover(); r != nil {
			w.failed.Add(1)
			w.logger.Error("forestz: processor panicked", zap.Any("panic", r))
			if w.panicHook != nil {
				w.panicHook(tree, r)
			}
		}
	}()

	if err := w.processor.Process(tree); err != nil {
		w.failed.Add(1)
		w.logger.Error("forestz: worker could not process tree", zap.Error(err))
		return
	}
	w.processed.Add(1)
}

// Shutdown signals the worker to stop once the trees already buffered have
// been processed. Sends after this point fail with ErrQueueClosed.
// Safe to call multiple times.
func (w *Worker) Shutdown() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Join blocks until the worker has drained its queue and exited, or ctx is done.
func (w *Worker) Join(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("forestz: joining worker: %w", ctx.Err())
	}
}

// Done is closed when the worker has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Processed returns the number of trees processed successfully.
func (w *Worker) Processed() uint64 {
	return w.processed.Load()
}

// Failed returns the number of trees whose processing failed or panicked.
func (w *Worker) Failed() uint64 {
	return w.failed.Load()
}

// Pending returns the number of trees waiting in the queue.
func (w *Worker) Pending() int {
	return w.queue.len()
}
