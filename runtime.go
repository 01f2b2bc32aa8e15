package forestz

import (
	"context"
	"io"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeConfig)

//nolint:govet // Field order optimized for readability
type runtimeConfig struct {
	formatter  Formatter
	writer     io.Writer
	processor  Processor
	fallback   Processor
	blocking   bool
	logger     *zap.Logger
	opts       []Option
	workerOpts []WorkerOption
}

// WithFormatter sets how trees are rendered. Defaults to Pretty.
func WithFormatter(f Formatter) RuntimeOption {
	return func(c *runtimeConfig) { c.formatter = f }
}

// WithWriter sets where rendered trees are written. Defaults to stdout.
func WithWriter(w io.Writer) RuntimeOption {
	return func(c *runtimeConfig) { c.writer = w }
}

// WithProcessor replaces the formatter and writer with a custom processor.
func WithProcessor(p Processor) RuntimeOption {
	return func(c *runtimeConfig) { c.processor = p }
}

// WithFallbackProcessor sets the processor that receives trees the pipeline
// could not process, e.g. trees sent after the worker shut down.
func WithFallbackProcessor(p Processor) RuntimeOption {
	return func(c *runtimeConfig) { c.fallback = p }
}

// WithBlocking processes trees synchronously on the goroutine that closes
// the root span, instead of on a background worker.
func WithBlocking() RuntimeOption {
	return func(c *runtimeConfig) { c.blocking = true }
}

// WithRuntimeLogger sets the diagnostics logger for the tracer and worker.
func WithRuntimeLogger(logger *zap.Logger) RuntimeOption {
	return func(c *runtimeConfig) { c.logger = logger }
}

// WithTracerOptions passes options through to the tracer and its assembler.
func WithTracerOptions(opts ...Option) RuntimeOption {
	return func(c *runtimeConfig) { c.opts = append(c.opts, opts...) }
}

// WithWorkerOptions passes options through to the worker.
func WithWorkerOptions(opts ...WorkerOption) RuntimeOption {
	return func(c *runtimeConfig) { c.workerOpts = append(c.workerOpts, opts...) }
}

// Runtime wires a Tracer to a processing pipeline and owns its lifecycle.
//
//	rt := forestz.NewRuntime()
//	err := rt.On(ctx, func(ctx context.Context) error {
//	    ctx, span := forestz.StartSpan(ctx, "request")
//	    defer span.Finish()
//	    forestz.Info(ctx, "handled")
//	    return nil
//	})
type Runtime struct {
	tracer    *Tracer
	worker    *Worker
	logger    *zap.Logger
	closers   []io.Closer
	stopOnce  sync.Once
	closeOnce sync.Once
}

// NewRuntime builds a tracer and pipeline. By default trees are pretty
// printed to stdout by a background worker.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	cfg := runtimeConfig{
		formatter: Pretty{},
		writer:    os.Stdout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	processor := cfg.processor
	if processor == nil {
		processor = NewPrinter(cfg.formatter, cfg.writer)
	}

	rt := &Runtime{logger: cfg.logger}
	if !cfg.blocking {
		workerOpts := append([]WorkerOption{WithWorkerLogger(cfg.logger)}, cfg.workerOpts...)
		var sender *Sender
		sender, rt.worker = NewWorker(processor, workerOpts...)
		processor = sender
	}
	if cfg.fallback != nil {
		processor = WithFallback(processor, cfg.fallback)
	}

	tracerOpts := append([]Option{WithLogger(cfg.logger)}, cfg.opts...)
	rt.tracer = NewTracer(processor, tracerOpts...)
	return rt
}

// Tracer returns the runtime's tracer.
func (r *Runtime) Tracer() *Tracer {
	return r.tracer
}

// Worker returns the background worker, or nil for a blocking runtime.
func (r *Runtime) Worker() *Worker {
	return r.worker
}

// Context returns a copy of ctx carrying the runtime's tracer.
func (r *Runtime) Context(ctx context.Context) context.Context {
	return r.tracer.Context(ctx)
}

// On runs fn with the tracer installed in its context, then shuts the
// runtime down and waits until every tree has been processed. It returns
// fn's error together with any shutdown error.
func (r *Runtime) On(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	err := fn(r.Context(ctx))
	return multierr.Append(err, r.Shutdown(context.WithoutCancel(ctx)))
}

// Shutdown stops the worker from accepting trees and waits until the trees
// already queued are processed, or ctx is done.
// Safe to call multiple times.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.tracer.Close()
		if r.worker != nil {
			r.worker.Shutdown()
		}
		r.logger.Debug("forestz: runtime shutting down", zap.Uint64("dropped_trees", r.tracer.assembler.DroppedTrees()))
	})

	var err error
	if r.worker != nil {
		err = r.worker.Join(ctx)
	}
	if err != nil {
		return err
	}

	r.closeOnce.Do(func() {
		for _, c := range r.closers {
			err = multierr.Append(err, c.Close())
		}
	})
	return err
}

// CaptureTrees runs fn with a blocking tracer that keeps every root tree in
// memory, and returns those trees in completion order.
func CaptureTrees(ctx context.Context, fn func(ctx context.Context), opts ...Option) []Tree {
	if ctx == nil {
		ctx = context.Background()
	}
	capture := NewCapture()
	tracer := NewTracer(capture, opts...)
	defer tracer.Close()

	fn(tracer.Context(ctx))
	return capture.Export()
}
