package forestz

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrQueueClosed is the cause reported when a tree is sent to a Worker that
// has already shut down. Wrap the Sender with a fallback if producers can
// outlive the worker.
var ErrQueueClosed = errors.New("forestz: sending on a closed queue")

// Processor receives completed root trees. Implementations format and write
// them, send them elsewhere, store them or discard them.
//
// A Processor that fails without consuming the tree should return a *Report
// carrying it, so a fallback can try another destination.
type Processor interface {
	Process(tree Tree) error
}

// ProcessorFunc adapts a function into a Processor.
type ProcessorFunc func(tree Tree) error

// Process calls f(tree).
func (f ProcessorFunc) Process(tree Tree) error {
	return f(tree)
}

// Report is the error returned by a failed Process call.
// It hands back the tree when the processor did not consume it.
type Report struct {
	payload Tree
	cause   error
}

// NewReport returns a Report. Pass a nil payload if the tree was consumed.
func NewReport(payload Tree, cause error) *Report {
	return &Report{payload: payload, cause: cause}
}

// Payload returns the unconsumed tree, if any.
func (r *Report) Payload() (Tree, bool) {
	return r.payload, r.payload != nil
}

func (r *Report) Error() string {
	if r.cause == nil {
		return "forestz: processing failed"
	}
	return fmt.Sprintf("forestz: processing failed: %v", r.cause)
}

// Unwrap returns the cause.
func (r *Report) Unwrap() error {
	return r.cause
}

// PayloadOf extracts the unconsumed tree from a processing error.
func PayloadOf(err error) (Tree, bool) {
	var report *Report
	if !errors.As(err, &report) {
		return nil, false
	}
	return report.Payload()
}

func causeOf(err error) error {
	var report *Report
	if errors.As(err, &report) && report.cause != nil {
		return report.cause
	}
	return err
}

type withFallback struct {
	primary  Processor
	fallback Processor
}

// WithFallback returns a Processor that tries primary first and, if it fails
// without consuming the tree, hands the tree to fallback. When both fail the
// returned Report carries every cause in order.
func WithFallback(primary, fallback Processor) Processor {
	return &withFallback{primary: primary, fallback: fallback}
}

func (w *withFallback) Process(tree Tree) error {
	err := w.primary.Process(tree)
	if err == nil {
		return nil
	}

	tree, ok := PayloadOf(err)
	if !ok {
		return err
	}

	ferr := w.fallback.Process(tree)
	if ferr == nil {
		return nil
	}

	payload, _ := PayloadOf(ferr)
	return NewReport(payload, multierr.Append(causeOf(err), causeOf(ferr)))
}

// WithStdoutFallback falls back to pretty printing on stdout.
func WithStdoutFallback(primary Processor) Processor {
	return WithFallback(primary, StdoutPrinter())
}

// WithStderrFallback falls back to pretty printing on stderr.
func WithStderrFallback(primary Processor) Processor {
	return WithFallback(primary, StderrPrinter())
}

// WithIgnoreFallback silently discards trees the primary could not process.
func WithIgnoreFallback(primary Processor) Processor {
	return WithFallback(primary, Sink)
}

type sink struct{}

func (sink) Process(Tree) error { return nil }

// Sink is a Processor that always succeeds and discards every tree.
var Sink Processor = sink{}
