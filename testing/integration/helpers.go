// Package integration exercises forestz end to end: tracer, assembler and
// processing pipeline running together under realistic task patterns.
package integration

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/zoobzio/forestz"
)

// spanNames collects the name of every span in a tree, depth first.
func spanNames(tree forestz.Tree) []string {
	span, err := tree.AsSpan()
	if err != nil {
		return nil
	}
	names := []string{span.Name()}
	for _, child := range span.Children() {
		names = append(names, spanNames(child)...)
	}
	return names
}

// eventMessages collects the message of every event in a tree, depth first.
func eventMessages(tree forestz.Tree) []string {
	if event, err := tree.AsEvent(); err == nil {
		msg, _ := event.Message()
		return []string{msg}
	}
	span, _ := tree.AsSpan()
	var msgs []string
	for _, child := range span.Children() {
		msgs = append(msgs, eventMessages(child)...)
	}
	return msgs
}

// simulateTask runs a synthetic task that alternates between work inside
// nested spans and waits with its root span exited.
func simulateTask(ctx context.Context, name string, steps int) error {
	ctx, span := forestz.StartSpan(ctx, name)
	defer span.Finish()

	for i := 0; i < steps; i++ {
		span.Exit()
		time.Sleep(time.Duration(rand.IntN(500)) * time.Microsecond)
		span.Enter()

		sctx, step := forestz.StartSpan(ctx, name+"/step")
		forestz.Debug(sctx, name+" working", "step", i)
		step.Finish()
	}
	forestz.Info(ctx, name+" done")
	return ctx.Err()
}

// requireSpan narrows a tree to a span or fails the test.
func requireSpan(t *testing.T, tree forestz.Tree) *forestz.Span {
	t.Helper()
	span, err := tree.AsSpan()
	if err != nil {
		t.Fatalf("Expected span, got %v", err)
	}
	return span
}
