// Command forestdemo runs two interleaved tasks and prints one tree per task.
//
// Configuration comes from FOREST_* environment variables, optionally loaded
// from a .env file in the working directory.
package main

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/forestz"
	"github.com/zoobzio/forestz/fxforest"
)

func main() {
	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := forestz.ConfigFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	var tracer *forestz.Tracer
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fxforest.Module,
		fx.Populate(&tracer),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	ctx := tracer.Context(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range []string{"a", "b"} {
		g.Go(func() error { return task(gctx, name) })
	}
	if err := g.Wait(); err != nil {
		log.Print(err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatal(err)
	}
}

func task(ctx context.Context, name string) error {
	ctx, span := forestz.StartSpan(ctx, "task "+name)
	defer span.Finish()

	forestz.Info(ctx, "started", "task", name)
	for step := range 3 {
		// Waiting is not work: exit the span while sleeping.
		span.Exit()
		time.Sleep(time.Duration(rand.IntN(20)) * time.Millisecond)
		span.Enter()

		sctx, inner := forestz.StartSpan(ctx, "step")
		forestz.Debug(sctx, "working", "step", step)
		time.Sleep(time.Duration(1+rand.IntN(5)) * time.Millisecond)
		inner.Finish()
	}
	forestz.Warn(ctx, "finished", "task", name, forestz.ImmediateKey, name == "b")
	return ctx.Err()
}
