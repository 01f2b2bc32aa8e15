// Package fxforest integrates forestz into Fx-based applications.
//
// The module provides the diagnostics logger, the Runtime and its Tracer,
// and registers a shutdown hook that drains the worker before the
// application exits.
//
// Usage:
//
//	app := fx.New(
//	    fx.Supply(cfg), // a forestz.Config
//	    fxforest.Module,
//	    // other modules...
//	)
package fxforest

import (
	"context"
	"errors"
	"log"
	"os"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoobzio/forestz"
)

// Module defines the Fx module for forestz.
//
// Dependencies required by this module:
// - A forestz.Config instance must be available in the dependency injection container
var Module = fx.Module("forestz",
	fx.Provide(
		NewLogger,
		NewRuntime,
		func(l *Logger) *zap.Logger { return l.Zap },
		func(rt *forestz.Runtime) *forestz.Tracer { return rt.Tracer() },
	),
	fx.Invoke(RegisterLifecycle),
)

// Logger is the diagnostics logger provided by Module.
type Logger struct {
	Zap *zap.Logger
}

// NewLogger builds a JSON zap logger on stderr tagged with the service name
// and pid, at cfg.LogLevel.
func NewLogger(cfg forestz.Config) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	logLevel := zap.InfoLevel
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		logLevel = lvl
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(logLevel),
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]interface{}{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}

	logger, err := config.Build()
	if err != nil {
		log.Fatal(err)
	}
	return &Logger{Zap: logger}
}

// NewRuntime builds the Runtime described by cfg.
func NewRuntime(cfg forestz.Config, logger *Logger) (*forestz.Runtime, error) {
	return forestz.NewRuntimeFromConfig(cfg, logger.Zap)
}

// RegisterLifecycle shuts the runtime down when the application stops,
// waiting for queued trees within the stop timeout, then flushes the logger.
func RegisterLifecycle(lc fx.Lifecycle, rt *forestz.Runtime, logger *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			err := rt.Shutdown(ctx)
			if serr := logger.Zap.Sync(); serr != nil && !isInvalidSync(serr) {
				err = multierr.Append(err, serr)
			}
			return err
		},
	})
}

// isInvalidSync reports the error returned when syncing a terminal, which
// is not a real failure.
func isInvalidSync(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
