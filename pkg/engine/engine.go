// Package engine assembles the waste optimization runtime: store,
// detection, recommendations, executor, drift, and their shared ambient
// concerns (logging, tracing, policy exclusions).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wastelens/wastelens/pkg/engine/audit"
	"github.com/wastelens/wastelens/pkg/engine/detect"
	"github.com/wastelens/wastelens/pkg/engine/drift"
	"github.com/wastelens/wastelens/pkg/engine/executor"
	"github.com/wastelens/wastelens/pkg/engine/mode"
	"github.com/wastelens/wastelens/pkg/engine/policy"
	"github.com/wastelens/wastelens/pkg/engine/recommend"
	"github.com/wastelens/wastelens/pkg/store"
	"github.com/wastelens/wastelens/pkg/telemetry"
	"github.com/wastelens/wastelens/pkg/version"
)

// Config holds engine settings.
type Config struct {
	// DatabaseDSN selects the postgres store; empty runs in-memory.
	DatabaseDSN string

	// CacheTTL bounds detection scan staleness.
	CacheTTL time.Duration

	// TreatMissingMetricsAsIdle decides the null-metric idle branch.
	TreatMissingMetricsAsIdle bool

	// Exclusions are CEL suppression rules applied to every scan.
	Exclusions []policy.ExclusionRule

	// Telemetry config.
	OtelEndpoint  string
	SkipTelemetry bool // set when embedding in an app that already has OTEL

	JSONLogs bool
	Verbose  bool

	// Dependencies.
	Logger *slog.Logger
}

// Engine is the runtime core.
type Engine struct {
	Store           store.Store
	Detector        *detect.Engine
	Executor        *executor.Executor
	Recommendations *recommend.Service
	Audit           *audit.Log
	Modes           *mode.Manager
	Drift           *drift.Engine
	Policy          *policy.Engine

	Logger *slog.Logger
	Tracer trace.Tracer

	config            Config
	shutdownTelemetry func(context.Context) error
}

// Option defines a functional configuration override.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

// WithStore injects a pre-built store, bypassing DSN resolution.
func WithStore(st store.Store) Option {
	return func(e *Engine) { e.Store = st }
}

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
	}
}

// New initializes the Engine and every subsystem.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Logger: slog.New(handler),
		Tracer: otel.Tracer("wastelens/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	slog.SetDefault(e.Logger)

	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, e.config.OtelEndpoint)
		if err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		} else {
			e.shutdownTelemetry = shutdown
		}
	}

	if e.Store == nil {
		if e.config.DatabaseDSN != "" {
			st, err := store.OpenGorm(e.config.DatabaseDSN)
			if err != nil {
				return nil, fmt.Errorf("open database: %w", err)
			}
			e.Store = st
			e.Logger.Info("using postgres store")
		} else {
			e.Store = store.NewMemoryStore()
			e.Logger.Info("using in-memory store")
		}
	}

	pol, err := policy.NewEngine(e.Logger)
	if err != nil {
		return nil, fmt.Errorf("init policy engine: %w", err)
	}
	if err := pol.Compile(e.config.Exclusions); err != nil {
		return nil, fmt.Errorf("compile exclusions: %w", err)
	}
	e.Policy = pol

	detectOpts := []detect.Option{
		detect.WithLogger(e.Logger),
		detect.WithCache(detect.NewScanCache(e.config.CacheTTL)),
		detect.WithMissingMetricsIdle(e.config.TreatMissingMetricsAsIdle),
		detect.WithExclusionFilter(pol.Excluded),
	}
	e.Detector = detect.NewEngine(e.Store, detectOpts...)

	e.Audit = audit.NewLog(e.Store, e.Logger)
	e.Executor = executor.New(e.Store, e.Audit,
		executor.WithCache(e.Detector.Cache()),
		executor.WithLogger(e.Logger))
	e.Recommendations = recommend.NewService(e.Store, e.Executor,
		recommend.WithLogger(e.Logger))
	e.Modes = mode.NewManager(e.Store)
	e.Drift = drift.NewEngine(e.Store, e.Detector, e.Executor, e.Modes,
		drift.WithLogger(e.Logger))

	return e, nil
}

// Close flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	if e.shutdownTelemetry != nil {
		return e.shutdownTelemetry(ctx)
	}
	return nil
}

// RecoverPanic converts a panic into a recorded span and an error log.
// Deferred by long-running entry points so a crash in one request or
// tick does not take the process down silently.
func (e *Engine) RecoverPanic(ctx context.Context) {
	if r := recover(); r != nil {
		_, span := e.Tracer.Start(ctx, "CriticalPanic")
		stack := debug.Stack()
		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "CRITICAL FAILURE")
		span.SetAttributes(
			attribute.String("crash.stack", string(stack)),
			attribute.String("crash.reason", fmt.Sprintf("%v", r)),
		)
		span.End()
		e.Logger.Error("CRITICAL FAILURE", "error", r, "stack", string(stack))
	}
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"refresh_token": true, "certificate": true, "signature": true,
		"credential": true, "ssh_key": true, "connection_string": true,
		"dsn": true, "database_dsn": true,
	}
	if sensitiveKeys[a.Key] {
		return slog.Attr{Key: a.Key, Value: slog.StringValue("[REDACTED]")}
	}
	return a
}
