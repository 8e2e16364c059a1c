// Package drift advances the simulated world one virtual day per tick:
// cost random walks, usage accrual, live utilization refresh, and
// probabilistic injection of new waste. After the world moves, accounts
// in automated mode get their safe detections executed.
package drift

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wastelens/wastelens/pkg/engine/detect"
	"github.com/wastelens/wastelens/pkg/engine/executor"
	"github.com/wastelens/wastelens/pkg/engine/mode"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/store"
)

// Engine orchestrates the drift tick.
type Engine struct {
	store    store.Store
	detector *detect.Engine
	exec     *executor.Executor
	modes    *mode.Manager
	logger   *slog.Logger
	rng      *rand.Rand
	now      func() time.Time
}

// Option configures a drift Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRand overrides the randomness source; tests pass a seeded one.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds the drift engine.
func NewEngine(st store.Store, detector *detect.Engine, exec *executor.Executor, modes *mode.Manager, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		detector: detector,
		exec:     exec,
		modes:    modes,
		logger:   slog.Default(),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TickOptions tune one tick.
type TickOptions struct {
	// AutoExecute forces the automated execution pass regardless of the
	// persisted per-account mode.
	AutoExecute bool `json:"autoExecute"`
}

// ExecutionItem is one auto-executed action in a tick result.
type ExecutionItem struct {
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name"`
	Action       string `json:"action"`
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DurationMs   int64  `json:"duration_ms"`
}

// TickResult aggregates one drift tick.
type TickResult struct {
	World struct {
		AccountsAdvanced int      `json:"accounts_advanced"`
		AccountsSkipped  int      `json:"accounts_skipped"`
		MetricsWritten   int      `json:"metrics_written"`
		Injections       []string `json:"injections"`
		Errors           []string `json:"errors,omitempty"`
	} `json:"world"`
	Detection struct {
		TotalDetections    int     `json:"totalDetections"`
		AutoSafeDetections int     `json:"autoSafeDetections"`
		TotalSavings       float64 `json:"totalSavings"`
		AutoSafeSavings    float64 `json:"autoSafeSavings"`
	} `json:"detection"`
	Execution struct {
		Mode     string          `json:"mode"`
		Executed int             `json:"executed"`
		Success  int             `json:"success"`
		Failed   int             `json:"failed"`
		Results  []ExecutionItem `json:"results"`
	} `json:"execution"`
	Timing struct {
		DetectionMs int64 `json:"detectionMs"`
		TotalMs     int64 `json:"totalMs"`
	} `json:"timing"`
}

// Tick advances every account one virtual day, then runs the automated
// execution pass. Per-account failures are reported, not fatal; the tick
// succeeds as long as at least one account progressed or none had history.
func (e *Engine) Tick(ctx context.Context, opts TickOptions) (*TickResult, error) {
	ctx, span := otel.Tracer("wastelens/drift").Start(ctx, "drift.Tick")
	defer span.End()

	start := time.Now()
	res := &TickResult{}
	res.Execution.Results = []ExecutionItem{}
	res.World.Injections = []string{}

	world, err := e.loadWorld(ctx)
	if err != nil {
		return nil, err
	}

	for _, account := range world.accounts() {
		written, injected, err := e.advanceAccount(ctx, world, account)
		if err != nil {
			e.logger.Error("account drift failed",
				slog.String("account", account),
				slog.Any("error", err))
			res.World.Errors = append(res.World.Errors, account+": "+err.Error())
			res.World.AccountsSkipped++
			continue
		}
		if written == 0 && len(injected) == 0 {
			res.World.AccountsSkipped++
			continue
		}
		res.World.AccountsAdvanced++
		res.World.MetricsWritten += written
		res.World.Injections = append(res.World.Injections, injected...)
	}

	if res.World.AccountsAdvanced == 0 && len(res.World.Errors) > 0 {
		return nil, wasteerr.Storef("no account advanced: %s", strings.Join(res.World.Errors, "; "))
	}

	// World moved; cached scan results are stale.
	e.detector.Cache().Invalidate()

	detectStart := time.Now()
	scan, err := e.detector.DetectAll(ctx, detect.ScanOptions{Bypass: true})
	if err != nil {
		return nil, err
	}
	res.Timing.DetectionMs = time.Since(detectStart).Milliseconds()

	var autoSafe []detect.Detection
	for _, d := range scan.Detections {
		res.Detection.TotalDetections++
		res.Detection.TotalSavings += d.PotentialSavings
		if d.Mode == detect.ModeAutoSafe {
			res.Detection.AutoSafeDetections++
			res.Detection.AutoSafeSavings += d.PotentialSavings
			autoSafe = append(autoSafe, d)
		}
	}

	res.Execution.Mode = e.executionMode(ctx, world, opts)
	if res.Execution.Mode == "automated" {
		e.autoExecute(ctx, autoSafe, res)
	}

	res.Timing.TotalMs = time.Since(start).Milliseconds()
	span.SetAttributes(
		attribute.Int("accounts.advanced", res.World.AccountsAdvanced),
		attribute.Int("execution.executed", res.Execution.Executed),
	)
	e.logger.Info("drift tick complete",
		slog.Int("accounts_advanced", res.World.AccountsAdvanced),
		slog.Int("detections", res.Detection.TotalDetections),
		slog.Int("auto_executed", res.Execution.Executed),
		slog.Int64("total_ms", res.Timing.TotalMs))
	return res, nil
}

// executionMode resolves the effective mode for this tick: forced by the
// caller, or automated when any account persists automated mode.
func (e *Engine) executionMode(ctx context.Context, w *world, opts TickOptions) string {
	if opts.AutoExecute {
		return "automated"
	}
	for _, account := range w.accounts() {
		m, err := e.modes.Get(ctx, account)
		if err != nil {
			continue
		}
		if m == "automated" {
			return "automated"
		}
	}
	return "manual"
}

// autoExecute runs the mode-2 detections strictly in sequence. Sequencing
// preserves audit order and lets each action's cache invalidation take
// effect before the next would re-read.
func (e *Engine) autoExecute(ctx context.Context, detections []detect.Detection, res *TickResult) {
	for _, d := range detections {
		if ctx.Err() != nil {
			return
		}
		r, _ := e.exec.Execute(ctx, executor.Params{
			Action:       d.Action,
			ResourceType: d.ResourceType,
			ResourceID:   d.ResourceID,
			ResourceName: d.ResourceName,
			DetectionID:  d.DetectionID,
			ScenarioID:   d.ScenarioID,
			Details:      detailsMap(d),
		})
		res.Execution.Executed++
		if r.Success {
			res.Execution.Success++
		} else {
			res.Execution.Failed++
		}
		res.Execution.Results = append(res.Execution.Results, ExecutionItem{
			ResourceID:   d.ResourceID,
			ResourceName: d.ResourceName,
			Action:       d.Action,
			Success:      r.Success,
			Message:      r.Message,
			DurationMs:   r.DurationMs,
		})
	}
}

func detailsMap(d detect.Detection) map[string]any {
	m := make(map[string]any, len(d.Details.Extra)+2)
	for k, v := range d.Details.Extra {
		m[k] = v
	}
	if d.Details.RecommendedInstanceType != "" {
		m["recommendedInstanceType"] = d.Details.RecommendedInstanceType
	}
	if d.Details.RecommendedTimeout > 0 {
		m["recommendedTimeout"] = d.Details.RecommendedTimeout
	}
	return m
}

// Randomness helpers shared by the advance and injection passes.

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

func (e *Engine) chance(p float64) bool {
	return e.rng.Float64() < p
}
