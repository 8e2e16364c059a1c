// Package executor applies remediation actions to the inventory. Every
// call, successful or not, leaves exactly one audit entry.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wastelens/wastelens/pkg/engine/audit"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

// Params identify one remediation to apply.
type Params struct {
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	ResourceName string         `json:"resource_name"`
	DetectionID  string         `json:"detection_id"`
	ScenarioID   string         `json:"scenario_id"`
	Details      map[string]any `json:"details"`
}

// Result is the outcome of one action.
type Result struct {
	Success       bool           `json:"success"`
	Action        string         `json:"action"`
	ResourceID    string         `json:"resource_id"`
	ResourceType  string         `json:"resource_type"`
	Message       string         `json:"message"`
	PreviousState map[string]any `json:"previous_state,omitempty"`
	NewState      map[string]any `json:"new_state,omitempty"`
	ExecutedAt    time.Time      `json:"executed_at"`
	DurationMs    int64          `json:"duration_ms"`
}

// outcome is what a handler reports back to the dispatcher.
type outcome struct {
	message string
	prev    map[string]any
	next    map[string]any
}

// Invalidator is the scan cache hook fired after successful mutations.
type Invalidator interface {
	Invalidate()
}

// Executor dispatches actions to typed handlers. One action at a time;
// callers wanting sequencing guarantees serialize their own calls.
type Executor struct {
	store  store.Store
	audit  *audit.Log
	cache  Invalidator
	logger *slog.Logger
	actor  string
	now    func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache installs the scan cache invalidated after successful actions.
func WithCache(c Invalidator) Option {
	return func(e *Executor) { e.cache = c }
}

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithActor sets the executed_by recorded on audit entries.
func WithActor(actor string) Option {
	return func(e *Executor) { e.actor = actor }
}

// WithClock overrides the executor clock.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New builds an executor over the store and audit log.
func New(st store.Store, log *audit.Log, opts ...Option) *Executor {
	e := &Executor{
		store:  st,
		audit:  log,
		logger: slog.Default(),
		actor:  "executor",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type handler func(ctx context.Context, e *Executor, p Params) (outcome, error)

// handlers maps each action to its mutation.
var handlers = map[string]handler{
	resource.ActionTerminateInstance:      terminateInstance,
	resource.ActionStopInstance:           stopInstance,
	resource.ActionRightsizeInstance:      rightsizeInstance,
	resource.ActionTerminateASG:           terminateASG,
	resource.ActionScaleDownASG:           scaleDownASG,
	resource.ActionEnableASGScaling:       enableASGScaling,
	resource.ActionReleaseEIP:             releaseEIP,
	resource.ActionDeleteVolume:           deleteVolume,
	resource.ActionUpgradeVolumeType:      upgradeVolumeType,
	resource.ActionDeleteSnapshot:         deleteSnapshot,
	resource.ActionDeleteOrphanedSnapshot: deleteSnapshot,
	resource.ActionAddLifecyclePolicy:     addLifecyclePolicy,
	resource.ActionAddVersionExpiration:   addVersionExpiration,
	resource.ActionSetRetention:           setRetention,
	resource.ActionStopRDS:                stopRDS,
	resource.ActionDownsizeRDS:            downsizeRDS,
	resource.ActionDisableMultiAZ:         disableMultiAZ,
	resource.ActionDeleteCache:            deleteCache,
	resource.ActionDeleteLB:               deleteLoadBalancer,
	resource.ActionDeleteEmptyLB:          deleteLoadBalancer,
	resource.ActionDeleteLambda:           deleteLambda,
	resource.ActionRightsizeLambda:        rightsizeLambda,
	resource.ActionOptimizeLambdaTimeout:  optimizeLambdaTimeout,
}

// Execute runs one action end to end: dispatch, mutate, audit, invalidate.
// Failures come back as a failed Result plus the taxonomy error; the audit
// entry is written either way.
func (e *Executor) Execute(ctx context.Context, p Params) (Result, error) {
	ctx, span := otel.Tracer("wastelens/executor").Start(ctx, "executor.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("action", p.Action),
		attribute.String("resource_id", p.ResourceID),
	)

	start := e.now()

	var (
		out outcome
		err error
	)
	h, known := handlers[p.Action]
	if !known {
		err = fmt.Errorf("%w: Unknown action type: %s", wasteerr.ErrUnknownAction, p.Action)
	} else {
		out, err = h(ctx, e, p)
	}

	res := Result{
		Success:       err == nil,
		Action:        p.Action,
		ResourceID:    p.ResourceID,
		ResourceType:  p.ResourceType,
		Message:       out.message,
		PreviousState: out.prev,
		NewState:      out.next,
		ExecutedAt:    start,
		DurationMs:    e.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		res.Message = userMessage(err)
	}

	entry := resource.AuditEntry{
		Action:        p.Action,
		ResourceType:  p.ResourceType,
		ResourceID:    p.ResourceID,
		ResourceName:  p.ResourceName,
		ScenarioID:    p.ScenarioID,
		DetectionID:   p.DetectionID,
		Success:       res.Success,
		Message:       res.Message,
		PreviousState: res.PreviousState,
		NewState:      res.NewState,
		ExecutedAt:    start,
		DurationMs:    res.DurationMs,
		ExecutedBy:    e.actor,
	}
	// Audit write failures are logged inside Append and never mask the
	// action outcome.
	auditCtx := ctx
	if auditCtx.Err() != nil {
		auditCtx = context.WithoutCancel(ctx)
	}
	_ = e.audit.Append(auditCtx, entry)

	if res.Success {
		if e.cache != nil {
			e.cache.Invalidate()
		}
		e.logger.Info("action executed",
			slog.String("action", p.Action),
			slog.String("resource_id", p.ResourceID),
			slog.Int64("duration_ms", res.DurationMs))
	} else {
		e.logger.Warn("action failed",
			slog.String("action", p.Action),
			slog.String("resource_id", p.ResourceID),
			slog.String("message", res.Message))
	}
	return res, err
}

// userMessage strips the taxonomy prefix so API clients see the human
// half of "sentinel: detail".
func userMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []string{
		wasteerr.ErrUnknownAction.Error(),
		wasteerr.ErrNotFound.Error(),
		wasteerr.ErrMissingRecommendation.Error(),
		wasteerr.ErrStore.Error(),
	} {
		if trimmed := strings.TrimPrefix(msg, sentinel+": "); trimmed != msg {
			return trimmed
		}
	}
	return msg
}

// fetch resolves a target row by primary key first, then by each natural
// key field with the id, then with the resource name.
func fetch[T resource.Record](ctx context.Context, st store.Store, p Params, naturalFields ...string) (T, error) {
	var zero T
	if row, ok, err := store.ByKey[T](ctx, st, "id", p.ResourceID); err != nil {
		return zero, wasteerr.Storef("lookup %s: %v", p.ResourceID, err)
	} else if ok {
		return row, nil
	}
	for _, field := range naturalFields {
		for _, value := range []string{p.ResourceID, p.ResourceName} {
			if value == "" {
				continue
			}
			if row, ok, err := store.ByKey[T](ctx, st, field, value); err != nil {
				return zero, wasteerr.Storef("lookup %s=%s: %v", field, value, err)
			} else if ok {
				return row, nil
			}
		}
	}
	return zero, wasteerr.NotFoundf("Resource not found: %s", p.ResourceID)
}

// detailString reads an executor-authoritative detail key.
func detailString(details map[string]any, key string) (string, bool) {
	v, ok := details[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// detailInt reads a numeric detail key, tolerating JSON float decoding.
func detailInt(details map[string]any, key string) (int, bool) {
	switch v := details[key].(type) {
	case int:
		return v, v > 0
	case float64:
		return int(v), v > 0
	}
	return 0, false
}
