// Package policy evaluates operator-defined CEL exclusion rules against
// detections. A detection matching any rule is suppressed before it
// reaches the recommendation store.
package policy

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"

	"github.com/wastelens/wastelens/pkg/engine/detect"
)

// ExclusionRule is one user-defined suppression rule.
type ExclusionRule struct {
	ID        string `json:"id" mapstructure:"id"`
	Condition string `json:"condition" mapstructure:"condition"` // CEL: "scenario == 'idle_instance' && env == 'prod'"
	Reason    string `json:"reason,omitempty" mapstructure:"reason"`
}

// Engine compiles exclusion rules and matches detections against them.
type Engine struct {
	env      *cel.Env
	programs map[string]cel.Program
	logger   *slog.Logger
}

// NewEngine initializes the CEL environment with the detection variable
// declarations.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("scenario", decls.String),
			decls.NewVar("action", decls.String),
			decls.NewVar("account", decls.String),
			decls.NewVar("region", decls.String),
			decls.NewVar("env", decls.String),
			decls.NewVar("resource_type", decls.String),
			decls.NewVar("resource_id", decls.String),
			decls.NewVar("resource_name", decls.String),
			decls.NewVar("confidence", decls.Int),
			decls.NewVar("cost", decls.Double),
			decls.NewVar("savings", decls.Double),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		env:      env,
		programs: make(map[string]cel.Program),
		logger:   logger,
	}, nil
}

// Compile compiles a list of exclusion rules into executable programs.
func (e *Engine) Compile(rules []ExclusionRule) error {
	for _, r := range rules {
		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("exclusion %s compilation error: %w", r.ID, issues.Err())
		}
		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("exclusion %s program creation error: %w", r.ID, err)
		}
		e.programs[r.ID] = prg
	}
	return nil
}

// Excluded reports whether any rule matches the detection. Evaluation
// errors suppress nothing: a broken rule must not hide real waste.
func (e *Engine) Excluded(d detect.Detection) bool {
	if len(e.programs) == 0 {
		return false
	}

	vars := map[string]any{
		"scenario":      d.ScenarioID,
		"action":        d.Action,
		"account":       d.AccountID,
		"region":        d.Region,
		"env":           d.Env,
		"resource_type": d.ResourceType,
		"resource_id":   d.ResourceID,
		"resource_name": d.ResourceName,
		"confidence":    d.Confidence,
		"cost":          d.MonthlyCost,
		"savings":       d.PotentialSavings,
	}

	for id, prg := range e.programs {
		out, _, err := prg.Eval(vars)
		if err != nil {
			e.logger.Error("exclusion evaluation failed", "rule_id", id, "error", err)
			continue
		}
		if match, ok := out.Value().(bool); ok && match {
			e.logger.Debug("detection excluded",
				"rule_id", id, "detection_id", d.DetectionID)
			return true
		}
	}
	return false
}
