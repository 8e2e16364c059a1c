package recommend

import (
	"context"
	"log/slog"
	"time"

	"github.com/wastelens/wastelens/pkg/engine/executor"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
)

// Transition actions accepted by the state machine.
const (
	ActionApprove           = "approve"
	ActionReject            = "reject"
	ActionSnooze            = "snooze"
	ActionSchedule          = "schedule"
	ActionExecute           = "execute"
	ActionApproveAndExecute = "approve_and_execute"
)

// TransitionParams carry the per-action inputs.
type TransitionParams struct {
	ActionedBy string    `json:"actioned_by,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Days       int       `json:"days,omitempty"`
	Date       time.Time `json:"date,omitempty"`
}

// Transition applies one state machine action. Disallowed moves fail with
// an invalid-transition error and leave the row untouched. The approve
// action doubles as "unsnooze": on a snoozed row it moves back to pending
// rather than to approved. Execute runs the executor inline; on execution
// failure the row keeps its prior status and the failed Result is returned
// alongside the error. The compound approve_and_execute action approves a
// pending row and runs the executor in the same call; if execution fails
// the row stays approved for a retry.
func (s *Service) Transition(ctx context.Context, id, action string, p TransitionParams) (resource.Recommendation, *executor.Result, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return resource.Recommendation{}, nil, err
	}

	now := s.now()
	switch action {
	case ActionApprove:
		switch rec.Status {
		case resource.StatusPending:
			rec.Status = resource.StatusApproved
			if p.ActionedBy != "" {
				rec.ActionedBy = &p.ActionedBy
			}
			rec.ActionedAt = &now
		case resource.StatusSnoozed:
			rec.Status = resource.StatusPending
			rec.SnoozedUntil = nil
		default:
			return rec, nil, wasteerr.InvalidTransitionf("cannot approve from %s", rec.Status)
		}

	case ActionReject:
		if rec.Status != resource.StatusPending {
			return rec, nil, wasteerr.InvalidTransitionf("cannot reject from %s", rec.Status)
		}
		rec.Status = resource.StatusRejected
		if p.Reason != "" {
			rec.RejectionReason = &p.Reason
		}
		if p.ActionedBy != "" {
			rec.ActionedBy = &p.ActionedBy
		}
		rec.ActionedAt = &now

	case ActionSnooze:
		if rec.Status != resource.StatusPending {
			return rec, nil, wasteerr.InvalidTransitionf("cannot snooze from %s", rec.Status)
		}
		if p.Days <= 0 {
			return rec, nil, wasteerr.InvalidTransitionf("snooze requires days > 0")
		}
		until := now.AddDate(0, 0, p.Days)
		rec.Status = resource.StatusSnoozed
		rec.SnoozedUntil = &until

	case ActionSchedule:
		if rec.Status != resource.StatusPending {
			return rec, nil, wasteerr.InvalidTransitionf("cannot schedule from %s", rec.Status)
		}
		if !p.Date.After(now) {
			return rec, nil, wasteerr.InvalidTransitionf("schedule requires a future date")
		}
		date := p.Date
		rec.Status = resource.StatusScheduled
		rec.ScheduledFor = &date

	case ActionApproveAndExecute:
		if rec.Status != resource.StatusPending {
			return rec, nil, wasteerr.InvalidTransitionf("cannot approve and execute from %s", rec.Status)
		}
		rec.Status = resource.StatusApproved
		if p.ActionedBy != "" {
			rec.ActionedBy = &p.ActionedBy
		}
		rec.ActionedAt = &now
		rec.UpdatedAt = now
		if err := s.store.Update(ctx, rec); err != nil {
			return rec, nil, wasteerr.Storef("update recommendation %s: %v", rec.ID, err)
		}
		res, execErr := s.exec.Execute(ctx, s.executorParams(rec))
		if execErr != nil {
			// The approval stands; the row stays approved for a retry.
			return rec, &res, execErr
		}
		rec.Status = resource.StatusExecuted
		rec.UpdatedAt = now
		if err := s.store.Update(ctx, rec); err != nil {
			return rec, &res, wasteerr.Storef("update recommendation %s: %v", rec.ID, err)
		}
		return rec, &res, nil

	case ActionExecute:
		switch rec.Status {
		case resource.StatusPending, resource.StatusApproved, resource.StatusScheduled:
		default:
			return rec, nil, wasteerr.InvalidTransitionf("cannot execute from %s", rec.Status)
		}
		res, execErr := s.exec.Execute(ctx, s.executorParams(rec))
		if execErr != nil {
			// Row keeps its prior status; the audit log records the failure.
			return rec, &res, execErr
		}
		rec.Status = resource.StatusExecuted
		rec.ActionedAt = &now
		if p.ActionedBy != "" {
			rec.ActionedBy = &p.ActionedBy
		}
		rec.UpdatedAt = now
		if err := s.store.Update(ctx, rec); err != nil {
			return rec, &res, wasteerr.Storef("update recommendation %s: %v", rec.ID, err)
		}
		return rec, &res, nil

	default:
		return rec, nil, wasteerr.InvalidTransitionf("unknown transition action %q", action)
	}

	rec.UpdatedAt = now
	if err := s.store.Update(ctx, rec); err != nil {
		return rec, nil, wasteerr.Storef("update recommendation %s: %v", rec.ID, err)
	}
	s.logger.Info("recommendation transitioned",
		slog.String("id", rec.ID),
		slog.String("action", action),
		slog.String("status", rec.Status))
	return rec, nil, nil
}

// executorParams maps a recommendation onto executor inputs. The two
// authoritative detail keys are injected from their first-class columns.
func (s *Service) executorParams(rec resource.Recommendation) executor.Params {
	details := make(map[string]any, len(rec.Details)+2)
	for k, v := range rec.Details {
		details[k] = v
	}
	if rec.RecommendedInstanceType != "" {
		details["recommendedInstanceType"] = rec.RecommendedInstanceType
	}
	if rec.RecommendedTimeout > 0 {
		details["recommendedTimeout"] = rec.RecommendedTimeout
	}
	return executor.Params{
		Action:       rec.Action,
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		ResourceName: rec.ResourceName,
		DetectionID:  rec.DetectionID,
		ScenarioID:   rec.ScenarioID,
		Details:      details,
	}
}
