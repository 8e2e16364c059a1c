package recommend

import (
	"context"
	"log/slog"
	"time"

	"github.com/wastelens/wastelens/pkg/resource"
)

// DefaultPollInterval is how often the scheduled poller wakes up.
const DefaultPollInterval = time.Minute

// Poller drives scheduled recommendations whose scheduled_for has passed
// through the execute transition.
type Poller struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller builds a poller over the service.
func NewPoller(s *Service, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{service: s, interval: interval, logger: logger}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error("scheduled poll failed", slog.Any("error", err))
			}
		}
	}
}

// RunOnce executes every due scheduled recommendation and returns how
// many were driven. Per-row failures are logged and skipped; a failed
// execution leaves the row scheduled for the next poll.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	due, err := p.service.List(ctx, Filter{Statuses: []string{resource.StatusScheduled}})
	if err != nil {
		return 0, err
	}

	now := p.service.now()
	executed := 0
	for _, rec := range due {
		if rec.ScheduledFor == nil || rec.ScheduledFor.After(now) {
			continue
		}
		if _, _, err := p.service.Transition(ctx, rec.ID, ActionExecute, TransitionParams{ActionedBy: "scheduler"}); err != nil {
			p.logger.Warn("scheduled execution failed",
				slog.String("id", rec.ID),
				slog.Any("error", err))
			continue
		}
		executed++
	}
	if executed > 0 {
		p.logger.Info("scheduled recommendations executed", slog.Int("count", executed))
	}
	return executed, nil
}
