// Package recommend turns detections into durable recommendations and
// drives them through the approval state machine.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wastelens/wastelens/pkg/engine/detect"
	"github.com/wastelens/wastelens/pkg/engine/executor"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

// ActionExecutor is the executor dependency; the execute transition
// invokes it inline.
type ActionExecutor interface {
	Execute(ctx context.Context, p executor.Params) (executor.Result, error)
}

// Service owns the recommendation table.
type Service struct {
	store  store.Store
	exec   ActionExecutor
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the recommendation service.
func NewService(st store.Store, exec ActionExecutor, opts ...Option) *Service {
	s := &Service{
		store:  st,
		exec:   exec,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestResult reports one ingestion pass.
type IngestResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Ingest inserts one pending recommendation per detection not already
// recorded. detection_id is the idempotency key; re-ingesting the same
// detections creates nothing.
func (s *Service) Ingest(ctx context.Context, detections []detect.Detection) (IngestResult, error) {
	existing, err := store.All[resource.Recommendation](ctx, s.store)
	if err != nil {
		return IngestResult{}, wasteerr.Storef("list recommendations: %v", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.DetectionID] = true
	}

	var res IngestResult
	now := s.now()
	for _, d := range detections {
		if seen[d.DetectionID] {
			res.Skipped++
			continue
		}
		rec := recommendationFrom(d, now)
		if err := s.store.Insert(ctx, rec); err != nil {
			return res, wasteerr.Storef("insert recommendation %s: %v", rec.DetectionID, err)
		}
		seen[d.DetectionID] = true
		res.Created++
	}

	s.logger.Info("detections ingested",
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

func recommendationFrom(d detect.Detection, now time.Time) resource.Recommendation {
	details := make(map[string]any, len(d.Details.Extra))
	for k, v := range d.Details.Extra {
		details[k] = v
	}
	return resource.Recommendation{
		ID:           uuid.NewString(),
		DetectionID:  d.DetectionID,
		ScenarioID:   d.ScenarioID,
		ResourceType: d.ResourceType,
		ResourceID:   d.ResourceID,
		ResourceName: d.ResourceName,
		AccountID:    d.AccountID,
		Region:       d.Region,
		Env:          d.Env,

		Action:           d.Action,
		Confidence:       d.Confidence,
		Mode:             d.Mode,
		MonthlyCost:      d.MonthlyCost,
		PotentialSavings: d.PotentialSavings,
		ImpactLevel:      d.ImpactLevel(),
		Title:            fmt.Sprintf("%s: %s", detect.Label(d.ScenarioID), d.ResourceName),
		Description: fmt.Sprintf("%s on %s could save $%.2f/month",
			detect.Label(d.ScenarioID), d.ResourceName, d.PotentialSavings),

		RecommendedInstanceType: d.Details.RecommendedInstanceType,
		RecommendedTimeout:      d.Details.RecommendedTimeout,
		Details:                 details,

		Status:    resource.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Filter selects recommendations for List.
type Filter struct {
	Statuses     []string
	ScenarioID   string
	ResourceType string
	ImpactLevel  string
	Limit        int
	Offset       int
}

func (f Filter) wantsPending() bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if st == resource.StatusPending {
			return true
		}
	}
	return false
}

func (f Filter) matches(r resource.Recommendation) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			if r.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.ScenarioID != "" && r.ScenarioID != f.ScenarioID {
		return false
	}
	if f.ResourceType != "" && r.ResourceType != f.ResourceType {
		return false
	}
	if f.ImpactLevel != "" && r.ImpactLevel != f.ImpactLevel {
		return false
	}
	return true
}

// List returns recommendations matching the filter. When the filter
// includes pending rows the result is ordered by impact level descending,
// then by created_at descending; otherwise newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]resource.Recommendation, error) {
	all, err := store.All[resource.Recommendation](ctx, s.store)
	if err != nil {
		return nil, wasteerr.Storef("list recommendations: %v", err)
	}

	matched := make([]resource.Recommendation, 0, len(all))
	for _, r := range all {
		if f.matches(r) {
			matched = append(matched, r)
		}
	}

	byImpact := f.wantsPending()
	sort.SliceStable(matched, func(i, j int) bool {
		if byImpact {
			ri, rj := resource.ImpactRank(matched[i].ImpactLevel), resource.ImpactRank(matched[j].ImpactLevel)
			if ri != rj {
				return ri > rj
			}
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []resource.Recommendation{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// Rollup is one aggregation bucket in a Summary.
type Rollup struct {
	Count   int     `json:"count"`
	Savings float64 `json:"savings"`
}

// Summary aggregates the recommendation table.
type Summary struct {
	Total                 int               `json:"total"`
	ByStatus              map[string]int    `json:"by_status"`
	TotalPotentialSavings float64           `json:"total_potential_savings"`
	PendingSavings        float64           `json:"pending_savings"`
	ByResourceType        map[string]Rollup `json:"by_resource_type"`
	ByScenario            map[string]Rollup `json:"by_scenario"`
}

// Summarize computes the Summary over the full table.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	all, err := store.All[resource.Recommendation](ctx, s.store)
	if err != nil {
		return Summary{}, wasteerr.Storef("list recommendations: %v", err)
	}

	sum := Summary{
		ByStatus:       make(map[string]int),
		ByResourceType: make(map[string]Rollup),
		ByScenario:     make(map[string]Rollup),
	}
	for _, r := range all {
		sum.Total++
		sum.ByStatus[r.Status]++
		sum.TotalPotentialSavings += r.PotentialSavings
		if r.Status == resource.StatusPending {
			sum.PendingSavings += r.PotentialSavings
		}

		rt := sum.ByResourceType[r.ResourceType]
		rt.Count++
		rt.Savings += r.PotentialSavings
		sum.ByResourceType[r.ResourceType] = rt

		sc := sum.ByScenario[r.ScenarioID]
		sc.Count++
		sc.Savings += r.PotentialSavings
		sum.ByScenario[r.ScenarioID] = sc
	}
	return sum, nil
}

// Get returns one recommendation by id.
func (s *Service) Get(ctx context.Context, id string) (resource.Recommendation, error) {
	rec, ok, err := store.ByKey[resource.Recommendation](ctx, s.store, "id", id)
	if err != nil {
		return resource.Recommendation{}, wasteerr.Storef("get recommendation %s: %v", id, err)
	}
	if !ok {
		return resource.Recommendation{}, wasteerr.NotFoundf("recommendation %s", id)
	}
	return rec, nil
}

// Delete removes one recommendation by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, resource.TableRecommendations, id); err != nil {
		return wasteerr.Storef("delete recommendation %s: %v", id, err)
	}
	return nil
}
