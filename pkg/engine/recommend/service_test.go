package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/engine/detect"
	"github.com/wastelens/wastelens/pkg/engine/executor"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

var testNow = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

// fakeExecutor records calls and returns a scripted outcome.
type fakeExecutor struct {
	calls []executor.Params
	fail  bool
}

func (f *fakeExecutor) Execute(_ context.Context, p executor.Params) (executor.Result, error) {
	f.calls = append(f.calls, p)
	if f.fail {
		return executor.Result{Success: false, Action: p.Action, Message: "simulated failure"},
			errors.New("simulated failure")
	}
	return executor.Result{Success: true, Action: p.Action, ResourceID: p.ResourceID, Message: "done"}, nil
}

func newTestService(t *testing.T) (*Service, *fakeExecutor, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	exec := &fakeExecutor{}
	svc := NewService(st, exec, WithClock(func() time.Time { return testNow }))
	return svc, exec, st
}

func detection(id, scenario string, savings float64) detect.Detection {
	return detect.Detection{
		DetectionID:      scenario + "-" + id,
		ScenarioID:       scenario,
		ResourceType:     resource.TableInstances,
		ResourceID:       id,
		ResourceName:     "srv-" + id,
		AccountID:        "acct-001",
		Region:           "us-east-1",
		Env:              "dev",
		Action:           resource.ActionStopInstance,
		Confidence:       90,
		Mode:             detect.ModeAutoSafe,
		MonthlyCost:      savings * 1.2,
		PotentialSavings: savings,
		CreatedAt:        testNow,
	}
}

func TestIngestIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	dets := []detect.Detection{
		detection("a", detect.ScenarioIdleInstance, 14),
		detection("b", detect.ScenarioIdleInstance, 200),
	}

	first, err := svc.Ingest(ctx, dets)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, first.Skipped)

	second, err := svc.Ingest(ctx, dets)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Skipped)

	recs, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestIngestDuplicatesWithinBatch(t *testing.T) {
	svc, _, _ := newTestService(t)

	d := detection("a", detect.ScenarioIdleInstance, 14)
	res, err := svc.Ingest(context.Background(), []detect.Detection{d, d})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
}

func TestIngestPopulatesRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	d := detection("a", detect.ScenarioIdleInstance, 150)
	d.Details = detect.Details{
		RecommendedInstanceType: "t3.medium",
		RecommendedTimeout:      20,
		Extra:                   map[string]any{"avgCpu7d": 3.0},
	}
	_, err := svc.Ingest(ctx, []detect.Detection{d})
	require.NoError(t, err)

	recs, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, d.DetectionID, rec.DetectionID)
	assert.Equal(t, resource.StatusPending, rec.Status)
	assert.Equal(t, resource.ImpactHigh, rec.ImpactLevel)
	assert.Equal(t, "Idle instance: srv-a", rec.Title)
	assert.Equal(t, "t3.medium", rec.RecommendedInstanceType)
	assert.Equal(t, 20, rec.RecommendedTimeout)
	assert.Equal(t, 3.0, rec.Details["avgCpu7d"])
	assert.Equal(t, testNow, rec.CreatedAt)
}

func TestListOrdersPendingByImpact(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []detect.Detection{
		detection("low", detect.ScenarioIdleInstance, 5),
		detection("critical", detect.ScenarioIdleInstance, 900),
		detection("medium", detect.ScenarioIdleInstance, 40),
	})
	require.NoError(t, err)

	recs, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, resource.ImpactCritical, recs[0].ImpactLevel)
	assert.Equal(t, resource.ImpactMedium, recs[1].ImpactLevel)
	assert.Equal(t, resource.ImpactLow, recs[2].ImpactLevel)
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rds := detection("db", detect.ScenarioIdleRDS, 80)
	rds.ResourceType = resource.TableRDSInstances
	_, err := svc.Ingest(ctx, []detect.Detection{
		detection("a", detect.ScenarioIdleInstance, 14),
		rds,
	})
	require.NoError(t, err)

	byScenario, err := svc.List(ctx, Filter{ScenarioID: detect.ScenarioIdleRDS})
	require.NoError(t, err)
	require.Len(t, byScenario, 1)
	assert.Equal(t, detect.ScenarioIdleRDS, byScenario[0].ScenarioID)

	byType, err := svc.List(ctx, Filter{ResourceType: resource.TableInstances})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	byStatus, err := svc.List(ctx, Filter{Statuses: []string{resource.StatusExecuted}})
	require.NoError(t, err)
	assert.Empty(t, byStatus)
}

func TestListLimitOffset(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []detect.Detection{
		detection("a", detect.ScenarioIdleInstance, 10),
		detection("b", detect.ScenarioIdleInstance, 10),
		detection("c", detect.ScenarioIdleInstance, 10),
	})
	require.NoError(t, err)

	page, err := svc.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := svc.List(ctx, Filter{Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	past, err := svc.List(ctx, Filter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestSummarize(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []detect.Detection{
		detection("a", detect.ScenarioIdleInstance, 100),
		detection("b", detect.ScenarioIdleInstance, 50),
	})
	require.NoError(t, err)

	recs, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	_, _, err = svc.Transition(ctx, recs[0].ID, ActionReject, TransitionParams{})
	require.NoError(t, err)

	sum, err := svc.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.ByStatus[resource.StatusPending])
	assert.Equal(t, 1, sum.ByStatus[resource.StatusRejected])
	assert.InDelta(t, 150, sum.TotalPotentialSavings, 0.0001)
	assert.InDelta(t, 50, sum.PendingSavings, 0.0001)
	assert.Equal(t, 2, sum.ByScenario[detect.ScenarioIdleInstance].Count)
	assert.Equal(t, 2, sum.ByResourceType[resource.TableInstances].Count)
}

func TestGetAndDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, wasteerr.ErrNotFound)

	_, err = svc.Ingest(ctx, []detect.Detection{detection("a", detect.ScenarioIdleInstance, 10)})
	require.NoError(t, err)
	recs, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got, err := svc.Get(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, recs[0].DetectionID, got.DetectionID)

	require.NoError(t, svc.Delete(ctx, recs[0].ID))
	assert.ErrorIs(t, svc.Delete(ctx, recs[0].ID), wasteerr.ErrNotFound)
}
