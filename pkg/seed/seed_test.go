package seed

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/engine/detect"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

var testNow = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

func apply(t *testing.T, st store.Store, opts Options) Summary {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	if opts.Now.IsZero() {
		opts.Now = testNow
	}
	sum, err := Apply(context.Background(), st, opts)
	require.NoError(t, err)
	return sum
}

func TestApplyDefaults(t *testing.T) {
	st := store.NewMemoryStore()
	sum := apply(t, st, Options{})

	assert.Equal(t, 2, sum.Accounts)
	// 26 resources per account across the eleven tables.
	assert.Equal(t, 52, sum.Resources)
	// 5 running instances + 2 buckets + 2 log groups, 7 days, 2 accounts.
	assert.Equal(t, 126, sum.Metrics)

	instances, err := store.All[resource.Instance](context.Background(), st)
	require.NoError(t, err)
	assert.Len(t, instances, 12)
}

func TestApplyHistoryEndsYesterday(t *testing.T) {
	st := store.NewMemoryStore()
	apply(t, st, Options{Accounts: 1, HistoryDays: 5})

	metrics, err := store.All[resource.DailyMetric](context.Background(), st)
	require.NoError(t, err)
	require.NotEmpty(t, metrics)

	var max, min time.Time
	for i, m := range metrics {
		if i == 0 || m.Date.After(max) {
			max = m.Date
		}
		if i == 0 || m.Date.Before(min) {
			min = m.Date
		}
	}
	yesterday := testNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	assert.Equal(t, yesterday, max)
	assert.Equal(t, yesterday.AddDate(0, 0, -4), min)
}

func TestApplySeedsDetectableWaste(t *testing.T) {
	st := store.NewMemoryStore()
	apply(t, st, Options{Accounts: 1})

	eng := detect.NewEngine(st, detect.WithClock(func() time.Time { return testNow }))
	scan, err := eng.DetectAll(context.Background(), detect.ScanOptions{Bypass: true})
	require.NoError(t, err)

	for _, scenario := range []string{
		detect.ScenarioIdleInstance,
		detect.ScenarioIdleCIRunner,
		detect.ScenarioOverProvisionedInstance,
		detect.ScenarioStaticASG,
		detect.ScenarioForgottenPreview,
		detect.ScenarioIdleRDS,
		detect.ScenarioMultiAZNonProd,
		detect.ScenarioIdleCache,
		detect.ScenarioEmptyLoadBalancer,
		detect.ScenarioOverProvisionedLambda,
		detect.ScenarioUnusedLambda,
		detect.ScenarioLambdaTimeout,
		detect.ScenarioGP2Volume,
		detect.ScenarioUnattachedVolume,
		detect.ScenarioOldSnapshot,
		detect.ScenarioS3NoLifecycle,
		detect.ScenarioLogNoRetention,
		detect.ScenarioOrphanedEIP,
	} {
		assert.NotZero(t, scan.Summary.ByScenario[scenario], "expected findings for %s", scenario)
	}
	assert.Greater(t, scan.Summary.TotalPotentialSavings, 0.0)

	for _, d := range scan.Detections {
		assert.LessOrEqual(t, d.PotentialSavings, d.MonthlyCost, "savings exceed cost for %s", d.DetectionID)
		assert.GreaterOrEqual(t, d.Confidence, 0, "confidence below zero for %s", d.DetectionID)
		assert.LessOrEqual(t, d.Confidence, 100, "confidence above 100 for %s", d.DetectionID)
	}
}

func TestApplyTwiceDoesNotError(t *testing.T) {
	st := store.NewMemoryStore()
	apply(t, st, Options{Accounts: 1})

	// Every row id is freshly generated, so re-seeding the same store
	// adds a second estate rather than failing on key collisions.
	_, err := Apply(context.Background(), st, Options{
		Accounts: 1,
		Rand:     rand.New(rand.NewPCG(1, 2)),
		Now:      testNow,
	})
	require.NoError(t, err)
}
