package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/engine/detect"
	"github.com/wastelens/wastelens/pkg/engine/policy"
	"github.com/wastelens/wastelens/pkg/engine/recommend"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/seed"
	"github.com/wastelens/wastelens/pkg/store"
)

func quietConfig() Config {
	return Config{
		SkipTelemetry: true,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestNewWiresEverySubsystem(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx,
		WithStore(store.NewMemoryStore()),
		WithConfig(quietConfig()))
	require.NoError(t, err)

	assert.NotNil(t, eng.Store)
	assert.NotNil(t, eng.Detector)
	assert.NotNil(t, eng.Executor)
	assert.NotNil(t, eng.Recommendations)
	assert.NotNil(t, eng.Audit)
	assert.NotNil(t, eng.Modes)
	assert.NotNil(t, eng.Drift)
	assert.NotNil(t, eng.Policy)

	assert.NoError(t, eng.Close(ctx))
}

func TestNewDefaultsToMemoryStore(t *testing.T) {
	eng, err := New(context.Background(), WithConfig(quietConfig()))
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, eng.Store)
}

func TestNewRejectsBrokenExclusions(t *testing.T) {
	cfg := quietConfig()
	cfg.Exclusions = []policy.ExclusionRule{{ID: "bad", Condition: `env ==`}}

	_, err := New(context.Background(), WithConfig(cfg))
	assert.Error(t, err)
}

func TestAutoSafeFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	eng, err := New(ctx, WithStore(st), WithConfig(quietConfig()))
	require.NoError(t, err)

	_, err = seed.Apply(ctx, st, seed.Options{Accounts: 1})
	require.NoError(t, err)

	scan, err := eng.Detector.DetectAll(ctx, detect.ScanOptions{Bypass: true})
	require.NoError(t, err)
	require.NotEmpty(t, scan.Detections)

	ingested, err := eng.Recommendations.Ingest(ctx, scan.Detections)
	require.NoError(t, err)
	assert.Equal(t, len(scan.Detections), ingested.Created)

	// Pick an auto-safe idle-instance recommendation and drive it through.
	recs, err := eng.Recommendations.List(ctx, recommend.Filter{
		ScenarioID: detect.ScenarioIdleInstance,
	})
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	target := recs[0]

	rec, res, err := eng.Recommendations.Transition(ctx, target.ID,
		recommend.ActionApproveAndExecute, recommend.TransitionParams{ActionedBy: "e2e"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, resource.StatusExecuted, rec.Status)

	got, ok, err := store.ByKey[resource.Instance](ctx, st, "id", target.ResourceID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resource.InstanceStopped, got.State)

	entries, err := eng.Audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, target.ResourceID, entries[0].ResourceID)
	assert.True(t, entries[0].Success)

	// The executed action invalidated the scan cache; a plain re-scan
	// no longer reports the stopped instance.
	rescan, err := eng.Detector.DetectAll(ctx, detect.ScanOptions{})
	require.NoError(t, err)
	assert.Less(t, rescan.Summary.ByScenario[detect.ScenarioIdleInstance],
		scan.Summary.ByScenario[detect.ScenarioIdleInstance])
}
