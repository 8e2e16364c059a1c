package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/engine/audit"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

var testNow = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

type fakeCache struct{ invalidations int }

func (f *fakeCache) Invalidate() { f.invalidations++ }

func newTestExecutor(t *testing.T) (*Executor, store.Store, *fakeCache) {
	t.Helper()
	st := store.NewMemoryStore()
	cache := &fakeCache{}
	exec := New(st, audit.NewLog(st, nil),
		WithCache(cache),
		WithClock(func() time.Time { return testNow }))
	return exec, st, cache
}

func auditEntries(t *testing.T, st store.Store) []resource.AuditEntry {
	t.Helper()
	entries, err := store.All[resource.AuditEntry](context.Background(), st)
	require.NoError(t, err)
	return entries
}

func fp(v float64) *float64 { return &v }

func seedInstance(t *testing.T, st store.Store) resource.Instance {
	t.Helper()
	in := resource.Instance{
		Meta:         resource.Meta{ID: "res-1", AccountID: "acct-001", Region: "us-east-1", Env: "dev"},
		InstanceID:   "i-abc123",
		InstanceType: "m5.xlarge",
		Name:         "srv-1",
		State:        resource.InstanceRunning,
		AvgCPU7d:     fp(3),
	}
	require.NoError(t, st.Insert(context.Background(), in))
	return in
}

func TestExecuteUnknownAction(t *testing.T) {
	exec, st, cache := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Params{Action: "nuke_everything", ResourceID: "res-1"})
	require.ErrorIs(t, err, wasteerr.ErrUnknownAction)
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown action type: nuke_everything", res.Message)

	// The failure is audited and the cache untouched.
	entries := auditEntries(t, st)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "nuke_everything", entries[0].Action)
	assert.Zero(t, cache.invalidations)
}

func TestExecuteStopInstance(t *testing.T) {
	exec, st, cache := newTestExecutor(t)
	seedInstance(t, st)
	ctx := context.Background()

	res, err := exec.Execute(ctx, Params{
		Action:       resource.ActionStopInstance,
		ResourceType: resource.TableInstances,
		ResourceID:   "res-1",
		ResourceName: "srv-1",
		DetectionID:  "idle_instance-res-1",
		ScenarioID:   "idle_instance",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Stopped instance srv-1", res.Message)
	assert.Equal(t, resource.InstanceRunning, res.PreviousState["state"])
	assert.Equal(t, resource.InstanceStopped, res.NewState["state"])

	got, ok, err := store.ByKey[resource.Instance](ctx, st, "id", "res-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resource.InstanceStopped, got.State)

	assert.Equal(t, 1, cache.invalidations)
	entries := auditEntries(t, st)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, "idle_instance-res-1", entries[0].DetectionID)
	assert.Equal(t, "executor", entries[0].ExecutedBy)
}

func TestExecuteResolvesNaturalKey(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	seedInstance(t, st)

	res, err := exec.Execute(context.Background(), Params{
		Action:     resource.ActionTerminateInstance,
		ResourceID: "i-abc123", // Natural id, not the row id.
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestExecuteResourceNotFound(t *testing.T) {
	exec, st, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Params{
		Action:     resource.ActionStopInstance,
		ResourceID: "ghost",
	})
	require.ErrorIs(t, err, wasteerr.ErrNotFound)
	assert.Equal(t, "Resource not found: ghost", res.Message)
	assert.Len(t, auditEntries(t, st), 1)
}

func TestExecuteRightsizeInstance(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	seedInstance(t, st)
	ctx := context.Background()

	_, err := exec.Execute(ctx, Params{
		Action:     resource.ActionRightsizeInstance,
		ResourceID: "res-1",
	})
	require.ErrorIs(t, err, wasteerr.ErrMissingRecommendation)

	res, err := exec.Execute(ctx, Params{
		Action:     resource.ActionRightsizeInstance,
		ResourceID: "res-1",
		Details:    map[string]any{"recommendedInstanceType": "m5.large"},
	})
	require.NoError(t, err)
	assert.Equal(t, "m5.xlarge", res.PreviousState["instance_type"])

	got, _, err := store.ByKey[resource.Instance](ctx, st, "id", "res-1")
	require.NoError(t, err)
	assert.Equal(t, "m5.large", got.InstanceType)
}

func TestExecuteASGActions(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	g := resource.AutoscalingGroup{
		Meta:            resource.Meta{ID: "asg-1", AccountID: "acct-001"},
		Name:            "workers",
		MinSize:         2,
		MaxSize:         10,
		DesiredCapacity: 6,
	}
	require.NoError(t, st.Insert(ctx, g))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionScaleDownASG, ResourceID: "asg-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewState["desired_capacity"])
	assert.Equal(t, 2, res.NewState["min_size"])

	res, err = exec.Execute(ctx, Params{Action: resource.ActionEnableASGScaling, ResourceID: "asg-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewState["min_size"])
	assert.Equal(t, 6, res.NewState["max_size"]) // 2 x desired(3), above the floor of 4.

	res, err = exec.Execute(ctx, Params{Action: resource.ActionTerminateASG, ResourceID: "asg-1"})
	require.NoError(t, err)
	got, _, err := store.ByKey[resource.AutoscalingGroup](ctx, st, "id", "asg-1")
	require.NoError(t, err)
	assert.Zero(t, got.MinSize)
	assert.Zero(t, got.MaxSize)
	assert.Zero(t, got.DesiredCapacity)
	assert.Equal(t, 6, res.PreviousState["desired_capacity"])
}

func TestExecuteScaleDownASGFloorsAtOne(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	g := resource.AutoscalingGroup{
		Meta:            resource.Meta{ID: "asg-1"},
		Name:            "tiny",
		MinSize:         1,
		MaxSize:         2,
		DesiredCapacity: 1,
	}
	require.NoError(t, st.Insert(ctx, g))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionScaleDownASG, ResourceID: "asg-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewState["desired_capacity"])
}

func TestExecuteReleaseEIP(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	ip := resource.ElasticIP{
		Meta:         resource.Meta{ID: "eip-1"},
		AllocationID: "eipalloc-42",
		PublicIP:     "3.3.3.3",
		State:        resource.EIPUnassociated,
	}
	require.NoError(t, st.Insert(ctx, ip))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionReleaseEIP, ResourceID: "eip-1"})
	require.NoError(t, err)
	assert.Equal(t, "eipalloc-42", res.PreviousState["allocation_id"])
	assert.Equal(t, "3.3.3.3", res.PreviousState["public_ip"])
	assert.Equal(t, true, res.NewState["deleted"])

	_, ok, err := store.ByKey[resource.ElasticIP](ctx, st, "id", "eip-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecuteVolumeActions(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	v := resource.Volume{
		Meta:       resource.Meta{ID: "vol-row"},
		VolumeID:   "vol-42",
		VolumeType: "gp2",
		SizeGiB:    100,
		State:      resource.VolumeAvailable,
	}
	require.NoError(t, st.Insert(ctx, v))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionUpgradeVolumeType, ResourceID: "vol-42"})
	require.NoError(t, err)
	assert.Equal(t, "gp2", res.PreviousState["volume_type"])
	assert.Equal(t, "gp3", res.NewState["volume_type"])

	res, err = exec.Execute(ctx, Params{Action: resource.ActionDeleteVolume, ResourceID: "vol-42"})
	require.NoError(t, err)
	assert.Equal(t, resource.VolumeDeleted, res.NewState["state"])

	// Soft delete: the row stays for snapshot orphan checks.
	got, ok, err := store.ByKey[resource.Volume](ctx, st, "volume_id", "vol-42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resource.VolumeDeleted, got.State)
}

func TestExecuteDeleteSnapshotBothActions(t *testing.T) {
	for _, action := range []string{resource.ActionDeleteSnapshot, resource.ActionDeleteOrphanedSnapshot} {
		exec, st, _ := newTestExecutor(t)
		ctx := context.Background()
		require.NoError(t, st.Insert(ctx, resource.Snapshot{
			Meta:       resource.Meta{ID: "snap-row"},
			SnapshotID: "snap-42",
			SizeGiB:    200,
		}))

		res, err := exec.Execute(ctx, Params{Action: action, ResourceID: "snap-42"})
		require.NoError(t, err, action)
		assert.Equal(t, "snap-42", res.PreviousState["snapshot_id"])

		_, ok, err := store.ByKey[resource.Snapshot](ctx, st, "id", "snap-row")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestExecuteBucketActions(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, resource.S3Bucket{
		Meta:              resource.Meta{ID: "bkt-1"},
		Name:              "logs-raw",
		VersioningEnabled: true,
	}))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionAddLifecyclePolicy, ResourceID: "bkt-1"})
	require.NoError(t, err)
	assert.Empty(t, res.PreviousState["lifecycle_rules"])

	_, err = exec.Execute(ctx, Params{Action: resource.ActionAddVersionExpiration, ResourceID: "bkt-1"})
	require.NoError(t, err)

	got, _, err := store.ByKey[resource.S3Bucket](ctx, st, "id", "bkt-1")
	require.NoError(t, err)
	require.Len(t, got.LifecycleRules, 2)
	assert.Equal(t, "intelligent-tiering", got.LifecycleRules[0].ID)
	assert.Len(t, got.LifecycleRules[0].Transitions, 2)
	assert.Equal(t, "expire-noncurrent-versions", got.LifecycleRules[1].ID)
	require.NotNil(t, got.LifecycleRules[1].NoncurrentVersionExpiration)
	assert.Equal(t, 30, got.LifecycleRules[1].NoncurrentVersionExpiration.Days)
}

func TestExecuteSetRetention(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, resource.LogGroup{
		Meta: resource.Meta{ID: "lg-1"},
		Name: "/app/api",
	}))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionSetRetention, ResourceID: "lg-1"})
	require.NoError(t, err)
	assert.Nil(t, res.PreviousState["retention_in_days"])
	assert.Equal(t, 30, res.NewState["retention_in_days"])

	got, _, err := store.ByKey[resource.LogGroup](ctx, st, "id", "lg-1")
	require.NoError(t, err)
	require.NotNil(t, got.RetentionInDays)
	assert.Equal(t, 30, *got.RetentionInDays)
}

func TestExecuteRDSActions(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, resource.RDSInstance{
		Meta:          resource.Meta{ID: "db-1"},
		DBInstanceID:  "db-staging",
		InstanceClass: "db.t3.medium",
		State:         "available",
		MultiAZ:       true,
	}))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionDisableMultiAZ, ResourceID: "db-1"})
	require.NoError(t, err)
	assert.Equal(t, true, res.PreviousState["multi_az"])

	res, err = exec.Execute(ctx, Params{Action: resource.ActionDownsizeRDS, ResourceID: "db-1"})
	require.NoError(t, err)
	assert.Equal(t, "db.t3.small", res.NewState["instance_class"])

	res, err = exec.Execute(ctx, Params{Action: resource.ActionStopRDS, ResourceID: "db-1"})
	require.NoError(t, err)
	assert.Equal(t, "stopped", res.NewState["state"])
}

func TestExecuteDownsizeRDSAtFloorIsNoOpSuccess(t *testing.T) {
	exec, st, cache := newTestExecutor(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, resource.RDSInstance{
		Meta:          resource.Meta{ID: "db-1"},
		DBInstanceID:  "db-tiny",
		InstanceClass: "db.t3.micro",
		State:         "available",
	}))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionDownsizeRDS, ResourceID: "db-1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "db.t3.micro", res.NewState["instance_class"])
	assert.Equal(t, 1, cache.invalidations)
}

func TestExecuteDeleteCacheAndLB(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, resource.CacheCluster{
		Meta: resource.Meta{ID: "cc-1"}, ClusterID: "cache-a", NodeType: "cache.t3.small", NumNodes: 2,
	}))
	require.NoError(t, st.Insert(ctx, resource.LoadBalancer{
		Meta: resource.Meta{ID: "lb-1"}, LBArn: "arn-a", Name: "lb-empty", Type: resource.LBApplication,
	}))

	_, err := exec.Execute(ctx, Params{Action: resource.ActionDeleteCache, ResourceID: "cc-1"})
	require.NoError(t, err)
	_, ok, err := store.ByKey[resource.CacheCluster](ctx, st, "id", "cc-1")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, action := range []string{resource.ActionDeleteLB, resource.ActionDeleteEmptyLB} {
		require.NoError(t, st.Insert(ctx, resource.LoadBalancer{
			Meta: resource.Meta{ID: "lb-" + action}, LBArn: "arn-" + action, Name: action, Type: resource.LBApplication,
		}))
		_, err := exec.Execute(ctx, Params{Action: action, ResourceID: "lb-" + action})
		require.NoError(t, err, action)
	}
}

func TestExecuteLambdaActions(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, resource.LambdaFunction{
		Meta:           resource.Meta{ID: "fn-1"},
		Name:           "report-gen",
		MemoryMB:       2048,
		TimeoutSeconds: 900,
	}))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionRightsizeLambda, ResourceID: "fn-1"})
	require.NoError(t, err)
	assert.Equal(t, 2048, res.PreviousState["memory_mb"])
	assert.Equal(t, 1024, res.NewState["memory_mb"])

	// JSON bodies decode numbers as float64; the detail reader tolerates it.
	res, err = exec.Execute(ctx, Params{
		Action:     resource.ActionOptimizeLambdaTimeout,
		ResourceID: "fn-1",
		Details:    map[string]any{"recommendedTimeout": float64(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.NewState["timeout_seconds"])

	_, err = exec.Execute(ctx, Params{Action: resource.ActionOptimizeLambdaTimeout, ResourceID: "fn-1"})
	require.ErrorIs(t, err, wasteerr.ErrMissingRecommendation)

	_, err = exec.Execute(ctx, Params{Action: resource.ActionDeleteLambda, ResourceID: "fn-1"})
	require.NoError(t, err)
	_, ok, err := store.ByKey[resource.LambdaFunction](ctx, st, "id", "fn-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecuteRightsizeLambdaFloor(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, resource.LambdaFunction{
		Meta:     resource.Meta{ID: "fn-1"},
		Name:     "tiny",
		MemoryMB: 192,
	}))

	res, err := exec.Execute(ctx, Params{Action: resource.ActionRightsizeLambda, ResourceID: "fn-1"})
	require.NoError(t, err)
	assert.Equal(t, 128, res.NewState["memory_mb"])
}

func TestExecuteOneAuditRowPerCall(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	seedInstance(t, st)
	ctx := context.Background()

	_, _ = exec.Execute(ctx, Params{Action: resource.ActionStopInstance, ResourceID: "res-1"})
	_, _ = exec.Execute(ctx, Params{Action: "bogus", ResourceID: "res-1"})
	_, _ = exec.Execute(ctx, Params{Action: resource.ActionStopInstance, ResourceID: "missing"})

	assert.Len(t, auditEntries(t, st), 3)
}
