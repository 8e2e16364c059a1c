package drift

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
)

var injectRegions = []string{"us-east-1", "us-west-2", "eu-west-1"}

func (e *Engine) pickRegion() string {
	return injectRegions[e.rng.IntN(len(injectRegions))]
}

func (e *Engine) meta(account, env string, tags map[string]string) resource.Meta {
	return resource.Meta{
		ID:        uuid.NewString(),
		AccountID: account,
		Region:    e.pickRegion(),
		Env:       env,
		Tags:      tags,
		UpdatedAt: e.now(),
	}
}

func fptr(v float64) *float64 { return &v }

// inject probabilistically introduces new waste into one account. Each
// emission is independent and logged to the change-event stream so the
// inventory's history stays explainable.
func (e *Engine) inject(ctx context.Context, w *world, account string, date time.Time) ([]string, error) {
	var injected []string
	record := func(name string, err error) error {
		if err != nil {
			return err
		}
		injected = append(injected, name)
		return nil
	}

	if e.chance(0.05) {
		if err := record("forgotten_preview", e.injectPreviewASG(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.05) {
		if err := record("over_provisioned_asg", e.injectOverProvisionedASG(ctx, w, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.04) {
		if err := record("idle_ci_runner", e.injectIdleCIRunner(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.04) {
		if err := record("s3_no_lifecycle", e.injectUnoptimizedBucket(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.04) {
		if err := record("log_no_retention", e.injectRetentionlessLogGroup(ctx, account)); err != nil {
			return injected, err
		}
	}
	if isWeekend(date) && e.chance(0.06) {
		if err := record("off_hours_dev", e.injectDevInstance(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.03) {
		if err := record("stale_feature_env", e.injectStaleFeatureASG(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.08) {
		if err := record("orphaned_eip_new", e.injectOrphanedEIP(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.05) {
		fired, err := e.orphanExistingEIP(ctx, w, account)
		if err != nil {
			return injected, err
		}
		if fired {
			injected = append(injected, "orphaned_eip_existing")
		}
	}
	if e.chance(0.07) {
		if err := record("unattached_volume", e.injectUnattachedVolume(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.06) {
		if err := record("old_snapshot", e.injectOldSnapshot(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.03) {
		if err := record("idle_rds", e.injectIdleRDS(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.03) {
		if err := record("idle_cache", e.injectIdleCache(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.04) {
		if err := record("idle_load_balancer", e.injectIdleLB(ctx, account)); err != nil {
			return injected, err
		}
	}
	if e.chance(0.04) {
		if err := record("over_provisioned_lambda", e.injectFatLambda(ctx, account)); err != nil {
			return injected, err
		}
	}
	return injected, nil
}

func (e *Engine) injectPreviewASG(ctx context.Context, account string) error {
	name := "preview-pr-" + shortID()
	g := resource.AutoscalingGroup{
		Meta:               e.meta(account, "preview", map[string]string{"purpose": "preview"}),
		Name:               name,
		InstanceType:       "t3.medium",
		MinSize:            1,
		MaxSize:            2,
		DesiredCapacity:    1 + e.rng.IntN(2),
		CurrentUtilization: e.uniform(1, 8),
		CreatedAt:          e.now().AddDate(0, 0, -int(e.uniform(8, 30))),
	}
	if err := e.store.Insert(ctx, g); err != nil {
		return wasteerr.Storef("insert asg: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableAutoscalingGroups, g.ID,
		"created", fmt.Sprintf("Preview environment %s left running", name))
}

func (e *Engine) injectOverProvisionedASG(ctx context.Context, w *world, account string) error {
	// Bump an existing healthy group instead of creating one.
	for i, g := range w.asgs {
		if g.AccountID != account || g.DesiredCapacity < 1 || g.DesiredCapacity >= g.MaxSize {
			continue
		}
		g.DesiredCapacity += 1 + e.rng.IntN(2)
		if g.DesiredCapacity > g.MaxSize {
			g.DesiredCapacity = g.MaxSize
		}
		g.CurrentUtilization = e.uniform(5, 25)
		g.UpdatedAt = e.now()
		if err := e.store.Update(ctx, g); err != nil {
			return wasteerr.Storef("update asg: %v", err)
		}
		w.asgs[i] = g
		return e.changeEvent(ctx, account, resource.TableAutoscalingGroups, g.ID,
			"scaled_up", fmt.Sprintf("Capacity of %s raised to %d with low utilization", g.Name, g.DesiredCapacity))
	}
	return nil
}

func (e *Engine) injectIdleCIRunner(ctx context.Context, account string) error {
	name := "ci-runner-" + shortID()
	in := resource.Instance{
		Meta:         e.meta(account, "dev", map[string]string{"role": "ci"}),
		InstanceID:   "i-" + shortID(),
		InstanceType: "c5.large",
		Name:         name,
		State:        resource.InstanceRunning,
		HourlyCost:   0.085,
		AvgCPU7d:     fptr(e.uniform(0.5, 4)),
		CurrentCPU:   fptr(e.uniform(0.5, 4)),
		LaunchTime:   e.now().AddDate(0, 0, -int(e.uniform(10, 60))),
	}
	if err := e.store.Insert(ctx, in); err != nil {
		return wasteerr.Storef("insert instance: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableInstances, in.ID,
		"created", fmt.Sprintf("CI runner %s gone idle", name))
}

func (e *Engine) injectUnoptimizedBucket(ctx context.Context, account string) error {
	name := "data-" + shortID()
	b := resource.S3Bucket{
		Meta: e.meta(account, "prod", nil),
		Name: name,
	}
	if err := e.store.Insert(ctx, b); err != nil {
		return wasteerr.Storef("insert bucket: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableS3Buckets, b.ID,
		"created", fmt.Sprintf("Bucket %s created without lifecycle rules", name))
}

func (e *Engine) injectRetentionlessLogGroup(ctx context.Context, account string) error {
	name := "/app/" + shortID()
	lg := resource.LogGroup{
		Meta: e.meta(account, "prod", nil),
		Name: name,
	}
	if err := e.store.Insert(ctx, lg); err != nil {
		return wasteerr.Storef("insert log group: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableLogGroups, lg.ID,
		"created", fmt.Sprintf("Log group %s created without retention", name))
}

func (e *Engine) injectDevInstance(ctx context.Context, account string) error {
	name := "dev-box-" + shortID()
	in := resource.Instance{
		Meta:         e.meta(account, "dev", nil),
		InstanceID:   "i-" + shortID(),
		InstanceType: "t3.medium",
		Name:         name,
		State:        resource.InstanceRunning,
		HourlyCost:   0.0416,
		AvgCPU7d:     fptr(e.uniform(1, 10)),
		CurrentCPU:   fptr(e.uniform(1, 10)),
		LaunchTime:   e.now().AddDate(0, 0, -int(e.uniform(1, 20))),
	}
	if err := e.store.Insert(ctx, in); err != nil {
		return wasteerr.Storef("insert instance: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableInstances, in.ID,
		"created", fmt.Sprintf("Dev instance %s left running over the weekend", name))
}

func (e *Engine) injectStaleFeatureASG(ctx context.Context, account string) error {
	name := "feat-" + shortID()
	g := resource.AutoscalingGroup{
		Meta:               e.meta(account, "dev", map[string]string{"branch": name}),
		Name:               name,
		InstanceType:       "t3.small",
		MinSize:            1,
		MaxSize:            2,
		DesiredCapacity:    1,
		CurrentUtilization: e.uniform(1, 15),
		CreatedAt:          e.now().AddDate(0, 0, -int(e.uniform(8, 45))),
	}
	if err := e.store.Insert(ctx, g); err != nil {
		return wasteerr.Storef("insert asg: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableAutoscalingGroups, g.ID,
		"created", fmt.Sprintf("Feature environment %s abandoned", name))
}

func (e *Engine) injectOrphanedEIP(ctx context.Context, account string) error {
	ip := resource.ElasticIP{
		Meta:         e.meta(account, "prod", nil),
		AllocationID: "eipalloc-" + shortID(),
		PublicIP: fmt.Sprintf("52.%d.%d.%d",
			e.rng.IntN(256), e.rng.IntN(256), e.rng.IntN(256)),
		State: resource.EIPUnassociated,
	}
	if err := e.store.Insert(ctx, ip); err != nil {
		return wasteerr.Storef("insert eip: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableElasticIPs, ip.ID,
		"created", fmt.Sprintf("Elastic IP %s allocated but never associated", ip.PublicIP))
}

// orphanExistingEIP detaches a currently associated address. Reports
// whether any candidate existed.
func (e *Engine) orphanExistingEIP(ctx context.Context, w *world, account string) (bool, error) {
	for i, ip := range w.eips {
		if ip.AccountID != account || ip.AssociatedInstanceID == nil {
			continue
		}
		ip.AssociatedInstanceID = nil
		ip.State = resource.EIPUnassociated
		ip.UpdatedAt = e.now()
		if err := e.store.Update(ctx, ip); err != nil {
			return false, wasteerr.Storef("update eip: %v", err)
		}
		w.eips[i] = ip
		if err := e.changeEvent(ctx, account, resource.TableElasticIPs, ip.ID,
			"disassociated", fmt.Sprintf("Elastic IP %s lost its instance", ip.PublicIP)); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (e *Engine) injectUnattachedVolume(ctx context.Context, account string) error {
	v := resource.Volume{
		Meta:       e.meta(account, "prod", nil),
		VolumeID:   "vol-" + shortID(),
		VolumeType: "gp2",
		SizeGiB:    int(e.uniform(50, 500)),
		State:      resource.VolumeAvailable,
		CreatedAt:  e.now().AddDate(0, 0, -int(e.uniform(5, 90))),
	}
	if err := e.store.Insert(ctx, v); err != nil {
		return wasteerr.Storef("insert volume: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableVolumes, v.ID,
		"detached", fmt.Sprintf("Volume %s left unattached", v.VolumeID))
}

func (e *Engine) injectOldSnapshot(ctx context.Context, account string) error {
	s := resource.Snapshot{
		Meta:       e.meta(account, "prod", nil),
		SnapshotID: "snap-" + shortID(),
		SizeGiB:    int(e.uniform(20, 300)),
		CreatedAt:  e.now().AddDate(0, 0, -int(e.uniform(91, 500))),
	}
	if err := e.store.Insert(ctx, s); err != nil {
		return wasteerr.Storef("insert snapshot: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableSnapshots, s.ID,
		"created", fmt.Sprintf("Snapshot %s aged past retention", s.SnapshotID))
}

func (e *Engine) injectIdleRDS(ctx context.Context, account string) error {
	id := "db-" + shortID()
	db := resource.RDSInstance{
		Meta:             e.meta(account, "staging", nil),
		DBInstanceID:     id,
		InstanceClass:    "db.t3.medium",
		Engine:           "postgres",
		State:            "available",
		AvgCPU7d:         fptr(e.uniform(0.5, 10)),
		AvgConnections7d: fptr(e.uniform(0, 1)),
	}
	if err := e.store.Insert(ctx, db); err != nil {
		return wasteerr.Storef("insert rds: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableRDSInstances, db.ID,
		"created", fmt.Sprintf("Database %s gone idle", id))
}

func (e *Engine) injectIdleCache(ctx context.Context, account string) error {
	id := "cache-" + shortID()
	cc := resource.CacheCluster{
		Meta:             e.meta(account, "staging", nil),
		ClusterID:        id,
		NodeType:         "cache.t3.small",
		NumNodes:         1 + e.rng.IntN(2),
		AvgCPU7d:         fptr(e.uniform(0.5, 10)),
		AvgConnections7d: fptr(e.uniform(0, 3)),
	}
	if err := e.store.Insert(ctx, cc); err != nil {
		return wasteerr.Storef("insert cache: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableCacheClusters, cc.ID,
		"created", fmt.Sprintf("Cache cluster %s gone idle", id))
}

func (e *Engine) injectIdleLB(ctx context.Context, account string) error {
	name := "lb-" + shortID()
	lb := resource.LoadBalancer{
		Meta:               e.meta(account, "prod", nil),
		LBArn:              "arn:lb/" + name,
		Name:               name,
		Type:               resource.LBApplication,
		TargetCount:        1 + e.rng.IntN(3),
		HealthyTargetCount: 1,
		AvgRequestCount7d:  fptr(e.uniform(0, 500)),
	}
	if err := e.store.Insert(ctx, lb); err != nil {
		return wasteerr.Storef("insert lb: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableLoadBalancers, lb.ID,
		"created", fmt.Sprintf("Load balancer %s serving almost no traffic", name))
}

func (e *Engine) injectFatLambda(ctx context.Context, account string) error {
	name := "fn-" + shortID()
	mem := 1024 * (1 + e.rng.IntN(3))
	fn := resource.LambdaFunction{
		Meta:              e.meta(account, "prod", nil),
		Name:              name,
		MemoryMB:          mem,
		TimeoutSeconds:    30,
		Invocations7d:     fptr(e.uniform(1000, 100000)),
		AvgDurationMs7d:   fptr(e.uniform(50, 2000)),
		AvgMemoryUsedMB7d: fptr(float64(mem) * e.uniform(0.1, 0.4)),
	}
	if err := e.store.Insert(ctx, fn); err != nil {
		return wasteerr.Storef("insert lambda: %v", err)
	}
	return e.changeEvent(ctx, account, resource.TableLambdaFunctions, fn.ID,
		"created", fmt.Sprintf("Function %s provisioned far above its working set", name))
}
