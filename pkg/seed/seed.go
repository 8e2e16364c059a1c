// Package seed populates a store with a small simulated estate: a few
// accounts, every resource table, and enough daily-metric history for
// the drift engine to advance from. The world deliberately contains
// waste so a first scan finds something.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

// Options tune the generated world.
type Options struct {
	Accounts    int
	HistoryDays int
	Rand        *rand.Rand
	Now         time.Time
}

// Summary reports what was written.
type Summary struct {
	Accounts  int `json:"accounts"`
	Resources int `json:"resources"`
	Metrics   int `json:"metrics"`
}

type seeder struct {
	store store.Store
	rng   *rand.Rand
	now   time.Time

	resources int
	metrics   []resource.DailyMetric
}

// Apply writes the demo world into the store.
func Apply(ctx context.Context, st store.Store, opts Options) (Summary, error) {
	if opts.Accounts <= 0 {
		opts.Accounts = 2
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 7
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(42, 7))
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	s := &seeder{store: st, rng: opts.Rand, now: opts.Now}
	for i := 1; i <= opts.Accounts; i++ {
		account := fmt.Sprintf("acct-%03d", i)
		if err := s.seedAccount(ctx, account, opts.HistoryDays); err != nil {
			return Summary{}, err
		}
	}
	if len(s.metrics) > 0 {
		conflicts := []string{"account_id", "resource_type", "resource_id", "date"}
		if err := st.Upsert(ctx, store.Records(s.metrics), conflicts, true); err != nil {
			return Summary{}, err
		}
	}
	return Summary{
		Accounts:  opts.Accounts,
		Resources: s.resources,
		Metrics:   len(s.metrics),
	}, nil
}

func (s *seeder) meta(account, region, env string, tags map[string]string) resource.Meta {
	return resource.Meta{
		ID:        uuid.NewString(),
		AccountID: account,
		Region:    region,
		Env:       env,
		Tags:      tags,
		UpdatedAt: s.now,
	}
}

func (s *seeder) insert(ctx context.Context, rec resource.Record) error {
	if err := s.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("seed insert %s: %w", rec.TableName(), err)
	}
	s.resources++
	return nil
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func sptr(v string) *string   { return &v }

func (s *seeder) seedAccount(ctx context.Context, account string, historyDays int) error {
	region := "us-east-1"

	instances := []resource.Instance{
		{
			Meta:         s.meta(account, region, "prod", map[string]string{"service": "api"}),
			InstanceID:   "i-" + uuid.NewString()[:8],
			InstanceType: "m5.large",
			Name:         "api-" + account,
			State:        resource.InstanceRunning,
			HourlyCost:   0.096,
			AvgCPU7d:     fptr(s.rng.Float64()*30 + 45),
			CurrentCPU:   fptr(s.rng.Float64()*30 + 45),
			LaunchTime:   s.now.AddDate(0, -6, 0),
		},
		{
			Meta:         s.meta(account, region, "prod", map[string]string{"service": "worker"}),
			InstanceID:   "i-" + uuid.NewString()[:8],
			InstanceType: "c5.large",
			Name:         "worker-" + account,
			State:        resource.InstanceRunning,
			HourlyCost:   0.085,
			AvgCPU7d:     fptr(s.rng.Float64()*25 + 50),
			CurrentCPU:   fptr(s.rng.Float64()*25 + 50),
			LaunchTime:   s.now.AddDate(0, -4, 0),
		},
		{
			// Idle dev box; trips the idle instance scenario.
			Meta:         s.meta(account, region, "dev", nil),
			InstanceID:   "i-" + uuid.NewString()[:8],
			InstanceType: "t3.small",
			Name:         "dev-scratch-" + account,
			State:        resource.InstanceRunning,
			HourlyCost:   0.0208,
			AvgCPU7d:     fptr(3),
			CurrentCPU:   fptr(2.5),
			LaunchTime:   s.now.AddDate(0, -1, 0),
		},
		{
			// Idle CI runner.
			Meta:         s.meta(account, region, "dev", map[string]string{"role": "ci"}),
			InstanceID:   "i-" + uuid.NewString()[:8],
			InstanceType: "c5.xlarge",
			Name:         "ci-runner-" + account,
			State:        resource.InstanceRunning,
			HourlyCost:   0.17,
			AvgCPU7d:     fptr(1.2),
			CurrentCPU:   fptr(0.8),
			LaunchTime:   s.now.AddDate(0, -2, 0),
		},
		{
			// Over-provisioned; has a smaller sibling.
			Meta:          s.meta(account, region, "staging", nil),
			InstanceID:    "i-" + uuid.NewString()[:8],
			InstanceType:  "m5.xlarge",
			Name:          "staging-app-" + account,
			State:         resource.InstanceRunning,
			HourlyCost:    0.192,
			AvgCPU7d:      fptr(12),
			CurrentCPU:    fptr(14),
			CurrentMemory: fptr(22),
			LaunchTime:    s.now.AddDate(0, -3, 0),
		},
		{
			Meta:         s.meta(account, region, "dev", nil),
			InstanceID:   "i-" + uuid.NewString()[:8],
			InstanceType: "t3.medium",
			Name:         "dev-stopped-" + account,
			State:        resource.InstanceStopped,
			HourlyCost:   0.0416,
			LaunchTime:   s.now.AddDate(0, -5, 0),
		},
	}
	for _, in := range instances {
		if err := s.insert(ctx, in); err != nil {
			return err
		}
	}

	asgs := []resource.AutoscalingGroup{
		{
			// Pinned size; trips the static scenario.
			Meta:               s.meta(account, region, "prod", nil),
			Name:               "web-" + account,
			InstanceType:       "m5.large",
			MinSize:            3,
			MaxSize:            3,
			DesiredCapacity:    3,
			CurrentUtilization: 55,
			CreatedAt:          s.now.AddDate(0, -8, 0),
		},
		{
			// Forgotten preview environment.
			Meta:               s.meta(account, region, "preview", map[string]string{"purpose": "preview"}),
			Name:               "preview-pr-1842-" + account,
			InstanceType:       "t3.medium",
			MinSize:            1,
			MaxSize:            2,
			DesiredCapacity:    2,
			CurrentUtilization: 4,
			CreatedAt:          s.now.AddDate(0, 0, -16),
		},
	}
	for _, g := range asgs {
		if err := s.insert(ctx, g); err != nil {
			return err
		}
	}

	databases := []resource.RDSInstance{
		{
			Meta:             s.meta(account, region, "prod", nil),
			DBInstanceID:     "orders-db-" + account,
			InstanceClass:    "db.m5.large",
			Engine:           "postgres",
			State:            "available",
			AvgCPU7d:         fptr(48),
			AvgConnections7d: fptr(120),
		},
		{
			// Idle and Multi-AZ on staging; trips two scenarios.
			Meta:             s.meta(account, region, "staging", nil),
			DBInstanceID:     "staging-db-" + account,
			InstanceClass:    "db.t3.medium",
			Engine:           "postgres",
			State:            "available",
			MultiAZ:          true,
			AvgCPU7d:         fptr(2),
			AvgConnections7d: fptr(0),
		},
	}
	for _, db := range databases {
		if err := s.insert(ctx, db); err != nil {
			return err
		}
	}

	if err := s.insert(ctx, resource.CacheCluster{
		Meta:             s.meta(account, region, "staging", nil),
		ClusterID:        "sessions-" + account,
		NodeType:         "cache.t3.small",
		NumNodes:         2,
		AvgCPU7d:         fptr(0.6),
		AvgConnections7d: fptr(0),
	}); err != nil {
		return err
	}

	lbs := []resource.LoadBalancer{
		{
			Meta:               s.meta(account, region, "prod", nil),
			LBArn:              "arn:lb/api-" + account,
			Name:               "api-lb-" + account,
			Type:               resource.LBApplication,
			TargetCount:        4,
			HealthyTargetCount: 4,
			AvgRequestCount7d:  fptr(250000),
		},
		{
			// No targets at all.
			Meta:  s.meta(account, region, "staging", nil),
			LBArn: "arn:lb/old-" + account,
			Name:  "old-lb-" + account,
			Type:  resource.LBApplication,
		},
	}
	for _, lb := range lbs {
		if err := s.insert(ctx, lb); err != nil {
			return err
		}
	}

	lambdas := []resource.LambdaFunction{
		{
			// 2GB provisioned, ~300MB used.
			Meta:              s.meta(account, region, "prod", nil),
			Name:              "image-resize-" + account,
			MemoryMB:          2048,
			TimeoutSeconds:    30,
			Invocations7d:     fptr(70000),
			AvgDurationMs7d:   fptr(450),
			AvgMemoryUsedMB7d: fptr(300),
		},
		{
			Meta:           s.meta(account, region, "dev", nil),
			Name:           "legacy-export-" + account,
			MemoryMB:       512,
			TimeoutSeconds: 60,
			Invocations7d:  fptr(0),
		},
		{
			// 15 min timeout for a 2 s function.
			Meta:              s.meta(account, region, "prod", nil),
			Name:              "nightly-report-" + account,
			MemoryMB:          1024,
			TimeoutSeconds:    900,
			Invocations7d:     fptr(210),
			AvgDurationMs7d:   fptr(2100),
			AvgMemoryUsedMB7d: fptr(700),
		},
	}
	for _, fn := range lambdas {
		if err := s.insert(ctx, fn); err != nil {
			return err
		}
	}

	attachedID := instances[0].InstanceID
	volumes := []resource.Volume{
		{
			Meta:               s.meta(account, region, "prod", nil),
			VolumeID:           "vol-" + uuid.NewString()[:8],
			VolumeType:         "gp2",
			SizeGiB:            200,
			State:              resource.VolumeInUse,
			AttachedInstanceID: &attachedID,
			CreatedAt:          s.now.AddDate(0, -6, 0),
		},
		{
			Meta:       s.meta(account, region, "staging", nil),
			VolumeID:   "vol-" + uuid.NewString()[:8],
			VolumeType: "gp3",
			SizeGiB:    100,
			State:      resource.VolumeAvailable,
			CreatedAt:  s.now.AddDate(0, 0, -45),
		},
	}
	for _, v := range volumes {
		if err := s.insert(ctx, v); err != nil {
			return err
		}
	}

	snapshots := []resource.Snapshot{
		{
			Meta:           s.meta(account, region, "prod", nil),
			SnapshotID:     "snap-" + uuid.NewString()[:8],
			SourceVolumeID: sptr(volumes[0].VolumeID),
			SizeGiB:        200,
			CreatedAt:      s.now.AddDate(0, 0, -200),
		},
		{
			// Source volume never existed in this world.
			Meta:           s.meta(account, region, "staging", nil),
			SnapshotID:     "snap-" + uuid.NewString()[:8],
			SourceVolumeID: sptr("vol-gone-" + account),
			SizeGiB:        80,
			CreatedAt:      s.now.AddDate(0, 0, -30),
		},
	}
	for _, sn := range snapshots {
		if err := s.insert(ctx, sn); err != nil {
			return err
		}
	}

	buckets := []resource.S3Bucket{
		{
			Meta: s.meta(account, region, "prod", nil),
			Name: "assets-" + account,
		},
		{
			Meta:              s.meta(account, region, "prod", nil),
			Name:              "backups-" + account,
			VersioningEnabled: true,
			LifecycleRules: []resource.LifecycleRule{{
				ID:     "archive",
				Status: "Enabled",
				Transitions: []resource.LifecycleTransition{
					{Days: 60, StorageClass: "GLACIER"},
				},
			}},
		},
	}
	for _, b := range buckets {
		if err := s.insert(ctx, b); err != nil {
			return err
		}
	}

	logGroups := []resource.LogGroup{
		{
			Meta: s.meta(account, region, "prod", nil),
			Name: "/app/api-" + account,
		},
		{
			Meta:          s.meta(account, region, "prod", nil),
			Name:          "/app/worker-" + account,
			RetentionDays: iptr(30),
		},
	}
	for _, lg := range logGroups {
		if err := s.insert(ctx, lg); err != nil {
			return err
		}
	}

	eips := []resource.ElasticIP{
		{
			Meta:                 s.meta(account, region, "prod", nil),
			AllocationID:         "eipalloc-" + uuid.NewString()[:8],
			PublicIP:             fmt.Sprintf("52.1.%d.%d", s.rng.IntN(256), s.rng.IntN(256)),
			AssociatedInstanceID: &attachedID,
			State:                resource.EIPAssociated,
		},
		{
			Meta:         s.meta(account, region, "prod", nil),
			AllocationID: "eipalloc-" + uuid.NewString()[:8],
			PublicIP:     fmt.Sprintf("52.2.%d.%d", s.rng.IntN(256), s.rng.IntN(256)),
			State:        resource.EIPUnassociated,
		},
	}
	for _, ip := range eips {
		if err := s.insert(ctx, ip); err != nil {
			return err
		}
	}

	s.seedHistory(account, instances, buckets, logGroups, historyDays)
	return nil
}

// seedHistory writes historyDays of daily metrics ending yesterday, so
// the first drift tick advances to today.
func (s *seeder) seedHistory(account string, instances []resource.Instance, buckets []resource.S3Bucket, logGroups []resource.LogGroup, days int) {
	for d := days; d >= 1; d-- {
		date := s.now.AddDate(0, 0, -d).Truncate(24 * time.Hour)
		for _, in := range instances {
			if in.State != resource.InstanceRunning {
				continue
			}
			s.metrics = append(s.metrics, resource.DailyMetric{
				ID:           uuid.NewString(),
				AccountID:    account,
				ResourceType: resource.TableInstances,
				ResourceID:   in.ID,
				Date:         date,
				Cost:         pricing.Round4(in.HourlyCost * 24 * (1 + s.rng.Float64()*0.04 - 0.02)),
			})
		}
		for _, b := range buckets {
			std := 100 + s.rng.Float64()*50
			s.metrics = append(s.metrics, resource.DailyMetric{
				ID:           uuid.NewString(),
				AccountID:    account,
				ResourceType: resource.TableS3Buckets,
				ResourceID:   b.ID,
				Date:         date,
				Cost:         pricing.Round4(std * pricing.S3StandardRatePerGiB / 30),
				StandardGiB:  pricing.Round4(std),
			})
		}
		for _, lg := range logGroups {
			ingested := 0.2 + s.rng.Float64()
			s.metrics = append(s.metrics, resource.DailyMetric{
				ID:           uuid.NewString(),
				AccountID:    account,
				ResourceType: resource.TableLogGroups,
				ResourceID:   lg.ID,
				Date:         date,
				Cost:         pricing.Round4(ingested * 0.5),
				IngestedGiB:  pricing.Round4(ingested),
				StoredGiB:    pricing.Round4(ingested * float64(days-d+1)),
			})
		}
	}
}
