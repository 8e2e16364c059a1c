package drift

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

// Data transfer directions and per-GiB rates.
var transferRates = map[string]float64{
	"cross_region":    0.02,
	"egress_internet": 0.09,
	"cross_az":        0.01,
}

const (
	logIngestRatePerGiB  = 0.50
	logStorageRatePerGiB = 0.03
)

// world is the full inventory loaded once per tick.
type world struct {
	instances []resource.Instance
	asgs      []resource.AutoscalingGroup
	rds       []resource.RDSInstance
	caches    []resource.CacheCluster
	lbs       []resource.LoadBalancer
	lambdas   []resource.LambdaFunction
	volumes   []resource.Volume
	snapshots []resource.Snapshot
	buckets   []resource.S3Bucket
	logGroups []resource.LogGroup
	eips      []resource.ElasticIP
	metrics   []resource.DailyMetric

	// metricIndex keys on resource_type|resource_id|date.
	metricIndex map[string]resource.DailyMetric
}

func metricKey(resourceType, resourceID string, date time.Time) string {
	return resourceType + "|" + resourceID + "|" + date.Format("2006-01-02")
}

func (e *Engine) loadWorld(ctx context.Context) (*world, error) {
	w := &world{}
	var err error
	// Sequential loads; the tick is a background operation and the
	// detection engine already owns the concurrent fan-out path.
	if w.instances, err = store.All[resource.Instance](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load instances: %v", err)
	}
	if w.asgs, err = store.All[resource.AutoscalingGroup](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load asgs: %v", err)
	}
	if w.rds, err = store.All[resource.RDSInstance](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load rds: %v", err)
	}
	if w.caches, err = store.All[resource.CacheCluster](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load caches: %v", err)
	}
	if w.lbs, err = store.All[resource.LoadBalancer](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load load balancers: %v", err)
	}
	if w.lambdas, err = store.All[resource.LambdaFunction](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load lambdas: %v", err)
	}
	if w.volumes, err = store.All[resource.Volume](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load volumes: %v", err)
	}
	if w.snapshots, err = store.All[resource.Snapshot](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load snapshots: %v", err)
	}
	if w.buckets, err = store.All[resource.S3Bucket](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load buckets: %v", err)
	}
	if w.logGroups, err = store.All[resource.LogGroup](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load log groups: %v", err)
	}
	if w.eips, err = store.All[resource.ElasticIP](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load eips: %v", err)
	}
	if w.metrics, err = store.All[resource.DailyMetric](ctx, e.store); err != nil {
		return nil, wasteerr.Storef("load daily metrics: %v", err)
	}

	w.metricIndex = make(map[string]resource.DailyMetric, len(w.metrics))
	for _, m := range w.metrics {
		w.metricIndex[metricKey(m.ResourceType, m.ResourceID, m.Date)] = m
	}
	return w, nil
}

// accounts returns every account id seen anywhere, sorted for stable
// iteration order.
func (w *world) accounts() []string {
	set := map[string]bool{}
	add := func(id string) {
		if id != "" {
			set[id] = true
		}
	}
	for _, r := range w.instances {
		add(r.AccountID)
	}
	for _, r := range w.asgs {
		add(r.AccountID)
	}
	for _, r := range w.rds {
		add(r.AccountID)
	}
	for _, r := range w.caches {
		add(r.AccountID)
	}
	for _, r := range w.lbs {
		add(r.AccountID)
	}
	for _, r := range w.lambdas {
		add(r.AccountID)
	}
	for _, r := range w.volumes {
		add(r.AccountID)
	}
	for _, r := range w.snapshots {
		add(r.AccountID)
	}
	for _, r := range w.buckets {
		add(r.AccountID)
	}
	for _, r := range w.logGroups {
		add(r.AccountID)
	}
	for _, r := range w.eips {
		add(r.AccountID)
	}
	for _, m := range w.metrics {
		add(m.AccountID)
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// maxMetricDate finds the latest simulated day for an account; zero when
// the account has no history.
func (w *world) maxMetricDate(account string) time.Time {
	var max time.Time
	for _, m := range w.metrics {
		if m.AccountID == account && m.Date.After(max) {
			max = m.Date
		}
	}
	return max
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// advanceAccount moves one account forward one virtual day. Accounts
// with no metric history are skipped; the seed command establishes the
// first day.
func (e *Engine) advanceAccount(ctx context.Context, w *world, account string) (int, []string, error) {
	lastDate := w.maxMetricDate(account)
	if lastDate.IsZero() {
		return 0, nil, nil
	}
	nextDate := lastDate.AddDate(0, 0, 1)
	weekend := isWeekend(nextDate)

	var batch []resource.DailyMetric

	// Instance cost random walk.
	for _, in := range w.instances {
		if in.AccountID != account || in.State != resource.InstanceRunning {
			continue
		}
		yesterday := in.HourlyCost * 24
		if prev, ok := w.metricIndex[metricKey(resource.TableInstances, in.ID, lastDate)]; ok {
			yesterday = prev.Cost
		}
		cost := yesterday * (1 + e.uniform(-0.03, 0.05))
		if isProd(in.Env) {
			cost *= 1.02
		} else if weekend {
			cost *= e.uniform(0.7, 0.85)
		}
		batch = append(batch, resource.DailyMetric{
			ID:           uuid.NewString(),
			AccountID:    account,
			ResourceType: resource.TableInstances,
			ResourceID:   in.ID,
			Date:         nextDate,
			Cost:         pricing.Round4(cost),
		})
	}

	// Bucket tier occupancy: standard grows, tiering rules move data down.
	for _, b := range w.buckets {
		if b.AccountID != account {
			continue
		}
		std, ia, gl := 100.0, 0.0, 0.0
		if prev, ok := w.metricIndex[metricKey(resource.TableS3Buckets, b.ID, lastDate)]; ok {
			std, ia, gl = prev.StandardGiB, prev.IAGiB, prev.GlacierGiB
		}
		growth := e.uniform(0.003, 0.015)
		if isProd(b.Env) {
			growth = e.uniform(0.01, 0.03)
		}
		std *= 1 + growth
		if len(b.LifecycleRules) > 0 {
			moved := std * 0.005
			std -= moved
			ia += moved
			aged := ia * 0.003
			ia -= aged
			gl += aged
		}
		dailyCost := (std*pricing.S3StandardRatePerGiB + ia*pricing.S3IARatePerGiB + gl*pricing.S3GlacierRatePerGiB) / 30
		batch = append(batch, resource.DailyMetric{
			ID:           uuid.NewString(),
			AccountID:    account,
			ResourceType: resource.TableS3Buckets,
			ResourceID:   b.ID,
			Date:         nextDate,
			Cost:         pricing.Round4(dailyCost),
			StandardGiB:  pricing.Round4(std),
			IAGiB:        pricing.Round4(ia),
			GlacierGiB:   pricing.Round4(gl),
		})
	}

	// Log group accrual, capped by retention when configured.
	for _, lg := range w.logGroups {
		if lg.AccountID != account {
			continue
		}
		ingested := e.uniform(0.1, 0.8)
		if isProd(lg.Env) {
			ingested = e.uniform(0.5, 3)
		}
		if weekend && lg.Env != "preview" {
			ingested *= 0.7
		}
		stored := ingested
		if prev, ok := w.metricIndex[metricKey(resource.TableLogGroups, lg.ID, lastDate)]; ok {
			stored = prev.StoredGiB + ingested
		}
		if days := retentionDays(lg); days > 0 {
			if limit := ingested * float64(days); stored > limit {
				stored = limit
			}
		}
		dailyCost := ingested*logIngestRatePerGiB + stored*logStorageRatePerGiB/30
		batch = append(batch, resource.DailyMetric{
			ID:           uuid.NewString(),
			AccountID:    account,
			ResourceType: resource.TableLogGroups,
			ResourceID:   lg.ID,
			Date:         nextDate,
			Cost:         pricing.Round4(dailyCost),
			IngestedGiB:  pricing.Round4(ingested),
			StoredGiB:    pricing.Round4(stored),
		})
	}

	// Three fixed data transfer rows per day.
	for direction, rate := range transferRates {
		gib := e.uniform(1, 20)
		batch = append(batch, resource.DailyMetric{
			ID:           uuid.NewString(),
			AccountID:    account,
			ResourceType: "data_transfer",
			ResourceID:   account + "-" + direction,
			Date:         nextDate,
			Cost:         pricing.Round4(gib * rate),
			Direction:    direction,
			TransferGiB:  pricing.Round4(gib),
		})
	}

	if len(batch) > 0 {
		conflicts := []string{"account_id", "resource_type", "resource_id", "date"}
		if err := e.store.Upsert(ctx, store.Records(batch), conflicts, true); err != nil {
			return 0, nil, wasteerr.Storef("upsert daily metrics: %v", err)
		}
		for _, m := range batch {
			w.metrics = append(w.metrics, m)
			w.metricIndex[metricKey(m.ResourceType, m.ResourceID, m.Date)] = m
		}
	}

	if err := e.refreshLiveUtilization(ctx, w, account, weekend); err != nil {
		return 0, nil, err
	}

	injected, err := e.inject(ctx, w, account, nextDate)
	if err != nil {
		return 0, nil, err
	}
	return len(batch), injected, nil
}

func retentionDays(lg resource.LogGroup) int {
	if lg.RetentionInDays != nil {
		return *lg.RetentionInDays
	}
	if lg.RetentionDays != nil {
		return *lg.RetentionDays
	}
	return 0
}

func isProd(env string) bool {
	return env == "prod" || env == "production"
}

// refreshLiveUtilization overwrites the live CPU/memory/utilization
// fields. Last-writer-wins is fine: the drift engine is the only writer.
func (e *Engine) refreshLiveUtilization(ctx context.Context, w *world, account string, weekend bool) error {
	for i, in := range w.instances {
		if in.AccountID != account || in.State != resource.InstanceRunning {
			continue
		}
		var cpu, mem float64
		switch {
		case isProd(in.Env):
			cpu, mem = e.uniform(40, 80), e.uniform(50, 85)
		case in.Env == "preview":
			cpu, mem = e.uniform(1, 8), e.uniform(5, 20)
		case (in.Env == "dev" || in.Env == "staging") && weekend:
			cpu, mem = e.uniform(1, 10), e.uniform(5, 25)
		case in.Env == "dev" || in.Env == "staging":
			cpu, mem = e.uniform(10, 40), e.uniform(20, 50)
		default:
			cpu, mem = e.uniform(20, 60), e.uniform(25, 60)
		}
		in.CurrentCPU = &cpu
		in.CurrentMemory = &mem
		in.UpdatedAt = e.now()
		if err := e.store.Update(ctx, in); err != nil {
			return wasteerr.Storef("update instance %s: %v", in.ID, err)
		}
		w.instances[i] = in
	}
	for i, g := range w.asgs {
		if g.AccountID != account {
			continue
		}
		g.CurrentUtilization = pricing.Round4(e.uniform(30, 70))
		g.UpdatedAt = e.now()
		if err := e.store.Update(ctx, g); err != nil {
			return wasteerr.Storef("update asg %s: %v", g.ID, err)
		}
		w.asgs[i] = g
	}
	return nil
}

// changeEvent appends one drift audit row to the change-event stream.
func (e *Engine) changeEvent(ctx context.Context, account, resourceType, resourceID, changeType, description string) error {
	ev := resource.ChangeEvent{
		ID:           uuid.NewString(),
		AccountID:    account,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ChangeType:   changeType,
		ChangeSource: "drift_engine",
		Description:  description,
		OccurredAt:   e.now(),
	}
	if err := e.store.Insert(ctx, ev); err != nil {
		return wasteerr.Storef("insert change event: %v", err)
	}
	return nil
}

func shortID() string {
	return fmt.Sprintf("%08x", uuid.New().ID())
}
