package executor

import (
	"context"
	"fmt"

	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
)

// Handlers follow one shape: resolve the target row, capture the fields
// about to change, apply the typed mutation, write it back. The captured
// previous_state must be sufficient to reverse the mutation.

func setInstanceState(ctx context.Context, e *Executor, p Params, state, verb string) (outcome, error) {
	in, err := fetch[resource.Instance](ctx, e.store, p, "instance_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"state": in.State}
	in.State = state
	in.UpdatedAt = e.now()
	if err := e.store.Update(ctx, in); err != nil {
		return outcome{}, wasteerr.Storef("update instance %s: %v", in.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("%s instance %s", verb, in.Name),
		prev:    prev,
		next:    map[string]any{"state": state},
	}, nil
}

func stopInstance(ctx context.Context, e *Executor, p Params) (outcome, error) {
	return setInstanceState(ctx, e, p, resource.InstanceStopped, "Stopped")
}

func terminateInstance(ctx context.Context, e *Executor, p Params) (outcome, error) {
	return setInstanceState(ctx, e, p, resource.InstanceTerminated, "Terminated")
}

func rightsizeInstance(ctx context.Context, e *Executor, p Params) (outcome, error) {
	target, ok := detailString(p.Details, "recommendedInstanceType")
	if !ok {
		return outcome{}, fmt.Errorf("%w: Missing recommendedInstanceType for rightsize_instance",
			wasteerr.ErrMissingRecommendation)
	}
	in, err := fetch[resource.Instance](ctx, e.store, p, "instance_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"instance_type": in.InstanceType}
	in.InstanceType = target
	in.UpdatedAt = e.now()
	if err := e.store.Update(ctx, in); err != nil {
		return outcome{}, wasteerr.Storef("update instance %s: %v", in.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Rightsized instance %s to %s", in.Name, target),
		prev:    prev,
		next:    map[string]any{"instance_type": target},
	}, nil
}

func terminateASG(ctx context.Context, e *Executor, p Params) (outcome, error) {
	g, err := fetch[resource.AutoscalingGroup](ctx, e.store, p, "asg_name", "name")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{
		"min_size":         g.MinSize,
		"max_size":         g.MaxSize,
		"desired_capacity": g.DesiredCapacity,
	}
	g.MinSize, g.MaxSize, g.DesiredCapacity = 0, 0, 0
	g.UpdatedAt = e.now()
	if err := e.store.Update(ctx, g); err != nil {
		return outcome{}, wasteerr.Storef("update asg %s: %v", g.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Terminated autoscaling group %s", g.Name),
		prev:    prev,
		next:    map[string]any{"min_size": 0, "max_size": 0, "desired_capacity": 0},
	}, nil
}

func scaleDownASG(ctx context.Context, e *Executor, p Params) (outcome, error) {
	g, err := fetch[resource.AutoscalingGroup](ctx, e.store, p, "asg_name", "name")
	if err != nil {
		return outcome{}, err
	}
	newDesired := g.DesiredCapacity / 2
	if newDesired < 1 {
		newDesired = 1
	}
	newMin := g.MinSize
	if newDesired < newMin {
		newMin = newDesired
	}
	prev := map[string]any{"desired_capacity": g.DesiredCapacity, "min_size": g.MinSize}
	g.DesiredCapacity = newDesired
	g.MinSize = newMin
	g.UpdatedAt = e.now()
	if err := e.store.Update(ctx, g); err != nil {
		return outcome{}, wasteerr.Storef("update asg %s: %v", g.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Scaled autoscaling group %s down to %d", g.Name, newDesired),
		prev:    prev,
		next:    map[string]any{"desired_capacity": newDesired, "min_size": newMin},
	}, nil
}

func enableASGScaling(ctx context.Context, e *Executor, p Params) (outcome, error) {
	g, err := fetch[resource.AutoscalingGroup](ctx, e.store, p, "asg_name", "name")
	if err != nil {
		return outcome{}, err
	}
	newMax := g.DesiredCapacity * 2
	if newMax < 4 {
		newMax = 4
	}
	prev := map[string]any{"min_size": g.MinSize, "max_size": g.MaxSize}
	g.MinSize = 1
	g.MaxSize = newMax
	g.UpdatedAt = e.now()
	if err := e.store.Update(ctx, g); err != nil {
		return outcome{}, wasteerr.Storef("update asg %s: %v", g.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Enabled scaling on autoscaling group %s (1-%d)", g.Name, newMax),
		prev:    prev,
		next:    map[string]any{"min_size": 1, "max_size": newMax},
	}, nil
}

func releaseEIP(ctx context.Context, e *Executor, p Params) (outcome, error) {
	ip, err := fetch[resource.ElasticIP](ctx, e.store, p, "allocation_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{
		"allocation_id": ip.AllocationID,
		"public_ip":     ip.PublicIP,
		"state":         ip.State,
	}
	if err := e.store.Delete(ctx, resource.TableElasticIPs, ip.ID); err != nil {
		return outcome{}, wasteerr.Storef("delete eip %s: %v", ip.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Released elastic IP %s", ip.PublicIP),
		prev:    prev,
		next:    map[string]any{"deleted": true},
	}, nil
}

func deleteVolume(ctx context.Context, e *Executor, p Params) (outcome, error) {
	v, err := fetch[resource.Volume](ctx, e.store, p, "volume_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"state": v.State}
	v.State = resource.VolumeDeleted
	v.UpdatedAt = e.now()
	if err := e.store.Update(ctx, v); err != nil {
		return outcome{}, wasteerr.Storef("update volume %s: %v", v.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Deleted volume %s", v.VolumeID),
		prev:    prev,
		next:    map[string]any{"state": resource.VolumeDeleted},
	}, nil
}

func upgradeVolumeType(ctx context.Context, e *Executor, p Params) (outcome, error) {
	v, err := fetch[resource.Volume](ctx, e.store, p, "volume_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"volume_type": v.VolumeType}
	v.VolumeType = "gp3"
	v.UpdatedAt = e.now()
	if err := e.store.Update(ctx, v); err != nil {
		return outcome{}, wasteerr.Storef("update volume %s: %v", v.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Upgraded volume %s to gp3", v.VolumeID),
		prev:    prev,
		next:    map[string]any{"volume_type": "gp3"},
	}, nil
}

func deleteSnapshot(ctx context.Context, e *Executor, p Params) (outcome, error) {
	s, err := fetch[resource.Snapshot](ctx, e.store, p, "snapshot_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"snapshot_id": s.SnapshotID, "size_gib": s.SizeGiB}
	if err := e.store.Delete(ctx, resource.TableSnapshots, s.ID); err != nil {
		return outcome{}, wasteerr.Storef("delete snapshot %s: %v", s.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Deleted snapshot %s", s.SnapshotID),
		prev:    prev,
		next:    map[string]any{"deleted": true},
	}, nil
}

func addLifecyclePolicy(ctx context.Context, e *Executor, p Params) (outcome, error) {
	b, err := fetch[resource.S3Bucket](ctx, e.store, p, "bucket_name", "name")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"lifecycle_rules": append([]resource.LifecycleRule(nil), b.LifecycleRules...)}
	b.LifecycleRules = append(b.LifecycleRules, resource.LifecycleRule{
		ID:     "intelligent-tiering",
		Status: "Enabled",
		Transitions: []resource.LifecycleTransition{
			{Days: 30, StorageClass: "INTELLIGENT_TIERING"},
			{Days: 90, StorageClass: "GLACIER"},
		},
	})
	b.UpdatedAt = e.now()
	if err := e.store.Update(ctx, b); err != nil {
		return outcome{}, wasteerr.Storef("update bucket %s: %v", b.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Added tiering lifecycle policy to bucket %s", b.Name),
		prev:    prev,
		next:    map[string]any{"lifecycle_rules": b.LifecycleRules},
	}, nil
}

func addVersionExpiration(ctx context.Context, e *Executor, p Params) (outcome, error) {
	b, err := fetch[resource.S3Bucket](ctx, e.store, p, "bucket_name", "name")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"lifecycle_rules": append([]resource.LifecycleRule(nil), b.LifecycleRules...)}
	b.LifecycleRules = append(b.LifecycleRules, resource.LifecycleRule{
		ID:                          "expire-noncurrent-versions",
		Status:                      "Enabled",
		NoncurrentVersionExpiration: &resource.NoncurrentVersionExpiration{Days: 30},
	})
	b.UpdatedAt = e.now()
	if err := e.store.Update(ctx, b); err != nil {
		return outcome{}, wasteerr.Storef("update bucket %s: %v", b.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Added noncurrent version expiration to bucket %s", b.Name),
		prev:    prev,
		next:    map[string]any{"lifecycle_rules": b.LifecycleRules},
	}, nil
}

func setRetention(ctx context.Context, e *Executor, p Params) (outcome, error) {
	lg, err := fetch[resource.LogGroup](ctx, e.store, p, "log_group_name", "name")
	if err != nil {
		return outcome{}, err
	}
	var prevRetention any
	if lg.RetentionInDays != nil {
		prevRetention = *lg.RetentionInDays
	}
	prev := map[string]any{"retention_in_days": prevRetention}
	days := 30
	lg.RetentionInDays = &days
	lg.UpdatedAt = e.now()
	if err := e.store.Update(ctx, lg); err != nil {
		return outcome{}, wasteerr.Storef("update log group %s: %v", lg.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Set 30 day retention on log group %s", lg.Name),
		prev:    prev,
		next:    map[string]any{"retention_in_days": days},
	}, nil
}

func stopRDS(ctx context.Context, e *Executor, p Params) (outcome, error) {
	db, err := fetch[resource.RDSInstance](ctx, e.store, p, "db_instance_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"state": db.State}
	db.State = "stopped"
	db.UpdatedAt = e.now()
	if err := e.store.Update(ctx, db); err != nil {
		return outcome{}, wasteerr.Storef("update rds %s: %v", db.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Stopped database %s", db.DBInstanceID),
		prev:    prev,
		next:    map[string]any{"state": "stopped"},
	}, nil
}

func downsizeRDS(ctx context.Context, e *Executor, p Params) (outcome, error) {
	db, err := fetch[resource.RDSInstance](ctx, e.store, p, "db_instance_id")
	if err != nil {
		return outcome{}, err
	}
	target := pricing.DownsizedRDSClass(db.InstanceClass)
	if target == db.InstanceClass {
		return outcome{
			message: fmt.Sprintf("Database %s already at smallest class %s", db.DBInstanceID, db.InstanceClass),
			prev:    map[string]any{"instance_class": db.InstanceClass},
			next:    map[string]any{"instance_class": db.InstanceClass},
		}, nil
	}
	prev := map[string]any{"instance_class": db.InstanceClass}
	db.InstanceClass = target
	db.UpdatedAt = e.now()
	if err := e.store.Update(ctx, db); err != nil {
		return outcome{}, wasteerr.Storef("update rds %s: %v", db.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Downsized database %s to %s", db.DBInstanceID, target),
		prev:    prev,
		next:    map[string]any{"instance_class": target},
	}, nil
}

func disableMultiAZ(ctx context.Context, e *Executor, p Params) (outcome, error) {
	db, err := fetch[resource.RDSInstance](ctx, e.store, p, "db_instance_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"multi_az": db.MultiAZ}
	db.MultiAZ = false
	db.UpdatedAt = e.now()
	if err := e.store.Update(ctx, db); err != nil {
		return outcome{}, wasteerr.Storef("update rds %s: %v", db.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Disabled Multi-AZ on database %s", db.DBInstanceID),
		prev:    prev,
		next:    map[string]any{"multi_az": false},
	}, nil
}

func deleteCache(ctx context.Context, e *Executor, p Params) (outcome, error) {
	cc, err := fetch[resource.CacheCluster](ctx, e.store, p, "cluster_id")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"cluster_id": cc.ClusterID, "node_type": cc.NodeType, "num_nodes": cc.NumNodes}
	if err := e.store.Delete(ctx, resource.TableCacheClusters, cc.ID); err != nil {
		return outcome{}, wasteerr.Storef("delete cache %s: %v", cc.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Deleted cache cluster %s", cc.ClusterID),
		prev:    prev,
		next:    map[string]any{"deleted": true},
	}, nil
}

func deleteLoadBalancer(ctx context.Context, e *Executor, p Params) (outcome, error) {
	lb, err := fetch[resource.LoadBalancer](ctx, e.store, p, "lb_arn", "name")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"lb_arn": lb.LBArn, "name": lb.Name, "type": lb.Type}
	if err := e.store.Delete(ctx, resource.TableLoadBalancers, lb.ID); err != nil {
		return outcome{}, wasteerr.Storef("delete load balancer %s: %v", lb.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Deleted load balancer %s", lb.Name),
		prev:    prev,
		next:    map[string]any{"deleted": true},
	}, nil
}

func deleteLambda(ctx context.Context, e *Executor, p Params) (outcome, error) {
	fn, err := fetch[resource.LambdaFunction](ctx, e.store, p, "function_name", "name")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"name": fn.Name, "memory_mb": fn.MemoryMB}
	if err := e.store.Delete(ctx, resource.TableLambdaFunctions, fn.ID); err != nil {
		return outcome{}, wasteerr.Storef("delete lambda %s: %v", fn.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Deleted function %s", fn.Name),
		prev:    prev,
		next:    map[string]any{"deleted": true},
	}, nil
}

func rightsizeLambda(ctx context.Context, e *Executor, p Params) (outcome, error) {
	fn, err := fetch[resource.LambdaFunction](ctx, e.store, p, "function_name", "name")
	if err != nil {
		return outcome{}, err
	}
	newMemory := fn.MemoryMB / 2
	if newMemory < 128 {
		newMemory = 128
	}
	prev := map[string]any{"memory_mb": fn.MemoryMB}
	fn.MemoryMB = newMemory
	fn.UpdatedAt = e.now()
	if err := e.store.Update(ctx, fn); err != nil {
		return outcome{}, wasteerr.Storef("update lambda %s: %v", fn.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Rightsized function %s to %dMB", fn.Name, newMemory),
		prev:    prev,
		next:    map[string]any{"memory_mb": newMemory},
	}, nil
}

func optimizeLambdaTimeout(ctx context.Context, e *Executor, p Params) (outcome, error) {
	timeout, ok := detailInt(p.Details, "recommendedTimeout")
	if !ok {
		return outcome{}, fmt.Errorf("%w: Missing recommendedTimeout for optimize_lambda_timeout",
			wasteerr.ErrMissingRecommendation)
	}
	fn, err := fetch[resource.LambdaFunction](ctx, e.store, p, "function_name", "name")
	if err != nil {
		return outcome{}, err
	}
	prev := map[string]any{"timeout_seconds": fn.TimeoutSeconds}
	fn.TimeoutSeconds = timeout
	fn.UpdatedAt = e.now()
	if err := e.store.Update(ctx, fn); err != nil {
		return outcome{}, wasteerr.Storef("update lambda %s: %v", fn.ID, err)
	}
	return outcome{
		message: fmt.Sprintf("Set function %s timeout to %ds", fn.Name, timeout),
		prev:    prev,
		next:    map[string]any{"timeout_seconds": timeout},
	}, nil
}
