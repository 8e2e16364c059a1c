package detect

import (
	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/resource"
)

// OrphanedEIPRule flags allocated addresses not associated with any
// instance. These bill a flat hourly rate for doing nothing.
type OrphanedEIPRule struct{}

func (OrphanedEIPRule) ID() string { return ScenarioOrphanedEIP }

func (OrphanedEIPRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, ip := range snap.ElasticIPs {
		if ip.AssociatedInstanceID != nil {
			continue
		}

		monthly := pricing.UnattachedEIPMonthlyCost()
		out = append(out, newDetection(ip.Meta, resource.TableElasticIPs, ip.PublicIP,
			ScenarioOrphanedEIP, resource.ActionReleaseEIP, ModeAutoSafe, 98,
			monthly, monthly,
			extra("publicIp", ip.PublicIP), rc.Now))
	}
	return out
}

// IdleLoadBalancerRule flags balancers serving under a thousand requests
// a week. A missing request metric counts as idle: a balancer with no
// telemetry has no traffic to report.
type IdleLoadBalancerRule struct{}

func (IdleLoadBalancerRule) ID() string { return ScenarioIdleLoadBalancer }

func (IdleLoadBalancerRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, lb := range snap.LoadBalancers {
		if lb.AvgRequestCount7d != nil && *lb.AvgRequestCount7d >= 1000 {
			continue
		}

		conf := 80
		if lb.AvgRequestCount7d == nil || *lb.AvgRequestCount7d < 100 {
			conf += 15
		}

		monthly := pricing.LBMonthlyCost(lb.Type, 0)
		det := newDetection(lb.Meta, resource.TableLoadBalancers, lb.Name,
			ScenarioIdleLoadBalancer, resource.ActionDeleteLB, ModeApproval, conf,
			monthly, monthly,
			extra("type", lb.Type), rc.Now)
		if lb.AvgRequestCount7d != nil {
			det.Details.Extra["avgRequests7d"] = *lb.AvgRequestCount7d
		}
		out = append(out, det)
	}
	return out
}

// EmptyLoadBalancerRule flags balancers with no registered targets, or
// whose every target is unhealthy.
type EmptyLoadBalancerRule struct{}

func (EmptyLoadBalancerRule) ID() string { return ScenarioEmptyLoadBalancer }

func (EmptyLoadBalancerRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, lb := range snap.LoadBalancers {
		empty := lb.TargetCount == 0
		allUnhealthy := lb.TargetCount > 0 && lb.HealthyTargetCount == 0
		if !empty && !allUnhealthy {
			continue
		}

		monthly := pricing.LBMonthlyCost(lb.Type, 0)
		out = append(out, newDetection(lb.Meta, resource.TableLoadBalancers, lb.Name,
			ScenarioEmptyLoadBalancer, resource.ActionDeleteEmptyLB, ModeApproval, 85,
			monthly, monthly,
			extra("targetCount", lb.TargetCount, "healthyTargetCount", lb.HealthyTargetCount), rc.Now))
	}
	return out
}
