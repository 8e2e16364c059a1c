package detect

import (
	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/resource"
)

// IdleInstanceRule flags running instances under 5% CPU over 7 days.
type IdleInstanceRule struct{}

func (IdleInstanceRule) ID() string { return ScenarioIdleInstance }

func (IdleInstanceRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, in := range snap.Instances {
		if in.State != resource.InstanceRunning {
			continue
		}
		cpu, ok := effectiveCPU(in)
		if !ok || cpu >= 5 {
			continue
		}

		conf := 80
		if cpu < 2 {
			conf += 10
		}
		if in.Env == "dev" || in.Env == "staging" {
			conf += 5
		}

		monthly := instanceMonthly(in)
		out = append(out, newDetection(in.Meta, resource.TableInstances, in.Name,
			ScenarioIdleInstance, resource.ActionStopInstance, ModeAutoSafe, conf,
			monthly, 0.9*monthly,
			extra("avgCpu7d", cpu, "instanceType", in.InstanceType), rc.Now))
	}
	return out
}

// ciMarkers identify build infrastructure by name or tag.
var ciMarkers = []string{"ci", "runner", "jenkins", "gitlab-runner", "github-actions", "build"}

// IdleCIRunnerRule flags idle build runners. These are near-certain waste:
// a runner under 5% CPU for a week is not building anything.
type IdleCIRunnerRule struct{}

func (IdleCIRunnerRule) ID() string { return ScenarioIdleCIRunner }

func (IdleCIRunnerRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, in := range snap.Instances {
		if in.State != resource.InstanceRunning {
			continue
		}
		cpu, ok := effectiveCPU(in)
		if !ok || cpu >= 5 {
			continue
		}
		if !isCIRunner(in) {
			continue
		}

		conf := 95
		if cpu < 2 {
			conf += 5
		}

		monthly := instanceMonthly(in)
		out = append(out, newDetection(in.Meta, resource.TableInstances, in.Name,
			ScenarioIdleCIRunner, resource.ActionTerminateInstance, ModeAutoSafe, conf,
			monthly, monthly,
			extra("avgCpu7d", cpu), rc.Now))
	}
	return out
}

func isCIRunner(in resource.Instance) bool {
	if containsAny(in.Name, ciMarkers...) {
		return true
	}
	for k, v := range in.Tags {
		if containsAny(k, ciMarkers...) || containsAny(v, ciMarkers...) {
			return true
		}
	}
	return false
}

// OffHoursDevRule flags dev instances running on weekends or outside
// 07:00-19:00. Emits nothing during business hours.
type OffHoursDevRule struct{}

func (OffHoursDevRule) ID() string { return ScenarioOffHoursDev }

func (OffHoursDevRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	weekday := rc.Now.Weekday()
	weekend := weekday == 0 || weekday == 6
	hour := rc.Now.Hour()
	offHours := weekend || hour < 7 || hour > 19
	if !offHours {
		return nil
	}

	var out []Detection
	for _, in := range snap.Instances {
		if in.State != resource.InstanceRunning || in.Env != "dev" {
			continue
		}

		conf := 80
		if weekend {
			conf += 10
		}
		if cpu, ok := effectiveCPU(in); ok && cpu < 5 {
			conf += 5
		}

		monthly := instanceMonthly(in)
		out = append(out, newDetection(in.Meta, resource.TableInstances, in.Name,
			ScenarioOffHoursDev, resource.ActionStopInstance, ModeAutoSafe, conf,
			monthly, 0.6*monthly,
			extra("weekend", weekend, "hour", hour), rc.Now))
	}
	return out
}

// OverProvisionedInstanceRule suggests the next smaller family sibling for
// moderately loaded instances.
type OverProvisionedInstanceRule struct{}

func (OverProvisionedInstanceRule) ID() string { return ScenarioOverProvisionedInstance }

func (OverProvisionedInstanceRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, in := range snap.Instances {
		if in.State != resource.InstanceRunning {
			continue
		}
		cpu, ok := effectiveCPU(in)
		if !ok || cpu < 5 || cpu >= 30 {
			continue
		}
		if in.CurrentMemory != nil && *in.CurrentMemory >= 40 {
			continue
		}
		smaller := pricing.RecommendedSmallerInstance(in.InstanceType)
		if smaller == "" {
			continue
		}

		conf := 80
		if cpu < 15 {
			conf += 10
		}
		if in.CurrentMemory != nil && *in.CurrentMemory < 25 {
			conf += 5
		}
		if !isProd(in.Env) {
			conf += 5
		}

		monthly := instanceMonthly(in)
		savings := pricing.InstanceMonthlyCost(in.InstanceType) - pricing.InstanceMonthlyCost(smaller)
		det := newDetection(in.Meta, resource.TableInstances, in.Name,
			ScenarioOverProvisionedInstance, resource.ActionRightsizeInstance, ModeApproval, conf,
			monthly, savings,
			extra("currentType", in.InstanceType, "avgCpu7d", cpu), rc.Now)
		det.Details.RecommendedInstanceType = smaller
		out = append(out, det)
	}
	return out
}
