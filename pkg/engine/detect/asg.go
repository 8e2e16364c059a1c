package detect

import (
	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/resource"
)

func asgMonthly(g resource.AutoscalingGroup) float64 {
	return pricing.Round4(float64(g.DesiredCapacity) * pricing.InstanceMonthlyCost(g.InstanceType))
}

func looksLike(g resource.AutoscalingGroup, needles ...string) bool {
	if containsAny(g.Env, needles...) || containsAny(g.Name, needles...) {
		return true
	}
	for _, v := range g.Tags {
		if containsAny(v, needles...) {
			return true
		}
	}
	return false
}

// ForgottenPreviewRule flags preview environments still running capacity
// at under 10% utilization.
type ForgottenPreviewRule struct{}

func (ForgottenPreviewRule) ID() string { return ScenarioForgottenPreview }

func (ForgottenPreviewRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, g := range snap.ASGs {
		if g.DesiredCapacity == 0 || g.CurrentUtilization >= 10 {
			continue
		}
		if !looksLike(g, "preview", "pr-") {
			continue
		}

		age := ageDays(g.CreatedAt, rc.Now)
		conf := 85
		if age > 7 {
			conf += 10
		}
		if age > 14 {
			conf += 5
		}

		monthly := asgMonthly(g)
		out = append(out, newDetection(g.Meta, resource.TableAutoscalingGroups, g.Name,
			ScenarioForgottenPreview, resource.ActionTerminateASG, ModeAutoSafe, conf,
			monthly, monthly,
			extra("ageDays", int(age), "desiredCapacity", g.DesiredCapacity), rc.Now))
	}
	return out
}

// OverProvisionedASGRule targets a capacity sized for roughly 50%
// utilization, bounded below by min_size.
type OverProvisionedASGRule struct{}

func (OverProvisionedASGRule) ID() string { return ScenarioOverProvisionedASG }

func (OverProvisionedASGRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, g := range snap.ASGs {
		if g.DesiredCapacity <= 1 || g.CurrentUtilization >= 30 || g.DesiredCapacity <= g.MinSize {
			continue
		}

		target := ceilDiv(float64(g.DesiredCapacity) * g.CurrentUtilization / 50)
		if target < g.MinSize {
			target = g.MinSize
		}
		savings := pricing.Round4(float64(g.DesiredCapacity-target) * pricing.InstanceMonthlyCost(g.InstanceType))
		if savings <= 0 {
			continue
		}

		conf := 75
		if g.CurrentUtilization < 20 {
			conf += 10
		}
		if g.CurrentUtilization < 10 {
			conf += 10
		}

		det := newDetection(g.Meta, resource.TableAutoscalingGroups, g.Name,
			ScenarioOverProvisionedASG, resource.ActionScaleDownASG, ModeAutoSafe, conf,
			asgMonthly(g), savings,
			extra("currentCapacity", g.DesiredCapacity, "targetCapacity", target,
				"utilization", g.CurrentUtilization), rc.Now)
		out = append(out, det)
	}
	return out
}

// StaleFeatureEnvRule flags feature branch environments older than a week
// with little traffic.
type StaleFeatureEnvRule struct{}

func (StaleFeatureEnvRule) ID() string { return ScenarioStaleFeatureEnv }

func (StaleFeatureEnvRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, g := range snap.ASGs {
		if g.DesiredCapacity == 0 || g.CurrentUtilization >= 20 {
			continue
		}
		if !looksLike(g, "feature", "feat-") {
			continue
		}
		age := ageDays(g.CreatedAt, rc.Now)
		if age <= 7 {
			continue
		}

		conf := 85
		if age > 14 {
			conf += 10
		}
		if age > 30 {
			conf += 5
		}

		monthly := asgMonthly(g)
		out = append(out, newDetection(g.Meta, resource.TableAutoscalingGroups, g.Name,
			ScenarioStaleFeatureEnv, resource.ActionTerminateASG, ModeAutoSafe, conf,
			monthly, monthly,
			extra("ageDays", int(age), "utilization", g.CurrentUtilization), rc.Now))
	}
	return out
}

// StaticASGRule flags groups pinned to a fixed size larger than one. A
// group that cannot scale is paying peak capacity around the clock.
type StaticASGRule struct{}

func (StaticASGRule) ID() string { return ScenarioStaticASG }

func (StaticASGRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, g := range snap.ASGs {
		if g.MinSize != g.MaxSize || g.MaxSize != g.DesiredCapacity || g.DesiredCapacity <= 1 {
			continue
		}

		monthly := asgMonthly(g)
		out = append(out, newDetection(g.Meta, resource.TableAutoscalingGroups, g.Name,
			ScenarioStaticASG, resource.ActionEnableASGScaling, ModeApproval, 75,
			monthly, 0.3*monthly,
			extra("fixedSize", g.DesiredCapacity), rc.Now))
	}
	return out
}
