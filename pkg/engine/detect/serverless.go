package detect

import (
	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/resource"
)

// lambdaInvocationsPerMonth scales the 7-day count to a billing month.
func lambdaInvocationsPerMonth(fn resource.LambdaFunction) float64 {
	if fn.Invocations7d == nil {
		return 0
	}
	return *fn.Invocations7d / 7 * 30
}

// OverProvisionedLambdaRule sizes function memory to 1.5x observed usage,
// rounded up to the 64MB grid with a 128MB floor.
type OverProvisionedLambdaRule struct{}

func (OverProvisionedLambdaRule) ID() string { return ScenarioOverProvisionedLambda }

func (OverProvisionedLambdaRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, fn := range snap.LambdaFunctions {
		if fn.AvgMemoryUsedMB7d == nil || fn.MemoryMB == 0 {
			continue
		}
		util := *fn.AvgMemoryUsedMB7d / float64(fn.MemoryMB) * 100
		if util >= 50 {
			continue
		}

		newMem := ceilDiv(*fn.AvgMemoryUsedMB7d*1.5/64) * 64
		if newMem < 128 {
			newMem = 128
		}
		if newMem >= fn.MemoryMB {
			continue
		}

		durMs := 0.0
		if fn.AvgDurationMs7d != nil {
			durMs = *fn.AvgDurationMs7d
		}
		inv := lambdaInvocationsPerMonth(fn)
		cost := pricing.LambdaMonthlyCost(fn.MemoryMB, durMs, inv)
		savings := cost - pricing.LambdaMonthlyCost(newMem, durMs, inv)
		if savings <= 0 {
			continue
		}

		conf := 85
		if util < 25 {
			conf += 10
		}
		if util < 10 {
			conf += 5
		}

		det := newDetection(fn.Meta, resource.TableLambdaFunctions, fn.Name,
			ScenarioOverProvisionedLambda, resource.ActionRightsizeLambda, ModeApproval, conf,
			cost, savings,
			extra("currentMemoryMb", fn.MemoryMB, "recommendedMemoryMb", newMem,
				"memoryUtilization", pricing.Round4(util)), rc.Now)
		out = append(out, det)
	}
	return out
}

// UnusedLambdaRule flags functions with zero invocations over the window.
// A missing counter also fires: a function nothing calls reports nothing.
type UnusedLambdaRule struct{}

func (UnusedLambdaRule) ID() string { return ScenarioUnusedLambda }

func (UnusedLambdaRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, fn := range snap.LambdaFunctions {
		if fn.Invocations7d != nil && *fn.Invocations7d > 0 {
			continue
		}

		// Flat nominal cost: an unused function bills nothing for compute,
		// but carries code storage and operational surface.
		cost := 0.50
		out = append(out, newDetection(fn.Meta, resource.TableLambdaFunctions, fn.Name,
			ScenarioUnusedLambda, resource.ActionDeleteLambda, ModeAutoSafe, 90,
			cost, cost,
			extra("memoryMb", fn.MemoryMB), rc.Now))
	}
	return out
}

// LambdaTimeoutRule flags timeouts of 10s or more set at 3x or more the
// observed duration. The recommended timeout is double the observed
// duration with a 1s floor.
type LambdaTimeoutRule struct{}

func (LambdaTimeoutRule) ID() string { return ScenarioLambdaTimeout }

func (LambdaTimeoutRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, fn := range snap.LambdaFunctions {
		if fn.AvgDurationMs7d == nil || fn.TimeoutSeconds < 10 {
			continue
		}
		durSec := *fn.AvgDurationMs7d / 1000
		if float64(fn.TimeoutSeconds) < 3*durSec {
			continue
		}

		inv := lambdaInvocationsPerMonth(fn)
		cost := pricing.LambdaMonthlyCost(fn.MemoryMB, *fn.AvgDurationMs7d, inv)
		savings := pricing.Round4(0.1 * cost)
		if savings <= 0 {
			continue
		}

		recommended := ceilDiv(2 * durSec)
		if recommended < 1 {
			recommended = 1
		}

		det := newDetection(fn.Meta, resource.TableLambdaFunctions, fn.Name,
			ScenarioLambdaTimeout, resource.ActionOptimizeLambdaTimeout, ModeApproval, 80,
			cost, savings,
			extra("currentTimeoutSeconds", fn.TimeoutSeconds,
				"avgDurationMs", *fn.AvgDurationMs7d), rc.Now)
		det.Details.RecommendedTimeout = recommended
		out = append(out, det)
	}
	return out
}
