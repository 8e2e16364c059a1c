package detect

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/resource"
)

// Rule is one scenario evaluator. Rules are pure over the snapshot: they
// never touch the store, never raise, and skip ill-formed rows.
type Rule interface {
	ID() string
	Evaluate(rc Context, snap *Snapshot) []Detection
}

// Context carries the evaluation-time inputs shared by every rule.
type Context struct {
	Now time.Time

	// TreatMissingMetricsAsIdle controls the null-metric branch in the
	// idle database/cache rules. Missing telemetry and zero load are not
	// the same thing; this knob decides which way ambiguity falls.
	TreatMissingMetricsAsIdle bool

	Logger *slog.Logger
}

func (rc Context) log() *slog.Logger {
	if rc.Logger != nil {
		return rc.Logger
	}
	return slog.Default()
}

// newDetection builds a detection with the deterministic id and clamped
// confidence. savings is capped at cost so the monotonicity invariant
// holds regardless of rule arithmetic.
func newDetection(meta resource.Meta, table, name, scenario, action string, mode, confidence int, monthlyCost, savings float64, details Details, now time.Time) Detection {
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}
	monthlyCost = pricing.Round4(monthlyCost)
	savings = pricing.Round4(savings)
	if savings > monthlyCost {
		savings = monthlyCost
	}
	return Detection{
		DetectionID:      scenario + "-" + meta.ID,
		ScenarioID:       scenario,
		ResourceType:     table,
		ResourceID:       meta.ID,
		ResourceName:     name,
		AccountID:        meta.AccountID,
		Region:           meta.Region,
		Env:              meta.Env,
		Action:           action,
		Confidence:       confidence,
		Mode:             mode,
		MonthlyCost:      monthlyCost,
		PotentialSavings: savings,
		Details:          details,
		CanAutoOptimize:  mode == ModeAutoSafe,
		CreatedAt:        now,
	}
}

// extra builds a one-off detail payload.
func extra(kv ...any) Details {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return Details{Extra: m}
}

var nonProdEnvs = map[string]bool{
	"dev": true, "staging": true, "test": true,
	"preview": true, "development": true, "qa": true,
}

func isProd(env string) bool {
	return env == "prod" || env == "production"
}

func ageDays(t time.Time, now time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return now.Sub(t).Hours() / 24
}

func containsAny(s string, needles ...string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// effectiveCPU coalesces the 7-day average with the live reading.
func effectiveCPU(in resource.Instance) (float64, bool) {
	if in.AvgCPU7d != nil {
		return *in.AvgCPU7d, true
	}
	if in.CurrentCPU != nil {
		return *in.CurrentCPU, true
	}
	return 0, false
}

// instanceMonthly prefers the row's metered hourly cost over the catalog.
func instanceMonthly(in resource.Instance) float64 {
	if in.HourlyCost > 0 {
		return pricing.Round4(in.HourlyCost * pricing.HoursPerMonth)
	}
	return pricing.InstanceMonthlyCost(in.InstanceType)
}

func ceilDiv(v float64) int {
	return int(math.Ceil(v))
}

// defaultRules returns the full scenario set in registration order. Rule
// order is not externally observable; summaries depend only on the set.
func defaultRules() []Rule {
	return []Rule{
		// Compute.
		&IdleInstanceRule{},
		&IdleCIRunnerRule{},
		&OffHoursDevRule{},
		&OverProvisionedInstanceRule{},
		// Autoscaling groups.
		&ForgottenPreviewRule{},
		&OverProvisionedASGRule{},
		&StaleFeatureEnvRule{},
		&StaticASGRule{},
		// Databases and caches.
		&IdleRDSRule{},
		&MultiAZNonProdRule{},
		&IdleCacheRule{},
		// Network.
		&OrphanedEIPRule{},
		&IdleLoadBalancerRule{},
		&EmptyLoadBalancerRule{},
		// Storage.
		&UnattachedVolumeRule{},
		&GP2VolumeRule{},
		&OldSnapshotRule{},
		&OrphanedSnapshotRule{},
		&S3NoLifecycleRule{},
		&S3NoVersionExpirationRule{},
		&LogNoRetentionRule{},
		// Serverless.
		&OverProvisionedLambdaRule{},
		&UnusedLambdaRule{},
		&LambdaTimeoutRule{},
	}
}
