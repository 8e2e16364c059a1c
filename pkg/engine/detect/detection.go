// Package detect runs the waste scenario rules over a batch-fetched
// inventory snapshot and produces scored detections.
package detect

import (
	"time"

	"github.com/wastelens/wastelens/pkg/resource"
)

// Safety modes. Mode-2 detections may be auto-executed when the account
// runs in automated execution mode; mode-3 detections always require a
// human approval.
const (
	ModeAutoSafe = 2
	ModeApproval = 3
)

// Scenario ids.
const (
	ScenarioIdleInstance            = "idle_instance"
	ScenarioOrphanedEIP             = "orphaned_eip"
	ScenarioUnattachedVolume        = "unattached_volume"
	ScenarioOldSnapshot             = "old_snapshot"
	ScenarioIdleRDS                 = "idle_rds"
	ScenarioIdleCache               = "idle_cache"
	ScenarioIdleLoadBalancer        = "idle_load_balancer"
	ScenarioOverProvisionedLambda   = "over_provisioned_lambda"
	ScenarioS3NoLifecycle           = "s3_no_lifecycle"
	ScenarioLogNoRetention          = "log_no_retention"
	ScenarioForgottenPreview        = "forgotten_preview"
	ScenarioOverProvisionedASG      = "over_provisioned_asg"
	ScenarioStaleFeatureEnv         = "stale_feature_env"
	ScenarioIdleCIRunner            = "idle_ci_runner"
	ScenarioOffHoursDev             = "off_hours_dev"
	ScenarioOverProvisionedInstance = "over_provisioned_instance"
	ScenarioGP2Volume               = "gp2_volume"
	ScenarioUnusedLambda            = "unused_lambda"
	ScenarioOrphanedSnapshot        = "orphaned_snapshot"
	ScenarioStaticASG               = "static_asg"
	ScenarioMultiAZNonProd          = "multi_az_non_prod"
	ScenarioEmptyLoadBalancer       = "empty_load_balancer"
	ScenarioS3NoVersionExpiration   = "s3_no_version_expiration"
	ScenarioLambdaTimeout           = "over_configured_lambda_timeout"
)

// scenarioLabels are the human titles used on recommendations.
var scenarioLabels = map[string]string{
	ScenarioIdleInstance:            "Idle instance",
	ScenarioOrphanedEIP:             "Orphaned elastic IP",
	ScenarioUnattachedVolume:        "Unattached volume",
	ScenarioOldSnapshot:             "Old snapshot",
	ScenarioIdleRDS:                 "Idle database",
	ScenarioIdleCache:               "Idle cache cluster",
	ScenarioIdleLoadBalancer:        "Idle load balancer",
	ScenarioOverProvisionedLambda:   "Over-provisioned function memory",
	ScenarioS3NoLifecycle:           "Bucket without lifecycle policy",
	ScenarioLogNoRetention:          "Log group without retention",
	ScenarioForgottenPreview:        "Forgotten preview environment",
	ScenarioOverProvisionedASG:      "Over-provisioned autoscaling group",
	ScenarioStaleFeatureEnv:         "Stale feature environment",
	ScenarioIdleCIRunner:            "Idle CI runner",
	ScenarioOffHoursDev:             "Dev instance running off-hours",
	ScenarioOverProvisionedInstance: "Over-provisioned instance",
	ScenarioGP2Volume:               "gp2 volume upgradeable to gp3",
	ScenarioUnusedLambda:            "Unused function",
	ScenarioOrphanedSnapshot:        "Orphaned snapshot",
	ScenarioStaticASG:               "Static autoscaling group",
	ScenarioMultiAZNonProd:          "Multi-AZ on non-prod database",
	ScenarioEmptyLoadBalancer:       "Load balancer without targets",
	ScenarioS3NoVersionExpiration:   "Versioned bucket without expiration",
	ScenarioLambdaTimeout:           "Over-configured function timeout",
}

// Label returns the human title for a scenario id.
func Label(scenarioID string) string {
	if l, ok := scenarioLabels[scenarioID]; ok {
		return l
	}
	return scenarioID
}

// Details is the typed detail payload attached to a detection. The two
// executor-consumed fields are first-class; everything else rides in Extra
// as UI payload.
type Details struct {
	RecommendedInstanceType string         `json:"recommendedInstanceType,omitempty"`
	RecommendedTimeout      int            `json:"recommendedTimeout,omitempty"`
	Extra                   map[string]any `json:"extra,omitempty"`
}

// Detection is a transient finding emitted by one scenario on one
// resource. DetectionID is deterministic (scenario_id + "-" + row id) and
// is the idempotency key against the recommendation store.
type Detection struct {
	DetectionID      string    `json:"detection_id"`
	ScenarioID       string    `json:"scenario_id"`
	ResourceType     string    `json:"resource_type"`
	ResourceID       string    `json:"resource_id"`
	ResourceName     string    `json:"resource_name"`
	AccountID        string    `json:"account_id"`
	Region           string    `json:"region"`
	Env              string    `json:"env"`
	Action           string    `json:"action"`
	Confidence       int       `json:"confidence"`
	Mode             int       `json:"mode"`
	MonthlyCost      float64   `json:"monthly_cost"`
	PotentialSavings float64   `json:"potential_savings"`
	Details          Details   `json:"details"`
	CanAutoOptimize  bool      `json:"can_auto_optimize"`
	CreatedAt        time.Time `json:"created_at"`
}

// ImpactLevel derives the impact bucket from monthly savings.
func (d Detection) ImpactLevel() string {
	return ImpactForSavings(d.PotentialSavings)
}

// ImpactForSavings buckets monthly savings into impact levels.
func ImpactForSavings(savings float64) string {
	switch {
	case savings >= 500:
		return resource.ImpactCritical
	case savings >= 100:
		return resource.ImpactHigh
	case savings >= 25:
		return resource.ImpactMedium
	default:
		return resource.ImpactLow
	}
}

// Summary aggregates one scan.
type Summary struct {
	TotalDetections        int            `json:"total_detections"`
	ByScenario             map[string]int `json:"by_scenario"`
	BySeverity             map[string]int `json:"by_severity"`
	TotalMonthlyCost       float64        `json:"total_monthly_cost"`
	TotalPotentialSavings  float64        `json:"total_potential_savings"`
	AutoOptimizableSavings float64        `json:"auto_optimizable_savings"`
}

// Result is the outcome of one full scan. CacheHit reports whether this
// result was served from the scan cache rather than computed.
type Result struct {
	Detections     []Detection    `json:"detections"`
	Summary        Summary        `json:"summary"`
	ResourceCounts map[string]int `json:"resource_counts"`
	Timestamp      time.Time      `json:"timestamp"`
	CacheHit       bool           `json:"cache_hit"`
}

func summarize(detections []Detection) Summary {
	s := Summary{
		ByScenario: make(map[string]int),
		BySeverity: make(map[string]int),
	}
	for _, d := range detections {
		s.TotalDetections++
		s.ByScenario[d.ScenarioID]++
		s.BySeverity[d.ImpactLevel()]++
		s.TotalMonthlyCost += d.MonthlyCost
		s.TotalPotentialSavings += d.PotentialSavings
		if d.CanAutoOptimize {
			s.AutoOptimizableSavings += d.PotentialSavings
		}
	}
	return s
}
