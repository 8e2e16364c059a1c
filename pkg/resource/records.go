package resource

import "time"

// Recommendation statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusSnoozed   = "snoozed"
	StatusScheduled = "scheduled"
	StatusExecuted  = "executed"
)

// Impact levels, ordered.
const (
	ImpactLow      = "low"
	ImpactMedium   = "medium"
	ImpactHigh     = "high"
	ImpactCritical = "critical"
)

// ImpactRank orders impact levels for sorting; higher is worse.
func ImpactRank(level string) int {
	switch level {
	case ImpactCritical:
		return 3
	case ImpactHigh:
		return 2
	case ImpactMedium:
		return 1
	default:
		return 0
	}
}

// Recommendation is the durable record derived from a detection.
// DetectionID is the uniqueness key: ingesting the same detection twice
// never creates a second row.
type Recommendation struct {
	ID           string `json:"id" gorm:"primaryKey;column:id"`
	DetectionID  string `json:"detection_id" gorm:"column:detection_id;uniqueIndex"`
	ScenarioID   string `json:"scenario_id" gorm:"column:scenario_id;index"`
	ResourceType string `json:"resource_type" gorm:"column:resource_type"`
	ResourceID   string `json:"resource_id" gorm:"column:resource_id"`
	ResourceName string `json:"resource_name" gorm:"column:resource_name"`
	AccountID    string `json:"account_id" gorm:"column:account_id"`
	Region       string `json:"region" gorm:"column:region"`
	Env          string `json:"env" gorm:"column:env"`

	Action           string  `json:"action" gorm:"column:action"`
	Confidence       int     `json:"confidence" gorm:"column:confidence"`
	Mode             int     `json:"mode" gorm:"column:mode"`
	MonthlyCost      float64 `json:"monthly_cost" gorm:"column:monthly_cost"`
	PotentialSavings float64 `json:"potential_savings" gorm:"column:potential_savings"`
	ImpactLevel      string  `json:"impact_level" gorm:"column:impact_level"`
	Title            string  `json:"title" gorm:"column:title"`
	Description      string  `json:"description" gorm:"column:description"`

	RecommendedInstanceType string         `json:"recommended_instance_type,omitempty" gorm:"column:recommended_instance_type"`
	RecommendedTimeout      int            `json:"recommended_timeout,omitempty" gorm:"column:recommended_timeout"`
	Details                 map[string]any `json:"details" gorm:"column:details;serializer:json"`

	Status          string     `json:"status" gorm:"column:status;index"`
	ActionedBy      *string    `json:"actioned_by,omitempty" gorm:"column:actioned_by"`
	ActionedAt      *time.Time `json:"actioned_at,omitempty" gorm:"column:actioned_at"`
	Reason          *string    `json:"reason,omitempty" gorm:"column:reason"`
	SnoozedUntil    *time.Time `json:"snoozed_until,omitempty" gorm:"column:snoozed_until"`
	ScheduledFor    *time.Time `json:"scheduled_for,omitempty" gorm:"column:scheduled_for"`
	RejectionReason *string    `json:"rejection_reason,omitempty" gorm:"column:rejection_reason"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Recommendation) TableName() string  { return TableRecommendations }
func (r Recommendation) RecordID() string { return r.ID }
func (r Recommendation) Keys() map[string]string {
	return map[string]string{"detection_id": r.DetectionID}
}

// Field exposes filterable columns.
func (r Recommendation) Field(name string) (string, bool) {
	switch name {
	case "detection_id":
		return r.DetectionID, true
	case "scenario_id":
		return r.ScenarioID, true
	case "status":
		return r.Status, true
	case "resource_type":
		return r.ResourceType, true
	case "impact_level":
		return r.ImpactLevel, true
	}
	return "", false
}

// AuditEntry is one append-only audit row. Rows are never modified.
type AuditEntry struct {
	ID            string         `json:"id" gorm:"primaryKey;column:id"`
	Action        string         `json:"action" gorm:"column:action"`
	ResourceType  string         `json:"resource_type" gorm:"column:resource_type"`
	ResourceID    string         `json:"resource_id" gorm:"column:resource_id"`
	ResourceName  string         `json:"resource_name" gorm:"column:resource_name"`
	ScenarioID    string         `json:"scenario_id" gorm:"column:scenario_id"`
	DetectionID   string         `json:"detection_id" gorm:"column:detection_id"`
	Success       bool           `json:"success" gorm:"column:success"`
	Message       string         `json:"message" gorm:"column:message"`
	PreviousState map[string]any `json:"previous_state,omitempty" gorm:"column:previous_state;serializer:json"`
	NewState      map[string]any `json:"new_state,omitempty" gorm:"column:new_state;serializer:json"`
	ExecutedAt    time.Time      `json:"executed_at" gorm:"column:executed_at;index"`
	DurationMs    int64          `json:"duration_ms" gorm:"column:duration_ms"`
	ExecutedBy    string         `json:"executed_by" gorm:"column:executed_by"`
}

func (AuditEntry) TableName() string  { return TableAuditLog }
func (r AuditEntry) RecordID() string { return r.ID }
func (r AuditEntry) Keys() map[string]string {
	return map[string]string{"detection_id": r.DetectionID}
}

// Remediation action names. Each maps to exactly one executor handler.
const (
	ActionTerminateInstance      = "terminate_instance"
	ActionStopInstance           = "stop_instance"
	ActionRightsizeInstance      = "rightsize_instance"
	ActionTerminateASG           = "terminate_asg"
	ActionScaleDownASG           = "scale_down_asg"
	ActionEnableASGScaling       = "enable_asg_scaling"
	ActionReleaseEIP             = "release_eip"
	ActionDeleteVolume           = "delete_volume"
	ActionUpgradeVolumeType      = "upgrade_volume_type"
	ActionDeleteSnapshot         = "delete_snapshot"
	ActionDeleteOrphanedSnapshot = "delete_orphaned_snapshot"
	ActionAddLifecyclePolicy     = "add_lifecycle_policy"
	ActionAddVersionExpiration   = "add_version_expiration"
	ActionSetRetention           = "set_retention"
	ActionStopRDS                = "stop_rds"
	ActionDownsizeRDS            = "downsize_rds"
	ActionDisableMultiAZ         = "disable_multi_az"
	ActionDeleteCache            = "delete_cache"
	ActionDeleteLB               = "delete_lb"
	ActionDeleteEmptyLB          = "delete_empty_lb"
	ActionDeleteLambda           = "delete_lambda"
	ActionRightsizeLambda        = "rightsize_lambda"
	ActionOptimizeLambdaTimeout  = "optimize_lambda_timeout"
)

// Execution modes.
const (
	ModeManual    = "manual"
	ModeAutomated = "automated"
)

// ExecutionMode is the per-account execution mode record. Only the
// drift-tick consults it.
type ExecutionMode struct {
	AccountID string    `json:"account_id" gorm:"primaryKey;column:account_id"`
	Mode      string    `json:"mode" gorm:"column:mode"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (ExecutionMode) TableName() string  { return TableExecutionModes }
func (r ExecutionMode) RecordID() string { return r.AccountID }
func (r ExecutionMode) Keys() map[string]string {
	return map[string]string{"account_id": r.AccountID}
}
