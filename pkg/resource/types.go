// Package resource defines the simulated cloud inventory: the eleven
// resource tables, the daily-metrics ledger, and the change-event stream.
package resource

import "time"

// Table names. A resource identifier is unique within (account_id, table).
const (
	TableInstances         = "instances"
	TableAutoscalingGroups = "autoscaling_groups"
	TableRDSInstances      = "rds_instances"
	TableCacheClusters     = "cache_clusters"
	TableLoadBalancers     = "load_balancers"
	TableLambdaFunctions   = "lambda_functions"
	TableVolumes           = "volumes"
	TableSnapshots         = "snapshots"
	TableS3Buckets         = "s3_buckets"
	TableLogGroups         = "log_groups"
	TableElasticIPs        = "elastic_ips"

	TableDailyMetrics    = "daily_metrics"
	TableChangeEvents    = "resource_change_events"
	TableAuditLog        = "audit_log"
	TableRecommendations = "recommendations"
	TableExecutionModes  = "execution_modes"
)

// ResourceTables lists the eleven inventory tables in snapshot-fetch order.
var ResourceTables = []string{
	TableInstances,
	TableAutoscalingGroups,
	TableRDSInstances,
	TableCacheClusters,
	TableLoadBalancers,
	TableLambdaFunctions,
	TableVolumes,
	TableSnapshots,
	TableS3Buckets,
	TableLogGroups,
	TableElasticIPs,
}

// Record is a row in one of the store tables.
//
// Keys returns the natural identifier fields for the row ("instance_id",
// "volume_id", ...). Callers may address rows by primary key or by any
// natural key; the store resolves both.
type Record interface {
	TableName() string
	RecordID() string
	Keys() map[string]string
}

// Meta carries the header fields shared by every inventory row.
type Meta struct {
	ID        string            `json:"id" gorm:"primaryKey;column:id"`
	AccountID string            `json:"account_id" gorm:"column:account_id;index"`
	Region    string            `json:"region" gorm:"column:region"`
	Env       string            `json:"env" gorm:"column:env"`
	Tags      map[string]string `json:"tags" gorm:"column:tags;serializer:json"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

// Instance states.
const (
	InstanceRunning    = "running"
	InstanceStopped    = "stopped"
	InstanceTerminated = "terminated"
)

// Instance is a compute instance row.
type Instance struct {
	Meta
	InstanceID         string    `json:"instance_id" gorm:"column:instance_id;index"`
	InstanceType       string    `json:"instance_type" gorm:"column:instance_type"`
	Name               string    `json:"name" gorm:"column:name"`
	State              string    `json:"state" gorm:"column:state"`
	HourlyCost         float64   `json:"hourly_cost" gorm:"column:hourly_cost"`
	AvgCPU7d           *float64  `json:"avg_cpu_7d" gorm:"column:avg_cpu_7d"`
	CurrentCPU         *float64  `json:"current_cpu" gorm:"column:current_cpu"`
	CurrentMemory      *float64  `json:"current_memory" gorm:"column:current_memory"`
	AutoscalingGroupID *string   `json:"autoscaling_group_id" gorm:"column:autoscaling_group_id"`
	LaunchTime         time.Time `json:"launch_time" gorm:"column:launch_time"`
}

func (Instance) TableName() string  { return TableInstances }
func (r Instance) RecordID() string { return r.ID }
func (r Instance) Keys() map[string]string {
	return map[string]string{"instance_id": r.InstanceID}
}

// AutoscalingGroup is an autoscaling group row.
type AutoscalingGroup struct {
	Meta
	Name               string    `json:"name" gorm:"column:name;index"`
	InstanceType       string    `json:"instance_type" gorm:"column:instance_type"`
	MinSize            int       `json:"min_size" gorm:"column:min_size"`
	MaxSize            int       `json:"max_size" gorm:"column:max_size"`
	DesiredCapacity    int       `json:"desired_capacity" gorm:"column:desired_capacity"`
	CurrentUtilization float64   `json:"current_utilization" gorm:"column:current_utilization"`
	CreatedAt          time.Time `json:"created_at" gorm:"column:created_at"`
}

func (AutoscalingGroup) TableName() string  { return TableAutoscalingGroups }
func (r AutoscalingGroup) RecordID() string { return r.ID }
func (r AutoscalingGroup) Keys() map[string]string {
	return map[string]string{"asg_name": r.Name, "name": r.Name}
}

// RDSInstance is a managed database row.
type RDSInstance struct {
	Meta
	DBInstanceID     string   `json:"db_instance_id" gorm:"column:db_instance_id;index"`
	InstanceClass    string   `json:"instance_class" gorm:"column:instance_class"`
	Engine           string   `json:"engine" gorm:"column:engine"`
	State            string   `json:"state" gorm:"column:state"`
	MultiAZ          bool     `json:"multi_az" gorm:"column:multi_az"`
	AvgCPU7d         *float64 `json:"avg_cpu_7d" gorm:"column:avg_cpu_7d"`
	AvgConnections7d *float64 `json:"avg_connections_7d" gorm:"column:avg_connections_7d"`
}

func (RDSInstance) TableName() string  { return TableRDSInstances }
func (r RDSInstance) RecordID() string { return r.ID }
func (r RDSInstance) Keys() map[string]string {
	return map[string]string{"db_instance_id": r.DBInstanceID}
}

// CacheCluster is a cache cluster row.
type CacheCluster struct {
	Meta
	ClusterID        string   `json:"cluster_id" gorm:"column:cluster_id;index"`
	NodeType         string   `json:"node_type" gorm:"column:node_type"`
	NumNodes         int      `json:"num_nodes" gorm:"column:num_nodes"`
	AvgCPU7d         *float64 `json:"avg_cpu_7d" gorm:"column:avg_cpu_7d"`
	AvgConnections7d *float64 `json:"avg_connections_7d" gorm:"column:avg_connections_7d"`
}

func (CacheCluster) TableName() string  { return TableCacheClusters }
func (r CacheCluster) RecordID() string { return r.ID }
func (r CacheCluster) Keys() map[string]string {
	return map[string]string{"cluster_id": r.ClusterID}
}

// Load balancer types.
const (
	LBApplication = "application"
	LBNetwork     = "network"
	LBClassic     = "classic"
)

// LoadBalancer is a load balancer row.
type LoadBalancer struct {
	Meta
	LBArn              string   `json:"lb_arn" gorm:"column:lb_arn;index"`
	Name               string   `json:"name" gorm:"column:name"`
	Type               string   `json:"type" gorm:"column:type"`
	TargetCount        int      `json:"target_count" gorm:"column:target_count"`
	HealthyTargetCount int      `json:"healthy_target_count" gorm:"column:healthy_target_count"`
	AvgRequestCount7d  *float64 `json:"avg_request_count_7d" gorm:"column:avg_request_count_7d"`
}

func (LoadBalancer) TableName() string  { return TableLoadBalancers }
func (r LoadBalancer) RecordID() string { return r.ID }
func (r LoadBalancer) Keys() map[string]string {
	return map[string]string{"lb_arn": r.LBArn, "name": r.Name}
}

// LambdaFunction is a serverless function row.
type LambdaFunction struct {
	Meta
	Name              string   `json:"name" gorm:"column:name;index"`
	MemoryMB          int      `json:"memory_mb" gorm:"column:memory_mb"`
	TimeoutSeconds    int      `json:"timeout_seconds" gorm:"column:timeout_seconds"`
	Invocations7d     *float64 `json:"invocations_7d" gorm:"column:invocations_7d"`
	AvgDurationMs7d   *float64 `json:"avg_duration_ms_7d" gorm:"column:avg_duration_ms_7d"`
	AvgMemoryUsedMB7d *float64 `json:"avg_memory_used_mb_7d" gorm:"column:avg_memory_used_mb_7d"`
}

func (LambdaFunction) TableName() string  { return TableLambdaFunctions }
func (r LambdaFunction) RecordID() string { return r.ID }
func (r LambdaFunction) Keys() map[string]string {
	return map[string]string{"function_name": r.Name, "name": r.Name}
}

// Volume states and types.
const (
	VolumeInUse     = "in-use"
	VolumeAvailable = "available"
	VolumeDeleted   = "deleted"
)

// Volume is a block volume row.
type Volume struct {
	Meta
	VolumeID           string    `json:"volume_id" gorm:"column:volume_id;index"`
	VolumeType         string    `json:"volume_type" gorm:"column:volume_type"`
	SizeGiB            int       `json:"size_gib" gorm:"column:size_gib"`
	State              string    `json:"state" gorm:"column:state"`
	AttachedInstanceID *string   `json:"attached_instance_id" gorm:"column:attached_instance_id"`
	CreatedAt          time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Volume) TableName() string  { return TableVolumes }
func (r Volume) RecordID() string { return r.ID }
func (r Volume) Keys() map[string]string {
	return map[string]string{"volume_id": r.VolumeID}
}

// Snapshot is a block volume snapshot row.
type Snapshot struct {
	Meta
	SnapshotID      string    `json:"snapshot_id" gorm:"column:snapshot_id;index"`
	SourceVolumeID  *string   `json:"source_volume_id" gorm:"column:source_volume_id"`
	SizeGiB         int       `json:"size_gib" gorm:"column:size_gib"`
	RetentionPolicy *string   `json:"retention_policy" gorm:"column:retention_policy"`
	CreatedAt       time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Snapshot) TableName() string  { return TableSnapshots }
func (r Snapshot) RecordID() string { return r.ID }
func (r Snapshot) Keys() map[string]string {
	return map[string]string{"snapshot_id": r.SnapshotID}
}

// LifecycleTransition moves objects to a cheaper tier after N days.
type LifecycleTransition struct {
	Days         int    `json:"days"`
	StorageClass string `json:"storage_class"`
}

// NoncurrentVersionExpiration expires noncurrent object versions.
type NoncurrentVersionExpiration struct {
	Days int `json:"days"`
}

// LifecycleRule is one ordered entry in a bucket lifecycle configuration.
// Insertion order is preserved; rule IDs do not repeat within a bucket.
type LifecycleRule struct {
	ID                          string                       `json:"id"`
	Status                      string                       `json:"status"`
	Transitions                 []LifecycleTransition        `json:"transitions,omitempty"`
	NoncurrentVersionExpiration *NoncurrentVersionExpiration `json:"noncurrent_version_expiration,omitempty"`
}

// S3Bucket is an object storage bucket row.
type S3Bucket struct {
	Meta
	Name              string          `json:"name" gorm:"column:name;index"`
	VersioningEnabled bool            `json:"versioning_enabled" gorm:"column:versioning_enabled"`
	LifecycleRules    []LifecycleRule `json:"lifecycle_rules" gorm:"column:lifecycle_rules;serializer:json"`
}

func (S3Bucket) TableName() string  { return TableS3Buckets }
func (r S3Bucket) RecordID() string { return r.ID }
func (r S3Bucket) Keys() map[string]string {
	return map[string]string{"bucket_name": r.Name, "name": r.Name}
}

// LogGroup is a log group row. RetentionDays is the value set by external
// ingestion; RetentionInDays is the one written by remediation. Both exist
// in the upstream schema, and the no-retention rule fires only when both
// are unset.
type LogGroup struct {
	Meta
	Name            string `json:"name" gorm:"column:name;index"`
	RetentionDays   *int   `json:"retention_days" gorm:"column:retention_days"`
	RetentionInDays *int   `json:"retention_in_days" gorm:"column:retention_in_days"`
}

func (LogGroup) TableName() string  { return TableLogGroups }
func (r LogGroup) RecordID() string { return r.ID }
func (r LogGroup) Keys() map[string]string {
	return map[string]string{"log_group_name": r.Name, "name": r.Name}
}

// Elastic IP states.
const (
	EIPAssociated   = "associated"
	EIPUnassociated = "unassociated"
)

// ElasticIP is a floating IP row.
type ElasticIP struct {
	Meta
	AllocationID         string  `json:"allocation_id" gorm:"column:allocation_id;index"`
	PublicIP             string  `json:"public_ip" gorm:"column:public_ip"`
	AssociatedInstanceID *string `json:"associated_instance_id" gorm:"column:associated_instance_id"`
	State                string  `json:"state" gorm:"column:state"`
}

func (ElasticIP) TableName() string  { return TableElasticIPs }
func (r ElasticIP) RecordID() string { return r.ID }
func (r ElasticIP) Keys() map[string]string {
	return map[string]string{"allocation_id": r.AllocationID}
}

// DailyMetric is one simulated day of cost/usage for one resource.
// Rows are never overwritten for a (resource_type, resource_id, date) pair.
// The composite unique index backs the postgres ON CONFLICT target the
// store's Upsert emits; without it the conflict clause is rejected.
type DailyMetric struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	AccountID    string    `json:"account_id" gorm:"column:account_id;index;uniqueIndex:uq_daily_metric_day"`
	ResourceType string    `json:"resource_type" gorm:"column:resource_type;uniqueIndex:uq_daily_metric_day"`
	ResourceID   string    `json:"resource_id" gorm:"column:resource_id;uniqueIndex:uq_daily_metric_day"`
	Date         time.Time `json:"date" gorm:"column:date;uniqueIndex:uq_daily_metric_day"`
	Cost         float64   `json:"cost" gorm:"column:cost"`

	// S3 tier occupancy, GiB.
	StandardGiB float64 `json:"standard_gib,omitempty" gorm:"column:standard_gib"`
	IAGiB       float64 `json:"ia_gib,omitempty" gorm:"column:ia_gib"`
	GlacierGiB  float64 `json:"glacier_gib,omitempty" gorm:"column:glacier_gib"`

	// Log group volumes, GiB.
	IngestedGiB float64 `json:"ingested_gib,omitempty" gorm:"column:ingested_gib"`
	StoredGiB   float64 `json:"stored_gib,omitempty" gorm:"column:stored_gib"`

	// Data transfer.
	Direction   string  `json:"direction,omitempty" gorm:"column:direction"`
	TransferGiB float64 `json:"transfer_gib,omitempty" gorm:"column:transfer_gib"`
}

func (DailyMetric) TableName() string  { return TableDailyMetrics }
func (r DailyMetric) RecordID() string { return r.ID }
func (r DailyMetric) Keys() map[string]string {
	return map[string]string{"resource_id": r.ResourceID}
}

// Field exposes the upsert conflict columns.
func (r DailyMetric) Field(name string) (string, bool) {
	switch name {
	case "account_id":
		return r.AccountID, true
	case "resource_type":
		return r.ResourceType, true
	case "resource_id":
		return r.ResourceID, true
	case "date":
		return r.Date.Format("2006-01-02"), true
	}
	return "", false
}

// ChangeEvent records a mutation applied to the inventory outside the
// executor path, e.g. by the drift engine.
type ChangeEvent struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	AccountID    string    `json:"account_id" gorm:"column:account_id;index"`
	ResourceType string    `json:"resource_type" gorm:"column:resource_type"`
	ResourceID   string    `json:"resource_id" gorm:"column:resource_id"`
	ChangeType   string    `json:"change_type" gorm:"column:change_type"`
	ChangeSource string    `json:"change_source" gorm:"column:change_source"`
	Description  string    `json:"description" gorm:"column:description"`
	OccurredAt   time.Time `json:"occurred_at" gorm:"column:occurred_at"`
}

func (ChangeEvent) TableName() string  { return TableChangeEvents }
func (r ChangeEvent) RecordID() string { return r.ID }
func (r ChangeEvent) Keys() map[string]string {
	return map[string]string{"resource_id": r.ResourceID}
}
