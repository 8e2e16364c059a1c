package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
)

// GormStore is the postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to postgres and migrates the schema. The migrated
// tables must carry a unique index for every conflict-column set passed
// to Upsert: postgres rejects an ON CONFLICT target with no matching
// unique constraint. DailyMetric declares uq_daily_metric_day for the
// drift engine's (account_id, resource_type, resource_id, date) upserts.
func OpenGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, wasteerr.Storef("open postgres: %v", err)
	}
	if err := db.AutoMigrate(
		&resource.Instance{},
		&resource.AutoscalingGroup{},
		&resource.RDSInstance{},
		&resource.CacheCluster{},
		&resource.LoadBalancer{},
		&resource.LambdaFunction{},
		&resource.Volume{},
		&resource.Snapshot{},
		&resource.S3Bucket{},
		&resource.LogGroup{},
		&resource.ElasticIP{},
		&resource.DailyMetric{},
		&resource.ChangeEvent{},
		&resource.AuditEntry{},
		&resource.Recommendation{},
		&resource.ExecutionMode{},
	); err != nil {
		return nil, wasteerr.Storef("migrate: %v", err)
	}
	return &GormStore{db: db}, nil
}

// columnFor maps natural-key aliases onto real columns.
func columnFor(field string) string {
	switch field {
	case "asg_name", "bucket_name", "log_group_name", "function_name":
		return "name"
	default:
		return field
	}
}

func (g *GormStore) SelectAll(ctx context.Context, table string) ([]resource.Record, error) {
	switch table {
	case resource.TableInstances:
		return fetchAll[resource.Instance](ctx, g.db)
	case resource.TableAutoscalingGroups:
		return fetchAll[resource.AutoscalingGroup](ctx, g.db)
	case resource.TableRDSInstances:
		return fetchAll[resource.RDSInstance](ctx, g.db)
	case resource.TableCacheClusters:
		return fetchAll[resource.CacheCluster](ctx, g.db)
	case resource.TableLoadBalancers:
		return fetchAll[resource.LoadBalancer](ctx, g.db)
	case resource.TableLambdaFunctions:
		return fetchAll[resource.LambdaFunction](ctx, g.db)
	case resource.TableVolumes:
		return fetchAll[resource.Volume](ctx, g.db)
	case resource.TableSnapshots:
		return fetchAll[resource.Snapshot](ctx, g.db)
	case resource.TableS3Buckets:
		return fetchAll[resource.S3Bucket](ctx, g.db)
	case resource.TableLogGroups:
		return fetchAll[resource.LogGroup](ctx, g.db)
	case resource.TableElasticIPs:
		return fetchAll[resource.ElasticIP](ctx, g.db)
	case resource.TableDailyMetrics:
		return fetchAll[resource.DailyMetric](ctx, g.db)
	case resource.TableChangeEvents:
		return fetchAll[resource.ChangeEvent](ctx, g.db)
	case resource.TableAuditLog:
		return fetchAll[resource.AuditEntry](ctx, g.db)
	case resource.TableRecommendations:
		return fetchAll[resource.Recommendation](ctx, g.db)
	case resource.TableExecutionModes:
		return fetchAll[resource.ExecutionMode](ctx, g.db)
	}
	return nil, wasteerr.Storef("unknown table %q", table)
}

func (g *GormStore) SelectByKey(ctx context.Context, table, field, value string) (resource.Record, error) {
	switch table {
	case resource.TableInstances:
		return fetchOne[resource.Instance](ctx, g.db, field, value)
	case resource.TableAutoscalingGroups:
		return fetchOne[resource.AutoscalingGroup](ctx, g.db, field, value)
	case resource.TableRDSInstances:
		return fetchOne[resource.RDSInstance](ctx, g.db, field, value)
	case resource.TableCacheClusters:
		return fetchOne[resource.CacheCluster](ctx, g.db, field, value)
	case resource.TableLoadBalancers:
		return fetchOne[resource.LoadBalancer](ctx, g.db, field, value)
	case resource.TableLambdaFunctions:
		return fetchOne[resource.LambdaFunction](ctx, g.db, field, value)
	case resource.TableVolumes:
		return fetchOne[resource.Volume](ctx, g.db, field, value)
	case resource.TableSnapshots:
		return fetchOne[resource.Snapshot](ctx, g.db, field, value)
	case resource.TableS3Buckets:
		return fetchOne[resource.S3Bucket](ctx, g.db, field, value)
	case resource.TableLogGroups:
		return fetchOne[resource.LogGroup](ctx, g.db, field, value)
	case resource.TableElasticIPs:
		return fetchOne[resource.ElasticIP](ctx, g.db, field, value)
	case resource.TableDailyMetrics:
		return fetchOne[resource.DailyMetric](ctx, g.db, field, value)
	case resource.TableChangeEvents:
		return fetchOne[resource.ChangeEvent](ctx, g.db, field, value)
	case resource.TableAuditLog:
		return fetchOne[resource.AuditEntry](ctx, g.db, field, value)
	case resource.TableRecommendations:
		return fetchOne[resource.Recommendation](ctx, g.db, field, value)
	case resource.TableExecutionModes:
		return fetchOne[resource.ExecutionMode](ctx, g.db, field, value)
	}
	return nil, wasteerr.Storef("unknown table %q", table)
}

func (g *GormStore) Insert(ctx context.Context, rec resource.Record) error {
	ptr := rowPtr(rec)
	if ptr == nil {
		return wasteerr.Storef("unknown record type for table %q", rec.TableName())
	}
	if err := g.db.WithContext(ctx).Create(ptr).Error; err != nil {
		return wasteerr.Storef("insert into %q: %v", rec.TableName(), err)
	}
	return nil
}

func (g *GormStore) Update(ctx context.Context, rec resource.Record) error {
	ptr := rowPtr(rec)
	if ptr == nil {
		return wasteerr.Storef("unknown record type for table %q", rec.TableName())
	}
	res := g.db.WithContext(ctx).Save(ptr)
	if res.Error != nil {
		return wasteerr.Storef("update %q: %v", rec.TableName(), res.Error)
	}
	return nil
}

func (g *GormStore) Delete(ctx context.Context, table, id string) error {
	row, err := g.SelectByKey(ctx, table, "id", id)
	if err != nil {
		return err
	}
	if row == nil {
		return wasteerr.NotFoundf("delete: no row %q in table %q", id, table)
	}
	ptr := rowPtr(row)
	if err := g.db.WithContext(ctx).Delete(ptr).Error; err != nil {
		return wasteerr.Storef("delete from %q: %v", table, err)
	}
	return nil
}

func (g *GormStore) Upsert(ctx context.Context, recs []resource.Record, conflictFields []string, ignoreDuplicates bool) error {
	if len(recs) == 0 {
		return nil
	}
	cols := make([]clause.Column, len(conflictFields))
	for i, f := range conflictFields {
		cols[i] = clause.Column{Name: columnFor(f)}
	}
	tx := g.db.WithContext(ctx)
	if ignoreDuplicates {
		tx = tx.Clauses(clause.OnConflict{Columns: cols, DoNothing: true})
	} else {
		tx = tx.Clauses(clause.OnConflict{Columns: cols, UpdateAll: true})
	}
	for _, rec := range recs {
		ptr := rowPtr(rec)
		if ptr == nil {
			return wasteerr.Storef("unknown record type for table %q", rec.TableName())
		}
		if err := tx.Create(ptr).Error; err != nil {
			return wasteerr.Storef("upsert into %q: %v", rec.TableName(), err)
		}
	}
	return nil
}

func fetchAll[T resource.Record](ctx context.Context, db *gorm.DB) ([]resource.Record, error) {
	var rows []T
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		var zero T
		return nil, wasteerr.Storef("select all %q: %v", zero.TableName(), err)
	}
	return Records(rows), nil
}

func fetchOne[T resource.Record](ctx context.Context, db *gorm.DB, field, value string) (resource.Record, error) {
	var row T
	err := db.WithContext(ctx).Where(fmt.Sprintf("%s = ?", columnFor(field)), value).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wasteerr.Storef("select by %s=%s: %v", field, value, err)
	}
	return row, nil
}

func rowPtr(rec resource.Record) any {
	switch r := rec.(type) {
	case resource.Instance:
		return &r
	case resource.AutoscalingGroup:
		return &r
	case resource.RDSInstance:
		return &r
	case resource.CacheCluster:
		return &r
	case resource.LoadBalancer:
		return &r
	case resource.LambdaFunction:
		return &r
	case resource.Volume:
		return &r
	case resource.Snapshot:
		return &r
	case resource.S3Bucket:
		return &r
	case resource.LogGroup:
		return &r
	case resource.ElasticIP:
		return &r
	case resource.DailyMetric:
		return &r
	case resource.ChangeEvent:
		return &r
	case resource.AuditEntry:
		return &r
	case resource.Recommendation:
		return &r
	case resource.ExecutionMode:
		return &r
	}
	return nil
}
