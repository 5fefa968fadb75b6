/*
|------------------------------------------------------------------------------------
| REPOSITORY ARCHITECTURAL STANDARDS & QUERY OPTIMIZATION MANIFESTO
|------------------------------------------------------------------------------------
|
| The Query Repository is dedicated to data retrieval. It follows the R-side of
| CQRS, focusing on performance, filtering, and non-mutating operations.
|
| [1. SELECTIVE RETRIEVAL (NO SELECT *)]
| - Always specify required fields in .Select(). Avoid 'SELECT *' to minimize
|   database I/O and prevent sensitive data leakage.
|
| [2. NULLABLE VS ERROR]
| - If a record is NOT FOUND, return (nil, nil) instead of an error for Query
|   methods (unless the business logic dictates that the absence is an anomaly).
|
| [3. OVERLAP-EXCLUDED STAGE FILTER]
| - Every window/site scan excludes entity.Stage.IsOverlapExcluded() stages
|   (CANCELLED, DECLINED, DLC_OVERRIDE_FINISHED) so dead requests never shadow
|   new submissions or contiguity resolution.
|
|------------------------------------------------------------------------------------
*/
package query

import (
	"context"
	"errors"
	"time"

	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var headerColumns = []string{
	"correlation_id", "subscription_id", "site", "meter_serial", "override_value",
	"service", "current_stage", "stage_count", "created_at", "updated_at",
	"request_start", "request_end", "group_id", "original_start",
	"policy_id", "policy_name", "extended_by", "extends", "head_end", "site_meter",
}

var excludedStages = func() []entity.Stage {
	all := []entity.Stage{
		entity.StageCancelled, entity.StageDeclined, entity.StageDlcOverrideFinished,
	}
	return all
}()

type trackerRepository struct {
	DB database.Database
}

// [INTERFACE COMPLIANCE CHECK]
var _ repository.TrackerQueryRepository = (*trackerRepository)(nil)

func NewTrackerRepository(db database.Database) repository.TrackerQueryRepository {
	return &trackerRepository{DB: db}
}

func (r *trackerRepository) GetHeader(ctx context.Context, correlationID string) (*entity.RequestHeader, error) {
	if correlationID == "" {
		return nil, nil
	}
	var h entity.RequestHeader
	err := r.DB.WithContext(ctx).
		Model(&entity.RequestHeader{}).
		Select(headerColumns).
		Where("correlation_id = ?", correlationID).
		First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, database.MapDBError(err)
	}
	return &h, nil
}

func (r *trackerRepository) LockHeader(ctx context.Context, correlationID string) (*entity.RequestHeader, error) {
	if correlationID == "" {
		return nil, nil
	}
	var h entity.RequestHeader
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&entity.RequestHeader{}).
		Select(headerColumns).
		Where("correlation_id = ?", correlationID).
		First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, database.MapDBError(err)
	}
	return &h, nil
}

func (r *trackerRepository) QueryBySiteMeterWindow(ctx context.Context, site, meterSerial string, start, end time.Time) ([]*entity.RequestHeader, error) {
	var headers []*entity.RequestHeader
	err := r.DB.WithContext(ctx).
		Model(&entity.RequestHeader{}).
		Select(headerColumns).
		Where("site_meter = ?", site+"#"+meterSerial).
		Where("current_stage NOT IN ?", excludedStages).
		// overlap-or-abut test: candidate window touches [start, end]
		Where("request_start <= ? AND request_end >= ?", end, start).
		Order("request_start asc").
		Find(&headers).Error
	if err != nil {
		return nil, database.MapDBError(err)
	}
	return headers, nil
}

func (r *trackerRepository) QueryBySite(ctx context.Context, site string) ([]*entity.RequestHeader, error) {
	var headers []*entity.RequestHeader
	err := r.DB.WithContext(ctx).
		Model(&entity.RequestHeader{}).
		Select(headerColumns).
		Where("site = ?", site).
		Where("current_stage NOT IN ?", excludedStages).
		Order("request_start asc").
		Find(&headers).Error
	if err != nil {
		return nil, database.MapDBError(err)
	}
	return headers, nil
}

func (r *trackerRepository) QueryBySubscription(ctx context.Context, subscriptionID string) ([]*entity.RequestHeader, error) {
	var headers []*entity.RequestHeader
	err := r.DB.WithContext(ctx).
		Model(&entity.RequestHeader{}).
		Select(headerColumns).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at desc").
		Find(&headers).Error
	if err != nil {
		return nil, database.MapDBError(err)
	}
	return headers, nil
}

func (r *trackerRepository) QueryByHeadEndPolicy(ctx context.Context, headEnd entity.HeadEnd, policyID int64) (*entity.RequestHeader, error) {
	var h entity.RequestHeader
	err := r.DB.WithContext(ctx).
		Model(&entity.RequestHeader{}).
		Select(headerColumns).
		Where("head_end = ? AND policy_id = ?", headEnd, policyID).
		First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, database.MapDBError(err)
	}
	return &h, nil
}

func (r *trackerRepository) QueryPendingDispatch(ctx context.Context, limit int) ([]*entity.RequestHeader, error) {
	var headers []*entity.RequestHeader
	q := r.DB.WithContext(ctx).
		Model(&entity.RequestHeader{}).
		Select(headerColumns).
		Where("current_stage = ?", entity.StageQueued).
		Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&headers).Error; err != nil {
		return nil, database.MapDBError(err)
	}
	return headers, nil
}

func (r *trackerRepository) GetStages(ctx context.Context, correlationID string) ([]*entity.StageRecord, error) {
	var stages []*entity.StageRecord
	err := r.DB.WithContext(ctx).
		Model(&entity.StageRecord{}).
		Where("correlation_id = ?", correlationID).
		Order("stage_number asc").
		Find(&stages).Error
	if err != nil {
		return nil, database.MapDBError(err)
	}
	return stages, nil
}
