/*
|------------------------------------------------------------------------------------
| REPOSITORY ARCHITECTURAL STANDARDS & PERSISTENCE MANIFESTO
|------------------------------------------------------------------------------------
|
| The Repository layer is responsible for low-level data persistence. It acts as
| a bridge between the Domain Entities and the Physical Database.
|
| [1. ERROR MAPPING & TRANSLATION]
| - Repositories MUST NOT return raw database errors (e.g., gorm.ErrRecordNotFound).
| - All errors must be passed through an ErrorMapper to be translated into
|   standardized apperror.AppError (e.g., ErrCodeNotFound).
|
| [2. JOURNAL APPEND-ONLY DISCIPLINE]
| - AppendStage never UPDATEs or DELETEs an existing dlc_request_stages row.
|   StageNumber is derived from the header's StageCount *inside* the same
|   transaction that holds the row lock, so it stays dense and monotonic even
|   under concurrent writers racing for the same CorrelationID.
|
| [3. ATOMICITY COMPLIANCE]
| - Commands MUST respect the 'ctx' (context) to ensure they participate in
|   active transactions managed by the TransactionManager (Runner). Callers
|   orchestrating a lock-then-mutate sequence MUST wrap both calls in the same
|   Database.Atomic block.
|
|------------------------------------------------------------------------------------
*/
package command

import (
	"context"
	"encoding/json"
	"time"

	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/repository"
	baserepo "voyago/core-api/internal/pkg/repository"
)

type trackerRepository struct {
	*baserepo.BaseRepository[entity.RequestHeader]
	db database.Database
}

// [INTERFACE COMPLIANCE CHECK]
var _ repository.TrackerCommandRepository = (*trackerRepository)(nil)

func NewTrackerRepository(db database.Database) repository.TrackerCommandRepository {
	return &trackerRepository{
		BaseRepository: &baserepo.BaseRepository[entity.RequestHeader]{
			DB:          db,
			ErrorMapper: database.MapDBError,
		},
		db: db,
	}
}

func (r *trackerRepository) CreateHeader(ctx context.Context, header *entity.RequestHeader) error {
	header.SyncDerived()
	if header.StageCount == 0 {
		header.StageCount = 1
	}
	if err := r.Create(ctx, header); err != nil {
		return err
	}
	return r.writeStageRecord(ctx, header, header.CurrentStage, nil, 1)
}

func (r *trackerRepository) AppendStage(ctx context.Context, header *entity.RequestHeader, stage entity.Stage, message *string) error {
	header.CurrentStage = stage
	header.StageCount++
	header.UpdatedAt = time.Now()
	header.SyncDerived()

	if err := database.MapDBError(
		r.db.WithContext(ctx).Model(&entity.RequestHeader{}).
			Where("correlation_id = ?", header.CorrelationID).
			Select(
				"current_stage", "stage_count", "updated_at",
				"policy_id", "policy_name", "group_id",
				"extended_by", "extends", "site_meter",
				"request_start", "request_end", "original_start",
			).
			Updates(header).Error,
	); err != nil {
		return err
	}
	return r.writeStageRecord(ctx, header, stage, message, header.StageCount)
}

func (r *trackerRepository) writeStageRecord(ctx context.Context, header *entity.RequestHeader, stage entity.Stage, message *string, stageNumber int) error {
	snapshot, err := json.Marshal(entity.SnapshotOf(header))
	if err != nil {
		return err
	}
	record := &entity.StageRecord{
		CorrelationID: header.CorrelationID,
		StageNumber:   stageNumber,
		StageName:     stage,
		Timestamp:     time.Now(),
		Message:       message,
		Snapshot:      snapshot,
	}
	return database.MapDBError(r.db.WithContext(ctx).Create(record).Error)
}

func (r *trackerRepository) UpdateHeader(ctx context.Context, header *entity.RequestHeader) error {
	header.UpdatedAt = time.Now()
	header.SyncDerived()
	return database.MapDBError(
		r.db.WithContext(ctx).Model(&entity.RequestHeader{}).
			Where("correlation_id = ?", header.CorrelationID).
			Select(
				"policy_id", "policy_name", "group_id",
				"extended_by", "extends", "updated_at",
				"request_start", "request_end", "original_start",
			).
			Updates(header).Error,
	)
}

func (r *trackerRepository) BulkUpdateGroup(ctx context.Context, ids []string, groupID string) error {
	if len(ids) == 0 {
		return nil
	}
	return database.MapDBError(
		r.db.WithContext(ctx).Model(&entity.RequestHeader{}).
			Where("correlation_id IN ?", ids).
			Updates(map[string]any{
				"group_id":   groupID,
				"updated_at": time.Now(),
			}).Error,
	)
}
