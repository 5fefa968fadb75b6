package repository

import (
	"context"

	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/modules/dlc/entity"
)

// AppendStageLocked serializes a stage transition for correlationID: it takes
// the row lock via LockHeader inside a single Database.Atomic block, applies
// mutate to the freshly locked header, then appends the stage through
// command — the discipline §3/§4.1 document ("header mutations are
// serialized per correlation_id") so two concurrent transitions racing for
// the same header can no longer both read a stale StageCount and append a
// duplicate stage number. mutate may be nil when the transition carries no
// field changes beyond the stage itself.
func AppendStageLocked(
	ctx context.Context,
	db database.Database,
	query TrackerQueryRepository,
	command TrackerCommandRepository,
	correlationID string,
	stage entity.Stage,
	message *string,
	mutate func(header *entity.RequestHeader),
) (*entity.RequestHeader, error) {
	var locked *entity.RequestHeader
	err := db.Atomic(ctx, func(ctx context.Context) error {
		h, err := query.LockHeader(ctx, correlationID)
		if err != nil {
			return err
		}
		if h == nil {
			return entity.ErrRequestNotFound
		}
		if mutate != nil {
			mutate(h)
		}
		if err := command.AppendStage(ctx, h, stage, message); err != nil {
			return err
		}
		locked = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}
