package usecase

import (
	"context"

	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/infrastructure/telemetry/tracer"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/repository"
	"voyago/core-api/internal/pkg/utils"
)

const getStatusUseCaseName = "usecase:dlc.get_status"

type getStatusUseCase struct {
	Log    logger.Logger
	Tracer tracer.Tracer
	Query  repository.TrackerQueryRepository
}

var _ GetStatusUseCase = (*getStatusUseCase)(nil)

func NewGetStatusUseCase(log logger.Logger, trc tracer.Tracer, query repository.TrackerQueryRepository) GetStatusUseCase {
	return &getStatusUseCase{
		Log:    log.WithField("action", getStatusUseCaseName),
		Tracer: trc,
		Query:  query,
	}
}

func (uc *getStatusUseCase) Execute(ctx context.Context, req *GetStatusRequest) (*GetStatusResponse, error) {
	span, ctx := uc.Tracer.StartSpan(ctx, getStatusUseCaseName)
	defer span.Finish()

	log := uc.Log.WithContext(ctx).WithField("method", "Exec")
	log.WithFields(map[string]any{
		"business_key": map[string]any{"correlation_id": req.CorrelationID},
	}).Info("usecase started")

	header, err := uc.Query.GetHeader(ctx, req.CorrelationID)
	if err != nil {
		utils.RecordSpanError(span, err)
		return nil, err
	}
	if header == nil {
		logAndTraceError(span, log, entity.ErrRequestNotFound, "request not found", false)
		return nil, entity.ErrRequestNotFound
	}

	log.Info("usecase completed")

	return &GetStatusResponse{
		Status:        string(header.CurrentStage),
		CorrelationID: header.CorrelationID,
	}, nil
}
