package usecase_test

import (
	"context"
	"testing"
	"time"

	"voyago/core-api/internal/infrastructure/telemetry/tracer"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueryRepository struct {
	headers map[string]*entity.RequestHeader
}

func (f *fakeQueryRepository) GetHeader(ctx context.Context, correlationID string) (*entity.RequestHeader, error) {
	return f.headers[correlationID], nil
}
func (f *fakeQueryRepository) LockHeader(ctx context.Context, correlationID string) (*entity.RequestHeader, error) {
	return f.headers[correlationID], nil
}
func (f *fakeQueryRepository) QueryBySiteMeterWindow(ctx context.Context, site, meterSerial string, start, end time.Time) ([]*entity.RequestHeader, error) {
	return nil, nil
}
func (f *fakeQueryRepository) QueryBySite(ctx context.Context, site string) ([]*entity.RequestHeader, error) {
	return nil, nil
}
func (f *fakeQueryRepository) QueryBySubscription(ctx context.Context, subscriptionID string) ([]*entity.RequestHeader, error) {
	return nil, nil
}
func (f *fakeQueryRepository) QueryByHeadEndPolicy(ctx context.Context, headEnd entity.HeadEnd, policyID int64) (*entity.RequestHeader, error) {
	return nil, nil
}
func (f *fakeQueryRepository) QueryPendingDispatch(ctx context.Context, limit int) ([]*entity.RequestHeader, error) {
	return nil, nil
}
func (f *fakeQueryRepository) GetStages(ctx context.Context, correlationID string) ([]*entity.StageRecord, error) {
	return nil, nil
}

func TestGetStatus_Execute_Found(t *testing.T) {
	h := &entity.RequestHeader{CorrelationID: "c1", CurrentStage: entity.StagePolicyDeployed}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h}}
	uc := usecase.NewGetStatusUseCase(noopLogger{}, tracer.NewNoOpTracer(), query)

	resp, err := uc.Execute(context.Background(), &usecase.GetStatusRequest{CorrelationID: "c1"})

	require.NoError(t, err)
	assert.Equal(t, string(entity.StagePolicyDeployed), resp.Status)
	assert.Equal(t, "c1", resp.CorrelationID)
}

func TestGetStatus_Execute_NotFound(t *testing.T) {
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{}}
	uc := usecase.NewGetStatusUseCase(noopLogger{}, tracer.NewNoOpTracer(), query)

	resp, err := uc.Execute(context.Background(), &usecase.GetStatusRequest{CorrelationID: "ghost"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, entity.ErrRequestNotFound)
}
