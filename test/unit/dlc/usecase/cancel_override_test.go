package usecase_test

import (
	"context"
	"testing"
	"time"

	"voyago/core-api/internal/infrastructure/telemetry/tracer"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/policyprovider"
	"voyago/core-api/internal/modules/dlc/statemachine"
	"voyago/core-api/internal/modules/dlc/usecase"
	"voyago/core-api/internal/modules/dlc/workflow"
	"voyago/core-api/test/helper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{}

func (p *fakeProvider) Create(ctx context.Context, req policyprovider.CreateRequest) (string, policyprovider.Result, error) {
	return "policy", policyprovider.Result{Status: policyprovider.StatusOK}, nil
}
func (p *fakeProvider) Replace(ctx context.Context, req policyprovider.CreateRequest) (string, policyprovider.Result, error) {
	return "policy", policyprovider.Result{Status: policyprovider.StatusOK}, nil
}
func (p *fakeProvider) Deploy(ctx context.Context, policyID int64) (policyprovider.Result, error) {
	return policyprovider.Result{Status: policyprovider.StatusOK}, nil
}
func (p *fakeProvider) Undeploy(ctx context.Context, policyID int64) (policyprovider.Result, error) {
	return policyprovider.Result{Status: policyprovider.StatusOK}, nil
}
func (p *fakeProvider) Delete(ctx context.Context, policyID int64) (policyprovider.Result, error) {
	return policyprovider.Result{Status: policyprovider.StatusOK}, nil
}
func (p *fakeProvider) CheckExists(ctx context.Context, policyID int64) (bool, error) {
	return false, nil
}
func (p *fakeProvider) WithSession(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeEngine struct{}

func (e *fakeEngine) Submit(ctx context.Context, item workflow.WorkItem) error { return nil }
func (e *fakeEngine) Stop(ctx context.Context, correlationID string) error     { return nil }

func TestCancelOverride_Execute_Success(t *testing.T) {
	h := &entity.RequestHeader{
		CorrelationID:  "c1",
		SubscriptionID: "sub-1",
		CurrentStage:   entity.StageQueued,
		RequestEnd:     time.Now().Add(time.Hour),
	}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h}}
	machine := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, &fakeCommandRepository{}, &fakeProvider{}, &fakeEngine{}, &fakeSink{}, noopLogger{})
	uc := usecase.NewCancelOverrideUseCase(noopLogger{}, tracer.NewNoOpTracer(), machine)

	resp, err := uc.Execute(context.Background(), &usecase.CancelOverrideRequest{
		SubscriptionID: "sub-1",
		CorrelationID:  "c1",
		Subscriber:     "someone",
	})

	require.NoError(t, err)
	assert.Equal(t, "c1", resp.CorrelationID)
	assert.Equal(t, entity.StageCancelled, h.CurrentStage)
}

func TestCancelOverride_Execute_NotFound(t *testing.T) {
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{}}
	machine := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, &fakeCommandRepository{}, &fakeProvider{}, &fakeEngine{}, &fakeSink{}, noopLogger{})
	uc := usecase.NewCancelOverrideUseCase(noopLogger{}, tracer.NewNoOpTracer(), machine)

	resp, err := uc.Execute(context.Background(), &usecase.CancelOverrideRequest{
		SubscriptionID: "sub-1",
		CorrelationID:  "ghost",
		Subscriber:     "someone",
	})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, entity.ErrRequestNotFound)
}
