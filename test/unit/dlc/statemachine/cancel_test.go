package statemachine_test

import (
	"context"
	"testing"
	"time"

	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/policyprovider"
	"voyago/core-api/internal/modules/dlc/statemachine"
	"voyago/core-api/internal/modules/dlc/workflow"
	"voyago/core-api/test/helper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	stopped []string
}

func (f *fakeEngine) Submit(ctx context.Context, item workflow.WorkItem) error { return nil }
func (f *fakeEngine) Stop(ctx context.Context, correlationID string) error {
	f.stopped = append(f.stopped, correlationID)
	return nil
}

func TestCancelMachine_Cancel_NotFound(t *testing.T) {
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{}}
	m := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, &fakeCommandRepository{}, &fakeProvider{}, &fakeEngine{}, &fakeSink{}, noopLogger{})

	err := m.Cancel(context.Background(), "ghost", "sub-1")

	assert.ErrorIs(t, err, entity.ErrRequestNotFound)
}

func TestCancelMachine_Cancel_WrongSubscription(t *testing.T) {
	h := &entity.RequestHeader{CorrelationID: "c1", SubscriptionID: "sub-1", CurrentStage: entity.StageQueued, RequestEnd: time.Now().Add(time.Hour)}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h}}
	m := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, &fakeCommandRepository{}, &fakeProvider{}, &fakeEngine{}, &fakeSink{}, noopLogger{})

	err := m.Cancel(context.Background(), "c1", "sub-2")

	assert.ErrorIs(t, err, entity.ErrRequestNotFound)
}

func TestCancelMachine_Cancel_Grouped_NotCancellable(t *testing.T) {
	grp := "grp-1"
	h := &entity.RequestHeader{CorrelationID: "c1", SubscriptionID: "sub-1", GroupID: &grp, CurrentStage: entity.StageQueued, RequestEnd: time.Now().Add(time.Hour)}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h}}
	m := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, &fakeCommandRepository{}, &fakeProvider{}, &fakeEngine{}, &fakeSink{}, noopLogger{})

	err := m.Cancel(context.Background(), "c1", "sub-1")

	assert.ErrorIs(t, err, entity.ErrGroupedRequestNotCancellable)
}

func TestCancelMachine_Cancel_TerminalStage_NotCancellable(t *testing.T) {
	h := &entity.RequestHeader{CorrelationID: "c1", SubscriptionID: "sub-1", CurrentStage: entity.StageCancelled, RequestEnd: time.Now().Add(time.Hour)}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h}}
	m := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, &fakeCommandRepository{}, &fakeProvider{}, &fakeEngine{}, &fakeSink{}, noopLogger{})

	err := m.Cancel(context.Background(), "c1", "sub-1")

	assert.ErrorIs(t, err, entity.ErrStageNotCancellable)
}

func TestCancelMachine_Cancel_AlreadyEnded_NotCancellable(t *testing.T) {
	h := &entity.RequestHeader{CorrelationID: "c1", SubscriptionID: "sub-1", CurrentStage: entity.StageQueued, RequestEnd: time.Now().Add(-time.Minute)}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h}}
	m := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, &fakeCommandRepository{}, &fakeProvider{}, &fakeEngine{}, &fakeSink{}, noopLogger{})

	err := m.Cancel(context.Background(), "c1", "sub-1")

	assert.ErrorIs(t, err, entity.ErrStageNotCancellable)
}

func TestCancelMachine_Cancel_SimpleDeployed_TearsDownAndCancels(t *testing.T) {
	policyID := int64(7)
	h := &entity.RequestHeader{
		CorrelationID: "c1", SubscriptionID: "sub-1",
		CurrentStage: entity.StagePolicyDeployed,
		RequestEnd:   time.Now().Add(time.Hour),
		PolicyID:     &policyID,
	}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h}}
	command := &fakeCommandRepository{}
	provider := &fakeProvider{}
	engine := &fakeEngine{}
	sink := &fakeSink{}
	m := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, command, provider, engine, sink, noopLogger{})

	err := m.Cancel(context.Background(), "c1", "sub-1")

	require.NoError(t, err)
	assert.Equal(t, entity.StageCancelled, h.CurrentStage)
	assert.Contains(t, engine.stopped, "c1")
}

func TestCancelMachine_Cancel_ExtendedBy_ReplacesWithStandaloneForNeighbour(t *testing.T) {
	neighbourID := "c2"
	hPolicyID := int64(1)
	h := &entity.RequestHeader{
		CorrelationID: "c1", SubscriptionID: "sub-1",
		CurrentStage: entity.StageExtendedBy,
		RequestEnd:   time.Now().Add(time.Hour),
		PolicyID:     &hPolicyID,
		ExtendedBy:   &neighbourID,
	}
	neighbour := &entity.RequestHeader{
		CorrelationID: neighbourID,
		MeterSerial:   "meter-1",
		OverrideValue: entity.OverrideOn,
		RequestStart:  time.Now(),
		RequestEnd:    time.Now().Add(2 * time.Hour),
	}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h, neighbourID: neighbour}}
	command := &fakeCommandRepository{}
	provider := &fakeProvider{
		createResult: policyprovider.Result{Status: policyprovider.StatusOK, PolicyID: 55, Message: "ok"},
		deployResult: policyprovider.Result{Status: policyprovider.StatusOK, Message: "ok"},
	}
	m := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, command, provider, &fakeEngine{}, &fakeSink{}, noopLogger{})

	err := m.Cancel(context.Background(), "c1", "sub-1")

	require.NoError(t, err)
	assert.Equal(t, entity.StageCancelled, h.CurrentStage)
	assert.Equal(t, entity.StagePolicyDeployed, neighbour.CurrentStage)
	assert.Equal(t, 1, provider.createCalls)
	assert.Equal(t, 1, provider.deployCalls)
}

func TestCancelMachine_Cancel_ReinstatingNeighbour_NotYetStarted_TrackerOnly(t *testing.T) {
	neighbourID := "c2"
	h := &entity.RequestHeader{
		CorrelationID: "c1", SubscriptionID: "sub-1",
		CurrentStage: entity.StagePolicyDeployed,
		RequestEnd:   time.Now().Add(time.Hour),
		Extends:      &neighbourID,
	}
	neighbour := &entity.RequestHeader{
		CorrelationID: neighbourID,
		RequestStart:  time.Now().Add(time.Hour),
		RequestEnd:    time.Now().Add(2 * time.Hour),
	}
	query := &fakeQueryRepository{headers: map[string]*entity.RequestHeader{"c1": h, neighbourID: neighbour}}
	command := &fakeCommandRepository{}
	provider := &fakeProvider{}
	m := statemachine.NewCancelMachine(helper.NoOpDatabase{}, query, command, provider, &fakeEngine{}, &fakeSink{}, noopLogger{})

	err := m.Cancel(context.Background(), "c1", "sub-1")

	require.NoError(t, err)
	assert.Equal(t, entity.StageCancelled, h.CurrentStage)
	assert.Equal(t, entity.StagePolicyDeployed, neighbour.CurrentStage)
	assert.Equal(t, 0, provider.createCalls)
}
