package contiguity_test

import (
	"context"
	"testing"
	"time"

	"voyago/core-api/internal/modules/dlc/contiguity"
	"voyago/core-api/internal/modules/dlc/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueryRepository struct {
	byWindow []*entity.RequestHeader
	byID     map[string]*entity.RequestHeader
}

func (f *fakeQueryRepository) GetHeader(ctx context.Context, correlationID string) (*entity.RequestHeader, error) {
	return f.byID[correlationID], nil
}
func (f *fakeQueryRepository) LockHeader(ctx context.Context, correlationID string) (*entity.RequestHeader, error) {
	return nil, nil
}
func (f *fakeQueryRepository) QueryBySiteMeterWindow(ctx context.Context, site, meterSerial string, start, end time.Time) ([]*entity.RequestHeader, error) {
	return f.byWindow, nil
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

func TestResolver_Resolve_NoNeighbour(t *testing.T) {
	repo := &fakeQueryRepository{}
	r := contiguity.NewResolver(repo)

	res, err := r.Resolve(context.Background(), "site-1", "meter-1", entity.OverrideOn, time.Now())

	require.NoError(t, err)
	assert.Equal(t, contiguity.PolicyClassNew, res.Class)
	assert.Nil(t, res.Neighbour)
}

func TestResolver_Resolve_SameDirection_IsExtension(t *testing.T) {
	start := time.Now()
	neighbour := &entity.RequestHeader{
		CorrelationID: "neighbour-1",
		OverrideValue: entity.OverrideOn,
		RequestStart:  start.Add(-time.Hour),
		RequestEnd:    start,
		CurrentStage:  entity.StagePolicyDeployed,
	}
	repo := &fakeQueryRepository{byWindow: []*entity.RequestHeader{neighbour}, byID: map[string]*entity.RequestHeader{}}
	r := contiguity.NewResolver(repo)

	res, err := r.Resolve(context.Background(), "site-1", "meter-1", entity.OverrideOn, start)

	require.NoError(t, err)
	assert.Equal(t, contiguity.PolicyClassContiguousExtension, res.Class)
	assert.Equal(t, neighbour.CorrelationID, res.Neighbour.CorrelationID)
	assert.True(t, res.TerminalStart.Equal(neighbour.RequestStart))
}

func TestResolver_Resolve_OppositeDirection_IsCreation(t *testing.T) {
	start := time.Now()
	neighbour := &entity.RequestHeader{
		CorrelationID: "neighbour-1",
		OverrideValue: entity.OverrideOff,
		RequestStart:  start.Add(-time.Hour),
		RequestEnd:    start,
		CurrentStage:  entity.StagePolicyDeployed,
	}
	repo := &fakeQueryRepository{byWindow: []*entity.RequestHeader{neighbour}}
	r := contiguity.NewResolver(repo)

	res, err := r.Resolve(context.Background(), "site-1", "meter-1", entity.OverrideOn, start)

	require.NoError(t, err)
	assert.Equal(t, contiguity.PolicyClassContiguousCreation, res.Class)
	assert.Equal(t, neighbour.CorrelationID, res.Neighbour.CorrelationID)
}

func TestResolver_Resolve_IneligibleStageIgnored(t *testing.T) {
	start := time.Now()
	neighbour := &entity.RequestHeader{
		CorrelationID: "neighbour-1",
		OverrideValue: entity.OverrideOn,
		RequestStart:  start.Add(-time.Hour),
		RequestEnd:    start,
		CurrentStage:  entity.StageReceived,
	}
	repo := &fakeQueryRepository{byWindow: []*entity.RequestHeader{neighbour}}
	r := contiguity.NewResolver(repo)

	res, err := r.Resolve(context.Background(), "site-1", "meter-1", entity.OverrideOn, start)

	require.NoError(t, err)
	assert.Equal(t, contiguity.PolicyClassNew, res.Class)
}

func TestResolver_Resolve_MultipleNeighbours_DataIntegrityError(t *testing.T) {
	start := time.Now()
	n1 := &entity.RequestHeader{CorrelationID: "n1", OverrideValue: entity.OverrideOn, RequestStart: start.Add(-time.Hour), RequestEnd: start, CurrentStage: entity.StagePolicyDeployed}
	n2 := &entity.RequestHeader{CorrelationID: "n2", OverrideValue: entity.OverrideOn, RequestStart: start.Add(-2 * time.Hour), RequestEnd: start, CurrentStage: entity.StagePolicyDeployed}
	repo := &fakeQueryRepository{byWindow: []*entity.RequestHeader{n1, n2}}
	r := contiguity.NewResolver(repo)

	_, err := r.Resolve(context.Background(), "site-1", "meter-1", entity.OverrideOn, start)

	assert.ErrorIs(t, err, entity.ErrContiguityDataIntegrity)
}

func TestResolver_WalkExtendsChain_FollowsToTerminal(t *testing.T) {
	terminalID := "terminal"
	root := &entity.RequestHeader{CorrelationID: "root", RequestStart: time.Unix(1000, 0), Extends: &terminalID}
	terminal := &entity.RequestHeader{CorrelationID: terminalID, RequestStart: time.Unix(500, 0)}

	repo := &fakeQueryRepository{byID: map[string]*entity.RequestHeader{terminalID: terminal}}
	r := contiguity.NewResolver(repo)

	result, err := r.WalkExtendsChain(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, terminalID, result.CorrelationID)
}
