package dispatch_test

import (
	"context"
	"testing"
	"time"

	"voyago/core-api/internal/infrastructure/config"
	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/modules/dlc/contiguity"
	"voyago/core-api/internal/modules/dlc/dispatch"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/eventsink"
	"voyago/core-api/internal/modules/dlc/ingress"
	"voyago/core-api/internal/modules/dlc/workflow"
	"voyago/core-api/test/helper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================================================================
// TEST HELPERS
// ===========================================================================

type noopLogger struct{}

func (l noopLogger) WithContext(ctx context.Context) logger.Logger    { return l }
func (l noopLogger) WithField(key string, value any) logger.Logger    { return l }
func (l noopLogger) WithFields(fields map[string]any) logger.Logger   { return l }
func (l noopLogger) Debug(message string)                             {}
func (l noopLogger) Info(message string)                              {}
func (l noopLogger) Warn(message string)                              {}
func (l noopLogger) Error(message string)                             {}

type fakeQueryRepository struct {
	headers map[string]*entity.RequestHeader
}

func newFakeQueryRepository() *fakeQueryRepository {
	return &fakeQueryRepository{headers: make(map[string]*entity.RequestHeader)}
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

type fakeCommandRepository struct {
	appended []entity.Stage
}

func (f *fakeCommandRepository) CreateHeader(ctx context.Context, header *entity.RequestHeader) error {
	return nil
}
func (f *fakeCommandRepository) AppendStage(ctx context.Context, header *entity.RequestHeader, stage entity.Stage, message *string) error {
	header.CurrentStage = stage
	f.appended = append(f.appended, stage)
	return nil
}
func (f *fakeCommandRepository) UpdateHeader(ctx context.Context, header *entity.RequestHeader) error {
	return nil
}
func (f *fakeCommandRepository) BulkUpdateGroup(ctx context.Context, ids []string, groupID string) error {
	return nil
}

type fakeEngine struct {
	submitted []workflow.WorkItem
}

func (f *fakeEngine) Submit(ctx context.Context, item workflow.WorkItem) error {
	f.submitted = append(f.submitted, item)
	return nil
}
func (f *fakeEngine) Stop(ctx context.Context, correlationID string) error { return nil }

type fakeSink struct {
	events []eventsink.Event
}

func (f *fakeSink) Emit(ctx context.Context, event eventsink.Event) error {
	f.events = append(f.events, event)
	return nil
}

func testConfig() config.DlcConfig {
	return config.DlcConfig{
		DefaultOverrideDurationMinutes: 30,
		MaxDispatchCount:               10,
	}
}

// ===========================================================================
// TEST CASES
// ===========================================================================

func TestDispatcher_ProcessBatch_HappyPath_AdvancesToQueued(t *testing.T) {
	query := newFakeQueryRepository()
	now := time.Now()
	h := &entity.RequestHeader{
		CorrelationID: "meter-1-abc",
		Site:          "site-1",
		MeterSerial:   "meter-1",
		OverrideValue: entity.OverrideOn,
		CurrentStage:  entity.StageReceived,
		RequestStart:  now,
		RequestEnd:    now.Add(time.Hour),
	}
	query.headers[h.CorrelationID] = h

	command := &fakeCommandRepository{}
	resolver := contiguity.NewResolver(query)
	engine := &fakeEngine{}
	sink := &fakeSink{}

	d := dispatch.NewDispatcher(helper.NoOpDatabase{}, query, command, resolver, engine, sink, noopLogger{}, testConfig(), dispatch.NewUnitRegistry())

	err := d.ProcessBatch(context.Background(), []ingress.Message{{CorrelationID: h.CorrelationID}})

	require.NoError(t, err)
	assert.Equal(t, entity.StageQueued, h.CurrentStage)
	assert.Len(t, engine.submitted, 1)
	assert.Len(t, sink.events, 1)
}

func TestDispatcher_ProcessBatch_AlreadyAdvanced_Skipped(t *testing.T) {
	query := newFakeQueryRepository()
	h := &entity.RequestHeader{
		CorrelationID: "meter-1-abc",
		CurrentStage:  entity.StageQueued,
	}
	query.headers[h.CorrelationID] = h

	command := &fakeCommandRepository{}
	resolver := contiguity.NewResolver(query)
	engine := &fakeEngine{}
	sink := &fakeSink{}

	d := dispatch.NewDispatcher(helper.NoOpDatabase{}, query, command, resolver, engine, sink, noopLogger{}, testConfig(), dispatch.NewUnitRegistry())

	err := d.ProcessBatch(context.Background(), []ingress.Message{{CorrelationID: h.CorrelationID}})

	require.NoError(t, err)
	assert.Empty(t, engine.submitted)
}

func TestDispatcher_ProcessBatch_ExpiredWindow_Declined(t *testing.T) {
	query := newFakeQueryRepository()
	now := time.Now()
	h := &entity.RequestHeader{
		CorrelationID: "meter-1-abc",
		Site:          "site-1",
		MeterSerial:   "meter-1",
		OverrideValue: entity.OverrideOn,
		CurrentStage:  entity.StageReceived,
		RequestStart:  now.Add(-2 * time.Hour),
		RequestEnd:    now.Add(-time.Hour),
	}
	query.headers[h.CorrelationID] = h

	command := &fakeCommandRepository{}
	resolver := contiguity.NewResolver(query)
	engine := &fakeEngine{}
	sink := &fakeSink{}

	d := dispatch.NewDispatcher(helper.NoOpDatabase{}, query, command, resolver, engine, sink, noopLogger{}, testConfig(), dispatch.NewUnitRegistry())

	err := d.ProcessBatch(context.Background(), []ingress.Message{{CorrelationID: h.CorrelationID}})

	require.NoError(t, err)
	assert.Equal(t, entity.StageDeclined, h.CurrentStage)
	assert.Empty(t, engine.submitted)
}

func TestDispatcher_ProcessBatch_MissingHeader_Skipped(t *testing.T) {
	query := newFakeQueryRepository()
	command := &fakeCommandRepository{}
	resolver := contiguity.NewResolver(query)
	engine := &fakeEngine{}
	sink := &fakeSink{}

	d := dispatch.NewDispatcher(helper.NoOpDatabase{}, query, command, resolver, engine, sink, noopLogger{}, testConfig(), dispatch.NewUnitRegistry())

	err := d.ProcessBatch(context.Background(), []ingress.Message{{CorrelationID: "ghost"}})

	require.NoError(t, err)
	assert.Empty(t, engine.submitted)
}

// TestDispatcher_ProcessBatch_GroupOverCapFolds exercises Step E's
// trailing-chunk fold indirectly through ProcessBatch: 5 grouped members with
// MaxDispatchCount=4 would naively split 4+1, but a trailing chunk smaller
// than half the cap folds into the one before it, so the whole group is
// submitted as a single unit.
func TestDispatcher_ProcessBatch_GroupOverCapFolds(t *testing.T) {
	query := newFakeQueryRepository()
	now := time.Now()
	start, end := now, now.Add(time.Hour)
	groupID := "grp-1"
	msgs := make([]ingress.Message, 0, 5)
	for i := 0; i < 5; i++ {
		id := "meter-" + string(rune('a'+i)) + "-x"
		h := &entity.RequestHeader{
			CorrelationID: id,
			Site:          "site-1",
			MeterSerial:   id,
			GroupID:       &groupID,
			OverrideValue: entity.OverrideOn,
			CurrentStage:  entity.StageReceived,
			RequestStart:  start,
			RequestEnd:    end,
		}
		query.headers[id] = h
		msgs = append(msgs, ingress.Message{CorrelationID: id})
	}

	command := &fakeCommandRepository{}
	resolver := contiguity.NewResolver(query)
	engine := &fakeEngine{}
	sink := &fakeSink{}

	cfg := testConfig()
	cfg.MaxDispatchCount = 4
	d := dispatch.NewDispatcher(helper.NoOpDatabase{}, query, command, resolver, engine, sink, noopLogger{}, cfg, dispatch.NewUnitRegistry())

	err := d.ProcessBatch(context.Background(), msgs)

	require.NoError(t, err)
	require.Len(t, engine.submitted, 1)
	assert.Len(t, engine.submitted[0].CorrelationIDs, 5)
}
