package statemachine

import (
	"context"
	"fmt"
	"time"

	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/eventsink"
	"voyago/core-api/internal/modules/dlc/policyprovider"
	"voyago/core-api/internal/modules/dlc/repository"
	"voyago/core-api/internal/modules/dlc/workflow"
)

const cancellationReason = "user-initiated cancellation of direct load control request"

// policyDeployedStages are the stages in which a policy is actually live at
// the head-end and must be undeployed before it can be deleted (spec.md
// §4.6, grounded on `dlc_cancel_override_statemachine_fn.py`'s
// POLICY_DEPLOYED_STATES).
var policyDeployedStages = map[entity.Stage]bool{
	entity.StagePolicyDeployed:     true,
	entity.StageDlcOverrideStarted: true,
	entity.StageExtendedBy:         true,
}

// CancelMachine implements the Cancel State Machine (spec.md §4.6, component
// C6): it owns the cancellation preconditions and the five reinstatement
// scenarios.
type CancelMachine struct {
	db       database.Database
	query    repository.TrackerQueryRepository
	command  repository.TrackerCommandRepository
	provider policyprovider.PolicyProvider
	engine   workflow.Engine
	sink     eventsink.Sink
	log      logger.Logger
}

func NewCancelMachine(
	db database.Database,
	query repository.TrackerQueryRepository,
	command repository.TrackerCommandRepository,
	provider policyprovider.PolicyProvider,
	engine workflow.Engine,
	sink eventsink.Sink,
	log logger.Logger,
) *CancelMachine {
	return &CancelMachine{
		db:       db,
		query:    query,
		command:  command,
		provider: provider,
		engine:   engine,
		sink:     sink,
		log:      log.WithField("component", "cancel_statemachine"),
	}
}

// Cancel implements spec.md §4.6: it checks the cancellation preconditions,
// stops any in-flight override execution for the request, dispatches to the
// matching reinstatement scenario, tears down or replaces the head-end
// policy as required, and finally marks the request CANCELLED.
func (m *CancelMachine) Cancel(ctx context.Context, correlationID, subscriptionID string) error {
	header, err := m.query.GetHeader(ctx, correlationID)
	if err != nil {
		return err
	}
	if header == nil {
		return entity.ErrRequestNotFound
	}
	if header.SubscriptionID != subscriptionID {
		return entity.ErrRequestNotFound
	}
	if header.GroupID != nil && *header.GroupID != "" {
		return entity.ErrGroupedRequestNotCancellable
	}
	if !header.CurrentStage.IsCancellable() {
		return entity.ErrStageNotCancellable
	}
	if !header.RequestEnd.After(time.Now()) {
		return entity.ErrStageNotCancellable
	}

	_ = m.engine.Stop(ctx, correlationID)

	switch {
	case header.CurrentStage == entity.StageExtendedBy:
		if err := m.cancelExtendedBy(ctx, header); err != nil {
			return err
		}
	case header.CurrentStage == entity.StagePolicyExtended ||
		header.CurrentStage == entity.StagePolicyDeployed ||
		header.CurrentStage == entity.StageDlcOverrideStarted:
		if header.Extends != nil {
			if err := m.cancelReinstatingNeighbour(ctx, header); err != nil {
				return err
			}
		} else {
			m.tearDownOwnPolicy(ctx, header)
		}
	default:
		m.tearDownOwnPolicy(ctx, header)
	}

	return m.finish(ctx, header)
}

// cancelExtendedBy is spec.md §4.6's scenario for cancelling the earlier of
// two contiguous requests while it is currently being extended by the later
// one: the merged policy is torn down and a standalone replacement is
// created for the extending (later) request's own window, grounded on
// `dlc_cancel_override_statemachine_fn.py`'s REPLACE_SECOND_REQUEST branch.
func (m *CancelMachine) cancelExtendedBy(ctx context.Context, header *entity.RequestHeader) error {
	if header.ExtendedBy == nil {
		return nil
	}
	neighbour, err := m.query.GetHeader(ctx, *header.ExtendedBy)
	if err != nil || neighbour == nil {
		return err
	}

	m.tearDownPolicy(ctx, header.PolicyID, header.CurrentStage)

	duration := int(neighbour.RequestEnd.Sub(neighbour.RequestStart).Minutes())
	policyName, result, err := m.provider.Create(ctx, policyprovider.CreateRequest{
		MeterSerials: []string{neighbour.MeterSerial},
		TurnOff:      neighbour.OverrideValue == entity.OverrideOff,
		Start:        neighbour.RequestStart,
		DurationMin:  duration,
		Replace:      true,
	})
	if err != nil || !result.Success() {
		return m.providerFailure(err, result)
	}

	locked, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, neighbour.CorrelationID, entity.StagePolicyCreated, &result.Message, func(h *entity.RequestHeader) {
		h.PolicyID = &result.PolicyID
		h.PolicyName = &policyName
	})
	if err != nil {
		return err
	}
	m.emit(ctx, locked, entity.StagePolicyCreated, nil)

	deployResult, err := m.provider.Deploy(ctx, result.PolicyID)
	if err != nil || !deployResult.Success() {
		return m.providerFailure(err, deployResult)
	}
	locked, err = repository.AppendStageLocked(ctx, m.db, m.query, m.command, neighbour.CorrelationID, entity.StagePolicyDeployed, &deployResult.Message, nil)
	if err != nil {
		return err
	}
	m.emit(ctx, locked, entity.StagePolicyDeployed, nil)
	return nil
}

// cancelReinstatingNeighbour is spec.md §4.6's scenario for cancelling the
// later of two contiguous requests, reinstating the earlier one to its own
// original window — either by replacing the merged policy (if the earlier
// request is currently enforcing) or, if it hasn't started yet, by updating
// the tracker alone, grounded on `evaluate_request`'s REPLACE_FIRST_REQUEST
// and direct-reinstate branches.
func (m *CancelMachine) cancelReinstatingNeighbour(ctx context.Context, header *entity.RequestHeader) error {
	neighbour, err := m.query.GetHeader(ctx, *header.Extends)
	if err != nil || neighbour == nil {
		return err
	}

	now := time.Now()
	switch {
	case neighbour.IsBeingEnforced(now):
		duration := int(neighbour.RequestEnd.Sub(neighbour.RequestStart).Minutes())
		policyName, result, err := m.provider.Create(ctx, policyprovider.CreateRequest{
			MeterSerials: []string{neighbour.MeterSerial},
			TurnOff:      neighbour.OverrideValue == entity.OverrideOff,
			Start:        neighbour.RequestStart,
			DurationMin:  duration,
			Replace:      true,
		})
		if err != nil || !result.Success() {
			return m.providerFailure(err, result)
		}
		locked, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, neighbour.CorrelationID, entity.StagePolicyCreated, &result.Message, func(h *entity.RequestHeader) {
			h.PolicyID = &result.PolicyID
			h.PolicyName = &policyName
		})
		if err != nil {
			return err
		}
		m.emit(ctx, locked, entity.StagePolicyCreated, nil)

		deployResult, err := m.provider.Deploy(ctx, result.PolicyID)
		if err != nil || !deployResult.Success() {
			return m.providerFailure(err, deployResult)
		}
		locked, err = repository.AppendStageLocked(ctx, m.db, m.query, m.command, neighbour.CorrelationID, entity.StagePolicyDeployed, &deployResult.Message, nil)
		if err != nil {
			return err
		}
		m.emit(ctx, locked, entity.StagePolicyDeployed, nil)

	case now.Before(neighbour.RequestStart):
		msg := "request that extended this one was cancelled so reinstating this one"
		locked, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, neighbour.CorrelationID, entity.StagePolicyDeployed, &msg, nil)
		if err != nil {
			return err
		}
		m.emit(ctx, locked, entity.StagePolicyDeployed, &msg)
	}

	return nil
}

// tearDownOwnPolicy undeploys (if live) and deletes the request's own
// head-end policy, tolerating a policy that was never created or already
// removed.
func (m *CancelMachine) tearDownOwnPolicy(ctx context.Context, header *entity.RequestHeader) {
	m.tearDownPolicy(ctx, header.PolicyID, header.CurrentStage)
}

func (m *CancelMachine) tearDownPolicy(ctx context.Context, policyID *int64, stage entity.Stage) {
	if policyID == nil {
		return
	}
	exists, err := m.provider.CheckExists(ctx, *policyID)
	if err != nil || !exists {
		return
	}
	if policyDeployedStages[stage] {
		if _, err := m.provider.Undeploy(ctx, *policyID); err != nil {
			m.log.WithContext(ctx).WithField("policy_id", *policyID).Error("failed to undeploy policy during cancellation")
		}
	}
	if _, err := m.provider.Delete(ctx, *policyID); err != nil {
		m.log.WithContext(ctx).WithField("policy_id", *policyID).Error("failed to delete policy during cancellation")
	}
}

func (m *CancelMachine) finish(ctx context.Context, header *entity.RequestHeader) error {
	reason := cancellationReason
	locked, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, header.CorrelationID, entity.StageCancelled, &reason, nil)
	if err != nil {
		return err
	}
	m.emit(ctx, locked, entity.StageCancelled, &reason)
	return nil
}

func (m *CancelMachine) providerFailure(err error, result policyprovider.Result) error {
	if err != nil {
		return fmt.Errorf("provider call failed: %w", err)
	}
	return fmt.Errorf("provider failure: %s", result.Message)
}

func (m *CancelMachine) emit(ctx context.Context, header *entity.RequestHeader, stage entity.Stage, description *string) {
	event := eventsink.NewEvent(header, stage, time.Now())
	if description != nil {
		event = event.WithDescription(*description)
	}
	if err := m.sink.Emit(ctx, event); err != nil {
		m.log.WithContext(ctx).WithField("correlation_id", header.CorrelationID).Error("failed to emit milestone event")
	}
}
