// Package statemachine drives accepted dispatch units and cancellation
// requests through PolicyProvider, implementing the Override State Machine
// (spec.md §4.5, component C5) and the Cancel State Machine (spec.md §4.6,
// component C6). Both run synchronously inside whatever workflow.Engine
// invokes them; retries/timers/durable suspension are the engine's concern,
// not this package's.
package statemachine

import (
	"context"
	"fmt"
	"time"

	"voyago/core-api/internal/infrastructure/config"
	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/modules/dlc/dispatch"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/eventsink"
	"voyago/core-api/internal/modules/dlc/policyprovider"
	"voyago/core-api/internal/modules/dlc/repository"
)

// OverrideMachine executes the per-dispatch-unit steps of spec.md §4.5.
type OverrideMachine struct {
	db       database.Database
	query    repository.TrackerQueryRepository
	command  repository.TrackerCommandRepository
	provider policyprovider.PolicyProvider
	sink     eventsink.Sink
	log      logger.Logger
	cfg      config.DlcConfig
}

func NewOverrideMachine(
	db database.Database,
	query repository.TrackerQueryRepository,
	command repository.TrackerCommandRepository,
	provider policyprovider.PolicyProvider,
	sink eventsink.Sink,
	log logger.Logger,
	cfg config.DlcConfig,
) *OverrideMachine {
	return &OverrideMachine{
		db:       db,
		query:    query,
		command:  command,
		provider: provider,
		sink:     sink,
		log:      log.WithField("component", "override_statemachine"),
		cfg:      cfg,
	}
}

// Run executes Steps 1-4 of spec.md §4.5 for unit. Step 5 (terminal
// bookkeeping for DLC_OVERRIDE_STARTED/FINISHED) is driven by external
// head-end callbacks, not by this method.
func (m *OverrideMachine) Run(ctx context.Context, unit dispatch.Unit) error {
	members := m.revalidate(ctx, unit)
	if len(members) == 0 {
		return nil
	}
	unit.Members = members

	defer func() {
		if r := recover(); r != nil {
			m.log.WithContext(ctx).WithField("panic", fmt.Sprintf("%v", r)).Error("unhandled failure in override state machine")
			for _, mem := range unit.Members {
				m.failure(ctx, mem.CorrelationID, fmt.Sprintf("%v", r))
			}
		}
	}()

	switch unit.PolicyClass {
	case entity.PolicyClassNew:
		return m.runNew(ctx, unit, false, unit.Start)
	case entity.PolicyClassContiguousCreation:
		return m.runCreation(ctx, unit)
	case entity.PolicyClassContiguousExtension:
		return m.runExtension(ctx, unit)
	default:
		return nil
	}
}

// revalidate implements Step 1: re-check the static window/value invariants
// of spec.md §4.2 against drift since accept, skipping the tracker-existence
// re-scan (the member is already the tracker's own record at this point).
func (m *OverrideMachine) revalidate(ctx context.Context, unit dispatch.Unit) []dispatch.Member {
	kept := make([]dispatch.Member, 0, len(unit.Members))
	for _, mem := range unit.Members {
		header, err := m.query.GetHeader(ctx, mem.CorrelationID)
		if err != nil {
			m.log.WithContext(ctx).WithField("correlation_id", mem.CorrelationID).Error("failed to reload header for re-validation")
			continue
		}
		if header == nil || header.CurrentStage.IsTerminal() {
			// Already resolved by a prior (redelivered) run of this unit.
			continue
		}
		if err := header.Validate(); err != nil {
			m.decline(ctx, header.CorrelationID, err.Error())
			continue
		}
		kept = append(kept, mem)
	}
	return kept
}

// runNew implements the `new` branch of Step 2 plus Steps 3-4.
func (m *OverrideMachine) runNew(ctx context.Context, unit dispatch.Unit, replace bool, start time.Time) error {
	durationMin := int(unit.End.Sub(start).Minutes())
	policyName, result, err := m.provider.Create(ctx, policyprovider.CreateRequest{
		MeterSerials: meterSerials(unit.Members),
		TurnOff:      unit.Status == entity.OverrideOff,
		Start:        start,
		DurationMin:  durationMin,
		Replace:      replace,
	})
	if err != nil {
		return m.declineAll(ctx, unit.Members, err.Error())
	}
	if !result.Success() {
		return m.declineAll(ctx, unit.Members, result.Message)
	}

	for _, mem := range unit.Members {
		locked, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, mem.CorrelationID, entity.StagePolicyCreated, &result.Message, func(h *entity.RequestHeader) {
			h.PolicyID = &result.PolicyID
			h.PolicyName = &policyName
		})
		if err != nil {
			m.log.WithContext(ctx).WithField("correlation_id", mem.CorrelationID).Error("failed to record POLICY_CREATED")
			continue
		}
		m.emit(ctx, locked, entity.StagePolicyCreated, nil)
	}

	return m.deployAndAdvance(ctx, unit, result.PolicyID, start, unit.End)
}

// runCreation implements the `contiguousCreation` branch of Step 2: apply the
// opposite-direction backoff, then behave exactly like `new` with replace=true.
func (m *OverrideMachine) runCreation(ctx context.Context, unit dispatch.Unit) error {
	backoff := time.Duration(m.cfg.OppositeSwitchBackoffMinutes) * time.Minute
	return m.runNew(ctx, unit, true, unit.Start.Add(backoff))
}

// runExtension implements the `contiguousExtension` branch of Step 2 plus
// Steps 3-4: replace the existing policy so it now spans through the new
// request's end, link the two requests, then deploy.
func (m *OverrideMachine) runExtension(ctx context.Context, unit dispatch.Unit) error {
	terminalStart := unit.TerminalStart
	durationMin := int(unit.End.Sub(terminalStart).Minutes())

	policyName, result, err := m.provider.Replace(ctx, policyprovider.CreateRequest{
		MeterSerials: meterSerials(unit.Members),
		TurnOff:      unit.Status == entity.OverrideOff,
		Start:        terminalStart,
		DurationMin:  durationMin,
		Replace:      true,
	})
	if err != nil {
		return m.declineAll(ctx, unit.Members, err.Error())
	}
	if !result.Success() {
		return m.declineAll(ctx, unit.Members, result.Message)
	}

	for _, mem := range unit.Members {
		if mem.NeighbourCorrelationID == nil {
			continue
		}
		header, err := m.query.GetHeader(ctx, mem.CorrelationID)
		if err != nil || header == nil {
			continue
		}
		neighbour, err := m.query.GetHeader(ctx, *mem.NeighbourCorrelationID)
		if err != nil || neighbour == nil {
			continue
		}

		extendMsg := fmt.Sprintf("request %s has been extended by request %s", neighbour.CorrelationID, header.CorrelationID)
		lockedNeighbour, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, neighbour.CorrelationID, entity.StageExtendedBy, &extendMsg, func(h *entity.RequestHeader) {
			h.ExtendedBy = &header.CorrelationID
		})
		if err != nil {
			m.log.WithContext(ctx).WithField("correlation_id", neighbour.CorrelationID).Error("failed to record EXTENDED_BY")
			continue
		}
		m.emit(ctx, lockedNeighbour, entity.StageExtendedBy, &extendMsg)

		extendsMsg := fmt.Sprintf("request %s extends request %s", header.CorrelationID, neighbour.CorrelationID)
		lockedHeader, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, header.CorrelationID, entity.StageExtends, &extendsMsg, func(h *entity.RequestHeader) {
			h.Extends = &neighbour.CorrelationID
		})
		if err != nil {
			m.log.WithContext(ctx).WithField("correlation_id", header.CorrelationID).Error("failed to record EXTENDS")
			continue
		}
		m.emit(ctx, lockedHeader, entity.StageExtends, &extendsMsg)

		lockedHeader, err = repository.AppendStageLocked(ctx, m.db, m.query, m.command, header.CorrelationID, entity.StagePolicyExtended, &result.Message, func(h *entity.RequestHeader) {
			h.PolicyID = &result.PolicyID
			h.PolicyName = &policyName
		})
		if err != nil {
			m.log.WithContext(ctx).WithField("correlation_id", header.CorrelationID).Error("failed to record POLICY_EXTENDED")
			continue
		}
		m.emit(ctx, lockedHeader, entity.StagePolicyExtended, nil)
	}

	deployStart := terminalStart
	if neighbourStart, ok := m.neighbourEnforcementStart(unit); ok {
		deployStart = neighbourStart
	}
	return m.deployAndAdvance(ctx, unit, result.PolicyID, deployStart, unit.End)
}

// neighbourEnforcementStart implements Step 3: if the first member's
// neighbour is currently within its own enforcement window, the deploy can
// happen immediately (deployStart = now); otherwise it must wait until
// neighbour.request_start + CONTIGUOUS_START_BUFFER.
func (m *OverrideMachine) neighbourEnforcementStart(unit dispatch.Unit) (time.Time, bool) {
	if len(unit.Members) == 0 || unit.Members[0].NeighbourCorrelationID == nil {
		return time.Time{}, false
	}
	neighbour, err := m.query.GetHeader(context.Background(), *unit.Members[0].NeighbourCorrelationID)
	if err != nil || neighbour == nil {
		return time.Time{}, false
	}
	now := time.Now()
	if neighbour.IsBeingEnforced(now) {
		return now, true
	}
	buffer := time.Duration(m.cfg.ContiguousStartBufferMinutes) * time.Minute
	return neighbour.RequestStart.Add(buffer), true
}

// deployAndAdvance implements Step 4: wait (if needed) until deployStart,
// call PolicyProvider.Deploy, and advance every still-live member to
// POLICY_DEPLOYED on success or DECLINED on failure.
func (m *OverrideMachine) deployAndAdvance(ctx context.Context, unit dispatch.Unit, policyID int64, deployStart, _ time.Time) error {
	if wait := time.Until(deployStart); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	result, err := m.provider.Deploy(ctx, policyID)
	if err != nil {
		return m.declineAll(ctx, unit.Members, err.Error())
	}
	if !result.Success() {
		return m.declineAll(ctx, unit.Members, result.Message)
	}

	for _, mem := range unit.Members {
		locked, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, mem.CorrelationID, entity.StagePolicyDeployed, &result.Message, nil)
		if err != nil {
			m.log.WithContext(ctx).WithField("correlation_id", mem.CorrelationID).Error("failed to record POLICY_DEPLOYED")
			continue
		}
		m.emit(ctx, locked, entity.StagePolicyDeployed, nil)
	}
	return nil
}

func (m *OverrideMachine) declineAll(ctx context.Context, members []dispatch.Member, reason string) error {
	for _, mem := range members {
		m.decline(ctx, mem.CorrelationID, reason)
	}
	return nil
}

func (m *OverrideMachine) decline(ctx context.Context, correlationID, reason string) {
	locked, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, correlationID, entity.StageDeclined, &reason, nil)
	if err != nil {
		m.log.WithContext(ctx).WithField("correlation_id", correlationID).Error("failed to record DECLINED")
		return
	}
	m.emit(ctx, locked, entity.StageDeclined, &reason)
}

func (m *OverrideMachine) failure(ctx context.Context, correlationID, errKind string) {
	desc := "internal failure: " + errKind
	locked, err := repository.AppendStageLocked(ctx, m.db, m.query, m.command, correlationID, entity.StageDlcOverrideFailure, &desc, nil)
	if err != nil {
		m.log.WithContext(ctx).WithField("correlation_id", correlationID).Error("failed to record DLC_OVERRIDE_FAILURE")
		return
	}
	m.emit(ctx, locked, entity.StageDlcOverrideFailure, &desc)
}

func (m *OverrideMachine) emit(ctx context.Context, header *entity.RequestHeader, stage entity.Stage, description *string) {
	event := eventsink.NewEvent(header, stage, time.Now())
	if description != nil {
		event = event.WithDescription(*description)
	}
	if err := m.sink.Emit(ctx, event); err != nil {
		m.log.WithContext(ctx).WithField("correlation_id", header.CorrelationID).Error("failed to emit milestone event")
	}
}

func meterSerials(members []dispatch.Member) []string {
	out := make([]string, len(members))
	for i, mem := range members {
		out[i] = mem.MeterSerial
	}
	return out
}
