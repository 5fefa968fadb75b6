// Package dispatch implements the Grouping + Throttle Dispatcher (spec.md
// §4.4, component C4): it drains batches off the ingress queue, normalizes
// and groups still-pending requests, splits each group by contiguity class,
// caps unit size, rate-limits submission to the workflow engine, and
// advances each member to QUEUED.
package dispatch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"voyago/core-api/internal/infrastructure/config"
	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/modules/dlc/contiguity"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/eventsink"
	"voyago/core-api/internal/modules/dlc/ingress"
	"voyago/core-api/internal/modules/dlc/repository"
	"voyago/core-api/internal/modules/dlc/workflow"
)

// declineThrottledTooLong is the fixed reason text spec.md §4.4 Step B
// specifies for a request whose normalized end has already passed by the
// time it reaches the dispatcher.
const declineThrottledTooLong = "throttled too long"

// Dispatcher drains ingress.Queue batches and drives requests from RECEIVED
// to QUEUED, per spec.md §4.4 Steps A-G.
type Dispatcher struct {
	db       database.Database
	query    repository.TrackerQueryRepository
	command  repository.TrackerCommandRepository
	resolver *contiguity.Resolver
	engine   workflow.Engine
	sink     eventsink.Sink
	log      logger.Logger
	cfg      config.DlcConfig

	// units is the side-channel that lets the workflow engine's handler look
	// a dispatch Unit back up by the same execution key this Dispatcher
	// submits it under (WorkItem itself carries no unit payload).
	units *UnitRegistry

	// limiter stands in for the original's sleep-remainder throttle math: a
	// token bucket refilling at RATE_LIMIT_CALLS per RATE_LIMIT_PERIOD
	// produces the same bounded-submission-rate behaviour (spec.md §9 Design
	// Notes permits an equivalent mechanism).
	limiter *rate.Limiter
}

func NewDispatcher(
	db database.Database,
	query repository.TrackerQueryRepository,
	command repository.TrackerCommandRepository,
	resolver *contiguity.Resolver,
	engine workflow.Engine,
	sink eventsink.Sink,
	log logger.Logger,
	cfg config.DlcConfig,
	units *UnitRegistry,
) *Dispatcher {
	period := time.Duration(cfg.RateLimitPeriodSeconds) * time.Second
	var limiter *rate.Limiter
	if cfg.RateLimitCalls > 0 && period > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitCalls)/period.Seconds()), cfg.RateLimitCalls)
	}
	return &Dispatcher{
		db:       db,
		query:    query,
		command:  command,
		resolver: resolver,
		engine:   engine,
		sink:     sink,
		log:      log.WithField("component", "dispatcher"),
		cfg:      cfg,
		units:    units,
		limiter:  limiter,
	}
}

// ProcessBatch drives one batch of ingress messages through Steps A-G.
// Per-member failures are logged and skipped rather than aborting the whole
// batch, consistent with each step being independently retriable.
func (d *Dispatcher) ProcessBatch(ctx context.Context, msgs []ingress.Message) error {
	headers := d.filterAndNormalize(ctx, msgs)

	for _, unit := range d.buildUnits(ctx, headers) {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := d.submitAndAdvance(ctx, unit); err != nil {
			d.log.WithContext(ctx).WithFields(map[string]any{
				"execution_key": unit.ExecutionKey(),
				"error":         err.Error(),
			}).Error("dispatch unit submission failed")
		}
	}
	return nil
}

// filterAndNormalize implements Step A (drop anything no longer RECEIVED)
// and Step B (derive start/end, decline anything that already expired).
func (d *Dispatcher) filterAndNormalize(ctx context.Context, msgs []ingress.Message) []*entity.RequestHeader {
	now := time.Now()
	headers := make([]*entity.RequestHeader, 0, len(msgs))

	for _, m := range msgs {
		header, err := d.query.GetHeader(ctx, m.CorrelationID)
		if err != nil {
			d.log.WithContext(ctx).WithField("correlation_id", m.CorrelationID).Error("failed to load header for dispatch")
			continue
		}
		if header == nil || header.CurrentStage != entity.StageReceived {
			// Already advanced by a previous, redelivered attempt at this
			// message — idempotency under at-least-once delivery.
			continue
		}

		if header.RequestStart.IsZero() {
			header.RequestStart = now
		}
		if header.RequestEnd.IsZero() {
			header.RequestEnd = header.RequestStart.Add(time.Duration(d.cfg.DefaultOverrideDurationMinutes) * time.Minute)
		}

		if !header.RequestEnd.After(now) {
			reason := declineThrottledTooLong
			start, end := header.RequestStart, header.RequestEnd
			locked, err := repository.AppendStageLocked(ctx, d.db, d.query, d.command, header.CorrelationID, entity.StageDeclined, &reason, func(h *entity.RequestHeader) {
				h.RequestStart = start
				h.RequestEnd = end
			})
			if err != nil {
				d.log.WithContext(ctx).WithField("correlation_id", header.CorrelationID).Error("failed to record decline")
				continue
			}
			d.emit(ctx, locked, entity.StageDeclined, &reason)
			continue
		}

		headers = append(headers, header)
	}
	return headers
}

// buildUnits implements Step C (group), Step D (contiguity split), and
// Step E (size cap with trailing-chunk fold).
func (d *Dispatcher) buildUnits(ctx context.Context, headers []*entity.RequestHeader) []Unit {
	var units []Unit

	for _, bucket := range GroupByWindow(headers) {
		classified := make([]classifiedMember, 0, len(bucket))
		for _, h := range bucket {
			res, err := d.resolver.Resolve(ctx, h.Site, h.MeterSerial, h.OverrideValue, h.RequestStart)
			if err != nil {
				d.log.WithContext(ctx).WithField("correlation_id", h.CorrelationID).Error("contiguity probe failed, dropping from this dispatch pass")
				continue
			}

			m := Member{
				Site:           h.Site,
				MeterSerial:    h.MeterSerial,
				CorrelationID:  h.CorrelationID,
				SubscriptionID: h.SubscriptionID,
			}
			cm := classifiedMember{member: m, class: res.Class}
			if res.Neighbour != nil {
				neighbourID := res.Neighbour.CorrelationID
				cm.member.NeighbourCorrelationID = &neighbourID
			}
			if res.Class == entity.PolicyClassContiguousExtension {
				cm.terminalStart = res.TerminalStart.Unix()
			}
			classified = append(classified, cm)
		}

		if len(classified) == 0 {
			continue
		}

		first := bucket[0]
		for class, members := range splitByClass(classified) {
			memberList := make([]Member, 0, len(members))
			var terminalStart time.Time
			for _, cm := range members {
				memberList = append(memberList, cm.member)
				if cm.class == entity.PolicyClassContiguousExtension {
					terminalStart = time.Unix(cm.terminalStart, 0).UTC()
				}
			}
			for _, members := range chunk(memberList, d.cfg.MaxDispatchCount) {
				units = append(units, Unit{
					GroupID:       first.GroupID,
					Status:        first.OverrideValue,
					Start:         first.RequestStart,
					End:           first.RequestEnd,
					PolicyClass:   class,
					TerminalStart: terminalStart,
					Members:       members,
				})
			}
		}
	}
	return units
}

// submitAndAdvance implements Step F's idempotent submission and Step G's
// tracker update + QUEUED event emission.
func (d *Dispatcher) submitAndAdvance(ctx context.Context, unit Unit) error {
	item := workflow.WorkItem{
		ExecutionKey:   unit.ExecutionKey(),
		CorrelationIDs: memberCorrelationIDs(unit.Members),
		Step:           StepOverride,
	}
	if d.units != nil {
		d.units.Put(item.ExecutionKey, unit)
	}
	if err := d.engine.Submit(ctx, item); err != nil {
		if !errors.Is(err, workflow.ErrExecutionAlreadyExists) {
			return err
		}
		d.log.WithContext(ctx).WithField("execution_key", item.ExecutionKey).Info("duplicate dispatch submission, treating as success")
	}

	originalStart := unit.Start
	for _, m := range unit.Members {
		locked, err := repository.AppendStageLocked(ctx, d.db, d.query, d.command, m.CorrelationID, entity.StageQueued, nil, func(h *entity.RequestHeader) {
			h.RequestStart = unit.Start
			h.RequestEnd = unit.End
			h.OriginalStart = &originalStart
		})
		if err != nil {
			d.log.WithContext(ctx).WithField("correlation_id", m.CorrelationID).Error("failed to advance to QUEUED")
			continue
		}
		d.emit(ctx, locked, entity.StageQueued, nil)
	}
	return nil
}

func (d *Dispatcher) emit(ctx context.Context, header *entity.RequestHeader, stage entity.Stage, description *string) {
	event := eventsink.NewEvent(header, stage, time.Now())
	if description != nil {
		event = event.WithDescription(*description)
	}
	if err := d.sink.Emit(ctx, event); err != nil {
		d.log.WithContext(ctx).WithField("correlation_id", header.CorrelationID).Error("failed to emit milestone event")
	}
}

func memberCorrelationIDs(members []Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.CorrelationID
	}
	return ids
}
