/*
|------------------------------------------------------------------------------------
| USECASE ARCHITECTURAL STANDARDS & OBSERVABILITY MANIFESTO
|------------------------------------------------------------------------------------
|
| Every UseCase implementation MUST satisfy these high-level pillars to
| maintain system integrity and observability hygiene.
|
| [1. COMPLIANCE STANDARDS]
| - Interface-First: UseCases MUST be defined as interfaces to enable decoupled
|   communication and seamless unit testing (mocking).
| - Traceability: Maintain a continuous trace chain from entry to exit.
| - Observability: Ensure actions are searchable via business keys.
| - Validation: Enforce strict DTO validation before domain processing.
| - Atomicity: Guarantee data consistency via TransactionManager.
| - Side Effects: Trigger external events ONLY after a successful commit.
|
| [2. LOGGING OPERATIONAL SCOPE]
| - MINIMAL LOGS: Each execution logs "started" and either "completed"
|   (if successful) or "failed" (ONLY for internal UseCase logic errors).
| - ERROR BUBBLING: Downstream errors (Repo/Service) are bubbled up
|   without redundant logging to prevent aggregator pollution.
| - BUSINESS KEY: ONLY attach business_key to the "started" log to serve
|   as an 'Anchor Log'. Correlate subsequent logs via TraceID.
| - FIELD POLLUTION: Metadata enrichment only if it contains actual data.
|
| [3. STANDARD ERROR HANDLING]
| Operational steps when an error originates within this UseCase:
| 1. RECORD: Capture error details into the span (utils.RecordSpanError).
| 2. ENRICH: Wrap/Cast raw error into apperror.AppError (Code & Kind).
| 3. LOG:    Emit structured log ONLY if originating from UseCase logic.
| 4. BUBBLE: If the error originates from an underlying Repository/Service that has
|            already logged/traced the error, pass it directly to the caller to
|            maintain log hygiene and avoid redundancy.
| 5. HALT:   Return the standardized AppError immediately.
|
|------------------------------------------------------------------------------------
*/
package usecase

import (
	"context"
	"errors"
	"time"

	"voyago/core-api/internal/infrastructure/config"
	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/infrastructure/telemetry/tracer"
	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/eventsink"
	"voyago/core-api/internal/modules/dlc/ingress"
	"voyago/core-api/internal/modules/dlc/repository"
	"voyago/core-api/internal/modules/dlc/validator"
	"voyago/core-api/internal/pkg/apperror"
	"voyago/core-api/internal/pkg/uid"
	"voyago/core-api/internal/pkg/utils"
)

const submitOverrideUseCaseName = "usecase:dlc.submit_override"

// SubmitOverrideRepositories bundles this usecase's collaborators: the
// tracker journal's command side, the temporal-pass validator (which reads
// the journal's query side itself), the ingress transport the Dispatcher
// later drains, and the milestone event sink.
type SubmitOverrideRepositories struct {
	DB       database.Database
	Query    repository.TrackerQueryRepository
	Command  repository.TrackerCommandRepository
	Temporal validator.TemporalValidator
	Queue    ingress.Queue
	Sink     eventsink.Sink
}

type submitOverrideUseCase struct {
	Log    logger.Logger
	Tracer tracer.Tracer
	Cfg    config.DlcConfig
	Repo   SubmitOverrideRepositories
}

var _ SubmitOverrideUseCase = (*submitOverrideUseCase)(nil)

func NewSubmitOverrideUseCase(log logger.Logger, trc tracer.Tracer, cfg config.DlcConfig, repo SubmitOverrideRepositories) SubmitOverrideUseCase {
	return &submitOverrideUseCase{
		Log:    log.WithField("action", submitOverrideUseCaseName),
		Tracer: trc,
		Cfg:    cfg,
		Repo:   repo,
	}
}

func (uc *submitOverrideUseCase) Execute(ctx context.Context, req *SubmitOverrideRequest) (*SubmitOverrideResponse, error) {
	span, ctx := uc.Tracer.StartSpan(ctx, submitOverrideUseCaseName)
	defer span.Finish()

	log := uc.Log.WithContext(ctx).WithField("method", "Exec")

	businessKey := map[string]any{
		"subscription_id": req.SubscriptionID,
		"site":            req.Site,
		"status":          req.Status,
	}
	log.WithFields(map[string]any{"business_key": businessKey}).Info("usecase started")

	now := time.Now()
	issues, window := validator.ValidateSyntax(validator.SubmissionInput{
		Site:            req.Site,
		MeterSerials:    []string(req.SwitchAddresses),
		Status:          entity.OverrideValue(req.Status),
		Start:           req.StartDatetime,
		End:             req.EndDatetime,
		Now:             now,
		DefaultDuration: time.Duration(uc.Cfg.DefaultOverrideDurationMinutes) * time.Minute,
	})
	if len(issues) > 0 {
		// CodeValidation resolves to HTTP 400 via its own statusMapping entry
		// regardless of Kind; KindPersistance is the kind apperror documents
		// for non-retryable input errors, which validation is.
		verr := apperror.New(apperror.CodeValidation, "request failed syntactic validation", apperror.KindPersistance)
		for _, issue := range issues {
			verr.AddValidationError(issue.Field, issue.Message)
		}
		logAndTraceError(span, log, verr, "syntactic validation failed", false)
		return nil, verr
	}

	// The temporal scan MUST run before the tracker header for this
	// correlation id exists: QueryBySiteMeterWindow has no way to exclude
	// "myself" from its candidate set, so classifying first is what keeps a
	// clean submission from tripping its own exact-window duplicate check.
	result, err := uc.Repo.Temporal.Classify(ctx, window.Site, window.MeterSerial, window.Start, window.End)
	if err != nil {
		utils.RecordSpanError(span, err)
		return nil, err
	}

	correlationID := newCorrelationID(window.MeterSerial, window.Start)

	header := &entity.RequestHeader{
		CorrelationID:  correlationID,
		SubscriptionID: req.SubscriptionID,
		Site:           window.Site,
		MeterSerial:    window.MeterSerial,
		OverrideValue:  window.Status,
		Service:        "load_control",
		CurrentStage:   entity.StageReceived,
		RequestStart:   window.Start,
		RequestEnd:     window.End,
	}
	if req.GroupID != nil && *req.GroupID != "" {
		header.GroupID = req.GroupID
	}

	if err := header.Validate(); err != nil {
		logAndTraceError(span, log, err, "domain logic validation failed", false)
		return nil, err
	}

	if err := uc.Repo.Command.CreateHeader(ctx, header); err != nil {
		utils.RecordSpanError(span, err)
		return nil, err
	}

	if result.Outcome != validator.OutcomeClean {
		return uc.decline(ctx, span, log, header, result)
	}

	if err := uc.Repo.Queue.Enqueue(ctx, ingress.Message{CorrelationID: header.CorrelationID}); err != nil {
		utils.RecordSpanError(span, err)
		return nil, err
	}
	uc.emit(ctx, log, header, entity.StageReceived, nil)

	log.Info("usecase completed")

	return &SubmitOverrideResponse{
		Message:       "request accepted",
		CorrelationID: header.CorrelationID,
	}, nil
}

// decline appends the DECLINED stage and surfaces the conflict as the
// domain code matching the temporal outcome (spec.md §4.1/§4.2).
func (uc *submitOverrideUseCase) decline(ctx context.Context, span tracer.Span, log logger.Logger, header *entity.RequestHeader, result validator.TemporalResult) (*SubmitOverrideResponse, error) {
	var declineErr *apperror.AppError
	switch result.Outcome {
	case validator.OutcomeDuplicate:
		declineErr = apperror.NewPersistance(entity.CodeDuplicateRequest, "request duplicates an existing window").
			WithDetail("conflicting_correlation_id", result.ConflictCorrelationID)
	default:
		declineErr = apperror.NewPersistance(entity.CodeOverlappingRequest, "request overlaps an existing window").
			WithDetail("conflicting_correlation_id", result.ConflictCorrelationID)
	}

	reason := declineErr.Message + ": " + result.ConflictCorrelationID
	locked, err := repository.AppendStageLocked(ctx, uc.Repo.DB, uc.Repo.Query, uc.Repo.Command, header.CorrelationID, entity.StageDeclined, &reason, nil)
	if err != nil {
		utils.RecordSpanError(span, err)
		return nil, err
	}
	uc.emit(ctx, log, locked, entity.StageDeclined, &reason)

	logAndTraceError(span, log, declineErr, "request declined on temporal validation", false)
	return nil, declineErr
}

func (uc *submitOverrideUseCase) emit(ctx context.Context, log logger.Logger, header *entity.RequestHeader, stage entity.Stage, description *string) {
	event := eventsink.NewEvent(header, stage, time.Now())
	if description != nil {
		event = event.WithDescription(*description)
	}
	if err := uc.Repo.Sink.Emit(ctx, event); err != nil {
		log.WithField("correlation_id", header.CorrelationID).Error("failed to emit milestone event")
	}
}

// newCorrelationID follows the original system's `<meter>-<start-iso>-<uuid4>`
// convention (see DESIGN.md).
func newCorrelationID(meterSerial string, start time.Time) string {
	return meterSerial + "-" + start.UTC().Format("20060102T150405Z") + "-" + uid.NewUUID()
}

// logAndTraceError is shared by every usecase in this package: record the
// error on the span, enrich the log with AppError metadata when present, and
// log at Warn (expected business rejection) or Error (internal failure).
func logAndTraceError(span tracer.Span, log logger.Logger, err error, msg string, isCritical bool) {
	if err == nil {
		return
	}

	utils.RecordSpanError(span, err)

	var appErr *apperror.AppError
	logFields := map[string]any{"error": err.Error()}
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			logFields["internal_detail"] = appErr.Err.Error()
		}
		logFields["retryable"] = appErr.IsRetryable()
	}
	l := log.WithFields(logFields)
	if isCritical {
		l.Error(msg)
	} else {
		l.Warn(msg)
	}
}
