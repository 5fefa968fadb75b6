package usecase

import (
	"context"

	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/infrastructure/telemetry/tracer"
	"voyago/core-api/internal/modules/dlc/statemachine"
)

const cancelOverrideUseCaseName = "usecase:dlc.cancel_override"

// cancelOverrideUseCase is a thin delivery-facing wrapper: the ownership,
// group-membership, cancellable-stage and end-date-not-past preconditions
// plus the reinstatement scenarios all live in statemachine.CancelMachine
// (spec.md §4.6). The `subscriber` field is accepted and validated for
// presence only — cross-checking it against a subscription registry's
// recorded owner is out of scope here (spec.md §1 treats the subscription
// registry as an external collaborator; see DESIGN.md).
type cancelOverrideUseCase struct {
	Log     logger.Logger
	Tracer  tracer.Tracer
	Machine *statemachine.CancelMachine
}

var _ CancelOverrideUseCase = (*cancelOverrideUseCase)(nil)

func NewCancelOverrideUseCase(log logger.Logger, trc tracer.Tracer, machine *statemachine.CancelMachine) CancelOverrideUseCase {
	return &cancelOverrideUseCase{
		Log:     log.WithField("action", cancelOverrideUseCaseName),
		Tracer:  trc,
		Machine: machine,
	}
}

func (uc *cancelOverrideUseCase) Execute(ctx context.Context, req *CancelOverrideRequest) (*CancelOverrideResponse, error) {
	span, ctx := uc.Tracer.StartSpan(ctx, cancelOverrideUseCaseName)
	defer span.Finish()

	log := uc.Log.WithContext(ctx).WithField("method", "Exec")
	log.WithFields(map[string]any{
		"business_key": map[string]any{
			"correlation_id":  req.CorrelationID,
			"subscription_id": req.SubscriptionID,
		},
	}).Info("usecase started")

	if err := uc.Machine.Cancel(ctx, req.CorrelationID, req.SubscriptionID); err != nil {
		// Preconditions and provider failures are both bubbled up: the
		// state machine already classifies them as the correct AppError /
		// wrapped-error kind.
		logAndTraceError(span, log, err, "cancellation failed", false)
		return nil, err
	}

	log.Info("usecase completed")

	return &CancelOverrideResponse{
		Message:       "request cancelled",
		CorrelationID: req.CorrelationID,
	}, nil
}
