/*
|------------------------------------------------------------------------------------
| HTTP HANDLER ARCHITECTURAL STANDARDS & OBSERVABILITY MANIFESTO
|------------------------------------------------------------------------------------
|
| The Handler layer serves as the system's "Front Gate". It is responsible for
| request orchestration, DTO enforcement, and response normalization.
|
| [1. THE SINGLE LOG RULE]
| - Every handler execution MUST emit exactly ONE "Anchor Log" (request received).
| - This log must be enriched with 'business_key' (if available) to bridge the
|   gap between business domains and technical traces.
|
| [2. ZERO POST-ENTRY LOGGING]
| - Once the request is handed over to the UseCase, the Handler MUST NOT emit
|   any further logs (success or failure).
| - Observability for the rest of the execution is handled by the UseCase
|   and Repository layers via TraceID correlation.
|
| [3. LEAN ORCHESTRATION]
| - Validation: Enforce payload integrity using DTO tags before execution.
| - Parsing: Handle malformed requests and immediately return AppError.
| - Bubbling: All errors returned by the UseCase are bubbled up directly to
|   the Global Error Handler to maintain log hygiene.
|
| [4. RESPONSE NORMALIZATION]
| - Always use the standardized 'response' package to ensure consistent
|   API contracts across all modules.
|
|------------------------------------------------------------------------------------
*/
package http

import (
	"voyago/core-api/internal/infrastructure/config"
	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/infrastructure/validator"
	"voyago/core-api/internal/modules/dlc/usecase"
	"voyago/core-api/internal/pkg/apperror"
	"voyago/core-api/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const handlerName = "http:handler.dlc"

type HandlerUseCases struct {
	SubmitOverrideUseCase usecase.SubmitOverrideUseCase
	CancelOverrideUseCase usecase.CancelOverrideUseCase
	GetStatusUseCase      usecase.GetStatusUseCase
}

type Handler struct {
	Cfg *config.Config
	Log logger.Logger
	Val validator.Validator
	Uc  HandlerUseCases
}

func NewHandler(cfg *config.Config, log logger.Logger, val validator.Validator, useCases HandlerUseCases) *Handler {
	return &Handler{
		Cfg: cfg,
		Log: log,
		Val: val,
		Uc:  useCases,
	}
}

// SubmitOverride handles `POST /dlc/:subscription_id/override` (spec.md §6).
func (h *Handler) SubmitOverride(c *fiber.Ctx) error {
	ctx := c.UserContext()
	log := h.Log.WithContext(ctx).WithField("method", "SubmitOverride")

	request := new(usecase.SubmitOverrideRequest)
	if err := c.BodyParser(request); err != nil {
		return apperror.ErrCodeMalformedRequest.WithError(err)
	}
	request.SubscriptionID = c.Params("subscription_id")

	if err := h.Val.Validate(request); err != nil {
		return apperror.ErrCodeInvalidRequest.WithError(err).AddValidationErrors(h.Val.ToDetails(err))
	}

	log.WithFields(map[string]any{
		"business_key": map[string]any{
			"subscription_id": request.SubscriptionID,
			"site":             request.Site,
		},
	}).Info("request received")

	result, err := h.Uc.SubmitOverrideUseCase.Execute(ctx, request)
	if err != nil {
		return err
	}

	return response.NewHttp(c).OK(response.Http{
		Message: result.Message,
		Data:    result,
	})
}

// CancelOverride handles `GET|DELETE /dlc/:subscription_id/override` (spec.md
// §6); `correlation_id` and `subscriber` are carried as query parameters.
func (h *Handler) CancelOverride(c *fiber.Ctx) error {
	ctx := c.UserContext()
	log := h.Log.WithContext(ctx).WithField("method", "CancelOverride")

	request := &usecase.CancelOverrideRequest{
		SubscriptionID: c.Params("subscription_id"),
		CorrelationID:  c.Query("correlation_id"),
		Subscriber:     c.Query("subscriber"),
	}

	if err := h.Val.Validate(request); err != nil {
		return apperror.ErrCodeInvalidRequest.WithError(err).AddValidationErrors(h.Val.ToDetails(err))
	}

	log.WithFields(map[string]any{
		"business_key": map[string]any{
			"subscription_id": request.SubscriptionID,
			"correlation_id":  request.CorrelationID,
		},
	}).Info("request received")

	result, err := h.Uc.CancelOverrideUseCase.Execute(ctx, request)
	if err != nil {
		return err
	}

	return response.NewHttp(c).OK(response.Http{
		Message: result.Message,
		Data:    result,
	})
}

// GetStatus handles `GET /dlc/override/:correlation_id/status` (spec.md §6).
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()
	log := h.Log.WithContext(ctx).WithField("method", "GetStatus")

	request := &usecase.GetStatusRequest{CorrelationID: c.Params("correlation_id")}
	if err := h.Val.Validate(request); err != nil {
		return apperror.ErrCodeInvalidRequest.WithError(err).AddValidationErrors(h.Val.ToDetails(err))
	}

	log.WithFields(map[string]any{
		"business_key": map[string]any{"correlation_id": request.CorrelationID},
	}).Info("request received")

	result, err := h.Uc.GetStatusUseCase.Execute(ctx, request)
	if err != nil {
		return err
	}

	return response.NewHttp(c).OK(response.Http{
		Message: "ok",
		Data:    result,
	})
}
