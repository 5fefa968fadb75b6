package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// -------- DTOs --------

// MeterSerials accepts spec.md §6's `switch_addresses: string|[string]` wire
// shape and normalizes it to a slice, mirroring the original source's
// `switch_addresses[0] if type(switch_addresses) == list else switch_addresses`
// handling.
type MeterSerials []string

func (m *MeterSerials) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = []string{single}
		return nil
	}

	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return errors.New("switch_addresses must be a string or an array of strings")
	}
	*m = multi
	return nil
}

// SubmitOverrideRequest is the DTO for spec.md §6's submission operation.
type SubmitOverrideRequest struct {
	SubscriptionID  string       `json:"-" validate:"required" label:"Subscription ID"`
	Site            string       `json:"site" validate:"required" label:"Site"`
	SwitchAddresses MeterSerials `json:"switch_addresses" validate:"required,min=1,max=1" label:"Switch addresses"`
	Status          string       `json:"status" validate:"required,oneof=ON OFF" label:"Status"`
	StartDatetime   *time.Time   `json:"start_datetime" label:"Start datetime"`
	EndDatetime     *time.Time   `json:"end_datetime" label:"End datetime"`
	GroupID         *string      `json:"group_id" validate:"omitempty,max=128" label:"Group ID"`
}

// SubmitOverrideResponse is the `200 {message, correlation_id}` body of
// spec.md §6.
type SubmitOverrideResponse struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

// CancelOverrideRequest is the DTO for spec.md §6's cancellation operation.
type CancelOverrideRequest struct {
	SubscriptionID string `json:"-" validate:"required" label:"Subscription ID"`
	CorrelationID  string `json:"correlation_id" validate:"required" label:"Correlation ID"`
	Subscriber     string `json:"subscriber" validate:"required" label:"Subscriber"`
}

// CancelOverrideResponse is the `200 {message, correlation_id}` body of
// spec.md §6.
type CancelOverrideResponse struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

// GetStatusRequest is the DTO for spec.md §6's status operation.
type GetStatusRequest struct {
	CorrelationID string `json:"-" validate:"required" label:"Correlation ID"`
}

// GetStatusResponse is the `200 {status, correlation_id}` body of spec.md §6.
type GetStatusResponse struct {
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id"`
}

// -------- Usecase Interfaces --------

// SubmitOverrideUseCase accepts a DLC override request: syntactic + temporal
// validation, tracker write, ingress enqueue (spec.md §4.1-§4.2, §6).
type SubmitOverrideUseCase interface {
	Execute(ctx context.Context, req *SubmitOverrideRequest) (*SubmitOverrideResponse, error)
}

// CancelOverrideUseCase cancels an in-flight or deployed request (spec.md
// §4.6, §6). Every precondition (ownership, group, stage, end date) is
// checked by the Cancel State Machine; the usecase only passes its errors on.
type CancelOverrideUseCase interface {
	Execute(ctx context.Context, req *CancelOverrideRequest) (*CancelOverrideResponse, error)
}

// GetStatusUseCase reports a request's current stage (spec.md §6, §8
// testable property 7: "round-trip").
type GetStatusUseCase interface {
	Execute(ctx context.Context, req *GetStatusRequest) (*GetStatusResponse, error)
}
