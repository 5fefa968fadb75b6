package entity

import (
	"time"

	"voyago/core-api/internal/pkg/apperror"
)

// [ENTITY STANDARD: DOMAIN SPECIFIC ERROR]
const (
	CodeRequestNotFound         = "DLC_REQUEST_NOT_FOUND"
	CodeRequestAlreadyExists    = "DLC_REQUEST_ALREADY_EXISTS"
	CodeInvalidWindow           = "DLC_INVALID_WINDOW"
	CodeStageNotCancellable     = "DLC_STAGE_NOT_CANCELLABLE"
	CodeDuplicateRequest        = "DLC_DUPLICATE_REQUEST"
	CodeOverlappingRequest      = "DLC_OVERLAPPING_REQUEST"
	CodeContiguityDataIntegrity = "DLC_CONTIGUITY_DATA_INTEGRITY"
	CodeProviderFailure         = "DLC_PROVIDER_FAILURE"
	CodeGroupedRequestNotCancellable = "DLC_GROUPED_REQUEST_NOT_CANCELLABLE"
)

var (
	ErrRequestNotFound = apperror.NewPersistance(
		CodeRequestNotFound,
		"DLC override request not found",
	)

	ErrRequestAlreadyExists = apperror.NewPersistance(
		CodeRequestAlreadyExists,
		"DLC override request already exists",
	)

	ErrStageNotCancellable = apperror.NewPersistance(
		CodeStageNotCancellable,
		"request is not in a cancellable stage",
	)

	ErrGroupedRequestNotCancellable = apperror.NewPersistance(
		CodeGroupedRequestNotCancellable,
		"request is part of a group dispatch and cannot be cancelled individually",
	)

	ErrContiguityDataIntegrity = apperror.NewInternal(
		CodeContiguityDataIntegrity,
		"more than one contiguous neighbour found for site/meter/start - data integrity error",
	)
)

// RequestHeader is the authoritative record for a DLC override request
// (spec.md §3 "Tracker entry"). Mutations are serialized per CorrelationID by
// the row lock that repository.AppendStageLocked takes through LockHeader.
type RequestHeader struct {
	CorrelationID  string         `gorm:"column:correlation_id;type:varchar(128);primaryKey"`
	SubscriptionID string         `gorm:"column:subscription_id;type:varchar(64);not null"`
	Site           string         `gorm:"column:site;type:varchar(64);not null;index:idx_dlc_header_site"`
	MeterSerial    string         `gorm:"column:meter_serial;type:varchar(64);not null"`
	OverrideValue  OverrideValue  `gorm:"column:override_value;type:varchar(8);not null"`
	Service        string         `gorm:"column:service;type:varchar(32);not null;default:load_control"`
	CurrentStage   Stage          `gorm:"column:current_stage;type:varchar(32);not null"`
	StageCount     int            `gorm:"column:stage_count;not null;default:0"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null;autoUpdateTime"`
	RequestStart   time.Time      `gorm:"column:request_start;not null;index:idx_dlc_header_site_meter_end,priority:2"`
	RequestEnd     time.Time      `gorm:"column:request_end;not null;index:idx_dlc_header_site_meter_end,priority:3"`
	GroupID        *string        `gorm:"column:group_id;type:varchar(128)"`
	OriginalStart  *time.Time     `gorm:"column:original_start"`
	PolicyID       *int64         `gorm:"column:policy_id;index:idx_dlc_header_headend_policy,priority:2"`
	PolicyName     *string        `gorm:"column:policy_name;type:varchar(64)"`
	ExtendedBy     *string        `gorm:"column:extended_by;type:varchar(128)"`
	Extends        *string        `gorm:"column:extends;type:varchar(128)"`
	HeadEnd        HeadEnd        `gorm:"column:head_end;type:varchar(32);not null;default:POLICYNET;index:idx_dlc_header_headend_policy,priority:1"`

	// SiteMeter is a denormalized composite column used purely so the
	// (site, meter_serial, request_end) secondary access path (spec.md §3,
	// access path 1) can be served by a single composite index instead of a
	// three-column scan plan each query needs to re-derive.
	SiteMeter string `gorm:"column:site_meter;type:varchar(160);not null;index:idx_dlc_header_site_meter_end,priority:1"`
}

func (RequestHeader) TableName() string {
	return "dlc_request_headers"
}

// SyncDerived keeps the SiteMeter denormalized column in sync; the command
// repository calls it explicitly before every header write.
func (h *RequestHeader) SyncDerived() {
	h.SiteMeter = h.Site + "#" + h.MeterSerial
}

// Validate enforces the Request invariants of spec.md §3 that are checkable
// without I/O.
func (h *RequestHeader) Validate() error {
	if !h.OverrideValue.Valid() {
		return apperror.NewPersistance(CodeInvalidWindow, "override_value must be ON or OFF")
	}
	if !h.RequestEnd.After(h.RequestStart) {
		return apperror.NewPersistance(CodeInvalidWindow, "request_end must be after request_start")
	}
	return nil
}

// IsBeingEnforced reports whether the header's window [RequestStart,
// RequestEnd) currently contains `now` — used by the Override State Machine
// to decide whether a contiguous deploy may happen immediately (spec.md
// §4.5 step 3) and by the Cancel State Machine's "still enforcing" scenario
// test (spec.md §4.6 scenario 3 vs 4).
func (h *RequestHeader) IsBeingEnforced(now time.Time) bool {
	return !now.Before(h.RequestStart) && now.Before(h.RequestEnd)
}
