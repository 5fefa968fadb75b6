package repository

import (
	"context"
	"time"

	"voyago/core-api/internal/modules/dlc/entity"
)

// -------- Repository Command --------

// TrackerCommandRepository covers the mutating side of the append-only
// tracker journal: creating a request header, appending stage records, and
// the atomic read-modify-write used by the state machines and dispatcher.
type TrackerCommandRepository interface {
	CreateHeader(ctx context.Context, header *entity.RequestHeader) error

	// AppendStage writes the next stage record for a header and advances the
	// header's CurrentStage/StageCount/UpdatedAt in the same call. Callers
	// must hold the row lock obtained via LockHeader within the same
	// transaction to keep stage numbering dense and monotonic.
	AppendStage(ctx context.Context, header *entity.RequestHeader, stage entity.Stage, message *string) error

	// UpdateHeader persists header field mutations (policy id/name, group id,
	// extends/extended_by linkage) without appending a stage record. The
	// dispatcher and state machines do not call it; they change these fields
	// through AppendStageLocked together with a stage.
	UpdateHeader(ctx context.Context, header *entity.RequestHeader) error

	// BulkUpdateGroup assigns a group id to every header in ids. The
	// dispatcher's grouping step (Step C) reads group ids already on the
	// headers and does not call it.
	BulkUpdateGroup(ctx context.Context, ids []string, groupID string) error
}

// -------- Repository Query --------

// TrackerQueryRepository serves the four secondary access paths required by
// the Tracker Store (spec.md §3) plus the row-lock primitive used by
// commands that must serialize per CorrelationID.
type TrackerQueryRepository interface {
	// GetHeader returns (nil, nil) if no header exists for id.
	GetHeader(ctx context.Context, correlationID string) (*entity.RequestHeader, error)

	// LockHeader is GetHeader under a SELECT ... FOR UPDATE row lock; it must
	// be called within a Database.Atomic block.
	LockHeader(ctx context.Context, correlationID string) (*entity.RequestHeader, error)

	// QueryBySiteMeterWindow returns active (non overlap-excluded) headers
	// for (site, meterSerial) whose window could overlap, touch, or abut
	// [start, end) — access path 1 of spec.md §3, feeding the Request
	// Validator and Contiguity Resolver.
	QueryBySiteMeterWindow(ctx context.Context, site, meterSerial string, start, end time.Time) ([]*entity.RequestHeader, error)

	// QueryBySite returns active headers for a site — access path 2.
	QueryBySite(ctx context.Context, site string) ([]*entity.RequestHeader, error)

	// QueryBySubscription returns headers created by a subscription —
	// access path 3. The cancel ownership check compares the loaded header's
	// SubscriptionID instead and does not call it.
	QueryBySubscription(ctx context.Context, subscriptionID string) ([]*entity.RequestHeader, error)

	// QueryByHeadEndPolicy returns the header bound to a deployed policy on a
	// given head-end — access path 4, used to resolve inbound head-end
	// callbacks back to a correlation id.
	QueryByHeadEndPolicy(ctx context.Context, headEnd entity.HeadEnd, policyID int64) (*entity.RequestHeader, error)

	// QueryPendingDispatch returns headers still in StageQueued. The
	// Dispatcher does not call it: its Step A loads the headers named by
	// ingress messages and keeps those still in StageReceived.
	QueryPendingDispatch(ctx context.Context, limit int) ([]*entity.RequestHeader, error)

	// GetStages returns the full append-only journal for a request, ordered
	// by StageNumber ascending.
	GetStages(ctx context.Context, correlationID string) ([]*entity.StageRecord, error)
}
