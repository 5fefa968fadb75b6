package entity

import "time"

// StageRecord is one append-only journal entry in a request's stage history
// (spec.md §3 "append-only tracker journal"). StageNumber is dense and
// monotonic per CorrelationID starting at 1; the journal is never mutated or
// deleted, only appended to.
type StageRecord struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	CorrelationID string    `gorm:"column:correlation_id;type:varchar(128);not null;index:idx_dlc_stage_correlation"`
	StageNumber   int       `gorm:"column:stage_number;not null"`
	StageName     Stage     `gorm:"column:stage_name;type:varchar(32);not null"`
	Timestamp     time.Time `gorm:"column:timestamp;not null"`
	Message       *string   `gorm:"column:message;type:text"`

	// Snapshot is a JSONB capture of the mutable header fields at the moment
	// this stage was recorded (policy id/name, group id, extends/extended_by),
	// so the journal stays a faithful history even after the header row moves
	// on. Stored as raw JSON text; the repository layer marshals/unmarshals it.
	Snapshot []byte `gorm:"column:snapshot;type:jsonb"`
}

func (StageRecord) TableName() string {
	return "dlc_request_stages"
}

// HeaderSnapshot is the shape marshaled into StageRecord.Snapshot.
type HeaderSnapshot struct {
	PolicyID      *int64  `json:"policy_id,omitempty"`
	PolicyName    *string `json:"policy_name,omitempty"`
	GroupID       *string `json:"group_id,omitempty"`
	ExtendedBy    *string `json:"extended_by,omitempty"`
	Extends       *string `json:"extends,omitempty"`
	OverrideValue OverrideValue `json:"override_value"`
}

// SnapshotOf builds a HeaderSnapshot from a RequestHeader for journaling.
func SnapshotOf(h *RequestHeader) HeaderSnapshot {
	return HeaderSnapshot{
		PolicyID:      h.PolicyID,
		PolicyName:    h.PolicyName,
		GroupID:       h.GroupID,
		ExtendedBy:    h.ExtendedBy,
		Extends:       h.Extends,
		OverrideValue: h.OverrideValue,
	}
}
