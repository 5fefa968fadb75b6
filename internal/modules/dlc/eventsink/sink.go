// Package eventsink emits milestone events to the external event-broadcast
// stream (spec.md §4.7). The stream transport itself is an external
// collaborator out of scope per spec.md §1; this package states the Event
// shape, the emit contract, and a Redis-backed idempotency guard so
// redelivered milestones collapse to a single effective emission.
package eventsink

import (
	"context"
	"time"

	"voyago/core-api/internal/modules/dlc/entity"
)

// EventType is the closed sum the event payload hierarchy collapses to
// (spec.md §9 "Deep inheritance").
const EventType = "LOAD_CONTROL"

// Event is the milestone payload emitted to the sink. Pointer fields are
// omitted (not nulled) from the wire payload when absent, matching spec.md
// §4.7 / §9's "Dynamic typing at the edges" note.
type Event struct {
	EventType         string       `json:"eventType"`
	SubscriptionID    string       `json:"subscriptionId"`
	CorrelationID     string       `json:"correlationId"`
	Site              string       `json:"site"`
	MeterSerialNumber string       `json:"meterSerialNumber"`
	Milestone         entity.Stage `json:"milestone"`
	EventDatetime     string       `json:"eventDatetime"`
	EventDescription  *string      `json:"eventDescription,omitempty"`
	PolicyID          *int64       `json:"policyId,omitempty"`
}

// NewEvent builds an Event with EventDatetime formatted to ISO-8601 seconds
// precision, per spec.md §4.7.
func NewEvent(header *entity.RequestHeader, milestone entity.Stage, at time.Time) Event {
	return Event{
		EventType:         EventType,
		SubscriptionID:    header.SubscriptionID,
		CorrelationID:     header.CorrelationID,
		Site:              header.Site,
		MeterSerialNumber: header.MeterSerial,
		Milestone:         milestone,
		EventDatetime:     at.UTC().Format("2006-01-02T15:04:05Z"),
		PolicyID:          header.PolicyID,
	}
}

// WithDescription attaches a human-readable description, e.g. an internal
// failure's error kind.
func (e Event) WithDescription(desc string) Event {
	e.EventDescription = &desc
	return e
}

// Sink is the abstract emit contract. Consumers must treat
// (correlationId, milestone) pairs as idempotent; ordering across events is
// not guaranteed (spec.md §4.7).
type Sink interface {
	Emit(ctx context.Context, event Event) error
}
