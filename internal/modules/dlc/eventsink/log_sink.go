package eventsink

import (
	"context"

	"voyago/core-api/internal/infrastructure/logger"
)

// logSink is the terminal Sink: it stands in for the external
// event-broadcast stream by emitting a structured log line per milestone.
// Wrap it with NewRedisDedupSink for the idempotency guarantee spec.md §4.7
// requires.
type logSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) Sink {
	return &logSink{log: log.WithField("component", "eventsink")}
}

func (s *logSink) Emit(ctx context.Context, event Event) error {
	fields := map[string]any{
		"event_type":     event.EventType,
		"correlation_id": event.CorrelationID,
		"subscription_id": event.SubscriptionID,
		"site":           event.Site,
		"meter_serial":   event.MeterSerialNumber,
		"milestone":      event.Milestone,
		"event_datetime": event.EventDatetime,
	}
	if event.EventDescription != nil {
		fields["event_description"] = *event.EventDescription
	}
	if event.PolicyID != nil {
		fields["policy_id"] = *event.PolicyID
	}
	s.log.WithContext(ctx).WithFields(fields).Info("milestone event emitted")
	return nil
}
