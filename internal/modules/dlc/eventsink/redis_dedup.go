package eventsink

import (
	"context"
	"fmt"
	"time"

	database "voyago/core-api/internal/infrastructure/db"
)

// dedupTTL bounds how long a (correlationId, milestone) pair is remembered;
// well past any plausible at-least-once redelivery window.
const dedupTTL = 24 * time.Hour

// redisDedupSink wraps another Sink with a SETNX-style idempotency guard
// keyed on (correlationId, milestone), so a redelivered milestone collapses
// to a single effective emission per spec.md §4.7.
type redisDedupSink struct {
	cache database.CacheDatabase
	next  Sink
}

// NewRedisDedupSink decorates next with Redis-backed (correlationId,
// milestone) idempotency.
func NewRedisDedupSink(cache database.CacheDatabase, next Sink) Sink {
	return &redisDedupSink{cache: cache, next: next}
}

func (s *redisDedupSink) Emit(ctx context.Context, event Event) error {
	key := fmt.Sprintf("dlc:eventsink:%s:%s", event.CorrelationID, event.Milestone)

	first, err := s.cache.GetClient().SetNX(ctx, key, "1", dedupTTL).Result()
	if err != nil {
		// Cache unavailability must not block milestone delivery; fall
		// through and emit, accepting a possible duplicate downstream.
		return s.next.Emit(ctx, event)
	}
	if !first {
		return nil
	}
	return s.next.Emit(ctx, event)
}
