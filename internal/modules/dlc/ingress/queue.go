// Package ingress defines the abstract work-queue transport that delivers
// accepted requests from submission to the Grouping + Throttle Dispatcher.
// The transport itself (SQS, Kafka, etc.) is an external collaborator out of
// scope per spec.md §1; this package states the contract and ships an
// in-memory implementation. The in-memory queue delivers each message once:
// Dequeue removes what it returns, so it does not exercise the
// at-least-once redelivery the Queue contract allows.
package ingress

import (
	"context"
	"sync"
)

// Message is one queued notification that a request was accepted and is
// waiting in RECEIVED for dispatch.
type Message struct {
	CorrelationID string
	GroupID       string
}

// Queue is the abstract ingress transport.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue returns up to max messages. Implementations may redeliver a
	// message more than once (at-least-once); callers must be idempotent.
	Dequeue(ctx context.Context, max int) ([]Message, error)
}

type inMemoryQueue struct {
	mu       sync.Mutex
	messages []Message
}

// NewInMemoryQueue builds a FIFO Queue backed by a slice; used by the dlc
// module wiring and by tests.
func NewInMemoryQueue() Queue {
	return &inMemoryQueue{}
}

func (q *inMemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

func (q *inMemoryQueue) Dequeue(ctx context.Context, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if max <= 0 || max > len(q.messages) {
		max = len(q.messages)
	}
	batch := q.messages[:max]
	q.messages = q.messages[max:]
	return batch, nil
}
