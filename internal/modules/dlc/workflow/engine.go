// Package workflow defines the abstract workflow-engine runtime that
// actually invokes the Override/Cancel State Machine steps. The runtime
// itself — durable step suspension, retries, timers — is an external
// collaborator out of scope per spec.md §1; this package only states the
// contract the dispatcher and cancel usecase depend on, plus an in-memory
// implementation used by tests and local development.
package workflow

import (
	"context"
	"errors"
)

// ErrExecutionAlreadyExists is returned by Submit when the execution key has
// already been submitted. Spec.md §4.4 treats this as a duplicate-delivery
// collision to be logged and treated as success, not a failure.
var ErrExecutionAlreadyExists = errors.New("workflow: execution already exists for key")

// WorkItem is one unit of work handed to the workflow engine: either a
// single request or a grouped dispatch unit (spec.md §4.4's execution-key
// convention: `correlation_id` or `GRP-<first_member_correlation_id>`).
type WorkItem struct {
	ExecutionKey   string
	CorrelationIDs []string
	Step           string
}

// Engine is the abstract workflow-engine runtime.
type Engine interface {
	// Submit starts a new execution for item, keyed by item.ExecutionKey.
	// Returns ErrExecutionAlreadyExists if the key was already submitted.
	Submit(ctx context.Context, item WorkItem) error

	// Stop cancels any running execution associated with correlationID. It is
	// a no-op if no execution is running; the Cancel State Machine calls this
	// unconditionally before mutating policy state.
	Stop(ctx context.Context, correlationID string) error
}
