// Package policyprovider is the pure capability interface over the external
// SOAP-based head-end (spec.md §4.8). The real head-end client — PolicyNet's
// SOAP transport, session negotiation, WSDL binding — is an external
// collaborator out of scope per spec.md §1; this package states the contract
// plus a stub implementation used by tests and local development.
package policyprovider

import (
	"context"
	"time"
)

// StatusOK is the PolicyProvider success status; any other value is a
// policy-layer failure whose Message must surface to the tracker.
const StatusOK = 200

// Result is the uniform (status, policy_id, message) reply shape shared by
// create/replace/deploy/undeploy calls.
type Result struct {
	Status   int
	PolicyID int64
	Message  string
}

// Success reports whether the call succeeded at the policy layer.
func (r Result) Success() bool {
	return r.Status == StatusOK
}

// CreateRequest parameterizes PolicyProvider.Create/Replace.
type CreateRequest struct {
	MeterSerials []string
	TurnOff      bool
	Start        time.Time
	DurationMin  int
	Replace      bool
}

// PolicyProvider is the abstract façade over the head-end.
type PolicyProvider interface {
	// Create submits a new (or replacement, when req.Replace) load-control
	// override policy and returns its generated name plus the creation
	// result.
	Create(ctx context.Context, req CreateRequest) (policyName string, result Result, err error)

	// Replace is equivalent to Create with Replace=true (spec.md §4.8).
	Replace(ctx context.Context, req CreateRequest) (policyName string, result Result, err error)

	Deploy(ctx context.Context, policyID int64) (Result, error)
	Undeploy(ctx context.Context, policyID int64) (Result, error)
	Delete(ctx context.Context, policyID int64) (Result, error)
	CheckExists(ctx context.Context, policyID int64) (bool, error)

	// WithSession runs fn with a head-end session acquired for its duration,
	// guaranteeing release on every exit path including panics propagated as
	// errors by the caller's recover.
	WithSession(ctx context.Context, fn func(ctx context.Context) error) error
}
