// Package contiguity implements the Contiguity Resolver: given a proposed
// (site, meter, status, start), it finds any already-deployed neighbour
// whose window ends exactly where the proposal starts, and classifies the
// relationship per spec.md §4.3.
package contiguity

import (
	"context"
	"time"

	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/repository"
)

// Resolution is the outcome of probing for a contiguous neighbour.
type Resolution struct {
	Class PolicyClass

	// Neighbour is the directly-touching request found, nil when Class is
	// PolicyClassNew.
	Neighbour *entity.RequestHeader

	// TerminalStart is populated only for PolicyClassContiguousExtension: the
	// request_start of the earliest request in the extension chain, which
	// becomes the effective start of the extended policy.
	TerminalStart time.Time
}

type PolicyClass = entity.PolicyClass

const (
	PolicyClassNew                 = entity.PolicyClassNew
	PolicyClassContiguousExtension = entity.PolicyClassContiguousExtension
	PolicyClassContiguousCreation  = entity.PolicyClassContiguousCreation
)

// Resolver probes the Tracker Store for contiguous neighbours.
type Resolver struct {
	query repository.TrackerQueryRepository
}

func NewResolver(query repository.TrackerQueryRepository) *Resolver {
	return &Resolver{query: query}
}

// Resolve implements spec.md §4.3. At most one contiguity-eligible neighbour
// may have request_end == start on (site, meter); more than one is a
// data-integrity error and halts the workflow.
func (r *Resolver) Resolve(ctx context.Context, site, meterSerial string, status entity.OverrideValue, start time.Time) (Resolution, error) {
	// The window query needs only to cover the instant `start`; candidates
	// whose request_end == start will satisfy [start,start] overlap test.
	candidates, err := r.query.QueryBySiteMeterWindow(ctx, site, meterSerial, start, start)
	if err != nil {
		return Resolution{}, err
	}

	var neighbour *entity.RequestHeader
	for _, h := range candidates {
		if !h.CurrentStage.IsContiguityEligible() {
			continue
		}
		if !h.RequestEnd.Equal(start) {
			continue
		}
		if neighbour != nil {
			return Resolution{}, entity.ErrContiguityDataIntegrity
		}
		neighbour = h
	}

	if neighbour == nil {
		return Resolution{Class: PolicyClassNew}, nil
	}

	if neighbour.OverrideValue == status {
		terminal, err := r.WalkExtendsChain(ctx, neighbour)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{
			Class:         PolicyClassContiguousExtension,
			Neighbour:     neighbour,
			TerminalStart: terminal.RequestStart,
		}, nil
	}

	return Resolution{
		Class:     PolicyClassContiguousCreation,
		Neighbour: neighbour,
	}, nil
}

// WalkExtendsChain follows the `extends` back-chain from h to the terminal
// (earliest) request, per spec.md §9 — the chain is acyclic by construction
// since links are only ever written forward during extension.
func (r *Resolver) WalkExtendsChain(ctx context.Context, h *entity.RequestHeader) (*entity.RequestHeader, error) {
	current := h
	for current.Extends != nil {
		next, err := r.query.GetHeader(ctx, *current.Extends)
		if err != nil {
			return nil, err
		}
		if next == nil {
			// Broken link: treat current as terminal rather than fail the
			// whole dispatch unit.
			break
		}
		current = next
	}
	return current, nil
}
