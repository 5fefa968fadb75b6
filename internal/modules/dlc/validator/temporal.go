package validator

import (
	"context"
	"sort"
	"time"

	"voyago/core-api/internal/modules/dlc/entity"
	"voyago/core-api/internal/modules/dlc/repository"
)

type temporalValidator struct {
	query repository.TrackerQueryRepository
}

var _ TemporalValidator = (*temporalValidator)(nil)

func NewTemporalValidator(query repository.TrackerQueryRepository) TemporalValidator {
	return &temporalValidator{query: query}
}

// Classify implements spec.md §4.2's temporal pass: scan all non-terminal
// requests on (site, meter) whose window could intersect [start, end), then
// reduce the candidate set to a single outcome — duplicate beats overlap,
// contiguous touches are never a conflict.
func (v *temporalValidator) Classify(ctx context.Context, site, meterSerial string, start, end time.Time) (TemporalResult, error) {
	candidates, err := v.query.QueryBySiteMeterWindow(ctx, site, meterSerial, start, end)
	if err != nil {
		return TemporalResult{}, err
	}

	// Tie-break by correlation id lexical order per spec.md §4.1 failure
	// semantics, so classification is deterministic under concurrent writers.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CorrelationID < candidates[j].CorrelationID
	})

	var overlap *entity.RequestHeader
	for _, h := range candidates {
		if h.CurrentStage.IsOverlapExcluded() {
			continue
		}

		switch {
		case h.RequestEnd.Equal(start) || h.RequestStart.Equal(end):
			// Contiguous touch: allowed, not a conflict.
			continue
		case h.RequestStart.Equal(start) && h.RequestEnd.Equal(end):
			return TemporalResult{Outcome: OutcomeDuplicate, ConflictCorrelationID: h.CorrelationID}, nil
		default:
			if overlap == nil {
				overlap = h
			}
		}
	}

	if overlap != nil {
		return TemporalResult{Outcome: OutcomeOverlap, ConflictCorrelationID: overlap.CorrelationID}, nil
	}
	return TemporalResult{Outcome: OutcomeClean}, nil
}
