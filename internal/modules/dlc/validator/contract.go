// Package validator implements the two-pass request validation described for
// the override submission path: a syntactic pass with no I/O, and a temporal
// pass that scans the Tracker Store for overlapping, duplicate, or
// contiguous neighbours on the same (site, meter).
package validator

import (
	"context"
	"time"
)

// Outcome is the temporal-pass classification of a proposed window against
// the candidate set found for (site, meter).
type Outcome string

const (
	// OutcomeClean means no candidate intersects the proposed window at all,
	// or every intersection is a contiguous touch — submission may proceed.
	OutcomeClean Outcome = "clean"
	// OutcomeDuplicate means a candidate has the identical [start, end) window.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeOverlap means a candidate's window properly intersects the
	// proposed one without being contiguous or identical.
	OutcomeOverlap Outcome = "overlap"
)

// TemporalResult is the verdict of the temporal pass for one proposed window.
type TemporalResult struct {
	Outcome Outcome
	// ConflictCorrelationID is set for OutcomeDuplicate/OutcomeOverlap and
	// names the offending existing request, for error messages.
	ConflictCorrelationID string
}

// TemporalValidator scans the Tracker Store's (site, meter) candidate set
// per spec.md §4.2 and classifies a proposed window.
type TemporalValidator interface {
	Classify(ctx context.Context, site, meterSerial string, start, end time.Time) (TemporalResult, error)
}
