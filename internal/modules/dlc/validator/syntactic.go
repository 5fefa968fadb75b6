package validator

import (
	"time"

	"voyago/core-api/internal/modules/dlc/entity"
)

// FieldIssue is one syntactic validation failure. Collected, never returned
// singly — spec.md §4.2 requires every error found, not just the first.
type FieldIssue struct {
	Field   string
	Message string
}

// SubmissionInput is the raw, still-unvalidated shape of an override
// submission after JSON decoding but before any domain object is built.
type SubmissionInput struct {
	Site            string
	MeterSerials    []string
	Status          entity.OverrideValue
	Start           *time.Time
	End             *time.Time
	Now             time.Time
	DefaultDuration time.Duration
	MaxWindow       time.Duration
}

// NormalizedWindow is the derived, fully-resolved window produced once a
// SubmissionInput passes the syntactic pass.
type NormalizedWindow struct {
	Site        string
	MeterSerial string
	Status      entity.OverrideValue
	Start       time.Time
	End         time.Time
}

// ValidateSyntax runs the no-I/O pass of spec.md §4.2: presence of site,
// exactly one meter, valid status literal, start<end, end>now, and derives
// `end` from DefaultDuration when absent. It returns every issue found.
func ValidateSyntax(in SubmissionInput) ([]FieldIssue, *NormalizedWindow) {
	var issues []FieldIssue

	if in.Site == "" {
		issues = append(issues, FieldIssue{Field: "site", Message: "site is required"})
	}

	switch len(in.MeterSerials) {
	case 0:
		issues = append(issues, FieldIssue{Field: "switch_addresses", Message: "exactly one meter serial is required"})
	case 1:
		// ok
	default:
		issues = append(issues, FieldIssue{Field: "switch_addresses", Message: "at most one meter_serial per request"})
	}

	if !in.Status.Valid() {
		issues = append(issues, FieldIssue{Field: "status", Message: "status must be ON or OFF"})
	}

	start := in.Now
	if in.Start != nil {
		start = *in.Start
	}

	var end time.Time
	switch {
	case in.End != nil:
		end = *in.End
	case in.DefaultDuration > 0:
		end = start.Add(in.DefaultDuration)
	default:
		issues = append(issues, FieldIssue{Field: "end_datetime", Message: "end_datetime is required when it cannot be derived"})
	}

	if !end.IsZero() {
		if !end.After(start) {
			issues = append(issues, FieldIssue{Field: "end_datetime", Message: "end must be after start"})
		}
		if !end.After(in.Now) {
			issues = append(issues, FieldIssue{Field: "end_datetime", Message: "end must be in the future"})
		}
		if in.MaxWindow > 0 && end.Sub(start) > in.MaxWindow {
			issues = append(issues, FieldIssue{Field: "end_datetime", Message: "window exceeds the maximum override duration"})
		}
	}

	if len(issues) > 0 {
		return issues, nil
	}

	return nil, &NormalizedWindow{
		Site:        in.Site,
		MeterSerial: in.MeterSerials[0],
		Status:      in.Status,
		Start:       start,
		End:         end,
	}
}
