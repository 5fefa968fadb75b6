package dispatch

import (
	"time"

	"voyago/core-api/internal/modules/dlc/entity"
)

// StepOverride is the workflow.WorkItem.Step value a dispatched unit carries;
// the workflow engine's handler uses it to route the item to the Override
// State Machine rather than some other step kind.
const StepOverride = "dispatch"

// Member is one request folded into a dispatch unit.
type Member struct {
	Site                   string
	MeterSerial            string
	CorrelationID          string
	SubscriptionID         string
	NeighbourCorrelationID *string
}

// Unit is the internal aggregate produced by the Grouping step: spec.md §3's
// "Group dispatch unit".
type Unit struct {
	GroupID       *string
	Status        entity.OverrideValue
	Start         time.Time
	End           time.Time
	PolicyClass   entity.PolicyClass
	TerminalStart time.Time // meaningful only for PolicyClassContiguousExtension
	Members       []Member
}

// ExecutionKey is the idempotent workflow-submission key: the sole member's
// correlation id for a singleton unit, or `GRP-<first_member>` for a grouped
// one (spec.md §4.4 "Idempotency").
func (u Unit) ExecutionKey() string {
	if len(u.Members) == 0 {
		return ""
	}
	if len(u.Members) == 1 {
		return u.Members[0].CorrelationID
	}
	return "GRP-" + u.Members[0].CorrelationID
}
