// Package entity holds the persistent shape of a Direct Load Control override
// request: its header and the append-only stage journal that tracks it
// through the lifecycle enumerated below.
package entity

// Stage is a point in a request's lifecycle. The set is closed; see
// spec.md §3 for the transition diagram.
type Stage string

const (
	StageReceived            Stage = "RECEIVED"
	StageDeclined             Stage = "DECLINED"
	StageQueued               Stage = "QUEUED"
	StagePolicyCreated        Stage = "POLICY_CREATED"
	StagePolicyDeployed       Stage = "POLICY_DEPLOYED"
	StagePolicyExtended       Stage = "POLICY_EXTENDED"
	StageExtendedBy           Stage = "EXTENDED_BY"
	StageExtends              Stage = "EXTENDS"
	StageDlcOverrideStarted   Stage = "DLC_OVERRIDE_STARTED"
	StageDlcOverrideFinished  Stage = "DLC_OVERRIDE_FINISHED"
	StageCancelled            Stage = "CANCELLED"
	StageDlcOverrideFailure   Stage = "DLC_OVERRIDE_FAILURE"
)

// terminalStages are sinks: no further stage record may be appended once a
// header reaches one of these (spec.md §8, invariant 5).
var terminalStages = map[Stage]bool{
	StageDeclined:            true,
	StageCancelled:           true,
	StageDlcOverrideFinished: true,
	StageDlcOverrideFailure:  true,
}

// IsTerminal reports whether s is a sink stage.
func (s Stage) IsTerminal() bool {
	return terminalStages[s]
}

// contiguityEligibleStages are the stages a neighbour must be in to be
// considered by the Contiguity Resolver (spec.md §4.3).
var contiguityEligibleStages = map[Stage]bool{
	StagePolicyCreated:  true,
	StagePolicyExtended: true,
	StagePolicyDeployed: true,
	StageDlcOverrideStarted: true,
	StageExtendedBy:     true,
}

// IsContiguityEligible reports whether a header in stage s may be treated as
// a contiguous neighbour by the Contiguity Resolver.
func (s Stage) IsContiguityEligible() bool {
	return contiguityEligibleStages[s]
}

// overlapExcludedStages are excluded from the Request Validator's temporal
// overlap scan (spec.md §4.2) and the Cancel State Machine's neighbour scan.
var overlapExcludedStages = map[Stage]bool{
	StageCancelled:           true,
	StageDeclined:            true,
	StageDlcOverrideFinished: true,
}

// IsOverlapExcluded reports whether a header in stage s should be excluded
// when scanning for overlapping/duplicate/contiguous candidates.
func (s Stage) IsOverlapExcluded() bool {
	return overlapExcludedStages[s]
}

// cancellableStages are the stages from which a request may still be
// cancelled (spec.md §4.6 preconditions).
var cancellableStages = map[Stage]bool{
	StageReceived:           true,
	StageQueued:             true,
	StagePolicyCreated:      true,
	StagePolicyDeployed:     true,
	StagePolicyExtended:     true,
	StageExtendedBy:         true,
	StageExtends:            true,
	StageDlcOverrideStarted: true,
}

// IsCancellable reports whether a header in stage s may still be cancelled.
func (s Stage) IsCancellable() bool {
	return cancellableStages[s]
}

// OverrideValue is the ON/OFF switch direction carried by a request.
type OverrideValue string

const (
	OverrideOn  OverrideValue = "ON"
	OverrideOff OverrideValue = "OFF"
)

// Opposite returns the other switch direction.
func (v OverrideValue) Opposite() OverrideValue {
	if v == OverrideOn {
		return OverrideOff
	}
	return OverrideOn
}

// Valid reports whether v is one of the two recognised literals.
func (v OverrideValue) Valid() bool {
	return v == OverrideOn || v == OverrideOff
}

// PolicyClass is the dispatch classification a request receives once probed
// against the Contiguity Resolver (spec.md §4.3/§4.4 Step D).
type PolicyClass string

const (
	PolicyClassNew                 PolicyClass = "new"
	PolicyClassContiguousExtension PolicyClass = "contiguousExtension"
	PolicyClassContiguousCreation  PolicyClass = "contiguousCreation"
)

// HeadEnd identifies the external device-control system a policy is deployed
// against. Only PolicyNet is exercised by the abstract PolicyProvider stub in
// this repository; the others are recorded for header-shape completeness per
// the original source's `HeadEnd` enum.
type HeadEnd string

const (
	HeadEndPolicyNet       HeadEnd = "POLICYNET"
	HeadEndCommandCentreV4 HeadEnd = "COMMAND_CENTRE_V4"
	HeadEndConnexo         HeadEnd = "CONNEXO"
	HeadEndUIQ             HeadEnd = "UIQ"
	HeadEndMultidriveNZ    HeadEnd = "MULTIDRIVE_NZ"
)
