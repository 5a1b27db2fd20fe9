//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package drive implements the per-drive lifecycle state machine, health
// evaluator, and sanitize sub-state machine of spec.md §4.3/§4.4.
package drive

// LifecycleState is the top-level Drive Record state, per spec.md §4.3:
// Absent -> Probing -> Present -> (on failure) Absent.
type LifecycleState int

const (
	StateAbsent LifecycleState = iota
	StateProbing
	StatePresent
)

func (s LifecycleState) String() string {
	switch s {
	case StateAbsent:
		return "Absent"
	case StateProbing:
		return "Probing"
	case StatePresent:
		return "Present"
	default:
		return "Unknown"
	}
}

// legalLifecycleTransitions enumerates, for each state, the set of states
// it may move to next. Modeled on the control plane's own
// isTransitionIllegal member-state table: an explicit allow-list makes an
// inadvertently skipped transition a visible test failure rather than a
// silent bug.
var legalLifecycleTransitions = map[LifecycleState]map[LifecycleState]bool{
	StateAbsent:   {StateProbing: true},
	StateProbing:  {StatePresent: true, StateAbsent: true},
	StatePresent:  {StateAbsent: true},
}

// isTransitionIllegal reports whether moving from cur to next is
// forbidden. A state "transitioning" to itself is always legal: it
// models re-entering Probing on a failed poll, or continuing to poll
// while Present.
func isTransitionIllegal(cur, next LifecycleState) bool {
	if cur == next {
		return false
	}
	allowed, ok := legalLifecycleTransitions[cur]
	if !ok {
		return true
	}
	return !allowed[next]
}

// ActivityState is the sub-state a Present drive is in, per spec.md §4.3
// "Present(Polling | Operating{Sanitize})".
type ActivityState int

const (
	ActivityNone ActivityState = iota
	ActivityPolling
	ActivityOperatingSanitize
)

func (a ActivityState) String() string {
	switch a {
	case ActivityPolling:
		return "Polling"
	case ActivityOperatingSanitize:
		return "Operating(Sanitize)"
	default:
		return "None"
	}
}

// Health is the fused health verdict published on the object bus.
type Health int

const (
	HealthOK Health = iota
	HealthWarning
	HealthCritical
)

func (h Health) String() string {
	switch h {
	case HealthWarning:
		return "Warning"
	case HealthCritical:
		return "Critical"
	default:
		return "OK"
	}
}

// OperationalState is the OperationalStatus bus property's "state" field.
type OperationalState int

const (
	OperationalNone OperationalState = iota
	OperationalFault
)

func (o OperationalState) String() string {
	if o == OperationalFault {
		return "Fault"
	}
	return "None"
}

// OperationKind is the Operation bus property: which long-running
// administrative operation, if any, currently owns the drive.
type OperationKind int

const (
	OperationNone OperationKind = iota
	OperationSanitize
)

func (o OperationKind) String() string {
	if o == OperationSanitize {
		return "Sanitize"
	}
	return "None"
}

// OperationStatus is the Progress bus property's "status" field.
type OperationStatus int

const (
	OperationStatusNone OperationStatus = iota
	OperationStatusInProgress
	OperationStatusCompleted
	OperationStatusFailed
)

func (o OperationStatus) String() string {
	switch o {
	case OperationStatusInProgress:
		return "InProgress"
	case OperationStatusCompleted:
		return "Completed"
	case OperationStatusFailed:
		return "Failed"
	default:
		return "None"
	}
}

// SanitizeMethod is the closed set of erase methods the SecureErase bus
// interface accepts, per spec.md §3/§6.
type SanitizeMethod int

const (
	MethodOverwrite SanitizeMethod = iota
	MethodBlockErase
	MethodCryptoErase
)

func (m SanitizeMethod) String() string {
	switch m {
	case MethodBlockErase:
		return "BlockErase"
	case MethodCryptoErase:
		return "CryptoErase"
	default:
		return "Overwrite"
	}
}
