package domain

import "time"

// ExecutionState is the lifecycle of a remote execution as observed by polling.
type ExecutionState string

// Execution lifecycle states.
const (
	ExecutionPending   ExecutionState = "pending"
	ExecutionRunning   ExecutionState = "running"
	ExecutionCompleted ExecutionState = "completed"
	ExecutionFailed    ExecutionState = "failed"
	ExecutionUnknown   ExecutionState = "unknown"
)

// Remote state strings reported by the query service.
const (
	RemoteStatePending   = "QUERY_STATE_PENDING"
	RemoteStateRunning   = "QUERY_STATE_RUNNING"
	RemoteStateExecuting = "QUERY_STATE_EXECUTING"
	RemoteStateCompleted = "QUERY_STATE_COMPLETED"
	RemoteStateFailed    = "QUERY_STATE_FAILED"
)

// ParseExecutionState maps a remote state string onto the local lifecycle.
// Anything not recognised maps to ExecutionUnknown.
func ParseExecutionState(raw string) ExecutionState {
	switch raw {
	case RemoteStatePending:
		return ExecutionPending
	case RemoteStateRunning, RemoteStateExecuting:
		return ExecutionRunning
	case RemoteStateCompleted:
		return ExecutionCompleted
	case RemoteStateFailed:
		return ExecutionFailed
	default:
		return ExecutionUnknown
	}
}

// IsTerminal reports whether no further transition is expected.
// Unknown counts as terminal so polling never spins on a state it cannot interpret.
func (s ExecutionState) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionUnknown:
		return true
	default:
		return false
	}
}

// ExecutionHandle pairs a submitted run with the query it belongs to.
// Handles live only for the duration of one invocation.
type ExecutionHandle struct {
	QueryID     QueryID
	ExecutionID string
	Name        string
}

// ExecutionStatus is one observation of a remote execution.
type ExecutionStatus struct {
	ExecutionID string
	QueryID     QueryID
	RawState    string
	State       ExecutionState
	Error       string
}

// ExecutionResult is the consumed part of a finished execution's results.
type ExecutionResult struct {
	ExecutionID string
	RawState    string
	RowCount    int
}

// OutcomeKind summarises how waiting on an execution ended.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeSubmitted OutcomeKind = "submitted" // not waited on
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeUnknown   OutcomeKind = "unknown"
	OutcomeTimedOut  OutcomeKind = "timed_out"
	OutcomeError     OutcomeKind = "error"
)

// ExecutionOutcome is the per-handle report produced by the execution driver.
type ExecutionOutcome struct {
	Handle   ExecutionHandle
	Kind     OutcomeKind
	RawState string
	RowCount int
	Reason   string
	Polls    int
	Elapsed  time.Duration
	Err      error // set for timed-out and error outcomes
}
