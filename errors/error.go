package errors

import (
	"fmt"
	"strings"
)

// FunctionResolutionError occurs when no registered function variant matches a call signature.
// It is raised while binding a call and is never retried.
type FunctionResolutionError struct {
	Name          string
	ArgumentTypes []string
}

// Error returns a textual representation of this FunctionResolutionError
func (e FunctionResolutionError) Error() string {
	return fmt.Sprintf("Cannot resolve function %s(%s)", e.Name, strings.Join(e.ArgumentTypes, ", "))
}

// MemoryLimitExceededError occurs when a memory charge would push a governor past its ceiling
type MemoryLimitExceededError struct {
	Label     string
	Requested int64
	Allocated int64
	Limit     int64
}

// Error returns a textual representation of this MemoryLimitExceededError
func (e MemoryLimitExceededError) Error() string {
	return fmt.Sprintf("[%s] Data too large, data would be larger than limit of [%d] bytes (requested %d, already allocated %d)",
		e.Label, e.Limit, e.Requested, e.Allocated)
}

// UnsupportedCollectPhaseError occurs when no CollectSource is registered for a CollectPhase.
// This is a mismatch between planner and executor.
type UnsupportedCollectPhaseError struct {
	PhaseType string
	Handler   string
}

// Error returns a textual representation of this UnsupportedCollectPhaseError
func (e UnsupportedCollectPhaseError) Error() string {
	if e.Handler == "" {
		return fmt.Sprintf("No collect source registered for collect phase type %s", e.PhaseType)
	}
	return fmt.Sprintf("No collect source registered for collect phase type %s (handler %s)", e.PhaseType, e.Handler)
}

// CollectorFailure wraps an error raised while a Collector was producing rows
type CollectorFailure struct {
	Source string
	Slice  string
	Err    error
}

// Error returns a textual representation of this CollectorFailure
func (e *CollectorFailure) Error() string {
	return fmt.Sprintf("Collector for %s [%s] failed: %v", e.Source, e.Slice, e.Err)
}

// Unwrap returns the underlying cause of this CollectorFailure
func (e *CollectorFailure) Unwrap() error {
	return e.Err
}

// StaleRoutingError occurs when a Routing entry no longer matches the live cluster
type StaleRoutingError struct {
	NodeID string
	Source string
	Slice  int
}

// Error returns a textual representation of this StaleRoutingError
func (e StaleRoutingError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("Node %s is not part of the cluster", e.NodeID)
	}
	return fmt.Sprintf("Slice %d of %s is not allocated to node %s", e.Slice, e.Source, e.NodeID)
}

// KillReason describes why a job was killed
type KillReason string

const (
	// KilledByClient indicates a client-initiated cancellation
	KilledByClient KillReason = "client"
	// KilledByIdleTimeout indicates that no keep-alive arrived within the idle window
	KilledByIdleTimeout KillReason = "idle_timeout"
	// KilledByFailure indicates a fail-fast kill after a collector failed
	KilledByFailure KillReason = "failure"
	// KilledByMemoryLimit indicates that a collector or projector of the job exceeded the memory ceiling
	KilledByMemoryLimit KillReason = "memory_limit"
)

// JobKilledError is reported to receivers of collectors which were killed
type JobKilledError struct {
	JobID  string
	Reason KillReason
}

// Error returns a textual representation of this JobKilledError
func (e JobKilledError) Error() string {
	return fmt.Sprintf("Job %s was killed (%s)", e.JobID, e.Reason)
}

// DuplicateTypeIDError occurs when two data types are registered under the same id
type DuplicateTypeIDError struct {
	ID       int
	Existing string
	Incoming string
}

// Error returns a textual representation of this DuplicateTypeIDError
func (e DuplicateTypeIDError) Error() string {
	return fmt.Sprintf("Type id %d is already registered to %s, cannot register %s", e.ID, e.Existing, e.Incoming)
}

// UnknownColumnError occurs when a source cannot produce a requested column
type UnknownColumnError struct {
	Table  string
	Column string
}

// Error returns a textual representation of this UnknownColumnError
func (e UnknownColumnError) Error() string {
	return fmt.Sprintf("Column %s does not exist in %s", e.Column, e.Table)
}
