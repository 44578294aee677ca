package sifql

import (
	"context"

	uuid "github.com/gofrs/uuid"
)

// A Collector produces the rows of one data slice on one node and pushes them
// to its RowReceiver. Rows from a single Collector keep their source order.
type Collector interface {
	DoCollect()     // DoCollect produces all rows, then finishes or fails the RowReceiver. It is called at most once.
	Kill(err error) // Kill stops this Collector, reporting err downstream if it has not terminated yet. Kill is idempotent.
}

// KeepAliveListener is pinged whenever a Collector makes progress
type KeepAliveListener interface {
	KeepAlive() // KeepAlive resets the owner's idle timer. It is safe to call from any goroutine at any rate.
}

// KeepAliveFunc adapts a function to the KeepAliveListener interface
type KeepAliveFunc func()

// KeepAlive calls f
func (f KeepAliveFunc) KeepAlive() {
	f()
}

// JobContext is the per-node state of a job which Collectors are bound to
type JobContext interface {
	JobID() uuid.UUID                     // JobID returns the id of the owning job
	NodeID() string                       // NodeID returns the id of the executing node
	KeepAliveListener() KeepAliveListener // KeepAliveListener returns the listener Collectors ping on progress
	MemoryGovernor() MemoryGovernor       // MemoryGovernor returns the job's shared memory governor
	Context() context.Context             // Context returns a context which is cancelled once the job is killed
	ReportFailure(err error)              // ReportFailure records the failure of a Collector
}

// CollectSource builds the Collectors of a CollectPhase on the executing node
type CollectSource interface {
	GetCollectors(phase CollectPhase, downstream RowReceiver, jobCtx JobContext) ([]Collector, error)
}
