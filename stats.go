package sifql

import "time"

// RuntimeStatistics facilitates the retrieval of statistics about the Collectors of a node
type RuntimeStatistics interface {
	// GetStartTime returns the time the node started collecting
	GetStartTime() time.Time
	// GetRuntime returns the time since the node started collecting
	GetRuntime() time.Duration
	// GetNumRowsCollected returns the number of Rows produced by all Collectors so far
	GetNumRowsCollected() int64
	// GetNumCollectorsRunning returns the number of Collectors which are currently running
	GetNumCollectorsRunning() int64
	// GetCurrentCollectorRuntime returns a rolling average of Collector runtimes
	GetCurrentCollectorRuntime() time.Duration
}
