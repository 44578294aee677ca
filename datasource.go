package sifql

import "context"

// SliceLoader is a description of how to load one slice (a shard, a file, the local node) of a
// CollectSource. CollectSources produce one SliceLoader per Collector they build.
type SliceLoader interface {
	String() string                                  // for logging
	Source() string                                  // Source returns the id of the data source this slice belongs to
	Slice() string                                   // Slice returns the id of this slice within its source
	Load(ctx context.Context) (BatchIterator, error) // Load opens the slice for reading
}
