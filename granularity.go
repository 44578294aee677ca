package sifql

// RowGranularity describes what a single row produced by a CollectPhase represents.
// Granularities are ordered from coarsest to finest.
type RowGranularity int

const (
	// ClusterGranularity rows describe the whole cluster
	ClusterGranularity RowGranularity = iota
	// NodeGranularity rows describe a single node
	NodeGranularity
	// ShardGranularity rows describe a single shard
	ShardGranularity
	// DocGranularity rows are documents stored in shards or files
	DocGranularity
)

// String returns a string representation of this RowGranularity
func (g RowGranularity) String() string {
	switch g {
	case ClusterGranularity:
		return "CLUSTER"
	case NodeGranularity:
		return "NODE"
	case ShardGranularity:
		return "SHARD"
	default:
		return "DOC"
	}
}
