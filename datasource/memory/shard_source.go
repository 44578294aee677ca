package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/datasource/parser/jsonl"
	"github.com/go-sif/sifql/errors"
	"github.com/go-sif/sifql/expr"
	"github.com/go-sif/sifql/operations/collect"
)

// DocHandler is the handler name of RoutedCollectPhases reading shards
const DocHandler = "doc"

// ShardSource builds one collector per shard routed to the executing node
type ShardSource struct {
	store    *Store
	cluster  sifql.ClusterState
	compiler *expr.Compiler
	parser   *jsonl.Parser
}

// NewShardSource is a factory for ShardSources
func NewShardSource(store *Store, cluster sifql.ClusterState, compiler *expr.Compiler, conf jsonl.ParserConf) *ShardSource {
	return &ShardSource{
		store:    store,
		cluster:  cluster,
		compiler: compiler,
		parser:   jsonl.CreateParser(&conf),
	}
}

// GetCollectors returns one collector per routed shard. Shards which are no longer
// allocated to this node get a collector which fails with a StaleRoutingError.
func (s *ShardSource) GetCollectors(phase sifql.CollectPhase, downstream sifql.RowReceiver, jobCtx sifql.JobContext) ([]sifql.Collector, error) {
	d := phase.Descriptor()
	nodeID := jobCtx.NodeID()
	locations, _ := d.Routing.LocationsFor(nodeID)
	if !s.cluster.HasNode(nodeID) {
		return []sifql.Collector{collect.NewFailedCollector(downstream, jobCtx, errors.StaleRoutingError{NodeID: nodeID})}, nil
	}
	builder, err := expr.NewRowBuilder(s.compiler, d.Outputs, d.Filter)
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(locations))
	for src := range locations {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	var collectors []sifql.Collector
	for _, src := range sources {
		for _, shard := range locations[src] {
			if !s.cluster.IsAllocated(nodeID, src, shard) {
				stale := errors.StaleRoutingError{NodeID: nodeID, Source: src, Slice: shard}
				collectors = append(collectors, collect.NewFailedCollector(downstream, jobCtx, stale))
				continue
			}
			loader := &shardLoader{store: s.store, source: src, shard: shard, parser: s.parser, builder: builder}
			collectors = append(collectors, collect.NewBatchCollector(loader, downstream, jobCtx))
		}
	}
	return collectors, nil
}

// shardLoader reads a snapshot of one shard
type shardLoader struct {
	store   *Store
	source  string
	shard   int
	parser  *jsonl.Parser
	builder *expr.RowBuilder
}

// String returns a string representation of this shardLoader
func (sl *shardLoader) String() string {
	return fmt.Sprintf("Memory loader %s[%d]", sl.source, sl.shard)
}

// Source returns the id of the shard's data source
func (sl *shardLoader) Source() string {
	return sl.source
}

// Slice returns the shard number
func (sl *shardLoader) Slice() string {
	return strconv.Itoa(sl.shard)
}

// Load parses a snapshot of the shard. A shard which was never indexed is empty.
func (sl *shardLoader) Load(ctx context.Context) (sifql.BatchIterator, error) {
	data, _ := sl.store.Snapshot(sl.source, sl.shard)
	return sl.parser.Parse(io.NopCloser(bytes.NewReader(data)), sl.builder.Build)
}
