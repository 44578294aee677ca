package cluster

import (
	"fmt"
	"time"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/accumulators"
	"github.com/go-sif/sifql/config"
	"github.com/go-sif/sifql/datasource/file"
	"github.com/go-sif/sifql/datasource/memory"
	"github.com/go-sif/sifql/datasource/parser/jsonl"
	"github.com/go-sif/sifql/datasource/sys"
	"github.com/go-sif/sifql/expr"
	"github.com/go-sif/sifql/functions"
	smemory "github.com/go-sif/sifql/memory"
	"github.com/go-sif/sifql/operations/collect"
	"github.com/go-sif/sifql/operations/projectors"
	"github.com/go-sif/sifql/stats"
	"github.com/go-sif/sifql/types"
	uuid "github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Node is a member of a sifql cluster, executing the collect phases routed to it.
// It owns the registries, collect sources, thread pools and memory governor shared by all jobs.
type Node struct {
	opts      *config.Options
	logger    *zap.Logger
	state     *State
	types     *types.Registry
	functions *functions.Registry
	store     *memory.Store
	governor  *smemory.Governor
	stats     *stats.CollectStats
	pools     *collect.ThreadPools
	op        *collect.MapSideDataCollectOperation
}

// CreateNode builds a Node from opts. A nil logger disables logging.
func CreateNode(opts *config.Options, logger *zap.Logger) (*Node, error) {
	opts = opts.Clone()
	if err := opts.EnsureDefaults(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Node{
		opts:     opts,
		logger:   logger,
		state:    NewState(opts.NodeID),
		types:    types.NewRegistry(),
		store:    memory.NewStore(),
		governor: smemory.NewGovernor(opts.NodeID, 0),
		stats:    stats.NewCollectStats("sifql"),
	}
	fns, err := functions.NewRegistry(0)
	if err != nil {
		return nil, err
	}
	if err := functions.RegisterScalars(fns); err != nil {
		return nil, err
	}
	if err := accumulators.Register(fns, n.types); err != nil {
		return nil, err
	}
	n.functions = fns

	compiler := expr.NewCompiler(fns)
	parserConf := jsonl.ParserConf{BatchSize: opts.BatchSize, MaxBufferSize: opts.MaxLineSize}
	resolver := collect.NewSourceResolver()
	sources := []struct {
		phaseType sifql.CollectPhaseType
		handler   string
		source    sifql.CollectSource
	}{
		{sifql.FileURICollectPhaseType, "", file.NewSource(compiler, parserConf)},
		{sifql.RoutedCollectPhaseType, "", memory.NewShardSource(n.store, n.state, compiler, parserConf)},
		{sifql.RoutedCollectPhaseType, sys.NodesTable, sys.NewNodeSource(compiler)},
	}
	for _, s := range sources {
		if err := resolver.Register(s.phaseType, s.handler, s.source); err != nil {
			return nil, err
		}
	}

	n.pools, err = collect.NewThreadPoolsFromOptions(opts, logger)
	if err != nil {
		return nil, err
	}
	n.op = collect.NewMapSideDataCollectOperation(opts.NodeID, resolver, projectors.NewFactory(fns), n.pools, n.stats, logger)
	return n, nil
}

// ID returns the id of this Node
func (n *Node) ID() string {
	return n.opts.NodeID
}

// State returns this Node's view of the cluster
func (n *Node) State() *State {
	return n.state
}

// Store returns the shards kept on this Node
func (n *Node) Store() *memory.Store {
	return n.store
}

// Functions returns the function registry of this Node
func (n *Node) Functions() *functions.Registry {
	return n.functions
}

// Types returns the type registry of this Node
func (n *Node) Types() *types.Registry {
	return n.types
}

// Governor returns the unlimited governor accounting the memory of all jobs on this Node
func (n *Node) Governor() *smemory.Governor {
	return n.governor
}

// RegisterMetrics registers this Node's collect statistics with reg
func (n *Node) RegisterMetrics(reg prometheus.Registerer) error {
	return n.stats.Register(reg)
}

// NewJob creates the context of a job on this Node, configured by the Node's options.
// Every job gets its own memory ceiling of JobMemoryLimit bytes.
func (n *Node) NewJob(jobID uuid.UUID) *collect.JobCollectContext {
	governor := smemory.NewChildGovernor(jobID.String(), n.opts.JobMemoryLimit, n.governor)
	return collect.NewJobCollectContext(jobID, n.opts.NodeID, governor, collect.JobOptions{
		IdleTimeout:      n.opts.IdleTimeout,
		WatchdogInterval: n.opts.WatchdogInterval,
		FailFast:         n.opts.FailFast,
		Stats:            n.stats,
		Logger:           n.logger,
	})
}

// Collect launches the collectors of phase within jobCtx. Rows arrive at downstream, which is
// finished or failed once every collector has terminated.
func (n *Node) Collect(phase sifql.CollectPhase, downstream sifql.RowReceiver, jobCtx *collect.JobCollectContext) error {
	if jobCtx.NodeID() != n.opts.NodeID {
		return fmt.Errorf("Job context of node %s cannot run on node %s", jobCtx.NodeID(), n.opts.NodeID)
	}
	return n.op.Collect(phase, downstream, jobCtx)
}

// Stop releases this Node's thread pools, waiting up to timeout for running collectors
func (n *Node) Stop(timeout time.Duration) error {
	return n.pools.Release(timeout)
}

// Statistics returns the collect statistics of this Node
func (n *Node) Statistics() sifql.RuntimeStatistics {
	return n.stats
}
