// Package collect runs the map-side part of a distributed query on one node: it resolves the
// CollectSource of a phase, builds one Collector per local slice and runs them on named pools.
package collect

import (
	"fmt"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/logging"
	"github.com/go-sif/sifql/operations/projectors"
	"github.com/go-sif/sifql/stats"
	"go.uber.org/zap"
)

// instrumented Collectors accept statistics and a logger before they are launched
type instrumented interface {
	Instrument(collectStats *stats.CollectStats, logger *zap.Logger)
}

// MapSideDataCollectOperation creates and launches the Collectors of CollectPhases on the local node
type MapSideDataCollectOperation struct {
	nodeID     string
	resolver   *SourceResolver
	projectors *projectors.Factory
	pools      *ThreadPools
	stats      *stats.CollectStats
	logger     *zap.Logger
}

// NewMapSideDataCollectOperation is a factory for MapSideDataCollectOperations. collectStats and logger may be nil.
func NewMapSideDataCollectOperation(nodeID string, resolver *SourceResolver, projectorFactory *projectors.Factory, pools *ThreadPools, collectStats *stats.CollectStats, logger *zap.Logger) *MapSideDataCollectOperation {
	return &MapSideDataCollectOperation{
		nodeID:     nodeID,
		resolver:   resolver,
		projectors: projectorFactory,
		pools:      pools,
		stats:      collectStats,
		logger:     logging.OrNop(logger).With(zap.String("node", nodeID)),
	}
}

// CreateCollectors builds the Collectors of phase for the local node, without starting them.
// Rows of all Collectors pass through the phase's projections before reaching downstream.
// If the local node has no entry in the phase's routing no Collector is built and
// downstream is finished right away.
func (op *MapSideDataCollectOperation) CreateCollectors(phase sifql.CollectPhase, downstream sifql.RowReceiver, jobCtx sifql.JobContext) ([]sifql.Collector, error) {
	d := phase.Descriptor()
	if _, ok := d.Routing.LocationsFor(op.nodeID); !ok {
		op.logger.Debug("No local routing entries, nothing to collect", zap.String("phase", d.Name))
		downstream.Prepare()
		downstream.Finish()
		return []sifql.Collector{}, nil
	}
	source, err := op.resolver.GetService(phase)
	if err != nil {
		return nil, err
	}
	projected, err := op.projectors.ForJob(d, jobCtx, downstream)
	if err != nil {
		return nil, err
	}
	upstreams := NewMultiUpstreamRowReceiver(projected)
	collectors, err := source.GetCollectors(phase, upstreams, jobCtx)
	if err != nil {
		return nil, err
	}
	upstreams.SetUpstreams(len(collectors))
	return collectors, nil
}

// LaunchCollectors registers collectors with jobCtx and submits each of them to the named pool.
// It does not wait for them: results arrive through their receivers. A Collector which the pool
// rejects is killed with the rejection error.
func (op *MapSideDataCollectOperation) LaunchCollectors(jobCtx *JobCollectContext, collectors []sifql.Collector, poolName string) {
	for _, c := range collectors {
		if ic, ok := c.(instrumented); ok {
			ic.Instrument(op.stats, op.logger)
		}
		id := jobCtx.register(c)
		if id < 0 {
			continue
		}
		collector := c
		err := op.pools.Submit(poolName, func() {
			defer jobCtx.deregister(id)
			collector.DoCollect()
		})
		if err != nil {
			op.logger.Warn("Collector rejected", zap.String("pool", poolName), zap.Error(err))
			if op.stats != nil {
				op.stats.CollectorRejected()
			}
			jobCtx.deregister(id)
			collector.Kill(fmt.Errorf("Rejected execution on thread pool %s: %w", poolName, err))
			continue
		}
		if op.stats != nil {
			op.stats.CollectorLaunched()
		}
	}
}

// Collect creates the Collectors of phase and launches them on the pool chosen for phase
func (op *MapSideDataCollectOperation) Collect(phase sifql.CollectPhase, downstream sifql.RowReceiver, jobCtx *JobCollectContext) error {
	collectors, err := op.CreateCollectors(phase, downstream, jobCtx)
	if err != nil {
		return err
	}
	op.LaunchCollectors(jobCtx, collectors, jobCtx.ThreadPoolName(phase))
	return nil
}

// ThreadPoolName returns the pool the Collectors of phase run on when executed on nodeID.
// Cluster, node and shard level rows are cheap lookups; document scans over several local
// slices are searches; everything else runs on the generic pool.
func ThreadPoolName(phase sifql.CollectPhase, nodeID string) string {
	d := phase.Descriptor()
	switch d.MaxRowGranularity {
	case sifql.ClusterGranularity, sifql.NodeGranularity, sifql.ShardGranularity:
		return GetPool
	}
	if phase.Type() == sifql.RoutedCollectPhaseType && d.Routing.NumSlices(nodeID) > 1 {
		return SearchPool
	}
	return GenericPool
}
