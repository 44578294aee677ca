// Package testing runs collect phases on a local, in-process test cluster
package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/cluster"
	"github.com/go-sif/sifql/config"
	"github.com/go-sif/sifql/receivers"
	"github.com/go-sif/sifql/types"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// LocalCluster is a set of Nodes sharing one process
type LocalCluster struct {
	Nodes []*cluster.Node
}

// CreateLocalCluster starts numNodes Nodes named node-0, node-1, ... configured by opts.
// Every Node knows every other Node as a live member.
func CreateLocalCluster(opts *config.Options, numNodes int) (*LocalCluster, error) {
	lc := &LocalCluster{}
	for i := 0; i < numNodes; i++ {
		nopts := opts.Clone()
		nopts.NodeID = fmt.Sprintf("node-%d", i)
		n, err := cluster.CreateNode(nopts, nil)
		if err != nil {
			lc.Stop()
			return nil, err
		}
		lc.Nodes = append(lc.Nodes, n)
	}
	for _, n := range lc.Nodes {
		for _, other := range lc.Nodes {
			n.State().Join(other.ID())
		}
	}
	return lc, nil
}

// Allocate assigns a slice of source to nodeID on every Node
func (lc *LocalCluster) Allocate(nodeID string, source string, slice int) error {
	for _, n := range lc.Nodes {
		if err := n.State().Allocate(nodeID, source, slice); err != nil {
			return err
		}
	}
	return nil
}

// Node returns the Node with the given id, or nil
func (lc *LocalCluster) Node(nodeID string) *cluster.Node {
	for _, n := range lc.Nodes {
		if n.ID() == nodeID {
			return n
		}
	}
	return nil
}

// Stop stops every Node
func (lc *LocalCluster) Stop() error {
	var result *multierror.Error
	for _, n := range lc.Nodes {
		if err := n.Stop(5 * time.Second); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// LocalRunPhase runs phase on every Node of the cluster which is part of its routing, and
// returns the rows collected by each Node, keyed by node id
func (lc *LocalCluster) LocalRunPhase(ctx context.Context, phase sifql.CollectPhase) (map[string][]sifql.ArrayRow, error) {
	routing := phase.Descriptor().Routing
	results := make(map[string][]sifql.ArrayRow)
	sinks := make(map[string]*receivers.CollectingRowReceiver)
	g, gctx := errgroup.WithContext(ctx)
	for _, nodeID := range routing.NodeIDs() {
		n := lc.Node(nodeID)
		if n == nil {
			return nil, fmt.Errorf("Node %s of the routing is not part of the cluster", nodeID)
		}
		sink := receivers.NewCollectingRowReceiver(0)
		sinks[nodeID] = sink
		g.Go(func() error {
			jobCtx := n.NewJob(phase.Descriptor().JobID)
			defer jobCtx.Close()
			if err := n.Collect(phase, sink, jobCtx); err != nil {
				return err
			}
			_, err := sink.Result(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for nodeID, sink := range sinks {
		rows, err := sink.Result(ctx)
		if err != nil {
			return nil, err
		}
		results[nodeID] = rows
	}
	return results, nil
}

// ShipPhase runs phase like LocalRunPhase, but every Node encodes its rows into buckets of
// bucketSize rows with codec, as it would when handing partial results to its upstream.
// The shipped buckets are returned keyed by node id, in shipping order.
func (lc *LocalCluster) ShipPhase(ctx context.Context, phase sifql.CollectPhase, codec *types.BucketCodec, bucketSize int) (map[string][][]byte, error) {
	routing := phase.Descriptor().Routing
	var lock sync.Mutex
	shipped := make(map[string][][]byte)
	g, gctx := errgroup.WithContext(ctx)
	for _, nodeID := range routing.NodeIDs() {
		nodeID := nodeID
		n := lc.Node(nodeID)
		if n == nil {
			return nil, fmt.Errorf("Node %s of the routing is not part of the cluster", nodeID)
		}
		sink := receivers.NewBucketRowReceiver(codec, bucketSize, func(bucket []byte) error {
			lock.Lock()
			defer lock.Unlock()
			shipped[nodeID] = append(shipped[nodeID], bucket)
			return nil
		})
		g.Go(func() error {
			jobCtx := n.NewJob(phase.Descriptor().JobID)
			defer jobCtx.Close()
			if err := n.Collect(phase, sink, jobCtx); err != nil {
				return err
			}
			return sink.Wait(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shipped, nil
}
