package sys

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/expr"
	"github.com/go-sif/sifql/operations/collect"
)

// NodeSource produces the row of the node table for the executing node
type NodeSource struct {
	compiler *expr.Compiler
}

// NewNodeSource is a factory for NodeSources
func NewNodeSource(compiler *expr.Compiler) *NodeSource {
	return &NodeSource{compiler: compiler}
}

// GetCollectors returns a single collector for the executing node. Every column
// referenced by the phase must exist, otherwise an UnknownColumnError is returned.
func (s *NodeSource) GetCollectors(phase sifql.CollectPhase, downstream sifql.RowReceiver, jobCtx sifql.JobContext) ([]sifql.Collector, error) {
	d := phase.Descriptor()
	symbols := append([]sifql.Symbol{}, d.Outputs...)
	if d.Filter != nil {
		symbols = append(symbols, d.Filter)
	}
	for _, ref := range expr.References(symbols...) {
		if _, err := Lookup(ref.Column.FQN()); err != nil {
			return nil, err
		}
	}
	builder, err := expr.NewRowBuilder(s.compiler, d.Outputs, d.Filter)
	if err != nil {
		return nil, err
	}
	loader := &nodeLoader{nodeID: jobCtx.NodeID(), builder: builder}
	return []sifql.Collector{collect.NewBatchCollector(loader, downstream, jobCtx)}, nil
}

type nodeLoader struct {
	nodeID  string
	builder *expr.RowBuilder
}

func (nl *nodeLoader) String() string {
	return fmt.Sprintf("Node loader %s", nl.nodeID)
}

func (nl *nodeLoader) Source() string {
	return NodesTable
}

func (nl *nodeLoader) Slice() string {
	return nl.nodeID
}

func (nl *nodeLoader) Load(ctx context.Context) (sifql.BatchIterator, error) {
	row, err := nl.builder.Build(&nodeDocument{nodeID: nl.nodeID})
	if err != nil {
		return nil, err
	}
	var rows []sifql.Row
	if row != nil {
		rows = append(rows, row)
	}
	return &rowsIterator{rows: rows}, nil
}

// rowsIterator returns all of its rows as a single batch
type rowsIterator struct {
	lock     sync.Mutex
	rows     []sifql.Row
	consumed bool
}

func (ri *rowsIterator) HasNextBatch() bool {
	ri.lock.Lock()
	defer ri.lock.Unlock()
	return !ri.consumed
}

func (ri *rowsIterator) NextBatch(ctx context.Context) ([]sifql.Row, error) {
	ri.lock.Lock()
	defer ri.lock.Unlock()
	ri.consumed = true
	return ri.rows, nil
}

func (ri *rowsIterator) Close() error {
	return nil
}
