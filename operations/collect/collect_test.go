package collect_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-sif/sifql"
	serrors "github.com/go-sif/sifql/errors"
	"github.com/go-sif/sifql/memory"
	"github.com/go-sif/sifql/operations/collect"
	"github.com/go-sif/sifql/receivers"
	uuid "github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// ants starts a default pool when it is loaded
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*poolCommon).purgeStaleWorkers"),
		goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*poolCommon).ticktock"),
	)
}

// sliceLoader serves fixed batches, optionally blocking on the last one until it is closed
type sliceLoader struct {
	batches [][]sifql.Row
	loadErr error
	block   bool
	closed  chan struct{}
	once    sync.Once
}

func newSliceLoader(batches ...[]sifql.Row) *sliceLoader {
	return &sliceLoader{batches: batches, closed: make(chan struct{})}
}

func (l *sliceLoader) String() string { return "slice loader" }
func (l *sliceLoader) Source() string { return "crew" }
func (l *sliceLoader) Slice() string  { return "0" }

func (l *sliceLoader) Load(ctx context.Context) (sifql.BatchIterator, error) {
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	return &sliceIterator{loader: l}, nil
}

type sliceIterator struct {
	loader *sliceLoader
	next   int
}

func (it *sliceIterator) HasNextBatch() bool {
	return it.loader.block || it.next < len(it.loader.batches)
}

func (it *sliceIterator) NextBatch(ctx context.Context) ([]sifql.Row, error) {
	if it.next < len(it.loader.batches) {
		it.next++
		return it.loader.batches[it.next-1], nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-it.loader.closed:
		return nil, fmt.Errorf("slice closed")
	}
}

func (it *sliceIterator) Close() error {
	it.loader.once.Do(func() { close(it.loader.closed) })
	return nil
}

func rows(names ...string) []sifql.Row {
	result := make([]sifql.Row, len(names))
	for i, n := range names {
		result[i] = sifql.ArrayRow{n}
	}
	return result
}

func newJobContext(opts collect.JobOptions) *collect.JobCollectContext {
	return collect.NewJobCollectContext(uuid.Must(uuid.NewV4()), "node-1", memory.NewGovernor("test", 0), opts)
}

func result(t *testing.T, sink *receivers.CollectingRowReceiver) ([]sifql.ArrayRow, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := sink.Result(ctx)
	require.NotEqual(t, context.DeadlineExceeded, err)
	return res, err
}

type fakeSource struct{ name string }

func (s fakeSource) GetCollectors(sifql.CollectPhase, sifql.RowReceiver, sifql.JobContext) ([]sifql.Collector, error) {
	return nil, nil
}

func TestSourceResolver(t *testing.T) {
	r := collect.NewSourceResolver()
	require.Nil(t, r.Register(sifql.RoutedCollectPhaseType, "", fakeSource{"shards"}))
	require.Nil(t, r.Register(sifql.RoutedCollectPhaseType, "sys.nodes", fakeSource{"nodes"}))
	require.NotNil(t, r.Register(sifql.RoutedCollectPhaseType, "sys.nodes", fakeSource{"other"}))

	source, err := r.GetService(&sifql.RoutedCollectPhase{HandlerName: "sys.nodes"})
	require.Nil(t, err)
	require.Equal(t, fakeSource{"nodes"}, source)

	source, err = r.GetService(&sifql.RoutedCollectPhase{HandlerName: "doc"})
	require.Nil(t, err)
	require.Equal(t, fakeSource{"shards"}, source)

	_, err = r.GetService(&sifql.FileURICollectPhase{})
	var unsupported serrors.UnsupportedCollectPhaseError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, string(sifql.FileURICollectPhaseType), unsupported.PhaseType)
}

func TestThreadPoolName(t *testing.T) {
	routed := func(g sifql.RowGranularity, slices ...int) *sifql.RoutedCollectPhase {
		return &sifql.RoutedCollectPhase{PhaseDescriptor: sifql.PhaseDescriptor{
			MaxRowGranularity: g,
			Routing:           sifql.NewRouting(map[string]map[string][]int{"node-1": {"crew": slices}}),
		}}
	}
	require.Equal(t, collect.GetPool, collect.ThreadPoolName(routed(sifql.ClusterGranularity), "node-1"))
	require.Equal(t, collect.GetPool, collect.ThreadPoolName(routed(sifql.NodeGranularity), "node-1"))
	require.Equal(t, collect.GetPool, collect.ThreadPoolName(routed(sifql.ShardGranularity, 0, 1), "node-1"))
	require.Equal(t, collect.SearchPool, collect.ThreadPoolName(routed(sifql.DocGranularity, 0, 1), "node-1"))
	require.Equal(t, collect.GenericPool, collect.ThreadPoolName(routed(sifql.DocGranularity, 0), "node-1"))
	require.Equal(t, collect.GenericPool, collect.ThreadPoolName(routed(sifql.DocGranularity, 0, 1), "node-2"))

	file := &sifql.FileURICollectPhase{PhaseDescriptor: sifql.PhaseDescriptor{
		MaxRowGranularity: sifql.DocGranularity,
		Routing:           sifql.NewRouting(map[string]map[string][]int{"node-1": {}}),
	}}
	require.Equal(t, collect.GenericPool, collect.ThreadPoolName(file, "node-1"))

	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	phase := routed(sifql.DocGranularity, 0, 1)
	require.Equal(t, collect.SearchPool, jobCtx.ThreadPoolName(phase))
	// the name is computed once per phase
	phase.Routing = sifql.NewRouting(nil)
	require.Equal(t, collect.SearchPool, jobCtx.ThreadPoolName(phase))
}

func TestMultiUpstreamFinishesAfterLastUpstream(t *testing.T) {
	sink := receivers.NewCollectingRowReceiver(0)
	r := collect.NewMultiUpstreamRowReceiver(sink)
	r.SetUpstreams(2)
	r.Prepare()
	require.Equal(t, sifql.NeedMore, r.SetNextRow(sifql.ArrayRow{"Arthur"}))
	r.Finish()
	select {
	case <-sink.Done():
		t.Fatal("finished before the last upstream")
	default:
	}
	require.Equal(t, sifql.NeedMore, r.SetNextRow(sifql.ArrayRow{"Trillian"}))
	r.Finish()
	res, err := result(t, sink)
	require.Nil(t, err)
	require.Len(t, res, 2)
}

func TestMultiUpstreamCombinesFailures(t *testing.T) {
	sink := receivers.NewCollectingRowReceiver(0)
	r := collect.NewMultiUpstreamRowReceiver(sink)
	r.SetUpstreams(3)
	r.Fail(fmt.Errorf("disk on fire"))
	r.Finish()
	r.Fail(fmt.Errorf("slice vanished"))
	_, err := result(t, sink)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)
	require.Contains(t, err.Error(), "disk on fire")

	single := receivers.NewCollectingRowReceiver(0)
	r = collect.NewMultiUpstreamRowReceiver(single)
	r.SetUpstreams(1)
	cause := fmt.Errorf("disk on fire")
	r.Fail(cause)
	_, err = result(t, single)
	require.Equal(t, cause, err)
}

func TestMultiUpstreamStopIsSticky(t *testing.T) {
	sink := receivers.NewCollectingRowReceiver(2)
	r := collect.NewMultiUpstreamRowReceiver(sink)
	r.SetUpstreams(2)
	require.Equal(t, sifql.NeedMore, r.SetNextRow(sifql.ArrayRow{"Arthur"}))
	require.Equal(t, sifql.Stop, r.SetNextRow(sifql.ArrayRow{"Trillian"}))
	require.Equal(t, sifql.Stop, r.SetNextRow(sifql.ArrayRow{"Ford"}))
	r.Finish()
	r.Finish()
	res, err := result(t, sink)
	require.Nil(t, err)
	require.Equal(t, []sifql.ArrayRow{{"Arthur"}, {"Trillian"}}, res)
}

func TestMultiUpstreamWithoutUpstreamsFinishesImmediately(t *testing.T) {
	sink := receivers.NewCollectingRowReceiver(0)
	r := collect.NewMultiUpstreamRowReceiver(sink)
	r.SetUpstreams(0)
	res, err := result(t, sink)
	require.Nil(t, err)
	require.Empty(t, res)
	require.True(t, sink.Prepared())

	// late terminations are ignored
	r.Fail(fmt.Errorf("too late"))
	r.Finish()
	_, err = result(t, sink)
	require.Nil(t, err)
}

func TestMultiUpstreamIgnoresExtraTerminations(t *testing.T) {
	sink := receivers.NewCollectingRowReceiver(0)
	r := collect.NewMultiUpstreamRowReceiver(sink)
	r.SetUpstreams(1)
	r.Finish()
	r.Fail(fmt.Errorf("too late"))
	_, err := result(t, sink)
	require.Nil(t, err)
}

// hookedReceiver runs onRow before handing a row to the wrapped receiver
type hookedReceiver struct {
	sifql.RowReceiver
	onRow func()
}

func (r *hookedReceiver) SetNextRow(row sifql.Row) sifql.ReceiverStatus {
	r.onRow()
	return r.RowReceiver.SetNextRow(row)
}

func TestMultiUpstreamTerminationDuringRow(t *testing.T) {
	sink := receivers.NewCollectingRowReceiver(0)
	hooked := &hookedReceiver{RowReceiver: sink}
	r := collect.NewMultiUpstreamRowReceiver(hooked)
	r.SetUpstreams(2)
	cause := fmt.Errorf("killed before start")
	hooked.onRow = func() {
		hooked.onRow = func() {}
		r.Fail(cause)
	}
	require.Equal(t, sifql.NeedMore, r.SetNextRow(sifql.ArrayRow{"Arthur"}))
	r.Finish()
	res, err := result(t, sink)
	require.Equal(t, cause, err)
	require.Nil(t, res)
}

func TestBatchCollectorCollectsInOrder(t *testing.T) {
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	before := jobCtx.LastKeepAlive()
	time.Sleep(time.Millisecond)
	sink := receivers.NewCollectingRowReceiver(0)
	c := collect.NewBatchCollector(newSliceLoader(rows("Arthur", "Trillian"), rows("Ford")), sink, jobCtx)
	c.DoCollect()
	res, err := result(t, sink)
	require.Nil(t, err)
	require.Equal(t, []sifql.ArrayRow{{"Arthur"}, {"Trillian"}, {"Ford"}}, res)
	require.True(t, jobCtx.LastKeepAlive().After(before))
	// DoCollect runs at most once
	c.DoCollect()
}

func TestBatchCollectorStopsWhenAsked(t *testing.T) {
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	sink := receivers.NewCollectingRowReceiver(1)
	loader := newSliceLoader(rows("Arthur", "Trillian"))
	loader.block = true
	collect.NewBatchCollector(loader, sink, jobCtx).DoCollect()
	res, err := result(t, sink)
	require.Nil(t, err)
	require.Equal(t, []sifql.ArrayRow{{"Arthur"}}, res)
	// the slice is closed once the collector returns
	<-loader.closed
}

func TestBatchCollectorPausesUntilResumed(t *testing.T) {
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	ch := receivers.NewRowChannel(1)
	c := collect.NewBatchCollector(newSliceLoader(rows("Arthur", "Trillian", "Ford")), ch, jobCtx)
	go c.DoCollect()

	var names []interface{}
	for {
		row, ok, err := ch.Next(context.Background())
		require.Nil(t, err)
		if !ok {
			break
		}
		names = append(names, row[0])
	}
	require.Equal(t, []interface{}{"Arthur", "Trillian", "Ford"}, names)
}

func TestBatchCollectorFailureIsWrapped(t *testing.T) {
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	sink := receivers.NewCollectingRowReceiver(0)
	loader := newSliceLoader()
	loader.loadErr = fmt.Errorf("no such shard")
	collect.NewBatchCollector(loader, sink, jobCtx).DoCollect()

	_, err := result(t, sink)
	var failure *serrors.CollectorFailure
	require.True(t, errors.As(err, &failure))
	require.Equal(t, "crew", failure.Source)
	require.Equal(t, loader.loadErr, failure.Err)
	require.NotNil(t, jobCtx.Errors())
}

func TestKillBeforeStart(t *testing.T) {
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	sink := receivers.NewCollectingRowReceiver(0)
	c := collect.NewBatchCollector(newSliceLoader(rows("Arthur")), sink, jobCtx)
	killErr := serrors.JobKilledError{JobID: "job", Reason: serrors.KilledByClient}
	c.Kill(killErr)
	c.Kill(fmt.Errorf("second kill"))
	c.DoCollect()
	res, err := result(t, sink)
	require.Equal(t, killErr, err)
	require.Empty(t, res)
	// kills are not collector failures
	require.Nil(t, jobCtx.Errors())
}

func TestKillWhileRunning(t *testing.T) {
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	sink := receivers.NewCollectingRowReceiver(0)
	loader := newSliceLoader(rows("Arthur"))
	loader.block = true
	c := collect.NewBatchCollector(loader, sink, jobCtx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.DoCollect()
	}()
	require.Eventually(t, sink.Prepared, time.Second, time.Millisecond)

	killErr := serrors.JobKilledError{JobID: "job", Reason: serrors.KilledByClient}
	c.Kill(killErr)
	<-done
	<-loader.closed
	_, err := result(t, sink)
	require.Equal(t, killErr, err)
	// killing a completed collector has no effect
	c.Kill(fmt.Errorf("too late"))
}

func TestFailedCollector(t *testing.T) {
	sink := receivers.NewCollectingRowReceiver(0)
	stale := serrors.StaleRoutingError{NodeID: "node-1", Source: "crew", Slice: 3}
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	c := collect.NewFailedCollector(sink, jobCtx, stale)
	c.DoCollect()
	c.Kill(fmt.Errorf("ignored"))
	_, err := result(t, sink)
	require.Equal(t, stale, err)
	var reported serrors.StaleRoutingError
	require.True(t, errors.As(jobCtx.Errors(), &reported))
	require.Equal(t, stale, reported)
}

func TestMemoryLimitKillsJob(t *testing.T) {
	jobCtx := newJobContext(collect.JobOptions{})
	jobCtx.ReportFailure(serrors.MemoryLimitExceededError{Label: "job", Requested: 8, Limit: 4})
	select {
	case <-jobCtx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job was not killed")
	}
	require.NotNil(t, jobCtx.Context().Err())
}

// countingCollector blocks in DoCollect until it is killed, counting kills
type countingCollector struct {
	kills   int32
	started chan struct{}
	killed  chan struct{}
	once    sync.Once
	lock    sync.Mutex
	err     error
}

func newCountingCollector() *countingCollector {
	return &countingCollector{started: make(chan struct{}), killed: make(chan struct{})}
}

func (c *countingCollector) DoCollect() {
	close(c.started)
	<-c.killed
}

func (c *countingCollector) Kill(err error) {
	atomic.AddInt32(&c.kills, 1)
	c.lock.Lock()
	c.err = err
	c.lock.Unlock()
	c.once.Do(func() { close(c.killed) })
}

func (c *countingCollector) Err() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.err
}
