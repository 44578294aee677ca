package collect_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/accumulators"
	"github.com/go-sif/sifql/datasource/file"
	"github.com/go-sif/sifql/datasource/parser/jsonl"
	serrors "github.com/go-sif/sifql/errors"
	"github.com/go-sif/sifql/expr"
	"github.com/go-sif/sifql/functions"
	"github.com/go-sif/sifql/memory"
	"github.com/go-sif/sifql/operations/collect"
	"github.com/go-sif/sifql/operations/projectors"
	"github.com/go-sif/sifql/receivers"
	"github.com/go-sif/sifql/stats"
	"github.com/go-sif/sifql/types"
	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
)

type harness struct {
	op    *collect.MapSideDataCollectOperation
	pools *collect.ThreadPools
}

func newHarness(t *testing.T, poolSize int) *harness {
	fns, err := functions.NewRegistry(0)
	require.Nil(t, err)
	require.Nil(t, functions.RegisterScalars(fns))
	require.Nil(t, accumulators.Register(fns, types.NewRegistry()))

	resolver := collect.NewSourceResolver()
	require.Nil(t, resolver.Register(sifql.FileURICollectPhaseType, "", file.NewSource(expr.NewCompiler(fns), jsonl.ParserConf{})))
	pools, err := collect.NewThreadPools(map[string]int{
		collect.GetPool:     poolSize,
		collect.SearchPool:  poolSize,
		collect.GenericPool: poolSize,
	}, nil)
	require.Nil(t, err)
	h := &harness{
		op:    collect.NewMapSideDataCollectOperation("dummyNodeId", resolver, projectors.NewFactory(fns), pools, stats.NewCollectStats("sifql"), nil),
		pools: pools,
	}
	t.Cleanup(func() {
		require.Nil(t, pools.Release(5*time.Second))
	})
	return h
}

func filePhase(t *testing.T, routing map[string]map[string][]int) *sifql.FileURICollectPhase {
	path := filepath.Join(t.TempDir(), "data.json")
	data := `{"name":"Arthur","id":4,"details":{"age":38}}` + "\n" +
		`{"id":5,"name":"Trillian","details":{"age":33}}` + "\n"
	require.Nil(t, os.WriteFile(path, []byte(data), 0644))
	return &sifql.FileURICollectPhase{
		PhaseDescriptor: sifql.PhaseDescriptor{
			JobID:             uuid.Must(uuid.NewV4()),
			PhaseID:           0,
			Name:              "test",
			Routing:           sifql.NewRouting(routing),
			MaxRowGranularity: sifql.DocGranularity,
			Outputs: []sifql.Symbol{
				sifql.NewReference("name", types.String),
				sifql.NewReference("details.age", types.Integer),
			},
		},
		URIs: []string{"file://" + path},
	}
}

func TestFileUriCollect(t *testing.T) {
	h := newHarness(t, 2)
	phase := filePhase(t, map[string]map[string][]int{"dummyNodeId": {}})
	jobCtx := collect.NewJobCollectContext(phase.JobID, "dummyNodeId", memory.NewGovernor("node", 0), collect.JobOptions{IdleTimeout: time.Minute})
	defer jobCtx.Close()

	sink := receivers.NewCollectingRowReceiver(0)
	collectors, err := h.op.CreateCollectors(phase, sink, jobCtx)
	require.Nil(t, err)
	require.Len(t, collectors, 1)
	h.op.LaunchCollectors(jobCtx, collectors, jobCtx.ThreadPoolName(phase))

	res, err := result(t, sink)
	require.Nil(t, err)
	require.ElementsMatch(t, []sifql.ArrayRow{
		{"Arthur", int32(38)},
		{"Trillian", int32(33)},
	}, res)
	require.Nil(t, jobCtx.Errors())
}

func TestFileUriCollectTwoFilesInEitherOrder(t *testing.T) {
	h := newHarness(t, 2)
	for _, order := range [][]int{{0, 1}, {1, 0}} {
		dir := t.TempDir()
		arthur := filepath.Join(dir, "arthur.json")
		trillian := filepath.Join(dir, "trillian.json")
		require.Nil(t, os.WriteFile(arthur, []byte(`{"name":"Arthur","details":{"age":38}}`+"\n"), 0644))
		require.Nil(t, os.WriteFile(trillian, []byte(`{"name":"Trillian","details":{"age":33}}`+"\n"), 0644))
		phase := filePhase(t, map[string]map[string][]int{"dummyNodeId": {}})
		phase.URIs = []string{"file://" + arthur, "file://" + trillian}
		jobCtx := newJobContext(collect.JobOptions{})

		sink := receivers.NewCollectingRowReceiver(0)
		collectors, err := h.op.CreateCollectors(phase, sink, jobCtx)
		require.Nil(t, err)
		require.Len(t, collectors, 2)
		collectors[order[0]].DoCollect()
		select {
		case <-sink.Done():
			t.Fatalf("finished after the first collector of order %v", order)
		default:
		}
		collectors[order[1]].DoCollect()

		res, err := result(t, sink)
		require.Nil(t, err)
		require.ElementsMatch(t, []sifql.ArrayRow{
			{"Arthur", int32(38)},
			{"Trillian", int32(33)},
		}, res)
		require.Nil(t, jobCtx.Errors())
		jobCtx.Close()
	}
}

func TestFileUriCollectWithAggregation(t *testing.T) {
	h := newHarness(t, 2)
	phase := filePhase(t, map[string]map[string][]int{"dummyNodeId": {}})
	phase.Projections = []sifql.Projection{&sifql.AggregationProjection{Aggregations: []sifql.Aggregation{
		{Ident: sifql.FunctionIdent{Name: accumulators.CountName}, From: sifql.IterStep, To: sifql.FinalStep},
		{
			Ident:  sifql.FunctionIdent{Name: accumulators.SumName, ArgumentTypes: []types.DataType{types.Integer}},
			Inputs: []sifql.Symbol{&sifql.InputColumn{Index: 1, Type: types.Integer}},
			From:   sifql.IterStep,
			To:     sifql.FinalStep,
		},
	}}}
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()

	sink := receivers.NewCollectingRowReceiver(0)
	require.Nil(t, h.op.Collect(phase, sink, jobCtx))
	res, err := result(t, sink)
	require.Nil(t, err)
	require.Equal(t, []sifql.ArrayRow{{int64(2), 71.0}}, res)
}

func TestNoLocalRoutingFinishesImmediately(t *testing.T) {
	h := newHarness(t, 1)
	phase := filePhase(t, map[string]map[string][]int{"otherNode": {}})
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()

	sink := receivers.NewCollectingRowReceiver(0)
	collectors, err := h.op.CreateCollectors(phase, sink, jobCtx)
	require.Nil(t, err)
	require.Empty(t, collectors)
	res, err := result(t, sink)
	require.Nil(t, err)
	require.Empty(t, res)
}

func TestUnsupportedPhase(t *testing.T) {
	h := newHarness(t, 1)
	phase := &sifql.RoutedCollectPhase{
		PhaseDescriptor: sifql.PhaseDescriptor{Routing: sifql.NewRouting(map[string]map[string][]int{"dummyNodeId": {"crew": {0}}})},
		HandlerName:     "doc",
	}
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	_, err := h.op.CreateCollectors(phase, receivers.NewCollectingRowReceiver(0), jobCtx)
	var unsupported serrors.UnsupportedCollectPhaseError
	require.True(t, errors.As(err, &unsupported))
}

func TestIdleTimeoutKillsCollectorsOnce(t *testing.T) {
	h := newHarness(t, 2)
	jobCtx := newJobContext(collect.JobOptions{IdleTimeout: 20 * time.Millisecond, WatchdogInterval: 2 * time.Millisecond})
	first, second := newCountingCollector(), newCountingCollector()
	h.op.LaunchCollectors(jobCtx, []sifql.Collector{first, second}, collect.GenericPool)
	<-first.started
	<-second.started

	select {
	case <-jobCtx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job was not killed")
	}
	jobCtx.Kill(serrors.KilledByClient)

	for _, c := range []*countingCollector{first, second} {
		require.EqualValues(t, 1, atomic.LoadInt32(&c.kills))
		var killed serrors.JobKilledError
		require.True(t, errors.As(c.Err(), &killed))
		require.Equal(t, serrors.KilledByIdleTimeout, killed.Reason)
	}
	require.NotNil(t, jobCtx.Context().Err())
	require.Eventually(t, func() bool { return jobCtx.NumCollectors() == 0 }, time.Second, time.Millisecond)
}

func TestKeepAlivePreventsIdleKill(t *testing.T) {
	jobCtx := newJobContext(collect.JobOptions{IdleTimeout: 50 * time.Millisecond, WatchdogInterval: 5 * time.Millisecond})
	defer jobCtx.Close()
	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		jobCtx.KeepAliveListener().KeepAlive()
		time.Sleep(5 * time.Millisecond)
	}
	require.Nil(t, jobCtx.Context().Err())
}

func TestFailFastKillsSiblings(t *testing.T) {
	h := newHarness(t, 2)
	jobCtx := newJobContext(collect.JobOptions{FailFast: true})
	blocked := newCountingCollector()
	loader := newSliceLoader()
	loader.loadErr = errors.New("no such shard")
	sink := receivers.NewCollectingRowReceiver(0)

	h.op.LaunchCollectors(jobCtx, []sifql.Collector{blocked}, collect.GenericPool)
	<-blocked.started
	h.op.LaunchCollectors(jobCtx, []sifql.Collector{collect.NewBatchCollector(loader, sink, jobCtx)}, collect.GenericPool)

	_, err := result(t, sink)
	var failure *serrors.CollectorFailure
	require.True(t, errors.As(err, &failure))
	<-jobCtx.Done()
	var killed serrors.JobKilledError
	require.True(t, errors.As(blocked.Err(), &killed))
	require.Equal(t, serrors.KilledByFailure, killed.Reason)
}

func TestStaleRoutingKillsSiblingsUnderFailFast(t *testing.T) {
	h := newHarness(t, 2)
	jobCtx := newJobContext(collect.JobOptions{FailFast: true})
	blocked := newCountingCollector()
	h.op.LaunchCollectors(jobCtx, []sifql.Collector{blocked}, collect.GenericPool)
	<-blocked.started

	sink := receivers.NewCollectingRowReceiver(0)
	stale := serrors.StaleRoutingError{NodeID: "node-1", Source: "crew", Slice: 3}
	h.op.LaunchCollectors(jobCtx, []sifql.Collector{collect.NewFailedCollector(sink, jobCtx, stale)}, collect.GenericPool)

	_, err := result(t, sink)
	require.Equal(t, stale, err)
	<-jobCtx.Done()
	var killed serrors.JobKilledError
	require.True(t, errors.As(blocked.Err(), &killed))
	require.Equal(t, serrors.KilledByFailure, killed.Reason)
	var reported serrors.StaleRoutingError
	require.True(t, errors.As(jobCtx.Errors(), &reported))
	require.Equal(t, stale, reported)
}

func TestRejectedCollectorIsKilled(t *testing.T) {
	h := newHarness(t, 1)
	jobCtx := newJobContext(collect.JobOptions{})
	defer jobCtx.Close()
	blocked := newCountingCollector()
	h.op.LaunchCollectors(jobCtx, []sifql.Collector{blocked}, collect.GenericPool)
	<-blocked.started

	rejected := newCountingCollector()
	h.op.LaunchCollectors(jobCtx, []sifql.Collector{rejected}, collect.GenericPool)
	require.EqualValues(t, 1, atomic.LoadInt32(&rejected.kills))
	require.True(t, strings.Contains(rejected.Err().Error(), "Rejected execution on thread pool generic"))

	// collectors registered after the job was killed are killed right away
	jobCtx.Kill(serrors.KilledByClient)
	late := newCountingCollector()
	h.op.LaunchCollectors(jobCtx, []sifql.Collector{late}, collect.GenericPool)
	require.EqualValues(t, 1, atomic.LoadInt32(&late.kills))
	select {
	case <-late.started:
		t.Fatal("collector of a killed job was started")
	default:
	}
}
