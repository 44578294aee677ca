package collect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-sif/sifql"
	serrors "github.com/go-sif/sifql/errors"
	iutil "github.com/go-sif/sifql/internal/util"
	"github.com/go-sif/sifql/logging"
	"github.com/go-sif/sifql/stats"
	"go.uber.org/zap"
)

type collectorState int

const (
	created collectorState = iota
	running
	done
)

// BatchCollector reads the rows of one slice batch by batch and pushes them downstream.
// The job is kept alive after every batch.
type BatchCollector struct {
	loader     sifql.SliceLoader
	downstream sifql.RowReceiver
	jobCtx     sifql.JobContext
	stats      *stats.CollectStats
	logger     *zap.Logger

	lock      sync.Mutex
	state     collectorState
	killErr   error
	cancel    context.CancelFunc
	iter      sifql.BatchIterator
	closeOnce sync.Once
	termOnce  sync.Once
}

// NewBatchCollector creates a Collector for the slice described by loader
func NewBatchCollector(loader sifql.SliceLoader, downstream sifql.RowReceiver, jobCtx sifql.JobContext) *BatchCollector {
	return &BatchCollector{
		loader:     loader,
		downstream: downstream,
		jobCtx:     jobCtx,
		logger:     zap.NewNop(),
	}
}

// Instrument attaches statistics and a logger to this collector
func (c *BatchCollector) Instrument(collectStats *stats.CollectStats, logger *zap.Logger) {
	c.stats = collectStats
	c.logger = logging.OrNop(logger).With(zap.String("slice", c.loader.String()))
}

// DoCollect reads all batches of the slice, then finishes or fails the downstream
func (c *BatchCollector) DoCollect() {
	c.lock.Lock()
	if c.state != created {
		c.lock.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.jobCtx.Context())
	c.cancel = cancel
	c.state = running
	c.lock.Unlock()
	defer cancel()

	var start time.Time
	if c.stats != nil {
		start = c.stats.StartCollector()
	}
	c.logger.Debug("Collector started")
	c.downstream.Prepare()
	var numRows int64
	err := iutil.SafeCollectOperation(c.loader.String(), func() error {
		var err error
		numRows, err = c.collect(ctx)
		return err
	})()

	c.lock.Lock()
	c.state = done
	if c.killErr != nil {
		err = c.killErr
	}
	c.lock.Unlock()
	if c.stats != nil {
		c.stats.EndCollector(start, numRows, err)
	}
	c.terminate(err)
}

func (c *BatchCollector) collect(ctx context.Context) (int64, error) {
	iter, err := c.loader.Load(ctx)
	if err != nil {
		return 0, err
	}
	c.lock.Lock()
	c.iter = iter
	killed := c.killErr != nil
	c.lock.Unlock()
	defer c.closeIterator()
	if killed {
		return 0, nil
	}

	keepAlive := c.jobCtx.KeepAliveListener()
	var numRows int64
	for iter.HasNextBatch() {
		if err := ctx.Err(); err != nil {
			return numRows, err
		}
		batch, err := iter.NextBatch(ctx)
		if err != nil {
			return numRows, err
		}
		keepAlive.KeepAlive()
		for _, row := range batch {
			numRows++
			switch c.downstream.SetNextRow(row) {
			case sifql.Stop:
				return numRows, nil
			case sifql.Pause:
				select {
				case <-c.downstream.Resumed():
				case <-ctx.Done():
					return numRows, ctx.Err()
				}
			}
		}
	}
	return numRows, nil
}

// Kill stops this collector. A collector killed before it started fails its downstream
// with err right away; a running collector is interrupted and fails with err once it
// returns. Killing a completed collector has no effect.
func (c *BatchCollector) Kill(err error) {
	if err == nil {
		err = context.Canceled
	}
	c.lock.Lock()
	if c.killErr != nil || c.state == done {
		c.lock.Unlock()
		return
	}
	c.killErr = err
	switch c.state {
	case created:
		c.state = done
		c.lock.Unlock()
		c.logger.Debug("Collector killed before start", zap.Error(err))
		c.downstream.Prepare()
		c.terminate(err)
	default:
		cancel := c.cancel
		c.lock.Unlock()
		c.logger.Debug("Killing running collector", zap.Error(err))
		cancel()
		c.closeIterator()
	}
}

func (c *BatchCollector) closeIterator() {
	c.lock.Lock()
	iter := c.iter
	c.lock.Unlock()
	if iter == nil {
		return
	}
	c.closeOnce.Do(func() {
		if err := iter.Close(); err != nil {
			c.logger.Debug("Unable to close slice", zap.Error(err))
		}
	})
}

// terminate finishes or fails the downstream exactly once
func (c *BatchCollector) terminate(err error) {
	c.termOnce.Do(func() {
		if err == nil {
			c.logger.Debug("Collector finished")
			c.downstream.Finish()
			return
		}
		var killed serrors.JobKilledError
		if errors.As(err, &killed) {
			c.downstream.Fail(err)
			return
		}
		failure := &serrors.CollectorFailure{Source: c.loader.Source(), Slice: c.loader.Slice(), Err: err}
		c.logger.Warn("Collector failed", zap.Error(err))
		c.jobCtx.ReportFailure(failure)
		c.downstream.Fail(failure)
	})
}

// FailedCollector reports a fixed error, e.g. for a slice whose routing is stale
type FailedCollector struct {
	err        error
	downstream sifql.RowReceiver
	jobCtx     sifql.JobContext
	once       sync.Once
}

// NewFailedCollector creates a Collector which fails downstream with err and reports err to jobCtx
func NewFailedCollector(downstream sifql.RowReceiver, jobCtx sifql.JobContext, err error) *FailedCollector {
	return &FailedCollector{err: err, downstream: downstream, jobCtx: jobCtx}
}

// DoCollect fails the downstream, then reports the failure to the job
func (c *FailedCollector) DoCollect() {
	if c.fail(c.err) {
		c.jobCtx.ReportFailure(c.err)
	}
}

// Kill fails the downstream with err, unless it has already been failed
func (c *FailedCollector) Kill(err error) {
	c.fail(err)
}

// fail returns true iff this call failed the downstream
func (c *FailedCollector) fail(err error) bool {
	failed := false
	c.once.Do(func() {
		failed = true
		c.downstream.Prepare()
		c.downstream.Fail(err)
	})
	return failed
}

var (
	_ sifql.Collector = (*BatchCollector)(nil)
	_ sifql.Collector = (*FailedCollector)(nil)
)
