package collect

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/errors"
	iutil "github.com/go-sif/sifql/internal/util"
	"github.com/go-sif/sifql/logging"
	"github.com/go-sif/sifql/memory"
	"github.com/go-sif/sifql/stats"
	uuid "github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// JobOptions configure a JobCollectContext
type JobOptions struct {
	IdleTimeout      time.Duration // the job is killed if no keep-alive arrives for this long. 0 disables the watchdog
	WatchdogInterval time.Duration // how often the idle window is checked. Defaults to IdleTimeout / 10
	FailFast         bool          // iff true, the first collector failure kills all other collectors
	Stats            *stats.CollectStats
	Logger           *zap.Logger
}

type registeredCollector struct {
	collector sifql.Collector
	killed    bool
}

// JobCollectContext is the state of one job on one node: the Collectors launched for it,
// the memory they account, and the keep-alive timestamp watched for idleness.
type JobCollectContext struct {
	jobID    uuid.UUID
	nodeID   string
	governor sifql.MemoryGovernor
	account  *memory.Account
	opts     JobOptions
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	lastKeepAlive int64 // unix nanos

	lock            sync.Mutex
	collectors      map[int]*registeredCollector
	nextID          int
	threadPoolNames map[int]string
	errs            *multierror.Error
	killErr         error
	terminated      bool
	done            chan struct{}
}

// NewJobCollectContext creates the context of job jobID on node nodeID. The memory of all
// of its collectors is charged to governor, and released once the job ends.
func NewJobCollectContext(jobID uuid.UUID, nodeID string, governor sifql.MemoryGovernor, opts JobOptions) *JobCollectContext {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = opts.IdleTimeout / 10
	}
	j := &JobCollectContext{
		jobID:           jobID,
		nodeID:          nodeID,
		governor:        governor,
		account:         memory.NewAccount(governor),
		opts:            opts,
		logger:          logging.OrNop(opts.Logger).With(zap.Stringer("job", jobID), zap.String("node", nodeID)),
		ctx:             ctx,
		cancel:          cancel,
		collectors:      make(map[int]*registeredCollector),
		threadPoolNames: make(map[int]string),
		done:            make(chan struct{}),
	}
	j.KeepAlive()
	if opts.IdleTimeout > 0 && opts.WatchdogInterval > 0 {
		go j.watchdog()
	} else {
		go func() {
			<-ctx.Done()
			close(j.done)
		}()
	}
	return j
}

// JobID returns the id of the owning job
func (j *JobCollectContext) JobID() uuid.UUID {
	return j.jobID
}

// NodeID returns the id of the executing node
func (j *JobCollectContext) NodeID() string {
	return j.nodeID
}

// KeepAliveListener returns this JobCollectContext
func (j *JobCollectContext) KeepAliveListener() sifql.KeepAliveListener {
	return j
}

// KeepAlive resets the idle timer
func (j *JobCollectContext) KeepAlive() {
	atomic.StoreInt64(&j.lastKeepAlive, time.Now().UnixNano())
}

// LastKeepAlive returns the time of the most recent keep-alive
func (j *JobCollectContext) LastKeepAlive() time.Time {
	return time.Unix(0, atomic.LoadInt64(&j.lastKeepAlive))
}

// MemoryGovernor returns the account all memory of this job is charged to
func (j *JobCollectContext) MemoryGovernor() sifql.MemoryGovernor {
	return j.account
}

// Context returns a context which is cancelled once the job is killed or closed
func (j *JobCollectContext) Context() context.Context {
	return j.ctx
}

// Done returns a channel which is closed once the job was killed or closed and its watchdog has stopped
func (j *JobCollectContext) Done() <-chan struct{} {
	return j.done
}

// ThreadPoolName returns the pool the collectors of phase run on, computed once per phase
func (j *JobCollectContext) ThreadPoolName(phase sifql.CollectPhase) string {
	j.lock.Lock()
	defer j.lock.Unlock()
	id := phase.Descriptor().PhaseID
	if name, ok := j.threadPoolNames[id]; ok {
		return name
	}
	name := ThreadPoolName(phase, j.nodeID)
	j.threadPoolNames[id] = name
	return name
}

// register adds c to the collectors of this job. If the job has already been killed, c is
// killed right away and -1 is returned.
func (j *JobCollectContext) register(c sifql.Collector) int {
	j.lock.Lock()
	if j.terminated {
		killErr := j.killErr
		j.lock.Unlock()
		if killErr == nil {
			killErr = errors.JobKilledError{JobID: j.jobID.String(), Reason: errors.KilledByClient}
		}
		c.Kill(killErr)
		return -1
	}
	defer j.lock.Unlock()
	id := j.nextID
	j.nextID++
	j.collectors[id] = &registeredCollector{collector: c}
	return id
}

// deregister removes a collector which has returned
func (j *JobCollectContext) deregister(id int) {
	if id < 0 {
		return
	}
	j.lock.Lock()
	defer j.lock.Unlock()
	delete(j.collectors, id)
}

// NumCollectors returns the number of registered collectors which have not returned yet
func (j *JobCollectContext) NumCollectors() int {
	j.lock.Lock()
	defer j.lock.Unlock()
	return len(j.collectors)
}

// ReportFailure records the failure of a collector or projector. A memory ceiling breach
// always kills the job; any other failure kills it under a fail-fast policy.
func (j *JobCollectContext) ReportFailure(err error) {
	j.lock.Lock()
	j.errs = multierror.Append(j.errs, err)
	j.lock.Unlock()
	j.logger.Warn("Collector failed", zap.Error(err))
	var limitErr errors.MemoryLimitExceededError
	switch {
	case stderrors.As(err, &limitErr):
		j.Kill(errors.KilledByMemoryLimit)
	case j.opts.FailFast:
		j.Kill(errors.KilledByFailure)
	}
}

// Errors returns all failures reported so far, or nil
func (j *JobCollectContext) Errors() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.errs == nil {
		return nil
	}
	j.errs.ErrorFormat = iutil.FormatMultiError
	return j.errs.ErrorOrNil()
}

// Kill kills every registered collector exactly once, cancels the job's context and
// releases its memory. Kill is idempotent: only the first call has an effect.
func (j *JobCollectContext) Kill(reason errors.KillReason) {
	killErr := errors.JobKilledError{JobID: j.jobID.String(), Reason: reason}
	j.lock.Lock()
	if j.terminated {
		j.lock.Unlock()
		return
	}
	j.terminated = true
	j.killErr = killErr
	toKill := make([]sifql.Collector, 0, len(j.collectors))
	for _, rc := range j.collectors {
		if !rc.killed {
			rc.killed = true
			toKill = append(toKill, rc.collector)
		}
	}
	j.lock.Unlock()

	j.logger.Info("Killing job", zap.String("reason", string(reason)), zap.Int("collectors", len(toKill)))
	for _, c := range toKill {
		c.Kill(killErr)
		if j.opts.Stats != nil {
			j.opts.Stats.CollectorKilled()
		}
	}
	j.finalize()
}

// Close ends a job whose collectors have all completed, releasing its memory
func (j *JobCollectContext) Close() {
	j.lock.Lock()
	if j.terminated {
		j.lock.Unlock()
		return
	}
	j.terminated = true
	j.lock.Unlock()
	j.finalize()
}

func (j *JobCollectContext) finalize() {
	j.cancel()
	j.account.Close()
	if j.opts.Stats != nil {
		allocated := j.governor.Allocated()
		if g, ok := j.governor.(*memory.Governor); ok {
			allocated = g.Root().Allocated()
		}
		j.opts.Stats.SetMemory(allocated)
	}
}

func (j *JobCollectContext) watchdog() {
	defer close(j.done)
	ticker := time.NewTicker(j.opts.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-j.ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(j.LastKeepAlive()) > j.opts.IdleTimeout {
				j.logger.Warn("No keep-alive received within idle timeout", zap.Duration("idle_timeout", j.opts.IdleTimeout))
				j.Kill(errors.KilledByIdleTimeout)
				return
			}
		}
	}
}

var _ sifql.JobContext = (*JobCollectContext)(nil)
