package collect

import (
	"sync"

	"github.com/go-sif/sifql"
	iutil "github.com/go-sif/sifql/internal/util"
	"github.com/hashicorp/go-multierror"
)

// MultiUpstreamRowReceiver lets several Collectors share one downstream RowReceiver.
// Rows are handed over one at a time, and the downstream is finished (or failed, with the
// combined errors of all upstreams) once, after the last upstream has terminated.
type MultiUpstreamRowReceiver struct {
	downstream  sifql.RowReceiver
	rowLock     sync.Mutex // serializes rows handed to downstream
	stopped     bool
	lock        sync.Mutex // guards the upstream bookkeeping below
	pending     int
	completed   bool
	errs        *multierror.Error
	prepareOnce sync.Once
}

// NewMultiUpstreamRowReceiver wraps downstream. SetUpstreams must be called before the first
// upstream terminates.
func NewMultiUpstreamRowReceiver(downstream sifql.RowReceiver) *MultiUpstreamRowReceiver {
	return &MultiUpstreamRowReceiver{downstream: downstream}
}

// SetUpstreams sets the number of upstreams which will call Finish or Fail.
// Without upstreams the downstream is finished right away.
func (r *MultiUpstreamRowReceiver) SetUpstreams(n int) {
	r.lock.Lock()
	r.pending = n
	if n > 0 || r.completed {
		r.lock.Unlock()
		return
	}
	r.completed = true
	r.lock.Unlock()
	r.complete(nil)
}

// Prepare prepares the downstream once
func (r *MultiUpstreamRowReceiver) Prepare() {
	r.prepareOnce.Do(r.downstream.Prepare)
}

// SetNextRow hands row to the downstream. Once the downstream asked to stop, every upstream is told to stop.
// An upstream may terminate while another one is handing over a row.
func (r *MultiUpstreamRowReceiver) SetNextRow(row sifql.Row) sifql.ReceiverStatus {
	r.rowLock.Lock()
	defer r.rowLock.Unlock()
	if r.stopped {
		return sifql.Stop
	}
	status := r.downstream.SetNextRow(row)
	if status == sifql.Stop {
		r.stopped = true
	}
	return status
}

// Resumed returns the downstream's resume channel
func (r *MultiUpstreamRowReceiver) Resumed() <-chan struct{} {
	return r.downstream.Resumed()
}

// Finish marks one upstream as completed
func (r *MultiUpstreamRowReceiver) Finish() {
	r.upstreamDone(nil)
}

// Fail marks one upstream as failed with err
func (r *MultiUpstreamRowReceiver) Fail(err error) {
	r.upstreamDone(err)
}

// upstreamDone counts one terminated upstream. Terminations beyond the announced number
// of upstreams are ignored.
func (r *MultiUpstreamRowReceiver) upstreamDone(err error) {
	r.lock.Lock()
	if r.completed {
		r.lock.Unlock()
		return
	}
	if err != nil {
		r.errs = multierror.Append(r.errs, err)
	}
	r.pending--
	if r.pending > 0 {
		r.lock.Unlock()
		return
	}
	r.completed = true
	errs := r.errs
	r.lock.Unlock()
	r.complete(errs)
}

func (r *MultiUpstreamRowReceiver) complete(errs *multierror.Error) {
	r.Prepare()
	switch {
	case errs == nil:
		r.downstream.Finish()
	case len(errs.Errors) == 1:
		r.downstream.Fail(errs.Errors[0])
	default:
		errs.ErrorFormat = iutil.FormatMultiError
		r.downstream.Fail(errs)
	}
}
