// Package receivers contains terminal RowReceivers, which collect rows handed over by Collectors or projectors.
package receivers

import (
	"context"
	"sync"

	"github.com/go-sif/sifql"
)

// CollectingRowReceiver materializes every row it receives, up to an optional limit
type CollectingRowReceiver struct {
	lock     sync.Mutex
	rows     []sifql.ArrayRow
	limit    int
	err      error
	prepared bool
	done     chan struct{}
	once     sync.Once
}

// NewCollectingRowReceiver is a factory for CollectingRowReceivers. A limit <= 0 collects all rows.
func NewCollectingRowReceiver(limit int) *CollectingRowReceiver {
	return &CollectingRowReceiver{limit: limit, done: make(chan struct{})}
}

// Prepare marks this receiver as started
func (r *CollectingRowReceiver) Prepare() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.prepared = true
}

// SetNextRow materializes row, returning Stop once the limit has been reached
func (r *CollectingRowReceiver) SetNextRow(row sifql.Row) sifql.ReceiverStatus {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.limit > 0 && len(r.rows) >= r.limit {
		return sifql.Stop
	}
	r.rows = append(r.rows, row.Materialize())
	if r.limit > 0 && len(r.rows) >= r.limit {
		return sifql.Stop
	}
	return sifql.NeedMore
}

// Resumed returns a closed channel, since a CollectingRowReceiver never pauses
func (r *CollectingRowReceiver) Resumed() <-chan struct{} {
	return sifql.ClosedChannel
}

// Finish completes this receiver
func (r *CollectingRowReceiver) Finish() {
	r.once.Do(func() { close(r.done) })
}

// Fail completes this receiver with err. Only the first termination is recorded.
func (r *CollectingRowReceiver) Fail(err error) {
	r.once.Do(func() {
		r.lock.Lock()
		r.err = err
		r.lock.Unlock()
		close(r.done)
	})
}

// Done returns a channel which is closed once this receiver was finished or failed
func (r *CollectingRowReceiver) Done() <-chan struct{} {
	return r.done
}

// Result waits for completion and returns the collected rows, or the failure
func (r *CollectingRowReceiver) Result(ctx context.Context) ([]sifql.ArrayRow, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.rows, nil
}

// Prepared returns true iff Prepare was called
func (r *CollectingRowReceiver) Prepared() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.prepared
}
