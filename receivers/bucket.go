package receivers

import (
	"context"
	"sync"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/types"
)

// ShipFunc hands an encoded bucket of rows to the upstream of a node
type ShipFunc func(bucket []byte) error

// BucketRowReceiver encodes the rows it receives into buckets of at most
// bucketSize rows and ships each bucket as soon as it is full. The last,
// possibly partial, bucket is shipped on Finish.
type BucketRowReceiver struct {
	lock       sync.Mutex
	codec      *types.BucketCodec
	bucketSize int
	ship       ShipFunc
	pending    [][]interface{}
	shipped    int
	err        error
	done       chan struct{}
	once       sync.Once
}

// NewBucketRowReceiver is a factory for BucketRowReceivers. A bucketSize <= 0 ships a single bucket on Finish.
func NewBucketRowReceiver(codec *types.BucketCodec, bucketSize int, ship ShipFunc) *BucketRowReceiver {
	return &BucketRowReceiver{
		codec:      codec,
		bucketSize: bucketSize,
		ship:       ship,
		done:       make(chan struct{}),
	}
}

// Prepare is a no-op
func (r *BucketRowReceiver) Prepare() {}

// SetNextRow buffers row, shipping the buffer once it holds bucketSize rows.
// A failed encode or ship stops the producer; the error is reported by Wait.
func (r *BucketRowReceiver) SetNextRow(row sifql.Row) sifql.ReceiverStatus {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.err != nil {
		return sifql.Stop
	}
	r.pending = append(r.pending, row.Materialize())
	if r.bucketSize > 0 && len(r.pending) >= r.bucketSize {
		if r.err = r.flush(); r.err != nil {
			return sifql.Stop
		}
	}
	return sifql.NeedMore
}

// Resumed returns a closed channel; back pressure is applied by ShipFunc blocking
func (r *BucketRowReceiver) Resumed() <-chan struct{} {
	return sifql.ClosedChannel
}

// Finish ships any buffered rows and completes this receiver
func (r *BucketRowReceiver) Finish() {
	r.once.Do(func() {
		r.lock.Lock()
		if r.err == nil && (len(r.pending) > 0 || r.shipped == 0) {
			r.err = r.flush()
		}
		r.lock.Unlock()
		close(r.done)
	})
}

// Fail completes this receiver with err, discarding buffered rows
func (r *BucketRowReceiver) Fail(err error) {
	r.once.Do(func() {
		r.lock.Lock()
		if r.err == nil {
			r.err = err
		}
		r.pending = nil
		r.lock.Unlock()
		close(r.done)
	})
}

// Wait blocks until this receiver completes and returns its failure, if any
func (r *BucketRowReceiver) Wait(ctx context.Context) error {
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.err
}

// Shipped returns the number of buckets shipped so far
func (r *BucketRowReceiver) Shipped() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.shipped
}

func (r *BucketRowReceiver) flush() error {
	data, err := r.codec.Encode(r.pending)
	if err != nil {
		return err
	}
	r.pending = nil
	if err := r.ship(data); err != nil {
		return err
	}
	r.shipped++
	return nil
}
