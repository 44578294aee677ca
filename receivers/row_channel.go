package receivers

import (
	"context"
	"sync"

	"github.com/go-sif/sifql"
)

// RowChannel is a bounded buffer between a producer pushing rows and a consumer pulling
// them with Next. When the buffer is full the producer is told to Pause, and Resumed is
// closed once the consumer has drained it.
type RowChannel struct {
	lock     sync.Mutex
	buf      []sifql.ArrayRow
	capacity int
	resumed  chan struct{}
	notify   chan struct{}
	finished bool
	err      error
}

// NewRowChannel is a factory for RowChannels
func NewRowChannel(capacity int) *RowChannel {
	if capacity <= 0 {
		capacity = 1
	}
	return &RowChannel{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Prepare is a no-op
func (c *RowChannel) Prepare() {}

// SetNextRow buffers row, asking the producer to pause once the buffer is full
func (c *RowChannel) SetNextRow(row sifql.Row) sifql.ReceiverStatus {
	c.lock.Lock()
	c.buf = append(c.buf, row.Materialize())
	status := sifql.NeedMore
	if len(c.buf) >= c.capacity {
		if c.resumed == nil {
			c.resumed = make(chan struct{})
		}
		status = sifql.Pause
	}
	c.lock.Unlock()
	c.signal()
	return status
}

// Resumed returns a channel which is closed once the buffer has room again
func (c *RowChannel) Resumed() <-chan struct{} {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.resumed == nil {
		return sifql.ClosedChannel
	}
	return c.resumed
}

// Finish marks the end of the stream
func (c *RowChannel) Finish() {
	c.lock.Lock()
	c.finished = true
	c.lock.Unlock()
	c.signal()
}

// Fail marks the end of the stream with err. Rows buffered before the failure are dropped.
func (c *RowChannel) Fail(err error) {
	c.lock.Lock()
	if !c.finished {
		c.finished = true
		c.err = err
		c.buf = nil
	}
	c.lock.Unlock()
	c.signal()
}

// Next returns the next row. It returns false once the stream has ended, together with
// the producer's failure, if any.
func (c *RowChannel) Next(ctx context.Context) (sifql.ArrayRow, bool, error) {
	for {
		c.lock.Lock()
		if len(c.buf) > 0 {
			row := c.buf[0]
			c.buf = c.buf[1:]
			if c.resumed != nil && len(c.buf) < c.capacity {
				close(c.resumed)
				c.resumed = nil
			}
			c.lock.Unlock()
			return row, true, nil
		}
		if c.finished {
			err := c.err
			c.lock.Unlock()
			return nil, false, err
		}
		c.lock.Unlock()
		select {
		case <-c.notify:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

func (c *RowChannel) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
