package sifql

import "context"

// BatchIterator is a generalized interface for iterating over the rows of one slice in batches, regardless of where they come from
type BatchIterator interface {
	HasNextBatch() bool
	// NextBatch returns up to one batch of rows. An empty batch is valid.
	NextBatch(ctx context.Context) ([]Row, error)
	// Close releases the underlying reader. It may be called concurrently with NextBatch to interrupt blocked I/O.
	Close() error
}
