package jsonl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-sif/sifql"
	"github.com/tidwall/gjson"
)

type jsonlBatchIterator struct {
	parser  *Parser
	scanner *bufio.Scanner
	closer  io.Closer
	hasNext bool
	line    int
	toRow   RowFunc
	lock    sync.Mutex
}

// HasNextBatch returns true iff this BatchIterator can produce another batch
func (jsonli *jsonlBatchIterator) HasNextBatch() bool {
	jsonli.lock.Lock()
	defer jsonli.lock.Unlock()
	return jsonli.hasNext
}

// NextBatch returns the next batch of rows, which may be empty
func (jsonli *jsonlBatchIterator) NextBatch(ctx context.Context) ([]sifql.Row, error) {
	jsonli.lock.Lock()
	defer jsonli.lock.Unlock()
	batch := make([]sifql.Row, 0, jsonli.parser.BatchSize())
	for len(batch) < jsonli.parser.BatchSize() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// grab another line from the file
		if !jsonli.scanner.Scan() {
			jsonli.hasNext = false
			if err := jsonli.scanner.Err(); err != nil {
				return nil, err
			}
			return batch, nil
		}
		jsonli.line++
		rowString := strings.TrimSpace(jsonli.scanner.Text())
		if len(rowString) == 0 || (jsonli.parser.conf.Comment != 0 && strings.HasPrefix(rowString, string(jsonli.parser.conf.Comment))) {
			continue
		}
		if !gjson.Valid(rowString) {
			return nil, fmt.Errorf("Unable to parse line %d: invalid JSON", jsonli.line)
		}
		row, err := jsonli.toRow(Document{gjson.Parse(rowString)})
		if err != nil {
			return nil, fmt.Errorf("Unable to parse line %d: %w", jsonli.line, err)
		}
		if row != nil {
			batch = append(batch, row)
		}
	}
	return batch, nil
}

// Close closes the underlying reader
func (jsonli *jsonlBatchIterator) Close() error {
	return jsonli.closer.Close()
}
