package jsonl

import (
	"bufio"
	"io"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/expr"
)

// ParserConf configures a JSONL Parser, suitable for JSON lines data
type ParserConf struct {
	BatchSize     int  // The maximum number of rows per batch. Defaults to 128.
	HeaderLines   int  // The number of lines to ignore from the beginning of each file. Defaults to 0.
	Comment       rune // Lines beginning with the comment character are ignored. Defaults to no comment character.
	MaxBufferSize int  // Maximum size in bytes of the buffer used to read lines from the file
}

// RowFunc produces the output row for a parsed document, or nil if the document should be skipped
type RowFunc func(doc expr.Document) (sifql.Row, error)

// Parser produces batches of rows from JSONL data
type Parser struct {
	conf *ParserConf
}

// CreateParser returns a new JSONL Parser. Columns are resolved lazily from each line of JSON using their column path, which should be a gjson path. Values within the JSON which are not referenced are ignored.
func CreateParser(conf *ParserConf) *Parser {
	if conf.BatchSize == 0 {
		conf.BatchSize = 128
	}
	if conf.MaxBufferSize == 0 {
		conf.MaxBufferSize = bufio.MaxScanTokenSize
	}
	return &Parser{conf: conf}
}

// BatchSize returns the maximum size in rows of batches produced by this Parser
func (p *Parser) BatchSize() int {
	return p.conf.BatchSize
}

// Parse parses JSONL data from r. The returned iterator closes r when it is closed.
func (p *Parser) Parse(r io.ReadCloser, toRow RowFunc) (sifql.BatchIterator, error) {
	// start parsing by creating a scanner
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), p.conf.MaxBufferSize)
	// ignore header lines, if configured to do so
	for i := 0; i < p.conf.HeaderLines; i++ {
		scanner.Scan()
		if err := scanner.Err(); err != nil {
			r.Close()
			return nil, err
		}
	}
	return &jsonlBatchIterator{
		parser:  p,
		scanner: scanner,
		closer:  r,
		hasNext: true,
		toRow:   toRow,
	}, nil
}
