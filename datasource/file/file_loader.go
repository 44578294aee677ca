package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/datasource/parser/jsonl"
	"github.com/go-sif/sifql/expr"
	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
)

// fileLoader opens a single file for reading
type fileLoader struct {
	path       string
	compressed bool
	parser     *jsonl.Parser
	builder    *expr.RowBuilder
}

// String returns a string representation of this fileLoader
func (fl *fileLoader) String() string {
	return fmt.Sprintf("File loader filename: %s", fl.path)
}

// Source returns the id of the file source
func (fl *fileLoader) Source() string {
	return "file"
}

// Slice returns the path of the file
func (fl *fileLoader) Slice() string {
	return fl.path
}

// Load opens the file and returns an iterator over its rows
func (fl *fileLoader) Load(ctx context.Context) (sifql.BatchIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(fl.path)
	if err != nil {
		return nil, err
	}
	var r io.ReadCloser = f
	if fl.compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("Unable to read gzipped file %s: %w", fl.path, err)
		}
		r = &gzipFile{Reader: gz, file: f}
	}
	return fl.parser.Parse(r, fl.builder.Build)
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

// Close closes both the gzip stream and the file beneath it
func (g *gzipFile) Close() error {
	var result *multierror.Error
	if err := g.Reader.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := g.file.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
