package file

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/datasource/parser/jsonl"
	"github.com/go-sif/sifql/expr"
	"github.com/go-sif/sifql/operations/collect"
)

// GzipCompression is the compression hint for gzipped files
const GzipCompression = "gzip"

// Source builds one collector per file matched by a FileURICollectPhase
type Source struct {
	compiler   *expr.Compiler
	parserConf jsonl.ParserConf
}

// NewSource is a factory for Sources. conf configures the parser used for every file.
func NewSource(compiler *expr.Compiler, conf jsonl.ParserConf) *Source {
	return &Source{compiler: compiler, parserConf: conf}
}

// GetCollectors returns one collector per file this node should read
func (s *Source) GetCollectors(phase sifql.CollectPhase, downstream sifql.RowReceiver, jobCtx sifql.JobContext) ([]sifql.Collector, error) {
	filePhase, ok := phase.(*sifql.FileURICollectPhase)
	if !ok {
		return nil, fmt.Errorf("File source cannot collect phase type %s", phase.Type())
	}
	d := phase.Descriptor()
	builder, err := expr.NewRowBuilder(s.compiler, d.Outputs, d.Filter)
	if err != nil {
		return nil, err
	}
	files, err := ExpandURIs(filePhase.URIs)
	if err != nil {
		return nil, err
	}
	if filePhase.SharedStorage {
		files = assignedFiles(files, d.Routing.NodeIDs(), jobCtx.NodeID())
	}
	conf := s.parserConf
	parser := jsonl.CreateParser(&conf)
	collectors := make([]sifql.Collector, 0, len(files))
	for _, path := range files {
		loader := &fileLoader{
			path:       path,
			compressed: filePhase.Compression == GzipCompression || strings.HasSuffix(path, ".gz"),
			parser:     parser,
			builder:    builder,
		}
		collectors = append(collectors, collect.NewBatchCollector(loader, downstream, jobCtx))
	}
	return collectors, nil
}

// ExpandURIs resolves file:// URIs, plain paths and globs into a sorted list of distinct paths.
// A glob which matches nothing contributes no paths, a plain path is kept even if it does not exist.
func ExpandURIs(uris []string) ([]string, error) {
	seen := make(map[string]struct{})
	var result []string
	for _, uri := range uris {
		path, err := toPath(uri)
		if err != nil {
			return nil, err
		}
		matches := []string{path}
		if hasMeta(path) {
			matches, err = filepath.Glob(path)
			if err != nil {
				return nil, fmt.Errorf("Invalid glob %s: %w", uri, err)
			}
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				continue
			}
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				result = append(result, m)
			}
		}
	}
	sort.Strings(result)
	return result, nil
}

func toPath(uri string) (string, error) {
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("Invalid file URI %s: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("Unsupported URI scheme %s in %s", u.Scheme, uri)
	}
	return u.Path, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// assignedFiles returns the files which nodeID reads when files are split between nodes
func assignedFiles(files []string, nodeIDs []string, nodeID string) []string {
	if len(nodeIDs) <= 1 {
		return files
	}
	var result []string
	for _, f := range files {
		owner := nodeIDs[xxhash.Sum64String(f)%uint64(len(nodeIDs))]
		if owner == nodeID {
			result = append(result, f)
		}
	}
	return result
}
