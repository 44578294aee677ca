package sys

import (
	"os"
	"runtime"
	"sort"
	"sync"

	sigar "github.com/elastic/gosigar"
	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/errors"
)

// NodesTable is the name of the node system table
const NodesTable = "sys.nodes"

// Synthesizer computes the value of a column for the executing node
type Synthesizer func(n *nodeDocument) (interface{}, error)

var synthesizers = map[string]Synthesizer{
	"id": func(n *nodeDocument) (interface{}, error) {
		return n.nodeID, nil
	},
	"hostname": func(n *nodeDocument) (interface{}, error) {
		return os.Hostname()
	},
	"mem.total": memColumn(func(m *sigar.Mem) uint64 { return m.Total }),
	"mem.used":  memColumn(func(m *sigar.Mem) uint64 { return m.ActualUsed }),
	"mem.free":  memColumn(func(m *sigar.Mem) uint64 { return m.ActualFree }),
	"load.1":    loadColumn(func(l *sigar.LoadAverage) float64 { return l.One }),
	"load.5":    loadColumn(func(l *sigar.LoadAverage) float64 { return l.Five }),
	"load.15":   loadColumn(func(l *sigar.LoadAverage) float64 { return l.Fifteen }),
	"process.pid": func(n *nodeDocument) (interface{}, error) {
		return int64(os.Getpid()), nil
	},
	"process.goroutines": func(n *nodeDocument) (interface{}, error) {
		return int64(runtime.NumGoroutine()), nil
	},
	"process.cpus": func(n *nodeDocument) (interface{}, error) {
		return int64(runtime.NumCPU()), nil
	},
	"process.heap_used": func(n *nodeDocument) (interface{}, error) {
		return int64(n.memStats().HeapAlloc), nil
	},
	"process.heap_sys": func(n *nodeDocument) (interface{}, error) {
		return int64(n.memStats().HeapSys), nil
	},
}

// Columns returns the names of all columns of the node table, sorted
func Columns() []string {
	names := make([]string, 0, len(synthesizers))
	for name := range synthesizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the Synthesizer of a column, or an UnknownColumnError
func Lookup(column string) (Synthesizer, error) {
	s, ok := synthesizers[column]
	if !ok {
		return nil, errors.UnknownColumnError{Table: NodesTable, Column: column}
	}
	return s, nil
}

func memColumn(get func(m *sigar.Mem) uint64) Synthesizer {
	return func(n *nodeDocument) (interface{}, error) {
		m, err := n.mem()
		if err != nil {
			return nil, err
		}
		return int64(get(m)), nil
	}
}

func loadColumn(get func(l *sigar.LoadAverage) float64) Synthesizer {
	return func(n *nodeDocument) (interface{}, error) {
		l, err := n.load()
		if err != nil {
			return nil, err
		}
		return get(l), nil
	}
}

// nodeDocument samples node statistics at most once per row
type nodeDocument struct {
	nodeID string

	memOnce  sync.Once
	memVal   sigar.Mem
	memErr   error
	loadOnce sync.Once
	loadVal  sigar.LoadAverage
	loadErr  error
	msOnce   sync.Once
	msVal    runtime.MemStats
}

// Lookup computes the value of the referenced column
func (n *nodeDocument) Lookup(ref *sifql.Reference) (interface{}, error) {
	s, err := Lookup(ref.Column.FQN())
	if err != nil {
		return nil, err
	}
	return s(n)
}

func (n *nodeDocument) mem() (*sigar.Mem, error) {
	n.memOnce.Do(func() {
		n.memErr = n.memVal.Get()
	})
	return &n.memVal, n.memErr
}

func (n *nodeDocument) load() (*sigar.LoadAverage, error) {
	n.loadOnce.Do(func() {
		n.loadErr = n.loadVal.Get()
	})
	return &n.loadVal, n.loadErr
}

func (n *nodeDocument) memStats() *runtime.MemStats {
	n.msOnce.Do(func() {
		runtime.ReadMemStats(&n.msVal)
	})
	return &n.msVal
}
