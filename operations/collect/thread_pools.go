package collect

import (
	"fmt"
	"time"

	"github.com/go-sif/sifql/config"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Names of the thread pools Collectors run on
const (
	GetPool     = "get"     // lookups and cluster, node or shard level rows
	SearchPool  = "search"  // document scans over several local slices
	GenericPool = "generic" // everything else
)

// ThreadPools is the set of named worker pools of a node. Submission never blocks:
// a saturated pool rejects the task.
type ThreadPools struct {
	pools map[string]*ants.Pool
}

// NewThreadPools creates one pool per entry of sizes
func NewThreadPools(sizes map[string]int, logger *zap.Logger) (*ThreadPools, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := &ThreadPools{pools: make(map[string]*ants.Pool, len(sizes))}
	for name, size := range sizes {
		poolName := name
		pool, err := ants.NewPool(size, ants.WithNonblocking(true), ants.WithPanicHandler(func(v interface{}) {
			logger.Error("Collector panicked outside of its recovery handler", zap.String("pool", poolName), zap.Any("panic", v))
		}))
		if err != nil {
			tp.Release(time.Second)
			return nil, fmt.Errorf("Unable to create thread pool %s: %w", name, err)
		}
		tp.pools[name] = pool
	}
	return tp, nil
}

// NewThreadPoolsFromOptions creates the get, search and generic pools sized by opts
func NewThreadPoolsFromOptions(opts *config.Options, logger *zap.Logger) (*ThreadPools, error) {
	return NewThreadPools(map[string]int{
		GetPool:     opts.GetPoolSize,
		SearchPool:  opts.SearchPoolSize,
		GenericPool: opts.GenericPoolSize,
	}, logger)
}

// Submit runs task on the named pool, failing if the pool does not exist or is saturated
func (tp *ThreadPools) Submit(name string, task func()) error {
	pool, ok := tp.pools[name]
	if !ok {
		return fmt.Errorf("No thread pool named %s", name)
	}
	return pool.Submit(task)
}

// Running returns the number of tasks currently running on the named pool
func (tp *ThreadPools) Running(name string) int {
	if pool, ok := tp.pools[name]; ok {
		return pool.Running()
	}
	return 0
}

// Release stops all pools, waiting up to timeout for running tasks to return
func (tp *ThreadPools) Release(timeout time.Duration) error {
	var firstErr error
	for _, pool := range tp.pools {
		if err := pool.ReleaseTimeout(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
