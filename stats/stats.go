// Package stats tracks the progress of map-side collection on one node
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sif/sifql"
	"github.com/prometheus/client_golang/prometheus"
)

const statisticRollingWindows = 5

// CollectStats contains statistics about the Collectors running on a node
type CollectStats struct {
	numRows   int64 // mirrors rows for RuntimeStatistics
	running   int64 // mirrors active for RuntimeStatistics
	launched  prometheus.Counter
	finished  prometheus.Counter
	failed    prometheus.Counter
	killed    prometheus.Counter
	rejected  prometheus.Counter
	rows      prometheus.Counter
	active    prometheus.Gauge
	memory    prometheus.Gauge
	lock      sync.Mutex
	startTime time.Time
	// for rolling average of recent collector runtimes
	recentCollectorRuntimes     []int64
	recentCollectorRuntimesHead int
}

// NewCollectStats is a factory for CollectStats. Metric names are prefixed with namespace.
func NewCollectStats(namespace string) *CollectStats {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: "collect", Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "collect", Name: name, Help: help})
	}
	return &CollectStats{
		launched:                counter("collectors_launched_total", "Total number of collectors submitted to a thread pool"),
		finished:                counter("collectors_finished_total", "Total number of collectors which completed successfully"),
		failed:                  counter("collectors_failed_total", "Total number of collectors which failed"),
		killed:                  counter("collectors_killed_total", "Total number of collectors which were killed"),
		rejected:                counter("collectors_rejected_total", "Total number of collectors rejected by a thread pool"),
		rows:                    counter("rows_total", "Total number of rows produced by collectors"),
		active:                  gauge("collectors_active", "Number of collectors currently running"),
		memory:                  gauge("memory_bytes", "Bytes currently accounted by job memory governors"),
		startTime:               time.Now(),
		recentCollectorRuntimes: make([]int64, statisticRollingWindows),
	}
}

// Register registers all metrics with reg
func (s *CollectStats) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{s.launched, s.finished, s.failed, s.killed, s.rejected, s.rows, s.active, s.memory} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// CollectorLaunched tracks the submission of a collector
func (s *CollectStats) CollectorLaunched() {
	s.launched.Inc()
}

// CollectorRejected tracks a collector which a thread pool refused to run
func (s *CollectStats) CollectorRejected() {
	s.rejected.Inc()
}

// CollectorKilled tracks a collector kill
func (s *CollectStats) CollectorKilled() {
	s.killed.Inc()
}

// StartCollector tracks the beginning of a collector run, returning its start time
func (s *CollectStats) StartCollector() time.Time {
	s.active.Inc()
	atomic.AddInt64(&s.running, 1)
	return time.Now()
}

// EndCollector tracks the end of a collector run which produced numRows rows
func (s *CollectStats) EndCollector(start time.Time, numRows int64, err error) {
	s.active.Dec()
	atomic.AddInt64(&s.running, -1)
	s.rows.Add(float64(numRows))
	atomic.AddInt64(&s.numRows, numRows)
	if err != nil {
		s.failed.Inc()
	} else {
		s.finished.Inc()
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.recentCollectorRuntimes[s.recentCollectorRuntimesHead] = time.Since(start).Nanoseconds()
	s.recentCollectorRuntimesHead = (s.recentCollectorRuntimesHead + 1) % len(s.recentCollectorRuntimes)
}

// SetMemory records the number of bytes currently accounted
func (s *CollectStats) SetMemory(bytes int64) {
	s.memory.Set(float64(bytes))
}

// GetStartTime returns the time these statistics were created
func (s *CollectStats) GetStartTime() time.Time {
	return s.startTime
}

// GetRuntime returns the time since these statistics were created
func (s *CollectStats) GetRuntime() time.Duration {
	return time.Since(s.startTime)
}

// GetNumRowsCollected returns the number of rows produced by all collectors so far
func (s *CollectStats) GetNumRowsCollected() int64 {
	return atomic.LoadInt64(&s.numRows)
}

// GetNumCollectorsRunning returns the number of collectors which are currently running
func (s *CollectStats) GetNumCollectorsRunning() int64 {
	return atomic.LoadInt64(&s.running)
}

// GetCurrentCollectorRuntime returns a rolling average of collector runtimes
func (s *CollectStats) GetCurrentCollectorRuntime() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	var total int64
	for _, d := range s.recentCollectorRuntimes {
		total += d
	}
	return time.Duration(total / statisticRollingWindows)
}

var _ sifql.RuntimeStatistics = (*CollectStats)(nil)
