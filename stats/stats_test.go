package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectStats(t *testing.T) {
	s := NewCollectStats("sifql_test")
	reg := prometheus.NewRegistry()
	require.Nil(t, s.Register(reg))
	require.NotNil(t, s.Register(reg))

	s.CollectorLaunched()
	s.CollectorLaunched()
	start := s.StartCollector()
	require.Equal(t, 1.0, testutil.ToFloat64(s.active))
	s.EndCollector(start, 2, nil)
	s.EndCollector(s.StartCollector(), 0, fmt.Errorf("boom"))
	s.CollectorKilled()
	s.SetMemory(64)

	require.Equal(t, 2.0, testutil.ToFloat64(s.launched))
	require.Equal(t, 1.0, testutil.ToFloat64(s.finished))
	require.Equal(t, 1.0, testutil.ToFloat64(s.failed))
	require.Equal(t, 1.0, testutil.ToFloat64(s.killed))
	require.Equal(t, 2.0, testutil.ToFloat64(s.rows))
	require.Equal(t, 0.0, testutil.ToFloat64(s.active))
	require.Equal(t, 64.0, testutil.ToFloat64(s.memory))
	require.True(t, s.GetCurrentCollectorRuntime() >= 0)
	require.EqualValues(t, 2, s.GetNumRowsCollected())
	require.EqualValues(t, 0, s.GetNumCollectorsRunning())
	require.True(t, s.GetRuntime() >= 0)
	require.False(t, s.GetStartTime().After(time.Now()))
}
